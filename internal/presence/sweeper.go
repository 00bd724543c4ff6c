package presence

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/mpetrov/armada/internal/game"
	"github.com/mpetrov/armada/internal/store"
)

// Sweeper watches the presence channel and forces elimination of players
// whose heartbeats stop. Every participant runs one, but only the current
// referee acts: the lowest slot with a fresh heartbeat. The role is
// re-evaluated on every sweep and every announcement, so it migrates when
// the referee itself goes quiet.
type Sweeper struct {
	st        store.Store
	log       *zap.Logger
	sessionID string
	slot      int
	timeout   time.Duration
	interval  time.Duration

	lastSeen map[int]time.Time // touched only by Run's goroutine
}

func NewSweeper(st store.Store, log *zap.Logger, sessionID string, slot int, timeout time.Duration) *Sweeper {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Sweeper{
		st:        st,
		log:       log,
		sessionID: sessionID,
		slot:      slot,
		timeout:   timeout,
		interval:  timeout / 2,
		lastSeen:  make(map[int]time.Time),
	}
}

func (s *Sweeper) Run(ctx context.Context) error {
	sub, err := s.st.Subscribe(ctx, s.sessionID, store.TypePresence)
	if err != nil {
		return err
	}
	defer sub.Close()

	// Our own announcements come back through the feed like everyone
	// else's; seed ourselves so the first sweep has a baseline.
	s.lastSeen[s.slot] = time.Now()

	t := time.NewTicker(s.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-sub.Events():
			if !ok {
				return errors.New("presence feed closed")
			}
			if ev.Presence == nil {
				continue
			}
			s.observe(ctx, *ev.Presence)
		case <-t.C:
			s.sweep(ctx, time.Now())
		}
	}
}

func (s *Sweeper) observe(ctx context.Context, p store.Presence) {
	if p.Left {
		// Explicit leave skips the timeout entirely.
		delete(s.lastSeen, p.SlotIndex)
		if s.isReferee(time.Now()) {
			s.eliminate(ctx, p.SlotIndex)
		}
		return
	}
	if p.LastSeenAt.After(s.lastSeen[p.SlotIndex]) {
		s.lastSeen[p.SlotIndex] = p.LastSeenAt
	}
}

// isReferee reports whether we hold the referee role right now: our own
// heartbeat is fresh and no lower slot has a fresh one. A sweeper whose own
// announcements have lapsed yields the role, otherwise it would act
// concurrently with the true lowest-fresh referee.
func (s *Sweeper) isReferee(now time.Time) bool {
	for slot, seen := range s.lastSeen {
		if slot < s.slot && now.Sub(seen) <= s.timeout {
			return false
		}
	}
	seen, ok := s.lastSeen[s.slot]
	return ok && now.Sub(seen) <= s.timeout
}

func (s *Sweeper) sweep(ctx context.Context, now time.Time) {
	snap, err := s.st.Snapshot(ctx, s.sessionID)
	if err != nil {
		s.log.Warn("sweep snapshot failed", zap.Error(err))
		return
	}
	if snap.Session.Status != game.StatusPlaying {
		return
	}

	// A slot we have never heard from gets a full window of grace from the
	// moment we first see it, instead of instant elimination.
	for _, slot := range snap.AliveSlots() {
		if _, ok := s.lastSeen[slot]; !ok {
			s.lastSeen[slot] = now
		}
	}

	if !s.isReferee(now) {
		return
	}
	for _, slot := range snap.AliveSlots() {
		if now.Sub(s.lastSeen[slot]) > s.timeout {
			s.log.Info("presence timeout", zap.Int("slot", slot))
			s.eliminate(ctx, slot)
		}
	}
}

// eliminate marks every fleet cell of the slot hit and the player
// eliminated, advancing the turn or finishing the session by the shot rules.
// Only the referee calls this, so a disconnect is eliminated exactly once.
func (s *Sweeper) eliminate(ctx context.Context, slot int) {
	snap, err := s.st.Snapshot(ctx, s.sessionID)
	if err != nil {
		s.log.Warn("eliminate snapshot failed", zap.Int("slot", slot), zap.Error(err))
		return
	}
	out, err := game.ForceEliminate(snap, slot)
	if errors.Is(err, game.ErrNotPlaying) || errors.Is(err, game.ErrAlreadyEliminated) || errors.Is(err, game.ErrUnknownSlot) {
		return
	}
	if err != nil {
		s.log.Warn("force eliminate failed", zap.Int("slot", slot), zap.Error(err))
		return
	}
	if err := s.st.UpdatePlayer(ctx, out.Player); err != nil {
		s.log.Warn("write elimination failed", zap.Int("slot", slot), zap.Error(err))
		return
	}
	if err := s.st.UpdateSession(ctx, out.Session); err != nil {
		s.log.Warn("write turn advance failed", zap.Int("slot", slot), zap.Error(err))
		return
	}
	delete(s.lastSeen, slot)
	s.log.Info("player force-eliminated",
		zap.Int("slot", slot),
		zap.Bool("finished", out.Finished))
}
