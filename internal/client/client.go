// Package client is one participant's view of a session: it owns the feed
// subscription, keeps a local snapshot of the shared records, recomputes the
// read-only projection on every change, and performs the participant's
// writes. There is no server arbitrating turns; correctness comes from
// re-validating every action against a fresh read and from all writes being
// idempotent or monotonic.
package client

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mpetrov/armada/internal/fleet"
	"github.com/mpetrov/armada/internal/game"
	"github.com/mpetrov/armada/internal/store"
)

var ErrSessionFull = errors.New("session has no free slot")
var ErrNotHost = errors.New("host-only action")
var ErrSlotVacant = errors.New("slot has no player to resume")

const fleetRetries = 3

type Options struct {
	Log *zap.Logger
	// OnChange is invoked from the watch goroutine after every applied feed
	// event. Keep it fast; it blocks the feed.
	OnChange func(game.View)
}

type Client struct {
	st       store.Store
	log      *zap.Logger
	onChange func(game.View)

	sessionID     string
	code          string
	capacity      int
	slot          int
	name          string
	participantID string

	mu   sync.RWMutex
	snap game.Snapshot

	watchMu     sync.Mutex
	sub         store.Subscription
	watchCancel context.CancelFunc
	watchDone   chan struct{}
}

// CreateSession creates the session record and registers the caller as the
// host in the reserved top slot.
func CreateSession(ctx context.Context, st store.Store, capacity int, displayName string, opts Options) (*Client, error) {
	if capacity < game.MinCapacity || capacity > game.MaxCapacity {
		return nil, fmt.Errorf("capacity %d outside %d..%d", capacity, game.MinCapacity, game.MaxCapacity)
	}

	var sess game.Session
	for {
		code, err := NewCode()
		if err != nil {
			return nil, fmt.Errorf("generate code: %w", err)
		}
		sess = game.Session{
			ID:             uuid.NewString(),
			Code:           code,
			PlayerCapacity: capacity,
			Status:         game.StatusWaiting,
		}
		err = st.CreateSession(ctx, sess)
		if errors.Is(err, store.ErrCodeTaken) {
			continue
		}
		if err != nil {
			return nil, err
		}
		break
	}

	c := newClient(st, sess, sess.HostSlot(), displayName, opts)
	if err := c.claimSlot(ctx, sess.HostSlot(), nil); err != nil {
		return nil, err
	}
	if err := c.start(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// Join resolves a shared code and claims the lowest free slot below the
// host's. The chosen slot is available via Slot for the caller to persist,
// so a refreshed device resumes with Rejoin instead of claiming anew.
func Join(ctx context.Context, st store.Store, code, displayName string, opts Options) (*Client, error) {
	sess, err := st.SessionByCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("resolve code %q: %w", code, err)
	}

	c := newClient(st, sess, 0, displayName, opts)
	for {
		players, err := st.Players(ctx, sess.ID)
		if err != nil {
			return nil, err
		}
		slot := lowestFreeSlot(players, sess.HostSlot())
		if slot == game.TargetNone {
			return nil, ErrSessionFull
		}
		err = c.claimSlot(ctx, slot, players)
		if errors.Is(err, store.ErrSlotTaken) {
			// A racing peer won the slot; pick again from a fresh list.
			continue
		}
		if err != nil {
			return nil, err
		}
		c.slot = slot
		break
	}

	if err := c.start(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// Rejoin resumes a previously claimed slot after a refresh or device swap.
func Rejoin(ctx context.Context, st store.Store, code string, slot int, opts Options) (*Client, error) {
	sess, err := st.SessionByCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("resolve code %q: %w", code, err)
	}
	players, err := st.Players(ctx, sess.ID)
	if err != nil {
		return nil, err
	}
	var found *game.Player
	for i := range players {
		if players[i].SlotIndex == slot {
			found = &players[i]
			break
		}
	}
	if found == nil {
		return nil, fmt.Errorf("slot %d: %w", slot, ErrSlotVacant)
	}

	c := newClient(st, sess, slot, found.DisplayName, opts)
	if err := c.start(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

func newClient(st store.Store, sess game.Session, slot int, name string, opts Options) *Client {
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		st:            st,
		log:           log,
		onChange:      opts.OnChange,
		sessionID:     sess.ID,
		code:          sess.Code,
		capacity:      sess.PlayerCapacity,
		slot:          slot,
		name:          name,
		participantID: uuid.NewString(),
	}
}

func lowestFreeSlot(players []game.Player, hostSlot int) int {
	taken := make(map[int]bool, len(players))
	for _, p := range players {
		taken[p.SlotIndex] = true
	}
	for slot := 0; slot < hostSlot; slot++ {
		if !taken[slot] {
			return slot
		}
	}
	return game.TargetNone
}

// claimSlot generates a fresh fleet avoiding every cell other players
// already occupy, then writes the Player record. The fleet is generated once
// at claim time and never regenerated except through restart.
func (c *Client) claimSlot(ctx context.Context, slot int, others []game.Player) error {
	taken := make(map[game.Coord]bool)
	for _, p := range others {
		for _, sh := range p.Fleet {
			for _, cell := range sh.Cells {
				taken[cell] = true
			}
		}
	}

	var ships []game.Ship
	var err error
	for attempt := 0; attempt < fleetRetries; attempt++ {
		ships, err = fleet.New(game.GridWidth, c.capacity, taken)
		if err == nil {
			break
		}
	}
	if err != nil {
		return fmt.Errorf("place fleet: %w", err)
	}

	return c.st.CreatePlayer(ctx, game.Player{
		ID:          uuid.NewString(),
		SessionID:   c.sessionID,
		SlotIndex:   slot,
		DisplayName: c.name,
		Fleet:       ships,
		HitsTaken:   []game.Coord{},
	})
}

func (c *Client) start(ctx context.Context) error {
	c.watchMu.Lock()
	defer c.watchMu.Unlock()
	return c.startLocked(ctx)
}

func (c *Client) startLocked(ctx context.Context) error {
	sub, err := c.st.Subscribe(ctx, c.sessionID, store.TypeSession, store.TypePlayer, store.TypeShot)
	if err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	snap, err := c.st.Snapshot(ctx, c.sessionID)
	if err != nil {
		sub.Close()
		return fmt.Errorf("snapshot: %w", err)
	}

	c.mu.Lock()
	c.snap = snap
	c.mu.Unlock()

	watchCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	c.sub = sub
	c.watchCancel = cancel
	c.watchDone = done
	go c.watch(watchCtx, sub, done)

	c.notifyChange()
	c.maybeStart(ctx)
	return nil
}

// Stop tears the subscription down without touching shared state. Use Leave
// to also announce departure.
func (c *Client) Stop() {
	c.watchMu.Lock()
	defer c.watchMu.Unlock()
	c.stopLocked()
}

func (c *Client) stopLocked() {
	if c.watchCancel != nil {
		c.watchCancel()
		c.sub.Close()
		<-c.watchDone
		c.watchCancel = nil
	}
}

// Resync tears down and re-establishes the subscription, then refetches the
// full snapshot. Buffered incremental updates may have been missed while
// disconnected, so the refetch is unconditional.
func (c *Client) Resync(ctx context.Context) error {
	c.watchMu.Lock()
	defer c.watchMu.Unlock()
	c.stopLocked()
	return c.startLocked(ctx)
}

func (c *Client) watch(ctx context.Context, sub store.Subscription, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.Events():
			if !ok {
				// Dropped by the store or closed by Resync/Stop. The
				// reconnection watchdog brings us back.
				c.log.Debug("feed closed", zap.String("session", c.sessionID))
				return
			}
			c.apply(ctx, ev)
		}
	}
}

func (c *Client) apply(ctx context.Context, ev store.Event) {
	c.mu.Lock()
	switch {
	case ev.Type == store.TypeSession && ev.Session != nil:
		c.snap.Session = *ev.Session

	case ev.Type == store.TypePlayer && ev.Op == store.OpDelete:
		c.snap.Players = nil

	case ev.Type == store.TypePlayer && ev.Player != nil:
		c.snap.Players = mergePlayer(c.snap.Players, *ev.Player)

	case ev.Type == store.TypeShot && ev.Op == store.OpDelete:
		c.snap.Shots = nil

	case ev.Type == store.TypeShot && ev.Shot != nil:
		c.snap.Shots = mergeShot(c.snap.Shots, *ev.Shot)
	}
	c.mu.Unlock()

	c.notifyChange()
	c.maybeStart(ctx)
	c.maybeReclaim(ctx)
}

func mergePlayer(players []game.Player, upd game.Player) []game.Player {
	for i := range players {
		if players[i].SlotIndex == upd.SlotIndex {
			players[i] = upd
			return players
		}
	}
	players = append(players, upd)
	for i := len(players) - 1; i > 0 && players[i].SlotIndex < players[i-1].SlotIndex; i-- {
		players[i], players[i-1] = players[i-1], players[i]
	}
	return players
}

func mergeShot(shots []game.Shot, upd game.Shot) []game.Shot {
	for _, s := range shots {
		if s.ID == upd.ID {
			return shots // replayed feed event
		}
	}
	return append(shots, upd)
}

// maybeStart performs the Waiting→Playing transition once the session is
// full. Every client that observes the condition writes the same record, so
// racing writers are harmless.
func (c *Client) maybeStart(ctx context.Context) {
	c.mu.RLock()
	due := game.ShouldStart(c.snap)
	sess := c.snap.Session
	c.mu.RUnlock()
	if !due {
		return
	}
	sess.Status = game.StatusPlaying
	sess.TurnOwnerIndex = 0
	if err := c.st.UpdateSession(ctx, sess); err != nil {
		c.log.Warn("start transition failed", zap.Error(err))
	}
}

// maybeReclaim re-claims our slot with a fresh fleet after a restart wiped
// the player records. The host re-creates its own record inside Restart.
func (c *Client) maybeReclaim(ctx context.Context) {
	c.mu.RLock()
	sess := c.snap.Session
	_, present := c.snap.PlayerAt(c.slot)
	c.mu.RUnlock()

	if present || sess.Status != game.StatusWaiting || c.slot == sess.HostSlot() {
		return
	}

	// Read the current records rather than the local cache: peers racing to
	// reclaim must see each other's fresh fleets to keep the grid disjoint.
	others, err := c.st.Players(ctx, c.sessionID)
	if err != nil {
		c.log.Warn("reclaim list failed", zap.Error(err))
		return
	}
	for _, p := range others {
		if p.SlotIndex == c.slot {
			return
		}
	}
	err = c.claimSlot(ctx, c.slot, others)
	if err != nil && !errors.Is(err, store.ErrSlotTaken) {
		c.log.Warn("reclaim after restart failed", zap.Int("slot", c.slot), zap.Error(err))
	}
}

func (c *Client) notifyChange() {
	if c.onChange == nil {
		return
	}
	c.onChange(c.View())
}

func (c *Client) View() game.View {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return game.Project(c.snap)
}

func (c *Client) Snapshot() game.Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	snap := c.snap
	snap.Players = append([]game.Player(nil), c.snap.Players...)
	snap.Shots = append([]game.Shot(nil), c.snap.Shots...)
	return snap
}

func (c *Client) SessionID() string     { return c.sessionID }
func (c *Client) Code() string          { return c.code }
func (c *Client) Slot() int             { return c.slot }
func (c *Client) ParticipantID() string { return c.participantID }
func (c *Client) IsHost() bool          { return c.slot == c.capacity-1 }
