// Package presence keeps the session honest about who is still there. Every
// participant publishes periodic liveness announcements; the referee infers
// disconnection from missed ones and forces elimination.
package presence

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mpetrov/armada/internal/store"
)

const (
	// Policy defaults, not protocol requirements; tune per deployment.
	DefaultInterval = 10 * time.Second
	DefaultTimeout  = 30 * time.Second
)

// Heartbeat publishes this participant's liveness on a fixed interval. It is
// fire-and-forget: a failed publish is dropped, the next tick re-announces.
type Heartbeat struct {
	st            store.Store
	log           *zap.Logger
	sessionID     string
	slot          int
	participantID string
	interval      time.Duration

	mu     sync.Mutex
	paused bool
}

func NewHeartbeat(st store.Store, log *zap.Logger, sessionID string, slot int, participantID string, interval time.Duration) *Heartbeat {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Heartbeat{
		st:            st,
		log:           log,
		sessionID:     sessionID,
		slot:          slot,
		participantID: participantID,
		interval:      interval,
	}
}

// Run publishes immediately, then on every tick until ctx ends.
func (h *Heartbeat) Run(ctx context.Context) {
	h.PublishNow(ctx)
	t := time.NewTicker(h.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			h.PublishNow(ctx)
		}
	}
}

// PublishNow announces liveness out of band, e.g. when the application
// regains foreground visibility. No-op while paused.
func (h *Heartbeat) PublishNow(ctx context.Context) {
	h.mu.Lock()
	paused := h.paused
	h.mu.Unlock()
	if paused {
		return
	}
	err := h.st.PublishPresence(ctx, store.Presence{
		SessionID:     h.sessionID,
		SlotIndex:     h.slot,
		ParticipantID: h.participantID,
		LastSeenAt:    time.Now(),
	})
	if err != nil && ctx.Err() == nil {
		h.log.Debug("heartbeat publish failed", zap.Int("slot", h.slot), zap.Error(err))
	}
}

// Pause suspends publication while the device knows it is offline.
func (h *Heartbeat) Pause() {
	h.mu.Lock()
	h.paused = true
	h.mu.Unlock()
}

// Resume restarts publication and announces immediately, so the referee sees
// us fresh before the next tick.
func (h *Heartbeat) Resume(ctx context.Context) {
	h.mu.Lock()
	h.paused = false
	h.mu.Unlock()
	h.PublishNow(ctx)
}
