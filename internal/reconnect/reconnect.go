// Package reconnect re-establishes a client's feed after connectivity loss.
// It is purely event driven: app foreground, window focus and network
// transitions are the only triggers, there is no retry schedule.
package reconnect

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

const DefaultStaleAfter = 30 * time.Second

type EventKind string

const (
	Foreground EventKind = "foreground"
	Focus      EventKind = "focus"
	Online     EventKind = "online"
	Offline    EventKind = "offline"
)

// Resyncer tears down and re-establishes the subscription, then refetches
// the full state. client.Client satisfies this.
type Resyncer interface {
	Resync(ctx context.Context) error
}

// Heartbeat is suspended while offline and resumed fresh on reconnect.
// presence.Heartbeat satisfies this.
type Heartbeat interface {
	Pause()
	Resume(ctx context.Context)
}

type Watchdog struct {
	resync     Resyncer
	hb         Heartbeat // may be nil
	staleAfter time.Duration
	log        *zap.Logger

	events chan EventKind

	mu           sync.Mutex
	connected    bool
	lastActivity time.Time
}

func NewWatchdog(resync Resyncer, hb Heartbeat, staleAfter time.Duration, log *zap.Logger) *Watchdog {
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Watchdog{
		resync:       resync,
		hb:           hb,
		staleAfter:   staleAfter,
		log:          log,
		events:       make(chan EventKind, 8),
		connected:    true,
		lastActivity: time.Now(),
	}
}

// Notify feeds a connectivity event in. Non-blocking: if the buffer is full
// the event is dropped, which is fine because any later event re-triggers
// the same evaluation.
func (w *Watchdog) Notify(kind EventKind) {
	select {
	case w.events <- kind:
	default:
	}
}

// Touch records feed activity. Wire it to the client's OnChange so a healthy
// feed keeps the watchdog from resubscribing on every foreground flap.
func (w *Watchdog) Touch() {
	w.mu.Lock()
	w.lastActivity = time.Now()
	w.mu.Unlock()
}

func (w *Watchdog) Connected() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.connected
}

func (w *Watchdog) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case kind := <-w.events:
			if kind == Offline {
				w.setConnected(false)
				if w.hb != nil {
					w.hb.Pause()
				}
				continue
			}
			w.wake(ctx, kind)
		}
	}
}

// wake handles foreground/focus/online. Only a stale or disconnected client
// pays for a resubscribe; buffered incremental updates are never trusted
// across a gap, so resync always refetches the snapshot.
func (w *Watchdog) wake(ctx context.Context, kind EventKind) {
	w.mu.Lock()
	idle := time.Since(w.lastActivity)
	connected := w.connected
	w.mu.Unlock()

	if connected && idle <= w.staleAfter {
		// The feed is healthy, so no resubscribe; still announce liveness
		// right away rather than waiting out the next heartbeat tick.
		if w.hb != nil {
			w.hb.Resume(ctx)
		}
		return
	}

	if err := w.resync.Resync(ctx); err != nil {
		// No backoff: stay disconnected until the next trigger.
		w.setConnected(false)
		w.log.Warn("resync failed", zap.String("trigger", string(kind)), zap.Error(err))
		return
	}
	w.setConnected(true)
	w.Touch()
	if w.hb != nil {
		w.hb.Resume(ctx)
	}
	w.log.Info("resynchronized", zap.String("trigger", string(kind)), zap.Duration("idle", idle))
}

func (w *Watchdog) setConnected(v bool) {
	w.mu.Lock()
	w.connected = v
	w.mu.Unlock()
}
