package pgstore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/mpetrov/armada/internal/store"
)

type subscription struct {
	ch     chan store.Event
	cancel context.CancelFunc
}

func (s *subscription) Events() <-chan store.Event { return s.ch }
func (s *subscription) Close()                     { s.cancel() }

// Subscribe opens a dedicated connection, LISTENs on the session's channel
// and forwards decoded notifications. The feed closes on any connection
// error; the reconnection subsystem re-subscribes and refetches.
func (s *Store) Subscribe(ctx context.Context, sessionID string, types ...store.RecordType) (store.Subscription, error) {
	conn, err := pgx.Connect(ctx, s.dsn)
	if err != nil {
		return nil, fmt.Errorf("feed connect: %w", err)
	}

	channel := pgx.Identifier{channelFor(sessionID)}.Sanitize()
	if _, err := conn.Exec(ctx, "LISTEN "+channel); err != nil {
		_ = conn.Close(ctx)
		return nil, fmt.Errorf("listen %s: %w", channel, err)
	}

	feedCtx, cancel := context.WithCancel(ctx)
	sub := &subscription{ch: make(chan store.Event, 16), cancel: cancel}

	wanted := make(map[store.RecordType]bool, len(types))
	for _, t := range types {
		wanted[t] = true
	}

	go func() {
		defer close(sub.ch)
		defer func() {
			// The parent ctx may already be gone; close with a fresh one.
			_ = conn.Close(context.Background())
		}()
		for {
			n, err := conn.WaitForNotification(feedCtx)
			if err != nil {
				if feedCtx.Err() == nil {
					s.log.Warn("feed interrupted", zap.String("session", sessionID), zap.Error(err))
				}
				return
			}
			var ev store.Event
			if err := json.Unmarshal([]byte(n.Payload), &ev); err != nil {
				s.log.Warn("bad feed payload", zap.String("session", sessionID), zap.Error(err))
				continue
			}
			if len(wanted) > 0 && !wanted[ev.Type] {
				continue
			}
			select {
			case sub.ch <- ev:
			case <-feedCtx.Done():
				return
			}
		}
	}()

	return sub, nil
}
