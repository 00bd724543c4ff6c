package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/mpetrov/armada/internal/store"
)

type subscription struct {
	ch     chan store.Event
	cancel context.CancelFunc
}

func (s *subscription) Events() <-chan store.Event { return s.ch }
func (s *subscription) Close()                     { s.cancel() }

func (s *Store) Subscribe(ctx context.Context, sessionID string, recordTypes ...store.RecordType) (store.Subscription, error) {
	q := url.Values{}
	q.Set("session", sessionID)
	if len(recordTypes) > 0 {
		parts := make([]string, len(recordTypes))
		for i, t := range recordTypes {
			parts[i] = string(t)
		}
		q.Set("types", strings.Join(parts, ","))
	}

	// websocket.Dial accepts http(s) URLs and upgrades in place.
	conn, _, err := websocket.Dial(ctx, s.base+"/ws?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("dial feed: %w", err)
	}

	feedCtx, cancel := context.WithCancel(ctx)
	sub := &subscription{ch: make(chan store.Event, 16), cancel: cancel}

	go func() {
		defer close(sub.ch)
		defer conn.Close(websocket.StatusNormalClosure, "bye")
		for {
			_, data, err := conn.Read(feedCtx)
			if err != nil {
				if feedCtx.Err() == nil {
					s.log.Debug("remote feed ended", zap.String("session", sessionID), zap.Error(err))
				}
				return
			}
			var ev store.Event
			if err := json.Unmarshal(data, &ev); err != nil {
				s.log.Warn("bad feed frame", zap.Error(err))
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
