// Package ws streams a store's change feed to remote subscribers.
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/mpetrov/armada/internal/store"
)

const writeTimeout = 3 * time.Second

// Feed handles GET /ws?session={id}&types=a,b. Every store event matching
// the filter goes out as one JSON frame. The socket closes when the
// subscription ends; the client resubscribes and refetches.
func Feed(st store.Store, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID := r.URL.Query().Get("session")
		if sessionID == "" {
			http.Error(w, "missing session", http.StatusBadRequest)
			return
		}
		types := parseTypes(r.URL.Query().Get("types"))

		sub, err := st.Subscribe(r.Context(), sessionID, types...)
		if err != nil {
			http.Error(w, "subscribe failed", http.StatusInternalServerError)
			return
		}
		defer sub.Close()

		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		// Writer: pump feed events until the subscription or socket dies.
		writeDone := make(chan struct{})
		go func() {
			defer close(writeDone)
			for ev := range sub.Events() {
				payload, err := json.Marshal(ev)
				if err != nil {
					log.Warn("encode feed event", zap.Error(err))
					continue
				}
				ctx, cancel := context.WithTimeout(r.Context(), writeTimeout)
				err = conn.Write(ctx, websocket.MessageText, payload)
				cancel()
				if err != nil {
					return
				}
			}
		}()

		// Reader: the peer sends nothing meaningful; reads only notice the
		// close so cleanup runs. Returning cancels r.Context and unblocks
		// whichever side is still up.
		readDone := make(chan struct{})
		go func() {
			defer close(readDone)
			for {
				if _, _, err := conn.Read(r.Context()); err != nil {
					return
				}
			}
		}()

		select {
		case <-writeDone:
		case <-readDone:
		}
	}
}

func parseTypes(raw string) []store.RecordType {
	if raw == "" {
		return nil
	}
	var out []store.RecordType
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, store.RecordType(part))
		}
	}
	return out
}
