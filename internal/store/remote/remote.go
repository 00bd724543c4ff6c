// Package remote implements store.Store against a gateway, so devices on
// different machines coordinate through one shared store: plain HTTP for the
// CRUD surface, a WebSocket for the change feed.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/mpetrov/armada/internal/game"
	"github.com/mpetrov/armada/internal/store"
	"github.com/mpetrov/armada/pkg/types"
)

var _ store.Store = (*Store)(nil)

type Store struct {
	base string
	hc   *http.Client
	log  *zap.Logger
}

func New(baseURL string, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{
		base: strings.TrimRight(baseURL, "/"),
		hc:   &http.Client{},
		log:  log,
	}
}

// do runs one request. conflict is the sentinel returned on 409: the gateway
// collapses both uniqueness races onto that status, and which one applies is
// determined by the route.
func (s *Store) do(ctx context.Context, method, path string, in, out any, conflict error) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.base+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.hc.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return store.ErrNotFound
	case resp.StatusCode == http.StatusConflict:
		if conflict != nil {
			return conflict
		}
		fallthrough
	case resp.StatusCode >= 300:
		var eb types.ErrorBody
		_ = json.NewDecoder(resp.Body).Decode(&eb)
		return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, eb.Error)
	}

	if out != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

func (s *Store) CreateSession(ctx context.Context, rec game.Session) error {
	return s.do(ctx, http.MethodPost, "/sessions", rec, nil, store.ErrCodeTaken)
}

func (s *Store) Session(ctx context.Context, id string) (game.Session, error) {
	var out game.Session
	err := s.do(ctx, http.MethodGet, "/sessions/"+url.PathEscape(id), nil, &out, nil)
	return out, err
}

func (s *Store) SessionByCode(ctx context.Context, code string) (game.Session, error) {
	var out game.Session
	err := s.do(ctx, http.MethodGet, "/sessions/code/"+url.PathEscape(code), nil, &out, nil)
	return out, err
}

func (s *Store) UpdateSession(ctx context.Context, rec game.Session) error {
	return s.do(ctx, http.MethodPut, "/sessions/"+url.PathEscape(rec.ID), rec, nil, nil)
}

func (s *Store) CreatePlayer(ctx context.Context, rec game.Player) error {
	return s.do(ctx, http.MethodPost, s.sessionPath(rec.SessionID, "players"), rec, nil, store.ErrSlotTaken)
}

func (s *Store) UpdatePlayer(ctx context.Context, rec game.Player) error {
	return s.do(ctx, http.MethodPut, s.sessionPath(rec.SessionID, "players"), rec, nil, nil)
}

func (s *Store) Players(ctx context.Context, sessionID string) ([]game.Player, error) {
	var out []game.Player
	err := s.do(ctx, http.MethodGet, s.sessionPath(sessionID, "players"), nil, &out, nil)
	return out, err
}

func (s *Store) DeletePlayers(ctx context.Context, sessionID string) error {
	return s.do(ctx, http.MethodDelete, s.sessionPath(sessionID, "players"), nil, nil, nil)
}

func (s *Store) AppendShot(ctx context.Context, rec game.Shot) error {
	return s.do(ctx, http.MethodPost, s.sessionPath(rec.SessionID, "shots"), rec, nil, nil)
}

func (s *Store) Shots(ctx context.Context, sessionID string) ([]game.Shot, error) {
	var out []game.Shot
	err := s.do(ctx, http.MethodGet, s.sessionPath(sessionID, "shots"), nil, &out, nil)
	return out, err
}

func (s *Store) DeleteShots(ctx context.Context, sessionID string) error {
	return s.do(ctx, http.MethodDelete, s.sessionPath(sessionID, "shots"), nil, nil, nil)
}

func (s *Store) PublishPresence(ctx context.Context, rec store.Presence) error {
	return s.do(ctx, http.MethodPost, s.sessionPath(rec.SessionID, "presence"), rec, nil, nil)
}

func (s *Store) Snapshot(ctx context.Context, sessionID string) (game.Snapshot, error) {
	var out game.Snapshot
	err := s.do(ctx, http.MethodGet, s.sessionPath(sessionID, "snapshot"), nil, &out, nil)
	if err != nil {
		return game.Snapshot{}, err
	}
	return out, nil
}

func (s *Store) sessionPath(sessionID, tail string) string {
	return "/sessions/" + url.PathEscape(sessionID) + "/" + tail
}
