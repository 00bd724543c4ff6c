package memstore

import (
	"context"

	"github.com/mpetrov/armada/internal/game"
	"github.com/mpetrov/armada/internal/store"
)

var _ store.Store = (*Store)(nil)

// The exported methods adapt the message loop to store.Store. Replies are
// buffered so the loop never blocks on a caller that gave up.

func (s *Store) CreateSession(ctx context.Context, rec game.Session) error {
	reply := make(chan error, 1)
	return s.sendErr(ctx, createSession{rec: rec, reply: reply}, reply)
}

func (s *Store) Session(ctx context.Context, id string) (game.Session, error) {
	reply := make(chan sessionReply, 1)
	if err := s.send(ctx, getSession{id: id, reply: reply}); err != nil {
		return game.Session{}, err
	}
	select {
	case r := <-reply:
		return r.rec, r.err
	case <-ctx.Done():
		return game.Session{}, ctx.Err()
	}
}

func (s *Store) SessionByCode(ctx context.Context, code string) (game.Session, error) {
	reply := make(chan sessionReply, 1)
	if err := s.send(ctx, getSessionByCode{code: code, reply: reply}); err != nil {
		return game.Session{}, err
	}
	select {
	case r := <-reply:
		return r.rec, r.err
	case <-ctx.Done():
		return game.Session{}, ctx.Err()
	}
}

func (s *Store) UpdateSession(ctx context.Context, rec game.Session) error {
	reply := make(chan error, 1)
	return s.sendErr(ctx, updateSession{rec: rec, reply: reply}, reply)
}

func (s *Store) CreatePlayer(ctx context.Context, rec game.Player) error {
	reply := make(chan error, 1)
	return s.sendErr(ctx, createPlayer{rec: rec, reply: reply}, reply)
}

func (s *Store) UpdatePlayer(ctx context.Context, rec game.Player) error {
	reply := make(chan error, 1)
	return s.sendErr(ctx, updatePlayer{rec: rec, reply: reply}, reply)
}

func (s *Store) Players(ctx context.Context, sessionID string) ([]game.Player, error) {
	reply := make(chan []game.Player, 1)
	if err := s.send(ctx, listPlayers{sessionID: sessionID, reply: reply}); err != nil {
		return nil, err
	}
	select {
	case ps := <-reply:
		return ps, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *Store) DeletePlayers(ctx context.Context, sessionID string) error {
	reply := make(chan error, 1)
	return s.sendErr(ctx, deletePlayers{sessionID: sessionID, reply: reply}, reply)
}

func (s *Store) AppendShot(ctx context.Context, rec game.Shot) error {
	reply := make(chan error, 1)
	return s.sendErr(ctx, appendShot{rec: rec, reply: reply}, reply)
}

func (s *Store) Shots(ctx context.Context, sessionID string) ([]game.Shot, error) {
	reply := make(chan []game.Shot, 1)
	if err := s.send(ctx, listShots{sessionID: sessionID, reply: reply}); err != nil {
		return nil, err
	}
	select {
	case shots := <-reply:
		return shots, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *Store) DeleteShots(ctx context.Context, sessionID string) error {
	reply := make(chan error, 1)
	return s.sendErr(ctx, deleteShots{sessionID: sessionID, reply: reply}, reply)
}

func (s *Store) PublishPresence(ctx context.Context, rec store.Presence) error {
	reply := make(chan error, 1)
	return s.sendErr(ctx, publishPresence{rec: rec, reply: reply}, reply)
}

func (s *Store) Snapshot(ctx context.Context, sessionID string) (game.Snapshot, error) {
	reply := make(chan snapshotReply, 1)
	if err := s.send(ctx, getSnapshot{sessionID: sessionID, reply: reply}); err != nil {
		return game.Snapshot{}, err
	}
	select {
	case r := <-reply:
		return r.snap, r.err
	case <-ctx.Done():
		return game.Snapshot{}, ctx.Err()
	}
}

func (s *Store) Subscribe(ctx context.Context, sessionID string, types ...store.RecordType) (store.Subscription, error) {
	reply := make(chan *subscription, 1)
	if err := s.send(ctx, subscribe{sessionID: sessionID, types: types, reply: reply}); err != nil {
		return nil, err
	}
	select {
	case sub := <-reply:
		return sub, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *Store) send(ctx context.Context, m msg) error {
	select {
	case s.inbox <- m:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-s.ctx.Done():
		return s.ctx.Err()
	}
}

func (s *Store) sendErr(ctx context.Context, m msg, reply chan error) error {
	if err := s.send(ctx, m); err != nil {
		return err
	}
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
