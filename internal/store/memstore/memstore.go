// Package memstore is an in-process store.Store. A single goroutine owns all
// records and all subscriber channels, so no locks are needed; every method
// posts a message to that goroutine and waits for its reply.
package memstore

import (
	"context"
	"sort"

	"github.com/mpetrov/armada/internal/game"
	"github.com/mpetrov/armada/internal/store"
)

type msg interface{ isMsg() }

type createSession struct {
	rec   game.Session
	reply chan error
}

type getSession struct {
	id    string
	reply chan sessionReply
}

type getSessionByCode struct {
	code  string
	reply chan sessionReply
}

type sessionReply struct {
	rec game.Session
	err error
}

type updateSession struct {
	rec   game.Session
	reply chan error
}

type createPlayer struct {
	rec   game.Player
	reply chan error
}

type updatePlayer struct {
	rec   game.Player
	reply chan error
}

type listPlayers struct {
	sessionID string
	reply     chan []game.Player
}

type deletePlayers struct {
	sessionID string
	reply     chan error
}

type appendShot struct {
	rec   game.Shot
	reply chan error
}

type listShots struct {
	sessionID string
	reply     chan []game.Shot
}

type deleteShots struct {
	sessionID string
	reply     chan error
}

type publishPresence struct {
	rec   store.Presence
	reply chan error
}

type getSnapshot struct {
	sessionID string
	reply     chan snapshotReply
}

type snapshotReply struct {
	snap game.Snapshot
	err  error
}

type subscribe struct {
	sessionID string
	types     []store.RecordType
	reply     chan *subscription
}

type unsubscribe struct {
	sessionID string
	id        int
}

func (createSession) isMsg()    {}
func (getSession) isMsg()       {}
func (getSessionByCode) isMsg() {}
func (updateSession) isMsg()    {}
func (createPlayer) isMsg()     {}
func (updatePlayer) isMsg()     {}
func (listPlayers) isMsg()      {}
func (deletePlayers) isMsg()    {}
func (appendShot) isMsg()       {}
func (listShots) isMsg()        {}
func (deleteShots) isMsg()      {}
func (publishPresence) isMsg()  {}
func (getSnapshot) isMsg()      {}
func (subscribe) isMsg()        {}
func (unsubscribe) isMsg()      {}

type subscription struct {
	id        int
	sessionID string
	types     map[store.RecordType]bool
	ch        chan store.Event
	st        *Store
}

func (s *subscription) Events() <-chan store.Event { return s.ch }

func (s *subscription) Close() {
	select {
	case s.st.inbox <- unsubscribe{sessionID: s.sessionID, id: s.id}:
	case <-s.st.ctx.Done():
		// Store already shut down; the channel was closed there.
	}
}

func (s *subscription) wants(t store.RecordType) bool {
	return len(s.types) == 0 || s.types[t]
}

type Store struct {
	inbox  chan msg
	ctx    context.Context
	cancel context.CancelFunc

	// Owned by the loop goroutine only.
	sessions map[string]game.Session
	byCode   map[string]string
	players  map[string]map[int]game.Player // sessionID -> slot
	shots    map[string][]game.Shot
	subs     map[string]map[int]*subscription
	nextSub  int
}

func New(parent context.Context) *Store {
	ctx, cancel := context.WithCancel(parent)
	s := &Store{
		inbox:    make(chan msg, 64),
		ctx:      ctx,
		cancel:   cancel,
		sessions: make(map[string]game.Session),
		byCode:   make(map[string]string),
		players:  make(map[string]map[int]game.Player),
		shots:    make(map[string][]game.Shot),
		subs:     make(map[string]map[int]*subscription),
	}
	go s.loop()
	return s
}

func (s *Store) Close() { s.cancel() }

func (s *Store) loop() {
	for {
		select {
		case <-s.ctx.Done():
			s.shutdown()
			return

		case m := <-s.inbox:
			switch msg := m.(type) {
			case createSession:
				if _, taken := s.byCode[msg.rec.Code]; taken {
					msg.reply <- store.ErrCodeTaken
					break
				}
				s.sessions[msg.rec.ID] = msg.rec
				s.byCode[msg.rec.Code] = msg.rec.ID
				rec := msg.rec
				s.broadcast(store.Event{Op: store.OpCreate, Type: store.TypeSession, SessionID: rec.ID, Session: &rec})
				msg.reply <- nil

			case getSession:
				rec, ok := s.sessions[msg.id]
				if !ok {
					msg.reply <- sessionReply{err: store.ErrNotFound}
					break
				}
				msg.reply <- sessionReply{rec: rec}

			case getSessionByCode:
				id, ok := s.byCode[msg.code]
				if !ok {
					msg.reply <- sessionReply{err: store.ErrNotFound}
					break
				}
				msg.reply <- sessionReply{rec: s.sessions[id]}

			case updateSession:
				if _, ok := s.sessions[msg.rec.ID]; !ok {
					msg.reply <- store.ErrNotFound
					break
				}
				s.sessions[msg.rec.ID] = msg.rec
				rec := msg.rec
				s.broadcast(store.Event{Op: store.OpUpdate, Type: store.TypeSession, SessionID: rec.ID, Session: &rec})
				msg.reply <- nil

			case createPlayer:
				slots := s.players[msg.rec.SessionID]
				if slots == nil {
					slots = make(map[int]game.Player)
					s.players[msg.rec.SessionID] = slots
				}
				if _, taken := slots[msg.rec.SlotIndex]; taken {
					msg.reply <- store.ErrSlotTaken
					break
				}
				slots[msg.rec.SlotIndex] = msg.rec
				rec := msg.rec
				s.broadcast(store.Event{Op: store.OpCreate, Type: store.TypePlayer, SessionID: rec.SessionID, Player: &rec})
				msg.reply <- nil

			case updatePlayer:
				slots := s.players[msg.rec.SessionID]
				if _, ok := slots[msg.rec.SlotIndex]; !ok {
					msg.reply <- store.ErrNotFound
					break
				}
				slots[msg.rec.SlotIndex] = msg.rec
				rec := msg.rec
				s.broadcast(store.Event{Op: store.OpUpdate, Type: store.TypePlayer, SessionID: rec.SessionID, Player: &rec})
				msg.reply <- nil

			case listPlayers:
				msg.reply <- s.sortedPlayers(msg.sessionID)

			case deletePlayers:
				delete(s.players, msg.sessionID)
				s.broadcast(store.Event{Op: store.OpDelete, Type: store.TypePlayer, SessionID: msg.sessionID})
				msg.reply <- nil

			case appendShot:
				s.shots[msg.rec.SessionID] = append(s.shots[msg.rec.SessionID], msg.rec)
				rec := msg.rec
				s.broadcast(store.Event{Op: store.OpCreate, Type: store.TypeShot, SessionID: rec.SessionID, Shot: &rec})
				msg.reply <- nil

			case listShots:
				msg.reply <- append([]game.Shot(nil), s.shots[msg.sessionID]...)

			case deleteShots:
				delete(s.shots, msg.sessionID)
				s.broadcast(store.Event{Op: store.OpDelete, Type: store.TypeShot, SessionID: msg.sessionID})
				msg.reply <- nil

			case publishPresence:
				// Ephemeral: broadcast only, never stored.
				rec := msg.rec
				s.broadcast(store.Event{Op: store.OpCreate, Type: store.TypePresence, SessionID: rec.SessionID, Presence: &rec})
				msg.reply <- nil

			case getSnapshot:
				sess, ok := s.sessions[msg.sessionID]
				if !ok {
					msg.reply <- snapshotReply{err: store.ErrNotFound}
					break
				}
				msg.reply <- snapshotReply{snap: game.Snapshot{
					Session: sess,
					Players: s.sortedPlayers(msg.sessionID),
					Shots:   append([]game.Shot(nil), s.shots[msg.sessionID]...),
				}}

			case subscribe:
				s.nextSub++
				sub := &subscription{
					id:        s.nextSub,
					sessionID: msg.sessionID,
					types:     make(map[store.RecordType]bool, len(msg.types)),
					ch:        make(chan store.Event, 16),
					st:        s,
				}
				for _, t := range msg.types {
					sub.types[t] = true
				}
				if s.subs[msg.sessionID] == nil {
					s.subs[msg.sessionID] = make(map[int]*subscription)
				}
				s.subs[msg.sessionID][sub.id] = sub
				msg.reply <- sub

			case unsubscribe:
				if sub, ok := s.subs[msg.sessionID][msg.id]; ok {
					close(sub.ch)
					delete(s.subs[msg.sessionID], msg.id)
				}
			}
		}
	}
}

func (s *Store) shutdown() {
	for _, subs := range s.subs {
		for id, sub := range subs {
			close(sub.ch)
			delete(subs, id)
		}
	}
}

func (s *Store) broadcast(ev store.Event) {
	for id, sub := range s.subs[ev.SessionID] {
		if !sub.wants(ev.Type) {
			continue
		}
		select {
		case sub.ch <- ev:
			// ok
		default:
			// Subscriber stopped draining - drop it. Reconnection refetches
			// the snapshot, so a dropped feed loses nothing permanently.
			close(sub.ch)
			delete(s.subs[ev.SessionID], id)
		}
	}
}

func (s *Store) sortedPlayers(sessionID string) []game.Player {
	slots := s.players[sessionID]
	out := make([]game.Player, 0, len(slots))
	for _, p := range slots {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SlotIndex < out[j].SlotIndex })
	return out
}
