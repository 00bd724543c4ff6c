// Package store defines the shared-state contract every peer coordinates
// through: CRUD over Session, Player and Shot records plus a change feed
// filtered by record type and session. No multi-record transactions are
// assumed; callers decompose every game event into an ordered sequence of
// idempotent single-record writes.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/mpetrov/armada/internal/game"
)

var ErrNotFound = errors.New("record not found")
var ErrCodeTaken = errors.New("session code already in use")
var ErrSlotTaken = errors.New("slot already claimed")

type RecordType string

const (
	TypeSession  RecordType = "session"
	TypePlayer   RecordType = "player"
	TypeShot     RecordType = "shot"
	TypePresence RecordType = "presence"
)

type Op string

const (
	OpCreate Op = "create"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// Event is one change-feed entry. Exactly one of the record pointers is set
// for creates and updates; deletes of players and shots clear the whole
// session's records and carry no payload.
type Event struct {
	Op        Op            `json:"op"`
	Type      RecordType    `json:"type"`
	SessionID string        `json:"session_id"`
	Session   *game.Session `json:"session,omitempty"`
	Player    *game.Player  `json:"player,omitempty"`
	Shot      *game.Shot    `json:"shot,omitempty"`
	Presence  *Presence     `json:"presence,omitempty"`
}

// Presence is the ephemeral liveness announcement. It is broadcast on the
// change feed but never part of the authoritative snapshot; the absence of a
// fresh one past the timeout is the sole disconnect signal.
type Presence struct {
	SessionID     string    `json:"session_id"`
	SlotIndex     int       `json:"slot_index"`
	ParticipantID string    `json:"participant_id"`
	LastSeenAt    time.Time `json:"last_seen_at"`
	Left          bool      `json:"left"` // explicit leave, no timeout needed
}

type Subscription interface {
	// Events is closed when the subscription ends, whether by Close or by
	// the store dropping a subscriber that stopped draining.
	Events() <-chan Event
	Close()
}

type Store interface {
	CreateSession(ctx context.Context, s game.Session) error
	Session(ctx context.Context, id string) (game.Session, error)
	SessionByCode(ctx context.Context, code string) (game.Session, error)
	UpdateSession(ctx context.Context, s game.Session) error

	// CreatePlayer claims a slot; ErrSlotTaken when a racing peer won it.
	CreatePlayer(ctx context.Context, p game.Player) error
	UpdatePlayer(ctx context.Context, p game.Player) error
	Players(ctx context.Context, sessionID string) ([]game.Player, error)
	DeletePlayers(ctx context.Context, sessionID string) error

	AppendShot(ctx context.Context, s game.Shot) error
	Shots(ctx context.Context, sessionID string) ([]game.Shot, error)
	DeleteShots(ctx context.Context, sessionID string) error

	PublishPresence(ctx context.Context, p Presence) error

	// Snapshot reads every record of a session in one pass, players sorted
	// by slot.
	Snapshot(ctx context.Context, sessionID string) (game.Snapshot, error)

	// Subscribe delivers change events for the session. With no types, all
	// record types are delivered.
	Subscribe(ctx context.Context, sessionID string, types ...RecordType) (Subscription, error)
}
