// Package pgstore backs store.Store with Postgres. Records live in ordinary
// tables; the change feed rides LISTEN/NOTIFY, so every connected process
// sees every write without polling.
package pgstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/mpetrov/armada/internal/game"
	"github.com/mpetrov/armada/internal/store"
)

const uniqueViolation = "23505"

var _ store.Store = (*Store)(nil)

type Store struct {
	db  *gorm.DB
	dsn string
	log *zap.Logger
}

func Open(ctx context.Context, dsn string, log *zap.Logger) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.WithContext(ctx).AutoMigrate(&sessionRow{}, &playerRow{}, &shotRow{}); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db, dsn: dsn, log: log}, nil
}

func (s *Store) CreateSession(ctx context.Context, rec game.Session) error {
	row := toSessionRow(rec)
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return store.ErrCodeTaken
		}
		return fmt.Errorf("create session: %w", err)
	}
	s.notify(ctx, store.Event{Op: store.OpCreate, Type: store.TypeSession, SessionID: rec.ID, Session: &rec})
	return nil
}

func (s *Store) Session(ctx context.Context, id string) (game.Session, error) {
	var row sessionRow
	err := s.db.WithContext(ctx).First(&row, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return game.Session{}, store.ErrNotFound
	}
	if err != nil {
		return game.Session{}, fmt.Errorf("get session: %w", err)
	}
	return row.toSession(), nil
}

func (s *Store) SessionByCode(ctx context.Context, code string) (game.Session, error) {
	var row sessionRow
	err := s.db.WithContext(ctx).First(&row, "code = ?", code).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return game.Session{}, store.ErrNotFound
	}
	if err != nil {
		return game.Session{}, fmt.Errorf("get session by code: %w", err)
	}
	return row.toSession(), nil
}

func (s *Store) UpdateSession(ctx context.Context, rec game.Session) error {
	res := s.db.WithContext(ctx).Model(&sessionRow{}).Where("id = ?", rec.ID).
		Updates(map[string]any{
			"status":           string(rec.Status),
			"turn_owner_index": rec.TurnOwnerIndex,
		})
	if res.Error != nil {
		return fmt.Errorf("update session: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return store.ErrNotFound
	}
	s.notify(ctx, store.Event{Op: store.OpUpdate, Type: store.TypeSession, SessionID: rec.ID, Session: &rec})
	return nil
}

func (s *Store) CreatePlayer(ctx context.Context, rec game.Player) error {
	row, err := toPlayerRow(rec)
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return store.ErrSlotTaken
		}
		return fmt.Errorf("create player: %w", err)
	}
	s.notify(ctx, store.Event{Op: store.OpCreate, Type: store.TypePlayer, SessionID: rec.SessionID, Player: &rec})
	return nil
}

func (s *Store) UpdatePlayer(ctx context.Context, rec game.Player) error {
	row, err := toPlayerRow(rec)
	if err != nil {
		return err
	}
	res := s.db.WithContext(ctx).Model(&playerRow{}).
		Where("session_id = ? AND slot_index = ?", rec.SessionID, rec.SlotIndex).
		Updates(map[string]any{
			"display_name":  row.DisplayName,
			"fleet":         row.Fleet,
			"hits_taken":    row.HitsTaken,
			"is_eliminated": row.IsEliminated,
		})
	if res.Error != nil {
		return fmt.Errorf("update player: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return store.ErrNotFound
	}
	s.notify(ctx, store.Event{Op: store.OpUpdate, Type: store.TypePlayer, SessionID: rec.SessionID, Player: &rec})
	return nil
}

func (s *Store) Players(ctx context.Context, sessionID string) ([]game.Player, error) {
	var rows []playerRow
	err := s.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("slot_index asc").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list players: %w", err)
	}
	out := make([]game.Player, 0, len(rows))
	for _, r := range rows {
		p, err := r.toPlayer()
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func (s *Store) DeletePlayers(ctx context.Context, sessionID string) error {
	err := s.db.WithContext(ctx).Where("session_id = ?", sessionID).Delete(&playerRow{}).Error
	if err != nil {
		return fmt.Errorf("delete players: %w", err)
	}
	s.notify(ctx, store.Event{Op: store.OpDelete, Type: store.TypePlayer, SessionID: sessionID})
	return nil
}

func (s *Store) AppendShot(ctx context.Context, rec game.Shot) error {
	row := toShotRow(rec)
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("append shot: %w", err)
	}
	s.notify(ctx, store.Event{Op: store.OpCreate, Type: store.TypeShot, SessionID: rec.SessionID, Shot: &rec})
	return nil
}

func (s *Store) Shots(ctx context.Context, sessionID string) ([]game.Shot, error) {
	var rows []shotRow
	err := s.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at asc").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list shots: %w", err)
	}
	out := make([]game.Shot, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toShot())
	}
	return out, nil
}

func (s *Store) DeleteShots(ctx context.Context, sessionID string) error {
	err := s.db.WithContext(ctx).Where("session_id = ?", sessionID).Delete(&shotRow{}).Error
	if err != nil {
		return fmt.Errorf("delete shots: %w", err)
	}
	s.notify(ctx, store.Event{Op: store.OpDelete, Type: store.TypeShot, SessionID: sessionID})
	return nil
}

func (s *Store) PublishPresence(ctx context.Context, rec store.Presence) error {
	// Ephemeral: a NOTIFY with no table behind it.
	s.notify(ctx, store.Event{Op: store.OpCreate, Type: store.TypePresence, SessionID: rec.SessionID, Presence: &rec})
	return nil
}

func (s *Store) Snapshot(ctx context.Context, sessionID string) (game.Snapshot, error) {
	sess, err := s.Session(ctx, sessionID)
	if err != nil {
		return game.Snapshot{}, err
	}
	players, err := s.Players(ctx, sessionID)
	if err != nil {
		return game.Snapshot{}, err
	}
	shots, err := s.Shots(ctx, sessionID)
	if err != nil {
		return game.Snapshot{}, err
	}
	return game.Snapshot{Session: sess, Players: players, Shots: shots}, nil
}

func (s *Store) notify(ctx context.Context, ev store.Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		s.log.Error("encode notify payload", zap.Error(err))
		return
	}
	err = s.db.WithContext(ctx).Exec("SELECT pg_notify(?, ?)", channelFor(ev.SessionID), string(payload)).Error
	if err != nil {
		// The write itself landed; a lost notification is recovered by the
		// next snapshot refetch.
		s.log.Warn("pg_notify failed", zap.String("session", ev.SessionID), zap.Error(err))
	}
}

func channelFor(sessionID string) string {
	return "armada_" + sessionID
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
