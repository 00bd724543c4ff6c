package pgstore

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/mpetrov/armada/internal/game"
)

type sessionRow struct {
	ID             string `gorm:"primaryKey;size:36"`
	Code           string `gorm:"size:8;not null;uniqueIndex"`
	PlayerCapacity int    `gorm:"not null"`
	Status         string `gorm:"size:16;not null;index"`
	TurnOwnerIndex int    `gorm:"not null"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (sessionRow) TableName() string { return "sessions" }

type playerRow struct {
	ID           string `gorm:"primaryKey;size:36"`
	SessionID    string `gorm:"size:36;not null;index:idx_session_slot,unique"`
	SlotIndex    int    `gorm:"not null;index:idx_session_slot,unique"`
	DisplayName  string `gorm:"size:64"`
	Fleet        string `gorm:"type:json;not null"` // JSON array of ships
	HitsTaken    string `gorm:"type:json;not null"` // JSON array of coordinates
	IsEliminated bool   `gorm:"not null"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (playerRow) TableName() string { return "players" }

type shotRow struct {
	ID           string `gorm:"primaryKey;size:36"`
	SessionID    string `gorm:"size:36;not null;index"`
	ShooterIndex int    `gorm:"not null"`
	TargetIndex  int    `gorm:"not null"`
	X            int    `gorm:"not null"`
	Y            int    `gorm:"not null"`
	IsHit        bool   `gorm:"not null"`
	CreatedAt    time.Time
}

func (shotRow) TableName() string { return "shots" }

func toSessionRow(s game.Session) sessionRow {
	return sessionRow{
		ID:             s.ID,
		Code:           s.Code,
		PlayerCapacity: s.PlayerCapacity,
		Status:         string(s.Status),
		TurnOwnerIndex: s.TurnOwnerIndex,
	}
}

func (r sessionRow) toSession() game.Session {
	return game.Session{
		ID:             r.ID,
		Code:           r.Code,
		PlayerCapacity: r.PlayerCapacity,
		Status:         game.Status(r.Status),
		TurnOwnerIndex: r.TurnOwnerIndex,
	}
}

func toPlayerRow(p game.Player) (playerRow, error) {
	fleet, err := json.Marshal(p.Fleet)
	if err != nil {
		return playerRow{}, fmt.Errorf("encode fleet: %w", err)
	}
	hits := []byte("[]")
	if p.HitsTaken != nil {
		if hits, err = json.Marshal(p.HitsTaken); err != nil {
			return playerRow{}, fmt.Errorf("encode hits: %w", err)
		}
	}
	return playerRow{
		ID:           p.ID,
		SessionID:    p.SessionID,
		SlotIndex:    p.SlotIndex,
		DisplayName:  p.DisplayName,
		Fleet:        string(fleet),
		HitsTaken:    string(hits),
		IsEliminated: p.IsEliminated,
	}, nil
}

func (r playerRow) toPlayer() (game.Player, error) {
	p := game.Player{
		ID:           r.ID,
		SessionID:    r.SessionID,
		SlotIndex:    r.SlotIndex,
		DisplayName:  r.DisplayName,
		IsEliminated: r.IsEliminated,
	}
	if err := json.Unmarshal([]byte(r.Fleet), &p.Fleet); err != nil {
		return game.Player{}, fmt.Errorf("decode fleet: %w", err)
	}
	if err := json.Unmarshal([]byte(r.HitsTaken), &p.HitsTaken); err != nil {
		return game.Player{}, fmt.Errorf("decode hits: %w", err)
	}
	return p, nil
}

func toShotRow(s game.Shot) shotRow {
	return shotRow{
		ID:           s.ID,
		SessionID:    s.SessionID,
		ShooterIndex: s.ShooterIndex,
		TargetIndex:  s.TargetIndex,
		X:            s.X,
		Y:            s.Y,
		IsHit:        s.IsHit,
	}
}

func (r shotRow) toShot() game.Shot {
	return game.Shot{
		ID:           r.ID,
		SessionID:    r.SessionID,
		ShooterIndex: r.ShooterIndex,
		TargetIndex:  r.TargetIndex,
		X:            r.X,
		Y:            r.Y,
		IsHit:        r.IsHit,
	}
}
