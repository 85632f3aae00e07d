package model

import (
	"time"

	"gorm.io/datatypes"
)

// Game status values.
const (
	GameStatusActive    = "active"
	GameStatusFinished  = "finished"
	GameStatusAbandoned = "abandoned"
)

// Event types as persisted in game_events.
const (
	EventLineClosed = "line_closed"
	EventCardClosed = "card_closed"
)

// 1. Games

type Game struct {
	ID         int64   `gorm:"primaryKey;autoIncrement"`
	SessionID  *string `gorm:"size:36;uniqueIndex:idx_session_game"`
	GameNumber int     `gorm:"default:1;uniqueIndex:idx_session_game"`
	Status     string  `gorm:"size:16;default:active;not null;index"` // active/finished/abandoned
	CardPrice  int64   `gorm:"not null"`
	LineBonus  int64   `gorm:"not null"`
	StartedAt  time.Time
	FinishedAt *time.Time `gorm:"index"`

	Players []GamePlayer `gorm:"foreignKey:GameID"`
	Events  []GameEvent  `gorm:"foreignKey:GameID"`
}

type GamePlayer struct {
	ID         int64  `gorm:"primaryKey;autoIncrement"`
	GameID     int64  `gorm:"not null;uniqueIndex:idx_game_seat"`
	Seat       int    `gorm:"not null;uniqueIndex:idx_game_seat"`
	PlayerName string `gorm:"size:128;not null"`
}

type GameEvent struct {
	ID          int64          `gorm:"primaryKey;autoIncrement"`
	GameID      int64          `gorm:"not null;uniqueIndex:idx_game_sequence"`
	Sequence    int64          `gorm:"not null;uniqueIndex:idx_game_sequence"`
	EventType   string         `gorm:"size:16;not null"` // line_closed/card_closed
	PlayersJSON datatypes.JSON `gorm:"not null"`
	OccurredAt  time.Time
}

type GameResult struct {
	ID         int64  `gorm:"primaryKey;autoIncrement"`
	GameID     int64  `gorm:"not null;uniqueIndex:idx_game_player"`
	PlayerName string `gorm:"size:128;not null;uniqueIndex:idx_game_player;index"`
	Net        int64  `gorm:"not null"`
	LineClosed bool
	CardClosed bool
	CreatedAt  time.Time
}

// 2. Sessions

type GameSession struct {
	ID          string         `gorm:"primaryKey;size:36"`
	PlayersJSON datatypes.JSON `gorm:"not null"`
	CardPrice   int64          `gorm:"not null"`
	LineBonus   int64          `gorm:"not null"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// All lists every model for AutoMigrate.
func All() []interface{} {
	return []interface{}{
		&GameSession{},
		&Game{},
		&GamePlayer{},
		&GameEvent{},
		&GameResult{},
	}
}
