package game

import (
	"context"
	"time"

	"lotto-service/internal/lotto"
	"lotto-service/internal/model"

	"gorm.io/gorm"
)

type GameSummary struct {
	ID         int64            `json:"game_id"`
	SessionID  *string          `json:"session_id,omitempty"`
	GameNumber int              `json:"game_number"`
	Status     string           `json:"status"`
	Players    []lotto.PlayerID `json:"players"`
	Settings   lotto.Settings   `json:"settings"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt *time.Time       `json:"finished_at,omitempty"`
}

type ListResult struct {
	Items []GameSummary `json:"items"`
	Total int64         `json:"total"`
}

// ListGames pages through games newest first, optionally by status.
func (s *Service) ListGames(ctx context.Context, page, size int, status string) (*ListResult, error) {
	if page < 1 {
		page = 1
	}
	if size <= 0 {
		size = 20
	}
	if size > 100 {
		size = 100
	}

	base := func() *gorm.DB {
		q := s.db.WithContext(ctx).Model(&model.Game{})
		if status != "" {
			q = q.Where("status = ?", status)
		}
		return q
	}

	var total int64
	if err := base().Count(&total).Error; err != nil {
		return nil, err
	}

	items := make([]GameSummary, 0)
	if total == 0 {
		return &ListResult{Items: items, Total: 0}, nil
	}

	var games []model.Game
	offset := (page - 1) * size
	if err := base().
		Preload("Players", func(db *gorm.DB) *gorm.DB { return db.Order("seat ASC") }).
		Order("id DESC").
		Limit(size).
		Offset(offset).
		Find(&games).Error; err != nil {
		return nil, err
	}

	for _, g := range games {
		players := make([]lotto.PlayerID, len(g.Players))
		for i, p := range g.Players {
			players[i] = lotto.PlayerID(p.PlayerName)
		}
		items = append(items, GameSummary{
			ID:         g.ID,
			SessionID:  g.SessionID,
			GameNumber: g.GameNumber,
			Status:     g.Status,
			Players:    players,
			Settings:   lotto.Settings{CardPrice: g.CardPrice, LineBonus: g.LineBonus},
			StartedAt:  g.StartedAt,
			FinishedAt: g.FinishedAt,
		})
	}
	return &ListResult{Items: items, Total: total}, nil
}
