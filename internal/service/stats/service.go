package stats

import (
	"context"
	"time"

	"lotto-service/internal/model"

	"github.com/coder/quartz"
	"github.com/sourcegraph/conc/pool"
	"gorm.io/gorm"
)

// Service aggregates stored results of finished games. It only reads.
type Service struct {
	db    *gorm.DB
	clock quartz.Clock
}

func NewService(db *gorm.DB, clock quartz.Clock) *Service {
	if clock == nil {
		clock = quartz.NewReal()
	}
	return &Service{db: db, clock: clock}
}

// Filter narrows aggregates to games finished within the last PeriodDays
// days and to one player. Zero values disable each filter.
type Filter struct {
	PeriodDays int
	Player     string
}

type GlobalBalance struct {
	TotalNet   int64 `json:"total_net"`
	GamesCount int64 `json:"games_count"`
}

type PlayerBalance struct {
	Name string `json:"name"`
	Net  int64  `json:"net"`
}

type HistoryItem struct {
	GameID     int64      `json:"game_id"`
	FinishedAt *time.Time `json:"finished_at"`
	Net        int64      `json:"net"`
	CardClosed bool       `json:"card_closed"`
}

type PlayerStats struct {
	Player     string        `json:"player"`
	TotalNet   int64         `json:"total_net"`
	GamesCount int64         `json:"games_count"`
	WinRate    float64       `json:"win_rate"`
	History    []HistoryItem `json:"history"`
}

type BalanceReport struct {
	TotalBalance   int64            `json:"total_balance"`
	GamesCount     int64            `json:"games_count"`
	AveragePerGame float64          `json:"average_per_game"`
	Players        []PlayerBalance  `json:"players"`
	GamesFinished  int64            `json:"games_finished"`
	GlobalBalance  map[string]int64 `json:"global_balance"`
}

func (s *Service) finished(ctx context.Context, f Filter) *gorm.DB {
	q := s.db.WithContext(ctx).
		Table("game_results").
		Joins("JOIN games ON games.id = game_results.game_id").
		Where("games.status = ?", model.GameStatusFinished)
	if f.PeriodDays > 0 {
		since := s.clock.Now().AddDate(0, 0, -f.PeriodDays)
		q = q.Where("games.finished_at >= ?", since)
	}
	if f.Player != "" {
		q = q.Where("game_results.player_name = ?", f.Player)
	}
	return q
}

func (s *Service) GlobalBalance(ctx context.Context, f Filter) (GlobalBalance, error) {
	var row GlobalBalance
	err := s.finished(ctx, f).
		Select("COALESCE(SUM(game_results.net), 0) AS total_net, COUNT(DISTINCT game_results.game_id) AS games_count").
		Scan(&row).Error
	return row, err
}

// PlayerBalances returns per-player totals sorted by name.
func (s *Service) PlayerBalances(ctx context.Context, f Filter) ([]PlayerBalance, error) {
	rows := make([]PlayerBalance, 0)
	err := s.finished(ctx, f).
		Select("game_results.player_name AS name, COALESCE(SUM(game_results.net), 0) AS net").
		Group("game_results.player_name").
		Order("game_results.player_name ASC").
		Scan(&rows).Error
	return rows, err
}

func (s *Service) GamesFinished(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&model.Game{}).
		Where("status = ?", model.GameStatusFinished).
		Count(&count).Error
	return count, err
}

func (s *Service) PlayerStats(ctx context.Context, name string) (*PlayerStats, error) {
	history := make([]HistoryItem, 0)
	if err := s.finished(ctx, Filter{Player: name}).
		Select("game_results.game_id AS game_id, games.finished_at AS finished_at, game_results.net AS net, game_results.card_closed AS card_closed").
		Order("games.finished_at DESC").
		Order("game_results.game_id DESC").
		Scan(&history).Error; err != nil {
		return nil, err
	}

	out := &PlayerStats{Player: name, History: history}
	var wins int64
	for _, h := range history {
		out.TotalNet += h.Net
		out.GamesCount++
		if h.CardClosed {
			wins++
		}
	}
	if out.GamesCount > 0 {
		out.WinRate = float64(wins) / float64(out.GamesCount)
	}
	return out, nil
}

// Overview runs the balance aggregates concurrently and merges them.
func (s *Service) Overview(ctx context.Context, f Filter) (*BalanceReport, error) {
	var (
		balance  GlobalBalance
		players  []PlayerBalance
		finished int64
	)

	p := pool.New().WithContext(ctx).WithCancelOnError()
	p.Go(func(ctx context.Context) error {
		var err error
		balance, err = s.GlobalBalance(ctx, f)
		return err
	})
	p.Go(func(ctx context.Context) error {
		var err error
		players, err = s.PlayerBalances(ctx, f)
		return err
	})
	p.Go(func(ctx context.Context) error {
		var err error
		finished, err = s.GamesFinished(ctx)
		return err
	})
	if err := p.Wait(); err != nil {
		return nil, err
	}

	report := &BalanceReport{
		TotalBalance:  balance.TotalNet,
		GamesCount:    balance.GamesCount,
		Players:       players,
		GamesFinished: finished,
		GlobalBalance: make(map[string]int64, len(players)),
	}
	if balance.GamesCount > 0 {
		report.AveragePerGame = float64(balance.TotalNet) / float64(balance.GamesCount)
	}
	for _, pb := range players {
		report.GlobalBalance[pb.Name] = pb.Net
	}
	return report, nil
}
