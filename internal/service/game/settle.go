package game

import (
	"context"
	"errors"
	"fmt"
	"time"

	"lotto-service/internal/broadcast"
	"lotto-service/internal/lock"
	"lotto-service/internal/lotto"
	"lotto-service/internal/metrics"
	"lotto-service/internal/model"
	appErr "lotto-service/pkg/errors"
	"lotto-service/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type SettlementResult struct {
	GameID          int64            `json:"game_id"`
	Net             lotto.NetBalance `json:"net"`
	Transfers       []lotto.Transfer `json:"transfers"`
	Pot             int64            `json:"pot,omitempty"`
	LinePayoutTotal int64            `json:"line_payout_total,omitempty"`
	FinishedAt      *time.Time       `json:"finished_at,omitempty"`
}

// FinishGame settles an active game from its recorded events and stores
// one result row per player. At least one card winner is required.
func (s *Service) FinishGame(ctx context.Context, gameID int64) (*SettlementResult, error) {
	var result *SettlementResult
	err := lock.WithLock(ctx, s.locker, lock.GameKey(gameID), func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			rec, err := s.load(tx, gameID, true)
			if err != nil {
				return err
			}
			if err := ensureOpen(rec.game); err != nil {
				return err
			}
			state, err := s.fold(rec)
			if err != nil {
				return err
			}
			if len(state.Winners()) == 0 {
				return fmt.Errorf("%w: game %d", appErr.ErrNoCardWinners, gameID)
			}

			settled, err := lotto.SettleState(state, rec.settings())
			if err != nil {
				return err
			}

			now := s.clock.Now()
			rows := make([]model.GameResult, 0, len(settled.Net))
			for _, id := range state.Players() {
				rows = append(rows, model.GameResult{
					GameID:     gameID,
					PlayerName: string(id),
					Net:        settled.Net[id],
					LineClosed: state.HasLineWinner(id),
					CardClosed: state.HasWinner(id),
					CreatedAt:  now,
				})
			}
			if err := tx.Create(&rows).Error; err != nil {
				return err
			}

			if err := tx.Model(&model.Game{}).
				Where("id = ?", gameID).
				Updates(map[string]interface{}{
					"status":      model.GameStatusFinished,
					"finished_at": now,
				}).Error; err != nil {
				return err
			}

			result = &SettlementResult{
				GameID:          gameID,
				Net:             settled.Net,
				Transfers:       settled.Transfers,
				Pot:             settled.Pot,
				LinePayoutTotal: settled.LinePayoutTotal,
				FinishedAt:      &now,
			}
			return nil
		})
	})
	if err != nil {
		reportInvariant(gameID, err)
		return nil, err
	}

	metrics.GamesFinished.Inc()
	logger.Log.Info("game finished",
		zap.Int64("gameID", gameID),
		zap.Int("transfers", len(result.Transfers)),
	)
	s.publish(ctx, broadcast.Update{Type: "finished", GameID: gameID, Data: result})
	return result, nil
}

// GetSettlement rebuilds transfers from the stored net of a finished game.
// Pot and line payout come from the roster and the replayed line events.
func (s *Service) GetSettlement(ctx context.Context, gameID int64) (*SettlementResult, error) {
	rec, err := s.load(s.db.WithContext(ctx), gameID, false)
	if err != nil {
		return nil, err
	}
	if rec.game.Status != model.GameStatusFinished {
		return nil, fmt.Errorf("%w: %d", appErr.ErrGameNotFinished, gameID)
	}
	state, err := s.fold(rec)
	if err != nil {
		return nil, err
	}

	net, err := s.Results(ctx, gameID)
	if err != nil {
		return nil, err
	}
	transfers, err := lotto.BuildTransfers(net)
	if err != nil {
		reportInvariant(gameID, err)
		return nil, err
	}
	pot, linePayout, err := lotto.Totals(len(state.Players()), len(state.LineWinners()), rec.settings())
	if err != nil {
		return nil, err
	}
	return &SettlementResult{
		GameID:          gameID,
		Net:             net,
		Transfers:       transfers,
		Pot:             pot,
		LinePayoutTotal: linePayout,
		FinishedAt:      rec.game.FinishedAt,
	}, nil
}

// Results returns the stored net balance of a game, empty if unsettled.
func (s *Service) Results(ctx context.Context, gameID int64) (lotto.NetBalance, error) {
	var rows []model.GameResult
	if err := s.db.WithContext(ctx).
		Where("game_id = ?", gameID).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	net := make(lotto.NetBalance, len(rows))
	for _, r := range rows {
		net[lotto.PlayerID(r.PlayerName)] = r.Net
	}
	return net, nil
}

func reportInvariant(gameID int64, err error) {
	if !errors.Is(err, appErr.ErrInvariantViolation) {
		return
	}
	metrics.InvariantViolations.Inc()
	logger.Log.Error("settlement invariant violated",
		zap.Int64("gameID", gameID),
		zap.Error(err),
	)
}
