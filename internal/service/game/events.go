package game

import (
	"context"
	"fmt"
	"slices"

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

type StartParams struct {
	Players    []string
	CardPrice  int64
	LineBonus  int64
	SessionID  *string
	GameNumber int
}

func (s *Service) StartGame(ctx context.Context, params StartParams) (*GameView, error) {
	players, err := lotto.DedupePreserveOrder(params.Players)
	if err != nil {
		return nil, err
	}
	if len(players) < 2 {
		return nil, lotto.NewValidationError("at least 2 unique players required")
	}
	settings, err := lotto.NewSettings(params.CardPrice, params.LineBonus)
	if err != nil {
		return nil, err
	}

	number := params.GameNumber
	if number <= 0 {
		number = 1
	}
	game := model.Game{
		SessionID:  params.SessionID,
		GameNumber: number,
		Status:     model.GameStatusActive,
		CardPrice:  settings.CardPrice,
		LineBonus:  settings.LineBonus,
		StartedAt:  s.clock.Now(),
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&game).Error; err != nil {
			return err
		}
		rows := make([]model.GamePlayer, len(players))
		for i, id := range players {
			rows[i] = model.GamePlayer{GameID: game.ID, Seat: i + 1, PlayerName: string(id)}
		}
		return tx.Create(&rows).Error
	})
	if err != nil {
		return nil, err
	}

	metrics.GamesStarted.Inc()
	logger.Log.Info("game started",
		zap.Int64("gameID", game.ID),
		zap.Int("players", len(players)),
		zap.Int64("cardPrice", settings.CardPrice),
		zap.Int64("lineBonus", settings.LineBonus),
	)
	return s.GetGame(ctx, game.ID)
}

// AddEvent records a line or card closure after replaying the game so far.
// Finished games, unknown players and players who already closed the same
// thing are rejected.
func (s *Service) AddEvent(ctx context.Context, gameID int64, eventType lotto.EventType, names []string) (*GameView, error) {
	winners, err := lotto.DedupePreserveOrder(names)
	if err != nil {
		return nil, err
	}
	if len(winners) == 0 {
		return nil, lotto.NewValidationError("event requires at least one player")
	}
	normalized := make([]string, len(winners))
	for i, id := range winners {
		normalized[i] = string(id)
	}

	var view *GameView
	err = lock.WithLock(ctx, s.locker, lock.GameKey(gameID), func() error {
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

			seq := int64(len(rec.events)) + 1
			ev, err := lotto.NewEvent(eventType, normalized, s.clock.Now(), &seq)
			if err != nil {
				return err
			}
			if eventType == lotto.CardClosed {
				repeated := make([]lotto.PlayerID, 0)
				for _, id := range ev.Players {
					if state.HasWinner(id) {
						repeated = append(repeated, id)
					}
				}
				if len(repeated) > 0 {
					return lotto.NewValidationError("card already closed by", sorted(repeated)...)
				}
			}
			next, err := lotto.ApplyEvent(state, ev)
			if err != nil {
				return err
			}

			row := model.GameEvent{
				GameID:      gameID,
				Sequence:    seq,
				EventType:   eventType.String(),
				PlayersJSON: mustJSON(normalized),
				OccurredAt:  ev.OccurredAt,
			}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
			rec.events = append(rec.events, row)
			view = buildView(rec, next)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	metrics.EventsRecorded.WithLabelValues(eventType.String()).Inc()
	logger.Log.Info("game event recorded",
		zap.Int64("gameID", gameID),
		zap.String("type", eventType.String()),
		zap.Strings("players", normalized),
	)
	s.publish(ctx, broadcast.Update{
		Type:   "event",
		GameID: gameID,
		Data:   view.Events[len(view.Events)-1],
	})
	return view, nil
}

// Abandon closes an unfinished game without settling it.
func (s *Service) Abandon(ctx context.Context, gameID int64) error {
	err := lock.WithLock(ctx, s.locker, lock.GameKey(gameID), func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			rec, err := s.load(tx, gameID, true)
			if err != nil {
				return err
			}
			if err := ensureOpen(rec.game); err != nil {
				return err
			}
			return tx.Model(&model.Game{}).
				Where("id = ?", gameID).
				Update("status", model.GameStatusAbandoned).Error
		})
	})
	if err != nil {
		return err
	}
	logger.Log.Info("game abandoned", zap.Int64("gameID", gameID))
	s.publish(ctx, broadcast.Update{Type: "abandoned", GameID: gameID})
	return nil
}

func ensureOpen(g model.Game) error {
	switch g.Status {
	case model.GameStatusFinished:
		return fmt.Errorf("%w: %d", appErr.ErrGameFinished, g.ID)
	case model.GameStatusAbandoned:
		return fmt.Errorf("%w: game %d was abandoned", appErr.ErrGameFinished, g.ID)
	}
	return nil
}

func sorted(ids []lotto.PlayerID) []lotto.PlayerID {
	out := slices.Clone(ids)
	slices.Sort(out)
	return out
}
