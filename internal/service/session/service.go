package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"lotto-service/internal/lock"
	"lotto-service/internal/lotto"
	"lotto-service/internal/model"
	"lotto-service/internal/service/game"
	appErr "lotto-service/pkg/errors"
	"lotto-service/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Service groups consecutive games that share one roster and one set of
// prices. Each session has at most one active game at a time.
type Service struct {
	db     *gorm.DB
	games  *game.Service
	locker lock.Locker
}

func NewService(db *gorm.DB, games *game.Service, locker lock.Locker) *Service {
	return &Service{db: db, games: games, locker: locker}
}

type CreateParams struct {
	Players   []string
	CardPrice int64
	LineBonus int64
}

type HistoryEntry struct {
	GameID     int64            `json:"game_id"`
	GameNumber int              `json:"game_number"`
	Net        lotto.NetBalance `json:"net"`
	Transfers  []lotto.Transfer `json:"transfers"`
	FinishedAt *time.Time       `json:"finished_at,omitempty"`
}

type View struct {
	ID         string           `json:"session_id"`
	Players    []lotto.PlayerID `json:"players"`
	Settings   lotto.Settings   `json:"settings"`
	ActiveGame *game.GameView   `json:"active_game"`
	History    []HistoryEntry   `json:"history"`
	CreatedAt  time.Time        `json:"created_at"`
}

func (s *Service) Create(ctx context.Context, params CreateParams) (*View, error) {
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

	raw, err := json.Marshal(players)
	if err != nil {
		return nil, err
	}
	sess := model.GameSession{
		ID:          uuid.NewString(),
		PlayersJSON: datatypes.JSON(raw),
		CardPrice:   settings.CardPrice,
		LineBonus:   settings.LineBonus,
	}
	if err := s.db.WithContext(ctx).Create(&sess).Error; err != nil {
		return nil, err
	}

	if _, err := s.startGame(ctx, &sess, 1); err != nil {
		return nil, err
	}
	logger.Log.Info("session created", zap.String("sessionID", sess.ID), zap.Int("players", len(players)))
	return s.Get(ctx, sess.ID)
}

func (s *Service) Get(ctx context.Context, id string) (*View, error) {
	sess, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	players, err := decodePlayers(sess.PlayersJSON)
	if err != nil {
		return nil, err
	}

	var games []model.Game
	if err := s.db.WithContext(ctx).
		Where("session_id = ?", id).
		Order("game_number ASC").
		Find(&games).Error; err != nil {
		return nil, err
	}

	view := &View{
		ID:        sess.ID,
		Players:   players,
		Settings:  lotto.Settings{CardPrice: sess.CardPrice, LineBonus: sess.LineBonus},
		History:   make([]HistoryEntry, 0, len(games)),
		CreatedAt: sess.CreatedAt,
	}
	for _, g := range games {
		switch g.Status {
		case model.GameStatusFinished:
			settled, err := s.games.GetSettlement(ctx, g.ID)
			if err != nil {
				return nil, err
			}
			view.History = append(view.History, HistoryEntry{
				GameID:     g.ID,
				GameNumber: g.GameNumber,
				Net:        settled.Net,
				Transfers:  settled.Transfers,
				FinishedAt: settled.FinishedAt,
			})
		case model.GameStatusActive:
			active, err := s.games.GetGame(ctx, g.ID)
			if err != nil {
				return nil, err
			}
			view.ActiveGame = active
		}
	}
	return view, nil
}

func (s *Service) RecordLine(ctx context.Context, id string, players []string) (*game.GameView, error) {
	return s.record(ctx, id, lotto.LineClosed, players)
}

func (s *Service) RecordCard(ctx context.Context, id string, players []string) (*game.GameView, error) {
	return s.record(ctx, id, lotto.CardClosed, players)
}

func (s *Service) record(ctx context.Context, id string, eventType lotto.EventType, players []string) (*game.GameView, error) {
	active, err := s.activeGame(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.games.AddEvent(ctx, active.ID, eventType, players)
}

// FinishActive settles the session's active game.
func (s *Service) FinishActive(ctx context.Context, id string) (*HistoryEntry, error) {
	active, err := s.activeGame(ctx, id)
	if err != nil {
		return nil, err
	}
	res, err := s.games.FinishGame(ctx, active.ID)
	if err != nil {
		return nil, err
	}
	return &HistoryEntry{
		GameID:     active.ID,
		GameNumber: active.GameNumber,
		Net:        res.Net,
		Transfers:  res.Transfers,
		FinishedAt: res.FinishedAt,
	}, nil
}

// NewGame opens the next game of the session. An unfinished active game is
// abandoned first and never settled. Calls for one session run one at a
// time under the session lock.
func (s *Service) NewGame(ctx context.Context, id string) (*game.GameView, error) {
	sess, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}

	var view *game.GameView
	err = lock.WithLock(ctx, s.locker, lock.SessionKey(id), func() error {
		latest, err := s.latestGame(ctx, id)
		if err != nil {
			return err
		}
		next := 1
		if latest != nil {
			next = latest.GameNumber + 1
			if latest.Status == model.GameStatusActive {
				if err := s.games.Abandon(ctx, latest.ID); err != nil {
					return err
				}
				logger.Log.Info("abandoned unfinished session game",
					zap.String("sessionID", id),
					zap.Int64("gameID", latest.ID),
				)
			}
		}
		view, err = s.startGame(ctx, sess, next)
		return err
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

func (s *Service) startGame(ctx context.Context, sess *model.GameSession, number int) (*game.GameView, error) {
	players, err := decodePlayers(sess.PlayersJSON)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(players))
	for i, id := range players {
		names[i] = string(id)
	}
	sessionID := sess.ID
	view, err := s.games.StartGame(ctx, game.StartParams{
		Players:    names,
		CardPrice:  sess.CardPrice,
		LineBonus:  sess.LineBonus,
		SessionID:  &sessionID,
		GameNumber: number,
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil, fmt.Errorf("%w: session %s game %d already started", appErr.ErrLockBusy, sess.ID, number)
	}
	return view, err
}

func (s *Service) find(ctx context.Context, id string) (*model.GameSession, error) {
	var sess model.GameSession
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&sess).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("%w: %s", appErr.ErrSessionNotFound, id)
		}
		return nil, err
	}
	return &sess, nil
}

func (s *Service) latestGame(ctx context.Context, id string) (*model.Game, error) {
	var games []model.Game
	if err := s.db.WithContext(ctx).
		Where("session_id = ?", id).
		Order("game_number DESC").
		Limit(1).
		Find(&games).Error; err != nil {
		return nil, err
	}
	if len(games) == 0 {
		return nil, nil
	}
	return &games[0], nil
}

func (s *Service) activeGame(ctx context.Context, id string) (*model.Game, error) {
	if _, err := s.find(ctx, id); err != nil {
		return nil, err
	}
	latest, err := s.latestGame(ctx, id)
	if err != nil {
		return nil, err
	}
	if latest == nil || latest.Status != model.GameStatusActive {
		return nil, fmt.Errorf("%w: session %s has no active game", appErr.ErrGameFinished, id)
	}
	return latest, nil
}

func decodePlayers(raw datatypes.JSON) ([]lotto.PlayerID, error) {
	var players []lotto.PlayerID
	if err := json.Unmarshal(raw, &players); err != nil {
		return nil, fmt.Errorf("decode session players: %w", err)
	}
	return players, nil
}
