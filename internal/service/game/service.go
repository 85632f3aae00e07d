package game

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"lotto-service/internal/broadcast"
	"lotto-service/internal/lock"
	"lotto-service/internal/lotto"
	"lotto-service/internal/model"
	appErr "lotto-service/pkg/errors"
	"lotto-service/pkg/logger"

	"github.com/coder/quartz"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Service owns game persistence. Writes for one game are serialized by the
// locker and by a row lock on the game inside each transaction.
type Service struct {
	db     *gorm.DB
	locker lock.Locker
	broker broadcast.Broker
	clock  quartz.Clock
}

type Option func(*Service)

func WithBroker(b broadcast.Broker) Option {
	return func(s *Service) { s.broker = b }
}

func WithClock(c quartz.Clock) Option {
	return func(s *Service) { s.clock = c }
}

func NewService(db *gorm.DB, locker lock.Locker, opts ...Option) *Service {
	s := &Service{
		db:     db,
		locker: locker,
		clock:  quartz.NewReal(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type EventView struct {
	Sequence   int64            `json:"sequence"`
	Type       string           `json:"event_type"`
	Players    []lotto.PlayerID `json:"player_ids"`
	OccurredAt time.Time        `json:"occurred_at"`
}

type GameView struct {
	ID           int64            `json:"game_id"`
	SessionID    *string          `json:"session_id,omitempty"`
	GameNumber   int              `json:"game_number"`
	Status       string           `json:"status"`
	Players      []lotto.PlayerID `json:"players"`
	Settings     lotto.Settings   `json:"settings"`
	LineWinners  []lotto.PlayerID `json:"line_winners"`
	CardWinners  []lotto.PlayerID `json:"card_winners"`
	StartedAt    time.Time        `json:"started_at"`
	CardClosedAt *time.Time       `json:"card_closed_at,omitempty"`
	FinishedAt   *time.Time       `json:"finished_at,omitempty"`
	Events       []EventView      `json:"events"`
}

// record is one game row plus its roster and events as loaded from storage.
type record struct {
	game    model.Game
	players []model.GamePlayer
	events  []model.GameEvent
}

func (r *record) settings() lotto.Settings {
	return lotto.Settings{CardPrice: r.game.CardPrice, LineBonus: r.game.LineBonus}
}

func (r *record) roster() []string {
	names := make([]string, len(r.players))
	for i, p := range r.players {
		names[i] = p.PlayerName
	}
	return names
}

func (s *Service) GetGame(ctx context.Context, id int64) (*GameView, error) {
	rec, err := s.load(s.db.WithContext(ctx), id, false)
	if err != nil {
		return nil, err
	}
	state, err := s.fold(rec)
	if err != nil {
		return nil, err
	}
	return buildView(rec, state), nil
}

func (s *Service) load(tx *gorm.DB, id int64, forUpdate bool) (*record, error) {
	q := tx
	if forUpdate {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var rec record
	if err := q.First(&rec.game, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("%w: %d", appErr.ErrGameNotFound, id)
		}
		return nil, err
	}
	if err := tx.Where("game_id = ?", id).Order("seat ASC").Find(&rec.players).Error; err != nil {
		return nil, err
	}
	if err := tx.Where("game_id = ?", id).Order("sequence ASC").Find(&rec.events).Error; err != nil {
		return nil, err
	}
	return &rec, nil
}

// fold replays the persisted events through the state machine.
func (s *Service) fold(rec *record) (lotto.State, error) {
	state, err := lotto.NewState(rec.roster(), lotto.WithClock(s.clock))
	if err != nil {
		return lotto.State{}, err
	}
	for _, row := range rec.events {
		ev, err := decodeEvent(row)
		if err != nil {
			return lotto.State{}, err
		}
		if state, err = lotto.ApplyEvent(state, ev); err != nil {
			logger.Log.Error("stored event no longer applies",
				zap.Int64("gameID", rec.game.ID),
				zap.Int64("sequence", row.Sequence),
				zap.Error(err),
			)
			return lotto.State{}, err
		}
	}
	return state, nil
}

func decodeEvent(row model.GameEvent) (lotto.Event, error) {
	typ, err := lotto.ParseEventType(row.EventType)
	if err != nil {
		return lotto.Event{}, err
	}
	var names []string
	if err := json.Unmarshal(row.PlayersJSON, &names); err != nil {
		return lotto.Event{}, fmt.Errorf("decode event %d players: %w", row.ID, err)
	}
	seq := row.Sequence
	return lotto.NewEvent(typ, names, row.OccurredAt, &seq)
}

func buildView(rec *record, state lotto.State) *GameView {
	view := &GameView{
		ID:          rec.game.ID,
		SessionID:   rec.game.SessionID,
		GameNumber:  rec.game.GameNumber,
		Status:      rec.game.Status,
		Players:     state.Players(),
		Settings:    rec.settings(),
		LineWinners: state.LineWinners(),
		CardWinners: state.Winners(),
		StartedAt:   rec.game.StartedAt,
		FinishedAt:  rec.game.FinishedAt,
		Events:      make([]EventView, 0, len(rec.events)),
	}
	if at, ok := state.FinishedAt(); ok {
		view.CardClosedAt = &at
	}
	for _, ev := range state.Events() {
		var seq int64
		if ev.Sequence != nil {
			seq = *ev.Sequence
		}
		view.Events = append(view.Events, EventView{
			Sequence:   seq,
			Type:       ev.Type.String(),
			Players:    ev.Players,
			OccurredAt: ev.OccurredAt,
		})
	}
	return view
}

func (s *Service) publish(ctx context.Context, u broadcast.Update) {
	if s.broker == nil {
		return
	}
	if err := s.broker.Publish(ctx, u); err != nil {
		logger.Log.Warn("failed to publish game update",
			zap.Int64("gameID", u.GameID),
			zap.String("type", u.Type),
			zap.Error(err),
		)
	}
}

func mustJSON(v interface{}) datatypes.JSON {
	if v == nil {
		return datatypes.JSON("[]")
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return datatypes.JSON("[]")
	}
	return datatypes.JSON(raw)
}
