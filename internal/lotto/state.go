package lotto

import (
	"time"

	"github.com/coder/quartz"
)

// State is one game's folded event history. It is a value: ApplyEvent
// returns a new State and never touches the one it was given.
type State struct {
	players     []PlayerID
	events      []Event
	lineWinners []PlayerID
	winners     []PlayerID
	finishedAt  time.Time
	clock       quartz.Clock
}

type StateOption func(*State)

// WithClock sets the clock used to stamp a CardClosed event that carries
// no timestamp of its own.
func WithClock(clock quartz.Clock) StateOption {
	return func(s *State) {
		s.clock = clock
	}
}

func NewState(names []string, opts ...StateOption) (State, error) {
	if len(names) == 0 {
		return State{}, validationError("roster must contain at least one player")
	}
	players, err := normalizeUnique(names, "roster")
	if err != nil {
		return State{}, err
	}
	s := State{players: players, clock: quartz.NewReal()}
	for _, opt := range opts {
		opt(&s)
	}
	return s, nil
}

func (s State) Players() []PlayerID     { return append([]PlayerID(nil), s.players...) }
func (s State) LineWinners() []PlayerID { return append([]PlayerID(nil), s.lineWinners...) }
func (s State) Winners() []PlayerID     { return append([]PlayerID(nil), s.winners...) }

func (s State) Events() []Event {
	out := make([]Event, len(s.events))
	for i, ev := range s.events {
		out[i] = ev.clone()
	}
	return out
}

func (s State) FinishedAt() (time.Time, bool) {
	return s.finishedAt, !s.finishedAt.IsZero()
}

func (s State) Finished() bool { return !s.finishedAt.IsZero() }

func (s State) HasLineWinner(id PlayerID) bool { return containsPlayer(s.lineWinners, id) }
func (s State) HasWinner(id PlayerID) bool     { return containsPlayer(s.winners, id) }

// ApplyEvent validates ev against the roster and prior winners and returns
// the resulting state.
func ApplyEvent(s State, ev Event) (State, error) {
	if err := ev.validate(); err != nil {
		return s, err
	}

	roster := playerSet(s.players)
	unknown := make([]PlayerID, 0)
	for _, id := range ev.Players {
		if _, ok := roster[id]; !ok {
			unknown = append(unknown, id)
		}
	}
	if len(unknown) > 0 {
		sortPlayers(unknown)
		return s, validationError("unknown player", unknown...)
	}

	next := s.copy()
	switch ev.Type {
	case LineClosed:
		repeated := make([]PlayerID, 0)
		for _, id := range ev.Players {
			if containsPlayer(s.lineWinners, id) {
				repeated = append(repeated, id)
			}
		}
		if len(repeated) > 0 {
			sortPlayers(repeated)
			return s, validationError("line already closed by", repeated...)
		}
		next.lineWinners = append(next.lineWinners, ev.Players...)
	case CardClosed:
		for _, id := range ev.Players {
			if !containsPlayer(next.winners, id) {
				next.winners = append(next.winners, id)
			}
		}
		if next.finishedAt.IsZero() {
			at := ev.OccurredAt
			if at.IsZero() {
				at = next.now()
			}
			next.finishedAt = at
		}
	default:
		return s, validationError("unsupported event type " + ev.Type.String())
	}
	next.events = append(next.events, ev.clone())
	return next, nil
}

func (s State) copy() State {
	events := make([]Event, len(s.events), len(s.events)+1)
	copy(events, s.events)
	return State{
		players:     s.players,
		events:      events,
		lineWinners: append([]PlayerID(nil), s.lineWinners...),
		winners:     append([]PlayerID(nil), s.winners...),
		finishedAt:  s.finishedAt,
		clock:       s.clock,
	}
}

func (s State) now() time.Time {
	if s.clock == nil {
		return time.Now()
	}
	return s.clock.Now()
}

func containsPlayer(ids []PlayerID, id PlayerID) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}
