package lotto

import (
	"strings"
	"time"
)

type EventType int

const (
	LineClosed EventType = iota + 1
	CardClosed
)

func (t EventType) String() string {
	switch t {
	case LineClosed:
		return "line_closed"
	case CardClosed:
		return "card_closed"
	default:
		return "unknown"
	}
}

// ParseEventType accepts the persisted names as well as the short
// "line"/"card" forms used by the HTTP routes.
func ParseEventType(s string) (EventType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "line_closed", "line":
		return LineClosed, nil
	case "card_closed", "card":
		return CardClosed, nil
	default:
		return 0, validationError("unsupported event type " + s)
	}
}

// Event is one declared line or card closure. A zero OccurredAt means the
// timestamp is absent.
type Event struct {
	Type       EventType
	Players    []PlayerID
	OccurredAt time.Time
	Sequence   *int64
}

func NewEvent(eventType EventType, names []string, occurredAt time.Time, sequence *int64) (Event, error) {
	if eventType != LineClosed && eventType != CardClosed {
		return Event{}, validationError("unsupported event type " + eventType.String())
	}
	if len(names) == 0 {
		return Event{}, validationError("event requires at least one player")
	}
	players, err := normalizeUnique(names, "event")
	if err != nil {
		return Event{}, err
	}
	return Event{
		Type:       eventType,
		Players:    players,
		OccurredAt: occurredAt,
		Sequence:   sequence,
	}, nil
}

func (e Event) validate() error {
	if len(e.Players) == 0 {
		return validationError("event requires at least one player")
	}
	seen := make(map[PlayerID]struct{}, len(e.Players))
	for _, id := range e.Players {
		if _, ok := seen[id]; ok {
			return validationError("event contains duplicate players", id)
		}
		seen[id] = struct{}{}
	}
	return nil
}

func (e Event) clone() Event {
	out := e
	out.Players = append([]PlayerID(nil), e.Players...)
	if e.Sequence != nil {
		seq := *e.Sequence
		out.Sequence = &seq
	}
	return out
}
