package speech

import (
	"lotto-service/internal/metrics"
	"lotto-service/pkg/logger"

	"go.uber.org/zap"
)

const (
	IntentCloseLine = "close_line"
	IntentCloseCard = "close_card"
	IntentUnknown   = "unknown"
)

// Interpretation is the parser result shaped for a client that will call
// the matching game event route next.
type Interpretation struct {
	RawText        string      `json:"raw_text"`
	NormalizedText string      `json:"normalized_text"`
	Intent         string      `json:"intent"`
	Status         Status      `json:"status"`
	Confidence     *float64    `json:"confidence"`
	PlayerID       *string     `json:"player_id"`
	EventEndpoint  *string     `json:"event_endpoint"`
	Candidates     []Candidate `json:"candidates"`
	Errors         []string    `json:"errors"`
}

type Service struct {
	parser *Parser
}

func NewService(cfg Config) *Service {
	return &Service{parser: NewParser(cfg)}
}

func (s *Service) Parser() *Parser { return s.parser }

func (s *Service) Interpret(text string, players []string) Interpretation {
	res := s.parser.Parse(text, players)
	metrics.SpeechCommands.WithLabelValues(string(res.Status)).Inc()
	logger.Log.Debug("speech command parsed",
		zap.String("status", string(res.Status)),
		zap.String("normalized", res.NormalizedText),
	)
	return Interpret(res)
}

// Interpret maps a parse result onto an intent and, for OK results only,
// the event route template.
func Interpret(res Result) Interpretation {
	out := Interpretation{
		RawText:        res.RawText,
		NormalizedText: res.NormalizedText,
		Intent:         IntentUnknown,
		Status:         res.Status,
		Confidence:     res.Confidence,
		Candidates:     res.Candidates,
		Errors:         []string{},
	}

	var endpoint string
	switch res.Command {
	case CloseLine:
		out.Intent = IntentCloseLine
		endpoint = "/games/{game_id}/events/line"
	case CloseCard:
		out.Intent = IntentCloseCard
		endpoint = "/games/{game_id}/events/card"
	}
	if res.Error != "" {
		out.Errors = append(out.Errors, res.Error)
	}
	if res.Status == StatusOK {
		player := res.PlayerName
		out.PlayerID = &player
		out.EventEndpoint = &endpoint
	}
	return out
}
