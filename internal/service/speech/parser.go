package speech

import (
	"encoding/json"
	"regexp"
	"sort"
	"strings"

	"lotto-service/internal/lotto"

	"github.com/agext/levenshtein"
)

type Status string

const (
	StatusOK             Status = "OK"
	StatusUnknownCommand Status = "UNKNOWN_COMMAND"
	StatusEmptyName      Status = "EMPTY_NAME"
	StatusPlayerNotFound Status = "PLAYER_NOT_FOUND"
	StatusAmbiguousName  Status = "AMBIGUOUS_NAME"
)

type Command string

const (
	CloseLine Command = "CLOSE_LINE"
	CloseCard Command = "CLOSE_CARD"
)

// EventType maps a recognized command onto the game event it records.
func (c Command) EventType() (lotto.EventType, bool) {
	switch c {
	case CloseLine:
		return lotto.LineClosed, true
	case CloseCard:
		return lotto.CardClosed, true
	}
	return 0, false
}

const (
	msgUnknownCommand = "Команда не распознана"
	msgEmptyName      = "Имя игрока не указано"
	msgNoPlayers      = "Список игроков пуст"
	msgLowConfidence  = "Недостаточная уверенность в совпадении"
	msgAmbiguous      = "Найдено несколько похожих игроков"
)

type Config struct {
	ConfidenceThreshold int
	AmbiguityDelta      int
	MaxCandidates       int
}

func DefaultConfig() Config {
	return Config{ConfidenceThreshold: 80, AmbiguityDelta: 5, MaxCandidates: 3}
}

type Candidate struct {
	PlayerName string  `json:"player_name"`
	Confidence float64 `json:"confidence"`
}

type Result struct {
	Status         Status      `json:"status"`
	Command        Command     `json:"event_type,omitempty"`
	PlayerName     string      `json:"player_name,omitempty"`
	Confidence     *float64    `json:"confidence"`
	RawText        string      `json:"raw_text"`
	NormalizedText string      `json:"normalized_text"`
	Candidates     []Candidate `json:"candidates"`
	Error          string      `json:"error,omitempty"`
}

var commandPatterns = []struct {
	command Command
	pattern *regexp.Regexp
}{
	{CloseLine, regexp.MustCompile(`^закрыл линию\s+(.+)$`)},
	{CloseCard, regexp.MustCompile(`^закрыл карту\s+(.+)$`)},
}

var (
	punctuation = regexp.MustCompile(`[^\p{L}\p{M}\p{N}_\s]`)
	spaces      = regexp.MustCompile(`\s+`)
)

// NormalizeText lowercases, folds ё into е, turns punctuation into spaces
// and collapses runs of whitespace. Combining marks stay attached to their
// letters.
func NormalizeText(value string) string {
	value = strings.ReplaceAll(strings.ToLower(value), "ё", "е")
	value = punctuation.ReplaceAllString(value, " ")
	return strings.TrimSpace(spaces.ReplaceAllString(value, " "))
}

// Parser turns a spoken command into an event type and a roster player.
type Parser struct {
	cfg Config
}

func NewParser(cfg Config) *Parser {
	def := DefaultConfig()
	if cfg.ConfidenceThreshold <= 0 {
		cfg.ConfidenceThreshold = def.ConfidenceThreshold
	}
	if cfg.AmbiguityDelta < 0 {
		cfg.AmbiguityDelta = def.AmbiguityDelta
	}
	if cfg.MaxCandidates <= 0 {
		cfg.MaxCandidates = def.MaxCandidates
	}
	return &Parser{cfg: cfg}
}

func (p *Parser) Parse(text string, players []string) Result {
	normalized := NormalizeText(text)
	res := Result{
		RawText:        text,
		NormalizedText: normalized,
		Candidates:     []Candidate{},
	}

	command, requested, ok := extractCommand(normalized)
	if !ok {
		res.Status = StatusUnknownCommand
		res.Error = msgUnknownCommand
		return res
	}
	res.Command = command
	if requested == "" {
		res.Status = StatusEmptyName
		res.Error = msgEmptyName
		return res
	}

	p.matchPlayer(&res, requested, players)
	return res
}

// ParseTranscript accepts a provider payload that is either plain text, a
// JSON string, or a JSON object carrying "text" or "transcript".
func (p *Parser) ParseTranscript(payload []byte, players []string) Result {
	return p.Parse(TranscriptText(payload), players)
}

func TranscriptText(payload []byte) string {
	var obj map[string]interface{}
	if err := json.Unmarshal(payload, &obj); err == nil {
		for _, key := range []string{"text", "transcript"} {
			if s, ok := obj[key].(string); ok && s != "" {
				return s
			}
		}
		return ""
	}
	var s string
	if err := json.Unmarshal(payload, &s); err == nil {
		return s
	}
	return string(payload)
}

func extractCommand(normalized string) (Command, string, bool) {
	for _, cp := range commandPatterns {
		if m := cp.pattern.FindStringSubmatch(normalized); m != nil {
			return cp.command, strings.TrimSpace(m[1]), true
		}
	}
	return "", "", false
}

type scored struct {
	name  string
	score int
}

func (p *Parser) matchPlayer(res *Result, requested string, players []string) {
	original := make(map[string]string)
	keys := make([]string, 0, len(players))
	for _, player := range players {
		if strings.TrimSpace(player) == "" {
			continue
		}
		key := NormalizeText(player)
		if _, seen := original[key]; !seen {
			keys = append(keys, key)
		}
		original[key] = player
	}
	if len(keys) == 0 {
		res.Status = StatusPlayerNotFound
		res.Error = msgNoPlayers
		return
	}

	matches := make([]scored, len(keys))
	for i, key := range keys {
		matches[i] = scored{name: key, score: similarity(requested, key)}
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].score > matches[j].score })
	if len(matches) > p.cfg.MaxCandidates {
		matches = matches[:p.cfg.MaxCandidates]
	}

	best := matches[0]
	if best.score < p.cfg.ConfidenceThreshold {
		res.Status = StatusPlayerNotFound
		res.Error = msgLowConfidence
		for _, m := range matches {
			res.Candidates = append(res.Candidates, Candidate{PlayerName: original[m.name], Confidence: float64(m.score)})
		}
		return
	}

	near := make([]Candidate, 0, len(matches))
	for _, m := range matches {
		if m.score >= p.cfg.ConfidenceThreshold && best.score-m.score <= p.cfg.AmbiguityDelta {
			near = append(near, Candidate{PlayerName: original[m.name], Confidence: float64(m.score)})
		}
	}
	if len(near) > 1 {
		res.Status = StatusAmbiguousName
		res.Error = msgAmbiguous
		res.Candidates = near
		return
	}

	confidence := float64(best.score)
	res.Status = StatusOK
	res.PlayerName = original[best.name]
	res.Confidence = &confidence
}

// ratioParams price a substitution as a delete plus an insert, which makes
// Similarity equal 2*LCS/(len(a)+len(b)).
var ratioParams = levenshtein.NewParams().SubCost(2)

// similarity is the matching-characters ratio of a and b scaled to 0..100.
func similarity(a, b string) int {
	return int(levenshtein.Similarity(a, b, ratioParams)*100 + 1e-9)
}
