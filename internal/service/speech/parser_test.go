package speech_test

import (
	"testing"

	"lotto-service/internal/lotto"
	"lotto-service/internal/service/speech"
)

var roster = []string{"Паша", "Лена", "Оля", "Альберт"}

func TestNormalizeText(t *testing.T) {
	cases := map[string]string{
		"  Закрыл   ЛИНИЮ, Паша! ": "закрыл линию паша",
		"Закрыл карту Алёна":       "закрыл карту алена",
		"закрыл-карту\tоля?":       "закрыл карту оля",
		"player_1 №2":              "player_1 2",
		"закрыл линию Зои\u0306ка": "закрыл линию зои\u0306ка",
	}
	for in, want := range cases {
		if got := speech.NormalizeText(in); got != want {
			t.Fatalf("NormalizeText(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestParseStatuses(t *testing.T) {
	p := speech.NewParser(speech.DefaultConfig())

	cases := []struct {
		name    string
		text    string
		players []string
		status  speech.Status
		command speech.Command
		player  string
	}{
		{"line exact", "Закрыл линию Паша", roster, speech.StatusOK, speech.CloseLine, "Паша"},
		{"partial name", "закрыл линию паш", []string{"Паша", "Лена"}, speech.StatusOK, speech.CloseLine, "Паша"},
		{"card with punctuation", "закрыл карту, Лена!", roster, speech.StatusOK, speech.CloseCard, "Лена"},
		{"unknown command", "открыл линию паша", roster, speech.StatusUnknownCommand, "", ""},
		{"missing name", "закрыл линию", roster, speech.StatusUnknownCommand, "", ""},
		{"low confidence", "закрыл линию виктор", roster, speech.StatusPlayerNotFound, speech.CloseLine, ""},
		{"empty roster", "закрыл линию паша", []string{" ", ""}, speech.StatusPlayerNotFound, speech.CloseLine, ""},
		{"ambiguous", "закрыл карту петров", []string{"Петрова", "Петрову", "Лена"}, speech.StatusAmbiguousName, speech.CloseCard, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := p.Parse(tc.text, tc.players)
			if res.Status != tc.status {
				t.Fatalf("expected status %s, got %+v", tc.status, res)
			}
			if res.Command != tc.command {
				t.Fatalf("expected command %q, got %q", tc.command, res.Command)
			}
			if res.PlayerName != tc.player {
				t.Fatalf("expected player %q, got %q", tc.player, res.PlayerName)
			}
			if tc.status != speech.StatusOK && res.Error == "" {
				t.Fatalf("expected error message for %s", tc.status)
			}
		})
	}
}

func TestParseCandidates(t *testing.T) {
	p := speech.NewParser(speech.DefaultConfig())

	amb := p.Parse("закрыл карту петров", []string{"Петрова", "Петрову", "Лена"})
	if len(amb.Candidates) != 2 || amb.Candidates[0].PlayerName != "Петрова" || amb.Candidates[0].Confidence != 92 {
		t.Fatalf("unexpected ambiguous candidates: %+v", amb.Candidates)
	}

	low := p.Parse("закрыл линию а", []string{"Анна", "Аня", "Паша", "Лена"})
	if low.Status != speech.StatusPlayerNotFound || low.Error != "Недостаточная уверенность в совпадении" {
		t.Fatalf("unexpected low confidence result: %+v", low)
	}
	if len(low.Candidates) != 3 || low.Candidates[0].PlayerName != "Аня" || low.Candidates[0].Confidence != 50 {
		t.Fatalf("expected top 3 candidates led by Аня, got %+v", low.Candidates)
	}

	partial := p.Parse("закрыл линию паш", []string{"Паша", "Лена"})
	if partial.Confidence == nil || *partial.Confidence != 85 {
		t.Fatalf("expected 2*3/7 ratio for a clipped name, got %+v", partial)
	}

	ok := p.Parse("закрыл линию альберт", roster)
	if ok.Confidence == nil || *ok.Confidence != 100 {
		t.Fatalf("expected full confidence, got %+v", ok)
	}
}

func TestParseTranscriptPayloads(t *testing.T) {
	p := speech.NewParser(speech.DefaultConfig())

	for _, payload := range []string{
		`закрыл линию оля`,
		`"закрыл линию оля"`,
		`{"text": "закрыл линию оля", "language": "ru"}`,
		`{"transcript": "закрыл линию оля"}`,
	} {
		res := p.ParseTranscript([]byte(payload), roster)
		if res.Status != speech.StatusOK || res.PlayerName != "Оля" {
			t.Fatalf("payload %s: unexpected result %+v", payload, res)
		}
	}

	res := p.ParseTranscript([]byte(`{"duration": 1.5}`), roster)
	if res.Status != speech.StatusUnknownCommand {
		t.Fatalf("expected unknown command for empty transcript, got %+v", res)
	}
}

func TestCommandEventType(t *testing.T) {
	if et, ok := speech.CloseLine.EventType(); !ok || et != lotto.LineClosed {
		t.Fatalf("unexpected mapping for CloseLine")
	}
	if et, ok := speech.CloseCard.EventType(); !ok || et != lotto.CardClosed {
		t.Fatalf("unexpected mapping for CloseCard")
	}
	if _, ok := speech.Command("").EventType(); ok {
		t.Fatalf("empty command must not map")
	}
}

func TestInterpret(t *testing.T) {
	svc := speech.NewService(speech.DefaultConfig())

	ok := svc.Interpret("закрыл карту паша", roster)
	if ok.Intent != speech.IntentCloseCard || ok.PlayerID == nil || *ok.PlayerID != "Паша" {
		t.Fatalf("unexpected interpretation: %+v", ok)
	}
	if ok.EventEndpoint == nil || *ok.EventEndpoint != "/games/{game_id}/events/card" || len(ok.Errors) != 0 {
		t.Fatalf("unexpected endpoint: %+v", ok)
	}

	miss := svc.Interpret("закрыл линию виктор", roster)
	if miss.Intent != speech.IntentCloseLine || miss.EventEndpoint != nil || miss.PlayerID != nil || len(miss.Errors) != 1 {
		t.Fatalf("unexpected interpretation: %+v", miss)
	}

	unknown := svc.Interpret("привет", roster)
	if unknown.Intent != speech.IntentUnknown || unknown.Errors[0] != "Команда не распознана" {
		t.Fatalf("unexpected interpretation: %+v", unknown)
	}
}
