package main

import (
	"fmt"
	"io"
	"os"

	"lotto-service/internal/service/speech"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

type ParseCmd struct {
	Text      string   `arg:"" help:"Recognized speech, e.g. 'закрыл линию паша'"`
	Players   []string `required:"" help:"Roster to match names against, comma separated"`
	Threshold int      `default:"80" help:"Minimum similarity for a confident match"`
	Delta     int      `default:"5" help:"Score window that makes a match ambiguous"`
}

func (cmd *ParseCmd) Run() error {
	return cmd.render(os.Stdout)
}

func (cmd *ParseCmd) render(w io.Writer) error {
	parser := speech.NewParser(speech.Config{
		ConfidenceThreshold: cmd.Threshold,
		AmbiguityDelta:      cmd.Delta,
		MaxCandidates:       speech.DefaultConfig().MaxCandidates,
	})
	res := parser.ParseTranscript([]byte(cmd.Text), cmd.Players)

	status := string(res.Status)
	if res.Status == speech.StatusOK {
		status = creditStyle.Render(status)
	} else {
		status = warnStyle.Render(status)
	}
	fmt.Fprintf(w, "%s %s\n", headerStyle.Render("Status:"), status)
	fmt.Fprintf(w, "%s %s\n", headerStyle.Render("Text:"), res.NormalizedText)

	if eventType, ok := res.Command.EventType(); ok && res.Status == speech.StatusOK {
		fmt.Fprintf(w, "%s %s %s\n", headerStyle.Render("Event:"), eventType, res.PlayerName)
	}
	if res.Error != "" {
		fmt.Fprintf(w, "%s %s\n", headerStyle.Render("Error:"), res.Error)
	}
	if len(res.Candidates) == 0 {
		return nil
	}

	candidates := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("Candidate", "Score")
	for _, c := range res.Candidates {
		candidates.Row(c.PlayerName, fmt.Sprintf("%.0f", c.Confidence))
	}
	fmt.Fprintln(w, candidates.String())
	return nil
}
