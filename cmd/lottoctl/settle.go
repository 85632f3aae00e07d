package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"lotto-service/internal/lotto"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// SettleCmd folds one line event and one card event over a roster and
// prints the resulting settlement. Amounts are in minor units.
type SettleCmd struct {
	Players   []string `required:"" help:"Roster in seating order, comma separated"`
	CardPrice int64    `required:"" help:"Card price paid by every player"`
	LineBonus int64    `required:"" help:"Bonus each other player pays a line closer"`
	Line      []string `help:"Players who closed a line"`
	Card      []string `required:"" help:"Players who closed the card"`
}

func (cmd *SettleCmd) Run() error {
	return cmd.render(os.Stdout)
}

func (cmd *SettleCmd) settle() (*lotto.Settlement, error) {
	state, err := lotto.NewState(cmd.Players)
	if err != nil {
		return nil, err
	}
	settings, err := lotto.NewSettings(cmd.CardPrice, cmd.LineBonus)
	if err != nil {
		return nil, err
	}

	var seq int64
	apply := func(t lotto.EventType, names []string) error {
		if len(names) == 0 {
			return nil
		}
		seq++
		n := seq
		ev, err := lotto.NewEvent(t, names, time.Now().UTC(), &n)
		if err != nil {
			return err
		}
		state, err = lotto.ApplyEvent(state, ev)
		return err
	}
	if err := apply(lotto.LineClosed, cmd.Line); err != nil {
		return nil, err
	}
	if err := apply(lotto.CardClosed, cmd.Card); err != nil {
		return nil, err
	}
	return lotto.SettleState(state, settings)
}

func (cmd *SettleCmd) render(w io.Writer) error {
	res, err := cmd.settle()
	if err != nil {
		return err
	}

	balances := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("Player", "Net")
	for _, id := range orderedPlayers(cmd.Players) {
		net := res.Net[id]
		style := creditStyle
		if net < 0 {
			style = debitStyle
		}
		balances.Row(string(id), style.Render(strconv.FormatInt(net, 10)))
	}

	transfers := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("From", "To", "Amount")
	for _, t := range res.Transfers {
		transfers.Row(string(t.From), string(t.To), strconv.FormatInt(t.Amount, 10))
	}

	fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("Pot %d, line payouts %d", res.Pot, res.LinePayoutTotal)))
	fmt.Fprintln(w, balances.String())
	if len(res.Transfers) == 0 {
		fmt.Fprintln(w, warnStyle.Render("No transfers"))
		return nil
	}
	fmt.Fprintln(w, transfers.String())
	return nil
}

func orderedPlayers(names []string) []lotto.PlayerID {
	ids, err := lotto.DedupePreserveOrder(names)
	if err != nil {
		return nil
	}
	return ids
}
