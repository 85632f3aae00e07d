package lotto

// Settlement is the full outcome of one finished game.
type Settlement struct {
	Net             NetBalance `json:"net"`
	Transfers       []Transfer `json:"transfers"`
	Pot             int64      `json:"pot"`
	LinePayoutTotal int64      `json:"line_payout_total"`
}

func Settle(players []PlayerID, settings Settings, lineWinners, cardWinners []PlayerID) (*Settlement, error) {
	net, err := CalculateNet(players, settings, lineWinners, cardWinners)
	if err != nil {
		return nil, err
	}
	transfers, err := BuildTransfers(net)
	if err != nil {
		return nil, err
	}
	pot, linePayout, err := Totals(len(players), len(lineWinners), settings)
	if err != nil {
		return nil, err
	}
	return &Settlement{
		Net:             net,
		Transfers:       transfers,
		Pot:             pot,
		LinePayoutTotal: linePayout,
	}, nil
}

// Totals returns the card pot and the sum collected by line winners for a
// game of the given size.
func Totals(players, lineWins int, settings Settings) (pot, linePayout int64, err error) {
	n := int64(players)
	pot, ok := mulChecked(settings.CardPrice, n)
	if !ok {
		return 0, 0, overflowError()
	}
	collect, ok := mulChecked(settings.LineBonus, n-1)
	if ok {
		linePayout, ok = mulChecked(collect, int64(lineWins))
	}
	if !ok {
		return 0, 0, overflowError()
	}
	return pot, linePayout, nil
}

// SettleState settles a folded state using its roster order, line winners
// and card winners in first-seen order.
func SettleState(s State, settings Settings) (*Settlement, error) {
	return Settle(s.players, settings, s.lineWinners, s.winners)
}
