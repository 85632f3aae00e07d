package lotto

import "math"

// NetBalance maps each player to a signed result in minor units.
type NetBalance map[PlayerID]int64

func (n NetBalance) Sum() int64 {
	var sum int64
	for _, v := range n {
		sum += v
	}
	return sum
}

// CalculateNet settles one game. Every player buys a card, every entry in
// lineWinners collects lineBonus from each other player, and the pot is
// split across cardWinners with the remainder going one unit at a time to
// the earliest winners.
func CalculateNet(players []PlayerID, settings Settings, lineWinners, cardWinners []PlayerID) (NetBalance, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	roster := playerSet(players)
	if len(roster) != len(players) {
		return nil, validationError("players contain duplicates", duplicatesOf(idsToStrings(players))...)
	}
	if len(players) < 2 {
		return nil, validationError("at least 2 unique players required")
	}
	if len(cardWinners) == 0 {
		return nil, validationError("card winners must not be empty")
	}
	if len(playerSet(cardWinners)) != len(cardWinners) {
		return nil, validationError("card winners contain duplicates", duplicatesOf(idsToStrings(cardWinners))...)
	}

	unknown := make([]PlayerID, 0)
	for _, group := range [][]PlayerID{lineWinners, cardWinners} {
		for _, id := range group {
			if _, ok := roster[id]; !ok && !containsPlayer(unknown, id) {
				unknown = append(unknown, id)
			}
		}
	}
	if len(unknown) > 0 {
		sortPlayers(unknown)
		return nil, validationError("winner is not a player", unknown...)
	}

	n := int64(len(players))
	net := make(NetBalance, len(players))
	for _, id := range players {
		net[id] = -settings.CardPrice
	}

	collect, ok := mulChecked(settings.LineBonus, n-1)
	if !ok {
		return nil, overflowError()
	}
	for _, winner := range lineWinners {
		for _, id := range players {
			delta := -settings.LineBonus
			if id == winner {
				delta = collect
			}
			if net[id], ok = addChecked(net[id], delta); !ok {
				return nil, overflowError()
			}
		}
	}

	pot, ok := mulChecked(settings.CardPrice, n)
	if !ok {
		return nil, overflowError()
	}
	k := int64(len(cardWinners))
	share, remainder := pot/k, pot%k
	for i, winner := range cardWinners {
		amount := share
		if int64(i) < remainder {
			amount++
		}
		if net[winner], ok = addChecked(net[winner], amount); !ok {
			return nil, overflowError()
		}
	}

	if sum := net.Sum(); sum != 0 {
		return nil, invariantError("net balances do not sum to zero")
	}
	return net, nil
}

func overflowError() *Error {
	return validationError("amounts are too large to settle")
}

func mulChecked(a, b int64) (int64, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	c := a * b
	if c/b != a || (a == -1 && b == math.MinInt64) || (b == -1 && a == math.MinInt64) {
		return 0, false
	}
	return c, true
}

func addChecked(a, b int64) (int64, bool) {
	c := a + b
	if (c > a) != (b > 0) {
		return 0, false
	}
	return c, true
}
