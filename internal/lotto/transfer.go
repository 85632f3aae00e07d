package lotto

import "sort"

// Transfer is one payment from a debtor to a creditor.
type Transfer struct {
	From   PlayerID `json:"from"`
	To     PlayerID `json:"to"`
	Amount int64    `json:"amount"`
}

type balanceEntry struct {
	id     PlayerID
	amount int64
}

// BuildTransfers turns a zero-sum balance into payments. Creditors and
// debtors are each sorted by PlayerID, then matched with a two-pointer
// sweep so the result has at most creditors+debtors-1 entries.
func BuildTransfers(net NetBalance) ([]Transfer, error) {
	creditors := make([]balanceEntry, 0)
	debtors := make([]balanceEntry, 0)
	for id, amount := range net {
		switch {
		case amount > 0:
			creditors = append(creditors, balanceEntry{id: id, amount: amount})
		case amount < 0:
			debtors = append(debtors, balanceEntry{id: id, amount: -amount})
		}
	}
	sort.Slice(creditors, func(i, j int) bool { return creditors[i].id < creditors[j].id })
	sort.Slice(debtors, func(i, j int) bool { return debtors[i].id < debtors[j].id })

	transfers := make([]Transfer, 0, len(creditors)+len(debtors))
	ci, di := 0, 0
	for ci < len(creditors) && di < len(debtors) {
		c, d := &creditors[ci], &debtors[di]
		amount := min(c.amount, d.amount)
		transfers = append(transfers, Transfer{From: d.id, To: c.id, Amount: amount})
		c.amount -= amount
		d.amount -= amount
		if c.amount == 0 {
			ci++
		}
		if d.amount == 0 {
			di++
		}
	}

	leftover := make([]PlayerID, 0)
	for ; ci < len(creditors); ci++ {
		leftover = append(leftover, creditors[ci].id)
	}
	for ; di < len(debtors); di++ {
		leftover = append(leftover, debtors[di].id)
	}
	if len(leftover) > 0 {
		sortPlayers(leftover)
		return nil, invariantError("balances do not sum to zero", leftover...)
	}
	return transfers, nil
}
