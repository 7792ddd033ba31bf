package services

import (
	"sort"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// DefaultPlatformCut is the share of the entry fees kept by the platform.
var DefaultPlatformCut = decimal.RequireFromString("0.10")

var (
	firstPlaceShare  = decimal.RequireFromString("0.65")
	secondPlaceShare = decimal.RequireFromString("0.35")
)

// PrizeTable maps a finishing rank (1-based) to the amount it wins.
// Ranks without a prize are absent.
type PrizeTable map[int]decimal.Decimal

// Amount returns the prize for rank, zero when the rank wins nothing.
func (t PrizeTable) Amount(rank int) decimal.Decimal {
	if amount, ok := t[rank]; ok {
		return amount
	}
	return decimal.Zero
}

// SpanTotal sums the prizes of ranks from..to inclusive.
func (t PrizeTable) SpanTotal(from, to int) decimal.Decimal {
	total := decimal.Zero
	for rank := from; rank <= to; rank++ {
		total = total.Add(t.Amount(rank))
	}
	return total
}

func (t PrizeTable) Total() decimal.Decimal {
	total := decimal.Zero
	for _, amount := range t {
		total = total.Add(amount)
	}
	return total
}

// Ranks returns the paid ranks in ascending order.
func (t PrizeTable) Ranks() []int {
	ranks := make([]int, 0, len(t))
	for rank := range t {
		ranks = append(ranks, rank)
	}
	sort.Ints(ranks)
	return ranks
}

// Lines renders the table for display, one line per paid rank, with
// amounts grouped for the given locale.
func (t PrizeTable) Lines(tag language.Tag) []string {
	p := message.NewPrinter(tag)
	lines := make([]string, 0, len(t))
	for _, rank := range t.Ranks() {
		lines = append(lines, p.Sprintf("Place %d: %.2f", rank, t[rank].InexactFloat64()))
	}
	return lines
}

func (t PrizeTable) set(rank int, amount decimal.Decimal) {
	amount = amount.Truncate(2)
	if amount.IsPositive() {
		t[rank] = amount
	}
}

// PrizeCalculator turns entry fees into a prize table. It is stateless apart
// from the platform cut.
type PrizeCalculator struct {
	PlatformCut decimal.Decimal
}

func NewPrizeCalculator(platformCut decimal.Decimal) *PrizeCalculator {
	return &PrizeCalculator{PlatformCut: platformCut}
}

// NetPool is the total of entry fees minus the platform cut.
func (pc *PrizeCalculator) NetPool(entryFee decimal.Decimal, attendees int) decimal.Decimal {
	total := entryFee.Mul(decimal.NewFromInt(int64(attendees)))
	return total.Mul(decimal.NewFromInt(1).Sub(pc.PlatformCut))
}

// Distribute computes the prize owed to each rank.
//
// With one place, or fewer than three attendees, rank 1 takes the whole net
// pool. Otherwise lower places get their entry fee back and rank 1 takes the
// rest, until there are enough attendees to fill every place with money
// left over: then places 3..N get the fee back and the remainder is split
// 65/35 between ranks 1 and 2. For three places this gives:
//
//	3 attendees: rank2 = fee, rank1 = net - fee
//	4 attendees: rank2 = rank3 = fee, rank1 = net - 2*fee
//	5+ attendees: rank3 = fee, r = net - fee, rank1 = 0.65r, rank2 = 0.35r
//
// Amounts are truncated to cents, so the table never exceeds the net pool.
func (pc *PrizeCalculator) Distribute(entryFee decimal.Decimal, attendees, prizePlaces int) PrizeTable {
	table := PrizeTable{}
	if attendees <= 0 || prizePlaces <= 0 || !entryFee.IsPositive() {
		return table
	}

	net := pc.NetPool(entryFee, attendees)
	switch {
	case prizePlaces == 1 || attendees < 3:
		table.set(1, net)
	case prizePlaces == 2:
		moneyBack(table, entryFee, net, attendees, prizePlaces)
	default:
		if !splitSurplus(table, entryFee, net, attendees, prizePlaces) {
			moneyBack(table, entryFee, net, attendees, prizePlaces)
		}
	}
	return table
}

// moneyBack pays ranks 2..k their entry fee and rank 1 the remainder, where
// k is bounded by the places, the attendees beyond the winner and by how
// many fees the net pool covers.
func moneyBack(table PrizeTable, fee, net decimal.Decimal, attendees, places int) {
	k := min(places, attendees-1, int(net.Div(fee).IntPart()))
	if k < 1 {
		k = 1
	}
	for rank := 2; rank <= k; rank++ {
		table.set(rank, fee)
	}
	table.set(1, net.Sub(fee.Mul(decimal.NewFromInt(int64(k-1)))))
}

// splitSurplus applies the 65/35 split when every place can be filled and
// rank 2 still wins at least the entry fee. It reports whether it did.
func splitSurplus(table PrizeTable, fee, net decimal.Decimal, attendees, places int) bool {
	if attendees < places+2 {
		return false
	}
	remainder := net.Sub(fee.Mul(decimal.NewFromInt(int64(places - 2))))
	second := remainder.Mul(secondPlaceShare).Truncate(2)
	if second.LessThan(fee) {
		return false
	}
	for rank := 3; rank <= places; rank++ {
		table.set(rank, fee)
	}
	table.set(1, remainder.Mul(firstPlaceShare))
	table.set(2, second)
	return true
}
