// Package merge derives the unified cross-venue view. Build is a pure
// function over the two latest per-venue snapshots: it retains no state
// between ticks, so the merged output can never drift from its inputs.
package merge

import (
	"sort"

	"github.com/shopspring/decimal"

	"dualbook/pkg/types"
)

// Build produces the merged depth-N book and the signal vector from the two
// venue books. depth is the per-side cap (1..=10 per config).
//
// Equal prices across venues are never aggregated; each venue keeps its own
// row, HL before PDX. Per-venue BBOs come from the original inputs, not the
// truncated merge.
func Build(hl, pdx types.OrderBook, depth int) (types.MergedBook, types.Signals) {
	hlTagged := hl.Tagged(types.VenueHL)
	pdxTagged := pdx.Tagged(types.VenuePDX)

	merged := types.MergedBook{
		Bids:  mergeSide(hlTagged.Bids, pdxTagged.Bids, depth, true),
		Asks:  mergeSide(hlTagged.Asks, pdxTagged.Asks, depth, false),
		Depth: depth,
	}

	sig := types.Signals{
		HL:  bbo(hl),
		PDX: bbo(pdx),
	}
	sig.CrossSpread = crossSpread(hl, pdx)
	sig.Arb = sig.CrossSpread != nil && sig.CrossSpread.IsNegative()
	sig.LIR = lir(merged)

	return merged, sig
}

// mergeSide unions two tagged sides and orders them globally. HL levels are
// appended first, so the stable sort's price-only comparator yields the
// (price, HL-before-PDX, arrival order) tie-break.
func mergeSide(hlSide, pdxSide []types.Level, depth int, descending bool) []types.Level {
	union := make([]types.Level, 0, len(hlSide)+len(pdxSide))
	union = append(union, hlSide...)
	union = append(union, pdxSide...)

	sort.SliceStable(union, func(i, j int) bool {
		if descending {
			return union[i].Price.GreaterThan(union[j].Price)
		}
		return union[i].Price.LessThan(union[j].Price)
	})

	if len(union) > depth {
		union = union[:depth]
	}
	return union
}

// crossSpread is min(best ask across venues) − max(best bid across venues),
// absent when either side is empty on both venues. Negative values mean the
// venues cross (arbitrage).
func crossSpread(hl, pdx types.OrderBook) *decimal.Decimal {
	maxBid, haveBid := bestAcross(hl.BestBid, pdx.BestBid, func(a, b decimal.Decimal) bool {
		return a.GreaterThan(b)
	})
	minAsk, haveAsk := bestAcross(hl.BestAsk, pdx.BestAsk, func(a, b decimal.Decimal) bool {
		return a.LessThan(b)
	})
	if !haveBid || !haveAsk {
		return nil
	}
	spread := minAsk.Sub(maxBid)
	return &spread
}

func bestAcross(hlTop, pdxTop func() (types.Level, bool), better func(a, b decimal.Decimal) bool) (decimal.Decimal, bool) {
	h, hOK := hlTop()
	p, pOK := pdxTop()
	switch {
	case hOK && pOK:
		if better(h.Price, p.Price) {
			return h.Price, true
		}
		return p.Price, true
	case hOK:
		return h.Price, true
	case pOK:
		return p.Price, true
	default:
		return decimal.Decimal{}, false
	}
}

// lir is the liquidity imbalance ratio over the truncated merged sides,
// using price × size notional. Zero denominator yields zero.
func lir(m types.MergedBook) decimal.Decimal {
	var bidNotional, askNotional decimal.Decimal
	for _, l := range m.Bids {
		bidNotional = bidNotional.Add(l.Notional())
	}
	for _, l := range m.Asks {
		askNotional = askNotional.Add(l.Notional())
	}

	denom := bidNotional.Add(askNotional)
	if denom.IsZero() {
		return decimal.Decimal{}
	}
	return bidNotional.Sub(askNotional).Div(denom)
}

func bbo(b types.OrderBook) types.BBO {
	var out types.BBO
	if bid, ok := b.BestBid(); ok {
		out.Bid = &bid
	}
	if ask, ok := b.BestAsk(); ok {
		out.Ask = &ask
	}
	return out
}
