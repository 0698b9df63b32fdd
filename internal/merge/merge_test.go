package merge

import (
	"fmt"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"dualbook/pkg/types"
)

func lvl(price, size string) types.Level {
	return types.Level{
		Price: decimal.RequireFromString(price),
		Size:  decimal.RequireFromString(size),
	}
}

func book(bids, asks []types.Level) types.OrderBook {
	return types.OrderBook{Bids: bids, Asks: asks, Connected: true}
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// render flattens a merged book to a comparable string.
func render(m types.MergedBook, s types.Signals) string {
	var b strings.Builder
	for _, l := range m.Bids {
		fmt.Fprintf(&b, "B %s@%s %s;", l.Venue, l.Price, l.Size)
	}
	for _, l := range m.Asks {
		fmt.Fprintf(&b, "A %s@%s %s;", l.Venue, l.Price, l.Size)
	}
	if s.CrossSpread != nil {
		fmt.Fprintf(&b, "spread=%s;", s.CrossSpread)
	}
	fmt.Fprintf(&b, "lir=%s;arb=%v", s.LIR, s.Arb)
	return b.String()
}

func TestBalancedBook(t *testing.T) {
	t.Parallel()

	hl := book(
		[]types.Level{lvl("100", "1"), lvl("99", "1")},
		[]types.Level{lvl("101", "1"), lvl("102", "1")},
	)
	pdx := book(
		[]types.Level{lvl("100", "1"), lvl("99", "1")},
		[]types.Level{lvl("101", "1"), lvl("102", "1")},
	)

	merged, sig := Build(hl, pdx, 2)

	if sig.CrossSpread == nil || !sig.CrossSpread.Equal(d("1")) {
		t.Errorf("cross spread = %v, want 1", sig.CrossSpread)
	}
	if !sig.LIR.IsZero() {
		t.Errorf("lir = %v, want 0 for a balanced book", sig.LIR)
	}
	if sig.Arb {
		t.Error("balanced book is not an arb")
	}

	// Deterministic tie-break: equal prices keep HL before PDX.
	if len(merged.Bids) != 2 {
		t.Fatalf("merged bids = %d levels, want 2", len(merged.Bids))
	}
	if merged.Bids[0].Venue != types.VenueHL || merged.Bids[1].Venue != types.VenuePDX {
		t.Errorf("tie-break order = [%s, %s], want [HL, PDX]",
			merged.Bids[0].Venue, merged.Bids[1].Venue)
	}
	if !merged.Bids[0].Price.Equal(d("100")) || !merged.Bids[1].Price.Equal(d("100")) {
		t.Error("depth-2 merged bids should both sit at 100")
	}
}

func TestArbitrage(t *testing.T) {
	t.Parallel()

	hl := book(
		[]types.Level{lvl("100.5", "1")},
		[]types.Level{lvl("101", "1")},
	)
	pdx := book(
		[]types.Level{lvl("99", "1")},
		[]types.Level{lvl("100.0", "1")},
	)

	_, sig := Build(hl, pdx, 5)

	if sig.CrossSpread == nil || !sig.CrossSpread.Equal(d("-0.5")) {
		t.Errorf("cross spread = %v, want -0.5", sig.CrossSpread)
	}
	if !sig.Arb {
		t.Error("negative cross spread must set the arb flag")
	}
}

func TestBidHeavyLIR(t *testing.T) {
	t.Parallel()

	// Merged bid notional 10_000, ask notional 2_000 → lir = 8/12.
	hl := book(
		[]types.Level{lvl("100", "60")}, // 6_000
		[]types.Level{lvl("101", "10")}, // 1_010
	)
	pdx := book(
		[]types.Level{lvl("100", "40")},  // 4_000
		[]types.Level{lvl("100", "9.9")}, // 990
	)

	_, sig := Build(hl, pdx, 5)

	want := d("10000").Sub(d("2000")).Div(d("10000").Add(d("2000")))
	if sig.LIR.Sub(want).Abs().GreaterThan(d("0.000000001")) {
		t.Errorf("lir = %v, want %v within 1e-9", sig.LIR, want)
	}
	if sig.LIR.LessThan(d("-1")) || sig.LIR.GreaterThan(d("1")) {
		t.Errorf("lir = %v outside [-1, 1]", sig.LIR)
	}
}

func TestMergedOrderingAndDepth(t *testing.T) {
	t.Parallel()

	hl := book(
		[]types.Level{lvl("100", "1"), lvl("98", "1"), lvl("96", "1")},
		[]types.Level{lvl("101", "1"), lvl("103", "1"), lvl("105", "1")},
	)
	pdx := book(
		[]types.Level{lvl("99", "1"), lvl("97", "1"), lvl("95", "1")},
		[]types.Level{lvl("102", "1"), lvl("104", "1"), lvl("106", "1")},
	)

	merged, _ := Build(hl, pdx, 4)

	if len(merged.Bids) != 4 || len(merged.Asks) != 4 {
		t.Fatalf("merged depth = %d/%d, want 4/4", len(merged.Bids), len(merged.Asks))
	}
	for i := 1; i < len(merged.Bids); i++ {
		if !merged.Bids[i].Price.LessThan(merged.Bids[i-1].Price) {
			t.Errorf("bids not strictly descending at %d: %v", i, merged.Bids)
		}
	}
	for i := 1; i < len(merged.Asks); i++ {
		if !merged.Asks[i].Price.GreaterThan(merged.Asks[i-1].Price) {
			t.Errorf("asks not strictly ascending at %d: %v", i, merged.Asks)
		}
	}

	// Every merged level carries its venue tag.
	for _, l := range append(merged.Bids, merged.Asks...) {
		if l.Venue == "" {
			t.Errorf("merged level %v is missing its venue tag", l)
		}
	}
}

func TestNoAggregationAtEqualPrices(t *testing.T) {
	t.Parallel()

	hl := book([]types.Level{lvl("100", "1")}, nil)
	pdx := book([]types.Level{lvl("100", "2")}, nil)

	merged, _ := Build(hl, pdx, 5)

	if len(merged.Bids) != 2 {
		t.Fatalf("merged bids = %d rows, want 2 distinct rows at the same price", len(merged.Bids))
	}
	if !merged.Bids[0].Size.Equal(d("1")) || !merged.Bids[1].Size.Equal(d("2")) {
		t.Error("equal-price levels must not be summed")
	}
}

func TestEmptyInputs(t *testing.T) {
	t.Parallel()

	merged, sig := Build(types.OrderBook{}, types.OrderBook{}, 5)

	if len(merged.Bids) != 0 || len(merged.Asks) != 0 {
		t.Error("merging empty books should yield an empty book")
	}
	if sig.CrossSpread != nil {
		t.Errorf("cross spread = %v, want absent for empty books", sig.CrossSpread)
	}
	if !sig.LIR.IsZero() {
		t.Errorf("lir = %v, want 0 when notional denominator is 0", sig.LIR)
	}
	if sig.HL.Bid != nil || sig.HL.Ask != nil || sig.PDX.Bid != nil || sig.PDX.Ask != nil {
		t.Error("per-venue BBOs should be absent for empty books")
	}
}

func TestOneSidedInputs(t *testing.T) {
	t.Parallel()

	// Bids exist globally, asks do not: spread is absent, lir is 1.
	hl := book([]types.Level{lvl("100", "1")}, nil)
	merged, sig := Build(hl, types.OrderBook{}, 5)

	if sig.CrossSpread != nil {
		t.Errorf("cross spread = %v, want absent with no asks anywhere", sig.CrossSpread)
	}
	if !sig.LIR.Equal(d("1")) {
		t.Errorf("lir = %v, want 1 for a bid-only merged book", sig.LIR)
	}
	if len(merged.Asks) != 0 {
		t.Error("merged asks should be empty")
	}
}

func TestPerVenueBBOFromOriginalInputs(t *testing.T) {
	t.Parallel()

	// PDX's best bid falls outside the merged depth-1 window but must still
	// appear in its venue BBO.
	hl := book([]types.Level{lvl("100", "1")}, []types.Level{lvl("101", "1")})
	pdx := book([]types.Level{lvl("90", "1")}, []types.Level{lvl("111", "1")})

	_, sig := Build(hl, pdx, 1)

	if sig.PDX.Bid == nil || !sig.PDX.Bid.Price.Equal(d("90")) {
		t.Errorf("PDX BBO bid = %v, want 90 from the original input", sig.PDX.Bid)
	}
	if sig.HL.Ask == nil || !sig.HL.Ask.Price.Equal(d("101")) {
		t.Errorf("HL BBO ask = %v, want 101", sig.HL.Ask)
	}
}

func TestPriceEqualityAcrossPrecision(t *testing.T) {
	t.Parallel()

	// "67242.0" and "67242.00" are the same price; tie-break applies.
	hl := book([]types.Level{lvl("67242.0", "1")}, nil)
	pdx := book([]types.Level{lvl("67242.00", "1")}, nil)

	merged, _ := Build(hl, pdx, 5)

	if len(merged.Bids) != 2 {
		t.Fatalf("merged bids = %d, want 2", len(merged.Bids))
	}
	if merged.Bids[0].Venue != types.VenueHL {
		t.Errorf("tie-break at equal price gave %s first, want HL", merged.Bids[0].Venue)
	}
}

func TestBuildPure(t *testing.T) {
	t.Parallel()

	hl := book(
		[]types.Level{lvl("100", "1"), lvl("99", "3")},
		[]types.Level{lvl("101", "2")},
	)
	pdx := book(
		[]types.Level{lvl("100.5", "1")},
		[]types.Level{lvl("100.75", "4")},
	)

	m1, s1 := Build(hl, pdx, 3)
	m2, s2 := Build(hl, pdx, 3)

	if render(m1, s1) != render(m2, s2) {
		t.Errorf("identical inputs produced different outputs:\n%s\n%s",
			render(m1, s1), render(m2, s2))
	}

	// The inputs themselves are untouched.
	if hl.Bids[0].Venue != "" || pdx.Asks[0].Venue != "" {
		t.Error("Build must not mutate its inputs")
	}
}
