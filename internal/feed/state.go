package feed

import (
	"log/slog"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"dualbook/pkg/types"
)

// bookState is the PDX feed's internal delta state: per-side maps from
// canonicalized price string to wire size string, plus sequencing metadata.
// Owned exclusively by the feed goroutine; never shared.
type bookState struct {
	bids         map[string]string
	asks         map[string]string
	lastSeq      *uint64
	lastUpdateMS int64
	ready        bool // true once the initial snapshot has been applied
}

func newBookState() *bookState {
	return &bookState{
		bids: make(map[string]string),
		asks: make(map[string]string),
	}
}

// reset clears all state, as on reconnect.
func (s *bookState) reset() {
	s.bids = make(map[string]string)
	s.asks = make(map[string]string)
	s.lastSeq = nil
	s.lastUpdateMS = 0
	s.ready = false
}

// applySnapshot replaces the state wholesale. A snapshot arriving after the
// state is ready is still authoritative.
func (s *bookState) applySnapshot(data *types.PDXBookData, logger *slog.Logger) {
	s.bids = make(map[string]string)
	s.asks = make(map[string]string)
	insertSide(s.bids, data.Bids, logger)
	insertSide(s.asks, data.Asks, logger)
	s.recordMeta(data, logger)
	s.ready = true
}

// applyDelta upserts or removes individual levels. Deltas arriving before the
// first snapshot are discarded; the return reports whether the delta was
// applied.
func (s *bookState) applyDelta(data *types.PDXBookData, logger *slog.Logger) bool {
	if !s.ready {
		logger.Debug("delta before snapshot, discarding")
		return false
	}
	upsertSide(s.bids, data.Bids, logger)
	upsertSide(s.asks, data.Asks, logger)
	s.recordMeta(data, logger)
	return true
}

// recordMeta normalizes the µs wire timestamp to ms and records seq_no.
// Gaps are observed but do not gate updates or force re-subscription.
func (s *bookState) recordMeta(data *types.PDXBookData, logger *slog.Logger) {
	s.lastUpdateMS = data.LastUpdatedAt / 1000
	if data.SeqNo != nil {
		if s.lastSeq != nil && *data.SeqNo > *s.lastSeq+1 {
			logger.Debug("sequence gap",
				"last_seq", *s.lastSeq,
				"seq", *data.SeqNo,
			)
		}
		seq := *data.SeqNo
		s.lastSeq = &seq
	}
}

func insertSide(side map[string]string, entries [][]string, logger *slog.Logger) {
	for _, e := range entries {
		px, sz, ok := parseEntry(e, logger)
		if !ok || sz.IsZero() {
			continue
		}
		side[px] = e[1]
	}
}

func upsertSide(side map[string]string, entries [][]string, logger *slog.Logger) {
	for _, e := range entries {
		px, sz, ok := parseEntry(e, logger)
		if !ok {
			continue
		}
		if sz.IsZero() {
			delete(side, px)
			continue
		}
		side[px] = e[1]
	}
}

// parseEntry validates one [price, size] wire pair. The price is reduced to
// its canonical key; the size is parsed to catch the zero-deletion signal.
// Bad entries are dropped with a warning and never crash the feed.
func parseEntry(e []string, logger *slog.Logger) (string, decimal.Decimal, bool) {
	if len(e) != 2 {
		logger.Warn("dropping malformed book entry", "entry", e)
		return "", decimal.Decimal{}, false
	}
	sz, err := decimal.NewFromString(e[1])
	if err != nil {
		logger.Warn("dropping entry with unparseable size", "price", e[0], "size", e[1])
		return "", decimal.Decimal{}, false
	}
	return canonPrice(e[0]), sz, true
}

// canonPrice strips insignificant trailing zeros so "67242.0" and "67242.00"
// key the same level.
func canonPrice(px string) string {
	if !strings.Contains(px, ".") {
		return px
	}
	px = strings.TrimRight(px, "0")
	px = strings.TrimRight(px, ".")
	if px == "" || px == "-" {
		return "0"
	}
	return px
}

// materialize produces the publishable OrderBook: parse every key with a
// numeric comparator (never lexicographic), bids descending, asks ascending,
// truncated to depth. Unparseable entries are dropped with a warning.
func (s *bookState) materialize(depth int, updates uint64, logger *slog.Logger) types.OrderBook {
	bids := materializeSide(s.bids, logger)
	asks := materializeSide(s.asks, logger)

	sort.Slice(bids, func(i, j int) bool { return bids[i].Price.GreaterThan(bids[j].Price) })
	sort.Slice(asks, func(i, j int) bool { return asks[i].Price.LessThan(asks[j].Price) })

	if len(bids) > depth {
		bids = bids[:depth]
	}
	if len(asks) > depth {
		asks = asks[:depth]
	}

	return types.OrderBook{
		Bids:         bids,
		Asks:         asks,
		LastUpdateMS: s.lastUpdateMS,
		Connected:    true,
		Updates:      updates,
	}
}

func materializeSide(side map[string]string, logger *slog.Logger) []types.Level {
	levels := make([]types.Level, 0, len(side))
	for px, sz := range side {
		price, err := decimal.NewFromString(px)
		if err != nil {
			logger.Warn("dropping level with unparseable price", "price", px)
			continue
		}
		size, err := decimal.NewFromString(sz)
		if err != nil {
			logger.Warn("dropping level with unparseable size", "price", px, "size", sz)
			continue
		}
		levels = append(levels, types.Level{Price: price, Size: size})
	}
	return levels
}
