// Package types defines shared data structures used across all packages.
//
// This package is the common vocabulary for the aggregator: price levels,
// per-venue order books, the merged cross-venue book, derived signals, and
// the wire payloads of both venue protocols. It has no dependencies on
// internal packages, so it can be imported by any layer.
package types

import (
	"github.com/shopspring/decimal"
)

// Venue identifies which exchange a price level came from. Empty until a
// book is tagged at merge time.
type Venue string

const (
	VenueHL  Venue = "HL"
	VenuePDX Venue = "PDX"
)

// Level is a single resting price level. Price and Size are decimals so that
// venue wire strings round-trip without float drift ("9.5" vs "10.0" sorts
// numerically, "67242.0" and "67242.00" compare equal).
type Level struct {
	Price decimal.Decimal
	Size  decimal.Decimal
	Venue Venue // set only on merged levels
}

// Notional returns price × size in the quote currency.
func (l Level) Notional() decimal.Decimal {
	return l.Price.Mul(l.Size)
}

// OrderBook is the published state of one venue's L2 book.
//
// Invariants: bids strictly descending, asks strictly ascending, no duplicate
// prices within a side, no zero sizes. A crossed book received from the wire
// is kept verbatim; Crossed reports it.
type OrderBook struct {
	Bids         []Level // best first
	Asks         []Level // best first
	LastUpdateMS int64   // venue timestamp normalized to ms since epoch
	Connected    bool
	Updates      uint64 // strictly increasing per publish from the owning feed
}

// BestBid returns the top bid level, ok=false if the side is empty.
func (b OrderBook) BestBid() (Level, bool) {
	if len(b.Bids) == 0 {
		return Level{}, false
	}
	return b.Bids[0], true
}

// BestAsk returns the top ask level, ok=false if the side is empty.
func (b OrderBook) BestAsk() (Level, bool) {
	if len(b.Asks) == 0 {
		return Level{}, false
	}
	return b.Asks[0], true
}

// Crossed reports whether the top of book is crossed (best bid >= best ask).
func (b OrderBook) Crossed() bool {
	if len(b.Bids) == 0 || len(b.Asks) == 0 {
		return false
	}
	return b.Bids[0].Price.GreaterThanOrEqual(b.Asks[0].Price)
}

// Truncate returns a copy of the book capped to depth levels per side.
func (b OrderBook) Truncate(depth int) OrderBook {
	out := b
	out.Bids = copyLevels(b.Bids, depth)
	out.Asks = copyLevels(b.Asks, depth)
	return out
}

// Tagged returns a copy of the book with every level stamped with venue.
func (b OrderBook) Tagged(venue Venue) OrderBook {
	out := b
	out.Bids = copyLevels(b.Bids, len(b.Bids))
	out.Asks = copyLevels(b.Asks, len(b.Asks))
	for i := range out.Bids {
		out.Bids[i].Venue = venue
	}
	for i := range out.Asks {
		out.Asks[i].Venue = venue
	}
	return out
}

func copyLevels(levels []Level, max int) []Level {
	if max > len(levels) {
		max = len(levels)
	}
	out := make([]Level, max)
	copy(out, levels[:max])
	return out
}

// MergedBook is the unified price-ordered view of both venues. Every level
// carries its venue tag; equal prices from different venues stay as separate
// rows, HL before PDX.
type MergedBook struct {
	Bids  []Level
	Asks  []Level
	Depth int // per-side cap the book was built with
}

// Crossed reports whether the merged top of book is crossed. With two venues
// this is the arbitrage condition, not a defect of either input.
func (m MergedBook) Crossed() bool {
	if len(m.Bids) == 0 || len(m.Asks) == 0 {
		return false
	}
	return m.Bids[0].Price.GreaterThanOrEqual(m.Asks[0].Price)
}

// BBO is one venue's best bid and offer. Either side may be absent.
type BBO struct {
	Bid *Level
	Ask *Level
}

// Signals is the cross-venue analytic vector derived on each tick.
type Signals struct {
	// CrossSpread = min(best ask across venues) − max(best bid across venues).
	// Nil when either side is empty on both venues. Negative means the books
	// cross between venues.
	CrossSpread *decimal.Decimal

	// Arb is set when CrossSpread is present and negative.
	Arb bool

	// LIR is the liquidity imbalance ratio over the top-N merged levels:
	// (Σ bid notional − Σ ask notional) / (Σ bid notional + Σ ask notional),
	// zero when the denominator is zero. Always within [-1, 1].
	LIR decimal.Decimal

	HL  BBO
	PDX BBO
}

// HL wire protocol. Subscribe with {"method":"subscribe","subscription":
// {"type":"l2Book","coin":...}}; every push on the l2Book channel is a full
// snapshot, both sides already sorted and truncated by the venue.

// HLSubscribeMsg is the subscription request sent after each connect.
type HLSubscribeMsg struct {
	Method       string         `json:"method"` // "subscribe"
	Subscription HLSubscription `json:"subscription"`
}

// HLSubscription names the channel and instrument.
type HLSubscription struct {
	Type string `json:"type"` // "l2Book"
	Coin string `json:"coin"`
}

// HLPingMsg is the application-layer heartbeat.
type HLPingMsg struct {
	Method string `json:"method"` // "ping"
}

// HLEnvelope is the outer frame of every HL push.
type HLEnvelope struct {
	Channel string      `json:"channel"` // "l2Book", "subscriptionResponse", "pong", ...
	Data    *HLBookData `json:"data,omitempty"`
}

// HLBookData is a complete book snapshot. Levels holds exactly two arrays:
// bids then asks.
type HLBookData struct {
	Coin   string      `json:"coin"`
	Time   int64       `json:"time"` // ms since epoch
	Levels [][]HLLevel `json:"levels"`
}

// HLLevel is one wire price level. Px and Sz are strings to preserve the
// venue's decimal precision; N is the resting order count.
type HLLevel struct {
	Px string `json:"px"`
	Sz string `json:"sz"`
	N  int    `json:"n"`
}

// PDX wire protocol: JSON-RPC 2.0. Subscribe to channel
// order_book.<market>.snapshot@15@100ms; the server replies with one
// snapshot (update_type "s") followed by deltas (update_type "d").

// PDXRequest is an outgoing JSON-RPC 2.0 request (subscribe, ping).
type PDXRequest struct {
	JSONRPC string `json:"jsonrpc"` // "2.0"
	ID      int64  `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

// PDXSubscribeParams carries the channel name for a subscribe request.
type PDXSubscribeParams struct {
	Channel string `json:"channel"`
}

// PDXMessage is an incoming book message.
type PDXMessage struct {
	Type string       `json:"type"`
	Data *PDXBookData `json:"data,omitempty"`
}

// PDXBookData is the payload of both snapshots and deltas. Bids and Asks
// are [price, size] string pairs; a size of "0" in a delta deletes the level.
type PDXBookData struct {
	Market        string     `json:"market"`
	SeqNo         *uint64    `json:"seq_no,omitempty"`
	LastUpdatedAt int64      `json:"last_updated_at"` // µs since epoch
	UpdateType    string     `json:"update_type"`     // "s" snapshot, "d" delta
	Bids          [][]string `json:"bids"`
	Asks          [][]string `json:"asks"`
}
