package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"dualbook/pkg/types"
)

const (
	heartbeatInterval = 20 * time.Second // application-layer ping cadence
	readTimeout       = 60 * time.Second // silent server triggers reconnect
	writeTimeout      = 10 * time.Second // deadline for outgoing messages
	initialBackoff    = time.Second
	maxBackoff        = 30 * time.Second
)

// HLFeed maintains the HL venue's book. The protocol is full-snapshot: every
// l2Book push replaces the book wholesale, both sides already sorted and
// truncated by the venue.
type HLFeed struct {
	url    string
	symbol string
	out    *Latest
	logger *slog.Logger

	conn   *websocket.Conn
	connMu sync.Mutex // protects conn writes

	book    types.OrderBook // last published, retained across disconnects
	updates uint64
}

// NewHLFeed creates the HL feed publishing into out.
func NewHLFeed(wsURL, symbol string, out *Latest, logger *slog.Logger) *HLFeed {
	return &HLFeed{
		url:    wsURL,
		symbol: symbol,
		out:    out,
		logger: logger.With("component", "feed_hl"),
	}
}

// Run connects and maintains the feed with auto-reconnect. Blocks until ctx
// is cancelled.
func (f *HLFeed) Run(ctx context.Context) error {
	backoff := initialBackoff

	for {
		sawMessage, err := f.connectAndRead(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		f.publishDisconnected()
		if sawMessage {
			backoff = initialBackoff
		}

		f.logger.Warn("websocket disconnected, reconnecting",
			"error", err,
			"backoff", backoff,
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

// connectAndRead runs one connection's lifetime. Returns whether at least one
// book push was processed, so the caller can reset backoff.
func (f *HLFeed) connectAndRead(ctx context.Context) (bool, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, f.url, nil)
	if err != nil {
		return false, fmt.Errorf("dial: %w", err)
	}

	f.connMu.Lock()
	f.conn = conn
	f.connMu.Unlock()

	done := make(chan struct{})
	defer close(done)
	go func() {
		// Unblocks the read loop promptly on shutdown.
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	defer func() {
		f.connMu.Lock()
		conn.Close()
		f.conn = nil
		f.connMu.Unlock()
	}()

	sub := types.HLSubscribeMsg{
		Method:       "subscribe",
		Subscription: types.HLSubscription{Type: "l2Book", Coin: f.symbol},
	}
	if err := f.writeJSON(sub); err != nil {
		return false, fmt.Errorf("subscribe: %w", err)
	}

	f.logger.Info("websocket connected", "symbol", f.symbol)

	hbCtx, hbCancel := context.WithCancel(ctx)
	defer hbCancel()
	go f.heartbeatLoop(hbCtx, conn)

	sawMessage := false
	for {
		if ctx.Err() != nil {
			return sawMessage, ctx.Err()
		}

		conn.SetReadDeadline(time.Now().Add(readTimeout))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return sawMessage, fmt.Errorf("read: %w", err)
		}

		if f.handleMessage(msg) {
			sawMessage = true
		}
	}
}

// handleMessage parses one frame. Reports whether a book push was applied.
func (f *HLFeed) handleMessage(data []byte) bool {
	var env types.HLEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		f.logger.Warn("discarding undecodable frame", "error", err)
		return false
	}

	switch env.Channel {
	case "l2Book":
		if env.Data == nil {
			f.logger.Warn("l2Book push without data, discarding")
			return false
		}
		return f.applySnapshot(env.Data)
	case "subscriptionResponse", "pong":
		f.logger.Debug("ignoring event", "channel", env.Channel)
	default:
		f.logger.Debug("unknown channel", "channel", env.Channel)
	}
	return false
}

// applySnapshot converts one l2Book push into an OrderBook and publishes it.
// Zero-size levels are dropped silently; a malformed field discards the whole
// push and the previously published book remains current.
func (f *HLFeed) applySnapshot(data *types.HLBookData) bool {
	if len(data.Levels) != 2 {
		f.logger.Warn("malformed l2Book push, discarding", "sides", len(data.Levels))
		return false
	}

	bids, err := parseHLSide(data.Levels[0])
	if err != nil {
		f.logger.Warn("malformed bid level, discarding push", "error", err)
		return false
	}
	asks, err := parseHLSide(data.Levels[1])
	if err != nil {
		f.logger.Warn("malformed ask level, discarding push", "error", err)
		return false
	}

	f.updates++
	f.book = types.OrderBook{
		Bids:         bids,
		Asks:         asks,
		LastUpdateMS: data.Time,
		Connected:    true,
		Updates:      f.updates,
	}
	f.out.Publish(f.book)
	return true
}

func parseHLSide(side []types.HLLevel) ([]types.Level, error) {
	levels := make([]types.Level, 0, len(side))
	for _, l := range side {
		px, err := decimal.NewFromString(l.Px)
		if err != nil {
			return nil, fmt.Errorf("price %q: %w", l.Px, err)
		}
		sz, err := decimal.NewFromString(l.Sz)
		if err != nil {
			return nil, fmt.Errorf("size %q: %w", l.Sz, err)
		}
		if sz.IsZero() {
			continue
		}
		levels = append(levels, types.Level{Price: px, Size: sz})
	}
	return levels, nil
}

// publishDisconnected re-publishes the last book marked disconnected so the
// consumer renders stale levels dimmed instead of a blank panel.
func (f *HLFeed) publishDisconnected() {
	f.updates++
	f.book.Connected = false
	f.book.Updates = f.updates
	f.out.Publish(f.book)
}

// heartbeatLoop sends the application-layer ping until its connection dies.
// A failed send closes the socket so the read loop reconnects.
func (f *HLFeed) heartbeatLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := f.writeJSON(types.HLPingMsg{Method: "ping"}); err != nil {
				f.logger.Warn("heartbeat failed, closing socket", "error", err)
				conn.Close()
				return
			}
		}
	}
}

func (f *HLFeed) writeJSON(v any) error {
	f.connMu.Lock()
	defer f.connMu.Unlock()
	if f.conn == nil {
		return fmt.Errorf("websocket not connected")
	}
	f.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return f.conn.WriteJSON(v)
}
