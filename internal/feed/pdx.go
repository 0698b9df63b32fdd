package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"dualbook/pkg/types"
)

// pdxChannelFormat is the JSON-RPC channel for L2 snapshots: 15 levels at a
// 100ms cadence.
const pdxChannelFormat = "order_book.%s.snapshot@15@100ms"

// PDXFeed maintains the PDX venue's book. The protocol is snapshot-then-
// delta: after subscribing, the server sends one authoritative snapshot
// (update_type "s") followed by incremental deltas (update_type "d") that
// are applied to the feed's private bookState. Every applied message is
// rematerialized to a sorted, truncated OrderBook and published.
type PDXFeed struct {
	url    string
	market string
	depth  int
	out    *Latest
	logger *slog.Logger

	conn   *websocket.Conn
	connMu sync.Mutex // protects conn writes
	reqID  int64

	state   *bookState
	book    types.OrderBook // last published, retained across disconnects
	updates uint64
}

// NewPDXFeed creates the PDX feed publishing into out. Materialized books
// are truncated to depth per side.
func NewPDXFeed(wsURL, market string, depth int, out *Latest, logger *slog.Logger) *PDXFeed {
	return &PDXFeed{
		url:    wsURL,
		market: market,
		depth:  depth,
		out:    out,
		logger: logger.With("component", "feed_pdx"),
		state:  newBookState(),
	}
}

// Run connects and maintains the feed with auto-reconnect. Blocks until ctx
// is cancelled.
func (f *PDXFeed) Run(ctx context.Context) error {
	backoff := initialBackoff

	for {
		sawMessage, err := f.connectAndRead(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		// A fresh snapshot is required after reconnect, so the delta state
		// is invalid from here until the server resends one.
		f.state.reset()
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

func (f *PDXFeed) connectAndRead(ctx context.Context) (bool, error) {
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

	sub := types.PDXRequest{
		JSONRPC: "2.0",
		ID:      f.nextID(),
		Method:  "subscribe",
		Params:  types.PDXSubscribeParams{Channel: fmt.Sprintf(pdxChannelFormat, f.market)},
	}
	if err := f.writeJSON(sub); err != nil {
		return false, fmt.Errorf("subscribe: %w", err)
	}

	f.logger.Info("websocket connected", "market", f.market)

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

// handleMessage parses one frame and routes it by update type. Reports
// whether a book message was applied.
func (f *PDXFeed) handleMessage(data []byte) bool {
	var msg types.PDXMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		f.logger.Warn("discarding undecodable frame", "error", err)
		return false
	}
	if msg.Data == nil {
		// RPC acks and pongs carry no book payload.
		f.logger.Debug("ignoring message without data", "type", msg.Type)
		return false
	}

	switch msg.Data.UpdateType {
	case "s":
		f.state.applySnapshot(msg.Data, f.logger)
	case "d":
		if !f.state.applyDelta(msg.Data, f.logger) {
			return false
		}
	default:
		f.logger.Warn("unknown update_type, discarding", "update_type", msg.Data.UpdateType)
		return false
	}

	f.updates++
	f.book = f.state.materialize(f.depth, f.updates, f.logger)
	f.out.Publish(f.book)
	return true
}

func (f *PDXFeed) publishDisconnected() {
	f.updates++
	f.book.Connected = false
	f.book.Updates = f.updates
	f.out.Publish(f.book)
}

func (f *PDXFeed) heartbeatLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ping := types.PDXRequest{JSONRPC: "2.0", ID: f.nextID(), Method: "ping"}
			if err := f.writeJSON(ping); err != nil {
				f.logger.Warn("heartbeat failed, closing socket", "error", err)
				conn.Close()
				return
			}
		}
	}
}

func (f *PDXFeed) nextID() int64 {
	f.connMu.Lock()
	defer f.connMu.Unlock()
	f.reqID++
	return f.reqID
}

func (f *PDXFeed) writeJSON(v any) error {
	f.connMu.Lock()
	defer f.connMu.Unlock()
	if f.conn == nil {
		return fmt.Errorf("websocket not connected")
	}
	f.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return f.conn.WriteJSON(v)
}
