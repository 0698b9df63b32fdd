// Package engine is the concurrency fabric binding the venue feeds to the
// renderer.
//
// It spawns one goroutine per venue feed; each feed owns its socket and
// internally runs a heartbeat goroutine scoped to a single connection. The
// feeds never read each other's state; the only shared state is the two
// Latest slots the renderer borrows from on every tick.
//
// Lifecycle: New() → Start() → [runs until quit/signal] → Stop()
package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"dualbook/internal/config"
	"dualbook/internal/feed"
)

// shutdownGrace bounds how long Stop waits for the feed tasks to return
// after cancellation.
const shutdownGrace = 500 * time.Millisecond

// Engine owns the lifecycle of both feed goroutines and the snapshot slots
// they publish into.
type Engine struct {
	hlBook  *feed.Latest
	pdxBook *feed.Latest
	hlFeed  *feed.HLFeed
	pdxFeed *feed.PDXFeed
	logger  *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New wires both feeds to fresh snapshot slots.
func New(cfg config.Config, logger *slog.Logger) *Engine {
	hlBook := feed.NewLatest()
	pdxBook := feed.NewLatest()

	ctx, cancel := context.WithCancel(context.Background())

	return &Engine{
		hlBook:  hlBook,
		pdxBook: pdxBook,
		hlFeed:  feed.NewHLFeed(cfg.Venues.HL.WSURL, cfg.Pair.HLSymbol, hlBook, logger),
		pdxFeed: feed.NewPDXFeed(cfg.Venues.PDX.WSURL, cfg.Pair.PDXSymbol, cfg.Display.Depth, pdxBook, logger),
		logger:  logger.With("component", "engine"),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start launches both feed goroutines.
func (e *Engine) Start() {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		if err := e.hlFeed.Run(e.ctx); err != nil && e.ctx.Err() == nil {
			e.logger.Error("HL feed error", "error", err)
		}
	}()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		if err := e.pdxFeed.Run(e.ctx); err != nil && e.ctx.Err() == nil {
			e.logger.Error("PDX feed error", "error", err)
		}
	}()
}

// Stop cancels both feeds and waits for them to release their sockets,
// bounded by the shutdown grace period.
func (e *Engine) Stop() {
	e.logger.Info("shutting down...")
	e.cancel()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		e.logger.Info("shutdown complete")
	case <-time.After(shutdownGrace):
		e.logger.Warn("feeds did not stop within grace period")
	}
}

// HLBook returns the HL snapshot slot the renderer borrows from.
func (e *Engine) HLBook() *feed.Latest { return e.hlBook }

// PDXBook returns the PDX snapshot slot the renderer borrows from.
func (e *Engine) PDXBook() *feed.Latest { return e.pdxBook }
