// dualbook — a real-time dual-venue L2 order-book aggregator.
//
// It maintains live top-of-book state for one instrument on two exchanges
// (HL and PDX), merges the books into a single price-ordered view with
// per-level venue attribution, and derives cross-venue signals (cross-
// exchange spread, liquidity imbalance ratio) refreshed on a fixed tick.
//
// Architecture:
//
//	main.go              — entry point: config, validation, logger, engine, UI
//	config/config.go     — YAML config (viper), range validation
//	venue/validate.go    — startup symbol validation against venue REST inventories
//	feed/hl.go           — HL WebSocket feed (full snapshots) with auto-reconnect
//	feed/pdx.go,state.go — PDX WebSocket feed (snapshot + delta state)
//	feed/latest.go       — single-writer latest-value snapshot slot
//	merge/merge.go       — pure merger + signal derivation per tick
//	engine/engine.go     — goroutine fabric and shutdown orchestration
//	ui/ui.go             — terminal renderer (bubbletea) on the display tick
//
// Exit codes: 0 normal, 1 runtime error, 2 configuration/validation error.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"dualbook/internal/config"
	"dualbook/internal/engine"
	"dualbook/internal/ui"
	"dualbook/internal/venue"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfgPath := "configs/config.yaml"
	if p := os.Getenv("AGG_CONFIG"); p != "" {
		cfgPath = p
	}

	// Logs go to stderr so stdout stays the TUI canvas.
	logger := newLogger()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "error", err, "path", cfgPath)
		return 2
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid config", "error", err)
		return 2
	}
	if cfg.Logging.Format == "json" {
		opts := &slog.HandlerOptions{Level: parseLogLevel(os.Getenv("AGG_LOG"))}
		logger = slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}

	// Validate both symbols before opening any WebSocket.
	validator := venue.NewValidator(cfg.Venues, logger)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	err = validator.Validate(ctx, cfg.Pair.HLSymbol, cfg.Pair.PDXSymbol)
	cancel()
	if err != nil {
		logger.Error("symbol validation failed", "error", err)
		fmt.Fprintf(os.Stderr, "symbol validation failed: %v\n", err)
		return 2
	}

	eng := engine.New(*cfg, logger)
	eng.Start()
	defer eng.Stop()

	logger.Info("aggregator started",
		"hl_symbol", cfg.Pair.HLSymbol,
		"pdx_symbol", cfg.Pair.PDXSymbol,
		"depth", cfg.Display.Depth,
		"tick_ms", cfg.Display.TickMS,
	)

	title := fmt.Sprintf("dualbook  %s (HL) / %s (PDX)", cfg.Pair.HLSymbol, cfg.Pair.PDXSymbol)
	model := ui.New(eng.HLBook(), eng.PDXBook(), cfg.Display.Depth, cfg.Display.Tick(), title, logger)

	// bubbletea handles SIGINT itself and returns from Run; the deferred
	// engine Stop closes both sockets within the grace period.
	p := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		logger.Error("ui error", "error", err)
		return 1
	}

	return 0
}

func newLogger() *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLogLevel(os.Getenv("AGG_LOG"))}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
