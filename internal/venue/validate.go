// Package venue performs the one-time startup validation of the configured
// symbols against each venue's REST inventory, before any WebSocket is
// opened. An unknown symbol is fatal (exit 2 at the entry point) with a
// sample of valid symbols in the message.
package venue

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"dualbook/internal/config"
)

// sampleSize caps how many valid symbols an error message lists.
const sampleSize = 10

// Validator checks symbols against both venues' REST inventories.
type Validator struct {
	hl     *resty.Client
	pdx    *resty.Client
	logger *slog.Logger
}

// NewValidator builds REST clients for both venues.
func NewValidator(cfg config.VenuesConfig, logger *slog.Logger) *Validator {
	newClient := func(baseURL string) *resty.Client {
		return resty.New().
			SetBaseURL(baseURL).
			SetTimeout(15 * time.Second).
			SetRetryCount(2).
			SetRetryWaitTime(time.Second)
	}
	return &Validator{
		hl:     newClient(cfg.HL.RESTURL),
		pdx:    newClient(cfg.PDX.RESTURL),
		logger: logger.With("component", "venue_validator"),
	}
}

// Validate confirms both symbols exist on their venues.
func (v *Validator) Validate(ctx context.Context, hlSymbol, pdxMarket string) error {
	if err := v.validateHL(ctx, hlSymbol); err != nil {
		return fmt.Errorf("HL: %w", err)
	}
	if err := v.validatePDX(ctx, pdxMarket); err != nil {
		return fmt.Errorf("PDX: %w", err)
	}
	return nil
}

// hlMeta is the response to the HL info request {"type":"meta"}.
type hlMeta struct {
	Universe []struct {
		Name string `json:"name"`
	} `json:"universe"`
}

func (v *Validator) validateHL(ctx context.Context, symbol string) error {
	var meta hlMeta
	resp, err := v.hl.R().
		SetContext(ctx).
		SetBody(map[string]string{"type": "meta"}).
		SetResult(&meta).
		Post("/info")
	if err != nil {
		return fmt.Errorf("fetch universe: %w", err)
	}
	if resp.StatusCode() != 200 {
		return fmt.Errorf("fetch universe: status %d", resp.StatusCode())
	}

	names := make([]string, 0, len(meta.Universe))
	for _, a := range meta.Universe {
		if a.Name == symbol {
			v.logger.Info("symbol validated", "venue", "HL", "symbol", symbol)
			return nil
		}
		names = append(names, a.Name)
	}
	return fmt.Errorf("unknown symbol %q, valid symbols include: %s", symbol, sample(names))
}

// pdxMarkets is the response to the PDX market listing.
type pdxMarkets struct {
	Results []struct {
		Symbol string `json:"symbol"`
	} `json:"results"`
}

func (v *Validator) validatePDX(ctx context.Context, market string) error {
	var markets pdxMarkets
	resp, err := v.pdx.R().
		SetContext(ctx).
		SetResult(&markets).
		Get("/markets")
	if err != nil {
		return fmt.Errorf("fetch markets: %w", err)
	}
	if resp.StatusCode() != 200 {
		return fmt.Errorf("fetch markets: status %d", resp.StatusCode())
	}

	symbols := make([]string, 0, len(markets.Results))
	for _, m := range markets.Results {
		if m.Symbol == market {
			v.logger.Info("symbol validated", "venue", "PDX", "market", market)
			return nil
		}
		symbols = append(symbols, m.Symbol)
	}
	return fmt.Errorf("unknown market %q, valid markets include: %s", market, sample(symbols))
}

func sample(symbols []string) string {
	if len(symbols) > sampleSize {
		symbols = symbols[:sampleSize]
	}
	return strings.Join(symbols, ", ")
}
