package marketdata

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Gateway is the market-data capability the portfolio and ledger depend on.
// Every method fails soft: transport errors, non-2xx responses and unexpected
// body shapes are reduced to sentinel returns at this boundary and never
// propagate to callers.
type Gateway interface {
	// Price returns the spot price in the fixed quote currency. ok is false
	// when the lookup fails or the coin is missing from the response.
	Price(ctx context.Context, coinID string) (decimal.Decimal, bool)

	// Trends returns a daily-interval price series over the given range.
	// ok is false for an unsupported range or when the series is unavailable.
	Trends(ctx context.Context, coinID, rng string) ([]PricePoint, bool)

	// TopPerformers returns entries ordered by descending 24h change.
	// Always returns a slice, empty on failure.
	TopPerformers(ctx context.Context, limit int) []MarketEntry

	// Compare returns both coins' market snapshots keyed by coin id, or an
	// empty map unless the response holds exactly two entries.
	Compare(ctx context.Context, coinA, coinB string) map[string]MarketEntry
}

type PricePoint struct {
	Time  time.Time       `json:"time"`
	Price decimal.Decimal `json:"price"`
}

type MarketEntry struct {
	ID             string          `json:"id"`
	Symbol         string          `json:"symbol"`
	Name           string          `json:"name"`
	CurrentPrice   decimal.Decimal `json:"current_price"`
	MarketCap      decimal.Decimal `json:"market_cap"`
	PriceChange24h decimal.Decimal `json:"price_change_percentage_24h"`
}

// SupportedRanges enumerates the historical ranges Trends accepts, mapped to
// the day spans the remote chart endpoint understands.
var SupportedRanges = map[string]string{
	"1h":  "1",
	"24h": "1",
	"7d":  "7",
	"30d": "30",
	"1y":  "365",
}
