package marketdata

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"
)

// Fake is a deterministic in-process Gateway for tests. A nil Prices map (or
// Unavailable set) makes every lookup fail, mirroring a dead upstream.
type Fake struct {
	Prices      map[string]decimal.Decimal
	Series      map[string][]PricePoint
	Entries     []MarketEntry
	Unavailable bool
}

func (f *Fake) Price(_ context.Context, coinID string) (decimal.Decimal, bool) {
	if f.Unavailable {
		return decimal.Zero, false
	}
	price, ok := f.Prices[coinID]
	return price, ok
}

func (f *Fake) Trends(_ context.Context, coinID, rng string) ([]PricePoint, bool) {
	if f.Unavailable {
		return nil, false
	}
	if _, ok := SupportedRanges[rng]; !ok {
		return nil, false
	}
	series, ok := f.Series[coinID]
	return series, ok
}

func (f *Fake) TopPerformers(_ context.Context, limit int) []MarketEntry {
	if f.Unavailable {
		return []MarketEntry{}
	}
	entries := make([]MarketEntry, len(f.Entries))
	copy(entries, f.Entries)
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].PriceChange24h.GreaterThan(entries[j].PriceChange24h)
	})
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries
}

func (f *Fake) Compare(_ context.Context, coinA, coinB string) map[string]MarketEntry {
	if f.Unavailable {
		return map[string]MarketEntry{}
	}
	result := map[string]MarketEntry{}
	for _, entry := range f.Entries {
		if entry.ID == coinA || entry.ID == coinB {
			result[entry.ID] = entry
		}
	}
	if len(result) != 2 {
		return map[string]MarketEntry{}
	}
	return result
}
