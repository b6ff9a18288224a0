package resolver

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"PriceKeeper/internal/model"
)

// CacheStats reports live entry counts per cache.
type CacheStats struct {
	PriceCount  int `json:"priceCount"`
	ChartCount  int `json:"chartCount"`
	SymbolCount int `json:"symbolCount"`
}

func (r *Resolver) GetCacheStats() CacheStats {
	return CacheStats{
		PriceCount:  r.prices.Size(),
		ChartCount:  r.charts.Size(),
		SymbolCount: r.searches.Size(),
	}
}

func (r *Resolver) ClearCache() {
	r.prices.Clear()
	r.charts.Clear()
	r.searches.Clear()
	log.Info().Msg("caches cleared")
}

// CleanupExpiredCache sweeps expired entries from every cache and returns
// how many were removed.
func (r *Resolver) CleanupExpiredCache() int {
	n := r.prices.Sweep() + r.charts.Sweep() + r.searches.Sweep()
	if n > 0 {
		log.Info().Int("removed", n).Msg("expired cache entries swept")
	}
	return n
}

// CleanupOldData deletes stored records older than daysToKeep days.
// daysToKeep of 0 removes everything.
func (r *Resolver) CleanupOldData(ctx context.Context, daysToKeep int) (int64, error) {
	n, err := r.store.DeleteOlderThan(ctx, daysToKeep)
	if err != nil {
		return 0, fmt.Errorf("cleanup old data: %w", err)
	}
	log.Info().Int("days_to_keep", daysToKeep).Int64("deleted", n).Msg("old price data removed")
	return n, nil
}

// RefreshReport summarises a RefreshSymbols run.
type RefreshReport struct {
	Updated int
	Skipped int
	Failed  int
	Errors  map[string]error
}

// RefreshSymbols stores today's price for every symbol that lacks one. With no
// symbols given it refreshes everything already in the store. Per-symbol
// failures are counted, not returned.
func (r *Resolver) RefreshSymbols(ctx context.Context, syms []string) (RefreshReport, error) {
	report := RefreshReport{Errors: map[string]error{}}
	if len(syms) == 0 {
		var err error
		syms, err = r.store.DistinctSymbols(ctx)
		if err != nil {
			return report, fmt.Errorf("list symbols: %w", err)
		}
	}

	today := r.today()
	for _, sym := range syms {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		sym = model.NormalizeSymbol(sym)
		if sym == "" {
			continue
		}

		has, err := r.store.HasDataOn(ctx, sym, today)
		if err != nil {
			log.Warn().Err(err).Str("symbol", sym).Msg("refresh: existence check failed")
		}
		if has {
			report.Skipped++
			continue
		}

		price, err := r.fetcher.FetchCurrentPrice(ctx, sym)
		if err != nil {
			log.Warn().Err(err).Str("symbol", sym).Msg("refresh: fetch failed")
			report.Failed++
			report.Errors[sym] = err
			continue
		}
		if _, err := r.store.Upsert(ctx, sym, price, nil, today); err != nil {
			log.Warn().Err(err).Str("symbol", sym).Msg("refresh: upsert failed")
			report.Failed++
			report.Errors[sym] = err
			continue
		}
		r.cachePrice(sym, price)
		report.Updated++
	}

	log.Info().
		Int("updated", report.Updated).
		Int("skipped", report.Skipped).
		Int("failed", report.Failed).
		Msg("symbol refresh complete")
	return report, nil
}

// DatabaseStats describes what the store holds.
type DatabaseStats struct {
	SymbolCount int      `json:"symbolCount"`
	Symbols     []string `json:"symbols"`
}

func (r *Resolver) DatabaseStats(ctx context.Context) DatabaseStats {
	syms, err := r.store.DistinctSymbols(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("database stats unavailable")
		return DatabaseStats{Symbols: []string{}}
	}
	return DatabaseStats{SymbolCount: len(syms), Symbols: syms}
}

// CurrentPrices resolves the current price of each symbol. The first failure
// aborts the whole call; no price is ever zero-filled.
func (r *Resolver) CurrentPrices(ctx context.Context, syms []string) (map[string]decimal.Decimal, error) {
	out := make(map[string]decimal.Decimal, len(syms))
	for _, sym := range syms {
		key := model.NormalizeSymbol(sym)
		if _, done := out[key]; done {
			continue
		}
		p, err := r.GetCurrentPrice(ctx, key)
		if err != nil {
			return nil, err
		}
		out[key] = p
	}
	return out, nil
}
