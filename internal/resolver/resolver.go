// Package resolver answers price, chart and search requests from three tiers:
// the expiring cache, the persistent store and the quote provider.
package resolver

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"PriceKeeper/internal/cache"
	"PriceKeeper/internal/collector"
	"PriceKeeper/internal/model"
	"PriceKeeper/internal/period"
	"PriceKeeper/internal/store"
	"PriceKeeper/internal/symbols"
)

// Resolver is safe for concurrent use.
type Resolver struct {
	store   store.Store
	fetcher collector.Fetcher
	merger  *symbols.Merger

	cacheEnabled bool
	prices       *cache.Cache[decimal.Decimal]
	charts       *cache.Cache[[]model.PricePoint]
	searches     *cache.Cache[[]model.SymbolSuggestion]

	// group coalesces concurrent provider misses for the same key.
	group singleflight.Group
	now   func() time.Time
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithClock overrides the clock used for "today" and cache expiry.
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) { r.now = now }
}

// WithCache enables or disables the expiring cache tier.
func WithCache(enabled bool) Option {
	return func(r *Resolver) { r.cacheEnabled = enabled }
}

// New creates a Resolver. The cache tier is on unless disabled with WithCache.
func New(st store.Store, fetcher collector.Fetcher, merger *symbols.Merger, opts ...Option) *Resolver {
	r := &Resolver{
		store:        st,
		fetcher:      fetcher,
		merger:       merger,
		cacheEnabled: true,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.merger == nil {
		r.merger = symbols.NewMerger(symbols.Default(), fetcher)
	}
	r.prices = cache.NewWithClock[decimal.Decimal](r.now)
	r.charts = cache.NewWithClock[[]model.PricePoint](r.now)
	r.searches = cache.NewWithClock[[]model.SymbolSuggestion](r.now)
	return r
}

func (r *Resolver) today() string {
	return model.FormatDate(r.now())
}

// GetCurrentPrice returns today's price for symbol. A record stored for today
// short-circuits the provider; otherwise the fetched price is written back.
func (r *Resolver) GetCurrentPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	symbol = model.NormalizeSymbol(symbol)
	if symbol == "" {
		return decimal.Zero, model.NoData("current price", "", "empty symbol")
	}

	if r.cacheEnabled {
		if p, ok := r.prices.Get(symbol); ok {
			return p, nil
		}
	}

	today := r.today()
	rec, err := r.store.ByDate(ctx, symbol, today)
	if err != nil {
		log.Warn().Err(err).Str("symbol", symbol).Msg("store lookup failed, falling through to provider")
	} else if rec != nil {
		r.cachePrice(symbol, rec.Price)
		return rec.Price, nil
	}

	v, err := r.shared(ctx, "price:"+symbol, "fetch current price", symbol, func(fctx context.Context) (any, error) {
		return r.fetcher.FetchCurrentPrice(fctx, symbol)
	})
	if err != nil {
		return r.stalePrice(ctx, symbol, err)
	}
	price := v.(decimal.Decimal)

	if _, err := r.store.Upsert(ctx, symbol, price, nil, today); err != nil {
		log.Warn().Err(err).Str("symbol", symbol).Msg("price write-back failed")
	}
	r.cachePrice(symbol, price)
	return price, nil
}

// shared runs fn once per key across concurrent callers. fn gets a context
// that outlives any single caller; each caller stops waiting when its own ctx
// is done.
func (r *Resolver) shared(ctx context.Context, key, op, symbol string, fn func(context.Context) (any, error)) (any, error) {
	fctx := context.WithoutCancel(ctx)
	ch := r.group.DoChan(key, func() (any, error) {
		return fn(fctx)
	})
	select {
	case res := <-ch:
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, model.NetworkFailure(op, symbol, ctx.Err())
	}
}

// stalePrice falls back to the newest stored price when the provider fails.
func (r *Resolver) stalePrice(ctx context.Context, symbol string, fetchErr error) (decimal.Decimal, error) {
	fetchErr = model.WithContext(fetchErr, symbol, "")
	latest, err := r.store.Latest(ctx, symbol)
	if err != nil || latest == nil {
		return decimal.Zero, fetchErr
	}
	log.Warn().Err(fetchErr).
		Str("symbol", symbol).
		Str("as_of", model.FormatDate(latest.Date)).
		Msg("provider failed, serving stored price")
	return latest.Price, nil
}

func (r *Resolver) cachePrice(symbol string, price decimal.Decimal) {
	if r.cacheEnabled {
		r.prices.Put(symbol, price)
	}
}

// GetChartData returns the downsampled series for symbol over period p. A
// stored range containing today's record is served as is; otherwise the
// provider series is fetched and persisted in full before filtering.
func (r *Resolver) GetChartData(ctx context.Context, symbol, p string) ([]model.PricePoint, error) {
	symbol = model.NormalizeSymbol(symbol)
	if symbol == "" {
		return nil, model.NoData("chart", "", "empty symbol")
	}
	// requested keeps unknown periods distinct for the point cap; everything
	// else uses the normalized period.
	requested := strings.ToUpper(strings.TrimSpace(p))
	if requested == "" {
		requested = period.Default
	}
	norm := period.Normalize(requested)
	key := symbol + ":" + requested

	if r.cacheEnabled {
		if pts, ok := r.charts.Get(key); ok {
			return slices.Clone(pts), nil
		}
	}

	today := r.today()
	start, end := period.DateRange(norm, r.now())
	recs, err := r.store.Range(ctx, symbol, model.FormatDate(start), model.FormatDate(end))
	if err != nil {
		log.Warn().Err(err).Str("symbol", symbol).Str("period", norm).Msg("store range failed, falling through to provider")
		recs = nil
	}
	if fresh(recs, today) {
		pts := period.Filter(model.Points(recs), requested)
		r.cacheChart(key, pts)
		return pts, nil
	}

	v, err := r.shared(ctx, "chart:"+symbol+":"+norm, "fetch chart", symbol, func(fctx context.Context) (any, error) {
		return r.fetcher.FetchChart(fctx, symbol, norm)
	})
	if err != nil {
		err = model.WithContext(err, symbol, norm)
		if len(recs) == 0 {
			return nil, err
		}
		log.Warn().Err(err).
			Str("symbol", symbol).
			Str("period", norm).
			Int("points", len(recs)).
			Msg("provider failed, serving stored series")
		return period.Filter(model.Points(recs), requested), nil
	}
	// Every coalesced caller receives the same slice.
	full := slices.Clone(v.([]model.PricePoint))

	if n, err := store.BulkUpsert(ctx, r.store, symbol, full); err != nil {
		log.Warn().Err(err).
			Str("symbol", symbol).
			Str("period", norm).
			Int("written", n).
			Int("total", len(full)).
			Msg("chart write-back failed")
	}

	pts := period.Filter(full, requested)
	r.cacheChart(key, pts)
	return pts, nil
}

// fresh reports whether recs holds a record dated today or later.
func fresh(recs []model.PriceRecord, today string) bool {
	for i := len(recs) - 1; i >= 0; i-- {
		if model.FormatDate(recs[i].Date) >= today {
			return true
		}
	}
	return false
}

func (r *Resolver) cacheChart(key string, pts []model.PricePoint) {
	if r.cacheEnabled {
		r.charts.Put(key, slices.Clone(pts))
	}
}

// SearchSymbols merges curated and provider matches for query.
func (r *Resolver) SearchSymbols(ctx context.Context, query string, limit int) []model.SymbolSuggestion {
	if strings.TrimSpace(query) == "" {
		return []model.SymbolSuggestion{}
	}
	if limit <= 0 {
		limit = symbols.DefaultLimit
	}
	key := fmt.Sprintf("%s|%d", strings.ToLower(strings.TrimSpace(query)), limit)

	if r.cacheEnabled {
		if res, ok := r.searches.Get(key); ok {
			return slices.Clone(res)
		}
	}
	// A degraded result would hide provider hits for a full TTL.
	res, complete := r.merger.Search(ctx, query, limit)
	if r.cacheEnabled && complete {
		r.searches.Put(key, slices.Clone(res))
	}
	return res
}
