package collector

import (
	"context"

	"github.com/shopspring/decimal"

	"PriceKeeper/internal/model"
)

// Fetcher is the external quote provider. Implementations are stateless per
// call and return *model.Error values classified by kind.
type Fetcher interface {
	FetchCurrentPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
	// FetchChart returns the full provider series for period, ascending by date.
	FetchChart(ctx context.Context, symbol, period string) ([]model.PricePoint, error)
	// FetchSearch returns up to limit provider hits for query, unfiltered.
	FetchSearch(ctx context.Context, query string, limit int) ([]model.SymbolSuggestion, error)
	Name() string
}
