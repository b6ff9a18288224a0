package store

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"PriceKeeper/internal/model"
)

var errUnavailable = errors.New("no persistent store configured")

// Unavailable stands in when no backend could be opened. Every call fails
// with a storage error so the resolver falls through to the provider.
type Unavailable struct{}

func NewUnavailable() *Unavailable { return &Unavailable{} }

func (Unavailable) fail(op, symbol string) error {
	return model.StorageFailure(op, symbol, errUnavailable)
}

func (u Unavailable) Latest(_ context.Context, symbol string) (*model.PriceRecord, error) {
	return nil, u.fail("latest", symbol)
}

func (u Unavailable) ByDate(_ context.Context, symbol, _ string) (*model.PriceRecord, error) {
	return nil, u.fail("get by date", symbol)
}

func (u Unavailable) Range(_ context.Context, symbol, _, _ string) ([]model.PriceRecord, error) {
	return nil, u.fail("range", symbol)
}

func (u Unavailable) Upsert(_ context.Context, symbol string, _ decimal.Decimal, _ *int64, _ string) (*model.PriceRecord, error) {
	return nil, u.fail("upsert", symbol)
}

func (u Unavailable) HasDataOn(_ context.Context, symbol, _ string) (bool, error) {
	return false, u.fail("has data", symbol)
}

func (u Unavailable) DistinctSymbols(context.Context) ([]string, error) {
	return nil, u.fail("distinct symbols", "")
}

func (u Unavailable) LatestDate(_ context.Context, symbol string) (time.Time, bool, error) {
	return time.Time{}, false, u.fail("latest date", symbol)
}

func (u Unavailable) DeleteOlderThan(context.Context, int) (int64, error) {
	return 0, u.fail("delete", "")
}

func (u Unavailable) MissingDates(_ context.Context, symbol, _, _ string) ([]string, error) {
	return nil, u.fail("missing dates", symbol)
}

func (Unavailable) Close() error { return nil }
