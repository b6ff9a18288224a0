// Package store persists per-(symbol, date) price records.
package store

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"PriceKeeper/internal/model"
)

// Store is the durable price tier. Symbols are upper-cased before use and
// dates are YYYY-MM-DD strings; malformed dates fail with model.ErrInvalidDate.
// Backend failures surface as model.ErrStorageFailure.
type Store interface {
	// Latest returns the most recent record for symbol, or nil.
	Latest(ctx context.Context, symbol string) (*model.PriceRecord, error)
	// ByDate returns the record for symbol on date, or nil.
	ByDate(ctx context.Context, symbol, date string) (*model.PriceRecord, error)
	// Range returns records with start <= date <= end, ascending by date.
	Range(ctx context.Context, symbol, start, end string) ([]model.PriceRecord, error)
	// Upsert inserts the record or, on (symbol, date) conflict, replaces
	// price and volume and refreshes updated_at.
	Upsert(ctx context.Context, symbol string, price decimal.Decimal, volume *int64, date string) (*model.PriceRecord, error)
	HasDataOn(ctx context.Context, symbol, date string) (bool, error)
	// DistinctSymbols lists every symbol with at least one record, ascending.
	DistinctSymbols(ctx context.Context) ([]string, error)
	// LatestDate returns the newest record date for symbol; ok is false when none exist.
	LatestDate(ctx context.Context, symbol string) (date time.Time, ok bool, err error)
	// DeleteOlderThan removes records dated before today minus days.
	// days <= 0 removes every record.
	DeleteOlderThan(ctx context.Context, days int) (int64, error)
	// MissingDates lists calendar dates in [start, end] with no stored record.
	MissingDates(ctx context.Context, symbol, start, end string) ([]string, error)
	Close() error
}

// Option configures a backend.
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock overrides the clock used for timestamps and retention cutoffs.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// BulkUpsert applies Upsert to each point in order. It stops at the first
// failure; points written before it stay committed.
func BulkUpsert(ctx context.Context, s Store, symbol string, points []model.PricePoint) (int, error) {
	n := 0
	for _, p := range points {
		if _, err := s.Upsert(ctx, symbol, p.Price, p.Volume, p.Date); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

func parseRange(start, end string) (time.Time, time.Time, error) {
	s, err := model.ParseDate(start)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	e, err := model.ParseDate(end)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return s, e, nil
}

// missingDates returns every date in [start, end] absent from present.
func missingDates(start, end time.Time, present map[string]bool) []string {
	missing := []string{}
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		key := model.FormatDate(d)
		if !present[key] {
			missing = append(missing, key)
		}
	}
	return missing
}

func retentionCutoff(now time.Time, days int) time.Time {
	return model.Day(now).AddDate(0, 0, -days)
}
