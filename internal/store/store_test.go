package store

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PriceKeeper/internal/model"
)

type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

func newStepClock() *stepClock {
	return &stepClock{now: time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC)}
}

func vol(v int64) *int64 { return &v }

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func openSQLite(t *testing.T, clk *stepClock) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "prices.db"), WithClock(clk.Now))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteStore(t *testing.T) {
	runContract(t, func(t *testing.T, clk *stepClock) Store { return openSQLite(t, clk) })
}

func TestPostgresStore(t *testing.T) {
	url := os.Getenv("PRICEKEEPER_TEST_POSTGRES_URL")
	if url == "" {
		t.Skip("Integration test - set PRICEKEEPER_TEST_POSTGRES_URL")
	}
	runContract(t, func(t *testing.T, clk *stepClock) Store {
		s, err := NewPostgresStore(context.Background(), url, 4, WithClock(clk.Now))
		require.NoError(t, err)
		_, err = s.DeleteOlderThan(context.Background(), 0)
		require.NoError(t, err)
		t.Cleanup(func() { s.Close() })
		return s
	})
}

// runContract exercises behaviour every backend must share.
func runContract(t *testing.T, open func(*testing.T, *stepClock) Store) {
	ctx := context.Background()

	t.Run("upsert twice keeps one record", func(t *testing.T) {
		s := open(t, newStepClock())

		first, err := s.Upsert(ctx, "aapl", dec("150.00"), vol(50_000_000), "2026-03-04")
		require.NoError(t, err)
		assert.Equal(t, "AAPL", first.Symbol)

		second, err := s.Upsert(ctx, "AAPL", dec("151.25"), nil, "2026-03-04")
		require.NoError(t, err)
		assert.Equal(t, first.ID, second.ID)
		assert.True(t, second.Price.Equal(dec("151.25")))
		assert.Nil(t, second.Volume)
		assert.True(t, second.UpdatedAt.After(first.UpdatedAt))
		assert.Equal(t, first.CreatedAt, second.CreatedAt)

		recs, err := s.Range(ctx, "AAPL", "2026-03-01", "2026-03-31")
		require.NoError(t, err)
		require.Len(t, recs, 1)
		assert.True(t, recs[0].Price.Equal(dec("151.25")))
	})

	t.Run("decimal precision survives", func(t *testing.T) {
		s := open(t, newStepClock())
		_, err := s.Upsert(ctx, "MSFT", dec("412.123456789012"), nil, "2026-03-04")
		require.NoError(t, err)

		rec, err := s.ByDate(ctx, "MSFT", "2026-03-04")
		require.NoError(t, err)
		require.NotNil(t, rec)
		assert.Equal(t, "412.123456789012", rec.Price.String())
	})

	t.Run("lookups", func(t *testing.T) {
		s := open(t, newStepClock())
		for _, d := range []string{"2026-03-02", "2026-03-04", "2026-03-03"} {
			_, err := s.Upsert(ctx, "GOOGL", dec("100"), vol(1), d)
			require.NoError(t, err)
		}

		latest, err := s.Latest(ctx, "googl")
		require.NoError(t, err)
		require.NotNil(t, latest)
		assert.Equal(t, "2026-03-04", model.FormatDate(latest.Date))

		none, err := s.Latest(ctx, "NOPE")
		require.NoError(t, err)
		assert.Nil(t, none)

		rec, err := s.ByDate(ctx, "GOOGL", "2026-03-01")
		require.NoError(t, err)
		assert.Nil(t, rec)

		recs, err := s.Range(ctx, "GOOGL", "2026-03-02", "2026-03-03")
		require.NoError(t, err)
		require.Len(t, recs, 2)
		assert.Equal(t, "2026-03-02", model.FormatDate(recs[0].Date))
		assert.Equal(t, "2026-03-03", model.FormatDate(recs[1].Date))

		ok, err := s.HasDataOn(ctx, "GOOGL", "2026-03-03")
		require.NoError(t, err)
		assert.True(t, ok)
		ok, err = s.HasDataOn(ctx, "GOOGL", "2026-03-05")
		require.NoError(t, err)
		assert.False(t, ok)

		d, found, err := s.LatestDate(ctx, "GOOGL")
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, "2026-03-04", model.FormatDate(d))

		_, found, err = s.LatestDate(ctx, "NOPE")
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("invalid dates", func(t *testing.T) {
		s := open(t, newStepClock())

		_, err := s.ByDate(ctx, "AAPL", "2026-02-30")
		assert.ErrorIs(t, err, model.ErrInvalidDate)
		_, err = s.Range(ctx, "AAPL", "yesterday", "2026-03-01")
		assert.ErrorIs(t, err, model.ErrInvalidDate)
		_, err = s.Upsert(ctx, "AAPL", dec("1"), nil, "03/04/2026")
		assert.ErrorIs(t, err, model.ErrInvalidDate)
		_, err = s.MissingDates(ctx, "AAPL", "2026-03-01", "")
		assert.ErrorIs(t, err, model.ErrInvalidDate)
	})

	t.Run("distinct symbols and retention", func(t *testing.T) {
		s := open(t, newStepClock())
		for _, sym := range []string{"TSLA", "AAPL", "MSFT"} {
			_, err := s.Upsert(ctx, sym, dec("10"), nil, "2026-03-04")
			require.NoError(t, err)
			_, err = s.Upsert(ctx, sym, dec("9"), nil, "2025-01-02")
			require.NoError(t, err)
		}

		syms, err := s.DistinctSymbols(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"AAPL", "MSFT", "TSLA"}, syms)

		n, err := s.DeleteOlderThan(ctx, 30)
		require.NoError(t, err)
		assert.Equal(t, int64(3), n)

		n, err = s.DeleteOlderThan(ctx, 0)
		require.NoError(t, err)
		assert.Equal(t, int64(3), n)

		syms, err = s.DistinctSymbols(ctx)
		require.NoError(t, err)
		assert.Empty(t, syms)
	})

	t.Run("missing dates", func(t *testing.T) {
		s := open(t, newStepClock())
		_, err := s.Upsert(ctx, "NVDA", dec("800"), nil, "2026-03-02")
		require.NoError(t, err)
		_, err = s.Upsert(ctx, "NVDA", dec("801"), nil, "2026-03-04")
		require.NoError(t, err)

		missing, err := s.MissingDates(ctx, "NVDA", "2026-03-01", "2026-03-05")
		require.NoError(t, err)
		assert.Equal(t, []string{"2026-03-01", "2026-03-03", "2026-03-05"}, missing)
	})

	t.Run("bulk upsert is sequential", func(t *testing.T) {
		s := open(t, newStepClock())
		points := []model.PricePoint{
			{Date: "2026-03-02", Price: dec("1")},
			{Date: "2026-03-03", Price: dec("2")},
			{Date: "not-a-date", Price: dec("3")},
			{Date: "2026-03-05", Price: dec("4")},
		}
		n, err := BulkUpsert(ctx, s, "AMD", points)
		assert.ErrorIs(t, err, model.ErrInvalidDate)
		assert.Equal(t, 2, n)

		recs, err := s.Range(ctx, "AMD", "2026-03-01", "2026-03-31")
		require.NoError(t, err)
		assert.Len(t, recs, 2, "items before the failure stay committed")
	})

	t.Run("concurrent upserts of one key", func(t *testing.T) {
		s := open(t, newStepClock())
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, err := s.Upsert(ctx, "INTC", decimal.NewFromInt(int64(20+i)), nil, "2026-03-04")
				assert.NoError(t, err)
			}(i)
		}
		wg.Wait()

		recs, err := s.Range(ctx, "INTC", "2026-03-04", "2026-03-04")
		require.NoError(t, err)
		assert.Len(t, recs, 1)
	})
}

func TestUnavailable(t *testing.T) {
	ctx := context.Background()
	var s Store = NewUnavailable()

	_, err := s.Latest(ctx, "AAPL")
	assert.ErrorIs(t, err, model.ErrStorageFailure)
	_, err = s.Upsert(ctx, "AAPL", dec("1"), nil, "2026-03-04")
	assert.ErrorIs(t, err, model.ErrStorageFailure)
	_, err = s.DeleteOlderThan(ctx, 0)
	assert.ErrorIs(t, err, model.ErrStorageFailure)
	assert.NoError(t, s.Close())
}
