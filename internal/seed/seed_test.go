package seed

import (
	"math/rand"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PriceKeeper/internal/model"
)

func TestGenerate_WeekdaysOnly(t *testing.T) {
	start := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC) // Monday
	end := start.AddDate(0, 0, 13)

	pts := Generate(DefaultStocks()[0], start, end, rand.New(rand.NewSource(1)))
	require.Len(t, pts, 10)

	for i, p := range pts {
		d, err := model.ParseDate(p.Date)
		require.NoError(t, err)
		assert.NotEqual(t, time.Saturday, d.Weekday())
		assert.NotEqual(t, time.Sunday, d.Weekday())
		if i > 0 {
			assert.Less(t, pts[i-1].Date, p.Date)
		}
	}
}

func TestGenerate_Bounds(t *testing.T) {
	s := Stock{Symbol: "TEST", BasePrice: decimal.RequireFromString("100"), Volatility: 0.02, BaseVolume: 1_000_000}
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	pts := Generate(s, start, start.AddDate(1, 0, 0), rand.New(rand.NewSource(42)))
	require.NotEmpty(t, pts)
	for _, p := range pts {
		require.NotNil(t, p.Volume)
		assert.GreaterOrEqual(t, *p.Volume, int64(500_000))
		assert.LessOrEqual(t, *p.Volume, int64(2_000_000))
		assert.True(t, p.Price.GreaterThan(decimal.NewFromInt(50)), "mean reversion keeps %s near base", p.Price)
		assert.True(t, p.Price.LessThan(decimal.NewFromInt(200)))
		assert.LessOrEqual(t, p.Price.Exponent(), int32(0))
		assert.GreaterOrEqual(t, p.Price.Exponent(), int32(-2))
	}
}

func TestGenerate_Floor(t *testing.T) {
	s := Stock{Symbol: "PENNY", BasePrice: decimal.RequireFromString("1.00"), Volatility: 0.9}
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	for _, p := range Generate(s, start, start.AddDate(0, 3, 0), rand.New(rand.NewSource(7))) {
		assert.True(t, p.Price.GreaterThanOrEqual(decimal.NewFromInt(1)), "price %s below floor", p.Price)
	}
}

func TestGenerate_Deterministic(t *testing.T) {
	start := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)
	s := DefaultStocks()[2]

	a := Generate(s, start, end, rand.New(rand.NewSource(99)))
	b := Generate(s, start, end, rand.New(rand.NewSource(99)))
	assert.Equal(t, a, b)
}

func TestGenerate_EmptyRange(t *testing.T) {
	start := time.Date(2026, 3, 7, 0, 0, 0, 0, time.UTC) // Saturday
	assert.Empty(t, Generate(DefaultStocks()[1], start, start.AddDate(0, 0, 1), rand.New(rand.NewSource(1))))
	assert.Empty(t, Generate(DefaultStocks()[1], start, start.AddDate(0, 0, -3), rand.New(rand.NewSource(1))))
}
