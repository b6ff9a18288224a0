package period

import (
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PriceKeeper/internal/model"
)

func makeSeries(n int) []model.PricePoint {
	start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]model.PricePoint, n)
	for i := range out {
		out[i] = model.PricePoint{
			Date:  model.FormatDate(start.AddDate(0, 0, i)),
			Price: decimal.NewFromInt(int64(100 + i)),
		}
	}
	return out
}

func TestNormalize(t *testing.T) {
	tests := []struct{ in, want string }{
		{"1D", "1D"},
		{"max", "MAX"},
		{" 5y ", "5Y"},
		{"", "1M"},
		{"7D", "1M"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Normalize(tt.in), "Normalize(%q)", tt.in)
	}
}

func TestRangeInterval(t *testing.T) {
	tests := []struct{ p, rng, interval string }{
		{OneDay, "1d", "5m"},
		{OneWeek, "5d", "15m"},
		{OneMonth, "1mo", "1d"},
		{OneYear, "1y", "1d"},
		{TwoYear, "2y", "1wk"},
		{TenYear, "10y", "1mo"},
		{Max, "max", "1mo"},
		{"bogus", "1mo", "1d"},
	}
	for _, tt := range tests {
		rng, interval := RangeInterval(tt.p)
		assert.Equal(t, tt.rng, rng, tt.p)
		assert.Equal(t, tt.interval, interval, tt.p)
	}
}

func TestLookbackAndMaxPoints(t *testing.T) {
	assert.Equal(t, 7300, LookbackDays(Max))
	assert.Equal(t, 3650, MaxPoints(Max))
	assert.Equal(t, 30, LookbackDays("nope"))
	assert.Equal(t, 100, MaxPoints("nope"))
	assert.Equal(t, 90, MaxPoints(ThreeMonth))
}

func TestDateRange(t *testing.T) {
	now := time.Date(2026, 3, 2, 15, 4, 5, 0, time.UTC)
	start, end := DateRange(OneWeek, now)
	assert.Equal(t, "2026-02-23", model.FormatDate(start))
	assert.Equal(t, "2026-03-02", model.FormatDate(end))
}

func TestFilter_ShortSeriesUnchanged(t *testing.T) {
	for _, p := range All() {
		in := makeSeries(MaxPoints(p))
		assert.Equal(t, in, Filter(in, p), p)
	}
	assert.Empty(t, Filter(nil, OneMonth))
}

func TestFilter_BoundedAndOrdered(t *testing.T) {
	for _, n := range []int{31, 45, 59, 60, 61, 89, 250, 1000} {
		for _, p := range []string{OneDay, OneWeek, OneMonth, ThreeMonth, "x"} {
			t.Run(fmt.Sprintf("%s/%d", p, n), func(t *testing.T) {
				in := makeSeries(n)
				out := Filter(in, p)
				require.NotEmpty(t, out)
				assert.LessOrEqual(t, len(out), MaxPoints(p))
				assert.Equal(t, in[0], out[0], "sampling starts at index 0")
				for i := 1; i < len(out); i++ {
					assert.Less(t, out[i-1].Date, out[i].Date)
				}
			})
		}
	}
}

func TestFilter_ExactMultipleStride(t *testing.T) {
	in := makeSeries(60)
	out := Filter(in, OneMonth)
	require.Len(t, out, 30)
	for i, pt := range out {
		assert.Equal(t, in[i*2], pt)
	}
}

func TestFilter_FloorStrideCappedAtMax(t *testing.T) {
	tests := []struct {
		n, max, step int
	}{
		{31, 30, 1},
		{59, 30, 1},
		{61, 30, 2},
		{100, 30, 3},
		{60, 45, 1},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d/%d", tt.n, tt.max), func(t *testing.T) {
			in := makeSeries(tt.n)
			out := Downsample(in, tt.max)
			require.Len(t, out, tt.max)
			for i, pt := range out {
				assert.Equal(t, in[i*tt.step], pt)
			}
		})
	}
}

func TestFilter_DoesNotMutateInput(t *testing.T) {
	in := makeSeries(100)
	snapshot := append([]model.PricePoint(nil), in...)
	Filter(in, OneWeek)
	assert.Equal(t, snapshot, in)
}
