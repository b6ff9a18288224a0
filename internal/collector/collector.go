package collector

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"PriceKeeper/internal/model"
	"PriceKeeper/internal/period"
)

// MockFetcher returns controllable fixed data for development and testing.
// When Chart is nil it synthesises one daily point per lookback day ending today.
type MockFetcher struct {
	Price       decimal.Decimal
	Chart       []model.PricePoint
	Suggestions []model.SymbolSuggestion

	PriceErr  error
	ChartErr  error
	SearchErr error

	Now func() time.Time

	mu          sync.Mutex
	priceCalls  int
	chartCalls  int
	searchCalls int
}

func (m *MockFetcher) Name() string { return "mock" }

func (m *MockFetcher) FetchCurrentPrice(_ context.Context, symbol string) (decimal.Decimal, error) {
	m.mu.Lock()
	m.priceCalls++
	m.mu.Unlock()

	if m.PriceErr != nil {
		return decimal.Zero, model.WithContext(m.PriceErr, symbol, "")
	}
	return m.Price, nil
}

func (m *MockFetcher) FetchChart(_ context.Context, symbol, p string) ([]model.PricePoint, error) {
	m.mu.Lock()
	m.chartCalls++
	m.mu.Unlock()

	if m.ChartErr != nil {
		return nil, model.WithContext(m.ChartErr, symbol, p)
	}
	if m.Chart != nil {
		out := make([]model.PricePoint, len(m.Chart))
		copy(out, m.Chart)
		return out, nil
	}
	return generateMockPoints(m.Price, period.LookbackDays(p), m.now()), nil
}

func (m *MockFetcher) FetchSearch(_ context.Context, _ string, limit int) ([]model.SymbolSuggestion, error) {
	m.mu.Lock()
	m.searchCalls++
	m.mu.Unlock()

	if m.SearchErr != nil {
		return nil, m.SearchErr
	}
	out := m.Suggestions
	if limit >= 0 && len(out) > limit {
		out = out[:limit]
	}
	return append([]model.SymbolSuggestion(nil), out...), nil
}

// Calls reports how many times each fetch method has been invoked.
func (m *MockFetcher) Calls() (price, chart, search int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.priceCalls, m.chartCalls, m.searchCalls
}

func (m *MockFetcher) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now()
}

func generateMockPoints(base decimal.Decimal, days int, now time.Time) []model.PricePoint {
	if days < 1 {
		days = 1
	}
	today := model.Day(now)
	step := decimal.RequireFromString("0.001")
	points := make([]model.PricePoint, days)
	for i := 0; i < days; i++ {
		factor := decimal.NewFromInt(1).Add(step.Mul(decimal.NewFromInt(int64(i - days/2))))
		v := int64(1_000_000)
		points[i] = model.PricePoint{
			Date:   model.FormatDate(today.AddDate(0, 0, -(days - 1 - i))),
			Price:  base.Mul(factor).Round(2),
			Volume: &v,
		}
	}
	return points
}
