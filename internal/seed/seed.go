// Package seed generates synthetic daily price history for local development.
package seed

import (
	"math/rand"
	"time"

	"github.com/shopspring/decimal"

	"PriceKeeper/internal/model"
)

// DefaultDays is how much history Generate covers when the caller has no preference.
const DefaultDays = 365

var floor = decimal.NewFromInt(1)

// Stock configures one synthetic series.
type Stock struct {
	Symbol     string
	BasePrice  decimal.Decimal
	Volatility float64 // max daily move as a fraction, e.g. 0.02
	BaseVolume int64
}

// DefaultStocks returns the development fixtures.
func DefaultStocks() []Stock {
	return []Stock{
		{Symbol: "AAPL", BasePrice: decimal.RequireFromString("150.00"), Volatility: 0.02, BaseVolume: 50_000_000},
		{Symbol: "MSFT", BasePrice: decimal.RequireFromString("300.00"), Volatility: 0.015, BaseVolume: 30_000_000},
		{Symbol: "GOOGL", BasePrice: decimal.RequireFromString("2500.00"), Volatility: 0.025, BaseVolume: 25_000_000},
	}
}

// Generate walks the price of s from its base over every weekday in
// [start, end]. Each step moves by a uniform random fraction of Volatility
// plus a pull of a tenth of the distance back to the base price. Prices never
// drop below 1.00; volume varies between half and double BaseVolume.
func Generate(s Stock, start, end time.Time, rng *rand.Rand) []model.PricePoint {
	if !s.BasePrice.IsPositive() {
		return nil
	}
	baseVolume := s.BaseVolume
	if baseVolume <= 0 {
		baseVolume = 20_000_000
	}

	var points []model.PricePoint
	price := s.BasePrice
	for d := model.Day(start); !d.After(model.Day(end)); d = d.AddDate(0, 0, 1) {
		if wd := d.Weekday(); wd == time.Saturday || wd == time.Sunday {
			continue
		}

		move := (rng.Float64()*2 - 1) * s.Volatility
		distance, _ := price.Sub(s.BasePrice).Div(s.BasePrice).Float64()
		change := decimal.NewFromFloat(move - distance*0.1)

		price = price.Add(price.Mul(change)).Round(2)
		if price.LessThan(floor) {
			price = floor
		}

		volume := int64(float64(baseVolume) * (0.5 + rng.Float64()*1.5))
		points = append(points, model.PricePoint{
			Date:   model.FormatDate(d),
			Price:  price,
			Volume: &volume,
		})
	}
	return points
}
