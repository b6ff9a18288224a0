package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceRecord is one persisted (symbol, date) price observation.
type PriceRecord struct {
	ID        int64
	Symbol    string
	Price     decimal.Decimal
	Volume    *int64
	Date      time.Time // UTC midnight
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Point projects the record onto the series representation.
func (r *PriceRecord) Point() PricePoint {
	return PricePoint{
		Date:   FormatDate(r.Date),
		Price:  r.Price,
		Volume: r.Volume,
	}
}

// PricePoint represents a single close in a chart series.
type PricePoint struct {
	Date   string          `json:"date"` // YYYY-MM-DD
	Price  decimal.Decimal `json:"price"`
	Volume *int64          `json:"volume,omitempty"`
}

// Points converts records into a series, preserving order.
func Points(records []PriceRecord) []PricePoint {
	points := make([]PricePoint, len(records))
	for i := range records {
		points[i] = records[i].Point()
	}
	return points
}
