// Package period maps chart look-back periods to provider parameters, storage
// date ranges and response sizes, and downsamples over-dense series.
package period

import (
	"strings"
	"time"

	"PriceKeeper/internal/model"
)

// Supported periods. Anything else behaves like OneMonth.
const (
	OneDay     = "1D"
	OneWeek    = "1W"
	OneMonth   = "1M"
	ThreeMonth = "3M"
	SixMonth   = "6M"
	OneYear    = "1Y"
	TwoYear    = "2Y"
	FiveYear   = "5Y"
	TenYear    = "10Y"
	Max        = "MAX"
)

// Default is used for unrecognised periods.
const Default = OneMonth

// defaultMaxPoints caps series for periods outside the vocabulary.
const defaultMaxPoints = 100

type params struct {
	rng, interval string
	lookbackDays  int
	maxPoints     int
}

var table = map[string]params{
	OneDay:     {"1d", "5m", 1, 1},
	OneWeek:    {"5d", "15m", 7, 7},
	OneMonth:   {"1mo", "1d", 30, 30},
	ThreeMonth: {"3mo", "1d", 90, 90},
	SixMonth:   {"6mo", "1d", 180, 180},
	OneYear:    {"1y", "1d", 365, 365},
	TwoYear:    {"2y", "1wk", 730, 730},
	FiveYear:   {"5y", "1wk", 1825, 1825},
	TenYear:    {"10y", "1mo", 3650, 3650},
	Max:        {"max", "1mo", 7300, 3650},
}

// All lists the vocabulary in ascending length.
func All() []string {
	return []string{OneDay, OneWeek, OneMonth, ThreeMonth, SixMonth, OneYear, TwoYear, FiveYear, TenYear, Max}
}

// Valid reports whether p is part of the vocabulary.
func Valid(p string) bool {
	_, ok := table[p]
	return ok
}

// Normalize upper-cases p and falls back to Default when unrecognised.
func Normalize(p string) string {
	p = strings.ToUpper(strings.TrimSpace(p))
	if Valid(p) {
		return p
	}
	return Default
}

// RangeInterval returns the provider (range, interval) pair for p.
func RangeInterval(p string) (rng, interval string) {
	s := lookup(p)
	return s.rng, s.interval
}

// LookbackDays returns how many days before today a stored range starts.
func LookbackDays(p string) int {
	return lookup(p).lookbackDays
}

// MaxPoints returns the largest series length returned for p.
// Unknown periods get defaultMaxPoints rather than the 1M value.
func MaxPoints(p string) int {
	if s, ok := table[p]; ok {
		return s.maxPoints
	}
	return defaultMaxPoints
}

// DateRange returns the inclusive [start, end] calendar range for p ending on
// the UTC date of now.
func DateRange(p string, now time.Time) (start, end time.Time) {
	end = model.Day(now)
	start = end.AddDate(0, 0, -LookbackDays(p))
	return start, end
}

func lookup(p string) params {
	if s, ok := table[p]; ok {
		return s
	}
	return table[Default]
}
