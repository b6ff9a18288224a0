package period

import "PriceKeeper/internal/model"

// Filter downsamples series to at most MaxPoints(p) elements. Shorter series
// are returned unchanged. The input slice is never modified.
func Filter(series []model.PricePoint, p string) []model.PricePoint {
	return Downsample(series, MaxPoints(p))
}

// Downsample keeps every step-th point starting at index 0, with
// step = len/maxPoints (at least 1), and stops once maxPoints are taken.
func Downsample(series []model.PricePoint, maxPoints int) []model.PricePoint {
	if maxPoints <= 0 || len(series) <= maxPoints {
		return series
	}
	step := len(series) / maxPoints
	if step < 1 {
		step = 1
	}
	out := make([]model.PricePoint, 0, maxPoints)
	for i := 0; i < len(series) && len(out) < maxPoints; i += step {
		out = append(out, series[i])
	}
	return out
}
