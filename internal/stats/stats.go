// Package stats provides the statistical primitives shared by every metric
// calculator: means, standard deviations, moving averages, returns and
// percentiles. All functions are pure and never return NaN for degenerate
// inputs so callers can persist results without re-checking.
package stats

import (
	"math"
	"sort"
)

// Mean returns the arithmetic mean of values, or 0 for an empty slice.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// StdevPopulation returns the population standard deviation (divide by N).
// Inputs with fewer than two elements yield 0.
func StdevPopulation(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	mean := Mean(values)
	sumSquared := 0.0
	for _, v := range values {
		diff := v - mean
		sumSquared += diff * diff
	}
	return math.Sqrt(sumSquared / float64(len(values)))
}

// StdevSample returns the sample standard deviation (divide by N-1).
// Inputs with fewer than two elements yield 0.
func StdevSample(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	mean := Mean(values)
	sumSquared := 0.0
	for _, v := range values {
		diff := v - mean
		sumSquared += diff * diff
	}
	return math.Sqrt(sumSquared / float64(len(values)-1))
}

// SimpleMovingAverage returns the trailing moving average of values.
// Element i of the result is the mean of the window values ending at input
// index i+window-1, so the output has len(values)-window+1 elements.
// Returns nil when the window is invalid or longer than the input.
func SimpleMovingAverage(values []float64, window int) []float64 {
	if window <= 0 || len(values) < window {
		return nil
	}
	out := make([]float64, 0, len(values)-window+1)
	sum := 0.0
	for i, v := range values {
		sum += v
		if i >= window {
			sum -= values[i-window]
		}
		if i >= window-1 {
			out = append(out, sum/float64(window))
		}
	}
	return out
}

// LogReturns computes ln(p[i]/p[i-1]) for consecutive prices. A pair is
// skipped entirely, not zero-filled, when either price is non-positive, so
// the output may be shorter than len(prices)-1.
func LogReturns(prices []float64) []float64 {
	if len(prices) < 2 {
		return nil
	}
	out := make([]float64, 0, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		if prices[i] <= 0 || prices[i-1] <= 0 {
			continue
		}
		out = append(out, math.Log(prices[i]/prices[i-1]))
	}
	return out
}

// SimpleReturns computes p[i]/p[i-1]-1 for consecutive prices, skipping
// pairs whose earlier price is non-positive.
func SimpleReturns(prices []float64) []float64 {
	if len(prices) < 2 {
		return nil
	}
	out := make([]float64, 0, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		if prices[i-1] <= 0 {
			continue
		}
		out = append(out, prices[i]/prices[i-1]-1)
	}
	return out
}

// Percentile returns the p-th percentile (0 <= p <= 100) of values using
// linear interpolation between order statistics of the sorted input.
// The input slice is not modified.
func Percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	if p <= 0 {
		return sorted[0]
	}
	if p >= 100 {
		return sorted[len(sorted)-1]
	}

	rank := p / 100 * float64(len(sorted)-1)
	lower := int(math.Floor(rank))
	upper := int(math.Ceil(rank))
	if lower == upper {
		return sorted[lower]
	}
	frac := rank - float64(lower)
	return sorted[lower] + frac*(sorted[upper]-sorted[lower])
}

// IsFinite reports whether v is neither NaN nor infinite.
func IsFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
