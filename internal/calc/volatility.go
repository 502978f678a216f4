package calc

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"macromon/internal/errors"
	"macromon/internal/metrics"
	"macromon/internal/stats"
)

// DefaultVolatilityWindows are the rolling windows, in business days of
// available history, over which FX return dispersion is computed.
var DefaultVolatilityWindows = []int{7, 30}

// VolatilityCalculator computes the rolling dispersion of an FX series'
// log returns. The population standard deviation is used on purpose: each
// window is treated as the complete population of that window, not a
// sample.
type VolatilityCalculator struct {
	prefix   string
	seriesID string
	windows  []int
	logger   *slog.Logger
}

// NewVolatilityCalculator creates a volatility calculator. prefix becomes
// the metric id prefix (e.g. "fx" -> fx.vol_7d).
func NewVolatilityCalculator(prefix, seriesID string, windows []int, logger *slog.Logger) *VolatilityCalculator {
	if logger == nil {
		logger = slog.Default()
	}
	if len(windows) == 0 {
		windows = DefaultVolatilityWindows
	}
	return &VolatilityCalculator{prefix: prefix, seriesID: seriesID, windows: windows, logger: logger}
}

// Name implements Calculator.
func (c *VolatilityCalculator) Name() string { return "volatility_" + c.prefix }

// RequiredSeries implements Calculator.
func (c *VolatilityCalculator) RequiredSeries() []string { return []string{c.seriesID} }

// Compute implements Calculator.
func (c *VolatilityCalculator) Compute(ctx context.Context, in *Inputs) ([]metrics.Point, error) {
	s := in.Get(c.seriesID)
	if s.IsEmpty() {
		return nil, errors.AlignmentFailure(c.Name(), fmt.Sprintf("series %s has no points in range", c.seriesID))
	}

	// Log returns with the date of the later price of each pair. Pairs with
	// a non-positive price are skipped, matching stats.LogReturns.
	points := s.Points()
	var returns []float64
	var returnDates []time.Time
	for i := 1; i < len(points); i++ {
		if points[i].Value <= 0 || points[i-1].Value <= 0 {
			continue
		}
		returns = append(returns, math.Log(points[i].Value/points[i-1].Value))
		returnDates = append(returnDates, points[i].Date)
	}

	var out []metrics.Point
	for _, w := range c.windows {
		metricID := fmt.Sprintf("%s.vol_%dd", c.prefix, w)
		for i := w - 1; i < len(returns); i++ {
			window := returns[i-w+1 : i+1]
			sigma := stats.StdevPopulation(window)
			if !stats.IsFinite(sigma) {
				continue
			}
			out = append(out, metrics.Point{
				MetricID: metricID,
				Date:     returnDates[i],
				Value:    sigma,
				Metadata: metrics.Metadata{
					Sources:    []string{c.seriesID},
					WindowDays: w,
				},
			})
		}
	}
	return out, nil
}

// Trend moving-average windows.
const (
	TrendShortWindow = 14
	TrendLongWindow  = 30
)

// TrendCalculator computes a moving-average crossover over an FX series'
// price level: MA(short) minus MA(long), emitted only once both windows
// have full history. Any non-finite intermediate suppresses that date.
type TrendCalculator struct {
	metricID string
	seriesID string
	short    int
	long     int
	logger   *slog.Logger
}

// NewTrendCalculator creates a trend calculator with the standard 14/30
// windows.
func NewTrendCalculator(metricID, seriesID string, logger *slog.Logger) *TrendCalculator {
	if logger == nil {
		logger = slog.Default()
	}
	return &TrendCalculator{
		metricID: metricID,
		seriesID: seriesID,
		short:    TrendShortWindow,
		long:     TrendLongWindow,
		logger:   logger,
	}
}

// Name implements Calculator.
func (c *TrendCalculator) Name() string { return "trend_" + c.metricID }

// RequiredSeries implements Calculator.
func (c *TrendCalculator) RequiredSeries() []string { return []string{c.seriesID} }

// Compute implements Calculator.
func (c *TrendCalculator) Compute(ctx context.Context, in *Inputs) ([]metrics.Point, error) {
	s := in.Get(c.seriesID)
	if s.Len() < c.long {
		return nil, errors.AlignmentFailure(c.Name(),
			fmt.Sprintf("series %s has %d points, need %d for the long window", c.seriesID, s.Len(), c.long))
	}

	values := s.Values()
	dates := s.Dates()
	shortMA := stats.SimpleMovingAverage(values, c.short)
	longMA := stats.SimpleMovingAverage(values, c.long)

	var out []metrics.Point
	// Index t runs over the original series; both MAs are defined from
	// t = long-1 onward.
	for t := c.long - 1; t < len(values); t++ {
		short := shortMA[t-(c.short-1)]
		long := longMA[t-(c.long-1)]
		v := short - long
		if !stats.IsFinite(short) || !stats.IsFinite(long) || !stats.IsFinite(v) {
			continue
		}
		out = append(out, metrics.Point{
			MetricID: c.metricID,
			Date:     dates[t],
			Value:    v,
			Metadata: metrics.Metadata{
				Sources:    []string{c.seriesID},
				WindowDays: c.long,
			},
		})
	}
	return out, nil
}
