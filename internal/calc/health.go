package calc

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"macromon/internal/calendar"
	"macromon/internal/metrics"
	"macromon/internal/series"
)

// Data-health defaults.
const (
	// HealthCoverageWindow is the trailing business-day window for coverage.
	HealthCoverageWindow = 90
	// HealthFreshnessThresholdHours is advisory metadata, not a gate: the
	// metric itself is the hour count.
	HealthFreshnessThresholdHours = 24
)

// HealthCalculator scores the data quality of each monitored raw series:
// freshness (hours since the latest point), coverage over the trailing 90
// business days, and gap structure (count and maximum length of
// calendar-day holes).
type HealthCalculator struct {
	seriesIDs []string
	window    int
	logger    *slog.Logger
}

// NewHealthCalculator creates a data-health calculator over the given
// series.
func NewHealthCalculator(seriesIDs []string, logger *slog.Logger) *HealthCalculator {
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthCalculator{
		seriesIDs: seriesIDs,
		window:    HealthCoverageWindow,
		logger:    logger,
	}
}

// Name implements Calculator.
func (c *HealthCalculator) Name() string { return "health" }

// RequiredSeries implements Calculator.
func (c *HealthCalculator) RequiredSeries() []string { return c.seriesIDs }

// Compute implements Calculator. Series with no points at all are skipped
// individually; health of one series never blocks the others.
func (c *HealthCalculator) Compute(ctx context.Context, in *Inputs) ([]metrics.Point, error) {
	asOf := calendar.Normalize(in.Now)

	var out []metrics.Point
	for _, id := range c.seriesIDs {
		s := in.Get(id)
		if s.IsEmpty() {
			c.logger.DebugContext(ctx, "no points for health scoring", "series", id)
			continue
		}

		latest, _ := s.Latest()
		freshness := in.Now.Sub(latest.Date).Hours()
		out = append(out, metrics.Point{
			MetricID: fmt.Sprintf("health.%s.freshness_hours", id),
			Date:     asOf,
			Value:    freshness,
			Metadata: metrics.Metadata{
				Sources:        []string{id},
				Unit:           metrics.UnitHours,
				ThresholdHours: HealthFreshnessThresholdHours,
			},
		})

		out = append(out, metrics.Point{
			MetricID: fmt.Sprintf("health.%s.coverage_%dd", id, c.window),
			Date:     asOf,
			Value:    c.coverage(in.Calendar, s, asOf),
			Metadata: metrics.Metadata{
				Sources:    []string{id},
				WindowDays: c.window,
				Unit:       metrics.UnitShare,
			},
		})

		gapCount, maxGap := scanGaps(s)
		gapMeta := metrics.Metadata{
			Sources:    []string{id},
			Unit:       metrics.UnitDays,
			GapCount:   gapCount,
			MaxGapDays: maxGap,
		}
		out = append(out, metrics.Point{
			MetricID: fmt.Sprintf("health.%s.gap_count", id),
			Date:     asOf,
			Value:    float64(gapCount),
			Metadata: gapMeta,
		})
		out = append(out, metrics.Point{
			MetricID: fmt.Sprintf("health.%s.max_gap_days", id),
			Date:     asOf,
			Value:    float64(maxGap),
			Metadata: gapMeta,
		})
	}
	return out, nil
}

// coverage is the share of the trailing business-day window that has a
// data point.
func (c *HealthCalculator) coverage(cal *calendar.Calendar, s *series.Series, asOf time.Time) float64 {
	days := cal.BusinessDaysBack(asOf, c.window)
	if len(days) == 0 {
		return 0
	}
	covered := 0
	for _, d := range days {
		if _, ok := s.ValueAt(d); ok {
			covered++
		}
	}
	return float64(covered) / float64(len(days))
}

// scanGaps walks consecutive sorted points and counts calendar-day holes:
// any gap of more than one day between neighbors is one gap event of
// length gap-1 days.
func scanGaps(s *series.Series) (count, maxGap int) {
	points := s.Points()
	for i := 1; i < len(points); i++ {
		days := int(points[i].Date.Sub(points[i-1].Date).Hours() / 24)
		if days > 1 {
			count++
			if days-1 > maxGap {
				maxGap = days - 1
			}
		}
	}
	return count, maxGap
}
