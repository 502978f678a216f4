package calc

import (
	"context"
	"fmt"
	"log/slog"

	"macromon/internal/errors"
	"macromon/internal/metrics"
	"macromon/internal/series"
	"macromon/internal/stats"
)

// alignRequired loads and aligns the given series, failing the calculator
// when any series is entirely absent or the date intersection is empty.
func alignRequired(in *Inputs, name string, ids []string) (*series.AlignedSet, error) {
	loaded := make([]*series.Series, 0, len(ids))
	for _, id := range ids {
		s := in.Get(id)
		if s.IsEmpty() {
			return nil, errors.AlignmentFailure(name, fmt.Sprintf("series %s is absent", id))
		}
		loaded = append(loaded, s)
	}
	aligned := series.AlignMany(loaded)
	if aligned.Len() == 0 {
		return nil, errors.AlignmentFailure(name, "empty date intersection")
	}
	return aligned, nil
}

// RatioCalculator computes base / aggregate over the common date set of the
// base series and the aggregate's components, skipping dates where the
// aggregate is not strictly positive.
type RatioCalculator struct {
	metricID   string
	baseID     string
	components []string
	logger     *slog.Logger
}

// NewRatioCalculator creates a base-vs-aggregate ratio calculator. The
// aggregate is the strict sum of components on each aligned date.
func NewRatioCalculator(metricID, baseID string, components []string, logger *slog.Logger) *RatioCalculator {
	if logger == nil {
		logger = slog.Default()
	}
	return &RatioCalculator{metricID: metricID, baseID: baseID, components: components, logger: logger}
}

// Name implements Calculator.
func (c *RatioCalculator) Name() string { return "ratio_" + c.metricID }

// RequiredSeries implements Calculator.
func (c *RatioCalculator) RequiredSeries() []string {
	return append([]string{c.baseID}, c.components...)
}

// Compute implements Calculator.
func (c *RatioCalculator) Compute(ctx context.Context, in *Inputs) ([]metrics.Point, error) {
	aligned, err := alignRequired(in, c.Name(), c.RequiredSeries())
	if err != nil {
		return nil, err
	}

	var out []metrics.Point
	skipped := 0
	base := aligned.Column(c.baseID)
	for i, d := range aligned.Dates {
		agg := 0.0
		for _, id := range c.components {
			agg += aligned.Column(id)[i]
		}
		if agg <= 0 {
			skipped++
			continue
		}
		v := base[i] / agg
		if !stats.IsFinite(v) {
			skipped++
			continue
		}
		out = append(out, metrics.Point{
			MetricID: c.metricID,
			Date:     d,
			Value:    v,
			Metadata: metrics.Metadata{
				Sources: c.RequiredSeries(),
				Current: base[i],
				Unit:    metrics.UnitRatio,
			},
		})
	}

	if skipped > 0 {
		c.logger.DebugContext(ctx, "ratio dates skipped",
			"calculator", c.Name(),
			"skipped", skipped,
		)
	}
	return out, nil
}

// BackingRatioCalculator computes the reserves-to-base backing ratio:
// the base series converted to foreign-currency terms via the FX rate,
// then reserves divided by that converted base.
type BackingRatioCalculator struct {
	metricID   string
	reservesID string
	baseID     string
	fxID       string
	logger     *slog.Logger
}

// NewBackingRatioCalculator creates a reserves-to-base calculator.
func NewBackingRatioCalculator(metricID, reservesID, baseID, fxID string, logger *slog.Logger) *BackingRatioCalculator {
	if logger == nil {
		logger = slog.Default()
	}
	return &BackingRatioCalculator{
		metricID:   metricID,
		reservesID: reservesID,
		baseID:     baseID,
		fxID:       fxID,
		logger:     logger,
	}
}

// Name implements Calculator.
func (c *BackingRatioCalculator) Name() string { return "backing_" + c.metricID }

// RequiredSeries implements Calculator.
func (c *BackingRatioCalculator) RequiredSeries() []string {
	return []string{c.reservesID, c.baseID, c.fxID}
}

// Compute implements Calculator.
func (c *BackingRatioCalculator) Compute(ctx context.Context, in *Inputs) ([]metrics.Point, error) {
	aligned, err := alignRequired(in, c.Name(), c.RequiredSeries())
	if err != nil {
		return nil, err
	}

	var out []metrics.Point
	skipped := 0
	reserves := aligned.Column(c.reservesID)
	base := aligned.Column(c.baseID)
	fx := aligned.Column(c.fxID)

	for i, d := range aligned.Dates {
		if fx[i] <= 0 {
			skipped++
			continue
		}
		converted := base[i] / fx[i]
		if converted == 0 {
			skipped++
			continue
		}
		v := reserves[i] / converted
		if !stats.IsFinite(v) {
			skipped++
			continue
		}
		out = append(out, metrics.Point{
			MetricID: c.metricID,
			Date:     d,
			Value:    v,
			Metadata: metrics.Metadata{
				Sources: c.RequiredSeries(),
				Unit:    metrics.UnitRatio,
			},
		})
	}

	if skipped > 0 {
		c.logger.DebugContext(ctx, "backing ratio dates skipped",
			"calculator", c.Name(),
			"skipped", skipped,
		)
	}
	return out, nil
}

// CoverageRatioCalculator computes liabilities vs reserves: the sum of the
// liability components divided by reserves converted to local currency via
// the FX rate.
type CoverageRatioCalculator struct {
	metricID    string
	liabilities []string
	reservesID  string
	fxID        string
	logger      *slog.Logger
}

// NewCoverageRatioCalculator creates a liabilities-vs-reserves calculator.
func NewCoverageRatioCalculator(metricID string, liabilities []string, reservesID, fxID string, logger *slog.Logger) *CoverageRatioCalculator {
	if logger == nil {
		logger = slog.Default()
	}
	return &CoverageRatioCalculator{
		metricID:    metricID,
		liabilities: liabilities,
		reservesID:  reservesID,
		fxID:        fxID,
		logger:      logger,
	}
}

// Name implements Calculator.
func (c *CoverageRatioCalculator) Name() string { return "coverage_" + c.metricID }

// RequiredSeries implements Calculator.
func (c *CoverageRatioCalculator) RequiredSeries() []string {
	return append(append([]string{}, c.liabilities...), c.reservesID, c.fxID)
}

// Compute implements Calculator.
func (c *CoverageRatioCalculator) Compute(ctx context.Context, in *Inputs) ([]metrics.Point, error) {
	aligned, err := alignRequired(in, c.Name(), c.RequiredSeries())
	if err != nil {
		return nil, err
	}

	var out []metrics.Point
	skipped := 0
	reserves := aligned.Column(c.reservesID)
	fx := aligned.Column(c.fxID)

	for i, d := range aligned.Dates {
		if fx[i] <= 0 {
			skipped++
			continue
		}
		liabSum := 0.0
		for _, id := range c.liabilities {
			liabSum += aligned.Column(id)[i]
		}
		converted := reserves[i] * fx[i]
		if converted == 0 {
			skipped++
			continue
		}
		v := liabSum / converted
		if !stats.IsFinite(v) {
			skipped++
			continue
		}
		out = append(out, metrics.Point{
			MetricID: c.metricID,
			Date:     d,
			Value:    v,
			Metadata: metrics.Metadata{
				Sources: c.RequiredSeries(),
				Unit:    metrics.UnitRatio,
			},
		})
	}

	if skipped > 0 {
		c.logger.DebugContext(ctx, "coverage ratio dates skipped",
			"calculator", c.Name(),
			"skipped", skipped,
		)
	}
	return out, nil
}
