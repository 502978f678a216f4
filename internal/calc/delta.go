package calc

import (
	"context"
	"fmt"
	"log/slog"

	"macromon/internal/calendar"
	"macromon/internal/errors"
	"macromon/internal/metrics"
)

// DefaultDeltaWindows are the business-day windows applied to the
// base-money and reserves families.
var DefaultDeltaWindows = []int{7, 30, 90}

// DeltaCalculator computes windowed absolute and percentage change for one
// raw series. For each raw point at date t it looks up the point exactly W
// business days back; when no raw point exists on that reference date the
// (metric, t) pair is skipped outright, with no forward-fill or
// interpolation.
type DeltaCalculator struct {
	family   string
	seriesID string
	windows  []int
	logger   *slog.Logger
}

// NewDeltaCalculator creates a delta calculator for one series family.
// family becomes the metric id prefix (e.g. "base" -> base_30d.pct).
func NewDeltaCalculator(family, seriesID string, windows []int, logger *slog.Logger) *DeltaCalculator {
	if logger == nil {
		logger = slog.Default()
	}
	if len(windows) == 0 {
		windows = DefaultDeltaWindows
	}
	return &DeltaCalculator{
		family:   family,
		seriesID: seriesID,
		windows:  windows,
		logger:   logger,
	}
}

// Name implements Calculator.
func (c *DeltaCalculator) Name() string { return "delta_" + c.family }

// RequiredSeries implements Calculator.
func (c *DeltaCalculator) RequiredSeries() []string { return []string{c.seriesID} }

// Compute implements Calculator.
func (c *DeltaCalculator) Compute(ctx context.Context, in *Inputs) ([]metrics.Point, error) {
	s := in.Get(c.seriesID)
	if s.IsEmpty() {
		return nil, errors.AlignmentFailure(c.Name(), fmt.Sprintf("series %s has no points in range", c.seriesID))
	}

	var out []metrics.Point
	skipped := 0

	for _, w := range c.windows {
		absID := fmt.Sprintf("%s_%dd.abs", c.family, w)
		pctID := fmt.Sprintf("%s_%dd.pct", c.family, w)

		for _, p := range s.Points() {
			refDate := in.Calendar.SubtractBusinessDays(p.Date, w)
			refVal, ok := s.ValueAt(refDate)
			if !ok {
				// No raw point exactly at the reference date.
				skipped++
				continue
			}
			if refVal == 0 {
				skipped++
				continue
			}

			meta := metrics.Metadata{
				Sources:       []string{c.seriesID},
				WindowDays:    w,
				Current:       p.Value,
				Reference:     refVal,
				ReferenceDate: refDate.Format(calendar.DateFormat),
			}

			// Absolute delta on the display scale; percentage delta from the
			// unscaled values so scaling rounding never compounds.
			absMeta := meta
			absMeta.Unit = metrics.UnitMillions
			out = append(out, metrics.Point{
				MetricID: absID,
				Date:     p.Date,
				Value:    ToMillions(p.Value) - ToMillions(refVal),
				Metadata: absMeta,
			})

			pctMeta := meta
			pctMeta.Unit = metrics.UnitPercent
			out = append(out, metrics.Point{
				MetricID: pctID,
				Date:     p.Date,
				Value:    (p.Value/refVal - 1) * 100,
				Metadata: pctMeta,
			})
		}
	}

	if skipped > 0 {
		c.logger.DebugContext(ctx, "delta pairs skipped",
			"calculator", c.Name(),
			"skipped", skipped,
		)
	}

	return out, nil
}
