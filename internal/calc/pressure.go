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

// DefaultPressureWindow is the fixed lookback, in aligned business days,
// for the local pressure comparison.
const DefaultPressureWindow = 30

// PressureCalculator measures how much a target FX series moved relative
// to a comparison basket over a fixed window: the target's normalized move
// minus the arithmetic mean of the usable basket members' normalized moves
// on the same aligned date set.
type PressureCalculator struct {
	metricID string
	targetID string
	basket   []string
	window   int
	logger   *slog.Logger
}

// NewPressureCalculator creates a local-pressure calculator. The basket
// needs at least two usable members for the metric to mean anything.
func NewPressureCalculator(metricID, targetID string, basket []string, window int, logger *slog.Logger) *PressureCalculator {
	if logger == nil {
		logger = slog.Default()
	}
	if window <= 0 {
		window = DefaultPressureWindow
	}
	return &PressureCalculator{
		metricID: metricID,
		targetID: targetID,
		basket:   basket,
		window:   window,
		logger:   logger,
	}
}

// Name implements Calculator.
func (c *PressureCalculator) Name() string { return "pressure_" + c.metricID }

// RequiredSeries implements Calculator.
func (c *PressureCalculator) RequiredSeries() []string {
	return append([]string{c.targetID}, c.basket...)
}

// Compute implements Calculator.
func (c *PressureCalculator) Compute(ctx context.Context, in *Inputs) ([]metrics.Point, error) {
	target := in.Get(c.targetID)
	if target.IsEmpty() {
		return nil, errors.AlignmentFailure(c.Name(), fmt.Sprintf("target series %s is absent", c.targetID))
	}

	// Basket members with no data at all drop out of the alignment; fewer
	// than two leaves nothing to compare against.
	var members []*series.Series
	var memberIDs []string
	for _, id := range c.basket {
		s := in.Get(id)
		if s.IsEmpty() {
			c.logger.DebugContext(ctx, "basket member absent", "series", id)
			continue
		}
		members = append(members, s)
		memberIDs = append(memberIDs, id)
	}
	if len(members) < 2 {
		return nil, errors.AlignmentFailure(c.Name(),
			fmt.Sprintf("only %d usable basket members, need at least 2", len(members)))
	}

	aligned := series.AlignMany(append([]*series.Series{target}, members...))
	if aligned.Len() <= c.window {
		return nil, errors.AlignmentFailure(c.Name(),
			fmt.Sprintf("aligned history of %d days is shorter than the %d-day window", aligned.Len(), c.window))
	}

	targetCol := aligned.Column(c.targetID)
	contributed := make(map[string]bool, len(memberIDs))

	var out []metrics.Point
	for t := c.window; t < aligned.Len(); t++ {
		targetRef := targetCol[t-c.window]
		if targetRef == 0 {
			continue
		}
		targetNorm := targetCol[t]/targetRef - 1

		var basketNorms []float64
		for _, id := range memberIDs {
			col := aligned.Column(id)
			ref := col[t-c.window]
			if ref == 0 {
				// Member unusable at this date only.
				continue
			}
			basketNorms = append(basketNorms, col[t]/ref-1)
			contributed[id] = true
		}
		if len(basketNorms) == 0 {
			continue
		}

		v := targetNorm - stats.Mean(basketNorms)
		if !stats.IsFinite(v) {
			continue
		}
		out = append(out, metrics.Point{
			MetricID: c.metricID,
			Date:     aligned.Dates[t],
			Value:    v,
			Metadata: metrics.Metadata{
				Sources:    append([]string{c.targetID}, memberIDs...),
				WindowDays: c.window,
				Unit:       metrics.UnitShare,
			},
		})
	}

	// A basket where fewer than two members were ever usable gives a
	// one-sided comparison; suppress the whole computation.
	if len(contributed) < 2 {
		return nil, errors.AlignmentFailure(c.Name(),
			fmt.Sprintf("only %d basket members were usable across the window", len(contributed)))
	}

	return out, nil
}
