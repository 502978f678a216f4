package calc

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"macromon/internal/calendar"
	"macromon/internal/errors"
	"macromon/internal/metrics"
	"macromon/internal/series"
)

// Strategy names a missing-data policy for composite sums. The two
// policies are deliberately different and both are preserved: Strict
// refuses to aggregate at all when a component series is missing from the
// run, PartialSum treats absent components as 0 per date and records them.
type Strategy string

const (
	// StrategyStrict requires every component series to be present; the
	// whole aggregate is skipped for the run otherwise, and per-date values
	// exist only on the components' common date set.
	StrategyStrict Strategy = "strict"
	// StrategyPartialSum sums whichever components have a value at each
	// date, treating absent ones as 0 and listing them in metadata.
	StrategyPartialSum Strategy = "partial_sum"
)

// AggregateCalculator computes a composite sum across component series
// under a named missing-data strategy.
type AggregateCalculator struct {
	metricID   string
	components []string
	strategy   Strategy
	logger     *slog.Logger
}

// NewAggregateCalculator creates an aggregate calculator.
func NewAggregateCalculator(metricID string, components []string, strategy Strategy, logger *slog.Logger) *AggregateCalculator {
	if logger == nil {
		logger = slog.Default()
	}
	return &AggregateCalculator{
		metricID:   metricID,
		components: components,
		strategy:   strategy,
		logger:     logger,
	}
}

// Name implements Calculator.
func (c *AggregateCalculator) Name() string { return "aggregate_" + c.metricID }

// RequiredSeries implements Calculator.
func (c *AggregateCalculator) RequiredSeries() []string { return c.components }

// Compute implements Calculator.
func (c *AggregateCalculator) Compute(ctx context.Context, in *Inputs) ([]metrics.Point, error) {
	switch c.strategy {
	case StrategyStrict:
		return c.computeStrict(in)
	case StrategyPartialSum:
		return c.computePartialSum(in)
	default:
		return nil, errors.AlignmentFailure(c.Name(), fmt.Sprintf("unknown strategy %q", c.strategy))
	}
}

// computeStrict sums all components over their common date set. Any
// entirely absent component skips the whole aggregate for the run.
func (c *AggregateCalculator) computeStrict(in *Inputs) ([]metrics.Point, error) {
	loaded := make([]*series.Series, 0, len(c.components))
	for _, id := range c.components {
		s := in.Get(id)
		if s.IsEmpty() {
			return nil, errors.AlignmentFailure(c.Name(), fmt.Sprintf("component series %s is absent", id))
		}
		loaded = append(loaded, s)
	}

	aligned := series.AlignMany(loaded)
	if aligned.Len() == 0 {
		return nil, errors.AlignmentFailure(c.Name(), "empty date intersection across components")
	}

	out := make([]metrics.Point, 0, aligned.Len())
	for i, d := range aligned.Dates {
		sum := 0.0
		for _, id := range c.components {
			sum += aligned.Column(id)[i]
		}
		out = append(out, metrics.Point{
			MetricID: c.metricID,
			Date:     d,
			Value:    sum,
			Metadata: metrics.Metadata{Sources: c.components},
		})
	}
	return out, nil
}

// computePartialSum sums the components present at each date over the union
// of all component dates, recording the missing component names per date.
func (c *AggregateCalculator) computePartialSum(in *Inputs) ([]metrics.Point, error) {
	loaded := make(map[string]*series.Series, len(c.components))
	anyPresent := false
	for _, id := range c.components {
		s := in.Get(id)
		loaded[id] = s
		if !s.IsEmpty() {
			anyPresent = true
		}
	}
	if !anyPresent {
		return nil, errors.AlignmentFailure(c.Name(), "no component series present")
	}

	// Union of all component dates.
	dateSet := make(map[string]time.Time)
	for _, s := range loaded {
		for _, p := range s.Points() {
			dateSet[p.Date.Format(calendar.DateFormat)] = p.Date
		}
	}
	keys := make([]string, 0, len(dateSet))
	for k := range dateSet {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]metrics.Point, 0, len(keys))
	for _, k := range keys {
		d := dateSet[k]
		sum := 0.0
		var missing []string
		for _, id := range c.components {
			v, ok := loaded[id].ValueAt(d)
			if !ok {
				missing = append(missing, id)
				continue
			}
			sum += v
		}
		out = append(out, metrics.Point{
			MetricID: c.metricID,
			Date:     d,
			Value:    sum,
			Metadata: metrics.Metadata{
				Sources:           c.components,
				MissingComponents: missing,
			},
		})
	}
	return out, nil
}
