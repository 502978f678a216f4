// Package calc contains the metric calculator family: windowed deltas,
// monetary aggregates and backing ratios, FX volatility and trend, local
// pressure against a basket, and per-series data health. Calculators are
// synchronous, side-effect-free functions over fully loaded in-memory
// series; they share no mutable state, so the orchestrator may run them
// concurrently against the same inputs.
package calc

import (
	"context"
	"time"

	"macromon/internal/calendar"
	"macromon/internal/metrics"
	"macromon/internal/series"
)

// Inputs is the shared, read-only input of one computation run: every raw
// series the run's calculators declared, loaded once, plus the business-day
// calendar and the wall-clock anchor for freshness.
type Inputs struct {
	Calendar *calendar.Calendar
	Series   map[string]*series.Series
	Now      time.Time
}

// Get returns the loaded series for id, or an empty series when the store
// had nothing. Callers never see nil.
func (in *Inputs) Get(id string) *series.Series {
	if s, ok := in.Series[id]; ok && s != nil {
		return s
	}
	return series.New(id, nil)
}

// Calculator computes one metric family from loaded inputs.
//
// A calculator declares the raw series it needs up front; the orchestrator
// loads the union of all declarations exactly once per run. Compute returns
// an AlignmentFailure-classified error to skip the whole family for the
// run; single-date problems are skipped inside Compute and never surface as
// errors.
type Calculator interface {
	// Name identifies the calculator family in logs and run summaries.
	Name() string

	// RequiredSeries lists the raw series ids this calculator reads.
	RequiredSeries() []string

	// Compute derives metric points from the loaded inputs.
	Compute(ctx context.Context, in *Inputs) ([]metrics.Point, error)
}
