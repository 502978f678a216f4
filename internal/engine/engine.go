// Package engine orchestrates metric computation runs. A run loads the
// raw series every registered calculator declares, executes the
// calculators in parallel over the shared snapshot, and persists all
// emitted points in a single idempotent batch.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"macromon/internal/calc"
	"macromon/internal/calendar"
	cerrors "macromon/internal/errors"
	"macromon/internal/metrics"
	"macromon/internal/series"
	"macromon/internal/storage"
)

const (
	// defaultLookbackDays bounds how much raw history a run loads
	// before its from-date. It must cover the longest calculator
	// window plus alignment slack.
	defaultLookbackDays = 400

	// loadConcurrency caps parallel series loads per run.
	loadConcurrency = 4
)

// ProgressSink receives run lifecycle events. Implementations must not
// block; the engine publishes from its hot path.
type ProgressSink interface {
	Publish(event RunEvent)
}

// RunEvent describes a single step of a run for observers.
type RunEvent struct {
	RunID      string    `json:"run_id"`
	Stage      string    `json:"stage"`
	Calculator string    `json:"calculator,omitempty"`
	Message    string    `json:"message,omitempty"`
	Points     int       `json:"points,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// SkipRecord captures a calculator that produced no output this run
// and why. Skips never fail the run.
type SkipRecord struct {
	Calculator string       `json:"calculator"`
	Kind       cerrors.Kind `json:"kind"`
	Reason     string       `json:"reason"`
}

// RunResult summarizes a completed run.
type RunResult struct {
	RunID    string        `json:"run_id"`
	From     time.Time     `json:"from"`
	To       time.Time     `json:"to"`
	Points   int           `json:"points"`
	Skipped  []SkipRecord  `json:"skipped,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Engine runs the registered calculators against loaded raw series and
// persists their output.
type Engine struct {
	seriesStore  storage.SeriesStore
	metricsStore storage.MetricsStore
	cal          *calendar.Calendar
	calcs        []calc.Calculator
	logger       *slog.Logger
	sink         ProgressSink
	lookbackDays int
	now          func() time.Time

	tracer        trace.Tracer
	runsTotal     metric.Int64Counter
	pointsWritten metric.Int64Counter
}

// Option configures an Engine.
type Option func(*Engine)

// WithProgressSink attaches a sink for run lifecycle events.
func WithProgressSink(sink ProgressSink) Option {
	return func(e *Engine) { e.sink = sink }
}

// WithLookbackDays overrides how many calendar days of history before
// the run's from-date are loaded.
func WithLookbackDays(days int) Option {
	return func(e *Engine) {
		if days > 0 {
			e.lookbackDays = days
		}
	}
}

// WithClock overrides the engine's notion of now. Freshness metrics
// are measured against it.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// New creates an engine over the given stores and calculators.
func New(seriesStore storage.SeriesStore, metricsStore storage.MetricsStore, cal *calendar.Calendar, calcs []calc.Calculator, logger *slog.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = slog.Default()
	}

	e := &Engine{
		seriesStore:  seriesStore,
		metricsStore: metricsStore,
		cal:          cal,
		calcs:        calcs,
		logger:       logger,
		lookbackDays: defaultLookbackDays,
		now:          time.Now,
		tracer:       otel.Tracer("macromon/engine"),
	}
	for _, opt := range opts {
		opt(e)
	}

	meter := otel.Meter("macromon/engine")
	var err error
	if e.runsTotal, err = meter.Int64Counter("macromon.engine.runs",
		metric.WithDescription("Completed computation runs by outcome")); err != nil {
		logger.Warn("failed to create runs counter", slog.String("error", err.Error()))
	}
	if e.pointsWritten, err = meter.Int64Counter("macromon.engine.points_written",
		metric.WithDescription("Metric points persisted")); err != nil {
		logger.Warn("failed to create points counter", slog.String("error", err.Error()))
	}

	return e
}

// Run executes one computation pass over [from, to]. Calculator-level
// failures in the skip taxonomy are recorded and the run continues;
// any persistence or unclassified failure aborts the run with no
// partial result recorded by this engine.
func (e *Engine) Run(ctx context.Context, from, to time.Time) (*RunResult, error) {
	runID := uuid.NewString()
	from = calendar.Normalize(from)
	to = calendar.Normalize(to)
	if to.Before(from) {
		return nil, fmt.Errorf("invalid run range: from %s is after to %s",
			from.Format(calendar.DateFormat), to.Format(calendar.DateFormat))
	}

	ctx, span := e.tracer.Start(ctx, "engine.Run",
		trace.WithAttributes(
			attribute.String("run.id", runID),
			attribute.String("run.from", from.Format(calendar.DateFormat)),
			attribute.String("run.to", to.Format(calendar.DateFormat)),
		))
	defer span.End()

	logger := e.logger.With(slog.String("run_id", runID))
	started := e.now()
	logger.InfoContext(ctx, "computation run started",
		slog.String("from", from.Format(calendar.DateFormat)),
		slog.String("to", to.Format(calendar.DateFormat)),
		slog.Int("calculators", len(e.calcs)))
	e.publish(RunEvent{RunID: runID, Stage: "started", Timestamp: started})

	loaded, err := e.loadSeries(ctx, from, to)
	if err != nil {
		e.finish(ctx, logger, runID, "load_failed")
		return nil, fmt.Errorf("run %s: loading series: %w", runID, err)
	}
	e.publish(RunEvent{RunID: runID, Stage: "loaded", Message: fmt.Sprintf("%d series loaded", len(loaded)), Timestamp: e.now()})

	inputs := &calc.Inputs{Calendar: e.cal, Series: loaded, Now: e.now()}
	points, skipped, err := e.compute(ctx, logger, runID, inputs, from, to)
	if err != nil {
		e.finish(ctx, logger, runID, "compute_failed")
		return nil, fmt.Errorf("run %s: %w", runID, err)
	}

	sortPoints(points)

	if err := e.metricsStore.UpsertMetricPoints(ctx, points); err != nil {
		e.finish(ctx, logger, runID, "persist_failed")
		return nil, cerrors.PersistenceFailure(fmt.Errorf("run %s: persisting %d points: %w", runID, len(points), err))
	}
	if e.pointsWritten != nil {
		e.pointsWritten.Add(ctx, int64(len(points)))
	}

	result := &RunResult{
		RunID:    runID,
		From:     from,
		To:       to,
		Points:   len(points),
		Skipped:  skipped,
		Duration: e.now().Sub(started),
	}
	e.finish(ctx, logger, runID, "ok")
	logger.InfoContext(ctx, "computation run finished",
		slog.Int("points", result.Points),
		slog.Int("skipped_calculators", len(result.Skipped)),
		slog.Duration("duration", result.Duration))
	e.publish(RunEvent{RunID: runID, Stage: "finished", Points: result.Points, Timestamp: e.now()})

	return result, nil
}

// loadSeries bulk-loads the union of every calculator's required
// series, each exactly once, concurrently.
func (e *Engine) loadSeries(ctx context.Context, from, to time.Time) (map[string]*series.Series, error) {
	ctx, span := e.tracer.Start(ctx, "engine.loadSeries")
	defer span.End()

	ids := e.requiredSeries()
	loadFrom := from.AddDate(0, 0, -e.lookbackDays)

	loaded := make(map[string]*series.Series, len(ids))
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(loadConcurrency)
	for _, id := range ids {
		g.Go(func() error {
			points, err := e.seriesStore.GetSeriesPoints(ctx, id, loadFrom, to)
			if err != nil {
				return fmt.Errorf("series %s: %w", id, err)
			}
			s := series.New(id, points)
			mu.Lock()
			loaded[id] = s
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("series.count", len(loaded)))
	return loaded, nil
}

// compute runs every calculator over the shared inputs. Calculators
// are independent, so they execute in parallel; output order is made
// deterministic afterwards by sortPoints.
func (e *Engine) compute(ctx context.Context, logger *slog.Logger, runID string, inputs *calc.Inputs, from, to time.Time) ([]metrics.Point, []SkipRecord, error) {
	ctx, span := e.tracer.Start(ctx, "engine.compute")
	defer span.End()

	results := make([][]metrics.Point, len(e.calcs))
	skips := make([]*SkipRecord, len(e.calcs))

	g, gctx := errgroup.WithContext(ctx)
	for i, c := range e.calcs {
		g.Go(func() error {
			out, err := c.Compute(gctx, inputs)
			if err != nil {
				if cerrors.AbortsRun(err) {
					return fmt.Errorf("calculator %s: %w", c.Name(), err)
				}
				logger.WarnContext(gctx, "calculator skipped",
					slog.String("calculator", c.Name()),
					slog.String("kind", string(cerrors.KindOf(err))),
					slog.String("reason", err.Error()))
				skips[i] = &SkipRecord{Calculator: c.Name(), Kind: cerrors.KindOf(err), Reason: err.Error()}
				return nil
			}
			results[i] = clampRange(out, from, to)
			e.publish(RunEvent{
				RunID:      runID,
				Stage:      "computed",
				Calculator: c.Name(),
				Points:     len(results[i]),
				Timestamp:  e.now(),
			})
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	var points []metrics.Point
	for _, r := range results {
		points = append(points, r...)
	}
	var skipped []SkipRecord
	for _, s := range skips {
		if s != nil {
			skipped = append(skipped, *s)
		}
	}
	span.SetAttributes(attribute.Int("points.count", len(points)))
	return points, skipped, nil
}

func (e *Engine) requiredSeries() []string {
	seen := make(map[string]struct{})
	var ids []string
	for _, c := range e.calcs {
		for _, id := range c.RequiredSeries() {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

func (e *Engine) finish(ctx context.Context, logger *slog.Logger, runID, outcome string) {
	if e.runsTotal != nil {
		e.runsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	}
	if outcome != "ok" {
		logger.ErrorContext(ctx, "computation run failed", slog.String("outcome", outcome))
		e.publish(RunEvent{RunID: runID, Stage: "failed", Message: outcome, Timestamp: e.now()})
	}
}

func (e *Engine) publish(ev RunEvent) {
	if e.sink != nil {
		e.sink.Publish(ev)
	}
}

// clampRange drops points outside the requested run window. History is
// loaded beyond the window so window-based calculators have their
// references; their emissions before from are not part of this run.
func clampRange(points []metrics.Point, from, to time.Time) []metrics.Point {
	out := points[:0]
	for _, p := range points {
		if p.Date.Before(from) || p.Date.After(to) {
			continue
		}
		out = append(out, p)
	}
	return out
}

// sortPoints orders output by metric id then date so two runs over the
// same inputs persist byte-identical batches.
func sortPoints(points []metrics.Point) {
	sort.Slice(points, func(i, j int) bool {
		if points[i].MetricID != points[j].MetricID {
			return points[i].MetricID < points[j].MetricID
		}
		return points[i].Date.Before(points[j].Date)
	})
}
