package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"macromon/internal/calc"
	"macromon/internal/calendar"
	"macromon/internal/config"
	cerrors "macromon/internal/errors"
	"macromon/internal/metrics"
	"macromon/internal/series"
	"macromon/internal/storage"
	"macromon/internal/storage/memory"
)

func date(s string) time.Time {
	t, err := time.Parse(calendar.DateFormat, s)
	if err != nil {
		panic(err)
	}
	return t
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(discard{}, &slog.HandlerOptions{Level: slog.LevelError}))
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

// fakeCalc lets tests control exactly what a calculator declares and
// emits.
type fakeCalc struct {
	name     string
	required []string
	compute  func(ctx context.Context, in *calc.Inputs) ([]metrics.Point, error)
}

func (f *fakeCalc) Name() string             { return f.name }
func (f *fakeCalc) RequiredSeries() []string { return f.required }
func (f *fakeCalc) Compute(ctx context.Context, in *calc.Inputs) ([]metrics.Point, error) {
	return f.compute(ctx, in)
}

// recordingMetricsStore captures each upsert batch as delivered.
type recordingMetricsStore struct {
	inner   storage.MetricsStore
	batches [][]metrics.Point
}

func (r *recordingMetricsStore) UpsertMetricPoints(ctx context.Context, points []metrics.Point) error {
	batch := make([]metrics.Point, len(points))
	copy(batch, points)
	r.batches = append(r.batches, batch)
	return r.inner.UpsertMetricPoints(ctx, points)
}

// failingSeriesStore simulates a read-side outage.
type failingSeriesStore struct{ err error }

func (f *failingSeriesStore) GetSeriesPoints(context.Context, string, time.Time, time.Time) ([]series.RawPoint, error) {
	return nil, f.err
}

func seedRamp(store *memory.Store, id string, start string, n int, base float64) {
	cal := calendar.New(nil)
	d := calendar.Normalize(date(start))
	points := make([]series.RawPoint, 0, n)
	for i := 0; i < n; i++ {
		for !cal.IsBusinessDay(d) {
			d = d.AddDate(0, 0, 1)
		}
		points = append(points, series.RawPoint{SeriesID: id, Date: d, Value: base + float64(i)})
		d = d.AddDate(0, 0, 1)
	}
	store.SeedSeries(id, points)
}

func TestRunNormalizesTimestampsToDates(t *testing.T) {
	store := memory.NewStore()
	noop := &fakeCalc{
		name:     "noop",
		required: []string{"base_money"},
		compute: func(context.Context, *calc.Inputs) ([]metrics.Point, error) {
			return nil, nil
		},
	}
	eng := New(store, store, calendar.New(nil), []calc.Calculator{noop}, quietLogger())

	from := time.Date(2024, 3, 1, 9, 30, 15, 0, time.UTC)
	to := time.Date(2024, 3, 22, 23, 59, 59, 0, time.UTC)
	result, err := eng.Run(context.Background(), from, to)
	require.NoError(t, err)

	assert.Equal(t, date("2024-03-01"), result.From)
	assert.Equal(t, date("2024-03-22"), result.To)
}

func TestRunPersistsCalculatorOutputOnce(t *testing.T) {
	store := memory.NewStore()
	seedRamp(store, "base_money", "2024-01-01", 60, 5_000_000)

	cal := calendar.New(nil)
	eng := New(store, store, cal,
		[]calc.Calculator{calc.NewDeltaCalculator("base", "base_money", []int{7}, quietLogger())},
		quietLogger())

	result, err := eng.Run(context.Background(), date("2024-03-01"), date("2024-03-22"))
	require.NoError(t, err)

	assert.NotEmpty(t, result.RunID)
	assert.Positive(t, result.Points)
	assert.Empty(t, result.Skipped)
	assert.Equal(t, 1, store.UpsertCount())
	assert.Len(t, store.AllMetricPoints(), result.Points)
}

func TestRunClampsPointsToRequestedRange(t *testing.T) {
	store := memory.NewStore()
	emitted := []metrics.Point{
		{MetricID: "m", Date: date("2024-02-28"), Value: 1},
		{MetricID: "m", Date: date("2024-03-05"), Value: 2},
		{MetricID: "m", Date: date("2024-03-08"), Value: 3},
		{MetricID: "m", Date: date("2024-04-01"), Value: 4},
	}
	fake := &fakeCalc{
		name: "emitter",
		compute: func(context.Context, *calc.Inputs) ([]metrics.Point, error) {
			return emitted, nil
		},
	}

	eng := New(store, store, calendar.New(nil), []calc.Calculator{fake}, quietLogger())
	result, err := eng.Run(context.Background(), date("2024-03-01"), date("2024-03-31"))
	require.NoError(t, err)

	assert.Equal(t, 2, result.Points)
	_, ok := store.MetricPoint("m", date("2024-02-28"))
	assert.False(t, ok, "point before the run window must not be persisted")
	_, ok = store.MetricPoint("m", date("2024-03-05"))
	assert.True(t, ok)
}

func TestRunBatchesAreDeterministic(t *testing.T) {
	store := memory.NewStore()
	seedRamp(store, "fx_official", "2024-01-01", 60, 1200)
	seedRamp(store, "base_money", "2024-01-01", 60, 5_000_000)
	rec := &recordingMetricsStore{inner: store}

	calcs := []calc.Calculator{
		calc.NewDeltaCalculator("base", "base_money", []int{7, 30}, quietLogger()),
		calc.NewVolatilityCalculator("fx", "fx_official", []int{7}, quietLogger()),
	}
	eng := New(store, rec, calendar.New(nil), calcs, quietLogger())

	for i := 0; i < 2; i++ {
		_, err := eng.Run(context.Background(), date("2024-03-01"), date("2024-03-22"))
		require.NoError(t, err)
	}

	require.Len(t, rec.batches, 2)
	assert.Equal(t, rec.batches[0], rec.batches[1],
		"two runs over the same inputs must persist identical batches")
	// Idempotent upsert: re-running does not grow the stored set.
	assert.Len(t, store.AllMetricPoints(), len(rec.batches[0]))
}

func TestRunContinuesPastSkippableFailures(t *testing.T) {
	store := memory.NewStore()
	skipper := &fakeCalc{
		name: "skipper",
		compute: func(context.Context, *calc.Inputs) ([]metrics.Point, error) {
			return nil, cerrors.AlignmentFailure("skipper", "no overlapping dates")
		},
	}
	producer := &fakeCalc{
		name: "producer",
		compute: func(context.Context, *calc.Inputs) ([]metrics.Point, error) {
			return []metrics.Point{{MetricID: "ok", Date: date("2024-03-05"), Value: 1}}, nil
		},
	}

	eng := New(store, store, calendar.New(nil), []calc.Calculator{skipper, producer}, quietLogger())
	result, err := eng.Run(context.Background(), date("2024-03-01"), date("2024-03-31"))
	require.NoError(t, err)

	require.Len(t, result.Skipped, 1)
	assert.Equal(t, "skipper", result.Skipped[0].Calculator)
	assert.Equal(t, cerrors.KindAlignmentFailure, result.Skipped[0].Kind)
	assert.Equal(t, 1, result.Points)
}

func TestRunAbortsOnUnclassifiedCalculatorError(t *testing.T) {
	store := memory.NewStore()
	broken := &fakeCalc{
		name: "broken",
		compute: func(context.Context, *calc.Inputs) ([]metrics.Point, error) {
			return nil, errors.New("index out of range")
		},
	}

	eng := New(store, store, calendar.New(nil), []calc.Calculator{broken}, quietLogger())
	_, err := eng.Run(context.Background(), date("2024-03-01"), date("2024-03-31"))

	require.Error(t, err)
	assert.Equal(t, 0, store.UpsertCount(), "aborted runs must not write")
}

func TestRunAbortsWhenWriteFails(t *testing.T) {
	store := memory.NewStore()
	store.FailWrites(fmt.Errorf("connection reset"))
	producer := &fakeCalc{
		name: "producer",
		compute: func(context.Context, *calc.Inputs) ([]metrics.Point, error) {
			return []metrics.Point{{MetricID: "m", Date: date("2024-03-05"), Value: 1}}, nil
		},
	}

	eng := New(store, store, calendar.New(nil), []calc.Calculator{producer}, quietLogger())
	_, err := eng.Run(context.Background(), date("2024-03-01"), date("2024-03-31"))

	require.Error(t, err)
	assert.Equal(t, cerrors.KindPersistenceFailure, cerrors.KindOf(err))
	assert.True(t, cerrors.AbortsRun(err))
}

func TestRunAbortsWhenLoadFails(t *testing.T) {
	metricsStore := memory.NewStore()
	reader := &failingSeriesStore{err: errors.New("timeout")}
	c := &fakeCalc{
		name:     "needs-data",
		required: []string{"base_money"},
		compute: func(context.Context, *calc.Inputs) ([]metrics.Point, error) {
			t.Fatal("calculator must not run when loading fails")
			return nil, nil
		},
	}

	eng := New(reader, metricsStore, calendar.New(nil), []calc.Calculator{c}, quietLogger())
	_, err := eng.Run(context.Background(), date("2024-03-01"), date("2024-03-31"))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "base_money")
}

func TestRunRejectsInvertedRange(t *testing.T) {
	store := memory.NewStore()
	eng := New(store, store, calendar.New(nil), nil, quietLogger())

	_, err := eng.Run(context.Background(), date("2024-03-31"), date("2024-03-01"))
	assert.Error(t, err)
}

func TestRunLoadsEachSeriesOnce(t *testing.T) {
	store := memory.NewStore()
	seedRamp(store, "base_money", "2024-01-01", 40, 100)

	var loads []string
	counting := &countingSeriesStore{inner: store, loads: &loads}

	a := &fakeCalc{name: "a", required: []string{"base_money"},
		compute: func(context.Context, *calc.Inputs) ([]metrics.Point, error) { return nil, nil }}
	b := &fakeCalc{name: "b", required: []string{"base_money"},
		compute: func(context.Context, *calc.Inputs) ([]metrics.Point, error) { return nil, nil }}

	eng := New(counting, store, calendar.New(nil), []calc.Calculator{a, b}, quietLogger())
	_, err := eng.Run(context.Background(), date("2024-02-01"), date("2024-02-20"))
	require.NoError(t, err)

	assert.Equal(t, []string{"base_money"}, loads,
		"shared series must be loaded exactly once per run")
}

type countingSeriesStore struct {
	inner storage.SeriesStore
	loads *[]string
}

func (c *countingSeriesStore) GetSeriesPoints(ctx context.Context, id string, from, to time.Time) ([]series.RawPoint, error) {
	*c.loads = append(*c.loads, id)
	return c.inner.GetSeriesPoints(ctx, id, from, to)
}

func TestRunPublishesProgressEvents(t *testing.T) {
	store := memory.NewStore()
	producer := &fakeCalc{
		name: "producer",
		compute: func(context.Context, *calc.Inputs) ([]metrics.Point, error) {
			return []metrics.Point{{MetricID: "m", Date: date("2024-03-05"), Value: 1}}, nil
		},
	}
	sink := &captureSink{}

	eng := New(store, store, calendar.New(nil), []calc.Calculator{producer}, quietLogger(),
		WithProgressSink(sink))
	result, err := eng.Run(context.Background(), date("2024-03-01"), date("2024-03-31"))
	require.NoError(t, err)

	stages := make([]string, 0, len(sink.events))
	for _, ev := range sink.events {
		assert.Equal(t, result.RunID, ev.RunID)
		stages = append(stages, ev.Stage)
	}
	assert.Equal(t, []string{"started", "loaded", "computed", "finished"}, stages)
}

type captureSink struct {
	events []RunEvent
}

func (c *captureSink) Publish(ev RunEvent) { c.events = append(c.events, ev) }

func TestBuildCalculatorsCoversAllFamilies(t *testing.T) {
	cfg := config.Engine{
		BaseSeries:        "base_money",
		ReservesSeries:    "intl_reserves",
		FXSeries:          "fx_official",
		LiabilitySeries:   []string{"cb_bills", "cb_repos", "cb_deposits"},
		PressureBasket:    []string{"fx_brl", "fx_mxn", "fx_clp"},
		DeltaWindows:      []int{7, 30, 90},
		VolatilityWindows: []int{7, 30},
		PressureWindow:    30,
	}
	calcs := BuildCalculators(cfg, quietLogger())

	names := make(map[string]bool, len(calcs))
	for _, c := range calcs {
		names[c.Name()] = true
	}
	for _, want := range []string{
		"delta_base", "delta_reserves",
		"aggregate_base_expanded", "aggregate_remunerated_liabilities",
		"ratio_base_to_expanded", "backing_reserves_to_base", "coverage_liabilities_to_reserves",
		"volatility_fx", "trend_fx.trend", "pressure_fx.local_pressure_30d",
		"health",
	} {
		assert.True(t, names[want], "missing calculator %s", want)
	}

	// The declared series union drives the loader.
	required := make(map[string]bool)
	for _, c := range calcs {
		for _, id := range c.RequiredSeries() {
			required[id] = true
		}
	}
	for _, id := range cfg.AllSeries() {
		assert.True(t, required[id], "series %s is not required by any calculator", id)
	}
}
