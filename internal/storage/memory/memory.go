// Package memory provides in-memory store implementations used by tests
// and the CLI's dry-run mode.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"macromon/internal/calendar"
	"macromon/internal/metrics"
	"macromon/internal/series"
	"macromon/internal/storage"
)

// Store is an in-memory SeriesStore and MetricsStore.
type Store struct {
	mu         sync.RWMutex
	raw        map[string][]series.RawPoint
	points     map[string]metrics.Point // keyed metricID|date
	upsertOps  int
	failWrites error
}

// Compile-time interface checks.
var (
	_ storage.SeriesStore   = (*Store)(nil)
	_ storage.MetricsStore  = (*Store)(nil)
	_ storage.MetricsReader = (*Store)(nil)
)

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		raw:    make(map[string][]series.RawPoint),
		points: make(map[string]metrics.Point),
	}
}

// SeedSeries loads raw points for a series, replacing any prior seed.
func (s *Store) SeedSeries(seriesID string, points []series.RawPoint) {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := make([]series.RawPoint, len(points))
	copy(copied, points)
	for i := range copied {
		copied[i].SeriesID = seriesID
		copied[i].Date = calendar.Normalize(copied[i].Date)
	}
	sort.Slice(copied, func(i, j int) bool {
		return copied[i].Date.Before(copied[j].Date)
	})
	s.raw[seriesID] = copied
}

// FailWrites makes every subsequent upsert return err. Pass nil to heal.
func (s *Store) FailWrites(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failWrites = err
}

// GetSeriesPoints implements storage.SeriesStore.
func (s *Store) GetSeriesPoints(_ context.Context, seriesID string, from, to time.Time) ([]series.RawPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	from = calendar.Normalize(from)
	to = calendar.Normalize(to)

	var out []series.RawPoint
	for _, p := range s.raw[seriesID] {
		if p.Date.Before(from) || p.Date.After(to) {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

// UpsertMetricPoints implements storage.MetricsStore.
func (s *Store) UpsertMetricPoints(_ context.Context, points []metrics.Point) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failWrites != nil {
		return s.failWrites
	}

	for _, p := range points {
		key := p.MetricID + "|" + p.Date.Format(calendar.DateFormat)
		s.points[key] = p
	}
	s.upsertOps++
	return nil
}

// GetMetricPoints implements storage.MetricsReader.
func (s *Store) GetMetricPoints(_ context.Context, metricID string, from, to time.Time) ([]metrics.Point, error) {
	from = calendar.Normalize(from)
	to = calendar.Normalize(to)

	var out []metrics.Point
	for _, p := range s.AllMetricPoints() {
		if p.MetricID != metricID || p.Date.Before(from) || p.Date.After(to) {
			continue
		}
		out = append(out, p)
	}
	if len(out) == 0 {
		return nil, storage.ErrNotFound
	}
	return out, nil
}

// MetricPoint returns the stored point for (metricID, date), if present.
func (s *Store) MetricPoint(metricID string, date time.Time) (metrics.Point, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.points[metricID+"|"+calendar.Normalize(date).Format(calendar.DateFormat)]
	return p, ok
}

// AllMetricPoints returns every stored point sorted by metric id then date.
func (s *Store) AllMetricPoints() []metrics.Point {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]metrics.Point, 0, len(s.points))
	for _, p := range s.points {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].MetricID != out[j].MetricID {
			return out[i].MetricID < out[j].MetricID
		}
		return out[i].Date.Before(out[j].Date)
	})
	return out
}

// MetricPointsFor returns all stored points of one metric, sorted by date.
func (s *Store) MetricPointsFor(metricID string) []metrics.Point {
	var out []metrics.Point
	for _, p := range s.AllMetricPoints() {
		if p.MetricID == metricID {
			out = append(out, p)
		}
	}
	return out
}

// UpsertCount returns how many upsert batches have been applied.
func (s *Store) UpsertCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.upsertOps
}
