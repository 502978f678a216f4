// Package storage defines the engine's two store collaborators: a
// read-only raw series store and a write-only derived metrics store with
// idempotent upsert semantics.
package storage

import (
	"context"
	"errors"
	"time"

	"macromon/internal/metrics"
	"macromon/internal/series"
)

// Sentinel errors shared by implementations.
var (
	// ErrNotFound indicates no rows matched the query.
	ErrNotFound = errors.New("storage: not found")
	// ErrUnavailable indicates the backing store cannot be reached.
	ErrUnavailable = errors.New("storage: unavailable")
)

// SeriesStore reads raw, externally ingested points. An unknown series or
// an empty range yields an empty result, not an error.
type SeriesStore interface {
	// GetSeriesPoints returns the points of one series in [from, to],
	// ordered ascending by date.
	GetSeriesPoints(ctx context.Context, seriesID string, from, to time.Time) ([]series.RawPoint, error)
}

// MetricsStore persists derived points keyed by (metric_id, date) with
// insert-or-update semantics: last write wins, never duplicate keys.
type MetricsStore interface {
	// UpsertMetricPoints writes the batch atomically. Either every point
	// lands or none does; a failed batch is safe to retry wholesale.
	UpsertMetricPoints(ctx context.Context, points []metrics.Point) error
}

// MetricsReader serves derived points back out, for the query API and
// report export. Returns ErrNotFound when no points match.
type MetricsReader interface {
	// GetMetricPoints returns the points of one metric in [from, to],
	// ordered ascending by date.
	GetMetricPoints(ctx context.Context, metricID string, from, to time.Time) ([]metrics.Point, error)
}
