package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"macromon/internal/calendar"
	"macromon/internal/metrics"
	"macromon/internal/storage"
)

// MetricsStore implements storage.MetricsStore using PostgreSQL.
type MetricsStore struct {
	pool *Pool
}

// NewMetricsStore creates a new MetricsStore.
func NewMetricsStore(pool *Pool) *MetricsStore {
	return &MetricsStore{pool: pool}
}

// Compile-time interface check.
var _ storage.MetricsStore = (*MetricsStore)(nil)

// UpsertMetricPoints writes the batch inside one transaction. Each point is
// inserted or, on (metric_id, date) conflict, updated in place; last write
// wins. The whole batch commits or rolls back together, so a failed run can
// be retried wholesale.
func (s *MetricsStore) UpsertMetricPoints(ctx context.Context, points []metrics.Point) error {
	if len(points) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO metric_points (metric_id, date, value, metadata, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (metric_id, date)
		DO UPDATE SET value = EXCLUDED.value, metadata = EXCLUDED.metadata, updated_at = now()
	`

	for _, p := range points {
		meta, err := json.Marshal(p.Metadata)
		if err != nil {
			return fmt.Errorf("marshal metadata for %s: %w", p.MetricID, err)
		}
		if _, err := tx.Exec(ctx, query, p.MetricID, calendar.Normalize(p.Date), p.Value, meta); err != nil {
			return fmt.Errorf("upsert metric point %s: %w", p.MetricID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetMetricPoints retrieves one metric's points in [from, to] ordered by
// date ASC. Used by the read API, not by the engine itself. Returns
// storage.ErrNotFound when the metric has no points in the range.
func (s *MetricsStore) GetMetricPoints(ctx context.Context, metricID string, from, to time.Time) ([]metrics.Point, error) {
	query := `
		SELECT metric_id, date, value, metadata
		FROM metric_points
		WHERE metric_id = $1 AND date >= $2 AND date <= $3
		ORDER BY date ASC
	`

	rows, err := s.pool.Query(ctx, query, metricID, calendar.Normalize(from), calendar.Normalize(to))
	if err != nil {
		return nil, fmt.Errorf("get metric points: %w", err)
	}
	defer rows.Close()

	var points []metrics.Point
	for rows.Next() {
		var p metrics.Point
		var meta []byte
		if err := rows.Scan(&p.MetricID, &p.Date, &p.Value, &meta); err != nil {
			return nil, fmt.Errorf("scan metric point: %w", err)
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &p.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshal metadata for %s: %w", p.MetricID, err)
			}
		}
		p.Date = calendar.Normalize(p.Date)
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate metric points: %w", err)
	}

	if len(points) == 0 {
		return nil, storage.ErrNotFound
	}
	return points, nil
}
