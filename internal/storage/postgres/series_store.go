package postgres

import (
	"context"
	"fmt"
	"time"

	"macromon/internal/calendar"
	"macromon/internal/series"
	"macromon/internal/storage"
)

// SeriesStore implements storage.SeriesStore using PostgreSQL.
type SeriesStore struct {
	pool *Pool
}

// NewSeriesStore creates a new SeriesStore.
func NewSeriesStore(pool *Pool) *SeriesStore {
	return &SeriesStore{pool: pool}
}

// Compile-time interface check.
var _ storage.SeriesStore = (*SeriesStore)(nil)

// GetSeriesPoints retrieves one series' points in [from, to], ordered by
// date ASC. An unknown series or an empty range returns an empty slice.
func (s *SeriesStore) GetSeriesPoints(ctx context.Context, seriesID string, from, to time.Time) ([]series.RawPoint, error) {
	query := `
		SELECT series_id, date, value
		FROM raw_points
		WHERE series_id = $1 AND date >= $2 AND date <= $3
		ORDER BY date ASC
	`

	rows, err := s.pool.Query(ctx, query, seriesID, calendar.Normalize(from), calendar.Normalize(to))
	if err != nil {
		return nil, fmt.Errorf("get series points: %w", err)
	}
	defer rows.Close()

	var points []series.RawPoint
	for rows.Next() {
		var p series.RawPoint
		if err := rows.Scan(&p.SeriesID, &p.Date, &p.Value); err != nil {
			return nil, fmt.Errorf("scan series point: %w", err)
		}
		p.Date = calendar.Normalize(p.Date)
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate series points: %w", err)
	}

	return points, nil
}
