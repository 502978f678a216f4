// Package series holds the raw time-series model and the date-alignment
// primitives every calculator builds on. A Series keeps its points sorted
// and carries a date index, so reference lookups are O(1) instead of a
// linear scan over the range.
package series

import (
	"sort"
	"time"

	"macromon/internal/calendar"
)

// RawPoint is one externally ingested observation of a series. Points are
// immutable and read-only to this engine; uniqueness per (series, date) is
// enforced at indexing time with last-value-wins.
type RawPoint struct {
	SeriesID string    `json:"series_id"`
	Date     time.Time `json:"date"`
	Value    float64   `json:"value"`
}

// Series is an ordered collection of (date, value) points for one economic
// indicator, indexed by calendar date.
type Series struct {
	id     string
	points []RawPoint
	index  map[string]float64
}

// New builds a Series from raw points. Dates are normalized to calendar
// days, points are sorted ascending, and duplicate dates resolve by
// last-value-wins in input order. Earlier duplicates are dropped silently;
// the data-health calculator is the place where that shows up, not here.
func New(id string, points []RawPoint) *Series {
	index := make(map[string]float64, len(points))
	byDate := make(map[string]RawPoint, len(points))
	for _, p := range points {
		p.Date = calendar.Normalize(p.Date)
		p.SeriesID = id
		key := p.Date.Format(calendar.DateFormat)
		index[key] = p.Value
		byDate[key] = p
	}

	deduped := make([]RawPoint, 0, len(byDate))
	for _, p := range byDate {
		deduped = append(deduped, p)
	}
	sort.Slice(deduped, func(i, j int) bool {
		return deduped[i].Date.Before(deduped[j].Date)
	})

	return &Series{id: id, points: deduped, index: index}
}

// ID returns the series identifier.
func (s *Series) ID() string { return s.id }

// Len returns the number of distinct dated points.
func (s *Series) Len() int { return len(s.points) }

// IsEmpty reports whether the series holds no points.
func (s *Series) IsEmpty() bool { return len(s.points) == 0 }

// ValueAt returns the value observed exactly on the given date.
func (s *Series) ValueAt(date time.Time) (float64, bool) {
	v, ok := s.index[calendar.Normalize(date).Format(calendar.DateFormat)]
	return v, ok
}

// Points returns the sorted points. Callers must not mutate the result.
func (s *Series) Points() []RawPoint { return s.points }

// Dates returns the sorted distinct dates of the series.
func (s *Series) Dates() []time.Time {
	dates := make([]time.Time, len(s.points))
	for i, p := range s.points {
		dates[i] = p.Date
	}
	return dates
}

// Values returns the values in date order, parallel to Dates.
func (s *Series) Values() []float64 {
	values := make([]float64, len(s.points))
	for i, p := range s.points {
		values[i] = p.Value
	}
	return values
}

// Latest returns the most recent point, if any.
func (s *Series) Latest() (RawPoint, bool) {
	if len(s.points) == 0 {
		return RawPoint{}, false
	}
	return s.points[len(s.points)-1], true
}
