package series

import (
	"sort"
	"time"

	"macromon/internal/calendar"
)

// AlignedSet is the ephemeral result of intersecting several series by
// date: an ascending date list plus one value column per input series,
// index-synchronized to that list. Every column has the same length and
// index i always refers to Dates[i] in every column.
type AlignedSet struct {
	Dates   []time.Time
	columns map[string][]float64
	order   []string
}

// Len returns the number of aligned dates.
func (as *AlignedSet) Len() int { return len(as.Dates) }

// Column returns the value column for the given series id, nil if the
// series was not part of the alignment.
func (as *AlignedSet) Column(id string) []float64 { return as.columns[id] }

// SeriesIDs returns the aligned series ids in input order.
func (as *AlignedSet) SeriesIDs() []string { return as.order }

// AlignPair intersects two series by date and returns their synchronized
// value columns. Disjoint date sets produce an empty (non-nil) set.
func AlignPair(a, b *Series) *AlignedSet {
	return AlignMany([]*Series{a, b})
}

// AlignMany computes the full N-way date intersection across all inputs.
// The result is independent of input order: any empty input empties the
// whole set, and each returned column has identical length and
// date-to-index mapping.
func AlignMany(list []*Series) *AlignedSet {
	out := &AlignedSet{columns: make(map[string][]float64, len(list))}
	for _, s := range list {
		out.order = append(out.order, s.ID())
	}
	if len(list) == 0 {
		return out
	}

	// Count date occurrences across inputs; a date survives only when every
	// series has it.
	counts := make(map[string]int)
	for _, s := range list {
		for _, p := range s.Points() {
			counts[p.Date.Format(calendar.DateFormat)]++
		}
	}

	var keys []string
	for key, n := range counts {
		if n == len(list) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	out.Dates = make([]time.Time, len(keys))
	for i, key := range keys {
		d, _ := time.Parse(calendar.DateFormat, key)
		out.Dates[i] = d
	}

	for _, s := range list {
		column := make([]float64, len(out.Dates))
		for i, d := range out.Dates {
			v, _ := s.ValueAt(d)
			column[i] = v
		}
		out.columns[s.ID()] = column
	}
	return out
}
