// Package metrics defines the derived metric model produced by the
// calculators and persisted by the orchestrator.
package metrics

import (
	"time"
)

// Metadata carries the lineage of a computed point: which raw series fed
// it, over which window, and which raw inputs were used. It is persisted
// alongside the value so dashboards can explain any number they show.
type Metadata struct {
	Sources           []string `json:"sources,omitempty"`
	WindowDays        int      `json:"window_days,omitempty"`
	Current           float64  `json:"current,omitempty"`
	Reference         float64  `json:"reference,omitempty"`
	ReferenceDate     string   `json:"reference_date,omitempty"`
	Unit              string   `json:"unit,omitempty"`
	MissingComponents []string `json:"missing_components,omitempty"`
	ThresholdHours    float64  `json:"threshold_hours,omitempty"`
	GapCount          int      `json:"gap_count,omitempty"`
	MaxGapDays        int      `json:"max_gap_days,omitempty"`
}

// Point is a single computed (metric, date) output. Points are keyed by
// (MetricID, Date); recomputation overwrites value and metadata via upsert
// and never duplicates.
type Point struct {
	MetricID string    `json:"metric_id"`
	Date     time.Time `json:"date"`
	Value    float64   `json:"value"`
	Metadata Metadata  `json:"metadata"`
}

// IsValid checks the minimal persistence invariants of a point.
func (p Point) IsValid() bool {
	return p.MetricID != "" && !p.Date.IsZero()
}

// Units used in metadata.
const (
	UnitMillions = "millions"
	UnitPercent  = "percent"
	UnitRatio    = "ratio"
	UnitHours    = "hours"
	UnitDays     = "days"
	UnitShare    = "share"
)
