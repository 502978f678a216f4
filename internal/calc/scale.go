package calc

import "math"

// ScaleThreshold is the magnitude above which a raw value is assumed to be
// expressed in raw currency units rather than millions.
const ScaleThreshold = 1_000_000

// ScaleDivisor converts raw currency units to millions.
const ScaleDivisor = 1_000_000

// ToMillions normalizes a value to the millions display scale using the
// magnitude heuristic: values above ScaleThreshold are assumed to be raw
// currency units and divided down; smaller values are assumed to already be
// in millions. The heuristic misclassifies legitimately small raw
// magnitudes; upstream series should grow an explicit unit tag before that
// becomes a real problem. Kept as-is for output compatibility.
func ToMillions(v float64) float64 {
	if math.Abs(v) > ScaleThreshold {
		return v / ScaleDivisor
	}
	return v
}
