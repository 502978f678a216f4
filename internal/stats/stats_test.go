package stats

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMean(t *testing.T) {
	assert.Equal(t, 0.0, Mean(nil))
	assert.Equal(t, 5.0, Mean([]float64{5}))
	assert.InDelta(t, 2.5, Mean([]float64{1, 2, 3, 4}), 1e-12)
}

func TestStdevPopulation(t *testing.T) {
	t.Run("degenerate inputs yield zero, never NaN", func(t *testing.T) {
		assert.Equal(t, 0.0, StdevPopulation(nil))
		assert.Equal(t, 0.0, StdevPopulation([]float64{42}))
	})

	t.Run("known value", func(t *testing.T) {
		// Population stdev of {2,4,4,4,5,5,7,9} is exactly 2.
		got := StdevPopulation([]float64{2, 4, 4, 4, 5, 5, 7, 9})
		assert.InDelta(t, 2.0, got, 1e-12)
	})
}

func TestStdevSample(t *testing.T) {
	assert.Equal(t, 0.0, StdevSample([]float64{1}))

	// Sample stdev divides by N-1, so it is strictly larger than the
	// population figure on the same data.
	data := []float64{2, 4, 4, 4, 5, 5, 7, 9}
	assert.Greater(t, StdevSample(data), StdevPopulation(data))
	assert.InDelta(t, math.Sqrt(32.0/7.0), StdevSample(data), 1e-12)
}

func TestSimpleMovingAverage(t *testing.T) {
	t.Run("window longer than input", func(t *testing.T) {
		assert.Nil(t, SimpleMovingAverage([]float64{1, 2}, 3))
	})

	t.Run("invalid window", func(t *testing.T) {
		assert.Nil(t, SimpleMovingAverage([]float64{1, 2}, 0))
	})

	t.Run("trailing windows", func(t *testing.T) {
		got := SimpleMovingAverage([]float64{1, 2, 3, 4, 5}, 3)
		require.Len(t, got, 3)
		assert.InDelta(t, 2.0, got[0], 1e-12)
		assert.InDelta(t, 3.0, got[1], 1e-12)
		assert.InDelta(t, 4.0, got[2], 1e-12)
	})

	t.Run("window of one is identity", func(t *testing.T) {
		got := SimpleMovingAverage([]float64{7, 8, 9}, 1)
		assert.Equal(t, []float64{7, 8, 9}, got)
	})
}

func TestLogReturns(t *testing.T) {
	t.Run("short input", func(t *testing.T) {
		assert.Nil(t, LogReturns([]float64{100}))
	})

	t.Run("computes ln ratio", func(t *testing.T) {
		got := LogReturns([]float64{100, 110, 99})
		require.Len(t, got, 2)
		assert.InDelta(t, math.Log(1.1), got[0], 1e-12)
		assert.InDelta(t, math.Log(0.9), got[1], 1e-12)
	})

	t.Run("non-positive price skips the pair, not zero-fills", func(t *testing.T) {
		got := LogReturns([]float64{100, 0, 110, 121})
		require.Len(t, got, 1)
		assert.InDelta(t, math.Log(1.1), got[0], 1e-12)
	})
}

func TestSimpleReturns(t *testing.T) {
	got := SimpleReturns([]float64{100, 110, 55})
	require.Len(t, got, 2)
	assert.InDelta(t, 0.10, got[0], 1e-12)
	assert.InDelta(t, -0.50, got[1], 1e-12)

	assert.Len(t, SimpleReturns([]float64{0, 5, 10}), 1)
}

func TestPercentile(t *testing.T) {
	data := []float64{15, 20, 35, 40, 50}

	tests := []struct {
		name string
		p    float64
		want float64
	}{
		{"minimum", 0, 15},
		{"maximum", 100, 50},
		{"median", 50, 35},
		{"interpolated", 40, 29},
		{"clamped above", 150, 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Percentile(data, tt.p), 1e-12)
		})
	}

	t.Run("input left unsorted and unmodified", func(t *testing.T) {
		vals := []float64{3, 1, 2}
		Percentile(vals, 50)
		assert.Equal(t, []float64{3, 1, 2}, vals)
	})

	assert.Equal(t, 0.0, Percentile(nil, 50))
}

func TestIsFinite(t *testing.T) {
	assert.True(t, IsFinite(1.5))
	assert.False(t, IsFinite(math.NaN()))
	assert.False(t, IsFinite(math.Inf(1)))
	assert.False(t, IsFinite(math.Inf(-1)))
}
