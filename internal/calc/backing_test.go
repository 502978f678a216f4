package calc

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"macromon/internal/errors"
)

func TestBackingRatioWorkedExample(t *testing.T) {
	// reserves=45,000 USD, base=53,000,000 ARS, fx=1,200:
	// 45000 / (53000000/1200) = 1.0189...
	dates := businessDays("2024-03-15", 3)
	in := testInputs("2024-03-15",
		constSeries("intl_reserves", dates, 45_000),
		constSeries("base_money", dates, 53_000_000),
		constSeries("fx_official", dates, 1_200),
	)

	calc := NewBackingRatioCalculator("reserves_to_base", "intl_reserves", "base_money", "fx_official", nil)
	points, err := calc.Compute(context.Background(), in)
	require.NoError(t, err)
	require.Len(t, points, 3)
	assert.InDelta(t, 1.0189, points[0].Value, 0.0001)
}

func TestBackingRatioRequiresPositiveFX(t *testing.T) {
	dates := businessDays("2024-03-15", 3)
	fx := seriesOn("fx_official", dates, []float64{1200, 0, -5})
	in := testInputs("2024-03-15",
		constSeries("intl_reserves", dates, 45_000),
		constSeries("base_money", dates, 53_000),
		fx,
	)

	calc := NewBackingRatioCalculator("reserves_to_base", "intl_reserves", "base_money", "fx_official", nil)
	points, err := calc.Compute(context.Background(), in)
	require.NoError(t, err)
	require.Len(t, points, 1, "dates with fx <= 0 must be skipped")
	assert.Equal(t, dates[0], points[0].Date)
}

func TestBackingRatioAbsentSeriesSkipsCalculator(t *testing.T) {
	dates := businessDays("2024-03-15", 3)
	in := testInputs("2024-03-15", constSeries("intl_reserves", dates, 45_000))

	calc := NewBackingRatioCalculator("reserves_to_base", "intl_reserves", "base_money", "fx_official", nil)
	_, err := calc.Compute(context.Background(), in)
	require.Error(t, err)
	assert.Equal(t, errors.KindAlignmentFailure, errors.KindOf(err))
}

func TestRatioCalculatorSkipsNonPositiveAggregate(t *testing.T) {
	dates := businessDays("2024-03-15", 3)
	in := testInputs("2024-03-15",
		constSeries("base_money", dates, 100),
		seriesOn("cb_bills", dates, []float64{50, 0, -10}),
	)

	calc := NewRatioCalculator("base_to_expanded", "base_money", []string{"cb_bills"}, nil)
	points, err := calc.Compute(context.Background(), in)
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.InDelta(t, 2.0, points[0].Value, 1e-12)
}

func TestRatioCalculatorSumsComponentsPerDate(t *testing.T) {
	dates := businessDays("2024-03-15", 2)
	in := testInputs("2024-03-15",
		constSeries("base_money", dates, 100),
		constSeries("cb_bills", dates, 60),
		constSeries("cb_repos", dates, 40),
		constSeries("cb_deposits", dates, 100),
	)

	calc := NewRatioCalculator("base_to_expanded", "base_money",
		[]string{"cb_bills", "cb_repos", "cb_deposits"}, nil)
	points, err := calc.Compute(context.Background(), in)
	require.NoError(t, err)
	require.Len(t, points, 2)
	assert.InDelta(t, 0.5, points[0].Value, 1e-12)
}

func TestCoverageRatio(t *testing.T) {
	dates := businessDays("2024-03-15", 2)
	in := testInputs("2024-03-15",
		constSeries("cb_bills", dates, 30_000),
		constSeries("cb_repos", dates, 24_000),
		constSeries("intl_reserves", dates, 45),
		constSeries("fx_official", dates, 1_200),
	)

	calc := NewCoverageRatioCalculator("liabilities_to_reserves",
		[]string{"cb_bills", "cb_repos"}, "intl_reserves", "fx_official", nil)
	points, err := calc.Compute(context.Background(), in)
	require.NoError(t, err)
	require.Len(t, points, 2)
	// (30000+24000) / (45*1200) = 1.0
	assert.InDelta(t, 1.0, points[0].Value, 1e-12)
}

func TestCoverageRatioFXGuard(t *testing.T) {
	dates := businessDays("2024-03-15", 2)
	in := testInputs("2024-03-15",
		constSeries("cb_bills", dates, 30_000),
		constSeries("intl_reserves", dates, 45),
		seriesOn("fx_official", dates, []float64{0, 1200}),
	)

	calc := NewCoverageRatioCalculator("liabilities_to_reserves",
		[]string{"cb_bills"}, "intl_reserves", "fx_official", nil)
	points, err := calc.Compute(context.Background(), in)
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.Equal(t, dates[1], points[0].Date)
}
