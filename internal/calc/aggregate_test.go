package calc

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"macromon/internal/errors"
)

func TestStrictAggregateSumsCommonDates(t *testing.T) {
	dates := businessDays("2024-03-15", 5)
	in := testInputs("2024-03-15",
		constSeries("base_money", dates, 100),
		constSeries("cb_bills", dates, 30),
		constSeries("cb_repos", dates, 20),
		constSeries("cb_deposits", dates, 10),
	)

	calc := NewAggregateCalculator("base_expanded",
		[]string{"base_money", "cb_bills", "cb_repos", "cb_deposits"},
		StrategyStrict, nil)

	points, err := calc.Compute(context.Background(), in)
	require.NoError(t, err)
	require.Len(t, points, 5)
	for _, p := range points {
		assert.Equal(t, "base_expanded", p.MetricID)
		assert.Equal(t, 160.0, p.Value)
		assert.Empty(t, p.Metadata.MissingComponents)
	}
}

func TestStrictAggregateRestrictsToIntersection(t *testing.T) {
	dates := businessDays("2024-03-15", 5)
	in := testInputs("2024-03-15",
		constSeries("base_money", dates, 100),
		constSeries("cb_bills", dates[:3], 30), // shorter history
	)

	calc := NewAggregateCalculator("base_expanded", []string{"base_money", "cb_bills"}, StrategyStrict, nil)
	points, err := calc.Compute(context.Background(), in)
	require.NoError(t, err)
	assert.Len(t, points, 3)
}

func TestStrictAggregateSkipsRunWhenComponentAbsent(t *testing.T) {
	dates := businessDays("2024-03-15", 5)
	in := testInputs("2024-03-15", constSeries("base_money", dates, 100))

	calc := NewAggregateCalculator("base_expanded", []string{"base_money", "cb_bills"}, StrategyStrict, nil)
	_, err := calc.Compute(context.Background(), in)

	require.Error(t, err)
	assert.Equal(t, errors.KindAlignmentFailure, errors.KindOf(err))
}

func TestPartialSumTreatsAbsentComponentsAsZero(t *testing.T) {
	dates := businessDays("2024-03-15", 3)
	in := testInputs("2024-03-15",
		constSeries("cb_bills", dates, 30),
		constSeries("cb_repos", dates[1:], 20), // missing the first date
	)

	calc := NewAggregateCalculator("remunerated_liabilities",
		[]string{"cb_bills", "cb_repos", "cb_deposits"},
		StrategyPartialSum, nil)

	points, err := calc.Compute(context.Background(), in)
	require.NoError(t, err)
	require.Len(t, points, 3)

	// First date: only cb_bills present.
	assert.Equal(t, 30.0, points[0].Value)
	assert.ElementsMatch(t, []string{"cb_repos", "cb_deposits"}, points[0].Metadata.MissingComponents)

	// Later dates: cb_deposits still entirely absent.
	assert.Equal(t, 50.0, points[1].Value)
	assert.Equal(t, []string{"cb_deposits"}, points[1].Metadata.MissingComponents)
}

func TestPartialSumFailsOnlyWhenEverythingAbsent(t *testing.T) {
	in := testInputs("2024-03-15")
	calc := NewAggregateCalculator("remunerated_liabilities",
		[]string{"cb_bills", "cb_repos"}, StrategyPartialSum, nil)

	_, err := calc.Compute(context.Background(), in)
	require.Error(t, err)
	assert.Equal(t, errors.KindAlignmentFailure, errors.KindOf(err))
}

func TestAggregateUnknownStrategy(t *testing.T) {
	calc := NewAggregateCalculator("x", []string{"a"}, Strategy("bogus"), nil)
	_, err := calc.Compute(context.Background(), testInputs("2024-03-15"))
	require.Error(t, err)
	assert.Equal(t, errors.KindAlignmentFailure, errors.KindOf(err))
}
