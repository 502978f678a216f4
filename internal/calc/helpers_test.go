package calc

import (
	"time"

	"macromon/internal/calendar"
	"macromon/internal/series"
)

func date(s string) time.Time {
	d, err := time.Parse(calendar.DateFormat, s)
	if err != nil {
		panic(err)
	}
	return d
}

// businessDays returns the n business days ending at end (inclusive),
// ascending, on a holiday-free calendar.
func businessDays(end string, n int) []time.Time {
	return calendar.New(nil).BusinessDaysBack(date(end), n)
}

// seriesOn builds a series with one value per date.
func seriesOn(id string, dates []time.Time, values []float64) *series.Series {
	if len(dates) != len(values) {
		panic("seriesOn: dates and values length mismatch")
	}
	points := make([]series.RawPoint, len(dates))
	for i := range dates {
		points[i] = series.RawPoint{Date: dates[i], Value: values[i]}
	}
	return series.New(id, points)
}

// constSeries builds a series holding the same value on every date.
func constSeries(id string, dates []time.Time, value float64) *series.Series {
	values := make([]float64, len(dates))
	for i := range values {
		values[i] = value
	}
	return seriesOn(id, dates, values)
}

// testInputs builds calculator inputs on a holiday-free calendar.
func testInputs(now string, list ...*series.Series) *Inputs {
	m := make(map[string]*series.Series, len(list))
	for _, s := range list {
		m[s.ID()] = s
	}
	return &Inputs{
		Calendar: calendar.New(nil),
		Series:   m,
		Now:      date(now),
	}
}
