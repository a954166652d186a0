package forecast

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func linearSeries(n int, intercept, slope float64) []Point {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	series := make([]Point, n)
	for i := 0; i < n; i++ {
		series[i] = Point{Date: start.AddDate(0, 0, i), Value: intercept + slope*float64(i)}
	}
	return series
}

func TestForecastTableShape(t *testing.T) {
	series := linearSeries(60, 100, 1)
	table, model := Forecast(series, "total_updates", DefaultHorizonDays)
	require.NotNil(t, model)
	// Every historical date plus the horizon.
	require.Len(t, table, 60+DefaultHorizonDays)

	for i, p := range table {
		assert.LessOrEqual(t, p.Lower, p.Predicted, "row %d", i)
		assert.GreaterOrEqual(t, p.Upper, p.Predicted, "row %d", i)
		if i > 0 {
			assert.True(t, table[i-1].Date.Before(p.Date), "dates out of order at row %d", i)
		}
	}
	assert.Equal(t, series[0].Date, table[0].Date)
	assert.Equal(t, series[59].Date.AddDate(0, 0, DefaultHorizonDays), table[len(table)-1].Date)
}

func TestForecastSumsDuplicateDates(t *testing.T) {
	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	series := []Point{
		{Date: day, Value: 3},
		{Date: day, Value: 4},
		{Date: day.AddDate(0, 0, 1), Value: 10},
	}
	table, model := Forecast(series, "total_updates", 5)
	require.NotNil(t, model)
	require.Len(t, table, 2+5)
	assert.InDelta(t, 7, table[0].Predicted, 1e-6)
}

func TestForecastLinearTrend(t *testing.T) {
	series := linearSeries(60, 10, 2)
	table, model := Forecast(series, "total_updates", DefaultHorizonDays)
	require.NotNil(t, model)

	// A noiseless linear series is fit exactly; the future continues it.
	for h := 1; h <= DefaultHorizonDays; h++ {
		want := 10 + 2*float64(59+h)
		assert.InDelta(t, want, table[59+h].Predicted, 1.0, "h=%d", h)
	}

	insights := Insights(table, model, series, "total_updates", DefaultHorizonDays)
	require.NotEmpty(t, insights)
	assert.Contains(t, insights[0], "increasing")
	assert.Contains(t, insights[0], "Total Updates")
	assert.NotContains(t, insights[0], "-")
}

func TestForecastTooShort(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		table, model := Forecast(nil, "total_updates", DefaultHorizonDays)
		assert.Nil(t, table)
		assert.Nil(t, model)
	})

	t.Run("single date", func(t *testing.T) {
		table, model := Forecast(linearSeries(1, 5, 0), "total_updates", DefaultHorizonDays)
		assert.Nil(t, table)
		assert.Nil(t, model)
	})

	t.Run("no insights for empty forecast", func(t *testing.T) {
		assert.Nil(t, Insights(nil, nil, nil, "total_updates", DefaultHorizonDays))
	})
}

func TestWeeklySeasonality(t *testing.T) {
	// Four weeks of flat volume with a strong Monday surge and a Thursday
	// slump.
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) // a Monday
	series := make([]Point, 28)
	for i := range series {
		d := start.AddDate(0, 0, i)
		v := 100.0
		switch d.Weekday() {
		case time.Monday:
			v += 60
		case time.Thursday:
			v -= 60
		}
		series[i] = Point{Date: d, Value: v}
	}

	table, model := Forecast(series, "total_updates", DefaultHorizonDays)
	require.NotNil(t, model)
	require.True(t, model.HasWeeklySeasonality())
	assert.Greater(t, model.WeeklyComponent(time.Monday), model.WeeklyComponent(time.Thursday))

	insights := Insights(table, model, series, "total_updates", DefaultHorizonDays)
	require.GreaterOrEqual(t, len(insights), 4)

	var weekly string
	for _, s := range insights {
		if strings.Contains(s, "Highest activity") {
			weekly = s
		}
	}
	require.NotEmpty(t, weekly, "expected a weekly pattern insight")
	assert.Contains(t, weekly, "Mondays")
	assert.Contains(t, weekly, "Thursdays")
}

func TestWeeklySuppressedOnShortSpan(t *testing.T) {
	series := linearSeries(10, 50, 1)
	table, model := Forecast(series, "total_updates", DefaultHorizonDays)
	require.NotNil(t, model)
	assert.False(t, model.HasWeeklySeasonality())

	insights := Insights(table, model, series, "total_updates", DefaultHorizonDays)
	for _, s := range insights {
		assert.NotContains(t, s, "Highest activity")
	}
}

func TestInsightsCoverRequestedHorizon(t *testing.T) {
	series := linearSeries(30, 10, 2)
	table, model := Forecast(series, "total_updates", 60)
	require.NotNil(t, model)
	require.Len(t, table, 30+60)

	insights := Insights(table, model, series, "total_updates", 60)
	require.NotEmpty(t, insights)
	// The trend window spans the full requested horizon, not a fixed 30
	// days, so the peak is the last forecast date.
	assert.Contains(t, insights[0], "over the next 60 days")
	var peak string
	for _, s := range insights {
		if strings.Contains(s, "peak in activity") {
			peak = s
		}
	}
	require.NotEmpty(t, peak)
	assert.Contains(t, peak, table[len(table)-1].Date.Format("2006-01-02"))
}

func TestConfidenceTiers(t *testing.T) {
	// Noise-free data yields zero-width intervals and the top tier.
	series := linearSeries(60, 100, 1)
	table, model := Forecast(series, "total_updates", DefaultHorizonDays)
	require.NotNil(t, model)

	insights := Insights(table, model, series, "total_updates", DefaultHorizonDays)
	last := insights[len(insights)-1]
	assert.Contains(t, last, "Confidence level: "+ConfidenceHigh)
}

func TestHumanizeMetric(t *testing.T) {
	assert.Equal(t, "Total Updates", humanizeMetric("total_updates"))
	assert.Equal(t, "Bio Age 5 17", humanizeMetric("bio_age_5_17"))
}
