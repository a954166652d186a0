package dataprocessing

import (
	"fmt"

	"aadhaarpulse/internal/forecast"
)

// forecastableMetrics maps a metric name to its column accessor on the
// activity table.
var forecastableMetrics = map[string]func(ActivityRecord) float64{
	"total_updates":    func(r ActivityRecord) float64 { return r.TotalUpdates },
	"total_enrolments": func(r ActivityRecord) float64 { return r.TotalEnrolments },
	"demo_age_5_17":    func(r ActivityRecord) float64 { return r.DemoAge5To17 },
	"demo_age_17_":     func(r ActivityRecord) float64 { return r.DemoAge17Plus },
	"bio_age_5_17":     func(r ActivityRecord) float64 { return r.BioAge5To17 },
	"bio_age_17_":      func(r ActivityRecord) float64 { return r.BioAge17Plus },
	"age_0_5":          func(r ActivityRecord) float64 { return r.EnrolAge0To5 },
	"age_5_17":         func(r ActivityRecord) float64 { return r.EnrolAge5To17 },
	"age_18_greater":   func(r ActivityRecord) float64 { return r.EnrolAge18Up },
}

// ForecastableMetrics lists the metric names MetricSeries accepts.
func ForecastableMetrics() []string {
	names := make([]string, 0, len(forecastableMetrics))
	for name := range forecastableMetrics {
		names = append(names, name)
	}
	return names
}

// MetricSeries projects the activity table onto one metric as a forecast
// input series. Unknown metric names are a caller error.
func MetricSeries(records []ActivityRecord, metric string) ([]forecast.Point, error) {
	accessor, ok := forecastableMetrics[metric]
	if !ok {
		return nil, fmt.Errorf("unknown metric %q", metric)
	}
	series := make([]forecast.Point, 0, len(records))
	for _, r := range records {
		series = append(series, forecast.Point{Date: r.Date, Value: accessor(r)})
	}
	return series, nil
}
