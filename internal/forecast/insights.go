package forecast

import (
	"fmt"
	"strings"
	"time"
)

// Confidence tiers summarize forecast uncertainty width relative to the
// predicted magnitude.
const (
	ConfidenceHigh     = "High"
	ConfidenceModerate = "Moderate"
	ConfidenceLow      = "Low"
)

// Insights derives ordered natural-language findings from a fitted model
// and its forecast table: trend direction over the requested horizon, the
// weekly activity pattern when one was estimated, the predicted peak, and a
// confidence tier. The horizon must match the one the table was built with
// so the window covers exactly the future rows; non-positive values fall
// back to the default. Empty input returns no insights. The original series
// is part of the surface for callers that want to contextualize findings;
// the derivations themselves are functions of the model and forecast.
func Insights(table []ForecastPoint, model *Model, series []Point, metric string, horizon int) []string {
	if len(table) == 0 || model == nil {
		return nil
	}

	if horizon <= 0 {
		horizon = DefaultHorizonDays
	}
	if horizon > len(table) {
		horizon = len(table)
	}
	tail := table[len(table)-horizon:]
	name := humanizeMetric(metric)

	insights := make([]string, 0, 4)

	// Trend over the horizon window.
	startVal := tail[0].Predicted
	endVal := tail[len(tail)-1].Predicted
	var pctChange float64
	if startVal != 0 {
		pctChange = (endVal - startVal) / startVal * 100
	}
	trend := "stable"
	switch {
	case pctChange > 2:
		trend = "increasing"
	case pctChange < -2:
		trend = "decreasing"
	}
	insights = append(insights, fmt.Sprintf(
		"The overall trend for %s is projected to be %s over the next %d days, with an estimated change of %.1f%%.",
		name, trend, len(tail), pctChange))

	// Weekly pattern, only when the weekly component was estimated.
	if model.HasWeeklySeasonality() {
		peakDay, lowDay := weeklyExtremes(table, model)
		insights = append(insights, fmt.Sprintf(
			"Highest activity is typically observed on %ss, while %ss usually see a dip in volume.",
			peakDay, lowDay))
	}

	// Peak within the horizon window.
	peak := tail[0]
	for _, p := range tail[1:] {
		if p.Predicted > peak.Predicted {
			peak = p
		}
	}
	insights = append(insights, fmt.Sprintf(
		"The model predicts a peak in activity on %s with approximately %.0f events.",
		peak.Date.Format("2006-01-02"), peak.Predicted))

	// Confidence: mean interval width over the horizon relative to the
	// final predicted value.
	var widthSum float64
	for _, p := range tail {
		widthSum += p.Upper - p.Lower
	}
	avgWidth := widthSum / float64(len(tail))
	tier := ConfidenceLow
	note := "forecast intervals are wide relative to predicted volume"
	if endVal != 0 {
		switch ratio := avgWidth / endVal; {
		case ratio < 0.2:
			tier = ConfidenceHigh
			note = "forecast intervals are narrow relative to predicted volume"
		case ratio < 0.5:
			tier = ConfidenceModerate
			note = "forecast intervals are moderate relative to predicted volume"
		}
	}
	insights = append(insights, fmt.Sprintf("Confidence level: %s. %s.", tier, capitalize(note)))

	return insights
}

// weeklyExtremes averages the weekly component per day-of-week across the
// forecast table and returns the highest and lowest day names.
func weeklyExtremes(table []ForecastPoint, model *Model) (peakDay, lowDay string) {
	var sums, counts [7]float64
	for _, p := range table {
		wd := int(p.Date.Weekday())
		sums[wd] += model.WeeklyComponent(p.Date.Weekday())
		counts[wd]++
	}

	best, worst := -1, -1
	for wd := 0; wd < 7; wd++ {
		if counts[wd] == 0 {
			continue
		}
		avg := sums[wd] / counts[wd]
		if best == -1 || avg > sums[best]/counts[best] {
			best = wd
		}
		if worst == -1 || avg < sums[worst]/counts[worst] {
			worst = wd
		}
	}
	return time.Weekday(best).String(), time.Weekday(worst).String()
}

// humanizeMetric turns a column name like total_updates into "Total
// Updates".
func humanizeMetric(metric string) string {
	words := strings.Split(strings.ReplaceAll(metric, "_", " "), " ")
	for i, w := range words {
		words[i] = capitalize(w)
	}
	return strings.Join(words, " ")
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
