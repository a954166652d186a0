// Package forecast fits an additive time-series model (piecewise-linear
// trend plus weekly seasonality) over a daily metric and produces a
// fixed-horizon point forecast with uncertainty bounds and derived textual
// insights. Fitting failures and short inputs degrade to an explicit empty
// result; they never propagate as errors to the caller.
package forecast

import (
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"
)

const (
	// DefaultHorizonDays is the standard forecast horizon.
	DefaultHorizonDays = 30
	// DefaultChangepointPriorScale controls trend-break sensitivity:
	// larger values let the trend bend more at changepoints.
	DefaultChangepointPriorScale = 0.05

	maxChangepoints = 25
	// changepointRange places candidate changepoints over the first 80%
	// of history so the final trend is estimated from untouched data.
	changepointRange = 0.8
	// interval80z is the normal quantile for 80% prediction intervals.
	interval80z = 1.2816
	// minWeeklySpanDays is the shortest history for which the weekly
	// component is estimated; below two full cycles the weekday means are
	// noise.
	minWeeklySpanDays = 14
)

// Point is one observation of the chosen metric. Multiple points may share
// a date; Forecast sums them per date before fitting.
type Point struct {
	Date  time.Time
	Value float64
}

// ForecastPoint is one row of the forecast table: the point prediction and
// its uncertainty bounds for a historical or future date.
type ForecastPoint struct {
	Date      time.Time `json:"date"`
	Predicted float64   `json:"predicted"`
	Lower     float64   `json:"lower"`
	Upper     float64   `json:"upper"`
}

// Model is a fitted additive decomposition. The state machine is
// empty -> fitted -> forecasted -> insighted; a nil *Model is the explicit
// empty state.
type Model struct {
	Metric                string
	ChangepointPriorScale float64

	start        time.Time
	historyDays  int // distinct historical dates
	intercept    float64
	slope        float64
	changepoints []float64 // day offsets of trend breaks
	deltas       []float64 // slope adjustments at changepoints
	weekly       [7]float64
	hasWeekly    bool
	sigma        float64
}

// HasWeeklySeasonality reports whether the weekly component was estimated.
func (m *Model) HasWeeklySeasonality() bool {
	return m.hasWeekly
}

// WeeklyComponent returns the additive weekly term for a weekday.
func (m *Model) WeeklyComponent(day time.Weekday) float64 {
	if !m.hasWeekly {
		return 0
	}
	return m.weekly[int(day)]
}

// Trend evaluates the piecewise-linear trend at t days after the series
// start. Beyond the last changepoint the final slope continues.
func (m *Model) Trend(t float64) float64 {
	y := m.intercept + m.slope*t
	for i, cp := range m.changepoints {
		if t > cp {
			y += m.deltas[i] * (t - cp)
		}
	}
	return y
}

// Predict evaluates trend + seasonality for a date.
func (m *Model) Predict(date time.Time) float64 {
	t := date.Sub(m.start).Hours() / 24
	return m.Trend(t) + m.WeeklyComponent(date.Weekday())
}

// Forecast groups the series by date, sums the metric, fits the additive
// model and extends it horizon days past the last historical date. The
// returned table covers every historical date plus the horizon. Fewer than
// two distinct dates, or any numerical failure during fitting, returns
// (nil, nil) without raising.
func Forecast(series []Point, metric string, horizon int) ([]ForecastPoint, *Model) {
	if horizon <= 0 {
		horizon = DefaultHorizonDays
	}

	dates, values := groupByDate(series)
	if len(dates) < 2 {
		slog.Info("not enough data to forecast",
			slog.String("metric", metric),
			slog.Int("distinct_dates", len(dates)))
		return nil, nil
	}

	model, err := fit(dates, values, metric, DefaultChangepointPriorScale)
	if err != nil {
		slog.Error("forecast fitting failed",
			slog.String("metric", metric),
			slog.String("error", err.Error()))
		return nil, nil
	}

	table := make([]ForecastPoint, 0, len(dates)+horizon)
	for _, d := range dates {
		table = append(table, model.point(d, 0))
	}
	last := dates[len(dates)-1]
	for h := 1; h <= horizon; h++ {
		table = append(table, model.point(last.AddDate(0, 0, h), h))
	}
	return table, model
}

// point builds one forecast row. Uncertainty widens with distance past the
// end of history.
func (m *Model) point(date time.Time, stepsAhead int) ForecastPoint {
	yhat := m.Predict(date)
	width := interval80z * m.sigma
	if stepsAhead > 0 {
		width *= math.Sqrt(1 + float64(stepsAhead)/float64(m.historyDays))
	}
	return ForecastPoint{Date: date, Predicted: yhat, Lower: yhat - width, Upper: yhat + width}
}

// groupByDate sums the metric per calendar date and returns sorted dates
// with their values.
func groupByDate(series []Point) ([]time.Time, []float64) {
	sums := make(map[time.Time]float64)
	for _, p := range series {
		day := time.Date(p.Date.Year(), p.Date.Month(), p.Date.Day(), 0, 0, 0, 0, time.UTC)
		sums[day] += p.Value
	}
	dates := make([]time.Time, 0, len(sums))
	for d := range sums {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	values := make([]float64, len(dates))
	for i, d := range dates {
		values[i] = sums[d]
	}
	return dates, values
}

// fit estimates the trend and weekly components. The trend is a linear
// segment with ridge-damped slope adjustments at candidate changepoints;
// the damping strength comes from the changepoint flexibility parameter.
func fit(dates []time.Time, values []float64, metric string, cpScale float64) (*Model, error) {
	n := len(dates)
	start := dates[0]
	t := make([]float64, n)
	for i, d := range dates {
		t[i] = d.Sub(start).Hours() / 24
	}
	span := t[n-1]

	m := &Model{
		Metric:                metric,
		ChangepointPriorScale: cpScale,
		start:                 start,
		historyDays:           n,
		changepoints:          placeChangepoints(t),
	}
	m.hasWeekly = span >= minWeeklySpanDays

	// Two passes: estimate the trend, pull weekday effects out of its
	// residuals, then refit the trend on the deseasonalized series.
	work := append([]float64(nil), values...)
	for pass := 0; pass < 2; pass++ {
		if err := m.fitTrend(t, work); err != nil {
			return nil, err
		}
		if !m.hasWeekly || pass == 1 {
			break
		}
		m.estimateWeekly(dates, t, values)
		for i := range work {
			work[i] = values[i] - m.weekly[int(dates[i].Weekday())]
		}
	}

	// Residual spread over the full additive fit.
	var ss float64
	for i, d := range dates {
		r := values[i] - m.Predict(d)
		ss += r * r
	}
	m.sigma = math.Sqrt(ss / float64(n))
	if math.IsNaN(m.sigma) || math.IsInf(m.sigma, 0) {
		return nil, fmt.Errorf("degenerate residual variance for metric %s", metric)
	}
	return m, nil
}

// placeChangepoints spreads candidate trend breaks uniformly over the
// first 80% of history. Short series get none.
func placeChangepoints(t []float64) []float64 {
	n := len(t)
	if n < 8 {
		return nil
	}
	limit := int(changepointRange * float64(n))
	numCp := limit - 1
	if numCp > maxChangepoints {
		numCp = maxChangepoints
	}
	if numCp < 1 {
		return nil
	}
	cps := make([]float64, 0, numCp)
	for j := 1; j <= numCp; j++ {
		idx := j * limit / (numCp + 1)
		if idx > 0 && idx < n {
			cps = append(cps, t[idx])
		}
	}
	return cps
}

// fitTrend solves the ridge-regularized least squares for
// y ~ intercept + slope*t + sum_j delta_j * (t - cp_j)_+ .
// Only the delta coefficients are penalized; the penalty scales inversely
// with the changepoint flexibility.
func (m *Model) fitTrend(t, y []float64) error {
	nCp := len(m.changepoints)
	dim := 2 + nCp
	lambda := 1.0 / m.ChangepointPriorScale

	// Normal equations: (X'X + lambda*P) beta = X'y with P penalizing
	// delta entries only.
	xtx := make([][]float64, dim)
	for i := range xtx {
		xtx[i] = make([]float64, dim)
	}
	xty := make([]float64, dim)

	row := make([]float64, dim)
	for i := range t {
		row[0] = 1
		row[1] = t[i]
		for j, cp := range m.changepoints {
			if t[i] > cp {
				row[2+j] = t[i] - cp
			} else {
				row[2+j] = 0
			}
		}
		for a := 0; a < dim; a++ {
			for b := 0; b < dim; b++ {
				xtx[a][b] += row[a] * row[b]
			}
			xty[a] += row[a] * y[i]
		}
	}
	for j := 0; j < nCp; j++ {
		xtx[2+j][2+j] += lambda
	}

	beta, err := solve(xtx, xty)
	if err != nil {
		return err
	}
	m.intercept = beta[0]
	m.slope = beta[1]
	m.deltas = beta[2:]
	return nil
}

// estimateWeekly sets the weekday components to the mean detrended
// residual per weekday, centered to zero mean.
func (m *Model) estimateWeekly(dates []time.Time, t, y []float64) {
	var sums, counts [7]float64
	for i := range dates {
		wd := int(dates[i].Weekday())
		sums[wd] += y[i] - m.Trend(t[i])
		counts[wd]++
	}
	var total float64
	var present int
	for wd := 0; wd < 7; wd++ {
		if counts[wd] > 0 {
			m.weekly[wd] = sums[wd] / counts[wd]
			total += m.weekly[wd]
			present++
		}
	}
	// Center so the weekly term carries no trend.
	if present > 0 {
		mean := total / float64(present)
		for wd := 0; wd < 7; wd++ {
			if counts[wd] > 0 {
				m.weekly[wd] -= mean
			}
		}
	}
}

// solve performs Gaussian elimination with partial pivoting on a dense
// symmetric system.
func solve(a [][]float64, b []float64) ([]float64, error) {
	n := len(b)
	// Work on augmented copies.
	aug := make([][]float64, n)
	for i := range aug {
		aug[i] = append(append([]float64(nil), a[i]...), b[i])
	}

	for col := 0; col < n; col++ {
		pivot := col
		for r := col + 1; r < n; r++ {
			if math.Abs(aug[r][col]) > math.Abs(aug[pivot][col]) {
				pivot = r
			}
		}
		if math.Abs(aug[pivot][col]) < 1e-12 {
			return nil, fmt.Errorf("singular system at column %d", col)
		}
		aug[col], aug[pivot] = aug[pivot], aug[col]

		for r := col + 1; r < n; r++ {
			factor := aug[r][col] / aug[col][col]
			for c := col; c <= n; c++ {
				aug[r][c] -= factor * aug[col][c]
			}
		}
	}

	x := make([]float64, n)
	for r := n - 1; r >= 0; r-- {
		sum := aug[r][n]
		for c := r + 1; c < n; c++ {
			sum -= aug[r][c] * x[c]
		}
		x[r] = sum / aug[r][r]
	}
	return x, nil
}
