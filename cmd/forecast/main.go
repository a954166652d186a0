// Command forecast fits the forecast model for one metric of the activity
// table, writes the forecast table to CSV and prints the derived insights.
package main

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"aadhaarpulse/internal/config"
	"aadhaarpulse/internal/dataprocessing"
	"aadhaarpulse/internal/exporter"
	"aadhaarpulse/internal/forecast"
	"aadhaarpulse/internal/infrastructure"
)

func main() {
	dataDir := flag.String("data", "", "data directory (defaults to data/ relative to executable)")
	configFile := flag.String("config", "", "optional YAML config file")
	metric := flag.String("metric", "total_updates", "metric to forecast (see -list)")
	horizon := flag.Int("horizon", 0, "forecast horizon in days (defaults to configured value)")
	list := flag.Bool("list", false, "list forecastable metrics and exit")
	flag.Parse()

	if *list {
		fmt.Println(strings.Join(dataprocessing.ForecastableMetrics(), "\n"))
		return
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	if _, err := infrastructure.InitializeLogger(cfg.Logging); err != nil {
		slog.Error("Failed to initialize logger", "error", err)
		os.Exit(1)
	}
	defer infrastructure.CloseLogFile()

	paths, err := config.GetPaths(*dataDir)
	if err != nil {
		slog.Error("Failed to initialize paths", "error", err)
		os.Exit(1)
	}
	if *horizon <= 0 {
		*horizon = cfg.Pipeline.ForecastHorizonDays
	}

	logger := infrastructure.GetLogger().With(
		slog.String("run_id", uuid.New().String()),
		slog.String("stage", "forecast"))

	start := time.Now()
	logger.Info("starting forecast",
		slog.String("metric", *metric),
		slog.Int("horizon", *horizon))

	records, err := dataprocessing.LoadActivity(paths.IndiaAggregated)
	if err != nil {
		if errors.Is(err, dataprocessing.ErrMissingInput) {
			logger.Error("activity table not found: run the indiadata stage first", "error", err)
		} else {
			logger.Error("failed to load activity table", "error", err)
		}
		os.Exit(1)
	}
	records = dataprocessing.SanitizeActivity(records)

	series, err := dataprocessing.MetricSeries(records, *metric)
	if err != nil {
		logger.Error("invalid metric", "error", err)
		os.Exit(1)
	}

	table, model := forecast.Forecast(series, *metric, *horizon)
	if model == nil {
		logger.Warn("not enough data to forecast", slog.String("metric", *metric))
		fmt.Println("Not enough data to generate a forecast.")
		return
	}

	outPath := filepath.Join(paths.DataDir, fmt.Sprintf("forecast_%s.csv", *metric))
	rows := make([][]string, 0, len(table))
	for _, p := range table {
		rows = append(rows, []string{
			p.Date.Format("2006-01-02"),
			strconv.FormatFloat(p.Predicted, 'f', 4, 64),
			strconv.FormatFloat(p.Lower, 'f', 4, 64),
			strconv.FormatFloat(p.Upper, 'f', 4, 64),
		})
	}
	if err := exporter.WriteCSV(outPath, exporter.WriteOptions{
		Headers: []string{"date", "predicted", "lower", "upper"},
		Records: rows,
	}); err != nil {
		logger.Error("failed to write forecast table", "error", err)
		os.Exit(1)
	}

	fmt.Println("--- Forecast Insights ---")
	for _, insight := range forecast.Insights(table, model, series, *metric, *horizon) {
		fmt.Println("- " + insight)
	}

	logger.Info("forecast complete",
		slog.Int("points", len(table)),
		slog.String("output", outPath),
		slog.Duration("elapsed", time.Since(start)))
}
