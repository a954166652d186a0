// Command anomaly runs the anomaly detection pass over the persisted flow
// table and writes it back with is_anomaly and anomaly_score columns.
package main

import (
	"errors"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"aadhaarpulse/internal/anomaly"
	"aadhaarpulse/internal/config"
	"aadhaarpulse/internal/dataprocessing"
	"aadhaarpulse/internal/infrastructure"
)

func main() {
	dataDir := flag.String("data", "", "data directory (defaults to data/ relative to executable)")
	configFile := flag.String("config", "", "optional YAML config file")
	flag.Parse()

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

	logger := infrastructure.GetLogger().With(
		slog.String("run_id", uuid.New().String()),
		slog.String("stage", "anomaly"))

	start := time.Now()
	logger.Info("starting anomaly detection",
		slog.Float64("contamination", cfg.Pipeline.Contamination))

	flows, err := dataprocessing.LoadFlows(paths.DistrictFlowsCSV)
	if err != nil {
		if errors.Is(err, dataprocessing.ErrMissingInput) {
			logger.Error("flow table not found: run the aggregate stage first", "error", err)
		} else {
			logger.Error("failed to load flow table", "error", err)
		}
		os.Exit(1)
	}

	detector := anomaly.NewDetector(cfg.Pipeline.Contamination, cfg.Pipeline.Seed)
	labeled := detector.Detect(flows)

	if err := dataprocessing.WriteFlows(paths.DistrictFlowsCSV, labeled, true); err != nil {
		logger.Error("failed to write labeled flow table", "error", err)
		os.Exit(1)
	}

	flagged := 0
	for _, f := range labeled {
		if f.IsAnomaly {
			flagged++
		}
	}
	logger.Info("anomaly detection complete",
		slog.Int("edges", len(labeled)),
		slog.Int("flagged_edges", flagged),
		slog.Duration("elapsed", time.Since(start)))
}
