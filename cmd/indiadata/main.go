// Command indiadata runs the state aggregation stage: the wide-format
// activity exports (demographic, biometric, enrolment) are normalized,
// merged and written out as the unified state-level activity table.
package main

import (
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"aadhaarpulse/internal/config"
	"aadhaarpulse/internal/dataprocessing"
	"aadhaarpulse/internal/infrastructure"
)

func main() {
	dataDir := flag.String("data", "", "data directory (defaults to data/ relative to executable)")
	sourceDir := flag.String("sources", "", "directory holding the wide-format activity exports (defaults to <data>/sources)")
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
	if *sourceDir != "" {
		paths.ActivitySourceDir = *sourceDir
	}
	if err := paths.EnsureDirs(); err != nil {
		slog.Error("Failed to create directories", "error", err)
		os.Exit(1)
	}

	logger := infrastructure.GetLogger().With(
		slog.String("run_id", uuid.New().String()),
		slog.String("stage", "indiadata"))

	start := time.Now()
	logger.Info("starting state aggregation",
		slog.String("source_dir", paths.ActivitySourceDir))

	records, err := dataprocessing.AggregateActivity(paths.ActivitySourceDir, cfg.Pipeline.Seed)
	if err != nil {
		logger.Error("state aggregation failed", "error", err)
		os.Exit(1)
	}
	if err := dataprocessing.WriteActivity(paths.IndiaAggregated, records); err != nil {
		logger.Error("failed to write activity table", "error", err)
		os.Exit(1)
	}

	logger.Info("state aggregation complete",
		slog.Int("records", len(records)),
		slog.Duration("elapsed", time.Since(start)))
}
