// Command aggregate runs the flow aggregation stage: raw identity-update
// logs are joined to the pincode master and rolled up into the daily
// district flow table and the derived net migration table.
package main

import (
	"errors"
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
	if err := paths.EnsureDirs(); err != nil {
		slog.Error("Failed to create directories", "error", err)
		os.Exit(1)
	}

	logger := infrastructure.GetLogger().With(
		slog.String("run_id", uuid.New().String()),
		slog.String("stage", "aggregate"))

	start := time.Now()
	logger.Info("starting flow aggregation")

	logs, err := dataprocessing.LoadEventLogs(paths.RawLogsCSV)
	if err != nil {
		fatalStage(logger, "load event logs", err)
	}
	master, err := dataprocessing.LoadPincodeMaster(paths.PincodeMaster)
	if err != nil {
		fatalStage(logger, "load pincode master", err)
	}

	flows := dataprocessing.AggregateFlows(logs, master)
	if err := dataprocessing.WriteFlows(paths.DistrictFlowsCSV, flows, false); err != nil {
		fatalStage(logger, "write flow table", err)
	}

	net := dataprocessing.CalculateNetMigration(flows)
	if err := dataprocessing.WriteNetMigration(paths.NetMigrationCSV, net); err != nil {
		fatalStage(logger, "write net migration table", err)
	}

	logger.Info("flow aggregation complete",
		slog.Int("flow_edges", len(flows)),
		slog.Int("net_migration_rows", len(net)),
		slog.Duration("elapsed", time.Since(start)))
}

func fatalStage(logger *slog.Logger, step string, err error) {
	if errors.Is(err, dataprocessing.ErrMissingInput) {
		logger.Error("missing input: "+step, "error", err,
			"hint", "generate or place the input files first")
	} else {
		logger.Error("stage failed: "+step, "error", err)
	}
	os.Exit(1)
}
