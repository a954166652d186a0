package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// Paths contains all the application data file paths.
// This is the single source of truth for every file the pipeline reads or
// writes; stages must never assemble their own paths.
type Paths struct {
	DataDir string
	LogsDir string

	// Raw inputs.
	RawLogsCSV    string
	PincodeMaster string
	// Directory holding the wide-format activity exports
	// (api_data_aadhar_{demographic,biometric,enrolment}_*.{csv,xlsx}).
	ActivitySourceDir string

	// Persisted pipeline outputs.
	DistrictFlowsCSV string
	NetMigrationCSV  string
	IndiaAggregated  string
}

// GetPaths returns the application paths rooted at dataDir. When dataDir is
// empty the data directory is resolved relative to the executable location,
// never the current working directory, so binaries behave the same from any
// shell.
func GetPaths(dataDir string) (*Paths, error) {
	if dataDir == "" {
		exe, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("failed to get executable path: %w", err)
		}
		exe, err = filepath.EvalSymlinks(exe)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve executable symlinks: %w", err)
		}
		dataDir = filepath.Join(filepath.Dir(exe), "data")
	}

	p := &Paths{
		DataDir:           dataDir,
		LogsDir:           filepath.Join(filepath.Dir(dataDir), "logs"),
		RawLogsCSV:        filepath.Join(dataDir, "raw_aadhaar_logs.csv"),
		PincodeMaster:     filepath.Join(dataDir, "pincode_master.csv"),
		ActivitySourceDir: filepath.Join(dataDir, "sources"),
		DistrictFlowsCSV:  filepath.Join(dataDir, "district_flows.csv"),
		NetMigrationCSV:   filepath.Join(dataDir, "district_net_migration.csv"),
		IndiaAggregated:   filepath.Join(dataDir, "india_aggregated.csv"),
	}
	return p, nil
}

// EnsureDirs creates the data and log directories if they do not exist.
func (p *Paths) EnsureDirs() error {
	for _, dir := range []string{p.DataDir, p.LogsDir, p.ActivitySourceDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}
