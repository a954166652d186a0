package dataprocessing

import (
	"fmt"
	"log/slog"
	"math"
	"os"
	"strconv"

	"aadhaarpulse/internal/exporter"
	"aadhaarpulse/internal/geo"
	"aadhaarpulse/internal/monitoring"
)

// flowHeaders are the persisted flow table columns; anomalyHeaders are
// appended once the anomaly pass has run.
var (
	flowHeaders = []string{
		"date", "source_district", "dest_district", "count",
		"source_state", "source_lat", "source_lon",
		"dest_state", "dest_lat", "dest_lon",
	}
	anomalyHeaders = []string{"is_anomaly", "anomaly_score"}
)

// formatCoord renders a float cell, using the empty cell for NaN (missing
// centroid) the same way the upstream tooling does.
func formatCoord(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// parseCoord reads a float cell where empty means missing.
func parseCoord(s string) float64 {
	if s == "" {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

// WriteFlows persists the daily flow table. Anomaly columns are written
// only when the table has been through the anomaly pass.
func WriteFlows(path string, flows []FlowRecord, withAnomalies bool) error {
	headers := flowHeaders
	if withAnomalies {
		headers = append(append([]string{}, flowHeaders...), anomalyHeaders...)
	}

	records := make([][]string, 0, len(flows))
	for _, f := range flows {
		row := []string{
			DateKey(f.Date),
			f.SourceDistrict,
			f.DestDistrict,
			strconv.Itoa(f.Count),
			f.SourceState,
			formatCoord(f.SourceLat),
			formatCoord(f.SourceLon),
			f.DestState,
			formatCoord(f.DestLat),
			formatCoord(f.DestLon),
		}
		if withAnomalies {
			row = append(row, strconv.FormatBool(f.IsAnomaly), formatCoord(f.AnomalyScore))
		}
		records = append(records, row)
	}

	return exporter.WriteCSV(path, exporter.WriteOptions{Headers: headers, Records: records})
}

// LoadFlows reads a persisted flow table. Anomaly columns are optional:
// tables written before the anomaly pass load with false/NaN labels.
func LoadFlows(path string) ([]FlowRecord, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", ErrMissingInput, path)
	}

	header, rows, err := readTable(path)
	if err != nil {
		return nil, err
	}
	idx := headerIndex(header)
	for _, col := range flowHeaders {
		if _, ok := idx[col]; !ok {
			return nil, fmt.Errorf("flow table %s missing column %q", path, col)
		}
	}
	_, hasAnomalies := idx["is_anomaly"]

	flows := make([]FlowRecord, 0, len(rows))
	dropped := 0
	for _, row := range rows {
		date, err := parseActivityDate(field(row, idx, "date"))
		if err != nil {
			dropped++
			continue
		}
		count, err := strconv.Atoi(field(row, idx, "count"))
		if err != nil {
			dropped++
			continue
		}
		rec := FlowRecord{
			Date:           date,
			SourceDistrict: field(row, idx, "source_district"),
			DestDistrict:   field(row, idx, "dest_district"),
			Count:          count,
			SourceState:    field(row, idx, "source_state"),
			SourceLat:      parseCoord(field(row, idx, "source_lat")),
			SourceLon:      parseCoord(field(row, idx, "source_lon")),
			DestState:      field(row, idx, "dest_state"),
			DestLat:        parseCoord(field(row, idx, "dest_lat")),
			DestLon:        parseCoord(field(row, idx, "dest_lon")),
			AnomalyScore:   math.NaN(),
		}
		if hasAnomalies {
			rec.IsAnomaly = field(row, idx, "is_anomaly") == "true"
			rec.AnomalyScore = parseCoord(field(row, idx, "anomaly_score"))
		}
		flows = append(flows, rec)
	}
	if dropped > 0 {
		monitoring.RowsDropped.WithLabelValues("flow_loader", "bad_row").Add(float64(dropped))
		slog.Warn("skipped unreadable flow table rows",
			slog.String("path", path),
			slog.Int("skipped", dropped))
	}
	return flows, nil
}

// WriteNetMigration persists the derived net migration table.
func WriteNetMigration(path string, records []NetMigrationRecord) error {
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, []string{
			DateKey(r.Date),
			r.District,
			strconv.Itoa(r.Inflow),
			strconv.Itoa(r.Outflow),
			strconv.Itoa(r.Net),
		})
	}
	return exporter.WriteCSV(path, exporter.WriteOptions{
		Headers: []string{"date", "district", "inflow", "outflow", "net_migration"},
		Records: rows,
	})
}

var activityHeaders = []string{
	"date", "state", "district",
	"demo_age_5_17", "demo_age_17_",
	"bio_age_5_17", "bio_age_17_",
	"age_0_5", "age_5_17", "age_18_greater",
	"total_updates", "total_enrolments",
	"latitude", "longitude",
}

// WriteActivity persists the unified state-level activity table.
func WriteActivity(path string, records []ActivityRecord) error {
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, []string{
			DateKey(r.Date),
			r.State,
			r.District,
			formatCoord(r.DemoAge5To17),
			formatCoord(r.DemoAge17Plus),
			formatCoord(r.BioAge5To17),
			formatCoord(r.BioAge17Plus),
			formatCoord(r.EnrolAge0To5),
			formatCoord(r.EnrolAge5To17),
			formatCoord(r.EnrolAge18Up),
			formatCoord(r.TotalUpdates),
			formatCoord(r.TotalEnrolments),
			formatCoord(r.Latitude),
			formatCoord(r.Longitude),
		})
	}
	return exporter.WriteCSV(path, exporter.WriteOptions{Headers: activityHeaders, Records: rows})
}

// LoadActivity reads a persisted activity table.
func LoadActivity(path string) ([]ActivityRecord, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", ErrMissingInput, path)
	}

	header, rows, err := readTable(path)
	if err != nil {
		return nil, err
	}
	idx := headerIndex(header)
	for _, col := range activityHeaders {
		if _, ok := idx[col]; !ok {
			return nil, fmt.Errorf("activity table %s missing column %q", path, col)
		}
	}

	records := make([]ActivityRecord, 0, len(rows))
	dropped := 0
	for _, row := range rows {
		date, err := parseActivityDate(field(row, idx, "date"))
		if err != nil {
			dropped++
			continue
		}
		num := func(col string) float64 {
			v, _ := parseFloat(field(row, idx, col))
			return v
		}
		records = append(records, ActivityRecord{
			Date:            date,
			State:           field(row, idx, "state"),
			District:        field(row, idx, "district"),
			DemoAge5To17:    num("demo_age_5_17"),
			DemoAge17Plus:   num("demo_age_17_"),
			BioAge5To17:     num("bio_age_5_17"),
			BioAge17Plus:    num("bio_age_17_"),
			EnrolAge0To5:    num("age_0_5"),
			EnrolAge5To17:   num("age_5_17"),
			EnrolAge18Up:    num("age_18_greater"),
			TotalUpdates:    num("total_updates"),
			TotalEnrolments: num("total_enrolments"),
			Latitude:        num("latitude"),
			Longitude:       num("longitude"),
		})
	}
	if dropped > 0 {
		monitoring.RowsDropped.WithLabelValues("activity_loader", "bad_row").Add(float64(dropped))
		slog.Warn("skipped unreadable activity table rows",
			slog.String("path", path),
			slog.Int("skipped", dropped))
	}
	return records, nil
}

// SanitizeFlows normalizes both endpoint state labels and drops rows whose
// state collapses to the Other sentinel. This is the data-quality gate
// applied before any analytical view of the flow table.
func SanitizeFlows(flows []FlowRecord) []FlowRecord {
	out := make([]FlowRecord, 0, len(flows))
	for _, f := range flows {
		f.SourceState = geo.NormalizeState(f.SourceState)
		f.DestState = geo.NormalizeState(f.DestState)
		if f.SourceState == geo.Other || f.DestState == geo.Other {
			continue
		}
		out = append(out, f)
	}
	return out
}

// SanitizeActivity normalizes state labels and drops Other rows.
func SanitizeActivity(records []ActivityRecord) []ActivityRecord {
	out := make([]ActivityRecord, 0, len(records))
	for _, r := range records {
		r.State = geo.NormalizeState(r.State)
		if r.State == geo.Other {
			continue
		}
		out = append(out, r)
	}
	return out
}
