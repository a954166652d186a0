package dataprocessing

import (
	"fmt"
	"log/slog"
	"math/rand"
	"path/filepath"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"aadhaarpulse/internal/geo"
	"aadhaarpulse/internal/monitoring"
)

// activityKey identifies one (date, state, district) triple. The state is
// already canonical at this point.
type activityKey struct {
	date     time.Time
	state    string
	district string
}

// categorySpec describes one wide-format source category: its file glob
// stem and the numeric columns to sum.
type categorySpec struct {
	name    string
	pattern string
	columns []string
}

var activityCategories = []categorySpec{
	{name: "demographic", pattern: "api_data_aadhar_demographic_*", columns: []string{"demo_age_5_17", "demo_age_17_"}},
	{name: "biometric", pattern: "api_data_aadhar_biometric_*", columns: []string{"bio_age_5_17", "bio_age_17_"}},
	{name: "enrolment", pattern: "api_data_aadhar_enrolment_*", columns: []string{"age_0_5", "age_5_17", "age_18_greater"}},
}

// AggregateActivity builds the unified state-level activity table from the
// wide-format source exports under sourceDir. Each category's files are
// group-summed per file and re-aggregated across files, the three category
// tables are outer-merged with zero fill, and every unique (state,
// district) pair receives a deterministic jittered display coordinate
// around its state centroid. The three categories are read concurrently;
// each fills its own table.
func AggregateActivity(sourceDir string, seed int64) ([]ActivityRecord, error) {
	tables := make([]map[activityKey][]float64, len(activityCategories))

	var g errgroup.Group
	for i, spec := range activityCategories {
		i, spec := i, spec
		g.Go(func() error {
			table, err := aggregateCategory(sourceDir, spec)
			if err != nil {
				return err
			}
			tables[i] = table
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Outer merge on (date, state, district) with zero fill: a district
	// present in only one category's data must not be dropped.
	keys := make(map[activityKey]struct{})
	for _, table := range tables {
		for k := range table {
			keys[k] = struct{}{}
		}
	}

	records := make([]ActivityRecord, 0, len(keys))
	for k := range keys {
		demo := tables[0][k]
		bio := tables[1][k]
		enrol := tables[2][k]
		rec := ActivityRecord{
			Date:     k.date,
			State:    k.state,
			District: k.district,
		}
		if demo != nil {
			rec.DemoAge5To17, rec.DemoAge17Plus = demo[0], demo[1]
		}
		if bio != nil {
			rec.BioAge5To17, rec.BioAge17Plus = bio[0], bio[1]
		}
		if enrol != nil {
			rec.EnrolAge0To5, rec.EnrolAge5To17, rec.EnrolAge18Up = enrol[0], enrol[1], enrol[2]
		}
		rec.TotalUpdates = rec.DemoAge5To17 + rec.DemoAge17Plus + rec.BioAge5To17 + rec.BioAge17Plus
		rec.TotalEnrolments = rec.EnrolAge0To5 + rec.EnrolAge5To17 + rec.EnrolAge18Up
		records = append(records, rec)
	}

	sort.Slice(records, func(i, j int) bool {
		if !records[i].Date.Equal(records[j].Date) {
			return records[i].Date.Before(records[j].Date)
		}
		if records[i].State != records[j].State {
			return records[i].State < records[j].State
		}
		return records[i].District < records[j].District
	})

	assignDisplayCoordinates(records, seed)

	slog.Info("aggregated activity data", slog.Int("records", len(records)))
	return records, nil
}

// aggregateCategory reads every file of one category and returns the
// group-summed table keyed by (date, state, district). Rows whose state
// cannot be normalized are dropped and counted.
func aggregateCategory(sourceDir string, spec categorySpec) (map[activityKey][]float64, error) {
	var files []string
	for _, ext := range []string{".csv", ".xlsx"} {
		matches, err := filepath.Glob(filepath.Join(sourceDir, spec.pattern+ext))
		if err != nil {
			return nil, fmt.Errorf("bad glob for %s files: %w", spec.name, err)
		}
		files = append(files, matches...)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no %s files under %s", ErrMissingInput, spec.name, sourceDir)
	}
	sort.Strings(files)

	table := make(map[activityKey][]float64)
	droppedState := 0
	droppedParse := 0
	for _, path := range files {
		header, rows, err := readTable(path)
		if err != nil {
			return nil, err
		}
		idx := headerIndex(header)
		for _, col := range append([]string{"date", "state", "district"}, spec.columns...) {
			if _, ok := idx[col]; !ok {
				return nil, fmt.Errorf("%s missing column %q", path, col)
			}
		}

		monitoring.RowsProcessed.WithLabelValues("state_aggregator").Add(float64(len(rows)))
		for _, row := range rows {
			date, err := parseActivityDate(field(row, idx, "date"))
			if err != nil {
				droppedParse++
				continue
			}
			state := geo.NormalizeState(field(row, idx, "state"))
			if state == geo.Other {
				droppedState++
				continue
			}
			// Parse the whole row before touching the table: a row with
			// any bad cell must not leak its good cells into the sums.
			values := make([]float64, len(spec.columns))
			bad := false
			for i, col := range spec.columns {
				v, err := parseFloat(field(row, idx, col))
				if err != nil {
					bad = true
					break
				}
				values[i] = v
			}
			if bad {
				droppedParse++
				continue
			}

			key := activityKey{date: date, state: state, district: field(row, idx, "district")}
			sums := table[key]
			if sums == nil {
				sums = make([]float64, len(spec.columns))
				table[key] = sums
			}
			for i, v := range values {
				sums[i] += v
			}
		}
	}

	if droppedState > 0 {
		monitoring.RowsDropped.WithLabelValues("state_aggregator", "unknown_state").Add(float64(droppedState))
	}
	if droppedParse > 0 {
		monitoring.RowsDropped.WithLabelValues("state_aggregator", "bad_value").Add(float64(droppedParse))
	}
	slog.Info("aggregated category",
		slog.String("category", spec.name),
		slog.Int("files", len(files)),
		slog.Int("groups", len(table)),
		slog.Int("dropped_state", droppedState),
		slog.Int("dropped_parse", droppedParse))
	return table, nil
}

// assignDisplayCoordinates gives every unique (state, district) pair one
// jittered coordinate around its state centroid. The jitter source is
// seeded and pairs are visited in sorted order, so repeated runs produce
// identical coordinates. Unknown states fall back to the national centroid.
func assignDisplayCoordinates(records []ActivityRecord, seed int64) {
	type pair struct{ state, district string }
	seen := make(map[pair]geo.Coordinate)
	order := make([]pair, 0)
	for _, r := range records {
		p := pair{r.State, r.District}
		if _, ok := seen[p]; !ok {
			seen[p] = geo.Coordinate{}
			order = append(order, p)
		}
	}
	sort.Slice(order, func(i, j int) bool {
		if order[i].state != order[j].state {
			return order[i].state < order[j].state
		}
		return order[i].district < order[j].district
	})

	rng := rand.New(rand.NewSource(seed))
	for _, p := range order {
		base := geo.StateCentroid(p.state)
		// Wide jitter so districts don't stack on the state centroid.
		seen[p] = geo.Coordinate{
			Lat: base.Lat + (rng.Float64()-0.5),
			Lon: base.Lon + (rng.Float64()-0.5),
		}
	}

	for i := range records {
		c := seen[pair{records[i].State, records[i].District}]
		records[i].Latitude = c.Lat
		records[i].Longitude = c.Lon
	}
}
