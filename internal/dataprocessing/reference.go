package dataprocessing

import (
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strconv"
)

// LoadPincodeMaster loads the pincode -> (district, state, lat, lon) master
// table. Each pincode maps to exactly one district; later duplicates of a
// pincode are ignored.
func LoadPincodeMaster(path string) ([]PincodeEntry, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", ErrMissingInput, path)
	}

	header, rows, err := readTable(path)
	if err != nil {
		return nil, err
	}
	idx := headerIndex(header)
	for _, col := range []string{"Pincode", "District", "State", "Latitude", "Longitude"} {
		if _, ok := idx[col]; !ok {
			return nil, fmt.Errorf("pincode master %s missing column %q", path, col)
		}
	}

	seen := make(map[string]struct{}, len(rows))
	entries := make([]PincodeEntry, 0, len(rows))
	for _, row := range rows {
		pin := field(row, idx, "Pincode")
		if pin == "" {
			continue
		}
		if _, dup := seen[pin]; dup {
			continue
		}
		lat, errLat := strconv.ParseFloat(field(row, idx, "Latitude"), 64)
		lon, errLon := strconv.ParseFloat(field(row, idx, "Longitude"), 64)
		if errLat != nil || errLon != nil {
			continue
		}
		seen[pin] = struct{}{}
		entries = append(entries, PincodeEntry{
			Pincode:  pin,
			District: field(row, idx, "District"),
			State:    field(row, idx, "State"),
			Lat:      lat,
			Lon:      lon,
		})
	}

	slog.Info("loaded pincode master",
		slog.String("path", path),
		slog.Int("pincodes", len(entries)))
	return entries, nil
}

// BuildDistrictMaster derives the district centroid table from the pincode
// master: mean coordinates across a district's pincodes and the first-seen
// state label (not re-validated for consistency).
func BuildDistrictMaster(master []PincodeEntry) map[string]DistrictInfo {
	type acc struct {
		latSum, lonSum float64
		n              int
		state          string
	}
	accs := make(map[string]*acc)
	order := make([]string, 0)
	for _, e := range master {
		a, ok := accs[e.District]
		if !ok {
			a = &acc{state: e.State}
			accs[e.District] = a
			order = append(order, e.District)
		}
		a.latSum += e.Lat
		a.lonSum += e.Lon
		a.n++
	}

	sort.Strings(order)
	districts := make(map[string]DistrictInfo, len(accs))
	for _, d := range order {
		a := accs[d]
		districts[d] = DistrictInfo{
			District: d,
			State:    a.state,
			Lat:      a.latSum / float64(a.n),
			Lon:      a.lonSum / float64(a.n),
		}
	}
	return districts
}
