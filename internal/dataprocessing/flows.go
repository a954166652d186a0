package dataprocessing

import (
	"fmt"
	"log/slog"
	"math"
	"os"
	"sort"
	"time"

	"aadhaarpulse/internal/monitoring"
)

// LoadEventLogs reads the raw identity-update log. Rows with unparseable
// timestamps are dropped and counted, not escalated.
func LoadEventLogs(path string) ([]EventLog, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", ErrMissingInput, path)
	}

	header, rows, err := readTable(path)
	if err != nil {
		return nil, err
	}
	idx := headerIndex(header)
	for _, col := range []string{"Timestamp", "Source_Pincode", "Dest_Pincode", "Update_Type"} {
		if _, ok := idx[col]; !ok {
			return nil, fmt.Errorf("event log %s missing column %q", path, col)
		}
	}

	logs := make([]EventLog, 0, len(rows))
	dropped := 0
	for _, row := range rows {
		ts, err := parseTimestamp(field(row, idx, "Timestamp"))
		if err != nil {
			dropped++
			continue
		}
		logs = append(logs, EventLog{
			UpdateID:      field(row, idx, "UpdateID"),
			Timestamp:     ts,
			SourcePincode: field(row, idx, "Source_Pincode"),
			DestPincode:   field(row, idx, "Dest_Pincode"),
			UpdateType:    field(row, idx, "Update_Type"),
		})
	}

	monitoring.RowsProcessed.WithLabelValues("flow_aggregator").Add(float64(len(rows)))
	if dropped > 0 {
		monitoring.RowsDropped.WithLabelValues("flow_aggregator", "bad_timestamp").Add(float64(dropped))
		slog.Warn("dropped event rows with unparseable timestamps",
			slog.Int("dropped", dropped))
	}
	slog.Info("loaded event logs",
		slog.String("path", path),
		slog.Int("rows", len(logs)))
	return logs, nil
}

type flowKey struct {
	date time.Time
	src  string
	dst  string
}

// AggregateFlows buckets address-change events by (date, source district,
// destination district) and enriches both endpoints with district centroid
// coordinates. Events whose source or destination pincode has no master
// entry are dropped (accepted data loss, counted). Districts without a
// centroid entry keep the edge but carry NaN coordinates.
func AggregateFlows(logs []EventLog, master []PincodeEntry) []FlowRecord {
	pinToDistrict := make(map[string]string, len(master))
	for _, e := range master {
		if _, ok := pinToDistrict[e.Pincode]; !ok {
			pinToDistrict[e.Pincode] = e.District
		}
	}
	districts := BuildDistrictMaster(master)

	counts := make(map[flowKey]int)
	droppedJoin := 0
	for _, ev := range logs {
		if ev.UpdateType != UpdateTypeAddress {
			continue
		}
		src, okSrc := pinToDistrict[ev.SourcePincode]
		dst, okDst := pinToDistrict[ev.DestPincode]
		if !okSrc || !okDst {
			droppedJoin++
			continue
		}
		day := ev.Timestamp.Truncate(24 * time.Hour)
		counts[flowKey{date: day, src: src, dst: dst}]++
	}

	if droppedJoin > 0 {
		monitoring.RowsDropped.WithLabelValues("flow_aggregator", "unmapped_pincode").Add(float64(droppedJoin))
		slog.Warn("dropped address-change events with unmapped pincodes",
			slog.Int("dropped", droppedJoin))
	}

	flows := make([]FlowRecord, 0, len(counts))
	for key, count := range counts {
		rec := FlowRecord{
			Date:           key.date,
			SourceDistrict: key.src,
			DestDistrict:   key.dst,
			Count:          count,
			SourceLat:      math.NaN(),
			SourceLon:      math.NaN(),
			DestLat:        math.NaN(),
			DestLon:        math.NaN(),
			AnomalyScore:   math.NaN(),
		}
		if d, ok := districts[key.src]; ok {
			rec.SourceState = d.State
			rec.SourceLat = d.Lat
			rec.SourceLon = d.Lon
		}
		if d, ok := districts[key.dst]; ok {
			rec.DestState = d.State
			rec.DestLat = d.Lat
			rec.DestLon = d.Lon
		}
		flows = append(flows, rec)
	}

	sort.Slice(flows, func(i, j int) bool {
		if !flows[i].Date.Equal(flows[j].Date) {
			return flows[i].Date.Before(flows[j].Date)
		}
		if flows[i].SourceDistrict != flows[j].SourceDistrict {
			return flows[i].SourceDistrict < flows[j].SourceDistrict
		}
		return flows[i].DestDistrict < flows[j].DestDistrict
	})

	slog.Info("aggregated daily flows", slog.Int("edges", len(flows)))
	return flows
}

// CalculateNetMigration derives per-district daily inflow, outflow and net
// from the flow table. Pure function: the flow table is not modified, and
// a district missing on one side of the merge gets zero for that side.
func CalculateNetMigration(flows []FlowRecord) []NetMigrationRecord {
	type nodeKey struct {
		date     time.Time
		district string
	}
	inflow := make(map[nodeKey]int)
	outflow := make(map[nodeKey]int)
	for _, f := range flows {
		inflow[nodeKey{f.Date, f.DestDistrict}] += f.Count
		outflow[nodeKey{f.Date, f.SourceDistrict}] += f.Count
	}

	keys := make(map[nodeKey]struct{}, len(inflow)+len(outflow))
	for k := range inflow {
		keys[k] = struct{}{}
	}
	for k := range outflow {
		keys[k] = struct{}{}
	}

	records := make([]NetMigrationRecord, 0, len(keys))
	for k := range keys {
		in := inflow[k]
		out := outflow[k]
		records = append(records, NetMigrationRecord{
			Date:     k.date,
			District: k.district,
			Inflow:   in,
			Outflow:  out,
			Net:      in - out,
		})
	}

	sort.Slice(records, func(i, j int) bool {
		if !records[i].Date.Equal(records[j].Date) {
			return records[i].Date.Before(records[j].Date)
		}
		return records[i].District < records[j].District
	})
	return records
}
