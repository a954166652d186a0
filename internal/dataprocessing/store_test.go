package dataprocessing

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aadhaarpulse/internal/monitoring"
)

func TestFlowTablePersistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "district_flows.csv")
	flows := []FlowRecord{
		{
			Date:           time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
			SourceDistrict: "Lucknow",
			DestDistrict:   "Noida",
			Count:          42,
			SourceState:    "Uttar Pradesh",
			SourceLat:      26.85, SourceLon: 80.95,
			DestState: "Uttar Pradesh",
			DestLat:   28.5355, DestLon: 77.3910,
			AnomalyScore: math.NaN(),
		},
		{
			Date:           time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
			SourceDistrict: "Ghost",
			DestDistrict:   "Noida",
			Count:          1,
			SourceLat:      math.NaN(), SourceLon: math.NaN(),
			DestLat: 28.5355, DestLon: 77.3910,
			AnomalyScore: math.NaN(),
		},
	}

	t.Run("roundtrip before anomaly pass", func(t *testing.T) {
		require.NoError(t, WriteFlows(path, flows, false))
		loaded, err := LoadFlows(path)
		require.NoError(t, err)
		require.Len(t, loaded, 2)

		assert.Equal(t, 42, loaded[0].Count)
		assert.Equal(t, "Lucknow", loaded[0].SourceDistrict)
		assert.True(t, loaded[0].HasCoordinates())
		assert.False(t, loaded[0].IsAnomaly)
		assert.True(t, math.IsNaN(loaded[0].AnomalyScore))

		// Missing centroid survives as NaN, not zero.
		assert.False(t, loaded[1].HasCoordinates())
		assert.True(t, math.IsNaN(loaded[1].SourceLat))
	})

	t.Run("roundtrip with anomaly labels", func(t *testing.T) {
		labeled := append([]FlowRecord(nil), flows...)
		labeled[0].IsAnomaly = true
		labeled[0].AnomalyScore = -0.12
		require.NoError(t, WriteFlows(path, labeled, true))

		loaded, err := LoadFlows(path)
		require.NoError(t, err)
		require.Len(t, loaded, 2)
		assert.True(t, loaded[0].IsAnomaly)
		assert.InDelta(t, -0.12, loaded[0].AnomalyScore, 1e-9)
		assert.False(t, loaded[1].IsAnomaly)
	})
}

func TestLoadFlowsCountsSkippedRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "district_flows.csv")
	require.NoError(t, os.WriteFile(path, []byte(
		"date,source_district,dest_district,count,source_state,source_lat,source_lon,dest_state,dest_lat,dest_lon\n"+
			"2024-03-01,Lucknow,Noida,42,Uttar Pradesh,26.85,80.95,Uttar Pradesh,28.53,77.39\n"+
			"2024-03-01,Kochi,Mumbai,many,Kerala,9.93,76.26,Maharashtra,19.07,72.87\n"+
			"not-a-date,Kochi,Mumbai,7,Kerala,9.93,76.26,Maharashtra,19.07,72.87\n"), 0644))

	counter := monitoring.RowsDropped.WithLabelValues("flow_loader", "bad_row")
	before := testutil.ToFloat64(counter)

	flows, err := LoadFlows(path)
	require.NoError(t, err)
	require.Len(t, flows, 1)
	assert.Equal(t, "Lucknow", flows[0].SourceDistrict)
	assert.Equal(t, 2.0, testutil.ToFloat64(counter)-before)
}

func TestLoadFlowsMissingFile(t *testing.T) {
	_, err := LoadFlows(filepath.Join(t.TempDir(), "nope.csv"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingInput)
}

func TestSanitizeFlows(t *testing.T) {
	flows := []FlowRecord{
		{SourceState: "Orissa", DestState: "Kerala"},
		{SourceState: "Jaipur", DestState: "Kerala"},
		{SourceState: "Kerala", DestState: "100000"},
	}
	out := SanitizeFlows(flows)
	require.Len(t, out, 1)
	assert.Equal(t, "Odisha", out[0].SourceState)
	assert.Equal(t, "Kerala", out[0].DestState)
}

func TestActivityTablePersistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "india_aggregated.csv")
	records := []ActivityRecord{{
		Date:            time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
		State:           "Kerala",
		District:        "Kochi",
		EnrolAge0To5:    4,
		EnrolAge5To17:   5,
		EnrolAge18Up:    6,
		TotalEnrolments: 15,
		Latitude:        10.9,
		Longitude:       76.1,
	}}

	require.NoError(t, WriteActivity(path, records))
	loaded, err := LoadActivity(path)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, records[0], loaded[0])
}
