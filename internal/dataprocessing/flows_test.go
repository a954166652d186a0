package dataprocessing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testMaster = []PincodeEntry{
	{Pincode: "226001", District: "Lucknow", State: "Uttar Pradesh", Lat: 26.80, Lon: 80.90},
	{Pincode: "226002", District: "Lucknow", State: "Uttar Pradesh", Lat: 26.90, Lon: 81.00},
	{Pincode: "201301", District: "Noida", State: "Uttar Pradesh", Lat: 28.5355, Lon: 77.3910},
	{Pincode: "400001", District: "Mumbai", State: "Maharashtra", Lat: 19.0760, Lon: 72.8777},
}

func event(day int, updateType, srcPin, dstPin string) EventLog {
	return EventLog{
		Timestamp:     time.Date(2024, 3, day, 14, 30, 0, 0, time.UTC),
		UpdateType:    updateType,
		SourcePincode: srcPin,
		DestPincode:   dstPin,
	}
}

func TestBuildDistrictMaster(t *testing.T) {
	districts := BuildDistrictMaster(testMaster)
	require.Len(t, districts, 3)

	lucknow := districts["Lucknow"]
	assert.Equal(t, "Uttar Pradesh", lucknow.State)
	assert.InDelta(t, 26.85, lucknow.Lat, 1e-9)
	assert.InDelta(t, 80.95, lucknow.Lon, 1e-9)
}

func TestAggregateFlows(t *testing.T) {
	t.Run("unique keys with counts", func(t *testing.T) {
		logs := []EventLog{
			event(1, "Address", "226001", "201301"),
			event(1, "Address", "226002", "201301"), // same districts, other pincode
			event(1, "Address", "226001", "201301"),
			event(2, "Address", "226001", "201301"), // next day, separate edge
		}
		flows := AggregateFlows(logs, testMaster)
		require.Len(t, flows, 2)

		seen := make(map[string]struct{})
		for _, f := range flows {
			key := DateKey(f.Date) + "|" + f.SourceDistrict + "|" + f.DestDistrict
			_, dup := seen[key]
			assert.False(t, dup, "duplicate key %s", key)
			seen[key] = struct{}{}
		}
		assert.Equal(t, 3, flows[0].Count)
		assert.Equal(t, 1, flows[1].Count)
	})

	t.Run("non-address updates do not contribute", func(t *testing.T) {
		logs := []EventLog{
			event(1, "Address", "226001", "201301"),
			event(1, "Mobile", "226001", "201301"),
			event(1, "Biometric", "226001", "226001"),
		}
		flows := AggregateFlows(logs, testMaster)
		require.Len(t, flows, 1)
		assert.Equal(t, 1, flows[0].Count)
	})

	t.Run("unmapped pincodes are dropped", func(t *testing.T) {
		logs := []EventLog{
			event(1, "Address", "226001", "201301"),
			event(1, "Address", "999999", "201301"), // unknown source
			event(1, "Address", "226001", "888888"), // unknown destination
		}
		flows := AggregateFlows(logs, testMaster)
		require.Len(t, flows, 1)
		assert.Equal(t, 1, flows[0].Count)
	})

	t.Run("coordinates and states are attached", func(t *testing.T) {
		logs := []EventLog{event(1, "Address", "226001", "400001")}
		flows := AggregateFlows(logs, testMaster)
		require.Len(t, flows, 1)

		f := flows[0]
		assert.Equal(t, "Lucknow", f.SourceDistrict)
		assert.Equal(t, "Uttar Pradesh", f.SourceState)
		assert.InDelta(t, 26.85, f.SourceLat, 1e-9)
		assert.Equal(t, "Mumbai", f.DestDistrict)
		assert.Equal(t, "Maharashtra", f.DestState)
		assert.True(t, f.HasCoordinates())
	})

	t.Run("empty input", func(t *testing.T) {
		assert.Empty(t, AggregateFlows(nil, testMaster))
	})
}

func TestCalculateNetMigration(t *testing.T) {
	t.Run("60/40 split between two districts", func(t *testing.T) {
		logs := make([]EventLog, 0, 100)
		for i := 0; i < 60; i++ {
			logs = append(logs, event(5, "Address", "226001", "201301")) // Lucknow -> Noida
		}
		for i := 0; i < 40; i++ {
			logs = append(logs, event(5, "Address", "201301", "226001")) // Noida -> Lucknow
		}

		flows := AggregateFlows(logs, testMaster)
		require.Len(t, flows, 2)
		counts := map[string]int{}
		for _, f := range flows {
			counts[f.SourceDistrict] = f.Count
		}
		assert.Equal(t, 60, counts["Lucknow"])
		assert.Equal(t, 40, counts["Noida"])

		net := CalculateNetMigration(flows)
		require.Len(t, net, 2)
		byDistrict := map[string]NetMigrationRecord{}
		for _, n := range net {
			byDistrict[n.District] = n
		}
		assert.Equal(t, -20, byDistrict["Lucknow"].Net)
		assert.Equal(t, 20, byDistrict["Noida"].Net)
	})

	t.Run("conservation per date", func(t *testing.T) {
		logs := []EventLog{
			event(1, "Address", "226001", "201301"),
			event(1, "Address", "226001", "400001"),
			event(1, "Address", "400001", "226002"),
			event(2, "Address", "201301", "400001"),
		}
		flows := AggregateFlows(logs, testMaster)
		net := CalculateNetMigration(flows)

		perDate := map[string]*struct{ in, out, total int }{}
		for _, n := range net {
			day := DateKey(n.Date)
			if perDate[day] == nil {
				perDate[day] = &struct{ in, out, total int }{}
			}
			perDate[day].in += n.Inflow
			perDate[day].out += n.Outflow
		}
		for _, f := range flows {
			perDate[DateKey(f.Date)].total += f.Count
		}

		for day, sums := range perDate {
			assert.Equal(t, sums.total, sums.in, "inflow total on %s", day)
			assert.Equal(t, sums.total, sums.out, "outflow total on %s", day)
		}
	})

	t.Run("missing side fills with zero", func(t *testing.T) {
		flows := []FlowRecord{{
			Date:           time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
			SourceDistrict: "Lucknow",
			DestDistrict:   "Noida",
			Count:          7,
		}}
		net := CalculateNetMigration(flows)
		require.Len(t, net, 2)

		byDistrict := map[string]NetMigrationRecord{}
		for _, n := range net {
			byDistrict[n.District] = n
		}
		assert.Equal(t, 0, byDistrict["Lucknow"].Inflow)
		assert.Equal(t, 7, byDistrict["Lucknow"].Outflow)
		assert.Equal(t, -7, byDistrict["Lucknow"].Net)
		assert.Equal(t, 7, byDistrict["Noida"].Inflow)
		assert.Equal(t, 7, byDistrict["Noida"].Net)
	})
}
