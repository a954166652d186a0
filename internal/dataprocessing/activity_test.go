package dataprocessing

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aadhaarpulse/internal/geo"
)

func writeSourceFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
}

func writeActivitySources(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	writeSourceFile(t, dir, "api_data_aadhar_demographic_0.csv",
		"date,state,district,demo_age_5_17,demo_age_17_\n"+
			"15-03-2024,Uttar Pradesh,Lucknow,10,100\n"+
			"15-03-2024,Orissa,Cuttack,5,50\n"+
			"15-03-2024,Jaipur,Somewhere,99,999\n")
	writeSourceFile(t, dir, "api_data_aadhar_demographic_1.csv",
		"date,state,district,demo_age_5_17,demo_age_17_\n"+
			"15-03-2024,Uttar Pradesh,Lucknow,3,7\n")
	writeSourceFile(t, dir, "api_data_aadhar_biometric_0.csv",
		"date,state,district,bio_age_5_17,bio_age_17_\n"+
			"15-03-2024,Uttar Pradesh,Lucknow,20,200\n")
	writeSourceFile(t, dir, "api_data_aadhar_enrolment_0.csv",
		"date,state,district,age_0_5,age_5_17,age_18_greater\n"+
			"15-03-2024,Odisha,Cuttack,1,2,3\n"+
			"16-03-2024,Kerala,Kochi,4,5,6\n")
	return dir
}

func TestAggregateActivity(t *testing.T) {
	dir := writeActivitySources(t)

	records, err := AggregateActivity(dir, 42)
	require.NoError(t, err)
	// Lucknow, Cuttack (merged across demo+enrol) and Kochi; the Jaipur
	// row collapses to Other and is dropped.
	require.Len(t, records, 3)

	byDistrict := map[string]ActivityRecord{}
	for _, r := range records {
		byDistrict[r.District] = r
	}

	t.Run("cross-file re-aggregation sums duplicates", func(t *testing.T) {
		lucknow := byDistrict["Lucknow"]
		assert.Equal(t, 13.0, lucknow.DemoAge5To17)
		assert.Equal(t, 107.0, lucknow.DemoAge17Plus)
	})

	t.Run("day-first dates are reinterpreted", func(t *testing.T) {
		assert.Equal(t, "2024-03-15", DateKey(byDistrict["Lucknow"].Date))
		assert.Equal(t, "2024-03-16", DateKey(byDistrict["Kochi"].Date))
	})

	t.Run("outer merge fills missing categories with zero", func(t *testing.T) {
		kochi := byDistrict["Kochi"]
		assert.Zero(t, kochi.DemoAge5To17)
		assert.Zero(t, kochi.BioAge5To17)
		assert.Equal(t, 4.0, kochi.EnrolAge0To5)

		lucknow := byDistrict["Lucknow"]
		assert.Zero(t, lucknow.EnrolAge0To5)
	})

	t.Run("state labels normalize before merging", func(t *testing.T) {
		// Orissa (demographic) and Odisha (enrolment) land on the same key.
		cuttack := byDistrict["Cuttack"]
		assert.Equal(t, "Odisha", cuttack.State)
		assert.Equal(t, 5.0, cuttack.DemoAge5To17)
		assert.Equal(t, 1.0, cuttack.EnrolAge0To5)
	})

	t.Run("derived totals", func(t *testing.T) {
		lucknow := byDistrict["Lucknow"]
		assert.Equal(t, 13.0+107+20+200, lucknow.TotalUpdates)
		kochi := byDistrict["Kochi"]
		assert.Equal(t, 15.0, kochi.TotalEnrolments)
	})

	t.Run("display coordinates jitter around state centroid", func(t *testing.T) {
		for _, r := range records {
			c := geo.StateCentroid(r.State)
			assert.LessOrEqual(t, math.Abs(r.Latitude-c.Lat), 0.5, "%s latitude", r.District)
			assert.LessOrEqual(t, math.Abs(r.Longitude-c.Lon), 0.5, "%s longitude", r.District)
		}
	})
}

func TestAggregateActivityReproducible(t *testing.T) {
	dir := writeActivitySources(t)

	first, err := AggregateActivity(dir, 42)
	require.NoError(t, err)
	second, err := AggregateActivity(dir, 42)
	require.NoError(t, err)

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i], second[i])
	}
}

func TestAggregateActivityDropsWholeRowOnBadValue(t *testing.T) {
	dir := t.TempDir()
	// The second row's later cell is unparseable; its earlier cell must not
	// leak into the group sum.
	writeSourceFile(t, dir, "api_data_aadhar_demographic_0.csv",
		"date,state,district,demo_age_5_17,demo_age_17_\n"+
			"15-03-2024,Kerala,Kochi,10,100\n"+
			"15-03-2024,Kerala,Kochi,5,garbage\n")
	writeSourceFile(t, dir, "api_data_aadhar_biometric_0.csv",
		"date,state,district,bio_age_5_17,bio_age_17_\n"+
			"15-03-2024,Kerala,Kochi,1,2\n")
	writeSourceFile(t, dir, "api_data_aadhar_enrolment_0.csv",
		"date,state,district,age_0_5,age_5_17,age_18_greater\n"+
			"15-03-2024,Kerala,Kochi,1,2,3\n")

	records, err := AggregateActivity(dir, 42)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 10.0, records[0].DemoAge5To17)
	assert.Equal(t, 100.0, records[0].DemoAge17Plus)
}

func TestAggregateActivityMissingCategory(t *testing.T) {
	dir := t.TempDir()
	writeSourceFile(t, dir, "api_data_aadhar_demographic_0.csv",
		"date,state,district,demo_age_5_17,demo_age_17_\n15-03-2024,Kerala,Kochi,1,2\n")

	_, err := AggregateActivity(dir, 42)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingInput)
}
