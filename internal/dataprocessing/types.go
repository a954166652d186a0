// Package dataprocessing implements the batch aggregation pipeline: raw
// identity-update logs are joined to the pincode master and rolled up into
// daily district-to-district flows, per-district net migration, and a
// state-level activity table built from wide-format source exports.
package dataprocessing

import (
	"errors"
	"math"
	"time"
)

// ErrMissingInput indicates a required input file is absent. Stages stop
// without partial output and the caller should run the upstream step first.
var ErrMissingInput = errors.New("required input file missing: run the upstream step first")

// UpdateTypeAddress is the update category that defines a migration event.
// All other categories do not contribute to flow counts.
const UpdateTypeAddress = "Address"

// EventLog is one raw identity-update record. Immutable once generated;
// demographic fields beyond these are not consumed by the pipeline.
type EventLog struct {
	UpdateID      string
	Timestamp     time.Time
	SourcePincode string
	DestPincode   string
	UpdateType    string
}

// PincodeEntry maps one pincode to its district, state and coordinates.
type PincodeEntry struct {
	Pincode  string
	District string
	State    string
	Lat      float64
	Lon      float64
}

// DistrictInfo is the representative point for a district: the mean of its
// constituent pincode coordinates and the first-seen state label.
type DistrictInfo struct {
	District string
	State    string
	Lat      float64
	Lon      float64
}

// FlowRecord is one directed daily flow edge between two districts.
// (Date, SourceDistrict, DestDistrict) is unique after aggregation.
// Coordinates are NaN when the district has no centroid entry; consumers
// must exclude such rows from distance math but keep them in counts.
type FlowRecord struct {
	Date           time.Time
	SourceDistrict string
	DestDistrict   string
	Count          int
	SourceState    string
	SourceLat      float64
	SourceLon      float64
	DestState      string
	DestLat        float64
	DestLon        float64

	// Anomaly labels are attached per (Date, SourceDistrict) node-day and
	// replicated across all outgoing edges of that node-day. AnomalyScore
	// is the detector's continuous decision value (negative = anomalous);
	// it is NaN until the anomaly pass has run or when the node-day was
	// not scored. This is unrelated to any score a data generator may
	// stamp on synthetic rows.
	IsAnomaly    bool
	AnomalyScore float64
}

// HasCoordinates reports whether both endpoints carry real coordinates.
func (f *FlowRecord) HasCoordinates() bool {
	return !math.IsNaN(f.SourceLat) && !math.IsNaN(f.SourceLon) &&
		!math.IsNaN(f.DestLat) && !math.IsNaN(f.DestLon)
}

// NetMigrationRecord is the per-district daily balance derived from the
// flow table. Net = Inflow - Outflow.
type NetMigrationRecord struct {
	Date     time.Time
	District string
	Inflow   int
	Outflow  int
	Net      int
}

// ActivityRecord is one row of the unified state-level activity table:
// demographic and biometric update counts plus new enrolments, split by age
// band, for one (date, state, district) triple. Latitude/Longitude are
// jittered display coordinates around the state centroid, not the true
// district location.
type ActivityRecord struct {
	Date     time.Time
	State    string
	District string

	DemoAge5To17  float64
	DemoAge17Plus float64
	BioAge5To17   float64
	BioAge17Plus  float64
	EnrolAge0To5  float64
	EnrolAge5To17 float64
	EnrolAge18Up  float64

	TotalUpdates    float64
	TotalEnrolments float64

	Latitude  float64
	Longitude float64
}

// DateKey formats a date the way every persisted table stores it.
func DateKey(t time.Time) string {
	return t.Format("2006-01-02")
}
