package anomaly

import (
	"log/slog"
	"math"
	"math/rand"
	"sort"
	"time"

	"aadhaarpulse/internal/dataprocessing"
	"aadhaarpulse/internal/geo"
	"aadhaarpulse/internal/monitoring"
)

const (
	defaultNumTrees   = 100
	defaultMaxSamples = 256
)

// NodeDayFeatures are the detection features for one district acting as a
// flow source on one calendar date.
type NodeDayFeatures struct {
	Date           time.Time
	SourceDistrict string
	// TotalVolume is the summed count of all outgoing edges.
	TotalVolume float64
	// AvgDistance is the count-weighted mean edge distance in km
	// (sum(distance*count)/sum(count)). An unweighted mean would treat a
	// thousand-person flow and a one-person flow identically.
	AvgDistance float64
}

type nodeKey struct {
	date           time.Time
	sourceDistrict string
}

// Detector scores node-days with an isolation forest and propagates the
// labels back onto flow edges.
type Detector struct {
	Contamination float64
	Seed          int64
	NumTrees      int
	MaxSamples    int
}

// NewDetector returns a detector with the given expected anomaly fraction
// and random seed. Both are fixed per pipeline run so results reproduce.
func NewDetector(contamination float64, seed int64) *Detector {
	return &Detector{
		Contamination: contamination,
		Seed:          seed,
		NumTrees:      defaultNumTrees,
		MaxSamples:    defaultMaxSamples,
	}
}

// BuildFeatures aggregates flow edges into per node-day features. Edges
// without coordinates contribute to volume but are excluded from the
// distance average; node-days where no edge has a distance are skipped
// entirely rather than crashing the pass.
func BuildFeatures(flows []dataprocessing.FlowRecord) []NodeDayFeatures {
	type acc struct {
		volume   float64
		personKm float64
		distVol  float64
	}
	accs := make(map[nodeKey]*acc)
	order := make([]nodeKey, 0)
	for _, f := range flows {
		key := nodeKey{f.Date, f.SourceDistrict}
		a, ok := accs[key]
		if !ok {
			a = &acc{}
			accs[key] = a
			order = append(order, key)
		}
		a.volume += float64(f.Count)
		if f.HasCoordinates() {
			dist := geo.Haversine(f.SourceLon, f.SourceLat, f.DestLon, f.DestLat)
			a.personKm += dist * float64(f.Count)
			a.distVol += float64(f.Count)
		}
	}

	sort.Slice(order, func(i, j int) bool {
		if !order[i].date.Equal(order[j].date) {
			return order[i].date.Before(order[j].date)
		}
		return order[i].sourceDistrict < order[j].sourceDistrict
	})

	features := make([]NodeDayFeatures, 0, len(order))
	skipped := 0
	for _, key := range order {
		a := accs[key]
		if a.distVol == 0 {
			skipped++
			continue
		}
		features = append(features, NodeDayFeatures{
			Date:           key.date,
			SourceDistrict: key.sourceDistrict,
			TotalVolume:    a.volume,
			AvgDistance:    a.personKm / a.distVol,
		})
	}
	if skipped > 0 {
		monitoring.RowsDropped.WithLabelValues("anomaly", "no_coordinates").Add(float64(skipped))
		slog.Warn("skipped node-days without any measurable edge distance",
			slog.Int("skipped", skipped))
	}
	return features
}

// Detect runs the full anomaly pass: features, isolation forest, threshold
// at the configured contamination, then label propagation onto every edge
// sharing the (date, source district) key. An edge's anomaly status is a
// property of its origin node-day, not of the edge itself; edges whose
// node-day was not scored keep a false label and NaN score. Empty input
// short-circuits to empty output.
func (d *Detector) Detect(flows []dataprocessing.FlowRecord) []dataprocessing.FlowRecord {
	if len(flows) == 0 {
		return flows
	}

	features := BuildFeatures(flows)
	labels := d.Score(features)

	out := make([]dataprocessing.FlowRecord, len(flows))
	copy(out, flows)
	for i := range out {
		out[i].IsAnomaly = false
		out[i].AnomalyScore = math.NaN()
		if l, ok := labels[nodeKey{out[i].Date, out[i].SourceDistrict}]; ok {
			out[i].IsAnomaly = l.isAnomaly
			out[i].AnomalyScore = l.score
		}
	}
	return out
}

type label struct {
	isAnomaly bool
	score     float64
}

// Score fits the forest over (total_volume, avg_distance) and returns the
// per node-day label and decision value. The decision value is the raw
// score minus the contamination-quantile offset, so negative means
// anomalous and more negative means more anomalous.
func (d *Detector) Score(features []NodeDayFeatures) map[nodeKey]label {
	labels := make(map[nodeKey]label, len(features))
	if len(features) < 2 {
		// A single observation cannot be an outlier relative to anything.
		for _, f := range features {
			labels[nodeKey{f.Date, f.SourceDistrict}] = label{score: 0}
		}
		return labels
	}

	x := make([][]float64, len(features))
	for i, f := range features {
		x[i] = []float64{f.TotalVolume, f.AvgDistance}
	}

	// Seeded source: persisted anomaly labels must not churn between
	// re-runs over the same data.
	rng := rand.New(rand.NewSource(d.Seed))
	forest := NewIsolationForest(d.NumTrees, d.MaxSamples, rng)
	forest.Fit(x)
	scores := forest.ScoreSamples(x)

	offset := percentile(scores, 100*d.Contamination)
	anomalies := 0
	for i, f := range features {
		decision := scores[i] - offset
		flagged := decision < 0
		if flagged {
			anomalies++
		}
		labels[nodeKey{f.Date, f.SourceDistrict}] = label{isAnomaly: flagged, score: decision}
	}

	monitoring.AnomalousNodeDays.Add(float64(anomalies))
	slog.Info("scored node-days",
		slog.Int("observations", len(features)),
		slog.Int("anomalies", anomalies))
	return labels
}
