package http

import (
	"log/slog"
	"math"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	"aadhaarpulse/internal/anomaly"
	"aadhaarpulse/internal/config"
	"aadhaarpulse/internal/dataprocessing"
	apierrors "aadhaarpulse/internal/errors"
	"aadhaarpulse/internal/forecast"
)

// Handler serves read-only views over the persisted pipeline tables.
// Tables are re-read per request: the pipeline may rewrite them at any
// time and they are small enough that caching would only hide staleness.
type Handler struct {
	cfg      *config.Config
	paths    *config.Paths
	logger   *slog.Logger
	validate *validator.Validate
}

// NewHandler creates the API handler.
func NewHandler(cfg *config.Config, paths *config.Paths, logger *slog.Logger) *Handler {
	return &Handler{
		cfg:      cfg,
		paths:    paths,
		logger:   logger,
		validate: validator.New(),
	}
}

// Routes wires the API endpoints.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Get("/health", h.Health)
	r.Get("/flows", h.Flows)
	r.Get("/net-migration", h.NetMigration)
	r.Get("/activity", h.Activity)
	r.Get("/anomalies", h.Anomalies)
	r.Get("/forecast", h.Forecast)
	return r
}

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, healthResponse{Status: "healthy", Time: time.Now().UTC(), Version: "1.0.0"})
}

// flowView is the JSON shape of one flow edge. Missing coordinates and
// scores render as null.
type flowView struct {
	Date           string   `json:"date"`
	SourceDistrict string   `json:"source_district"`
	DestDistrict   string   `json:"dest_district"`
	Count          int      `json:"count"`
	SourceState    string   `json:"source_state"`
	SourceLat      *float64 `json:"source_lat"`
	SourceLon      *float64 `json:"source_lon"`
	DestState      string   `json:"dest_state"`
	DestLat        *float64 `json:"dest_lat"`
	DestLon        *float64 `json:"dest_lon"`
	IsAnomaly      bool     `json:"is_anomaly"`
	AnomalyScore   *float64 `json:"anomaly_score"`
}

func nullable(v float64) *float64 {
	if math.IsNaN(v) {
		return nil
	}
	return &v
}

func toFlowView(f dataprocessing.FlowRecord) flowView {
	return flowView{
		Date:           dataprocessing.DateKey(f.Date),
		SourceDistrict: f.SourceDistrict,
		DestDistrict:   f.DestDistrict,
		Count:          f.Count,
		SourceState:    f.SourceState,
		SourceLat:      nullable(f.SourceLat),
		SourceLon:      nullable(f.SourceLon),
		DestState:      f.DestState,
		DestLat:        nullable(f.DestLat),
		DestLon:        nullable(f.DestLon),
		IsAnomaly:      f.IsAnomaly,
		AnomalyScore:   nullable(f.AnomalyScore),
	}
}

// loadSanitizedFlows reads the flow table and applies the state
// normalization gate.
func (h *Handler) loadSanitizedFlows(r *http.Request) ([]dataprocessing.FlowRecord, *apierrors.APIError) {
	flows, err := dataprocessing.LoadFlows(h.paths.DistrictFlowsCSV)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to load flow table",
			slog.String("request_id", middleware.GetReqID(r.Context())),
			slog.String("error", err.Error()))
		return nil, apierrors.MissingDataError("flow table", "aggregate")
	}
	return dataprocessing.SanitizeFlows(flows), nil
}

// Flows returns the daily flow table, optionally filtered by date and
// source state.
func (h *Handler) Flows(w http.ResponseWriter, r *http.Request) {
	flows, apiErr := h.loadSanitizedFlows(r)
	if apiErr != nil {
		render.Render(w, r, apiErr)
		return
	}

	date := r.URL.Query().Get("date")
	state := r.URL.Query().Get("state")
	views := make([]flowView, 0, len(flows))
	for _, f := range flows {
		if date != "" && dataprocessing.DateKey(f.Date) != date {
			continue
		}
		if state != "" && f.SourceState != state {
			continue
		}
		views = append(views, toFlowView(f))
	}

	render.JSON(w, r, map[string]interface{}{
		"count": len(views),
		"flows": views,
	})
}

// NetMigration returns the derived per-district daily balance.
func (h *Handler) NetMigration(w http.ResponseWriter, r *http.Request) {
	flows, apiErr := h.loadSanitizedFlows(r)
	if apiErr != nil {
		render.Render(w, r, apiErr)
		return
	}

	net := dataprocessing.CalculateNetMigration(flows)
	type view struct {
		Date     string `json:"date"`
		District string `json:"district"`
		Inflow   int    `json:"inflow"`
		Outflow  int    `json:"outflow"`
		Net      int    `json:"net_migration"`
	}
	views := make([]view, 0, len(net))
	for _, n := range net {
		views = append(views, view{dataprocessing.DateKey(n.Date), n.District, n.Inflow, n.Outflow, n.Net})
	}
	render.JSON(w, r, map[string]interface{}{
		"count":         len(views),
		"net_migration": views,
	})
}

// Activity returns the state-level activity table, optionally filtered by
// state.
func (h *Handler) Activity(w http.ResponseWriter, r *http.Request) {
	records, err := dataprocessing.LoadActivity(h.paths.IndiaAggregated)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to load activity table",
			slog.String("request_id", middleware.GetReqID(r.Context())),
			slog.String("error", err.Error()))
		render.Render(w, r, apierrors.MissingDataError("activity table", "indiadata"))
		return
	}
	records = dataprocessing.SanitizeActivity(records)

	state := r.URL.Query().Get("state")
	type view struct {
		Date            string  `json:"date"`
		State           string  `json:"state"`
		District        string  `json:"district"`
		TotalUpdates    float64 `json:"total_updates"`
		TotalEnrolments float64 `json:"total_enrolments"`
		Latitude        float64 `json:"latitude"`
		Longitude       float64 `json:"longitude"`
	}
	views := make([]view, 0, len(records))
	for _, rec := range records {
		if state != "" && rec.State != state {
			continue
		}
		views = append(views, view{
			Date:            dataprocessing.DateKey(rec.Date),
			State:           rec.State,
			District:        rec.District,
			TotalUpdates:    rec.TotalUpdates,
			TotalEnrolments: rec.TotalEnrolments,
			Latitude:        rec.Latitude,
			Longitude:       rec.Longitude,
		})
	}
	render.JSON(w, r, map[string]interface{}{
		"count":    len(views),
		"activity": views,
	})
}

// Anomalies recomputes the anomaly view from the persisted flow table and
// returns only flagged edges, most anomalous first.
func (h *Handler) Anomalies(w http.ResponseWriter, r *http.Request) {
	flows, apiErr := h.loadSanitizedFlows(r)
	if apiErr != nil {
		render.Render(w, r, apiErr)
		return
	}

	detector := anomaly.NewDetector(h.cfg.Pipeline.Contamination, h.cfg.Pipeline.Seed)
	labeled := detector.Detect(flows)

	flagged := make([]flowView, 0)
	for _, f := range labeled {
		if f.IsAnomaly {
			flagged = append(flagged, toFlowView(f))
		}
	}
	sort.Slice(flagged, func(i, j int) bool {
		si, sj := flagged[i].AnomalyScore, flagged[j].AnomalyScore
		if si == nil || sj == nil {
			return sj == nil
		}
		return *si < *sj
	})

	render.JSON(w, r, map[string]interface{}{
		"count":     len(flagged),
		"anomalies": flagged,
	})
}

// forecastQuery is the validated forecast request.
type forecastQuery struct {
	Metric  string `validate:"required"`
	Horizon int    `validate:"gte=1,lte=365"`
}

// Forecast fits the model for the requested metric on demand and returns
// the forecast table with derived insights. Insufficient history yields an
// explicit empty result, not an error.
func (h *Handler) Forecast(w http.ResponseWriter, r *http.Request) {
	q := forecastQuery{
		Metric:  r.URL.Query().Get("metric"),
		Horizon: h.cfg.Pipeline.ForecastHorizonDays,
	}
	if raw := r.URL.Query().Get("horizon"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			render.Render(w, r, apierrors.InvalidParameterError("horizon", "must be an integer"))
			return
		}
		q.Horizon = v
	}
	if q.Metric == "" {
		q.Metric = "total_updates"
	}
	if err := h.validate.Struct(q); err != nil {
		render.Render(w, r, apierrors.InvalidParameterError("horizon", err.Error()))
		return
	}

	records, err := dataprocessing.LoadActivity(h.paths.IndiaAggregated)
	if err != nil {
		render.Render(w, r, apierrors.MissingDataError("activity table", "indiadata"))
		return
	}
	records = dataprocessing.SanitizeActivity(records)

	series, err := dataprocessing.MetricSeries(records, q.Metric)
	if err != nil {
		render.Render(w, r, apierrors.InvalidParameterError("metric", err.Error()))
		return
	}

	table, model := forecast.Forecast(series, q.Metric, q.Horizon)
	insights := forecast.Insights(table, model, series, q.Metric, q.Horizon)

	h.logger.InfoContext(r.Context(), "forecast computed",
		slog.String("request_id", middleware.GetReqID(r.Context())),
		slog.String("metric", q.Metric),
		slog.Int("points", len(table)))

	render.JSON(w, r, map[string]interface{}{
		"metric":   q.Metric,
		"horizon":  q.Horizon,
		"empty":    model == nil,
		"forecast": table,
		"insights": insights,
	})
}
