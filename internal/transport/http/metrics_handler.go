package http

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"macromon/internal/calendar"
	apierrors "macromon/internal/errors"
	"macromon/internal/metrics"
	"macromon/internal/storage"
)

// MetricsHandler serves derived metric points.
type MetricsHandler struct {
	reader storage.MetricsReader
	logger *slog.Logger
}

// NewMetricsHandler creates a new metrics query handler.
func NewMetricsHandler(reader storage.MetricsReader, logger *slog.Logger) *MetricsHandler {
	if reader == nil {
		panic("reader cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &MetricsHandler{
		reader: reader,
		logger: logger.With(slog.String("handler", "metrics")),
	}
}

// MetricPointsResponse is the payload for a metric query.
type MetricPointsResponse struct {
	Success  bool            `json:"success"`
	MetricID string          `json:"metric_id"`
	Points   []metrics.Point `json:"points"`
}

// Render implements render.Renderer.
func (r *MetricPointsResponse) Render(w http.ResponseWriter, req *http.Request) error {
	render.Status(req, http.StatusOK)
	return nil
}

// Get handles GET /api/metrics/{metricID}?from=YYYY-MM-DD&to=YYYY-MM-DD.
// Omitted bounds default to a trailing 90-day window ending today.
func (h *MetricsHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	metricID := chi.URLParam(r, "metricID")
	if metricID == "" {
		render.Render(w, r, apierrors.NewErrorResponse(apierrors.ErrMissingParameter))
		return
	}

	to := calendar.Normalize(time.Now().UTC())
	from := to.AddDate(0, 0, -90)

	if raw := r.URL.Query().Get("from"); raw != "" {
		parsed, err := time.Parse(calendar.DateFormat, raw)
		if err != nil {
			render.Render(w, r, apierrors.NewErrorResponse(
				apierrors.ErrValidation("from", "must be a date in YYYY-MM-DD form")))
			return
		}
		from = parsed
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		parsed, err := time.Parse(calendar.DateFormat, raw)
		if err != nil {
			render.Render(w, r, apierrors.NewErrorResponse(
				apierrors.ErrValidation("to", "must be a date in YYYY-MM-DD form")))
			return
		}
		to = parsed
	}
	if to.Before(from) {
		render.Render(w, r, apierrors.NewErrorResponse(
			apierrors.ErrValidation("to", "must not be before from")))
		return
	}

	points, err := h.reader.GetMetricPoints(ctx, metricID, from, to)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			render.Render(w, r, apierrors.NewErrorResponse(apierrors.NotFoundError("metric "+metricID)))
			return
		}
		h.logger.ErrorContext(ctx, "metric query failed",
			slog.String("metric_id", metricID),
			slog.String("error", err.Error()))
		render.Render(w, r, apierrors.NewErrorResponse(apierrors.ErrInternalServer))
		return
	}

	render.Render(w, r, &MetricPointsResponse{
		Success:  true,
		MetricID: metricID,
		Points:   points,
	})
}
