// Package http exposes the engine over a small REST surface: trigger a
// computation run, query derived metric points, health and Prometheus
// endpoints, and the WebSocket progress feed.
package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	"macromon/internal/calendar"
	"macromon/internal/engine"
	apierrors "macromon/internal/errors"
)

// Runner abstracts the engine for the HTTP layer.
type Runner interface {
	Run(ctx context.Context, from, to time.Time) (*engine.RunResult, error)
}

// RunHandler handles computation run requests.
type RunHandler struct {
	runner   Runner
	logger   *slog.Logger
	validate *validator.Validate
	timeout  time.Duration
}

// NewRunHandler creates a new run handler.
func NewRunHandler(runner Runner, timeout time.Duration, logger *slog.Logger) *RunHandler {
	if runner == nil {
		panic("runner cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RunHandler{
		runner:   runner,
		logger:   logger.With(slog.String("handler", "runs")),
		validate: validator.New(),
		timeout:  timeout,
	}
}

// RunRequest is the payload for starting a computation run.
type RunRequest struct {
	From string `json:"from" validate:"required,datetime=2006-01-02"`
	To   string `json:"to" validate:"required,datetime=2006-01-02"`
}

// Bind implements render.Binder.
func (r *RunRequest) Bind(*http.Request) error {
	return nil
}

// RunResponse wraps the engine's result for the API.
type RunResponse struct {
	Success bool              `json:"success"`
	Result  *engine.RunResult `json:"result"`
}

// Render implements render.Renderer.
func (r *RunResponse) Render(w http.ResponseWriter, req *http.Request) error {
	render.Status(req, http.StatusOK)
	return nil
}

// Start handles POST /api/runs.
func (h *RunHandler) Start(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req RunRequest
	if err := render.Bind(r, &req); err != nil {
		render.Render(w, r, apierrors.NewErrorResponse(apierrors.InvalidRequestWithError(err)))
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		if errs, ok := err.(validator.ValidationErrors); ok && len(errs) > 0 {
			render.Render(w, r, apierrors.NewErrorResponse(
				apierrors.ErrValidation(errs[0].Field(), "must be a date in YYYY-MM-DD form")))
			return
		}
		render.Render(w, r, apierrors.NewErrorResponse(apierrors.ErrValidationFailed))
		return
	}

	from, _ := time.Parse(calendar.DateFormat, req.From)
	to, _ := time.Parse(calendar.DateFormat, req.To)
	if to.Before(from) {
		render.Render(w, r, apierrors.NewErrorResponse(
			apierrors.ErrValidation("to", "must not be before from")))
		return
	}

	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	result, err := h.runner.Run(ctx, from, to)
	if err != nil {
		h.logger.ErrorContext(ctx, "run failed",
			slog.String("from", req.From),
			slog.String("to", req.To),
			slog.String("error", err.Error()))
		render.Render(w, r, apierrors.NewErrorResponse(apierrors.ErrRunExecution(err)))
		return
	}

	render.Render(w, r, &RunResponse{Success: true, Result: result})
}
