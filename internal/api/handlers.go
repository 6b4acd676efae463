package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/vamp-go/vamp-go/internal/backend"
	"github.com/vamp-go/vamp-go/internal/config"
	"github.com/vamp-go/vamp-go/internal/generate"
	"github.com/vamp-go/vamp-go/internal/mask"
	"github.com/vamp-go/vamp-go/internal/models"
	"github.com/vamp-go/vamp-go/internal/queue"
	"github.com/vamp-go/vamp-go/internal/render"
	"github.com/vamp-go/vamp-go/internal/schema"
)

const (
	audioFormat = "wav"
	// retryAfter is how long clients should wait after a full queue.
	retryAfter = 5 * time.Second
)

// Handler serves the HTTP endpoints.
type Handler struct {
	deps   Dependencies
	cfg    *config.Config
	logger zerolog.Logger
}

// NewHandler creates a Handler.
func NewHandler(deps Dependencies, cfg *config.Config, logger zerolog.Logger) *Handler {
	return &Handler{deps: deps, cfg: cfg, logger: logger}
}

// HandleHealthGet reports liveness without touching the backend.
func (h *Handler) HandleHealthGet(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, schema.HealthResponse{Status: "ok"})
}

// HandleHealthPost also probes the model backend.
func (h *Handler) HandleHealthPost(w http.ResponseWriter, r *http.Request) {
	if err := h.deps.Backend.Health(r.Context()); err != nil {
		h.logger.Warn().Err(err).Msg("Backend health check failed")
		WriteJSON(w, http.StatusServiceUnavailable, schema.HealthResponse{Status: "degraded", Backend: "unavailable"})
		return
	}
	WriteJSON(w, http.StatusOK, schema.HealthResponse{Status: "ok", Backend: "ok"})
}

// HandleModels lists the registered models.
func (h *Handler) HandleModels(w http.ResponseWriter, r *http.Request) {
	WriteResponse(w, r, http.StatusOK, h.deps.Models.Describe())
}

// HandleVamp renders uploaded audio. Clients accepting JSON or MessagePack get
// a VampResponse; everyone else gets the WAV body.
func (h *Handler) HandleVamp(w http.ResponseWriter, r *http.Request) {
	h.limitBody(w, r)

	req := schema.DefaultVampRequest()
	if err := ParseRequestBody(r, &req); err != nil {
		h.writeErr(w, err)
		return
	}
	if _, err := h.deps.Renderer.Validate(&req); err != nil {
		h.writeErr(w, requestError(err))
		return
	}

	ctx := r.Context()
	if timeout := h.cfg.Generation.RequestTimeout; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var out *render.Output
	err := h.deps.Queue.Submit(ctx, func(ctx context.Context) error {
		log := h.logger.With().
			Str("request_id", RequestID(r.Context())).
			Str("job_id", queue.JobID(ctx)).
			Logger()
		log.Info().Str("mode", req.Mode).Int("num_passes", req.NumPasses).Msg("Render started")

		var err error
		out, err = h.deps.Renderer.Render(ctx, &req)
		if err != nil {
			log.Error().Err(err).Msg("Render failed")
			return err
		}
		log.Info().Int64("seed", out.Result.Seed).Msg("Render finished")
		return nil
	})
	if err != nil {
		h.writeErr(w, err)
		return
	}

	w.Header().Set("X-Vamp-Seed", strconv.FormatInt(out.Result.Seed, 10))
	w.Header().Set("X-Vamp-Model", out.Model)

	if !AcceptsMsgpack(r) && !AcceptsJSON(r) {
		WriteAudio(w, audioFormat, out.Audio)
		return
	}

	resp := schema.VampResponse{
		Audio: out.Audio,
		Seed:  out.Result.Seed,
		Model: out.Model,
		Steps: out.Result.Tokens.Steps(),
	}
	for _, p := range out.Result.Passes {
		resp.Passes = append(resp.Passes, schema.PassSummary{
			Stage:          p.Stage,
			Seed:           p.Seed,
			MaskedFraction: p.MaskedFraction,
			DurationMs:     p.Duration.Milliseconds(),
		})
	}
	if req.ReturnMask {
		resp.Mask = out.Result.Mask.IntRows()
	}
	WriteResponse(w, r, http.StatusOK, resp)
}

// HandleMaskPreview returns the mask a request would start from.
func (h *Handler) HandleMaskPreview(w http.ResponseWriter, r *http.Request) {
	h.limitBody(w, r)

	req := schema.DefaultMaskPreviewRequest()
	if err := ParseRequestBody(r, &req); err != nil {
		h.writeErr(w, err)
		return
	}
	if err := h.deps.Renderer.ValidatePreview(&req); err != nil {
		h.writeErr(w, requestError(err))
		return
	}

	resp, err := h.deps.Renderer.PreviewMask(r.Context(), &req)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	WriteResponse(w, r, http.StatusOK, resp)
}

func (h *Handler) limitBody(w http.ResponseWriter, r *http.Request) {
	if limit := h.cfg.Limits.MaxUploadBytes; limit > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, limit)
	}
}

func (h *Handler) writeErr(w http.ResponseWriter, err error) {
	status, message := statusFor(err)
	if errors.Is(err, queue.ErrQueueFull) {
		w.Header().Set("Retry-After", strconv.Itoa(int(retryAfter.Seconds())))
	}
	if status >= http.StatusInternalServerError {
		h.logger.Error().Err(err).Int("status", status).Msg("Request failed")
	}
	WriteError(w, status, message)
}

// requestError marks a validation failure as a client error.
func requestError(err error) error {
	if errors.Is(err, models.ErrUnknownModel) {
		return &HTTPError{Status: http.StatusNotFound, Message: err.Error()}
	}
	return &HTTPError{Status: http.StatusBadRequest, Message: err.Error()}
}

func statusFor(err error) (int, string) {
	if httpErr, ok := IsHTTPError(err); ok {
		return httpErr.Status, httpErr.Message
	}

	switch {
	case errors.Is(err, queue.ErrQueueFull):
		return http.StatusServiceUnavailable, "Generation queue is full"
	case errors.Is(err, queue.ErrShutdown):
		return http.StatusServiceUnavailable, "Server is shutting down"
	case errors.Is(err, models.ErrUnknownModel):
		return http.StatusNotFound, err.Error()
	case mask.IsParamError(err):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, backend.ErrBackendTimeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "Generation timed out"
	case backend.IsBackendError(err), errors.Is(err, backend.ErrBackendUnavailable), errors.Is(err, generate.ErrPreservationViolated):
		return http.StatusBadGateway, err.Error()
	case errors.Is(err, context.Canceled):
		return 499, "Client closed request"
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}
