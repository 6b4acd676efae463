// Package render turns an audio request into generated audio: it measures and
// encodes the input, gathers analyzer events, runs the orchestrator, then
// decodes and restores loudness.
package render

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/vamp-go/vamp-go/internal/backend"
	"github.com/vamp-go/vamp-go/internal/generate"
	"github.com/vamp-go/vamp-go/internal/mask"
	"github.com/vamp-go/vamp-go/internal/models"
	"github.com/vamp-go/vamp-go/internal/schema"
	"github.com/vamp-go/vamp-go/internal/tokens"
	"github.com/vamp-go/vamp-go/internal/vamp"
)

var tracer = otel.Tracer("vamp.render")

// Output is a finished render.
type Output struct {
	Audio    []byte
	Model    string
	TimeBase tokens.TimeBase
	Result   *vamp.Result
}

// Renderer is safe for concurrent use.
type Renderer struct {
	backend  backend.Backend
	models   *models.Registry
	recorder vamp.Recorder
	logger   zerolog.Logger

	coarseCodebooks int
	maxPasses       int
	maxPreviewCells int

	mu   sync.Mutex
	info *schema.CodecInfoResponse
}

// Options tune a Renderer.
type Options struct {
	// CoarseCodebooks is used when a request does not set coarse_codebooks.
	CoarseCodebooks int
	// MaxPasses caps num_passes; zero disables the cap.
	MaxPasses       int
	// MaxPreviewCells caps the size of a mask preview; zero disables the cap.
	MaxPreviewCells int
	Recorder        vamp.Recorder
}

// New creates a Renderer.
func New(b backend.Backend, registry *models.Registry, logger zerolog.Logger, opts Options) *Renderer {
	return &Renderer{
		backend:         b,
		models:          registry,
		recorder:        opts.Recorder,
		logger:          logger,
		coarseCodebooks: opts.CoarseCodebooks,
		maxPasses:       opts.MaxPasses,
		maxPreviewCells: opts.MaxPreviewCells,
	}
}

// CodecInfo returns the backend codec description, fetched once.
func (r *Renderer) CodecInfo(ctx context.Context) (*schema.CodecInfoResponse, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.info != nil {
		return r.info, nil
	}
	info, err := r.backend.CodecInfo(ctx)
	if err != nil {
		return nil, fmt.Errorf("codec info: %w", err)
	}
	if err := info.TimeBase().Validate(); err != nil {
		return nil, fmt.Errorf("codec info: %w", err)
	}
	r.info = info
	return info, nil
}

// Validate checks req before it is queued and returns the model it selects.
func (r *Renderer) Validate(req *schema.VampRequest) (models.Model, error) {
	if err := req.Validate(r.maxPasses); err != nil {
		return models.Model{}, err
	}
	if len(req.Audio) == 0 {
		return models.Model{}, fmt.Errorf("audio is required")
	}
	return r.models.Resolve(req.Model)
}

// Render runs req end to end.
func (r *Renderer) Render(ctx context.Context, req *schema.VampRequest) (*Output, error) {
	model, err := r.Validate(req)
	if err != nil {
		return nil, err
	}

	ctx, span := tracer.Start(ctx, "render.Render")
	defer span.End()
	span.SetAttributes(attribute.String("vamp.model", model.Name))

	info, err := r.CodecInfo(ctx)
	if err != nil {
		return nil, err
	}
	tb := info.TimeBase()

	start := time.Now()
	in, err := r.analyze(ctx, req)
	if err != nil {
		return nil, err
	}
	r.logger.Debug().
		Str("shape", in.tokens.Shape().String()).
		Int("onsets", len(in.events.Onsets)).
		Int("beats", len(in.events.Beats)).
		Dur("duration", time.Since(start)).
		Msg("Input analyzed")

	orch := vamp.NewOrchestrator(
		backend.Sampler(r.backend, model.Spec()),
		tb,
		r.logger.With().Str("model", model.Name).Logger(),
		vamp.WithRecorder(r.recorder),
	)
	result, err := orch.Run(ctx, in.tokens, in.events, req.Orchestration(tb, r.coarseCodebooks))
	if err != nil {
		return nil, err
	}

	audio, err := r.backend.Decode(ctx, result.Tokens)
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if req.Normalize {
		if audio, err = r.backend.NormalizeLoudness(ctx, audio, in.loudness); err != nil {
			return nil, fmt.Errorf("normalize loudness: %w", err)
		}
	}

	return &Output{Audio: audio, Model: model.Name, TimeBase: tb, Result: result}, nil
}

type analysis struct {
	tokens   *tokens.Grid
	events   mask.Events
	loudness float64
}

// analyze runs the independent reads of the input audio concurrently.
func (r *Renderer) analyze(ctx context.Context, req *schema.VampRequest) (*analysis, error) {
	var out analysis
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		z, err := r.backend.Encode(gctx, req.Audio)
		if err != nil {
			return fmt.Errorf("encode: %w", err)
		}
		out.tokens = z
		return nil
	})
	if req.Normalize {
		g.Go(func() error {
			lufs, err := r.backend.MeasureLoudness(gctx, req.Audio)
			if err != nil {
				return fmt.Errorf("measure loudness: %w", err)
			}
			out.loudness = lufs
			return nil
		})
	}
	if req.NeedsOnsets() {
		g.Go(func() error {
			onsets, err := r.backend.DetectOnsets(gctx, req.Audio)
			if err != nil {
				return fmt.Errorf("detect onsets: %w", err)
			}
			out.events.Onsets = onsets
			return nil
		})
	}
	if req.NeedsBeats() {
		g.Go(func() error {
			beats, downbeats, err := r.backend.DetectBeats(gctx, req.Audio)
			if err != nil {
				return fmt.Errorf("detect beats: %w", err)
			}
			out.events.Beats, out.events.Downbeats = beats, downbeats
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &out, nil
}

// ValidatePreview checks a mask preview request against the configured limits.
func (r *Renderer) ValidatePreview(req *schema.MaskPreviewRequest) error {
	return req.Validate(r.maxPreviewCells)
}

// PreviewMask builds the mask the first pass of a request would use on a grid
// of the requested shape, without sampling.
func (r *Renderer) PreviewMask(ctx context.Context, req *schema.MaskPreviewRequest) (*schema.MaskPreviewResponse, error) {
	if err := r.ValidatePreview(req); err != nil {
		return nil, err
	}
	info, err := r.CodecInfo(ctx)
	if err != nil {
		return nil, err
	}
	tb := info.TimeBase()

	seed := req.Seed
	if seed == 0 {
		seed = generate.NewSeed()
	}
	orch := vamp.NewOrchestrator(nil, tb, r.logger)
	m, err := orch.PreviewMask(req.Shape(), req.Events(), req.MaskSettings.Params(tb), seed)
	if err != nil {
		return nil, err
	}
	return &schema.MaskPreviewResponse{
		Seed:           seed,
		MaskedFraction: m.Fraction(),
		Mask:           m.IntRows(),
	}, nil
}
