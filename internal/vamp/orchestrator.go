// Package vamp sequences mask construction and generation passes.
package vamp

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vamp-go/vamp-go/internal/generate"
	"github.com/vamp-go/vamp-go/internal/mask"
	"github.com/vamp-go/vamp-go/internal/tokens"
)

var tracer = otel.Tracer("vamp.orchestrator")

// Recorder receives per-pass and per-run observations.
type Recorder interface {
	ObservePass(mode string, stage string, duration time.Duration, maskedFraction float64)
	ObserveRun(mode string, duration time.Duration, err error)
}

type nopRecorder struct{}

func (nopRecorder) ObservePass(string, string, time.Duration, float64) {}
func (nopRecorder) ObserveRun(string, time.Duration, error)            {}

// PassReport summarizes one generation step.
type PassReport struct {
	Stage          string        `json:"stage"`
	Index          int           `json:"index"`
	Seed           int64         `json:"seed"`
	MaskedFraction float64       `json:"masked_fraction"`
	Duration       time.Duration `json:"duration"`
}

// Result is the outcome of an orchestration.
type Result struct {
	Tokens *tokens.Grid
	// Mask is the realized generation mask aligned with Tokens.
	Mask *tokens.Mask
	// RefineMask is the realized refinement mask, nil when no refinement ran.
	RefineMask *tokens.Mask
	Seed       int64
	Passes     []PassReport
}

// Orchestrator runs requests against a bound sampler. It holds no per-request
// state and is safe for concurrent use.
type Orchestrator struct {
	sampler  generate.Sampler
	timeBase tokens.TimeBase
	logger   zerolog.Logger
	recorder Recorder
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithRecorder attaches a metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(o *Orchestrator) {
		if r != nil {
			o.recorder = r
		}
	}
}

// NewOrchestrator binds a sampler and the codec time base.
func NewOrchestrator(sampler generate.Sampler, tb tokens.TimeBase, logger zerolog.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		sampler:  sampler,
		timeBase: tb,
		logger:   logger,
		recorder: nopRecorder{},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run executes req against z. Passes run strictly in sequence; a failure in
// any pass aborts the run and is returned with the failing stage.
func (o *Orchestrator) Run(ctx context.Context, z *tokens.Grid, events mask.Events, req Request) (_ *Result, err error) {
	start := time.Now()
	defer func() { o.recorder.ObserveRun(string(req.Mode), time.Since(start), err) }()

	if err := req.Validate(z.Shape()); err != nil {
		return nil, err
	}
	if req.Mask.NeedsTimeBase() {
		if err := o.timeBase.Validate(); err != nil {
			return nil, err
		}
	}

	pipeline, err := mask.Standard(req.Mask)
	if err != nil {
		return nil, err
	}

	seed := req.Sampling.Seed
	if seed == 0 {
		seed = generate.NewSeed()
	}
	log := o.logger.With().Str("mode", string(req.Mode)).Int64("seed", seed).Logger()
	log.Info().
		Str("shape", z.Shape().String()).
		Int("passes", req.passCount()).
		Bool("refine", req.Refine).
		Strs("mask_stages", pipeline.Names()).
		Msg("Starting generation")

	ctx, span := tracer.Start(ctx, "vamp.Run", trace.WithAttributes(
		attribute.String("vamp.mode", string(req.Mode)),
		attribute.Int("vamp.passes", req.passCount()),
		attribute.Int64("vamp.seed", seed),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	env := &mask.Env{
		Rand:     rand.New(rand.NewPCG(uint64(seed), uint64(seed))),
		TimeBase: o.timeBase,
		Events:   events,
	}
	// Analysis timestamps describe the input, which only the first window holds.
	generatedEnv := &mask.Env{Rand: env.Rand, TimeBase: o.timeBase}
	step := generate.NewStep(o.sampler, log)
	result := &Result{Seed: seed}

	passes := req.passCount()
	prefix, suffix := req.Mask.PrefixSteps, req.Mask.SuffixSteps

	window := z
	var loopSuffix *tokens.Grid
	if req.Mode == ModeLoop {
		loopSuffix = z.Columns(0, suffix)
		window = withSuffix(z, loopSuffix)
	}

	tl := &timeline{prefix: prefix, suffix: suffix}
	var last *generate.Output

	for i := 0; i < passes; i++ {
		if i > 0 {
			tail := loopSuffix
			if tail == nil {
				tail = last.Tokens.Columns(last.Tokens.Steps()-suffix, last.Tokens.Steps())
			}
			window = nextWindow(last.Tokens, prefix, tail)
		}

		passEnv := env
		if i > 0 {
			passEnv = generatedEnv
		}

		stage := fmt.Sprintf("pass %d/%d", i+1, passes)
		out, report, err := o.pass(ctx, step, stage, i, window, func() (*tokens.Mask, error) {
			return pipeline.Build(window.Shape(), passEnv)
		}, req.Sampling.WithSeed(generate.PassSeed(seed, i)), string(req.Mode))
		if err != nil {
			return nil, err
		}
		result.Passes = append(result.Passes, report)
		last = out
		tl.add(out.Tokens, out.Mask)
	}

	if req.Mode == ModeVamp {
		result.Tokens, result.Mask = last.Tokens, last.Mask
	} else {
		result.Tokens, result.Mask, err = tl.assemble(req.Mode == ModeExtend)
		if err != nil {
			return nil, fmt.Errorf("assemble: %w", err)
		}
	}

	if req.Refine {
		assembled := result.Tokens
		out, report, err := o.pass(ctx, step, "refine", passes, assembled, func() (*tokens.Mask, error) {
			return mask.Codebook(mask.Empty(assembled.Shape()), req.CoarseCodebooks)
		}, req.Sampling.WithSeed(generate.PassSeed(seed, passes)), string(req.Mode))
		if err != nil {
			return nil, err
		}
		result.Passes = append(result.Passes, report)
		result.Tokens = out.Tokens
		result.RefineMask = out.Mask
	}

	log.Info().
		Str("output_shape", result.Tokens.Shape().String()).
		Dur("duration", time.Since(start)).
		Msg("Generation finished")

	return result, nil
}

func (o *Orchestrator) pass(
	ctx context.Context,
	step *generate.Step,
	stage string,
	index int,
	window *tokens.Grid,
	build func() (*tokens.Mask, error),
	cfg generate.SamplingConfig,
	mode string,
) (*generate.Output, PassReport, error) {
	ctx, span := tracer.Start(ctx, "vamp.pass", trace.WithAttributes(
		attribute.String("vamp.stage", stage),
		attribute.Int64("vamp.seed", cfg.Seed),
	))
	defer span.End()

	start := time.Now()
	m, err := build()
	if err != nil {
		span.RecordError(err)
		return nil, PassReport{}, fmt.Errorf("%s: mask: %w", stage, err)
	}

	out, err := step.Run(ctx, window, m, cfg)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, PassReport{}, fmt.Errorf("%s: %w", stage, err)
	}

	report := PassReport{
		Stage:          stage,
		Index:          index,
		Seed:           out.Seed,
		MaskedFraction: m.Fraction(),
		Duration:       time.Since(start),
	}
	span.SetAttributes(attribute.Float64("vamp.masked_fraction", report.MaskedFraction))
	o.recorder.ObservePass(mode, stageKind(stage), report.Duration, report.MaskedFraction)

	return out, report, nil
}

// PreviewMask builds the mask the first pass of req would use, without sampling.
func (o *Orchestrator) PreviewMask(shape tokens.Shape, events mask.Events, params mask.Params, seed int64) (*tokens.Mask, error) {
	if params.NeedsTimeBase() {
		if err := o.timeBase.Validate(); err != nil {
			return nil, err
		}
	}
	pipeline, err := mask.Standard(params)
	if err != nil {
		return nil, err
	}
	if seed == 0 {
		seed = generate.NewSeed()
	}
	return pipeline.Build(shape, &mask.Env{
		Rand:     rand.New(rand.NewPCG(uint64(seed), uint64(seed))),
		TimeBase: o.timeBase,
		Events:   events,
	})
}

func stageKind(stage string) string {
	if stage == "refine" {
		return "refine"
	}
	return "generate"
}
