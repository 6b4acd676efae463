// Package generate wraps the external generative sampler with the checks the
// rest of the system relies on: shapes agree, preserved tokens stay put, and
// every run has a known seed.
package generate

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/rs/zerolog"

	"github.com/vamp-go/vamp-go/internal/tokens"
)

// ErrPreservationViolated indicates the sampler changed a token the mask preserved.
var ErrPreservationViolated = errors.New("sampler altered a preserved token")

// Request is what the sampler receives. Tokens and Mask are private copies.
type Request struct {
	Tokens *tokens.Grid
	Mask   *tokens.Mask
	Config SamplingConfig
}

// Result is what the sampler returns. Mask is the mask it actually realized.
type Result struct {
	Tokens *tokens.Grid
	Mask   *tokens.Mask
}

// Sampler regenerates masked positions. Config.Seed is always non-zero.
type Sampler interface {
	Generate(ctx context.Context, req Request) (Result, error)
}

// SamplerFunc adapts a function to Sampler.
type SamplerFunc func(ctx context.Context, req Request) (Result, error)

// Generate calls f.
func (f SamplerFunc) Generate(ctx context.Context, req Request) (Result, error) {
	return f(ctx, req)
}

// Output is a completed generation.
type Output struct {
	Tokens *tokens.Grid
	Mask   *tokens.Mask
	Seed   int64
}

// Step runs one generation through a Sampler.
type Step struct {
	sampler Sampler
	logger  zerolog.Logger
}

// NewStep binds a sampler.
func NewStep(sampler Sampler, logger zerolog.Logger) *Step {
	return &Step{sampler: sampler, logger: logger}
}

// Run regenerates the positions of z marked by m. Either a complete output is
// returned or an error; a canceled context always yields ctx.Err().
func (s *Step) Run(ctx context.Context, z *tokens.Grid, m *tokens.Mask, cfg SamplingConfig) (*Output, error) {
	if err := tokens.CheckShapes(z.Shape(), m.Shape()); err != nil {
		return nil, fmt.Errorf("mask does not match tokens: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if cfg.Seed == 0 {
		cfg.Seed = NewSeed()
		s.logger.Info().Int64("seed", cfg.Seed).Msg("No seed given, picked one")
	}

	res, err := s.sampler.Generate(ctx, Request{Tokens: z.Clone(), Mask: m.Clone(), Config: cfg})
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if err != nil {
		return nil, fmt.Errorf("sampler: %w", err)
	}
	if res.Tokens == nil {
		return nil, errors.New("sampler returned no tokens")
	}
	if err := tokens.CheckShapes(z.Shape(), res.Tokens.Shape()); err != nil {
		return nil, fmt.Errorf("sampler output: %w", err)
	}

	realized := res.Mask
	if realized == nil {
		realized = m.Clone()
	} else if err := tokens.CheckShapes(z.Shape(), realized.Shape()); err != nil {
		return nil, fmt.Errorf("sampler mask: %w", err)
	}

	if err := checkPreserved(z, res.Tokens, m); err != nil {
		return nil, err
	}

	s.logger.Debug().
		Int64("seed", cfg.Seed).
		Str("shape", z.Shape().String()).
		Float64("masked", m.Fraction()).
		Float64("realized", realized.Fraction()).
		Msg("Generation step finished")

	return &Output{Tokens: res.Tokens, Mask: realized, Seed: cfg.Seed}, nil
}

// NewSeed returns a random seed in [1, MaxSeed].
func NewSeed() int64 {
	return rand.Int64N(MaxSeed) + 1
}

func checkPreserved(in, out *tokens.Grid, m *tokens.Mask) error {
	shape := in.Shape()
	for c := 0; c < shape.Codebooks; c++ {
		for t := 0; t < shape.Steps; t++ {
			if !m.At(c, t) && in.At(c, t) != out.At(c, t) {
				return fmt.Errorf("%w at (%d, %d): %d -> %d", ErrPreservationViolated, c, t, in.At(c, t), out.At(c, t))
			}
		}
	}
	return nil
}
