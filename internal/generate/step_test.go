package generate_test

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vamp-go/vamp-go/internal/generate"
	"github.com/vamp-go/vamp-go/internal/generate/generatetest"
	"github.com/vamp-go/vamp-go/internal/mask"
	"github.com/vamp-go/vamp-go/internal/tokens"
)

func newStep(s generate.Sampler) *generate.Step {
	return generate.NewStep(s, zerolog.New(io.Discard))
}

func halfMask(shape tokens.Shape) *tokens.Mask {
	m := tokens.NewMask(shape, false)
	for t := shape.Steps / 2; t < shape.Steps; t++ {
		m.SetColumn(t, true)
	}
	return m
}

func TestStepPreservesUnmaskedTokens(t *testing.T) {
	z := generatetest.Sequential(4, 40)
	m := halfMask(z.Shape())

	out, err := newStep(&generatetest.Sampler{}).Run(context.Background(), z, m, generate.DefaultSamplingConfig().WithSeed(7))
	require.NoError(t, err)

	for c := 0; c < 4; c++ {
		for step := 0; step < 40; step++ {
			if !m.At(c, step) {
				assert.Equal(t, z.At(c, step), out.Tokens.At(c, step))
			}
		}
	}
	assert.Equal(t, int64(7), out.Seed)
}

func TestStepDeterministicWithSeed(t *testing.T) {
	z := generatetest.Sequential(4, 32)
	m := mask.Full(z.Shape())
	cfg := generate.DefaultSamplingConfig().WithSeed(1234)

	a, err := newStep(&generatetest.Sampler{}).Run(context.Background(), z, m, cfg)
	require.NoError(t, err)
	b, err := newStep(&generatetest.Sampler{}).Run(context.Background(), z, m, cfg)
	require.NoError(t, err)

	assert.True(t, a.Tokens.Equal(b.Tokens))
}

func TestStepPicksSeedWhenZero(t *testing.T) {
	sampler := &generatetest.Sampler{}
	z := generatetest.Sequential(2, 8)

	out, err := newStep(sampler).Run(context.Background(), z, mask.Full(z.Shape()), generate.DefaultSamplingConfig())
	require.NoError(t, err)

	require.NotZero(t, out.Seed)
	calls := sampler.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, out.Seed, calls[0].Config.Seed)
}

func TestStepRejectsShapeMismatch(t *testing.T) {
	sampler := &generatetest.Sampler{}
	z := generatetest.Sequential(4, 10)
	m := mask.Full(tokens.Shape{Codebooks: 4, Steps: 11})

	_, err := newStep(sampler).Run(context.Background(), z, m, generate.DefaultSamplingConfig())
	require.ErrorIs(t, err, tokens.ErrShapeMismatch)
	assert.Empty(t, sampler.Calls())
}

func TestStepRejectsInvalidConfig(t *testing.T) {
	sampler := &generatetest.Sampler{}
	z := generatetest.Sequential(1, 4)
	cfg := generate.DefaultSamplingConfig()
	cfg.TopP = 1.5

	_, err := newStep(sampler).Run(context.Background(), z, mask.Full(z.Shape()), cfg)
	require.Error(t, err)
	assert.True(t, mask.IsParamError(err))
	assert.Empty(t, sampler.Calls())
}

func TestStepRejectsSeedAboveMax(t *testing.T) {
	sampler := &generatetest.Sampler{}
	z := generatetest.Sequential(1, 4)

	_, err := newStep(sampler).Run(context.Background(), z, mask.Full(z.Shape()), generate.DefaultSamplingConfig().WithSeed(generate.MaxSeed+1))
	require.Error(t, err)
	assert.True(t, mask.IsParamError(err))
	assert.Empty(t, sampler.Calls())
}

func TestPassSeed(t *testing.T) {
	assert.Equal(t, int64(8), generate.PassSeed(5, 3))
	assert.Equal(t, int64(generate.MaxSeed), generate.PassSeed(generate.MaxSeed, 0))
	assert.Equal(t, int64(1), generate.PassSeed(generate.MaxSeed, 1))
	assert.Equal(t, int64(3), generate.PassSeed(generate.MaxSeed-1, 4))
}

func TestStepDetectsPreservationViolation(t *testing.T) {
	z := generatetest.Sequential(2, 6)
	rogue := generate.SamplerFunc(func(_ context.Context, req generate.Request) (generate.Result, error) {
		b := tokens.NewBuilder(req.Tokens)
		b.Set(0, 0, 999)
		return generate.Result{Tokens: b.Grid()}, nil
	})

	_, err := newStep(rogue).Run(context.Background(), z, mask.Empty(z.Shape()), generate.DefaultSamplingConfig().WithSeed(1))
	require.ErrorIs(t, err, generate.ErrPreservationViolated)
}

func TestStepReturnsRealizedMask(t *testing.T) {
	z := generatetest.Sequential(2, 6)
	sampler := &generatetest.Sampler{Remask: func(m *tokens.Mask) *tokens.Mask {
		out := m.Clone()
		out.SetColumn(0, false)
		return out
	}}

	out, err := newStep(sampler).Run(context.Background(), z, mask.Full(z.Shape()), generate.DefaultSamplingConfig().WithSeed(3))
	require.NoError(t, err)
	assert.False(t, out.Mask.At(0, 0))
	assert.True(t, out.Mask.At(0, 1))
}

func TestStepCancellationReturnsNothing(t *testing.T) {
	z := generatetest.Sequential(2, 6)
	ctx, cancel := context.WithCancel(context.Background())

	slow := generate.SamplerFunc(func(_ context.Context, req generate.Request) (generate.Result, error) {
		cancel()
		return generate.Result{Tokens: req.Tokens}, nil
	})

	out, err := newStep(slow).Run(ctx, z, mask.Full(z.Shape()), generate.DefaultSamplingConfig().WithSeed(1))
	assert.Nil(t, out)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStepWrapsSamplerError(t *testing.T) {
	boom := errors.New("boom")
	failing := generate.SamplerFunc(func(context.Context, generate.Request) (generate.Result, error) {
		return generate.Result{}, boom
	})
	z := generatetest.Sequential(1, 2)

	_, err := newStep(failing).Run(context.Background(), z, mask.Full(z.Shape()), generate.DefaultSamplingConfig().WithSeed(1))
	assert.ErrorIs(t, err, boom)
}

func TestStepDoesNotShareInputs(t *testing.T) {
	z := generatetest.Sequential(1, 4)
	m := mask.Full(z.Shape())

	mutating := generate.SamplerFunc(func(_ context.Context, req generate.Request) (generate.Result, error) {
		req.Mask.SetColumn(0, false)
		return generate.Result{Tokens: req.Tokens, Mask: req.Mask}, nil
	})

	_, err := newStep(mutating).Run(context.Background(), z, m, generate.DefaultSamplingConfig().WithSeed(1))
	require.NoError(t, err)
	assert.True(t, m.All(true))
}
