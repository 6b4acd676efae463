// Package backendtest provides an in-process Backend for tests.
package backendtest

import (
	"context"
	"sync"

	"github.com/vamp-go/vamp-go/internal/backend"
	"github.com/vamp-go/vamp-go/internal/generate"
	"github.com/vamp-go/vamp-go/internal/generate/generatetest"
	"github.com/vamp-go/vamp-go/internal/schema"
	"github.com/vamp-go/vamp-go/internal/tokens"
)

// Fake answers every call in memory. Nil function fields fall back to
// defaults: a 10 steps per second codec, a Sequential grid of Shape on
// encode, the deterministic generatetest sampler, and fixed analysis results.
type Fake struct {
	Shape tokens.Shape
	Info  schema.CodecInfoResponse

	Onsets    []float64
	Beats     []float64
	Downbeats []float64
	Loudness  float64

	HealthFn    func(ctx context.Context) error
	EncodeFn    func(ctx context.Context, audio []byte) (*tokens.Grid, error)
	DecodeFn    func(ctx context.Context, z *tokens.Grid) ([]byte, error)
	GenerateFn  func(ctx context.Context, model schema.ModelSpec, req generate.Request) (generate.Result, error)
	OnsetsFn    func(ctx context.Context, audio []byte) ([]float64, error)
	CodecInfoFn func(ctx context.Context) (*schema.CodecInfoResponse, error)

	Sampler generatetest.Sampler

	mu         sync.Mutex
	models     []schema.ModelSpec
	decoded    []*tokens.Grid
	normalized []float64
}

var _ backend.Backend = (*Fake)(nil)

// New returns a Fake serving grids of the given shape.
func New(codebooks, steps int) *Fake {
	return &Fake{
		Shape:    tokens.Shape{Codebooks: codebooks, Steps: steps},
		Info:     schema.CodecInfoResponse{SampleRate: 100, HopLength: 10, Codebooks: codebooks, VocabSize: 1024},
		Loudness: -20,
	}
}

func (f *Fake) Health(ctx context.Context) error {
	if f.HealthFn != nil {
		return f.HealthFn(ctx)
	}
	return nil
}

func (f *Fake) CodecInfo(ctx context.Context) (*schema.CodecInfoResponse, error) {
	if f.CodecInfoFn != nil {
		return f.CodecInfoFn(ctx)
	}
	info := f.Info
	return &info, nil
}

func (f *Fake) Encode(ctx context.Context, audio []byte) (*tokens.Grid, error) {
	if f.EncodeFn != nil {
		return f.EncodeFn(ctx, audio)
	}
	return generatetest.Sequential(f.Shape.Codebooks, f.Shape.Steps), nil
}

func (f *Fake) Decode(ctx context.Context, z *tokens.Grid) ([]byte, error) {
	f.mu.Lock()
	f.decoded = append(f.decoded, z)
	f.mu.Unlock()
	if f.DecodeFn != nil {
		return f.DecodeFn(ctx, z)
	}
	return []byte("RIFF"), nil
}

func (f *Fake) Generate(ctx context.Context, model schema.ModelSpec, req generate.Request) (generate.Result, error) {
	f.mu.Lock()
	f.models = append(f.models, model)
	f.mu.Unlock()
	if f.GenerateFn != nil {
		return f.GenerateFn(ctx, model, req)
	}
	return f.Sampler.Generate(ctx, req)
}

func (f *Fake) DetectOnsets(ctx context.Context, audio []byte) ([]float64, error) {
	if f.OnsetsFn != nil {
		return f.OnsetsFn(ctx, audio)
	}
	return f.Onsets, nil
}

func (f *Fake) DetectBeats(_ context.Context, _ []byte) ([]float64, []float64, error) {
	return f.Beats, f.Downbeats, nil
}

func (f *Fake) MeasureLoudness(_ context.Context, _ []byte) (float64, error) {
	return f.Loudness, nil
}

func (f *Fake) NormalizeLoudness(_ context.Context, audio []byte, target float64) ([]byte, error) {
	f.mu.Lock()
	f.normalized = append(f.normalized, target)
	f.mu.Unlock()
	return append([]byte("norm:"), audio...), nil
}

// Models returns the model name of every Generate call.
func (f *Fake) Models() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	names := make([]string, 0, len(f.models))
	for _, m := range f.models {
		names = append(names, m.Name)
	}
	return names
}

// Specs returns the model of every Generate call.
func (f *Fake) Specs() []schema.ModelSpec {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]schema.ModelSpec(nil), f.models...)
}

// Decoded returns every grid passed to Decode.
func (f *Fake) Decoded() []*tokens.Grid {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*tokens.Grid(nil), f.decoded...)
}

// Normalized returns the loudness targets passed to NormalizeLoudness.
func (f *Fake) Normalized() []float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]float64(nil), f.normalized...)
}
