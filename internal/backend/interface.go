package backend

import (
	"context"

	"github.com/vamp-go/vamp-go/internal/generate"
	"github.com/vamp-go/vamp-go/internal/schema"
	"github.com/vamp-go/vamp-go/internal/tokens"
)

// Backend defines the interface for communicating with the model backend server.
type Backend interface {
	Health(ctx context.Context) error
	CodecInfo(ctx context.Context) (*schema.CodecInfoResponse, error)
	Encode(ctx context.Context, audio []byte) (*tokens.Grid, error)
	Decode(ctx context.Context, z *tokens.Grid) ([]byte, error)
	Generate(ctx context.Context, model schema.ModelSpec, req generate.Request) (generate.Result, error)
	DetectOnsets(ctx context.Context, audio []byte) ([]float64, error)
	DetectBeats(ctx context.Context, audio []byte) (beats, downbeats []float64, err error)
	MeasureLoudness(ctx context.Context, audio []byte) (float64, error)
	NormalizeLoudness(ctx context.Context, audio []byte, target float64) ([]byte, error)
}

// Ensure Client implements Backend.
var _ Backend = (*Client)(nil)

// Sampler binds b to a model so it can serve as a generate.Sampler.
func Sampler(b Backend, model schema.ModelSpec) generate.Sampler {
	return generate.SamplerFunc(func(ctx context.Context, req generate.Request) (generate.Result, error) {
		return b.Generate(ctx, model, req)
	})
}
