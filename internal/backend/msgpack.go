package backend

import (
	"errors"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/vamp-go/vamp-go/internal/generate"
	"github.com/vamp-go/vamp-go/internal/schema"
)

// EncodeMsgpack encodes a value to MessagePack format.
func EncodeMsgpack(v interface{}) ([]byte, error) {
	return msgpack.Marshal(v)
}

// DecodeMsgpack decodes MessagePack data into the provided value.
func DecodeMsgpack(data []byte, v interface{}) error {
	return msgpack.Unmarshal(data, v)
}

// NewGenerateRequest converts a sampler request to its wire form. A zero
// top-p is sent as absent.
func NewGenerateRequest(model schema.ModelSpec, req generate.Request) (*schema.GenerateRequest, error) {
	if req.Tokens == nil || req.Mask == nil {
		return nil, errors.New("request has no tokens or mask")
	}

	cfg := req.Config
	params := schema.SamplingParams{
		MaskTemperature:     cfg.MaskTemperature,
		SamplingTemperature: cfg.SamplingTemperature,
		TypicalFiltering:    cfg.TypicalFiltering,
		TypicalMass:         cfg.TypicalMass,
		TypicalMinTokens:    cfg.TypicalMinTokens,
		SampleCutoff:        cfg.SampleCutoff,
		Steps:               cfg.Steps,
		Seed:                cfg.Seed,
	}
	if cfg.TopP > 0 {
		topP := cfg.TopP
		params.TopP = &topP
	}

	return &schema.GenerateRequest{
		Model:       model.Name,
		Checkpoints: model.Checkpoints,
		Config:      model.Config,
		Tokens:      req.Tokens.Rows(),
		Mask:        req.Mask.IntRows(),
		Sampling:    params,
	}, nil
}
