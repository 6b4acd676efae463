package generate

import (
	"fmt"
	"math"

	"github.com/vamp-go/vamp-go/internal/mask"
)

const (
	DefaultMaskTemperature     = 15.0
	DefaultSamplingTemperature = 1.0
	DefaultTypicalMass         = 0.15
	DefaultTypicalMinTokens    = 64
	DefaultSampleCutoff        = 1.0
	DefaultSteps               = 36

	// MaxSeed bounds request seeds and every seed derived from them.
	MaxSeed = math.MaxInt32
)

// SamplingConfig is passed unchanged to the sampler. Zero TopP and zero Seed
// mean "disabled" and "pick a seed" respectively.
type SamplingConfig struct {
	MaskTemperature     float64 `json:"mask_temperature" msgpack:"mask_temperature"`
	SamplingTemperature float64 `json:"sampling_temperature" msgpack:"sampling_temperature"`
	TypicalFiltering    bool    `json:"typical_filtering" msgpack:"typical_filtering"`
	TypicalMass         float64 `json:"typical_mass" msgpack:"typical_mass"`
	TypicalMinTokens    int     `json:"typical_min_tokens" msgpack:"typical_min_tokens"`
	TopP                float64 `json:"top_p,omitempty" msgpack:"top_p,omitempty"`
	SampleCutoff        float64 `json:"sample_cutoff" msgpack:"sample_cutoff"`
	Steps               int     `json:"steps,omitempty" msgpack:"steps,omitempty"`
	Seed                int64   `json:"seed,omitempty" msgpack:"seed,omitempty"`
}

// DefaultSamplingConfig returns the default sampler controls.
func DefaultSamplingConfig() SamplingConfig {
	return SamplingConfig{
		MaskTemperature:     DefaultMaskTemperature,
		SamplingTemperature: DefaultSamplingTemperature,
		TypicalMass:         DefaultTypicalMass,
		TypicalMinTokens:    DefaultTypicalMinTokens,
		SampleCutoff:        DefaultSampleCutoff,
		Steps:               DefaultSteps,
	}
}

// WithSeed returns a copy using seed.
func (c SamplingConfig) WithSeed(seed int64) SamplingConfig {
	c.Seed = seed
	return c
}

// PassSeed derives the seed of pass i from a resolved seed in [1, MaxSeed].
// The result wraps around inside the same range.
func PassSeed(seed int64, i int) int64 {
	return (seed-1+int64(i))%MaxSeed + 1
}

// Validate rejects values the sampler cannot use.
func (c SamplingConfig) Validate() error {
	switch {
	case c.MaskTemperature < 0:
		return &mask.ParamError{Param: "mask_temperature", Value: c.MaskTemperature, Constraint: "must be >= 0"}
	case c.SamplingTemperature <= 0:
		return &mask.ParamError{Param: "sampling_temperature", Value: c.SamplingTemperature, Constraint: "must be > 0"}
	case c.TypicalMass < 0 || c.TypicalMass > 1:
		return &mask.ParamError{Param: "typical_mass", Value: c.TypicalMass, Constraint: "must be within [0, 1]"}
	case c.TypicalMinTokens < 0:
		return &mask.ParamError{Param: "typical_min_tokens", Value: c.TypicalMinTokens, Constraint: "must be >= 0"}
	case c.TopP < 0 || c.TopP > 1:
		return &mask.ParamError{Param: "top_p", Value: c.TopP, Constraint: "must be within [0, 1]"}
	case c.SampleCutoff < 0 || c.SampleCutoff > 1:
		return &mask.ParamError{Param: "sample_cutoff", Value: c.SampleCutoff, Constraint: "must be within [0, 1]"}
	case c.Steps < 0:
		return &mask.ParamError{Param: "steps", Value: c.Steps, Constraint: "must be >= 0"}
	case c.Seed < 0 || c.Seed > MaxSeed:
		return &mask.ParamError{Param: "seed", Value: c.Seed, Constraint: fmt.Sprintf("must be within [0, %d]", MaxSeed)}
	}
	return nil
}
