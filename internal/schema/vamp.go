package schema

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/vamp-go/vamp-go/internal/generate"
	"github.com/vamp-go/vamp-go/internal/mask"
	"github.com/vamp-go/vamp-go/internal/tokens"
	"github.com/vamp-go/vamp-go/internal/vamp"
)

const (
	defaultMode            = "vamp"
	defaultNumPasses       = 1
	defaultIntensity       = 1.0
	defaultPeriod          = 3
	defaultPeriodWidth     = 1
	defaultOnsetWidth      = 5
	defaultBeatBefore      = 0.01
	defaultBeatDropout     = 0.7
	defaultMaskCodebooks   = 9
	defaultMaskTemperature = 1.5

	// MaskTemperatureScale converts the user-facing mask temperature to the
	// scale the sampler expects.
	MaskTemperatureScale = 10
)

var validate *validator.Validate

func init() {
	validate = validator.New()
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

// MaskSettings are the user-facing mask controls. Durations are in seconds
// except BeatWidthMs.
type MaskSettings struct {
	Intensity float64 `json:"rand_mask_intensity" msgpack:"rand_mask_intensity" validate:"gte=0,lte=1"`

	PrefixSeconds float64 `json:"prefix_s" msgpack:"prefix_s" validate:"gte=0"`
	SuffixSeconds float64 `json:"suffix_s" msgpack:"suffix_s" validate:"gte=0"`

	Period      int `json:"periodic_p" msgpack:"periodic_p" validate:"gte=0"`
	PeriodWidth int `json:"periodic_w" msgpack:"periodic_w" validate:"gte=0"`

	OnsetWidth    int  `json:"onset_mask_width" msgpack:"onset_mask_width" validate:"gte=0"`
	OnsetCentered bool `json:"onset_centered" msgpack:"onset_centered"`

	BeatWidthMs        float64 `json:"beat_mask_width" msgpack:"beat_mask_width" validate:"gte=0"`
	BeatDownbeatsOnly  bool    `json:"beat_mask_downbeats" msgpack:"beat_mask_downbeats"`
	BeatBeforeSeconds  float64 `json:"beat_before_s" msgpack:"beat_before_s" validate:"gte=0"`
	BeatDropout        float64 `json:"beat_dropout" msgpack:"beat_dropout" validate:"gte=0,lte=1"`
	BeatInvert         bool    `json:"beat_invert" msgpack:"beat_invert"`
	DownbeatDownsample int     `json:"downbeat_downsample_factor" msgpack:"downbeat_downsample_factor" validate:"gte=0"`
	BeatDownsample     int     `json:"beat_downsample_factor" msgpack:"beat_downsample_factor" validate:"gte=0"`

	Dropout       float64 `json:"dropout" msgpack:"dropout" validate:"gte=0,lte=1"`
	MaskCodebooks int     `json:"n_mask_codebooks" msgpack:"n_mask_codebooks" validate:"gte=0"`
}

// DefaultMaskSettings returns the controls' initial values.
func DefaultMaskSettings() MaskSettings {
	return MaskSettings{
		Intensity:         defaultIntensity,
		Period:            defaultPeriod,
		PeriodWidth:       defaultPeriodWidth,
		OnsetWidth:        defaultOnsetWidth,
		BeatBeforeSeconds: defaultBeatBefore,
		BeatDropout:       defaultBeatDropout,
		BeatInvert:        true,
		MaskCodebooks:     defaultMaskCodebooks,
	}
}

// Params converts the settings to time steps using tb.
func (s MaskSettings) Params(tb tokens.TimeBase) mask.Params {
	p := mask.Params{
		Intensity:     s.Intensity,
		PrefixSteps:   tb.Steps(s.PrefixSeconds),
		SuffixSteps:   tb.Steps(s.SuffixSeconds),
		Period:        s.Period,
		PeriodWidth:   s.PeriodWidth,
		OnsetWidth:    s.OnsetWidth,
		OnsetCentered: s.OnsetCentered,
		Dropout:       s.Dropout,
		MaskCodebooks: s.MaskCodebooks,
	}
	if s.BeatWidthMs > 0 {
		p.Beat = &mask.BeatOptions{
			BeforeSeconds:      s.BeatBeforeSeconds,
			AfterSeconds:       s.BeatWidthMs / 1000,
			MaskDownbeats:      true,
			MaskUpbeats:        !s.BeatDownbeatsOnly,
			DownbeatDownsample: s.DownbeatDownsample,
			BeatDownsample:     s.BeatDownsample,
			Dropout:            s.BeatDropout,
			Invert:             s.BeatInvert,
		}
	}
	return p
}

// NeedsOnsets reports whether the onset stage is enabled.
func (s MaskSettings) NeedsOnsets() bool { return s.OnsetWidth > 0 }

// NeedsBeats reports whether the beat stage is enabled.
func (s MaskSettings) NeedsBeats() bool { return s.BeatWidthMs > 0 }

// SamplingSettings are the user-facing sampler controls.
type SamplingSettings struct {
	MaskTemperature     float64 `json:"masktemp" msgpack:"masktemp" validate:"gte=0"`
	SamplingTemperature float64 `json:"sampletemp" msgpack:"sampletemp" validate:"gt=0"`
	TypicalFiltering    bool    `json:"typical_filtering" msgpack:"typical_filtering"`
	TypicalMass         float64 `json:"typical_mass" msgpack:"typical_mass" validate:"gte=0,lte=1"`
	TypicalMinTokens    int     `json:"typical_min_tokens" msgpack:"typical_min_tokens" validate:"gte=0"`
	TopP                float64 `json:"top_p" msgpack:"top_p" validate:"gte=0,lte=1"`
	SampleCutoff        float64 `json:"sample_cutoff" msgpack:"sample_cutoff" validate:"gte=0,lte=1"`
	Steps               int     `json:"num_steps" msgpack:"num_steps" validate:"gte=0"`
	Seed                int64   `json:"seed" msgpack:"seed" validate:"gte=0,lte=2147483647"`
}

// DefaultSamplingSettings returns the controls' initial values.
func DefaultSamplingSettings() SamplingSettings {
	return SamplingSettings{
		MaskTemperature:     defaultMaskTemperature,
		SamplingTemperature: generate.DefaultSamplingTemperature,
		TypicalMass:         generate.DefaultTypicalMass,
		TypicalMinTokens:    generate.DefaultTypicalMinTokens,
		SampleCutoff:        generate.DefaultSampleCutoff,
		Steps:               generate.DefaultSteps,
	}
}

// Config converts the settings to a sampler configuration.
func (s SamplingSettings) Config() generate.SamplingConfig {
	return generate.SamplingConfig{
		MaskTemperature:     s.MaskTemperature * MaskTemperatureScale,
		SamplingTemperature: s.SamplingTemperature,
		TypicalFiltering:    s.TypicalFiltering,
		TypicalMass:         s.TypicalMass,
		TypicalMinTokens:    s.TypicalMinTokens,
		TopP:                s.TopP,
		SampleCutoff:        s.SampleCutoff,
		Steps:               s.Steps,
		Seed:                s.Seed,
	}
}

// VampRequest is the body of POST /v1/vamp. Decode it over DefaultVampRequest
// so that omitted fields keep their defaults.
type VampRequest struct {
	Audio []byte `json:"audio,omitempty" msgpack:"audio,omitempty"`
	Model string `json:"model" msgpack:"model"`

	Mode      string `json:"mode" msgpack:"mode" validate:"oneof=vamp extend loop"`
	NumPasses int    `json:"num_passes" msgpack:"num_passes" validate:"gte=1"`

	MaskSettings     `msgpack:",inline"`
	SamplingSettings `msgpack:",inline"`

	Refine          bool `json:"refine" msgpack:"refine"`
	CoarseCodebooks int  `json:"coarse_codebooks" msgpack:"coarse_codebooks" validate:"gte=0"`

	Normalize  bool `json:"normalize" msgpack:"normalize"`
	ReturnMask bool `json:"return_mask" msgpack:"return_mask"`
}

// DefaultVampRequest returns a request with every control at its default.
func DefaultVampRequest() VampRequest {
	return VampRequest{
		Mode:             defaultMode,
		NumPasses:        defaultNumPasses,
		MaskSettings:     DefaultMaskSettings(),
		SamplingSettings: DefaultSamplingSettings(),
		Refine:           true,
		Normalize:        true,
	}
}

// Validate checks field ranges and the pass limit. maxPasses <= 0 disables the limit.
func (r *VampRequest) Validate(maxPasses int) error {
	if err := validateStruct(r); err != nil {
		return err
	}
	if maxPasses > 0 && r.NumPasses > maxPasses {
		return fmt.Errorf("num_passes must be at most %d", maxPasses)
	}
	return nil
}

// Orchestration converts the request into an orchestrator request. A zero
// CoarseCodebooks falls back to coarseDefault.
func (r *VampRequest) Orchestration(tb tokens.TimeBase, coarseDefault int) vamp.Request {
	coarse := r.CoarseCodebooks
	if coarse == 0 {
		coarse = coarseDefault
	}
	return vamp.Request{
		Mode:            vamp.Mode(r.Mode),
		Passes:          r.NumPasses,
		Mask:            r.MaskSettings.Params(tb),
		Sampling:        r.SamplingSettings.Config(),
		Refine:          r.Refine,
		CoarseCodebooks: coarse,
	}
}

// PassSummary describes one generation pass in a response.
type PassSummary struct {
	Stage          string  `json:"stage" msgpack:"stage"`
	Seed           int64   `json:"seed" msgpack:"seed"`
	MaskedFraction float64 `json:"masked_fraction" msgpack:"masked_fraction"`
	DurationMs     int64   `json:"duration_ms" msgpack:"duration_ms"`
}

// VampResponse is returned for msgpack and JSON clients. Audio-only clients
// receive the WAV body with the seed in a header instead.
type VampResponse struct {
	Audio  []byte        `json:"audio" msgpack:"audio"`
	Seed   int64         `json:"seed" msgpack:"seed"`
	Model  string        `json:"model" msgpack:"model"`
	Steps  int           `json:"steps" msgpack:"steps"`
	Passes []PassSummary `json:"passes" msgpack:"passes"`
	Mask   [][]int       `json:"mask,omitempty" msgpack:"mask,omitempty"`
}

// MaskPreviewRequest is the body of POST /v1/mask. Event times are in seconds.
type MaskPreviewRequest struct {
	Codebooks int   `json:"n_codebooks" msgpack:"n_codebooks" validate:"gte=1,lte=1024"`
	Steps     int   `json:"steps" msgpack:"steps" validate:"gte=1,lte=1048576"`
	Seed      int64 `json:"seed" msgpack:"seed" validate:"gte=0,lte=2147483647"`

	MaskSettings `msgpack:",inline"`

	Onsets    []float64 `json:"onsets,omitempty" msgpack:"onsets,omitempty" validate:"dive,gte=0"`
	Beats     []float64 `json:"beats,omitempty" msgpack:"beats,omitempty" validate:"dive,gte=0"`
	Downbeats []float64 `json:"downbeats,omitempty" msgpack:"downbeats,omitempty" validate:"dive,gte=0"`
}

// DefaultMaskPreviewRequest returns a preview request with default mask controls.
func DefaultMaskPreviewRequest() MaskPreviewRequest {
	return MaskPreviewRequest{MaskSettings: DefaultMaskSettings()}
}

// Validate checks field ranges. A positive maxCells caps n_codebooks*steps.
func (r *MaskPreviewRequest) Validate(maxCells int) error {
	if err := validateStruct(r); err != nil {
		return err
	}
	if cells := r.Shape().Len(); maxCells > 0 && cells > maxCells {
		return fmt.Errorf("n_codebooks*steps must be at most %d, got %d", maxCells, cells)
	}
	return nil
}

// Shape returns the requested grid shape.
func (r *MaskPreviewRequest) Shape() tokens.Shape {
	return tokens.Shape{Codebooks: r.Codebooks, Steps: r.Steps}
}

// Events returns the supplied analyzer events.
func (r *MaskPreviewRequest) Events() mask.Events {
	return mask.Events{Onsets: r.Onsets, Beats: r.Beats, Downbeats: r.Downbeats}
}

// MaskPreviewResponse carries mask rows, 1 marking positions to regenerate.
type MaskPreviewResponse struct {
	Seed           int64   `json:"seed" msgpack:"seed"`
	MaskedFraction float64 `json:"masked_fraction" msgpack:"masked_fraction"`
	Mask           [][]int `json:"mask" msgpack:"mask"`
}

func validateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}
	fe := verrs[0]
	return fmt.Errorf("%s must satisfy %s, got %v", fe.Field(), constraint(fe), fe.Value())
}

func constraint(fe validator.FieldError) string {
	if fe.Param() == "" {
		return fe.Tag()
	}
	return fe.Tag() + "=" + fe.Param()
}
