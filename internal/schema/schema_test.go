package schema

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/vamp-go/vamp-go/internal/tokens"
	"github.com/vamp-go/vamp-go/internal/vamp"
)

var testTimeBase = tokens.TimeBase{SampleRate: 44100, HopLength: 768}

func TestVampRequestDefaults(t *testing.T) {
	req := DefaultVampRequest()
	require.NoError(t, req.Validate(0))

	assert.Equal(t, "vamp", req.Mode)
	assert.Equal(t, 1, req.NumPasses)
	assert.Equal(t, 1.0, req.Intensity)
	assert.Equal(t, 3, req.Period)
	assert.Equal(t, 1, req.PeriodWidth)
	assert.Equal(t, 5, req.OnsetWidth)
	assert.Equal(t, 9, req.MaskCodebooks)
	assert.Equal(t, 1.5, req.MaskTemperature)
	assert.Equal(t, 0.15, req.TypicalMass)
	assert.Equal(t, 64, req.TypicalMinTokens)
	assert.Equal(t, 36, req.SamplingSettings.Steps)
	assert.Zero(t, req.Seed)
	assert.Zero(t, req.TopP)
	assert.True(t, req.Refine)
	assert.True(t, req.Normalize)
}

func TestVampRequestDecodeKeepsDefaults(t *testing.T) {
	req := DefaultVampRequest()
	require.NoError(t, json.Unmarshal([]byte(`{"mode":"loop","num_passes":3,"prefix_s":1,"suffix_s":1,"seed":5}`), &req))

	assert.Equal(t, "loop", req.Mode)
	assert.Equal(t, 3, req.NumPasses)
	assert.Equal(t, int64(5), req.Seed)
	assert.Equal(t, 3, req.Period)
	assert.Equal(t, 1.5, req.MaskTemperature)
}

func TestVampRequestMsgpackInline(t *testing.T) {
	req := DefaultVampRequest()
	req.Mode = "extend"
	req.PrefixSeconds = 2

	data, err := msgpack.Marshal(req)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, msgpack.Unmarshal(data, &decoded))
	for _, key := range []string{"mode", "num_passes", "prefix_s", "periodic_p", "n_mask_codebooks", "masktemp", "seed", "refine"} {
		assert.Contains(t, decoded, key)
	}

	out := VampRequest{}
	require.NoError(t, msgpack.Unmarshal(data, &out))
	assert.Equal(t, 2.0, out.PrefixSeconds)
	assert.Equal(t, 1.5, out.MaskTemperature)
}

func TestVampRequestValidationErrors(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(r *VampRequest)
		maxPasses int
		expected  string
	}{
		{
			name:     "unknown mode",
			mutate:   func(r *VampRequest) { r.Mode = "shuffle" },
			expected: "mode must satisfy oneof=vamp extend loop, got shuffle",
		},
		{
			name:     "zero passes",
			mutate:   func(r *VampRequest) { r.NumPasses = 0 },
			expected: "num_passes must satisfy gte=1, got 0",
		},
		{
			name:     "intensity above one",
			mutate:   func(r *VampRequest) { r.Intensity = 1.5 },
			expected: "rand_mask_intensity must satisfy lte=1, got 1.5",
		},
		{
			name:     "negative prefix",
			mutate:   func(r *VampRequest) { r.PrefixSeconds = -1 },
			expected: "prefix_s must satisfy gte=0, got -1",
		},
		{
			name:     "zero sampling temperature",
			mutate:   func(r *VampRequest) { r.SamplingTemperature = 0 },
			expected: "sampletemp must satisfy gt=0, got 0",
		},
		{
			name:     "seed above int32",
			mutate:   func(r *VampRequest) { r.Seed = 2147483648 },
			expected: "seed must satisfy lte=2147483647, got 2147483648",
		},
		{
			name:      "too many passes",
			mutate:    func(r *VampRequest) { r.NumPasses = 9 },
			maxPasses: 8,
			expected:  "num_passes must be at most 8",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := DefaultVampRequest()
			tt.mutate(&req)
			err := req.Validate(tt.maxPasses)
			require.Error(t, err)
			assert.Equal(t, tt.expected, err.Error())
		})
	}
}

func TestVampRequestOrchestration(t *testing.T) {
	req := DefaultVampRequest()
	req.Mode = "extend"
	req.NumPasses = 2
	req.PrefixSeconds = 1
	req.SuffixSeconds = 0.5
	req.BeatWidthMs = 50
	req.BeatDownbeatsOnly = true
	req.TopP = 0.9

	out := req.Orchestration(testTimeBase, 4)

	assert.Equal(t, vamp.ModeExtend, out.Mode)
	assert.Equal(t, 2, out.Passes)
	assert.Equal(t, 58, out.Mask.PrefixSteps)
	assert.Equal(t, 29, out.Mask.SuffixSteps)
	require.NotNil(t, out.Mask.Beat)
	assert.InDelta(t, 0.05, out.Mask.Beat.AfterSeconds, 1e-9)
	assert.Equal(t, 0.01, out.Mask.Beat.BeforeSeconds)
	assert.True(t, out.Mask.Beat.MaskDownbeats)
	assert.False(t, out.Mask.Beat.MaskUpbeats)
	assert.Equal(t, 0.7, out.Mask.Beat.Dropout)
	assert.True(t, out.Mask.Beat.Invert)
	assert.Equal(t, 15.0, out.Sampling.MaskTemperature)
	assert.Equal(t, 0.9, out.Sampling.TopP)
	assert.Equal(t, 4, out.CoarseCodebooks)
	assert.True(t, out.Refine)
}

func TestMaskSettingsBeatDisabled(t *testing.T) {
	s := DefaultMaskSettings()
	assert.Nil(t, s.Params(testTimeBase).Beat)
	assert.False(t, s.NeedsBeats())
	assert.True(t, s.NeedsOnsets())
}

func TestCoarseCodebooksOverride(t *testing.T) {
	req := DefaultVampRequest()
	req.CoarseCodebooks = 2
	assert.Equal(t, 2, req.Orchestration(testTimeBase, 4).CoarseCodebooks)
}

func TestMaskPreviewRequestValidation(t *testing.T) {
	req := DefaultMaskPreviewRequest()
	require.Error(t, req.Validate(0))

	req.Codebooks, req.Steps = 4, 100
	req.Onsets = []float64{0.5, -1}
	err := req.Validate(0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "onsets")

	req.Onsets = []float64{0.5}
	require.NoError(t, req.Validate(0))
	require.NoError(t, req.Validate(400))
	require.EqualError(t, req.Validate(399), "n_codebooks*steps must be at most 399, got 400")

	req.Codebooks = 1 << 20
	require.EqualError(t, req.Validate(0), "n_codebooks must satisfy lte=1024, got 1048576")
	req.Codebooks, req.Steps = 4, 1<<30
	require.EqualError(t, req.Validate(0), "steps must satisfy lte=1048576, got 1073741824")
	assert.Equal(t, tokens.Shape{Codebooks: 4, Steps: 100}, req.Shape())
	assert.Equal(t, []float64{0.5}, req.Events().Onsets)
}

func TestGenerateRequestMsgpackTags(t *testing.T) {
	topP := 0.9
	req := GenerateRequest{
		Model:  "default",
		Tokens: [][]int{{1, 2}},
		Mask:   [][]int{{0, 1}},
		Sampling: SamplingParams{
			MaskTemperature: 15,
			TopP:            &topP,
			Seed:            3,
		},
	}

	data, err := msgpack.Marshal(req)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, msgpack.Unmarshal(data, &decoded))
	for _, key := range []string{"model", "tokens", "mask", "sampling"} {
		assert.Contains(t, decoded, key)
	}
	sampling, ok := decoded["sampling"].(map[string]interface{})
	require.True(t, ok)
	assert.Contains(t, sampling, "top_p")
	assert.Contains(t, sampling, "mask_temperature")
}
