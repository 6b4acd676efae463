package schema

// SamplingParams mirrors the sampler settings sent to the backend.
type SamplingParams struct {
	MaskTemperature     float64  `json:"mask_temperature" msgpack:"mask_temperature"`
	SamplingTemperature float64  `json:"sampling_temperature" msgpack:"sampling_temperature"`
	TypicalFiltering    bool     `json:"typical_filtering" msgpack:"typical_filtering"`
	TypicalMass         float64  `json:"typical_mass" msgpack:"typical_mass"`
	TypicalMinTokens    int      `json:"typical_min_tokens" msgpack:"typical_min_tokens"`
	TopP                *float64 `json:"top_p,omitempty" msgpack:"top_p,omitempty"`
	SampleCutoff        float64  `json:"sample_cutoff" msgpack:"sample_cutoff"`
	Steps               int      `json:"sampling_steps,omitempty" msgpack:"sampling_steps,omitempty"`
	Seed                int64    `json:"seed" msgpack:"seed"`
}

// ModelCheckpoints are the weight files a model configuration selects.
type ModelCheckpoints struct {
	Coarse     string `json:"coarse_ckpt,omitempty" msgpack:"coarse_ckpt,omitempty"`
	CoarseFine string `json:"coarse2fine_ckpt,omitempty" msgpack:"coarse2fine_ckpt,omitempty"`
	Codec      string `json:"codec_ckpt,omitempty" msgpack:"codec_ckpt,omitempty"`
	Beats      string `json:"wavebeat_ckpt,omitempty" msgpack:"wavebeat_ckpt,omitempty"`
}

// ModelSpec identifies the model a generate call runs on. The built-in
// default has no checkpoints or config and leaves the backend on its own weights.
type ModelSpec struct {
	Name        string
	Checkpoints *ModelCheckpoints
	Config      map[string]interface{}
}

// GenerateRequest asks the backend model to regenerate masked tokens.
// Mask rows hold 1 for positions to regenerate.
type GenerateRequest struct {
	Model       string                 `json:"model" msgpack:"model"`
	Checkpoints *ModelCheckpoints      `json:"checkpoints,omitempty" msgpack:"checkpoints,omitempty"`
	Config      map[string]interface{} `json:"config,omitempty" msgpack:"config,omitempty"`
	Tokens      [][]int                `json:"tokens" msgpack:"tokens"`
	Mask        [][]int                `json:"mask" msgpack:"mask"`
	Sampling    SamplingParams         `json:"sampling" msgpack:"sampling"`
}

// GenerateResponse carries the regenerated tokens and the mask the model realized.
type GenerateResponse struct {
	Tokens [][]int `json:"tokens" msgpack:"tokens"`
	Mask   [][]int `json:"mask,omitempty" msgpack:"mask,omitempty"`
}
