package schema

// AudioRequest carries an audio file for analysis.
type AudioRequest struct {
	Audio []byte `json:"audio" msgpack:"audio"`
}

// OnsetsResponse lists onset times in seconds, ascending.
type OnsetsResponse struct {
	Onsets []float64 `json:"onsets" msgpack:"onsets"`
}

// BeatsResponse lists beat and downbeat times in seconds, ascending.
type BeatsResponse struct {
	Beats     []float64 `json:"beats" msgpack:"beats"`
	Downbeats []float64 `json:"downbeats" msgpack:"downbeats"`
}

// LoudnessResponse carries integrated loudness in LUFS.
type LoudnessResponse struct {
	Loudness float64 `json:"loudness" msgpack:"loudness"`
}

// NormalizeRequest asks the backend to bring audio to a target loudness.
type NormalizeRequest struct {
	Audio  []byte  `json:"audio" msgpack:"audio"`
	Target float64 `json:"target" msgpack:"target"`
}

// NormalizeResponse carries the normalized audio file.
type NormalizeResponse struct {
	Audio []byte `json:"audio" msgpack:"audio"`
}
