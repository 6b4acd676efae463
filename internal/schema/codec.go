package schema

import "github.com/vamp-go/vamp-go/internal/tokens"

// CodecInfoResponse describes the codec the backend serves.
type CodecInfoResponse struct {
	SampleRate int `json:"sample_rate" msgpack:"sample_rate"`
	HopLength  int `json:"hop_length" msgpack:"hop_length"`
	Codebooks  int `json:"n_codebooks" msgpack:"n_codebooks"`
	VocabSize  int `json:"vocab_size" msgpack:"vocab_size"`
}

// EncodeRequest asks the codec to tokenize an audio file.
type EncodeRequest struct {
	Audio []byte `json:"audio" msgpack:"audio"`
}

// EncodeResponse carries one token row per codebook.
type EncodeResponse struct {
	Tokens [][]int `json:"tokens" msgpack:"tokens"`
}

// DecodeRequest asks the codec to render tokens to audio.
type DecodeRequest struct {
	Tokens [][]int `json:"tokens" msgpack:"tokens"`
}

// DecodeResponse carries the rendered audio file.
type DecodeResponse struct {
	Audio []byte `json:"audio" msgpack:"audio"`
}

// TimeBase returns the codec's sample rate and hop length.
func (r *CodecInfoResponse) TimeBase() tokens.TimeBase {
	return tokens.TimeBase{SampleRate: r.SampleRate, HopLength: r.HopLength}
}
