package backend

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vamp-go/vamp-go/internal/config"
	"github.com/vamp-go/vamp-go/internal/generate"
	"github.com/vamp-go/vamp-go/internal/mask"
	"github.com/vamp-go/vamp-go/internal/schema"
	"github.com/vamp-go/vamp-go/internal/tokens"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(&config.BackendConfig{URL: server.URL, Timeout: 10 * time.Second})
}

func writeMsgpack(t *testing.T, w http.ResponseWriter, v interface{}) {
	t.Helper()
	data, err := EncodeMsgpack(v)
	require.NoError(t, err)
	w.Header().Set("Content-Type", contentTypeMsgpack)
	w.Write(data)
}

func readMsgpack(t *testing.T, r *http.Request, v interface{}) {
	t.Helper()
	assert.Equal(t, contentTypeMsgpack, r.Header.Get("Content-Type"))
	data, err := io.ReadAll(r.Body)
	require.NoError(t, err)
	require.NoError(t, DecodeMsgpack(data, v))
}

func TestNewGenerateRequest(t *testing.T) {
	z, err := tokens.FromRows([][]int{{1, 2, 3}, {4, 5, 6}})
	require.NoError(t, err)
	m := mask.Empty(z.Shape())
	m.SetColumn(1, true)

	cfg := generate.DefaultSamplingConfig().WithSeed(9)
	wire, err := NewGenerateRequest(schema.ModelSpec{Name: "default"}, generate.Request{Tokens: z, Mask: m, Config: cfg})
	require.NoError(t, err)

	assert.Equal(t, "default", wire.Model)
	assert.Nil(t, wire.Checkpoints)
	assert.Nil(t, wire.Config)
	assert.Equal(t, [][]int{{1, 2, 3}, {4, 5, 6}}, wire.Tokens)
	assert.Equal(t, [][]int{{0, 1, 0}, {0, 1, 0}}, wire.Mask)
	assert.Nil(t, wire.Sampling.TopP)
	assert.Equal(t, int64(9), wire.Sampling.Seed)

	cfg.TopP = 0.9
	wire, err = NewGenerateRequest(schema.ModelSpec{Name: "default"}, generate.Request{Tokens: z, Mask: m, Config: cfg})
	require.NoError(t, err)
	require.NotNil(t, wire.Sampling.TopP)
	assert.Equal(t, 0.9, *wire.Sampling.TopP)

	_, err = NewGenerateRequest(schema.ModelSpec{Name: "default"}, generate.Request{})
	require.Error(t, err)
}

func TestGenerate_Success(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/generate", r.URL.Path)
		var req schema.GenerateRequest
		readMsgpack(t, r, &req)
		assert.Equal(t, "spotdl", req.Model)
		require.NotNil(t, req.Checkpoints)
		assert.Equal(t, "runs/spotdl/coarse.pth", req.Checkpoints.Coarse)
		assert.Equal(t, "models/codec.pth", req.Checkpoints.Codec)
		assert.Equal(t, "runs/spotdl/coarse.pth", req.Config["Interface.coarse_ckpt"])
		assert.Equal(t, [][]int{{0, 1}}, req.Mask)

		writeMsgpack(t, w, schema.GenerateResponse{
			Tokens: [][]int{{7, 42}},
			Mask:   [][]int{{0, 1}},
		})
	})

	z, err := tokens.FromRows([][]int{{7, 8}})
	require.NoError(t, err)
	m := mask.Empty(z.Shape())
	m.Set(0, 1, true)

	spec := schema.ModelSpec{
		Name:        "spotdl",
		Checkpoints: &schema.ModelCheckpoints{Coarse: "runs/spotdl/coarse.pth", Codec: "models/codec.pth"},
		Config:      map[string]interface{}{"Interface.coarse_ckpt": "runs/spotdl/coarse.pth"},
	}
	out, err := Sampler(client, spec).Generate(context.Background(), generate.Request{
		Tokens: z,
		Mask:   m,
		Config: generate.DefaultSamplingConfig().WithSeed(1),
	})
	require.NoError(t, err)
	assert.Equal(t, 42, out.Tokens.At(0, 1))
	require.NotNil(t, out.Mask)
	assert.True(t, out.Mask.Equal(m))
}

func TestGenerate_RaggedResponse(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeMsgpack(t, w, schema.GenerateResponse{Tokens: [][]int{{1, 2}, {3}}})
	})

	z := tokens.NewGrid(2, 2)
	_, err := client.Generate(context.Background(), schema.ModelSpec{Name: "default"}, generate.Request{Tokens: z, Mask: mask.Full(z.Shape())})
	require.ErrorIs(t, err, tokens.ErrShapeMismatch)
}

func TestEncodeDecode(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/codec/encode":
			var req schema.EncodeRequest
			readMsgpack(t, r, &req)
			assert.Equal(t, []byte("wav"), req.Audio)
			writeMsgpack(t, w, schema.EncodeResponse{Tokens: [][]int{{1, 2}, {3, 4}}})
		case "/v1/codec/decode":
			var req schema.DecodeRequest
			readMsgpack(t, r, &req)
			assert.Equal(t, [][]int{{1, 2}, {3, 4}}, req.Tokens)
			writeMsgpack(t, w, schema.DecodeResponse{Audio: []byte("out")})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	})

	z, err := client.Encode(context.Background(), []byte("wav"))
	require.NoError(t, err)
	assert.Equal(t, tokens.Shape{Codebooks: 2, Steps: 2}, z.Shape())

	audio, err := client.Decode(context.Background(), z)
	require.NoError(t, err)
	assert.Equal(t, []byte("out"), audio)
}

func TestCodecInfo(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/v1/codec/info", r.URL.Path)
		writeMsgpack(t, w, schema.CodecInfoResponse{SampleRate: 44100, HopLength: 768, Codebooks: 14, VocabSize: 1024})
	})

	info, err := client.CodecInfo(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 14, info.Codebooks)
	assert.Equal(t, tokens.TimeBase{SampleRate: 44100, HopLength: 768}, info.TimeBase())
}

func TestAnalysisAndLoudness(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/analysis/onsets":
			writeMsgpack(t, w, schema.OnsetsResponse{Onsets: []float64{0.5, 1.25}})
		case "/v1/analysis/beats":
			writeMsgpack(t, w, schema.BeatsResponse{Beats: []float64{0, 0.5, 1}, Downbeats: []float64{0}})
		case "/v1/loudness/measure":
			writeMsgpack(t, w, schema.LoudnessResponse{Loudness: -14.5})
		case "/v1/loudness/normalize":
			var req schema.NormalizeRequest
			readMsgpack(t, r, &req)
			assert.Equal(t, -14.5, req.Target)
			writeMsgpack(t, w, schema.NormalizeResponse{Audio: []byte("loud")})
		}
	})
	ctx := context.Background()

	onsets, err := client.DetectOnsets(ctx, []byte("a"))
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5, 1.25}, onsets)

	beats, downbeats, err := client.DetectBeats(ctx, []byte("a"))
	require.NoError(t, err)
	assert.Len(t, beats, 3)
	assert.Equal(t, []float64{0}, downbeats)

	lufs, err := client.MeasureLoudness(ctx, []byte("a"))
	require.NoError(t, err)
	assert.Equal(t, -14.5, lufs)

	audio, err := client.NormalizeLoudness(ctx, []byte("a"), lufs)
	require.NoError(t, err)
	assert.Equal(t, []byte("loud"), audio)
}

func TestCall_BackendError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"detail": "Internal error"}`))
	})

	_, err := client.Encode(context.Background(), []byte("wav"))

	require.Error(t, err)
	assert.True(t, IsBackendError(err))
	var be *BackendError
	require.True(t, errors.As(err, &be))
	assert.Equal(t, http.StatusInternalServerError, be.StatusCode)
}

func TestCall_Timeout(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.DetectOnsets(ctx, []byte("a"))

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBackendTimeout)
	assert.True(t, IsTransportError(err))
}

func TestCall_Unavailable(t *testing.T) {
	client := NewClient(&config.BackendConfig{URL: "http://127.0.0.1:1", Timeout: time.Second})

	_, err := client.MeasureLoudness(context.Background(), []byte("a"))

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBackendUnavailable)
}

func TestHealth_Success(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/health", r.URL.Path)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status": "ok"}`))
	})

	require.NoError(t, client.Health(context.Background()))
}

func TestHealth_Failure(t *testing.T) {
	client := NewClient(&config.BackendConfig{URL: "http://localhost:9999", Timeout: 1 * time.Second})

	require.Error(t, client.Health(context.Background()))
}
