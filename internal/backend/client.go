package backend

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/vamp-go/vamp-go/internal/config"
	"github.com/vamp-go/vamp-go/internal/generate"
	"github.com/vamp-go/vamp-go/internal/schema"
	"github.com/vamp-go/vamp-go/internal/tokens"
)

const contentTypeMsgpack = "application/msgpack"

// Client handles communication with the model backend server.
type Client struct {
	httpClient *http.Client
	endpoint   string
}

// NewClient creates a new backend client with connection pooling.
func NewClient(cfg *config.BackendConfig) *Client {
	maxConns := cfg.MaxConnections
	if maxConns <= 0 {
		maxConns = 100
	}

	transport := &http.Transport{
		MaxIdleConns:        maxConns,
		MaxIdleConnsPerHost: maxConns,
		IdleConnTimeout:     90 * time.Second,
		DisableCompression:  true,
	}

	client := &http.Client{
		Transport: transport,
		Timeout:   cfg.Timeout,
	}

	return &Client{
		httpClient: client,
		endpoint:   cfg.URL,
	}
}

// Health checks if the model backend is reachable.
func (c *Client) Health(ctx context.Context) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"/v1/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("backend unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("backend unhealthy: status %d", resp.StatusCode)
	}

	return nil
}

// CodecInfo returns the codec's time base and vocabulary.
func (c *Client) CodecInfo(ctx context.Context) (*schema.CodecInfoResponse, error) {
	var result schema.CodecInfoResponse
	if err := c.call(ctx, http.MethodGet, "/v1/codec/info", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Encode tokenizes an audio file.
func (c *Client) Encode(ctx context.Context, audio []byte) (*tokens.Grid, error) {
	var result schema.EncodeResponse
	if err := c.call(ctx, http.MethodPost, "/v1/codec/encode", &schema.EncodeRequest{Audio: audio}, &result); err != nil {
		return nil, err
	}
	z, err := tokens.FromRows(result.Tokens)
	if err != nil {
		return nil, fmt.Errorf("invalid encode response: %w", err)
	}
	return z, nil
}

// Decode renders tokens to an audio file.
func (c *Client) Decode(ctx context.Context, z *tokens.Grid) ([]byte, error) {
	var result schema.DecodeResponse
	if err := c.call(ctx, http.MethodPost, "/v1/codec/decode", &schema.DecodeRequest{Tokens: z.Rows()}, &result); err != nil {
		return nil, err
	}
	return result.Audio, nil
}

// Generate asks model to regenerate the masked positions of req.
func (c *Client) Generate(ctx context.Context, model schema.ModelSpec, req generate.Request) (generate.Result, error) {
	wire, err := NewGenerateRequest(model, req)
	if err != nil {
		return generate.Result{}, fmt.Errorf("failed to encode request: %w", err)
	}

	var result schema.GenerateResponse
	if err := c.call(ctx, http.MethodPost, "/v1/generate", wire, &result); err != nil {
		return generate.Result{}, err
	}

	z, err := tokens.FromRows(result.Tokens)
	if err != nil {
		return generate.Result{}, fmt.Errorf("invalid generate response: %w", err)
	}
	out := generate.Result{Tokens: z}
	if len(result.Mask) > 0 {
		if out.Mask, err = tokens.MaskFromIntRows(result.Mask); err != nil {
			return generate.Result{}, fmt.Errorf("invalid generate response: %w", err)
		}
	}
	return out, nil
}

// DetectOnsets returns onset times in seconds.
func (c *Client) DetectOnsets(ctx context.Context, audio []byte) ([]float64, error) {
	var result schema.OnsetsResponse
	if err := c.call(ctx, http.MethodPost, "/v1/analysis/onsets", &schema.AudioRequest{Audio: audio}, &result); err != nil {
		return nil, err
	}
	return result.Onsets, nil
}

// DetectBeats returns beat and downbeat times in seconds.
func (c *Client) DetectBeats(ctx context.Context, audio []byte) ([]float64, []float64, error) {
	var result schema.BeatsResponse
	if err := c.call(ctx, http.MethodPost, "/v1/analysis/beats", &schema.AudioRequest{Audio: audio}, &result); err != nil {
		return nil, nil, err
	}
	return result.Beats, result.Downbeats, nil
}

// MeasureLoudness returns integrated loudness in LUFS.
func (c *Client) MeasureLoudness(ctx context.Context, audio []byte) (float64, error) {
	var result schema.LoudnessResponse
	if err := c.call(ctx, http.MethodPost, "/v1/loudness/measure", &schema.AudioRequest{Audio: audio}, &result); err != nil {
		return 0, err
	}
	return result.Loudness, nil
}

// NormalizeLoudness brings audio to target LUFS.
func (c *Client) NormalizeLoudness(ctx context.Context, audio []byte, target float64) ([]byte, error) {
	var result schema.NormalizeResponse
	req := &schema.NormalizeRequest{Audio: audio, Target: target}
	if err := c.call(ctx, http.MethodPost, "/v1/loudness/normalize", req, &result); err != nil {
		return nil, err
	}
	return result.Audio, nil
}

// call sends in as msgpack (when non-nil) and decodes the msgpack reply into out.
func (c *Client) call(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		data, err := EncodeMsgpack(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.endpoint+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if in != nil {
		httpReq.Header.Set("Content-Type", contentTypeMsgpack)
	}
	httpReq.Header.Set("Accept", contentTypeMsgpack)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return transportError(ctx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return &BackendError{StatusCode: resp.StatusCode, Message: string(bodyBytes)}
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if err := DecodeMsgpack(respBody, out); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", path, err)
	}
	return nil
}

func transportError(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.Canceled) {
		return ctx.Err()
	}
	var netErr net.Error
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return fmt.Errorf("%w: %v", ErrBackendTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
}
