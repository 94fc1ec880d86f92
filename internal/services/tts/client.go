// Package tts wraps the speech rendering engine's HTTP API.
package tts

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"cinecast/internal/services"
	"cinecast/internal/voice"
)

const defaultHTTPTimeout = 300 * time.Second

// Config captures the runtime settings required to talk to the engine.
type Config struct {
	BaseURL        string
	TimeoutSeconds int
	Language       string
}

// Client talks to the rendering engine.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewClient constructs an engine client using the supplied configuration.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	cfg.BaseURL = strings.TrimSpace(cfg.BaseURL)
	client := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Request is one line to render. OutputPath receives the WAV payload.
type Request struct {
	Text       string
	Instruct   string
	Voice      voice.Spec
	Seed       int64
	OutputPath string
}

type renderPayload struct {
	Text     string     `json:"text"`
	Instruct string     `json:"instruct,omitempty"`
	Language string     `json:"language,omitempty"`
	Seed     int64      `json:"seed"`
	Voice    voice.Spec `json:"voice"`
}

// Render synthesizes a single line and writes the WAV to req.OutputPath.
func (c *Client) Render(ctx context.Context, req Request) error {
	if strings.TrimSpace(req.Text) == "" {
		return services.Wrap(services.ErrValidation, "tts", "render", "empty text", nil)
	}
	body, err := json.Marshal(renderPayload{
		Text:     req.Text,
		Instruct: req.Instruct,
		Language: c.cfg.Language,
		Seed:     req.Seed,
		Voice:    req.Voice,
	})
	if err != nil {
		return fmt.Errorf("tts render: encode body: %w", err)
	}

	data, err := c.post(ctx, "render", body, "audio/wav")
	if err != nil {
		return services.Wrap(services.ErrExternalTool, "tts", "render", "engine request failed", err)
	}
	if err := os.WriteFile(req.OutputPath, data, 0o644); err != nil {
		return fmt.Errorf("tts render: write output: %w", err)
	}
	return nil
}

type batchPayload struct {
	Lines    []renderPayload `json:"lines"`
	Language string          `json:"language,omitempty"`
	Seed     int64           `json:"seed"`
}

type batchResponse struct {
	Results []struct {
		Index    int    `json:"index"`
		AudioB64 string `json:"audio_b64"`
		Error    string `json:"error"`
	} `json:"results"`
}

// RenderBatch synthesizes several lines in one engine call, sharing seed and
// model state across the batch. The returned slice has one slot per request;
// nil means the WAV was written to that request's OutputPath. A non-nil error
// return means the whole call failed and no slot is meaningful.
func (c *Client) RenderBatch(ctx context.Context, reqs []Request, seed int64) ([]error, error) {
	if len(reqs) == 0 {
		return nil, nil
	}
	payload := batchPayload{Language: c.cfg.Language, Seed: seed}
	for _, req := range reqs {
		payload.Lines = append(payload.Lines, renderPayload{
			Text:     req.Text,
			Instruct: req.Instruct,
			Seed:     seed,
			Voice:    req.Voice,
		})
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("tts batch: encode body: %w", err)
	}

	data, err := c.post(ctx, "render_batch", body, "application/json")
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "tts", "render_batch", "engine request failed", err)
	}

	var decoded batchResponse
	if err := json.Unmarshal(data, &decoded); err != nil {
		return nil, fmt.Errorf("tts batch: decode response: %w", err)
	}

	results := make([]error, len(reqs))
	seen := make([]bool, len(reqs))
	for _, item := range decoded.Results {
		if item.Index < 0 || item.Index >= len(reqs) {
			continue
		}
		seen[item.Index] = true
		if item.Error != "" {
			results[item.Index] = services.Wrap(services.ErrExternalTool, "tts", "render_batch", item.Error, nil)
			continue
		}
		audio, decodeErr := base64.StdEncoding.DecodeString(item.AudioB64)
		if decodeErr != nil {
			results[item.Index] = fmt.Errorf("tts batch: decode audio: %w", decodeErr)
			continue
		}
		if writeErr := os.WriteFile(reqs[item.Index].OutputPath, audio, 0o644); writeErr != nil {
			results[item.Index] = fmt.Errorf("tts batch: write output: %w", writeErr)
		}
	}
	for i, ok := range seen {
		if !ok {
			results[i] = services.Wrap(services.ErrExternalTool, "tts", "render_batch", "engine returned no result for line", nil)
		}
	}
	return results, nil
}

// HealthCheck verifies the engine is reachable.
func (c *Client) HealthCheck(ctx context.Context) error {
	endpoint, err := url.JoinPath(c.cfg.BaseURL, "health")
	if err != nil {
		return fmt.Errorf("tts health: build url: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("tts health: new request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return services.Wrap(services.ErrExternalTool, "tts", "health", "engine unreachable", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return services.Wrap(services.ErrExternalTool, "tts", "health",
			fmt.Sprintf("engine returned http %d", resp.StatusCode), nil)
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, body []byte, accept string) ([]byte, error) {
	if c.cfg.BaseURL == "" {
		return nil, errors.New("base url required")
	}
	endpoint, err := url.JoinPath(c.cfg.BaseURL, path)
	if err != nil {
		return nil, fmt.Errorf("build url: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", accept)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	return data, nil
}
