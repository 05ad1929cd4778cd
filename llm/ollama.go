// Package llm provides the local model client used by the assistant.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	// DefaultBaseURL is the local Ollama daemon.
	DefaultBaseURL = "http://localhost:11434"
	// DefaultModel is a small model suitable for interactive design chat.
	DefaultModel = "llama3.2:3b"
)

// Options are model sampling parameters sent with every request.
type Options struct {
	Temperature   float64 `json:"temperature,omitempty"`
	TopP          float64 `json:"top_p,omitempty"`
	NumCtx        int     `json:"num_ctx,omitempty"`
	RepeatPenalty float64 `json:"repeat_penalty,omitempty"`
}

// DefaultOptions tuned for grounded design answers rather than creative
// generation.
func DefaultOptions() Options {
	return Options{
		Temperature:   0.6,
		TopP:          0.9,
		NumCtx:        4096,
		RepeatPenalty: 1.1,
	}
}

// ClientConfig configures the Ollama client.
type ClientConfig struct {
	BaseURL string
	Model   string
	Timeout time.Duration
	HTTP    *http.Client
}

// Client talks to a local Ollama daemon.
type Client struct {
	baseURL string
	model   string
	http    *http.Client
}

// NewClient builds a client with defaults filled in. Local models need
// generous timeouts; the first request may load the model from disk.
func NewClient(cfg ClientConfig) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Minute
	}
	httpClient := cfg.HTTP
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		model:   cfg.Model,
		http:    httpClient,
	}
}

// Model returns the configured model name.
func (c *Client) Model() string { return c.model }

type generateRequest struct {
	Model   string  `json:"model"`
	Prompt  string  `json:"prompt"`
	Stream  bool    `json:"stream"`
	Options Options `json:"options"`
}

type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// Generate runs a single-shot completion and returns the full response
// text.
func (c *Client) Generate(ctx context.Context, prompt string, opts Options) (string, error) {
	payload, err := json.Marshal(generateRequest{
		Model:   c.model,
		Prompt:  prompt,
		Stream:  false,
		Options: opts,
	})
	if err != nil {
		return "", fmt.Errorf("llm: marshal generate request: %w", err)
	}

	body, err := c.post(ctx, "/api/generate", payload)
	if err != nil {
		return "", err
	}
	defer body.Close()

	var decoded generateResponse
	if err := json.NewDecoder(body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("llm: decode generate response: %w", err)
	}
	return strings.TrimSpace(decoded.Response), nil
}

// Message is one turn in a chat exchange.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	Stream   bool      `json:"stream"`
	Options  Options   `json:"options"`
}

type chatChunk struct {
	Message Message `json:"message"`
	Done    bool    `json:"done"`
}

// StreamFunc receives each token as it arrives.
type StreamFunc func(token string)

// Chat sends a multi-turn conversation. With a non-nil stream callback
// the response is read as newline-delimited JSON chunks and tokens are
// forwarded as they arrive; either way the full assistant message is
// returned.
func (c *Client) Chat(ctx context.Context, messages []Message, opts Options, stream StreamFunc) (string, error) {
	payload, err := json.Marshal(chatRequest{
		Model:    c.model,
		Messages: messages,
		Stream:   stream != nil,
		Options:  opts,
	})
	if err != nil {
		return "", fmt.Errorf("llm: marshal chat request: %w", err)
	}

	body, err := c.post(ctx, "/api/chat", payload)
	if err != nil {
		return "", err
	}
	defer body.Close()

	if stream == nil {
		var decoded chatChunk
		if err := json.NewDecoder(body).Decode(&decoded); err != nil {
			return "", fmt.Errorf("llm: decode chat response: %w", err)
		}
		return decoded.Message.Content, nil
	}

	var full strings.Builder
	decoder := json.NewDecoder(body)
	for {
		var chunk chatChunk
		if err := decoder.Decode(&chunk); err != nil {
			if err == io.EOF {
				break
			}
			return "", fmt.Errorf("llm: decode chat chunk: %w", err)
		}
		if chunk.Message.Content != "" {
			full.WriteString(chunk.Message.Content)
			stream(chunk.Message.Content)
		}
		if chunk.Done {
			break
		}
	}
	return full.String(), nil
}

type tagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// ListModels returns the model names the daemon has pulled.
func (c *Client) ListModels(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return nil, fmt.Errorf("llm: create tags request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("llm: ollama unreachable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("llm: ollama API error %d", resp.StatusCode)
	}

	var decoded tagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("llm: decode tags response: %w", err)
	}
	names := make([]string, 0, len(decoded.Models))
	for _, m := range decoded.Models {
		names = append(names, m.Name)
	}
	return names, nil
}

// Ping verifies the daemon is up and the configured model is available.
func (c *Client) Ping(ctx context.Context) error {
	models, err := c.ListModels(ctx)
	if err != nil {
		return err
	}
	for _, name := range models {
		if name == c.model || strings.HasPrefix(name, c.model+":") {
			return nil
		}
	}
	return fmt.Errorf("llm: model %q not available, run: ollama pull %s", c.model, c.model)
}

func (c *Client) post(ctx context.Context, path string, payload []byte) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("llm: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("llm: ollama unreachable: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, fmt.Errorf("llm: ollama API error %d: %s", resp.StatusCode, body)
	}
	return resp.Body, nil
}
