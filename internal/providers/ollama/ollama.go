package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/linkenthegreat/docex/internal/providers"
)

const (
	providerName   = "ollama"
	defaultBaseURL = "http://localhost:11434"
	defaultModel   = "llama3.1:8b-instruct-q8_0"
	defaultTimeout = 5 * time.Minute
	pingTimeout    = 5 * time.Second
)

// Options configures the local Ollama adapter.
type Options struct {
	BaseURL    string
	Model      string
	HTTPClient *http.Client
}

// Client runs extractions against a local Ollama server. It is the offline
// provider: invocations cost nothing and never leave the machine.
type Client struct {
	baseURL string
	model   string
	client  *http.Client
}

func New(opts Options) *Client {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = defaultModel
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{baseURL: baseURL, model: model, client: client}
}

func (c *Client) Name() string { return providerName }

func (c *Client) Models() []string { return []string{c.model} }

// Cost always reports zero: local inference is free.
func (c *Client) Cost(model string, inputChars, outputChars int) float64 { return 0 }

type generateRequest struct {
	Model       string  `json:"model"`
	Prompt      string  `json:"prompt"`
	Stream      bool    `json:"stream"`
	Temperature float64 `json:"temperature"`
}

type generateResponse struct {
	Response string `json:"response"`
}

func (c *Client) Invoke(ctx context.Context, req providers.Request) (*providers.Result, error) {
	prompt := providers.BuildPrompt(req)
	payload := generateRequest{
		Model:       c.model,
		Prompt:      prompt,
		Stream:      false,
		Temperature: 0.1,
	}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(payload); err != nil {
		return nil, fmt.Errorf("ollama: encode request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", &buf)
	if err != nil {
		return nil, fmt.Errorf("ollama: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("ollama: request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("ollama: status %d", resp.StatusCode)
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("ollama: decode response: %w", err)
	}
	if strings.TrimSpace(out.Response) == "" {
		return nil, errors.New("ollama: empty response")
	}
	extracted, err := providers.ExtractPayload(out.Response)
	if err != nil {
		return nil, fmt.Errorf("ollama: %w", err)
	}
	return &providers.Result{
		Payload:     extracted,
		InputChars:  len(prompt),
		OutputChars: len(out.Response),
	}, nil
}

// Ping checks the local server's version endpoint, the cheapest call the API
// offers.
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/version", nil)
	if err != nil {
		return fmt.Errorf("ollama: build ping: %w", err)
	}
	resp, err := c.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("ollama: ping: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("ollama: ping status %d", resp.StatusCode)
	}
	return nil
}

var _ providers.Provider = (*Client)(nil)
