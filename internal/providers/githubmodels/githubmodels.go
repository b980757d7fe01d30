package githubmodels

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
	providerName    = "github-models"
	defaultEndpoint = "https://models.inference.ai.azure.com"
	defaultTimeout  = 90 * time.Second
	pingTimeout     = 5 * time.Second

	ModelGPT4o    = "gpt-4o"
	ModelDeepSeek = "deepseek-v3"
)

// rate is the metered price per 1000 characters of input/output.
type rate struct {
	inPerKChar  float64
	outPerKChar float64
}

var modelRates = map[string]rate{
	ModelGPT4o:    {inPerKChar: 0.002, outPerKChar: 0.006},
	ModelDeepSeek: {inPerKChar: 0.0005, outPerKChar: 0.0015},
}

// Options configures the GitHub Models adapter.
type Options struct {
	Endpoint   string
	Token      string
	HTTPClient *http.Client
}

// Client is the remote, metered provider hosting the high-capability and
// cheap-fast models. Without a token it still constructs, but every call
// (including Ping) fails fast, which the prober records as unavailable.
type Client struct {
	endpoint string
	token    string
	client   *http.Client
}

func New(opts Options) *Client {
	endpoint := strings.TrimRight(strings.TrimSpace(opts.Endpoint), "/")
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{endpoint: endpoint, token: strings.TrimSpace(opts.Token), client: client}
}

func (c *Client) Name() string { return providerName }

func (c *Client) Models() []string { return []string{ModelGPT4o, ModelDeepSeek} }

// Cost applies the per-model linear rate to estimated input/output sizes.
// Unknown models price at the most expensive known rate rather than zero.
func (c *Client) Cost(model string, inputChars, outputChars int) float64 {
	r, ok := modelRates[model]
	if !ok {
		r = modelRates[ModelGPT4o]
	}
	return r.inPerKChar*float64(inputChars)/1000 + r.outPerKChar*float64(outputChars)/1000
}

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	Temperature    float64       `json:"temperature"`
	ResponseFormat *chatFormat   `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (c *Client) Invoke(ctx context.Context, req providers.Request) (*providers.Result, error) {
	if c.token == "" {
		return nil, errors.New("github-models: token not configured")
	}
	model := strings.TrimSpace(req.Model)
	if model == "" {
		model = ModelGPT4o
	}
	prompt := providers.BuildPrompt(req)
	payload := chatRequest{
		Model:       model,
		Temperature: 0.1,
		ResponseFormat: &chatFormat{
			Type: "json_object",
		},
		Messages: []chatMessage{
			{Role: "system", Content: "You are a precise document extraction assistant that only responds with valid JSON."},
			{Role: "user", Content: prompt},
		},
	}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(payload); err != nil {
		return nil, fmt.Errorf("github-models: encode request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/chat/completions", &buf)
	if err != nil {
		return nil, fmt.Errorf("github-models: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("github-models: request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("github-models: status %d", resp.StatusCode)
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("github-models: decode response: %w", err)
	}
	if len(out.Choices) == 0 {
		return nil, errors.New("github-models: no choices")
	}
	text := strings.TrimSpace(out.Choices[0].Message.Content)
	if text == "" {
		return nil, errors.New("github-models: empty response")
	}
	extracted, err := providers.ExtractPayload(text)
	if err != nil {
		return nil, fmt.Errorf("github-models: %w", err)
	}
	return &providers.Result{
		Payload:     extracted,
		InputChars:  len(prompt),
		OutputChars: len(text),
	}, nil
}

// Ping lists models, which is cheap and exercises authentication, so a
// missing or revoked token shows up as unavailability rather than as a
// mid-job surprise.
func (c *Client) Ping(ctx context.Context) error {
	if c.token == "" {
		return errors.New("github-models: token not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"/models", nil)
	if err != nil {
		return fmt.Errorf("github-models: build ping: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.token)
	resp, err := c.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("github-models: ping: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("github-models: ping status %d", resp.StatusCode)
	}
	return nil
}

var _ providers.Provider = (*Client)(nil)
