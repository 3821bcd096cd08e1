// Package qwen adapts Alibaba Cloud DashScope's text-generation API to
// providers.Provider. DashScope's wire shape (input.messages / parameters)
// is not OpenAI-compatible, so this adapter speaks raw HTTP instead of
// reusing an SDK.
package qwen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/nulpointcorp/llm-oracle-node/internal/providers"
)

const (
	defaultBaseURL = "https://dashscope.aliyuncs.com/api/v1/services/aigc/text-generation/generation"
	providerName   = "qwen"
)

// Provider implements providers.Provider for DashScope / Qwen.
type Provider struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// Option configures a Provider.
type Option func(*Provider)

// WithBaseURL overrides the API endpoint (useful for testing).
func WithBaseURL(u string) Option {
	return func(p *Provider) { p.baseURL = u }
}

// New creates a new Qwen/DashScope Provider.
func New(apiKey string, opts ...Option) *Provider {
	p := &Provider{
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: providers.ProviderTimeout},
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

func (p *Provider) Name() string { return providerName }

type requestBody struct {
	Model string `json:"model"`
	Input struct {
		Messages []message `json:"messages"`
	} `json:"input"`
	Parameters struct {
		Temperature float64 `json:"temperature"`
		MaxTokens   int     `json:"max_tokens"`
	} `json:"parameters"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseBody struct {
	Output struct {
		Text string `json:"text"`
	} `json:"output"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Invoke sends a single-turn prompt as a one-message conversation, per the
// §4.B DashScope wire shape.
func (p *Provider) Invoke(ctx context.Context, req *providers.Request) (*providers.Response, error) {
	body := requestBody{Model: req.Model}
	body.Input.Messages = []message{{Role: "user", Content: req.Prompt}}
	body.Parameters.Temperature = 0
	body.Parameters.MaxTokens = providers.DefaultMaxTokens

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("qwen: encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("qwen: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("qwen: request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("qwen: read response: %w", err)
	}

	var parsed responseBody
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("qwen: decode response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &providers.ProviderError{
			Platform:   providerName,
			StatusCode: resp.StatusCode,
			Message:    parsed.Message,
			Code:       parsed.Code,
		}
	}

	return &providers.Response{Text: strings.TrimSpace(parsed.Output.Text)}, nil
}
