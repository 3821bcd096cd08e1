// Package openai adapts the OpenAI chat completions API to providers.Provider.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/nulpointcorp/llm-oracle-node/internal/providers"
	openaiSDK "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	providerName   = "openai"
)

// Provider implements providers.Provider for OpenAI (official SDK).
type Provider struct {
	apiKey  string
	baseURL string
	client  openaiSDK.Client
}

// Option configures a Provider.
type Option func(*Provider)

// WithBaseURL overrides the API base URL (useful for testing).
func WithBaseURL(u string) Option {
	return func(p *Provider) { p.baseURL = u }
}

// New creates a new OpenAI Provider for the given API key.
func New(apiKey string, opts ...Option) *Provider {
	p := &Provider{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
	}
	for _, o := range opts {
		o(p)
	}

	httpClient := &http.Client{Timeout: providers.ProviderTimeout}

	clientOpts := []option.RequestOption{
		option.WithAPIKey(p.apiKey),
		option.WithHTTPClient(httpClient),
	}
	if p.baseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(p.baseURL))
	}

	p.client = openaiSDK.NewClient(clientOpts...)

	return p
}

func (p *Provider) Name() string { return providerName }

// Invoke sends a single-turn user prompt with temperature 0, per the §4.B
// wire shape. If the API rejects temperature with an unsupported_value
// error, it retries once with temperature omitted.
func (p *Provider) Invoke(ctx context.Context, req *providers.Request) (*providers.Response, error) {
	params := p.buildParams(req, true)

	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		if isUnsupportedTemperature(err) {
			params = p.buildParams(req, false)
			resp, err = p.client.Chat.Completions.New(ctx, params)
		}
		if err != nil {
			return nil, toProviderError(err)
		}
	}

	content := ""
	if len(resp.Choices) > 0 {
		content = resp.Choices[0].Message.Content
	}

	return &providers.Response{Text: strings.TrimSpace(content)}, nil
}

func (p *Provider) buildParams(req *providers.Request, withTemperature bool) openaiSDK.ChatCompletionNewParams {
	params := openaiSDK.ChatCompletionNewParams{
		Model: req.Model,
		Messages: []openaiSDK.ChatCompletionMessageParamUnion{
			openaiSDK.UserMessage(req.Prompt),
		},
	}
	if withTemperature {
		params.Temperature = openaiSDK.Float(0)
	}
	return params
}

// isUnsupportedTemperature reports whether err is OpenAI's
// {error:{code:"unsupported_value", param:"temperature"}} response.
func isUnsupportedTemperature(err error) bool {
	var apierr *openaiSDK.Error
	if !errors.As(err, &apierr) {
		return false
	}
	body := apierr.Error()
	return strings.Contains(body, "unsupported_value") && strings.Contains(body, "temperature")
}

func toProviderError(err error) error {
	var apierr *openaiSDK.Error
	if errors.As(err, &apierr) {
		return &providers.ProviderError{
			Platform:   providerName,
			StatusCode: apierr.StatusCode,
			Message:    apierr.Error(),
		}
	}
	return fmt.Errorf("openai: %w", err)
}
