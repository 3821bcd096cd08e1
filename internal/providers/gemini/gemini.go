// Package gemini adapts the Google Gemini GenerateContent API to
// providers.Provider.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"github.com/nulpointcorp/llm-oracle-node/internal/providers"
)

const (
	defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	providerName   = "gemini"
)

// Provider implements providers.Provider for Google Gemini (official GenAI SDK).
type Provider struct {
	apiKey  string
	baseURL string
	client  *genai.Client
}

// Option configures a Provider.
type Option func(*Provider)

// WithBaseURL overrides the API base URL (useful for testing).
func WithBaseURL(u string) Option {
	return func(p *Provider) { p.baseURL = u }
}

// New creates a new Gemini Provider. Returns nil if the SDK client cannot
// be constructed.
func New(ctx context.Context, apiKey string, opts ...Option) *Provider {
	p := &Provider{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
	}
	for _, o := range opts {
		o(p)
	}

	httpClient := &http.Client{Timeout: providers.ProviderTimeout}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      p.apiKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPClient:  httpClient,
		HTTPOptions: genai.HTTPOptions{BaseURL: p.baseURL},
	})
	if err != nil {
		return nil
	}

	p.client = client

	return p
}

func (p *Provider) Name() string { return providerName }

// Invoke sends a single-turn prompt with generationConfig{temperature:0,
// maxOutputTokens:4096}, per the §4.B wire shape.
func (p *Provider) Invoke(ctx context.Context, req *providers.Request) (*providers.Response, error) {
	contents := []*genai.Content{genai.NewContentFromText(req.Prompt, genai.RoleUser)}
	cfg := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr[float32](0),
		MaxOutputTokens: providers.DefaultMaxTokens,
	}

	resp, err := p.client.Models.GenerateContent(ctx, req.Model, contents, cfg)
	if err != nil {
		return nil, toProviderError(err)
	}

	text := ""
	if resp != nil {
		text = resp.Text()
	}

	return &providers.Response{Text: strings.TrimSpace(text)}, nil
}

func toProviderError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &providers.ProviderError{
			Platform:   providerName,
			StatusCode: apiErr.Code,
			Message:    apiErr.Message,
		}
	}
	return fmt.Errorf("gemini: %w", err)
}
