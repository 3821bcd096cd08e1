// Package anthropic adapts the Anthropic Messages API to providers.Provider.
package anthropic

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/nulpointcorp/llm-oracle-node/internal/providers"
)

const (
	defaultBaseURL = "https://api.anthropic.com/v1"
	providerName   = "anthropic"
)

// Provider implements providers.Provider for Anthropic (official SDK).
type Provider struct {
	apiKey  string
	baseURL string
	client  anthropic.Client
}

// Option configures a Provider.
type Option func(*Provider)

// WithBaseURL overrides the API base URL (useful for testing).
func WithBaseURL(url string) Option {
	return func(p *Provider) { p.baseURL = url }
}

// New creates a new Anthropic Provider.
func New(apiKey string, opts ...Option) *Provider {
	p := &Provider{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
	}
	for _, o := range opts {
		o(p)
	}

	httpClient := &http.Client{Timeout: providers.ProviderTimeout}

	p.client = anthropic.NewClient(
		option.WithAPIKey(p.apiKey),
		option.WithBaseURL(p.baseURL),
		option.WithHTTPClient(httpClient),
	)

	return p
}

func (p *Provider) Name() string { return providerName }

// Invoke sends a single-turn user message with max_tokens:4096 and
// temperature:0, per the §4.B wire shape.
func (p *Provider) Invoke(ctx context.Context, req *providers.Request) (*providers.Response, error) {
	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(req.Model),
		MaxTokens:   providers.DefaultMaxTokens,
		Temperature: anthropic.Float(0),
		Messages: []anthropic.MessageParam{
			{
				Role: anthropic.MessageParamRoleUser,
				Content: []anthropic.ContentBlockParamUnion{
					{OfText: &anthropic.TextBlockParam{Text: req.Prompt}},
				},
			},
		},
	}

	msg, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return nil, toProviderError(err)
	}

	var sb strings.Builder
	for _, b := range msg.Content {
		switch v := b.AsAny().(type) {
		case anthropic.TextBlock:
			sb.WriteString(v.Text)
		}
	}

	return &providers.Response{Text: strings.TrimSpace(sb.String())}, nil
}

func toProviderError(err error) error {
	var apierr *anthropic.Error
	if errors.As(err, &apierr) {
		return &providers.ProviderError{
			Platform:   providerName,
			StatusCode: apierr.StatusCode,
			Message:    apierr.Error(),
		}
	}
	return fmt.Errorf("anthropic: %w", err)
}
