// Package openaicompat provides a generic OpenAI-chat-completions-compatible
// LLM provider. Used for any platform whose wire shape matches OpenAI's
// (grok, groq, deepseek, zai/zhipu, perplexity, kimi).
package openaicompat

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

// Provider is a configurable OpenAI-chat-completions-compatible LLM provider.
type Provider struct {
	name      string
	apiKey    string
	baseURL   string
	maxTokens int
	client    openaiSDK.Client
}

// Option configures a Provider.
type Option func(*Provider)

// WithMaxTokens overrides max_tokens sent with the request. 0 omits the
// field entirely — kimi's wire shape forbids it.
func WithMaxTokens(n int) Option {
	return func(p *Provider) { p.maxTokens = n }
}

// New creates a new OpenAI-compatible Provider.
//
//   - name    — platform key used for routing and logs.
//   - apiKey  — API key sent as "Authorization: Bearer <key>".
//   - baseURL — API base URL, e.g. "https://api.x.ai/v1".
func New(name, apiKey, baseURL string, opts ...Option) *Provider {
	p := &Provider{
		name:      name,
		apiKey:    apiKey,
		baseURL:   baseURL,
		maxTokens: providers.DefaultMaxTokens,
	}
	for _, o := range opts {
		o(p)
	}

	clientOpts := []option.RequestOption{
		option.WithAPIKey(p.apiKey),
		option.WithHTTPClient(&http.Client{Timeout: providers.ProviderTimeout}),
	}
	if p.baseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(p.baseURL))
	}

	p.client = openaiSDK.NewClient(clientOpts...)
	return p
}

func (p *Provider) Name() string { return p.name }

// Invoke sends a single-turn user message with temperature:0 and,
// unless disabled via WithMaxTokens(0), max_tokens:4096.
func (p *Provider) Invoke(ctx context.Context, req *providers.Request) (*providers.Response, error) {
	params := openaiSDK.ChatCompletionNewParams{
		Model: req.Model,
		Messages: []openaiSDK.ChatCompletionMessageParamUnion{
			openaiSDK.UserMessage(req.Prompt),
		},
		Temperature: openaiSDK.Float(0),
	}
	if p.maxTokens > 0 {
		params.MaxTokens = openaiSDK.Int(int64(p.maxTokens))
	}

	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, p.toProviderError(err)
	}

	content := ""
	if len(resp.Choices) > 0 {
		content = resp.Choices[0].Message.Content
	}

	return &providers.Response{Text: strings.TrimSpace(content)}, nil
}

func (p *Provider) toProviderError(err error) error {
	var apierr *openaiSDK.Error
	if errors.As(err, &apierr) {
		return &providers.ProviderError{
			Platform:   p.name,
			StatusCode: apierr.StatusCode,
			Message:    apierr.Error(),
		}
	}
	return fmt.Errorf("%s: %w", p.name, err)
}
