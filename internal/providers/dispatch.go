package providers

import (
	"context"
	"os"
	"strings"
)

// platformEndpoint pins the base URL and required environment variable for
// each OpenAI-compatible platform, per the §4.B table.
type platformEndpoint struct {
	baseURL   string
	envVar    string
	maxTokens int
}

var compatEndpoints = map[string]platformEndpoint{
	"grok":       {baseURL: "https://api.x.ai/v1", envVar: "GROK_API_KEY", maxTokens: DefaultMaxTokens},
	"groq":       {baseURL: "https://api.groq.com/openai/v1", envVar: "GROQ_API_KEY", maxTokens: DefaultMaxTokens},
	"deepseek":   {baseURL: "https://api.deepseek.com/v1", envVar: "DEEPSEEK_API_KEY", maxTokens: DefaultMaxTokens},
	"kimi":       {baseURL: "https://api.moonshot.cn/v1", envVar: "MOONSHOT_API_KEY", maxTokens: 0},
	"zai":        {baseURL: "https://api.z.ai/api/paas/v4", envVar: "ZAI_API_KEY", maxTokens: DefaultMaxTokens},
	"zhipu":      {baseURL: "https://api.z.ai/api/paas/v4", envVar: "ZAI_API_KEY", maxTokens: DefaultMaxTokens},
	"perplexity": {baseURL: "https://api.perplexity.ai", envVar: "PERPLEXITY_API_KEY", maxTokens: DefaultMaxTokens},
}

// sdkEnvVars names the env var required for the platforms whose adapters
// live in their own sub-packages (openai, anthropic, gemini, qwen).
var sdkEnvVars = map[string]string{
	"openai":    "OPENAI_API_KEY",
	"anthropic": "ANTHROPIC_API_KEY",
	"gemini":    "GEMINI_API_KEY",
	"qwen":      "QWEN_API_KEY",
}

// Dispatcher holds one registered adapter per platform key. Adapters are
// built by the caller from environment API keys and added with Register.
type Dispatcher struct {
	ctx       context.Context
	providers map[string]Provider
}

// NewDispatcher returns a Dispatcher with no adapters registered. Invoke on
// a recognized platform that has no registered adapter returns
// ErrMissingAPIKey.
func NewDispatcher(ctx context.Context) *Dispatcher {
	return &Dispatcher{ctx: ctx, providers: map[string]Provider{}}
}

// Register installs an already-constructed adapter, keyed by its
// case-folded platform name. Exposed so cmd/node can inject official-SDK
// adapters built with the richer per-platform constructors.
func (d *Dispatcher) Register(platform string, p Provider) {
	d.providers[strings.ToLower(platform)] = p
}

// Invoke dispatches to the adapter for platform, case-folding the key, per
// §4.B. Unknown platform and missing API key are both fatal per-request
// errors.
func (d *Dispatcher) Invoke(ctx context.Context, platform, model, prompt string) (string, error) {
	key := strings.ToLower(strings.TrimSpace(platform))

	p, ok := d.providers[key]
	if !ok {
		envVar, known := requiredEnvVar(key)
		if !known {
			return "", &ErrUnknownPlatform{Platform: key}
		}
		return "", &ErrMissingAPIKey{Platform: key, EnvVar: envVar}
	}

	resp, err := p.Invoke(ctx, &Request{Model: model, Prompt: prompt})
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

func requiredEnvVar(platform string) (string, bool) {
	if v, ok := sdkEnvVars[platform]; ok {
		return v, true
	}
	if e, ok := compatEndpoints[platform]; ok {
		return e.envVar, true
	}
	return "", false
}

// CompatEndpoint returns the base URL, env var, and max_tokens policy for a
// generic OpenAI-compatible platform key, and whether it is recognized.
func CompatEndpoint(platform string) (baseURL, envVar string, maxTokens int, ok bool) {
	e, ok := compatEndpoints[strings.ToLower(platform)]
	if !ok {
		return "", "", 0, false
	}
	return e.baseURL, e.envVar, e.maxTokens, true
}

// LookupEnv is a thin wrapper over os.LookupEnv, kept as a single seam so
// tests can substitute the environment without process-wide os.Setenv.
var LookupEnv = os.LookupEnv
