// Package resolver parses a stored config blob into a platform/model/prompt
// template, substitutes {{key}} placeholders from a parsed input JSON
// object (resolving 64-hex values through the content store), and decides
// the final platform/model for a request.
package resolver

import (
	"encoding/json"
	"errors"
	"log/slog"
	"regexp"
	"strings"

	"github.com/nulpointcorp/llm-oracle-node/internal/store"
)

// ErrConfigMissing is returned when configHash is not present in the store.
var ErrConfigMissing = errors.New("resolver: config missing")

// ErrConfigInvalid is returned when the config's "model: " line is
// malformed.
var ErrConfigInvalid = errors.New("resolver: config invalid")

// ErrModelUnspecified is returned when neither the config nor the request
// supplies a platform or model.
var ErrModelUnspecified = errors.New("resolver: platform or model unspecified")

// ParsedConfig is the config blob's structure per spec.md §3.
type ParsedConfig struct {
	Platform string
	Model    string
	Template string
}

const modelLinePrefix = "model: "

// ParseConfig splits raw config bytes into an optional "model: platform/model"
// header line and a template. If the first line does not start with
// "model: ", the entire content is the template.
func ParseConfig(raw []byte) (ParsedConfig, error) {
	text := string(raw)
	firstNL := strings.IndexByte(text, '\n')

	var firstLine, rest string
	if firstNL < 0 {
		firstLine, rest = text, ""
	} else {
		firstLine, rest = text[:firstNL], text[firstNL+1:]
	}

	if !strings.HasPrefix(firstLine, modelLinePrefix) {
		return ParsedConfig{Template: text}, nil
	}

	spec := strings.TrimSpace(strings.TrimPrefix(firstLine, modelLinePrefix))
	slash := strings.IndexByte(spec, '/')
	if slash < 0 {
		return ParsedConfig{}, ErrConfigInvalid
	}

	platform := strings.TrimSpace(spec[:slash])
	model := strings.TrimSpace(spec[slash+1:])
	if platform == "" || model == "" {
		return ParsedConfig{}, ErrConfigInvalid
	}

	return ParsedConfig{Platform: platform, Model: model, Template: rest}, nil
}

// placeholderPattern matches {{ key }} with optional surrounding whitespace,
// per testable property 5 (invariant under whitespace variation).
func placeholderPattern(key string) *regexp.Regexp {
	return regexp.MustCompile(`\{\{\s*` + regexp.QuoteMeta(key) + `\s*\}\}`)
}

// Resolve implements resolvePrompt(configHash, inputJSON) from spec.md §4.C,
// then decides the final platform/model per the request's own fields.
func Resolve(
	logger *slog.Logger,
	st *store.Store,
	configHash string,
	inputJSON string,
	reqPlatform string,
	reqModel string,
) (platform, model, prompt string, err error) {
	raw, ok := st.Get(configHash)
	if !ok {
		return "", "", "", ErrConfigMissing
	}

	cfg, err := ParseConfig(raw)
	if err != nil {
		return "", "", "", err
	}

	values := map[string]string{}
	if strings.TrimSpace(inputJSON) != "" {
		if err := json.Unmarshal([]byte(inputJSON), &values); err != nil {
			if logger != nil {
				logger.Warn("resolver: input JSON parse failed, proceeding with empty mapping", "error", err)
			}
			values = map[string]string{}
		}
	}

	template := cfg.Template
	for key, value := range values {
		resolved := value
		if store.ValidHash(value) {
			if b, ok := st.Get(value); ok {
				resolved = string(b)
			}
		}
		template = placeholderPattern(key).ReplaceAllLiteralString(template, resolved)
	}

	platform = cfg.Platform
	if platform == "" {
		platform = reqPlatform
	}
	model = cfg.Model
	if model == "" {
		model = reqModel
	}
	if platform == "" || model == "" {
		return "", "", "", ErrModelUnspecified
	}

	return platform, model, template, nil
}

