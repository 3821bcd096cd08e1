package resolver

import (
	"testing"

	"github.com/nulpointcorp/llm-oracle-node/internal/store"
)

func TestParseConfigWithModelLine(t *testing.T) {
	cfg, err := ParseConfig([]byte("model: openai/gpt-4o\nQ: {{q}}"))
	if err != nil {
		t.Fatalf("ParseConfig: %v", err)
	}
	if cfg.Platform != "openai" || cfg.Model != "gpt-4o" || cfg.Template != "Q: {{q}}" {
		t.Fatalf("unexpected parse result: %+v", cfg)
	}
}

func TestParseConfigWithoutModelLine(t *testing.T) {
	cfg, err := ParseConfig([]byte("Q: {{q}}"))
	if err != nil {
		t.Fatalf("ParseConfig: %v", err)
	}
	if cfg.Platform != "" || cfg.Model != "" || cfg.Template != "Q: {{q}}" {
		t.Fatalf("unexpected parse result: %+v", cfg)
	}
}

func TestParseConfigMalformedModelLine(t *testing.T) {
	_, err := ParseConfig([]byte("model: openai-only\nbody"))
	if err != ErrConfigInvalid {
		t.Fatalf("err = %v, want ErrConfigInvalid", err)
	}
}

// Testable property 5: whitespace inside {{ key }} must not affect output.
func TestPlaceholderWhitespaceInvariant(t *testing.T) {
	st := store.New(t.TempDir())

	variants := []string{"{{q}}", "{{ q }}", "{{   q   }}"}
	var results []string
	for _, tmpl := range variants {
		ch, err := st.Put([]byte("Q: " + tmpl))
		if err != nil {
			t.Fatalf("Put: %v", err)
		}
		_, _, prompt, err := Resolve(nil, st, ch, `{"q":"answer"}`, "openai", "gpt-4o")
		if err != nil {
			t.Fatalf("Resolve: %v", err)
		}
		results = append(results, prompt)
	}
	for i := 1; i < len(results); i++ {
		if results[i] != results[0] {
			t.Fatalf("whitespace variant mismatch: %q != %q", results[i], results[0])
		}
	}
}

// S5 — template with content-addressed input.
func TestResolveContentAddressedInput(t *testing.T) {
	st := store.New(t.TempDir())
	pingHash, err := st.Put([]byte("ping"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	configHash, err := st.Put([]byte("Q: {{q}}"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}

	_, _, prompt, err := Resolve(nil, st, configHash, `{"q":"`+pingHash+`"}`, "openai", "gpt-4o")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if prompt != "Q: ping" {
		t.Fatalf("prompt = %q, want %q", prompt, "Q: ping")
	}
}

func TestResolveFallsBackToRequestPlatformAndModel(t *testing.T) {
	st := store.New(t.TempDir())
	configHash, err := st.Put([]byte("just a template"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	platform, model, _, err := Resolve(nil, st, configHash, "", "anthropic", "claude-3-5-sonnet")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if platform != "anthropic" || model != "claude-3-5-sonnet" {
		t.Fatalf("got platform=%q model=%q", platform, model)
	}
}

func TestResolveModelUnspecified(t *testing.T) {
	st := store.New(t.TempDir())
	configHash, err := st.Put([]byte("template with no model line"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	_, _, _, err = Resolve(nil, st, configHash, "", "", "")
	if err != ErrModelUnspecified {
		t.Fatalf("err = %v, want ErrModelUnspecified", err)
	}
}

func TestResolveConfigMissing(t *testing.T) {
	st := store.New(t.TempDir())
	_, _, _, err := Resolve(nil, st, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b85", "", "openai", "gpt-4o")
	if err != ErrConfigMissing {
		t.Fatalf("err = %v, want ErrConfigMissing", err)
	}
}

func TestResolveMalformedInputJSONFallsBackToEmptyMap(t *testing.T) {
	st := store.New(t.TempDir())
	configHash, err := st.Put([]byte("Q: {{q}}"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	_, _, prompt, err := Resolve(nil, st, configHash, "not json", "openai", "gpt-4o")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if prompt != "Q: {{q}}" {
		t.Fatalf("prompt = %q, want template unchanged", prompt)
	}
}
