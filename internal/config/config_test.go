package config

import "testing"

func TestLoadMissingNetworkArg(t *testing.T) {
	_, err := Load(nil)
	if err == nil {
		t.Fatal("expected error for missing network argument")
	}
}

func TestLoadUnknownNetwork(t *testing.T) {
	_, err := Load([]string{"nonexistent-network"})
	if err == nil {
		t.Fatal("expected error for unknown network")
	}
}

func TestLoadLocalRequiresContractEnv(t *testing.T) {
	t.Setenv("LLM_SERVICE_CONTRACT", "")
	_, err := Load([]string{"local"})
	if err == nil {
		t.Fatal("expected error when LLM_SERVICE_CONTRACT is unset for local network")
	}
}

func TestLoadLocalResolvesContractFromEnv(t *testing.T) {
	t.Setenv("LLM_SERVICE_CONTRACT", "0x1234567890123456789012345678901234567890")

	cfg, err := Load([]string{"local"})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Network.Contract != "0x1234567890123456789012345678901234567890" {
		t.Fatalf("Network.Contract = %q", cfg.Network.Contract)
	}
}

func TestLoadKnownNetworkDoesNotRequireContractEnv(t *testing.T) {
	cfg, err := Load([]string{"sepolia"})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Network.RPC == "" {
		t.Fatal("expected a non-empty RPC endpoint for sepolia")
	}
}

func TestLoadDefaultsMetricsAddr(t *testing.T) {
	cfg, err := Load([]string{"sepolia"})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.MetricsAddr != ":9090" {
		t.Fatalf("MetricsAddr = %q, want :9090", cfg.MetricsAddr)
	}
}

func TestLoadMetricsAddrOverride(t *testing.T) {
	t.Setenv("METRICS_ADDR", ":9999")
	cfg, err := Load([]string{"sepolia"})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.MetricsAddr != ":9999" {
		t.Fatalf("MetricsAddr = %q, want :9999", cfg.MetricsAddr)
	}
}

func TestLoadInvalidLogLevel(t *testing.T) {
	t.Setenv("LOG_LEVEL", "verbose")
	_, err := Load([]string{"sepolia"})
	if err == nil {
		t.Fatal("expected error for invalid LOG_LEVEL")
	}
}

func TestLoadCollectsOnlyConfiguredProviderKeys(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("ANTHROPIC_API_KEY", "")

	cfg, err := Load([]string{"sepolia"})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ProviderKeys["openai"] != "sk-test" {
		t.Fatalf("ProviderKeys[openai] = %q", cfg.ProviderKeys["openai"])
	}
	if _, ok := cfg.ProviderKeys["anthropic"]; ok {
		t.Fatal("anthropic key should be absent when its env var is empty")
	}
}

func TestWalletPathAndStoreDir(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	cfg, err := Load([]string{"sepolia"})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.WalletPath() == "" {
		t.Fatal("WalletPath should not be empty")
	}
	if cfg.StoreDir() == "" {
		t.Fatal("StoreDir should not be empty")
	}
}
