// Package config loads the node's runtime configuration: the CLI-selected
// network, the content-store and cursor directories, and the per-platform
// API keys. Environment variables are read via viper, with an optional
// .env file loaded first for local development.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

// Network describes one entry in the fixed network table, per spec.md §6.
type Network struct {
	// RPC is the HTTP JSON-RPC endpoint.
	RPC string
	// WSS is the optional WebSocket endpoint used for live log subscription.
	// Empty leaves the node without a live phase: catch-up runs once, then
	// the log subscription fails and Ingester.Run returns that error.
	WSS string
	// Contract is the coordination contract address.
	Contract string
}

// Networks is the fixed network table. The local entry's Contract is
// resolved at Load time from LLM_SERVICE_CONTRACT, since a development
// contract address can't be compiled in.
var Networks = map[string]Network{
	"mainnet": {
		RPC: "https://eth-mainnet.public.blastapi.io",
		WSS: "wss://eth-mainnet.public.blastapi.io",
	},
	"sepolia": {
		RPC: "https://eth-sepolia.public.blastapi.io",
		WSS: "wss://eth-sepolia.public.blastapi.io",
	},
	"base": {
		RPC: "https://base.publicnode.com",
		WSS: "wss://base.publicnode.com",
	},
	"local": {
		RPC: "http://127.0.0.1:8545",
	},
}

// Config is the node's resolved runtime configuration.
type Config struct {
	// Network is the network table entry selected by the CLI argument.
	Network Network

	// ProgramDir is the directory the wallet key and content store live
	// under. Defaults to the executable's directory.
	ProgramDir string

	// CursorDir is where the event cursor file lives. Defaults to
	// ProgramDir; overridden by CONFIG_PATH.
	CursorDir string

	// LogLevel controls the minimum slog level. One of: debug, info, warn,
	// error. Default: info.
	LogLevel string

	// ProviderKeys maps platform name to its API key, populated only for
	// platforms with a non-empty environment variable.
	ProviderKeys map[string]string

	// MetricsAddr is the listen address for the Prometheus scrape
	// endpoint. Defaults to ":9090"; overridden by METRICS_ADDR. Ambient
	// observability carried regardless of spec.md's Non-goals, in the
	// teacher's idiom (internal/app/init.go's ManagementRoutes.Metrics).
	MetricsAddr string
}

// platformEnvVars lists the env vars spec.md §6 names, each required only
// when a request selects the corresponding platform.
var platformEnvVars = map[string]string{
	"openai":     "OPENAI_API_KEY",
	"anthropic":  "ANTHROPIC_API_KEY",
	"gemini":     "GEMINI_API_KEY",
	"grok":       "GROK_API_KEY",
	"groq":       "GROQ_API_KEY",
	"deepseek":   "DEEPSEEK_API_KEY",
	"qwen":       "QWEN_API_KEY",
	"kimi":       "MOONSHOT_API_KEY",
	"zai":        "ZAI_API_KEY",
	"perplexity": "PERPLEXITY_API_KEY",
}

// Load parses the CLI argument list (expected: [network]), resolves the
// network table entry, and reads environment variables (after an optional
// .env file). Exit code 1 per spec.md §6 is the caller's responsibility —
// Load returns an error instead of calling os.Exit so cmd/node can log
// first.
func Load(args []string) (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("METRICS_ADDR", ":9090")

	if len(args) < 1 || strings.TrimSpace(args[0]) == "" {
		return nil, errors.New("config: usage: <program> <network>")
	}
	networkName := args[0]

	network, ok := Networks[networkName]
	if !ok {
		return nil, fmt.Errorf("config: unknown network %q", networkName)
	}

	if networkName == "local" {
		contract := v.GetString("LLM_SERVICE_CONTRACT")
		if contract == "" {
			return nil, errors.New("config: LLM_SERVICE_CONTRACT is required for the local network")
		}
		network.Contract = contract
	}

	programDir, err := programDirectory()
	if err != nil {
		return nil, fmt.Errorf("config: resolve program directory: %w", err)
	}

	cursorDir := v.GetString("CONFIG_PATH")
	if cursorDir == "" {
		cursorDir = programDir
	}

	logLevel := strings.ToLower(v.GetString("LOG_LEVEL"))
	switch logLevel {
	case "debug", "info", "warn", "error":
	default:
		return nil, fmt.Errorf("config: invalid LOG_LEVEL %q; must be one of: debug, info, warn, error", logLevel)
	}

	keys := make(map[string]string)
	for platform, envVar := range platformEnvVars {
		if val := v.GetString(envVar); val != "" {
			keys[platform] = val
		}
	}

	return &Config{
		Network:      network,
		ProgramDir:   programDir,
		CursorDir:    cursorDir,
		LogLevel:     logLevel,
		ProviderKeys: keys,
		MetricsAddr:  v.GetString("METRICS_ADDR"),
	}, nil
}

// WalletPath returns the path spec.md §6 pins for the wallet key file.
func (c *Config) WalletPath() string {
	return filepath.Join(c.ProgramDir, "account-evm.data")
}

// StoreDir returns the path spec.md §6 pins for the content store.
func (c *Config) StoreDir() string {
	return filepath.Join(c.ProgramDir, "storage-data")
}

// programDirectory resolves the directory the running executable lives in.
func programDirectory() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", err
	}
	resolved, err := filepath.EvalSymlinks(exe)
	if err != nil {
		resolved = exe
	}
	return filepath.Dir(resolved), nil
}

// loadDotEnv populates process env vars from a .env file when present.
func loadDotEnv(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config: failed to stat %s: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("config: %s is a directory, expected a file", path)
	}
	if err := gotenv.Load(path); err != nil {
		return fmt.Errorf("config: failed to load %s: %w", path, err)
	}
	return nil
}
