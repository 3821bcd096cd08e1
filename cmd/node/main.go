// Command node is the LLM oracle node: it ingests NewRequest events from a
// coordination contract, schedules a deterministic delay per request, runs
// the assigned platform/model through the local provider dispatcher, and
// submits the result back on-chain.
//
// Usage:
//
//	node <network>
//
// See internal/config for the network table and required environment
// variables.
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"

	"github.com/nulpointcorp/llm-oracle-node/internal/chain"
	"github.com/nulpointcorp/llm-oracle-node/internal/config"
	"github.com/nulpointcorp/llm-oracle-node/internal/ingest"
	"github.com/nulpointcorp/llm-oracle-node/internal/logger"
	"github.com/nulpointcorp/llm-oracle-node/internal/metrics"
	"github.com/nulpointcorp/llm-oracle-node/internal/nodeset"
	"github.com/nulpointcorp/llm-oracle-node/internal/pipeline"
	"github.com/nulpointcorp/llm-oracle-node/internal/providers"
	"github.com/nulpointcorp/llm-oracle-node/internal/providers/anthropic"
	"github.com/nulpointcorp/llm-oracle-node/internal/providers/gemini"
	"github.com/nulpointcorp/llm-oracle-node/internal/providers/openai"
	"github.com/nulpointcorp/llm-oracle-node/internal/providers/openaicompat"
	"github.com/nulpointcorp/llm-oracle-node/internal/providers/qwen"
	"github.com/nulpointcorp/llm-oracle-node/internal/store"
	"github.com/nulpointcorp/llm-oracle-node/internal/wallet"
)

// version is overridden at build time via -ldflags="-X main.version=x.y.z".
var version = "0.1.0"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	slogger := buildLogger(cfg.LogLevel)
	slog.SetDefault(slogger)

	if err := run(ctx, cfg, slogger); err != nil {
		slogger.Error("node stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, slogger *slog.Logger) error {
	key, self, err := wallet.LoadOrCreate(cfg.WalletPath())
	if err != nil {
		return fmt.Errorf("fatal init: wallet: %w", err)
	}
	slogger.Info("node: wallet loaded", "address", self.Hex())

	if !common.IsHexAddress(cfg.Network.Contract) {
		return fmt.Errorf("fatal init: malformed contract address %q", cfg.Network.Contract)
	}
	contractAddr := common.HexToAddress(cfg.Network.Contract)

	client, err := chain.Dial(ctx, cfg.Network.RPC, cfg.Network.WSS, contractAddr, key)
	if err != nil {
		return fmt.Errorf("fatal init: dial chain: %w", err)
	}

	st := store.New(cfg.StoreDir())
	reg := metrics.New(version)

	dispatcher := registerProviders(ctx, slogger, cfg.ProviderKeys)

	tracker := nodeset.New(client, self, slogger)
	if err := tracker.Refresh(ctx); err != nil {
		return fmt.Errorf("fatal init: initial node-set refresh: %w", err)
	}
	snap := tracker.Snapshot()
	reg.SetNodeSet(snap.MyIndex, snap.Count)

	taskLogger, err := logger.New(ctx, slogger)
	if err != nil {
		return fmt.Errorf("fatal init: task logger: %w", err)
	}
	defer taskLogger.Close()

	runner := pipeline.NewRunner(client, tracker, dispatcher, st, reg, slogger, self,
		pipeline.WithTaskLogger(taskLogger))

	cursorPath := ingest.CursorPath(cfg.CursorDir, strings.ToLower(contractAddr.Hex()))
	ingester := ingest.New(client, cursorPath, slogger, reg)

	g, ctx := errgroup.WithContext(ctx)

	metricsSrv := &http.Server{Addr: cfg.MetricsAddr, Handler: reg.Handler()}
	g.Go(func() error {
		slogger.Info("node: metrics listening", "addr", cfg.MetricsAddr)
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		return metricsSrv.Close()
	})

	g.Go(func() error {
		return ingester.Run(ctx)
	})

	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case ev, ok := <-ingester.Events():
				if !ok {
					return nil
				}
				reg.RecordIngestEvent(ev.Kind)
				dispatchEvent(ctx, slogger, runner, tracker, reg, ev)
			}
		}
	})

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

// dispatchEvent routes one decoded log to the pipeline (NewRequest) or the
// node-set tracker (NodeAdded/NodeRemoved); Processed and ResultSubmitted
// are informational only and are not acted on by this node.
func dispatchEvent(ctx context.Context, slogger *slog.Logger, runner *pipeline.Runner, tracker *nodeset.Tracker, reg *metrics.Registry, ev chain.DecodedEvent) {
	switch ev.Kind {
	case chain.KindNewRequest:
		go runner.Handle(ctx, ev.RequestID, ev.Redundancy)

	case chain.KindNodeAdded, chain.KindNodeRemoved:
		if err := tracker.Refresh(ctx); err != nil {
			slogger.Error("node: node-set refresh failed", "error", err)
			return
		}
		snap := tracker.Snapshot()
		reg.SetNodeSet(snap.MyIndex, snap.Count)
	}
}

// registerProviders constructs one adapter per platform with a configured
// API key and registers it on a fresh Dispatcher.
func registerProviders(ctx context.Context, slogger *slog.Logger, keys map[string]string) *providers.Dispatcher {
	d := providers.NewDispatcher(ctx)

	if key, ok := keys["openai"]; ok {
		d.Register("openai", openai.New(key))
	}
	if key, ok := keys["anthropic"]; ok {
		d.Register("anthropic", anthropic.New(key))
	}
	if key, ok := keys["gemini"]; ok {
		if p := gemini.New(ctx, key); p != nil {
			d.Register("gemini", p)
		} else {
			slogger.Error("node: gemini client construction failed, platform unavailable")
		}
	}
	if key, ok := keys["qwen"]; ok {
		d.Register("qwen", qwen.New(key))
	}

	for _, platform := range []string{"grok", "groq", "deepseek", "kimi", "zai", "zhipu", "perplexity"} {
		baseURL, envVar, maxTokens, known := providers.CompatEndpoint(platform)
		if !known {
			continue
		}
		key, ok := providers.LookupEnv(envVar)
		if !ok || key == "" {
			continue
		}
		d.Register(platform, openaicompat.New(platform, key, baseURL, openaicompat.WithMaxTokens(maxTokens)))
	}

	return d
}

// buildLogger constructs a JSON slog.Logger for the given level string.
// Unknown level strings default to INFO.
func buildLogger(level string) *slog.Logger {
	var l slog.Level
	switch level {
	case "debug":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}

	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:     l,
		AddSource: l == slog.LevelDebug, // include file:line only in debug mode
	}))
}
