// Package cli implements the recall command tree.
package cli

import (
	"fmt"

	"github.com/hurttlocker/recall/internal/config"
	"github.com/hurttlocker/recall/internal/embed"
	"github.com/hurttlocker/recall/internal/engine"
	"github.com/hurttlocker/recall/internal/store"
	"github.com/hurttlocker/recall/internal/vector"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	configPath string
	dbPath     string
	debugFlag  bool
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "recall",
	Short: "Multi-signal relevance ranking for agent memory",
	Long: "recall ranks short text memory chunks against a query by fusing vector\n" +
		"similarity, BM25 keyword matching, recency and entity overlap, and injects\n" +
		"the survivors into prompts via MCP.",
	SilenceUsage: true,
}

func init() {
	RootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: ~/.recall/config.yaml)")
	RootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Database path (overrides config)")
	RootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "Enable debug logging")
}

// newLogger builds a zap logger writing to stderr. Stdout stays clean
// for command output and the MCP stdio transport.
func newLogger() *zap.Logger {
	level := zapcore.InfoLevel
	if debugFlag {
		level = zapcore.DebugLevel
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	log, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return log
}

// loadOptions resolves configuration and applies CLI overrides.
func loadOptions(log *zap.Logger) (config.Options, error) {
	opts, warnings, err := config.Load(configPath)
	if err != nil {
		return opts, err
	}
	for _, w := range warnings {
		log.Warn(w)
	}
	if dbPath != "" {
		opts.DBPath = dbPath
	}
	return opts, nil
}

// newEmbedder builds the embedding client from the configured provider.
// Returns nil when no provider is set or the client cannot be built;
// callers then run keyword-only.
func newEmbedder(opts config.Options, log *zap.Logger) embed.Embedder {
	if opts.EmbedProvider == "" {
		return nil
	}
	embedCfg, err := embed.NewConfig(opts.EmbedProvider)
	if err != nil {
		log.Warn("embedding provider disabled", zap.Error(err))
		return nil
	}
	client, err := embed.NewClient(embedCfg)
	if err != nil {
		log.Warn("embedding provider disabled", zap.Error(err))
		return nil
	}
	return client
}

// buildEngine wires store, embedder, vector searcher and engine from
// resolved options and rebuilds the keyword index.
func buildEngine(opts config.Options, log *zap.Logger) (*engine.Engine, store.Store, embed.Embedder, error) {
	st, err := store.NewStore(store.StoreConfig{DBPath: opts.DBPath})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("opening store: %w", err)
	}

	embedder := newEmbedder(opts, log)
	var searcher vector.Searcher
	if embedder != nil {
		searcher = vector.NewLocal(st, embedder, log)
	}

	eng := engine.New(opts, st, searcher, log)
	if err := eng.Rebuild(cmdContext()); err != nil {
		st.Close()
		return nil, nil, nil, fmt.Errorf("rebuilding keyword index: %w", err)
	}
	return eng, st, embedder, nil
}
