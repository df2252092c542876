package cli

import (
	"context"

	"github.com/hurttlocker/recall/internal/mcp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// Version is set at build time via -ldflags.
var Version = "0.1.0-dev"

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the MCP server over stdio",
	RunE: func(cmd *cobra.Command, args []string) error {
		log := newLogger()
		defer log.Sync()

		opts, err := loadOptions(log)
		if err != nil {
			return err
		}

		eng, st, embedder, err := buildEngine(opts, log)
		if err != nil {
			return err
		}
		defer st.Close()
		defer eng.Close()

		log.Info("recall MCP server starting",
			zap.String("db", opts.DBPath),
			zap.Int("indexed", eng.IndexedChunks()),
		)

		srv := mcp.NewServer(mcp.ServerConfig{
			Engine:   eng,
			Store:    st,
			Embedder: embedder,
			Version:  Version,
		})
		return mcp.ServeStdio(srv)
	},
}

func init() {
	RootCmd.AddCommand(serveCmd)
}

// cmdContext is the context used for CLI-scoped operations.
func cmdContext() context.Context {
	return context.Background()
}
