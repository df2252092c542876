package cli

import (
	"fmt"

	"github.com/hurttlocker/recall/internal/store"
	"github.com/hurttlocker/recall/internal/vector"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	addSource string
	addPath   string
	addLines  string
)

var addCmd = &cobra.Command{
	Use:   "add <text>",
	Short: "Store a single memory chunk",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		log := newLogger()
		defer log.Sync()

		opts, err := loadOptions(log)
		if err != nil {
			return err
		}

		st, err := store.NewStore(store.StoreConfig{DBPath: opts.DBPath})
		if err != nil {
			return fmt.Errorf("opening store: %w", err)
		}
		defer st.Close()

		chunk := &store.Chunk{
			Text:   args[0],
			Source: addSource,
			Path:   addPath,
			Lines:  addLines,
		}
		ctx := cmdContext()
		id, err := st.AddChunk(ctx, chunk)
		if err != nil {
			return fmt.Errorf("storing chunk: %w", err)
		}

		// The chunk is stored either way; without an embedding it ranks
		// on the keyword signal only.
		if emb := newEmbedder(opts, log); emb != nil {
			if err := vector.IndexChunks(ctx, st, emb, []*store.Chunk{chunk}); err != nil {
				log.Warn("embedding chunk failed", zap.Error(err))
			}
		}

		fmt.Printf("Stored chunk %d\n", id)
		return nil
	},
}

func init() {
	addCmd.Flags().StringVar(&addSource, "source", "cli", "Origin label for the chunk")
	addCmd.Flags().StringVar(&addPath, "path", "", "Document path (YYYY-MM-DD in the path enables recency ranking)")
	addCmd.Flags().StringVar(&addLines, "lines", "", "Line range within the source document")
	RootCmd.AddCommand(addCmd)
}
