package cli

import (
	"fmt"

	"github.com/hurttlocker/recall/internal/store"
	"github.com/hurttlocker/recall/internal/utility"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show store and utility statistics",
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

		stats, err := st.Stats(cmdContext())
		if err != nil {
			return fmt.Errorf("reading stats: %w", err)
		}

		tracker := utility.NewTracker(opts.UtilityPath, log)
		if err := tracker.Load(); err != nil {
			log.Warn("loading utility state failed", zap.Error(err))
		}
		records := tracker.Snapshot()

		fmt.Printf("Chunks:          %d\n", stats.ChunkCount)
		fmt.Printf("Embeddings:      %d\n", stats.EmbeddingCount)
		fmt.Printf("Utility records: %d\n", len(records))
		fmt.Printf("DB size:         %d bytes\n", stats.DBSizeBytes)
		return nil
	},
}

func init() {
	RootCmd.AddCommand(statsCmd)
}
