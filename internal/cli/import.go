package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/hurttlocker/recall/internal/store"
	"github.com/hurttlocker/recall/internal/vector"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var importSource string

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import a text or markdown file as memory chunks",
	Long: "Splits the file into paragraph-sized chunks with line ranges and stores\n" +
		"them. Re-importing is idempotent: unchanged chunks are skipped by hash.",
	Args: cobra.ExactArgs(1),
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

		path := args[0]
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}

		source := importSource
		if source == "" {
			source = "import"
		}

		chunks := splitChunks(string(data), path, source)
		if len(chunks) == 0 {
			fmt.Println("Nothing to import")
			return nil
		}

		ctx := cmdContext()
		ids, err := st.AddChunkBatch(ctx, chunks)
		if err != nil {
			return fmt.Errorf("importing chunks: %w", err)
		}

		if emb := newEmbedder(opts, log); emb != nil {
			if err := vector.IndexChunks(ctx, st, emb, chunks); err != nil {
				log.Warn("embedding imported chunks failed", zap.Error(err))
			}
		}

		fmt.Printf("Imported %d chunk(s) from %s\n", len(ids), path)
		return nil
	},
}

// splitChunks breaks file content into paragraph chunks (blank-line
// separated), each carrying its 1-based line range.
func splitChunks(content, path, source string) []*store.Chunk {
	lines := strings.Split(content, "\n")
	var chunks []*store.Chunk

	start := -1
	var buf []string
	flush := func(end int) {
		if start == -1 {
			return
		}
		text := strings.TrimSpace(strings.Join(buf, "\n"))
		if text != "" {
			chunks = append(chunks, &store.Chunk{
				Text:   text,
				Source: source,
				Path:   path,
				Lines:  fmt.Sprintf("%d-%d", start+1, end),
			})
		}
		start = -1
		buf = buf[:0]
	}

	for i, line := range lines {
		if strings.TrimSpace(line) == "" {
			flush(i)
			continue
		}
		if start == -1 {
			start = i
		}
		buf = append(buf, line)
	}
	flush(len(lines))

	return chunks
}

func init() {
	importCmd.Flags().StringVar(&importSource, "source", "", "Origin label (default: 'import')")
	RootCmd.AddCommand(importCmd)
}
