package vector

import (
	"context"
	"fmt"

	"github.com/hurttlocker/recall/internal/embed"
	"github.com/hurttlocker/recall/internal/store"
)

// embedBatchSize bounds the number of texts sent per embedding request.
const embedBatchSize = 64

// IndexChunks generates and stores embedding vectors for chunks already
// inserted into the store (IDs must be set). A nil embedder is a no-op:
// the chunks then participate via the keyword signal only. Embeddings
// become visible to searchers constructed after this call.
func IndexChunks(ctx context.Context, st store.Store, embedder embed.Embedder, chunks []*store.Chunk) error {
	if embedder == nil || len(chunks) == 0 {
		return nil
	}

	for start := 0; start < len(chunks); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Text
		}
		vecs, err := embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return fmt.Errorf("embedding chunks %d-%d: %w", start, end, err)
		}
		if len(vecs) != len(batch) {
			return fmt.Errorf("expected %d embeddings, got %d", len(batch), len(vecs))
		}

		for i, c := range batch {
			if err := st.AddEmbedding(ctx, c.ID, vecs[i]); err != nil {
				return fmt.Errorf("storing embedding for chunk %d: %w", c.ID, err)
			}
		}
	}
	return nil
}
