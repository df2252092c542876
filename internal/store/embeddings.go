package store

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
)

// AddEmbedding stores the embedding vector for a chunk, replacing any
// prior vector.
func (s *SQLiteStore) AddEmbedding(ctx context.Context, chunkID int64, vector []float32) error {
	if len(vector) == 0 {
		return fmt.Errorf("empty embedding vector")
	}
	blob := encodeVector(vector)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO embeddings (chunk_id, vector, dims) VALUES (?, ?, ?)
		 ON CONFLICT(chunk_id) DO UPDATE SET vector = excluded.vector, dims = excluded.dims`,
		chunkID, blob, len(vector),
	)
	if err != nil {
		return fmt.Errorf("storing embedding for chunk %d: %w", chunkID, err)
	}
	return nil
}

// AllEmbeddings loads every stored embedding, keyed by chunk ID. Used to
// build the in-memory vector searcher at startup.
func (s *SQLiteStore) AllEmbeddings(ctx context.Context) (map[int64][]float32, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT chunk_id, vector, dims FROM embeddings")
	if err != nil {
		return nil, fmt.Errorf("loading embeddings: %w", err)
	}
	defer rows.Close()

	out := make(map[int64][]float32)
	for rows.Next() {
		var id int64
		var blob []byte
		var dims int
		if err := rows.Scan(&id, &blob, &dims); err != nil {
			return nil, fmt.Errorf("scanning embedding row: %w", err)
		}
		vec, err := decodeVector(blob, dims)
		if err != nil {
			return nil, fmt.Errorf("decoding embedding for chunk %d: %w", id, err)
		}
		out[id] = vec
	}
	return out, rows.Err()
}

// encodeVector packs a float32 slice as little-endian bytes.
func encodeVector(vector []float32) []byte {
	blob := make([]byte, 4*len(vector))
	for i, v := range vector {
		binary.LittleEndian.PutUint32(blob[i*4:], math.Float32bits(v))
	}
	return blob
}

func decodeVector(blob []byte, dims int) ([]float32, error) {
	if len(blob) != 4*dims {
		return nil, fmt.Errorf("vector blob is %d bytes, want %d for %d dims", len(blob), 4*dims, dims)
	}
	vec := make([]float32, dims)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
	}
	return vec, nil
}
