package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"
)

// HashChunk computes the content hash used for import deduplication.
// Text and path together identify a chunk; the same text at two paths is
// two chunks.
func HashChunk(text, path string) string {
	h := sha256.Sum256([]byte(text + "\x00" + path))
	return hex.EncodeToString(h[:])
}

// AddChunk inserts a new chunk, computing content_hash when unset.
// Inserting a chunk whose hash already exists returns the existing ID.
func (s *SQLiteStore) AddChunk(ctx context.Context, c *Chunk) (int64, error) {
	if c.Text == "" {
		return 0, fmt.Errorf("chunk text cannot be empty")
	}
	if c.ContentHash == "" {
		c.ContentHash = HashChunk(c.Text, c.Path)
	}

	if existing, err := s.FindByHash(ctx, c.ContentHash); err != nil {
		return 0, err
	} else if existing != nil {
		c.ID = existing.ID
		return existing.ID, nil
	}

	now := time.Now().UTC()
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO chunks (text, source, path, lines, content_hash, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		c.Text, c.Source, c.Path, c.Lines, c.ContentHash, now,
	)
	if err != nil {
		return 0, fmt.Errorf("inserting chunk: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("getting last insert id: %w", err)
	}

	c.ID = id
	c.CreatedAt = now
	return id, nil
}

// AddChunkBatch inserts multiple chunks in transactions of the configured
// batch size. Duplicate hashes within a batch are skipped; their returned
// IDs point at the existing rows.
func (s *SQLiteStore) AddChunkBatch(ctx context.Context, chunks []*Chunk) ([]int64, error) {
	ids := make([]int64, 0, len(chunks))

	for i := 0; i < len(chunks); i += s.batchSize {
		end := i + s.batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batchIDs, err := s.insertBatch(ctx, chunks[i:end])
		if err != nil {
			return ids, fmt.Errorf("batch insert %d-%d: %w", i, end, err)
		}
		ids = append(ids, batchIDs...)
	}
	return ids, nil
}

func (s *SQLiteStore) insertBatch(ctx context.Context, chunks []*Chunk) ([]int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR IGNORE INTO chunks (text, source, path, lines, content_hash, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return nil, fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	ids := make([]int64, 0, len(chunks))

	for _, c := range chunks {
		if c.ContentHash == "" {
			c.ContentHash = HashChunk(c.Text, c.Path)
		}
		result, err := stmt.ExecContext(ctx, c.Text, c.Source, c.Path, c.Lines, c.ContentHash, now)
		if err != nil {
			return nil, fmt.Errorf("inserting chunk in batch: %w", err)
		}
		id, err := result.LastInsertId()
		if err != nil {
			return nil, fmt.Errorf("getting last insert id: %w", err)
		}
		if affected, _ := result.RowsAffected(); affected == 0 {
			// Hash collision with an existing row: resolve its ID.
			if err := tx.QueryRowContext(ctx,
				"SELECT id FROM chunks WHERE content_hash = ?", c.ContentHash,
			).Scan(&id); err != nil {
				return nil, fmt.Errorf("resolving duplicate chunk: %w", err)
			}
		} else {
			c.CreatedAt = now
		}
		c.ID = id
		ids = append(ids, id)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing batch: %w", err)
	}
	return ids, nil
}

// ListChunks returns chunks ordered by insertion, with pagination.
// limit <= 0 means a default page of 1000.
func (s *SQLiteStore) ListChunks(ctx context.Context, limit, offset int) ([]*Chunk, error) {
	if limit <= 0 {
		limit = 1000
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, text, source, path, lines, content_hash, created_at
		 FROM chunks ORDER BY id LIMIT ? OFFSET ?`, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("listing chunks: %w", err)
	}
	defer rows.Close()

	var chunks []*Chunk
	for rows.Next() {
		c := &Chunk{}
		if err := rows.Scan(&c.ID, &c.Text, &c.Source, &c.Path, &c.Lines, &c.ContentHash, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning chunk row: %w", err)
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

// CountChunks returns the total number of stored chunks.
func (s *SQLiteStore) CountChunks(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM chunks").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting chunks: %w", err)
	}
	return n, nil
}

// DeleteChunk removes a chunk and (via cascade) its embedding.
func (s *SQLiteStore) DeleteChunk(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM chunks WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting chunk %d: %w", id, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("chunk %d not found", id)
	}
	return nil
}

// FindByHash looks up a chunk by content hash. Returns nil when absent.
func (s *SQLiteStore) FindByHash(ctx context.Context, hash string) (*Chunk, error) {
	c := &Chunk{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, text, source, path, lines, content_hash, created_at
		 FROM chunks WHERE content_hash = ?`, hash,
	).Scan(&c.ID, &c.Text, &c.Source, &c.Path, &c.Lines, &c.ContentHash, &c.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finding chunk by hash: %w", err)
	}
	return c, nil
}
