// Package store provides the SQLite storage layer for recall.
//
// The store is the durable corpus of memory chunks plus their embedding
// vectors. The BM25 keyword index and the vector searcher are rebuilt
// from it on startup; neither is persisted itself.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// DefaultDBPath is the default database location.
const DefaultDBPath = "~/.recall/recall.db"

// DefaultBatchSize is the default batch size for bulk inserts.
const DefaultBatchSize = 500

// Chunk is a stored memory fragment. Path and Lines locate it in its
// source document; ContentHash deduplicates re-imports.
type Chunk struct {
	ID          int64
	Text        string
	Source      string
	Path        string
	Lines       string
	ContentHash string
	CreatedAt   time.Time
}

// StoreStats holds observability counts about the store.
type StoreStats struct {
	ChunkCount     int64
	EmbeddingCount int64
	DBSizeBytes    int64
}

// StoreConfig holds configuration for NewStore.
type StoreConfig struct {
	DBPath    string
	BatchSize int
}

// Store defines the chunk storage interface.
type Store interface {
	AddChunk(ctx context.Context, c *Chunk) (int64, error)
	AddChunkBatch(ctx context.Context, chunks []*Chunk) ([]int64, error)
	ListChunks(ctx context.Context, limit, offset int) ([]*Chunk, error)
	CountChunks(ctx context.Context) (int64, error)
	DeleteChunk(ctx context.Context, id int64) error
	FindByHash(ctx context.Context, hash string) (*Chunk, error)

	AddEmbedding(ctx context.Context, chunkID int64, vector []float32) error
	AllEmbeddings(ctx context.Context) (map[int64][]float32, error)

	Stats(ctx context.Context) (*StoreStats, error)
	Close() error
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db        *sql.DB
	dbPath    string
	batchSize int
}

// NewStore creates a new SQLite-backed Store. Pass ":memory:" for
// in-memory databases (testing).
func NewStore(cfg StoreConfig) (Store, error) {
	if cfg.DBPath == "" {
		cfg.DBPath = ExpandPath(DefaultDBPath)
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}

	if cfg.DBPath != ":memory:" {
		dir := filepath.Dir(cfg.DBPath)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting pragma %q: %w", p, err)
		}
	}

	s := &SQLiteStore{
		db:        db,
		dbPath:    cfg.DBPath,
		batchSize: cfg.BatchSize,
	}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Stats returns chunk, embedding and size counts.
func (s *SQLiteStore) Stats(ctx context.Context) (*StoreStats, error) {
	stats := &StoreStats{}

	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM chunks").Scan(&stats.ChunkCount); err != nil {
		return nil, fmt.Errorf("counting chunks: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM embeddings").Scan(&stats.EmbeddingCount); err != nil {
		return nil, fmt.Errorf("counting embeddings: %w", err)
	}
	if s.dbPath != ":memory:" {
		if fi, err := os.Stat(s.dbPath); err == nil {
			stats.DBSizeBytes = fi.Size()
		}
	}
	return stats, nil
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[1:])
	}
	return path
}
