// Package mcp provides a Model Context Protocol server for recall.
//
// It exposes the retrieval pipeline as MCP tools: memory recall (the
// context-injection entry point), the response-side feedback hook, chunk
// import, and store statistics. Supports stdio transport.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/hurttlocker/recall/internal/embed"
	"github.com/hurttlocker/recall/internal/engine"
	"github.com/hurttlocker/recall/internal/store"
	"github.com/hurttlocker/recall/internal/vector"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// ServerConfig holds configuration for the MCP server.
type ServerConfig struct {
	Engine *engine.Engine
	Store  store.Store
	// Embedder is optional; when nil, added chunks rank on the keyword
	// signal only.
	Embedder embed.Embedder
	Version  string
}

// storeMu serializes tool calls that write to the store. The mcp-go
// library dispatches handlers concurrently via goroutines, and SQLite
// supports only one writer at a time.
var storeMu sync.Mutex

// NewServer creates a configured MCP server with all recall tools.
func NewServer(cfg ServerConfig) *server.MCPServer {
	ver := cfg.Version
	if ver == "" {
		ver = "dev"
	}

	s := server.NewMCPServer(
		"recall",
		ver,
		server.WithToolCapabilities(false),
	)

	registerRecallTool(s, cfg.Engine)
	registerResponseTool(s, cfg.Engine)
	registerAddTool(s, cfg.Engine, cfg.Store, cfg.Embedder)
	registerStatsTool(s, cfg.Engine, cfg.Store)

	return s
}

// ServeStdio runs the server over stdin/stdout until the client
// disconnects.
func ServeStdio(s *server.MCPServer) error {
	return server.ServeStdio(s)
}

func registerRecallTool(s *server.MCPServer, eng *engine.Engine) {
	tool := mcp.NewTool("memory_recall",
		mcp.WithDescription("Retrieve memories relevant to a query, ranked by fused vector, keyword, recency and entity signals. Returns a formatted context block, or nothing when no relevant content survives filtering."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("The user prompt or question to recall memories for"),
		),
		mcp.WithString("session_key",
			mcp.Description("Session identifier used to correlate a later response back to the injected chunks (generated when omitted)"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := req.RequireString("query")
		if err != nil {
			return mcp.NewToolResultError("query is required"), nil
		}

		sessionKey := ""
		if sk, err := req.RequireString("session_key"); err == nil && sk != "" {
			sessionKey = sk
		} else {
			sessionKey = uuid.NewString()
		}

		block, ok := eng.Recall(ctx, query, sessionKey)

		result := map[string]interface{}{
			"session_key": sessionKey,
			"injected":    ok,
			"context":     block,
		}
		data, _ := json.MarshalIndent(result, "", "  ")
		return mcp.NewToolResultText(string(data)), nil
	})
}

func registerResponseTool(s *server.MCPServer, eng *engine.Engine) {
	tool := mcp.NewTool("memory_record_response",
		mcp.WithDescription("Feed an agent response back for citation tracking. Chunks injected for the same session whose content the response references gain utility."),
		mcp.WithString("session_key",
			mcp.Required(),
			mcp.Description("The session identifier returned by memory_recall"),
		),
		mcp.WithString("response",
			mcp.Required(),
			mcp.Description("The agent's response text"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sessionKey, err := req.RequireString("session_key")
		if err != nil {
			return mcp.NewToolResultError("session_key is required"), nil
		}
		response, err := req.RequireString("response")
		if err != nil {
			return mcp.NewToolResultError("response is required"), nil
		}

		eng.RecordResponse(sessionKey, response)
		return mcp.NewToolResultText(`{"recorded": true}`), nil
	})
}

func registerAddTool(s *server.MCPServer, eng *engine.Engine, st store.Store, embedder embed.Embedder) {
	tool := mcp.NewTool("memory_add",
		mcp.WithDescription("Store a new memory chunk and make it searchable immediately."),
		mcp.WithString("text",
			mcp.Required(),
			mcp.Description("The memory content"),
		),
		mcp.WithString("source",
			mcp.Description("Origin label, e.g. 'conversation' or a connector name"),
		),
		mcp.WithString("path",
			mcp.Description("Document path locating the chunk (dates in YYYY-MM-DD form enable recency ranking)"),
		),
		mcp.WithString("lines",
			mcp.Description("Line range within the source document, e.g. '14-16'"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		storeMu.Lock()
		defer storeMu.Unlock()

		text, err := req.RequireString("text")
		if err != nil || strings.TrimSpace(text) == "" {
			return mcp.NewToolResultError("text is required"), nil
		}
		text = strings.ReplaceAll(text, "\x00", "")

		chunk := &store.Chunk{Text: text, Source: "mcp-add"}
		if v, err := req.RequireString("source"); err == nil && v != "" {
			chunk.Source = v
		}
		if v, err := req.RequireString("path"); err == nil {
			chunk.Path = v
		}
		if v, err := req.RequireString("lines"); err == nil {
			chunk.Lines = v
		}

		id, err := st.AddChunk(ctx, chunk)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("add error: %v", err)), nil
		}
		eng.AddDocument(chunk.Text, chunk.Source, chunk.Path, chunk.Lines)

		// Best effort: the chunk is stored and keyword-indexed even if
		// embedding fails.
		embedded := false
		if embedder != nil {
			if err := vector.IndexChunks(ctx, st, embedder, []*store.Chunk{chunk}); err == nil {
				embedded = true
			}
		}

		result := map[string]interface{}{
			"id":       id,
			"embedded": embedded,
			"message":  "Stored 1 memory chunk",
		}
		data, _ := json.MarshalIndent(result, "", "  ")
		return mcp.NewToolResultText(string(data)), nil
	})
}

func registerStatsTool(s *server.MCPServer, eng *engine.Engine, st store.Store) {
	tool := mcp.NewTool("memory_stats",
		mcp.WithDescription("Get recall statistics: stored chunks, embeddings, indexed documents, tracked utility records and database size."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		stats, err := st.Stats(ctx)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("stats error: %v", err)), nil
		}

		result := map[string]interface{}{
			"chunks":          stats.ChunkCount,
			"embeddings":      stats.EmbeddingCount,
			"indexed":         eng.IndexedChunks(),
			"utility_records": len(eng.Tracker().Snapshot()),
			"db_size_bytes":   stats.DBSizeBytes,
		}
		data, _ := json.MarshalIndent(result, "", "  ")
		return mcp.NewToolResultText(string(data)), nil
	})
}
