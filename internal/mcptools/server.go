package mcptools

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/qvidal/aor/internal/answer"
	"github.com/qvidal/aor/internal/questionnaire"
	"github.com/qvidal/aor/internal/storage"
)

// QueryEmbedder embeds a single query string.
type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Store is the vector store surface the tools need: similarity search plus
// the manifest bookkeeping behind index_status.
type Store interface {
	storage.VectorIndex
	Manifests(ctx context.Context) ([]storage.Manifest, error)
	Count(ctx context.Context) (uint64, error)
}

// Generator produces a structured answer for a question and its context.
type Generator interface {
	Generate(ctx context.Context, question questionnaire.Question, contextChunks []storage.ScoredChunk) (answer.Answer, error)
}

// Server wraps the MCP server with dependencies.
type Server struct {
	server *mcp.Server
	store  Store
}

// Config holds server dependencies and retrieval defaults.
type Config struct {
	Store     Store
	Embedder  QueryEmbedder
	Generator Generator
	// TopK and MinScore are the defaults applied when a tool call leaves
	// them unset; they mirror the batch pipeline's retrieval settings.
	TopK     int
	MinScore float64
}

// NewServer creates a configured MCP server with tools registered.
func NewServer(cfg *Config) *Server {
	impl := &mcp.Implementation{
		Name:    "aor-server",
		Version: "v0.1.0",
	}

	server := mcp.NewServer(impl, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "search_knowledge",
		Description: "Search the indexed tender knowledge base semantically. Returns ranked text chunks with similarity scores and source paths.",
	}, makeSearchHandler(cfg))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "answer_question",
		Description: "Answer a tender questionnaire question from the knowledge base. Returns a structured answer with confidence and cited chunk ids.",
	}, makeAnswerHandler(cfg))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "index_status",
		Description: "Get the current state of the knowledge index: document and chunk counts, last indexing time, and indexed source paths.",
	}, makeStatusHandler(cfg))

	return &Server{
		server: server,
		store:  cfg.Store,
	}
}

// Run starts the server with stdio transport (blocks until client disconnects).
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// MCPServer returns the underlying MCP server instance.
// Used by transport handlers that need to wrap the server.
func (s *Server) MCPServer() *mcp.Server {
	return s.server
}
