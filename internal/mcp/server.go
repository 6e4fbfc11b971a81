package mcp

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/recallkit/recallkit/internal/knowledge"
)

// ingestor is the slice of knowledge.Ingestor the server needs.
type ingestor interface {
	Ingest(ctx context.Context, document string, source map[string]string) (*knowledge.Report, error)
}

// retriever is the slice of knowledge.Retriever the server needs.
type retriever interface {
	Search(ctx context.Context, query string, opts ...knowledge.SearchOption) ([]knowledge.Result, error)
}

// Server wraps the MCP SDK server around the knowledge coordinators.
type Server struct {
	mcpServer *mcp.Server
	ingestor  ingestor
	retriever retriever
	logger    *slog.Logger
}

// Config holds MCP server configuration.
type Config struct {
	Name      string
	Version   string
	Ingestor  ingestor
	Retriever retriever
	Logger    *slog.Logger
}

// NewServer creates an MCP server with the knowledge tools registered.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("server name is required")
	}
	if cfg.Version == "" {
		return nil, fmt.Errorf("server version is required")
	}
	if cfg.Ingestor == nil {
		return nil, fmt.Errorf("ingestor is required")
	}
	if cfg.Retriever == nil {
		return nil, fmt.Errorf("retriever is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	s := &Server{
		mcpServer: mcp.NewServer(&mcp.Implementation{
			Name:    cfg.Name,
			Version: cfg.Version,
		}, nil),
		ingestor:  cfg.Ingestor,
		retriever: cfg.Retriever,
		logger:    cfg.Logger,
	}

	if err := s.registerKnowledgeTools(); err != nil {
		return nil, fmt.Errorf("registering knowledge tools: %w", err)
	}

	return s, nil
}

// Run starts the MCP server on the given transport. Blocking; returns when
// the transport closes or ctx is cancelled.
func (s *Server) Run(ctx context.Context, transport mcp.Transport) error {
	return s.mcpServer.Run(ctx, transport)
}
