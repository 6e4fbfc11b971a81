package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/recallkit/recallkit/internal/knowledge"
)

// Tool names exposed over MCP.
const (
	ToolIngestDocument  = "ingest_document"
	ToolSearchKnowledge = "search_knowledge"
)

// IngestInput is the input schema for the ingest_document tool.
type IngestInput struct {
	Document string            `json:"document" jsonschema:"The markdown document to ingest"`
	Source   map[string]string `json:"source,omitempty" jsonschema:"Optional source tags merged into every chunk's metadata (topic, category, priority, file)"`
}

// SearchInput is the input schema for the search_knowledge tool.
type SearchInput struct {
	Query  string            `json:"query" jsonschema:"Natural-language search query"`
	TopK   int               `json:"top_k,omitempty" jsonschema:"Maximum number of results, 1 to 10 (default 5)"`
	Filter map[string]string `json:"filter,omitempty" jsonschema:"Restrict results to chunks whose metadata contains every key/value pair"`
}

// registerKnowledgeTools registers ingest_document and search_knowledge.
func (s *Server) registerKnowledgeTools() error {
	ingestSchema, err := jsonschema.For[IngestInput](nil)
	if err != nil {
		return fmt.Errorf("schema for %s: %w", ToolIngestDocument, err)
	}

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name: ToolIngestDocument,
		Description: "Chunk a markdown document along its headings, embed the prose, and " +
			"store the chunks in the knowledge base. Fenced code blocks are kept out of " +
			"the embeddings and stored alongside their chunk.",
		InputSchema: ingestSchema,
	}, s.IngestDocument)

	searchSchema, err := jsonschema.For[SearchInput](nil)
	if err != nil {
		return fmt.Errorf("schema for %s: %w", ToolSearchKnowledge, err)
	}

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name: ToolSearchKnowledge,
		Description: "Search the knowledge base using semantic similarity. Returns the most " +
			"relevant chunks with their code examples restored into the text.",
		InputSchema: searchSchema,
	}, s.SearchKnowledge)

	return nil
}

// IngestDocument handles the ingest_document MCP tool call.
func (s *Server) IngestDocument(ctx context.Context, _ *mcp.CallToolRequest, input IngestInput) (*mcp.CallToolResult, any, error) {
	if strings.TrimSpace(input.Document) == "" {
		return errorResult("document must not be empty"), nil, nil
	}

	report, err := s.ingestor.Ingest(ctx, input.Document, input.Source)
	if err != nil {
		// Reserved keys are the agent's mistake to correct; anything else is
		// an infrastructure failure.
		if errors.Is(err, knowledge.ErrReservedMetadataKey) {
			return errorResult(err.Error()), nil, nil
		}
		return nil, nil, fmt.Errorf("ingest failed: %w", err)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Stored %d chunks", len(report.IDs))
	if len(report.Failures) > 0 {
		fmt.Fprintf(&sb, ", %d failed:\n", len(report.Failures))
		for _, f := range report.Failures {
			fmt.Fprintf(&sb, "- chunk %d: %v\n", f.ChunkIndex, f.Err)
		}
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: sb.String()}},
		// Nothing persisted means the agent should treat the call as failed.
		IsError: len(report.IDs) == 0 && len(report.Failures) > 0,
	}, nil, nil
}

// SearchKnowledge handles the search_knowledge MCP tool call.
func (s *Server) SearchKnowledge(ctx context.Context, _ *mcp.CallToolRequest, input SearchInput) (*mcp.CallToolResult, any, error) {
	if strings.TrimSpace(input.Query) == "" {
		return errorResult("query must not be empty"), nil, nil
	}

	opts := []knowledge.SearchOption{}
	if input.TopK > 0 {
		// Agents occasionally ask for hundreds of results; cap the fan-out.
		opts = append(opts, knowledge.WithTopK(min(input.TopK, 10)))
	}
	for key, value := range input.Filter {
		opts = append(opts, knowledge.WithFilter(key, value))
	}

	results, err := s.retriever.Search(ctx, input.Query, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("search failed: %w", err)
	}

	if len(results) == 0 {
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: "No matching knowledge found."}},
		}, nil, nil
	}

	var sb strings.Builder
	for i, res := range results {
		if i > 0 {
			sb.WriteString("\n---\n\n")
		}
		fmt.Fprintf(&sb, "[%d] %s (similarity %.3f)\n\n", i+1, res.SectionTitle, res.Similarity)
		sb.WriteString(res.Render())
		sb.WriteString("\n")
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: sb.String()}},
	}, nil, nil
}

// errorResult builds an agent-facing error result.
func errorResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: "Error: " + msg}},
		IsError: true,
	}
}
