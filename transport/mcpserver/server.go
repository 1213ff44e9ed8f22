// Package mcpserver exposes retrieval as a Model Context Protocol tool.
package mcpserver

import (
	"context"
	"errors"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/poiesic/groundwork/core"
	"github.com/poiesic/groundwork/retrieval"
)

const (
	// Version is the MCP server version.
	Version = "0.1.0"

	// ToolName is the name of the retrieval tool.
	ToolName = "get_resources_information"

	toolDescription = `Retrieve content from the resources the user selected. Call this tool with the user's question and the selected resource IDs before answering.

For comprehensive requests (complete information, summaries, general descriptions) it returns all content of the selected resources.

For specific questions it returns the most relevant chunks by semantic similarity.`
)

// ErrServiceRequired is returned when no retrieval service is provided.
var ErrServiceRequired = errors.New("retrieval service required")

// Service answers retrieval requests.
type Service interface {
	RetrieveResponse(ctx context.Context, question string, resources []core.Resource) (*retrieval.Response, error)
}

// ToolInput is the input schema of the retrieval tool.
type ToolInput struct {
	Question  string          `json:"question" jsonschema:"the user's question"`
	Resources []ResourceInput `json:"resources" jsonschema:"the resources selected and provided by the user"`
}

// ResourceInput identifies one selected resource.
type ResourceInput struct {
	ID   string `json:"id" jsonschema:"the resource ID"`
	Name string `json:"name" jsonschema:"the resource display name"`
}

// Server serves the retrieval tool.
type Server struct {
	service Service
	server  *mcp.Server
	logger  *slog.Logger
}

// NewServer creates a server that answers tool calls with service.
func NewServer(service Service, logger *slog.Logger) (*Server, error) {
	if service == nil {
		return nil, ErrServiceRequired
	}
	if logger == nil {
		logger = slog.Default()
	}

	impl := &mcp.Implementation{
		Name:    "groundwork",
		Version: Version,
	}
	s := &Server{
		service: service,
		server:  mcp.NewServer(impl, nil),
		logger:  logger.With("component", "mcp-server"),
	}

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        ToolName,
		Description: toolDescription,
	}, s.handleRetrieve)
	return s, nil
}

// Run serves over stdio until ctx is cancelled or the client disconnects.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// handleRetrieve answers with the response envelope. Failures are reported
// inside the envelope rather than as protocol errors so the caller always
// receives the same shape.
func (s *Server) handleRetrieve(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ToolInput,
) (*mcp.CallToolResult, retrieval.Response, error) {
	resources := make([]core.Resource, len(input.Resources))
	for i, r := range input.Resources {
		resources[i] = core.Resource{ID: core.ResourceID(r.ID), Name: r.Name}
	}

	resp, err := s.service.RetrieveResponse(ctx, input.Question, resources)
	if err != nil {
		s.logger.Error("error in retrieval tool", "err", err)
		if resp == nil {
			resp = retrieval.ErrorResponse(input.Question, resources, err)
		}
	}
	return nil, *resp, nil
}
