// Package mcp exposes the insurance RAG query operations as MCP (Model
// Context Protocol) tools.
package mcp

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/papercomputeco/insurag/pkg/rag"
	"github.com/papercomputeco/insurag/pkg/utils"
)

type Config struct {
	// Router answers the query tools.
	Router *rag.Router

	// Noop for empty MCP server
	Noop bool

	// Logger is the configured slog logger
	Logger *slog.Logger
}

type Server struct {
	config    Config
	mcpServer *mcp.Server
	handler   *mcp.StreamableHTTPHandler
}

// NewServer creates a new MCP server with one tool per query scope.
func NewServer(c Config) (*Server, error) {
	s := &Server{
		config: c,
	}

	mcpServer := mcp.NewServer(
		&mcp.Implementation{
			Name:    "insurag",
			Version: utils.Version,
		},
		&mcp.ServerOptions{},
	)

	if !c.Noop {
		if c.Router == nil {
			return nil, errors.New("query router is required")
		}
		if c.Logger == nil {
			return nil, errors.New("logger is required")
		}

		for _, t := range queryTools {
			mcp.AddTool(mcpServer, &mcp.Tool{
				Name:        t.name,
				Description: t.description,
			}, s.queryHandler(t.scope))
		}
	}

	s.mcpServer = mcpServer

	// Create a streamable HTTP net/http handler for stateless operations
	s.handler = mcp.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcp.Server {
			return mcpServer
		},
		&mcp.StreamableHTTPOptions{
			Stateless: true,
		},
	)

	return s, nil
}

// Handler returns the HTTP handler for the MCP server.
func (s *Server) Handler() http.Handler {
	return s.handler
}
