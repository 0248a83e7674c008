package api

import (
	"errors"
	"log/slog"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/papercomputeco/insurag/pkg/rag"
	"github.com/papercomputeco/insurag/pkg/records"
)

// Server is the API server for querying and maintaining insurance records.
type Server struct {
	config  Config
	router  *rag.Router
	records *records.Service
	logger  *slog.Logger
	app     *fiber.App
}

// ErrorResponse is the body of every non-query error.
type ErrorResponse struct {
	Error string `json:"error"`
}

// NewServer creates a new API server.
// The router and records service are injected so the MCP server and the
// CLI can share them.
func NewServer(config Config, router *rag.Router, recs *records.Service, logger *slog.Logger) (*Server, error) {
	if router == nil {
		return nil, errors.New("query router is required")
	}
	if recs == nil {
		return nil, errors.New("records service is required")
	}
	if logger == nil {
		return nil, errors.New("logger is required")
	}

	if config.QueryTimeout <= 0 {
		config.QueryTimeout = DefaultQueryTimeout
	}

	// Immutable copies params and bodies out of fasthttp's reused buffers;
	// collection names outlive the request as store keys.
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		Immutable:             true,
	})

	s := &Server{
		config:  config,
		router:  router,
		records: recs,
		logger:  logger,
		app:     app,
	}

	app.Use(recover.New())
	app.Use(s.logRequests)

	app.Get("/ping", s.handlePing)
	app.Get("/health", s.handleHealth)

	v1 := app.Group("/v1")
	for _, op := range rag.Operations {
		v1.Post("/"+op.Name, s.handleQuery(op.Scope))
	}

	v1.Post("/entities/:collection", s.handleCreateEntity)
	v1.Get("/entities/:collection", s.handleListEntities)
	v1.Get("/entities/:collection/:id", s.handleGetEntity)
	v1.Put("/entities/:collection/:id", s.handleUpdateEntity)
	v1.Delete("/entities/:collection/:id", s.handleDeleteEntity)
	v1.Post("/entities/:collection/:id/reindex", s.handleReindexEntity)

	v1.Get("/index/status", s.handleIndexStatus)
	v1.Post("/index/sweep", s.handleIndexSweep)

	if config.MCP != nil {
		app.All("/mcp", adaptor.HTTPHandler(otelhttp.NewHandler(config.MCP, "insurag-mcp")))
	}

	return s, nil
}

// Run starts the API server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting API server",
		"listen", s.config.ListenAddr,
		"mcp", s.config.MCP != nil,
	)
	return s.app.Listen(s.config.ListenAddr)
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
