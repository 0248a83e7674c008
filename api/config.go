// Package api provides the HTTP API for asking questions of the insurance
// records and for managing the records and their index.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/papercomputeco/insurag/pkg/indexing"
)

// Sweeper re-enqueues records whose vectors are missing or stale.
// *indexing.Sweeper implements it.
type Sweeper interface {
	SweepOnce(ctx context.Context) (indexing.SweepReport, error)
}

// Config is the API server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8081")
	ListenAddr string

	// Sweeper backs POST /v1/index/sweep. Optional.
	Sweeper Sweeper

	// MCP, when set, is mounted at /mcp.
	MCP http.Handler

	// QueryTimeout bounds a whole query request. Defaults to
	// DefaultQueryTimeout.
	QueryTimeout time.Duration
}

// DefaultQueryTimeout covers the embed, search and generate stage budgets.
const DefaultQueryTimeout = 90 * time.Second
