package rag

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"

	"github.com/papercomputeco/insurag/pkg/entity"
	"github.com/papercomputeco/insurag/pkg/logger"
)

// DefaultServiceName is reported by Health when none is configured.
const DefaultServiceName = "insurag"

// HealthCheck checks one dependency. A nil error means healthy.
type HealthCheck func(ctx context.Context) error

// RouterConfig wires a Router.
type RouterConfig struct {
	Answerer *Answerer

	// ServiceName is reported by Health.
	ServiceName string

	// Checks are run by Health, keyed by dependency name.
	Checks map[string]HealthCheck

	// HealthTimeout bounds each check. Defaults to 2s.
	HealthTimeout time.Duration

	Logger *slog.Logger
	Now    func() time.Time
}

// Router is the query surface: one entry point per scope plus a health
// check. Its methods never panic and never return errors; every failure
// is reported through the response envelope.
type Router struct {
	answerer      *Answerer
	service       string
	checks        map[string]HealthCheck
	healthTimeout time.Duration
	logger        *slog.Logger
	now           func() time.Time
}

// NewRouter creates a Router.
func NewRouter(cfg RouterConfig) (*Router, error) {
	if cfg.Answerer == nil {
		return nil, fmt.Errorf("router requires an answerer")
	}
	r := &Router{
		answerer:      cfg.Answerer,
		service:       cfg.ServiceName,
		checks:        cfg.Checks,
		healthTimeout: cfg.HealthTimeout,
		logger:        cfg.Logger,
		now:           cfg.Now,
	}
	if r.service == "" {
		r.service = DefaultServiceName
	}
	if r.healthTimeout <= 0 {
		r.healthTimeout = 2 * time.Second
	}
	if r.logger == nil {
		r.logger = logger.Nop()
	}
	if r.now == nil {
		r.now = time.Now
	}
	return r, nil
}

// AskQuestion answers over every collection.
func (r *Router) AskQuestion(ctx context.Context, req QueryRequest) QueryResponse {
	return r.Route(ctx, entity.ScopeGeneral, req)
}

// QueryCustomerRAG answers over customers only.
func (r *Router) QueryCustomerRAG(ctx context.Context, req QueryRequest) QueryResponse {
	return r.Route(ctx, entity.ScopeCustomers, req)
}

// QueryPoliciesRAG answers over policies only.
func (r *Router) QueryPoliciesRAG(ctx context.Context, req QueryRequest) QueryResponse {
	return r.Route(ctx, entity.ScopePolicies, req)
}

// QueryClaimsRAG answers over claims only.
func (r *Router) QueryClaimsRAG(ctx context.Context, req QueryRequest) QueryResponse {
	return r.Route(ctx, entity.ScopeClaims, req)
}

// QueryDocumentsRAG answers over documents only.
func (r *Router) QueryDocumentsRAG(ctx context.Context, req QueryRequest) QueryResponse {
	return r.Route(ctx, entity.ScopeDocuments, req)
}

// Route validates req and answers it within scope. An empty query is
// rejected before any embedding, search or generation call is made.
func (r *Router) Route(ctx context.Context, scope entity.Scope, req QueryRequest) (resp QueryResponse) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("query panicked",
				"scope", scope,
				"panic", rec,
				"stack", string(debug.Stack()),
			)
			resp = Failure(ErrInternal, fmt.Sprint(rec))
		}
	}()

	if _, err := entity.ParseScope(string(scope)); err != nil || scope == "" {
		return Failure(ErrInvalidScope, fmt.Sprintf("unknown scope %q", scope))
	}

	query := strings.TrimSpace(req.Query)
	if query == "" {
		return Failure(ErrQueryRequired, "query must be a non-empty string")
	}

	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		userID = DefaultUserID
	}

	r.logger.Debug("routing query", "scope", scope, "user_id", userID, "query_runes", len([]rune(query)))
	return r.answerer.Answer(ctx, query, scope, 0)
}

// Health reports service liveness. Every configured check must pass for
// the status to be healthy; failures are logged, not returned.
func (r *Router) Health(ctx context.Context) HealthStatus {
	status := StatusHealthy
	for name, check := range r.checks {
		if err := r.runCheck(ctx, check); err != nil {
			r.logger.Warn("health check failed", "check", name, "error", err)
			status = StatusUnhealthy
		}
	}
	return HealthStatus{
		Status:    status,
		Service:   r.service,
		Timestamp: r.now().UTC(),
	}
}

func (r *Router) runCheck(ctx context.Context, check HealthCheck) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("check panicked: %v", rec)
		}
	}()
	cctx, cancel := context.WithTimeout(ctx, r.healthTimeout)
	defer cancel()
	return check(cctx)
}
