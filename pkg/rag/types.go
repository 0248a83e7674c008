package rag

import (
	"encoding/json"
	"time"

	"github.com/papercomputeco/insurag/pkg/entity"
)

// Error values reported in QueryResponse.Error.
const (
	ErrQueryRequired      = "query required"
	ErrInvalidScope       = "invalid scope"
	ErrEmbeddingFailed    = "embedding failed"
	ErrVectorSearchFailed = "vector search failed"
	ErrGenerationFailed   = "generation failed"
	ErrInternal           = "internal error"
)

// DefaultUserID is recorded for requests that carry no user.
const DefaultUserID = "anonymous"

const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
)

// Operation names a query entrypoint and the scope it answers in.
type Operation struct {
	Name  string
	Scope entity.Scope
}

// Operations lists the query entrypoints in a stable order.
var Operations = []Operation{
	{Name: "askQuestion", Scope: entity.ScopeGeneral},
	{Name: "queryCustomerRAG", Scope: entity.ScopeCustomers},
	{Name: "queryPoliciesRAG", Scope: entity.ScopePolicies},
	{Name: "queryClaimsRAG", Scope: entity.ScopeClaims},
	{Name: "queryDocumentsRAG", Scope: entity.ScopeDocuments},
}

// OperationFor returns the entrypoint name answering in scope.
func OperationFor(scope entity.Scope) (string, bool) {
	for _, op := range Operations {
		if op.Scope == scope {
			return op.Name, true
		}
	}
	return "", false
}

// QueryRequest is one inbound question.
type QueryRequest struct {
	Query  string `json:"query"`
	UserID string `json:"userId,omitempty"`
}

// Source cites one retrieved entity the answer was conditioned on.
type Source struct {
	EntityID     string            `json:"entityId"`
	Collection   entity.Collection `json:"collection"`
	Similarity   float32           `json:"similarity"`
	RelevantInfo string            `json:"relevantInfo"`
}

// QueryResponse is the result of every query operation. Success is always
// set; Error is populated only on failure and Answer only on success.
type QueryResponse struct {
	Success bool
	Answer  string
	Error   string
	Details string
	Sources []Source

	// MatchCount is the number of neighbors that cleared the similarity
	// threshold. Nil when retrieval never ran.
	MatchCount *int

	// Grounded reports whether the answer was conditioned on retrieved records.
	Grounded bool

	// Scope selects the collection specific count key on the wire.
	Scope entity.Scope
}

// Failure builds a failed response.
func Failure(errMsg, details string) QueryResponse {
	return QueryResponse{Success: false, Error: errMsg, Details: details}
}

// MarshalJSON writes success always, matchCount plus the scope's count
// key (e.g. similarClaimsCount) when retrieval ran, and omits empty fields.
func (r QueryResponse) MarshalJSON() ([]byte, error) {
	out := map[string]any{"success": r.Success}
	if r.Success {
		out["answer"] = r.Answer
		out["grounded"] = r.Grounded
		sources := r.Sources
		if sources == nil {
			sources = []Source{}
		}
		out["sources"] = sources
	} else {
		out["error"] = r.Error
		if r.Details != "" {
			out["details"] = r.Details
		}
	}
	if r.MatchCount != nil {
		out["matchCount"] = *r.MatchCount
		if field := r.Scope.CountField(); field != "" {
			out[field] = *r.MatchCount
		}
	}
	return json.Marshal(out)
}

// UnmarshalJSON accepts the shape written by MarshalJSON.
func (r *QueryResponse) UnmarshalJSON(data []byte) error {
	var wire struct {
		Success    bool     `json:"success"`
		Answer     string   `json:"answer"`
		Error      string   `json:"error"`
		Details    string   `json:"details"`
		Grounded   bool     `json:"grounded"`
		Sources    []Source `json:"sources"`
		MatchCount *int     `json:"matchCount"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	*r = QueryResponse{
		Success:    wire.Success,
		Answer:     wire.Answer,
		Error:      wire.Error,
		Details:    wire.Details,
		Grounded:   wire.Grounded,
		Sources:    wire.Sources,
		MatchCount: wire.MatchCount,
		Scope:      entity.ScopeGeneral,
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for _, s := range []entity.Scope{entity.ScopeCustomers, entity.ScopePolicies, entity.ScopeClaims, entity.ScopeDocuments} {
		v, ok := raw[s.CountField()]
		if !ok {
			continue
		}
		r.Scope = s
		if r.MatchCount == nil {
			var n int
			if err := json.Unmarshal(v, &n); err != nil {
				return err
			}
			r.MatchCount = &n
		}
	}
	return nil
}

// CountField returns the key the match count is reported under for this
// response's scope.
func (r QueryResponse) CountField() string {
	if f := r.Scope.CountField(); f != "" {
		return f
	}
	return "matchCount"
}

// HealthStatus is the health check payload.
type HealthStatus struct {
	Status    string    `json:"status"`
	Service   string    `json:"service"`
	Timestamp time.Time `json:"timestamp"`
}

// Healthy reports whether Status is "healthy".
func (h HealthStatus) Healthy() bool {
	return h.Status == StatusHealthy
}
