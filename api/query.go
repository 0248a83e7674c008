package api

import (
	"context"
	"encoding/json"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/insurag/pkg/entity"
	"github.com/papercomputeco/insurag/pkg/rag"
)

// ErrInvalidBody is reported when a query body is not a JSON object.
const ErrInvalidBody = "invalid request body"

// handlePing returns a simple liveness response.
func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

// handleHealth runs the router's health checks. 503 when any fails.
func (s *Server) handleHealth(c *fiber.Ctx) error {
	status := s.router.Health(c.UserContext())
	if !status.Healthy() {
		return c.Status(fiber.StatusServiceUnavailable).JSON(status)
	}
	return c.JSON(status)
}

// handleQuery answers one question in scope. Every well-formed JSON body
// gets a 200 with a QueryResponse, success or not; only a body that is not
// a JSON object is a 400.
func (s *Server) handleQuery(scope entity.Scope) fiber.Handler {
	return func(c *fiber.Ctx) error {
		req, err := decodeQueryRequest(c.Body())
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(rag.Failure(ErrInvalidBody, err.Error()))
		}

		ctx, cancel := s.queryContext(c)
		defer cancel()
		return c.JSON(s.router.Route(ctx, scope, req))
	}
}

// queryContext derives the context of one query. fasthttp does not report
// client disconnects, so abandoned requests are bounded by QueryTimeout and
// cancelled when the server shuts down.
func (s *Server) queryContext(c *fiber.Ctx) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(c.UserContext(), s.config.QueryTimeout)
	stop := context.AfterFunc(c.Context(), cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

// decodeQueryRequest reads query and userId from body. A field of the wrong
// type is treated as absent, so a non-string query fails validation like an
// empty one.
func decodeQueryRequest(body []byte) (rag.QueryRequest, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return rag.QueryRequest{}, err
	}

	req := rag.QueryRequest{}
	if v, ok := raw["query"]; ok {
		_ = json.Unmarshal(v, &req.Query)
	}
	if v, ok := raw["userId"]; ok {
		_ = json.Unmarshal(v, &req.UserID)
	}
	return req, nil
}
