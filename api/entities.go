package api

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/insurag/pkg/entity"
	"github.com/papercomputeco/insurag/pkg/storage"
)

const filterPrefix = "filter."

// handleCreateEntity stores a new record. An "id" in the body is used as the
// record id; without one an id is assigned.
func (s *Server) handleCreateEntity(c *fiber.Ctx) error {
	attrs, err := decodeAttributes(c.Body())
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: ErrInvalidBody})
	}

	id, _ := attrs[entity.KeyID].(string)
	e, err := s.records.Create(c.UserContext(), entity.Collection(c.Params("collection")), id, attrs)
	if err != nil {
		return s.writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(e)
}

// handleListEntities lists a collection. Query parameters:
//   - limit, offset: pagination
//   - indexed: "true" or "false" to filter on vectorIndexed
//   - filter.<path>=<value>: attribute equality, e.g. filter.address.city=Lusaka
func (s *Server) handleListEntities(c *fiber.Ctx) error {
	opts, err := listOptions(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: err.Error()})
	}

	list, err := s.records.List(c.UserContext(), entity.Collection(c.Params("collection")), opts)
	if err != nil {
		return s.writeError(c, err)
	}
	if list == nil {
		list = []*entity.Entity{}
	}
	return c.JSON(map[string]any{
		"count":    len(list),
		"entities": list,
	})
}

// handleGetEntity returns one record with its index status.
func (s *Server) handleGetEntity(c *fiber.Ctx) error {
	e, err := s.records.Get(c.UserContext(), entity.Collection(c.Params("collection")), c.Params("id"))
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(e)
}

// handleUpdateEntity merges the body into a record.
func (s *Server) handleUpdateEntity(c *fiber.Ctx) error {
	attrs, err := decodeAttributes(c.Body())
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: ErrInvalidBody})
	}

	e, err := s.records.Update(c.UserContext(), entity.Collection(c.Params("collection")), c.Params("id"), attrs)
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(e)
}

// handleDeleteEntity removes a record and its vector.
func (s *Server) handleDeleteEntity(c *fiber.Ctx) error {
	if err := s.records.Delete(c.UserContext(), entity.Collection(c.Params("collection")), c.Params("id")); err != nil {
		return s.writeError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// handleReindexEntity indexes one record now and reports the outcome.
func (s *Server) handleReindexEntity(c *fiber.Ctx) error {
	res, err := s.records.Reindex(c.UserContext(), entity.Collection(c.Params("collection")), c.Params("id"))
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(res)
}

// writeError maps record errors onto HTTP statuses.
func (s *Server) writeError(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	switch {
	case errors.Is(err, entity.ErrUnknownCollection):
		status = fiber.StatusBadRequest
	case storage.IsNotFound(err):
		status = fiber.StatusNotFound
	case errors.Is(err, storage.ErrAlreadyExists):
		status = fiber.StatusConflict
	}

	if status == fiber.StatusInternalServerError {
		s.logger.Error("request failed",
			"method", c.Method(),
			"path", c.Path(),
			"error", err,
		)
	}
	return c.Status(status).JSON(ErrorResponse{Error: err.Error()})
}

func decodeAttributes(body []byte) (map[string]any, error) {
	var attrs map[string]any
	if err := json.Unmarshal(body, &attrs); err != nil {
		return nil, err
	}
	if attrs == nil {
		return nil, errors.New("body must be a JSON object")
	}
	return attrs, nil
}

func listOptions(c *fiber.Ctx) (storage.ListOptions, error) {
	opts := storage.ListOptions{}

	for name, dst := range map[string]*int{"limit": &opts.Limit, "offset": &opts.Offset} {
		v := c.Query(name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return opts, errors.New(name + " must be a non-negative integer")
		}
		*dst = n
	}

	if v := c.Query("indexed"); v != "" {
		indexed, err := strconv.ParseBool(v)
		if err != nil {
			return opts, errors.New("indexed must be true or false")
		}
		opts.VectorIndexed = &indexed
	}

	for k, v := range c.Queries() {
		path, ok := strings.CutPrefix(k, filterPrefix)
		if !ok || path == "" {
			continue
		}
		if opts.Filter == nil {
			opts.Filter = make(map[string]string)
		}
		opts.Filter[path] = v
	}
	return opts, nil
}
