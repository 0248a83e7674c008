package api

import (
	"github.com/gofiber/fiber/v2"
)

// handleIndexStatus reports indexed, pending and failed counts per collection.
func (s *Server) handleIndexStatus(c *fiber.Ctx) error {
	status, err := s.records.Status(c.UserContext())
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(status)
}

// handleIndexSweep runs one sweep of records needing an index.
func (s *Server) handleIndexSweep(c *fiber.Ctx) error {
	if s.config.Sweeper == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(ErrorResponse{
			Error: "index sweeper is not configured",
		})
	}

	report, err := s.config.Sweeper.SweepOnce(c.UserContext())
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(report)
}
