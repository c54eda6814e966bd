package sheets

import (
	"errors"

	"sheetbridge/core/logger"
	"sheetbridge/core/remote"
	"sheetbridge/feature/sheets/batch"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Handler handles HTTP requests for the sheets feature.
type Handler struct {
	service *Service
}

// NewHandler creates a new HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers the sheets routes.
func (h *Handler) RegisterRoutes(app fiber.Router) {
	group := app.Group("/sheets")
	group.Post("/apply", h.HandleApply)
	group.Post("/:resource/diff", h.HandleDiff)
	group.Get("/:resource/journal", h.HandleJournal)
}

// HandleApply compiles and executes a list of mutation intents.
func (h *Handler) HandleApply(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)

	var req struct {
		Intents []batch.Intent `json:"intents"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}
	if len(req.Intents) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "no intents submitted",
		})
	}

	report, err := h.service.Apply(c.Context(), req.Intents)
	if err != nil {
		var ce *batch.CompileError
		if errors.As(err, &ce) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": ce.Error(),
			})
		}
		l.Error("Apply failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	if report.Failed > 0 {
		l.Warn("Apply completed with failures",
			zap.Int("succeeded", report.Succeeded),
			zap.Int("failed", report.Failed),
			zap.Int("skipped", report.Skipped))
	}
	return c.JSON(report)
}

// HandleDiff diffs a resource against its archived baseline and advances
// the baseline to the fresh snapshot.
func (h *Handler) HandleDiff(c *fiber.Ctx) error {
	resourceID := c.Params("resource")
	l := logger.WithRayID(h.service.logger, c)

	set, snap, err := h.service.Diff(c.Context(), resourceID)
	if err != nil {
		if remote.IsNotFound(err) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "resource not found",
			})
		}
		l.Error("Diff failed", zap.String("resource_id", resourceID), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"resource_id": resourceID,
		"taken_at":    snap.TakenAt,
		"unit_count":  len(snap.Units),
		"changes":     set,
	})
}

// HandleJournal returns the audit trail for one resource, newest first.
func (h *Handler) HandleJournal(c *fiber.Ctx) error {
	resourceID := c.Params("resource")
	limit := c.QueryInt("limit", 100)
	l := logger.WithRayID(h.service.logger, c)

	entries, err := h.service.History(c.Context(), resourceID, limit)
	if err != nil {
		l.Error("Journal query failed", zap.String("resource_id", resourceID), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"resource_id": resourceID,
		"entries":     entries,
	})
}
