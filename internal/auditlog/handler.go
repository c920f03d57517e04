package auditlog

import (
	"github.com/gofiber/fiber/v2"
)

const defaultLogLimit = 50

// Handler serves the log viewer endpoint of the admin API.
type Handler struct {
	repo *Repo
}

func NewHandler(repo *Repo) *Handler {
	return &Handler{repo: repo}
}

func RegisterRoutes(app *fiber.App, h *Handler, middleware ...fiber.Handler) {
	grp := app.Group("/api/logs", middleware...)

	grp.Get("/", h.ListRecent)
}

func (h *Handler) ListRecent(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", defaultLogLimit)
	if limit < 1 || limit > 500 {
		limit = defaultLogLimit
	}

	entries, err := h.repo.ListRecent(c.Context(), limit)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": entries})
}
