package engine

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"metafields-backend/internal/catalog"
)

// Handler exposes the manual bulk-apply trigger on the admin API.
type Handler struct {
	engine      *Engine
	clientFor   ClientFunc
	defaultShop string
}

func NewHandler(eng *Engine, clientFor ClientFunc, defaultShop string) *Handler {
	return &Handler{engine: eng, clientFor: clientFor, defaultShop: defaultShop}
}

func RegisterRoutes(app *fiber.App, h *Handler, middleware ...fiber.Handler) {
	grp := app.Group("/api/rules", middleware...)

	grp.Post("/apply", h.ApplyAll)
}

// ApplyAll runs every rule against the catalog for the requested shop. The
// response is sent only after every matching pair has been attempted and
// logged; partial failures are visible in the audit log, not here.
func (h *Handler) ApplyAll(c *fiber.Ctx) error {
	shop := c.Query("shop", h.defaultShop)
	if shop == "" {
		return NewAppError("INVALID_PAYLOAD", 400, "shop query parameter is required")
	}

	cat, err := h.clientFor(c.Context(), shop)
	if errors.Is(err, catalog.ErrUnauthenticated) {
		return UnauthorizedError("No valid session for shop " + shop)
	}
	if err != nil {
		return err
	}

	if err := h.engine.ApplyRulesToAllProducts(c.Context(), cat); err != nil {
		return NewAppError("RUN_FAILED", 502, err.Error())
	}
	return c.JSON(fiber.Map{"status": "completed", "shop": shop})
}
