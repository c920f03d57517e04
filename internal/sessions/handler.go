package sessions

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"metafields-backend/internal/store"
)

// Handler serves the session admin endpoints: a health probe for the stored
// shop session and a destructive reset for stuck auth states.
type Handler struct {
	repo        *Repo
	defaultShop string
}

func NewHandler(repo *Repo, defaultShop string) *Handler {
	return &Handler{repo: repo, defaultShop: defaultShop}
}

func RegisterRoutes(app *fiber.App, h *Handler, middleware ...fiber.Handler) {
	grp := app.Group("/api", middleware...)

	grp.Get("/check-auth", h.CheckAuth)
	grp.Post("/clear-sessions", h.ClearSessions)
}

func (h *Handler) CheckAuth(c *fiber.Ctx) error {
	shop := c.Query("shop", h.defaultShop)
	if shop == "" {
		return c.Status(400).JSON(fiber.Map{"error": fiber.Map{"code": "INVALID_PAYLOAD", "message": "shop query parameter is required"}})
	}

	sess, err := h.repo.Get(c.Context(), shop)
	if errors.Is(err, store.ErrNotFound) {
		return c.JSON(fiber.Map{"authenticated": false, "shop": shop})
	}
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"authenticated": sess.AccessToken != "",
		"shop":          sess.Shop,
		"scope":         sess.Scope,
	})
}

func (h *Handler) ClearSessions(c *fiber.Ctx) error {
	n, err := h.repo.ClearAll(c.Context())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"cleared": n})
}
