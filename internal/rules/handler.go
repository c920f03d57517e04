package rules

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"metafields-backend/internal/store"
)

// Handler serves the rule CRUD endpoints of the admin API.
type Handler struct {
	repo *Repo
}

func NewHandler(repo *Repo) *Handler {
	return &Handler{repo: repo}
}

func RegisterRoutes(app *fiber.App, h *Handler, middleware ...fiber.Handler) {
	grp := app.Group("/api/rules", middleware...)

	grp.Get("/", h.List)
	grp.Post("/", h.Create)
	grp.Put("/:id", h.Update)
	grp.Delete("/:id", h.Delete)
}

func (h *Handler) List(c *fiber.Ctx) error {
	list, err := h.repo.List(c.Context())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": list})
}

func (h *Handler) Create(c *fiber.Ctx) error {
	var rule MetafieldRule
	if err := c.BodyParser(&rule); err != nil {
		return invalidPayload(c, "Invalid JSON body")
	}
	if err := validateRule(&rule); err != nil {
		return c.Status(422).JSON(fiber.Map{"error": fiber.Map{"code": "VALIDATION_FAILED", "message": err.Error()}})
	}

	created, err := h.repo.Create(c.Context(), &rule)
	if err != nil {
		return err
	}
	return c.Status(201).JSON(fiber.Map{"data": created})
}

func (h *Handler) Update(c *fiber.Ctx) error {
	id, ok := parseID(c)
	if !ok {
		return invalidPayload(c, "Rule id must be an integer")
	}

	var rule MetafieldRule
	if err := c.BodyParser(&rule); err != nil {
		return invalidPayload(c, "Invalid JSON body")
	}
	if err := validateRule(&rule); err != nil {
		return c.Status(422).JSON(fiber.Map{"error": fiber.Map{"code": "VALIDATION_FAILED", "message": err.Error()}})
	}

	updated, err := h.repo.Update(c.Context(), id, &rule)
	if errors.Is(err, store.ErrNotFound) {
		return notFound(c)
	}
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": updated})
}

func (h *Handler) Delete(c *fiber.Ctx) error {
	id, ok := parseID(c)
	if !ok {
		return invalidPayload(c, "Rule id must be an integer")
	}

	err := h.repo.Delete(c.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		return notFound(c)
	}
	if err != nil {
		return err
	}
	return c.SendStatus(204)
}

func parseID(c *fiber.Ctx) (int64, bool) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	return id, err == nil
}

func invalidPayload(c *fiber.Ctx, msg string) error {
	return c.Status(400).JSON(fiber.Map{"error": fiber.Map{"code": "INVALID_PAYLOAD", "message": msg}})
}

func notFound(c *fiber.Ctx) error {
	return c.Status(404).JSON(fiber.Map{"error": fiber.Map{"code": "NOT_FOUND", "message": "Rule not found: " + c.Params("id")}})
}

func validateRule(rule *MetafieldRule) error {
	switch {
	case rule.CollectionTitle == "":
		return errors.New("collectionTitle is required")
	case rule.Namespace == "":
		return errors.New("namespace is required")
	case rule.Key == "":
		return errors.New("key is required")
	case rule.Type == "":
		return errors.New("type is required")
	case rule.Value == "":
		return errors.New("value is required")
	}
	return nil
}
