package engine

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"log"

	"github.com/gofiber/fiber/v2"
)

// ClientFunc resolves a shop domain to an authenticated catalog handle.
type ClientFunc func(ctx context.Context, shop string) (Catalog, error)

// WebhookHandler receives product webhooks from the platform and feeds the
// single-product path of the engine.
type WebhookHandler struct {
	engine    *Engine
	clientFor ClientFunc
	apiSecret string
}

func NewWebhookHandler(eng *Engine, clientFor ClientFunc, apiSecret string) *WebhookHandler {
	return &WebhookHandler{engine: eng, clientFor: clientFor, apiSecret: apiSecret}
}

func RegisterWebhookRoutes(app *fiber.App, h *WebhookHandler) {
	app.Post("/webhooks/products/update", h.ProductsUpdate)
}

// ProductsUpdate handles the products/update topic. The body signature is
// verified before anything else; a bad signature is the only non-2xx
// response. Engine aborts still answer 200: the platform redelivers on
// non-2xx, and an aborted run (no session, product vanished) is not a
// delivery failure.
func (h *WebhookHandler) ProductsUpdate(c *fiber.Ctx) error {
	body := c.Body()
	if !VerifyWebhookHMAC(body, c.Get("X-Shopify-Hmac-Sha256"), h.apiSecret) {
		return UnauthorizedError("Invalid webhook signature")
	}

	var payload struct {
		ID json.Number `json:"id"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || payload.ID.String() == "" {
		return NewAppError("INVALID_PAYLOAD", 400, "Webhook payload has no product id")
	}
	productID := payload.ID.String()
	shop := c.Get("X-Shopify-Shop-Domain")

	cat, err := h.clientFor(c.Context(), shop)
	if err != nil {
		log.Printf("webhook: products/update for %s: no usable session: %v", shop, err)
		return c.SendStatus(fiber.StatusOK)
	}

	if err := h.engine.ApplyRulesToProduct(c.Context(), cat, productID); err != nil {
		log.Printf("ERROR: webhook: apply rules to product %s: %v", productID, err)
	}
	return c.SendStatus(fiber.StatusOK)
}

// VerifyWebhookHMAC checks the platform's base64 HMAC-SHA256 body signature
// in constant time.
func VerifyWebhookHMAC(body []byte, header, secret string) bool {
	if header == "" || secret == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(header))
}
