package engine

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
)

func errorApp(h fiber.Handler) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	app.Get("/boom", h)
	return app
}

func decodeErrorResponse(t *testing.T, resp *http.Response) ErrorResponse {
	t.Helper()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	var out ErrorResponse
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatalf("response not an error envelope: %v: %s", err, body)
	}
	return out
}

func TestErrorHandler_AppErrorKeepsStatusAndCode(t *testing.T) {
	app := errorApp(func(c *fiber.Ctx) error {
		return NewAppError("RUN_FAILED", 502, "upstream failed")
	})

	req, _ := http.NewRequest("GET", "/boom", nil)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != 502 {
		t.Fatalf("expected 502, got %d", resp.StatusCode)
	}
	out := decodeErrorResponse(t, resp)
	if out.Error == nil || out.Error.Code != "RUN_FAILED" || out.Error.Message != "upstream failed" {
		t.Fatalf("unexpected envelope: %+v", out.Error)
	}
}

func TestErrorHandler_Unauthorized(t *testing.T) {
	app := errorApp(func(c *fiber.Ctx) error {
		return UnauthorizedError("Missing auth token")
	})

	req, _ := http.NewRequest("GET", "/boom", nil)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != 401 {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
	out := decodeErrorResponse(t, resp)
	if out.Error == nil || out.Error.Code != "UNAUTHORIZED" {
		t.Fatalf("unexpected envelope: %+v", out.Error)
	}
}

func TestErrorHandler_GenericErrorHidesDetail(t *testing.T) {
	app := errorApp(func(c *fiber.Ctx) error {
		return errors.New("pq: connection reset by peer")
	})

	req, _ := http.NewRequest("GET", "/boom", nil)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != 500 {
		t.Fatalf("expected 500, got %d", resp.StatusCode)
	}
	out := decodeErrorResponse(t, resp)
	if out.Error == nil || out.Error.Code != "INTERNAL_ERROR" {
		t.Fatalf("unexpected envelope: %+v", out.Error)
	}
	if out.Error.Message != "Internal server error" {
		t.Fatalf("internal error detail leaked: %q", out.Error.Message)
	}
}
