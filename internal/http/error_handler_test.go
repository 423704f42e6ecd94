package handlers_test

import (
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/requestid"

	"shopfront/internal/errs"
	"shopfront/internal/http/handlers"
)

// Internal failures surface as a generic JSON 500 with no internal detail.
func TestErrorHandlerHidesInternals(t *testing.T) {
	app := fiber.New(fiber.Config{ErrorHandler: handlers.ErrorHandler})
	app.Use(requestid.New())

	app.Get("/err", func(c *fiber.Ctx) error {
		return errors.New("db timeout: secret trace")
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/err", nil))
	if err != nil {
		t.Fatalf("test request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	s := string(body)
	if !strings.Contains(s, "internal server error") {
		t.Fatalf("generic message missing; body=%s", s)
	}
	if strings.Contains(s, "db timeout") || strings.Contains(s, "secret") {
		t.Fatalf("internal details leaked to client; body=%s", s)
	}
}

func TestErrorHandlerStatusMapping(t *testing.T) {
	app := fiber.New(fiber.Config{ErrorHandler: handlers.ErrorHandler})
	app.Get("/notfound", func(c *fiber.Ctx) error { return errs.NotFound("order", "o-1") })
	app.Get("/conflict", func(c *fiber.Ctx) error { return errs.Conflict("insufficient stock for %s", "p-1") })
	app.Get("/invalid", func(c *fiber.Ctx) error { return errs.Invalid("body", "must not be empty") })

	cases := []struct {
		path string
		want int
	}{
		{"/notfound", fiber.StatusNotFound},
		{"/conflict", fiber.StatusConflict},
		{"/invalid", fiber.StatusBadRequest},
	}
	for _, tc := range cases {
		resp, err := app.Test(httptest.NewRequest("GET", tc.path, nil))
		if err != nil {
			t.Fatalf("%s: %v", tc.path, err)
		}
		if resp.StatusCode != tc.want {
			t.Fatalf("%s: want %d, got %d", tc.path, tc.want, resp.StatusCode)
		}
	}
}

// Validation failures carry field-level detail.
func TestErrorHandlerValidationFields(t *testing.T) {
	app := fiber.New(fiber.Config{ErrorHandler: handlers.ErrorHandler})
	app.Get("/invalid", func(c *fiber.Ctx) error {
		return errs.Invalid("quantity", "must be at least 1")
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/invalid", nil))
	if err != nil {
		t.Fatal(err)
	}
	raw, _ := io.ReadAll(resp.Body)
	var body struct {
		Error  string            `json:"error"`
		Fields map[string]string `json:"fields"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		t.Fatalf("bad JSON: %v", err)
	}
	if body.Fields["quantity"] != "must be at least 1" {
		t.Fatalf("field detail missing: %+v", body)
	}
}
