package middleware

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/cardfund/cardfund/internal/logging"
)

func setupTestApp(t *testing.T) (*fiber.App, func()) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}

	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	app := fiber.New()
	logger := logging.Discard()
	app.Use(Idempotency(cache, time.Minute, logger))

	calls := map[string]int{}
	handler := func(c *fiber.Ctx) error {
		calls[c.Path()]++
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"path":  c.Path(),
			"calls": calls[c.Path()],
		})
	}
	app.Post("/deposits", handler)
	app.Post("/deposits/:id/confirmations", handler)

	cleanup := func() {
		cache.Close()
		mr.Close()
	}

	return app, cleanup
}

func TestIdempotencyRequiresHeader(t *testing.T) {
	app, cleanup := setupTestApp(t)
	defer cleanup()

	req := httptest.NewRequest(fiber.MethodPost, "/deposits", strings.NewReader("{}"))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}

	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("expected %d got %d", fiber.StatusBadRequest, resp.StatusCode)
	}
}

func TestIdempotencyReturnsCachedResponse(t *testing.T) {
	app, cleanup := setupTestApp(t)
	defer cleanup()

	send := func(path string) []byte {
		t.Helper()
		req := httptest.NewRequest(fiber.MethodPost, path, strings.NewReader("{}"))
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		req.Header.Set(idempotencyKeyHeader, "monitor-retry-1")

		resp, err := app.Test(req)
		if err != nil {
			t.Fatalf("request %s: %v", path, err)
		}
		if resp.StatusCode != fiber.StatusCreated {
			t.Fatalf("expected status %d got %d", fiber.StatusCreated, resp.StatusCode)
		}
		payload, err := io.ReadAll(resp.Body)
		if err != nil {
			t.Fatalf("read body: %v", err)
		}
		resp.Body.Close()
		return payload
	}

	first := send("/deposits")
	replayed := send("/deposits")
	if string(replayed) != string(first) {
		t.Fatalf("retry should replay the stored response, got %s vs %s", replayed, first)
	}

	var decoded struct {
		Calls int `json:"calls"`
	}
	if err := json.Unmarshal(replayed, &decoded); err != nil {
		t.Fatalf("cached payload invalid json: %v", err)
	}
	if decoded.Calls != 1 {
		t.Fatalf("handler must run once per key, ran %d times", decoded.Calls)
	}
}

func TestIdempotencyKeyScopedPerRoute(t *testing.T) {
	app, cleanup := setupTestApp(t)
	defer cleanup()

	for _, path := range []string{"/deposits", "/deposits/abc/confirmations"} {
		req := httptest.NewRequest(fiber.MethodPost, path, strings.NewReader("{}"))
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		req.Header.Set(idempotencyKeyHeader, "shared-key")

		resp, err := app.Test(req)
		if err != nil {
			t.Fatalf("request %s: %v", path, err)
		}
		payload, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		var decoded struct {
			Path string `json:"path"`
		}
		if err := json.Unmarshal(payload, &decoded); err != nil {
			t.Fatalf("decode %s: %v", path, err)
		}
		if decoded.Path != path {
			t.Fatalf("same key on %s must not replay another route's response, got %s", path, decoded.Path)
		}
	}
}
