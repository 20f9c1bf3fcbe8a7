package transport

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestErrorHandler(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		err       error
		wantCode  int
		wantBody  string
		wantLevel zapcore.Level
	}{
		{
			name:      "fiber client error keeps message",
			err:       fiber.NewError(fiber.StatusNotFound, "not found: campaign c-1"),
			wantCode:  fiber.StatusNotFound,
			wantBody:  "not found: campaign c-1",
			wantLevel: zapcore.WarnLevel,
		},
		{
			name:      "plain error is hidden",
			err:       errors.New("pq: connection reset"),
			wantCode:  fiber.StatusInternalServerError,
			wantBody:  internalErrorMessage,
			wantLevel: zapcore.ErrorLevel,
		},
		{
			name:      "explicit fiber 503 keeps message",
			err:       fiber.NewError(fiber.StatusServiceUnavailable, "broker unavailable"),
			wantCode:  fiber.StatusServiceUnavailable,
			wantBody:  "broker unavailable",
			wantLevel: zapcore.ErrorLevel,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			core, logs := observer.New(zapcore.DebugLevel)
			app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(zap.New(core))})
			app.Get("/fail", func(c *fiber.Ctx) error { return tt.err })

			resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/fail", nil))
			if err != nil {
				t.Fatalf("app.Test() error = %v", err)
			}
			body, _ := io.ReadAll(resp.Body)
			_ = resp.Body.Close()

			if resp.StatusCode != tt.wantCode {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.wantCode)
			}

			var parsed map[string]string
			if err := json.Unmarshal(body, &parsed); err != nil {
				t.Fatalf("json unmarshal error = %v", err)
			}
			if parsed["error"] != tt.wantBody {
				t.Fatalf("error = %q, want %q", parsed["error"], tt.wantBody)
			}

			entries := logs.All()
			if len(entries) != 1 {
				t.Fatalf("log entries = %d, want 1", len(entries))
			}
			if entries[0].Level != tt.wantLevel {
				t.Fatalf("log level = %s, want %s", entries[0].Level, tt.wantLevel)
			}
		})
	}
}
