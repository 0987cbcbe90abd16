package handler

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestHealthAndReadiness(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("no checks", func(t *testing.T) {
		r := gin.New()
		(&HealthHandler{}).Register(r)
		if w := do(r, http.MethodGet, "/healthz", ""); w.Code != http.StatusOK {
			t.Fatalf("healthz code=%d", w.Code)
		}
		if w := do(r, http.MethodGet, "/readyz", ""); w.Code != http.StatusOK {
			t.Fatalf("readyz code=%d", w.Code)
		}
	})

	t.Run("failing check", func(t *testing.T) {
		r := gin.New()
		(&HealthHandler{Checks: map[string]Check{
			"db_unreachable": func(context.Context) error { return errors.New("connection refused") },
		}}).Register(r)
		w := do(r, http.MethodGet, "/readyz", "")
		if w.Code != http.StatusServiceUnavailable {
			t.Fatalf("readyz code=%d want=503", w.Code)
		}
		if got := w.Body.String(); got != `{"status":"db_unreachable"}` {
			t.Fatalf("body=%s", got)
		}
	})
}
