package apperr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestIsMatchesSentinelByKind(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", NotFound("store.get", "opp_1"))
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("errors.Is(ErrNotFound)=false want=true")
	}
	if errors.Is(err, ErrValidation) {
		t.Fatalf("errors.Is(ErrValidation)=true want=false")
	}
	if got := KindOf(err); got != KindNotFound {
		t.Fatalf("kind=%s want=%s", got, KindNotFound)
	}
	if got := KindOf(errors.New("plain")); got != "" {
		t.Fatalf("kind=%q want empty", got)
	}
}

func TestTimeoutUnwrapsCause(t *testing.T) {
	err := Timeout("remote.search", 30*time.Second, context.DeadlineExceeded)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("cause not reachable through Unwrap")
	}
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("timeout sentinel mismatch")
	}
}

func TestErrorString(t *testing.T) {
	err := Validation("store.add", "confidence %v out of range", 101)
	want := "store.add: validation: confidence 101 out of range"
	if err.Error() != want {
		t.Fatalf("error=%q want=%q", err.Error(), want)
	}
}

func TestProtocolErrorLogsDiagnostics(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := zap.New(core)

	err := Protocol("remote.search", ProtocolDetail{
		Status:       http.StatusForbidden,
		StatusText:   "Forbidden",
		URL:          "http://remote/store/search",
		ResponseBody: map[string]any{"detail": "bad key"},
		Timestamp:    time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
	})
	logger.Error("search failed", zap.Object("error", err))

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("entries=%d want=1", len(entries))
	}
	fields := entries[0].ContextMap()
	obj, ok := fields["error"].(map[string]any)
	if !ok {
		t.Fatalf("error field=%T want map", fields["error"])
	}
	if obj["status"] != 403 {
		t.Fatalf("status=%v want=403", obj["status"])
	}
	if obj["kind"] != string(KindProtocol) {
		t.Fatalf("kind=%v want=%s", obj["kind"], KindProtocol)
	}
	body, ok := obj["response_body"].(map[string]any)
	if !ok || body["detail"] != "bad key" {
		t.Fatalf("response_body=%v want detail=bad key", obj["response_body"])
	}
}
