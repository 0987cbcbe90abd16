package cronrunner

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestAddRejectsBadSpec(t *testing.T) {
	r := New(zap.NewNop(), context.Background())
	if _, err := r.Add("bad", "every now and then", func(context.Context) error { return nil }); err == nil {
		t.Fatalf("expected parse error")
	}
	if r.Entries() != 0 {
		t.Fatalf("entries=%d want=0", r.Entries())
	}
}

func TestAddAcceptsDescriptorsAndSeconds(t *testing.T) {
	r := New(nil, nil)
	for _, spec := range []string{"@every 1m", "*/30 * * * * *", "0 * * * *"} {
		if _, err := r.Add(spec, spec, func(context.Context) error { return nil }); err != nil {
			t.Fatalf("spec=%q err=%v", spec, err)
		}
	}
	if r.Entries() != 3 {
		t.Fatalf("entries=%d want=3", r.Entries())
	}
}

func TestRunLogsFailure(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	r := New(zap.New(core), context.Background())

	r.run("board-refresh", func(context.Context) error { return errors.New("upstream down") })
	entries := logs.FilterMessage("cron job failed").All()
	if len(entries) != 1 {
		t.Fatalf("failure logs=%d want=1", len(entries))
	}
	if got := entries[0].ContextMap()["job"]; got != "board-refresh" {
		t.Fatalf("job=%v want=board-refresh", got)
	}

	r.run("board-refresh", func(context.Context) error { return nil })
	if n := logs.FilterMessage("cron job done").Len(); n != 1 {
		t.Fatalf("done logs=%d want=1", n)
	}
}

func TestRunSkipsAfterShutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := New(zap.NewNop(), ctx)
	called := false
	r.run("noop", func(context.Context) error {
		called = true
		return nil
	})
	if called {
		t.Fatalf("job ran after base context was cancelled")
	}
}
