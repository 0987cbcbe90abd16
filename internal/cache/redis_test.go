package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	s := NewRedisStore(&redis.Options{Addr: mr.Addr()}, "ca:")
	t.Cleanup(func() { _ = s.Close() })
	return s, mr
}

func TestRedisStoreRoundTripWithPrefix(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestRedisStore(t)

	if err := s.Ping(ctx); err != nil {
		t.Fatalf("ping err=%v", err)
	}
	if _, ok, err := s.Get(ctx, "board"); ok || err != nil {
		t.Fatalf("missing key ok=%v err=%v", ok, err)
	}
	if err := s.Set(ctx, "board", []byte(`[{"id":"opp_1"}]`), time.Minute); err != nil {
		t.Fatalf("set err=%v", err)
	}
	if !mr.Exists("ca:board") {
		t.Fatalf("key not written under prefix: %v", mr.Keys())
	}
	if ttl := mr.TTL("ca:board"); ttl != time.Minute {
		t.Fatalf("ttl=%s want=1m", ttl)
	}
	v, ok, err := s.Get(ctx, "board")
	if err != nil || !ok || string(v) != `[{"id":"opp_1"}]` {
		t.Fatalf("get=%q ok=%v err=%v", v, ok, err)
	}

	mr.FastForward(2 * time.Minute)
	if _, ok, _ := s.Get(ctx, "board"); ok {
		t.Fatalf("expired entry still served")
	}
}

func TestRedisStoreNoTTLAndDelete(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestRedisStore(t)

	if err := s.Set(ctx, "k", []byte("v"), -time.Second); err != nil {
		t.Fatalf("set err=%v", err)
	}
	if ttl := mr.TTL("ca:k"); ttl != 0 {
		t.Fatalf("ttl=%s want none", ttl)
	}
	if err := s.Delete(ctx, "k"); err != nil {
		t.Fatalf("delete err=%v", err)
	}
	if _, ok, _ := s.Get(ctx, "k"); ok {
		t.Fatalf("deleted entry still served")
	}
	if err := s.Delete(ctx, "k"); err != nil {
		t.Fatalf("second delete err=%v", err)
	}
}

func TestRedisStoreUnreachable(t *testing.T) {
	s, mr := newTestRedisStore(t)
	mr.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Ping(ctx); err == nil {
		t.Fatalf("ping succeeded against a closed server")
	}
	if _, _, err := s.Get(ctx, "board"); err == nil {
		t.Fatalf("get succeeded against a closed server")
	}
}
