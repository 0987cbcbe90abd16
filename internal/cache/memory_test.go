package cache

import (
	"context"
	"testing"
	"time"
)

func TestMemoryStoreExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	s := NewMemoryStore()
	s.now = func() time.Time { return now }

	if err := s.Set(ctx, "board", []byte("v1"), time.Minute); err != nil {
		t.Fatalf("set err=%v", err)
	}
	if v, ok, _ := s.Get(ctx, "board"); !ok || string(v) != "v1" {
		t.Fatalf("get=%q,%v want=v1,true", v, ok)
	}

	now = now.Add(2 * time.Minute)
	if _, ok, _ := s.Get(ctx, "board"); ok {
		t.Fatalf("expired entry still served")
	}
}

func TestMemoryStoreNoTTLAndDelete(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	_ = s.Set(ctx, "k", []byte("v"), 0)
	if _, ok, _ := s.Get(ctx, "k"); !ok {
		t.Fatalf("entry without ttl missing")
	}
	_ = s.Delete(ctx, "k")
	if _, ok, _ := s.Get(ctx, "k"); ok {
		t.Fatalf("deleted entry still served")
	}
}

func TestMemoryStoreCopiesValues(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	in := []byte("abc")
	_ = s.Set(ctx, "k", in, 0)
	in[0] = 'x'
	out, _, _ := s.Get(ctx, "k")
	if string(out) != "abc" {
		t.Fatalf("value=%q want=abc", out)
	}
}
