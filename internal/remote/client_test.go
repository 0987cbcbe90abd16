package remote

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Tomato007Tomats/crypto-analyst-agent/internal/apperr"
)

func newTestClient(srv *httptest.Server, opts ...Option) *Client {
	return NewClient(Config{BaseURL: srv.URL, APIKey: "test-key"}, opts...)
}

func TestSearchClampsLimitAndSendsHeaders(t *testing.T) {
	var got searchRequest
	var gotKey, gotMethod, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get(APIKeyHeader)
		gotMethod = r.Method
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"items":[{"namespace":["opportunities"],"key":"opp_1","value":{"title":"x"}}]}`))
	}))
	defer srv.Close()

	items, err := newTestClient(srv).Search(context.Background(), []string{"opportunities"}, 500, -3)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if got.Limit != MaxPageLimit {
		t.Fatalf("limit=%d want=%d", got.Limit, MaxPageLimit)
	}
	if got.Offset != 0 {
		t.Fatalf("offset=%d want=0", got.Offset)
	}
	if len(got.NamespacePrefix) != 1 || got.NamespacePrefix[0] != "opportunities" {
		t.Fatalf("namespace_prefix=%v", got.NamespacePrefix)
	}
	if gotKey != "test-key" || gotMethod != http.MethodPost || gotPath != "/store/search" {
		t.Fatalf("key=%s method=%s path=%s", gotKey, gotMethod, gotPath)
	}
	if len(items) != 1 || items[0].Key != "opp_1" {
		t.Fatalf("items=%v", items)
	}
}

func TestClampLimit(t *testing.T) {
	cases := map[int]int{-1: 50, 0: 50, 1: 1, 50: 50, 51: 50, 1000: 50}
	for in, want := range cases {
		if got := ClampLimit(in); got != want {
			t.Fatalf("ClampLimit(%d)=%d want=%d", in, got, want)
		}
	}
}

func TestSearchMissingItemsIsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	items, err := newTestClient(srv).Search(context.Background(), []string{"opportunities"}, 10, 0)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if items == nil || len(items) != 0 {
		t.Fatalf("items=%v want empty non-nil", items)
	}
}

func TestSearchTimeoutAbortsRequest(t *testing.T) {
	aborted := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
			close(aborted)
		case <-time.After(5 * time.Second):
		}
	}))
	defer srv.Close()

	budget := 100 * time.Millisecond
	start := time.Now()
	_, err := newTestClient(srv, WithTimeout(budget)).Search(context.Background(), []string{"opportunities"}, 10, 0)
	elapsed := time.Since(start)

	if !errors.Is(err, apperr.ErrTimeout) {
		t.Fatalf("err=%v want timeout", err)
	}
	if elapsed < budget {
		t.Fatalf("elapsed=%s returned before the budget", elapsed)
	}
	if elapsed > 3*time.Second {
		t.Fatalf("elapsed=%s timeout did not fire promptly", elapsed)
	}
	select {
	case <-aborted:
	case <-time.After(2 * time.Second):
		t.Fatalf("server never observed the aborted request")
	}
}

func TestSearchParentCancelIsTransport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)
	_, err := newTestClient(srv).Search(ctx, []string{"opportunities"}, 10, 0)
	if !errors.Is(err, apperr.ErrTransport) {
		t.Fatalf("err=%v want transport", err)
	}
}

func TestSearchCallerDeadlineIsTransport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := newTestClient(srv, WithTimeout(5*time.Second)).Search(ctx, []string{"opportunities"}, 10, 0)
	if errors.Is(err, apperr.ErrTimeout) {
		t.Fatalf("err=%v caller deadline reported as timeout", err)
	}
	if !errors.Is(err, apperr.ErrTransport) {
		t.Fatalf("err=%v want transport", err)
	}
}

func TestSearchProtocolErrorCapturesJSONBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.Header().Set("X-Request-Id", "req-42")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"detail":"invalid api key"}`))
	}))
	defer srv.Close()

	fixed := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	_, err := newTestClient(srv, WithClock(func() time.Time { return fixed })).
		Search(context.Background(), []string{"opportunities"}, 10, 0)

	e, ok := apperr.As(err)
	if !ok || e.Kind != apperr.KindProtocol || e.Protocol == nil {
		t.Fatalf("err=%v want protocol error with detail", err)
	}
	p := e.Protocol
	if p.Status != http.StatusForbidden || p.StatusText != "Forbidden" {
		t.Fatalf("status=%d text=%s", p.Status, p.StatusText)
	}
	if p.URL != srv.URL+"/store/search" {
		t.Fatalf("url=%s", p.URL)
	}
	if !strings.Contains(p.RequestBody, `"limit":10`) {
		t.Fatalf("request_body=%s", p.RequestBody)
	}
	body, ok := p.ResponseBody.(map[string]any)
	if !ok || body["detail"] != "invalid api key" {
		t.Fatalf("response_body=%#v", p.ResponseBody)
	}
	if p.Headers.Get("X-Request-Id") != "req-42" {
		t.Fatalf("headers=%v", p.Headers)
	}
	if !p.Timestamp.Equal(fixed) {
		t.Fatalf("timestamp=%s want=%s", p.Timestamp, fixed)
	}
}

func TestSearchProtocolErrorCapturesTextBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream down"))
	}))
	defer srv.Close()

	_, err := newTestClient(srv).Search(context.Background(), nil, 10, 0)
	e, ok := apperr.As(err)
	if !ok || e.Protocol == nil {
		t.Fatalf("err=%v want protocol error", err)
	}
	if e.Protocol.ResponseBody != "upstream down" {
		t.Fatalf("response_body=%#v want=upstream down", e.Protocol.ResponseBody)
	}
}

func TestSearchProtocolErrorUndecodableJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("<html>oops</html>"))
	}))
	defer srv.Close()

	_, err := newTestClient(srv).Search(context.Background(), nil, 10, 0)
	e, ok := apperr.As(err)
	if !ok || e.Protocol == nil {
		t.Fatalf("err=%v want protocol error", err)
	}
	if e.Protocol.ResponseBody != apperr.BodyUnavailable {
		t.Fatalf("response_body=%#v want=%q", e.Protocol.ResponseBody, apperr.BodyUnavailable)
	}
}

func TestSearchConfigurationErrorBeforeNetwork(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer srv.Close()

	clients := map[string]*Client{
		"missing key": NewClient(Config{BaseURL: srv.URL}),
		"missing url": NewClient(Config{APIKey: "k"}),
	}
	for name, c := range clients {
		t.Run(name, func(t *testing.T) {
			_, err := c.Search(context.Background(), nil, 10, 0)
			if !errors.Is(err, apperr.ErrConfiguration) {
				t.Fatalf("err=%v want configuration", err)
			}
		})
	}
	if n := atomic.LoadInt32(&calls); n != 0 {
		t.Fatalf("calls=%d want=0", n)
	}
}

func TestSearchTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := NewClient(Config{BaseURL: url, APIKey: "k"}).Search(context.Background(), nil, 10, 0)
	if !errors.Is(err, apperr.ErrTransport) {
		t.Fatalf("err=%v want transport", err)
	}
}

func TestSearchResponseOverCap(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"items":[],"pad":"`))
		_, _ = w.Write([]byte(strings.Repeat("x", MaxResponseBytes)))
		_, _ = w.Write([]byte(`"}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv).Search(context.Background(), nil, 10, 0)
	if !errors.Is(err, apperr.ErrProtocol) {
		t.Fatalf("err=%v want protocol", err)
	}
}

func TestItemOperations(t *testing.T) {
	stored := map[string]map[string]any{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/store/items" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		switch r.Method {
		case http.MethodPut:
			var req putRequest
			_ = json.NewDecoder(r.Body).Decode(&req)
			stored[strings.Join(req.Namespace, ".")+"/"+req.Key] = req.Value
			w.WriteHeader(http.StatusNoContent)
		case http.MethodGet:
			key := r.URL.Query().Get("namespace") + "/" + r.URL.Query().Get("key")
			v, ok := stored[key]
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				_, _ = w.Write([]byte(`{"detail":"Item not found"}`))
				return
			}
			_ = json.NewEncoder(w).Encode(Item{
				Namespace: []string{"opportunities"},
				Key:       r.URL.Query().Get("key"),
				Value:     v,
			})
		case http.MethodDelete:
			var req deleteRequest
			_ = json.NewDecoder(r.Body).Decode(&req)
			key := strings.Join(req.Namespace, ".") + "/" + req.Key
			if _, ok := stored[key]; !ok {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			delete(stored, key)
			w.WriteHeader(http.StatusNoContent)
		}
	}))
	defer srv.Close()

	ctx := context.Background()
	c := newTestClient(srv)
	ns := []string{"opportunities"}

	if err := c.PutItem(ctx, ns, "opp_1", map[string]any{"title": "BTC"}); err != nil {
		t.Fatalf("put err=%v", err)
	}
	item, err := c.GetItem(ctx, ns, "opp_1")
	if err != nil {
		t.Fatalf("get err=%v", err)
	}
	if item.Value["title"] != "BTC" {
		t.Fatalf("value=%v", item.Value)
	}
	if err := c.DeleteItem(ctx, ns, "opp_1"); err != nil {
		t.Fatalf("delete err=%v", err)
	}
	if err := c.DeleteItem(ctx, ns, "opp_1"); err != nil {
		t.Fatalf("second delete err=%v want=nil", err)
	}
	if _, err := c.GetItem(ctx, ns, "opp_1"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("err=%v want not found", err)
	}
}
