// Package remote talks to the namespaced key-value store that backs the
// shared opportunity board.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Tomato007Tomats/crypto-analyst-agent/internal/apperr"
)

const (
	// MaxPageLimit is the largest page the remote search accepts.
	MaxPageLimit = 50
	// DefaultTimeout is the wall-clock budget of a single call, body included.
	DefaultTimeout = 30 * time.Second
	// MaxResponseBytes caps how much of a response body is read.
	MaxResponseBytes = 4<<20 + 512<<10

	APIKeyHeader = "X-Api-Key"
)

type Config struct {
	BaseURL string
	APIKey  string
}

// Item is one stored entry of the remote store.
type Item struct {
	Namespace []string       `json:"namespace"`
	Key       string         `json:"key"`
	Value     map[string]any `json:"value"`
	CreatedAt string         `json:"created_at,omitempty"`
	UpdatedAt string         `json:"updated_at,omitempty"`
}

type searchRequest struct {
	NamespacePrefix []string `json:"namespace_prefix"`
	Limit           int      `json:"limit"`
	Offset          int      `json:"offset"`
}

type searchResponse struct {
	Items []Item `json:"items"`
}

type putRequest struct {
	Namespace []string       `json:"namespace"`
	Key       string         `json:"key"`
	Value     map[string]any `json:"value"`
}

type deleteRequest struct {
	Namespace []string `json:"namespace"`
	Key       string   `json:"key"`
}

type Client struct {
	baseURL string
	apiKey  string
	timeout time.Duration
	http    *http.Client
	now     func() time.Time
}

type Option func(*Client)

// WithHTTPClient replaces the transport. The client's own Timeout is left to
// the caller; every request is still bounded by the call budget.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

func NewClient(cfg Config, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		apiKey:  strings.TrimSpace(cfg.APIKey),
		timeout: DefaultTimeout,
		now:     time.Now,
		http: &http.Client{
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				DisableKeepAlives:   true,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ClampLimit maps a requested page size onto (0, MaxPageLimit].
func ClampLimit(limit int) int {
	if limit <= 0 || limit > MaxPageLimit {
		return MaxPageLimit
	}
	return limit
}

// Search returns one page of items whose namespace starts with prefix.
func (c *Client) Search(ctx context.Context, prefix []string, limit, offset int) ([]Item, error) {
	const op = "remote.search"
	if offset < 0 {
		offset = 0
	}
	body := searchRequest{
		NamespacePrefix: nonNil(prefix),
		Limit:           ClampLimit(limit),
		Offset:          offset,
	}
	raw, err := c.do(ctx, op, http.MethodPost, "/store/search", nil, body)
	if err != nil {
		return nil, err
	}
	var resp searchResponse
	if len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, &resp); err != nil {
			return nil, &apperr.Error{Kind: apperr.KindProtocol, Op: op, Message: "malformed search response", Err: err}
		}
	}
	if resp.Items == nil {
		return []Item{}, nil
	}
	return resp.Items, nil
}

// PutItem creates or replaces the item at namespace/key.
func (c *Client) PutItem(ctx context.Context, namespace []string, key string, value map[string]any) error {
	_, err := c.do(ctx, "remote.put_item", http.MethodPut, "/store/items", nil, putRequest{
		Namespace: nonNil(namespace),
		Key:       key,
		Value:     value,
	})
	return err
}

// GetItem fetches namespace/key. A missing item is a NotFound error.
func (c *Client) GetItem(ctx context.Context, namespace []string, key string) (Item, error) {
	const op = "remote.get_item"
	q := url.Values{}
	q.Set("namespace", strings.Join(namespace, "."))
	q.Set("key", key)
	raw, err := c.do(ctx, op, http.MethodGet, "/store/items", q, nil)
	if err != nil {
		if e, ok := apperr.As(err); ok && e.Protocol != nil && e.Protocol.Status == http.StatusNotFound {
			return Item{}, &apperr.Error{Kind: apperr.KindNotFound, Op: op, Message: "item " + key + " not found", Err: err}
		}
		return Item{}, err
	}
	var item Item
	if err := json.Unmarshal(raw, &item); err != nil {
		return Item{}, &apperr.Error{Kind: apperr.KindProtocol, Op: op, Message: "malformed item response", Err: err}
	}
	if item.Key == "" {
		item.Key = key
	}
	if item.Namespace == nil {
		item.Namespace = namespace
	}
	return item, nil
}

// DeleteItem removes namespace/key. Deleting a missing item succeeds.
func (c *Client) DeleteItem(ctx context.Context, namespace []string, key string) error {
	_, err := c.do(ctx, "remote.delete_item", http.MethodDelete, "/store/items", nil, deleteRequest{
		Namespace: nonNil(namespace),
		Key:       key,
	})
	if e, ok := apperr.As(err); ok && e.Protocol != nil && e.Protocol.Status == http.StatusNotFound {
		return nil
	}
	return err
}

func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, payload any) ([]byte, error) {
	if c.baseURL == "" {
		return nil, apperr.Configuration(op, "remote store base url is not configured")
	}
	if c.apiKey == "" {
		return nil, apperr.Configuration(op, "remote store api key is not configured")
	}

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	var reqBody []byte
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, &apperr.Error{Kind: apperr.KindValidation, Op: op, Message: "request body is not serializable", Err: err}
		}
		reqBody = b
	}

	ctx, cancel := context.WithTimeoutCause(ctx, c.timeout, errCallBudget)
	defer cancel()

	var bodyReader io.Reader
	if reqBody != nil {
		bodyReader = bytes.NewReader(reqBody)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, bodyReader)
	if err != nil {
		return nil, apperr.Configuration(op, "invalid remote store url %q: %v", endpoint, err)
	}
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(APIKeyHeader, c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, c.classify(ctx, op, err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, readErr := readCapped(resp.Body)
	if readErr != nil && budgetSpent(ctx) {
		return nil, apperr.Timeout(op, c.timeout, readErr)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, apperr.Protocol(op, apperr.ProtocolDetail{
			Status:       resp.StatusCode,
			StatusText:   http.StatusText(resp.StatusCode),
			URL:          endpoint,
			RequestBody:  string(reqBody),
			ResponseBody: captureBody(resp.Header.Get("Content-Type"), raw, readErr),
			Headers:      resp.Header.Clone(),
			Timestamp:    c.now().UTC(),
		})
	}
	if readErr != nil {
		if errors.Is(readErr, errBodyTooLarge) {
			return nil, &apperr.Error{Kind: apperr.KindProtocol, Op: op, Message: "response exceeds size cap", Err: readErr}
		}
		return nil, c.classify(ctx, op, readErr)
	}
	return raw, nil
}

// classify maps a failed exchange onto Timeout when the client's own call
// budget ran out and Transport otherwise, including a caller's deadline.
func (c *Client) classify(ctx context.Context, op string, err error) error {
	if budgetSpent(ctx) {
		return apperr.Timeout(op, c.timeout, err)
	}
	return apperr.Transport(op, err)
}

var (
	errCallBudget   = errors.New("remote call budget exceeded")
	errBodyTooLarge = errors.New("response body exceeds size cap")
)

func budgetSpent(ctx context.Context) bool {
	return errors.Is(context.Cause(ctx), errCallBudget)
}

func readCapped(r io.Reader) ([]byte, error) {
	raw, err := io.ReadAll(io.LimitReader(r, MaxResponseBytes+1))
	if err != nil {
		return raw, err
	}
	if len(raw) > MaxResponseBytes {
		return raw[:MaxResponseBytes], errBodyTooLarge
	}
	return raw, nil
}

// captureBody renders an error response for diagnostics: decoded JSON when
// the server says JSON, raw text otherwise.
func captureBody(contentType string, raw []byte, readErr error) any {
	if readErr != nil {
		return apperr.BodyUnavailable
	}
	if isJSON(contentType) {
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			return apperr.BodyUnavailable
		}
		return v
	}
	return string(raw)
}

func isJSON(contentType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mt == "application/json" || strings.HasSuffix(mt, "+json")
}

func nonNil(ns []string) []string {
	if ns == nil {
		return []string{}
	}
	return ns
}
