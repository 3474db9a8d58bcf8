package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// APIError is the normalized shape every failed request reduces to. Status is
// the HTTP status code, or 0 when the request never produced a response.
type APIError struct {
	Message   string    `json:"message"`
	Status    int       `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

func (e *APIError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("api: %s", e.Message)
	}
	return fmt.Sprintf("api: %s (status %d)", e.Message, e.Status)
}

func newAPIError(message string, status int) *APIError {
	return &APIError{Message: message, Status: status, Timestamp: time.Now()}
}

// Client wraps API access: base URL resolution, bearer token attachment and
// error normalization. A 401 response evicts the stored credential and fires
// the OnUnauthorized hook at most once until a new token is saved.
type Client struct {
	baseURL      string
	http         *http.Client
	tokens       TokenStore
	onUnauth     func()
	unauthFired  atomic.Bool
	logger       *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying *http.Client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithOnUnauthorized sets the hook fired when a request comes back 401.
func WithOnUnauthorized(fn func()) Option {
	return func(c *Client) { c.onUnauth = fn }
}

// WithLogger sets the client logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates an API client. tokens must not be nil.
func New(baseURL string, tokens TokenStore, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
		tokens:  tokens,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SaveToken stores a fresh credential and re-arms the unauthorized hook.
func (c *Client) SaveToken(token string) error {
	if err := c.tokens.Save(token); err != nil {
		return err
	}
	c.unauthFired.Store(false)
	return nil
}

// envelope matches the server's response wrapper.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

// Do performs a JSON request against the API. body may be nil; out may be nil
// when the caller does not need the response data.
func (c *Client) Do(ctx context.Context, method, path string, body, out interface{}) error {
	var reqBody io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return newAPIError("encode request: "+err.Error(), 0)
		}
		reqBody = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return newAPIError("build request: "+err.Error(), 0)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token, ok := c.tokens.Token(); ok {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return newAPIError(err.Error(), 0)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return newAPIError("read response: "+err.Error(), 0)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		c.tokens.Evict()
		if c.onUnauth != nil && c.unauthFired.CompareAndSwap(false, true) {
			c.onUnauth()
		}
		return newAPIError(errorMessage(raw, "unauthorized"), resp.StatusCode)
	}
	if resp.StatusCode == http.StatusForbidden {
		// forbidden is not a credential problem; keep the token
		return newAPIError(errorMessage(raw, "forbidden"), resp.StatusCode)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newAPIError(errorMessage(raw, http.StatusText(resp.StatusCode)), resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return newAPIError("decode response: "+err.Error(), resp.StatusCode)
	}
	if len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return newAPIError("decode response data: "+err.Error(), resp.StatusCode)
	}
	return nil
}

// Get performs a GET request.
func (c *Client) Get(ctx context.Context, path string, out interface{}) error {
	return c.Do(ctx, http.MethodGet, path, nil, out)
}

// Post performs a POST request with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body, out interface{}) error {
	return c.Do(ctx, http.MethodPost, path, body, out)
}

// errorMessage extracts the server's error string, falling back when the body
// is not the standard envelope.
func errorMessage(raw []byte, fallback string) string {
	var env envelope
	if err := json.Unmarshal(raw, &env); err == nil && env.Error != "" {
		return env.Error
	}
	return fallback
}
