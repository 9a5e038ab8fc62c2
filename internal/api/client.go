// Package api is the storefront's REST client: it attaches the bearer token, decodes
// the {success, data, message} envelope and turns error payloads into *Error values.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/fjod/go_cart/storefront/pkg/circuitbreaker"
	"github.com/fjod/go_cart/storefront/pkg/logger"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	maxResponseBody   = 4 << 20 // 4MB
	genericErrMessage = "Something went wrong. Please try again."
)

// TokenSource yields the bearer token for the current visitor, "" when logged out.
type TokenSource interface {
	Token(ctx context.Context) string
}

type Config struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
}

type Client struct {
	baseURL        string
	http           *http.Client
	timeout        time.Duration
	userAgent      string
	tokens         TokenSource
	breaker        *circuitbreaker.Breaker[*envelope]
	onUnauthorized func(ctx context.Context)
	log            zerolog.Logger
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Token   string          `json:"token"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
}

// NewClient builds a client without credentials. Use WithTokens for per-visitor copies.
func NewClient(cfg Config, log zerolog.Logger) *Client {
	l := logger.Component(log, "api")
	return &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		http:      &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
		timeout:   cfg.Timeout,
		userAgent: cfg.UserAgent,
		breaker:   circuitbreaker.New[*envelope](circuitbreaker.DefaultConfig("storefront-api"), countsAgainstUpstream, l),
		log:       l,
	}
}

// WithTokens returns a copy that authenticates with ts and reports token rejection to
// onUnauthorized. The copy shares the HTTP client and the circuit breaker.
func (c *Client) WithTokens(ts TokenSource, onUnauthorized func(ctx context.Context)) *Client {
	cp := *c
	cp.tokens = ts
	cp.onUnauthorized = onUnauthorized
	return &cp
}

func countsAgainstUpstream(err error) bool {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Status >= http.StatusInternalServerError
	}
	return !errors.Is(err, context.Canceled)
}

type request struct {
	method  string
	path    string
	query   url.Values
	body    any
	headers map[string]string
}

// credential endpoints answer 401 for bad input, not for a stale token
var credentialPaths = map[string]bool{
	"/auth/login":          true,
	"/auth/admin/login":    true,
	"/auth/register":       true,
	"/auth/updatepassword": true,
	"/auth/resetpassword":  true,
}

func (c *Client) do(ctx context.Context, req request, out any) (*envelope, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	token := ""
	if c.tokens != nil {
		token = c.tokens.Token(ctx)
	}

	env, err := c.breaker.Execute(func() (*envelope, error) {
		return c.roundTrip(ctx, req, token)
	})
	if err != nil {
		if errors.Is(err, circuitbreaker.ErrOpen) {
			err = &Error{Status: http.StatusServiceUnavailable, Message: "The store is temporarily unavailable. Please try again shortly.", cause: err}
		}
		logger.FromContext(ctx, c.log).Debug().Err(err).Str("method", req.method).Str("path", req.path).Msg("api request failed")
		if token != "" && IsUnauthorized(err) && !credentialPaths[req.path] && c.onUnauthorized != nil {
			c.onUnauthorized(ctx)
		}
		return nil, err
	}

	if out != nil && len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return nil, fmt.Errorf("failed to decode %s %s response: %w", req.method, req.path, err)
		}
	}
	return env, nil
}

func (c *Client) roundTrip(ctx context.Context, req request, token string) (*envelope, error) {
	u := c.baseURL + req.path
	if len(req.query) > 0 {
		u += "?" + req.query.Encode()
	}

	var body io.Reader
	if req.body != nil {
		data, err := json.Marshal(req.body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		body = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, u, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if c.userAgent != "" {
		httpReq.Header.Set("User-Agent", c.userAgent)
	}
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range req.headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%s %s failed: %w", req.method, req.path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s %s response: %w", req.method, req.path, err)
	}

	var env envelope
	decodeErr := json.Unmarshal(raw, &env)

	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &Error{Status: resp.StatusCode}
		if decodeErr == nil {
			apiErr.Message = firstNonEmpty(env.Message, env.Error)
		}
		return nil, apiErr
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("failed to decode %s %s response: %w", req.method, req.path, decodeErr)
	}
	return &env, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// Ping checks that the API answers at all. Any HTTP response counts.
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("api health returned %d", resp.StatusCode)
	}
	return nil
}
