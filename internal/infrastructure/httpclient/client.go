// Package httpclient provides the JSON request client shared by the upstream adapters.
// Every call goes through one retry policy so call sites never retry on their own.
package httpclient

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/erp/labelsync/internal/domain/integration"
)

// maxErrorBody bounds how much of an error response is kept on HTTPError
const maxErrorBody = 2048

// HTTPError is a non-2xx upstream response
type HTTPError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("http %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

// Unwrap makes every HTTPError match integration.ErrTransport
func (e *HTTPError) Unwrap() error { return integration.ErrTransport }

// Retryable reports whether the status is worth another attempt
func (e *HTTPError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// RetryPolicy is a fixed-wait, bounded-attempt policy
type RetryPolicy struct {
	Attempts int           // total attempts including the first, default 3
	Wait     time.Duration // wait between attempts, default 5s
}

// DefaultRetryPolicy matches the upstream throttling guidance
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Attempts: 3, Wait: 5 * time.Second}
}

func (p RetryPolicy) backOff(ctx context.Context) backoff.BackOff {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}
	b := backoff.WithMaxRetries(backoff.NewConstantBackOff(p.Wait), uint64(attempts-1))
	return backoff.WithContext(b, ctx)
}

// Config holds request client settings
type Config struct {
	Timeout            time.Duration
	InsecureSkipVerify bool
	Retry              RetryPolicy
}

// Client posts JSON and decodes JSON responses
type Client struct {
	http   *http.Client
	retry  RetryPolicy
	logger *zap.Logger
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithLogger sets the logger used for retry notices
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New creates a request client
func New(cfg Config, opts ...Option) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} // #nosec G402 -- upstream uses self-signed certs
	}
	retry := cfg.Retry
	if retry.Attempts == 0 {
		retry = DefaultRetryPolicy()
	}

	c := &Client{
		http:   &http.Client{Timeout: timeout, Transport: transport},
		retry:  retry,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Request describes one JSON call
type Request struct {
	Method    string
	URL       string
	Header    http.Header
	Body      any
	BasicUser string
	BasicPass string
}

// PostJSON sends body to url and decodes the response into out
func (c *Client) PostJSON(ctx context.Context, url string, header http.Header, body, out any) error {
	return c.Do(ctx, Request{Method: http.MethodPost, URL: url, Header: header, Body: body}, out)
}

// Do executes req under the retry policy. Failures wrap integration.ErrTransport.
func (c *Client) Do(ctx context.Context, req Request, out any) error {
	var payload []byte
	if req.Body != nil {
		var err error
		payload, err = json.Marshal(req.Body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
	}

	attempt := 0
	operation := func() error {
		attempt++
		err := c.once(ctx, req, payload, out)
		var httpErr *HTTPError
		if errors.As(err, &httpErr) && !httpErr.Retryable() {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		c.logger.Warn("Upstream request failed, retrying",
			zap.String("url", req.URL),
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
	}

	if err := backoff.RetryNotify(operation, c.retry.backOff(ctx), notify); err != nil {
		if errors.Is(err, integration.ErrTransport) {
			return err
		}
		return fmt.Errorf("%w: %s %s: %w", integration.ErrTransport, req.Method, req.URL, err)
	}
	return nil
}

func (c *Client) once(ctx context.Context, req Request, payload []byte, out any) error {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	method := req.Method
	if method == "" {
		method = http.MethodPost
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, req.URL, body)
	if err != nil {
		return backoff.Permanent(err)
	}
	for key, values := range req.Header {
		for _, v := range values {
			httpReq.Header.Add(key, v)
		}
	}
	if payload != nil && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if req.BasicUser != "" {
		httpReq.SetBasicAuth(req.BasicUser, req.BasicPass)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if len(data) > maxErrorBody {
			data = data[:maxErrorBody]
		}
		return &HTTPError{StatusCode: resp.StatusCode, URL: req.URL, Body: string(data)}
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("invalid JSON response: %w", err)
	}
	return nil
}
