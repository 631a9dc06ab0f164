// Package fetch is the browser-like HTTP client shared by every network
// strategy. Headers are fixed at construction; per-call deadlines come from
// the caller's context.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"postmedia/pkg/config"
	errs "postmedia/pkg/errors"
	"postmedia/pkg/logger"
	"postmedia/pkg/retry"
)

// AcceptEncoding lists every content coding DecodeBody understands.
const AcceptEncoding = "gzip, deflate, br, zstd"

// Response is a fully read and decoded response.
type Response struct {
	StatusCode int
	Header     http.Header
	// FinalURL is the URL after redirects.
	FinalURL string
	Body     []byte
}

// Client performs GET requests with browser-like headers
type Client struct {
	httpClient   *http.Client
	headers      map[string]string
	maxBodyBytes int64
	retry        *retry.Config
	logger       logger.Logger
}

// Option customizes a Client
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTransport swaps the transport of the underlying http.Client
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) { c.httpClient = &http.Client{Transport: rt} }
}

// WithBackoff overrides the delay between attempts
func WithBackoff(b retry.BackoffStrategy) Option {
	return func(c *Client) {
		c.retry.Backoff = b
		c.retry.BackoffFor = nil
	}
}

// New creates a client from the fetch configuration
func New(cfg config.FetchConfig, log logger.Logger, opts ...Option) *Client {
	if log == nil {
		log = logger.GetLogger()
	}

	c := &Client{
		httpClient: &http.Client{},
		headers: map[string]string{
			"User-Agent":      cfg.UserAgent,
			"Accept":          cfg.Accept,
			"Accept-Language": cfg.AcceptLanguage,
			"Accept-Encoding": AcceptEncoding,
			"Cache-Control":   "no-cache",
			"Pragma":          "no-cache",
			"Sec-Fetch-Dest":  "document",
			"Sec-Fetch-Mode":  "navigate",
			"Sec-Fetch-Site":  "none",
			"Sec-Fetch-User":  "?1",
		},
		maxBodyBytes: cfg.MaxBodyBytes,
		retry: &retry.Config{
			MaxAttempts: cfg.MaxAttempts,
			BackoffFor:  retry.NewErrorTypeBackoff().For,
			RetryIf:     retry.DefaultRetryIf,
			Logger:      log,
		},
		logger: log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Header returns a default header value
func (c *Client) Header(key string) string {
	return c.headers[key]
}

// Get fetches rawURL. extra headers override the defaults for this call only.
// Non-2xx responses fail with a status error; connection and body failures
// with a transport error.
func (c *Client) Get(ctx context.Context, rawURL string, extra map[string]string) (*Response, error) {
	return retry.DoWithResult(ctx, func() (*Response, error) {
		return c.get(ctx, rawURL, extra)
	}, c.retry)
}

func (c *Client) get(ctx context.Context, rawURL string, extra map[string]string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeUnsupported, rawURL, fmt.Errorf("failed to create request: %w", err))
	}
	for key, value := range c.headers {
		if value != "" {
			req.Header.Set(key, value)
		}
	}
	for key, value := range extra {
		req.Header.Set(key, value)
	}

	start := time.Now()
	c.logger.DebugWithFields("sending HTTP request", map[string]interface{}{
		"method": req.Method,
		"url":    rawURL,
	})

	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)
	if err != nil {
		c.logger.DebugWithFields("HTTP request failed", map[string]interface{}{
			"url":      rawURL,
			"error":    err.Error(),
			"duration": duration,
		})
		return nil, errs.Wrap(errs.ErrorTypeTransport, rawURL, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		c.logger.DebugWithFields("unexpected status", map[string]interface{}{
			"url":    rawURL,
			"status": resp.StatusCode,
		})
		return nil, errs.Status(rawURL, resp.StatusCode)
	}

	body, err := DecodeBody(resp, c.maxBodyBytes)
	if err != nil {
		errType := errs.ErrorTypeTransport
		if errors.Is(err, ErrBodyTooLarge) {
			errType = errs.ErrorTypeUnsupported
		}
		return nil, errs.Wrap(errType, rawURL, fmt.Errorf("reading body: %w", err))
	}

	finalURL := rawURL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	c.logger.DebugWithFields("HTTP request completed", map[string]interface{}{
		"url":       rawURL,
		"final_url": finalURL,
		"status":    resp.StatusCode,
		"bytes":     len(body),
		"duration":  duration,
	})

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		FinalURL:   finalURL,
		Body:       body,
	}, nil
}
