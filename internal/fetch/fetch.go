// Package fetch executes idempotent image downloads with bounded retries,
// exponential backoff and a content-type guard.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultTimeout = 120 * time.Second
	maxErrorBody   = 200
)

var (
	ErrConnectionExhausted = errors.New("connection attempts exhausted")
	ErrInvalidContentType  = errors.New("response is not an image")
)

// StatusError is a non-retryable HTTP failure (status below 500).
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

// Response is a validated image response. The caller must close Body.
type Response struct {
	StatusCode  int
	ContentType string
	Body        io.ReadCloser
}

type Options struct {
	Timeout    time.Duration
	Policy     RetryPolicy
	Logger     *zap.Logger
	HTTPClient *http.Client
}

type Client struct {
	httpClient *http.Client
	policy     RetryPolicy
	logger     *zap.Logger
}

func New(opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	policy := opts.Policy
	if policy.MaxAttempts == 0 {
		policy = DefaultRetryPolicy(3)
	}

	return &Client{
		httpClient: httpClient,
		policy:     policy,
		logger:     logger,
	}
}

// Fetch issues GET rawURL?query with header. On success the body has not
// been read yet; only the content-type header has been checked.
func (c *Client) Fetch(ctx context.Context, rawURL string, query url.Values, header http.Header) (*Response, error) {
	target := withQuery(rawURL, query)
	attempts := c.policy.attempts()

	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			if err := c.policy.wait(ctx, attempt-1); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrConnectionExhausted, err)
			}
		}

		resp, err := c.do(ctx, target, header)
		if err != nil {
			c.logger.Warn("request failed",
				zap.Int("attempt", attempt+1),
				zap.Int("max_attempts", attempts),
				zap.Error(err),
			)
			if ctx.Err() != nil {
				return nil, fmt.Errorf("%w: %v", ErrConnectionExhausted, ctx.Err())
			}
			continue
		}

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			return c.accept(resp)
		case resp.StatusCode < 500:
			body := readTruncated(resp.Body)
			resp.Body.Close()
			c.logger.Error("request rejected",
				zap.Int("status", resp.StatusCode),
				zap.String("body", body),
			)
			return nil, &StatusError{StatusCode: resp.StatusCode, Body: body}
		default:
			body := readTruncated(resp.Body)
			resp.Body.Close()
			c.logger.Warn("server error",
				zap.Int("attempt", attempt+1),
				zap.Int("max_attempts", attempts),
				zap.Int("status", resp.StatusCode),
				zap.String("body", body),
			)
		}
	}

	return nil, fmt.Errorf("%w after %d attempts", ErrConnectionExhausted, attempts)
}

func (c *Client) do(ctx context.Context, target string, header http.Header) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for key, values := range header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}

	c.logger.Debug("sending request", zap.String("url", target))
	return c.httpClient.Do(req)
}

func (c *Client) accept(resp *http.Response) (*Response, error) {
	contentType := resp.Header.Get("Content-Type")
	if !IsImageContentType(contentType) {
		resp.Body.Close()
		c.logger.Error("unexpected content type", zap.String("content_type", contentType))
		return nil, fmt.Errorf("%w: %q", ErrInvalidContentType, contentType)
	}
	return &Response{
		StatusCode:  resp.StatusCode,
		ContentType: contentType,
		Body:        resp.Body,
	}, nil
}

// IsImageContentType reports whether a content-type header looks like image
// data.
func IsImageContentType(contentType string) bool {
	ct := strings.ToLower(contentType)
	return strings.Contains(ct, "image") || strings.Contains(ct, "octet-stream")
}

func withQuery(rawURL string, query url.Values) string {
	if len(query) == 0 {
		return rawURL
	}
	sep := "?"
	if strings.Contains(rawURL, "?") {
		sep = "&"
	}
	return rawURL + sep + query.Encode()
}

func readTruncated(r io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(r, maxErrorBody))
	return string(data)
}
