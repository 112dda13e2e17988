// Package backend performs the single outbound call behind each gateway request.
//
// DESIGN: The invoker is deliberately thin:
//   - one call per Do, no retry, default redirect handling
//   - caching disabled on every request via headers
//   - the caller's context bounds the call, so a dropped client abandons it
//
// Classification of the result is left to the normalize package.
package backend

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/doublev/bff-gateway/internal/auth"
	"github.com/doublev/bff-gateway/internal/config"
)

// Outbound header names.
const (
	HeaderRequestID = "X-Request-ID"
	userAgent       = "bff-gateway/1.0"
)

// ErrResponseTooLarge is wrapped in a TransportError when a body exceeds the limit.
var ErrResponseTooLarge = errors.New("response body exceeds size limit")

// Request is one outbound call.
type Request struct {
	Method     string
	URL        string
	Body       []byte
	Credential auth.Credential
	RequestID  string
}

// RawResponse is the unclassified backend reply.
type RawResponse struct {
	StatusCode  int
	StatusText  string
	ContentType string
	Body        []byte
	Latency     time.Duration
}

// TransportError is returned when no HTTP response could be obtained.
type TransportError struct {
	Op  string
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Client performs outbound calls. It is safe for concurrent use.
type Client struct {
	httpClient       *http.Client
	maxResponseBytes int64
}

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(client *Client) {
		client.httpClient = c
	}
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(client *Client) {
		client.httpClient.Timeout = timeout
	}
}

// WithMaxResponseBytes caps how much of a response body is read.
func WithMaxResponseBytes(n int64) ClientOption {
	return func(client *Client) {
		client.maxResponseBytes = n
	}
}

// NewClient creates a backend client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{
			Timeout: config.DefaultBackendTimeout,
		},
		maxResponseBytes: config.MaxResponseSize,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Do performs exactly one call. A nil error means a RawResponse was obtained,
// whatever its status. Any error is a *TransportError.
func (c *Client) Do(ctx context.Context, req *Request) (*RawResponse, error) {
	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return nil, &TransportError{Op: "build", URL: req.URL, Err: err}
	}
	setHeaders(httpReq, req)

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		log.Debug().
			Str("request_id", req.RequestID).
			Str("method", req.Method).
			Str("url", req.URL).
			Str("auth", req.Credential.Masked()).
			Err(err).
			Msg("backend call failed")
		return nil, &TransportError{Op: strings.ToLower(req.Method), URL: req.URL, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxResponseBytes+1))
	if err != nil {
		return nil, &TransportError{Op: "read", URL: req.URL, Err: err}
	}
	if int64(len(data)) > c.maxResponseBytes {
		return nil, &TransportError{Op: "read", URL: req.URL, Err: ErrResponseTooLarge}
	}

	raw := &RawResponse{
		StatusCode:  resp.StatusCode,
		StatusText:  statusText(resp),
		ContentType: resp.Header.Get("Content-Type"),
		Body:        data,
		Latency:     time.Since(start),
	}

	log.Debug().
		Str("request_id", req.RequestID).
		Str("method", req.Method).
		Str("url", req.URL).
		Str("auth", req.Credential.Masked()).
		Int("status", raw.StatusCode).
		Int("bytes", len(data)).
		Dur("latency", raw.Latency).
		Msg("backend call")

	return raw, nil
}

func setHeaders(httpReq *http.Request, req *Request) {
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Cache-Control", "no-cache, no-store")
	httpReq.Header.Set("Pragma", "no-cache")
	httpReq.Header.Set("User-Agent", userAgent)
	if req.RequestID != "" {
		httpReq.Header.Set(HeaderRequestID, req.RequestID)
	}
	auth.Forward(httpReq, req.Credential)
}

// statusText returns the reason phrase the backend sent, falling back to
// the standard text for the code.
func statusText(resp *http.Response) string {
	text := strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)))
	if text == "" {
		return http.StatusText(resp.StatusCode)
	}
	return text
}

// IsSuccess reports whether the status is 2xx.
func (r *RawResponse) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}
