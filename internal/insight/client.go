package insight

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/tidwall/gjson"

	"netsight/internal/metrics"
)

// DefaultTimeout bounds each upstream call, including reading the reply.
const DefaultTimeout = 10 * time.Second

const (
	apiKeyHeader = "X-Goog-Api-Key"
	replyPath    = "candidates.0.content.parts.0.text"
	maxReplySize = 4 << 20
)

// Client forwards prompts to a generateContent endpoint, falling back through
// the configured API keys in order when one is rate limited.
type Client struct {
	endpoint string
	keys     []string
	timeout  time.Duration
	http     *http.Client
	metrics  *metrics.Registry
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout sets the per-attempt deadline.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithMetrics records per-attempt results.
func WithMetrics(reg *metrics.Registry) Option {
	return func(c *Client) { c.metrics = reg }
}

// NewClient creates a client for endpoint. Keys are tried in the given order;
// empty keys are kept and simply fail upstream.
func NewClient(endpoint string, keys []string, opts ...Option) *Client {
	c := &Client{
		endpoint: endpoint,
		keys:     append([]string(nil), keys...),
		timeout:  DefaultTimeout,
		http:     &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type part struct {
	Text string `json:"text"`
}

type content struct {
	Parts []part `json:"parts"`
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

// Generate returns the model's reply for prompt. It stops at the first key
// that succeeds or fails with anything other than a rate limit.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(generateRequest{
		Contents: []content{{Parts: []part{{Text: prompt}}}},
	})
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}

	for _, key := range c.keys {
		text, err := c.attempt(ctx, key, body)
		c.observe(err)
		if err == nil {
			return text, nil
		}
		if errors.Is(err, ErrRateLimited) {
			continue
		}
		return "", err
	}
	return "", ErrAllKeysRateLimited
}

func (c *Client) attempt(ctx context.Context, key string, body []byte) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(apiKeyHeader, key)

	resp, err := c.http.Do(req)
	if err != nil {
		if isTimeout(err) {
			log.Printf("Insight: timeout with key %s", Redact(key))
			return "", fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		return "", fmt.Errorf("upstream request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		log.Printf("Insight: HTTP error with key %s: %s", Redact(key), resp.Status)
		return "", ErrRateLimited
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.Printf("Insight: HTTP error with key %s: %s", Redact(key), resp.Status)
		return "", &StatusError{Code: resp.StatusCode}
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxReplySize))
	if err != nil {
		if isTimeout(err) {
			return "", fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		return "", fmt.Errorf("read response: %w", err)
	}
	if !gjson.ValidBytes(raw) {
		return "", fmt.Errorf("%w: body is not JSON", ErrMalformedResponse)
	}
	reply := gjson.GetBytes(raw, replyPath)
	if reply.Type != gjson.String {
		return "", fmt.Errorf("%w: %s missing", ErrMalformedResponse, replyPath)
	}
	return reply.String(), nil
}

func (c *Client) observe(err error) {
	if c.metrics == nil {
		return
	}
	c.metrics.InsightAttempts.WithLabelValues(Classify(err)).Inc()
}

// Classify names the outcome of a call for logs and metrics.
func Classify(err error) string {
	var statusErr *StatusError
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrAllKeysRateLimited):
		return "exhausted"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.As(err, &statusErr):
		return "upstream_error"
	default:
		return "unknown"
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// Redact keeps a short prefix of a credential for logging.
func Redact(key string) string {
	const keep = 6
	if len(key) <= keep {
		return "***"
	}
	return key[:keep] + "***"
}
