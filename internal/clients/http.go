package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vadiminshakov/lendscope/internal/metrics"
	"github.com/vadiminshakov/lendscope/pkg/retrier"
)

const (
	defaultTimeout    = 15 * time.Second
	defaultMaxRetries = 2
	defaultRetryDelay = 500 * time.Millisecond
	maxErrorBodyBytes = 512
)

// ErrUnavailable is returned when an upstream could not be reached or
// answered with a non-success status.
var ErrUnavailable = errors.New("upstream unavailable")

// Option configures the transport shared by all clients.
type Option func(*transport)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(t *transport) {
		if c != nil {
			t.http = c
		}
	}
}

// WithRetrier replaces the default retry policy.
func WithRetrier(r *retrier.Retrier) Option {
	return func(t *transport) {
		if r != nil {
			t.retrier = r
		}
	}
}

// WithMetrics records per-call outcomes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(t *transport) {
		t.metrics = m
	}
}

// transport performs JSON requests with retries, metrics and logging.
type transport struct {
	l       *zap.Logger
	name    string
	http    *http.Client
	retrier *retrier.Retrier
	metrics *metrics.Metrics
}

func newTransport(l *zap.Logger, name string, opts ...Option) *transport {
	if l == nil {
		l = zap.NewNop()
	}
	t := &transport{
		l:    l.With(zap.String("client", name)),
		name: name,
		http: &http.Client{Timeout: defaultTimeout},
		retrier: retrier.New(
			retrier.WithMaxRetries(defaultMaxRetries),
			retrier.WithInitialInterval(defaultRetryDelay),
		),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *transport) getJSON(ctx context.Context, url string, out any) error {
	return t.do(ctx, http.MethodGet, url, nil, out)
}

func (t *transport) postJSON(ctx context.Context, url string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return errors.Wrap(err, "failed to marshal request")
	}
	return t.do(ctx, http.MethodPost, url, payload, out)
}

func (t *transport) do(ctx context.Context, method, url string, payload []byte, out any) error {
	started := time.Now()

	err := t.retrier.Do(ctx, func(ctx context.Context) error {
		return t.once(ctx, method, url, payload, out)
	})
	t.metrics.ObserveUpstream(t.name, started, err)

	if err != nil {
		return errors.Wrapf(ErrUnavailable, "%s %s: %v", t.name, method, err)
	}
	return nil
}

func (t *transport) once(ctx context.Context, method, url string, payload []byte, out any) error {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return retrier.Permanent(errors.Wrap(err, "failed to create HTTP request"))
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := t.http.Do(req)
	if err != nil {
		return errors.Wrap(err, "HTTP request failed")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "failed to read response body")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		statusErr := fmt.Errorf("status %d: %s", resp.StatusCode, truncate(raw, maxErrorBodyBytes))
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return retrier.Permanent(statusErr)
		}
		return statusErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return retrier.Permanent(errors.Wrap(err, "failed to unmarshal response"))
	}
	return nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
