// Package retrier retries flaky calls with capped exponential backoff.
package retrier

import (
	"context"
	"errors"
	"math/rand"
	"time"
)

// Backoff describes the wait between attempts.
type Backoff struct {
	Initial time.Duration
	Max     time.Duration
	Factor  float64
	// Jitter spreads each wait by up to ±Jitter of its length.
	Jitter float64
}

// DefaultBackoff starts at 1s and doubles up to 30s with 10% jitter.
var DefaultBackoff = Backoff{
	Initial: time.Second,
	Max:     30 * time.Second,
	Factor:  2,
	Jitter:  0.1,
}

// Delay returns the wait before retry n (1-based), without jitter.
func (b Backoff) Delay(n int) time.Duration {
	if n <= 0 {
		return 0
	}
	d := float64(b.Initial)
	for i := 1; i < n; i++ {
		d *= b.Factor
		if b.Max > 0 && d >= float64(b.Max) {
			return b.Max
		}
	}
	if b.Max > 0 && d > float64(b.Max) {
		return b.Max
	}
	return time.Duration(d)
}

func (b Backoff) jittered(n int) time.Duration {
	d := b.Delay(n)
	if b.Jitter <= 0 {
		return d
	}
	spread := (rand.Float64()*2 - 1) * b.Jitter * float64(d)
	return max(time.Duration(float64(d)+spread), 0)
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying. Do stops at once and returns
// err itself.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// Retrier runs a call up to 1+retries times.
type Retrier struct {
	backoff Backoff
	retries int
	onRetry func(retry int, err error, wait time.Duration)
}

type Option func(*Retrier)

func WithBackoff(b Backoff) Option {
	return func(r *Retrier) {
		r.backoff = b
	}
}

// WithInitialInterval overrides only the first wait of the backoff.
func WithInitialInterval(d time.Duration) Option {
	return func(r *Retrier) {
		r.backoff.Initial = d
	}
}

// WithMaxRetries sets how many times a failed call is repeated. Zero means a
// single attempt.
func WithMaxRetries(n int) Option {
	return func(r *Retrier) {
		r.retries = max(n, 0)
	}
}

// OnRetry is called before every retry with the error that caused it.
func OnRetry(fn func(retry int, err error, wait time.Duration)) Option {
	return func(r *Retrier) {
		r.onRetry = fn
	}
}

func New(opts ...Option) *Retrier {
	r := &Retrier{backoff: DefaultBackoff, retries: 5}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Do calls fn until it succeeds, returns a Permanent error, the retries are
// spent or ctx is done. The last error from fn is returned.
func (r *Retrier) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	err := fn(ctx)
	for retry := 1; err != nil && retry <= r.retries; retry++ {
		var p *permanentError
		if errors.As(err, &p) {
			return p.err
		}

		wait := r.backoff.jittered(retry)
		if r.onRetry != nil {
			r.onRetry(retry, err, wait)
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		err = fn(ctx)
	}

	var p *permanentError
	if errors.As(err, &p) {
		return p.err
	}
	return err
}
