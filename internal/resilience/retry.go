// Package resilience holds the retry policy shared by every outbound call:
// report scraping, model extraction and import downloads.
package resilience

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
)

// Attempt describes a failed try that is about to be retried.
type Attempt struct {
	// N is the 1-based number of the attempt that failed.
	N    int
	Wait time.Duration
	Err  error
}

// Policy controls how an operation is retried.
type Policy struct {
	// Attempts is the total number of tries, first one included.
	Attempts int
	// Waits, when set, is the exact pause before each retry; the last
	// entry repeats. It replaces the exponential backoff.
	Waits []time.Duration
	// Base is the first exponential wait, doubled by Factor up to Cap.
	Base   time.Duration
	Cap    time.Duration
	Factor float64
	// Jitter spreads exponential waits by ±Jitter of their length.
	Jitter float64
	// Retryable decides whether an error is worth another try.
	// Defaults to IsTransient.
	Retryable func(error) bool
	// OnRetry runs before each pause.
	OnRetry func(Attempt)
}

// Exponential returns a jittered exponential policy starting at base.
func Exponential(attempts int, base time.Duration) Policy {
	return Policy{
		Attempts: attempts,
		Base:     base,
		Cap:      30 * time.Second,
		Factor:   2,
		Jitter:   0.25,
	}
}

// Schedule returns a policy that pauses exactly waits between tries, so it
// makes len(waits)+1 attempts.
func Schedule(waits ...time.Duration) Policy {
	return Policy{Attempts: len(waits) + 1, Waits: waits}
}

// Do runs fn under p.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	_, _, err := Retry(ctx, p, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// Retry runs fn until it succeeds, returns an error p does not consider
// retryable, the attempts run out or ctx ends. It returns the value, the
// number of attempts made, and the last error.
func Retry[T any](ctx context.Context, p Policy, fn func(ctx context.Context) (T, error)) (T, int, error) {
	p = p.normalize()
	var zero T
	for n := 1; ; n++ {
		v, err := fn(ctx)
		if err == nil {
			return v, n, nil
		}
		if n >= p.Attempts || ctx.Err() != nil || !p.Retryable(err) {
			return zero, n, err
		}
		wait := p.wait(n)
		if p.OnRetry != nil {
			p.OnRetry(Attempt{N: n, Wait: wait, Err: err})
		}
		if !pause(ctx, wait) {
			return zero, n, err
		}
	}
}

func (p Policy) normalize() Policy {
	if p.Attempts <= 0 {
		p.Attempts = 3
	}
	if p.Base <= 0 {
		p.Base = 500 * time.Millisecond
	}
	if p.Cap <= 0 {
		p.Cap = 30 * time.Second
	}
	if p.Factor < 1 {
		p.Factor = 2
	}
	if p.Jitter < 0 {
		p.Jitter = 0
	}
	if p.Retryable == nil {
		p.Retryable = IsTransient
	}
	return p
}

// wait returns the pause after failed attempt n (1-based).
func (p Policy) wait(n int) time.Duration {
	if len(p.Waits) > 0 {
		return p.Waits[min(n, len(p.Waits))-1]
	}
	d := math.Min(float64(p.Base)*math.Pow(p.Factor, float64(n-1)), float64(p.Cap))
	if p.Jitter > 0 {
		d += d * p.Jitter * (2*rand.Float64() - 1)
	}
	return time.Duration(math.Max(d, 0))
}

func pause(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// Logged returns an OnRetry hook that logs each retry for service's op.
func Logged(service, op string) func(Attempt) {
	return func(a Attempt) {
		zap.L().Warn("retrying",
			zap.String("service", service),
			zap.String("op", op),
			zap.Int("attempt", a.N),
			zap.Duration("wait", a.Wait),
			zap.Error(a.Err),
		)
	}
}
