/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package retry retries model provider calls that fail with rate limit or
// transient server errors.
package retry

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"time"

	"github.com/chainguard-dev/clog"
)

// Config controls backoff between attempts.
type Config struct {
	// MaxRetries is the number of retries after the first attempt. 0 disables retrying.
	MaxRetries int `json:"max_retries" yaml:"max_retries"`
	// BaseBackoff is the wait before the first retry; it doubles per attempt.
	BaseBackoff time.Duration `json:"base_backoff" yaml:"base_backoff"`
	// MaxBackoff caps the exponential wait.
	MaxBackoff time.Duration `json:"max_backoff" yaml:"max_backoff"`
	// MaxJitter bounds the random delay added to each wait.
	MaxJitter time.Duration `json:"max_jitter" yaml:"max_jitter"`
}

// Validate rejects negative settings.
func (c Config) Validate() error {
	switch {
	case c.MaxRetries < 0:
		return errors.New("max retries cannot be negative")
	case c.BaseBackoff < 0:
		return errors.New("base backoff cannot be negative")
	case c.MaxBackoff < 0:
		return errors.New("max backoff cannot be negative")
	case c.MaxJitter < 0:
		return errors.New("max jitter cannot be negative")
	}
	return nil
}

// Default is tuned for provider quotas, which tend to need seconds rather
// than milliseconds to recover.
func Default() Config {
	return Config{
		MaxRetries:  5,
		BaseBackoff: time.Second,
		MaxBackoff:  60 * time.Second,
		MaxJitter:   500 * time.Millisecond,
	}
}

// StatusRetryable reports whether an HTTP status from a model provider is
// worth retrying: rate limiting, gateway errors and Anthropic's 529 overload.
func StatusRetryable(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout,
		529:
		return true
	}
	return false
}

// Do calls fn until it succeeds, returns an error isRetryable rejects, or
// the retry budget is spent. Waits honour ctx cancellation.
func Do[T any](ctx context.Context, cfg Config, operation string, isRetryable func(error) bool, fn func() (T, error)) (T, error) {
	var (
		out T
		err error
	)
	for attempt := 0; ; attempt++ {
		out, err = fn()
		if err == nil || !isRetryable(err) {
			return out, err
		}
		if attempt >= cfg.MaxRetries {
			break
		}

		wait := min(cfg.BaseBackoff<<attempt, cfg.MaxBackoff) + jitter(cfg.MaxJitter)
		clog.FromContext(ctx).With("operation", operation).
			With("attempt", attempt+1).
			With("max_retries", cfg.MaxRetries).
			With("backoff", wait).
			With("error", err.Error()).
			Warn("Provider call failed, retrying")

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return out, ctx.Err()
		case <-timer.C:
		}
	}
	return out, fmt.Errorf("%s failed after %d retries: %w", operation, cfg.MaxRetries, err)
}

func jitter(limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(limit)))
	if err != nil {
		return 0
	}
	return time.Duration(n.Int64())
}
