// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// DefaultAttemptTimeout bounds a single call to the extraction service.
const DefaultAttemptTimeout = 60 * time.Second

// Client decorates an Extractor with retry. Terminal failures pass
// through immediately; retryable failures are reattempted under the
// Backoff policy, and exhaustion surfaces as ErrFailed wrapping the last
// attempt's error (ErrTimeout when the last attempt hit its deadline).
type Client struct {
	inner          Extractor
	backoff        Backoff
	attemptTimeout time.Duration
	logger         *slog.Logger
}

var _ Extractor = (*Client)(nil)

// ClientOption configures a Client.
type ClientOption func(*Client) error

// WithBackoff replaces the retry policy.
func WithBackoff(b Backoff) ClientOption {
	return func(c *Client) error {
		if b.MaxAttempts < 1 {
			return fmt.Errorf("backoff needs at least one attempt, got %d", b.MaxAttempts)
		}
		c.backoff = b
		return nil
	}
}

// WithAttemptTimeout bounds each individual service call.
func WithAttemptTimeout(d time.Duration) ClientOption {
	return func(c *Client) error {
		if d <= 0 {
			return fmt.Errorf("attempt timeout must be positive, got %v", d)
		}
		c.attemptTimeout = d
		return nil
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) error {
		if logger == nil {
			return fmt.Errorf("logger cannot be nil")
		}
		c.logger = logger
		return nil
	}
}

// NewClient wraps inner with the default backoff policy and per-attempt
// timeout, then applies opts.
func NewClient(inner Extractor, opts ...ClientOption) (*Client, error) {
	if inner == nil {
		return nil, ErrExtractorRequired
	}
	c := &Client{
		inner:          inner,
		backoff:        DefaultBackoff(),
		attemptTimeout: DefaultAttemptTimeout,
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	c.logger = c.logger.With("component", "extract-client")
	return c, nil
}

// Extract runs the inner extractor under the retry policy.
func (c *Client) Extract(ctx context.Context, image []byte, contentType string) (*Result, error) {
	var lastErr error
	for attempt := 1; attempt <= c.backoff.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		result, err := c.attempt(ctx, image, contentType)
		if err == nil {
			if attempt > 1 {
				c.logger.Debug("extraction succeeded after retry", "attempt", attempt)
			}
			return result, nil
		}
		if IsTerminal(err) {
			return nil, err
		}
		lastErr = err
		c.logger.Warn("extraction attempt failed",
			"attempt", attempt,
			"maxAttempts", c.backoff.MaxAttempts,
			"err", err)

		if attempt == c.backoff.MaxAttempts {
			break
		}
		if err := c.backoff.wait(ctx, attempt); err != nil {
			return nil, err
		}
	}

	if errors.Is(lastErr, context.DeadlineExceeded) {
		return nil, fmt.Errorf("%w: %w: %w", ErrFailed, ErrTimeout, lastErr)
	}
	return nil, fmt.Errorf("%w: %w", ErrFailed, lastErr)
}

// attempt makes one bounded call to the inner extractor.
func (c *Client) attempt(ctx context.Context, image []byte, contentType string) (*Result, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.attemptTimeout)
	defer cancel()
	return c.inner.Extract(attemptCtx, image, contentType)
}
