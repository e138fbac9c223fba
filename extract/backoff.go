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
	"math/rand/v2"
	"time"
)

// Backoff is an explicit retry policy: attempt budget, exponential delay
// with jitter, and injectable sleep/randomness so tests run against a
// fake clock.
type Backoff struct {
	// MaxAttempts is the total attempt budget including the first call.
	MaxAttempts int

	// BaseDelay is the wait after the first failed attempt; each further
	// failure doubles it up to MaxDelay.
	BaseDelay time.Duration

	// MaxDelay caps the exponential growth.
	MaxDelay time.Duration

	// Jitter is the fraction of the computed delay randomized away, in
	// [0, 1]. A delay d becomes uniform in [d*(1-Jitter), d].
	Jitter float64

	// Sleep waits for d or until ctx is done. Nil means a real
	// context-aware sleep; tests inject their own.
	Sleep func(ctx context.Context, d time.Duration) error

	// Rand returns a float64 in [0, 1) for jitter. Nil means
	// math/rand/v2.
	Rand func() float64
}

// DefaultBackoff mirrors the extraction service's observed failure
// profile: three attempts at 1s, 2s, 4s with 20% jitter.
func DefaultBackoff() Backoff {
	return Backoff{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		MaxDelay:    8 * time.Second,
		Jitter:      0.2,
	}
}

// Delay computes the wait before attempt+1, where attempt counts failed
// attempts so far starting at 1.
func (b Backoff) Delay(attempt int) time.Duration {
	delay := b.BaseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= b.MaxDelay {
			delay = b.MaxDelay
			break
		}
	}
	if b.Jitter > 0 {
		r := b.Rand
		if r == nil {
			r = rand.Float64
		}
		delay -= time.Duration(float64(delay) * b.Jitter * r())
	}
	return delay
}

// wait sleeps for the post-attempt delay, honoring cancellation.
func (b Backoff) wait(ctx context.Context, attempt int) error {
	if b.Sleep != nil {
		return b.Sleep(ctx, b.Delay(attempt))
	}
	timer := time.NewTimer(b.Delay(attempt))
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
