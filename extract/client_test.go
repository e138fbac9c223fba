package extract

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedExtractor fails a fixed number of times before succeeding.
type scriptedExtractor struct {
	failures  int
	failWith  error
	calls     int
	lastCtx   context.Context
	succeedAs *Result
}

func (s *scriptedExtractor) Extract(ctx context.Context, image []byte, contentType string) (*Result, error) {
	s.calls++
	s.lastCtx = ctx
	if s.calls <= s.failures {
		return nil, s.failWith
	}
	if s.succeedAs != nil {
		return s.succeedAs, nil
	}
	return &Result{Vendor: "Test Vendor", Amount: decimal.NewFromInt(100), HasAmount: true}, nil
}

// fakeSleep records requested delays without waiting.
func fakeSleep(delays *[]time.Duration) func(context.Context, time.Duration) error {
	return func(_ context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return nil
	}
}

func newTestClient(t *testing.T, inner Extractor, maxAttempts int, delays *[]time.Duration) *Client {
	t.Helper()
	client, err := NewClient(inner, WithBackoff(Backoff{
		MaxAttempts: maxAttempts,
		BaseDelay:   time.Second,
		MaxDelay:    8 * time.Second,
		Sleep:       fakeSleep(delays),
	}))
	require.NoError(t, err)
	return client
}

func TestClient_SucceedsFirstAttempt(t *testing.T) {
	inner := &scriptedExtractor{}
	var delays []time.Duration
	client := newTestClient(t, inner, 3, &delays)

	result, err := client.Extract(context.Background(), []byte("img"), "image/jpeg")
	require.NoError(t, err)
	assert.Equal(t, "Test Vendor", result.Vendor)
	assert.Equal(t, 1, inner.calls)
	assert.Empty(t, delays)
}

func TestClient_RetriesUnderCap(t *testing.T) {
	inner := &scriptedExtractor{failures: 2, failWith: errors.New("transient: status code: 503")}
	var delays []time.Duration
	client := newTestClient(t, inner, 3, &delays)

	result, err := client.Extract(context.Background(), []byte("img"), "image/jpeg")
	require.NoError(t, err)
	assert.True(t, result.HasAmount)
	assert.Equal(t, 3, inner.calls)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, delays)
}

func TestClient_ExhaustionSurfacesErrFailed(t *testing.T) {
	cause := errors.New("transient: rate limited")
	inner := &scriptedExtractor{failures: 10, failWith: cause}
	var delays []time.Duration
	client := newTestClient(t, inner, 3, &delays)

	_, err := client.Extract(context.Background(), []byte("img"), "image/jpeg")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFailed)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, 3, inner.calls)
}

func TestClient_TerminalFailsImmediately(t *testing.T) {
	inner := &scriptedExtractor{failures: 10, failWith: ErrUnsupported}
	var delays []time.Duration
	client := newTestClient(t, inner, 5, &delays)

	_, err := client.Extract(context.Background(), []byte("img"), "image/jpeg")
	assert.ErrorIs(t, err, ErrUnsupported)
	assert.NotErrorIs(t, err, ErrFailed)
	assert.Equal(t, 1, inner.calls)
	assert.Empty(t, delays)
}

func TestClient_AuthFailureIsTerminal(t *testing.T) {
	inner := &scriptedExtractor{failures: 10, failWith: ErrAuthFailed}
	var delays []time.Duration
	client := newTestClient(t, inner, 3, &delays)

	_, err := client.Extract(context.Background(), []byte("img"), "image/jpeg")
	assert.ErrorIs(t, err, ErrAuthFailed)
	assert.Equal(t, 1, inner.calls)
}

func TestClient_DeadlineReportedAsTimeout(t *testing.T) {
	inner := &scriptedExtractor{failures: 10, failWith: context.DeadlineExceeded}
	var delays []time.Duration
	client := newTestClient(t, inner, 2, &delays)

	_, err := client.Extract(context.Background(), []byte("img"), "image/jpeg")
	assert.ErrorIs(t, err, ErrFailed)
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestClient_CanceledContextStopsRetrying(t *testing.T) {
	inner := &scriptedExtractor{failures: 10, failWith: errors.New("transient")}
	client, err := NewClient(inner, WithBackoff(Backoff{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		MaxDelay:    8 * time.Second,
		Sleep: func(ctx context.Context, _ time.Duration) error {
			return ctx.Err()
		},
	}))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = client.Extract(ctx, []byte("img"), "image/jpeg")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, inner.calls)
}

func TestClient_AttemptCarriesDeadline(t *testing.T) {
	inner := &scriptedExtractor{}
	client, err := NewClient(inner, WithAttemptTimeout(time.Minute))
	require.NoError(t, err)

	_, err = client.Extract(context.Background(), []byte("img"), "image/jpeg")
	require.NoError(t, err)

	_, ok := inner.lastCtx.Deadline()
	assert.True(t, ok, "attempt context should carry a deadline")
}

func TestNewClient_RequiresExtractor(t *testing.T) {
	_, err := NewClient(nil)
	assert.ErrorIs(t, err, ErrExtractorRequired)
}

func TestIsTerminal(t *testing.T) {
	assert.True(t, IsTerminal(ErrUnsupported))
	assert.True(t, IsTerminal(ErrAuthFailed))
	assert.False(t, IsTerminal(ErrMalformedResponse))
	assert.False(t, IsTerminal(errors.New("anything else")))
	assert.False(t, IsTerminal(context.DeadlineExceeded))
}
