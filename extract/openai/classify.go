package openai

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/poiesic/expensit/extract"
)

// Status codes embedded in langchaingo's API error strings. The library
// does not expose a typed status, so classification sniffs the message.
var terminalStatusMarkers = []string{
	"status code: 400",
	"status code: 401",
	"status code: 403",
	"status code: 404",
	"status code: 413",
	"status code: 422",
	"invalid api key",
	"api key not valid",
}

// classifyCallError maps a transport-level failure onto the extract
// taxonomy. Auth and malformed-request failures are terminal; timeouts,
// rate limits, 5xx responses and network faults stay retryable as-is.
func classifyCallError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return err
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range terminalStatusMarkers {
		if strings.Contains(msg, marker) {
			if strings.Contains(msg, "401") || strings.Contains(msg, "403") || strings.Contains(msg, "api key") {
				return fmt.Errorf("%w: %w", extract.ErrAuthFailed, err)
			}
			return fmt.Errorf("%w: %w", extract.ErrUnsupported, err)
		}
	}
	return err
}
