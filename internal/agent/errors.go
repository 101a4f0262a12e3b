package agent

import (
	"context"
	"errors"
	"fmt"
)

// Error taxonomy for backend fulfillment. The coordinator converts every one
// of these into a fixed user-facing utterance; none of them propagate to the
// dialogue layer as errors.
var (
	// ErrConfigMissing: the webhook endpoint is not configured. Fatal for
	// the request, not for the process.
	ErrConfigMissing = errors.New("webhook endpoint not configured")
	// ErrTimeout: the backend exceeded its deadline.
	ErrTimeout = errors.New("webhook request timed out")
)

// StatusError reports a non-2xx response from the backend.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("webhook returned status %d", e.Code)
}

// FailureText maps a backend error to the utterance spoken for the given
// operation kind.
func FailureText(kind Kind, err error) string {
	var se *StatusError
	switch {
	case errors.Is(err, ErrConfigMissing):
		return configMissingText[kind]
	case errors.Is(err, ErrTimeout) || errors.Is(err, context.DeadlineExceeded):
		return timeoutText[kind]
	case errors.As(err, &se):
		return backendErrorText[kind]
	case errors.Is(err, context.Canceled):
		return supersededText[kind]
	default:
		return unexpectedText[kind]
	}
}
