package transport

import (
	"errors"
	"fmt"
	"time"
)

// SendErrKind tags a delivery failure so dispatch loops can branch on the
// outcome instead of string-matching platform errors.
type SendErrKind int

const (
	// SendFailed is any error without a more specific classification.
	SendFailed SendErrKind = iota
	// SendBlocked means the recipient is permanently unreachable
	// (blocked the bot, deactivated account, chat gone).
	SendBlocked
	// SendThrottled means the platform demanded a wait before retrying.
	// RetryAfter carries the mandated duration.
	SendThrottled
)

func (k SendErrKind) String() string {
	switch k {
	case SendBlocked:
		return "blocked"
	case SendThrottled:
		return "throttled"
	default:
		return "failed"
	}
}

// SendError wraps a platform send failure with its classification.
type SendError struct {
	Kind       SendErrKind
	RetryAfter time.Duration // set when Kind == SendThrottled
	Err        error
}

func (e *SendError) Error() string {
	if e.Err == nil {
		return "send " + e.Kind.String()
	}
	return fmt.Sprintf("send %s: %v", e.Kind, e.Err)
}

func (e *SendError) Unwrap() error { return e.Err }

// ClassifySend extracts the send classification from err.
// Unclassified errors report SendFailed.
func ClassifySend(err error) (SendErrKind, time.Duration) {
	var se *SendError
	if errors.As(err, &se) {
		return se.Kind, se.RetryAfter
	}
	return SendFailed, 0
}
