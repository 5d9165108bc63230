package backend

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
)

// Kind categorizes a remote invocation failure so callers can apply uniform
// fallback logic regardless of the underlying transport's error shape.
type Kind int

const (
	// KindUnclassified is any failure that fits no other category.
	KindUnclassified Kind = iota
	// KindAuthRequired means no authenticated user ID was supplied; the
	// pipeline must short-circuit before any remote call.
	KindAuthRequired
	// KindNetwork is a transport-level failure (connection refused, DNS,
	// timeout, CORS rejection). Recoverable via fallback for timers.
	KindNetwork
	// KindBackend means the remote call completed but reported an
	// application error.
	KindBackend
)

func (k Kind) String() string {
	switch k {
	case KindAuthRequired:
		return "auth_required"
	case KindNetwork:
		return "network"
	case KindBackend:
		return "backend"
	default:
		return "unclassified"
	}
}

// Error is a typed remote invocation failure.
type Error struct {
	Kind Kind
	Op   string // "process-chat" or "process-task"
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s error", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s error: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the Kind of err, or KindUnclassified when err carries no
// backend error.
func KindOf(err error) Kind {
	var be *Error
	if errors.As(err, &be) {
		return be.Kind
	}
	return KindUnclassified
}

// normalize wraps a transport error into a typed Error, folding the many
// shapes of network failure into a single KindNetwork.
func normalize(op string, err error) *Error {
	var be *Error
	if errors.As(err, &be) {
		return be
	}
	if isNetworkError(err) {
		return &Error{Kind: KindNetwork, Op: op, Err: err}
	}
	return &Error{Kind: KindUnclassified, Op: op, Err: err}
}

func isNetworkError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	// CORS rejections reach us as opaque fetch failures from browser-side
	// proxies; match the message shape.
	msg := err.Error()
	return strings.Contains(msg, "CORS") || strings.Contains(msg, "Failed to fetch")
}
