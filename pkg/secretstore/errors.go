package secretstore

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// NotFoundError indicates that a requested secret does not exist in the
// store. The engine treats it as "skip this secret" when it occurs
// between listing and fetching, since the secret was deleted mid-flight.
type NotFoundError struct {
	// Store is the name of the store where the secret was not found.
	Store string

	// Name is the secret identifier that could not be found.
	Name string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("secret %q not found in %s", e.Name, e.Store)
}

// AuthError indicates that the store rejected our credentials, either
// because authentication failed or because the identity lacks the
// required list/get permission.
type AuthError struct {
	Store   string
	Message string
	Err     error
}

func (e AuthError) Error() string {
	msg := fmt.Sprintf("authentication to %s failed", e.Store)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	return msg
}

func (e AuthError) Unwrap() error {
	return e.Err
}

// ThrottledError indicates the store rate-limited the request. The
// engine does not retry within a reload; the next tick tries again.
type ThrottledError struct {
	Store string

	// RetryAfter is the backend's suggested wait, zero when not given.
	RetryAfter time.Duration

	Err error
}

func (e ThrottledError) Error() string {
	return fmt.Sprintf("request to %s was throttled", e.Store)
}

func (e ThrottledError) Unwrap() error {
	return e.Err
}

// TransientError wraps a failure that is expected to heal on its own:
// network timeouts, connection resets, 5xx responses.
type TransientError struct {
	Store string
	Err   error
}

func (e TransientError) Error() string {
	return fmt.Sprintf("transient failure talking to %s: %v", e.Store, e.Err)
}

func (e TransientError) Unwrap() error {
	return e.Err
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var nfe NotFoundError
	return errors.As(err, &nfe)
}

// IsAuth reports whether err is an AuthError.
func IsAuth(err error) bool {
	var ae AuthError
	return errors.As(err, &ae)
}

// IsThrottled reports whether err is a ThrottledError.
func IsThrottled(err error) bool {
	var te ThrottledError
	return errors.As(err, &te)
}

// IsRetryable reports whether a failed reload using this store is worth
// retrying on the next tick. Everything except context cancellation is:
// auth tokens refresh, throttling passes, networks recover.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	return true
}
