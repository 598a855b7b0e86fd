package secretconf

import (
	"fmt"
	"time"
)

// ConfigurationError reports invalid construction-time options. Returned
// by New before any load is attempted.
type ConfigurationError struct {
	// Field is the option that was invalid.
	Field string

	// Message describes what was wrong.
	Message string

	// Suggestion tells the caller how to fix it.
	Suggestion string
}

func (e ConfigurationError) Error() string {
	msg := "configuration error"
	if e.Field != "" {
		msg += fmt.Sprintf(" in option '%s'", e.Field)
	}
	msg += ": " + e.Message
	if e.Suggestion != "" {
		msg += "\n  Try: " + e.Suggestion
	}
	return msg
}

// FatalLoadError reports that the initial load failed and the provider
// holds no usable snapshot. Only Initialize returns it, and only when
// TolerateInitialFailure is off.
type FatalLoadError struct {
	Store string
	Err   error
}

func (e FatalLoadError) Error() string {
	return fmt.Sprintf("initial secret load from %s failed: %v", e.Store, e.Err)
}

func (e FatalLoadError) Unwrap() error {
	return e.Err
}

// ReloadError describes one failed background reload attempt. It is
// passed to the OnReloadError callback and recorded in Health; it never
// reaches a reader.
type ReloadError struct {
	// Store is the store the reload was talking to.
	Store string

	// Attempt is when the reload started.
	Attempt time.Time

	// ConsecutiveFailures counts failed attempts since the last success,
	// including this one.
	ConsecutiveFailures int

	Err error
}

func (e ReloadError) Error() string {
	return fmt.Sprintf("reload from %s failed (attempt %d since last success): %v",
		e.Store, e.ConsecutiveFailures, e.Err)
}

func (e ReloadError) Unwrap() error {
	return e.Err
}
