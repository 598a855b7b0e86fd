package errors

import (
	"fmt"
	"strings"

	"github.com/confsync/secretconf/pkg/secretstore"
)

// UserError represents an error that should be shown to the user with helpful context
type UserError struct {
	Message    string
	Suggestion string
	Details    string
	Err        error
}

func (e UserError) Error() string {
	var parts []string

	if e.Message != "" {
		parts = append(parts, e.Message)
	} else if e.Err != nil {
		parts = append(parts, e.Err.Error())
	}

	if e.Details != "" {
		parts = append(parts, "\n  Details: "+e.Details)
	}

	if e.Suggestion != "" {
		parts = append(parts, "\n  💡 Try: "+e.Suggestion)
	}

	return strings.Join(parts, "")
}

func (e UserError) Unwrap() error {
	return e.Err
}

// ConfigError represents a configuration error with helpful context
type ConfigError struct {
	Field      string
	Value      interface{}
	Message    string
	Suggestion string
}

func (e ConfigError) Error() string {
	msg := "Configuration error"
	if e.Field != "" {
		msg += fmt.Sprintf(" in field '%s'", e.Field)
	}
	if e.Value != nil {
		msg += fmt.Sprintf(" (value: %v)", e.Value)
	}
	msg += ": " + e.Message

	if e.Suggestion != "" {
		msg += "\n  💡 " + e.Suggestion
	}

	return msg
}

// StoreError enhances secret store errors with context
func StoreError(store string, operation string, err error) error {
	return UserError{
		Message:    fmt.Sprintf("%s error during %s", store, operation),
		Suggestion: getStoreSuggestion(store, err),
		Err:        err,
	}
}

// getStoreSuggestion returns helpful suggestions based on the store and error
func getStoreSuggestion(store string, err error) string {
	switch {
	case secretstore.IsAuth(err):
		switch {
		case strings.HasPrefix(store, "azurekv"):
			return "Check the service principal credentials and that it has the Key Vault Secrets User role"
		case strings.HasPrefix(store, "awssm"):
			return "Configure AWS credentials and check IAM permissions for secretsmanager:ListSecrets and secretsmanager:GetSecretValue"
		case strings.HasPrefix(store, "gcpsm"):
			return "Check the service account key and that it has the Secret Manager Secret Accessor role"
		}
		return "Check the credentials configured for this store"

	case secretstore.IsThrottled(err):
		return "The store rate limited us. Lower the reload frequency or fetch concurrency"

	case secretstore.IsNotFound(err):
		return "Verify the secret name. Use 'secretconf keys' to list what the store exposes"
	}

	errStr := err.Error()
	if strings.Contains(errStr, "timeout") || strings.Contains(errStr, "deadline exceeded") {
		return "The operation timed out. Check your network connection or raise reload.timeout_ms"
	}
	if strings.Contains(errStr, "connection refused") || strings.Contains(errStr, "no such host") {
		return "Unable to connect. Check your network and the store endpoint in the configuration"
	}

	return ""
}

// SimplifyError simplifies complex error messages for users
func SimplifyError(err error) error {
	if err == nil {
		return nil
	}

	// Already a user-friendly error
	if _, ok := err.(UserError); ok {
		return err
	}
	if _, ok := err.(ConfigError); ok {
		return err
	}

	errStr := err.Error()

	if strings.Contains(errStr, "yaml:") {
		return ConfigError{
			Message:    "Invalid YAML format",
			Suggestion: "Check for indentation errors and missing quotes",
		}
	}

	if strings.Contains(errStr, "permission denied") {
		return UserError{
			Message:    "Permission denied",
			Suggestion: "Check file permissions or run with appropriate privileges",
			Err:        err,
		}
	}

	if strings.Contains(errStr, "no such file or directory") {
		return UserError{
			Message:    "File or directory not found",
			Suggestion: "Verify the path exists and is spelled correctly",
			Err:        err,
		}
	}

	return err
}
