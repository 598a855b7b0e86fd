package commands

import (
	"context"
	"fmt"

	"github.com/confsync/secretconf/internal/config"
	dserrors "github.com/confsync/secretconf/internal/errors"
	"github.com/confsync/secretconf/pkg/secretconf"
)

// buildProvider loads the configuration, constructs the configured store
// and runs the initial load. The caller owns Shutdown.
func buildProvider(ctx context.Context, cfg *config.Config, extra ...secretconf.Option) (*secretconf.Provider, error) {
	if err := cfg.Load(); err != nil {
		return nil, err
	}

	store, err := cfg.BuildStore(ctx)
	if err != nil {
		return nil, err
	}

	opts := append(cfg.ProviderOptions(), extra...)
	provider, err := secretconf.New(store, opts...)
	if err != nil {
		return nil, err
	}

	if err := provider.Initialize(ctx); err != nil {
		return nil, dserrors.StoreError(store.Name(), "initial load", err)
	}
	return provider, nil
}

// keyNotFound builds the error for a missing configuration key, listing
// nearby keys when the set is small enough to be useful.
func keyNotFound(provider *secretconf.Provider, key string) error {
	available := provider.Keys("")

	suggestion := "Use 'secretconf keys' to list available keys"
	if n := len(available); n > 0 && n <= 10 {
		suggestion = fmt.Sprintf("Available keys: %v", available)
	} else if n > 10 {
		suggestion = fmt.Sprintf("The store exposes %d keys. Use 'secretconf keys' to list them", n)
	}

	return dserrors.UserError{
		Message:    fmt.Sprintf("Key '%s' not found", key),
		Suggestion: suggestion,
	}
}
