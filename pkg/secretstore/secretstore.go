// Package secretstore defines the interface between the configuration
// engine and a remote secret store.
//
// A Store lists the secrets a vault holds and fetches their values. The
// engine in pkg/secretconf drives a Store on every reload; it never talks
// to a backend directly. Adapters for concrete backends live in the
// subpackages azurekv, awssm and gcpsm, and an in-memory fake for tests
// lives in storetest.
//
// # Implementing a Store
//
// Implementations must be safe for concurrent use and must honor context
// cancellation on every call that touches the network. Errors should be
// translated into the taxonomy in this package (NotFoundError, AuthError,
// ThrottledError, TransientError) so the engine can classify failures
// without knowing the backend:
//
//	secret, err := store.GetSecret(ctx, "App--Timeout")
//	if secretstore.IsNotFound(err) {
//	    // secret was deleted between list and fetch
//	}
//
// Enumeration is paginated. ListSecrets returns a fresh pager on every
// call; a pager is single-use and not safe for concurrent use:
//
//	pager := store.ListSecrets(ctx)
//	for pager.More() {
//	    items, err := pager.NextPage(ctx)
//	    if err != nil {
//	        return err
//	    }
//	    for _, item := range items {
//	        ...
//	    }
//	}
//
// # Security Considerations
//
// Store implementations must never log secret values (wrap them in
// logging.Secret when a value must appear in a format string), must use
// secure transport, and must support context cancellation so a hung
// backend cannot stall the engine's reload loop.
package secretstore

import (
	"context"
	"time"
)

// Store is the client for one remote secret store (one vault, one region,
// one project - whatever the backend's unit of tenancy is).
//
// Implementations must be safe for concurrent use. The engine calls
// ListSecrets and GetSecret from a single reload goroutine, but nothing
// in this contract depends on that.
type Store interface {
	// Name returns a stable identifier for the store, used in error
	// messages and log lines. Examples: "azurekv:my-vault",
	// "awssm:us-east-1", "gcpsm:my-project".
	Name() string

	// ListSecrets begins a fresh enumeration of every secret the store
	// holds. The returned pager is single-use; call ListSecrets again to
	// restart enumeration. Listing returns identifying properties only,
	// never values.
	ListSecrets(ctx context.Context) Pager

	// GetSecret fetches the current version of a single secret by name.
	// Returns NotFoundError when the secret does not exist, AuthError,
	// ThrottledError or TransientError for the corresponding backend
	// failures.
	GetSecret(ctx context.Context, name string) (Secret, error)
}

// Pager iterates one enumeration of a store's secrets, one page at a
// time. Mirrors the SDK pagers it usually wraps: call More before each
// NextPage, stop when More reports false.
type Pager interface {
	// More reports whether another page is available.
	More() bool

	// NextPage fetches the next page of secret properties.
	NextPage(ctx context.Context) ([]Item, error)
}

// Item describes one secret during enumeration, without its value.
type Item struct {
	// Name is the secret's identifier within the store.
	Name string

	// Enabled reports whether the secret is active. Disabled secrets are
	// never loaded into configuration.
	Enabled bool

	// Updated is when the secret was last modified. Zero when the
	// backend does not report it.
	Updated time.Time
}

// Secret is one fetched secret value with the metadata the mapper and
// the snapshot builder need. Immutable once returned by a Store.
type Secret struct {
	// Name is the secret's identifier within the store.
	Name string

	// Value is the secret payload. Never log this field.
	Value string

	// ContentType describes the payload when the backend records one,
	// e.g. "application/x-pkcs12" for secrets backing managed
	// certificates. Empty when unknown.
	ContentType string

	// Tags are backend labels attached to the secret. May be nil.
	Tags map[string]string

	// Version is an opaque identifier for this revision of the secret.
	// Two fetches returning the same (Name, Version) pair are guaranteed
	// to carry the same Value.
	Version string

	// Enabled reports whether the secret is active.
	Enabled bool

	// Updated is when this version was created or last modified.
	Updated time.Time
}
