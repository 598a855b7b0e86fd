// Package secretconf exposes a remote secret store as hierarchical
// application configuration, kept current through periodic background
// reloads.
//
// The engine lists and fetches secrets through a secretstore.Store, maps
// secret names into configuration keys ("App--Timeout" becomes
// "App:Timeout"), assembles an immutable Snapshot and publishes it with
// a single atomic pointer swap. Readers always see a fully-formed
// snapshot; a failed reload keeps the previous one in place and heals on
// the next tick.
//
// # Usage
//
//	store, err := azurekv.New(azurekv.Config{VaultURL: url})
//	if err != nil {
//	    return err
//	}
//	provider, err := secretconf.New(store,
//	    secretconf.WithReloadInterval(30*time.Second))
//	if err != nil {
//	    return err
//	}
//	if err := provider.Initialize(ctx); err != nil {
//	    return err // FatalLoadError: no usable configuration
//	}
//	defer provider.Shutdown()
//
//	timeout, _ := provider.Value("App:Timeout")
//	provider.OnChange(func(snap *secretconf.Snapshot) {
//	    // re-bind configuration from snap
//	})
//
// # Consistency model
//
// Exactly one Snapshot is active at any instant. Publication is an
// atomic pointer replacement, so a reader observes either the old
// snapshot in full or the new one in full, never a mix. Callers reading
// several related keys should take Provider.Snapshot once and read from
// it. Change notifications are delivered strictly after publication.
//
// # Failure model
//
// The initial load is fatal when it fails (unless
// WithTolerateInitialFailure downgrades it to an empty snapshot). Every
// later failure is contained: it is visible through Health and the
// WithReloadErrorHandler callback, never through Value.
package secretconf
