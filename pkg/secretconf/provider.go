package secretconf

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/confsync/secretconf/pkg/secretstore"
)

// ErrNotRunning is returned by Refresh when the provider has not been
// initialized or has been shut down.
var ErrNotRunning = errors.New("secretconf: provider is not running")

// Health is a best-effort view of the reload loop's state. Fields are
// owned by the loop; readers get an eventually-consistent copy.
type Health struct {
	// LastAttempt is when the most recent reload attempt started.
	LastAttempt time.Time

	// LastSuccess is when a reload last completed successfully. A no-op
	// reload (unchanged source) still advances it.
	LastSuccess time.Time

	// LastError is the error from the most recent failed attempt, nil
	// after a success.
	LastError error

	// ConsecutiveFailures counts failed attempts since the last success.
	ConsecutiveFailures int

	// Collisions are the mapping collisions observed in the last
	// successful build.
	Collisions []Collision
}

// Provider exposes a secret store as hierarchical configuration and
// keeps it current through periodic background reloads.
//
// Lifecycle: New validates options, Initialize performs the blocking
// first load and starts the reload loop, Shutdown stops the loop. After
// a successful Initialize, Value and Keys always serve a fully-formed
// snapshot and never block on a reload - a failed reload leaves the
// previous snapshot in place. The last snapshot stays readable after
// Shutdown.
type Provider struct {
	store secretstore.Store
	opts  options

	active atomic.Pointer[Snapshot]

	notify *notifier

	healthMu sync.Mutex
	health   Health

	refreshCh chan chan error
	stopCh    chan struct{}
	done      chan struct{}
	stopOnce  sync.Once

	initMu      sync.Mutex
	initialized bool
	loopRunning atomic.Bool
}

// New creates a Provider for the given store. Invalid options fail here
// with ConfigurationError, before any load is attempted.
func New(store secretstore.Store, opts ...Option) (*Provider, error) {
	if store == nil {
		return nil, ConfigurationError{
			Field:      "store",
			Message:    "a secret store client is required",
			Suggestion: "pass an adapter from pkg/secretstore (azurekv, awssm, gcpsm)",
		}
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	if o.mapper == nil {
		return nil, ConfigurationError{
			Field:      "mapper",
			Message:    "mapper must not be nil",
			Suggestion: "omit WithMapper to use the default policy",
		}
	}
	if o.reloadInterval <= 0 {
		return nil, ConfigurationError{
			Field:      "reload interval",
			Message:    "reload interval must be positive",
			Suggestion: "use a value in the tens of seconds to minutes range",
		}
	}
	if o.fetchConcurrency <= 0 {
		return nil, ConfigurationError{
			Field:      "fetch concurrency",
			Message:    "fetch concurrency must be positive",
		}
	}

	return &Provider{
		store:     store,
		opts:      o,
		notify:    newNotifier(o.logger),
		refreshCh: make(chan chan error),
		stopCh:    make(chan struct{}),
		done:      make(chan struct{}),
	}, nil
}

// Initialize performs the initial synchronous load and, on success,
// starts the background reload loop. It blocks until the first snapshot
// is ready because configuration consumers need usable values before
// proceeding.
//
// A failed initial load returns FatalLoadError and publishes nothing,
// unless WithTolerateInitialFailure is set, in which case an empty
// snapshot is published and the engine starts anyway, healing on a later
// tick. Initialize is idempotent; calling it again is a no-op.
func (p *Provider) Initialize(ctx context.Context) error {
	p.initMu.Lock()
	defer p.initMu.Unlock()

	if p.initialized {
		return nil
	}
	select {
	case <-p.stopCh:
		return ErrNotRunning
	default:
	}

	if err := p.runReload(ctx, true); err != nil {
		if !p.opts.tolerateInitialFailure {
			return FatalLoadError{Store: p.store.Name(), Err: err}
		}
		p.active.Store(emptySnapshot(time.Now()))
		p.opts.logger.Warn("initial load from %s failed, starting with empty configuration: %v",
			p.store.Name(), err)
	}

	p.initialized = true
	p.loopRunning.Store(true)
	go p.loop()
	return nil
}

// Value returns the value for a configuration key from the active
// snapshot. It never blocks on a reload and never surfaces transport
// errors.
func (p *Provider) Value(key string) (string, bool) {
	snap := p.active.Load()
	if snap == nil {
		return "", false
	}
	return snap.Value(key)
}

// Keys returns the configuration keys under prefix from the active
// snapshot, sorted.
func (p *Provider) Keys(prefix string) []string {
	snap := p.active.Load()
	if snap == nil {
		return nil
	}
	return snap.Keys(prefix)
}

// Snapshot returns the active snapshot, or nil before Initialize.
// Callers that read several related keys should take one Snapshot and
// read from it, guaranteeing a single consistent view.
func (p *Provider) Snapshot() *Snapshot {
	return p.active.Load()
}

// OnChange registers a handler invoked after each successful snapshot
// replacement. Handlers run on their own goroutines, strictly after
// publication; no-op reloads and failures fire nothing.
func (p *Provider) OnChange(handler func(*Snapshot)) {
	p.notify.subscribe(handler)
}

// Refresh triggers an out-of-band reload and returns once that specific
// attempt completes, with its error if it failed. Readers are never
// blocked by a refresh. The attempt runs on the reload goroutine, so it
// serializes with timer ticks rather than overlapping them.
func (p *Provider) Refresh(ctx context.Context) error {
	if !p.loopRunning.Load() {
		return ErrNotRunning
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	resp := make(chan error, 1)
	select {
	case p.refreshCh <- resp:
	case <-p.done:
		return ErrNotRunning
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-resp:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Health returns a best-effort copy of the reload loop's diagnostics.
func (p *Provider) Health() Health {
	p.healthMu.Lock()
	defer p.healthMu.Unlock()
	h := p.health
	h.Collisions = append([]Collision(nil), p.health.Collisions...)
	return h
}

// Shutdown stops the reload loop and waits for an in-flight reload to
// finish. Idempotent. The last published snapshot remains readable.
func (p *Provider) Shutdown() {
	p.stopOnce.Do(func() {
		close(p.stopCh)
	})
	if p.loopRunning.Load() {
		<-p.done
	}
}

// loop is the single background goroutine that owns all reloads. Ticks
// arriving while a reload is in flight are dropped by the ticker, so
// reloads never overlap.
func (p *Provider) loop() {
	defer close(p.done)

	ticker := time.NewTicker(p.opts.reloadInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			p.opts.logger.Debug("reload loop for %s stopped", p.store.Name())
			return
		case <-ticker.C:
			// Errors are recorded in health and reported through the
			// callback; the loop itself never dies on them.
			_ = p.runReload(context.Background(), false)
		case resp := <-p.refreshCh:
			resp <- p.runReload(context.Background(), false)
		}
	}
}

// runReload performs one full list+fetch+build+publish round. The
// initial flag suppresses the error callback: an initial-load failure
// surfaces to the Initialize caller instead.
func (p *Provider) runReload(ctx context.Context, initial bool) error {
	start := time.Now()

	if p.opts.reloadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.opts.reloadTimeout)
		defer cancel()
	}

	secrets, err := p.fetchAll(ctx)
	if err != nil {
		return p.recordFailure(start, err, initial)
	}

	snap, collisions := buildSnapshot(secrets, p.opts.mapper, time.Now())
	for _, c := range collisions {
		p.opts.logger.Warn("secrets %q and %q both map to configuration key %q; keeping %q",
			c.Dropped, c.Kept, c.Key, c.Kept)
	}
	p.opts.metrics.addCollisions(p.store.Name(), len(collisions))

	prev := p.active.Load()
	changed := prev == nil || prev.SourceVersion() != snap.SourceVersion()
	if changed {
		p.active.Store(snap)
	}
	p.recordSuccess(start, snap, collisions, changed)

	// Notify only on actual replacement: not on the first publication
	// and not when the source was unchanged.
	if changed && prev != nil {
		p.opts.metrics.notified(p.store.Name())
		p.notify.publish(snap)
	}
	return nil
}

// fetchAll enumerates the store and fetches every secret worth loading,
// in parallel but preserving enumeration order so the collision policy
// ("last enumerated wins") stays deterministic.
func (p *Provider) fetchAll(ctx context.Context) ([]secretstore.Secret, error) {
	nameFilter, _ := p.opts.mapper.(NameFilter)

	var names []string
	pager := p.store.ListSecrets(ctx)
	for pager.More() {
		items, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, item := range items {
			if !item.Enabled {
				continue
			}
			if nameFilter != nil && !nameFilter.LoadName(item.Name) {
				continue
			}
			names = append(names, item.Name)
		}
	}

	fetchCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make([]secretstore.Secret, len(names))
	loaded := make([]bool, len(names))
	sem := make(chan struct{}, p.opts.fetchConcurrency)

	var (
		wg       sync.WaitGroup
		errMu    sync.Mutex
		fetchErr error
	)

	for i, name := range names {
		wg.Add(1)
		go func(i int, name string) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
			case <-fetchCtx.Done():
				return
			}
			defer func() { <-sem }()

			secret, err := p.store.GetSecret(fetchCtx, name)
			if err != nil {
				// Deleted between list and fetch: skip it, the next
				// reload will not see it either.
				if secretstore.IsNotFound(err) {
					p.opts.logger.Debug("secret %q vanished during reload, skipping", name)
					return
				}
				errMu.Lock()
				if fetchErr == nil {
					fetchErr = err
					cancel()
				}
				errMu.Unlock()
				return
			}
			if !secret.Enabled {
				return
			}
			results[i] = secret
			loaded[i] = true
		}(i, name)
	}
	wg.Wait()

	if fetchErr != nil {
		return nil, fetchErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	secrets := make([]secretstore.Secret, 0, len(names))
	for i := range results {
		if loaded[i] {
			secrets = append(secrets, results[i])
		}
	}
	return secrets, nil
}

func (p *Provider) recordSuccess(start time.Time, snap *Snapshot, collisions []Collision, changed bool) {
	p.healthMu.Lock()
	p.health.LastAttempt = start
	p.health.LastSuccess = time.Now()
	p.health.LastError = nil
	p.health.ConsecutiveFailures = 0
	p.health.Collisions = collisions
	p.healthMu.Unlock()

	outcome := "unchanged"
	if changed {
		outcome = "success"
	}
	p.opts.metrics.observeReload(p.store.Name(), outcome, time.Since(start))
	p.opts.metrics.setSnapshotSize(p.store.Name(), snap.Len())
	p.opts.metrics.setConsecutiveFailures(p.store.Name(), 0)

	p.opts.logger.Debug("reload from %s finished: %d entries, outcome=%s",
		p.store.Name(), snap.Len(), outcome)
}

func (p *Provider) recordFailure(start time.Time, err error, initial bool) error {
	p.healthMu.Lock()
	p.health.LastAttempt = start
	p.health.ConsecutiveFailures++
	failures := p.health.ConsecutiveFailures
	reloadErr := ReloadError{
		Store:               p.store.Name(),
		Attempt:             start,
		ConsecutiveFailures: failures,
		Err:                 err,
	}
	p.health.LastError = reloadErr
	p.healthMu.Unlock()

	p.opts.metrics.observeReload(p.store.Name(), "failure", time.Since(start))
	p.opts.metrics.setConsecutiveFailures(p.store.Name(), failures)

	p.opts.logger.Warn("reload from %s failed (%d consecutive): %v",
		p.store.Name(), failures, err)

	if p.opts.onReloadError != nil && !initial {
		p.opts.onReloadError(reloadErr)
	}
	return reloadErr
}
