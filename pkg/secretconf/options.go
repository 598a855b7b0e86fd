package secretconf

import (
	"io"
	"time"

	"github.com/confsync/secretconf/internal/logging"
)

const (
	// DefaultReloadInterval is how often the engine reloads when
	// WithReloadInterval is not given.
	DefaultReloadInterval = time.Minute

	// DefaultReloadTimeout bounds one list+fetch round.
	DefaultReloadTimeout = 30 * time.Second

	// DefaultFetchConcurrency is the number of secret values fetched in
	// parallel during one reload.
	DefaultFetchConcurrency = 8
)

// Option configures a Provider.
type Option func(*options)

type options struct {
	mapper                 Mapper
	reloadInterval         time.Duration
	reloadTimeout          time.Duration
	fetchConcurrency       int
	tolerateInitialFailure bool
	onReloadError          func(ReloadError)
	logger                 *logging.Logger
	metrics                *metricsRecorder
}

func defaultOptions() options {
	return options{
		mapper:           DefaultMapper{},
		reloadInterval:   DefaultReloadInterval,
		reloadTimeout:    DefaultReloadTimeout,
		fetchConcurrency: DefaultFetchConcurrency,
		logger:           logging.Nop(),
	}
}

// WithMapper replaces the default mapping policy.
func WithMapper(m Mapper) Option {
	return func(o *options) {
		o.mapper = m
	}
}

// WithReloadInterval sets how often the background loop rebuilds the
// snapshot. Must be positive; WithReloadInterval(0) is a configuration
// error rather than "disable reloads" - callers who want a one-shot load
// simply never call Initialize's background half, i.e. they Shutdown
// right away.
func WithReloadInterval(d time.Duration) Option {
	return func(o *options) {
		o.reloadInterval = d
	}
}

// WithReloadTimeout bounds the duration of a single reload attempt,
// covering the full list and fetch round. Zero disables the bound.
func WithReloadTimeout(d time.Duration) Option {
	return func(o *options) {
		o.reloadTimeout = d
	}
}

// WithFetchConcurrency sets how many secret values are fetched in
// parallel during one reload.
func WithFetchConcurrency(n int) Option {
	return func(o *options) {
		o.fetchConcurrency = n
	}
}

// WithTolerateInitialFailure makes Initialize succeed with an empty
// snapshot when the first load fails, instead of returning
// FatalLoadError. The failure is still recorded in Health.
func WithTolerateInitialFailure() Option {
	return func(o *options) {
		o.tolerateInitialFailure = true
	}
}

// WithReloadErrorHandler registers a callback invoked once per failed
// reload attempt. The callback runs on the reload goroutine; keep it
// fast or hand off.
func WithReloadErrorHandler(fn func(ReloadError)) Option {
	return func(o *options) {
		o.onReloadError = fn
	}
}

// WithDebugLogging routes engine logs to stderr with debug output
// enabled. Without it the engine is silent.
func WithDebugLogging() Option {
	return func(o *options) {
		o.logger = logging.New(true, false)
	}
}

// WithLogOutput routes engine logs to w. Used by the CLI and by tests
// that want to inspect what the engine reported.
func WithLogOutput(w io.Writer, debug bool) Option {
	return func(o *options) {
		o.logger = logging.NewWriter(w, debug)
	}
}

// WithMetrics enables Prometheus metrics for this provider, labelled
// with the store name. Safe to enable on several providers; the
// underlying collectors are registered once.
func WithMetrics() Option {
	return func(o *options) {
		o.metrics = newMetricsRecorder()
	}
}
