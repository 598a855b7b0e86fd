package commands

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/confsync/secretconf/internal/config"
	"github.com/confsync/secretconf/pkg/secretconf"
)

func NewWatchCommand(cfg *config.Config) *cobra.Command {
	var (
		intervalSeconds int
		metricsAddr     string
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow the store and report configuration changes",
		Long: `Load the store, then keep reloading it on the configured interval and
print every key that appears, disappears or changes value. Runs until
interrupted.

Examples:
  # Watch with the interval from secretconf.yaml
  secretconf watch

  # Reload every 10 seconds and expose Prometheus metrics
  secretconf watch --interval 10 --metrics-addr :9090`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			var extra []secretconf.Option
			if intervalSeconds > 0 {
				extra = append(extra, secretconf.WithReloadInterval(time.Duration(intervalSeconds)*time.Second))
			}
			if metricsAddr != "" {
				extra = append(extra, secretconf.WithMetrics())
			}

			provider, err := buildProvider(ctx, cfg, extra...)
			if err != nil {
				return err
			}
			defer provider.Shutdown()

			if metricsAddr != "" {
				mux := http.NewServeMux()
				mux.Handle("/metrics", promhttp.Handler())
				server := &http.Server{Addr: metricsAddr, Handler: mux}
				go func() {
					if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
						cfg.Logger.Warn("metrics server stopped: %v", err)
					}
				}()
				defer server.Close()
				cfg.Logger.Info("serving metrics on %s/metrics", metricsAddr)
			}

			var (
				mu   sync.Mutex
				prev = provider.Snapshot()
			)
			cfg.Logger.Info("loaded %d configuration entries, watching for changes", prev.Len())

			provider.OnChange(func(next *secretconf.Snapshot) {
				mu.Lock()
				defer mu.Unlock()

				for _, change := range diffSnapshots(prev, next) {
					fmt.Println(change)
				}
				prev = next
			})

			<-ctx.Done()
			cfg.Logger.Info("stopping")
			return nil
		},
	}

	cmd.Flags().IntVar(&intervalSeconds, "interval", 0, "Reload interval in seconds (overrides the config file)")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")

	return cmd
}

// diffSnapshots describes the key-level changes between two snapshots,
// one line per key, in sorted key order. Values are never printed.
func diffSnapshots(prev, next *secretconf.Snapshot) []string {
	var out []string

	for _, key := range prev.Keys("") {
		if _, ok := next.Value(key); !ok {
			out = append(out, "- "+key)
		}
	}
	for _, key := range next.Keys("") {
		newVal, _ := next.Value(key)
		oldVal, existed := prev.Value(key)
		switch {
		case !existed:
			out = append(out, "+ "+key)
		case oldVal != newVal:
			out = append(out, "~ "+key)
		}
	}

	return out
}
