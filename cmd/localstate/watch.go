package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/vango-dev/localstate/internal/errors"
	"github.com/vango-dev/localstate/pkg/observe"
	"github.com/vango-dev/localstate/pkg/persist"
	"github.com/vango-dev/localstate/pkg/state"
)

func watchCmd(a *app) *cobra.Command {
	var metricsAddr string

	cmd := &cobra.Command{
		Use:   "watch KEY...",
		Short: "Print keys as they change",
		Long: `Bind to keys with sync enabled and print every value they take,
including changes made by other processes sharing the store.

File stores are watched with filesystem notifications and SQLite
stores are polled. S3 and memory stores have no change channel, so
only the current value is printed.

Examples:
  localstate watch theme layout
  localstate watch theme --metrics-addr=:9090`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.watch(ctx, cmd.OutOrStdout(), args, metricsAddr)
		},
	}

	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")

	return cmd
}

// watch prints each key's value and every later change until ctx ends.
func (a *app) watch(ctx context.Context, out io.Writer, keys []string, metricsAddr string) error {
	store, closeStore, err := a.open()
	if err != nil {
		return err
	}
	defer closeStore()

	if !store.Available() {
		return errors.New(errors.CodeUnsupportedEnv).
			WithDetail("the " + a.cfg.Store.Kind + " store cannot be watched")
	}

	reg := prometheus.NewRegistry()
	observer := persist.Observers{
		observe.NewPrometheus(observe.WithRegistry(reg)),
		observe.NewTracer(),
	}

	scope := state.NewScope(nil)
	defer scope.Dispose()
	persist.ProvideRegistry(scope, persist.NewRegistry())

	var mu sync.Mutex
	show := func(key string, v any) {
		mu.Lock()
		defer mu.Unlock()
		fmt.Fprintf(out, "%s = %s\n", key, a.format(v))
	}

	for _, key := range keys {
		b, err := persist.Bind[any](scope, store, key, nil,
			persist.Sync(),
			persist.WithCodec(a.codec),
			persist.WithLogger(a.logger),
			persist.WithObserver(observer),
		)
		if err != nil {
			return err
		}
		show(key, b.Get())
		scope.OnCleanup(b.Cell().Subscribe(func(v any) { show(key, v) }))
	}

	if metricsAddr != "" {
		srv := &http.Server{
			Addr:              metricsAddr,
			Handler:           metricsRouter(reg),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				a.logger.Error("metrics server", "addr", metricsAddr, "error", err)
			}
		}()
		a.logger.Info("serving metrics", "addr", metricsAddr)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
	}

	<-ctx.Done()
	return nil
}

// format renders a watched value. Missing keys print as <unset>.
func (a *app) format(v any) string {
	if v == nil {
		return "<unset>"
	}
	s, err := a.codec.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return s
}

// metricsRouter serves the watch metrics.
func metricsRouter(reg *prometheus.Registry) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	return r
}
