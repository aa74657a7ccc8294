package cli

import (
	"context"
	"errors"
	"expvar"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"genomedesigner/internal/adapters/datasets"
	"genomedesigner/internal/adapters/variantsets"
	"genomedesigner/internal/entitymodel"
)

// NewMux routes the API and the metrics endpoints. A nil jobs scheduler makes
// dataset compression synchronous.
func NewMux(app *App, jobs datasets.Scheduler) *http.ServeMux {
	mux := http.NewServeMux()
	vh := variantsets.NewHandler(app.Service)
	vh.Logger = app.Logger
	mux.Handle("/api/v1/variant-sets/", vh)
	dh := datasets.NewHandler(app.Service)
	dh.Jobs = jobs
	mux.Handle("/api/v1/datasets/", dh)
	if app.Registry != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(app.Registry, promhttp.HandlerOpts{}))
	}
	mux.Handle("/api/v1/openapi.yaml", entitymodel.NewOpenAPIHandler())
	mux.Handle("/debug/vars", expvar.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	return mux
}

// Serve runs handler on ln until ctx ends, then shuts down within timeout.
func Serve(ctx context.Context, ln net.Listener, handler http.Handler, timeout time.Duration, logger *slog.Logger) error {
	srv := &http.Server{Handler: handler, ReadHeaderTimeout: 10 * time.Second}
	serveErr := make(chan error, 1)
	logger.Info("http listening", "addr", ln.Addr().String())
	go func() {
		serveErr <- srv.Serve(ln)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		logger.Info("http server stopped")
		return nil
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve http: %w", err)
	}
}
