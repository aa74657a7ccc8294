package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"genomedesigner/internal/blob"
	"genomedesigner/internal/config"
	"genomedesigner/internal/core"
	"genomedesigner/internal/logging"
	"genomedesigner/internal/telemetry"
)

// App is a wired service with the resources it holds open.
type App struct {
	Config   config.Config
	Logger   *slog.Logger
	Service  *core.Service
	Blobs    blob.Store
	Registry *prometheus.Registry
	Expvar   *core.ExpvarMetricsRecorder

	closers []func(context.Context) error
}

// Build opens logging, blob storage, the entity store and the configured
// metrics and trace exporters. Logs and JSON spans go to logOut.
func Build(ctx context.Context, cfg config.Config, logOut io.Writer) (*App, error) {
	logger, logCloser, err := logging.New(logOut, logging.Options{Level: cfg.Log.Level, Format: cfg.Log.Format, File: cfg.Log.File})
	if err != nil {
		return nil, err
	}
	app := &App{Config: cfg, Logger: logger}
	app.closers = append(app.closers, func(context.Context) error { return logCloser.Close() })

	if app.Blobs, err = blob.Open(ctx, cfg.BlobOptions()); err != nil {
		return nil, app.fail(ctx, fmt.Errorf("open media store: %w", err))
	}
	store, storeCloser, err := core.OpenPersistentStore(ctx, cfg.StorageOptions(), core.NewDefaultRulesEngine())
	if err != nil {
		return nil, app.fail(ctx, fmt.Errorf("open entity store: %w", err))
	}
	app.closers = append(app.closers, func(context.Context) error { return storeCloser.Close() })

	opts := []core.Option{
		core.WithLogger(logger),
		core.WithBlobStore(app.Blobs),
		core.WithAuditRecorder(core.LoggerAuditRecorder{Logger: logger}),
	}

	switch cfg.Metrics.Exporter {
	case config.MetricsPrometheus:
		app.Registry = prometheus.NewRegistry()
		app.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		rec, err := core.NewPrometheusMetricsRecorder(app.Registry)
		if err != nil {
			return nil, app.fail(ctx, err)
		}
		opts = append(opts, core.WithMetricsRecorder(rec))
	case config.MetricsExpvar:
		app.Expvar = core.NewExpvarMetricsRecorder("")
		opts = append(opts, core.WithMetricsRecorder(app.Expvar))
	}

	switch cfg.Trace.Exporter {
	case config.TraceJSON:
		opts = append(opts, core.WithTracer(core.NewJSONTracer(logOut, 256)))
	case config.TraceOTLP:
		provider, shutdown, err := telemetry.Setup(ctx, cfg.TelemetryOptions())
		if err != nil {
			return nil, app.fail(ctx, err)
		}
		app.closers = append(app.closers, shutdown)
		opts = append(opts, core.WithTracer(core.NewOTelTracer(provider)))
	}

	app.Service = core.NewService(store, opts...)
	logger.Debug("application wired",
		"storage", cfg.Storage.Driver,
		"media", cfg.Media.Driver,
		"metrics", cfg.Metrics.Exporter,
		"trace", cfg.Trace.Exporter,
	)
	return app, nil
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i](ctx))
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *App) fail(ctx context.Context, err error) error {
	return errors.Join(err, a.Close(ctx))
}
