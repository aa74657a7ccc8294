// Package config loads genomedesigner settings from GENOMEDESIGNER_*
// environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"genomedesigner/internal/blob"
	"genomedesigner/internal/core"
	"genomedesigner/internal/telemetry"
)

// Config is the process configuration. CLI flags override individual fields
// after Load.
type Config struct {
	Storage StorageConfig
	Media   MediaConfig
	HTTP    HTTPConfig
	Log     LogConfig
	Metrics MetricsConfig
	Trace   TraceConfig
}

// StorageConfig selects the entity store.
type StorageConfig struct {
	Driver      string `env:"GENOMEDESIGNER_STORAGE_DRIVER" envDefault:"sqlite"`
	SQLitePath  string `env:"GENOMEDESIGNER_SQLITE_PATH"    envDefault:"genomedesigner.db"`
	PostgresDSN string `env:"GENOMEDESIGNER_POSTGRES_DSN"`
}

// MediaConfig selects the blob store holding dataset files.
type MediaConfig struct {
	Driver            string `env:"GENOMEDESIGNER_BLOB_DRIVER"          envDefault:"fs"`
	Root              string `env:"GENOMEDESIGNER_MEDIA_ROOT"           envDefault:"media"`
	S3Bucket          string `env:"GENOMEDESIGNER_S3_BUCKET"`
	S3Region          string `env:"GENOMEDESIGNER_S3_REGION"            envDefault:"us-east-1"`
	S3Prefix          string `env:"GENOMEDESIGNER_S3_PREFIX"`
	S3Endpoint        string `env:"GENOMEDESIGNER_S3_ENDPOINT"`
	S3AccessKeyID     string `env:"GENOMEDESIGNER_S3_ACCESS_KEY_ID"`
	S3SecretAccessKey string `env:"GENOMEDESIGNER_S3_SECRET_ACCESS_KEY"`
	S3SessionToken    string `env:"GENOMEDESIGNER_S3_SESSION_TOKEN"`
	S3PathStyle       bool   `env:"GENOMEDESIGNER_S3_PATH_STYLE"`
}

// HTTPConfig configures the API server.
type HTTPConfig struct {
	Addr            string        `env:"GENOMEDESIGNER_HTTP_ADDR"             envDefault:":8080"`
	ShutdownTimeout time.Duration `env:"GENOMEDESIGNER_HTTP_SHUTDOWN_TIMEOUT" envDefault:"10s"`
	// AsyncCompression runs dataset compression on a background worker.
	AsyncCompression bool `env:"GENOMEDESIGNER_HTTP_ASYNC_COMPRESSION" envDefault:"true"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	Level  string `env:"GENOMEDESIGNER_LOG_LEVEL"  envDefault:"info"`
	Format string `env:"GENOMEDESIGNER_LOG_FORMAT" envDefault:"text"`
	// File, when set, receives a JSON copy of every record.
	File string `env:"GENOMEDESIGNER_LOG_FILE"`
}

// MetricsConfig selects where operation metrics go.
type MetricsConfig struct {
	Exporter string `env:"GENOMEDESIGNER_METRICS_EXPORTER" envDefault:"prometheus"`
}

// TraceConfig selects where operation spans go.
type TraceConfig struct {
	Exporter     string  `env:"GENOMEDESIGNER_TRACE_EXPORTER"      envDefault:"none"`
	OTLPEndpoint string  `env:"GENOMEDESIGNER_OTLP_ENDPOINT"`
	ServiceName  string  `env:"GENOMEDESIGNER_SERVICE_NAME"        envDefault:"genomedesigner"`
	SampleRatio  float64 `env:"GENOMEDESIGNER_TRACE_SAMPLE_RATIO"  envDefault:"1"`
}

const (
	MetricsNone       = "none"
	MetricsExpvar     = "expvar"
	MetricsPrometheus = "prometheus"

	TraceNone = "none"
	TraceJSON = "json"
	TraceOTLP = "otlp"
)

// ParseEnv loads configuration from environment variables into target.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load parses the environment and validates the result.
func Load() (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error
	switch core.StorageDriver(strings.ToLower(c.Storage.Driver)) {
	case "", core.StorageMemory, core.StorageSQLite:
	case core.StoragePostgres:
		if c.Storage.PostgresDSN == "" {
			errs = append(errs, errors.New("postgres storage requires GENOMEDESIGNER_POSTGRES_DSN"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage driver %q", c.Storage.Driver))
	}
	switch blob.Driver(strings.ToLower(c.Media.Driver)) {
	case "", blob.DriverFilesystem, blob.DriverMemory:
	case blob.DriverS3:
		if c.Media.S3Bucket == "" {
			errs = append(errs, errors.New("s3 media requires GENOMEDESIGNER_S3_BUCKET"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown blob driver %q", c.Media.Driver))
	}
	switch c.Metrics.Exporter {
	case MetricsNone, MetricsExpvar, MetricsPrometheus:
	default:
		errs = append(errs, fmt.Errorf("unknown metrics exporter %q", c.Metrics.Exporter))
	}
	switch c.Trace.Exporter {
	case TraceNone, TraceJSON:
	case TraceOTLP:
		if c.Trace.OTLPEndpoint == "" {
			errs = append(errs, errors.New("otlp tracing requires GENOMEDESIGNER_OTLP_ENDPOINT"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown trace exporter %q", c.Trace.Exporter))
	}
	if c.Trace.SampleRatio < 0 || c.Trace.SampleRatio > 1 {
		errs = append(errs, fmt.Errorf("trace sample ratio %v outside [0,1]", c.Trace.SampleRatio))
	}
	return errors.Join(errs...)
}

// StorageOptions maps the storage settings onto core.
func (c Config) StorageOptions() core.StorageOptions {
	return core.StorageOptions{
		Driver:      core.StorageDriver(strings.ToLower(c.Storage.Driver)),
		SQLitePath:  c.Storage.SQLitePath,
		PostgresDSN: c.Storage.PostgresDSN,
	}
}

// BlobOptions maps the media settings onto the blob factory.
func (c Config) BlobOptions() blob.Options {
	return blob.Options{
		Driver: blob.Driver(strings.ToLower(c.Media.Driver)),
		Root:   c.Media.Root,
		S3: blob.S3Config{
			Region:          c.Media.S3Region,
			Bucket:          c.Media.S3Bucket,
			Prefix:          c.Media.S3Prefix,
			Endpoint:        c.Media.S3Endpoint,
			AccessKeyID:     c.Media.S3AccessKeyID,
			SecretAccessKey: c.Media.S3SecretAccessKey,
			SessionToken:    c.Media.S3SessionToken,
			PathStyle:       c.Media.S3PathStyle,
		},
	}
}

// TelemetryOptions returns the OTLP setup. The endpoint is empty unless the
// otlp exporter is selected.
func (c Config) TelemetryOptions() telemetry.Options {
	opts := telemetry.Options{ServiceName: c.Trace.ServiceName, SampleRatio: c.Trace.SampleRatio}
	if c.Trace.Exporter == TraceOTLP {
		opts.Endpoint = c.Trace.OTLPEndpoint
	}
	return opts
}
