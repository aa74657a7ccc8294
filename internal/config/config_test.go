package config

import (
	"strings"
	"testing"
	"time"

	"genomedesigner/internal/blob"
	"genomedesigner/internal/core"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Storage.Driver != "sqlite" || cfg.Storage.SQLitePath != "genomedesigner.db" {
		t.Fatalf("unexpected storage defaults %+v", cfg.Storage)
	}
	if cfg.Media.Driver != "fs" || cfg.Media.Root != "media" {
		t.Fatalf("unexpected media defaults %+v", cfg.Media)
	}
	if cfg.HTTP.Addr != ":8080" || cfg.HTTP.ShutdownTimeout != 10*time.Second || !cfg.HTTP.AsyncCompression {
		t.Fatalf("unexpected http defaults %+v", cfg.HTTP)
	}
	if cfg.Log.Level != "info" || cfg.Log.Format != "text" {
		t.Fatalf("unexpected log defaults %+v", cfg.Log)
	}
	if cfg.Metrics.Exporter != MetricsPrometheus || cfg.Trace.Exporter != TraceNone || cfg.Trace.SampleRatio != 1 {
		t.Fatalf("unexpected observability defaults %+v %+v", cfg.Metrics, cfg.Trace)
	}
	if cfg.TelemetryOptions().Endpoint != "" {
		t.Fatalf("tracing must be off by default")
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("GENOMEDESIGNER_STORAGE_DRIVER", "Postgres")
	t.Setenv("GENOMEDESIGNER_POSTGRES_DSN", "postgres://gd@localhost/gd")
	t.Setenv("GENOMEDESIGNER_BLOB_DRIVER", "s3")
	t.Setenv("GENOMEDESIGNER_S3_BUCKET", "media")
	t.Setenv("GENOMEDESIGNER_S3_PATH_STYLE", "true")
	t.Setenv("GENOMEDESIGNER_S3_ENDPOINT", "http://minio:9000")
	t.Setenv("GENOMEDESIGNER_TRACE_EXPORTER", "otlp")
	t.Setenv("GENOMEDESIGNER_OTLP_ENDPOINT", "http://collector:4318")
	t.Setenv("GENOMEDESIGNER_TRACE_SAMPLE_RATIO", "0.25")
	t.Setenv("GENOMEDESIGNER_HTTP_SHUTDOWN_TIMEOUT", "3s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	storage := cfg.StorageOptions()
	if storage.Driver != core.StoragePostgres || storage.PostgresDSN == "" {
		t.Fatalf("unexpected storage options %+v", storage)
	}
	media := cfg.BlobOptions()
	if media.Driver != blob.DriverS3 || media.S3.Bucket != "media" || !media.S3.PathStyle || media.S3.Region != "us-east-1" {
		t.Fatalf("unexpected blob options %+v", media)
	}
	tel := cfg.TelemetryOptions()
	if tel.Endpoint != "http://collector:4318" || tel.SampleRatio != 0.25 || tel.ServiceName != "genomedesigner" {
		t.Fatalf("unexpected telemetry options %+v", tel)
	}
	if cfg.HTTP.ShutdownTimeout != 3*time.Second {
		t.Fatalf("unexpected shutdown timeout %v", cfg.HTTP.ShutdownTimeout)
	}
}

func TestLoadParseError(t *testing.T) {
	t.Setenv("GENOMEDESIGNER_HTTP_SHUTDOWN_TIMEOUT", "soon")
	_, err := Load()
	if err == nil || !strings.Contains(err.Error(), "parse env:") {
		t.Fatalf("expected parse env error, got %v", err)
	}
}

func TestValidateCollectsErrors(t *testing.T) {
	cfg := Config{
		Storage: StorageConfig{Driver: "postgres"},
		Media:   MediaConfig{Driver: "s3"},
		Metrics: MetricsConfig{Exporter: "statsd"},
		Trace:   TraceConfig{Exporter: "otlp", SampleRatio: 2},
	}
	err := cfg.Validate()
	if err == nil {
		t.Fatalf("expected validation errors")
	}
	for _, want := range []string{"POSTGRES_DSN", "S3_BUCKET", "statsd", "OTLP_ENDPOINT", "sample ratio"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("expected %q in %v", want, err)
		}
	}

	cfg = Config{Storage: StorageConfig{Driver: "cassandra"}, Media: MediaConfig{Driver: "ftp"}, Metrics: MetricsConfig{Exporter: MetricsNone}, Trace: TraceConfig{Exporter: "zipkin"}}
	err = cfg.Validate()
	for _, want := range []string{"cassandra", "ftp", "zipkin"} {
		if err == nil || !strings.Contains(err.Error(), want) {
			t.Fatalf("expected %q in %v", want, err)
		}
	}
}
