package core

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"expvar"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestExpvarMetricsRecorder(t *testing.T) {
	rec := NewExpvarMetricsRecorder("")
	rec.Observe(context.Background(), "op", true, 2*time.Millisecond)
	rec.Observe(context.Background(), "op", false, 5*time.Millisecond)
	rec.Observe(context.Background(), "", true, time.Second)

	stats := rec.Snapshot()
	if len(stats) != 1 {
		t.Fatalf("empty operations must be ignored, got %v", stats)
	}
	op := stats["op"]
	if op.Success != 1 || op.Error != 1 || op.TotalMS != 7 || op.MaxMS != 5 {
		t.Fatalf("unexpected stats %+v", op)
	}
	published := expvar.Get(rec.Name())
	if published == nil || !strings.Contains(published.String(), `"success":1`) {
		t.Fatalf("expected published expvar, got %v", published)
	}
}

func TestJSONTracerRetention(t *testing.T) {
	var buf bytes.Buffer
	tracer := NewJSONTracer(&buf, 2)
	for _, op := range []string{"a", "b", "c"} {
		_, span := tracer.Start(context.Background(), op)
		span.End(nil)
	}
	_, span := tracer.Start(context.Background(), "d")
	span.End(errors.New("boom"))

	entries := tracer.Entries()
	if len(entries) != 2 || entries[0].Operation != "c" || entries[1].Error != "boom" {
		t.Fatalf("unexpected entries %+v", entries)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected every span written, got %d lines", len(lines))
	}
	var last JSONTraceEntry
	if err := json.Unmarshal([]byte(lines[3]), &last); err != nil || last.Status != "error" {
		t.Fatalf("unexpected last line %q: %v", lines[3], err)
	}
}

func TestPrometheusMetricsRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec, err := NewPrometheusMetricsRecorder(reg)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	svc := NewInMemoryService(nil, WithMetricsRecorder(MultiMetricsRecorder{rec, NewExpvarMetricsRecorder("")}))
	if _, _, err := svc.CreateProject(context.Background(), Project{Title: "p"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, _, err := svc.CreateProject(context.Background(), Project{}); err == nil {
		t.Fatalf("expected error")
	}
	if got := testutil.ToFloat64(rec.total.WithLabelValues("create_project", "success")); got != 1 {
		t.Fatalf("expected one success, got %v", got)
	}
	if got := testutil.ToFloat64(rec.total.WithLabelValues("create_project", "error")); got != 1 {
		t.Fatalf("expected one error, got %v", got)
	}
	if n := testutil.CollectAndCount(rec.duration); n != 1 {
		t.Fatalf("expected one histogram series, got %d", n)
	}
	if _, err := NewPrometheusMetricsRecorder(reg); err == nil {
		t.Fatalf("expected duplicate registration error")
	}
}

func TestOTelTracer(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	svc := NewInMemoryService(nil, WithTracer(NewOTelTracer(provider)))
	if _, _, err := svc.CreateProject(context.Background(), Project{Title: "p"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.DeleteVariant(context.Background(), "missing"); err == nil {
		t.Fatalf("expected error")
	}

	spans := exporter.GetSpans()
	if len(spans) != 2 {
		t.Fatalf("expected two spans, got %d", len(spans))
	}
	if spans[0].Name != "create_project" || spans[0].Status.Code != codes.Ok {
		t.Fatalf("unexpected first span %s %v", spans[0].Name, spans[0].Status)
	}
	if spans[1].Name != "delete_variant" || spans[1].Status.Code != codes.Error || len(spans[1].Events) == 0 {
		t.Fatalf("expected recorded error on second span, got %+v", spans[1].Status)
	}
}

func TestLoggerAuditRecorder(t *testing.T) {
	log := &captureLogger{}
	rec := LoggerAuditRecorder{Logger: log}
	rec.Record(context.Background(), AuditEntry{Operation: "op", Status: AuditStatusSuccess})
	rec.Record(context.Background(), AuditEntry{Operation: "op", Status: AuditStatusError, Error: "x"})
	LoggerAuditRecorder{}.Record(context.Background(), AuditEntry{})
	if len(log.calls) != 2 || log.calls[0] != "i:audit" || log.calls[1] != "w:audit" {
		t.Fatalf("unexpected calls %v", log.calls)
	}
}
