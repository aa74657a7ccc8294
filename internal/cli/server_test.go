package cli

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"genomedesigner/internal/config"
	"genomedesigner/internal/core"
)

func TestServeMuxAndShutdown(t *testing.T) {
	var cfg config.Config
	if err := config.ParseEnv(&cfg); err != nil {
		t.Fatalf("config: %v", err)
	}
	cfg.Storage.Driver = "memory"
	cfg.Media.Driver = "memory"
	cfg.Trace.Exporter = config.TraceJSON

	var logs bytes.Buffer
	app, err := Build(context.Background(), cfg, &logs)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer app.Close(context.Background())
	if app.Registry == nil {
		t.Fatalf("prometheus registry expected by default")
	}
	if _, _, err := app.Service.CreateProject(context.Background(), core.Project{}); err == nil {
		t.Fatalf("expected missing title error")
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Serve(ctx, ln, NewMux(app, nil), time.Second, app.Logger) }()

	base := "http://" + ln.Addr().String()
	get := func(path string) (int, string) {
		resp, err := http.Get(base + path)
		if err != nil {
			t.Fatalf("get %s: %v", path, err)
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		return resp.StatusCode, string(body)
	}

	if code, body := get("/healthz"); code != http.StatusOK || body != "ok\n" {
		t.Fatalf("healthz: %d %q", code, body)
	}
	if code, body := get("/metrics"); code != http.StatusOK || !strings.Contains(body, "genomedesigner_service_operations_total") {
		t.Fatalf("metrics: %d", code)
	}
	if code, body := get("/api/v1/openapi.yaml"); code != http.StatusOK || !strings.Contains(body, "openapi: 3.1.0") {
		t.Fatalf("openapi: %d", code)
	}
	if code, _ := get("/debug/vars"); code != http.StatusOK {
		t.Fatalf("expvar: %d", code)
	}
	if code, _ := get("/api/v1/variant-sets/missing/variants"); code != http.StatusNotFound {
		t.Fatalf("variant set lookup: %d", code)
	}
	if code, _ := get("/api/v1/datasets/missing"); code != http.StatusNotFound {
		t.Fatalf("dataset lookup: %d", code)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serve: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("server did not stop")
	}
	if !strings.Contains(logs.String(), `"operation":"create_project"`) {
		t.Fatalf("expected json span in log output, got %q", logs.String())
	}
}
