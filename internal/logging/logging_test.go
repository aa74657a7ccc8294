package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]slog.Level{"debug": slog.LevelDebug, "INFO": slog.LevelInfo, " warn ": slog.LevelWarn, "error": slog.LevelError} {
		got, err := ParseLevel(in)
		if err != nil || got != want {
			t.Fatalf("%q: got %v %v", in, got, err)
		}
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestNewTextAndJSON(t *testing.T) {
	var buf bytes.Buffer
	logger, closer, err := New(&buf, Options{Level: "warn"})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer closer.Close()
	logger.Info("hidden")
	logger.Warn("shown", "set", "s1")
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "set=s1") {
		t.Fatalf("unexpected text output %q", buf.String())
	}

	buf.Reset()
	logger, _, err = New(&buf, Options{Format: "json"})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	logger.Info("reconciled", "added", 2)
	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil || rec["msg"] != "reconciled" || rec["added"] != float64(2) {
		t.Fatalf("unexpected json output %q: %v", buf.String(), err)
	}

	if _, _, err := New(&buf, Options{Format: "xml"}); err == nil {
		t.Fatalf("expected format error")
	}
	if _, _, err := New(&buf, Options{Level: "loud"}); err == nil {
		t.Fatalf("expected level error")
	}
}

func TestNewFansOutToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gd.log")
	var buf bytes.Buffer
	logger, closer, err := New(&buf, Options{File: path})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	logger.Info("copied", "contigs", 12)
	if err := closer.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if !strings.Contains(buf.String(), "copied") {
		t.Fatalf("primary handler missed the record: %q", buf.String())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var rec map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(data), &rec); err != nil {
		t.Fatalf("file record: %v", err)
	}
	if rec["msg"] != "copied" || rec["source"] == nil {
		t.Fatalf("unexpected file record %v", rec)
	}

	if _, _, err := New(&buf, Options{File: filepath.Join(t.TempDir(), "missing", "gd.log")}); err == nil {
		t.Fatalf("expected open error")
	}
}
