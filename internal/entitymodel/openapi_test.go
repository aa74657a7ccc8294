package entitymodel

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
)

func TestOpenAPISpecReturnsCopy(t *testing.T) {
	expected, err := os.ReadFile("openapi.yaml")
	if err != nil {
		t.Fatalf("read spec: %v", err)
	}
	spec := OpenAPISpec()
	if !bytes.Equal(spec, expected) {
		t.Fatalf("OpenAPISpec does not match embedded contents")
	}

	spec[0] ^= 0xFF
	if next := OpenAPISpec(); !bytes.Equal(next, expected) {
		t.Fatalf("OpenAPISpec mutation leaked into source")
	}
}

func TestOpenAPIDocumentsRoutes(t *testing.T) {
	spec := string(OpenAPISpec())
	for _, path := range []string{
		"/api/v1/variant-sets/{id}/variants:",
		"/api/v1/datasets/{id}:",
		"/api/v1/datasets/{id}/compress:",
		"/api/v1/datasets/compressions/{id}:",
	} {
		if !strings.Contains(spec, path) {
			t.Fatalf("expected %s to be documented", path)
		}
	}
}

func TestNewOpenAPIHandler(t *testing.T) {
	h := NewOpenAPIHandler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/openapi.yaml", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); got != "application/yaml" {
		t.Fatalf("unexpected content type %q", got)
	}
	if !bytes.Equal(rec.Body.Bytes(), OpenAPISpec()) {
		t.Fatalf("handler body does not match embedded spec")
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/openapi.yaml", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}
