// Package datasets serves dataset lookups and compression over HTTP.
package datasets

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"genomedesigner/internal/blob"
	"genomedesigner/internal/core"
	"genomedesigner/internal/dataset"
	"genomedesigner/pkg/domain"
)

const prefix = "/api/v1/datasets/"

// Service exposes dataset operations for HTTP handlers.
type Service interface {
	Compressor
	Dataset(ctx context.Context, id string) (core.Dataset, error)
	DatasetOwners(ctx context.Context, datasetID string) ([]core.DatasetOwner, error)
	DatasetShellArg(ctx context.Context, datasetID string) (string, error)
}

// Handler provides HTTP access to datasets. When Jobs is set, compression
// runs in the background and the handler answers 202 with the queued job.
type Handler struct {
	Service Service
	Jobs    Scheduler
}

// NewHandler constructs a dataset HTTP handler.
func NewHandler(svc Service) *Handler {
	return &Handler{Service: svc}
}

type compressRequest struct {
	Suffix string `json:"suffix"`
}

type ownerView struct {
	Entity string `json:"entity"`
	ID     string `json:"id"`
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.Service == nil {
		writeError(w, http.StatusInternalServerError, "dataset service not configured")
		return
	}

	path := strings.TrimSuffix(r.URL.Path, "/")
	if !strings.HasPrefix(path, prefix) {
		http.NotFound(w, r)
		return
	}
	segments := strings.Split(strings.TrimPrefix(path, prefix), "/")
	if segments[0] == "" {
		http.NotFound(w, r)
		return
	}
	if segments[0] == "compressions" {
		h.handleJob(w, r, segments[1:])
		return
	}

	id := segments[0]
	switch {
	case len(segments) == 1:
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		h.handleGet(w, r, id)
	case len(segments) == 2 && segments[1] == "compress":
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		h.handleCompress(w, r, id)
	default:
		writeError(w, http.StatusNotFound, "dataset endpoint not found")
	}
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request, id string) {
	ds, err := h.Service.Dataset(r.Context(), id)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	owners, err := h.Service.DatasetOwners(r.Context(), id)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	arg, err := h.Service.DatasetShellArg(r.Context(), id)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	views := make([]ownerView, len(owners))
	for i, o := range owners {
		views[i] = ownerView{Entity: string(o.Entity), ID: o.ID}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"dataset":    ds,
		"compressed": dataset.IsCompressed(ds),
		"owners":     views,
		"shell_arg":  arg,
	})
}

func (h *Handler) handleCompress(w http.ResponseWriter, r *http.Request, id string) {
	var req compressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid compression request payload")
		return
	}
	if h.Jobs != nil {
		if _, err := h.Service.Dataset(r.Context(), id); err != nil {
			writeError(w, statusFor(err), err.Error())
			return
		}
		job, err := h.Jobs.EnqueueCompression(r.Context(), id, req.Suffix)
		if err != nil {
			writeError(w, statusFor(err), err.Error())
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]any{"job": job})
		return
	}
	ds, err := h.Service.CompressDataset(r.Context(), id, req.Suffix)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"dataset": ds})
}

func (h *Handler) handleJob(w http.ResponseWriter, r *http.Request, rest []string) {
	if h.Jobs == nil || len(rest) != 1 || rest[0] == "" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	job, ok := h.Jobs.GetCompression(rest[0])
	if !ok {
		writeError(w, http.StatusNotFound, "compression job not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"job": job})
}

func statusFor(err error) int {
	var nf domain.ErrNotFound
	switch {
	case errors.As(err, &nf):
		return http.StatusNotFound
	case errors.Is(err, dataset.ErrUnsupportedCompression), errors.Is(err, core.ErrAlreadyCompressed):
		return http.StatusBadRequest
	case errors.Is(err, blob.ErrExists):
		return http.StatusConflict
	case errors.Is(err, ErrQueueFull):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": message})
}
