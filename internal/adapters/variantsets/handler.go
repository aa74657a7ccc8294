// Package variantsets serves variant set membership over HTTP.
package variantsets

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"genomedesigner/internal/variantset"
	"genomedesigner/pkg/domain"
)

const prefix = "/api/v1/variant-sets/"

// Service is the application surface used by the handler.
type Service interface {
	AddOrRemoveVariantsFromSet(ctx context.Context, req variantset.Request) (variantset.Outcome, error)
	VariantSetMembers(ctx context.Context, setID string) ([]string, error)
}

// Handler routes variant set membership requests.
type Handler struct {
	Service Service
	// Logger receives store failures behind error outcomes. Nil uses slog.Default.
	Logger *slog.Logger
}

func (h *Handler) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

// NewHandler constructs a variant set handler.
func NewHandler(svc Service) *Handler {
	return &Handler{Service: svc}
}

type modifyRequest struct {
	VariantIDs []string `json:"variant_uid_list"`
	Action     string   `json:"variant_set_action"`
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.Service == nil {
		writeError(w, http.StatusInternalServerError, "variant set service not configured")
		return
	}
	path := strings.TrimSuffix(r.URL.Path, "/")
	if !strings.HasPrefix(path, prefix) {
		http.NotFound(w, r)
		return
	}
	segments := strings.Split(strings.TrimPrefix(path, prefix), "/")
	if len(segments) != 2 || segments[0] == "" || segments[1] != "variants" {
		writeError(w, http.StatusNotFound, "variant set endpoint not found")
		return
	}
	setID := segments[0]
	switch r.Method {
	case http.MethodGet:
		h.handleMembers(w, r, setID)
	case http.MethodPost:
		h.handleModify(w, r, setID)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (h *Handler) handleMembers(w http.ResponseWriter, r *http.Request, setID string) {
	ids, err := h.Service.VariantSetMembers(r.Context(), setID)
	var nf domain.ErrNotFound
	switch {
	case errors.As(err, &nf):
		writeError(w, http.StatusNotFound, "variant set not found")
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"variant_uids": ids})
}

// handleModify always answers 200 with an alert once the body parses; failed
// reconciliations are reported in the alert, not the status code.
func (h *Handler) handleModify(w http.ResponseWriter, r *http.Request, setID string) {
	var req modifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid variant set request payload")
		return
	}
	outcome, err := h.Service.AddOrRemoveVariantsFromSet(r.Context(), variantset.Request{
		VariantIDs: req.VariantIDs,
		Action:     variantset.Action(req.Action),
		SetID:      setID,
	})
	if err != nil {
		h.logger().ErrorContext(r.Context(), "variant set update failed",
			"variant_set", setID, "action", req.Action, "error", err)
		if outcome.Message == "" {
			outcome = variantset.Outcome{Level: variantset.LevelError, Message: "Variant set could not be updated."}
		}
	}
	writeJSON(w, http.StatusOK, outcome)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": message})
}
