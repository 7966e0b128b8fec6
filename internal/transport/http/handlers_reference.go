package httptransport

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"routeaudit/internal/refdata"
	dErrors "routeaudit/pkg/domain-errors"
)

type categoryResponse struct {
	Category string   `json:"category"`
	Values   []string `json:"values"`
}

func (h *Handler) handleListCategory(w http.ResponseWriter, r *http.Request) {
	category, err := refdata.ParseCategory(chi.URLParam(r, "category"))
	if err != nil {
		writeError(w, err)
		return
	}
	values, err := h.reference.List(r.Context(), category)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, categoryResponse{Category: string(category), Values: values})
}

func (h *Handler) handleListSections(w http.ResponseWriter, r *http.Request) {
	sections, err := h.reference.ListSections(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sections": sections})
}

type referenceValueRequest struct {
	Value string `json:"value"`
}

func (h *Handler) handleAddReference(w http.ResponseWriter, r *http.Request) {
	category, err := refdata.ParseCategory(chi.URLParam(r, "category"))
	if err != nil {
		writeError(w, err)
		return
	}
	var req referenceValueRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	req.Value = strings.TrimSpace(req.Value)
	if req.Value == "" {
		writeError(w, dErrors.New(dErrors.CodeValidation, "value is required"))
		return
	}
	if err := h.reference.Add(r.Context(), category, req.Value); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (h *Handler) handleRemoveReference(w http.ResponseWriter, r *http.Request) {
	category, err := refdata.ParseCategory(chi.URLParam(r, "category"))
	if err != nil {
		writeError(w, err)
		return
	}
	var req referenceValueRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := h.reference.Remove(r.Context(), category, req.Value); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
