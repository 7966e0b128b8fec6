// Package httptransport is the thin HTTP layer. It delegates to the domain
// services and keeps routing, parsing, and response envelopes out of the
// business logic.
package httptransport

import (
	"encoding/json"
	"errors"
	"net/http"

	dErrors "routeaudit/pkg/domain-errors"
)

// writeError translates domain errors to the shared JSON error envelope.
func writeError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(dErrors.ToHTTPStatus(code))
	message := ""
	var de *dErrors.Error
	if errors.As(err, &de) {
		message = de.Message
	}
	_ = json.NewEncoder(w).Encode(errorResponse{Error: string(code), Message: message})
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func decodeJSON(r *http.Request, into any) error {
	if err := json.NewDecoder(r.Body).Decode(into); err != nil {
		return dErrors.New(dErrors.CodeValidation, "invalid request body")
	}
	return nil
}
