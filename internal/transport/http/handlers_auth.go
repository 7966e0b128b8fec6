package httptransport

import (
	"net/http"

	"routeaudit/internal/platform/middleware"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	token, err := h.auth.Login(req.Username, req.Password)
	if err != nil {
		h.logger.WarnContext(r.Context(), "login rejected",
			"request_id", middleware.GetRequestID(r.Context()),
			"username", req.Username,
		)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{Token: token})
}

type elevateRequest struct {
	Password string `json:"password"`
}

func (h *Handler) handleElevate(w http.ResponseWriter, r *http.Request) {
	var req elevateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	token, err := h.auth.Elevate(middleware.GetSession(r.Context()), req.Password)
	if err != nil {
		h.logger.WarnContext(r.Context(), "admin elevation rejected",
			"request_id", middleware.GetRequestID(r.Context()),
		)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{Token: token})
}
