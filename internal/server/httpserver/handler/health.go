package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/yndnr/plonemetrics-go/internal/core/domain"
)

// handleHealth handles GET /health.
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, r, http.StatusOK, HealthResponse{
		Status: "healthy",
		Time:   time.Now().UTC().Format(time.RFC3339),
	})
}

// handleReady handles GET /ready.
func (h *Handler) handleReady(w http.ResponseWriter, r *http.Request) {
	if h.ready != nil {
		if err := h.ready(r.Context()); err != nil {
			code := domain.GetErrorCode(err)
			if code == "" {
				code = domain.ErrInternalServer.Code
			}
			resp := NewErrorResponse(requestID(r), code, "not ready")
			resp.Data = HealthResponse{
				Status: "not_ready",
				Time:   time.Now().UTC().Format(time.RFC3339),
				Reason: err.Error(),
			}
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("X-Error-Code", code)
			w.WriteHeader(http.StatusServiceUnavailable)
			if err := json.NewEncoder(w).Encode(resp); err != nil {
				h.logger.Error("failed to encode response", "error", err)
			}
			return
		}
	}
	h.writeJSON(w, r, http.StatusOK, HealthResponse{
		Status: "ready",
		Time:   time.Now().UTC().Format(time.RFC3339),
	})
}
