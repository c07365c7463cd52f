package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/yndnr/plonemetrics-go/internal/core/domain"
	"github.com/yndnr/plonemetrics-go/internal/telemetry/logger"
)

// ContentType is the media type of the exposition feed.
const ContentType = "text/plain; version=0.0.4; charset=utf-8"

// handleMetrics handles GET on the metrics path.
//
// A scrape only fails as a whole when every collector failed or a metric
// could not be rendered. Unavailable collectors are left out of the body.
func (h *Handler) handleMetrics(w http.ResponseWriter, r *http.Request) {
	body, err := h.scraper.Render(r.Context())
	if err != nil {
		if r.Context().Err() != nil {
			logger.L(r.Context()).Debug("scrape abandoned by client", "error", err)
			return
		}

		code := domain.GetErrorCode(err)
		switch {
		case errors.Is(err, domain.ErrAllCollectorsFailed):
			logger.L(r.Context()).Error("scrape failed, no collector succeeded", "error", err)
		case errors.Is(err, domain.ErrMalformedMetricName), errors.Is(err, domain.ErrMalformedMetricValue):
			logger.L(r.Context()).Error("scrape produced an invalid metric", "error", err)
		default:
			logger.L(r.Context()).Error("scrape failed", "error", err)
			code = domain.ErrInternalServer.Code
		}
		h.writeError(w, r, http.StatusInternalServerError, code, err.Error())
		return
	}

	w.Header().Set("Content-Type", ContentType)
	w.WriteHeader(http.StatusOK)
	if _, err := io.WriteString(w, body); err != nil {
		logger.L(r.Context()).Debug("failed to write scrape body", "error", err)
	}
}
