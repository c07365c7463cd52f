package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/yndnr/plonemetrics-go/internal/core/domain"
)

// handleGetObject handles GET /objects/{oid}.
func (h *Handler) handleGetObject(w http.ResponseWriter, r *http.Request) {
	oid, err := domain.ParseOID(r.PathValue("oid"))
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	state, err := h.objects.Get(r.Context(), oid)
	h.observer.RecordObjectOp("load", err)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)
	w.Write(state)
}

// handlePutObject handles PUT /objects/{oid}. The body is the new state.
func (h *Handler) handlePutObject(w http.ResponseWriter, r *http.Request) {
	oid, err := domain.ParseOID(r.PathValue("oid"))
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	limit := h.objects.MaxSize()
	state, err := io.ReadAll(http.MaxBytesReader(w, r.Body, int64(limit)))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			err = domain.ErrObjectTooLarge.WithDetails(err.Error())
		} else {
			err = domain.ErrBadRequest.WithDetails("read body").WithCause(err)
		}
		h.observer.RecordObjectOp("store", err)
		h.handleServiceError(w, r, err)
		return
	}

	err = h.objects.Put(r.Context(), oid, state)
	h.observer.RecordObjectOp("store", err)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.writeJSON(w, r, http.StatusOK, PutObjectResponse{OID: oid.String(), Size: len(state)})
}
