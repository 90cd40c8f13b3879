package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/Strob0t/democrm/internal/domain"
	"github.com/Strob0t/democrm/internal/tenancy"
)

const maxRequestBodySize = 1 << 20 // 1 MB

// ---------------------------------------------------------------------------
// Request helpers
// ---------------------------------------------------------------------------

// readJSON decodes a JSON request body with a size limit.
func readJSON[T any](w http.ResponseWriter, r *http.Request) (T, bool) {
	var v T
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		} else {
			writeError(w, http.StatusBadRequest, "invalid request body")
		}
		return v, false
	}
	return v, true
}

// urlParam is a short alias for chi.URLParam.
func urlParam(r *http.Request, name string) string {
	return chi.URLParam(r, name)
}

// ---------------------------------------------------------------------------
// Response helpers
// ---------------------------------------------------------------------------

const (
	statusSuccess = "Success"
	statusFailed  = "Failed"
)

type successResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

type errorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to write JSON response", "error", err)
	}
}

func writeSuccess(w http.ResponseWriter, status int, message string, data any) {
	writeJSON(w, status, successResponse{Status: statusSuccess, Message: message, Data: data})
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Status: statusFailed, Message: message})
}

// writeDomainError maps a service error to its HTTP status. Tenancy
// sentinels are checked before the generic domain ones because they may
// wrap each other.
func writeDomainError(w http.ResponseWriter, err error, fallbackMsg string) {
	switch {
	case errors.Is(err, tenancy.ErrTenantNotFound):
		writeError(w, http.StatusBadRequest, tenancy.ErrTenantNotFound.Error())
	case errors.Is(err, tenancy.ErrDuplicateTenant):
		writeError(w, http.StatusConflict, tenancy.ErrDuplicateTenant.Error())
	case errors.Is(err, tenancy.ErrReservedName):
		writeError(w, http.StatusBadRequest, tenancy.ErrReservedName.Error())
	case errors.Is(err, tenancy.ErrInvalidName):
		writeError(w, http.StatusBadRequest, tenancy.ErrInvalidName.Error())
	case errors.Is(err, tenancy.ErrTenantRequired):
		writeError(w, http.StatusBadRequest, "a company header is required")
	case errors.Is(err, tenancy.ErrNotPublic):
		writeError(w, http.StatusBadRequest, "companies can only be created without a company header")
	case errors.Is(err, tenancy.ErrPartitionBinding):
		slog.Error("partition binding failed", "error", err)
		writeError(w, http.StatusServiceUnavailable, "company data is temporarily unavailable")
	case errors.Is(err, domain.ErrForbidden):
		writeError(w, http.StatusForbidden, messageBefore(err, domain.ErrForbidden))
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, fallbackMsg)
	case errors.Is(err, domain.ErrConflict):
		writeError(w, http.StatusConflict, messageBefore(err, domain.ErrConflict))
	case errors.Is(err, domain.ErrValidation):
		msg := err.Error()
		if i := strings.Index(msg, domain.ErrValidation.Error()+": "); i >= 0 {
			msg = msg[i+len(domain.ErrValidation.Error())+2:]
		}
		writeError(w, http.StatusBadRequest, msg)
	default:
		writeInternalError(w, err)
	}
}

// messageBefore returns the part of err's message preceding the sentinel,
// or the sentinel's own text when nothing precedes it.
func messageBefore(err, sentinel error) string {
	msg := strings.TrimSuffix(err.Error(), ": "+sentinel.Error())
	if msg == "" || msg == err.Error() {
		return sentinel.Error()
	}
	return msg
}

// writeInternalError logs the actual error server-side and returns a generic message to the client.
func writeInternalError(w http.ResponseWriter, err error) {
	slog.Error("request failed", "error", err)
	writeError(w, http.StatusInternalServerError, "internal server error")
}
