// Package handler exposes the JSON API over the report service.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/brconsult/fichevisite/internal/domain"
)

// ErrorResponse writes a JSON error response, mapping the domain error code
// to an HTTP status. Validation errors carry their per-field messages.
func ErrorResponse(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		logger.Info("validation error",
			"op", ve.Op,
			"field_count", len(ve.Fields),
			"path", r.URL.Path,
		)
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error": map[string]any{
				"code":    domain.EINVALID,
				"message": "Certains champs sont invalides.",
				"fields":  ve.Fields,
			},
		})
		return
	}

	code := domain.ErrorCode(err)
	status := errorCodeToHTTPStatus(code)

	attrs := []any{
		"code", code,
		"op", domain.ErrorOp(err),
		"status", status,
		"path", r.URL.Path,
		"method", r.Method,
	}
	if status >= 500 {
		logger.Error("request failed", append(attrs, "error", err)...)
	} else {
		logger.Info("request rejected", attrs...)
	}

	writeJSON(w, status, map[string]any{
		"error": map[string]any{
			"code":    code,
			"message": domain.ErrorMessage(err),
		},
	})
}

func errorCodeToHTTPStatus(code string) int {
	switch code {
	case domain.EINVALID:
		return http.StatusBadRequest
	case domain.ENOTFOUND:
		return http.StatusNotFound
	case domain.ETOOLARGE:
		return http.StatusRequestEntityTooLarge
	case domain.ERATELIMIT:
		return http.StatusTooManyRequests
	case domain.EUNAVAILABLE:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
