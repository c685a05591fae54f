package rest

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/altolabs/clefshift/internal/core/domain"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func isJSONContentType(r *http.Request) bool {
	ct := r.Header.Get("Content-Type")
	return ct == "" || strings.HasPrefix(ct, "application/json")
}

// statusFor maps the domain error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrUnknownTask):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidOptions):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrCapacityExceeded):
		return http.StatusTooManyRequests
	case errors.Is(err, domain.ErrTaskActive):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
