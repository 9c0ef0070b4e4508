package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"replay-proxy/internal/adapters/codec"
	"replay-proxy/internal/domain"
)

type apiErrorBody struct {
	Error apiError `json:"error"`
}

type apiError struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

func writeError(w http.ResponseWriter, status int, code string, message string, details interface{}) {
	if code == "" {
		code = http.StatusText(status)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(apiErrorBody{Error: apiError{Code: code, Message: message, Details: details}})
}

// writeDomainError maps typed errors to their status; anything else is a 500.
func writeDomainError(w http.ResponseWriter, err error, details interface{}) {
	var (
		conflict  *domain.ConflictError
		malformed *domain.MalformedInputError
		codecErr  *codec.Error
	)
	switch {
	case errors.As(err, &conflict):
		writeError(w, http.StatusConflict, "CONFLICT", conflict.Message, details)
	case errors.As(err, &malformed):
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", malformed.Error(), details)
	case errors.As(err, &codecErr):
		writeError(w, http.StatusBadGateway, "CODEC_ERROR", codecErr.Error(), details)
	default:
		writeError(w, http.StatusInternalServerError, "INTERNAL", err.Error(), details)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	for _, m := range allowed {
		w.Header().Add("Allow", m)
	}
	writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed", nil)
}
