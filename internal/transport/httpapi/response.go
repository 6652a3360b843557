package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"market-delivery/internal/domain"
)

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// envelopeError is the failure shape of the success-envelope endpoints.
type envelopeError struct {
	Success bool   `json:"success"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func classify(err error) (int, string, string) {
	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized", "unauthorized"
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, "forbidden", "forbidden"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "not_found", "not found"
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict, "conflict", "conflict"
	case errors.Is(err, domain.ErrInvalid):
		return http.StatusUnprocessableEntity, "invalid", "invalid request"
	case errors.Is(err, domain.ErrUpstream):
		return http.StatusBadGateway, "upstream", "upstream unavailable"
	default:
		return http.StatusInternalServerError, "internal", "internal error"
	}
}

func writeError(w http.ResponseWriter, err error) {
	status, code, message := classify(err)
	respondJSON(w, status, errorResponse{Code: code, Message: message})
}

func writeEnvelopeError(w http.ResponseWriter, err error) {
	status, code, message := classify(err)
	respondJSON(w, status, envelopeError{Success: false, Code: code, Message: message})
}
