package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"capitalfriends/pkg/capfriends"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error     string         `json:"error"`
	ErrorCode string         `json:"error_code,omitempty"`
	Category  string         `json:"category,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
	RequestID string         `json:"request_id,omitempty"`
}

type errorMessageSetter interface {
	SetErrorMessage(message string)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	if setter, ok := w.(errorMessageSetter); ok {
		setter.SetErrorMessage(message)
	}
	writeJSON(w, status, ErrorResponse{Error: message})
}

// writeCoreError maps an engine error to its HTTP status and writes the
// code, category and details alongside the message.
func writeCoreError(w http.ResponseWriter, r *http.Request, err error) {
	response := ErrorResponse{
		Error:     err.Error(),
		RequestID: middleware.GetReqID(r.Context()),
	}
	status := http.StatusInternalServerError
	var coreErr *capfriends.Error
	if errors.As(err, &coreErr) {
		response.Error = coreErr.Message
		response.ErrorCode = string(coreErr.Code)
		response.Category = string(coreErr.Code.Category())
		response.Details = coreErr.Details
		status = statusForCode(coreErr.Code)
	}
	if setter, ok := w.(errorMessageSetter); ok {
		setter.SetErrorMessage(err.Error())
	}
	writeJSON(w, status, response)
}

func statusForCode(code capfriends.ErrorCode) int {
	if code == capfriends.ErrCodeDuplicate {
		return http.StatusConflict
	}
	switch code.Category() {
	case capfriends.CategoryValidation:
		return http.StatusBadRequest
	case capfriends.CategoryNotFound:
		return http.StatusNotFound
	case capfriends.CategoryConsistency:
		return http.StatusConflict
	case capfriends.CategoryDependency:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
