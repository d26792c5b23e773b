package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"verify-service/internal/service"
	"verify-service/internal/util"
)

// Response is the uniform envelope for every endpoint. Success responses
// carry data, failures carry a single error string.
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func respondWithJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(Response{Success: true, Data: data}); err != nil {
		util.Error("Failed to encode response", zap.Error(err))
	}
}

func respondWithError(w http.ResponseWriter, err error) {
	status := getStatusCode(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		// Internal detail stays in the logs
		util.Error("Request failed", zap.Error(err))
		message = "internal server error"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if encodeErr := json.NewEncoder(w).Encode(Response{Success: false, Error: message}); encodeErr != nil {
		util.Error("Failed to encode error response", zap.Error(encodeErr))
	}
}

func respondWithMessage(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Response{Success: false, Error: message})
}

func getStatusCode(err error) int {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrOTPMismatch):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, service.ErrOTPExpired):
		return http.StatusGone
	default:
		return http.StatusInternalServerError
	}
}
