package utils

import (
	"encoding/json"
	"net/http"
	"time"

	"ms-vitotrips/internal/apperror"
)

type APIResponse struct {
	Success   bool        `json:"success"`
	Message   string      `json:"message"`
	Data      interface{} `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

func SuccessResponse(message string, data interface{}) APIResponse {
	return APIResponse{
		Success:   true,
		Message:   message,
		Data:      data,
		Timestamp: time.Now(),
	}
}

func ErrorResponse(message, error string) APIResponse {
	return APIResponse{
		Success:   false,
		Message:   message,
		Error:     error,
		Timestamp: time.Now(),
	}
}

func WriteJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func WriteSuccess(w http.ResponseWriter, status int, message string, data interface{}) {
	WriteJSON(w, status, SuccessResponse(message, data))
}

func WriteError(w http.ResponseWriter, status int, message, detail string) {
	WriteJSON(w, status, ErrorResponse(message, detail))
}

// WriteAppError maps an error kind to its HTTP status. Internal errors are not
// echoed back to the client.
func WriteAppError(w http.ResponseWriter, message string, err error) {
	status := apperror.HTTPStatus(err)
	detail := err.Error()
	if status == http.StatusInternalServerError {
		detail = "internal server error"
	}
	WriteError(w, status, message, detail)
}
