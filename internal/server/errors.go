package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	e "github.com/mkarstad/repolens/internal/errors"
	"github.com/mkarstad/repolens/internal/logging"
)

type ErrorResponse struct {
	Success bool   `json:"success"`
	Cause   string `json:"cause"`
}

// writeErrorResponse maps the error to a status code, writes the JSON error
// body and returns the status code for logging.
func writeErrorResponse(ctx context.Context, w http.ResponseWriter, responseError error) int {
	w.Header().Set("Content-Type", "application/json")

	errorResponse := ErrorResponse{
		Success: false,
		Cause:   responseError.Error(),
	}
	errorBytes, err := json.Marshal(errorResponse)
	if err != nil {
		logging.FromContext(ctx).Error("Error marshalling error response", "error", err.Error())
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"success":false,"cause":"Internal server error (repolens)"}`))
		return http.StatusInternalServerError
	}

	// Unknown error: default to 500
	statusCode := http.StatusInternalServerError

	if errors.Is(responseError, e.UpstreamError) {
		statusCode = http.StatusBadGateway
	} else if errors.Is(responseError, e.APIClientError) {
		statusCode = http.StatusBadRequest
	} else if errors.Is(responseError, e.RatelimitExceededError) {
		statusCode = http.StatusTooManyRequests
	}

	w.WriteHeader(statusCode)
	w.Write(errorBytes)

	return statusCode
}
