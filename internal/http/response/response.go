// Package response provides JSON response writing and error mapping for the
// REST resources. Entity bodies are written as plain JSON so clients of the
// original directory protocol keep working unchanged.
package response

import (
	"encoding/json/v2"
	"log/slog"
	"net/http"

	domainerrors "github.com/channelfinder/channelfinder-server/internal/errors"
)

// ErrorBody is the JSON shape of an error response.
type ErrorBody struct {
	Status  int               `json:"status"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

// JSON writes data as a plain JSON body with the given status using json/v2.
func JSON(w http.ResponseWriter, status int, data any, logger *slog.Logger) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)

	if err := json.MarshalWrite(w, data); err != nil {
		if logger != nil {
			logger.Error("Failed to encode JSON response", "error", err)
		}
	}
}

// Success writes a successful JSON response (200 OK).
func Success(w http.ResponseWriter, data any, logger *slog.Logger) {
	JSON(w, http.StatusOK, data, logger)
}

// NoContent writes a no content response (204 No Content).
func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// Error writes an error body with the given status code.
func Error(w http.ResponseWriter, status int, message string, details map[string]string, logger *slog.Logger) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)

	body := ErrorBody{
		Status:  status,
		Message: message,
		Details: details,
	}
	if err := json.MarshalWrite(w, body); err != nil {
		if logger != nil {
			logger.Error("Failed to encode error response", "error", err)
		}
	}
}

// BadRequest writes a 400 Bad Request response.
func BadRequest(w http.ResponseWriter, message string, logger *slog.Logger) {
	Error(w, http.StatusBadRequest, message, nil, logger)
}

// Unauthorized writes a 401 Unauthorized response with a basic-auth challenge.
func Unauthorized(w http.ResponseWriter, message string, logger *slog.Logger) {
	w.Header().Set("WWW-Authenticate", `Basic realm="ChannelFinder"`)
	Error(w, http.StatusUnauthorized, message, nil, logger)
}

// TooManyRequests writes a 429 Too Many Requests response.
func TooManyRequests(w http.ResponseWriter, logger *slog.Logger) {
	Error(w, http.StatusTooManyRequests, "rate limit exceeded", nil, logger)
}

// InternalError writes a 500 Internal Server Error response.
func InternalError(w http.ResponseWriter, message string, logger *slog.Logger) {
	Error(w, http.StatusInternalServerError, message, nil, logger)
}

// HandleError writes an appropriate HTTP response based on the error type.
// Domain errors are mapped to their HTTP codes, unknown errors become 500.
func HandleError(w http.ResponseWriter, err error, logger *slog.Logger) {
	var domErr *domainerrors.Error
	if domainerrors.As(err, &domErr) {
		if domErr.Code == domainerrors.CodeUnauthorized {
			w.Header().Set("WWW-Authenticate", `Basic realm="ChannelFinder"`)
		}
		Error(w, domErr.HTTPStatus(), domErr.Message, domErr.Details, logger)
		return
	}

	// Unknown error = 500
	if logger != nil {
		logger.Error("Unhandled error", "error", err)
	}
	InternalError(w, "internal server error", logger)
}
