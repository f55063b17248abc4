package response

import (
	"encoding/json"
	"errors"
	"net/http"

	pkgErrors "github.com/mcservers/playersessions/pkg/errors"
)

type Resp struct {
	ErrorCode string `json:"error_code,omitempty"`
	Message   string `json:"message"`
	Data      any    `json:"data,omitempty"`
}

func parseHttpError(err error) (int, Resp) {
	var httpErr *pkgErrors.HTTPError
	if errors.As(err, &httpErr) {
		statusCode := httpErr.StatusCode
		if statusCode == 0 {
			statusCode = http.StatusBadRequest
		}

		return statusCode, Resp{
			ErrorCode: httpErr.Code,
			Message:   httpErr.Message,
		}
	}

	return http.StatusInternalServerError, Resp{
		ErrorCode: "internal",
		Message:   "Internal server error",
	}
}

// JSON writes data with statusCode. An encode failure is returned so the
// caller can log it; the status line is already on the wire by then.
func JSON(w http.ResponseWriter, statusCode int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(data)
}

func OK(w http.ResponseWriter, statusCode int, message string, data any) error {
	return JSON(w, statusCode, Resp{Message: message, Data: data})
}

// Error writes err as a Resp. Errors that are not an *HTTPError become a
// generic 500 so internal details are not leaked.
func Error(w http.ResponseWriter, err error) error {
	statusCode, resp := parseHttpError(err)
	return JSON(w, statusCode, resp)
}
