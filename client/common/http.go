package common

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// HTTPError error response of the service
type HTTPError struct {
	Code    int    `json:"-"`
	Reason  string `json:"error"`
	Message string `json:"message,omitempty"`
}

func (e *HTTPError) Error() string {
	reason := e.Reason
	if reason == "" {
		reason = http.StatusText(e.Code)
	}

	if e.Message == "" {
		return reason
	}
	return fmt.Sprintf("%s: %s", reason, e.Message)
}

// NewHTTPError decode error body; body that is not an error document becomes message
func NewHTTPError(code int, body io.Reader) *HTTPError {
	httpErr := &HTTPError{Code: code}

	data, err := io.ReadAll(body)
	if err != nil || len(data) == 0 {
		return httpErr
	}

	if err := json.Unmarshal(data, httpErr); err != nil {
		httpErr.Message = string(data)
	}
	httpErr.Code = code

	return httpErr
}
