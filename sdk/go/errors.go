package digestmail

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors returned by the SDK.
var (
	// ErrUnauthorized is returned when the server requires a valid token.
	ErrUnauthorized = errors.New("digestmail: token is missing, invalid or expired")

	// ErrSendInProgress is returned by Send while another run is active.
	ErrSendInProgress = errors.New("digestmail: a send is already in progress")
)

// APIError represents an error response from the compose API.
type APIError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("digestmail: API error %d [%s]: %s", e.StatusCode, e.Code, e.Message)
}

// apiErrorWrapper matches the API error envelope.
type apiErrorWrapper struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func parseAPIError(statusCode int, body []byte) error {
	apiErr := &APIError{StatusCode: statusCode, Code: "unknown", Message: string(body)}

	var wrapper apiErrorWrapper
	if err := json.Unmarshal(body, &wrapper); err == nil && wrapper.Error.Code != "" {
		apiErr.Code = wrapper.Error.Code
		apiErr.Message = wrapper.Error.Message
	}

	switch statusCode {
	case http.StatusUnauthorized:
		return fmt.Errorf("%w: %w", ErrUnauthorized, apiErr)
	case http.StatusConflict:
		return fmt.Errorf("%w: %w", ErrSendInProgress, apiErr)
	}
	return apiErr
}

// IsAPIError checks whether err is or wraps an APIError and returns it.
func IsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}
