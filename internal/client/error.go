package client

import (
	"fmt"

	"github.com/bytedance/sonic"
)

// APIError is a non-2xx response from an external collaborator.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error (status %d): %s", e.StatusCode, e.Message)
}

// decodeAPIError accepts both error body shapes the collaborators produce:
// {"error":"..."} and {"error":{"message":"..."}}.
func decodeAPIError(status int, body []byte) *APIError {
	var flat struct {
		Error string `json:"error"`
	}
	if err := sonic.Unmarshal(body, &flat); err == nil && flat.Error != "" {
		return &APIError{StatusCode: status, Message: flat.Error}
	}

	var nested struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := sonic.Unmarshal(body, &nested); err == nil && nested.Error.Message != "" {
		return &APIError{StatusCode: status, Message: nested.Error.Message}
	}

	return &APIError{StatusCode: status, Message: fmt.Sprintf("unexpected status %d", status)}
}
