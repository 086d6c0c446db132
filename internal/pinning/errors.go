package pinning

import (
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
)

var (
	// ErrTokenMissing means no bearer credential is configured. Fatal for
	// any operation that talks to the service.
	ErrTokenMissing = errors.New("pinning: api token missing")

	// ErrSignFailed means the presign endpoint refused or returned no URL.
	ErrSignFailed = errors.New("pinning: sign request failed")

	// ErrUploadIncomplete means the upload endpoint answered 2xx but the
	// response lacked the expected CID field.
	ErrUploadIncomplete = errors.New("pinning: upload response missing cid")
)

// APIError is a non-2xx response from the service.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("pinning: %s (status %d)", e.Message, e.Status)
}

// apiError extracts the most useful message from an error body: the JSON
// "error" field, then "message", then the HTTP status text.
func apiError(status int, statusText string, body []byte) *APIError {
	msg := statusText
	if v := gjson.GetBytes(body, "error"); v.Exists() && v.String() != "" {
		msg = v.String()
	} else if v := gjson.GetBytes(body, "message"); v.Exists() && v.String() != "" {
		msg = v.String()
	}
	return &APIError{Status: status, Message: msg}
}
