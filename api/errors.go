package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Error is a boundary failure. Status 0 means no response was received at
// all (network unreachable); any other status carries whatever message the
// server reported.
type Error struct {
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("api: %s: %v", e.Message, e.Err)
	}
	return fmt.Sprintf("api: status %d: %s", e.Status, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Unreachable reports whether the failure was transport-level, with no HTTP
// status to show for it.
func (e *Error) Unreachable() bool { return e.Status == 0 }

// decodeError extracts the server's message from an error response. JSON
// bodies with a message or error field are preferred; otherwise the raw body
// text, then the status text.
func decodeError(resp *http.Response) *Error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	var payload struct {
		Message string `json:"message"`
		ErrMsg  string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.Message != "" {
			return &Error{Status: resp.StatusCode, Message: payload.Message}
		}
		if payload.ErrMsg != "" {
			return &Error{Status: resp.StatusCode, Message: payload.ErrMsg}
		}
	}
	if text := strings.TrimSpace(string(body)); text != "" {
		return &Error{Status: resp.StatusCode, Message: text}
	}
	return &Error{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
}
