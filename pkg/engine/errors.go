package engine

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/escalaflow/scalegate/pkg/contracts"
)

// APIError is returned when the engine responds with a non-2xx status.
type APIError struct {
	Status  int
	Message string
	// Detail is the raw "detail" member of the error body, if any.
	Detail json.RawMessage
}

func (e *APIError) Error() string {
	return fmt.Sprintf("engine api %d: %s", e.Status, e.Message)
}

// ConflictDetail is the body of a 409 raised after a successful preflight:
// the engine found warnings requiring acknowledgment that the client did not send.
type ConflictDetail struct {
	Message          string            `json:"message"`
	CriticalWarnings []contracts.Issue `json:"critical_warnings"`
	// DecodeErr is set when the detail object did not match this shape.
	DecodeErr        error             `json:"-"`
}

// BlockedDetail is the body of a 422 raised when blockers appear at execution time.
type BlockedDetail struct {
	Message  string            `json:"message"`
	Blockers []contracts.Issue `json:"blockers"`
}

// IsConflict reports whether err is an engine 409 and returns its parsed detail.
// A conflict with an unstructured detail still counts; CriticalWarnings is then nil.
func IsConflict(err error) (*ConflictDetail, bool) {
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusConflict {
		return nil, false
	}
	d := &ConflictDetail{Message: apiErr.Message}
	if len(apiErr.Detail) > 0 && apiErr.Detail[0] == '{' {
		if err := json.Unmarshal(apiErr.Detail, d); err != nil {
			d.DecodeErr = fmt.Errorf("decode conflict detail: %w", err)
		}
	}
	if d.Message == "" {
		d.Message = apiErr.Message
	}
	return d, true
}

// IsBlocked reports whether err is an engine 422 carrying blockers.
func IsBlocked(err error) (*BlockedDetail, bool) {
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusUnprocessableEntity {
		return nil, false
	}
	if len(apiErr.Detail) == 0 || apiErr.Detail[0] != '{' {
		return nil, false
	}
	var d BlockedDetail
	if err := json.Unmarshal(apiErr.Detail, &d); err != nil || len(d.Blockers) == 0 {
		return nil, false
	}
	if d.Message == "" {
		d.Message = apiErr.Message
	}
	return &d, true
}

// errorBody mirrors FastAPI's {"detail": string | object} envelope.
type errorBody struct {
	Detail json.RawMessage `json:"detail"`
}

// newAPIError extracts the message from detail when it is a string, or from
// detail.message when it is an object, falling back to the status text.
func newAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{Status: status, Message: http.StatusText(status)}
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err != nil || len(eb.Detail) == 0 {
		return apiErr
	}
	apiErr.Detail = eb.Detail

	var s string
	if err := json.Unmarshal(eb.Detail, &s); err == nil {
		if s != "" {
			apiErr.Message = s
		}
		return apiErr
	}
	var obj struct {
		Message *string `json:"message"`
	}
	if err := json.Unmarshal(eb.Detail, &obj); err == nil && obj.Message != nil && *obj.Message != "" {
		apiErr.Message = *obj.Message
	}
	return apiErr
}
