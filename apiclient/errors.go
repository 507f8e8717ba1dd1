package apiclient

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/tidwall/gjson"
)

var (
	// ErrNoRefreshToken is returned by Refresh when there is nothing to refresh with.
	ErrNoRefreshToken = errors.New("no refresh token available")
	// ErrRefreshFailed is returned when the refresh endpoint answers without a new access token.
	ErrRefreshFailed = errors.New("failed to refresh token")
	// ErrNoData is returned by Decode when the envelope carries no data.
	ErrNoData = errors.New("response has no data")
)

// ErrorDetail is the "detail" member the backend attaches to business errors.
type ErrorDetail struct {
	Message   string
	ErrorCode string
}

// APIError is any failed backend call. Status is 0 for transport failures
// and 408 for timeouts.
type APIError struct {
	Status  int
	Message string
	Body    []byte
	Detail  *ErrorDetail
	Err     error
}

func (e *APIError) Error() string {
	if e.Status == 0 {
		return e.Message
	}
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

func (e *APIError) Unwrap() error { return e.Err }

// newAPIError builds the error for a non-2xx response. The message is the
// body's "message", then its "error", then "HTTP <status>".
func newAPIError(status int, body []byte) *APIError {
	e := &APIError{Status: status, Body: body}
	if gjson.ValidBytes(body) {
		if m := gjson.GetBytes(body, "message"); m.Type == gjson.String && m.String() != "" {
			e.Message = m.String()
		} else if m := gjson.GetBytes(body, "error"); m.Type == gjson.String && m.String() != "" {
			e.Message = m.String()
		}
		e.Detail = parseDetail(body)
	} else {
		e.Body = nil
	}
	if e.Message == "" {
		e.Message = fmt.Sprintf("HTTP %d", status)
	}
	return e
}

func parseDetail(body []byte) *ErrorDetail {
	d := gjson.GetBytes(body, "detail")
	switch {
	case d.Type == gjson.String:
		return &ErrorDetail{Message: d.String()}
	case d.IsObject():
		return &ErrorDetail{
			Message:   d.Get("message").String(),
			ErrorCode: d.Get("error_code").String(),
		}
	case gjson.GetBytes(body, "error_code").Exists():
		return &ErrorDetail{
			Message:   gjson.GetBytes(body, "message").String(),
			ErrorCode: gjson.GetBytes(body, "error_code").String(),
		}
	}
	return nil
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

// IsStatus reports whether err is an APIError with the given status.
func IsStatus(err error, status int) bool {
	return err != nil && StatusOf(err) == status
}

// IsNotFound reports whether the backend answered 404.
func IsNotFound(err error) bool {
	return IsStatus(err, http.StatusNotFound)
}

// UserMessage picks the most specific human-readable message out of err:
// the detail message, then the error message, then fallback.
func UserMessage(err error, fallback string) string {
	if err == nil {
		return fallback
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if apiErr.Detail != nil && apiErr.Detail.Message != "" {
			return apiErr.Detail.Message
		}
		if apiErr.Message != "" {
			return apiErr.Message
		}
		return fallback
	}
	if msg := err.Error(); msg != "" {
		return msg
	}
	return fallback
}

// ErrorCode returns the backend error code carried by err, if any.
func ErrorCode(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Detail != nil {
		return apiErr.Detail.ErrorCode
	}
	return ""
}
