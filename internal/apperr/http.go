package apperr

import (
	"errors"
	"net/http"
)

// Response is the JSON error envelope returned by every HTTP surface.
type Response struct {
	Errors []FieldError `json:"errors"`
}

// StatusCode maps err to the HTTP status a caller should see. Routes that
// need a different status for a specific failure override it themselves.
func StatusCode(err error) int {
	var e *Error
	if !errors.As(err, &e) {
		return http.StatusInternalServerError
	}

	switch {
	case errors.Is(e, ErrInvalidCredentials), errors.Is(e, ErrOrderExpired), errors.Is(e, ErrCardDeclined):
		return http.StatusBadRequest
	case errors.Is(e, ErrRateLimited):
		return http.StatusTooManyRequests
	}

	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindAuth:
		return http.StatusUnauthorized
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindExternal:
		return http.StatusBadGateway
	case KindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// Body builds the envelope for err. Unclassified errors never leak their
// text.
func Body(err error) Response {
	var e *Error
	if errors.As(err, &e) {
		return Response{Errors: e.Details()}
	}
	return Response{Errors: []FieldError{{Message: "Something went wrong"}}}
}
