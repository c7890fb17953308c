// Package apperr holds the error taxonomy shared by every layer of the
// marketplace: stores and services return these values, handlers turn
// them into HTTP responses.
package apperr

import (
	"errors"
	"fmt"
	"sort"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindAuth
	KindNotFound
	KindConflict
	KindExternal
	KindTimeout
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuth:
		return "auth"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindExternal:
		return "external"
	case KindTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// FieldError is one field-level message of a validation failure.
type FieldError struct {
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// Error is a classified failure. Two errors are the same failure when their
// codes match, so sentinels stay comparable after Wrap or WithMessage.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Field   string
	Fields  []FieldError
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// Wrap returns a copy of e carrying cause.
func (e *Error) Wrap(cause error) *Error {
	cp := *e
	cp.Err = cause
	return &cp
}

// WithMessage returns a copy of e with a different human readable message.
func (e *Error) WithMessage(msg string) *Error {
	cp := *e
	cp.Message = msg
	return &cp
}

// Details returns the user facing messages of e.
func (e *Error) Details() []FieldError {
	if len(e.Fields) > 0 {
		return e.Fields
	}
	return []FieldError{{Field: e.Field, Message: e.Message}}
}

var (
	ErrInvalidCredentials = &Error{Kind: KindAuth, Code: "invalid_credentials", Message: "Invalid credentials"}
	ErrRateLimited        = &Error{Kind: KindAuth, Code: "rate_limited", Message: "Too many attempts, try again later"}
	ErrUnauthenticated    = &Error{Kind: KindAuth, Code: "unauthenticated", Message: "Not authorized"}
	ErrRelayUnavailable   = &Error{Kind: KindExternal, Code: "relay_unavailable", Message: "Authentication service unavailable"}
	ErrEmailInUse         = &Error{Kind: KindValidation, Code: "email_in_use", Message: "Email in use", Field: "email"}

	ErrTicketNotFound        = &Error{Kind: KindNotFound, Code: "ticket_not_found", Message: "Ticket not found"}
	ErrTicketAlreadyReserved = &Error{Kind: KindConflict, Code: "ticket_already_reserved", Message: "Ticket is already reserved"}
	ErrTicketReserved        = &Error{Kind: KindConflict, Code: "ticket_reserved", Message: "Cannot edit a reserved ticket"}
	ErrNotSeller             = &Error{Kind: KindAuth, Code: "not_seller", Message: "Not authorized"}

	ErrOrderNotFound   = &Error{Kind: KindNotFound, Code: "order_not_found", Message: "Order not found"}
	ErrNotOwner        = &Error{Kind: KindAuth, Code: "not_owner", Message: "Not authorized"}
	ErrAlreadyTerminal = &Error{Kind: KindConflict, Code: "already_terminal", Message: "Order is no longer active"}
	ErrOrderExpired    = &Error{Kind: KindConflict, Code: "order_expired", Message: "Order has expired"}

	ErrVersionConflict = &Error{Kind: KindConflict, Code: "version_conflict", Message: "The record was changed by another request"}
	ErrUnknownOutcome  = &Error{Kind: KindTimeout, Code: "unknown_outcome", Message: "The request timed out, refresh before retrying"}

	ErrCardDeclined       = &Error{Kind: KindExternal, Code: "card_declined", Message: "Card was declined"}
	ErrGatewayUnavailable = &Error{Kind: KindExternal, Code: "gateway_unavailable", Message: "Payment provider unavailable, try again"}
	ErrAlreadyPaid        = &Error{Kind: KindConflict, Code: "already_paid", Message: "Order is already paid"}
)

// KindOf reports the Kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Validation builds a validation failure out of field messages.
func Validation(fields ...FieldError) *Error {
	msg := "Invalid request"
	if len(fields) == 1 {
		msg = fields[0].Message
	}
	return &Error{Kind: KindValidation, Code: "validation", Message: msg, Fields: fields}
}

// FromValidation converts ozzo-validation results into a validation *Error.
// Other errors are returned unchanged.
func FromValidation(err error) error {
	if err == nil {
		return nil
	}
	var verrs validation.Errors
	if !errors.As(err, &verrs) {
		var single validation.Error
		if errors.As(err, &single) {
			return Validation(FieldError{Message: single.Error()})
		}
		return err
	}

	fields := make([]FieldError, 0, len(verrs))
	for field, ferr := range verrs {
		if ferr == nil {
			continue
		}
		fields = append(fields, FieldError{Field: field, Message: ferr.Error()})
	}
	sort.Slice(fields, func(i, j int) bool { return fields[i].Field < fields[j].Field })
	return Validation(fields...)
}
