package apperr

import (
	"errors"
	"fmt"
	"testing"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsMatchesByCode(t *testing.T) {
	wrapped := fmt.Errorf("reserve: %w", ErrTicketAlreadyReserved.Wrap(errors.New("row changed")))

	assert.True(t, errors.Is(wrapped, ErrTicketAlreadyReserved))
	assert.False(t, errors.Is(wrapped, ErrTicketReserved))
	assert.Equal(t, KindConflict, KindOf(wrapped))
	assert.Equal(t, KindUnknown, KindOf(errors.New("plain")))
}

func TestWithMessageKeepsIdentity(t *testing.T) {
	err := ErrOrderNotFound.WithMessage("Order abc not found")

	assert.True(t, errors.Is(err, ErrOrderNotFound))
	assert.Equal(t, "Order not found", ErrOrderNotFound.Message)
	assert.Equal(t, []FieldError{{Message: "Order abc not found"}}, err.Details())
}

func TestFromValidation(t *testing.T) {
	in := struct {
		Email    string
		Password string
	}{Email: "", Password: "ab"}

	err := validation.Errors{
		"email":    validation.Validate(in.Email, validation.Required),
		"password": validation.Validate(in.Password, validation.Length(4, 20)),
	}.Filter()
	require.Error(t, err)

	got := FromValidation(err)
	var appErr *Error
	require.True(t, errors.As(got, &appErr))
	assert.Equal(t, KindValidation, appErr.Kind)
	require.Len(t, appErr.Fields, 2)
	assert.Equal(t, "email", appErr.Fields[0].Field)
	assert.Equal(t, "password", appErr.Fields[1].Field)
}

func TestFromValidationPassesOtherErrors(t *testing.T) {
	plain := errors.New("boom")
	assert.Same(t, plain, FromValidation(plain))
	assert.NoError(t, FromValidation(nil))
}
