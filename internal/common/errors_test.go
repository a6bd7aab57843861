package common

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenErrors_WrapInvalidToken(t *testing.T) {
	for _, err := range []error{ErrTokenExpired, ErrTokenBadSignature, ErrTokenWrongType, ErrTokenRevoked} {
		assert.ErrorIs(t, err, ErrInvalidToken)
	}
}

func TestTokenErrorCode(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{ErrTokenExpired, "expired"},
		{fmt.Errorf("verify: %w", ErrTokenBadSignature), "bad_signature"},
		{ErrTokenWrongType, "wrong_type"},
		{ErrTokenRevoked, "revoked"},
		{ErrInvalidToken, "invalid"},
		{errors.New("other"), "invalid"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, TokenErrorCode(tt.err))
	}
}

func TestValidationError_CollectsAllFields(t *testing.T) {
	v := NewValidationError()
	require.True(t, v.Empty())
	require.NoError(t, v.OrNil())

	v.Add("password", "too short")
	v.Add("password", "too common")
	v.Add("email", "already registered")

	err := v.OrNil()
	require.Error(t, err)

	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Len(t, ve.Fields, 2)
	assert.Equal(t, []string{"too short", "too common"}, ve.Fields["password"])
	assert.Equal(t, "validation error: email: already registered, password: too short; too common", err.Error())
}

func TestDuplicateFieldError(t *testing.T) {
	var err error = &DuplicateFieldError{Field: "email"}
	var de *DuplicateFieldError
	require.ErrorAs(t, fmt.Errorf("create: %w", err), &de)
	assert.Equal(t, "email", de.Field)
	assert.Equal(t, "duplicate email", err.Error())
}

func TestValidationError_AddDuplicateMatchesDuplicateFieldError(t *testing.T) {
	v := NewValidationError()
	v.Add("password", "too short")
	v.AddDuplicate("email", "already registered")

	err := v.OrNil()

	var de *DuplicateFieldError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "email", de.Field)

	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, []string{"already registered"}, ve.Fields["email"])

	plain := NewValidationError()
	plain.Add("email", "invalid")
	assert.False(t, errors.As(plain.OrNil(), &de))
}

func TestWipeByteArray_Short(t *testing.T) {
	buf := []byte{1, 2, 3}
	WipeByteArray(buf)
	assert.Equal(t, []byte{0, 0, 0}, buf)
	WipeByteArray(nil)
}
