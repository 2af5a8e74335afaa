package arcaerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewError(t *testing.T) {
	err := New(ErrorTypeConversion, CodeTypeMismatch, "value does not match")
	assert.Equal(t, ErrorTypeConversion, err.Type)
	assert.Equal(t, CodeTypeMismatch, err.Code)
	assert.Contains(t, err.Error(), "conversion/type_mismatch")
	assert.Contains(t, err.Error(), "value does not match")
	assert.NotEmpty(t, err.Stack)
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("disk full")
	err := Wrap(cause, ErrorTypeInternal, CodeInvalidConfig, "flush failed")

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "disk full")

	var ae *Error
	require.ErrorAs(t, fmt.Errorf("outer: %w", err), &ae)
	assert.Equal(t, CodeInvalidConfig, ae.Code)
}

func TestIsTypeAndIsCode(t *testing.T) {
	err := New(ErrorTypeSchema, CodeEmptySchema, "nothing observed")

	assert.True(t, IsType(err, ErrorTypeSchema))
	assert.False(t, IsType(err, ErrorTypeConversion))
	assert.True(t, IsCode(err, CodeEmptySchema))
	assert.False(t, IsCode(err, CodeTypeMismatch))

	wrapped := fmt.Errorf("context: %w", err)
	assert.True(t, IsType(wrapped, ErrorTypeSchema))
	assert.True(t, IsCode(wrapped, CodeEmptySchema))

	assert.False(t, IsType(errors.New("plain"), ErrorTypeSchema))
	assert.False(t, IsCode(nil, CodeEmptySchema))
}

func TestDetails(t *testing.T) {
	err := New(ErrorTypeConversion, CodeMissingField, "absent").
		WithPath("address.zip").
		WithRecordIndex(3).
		WithRow(7).
		WithDetail(DetailExpected, "uint32")

	assert.Equal(t, "address.zip", err.Details[DetailPath])
	assert.Equal(t, 3, err.Details[DetailRecordIndex])
	assert.Equal(t, 7, err.Details[DetailRow])
	assert.Equal(t, "uint32", err.Details[DetailExpected])

	assert.Equal(t, "address.zip", err.Path())
	assert.Equal(t, "address.zip", PathOf(err))
	assert.Contains(t, err.Error(), `path "address.zip"`)
}

func TestPathOfNonArcaError(t *testing.T) {
	assert.Equal(t, "", PathOf(errors.New("plain")))
	assert.Equal(t, "", PathOf(nil))
}
