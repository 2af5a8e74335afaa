// Package arcaerrors provides structured error handling for Arca with rich
// context, stack traces, and error categorization. Every error produced by
// the tracing and conversion layers carries the full field path and, where
// applicable, the record or row index that triggered it.
//
// # Overview
//
// The arcaerrors package extends Go's standard error handling with:
//   - Error categorization through ErrorType (schema, conversion, structural)
//   - A Code discriminating the exact failure within a category
//   - Structured context with key-value details
//   - Automatic stack trace capture
//   - Error wrapping with cause preservation
//
// # Basic Usage
//
//	// Create a new error
//	err := arcaerrors.New(arcaerrors.ErrorTypeConversion, arcaerrors.CodeTypeMismatch, "string value for integer field")
//
//	// Add context
//	err = err.WithPath("user.age").WithDetail("got", "utf8")
//
//	// Inspect errors
//	if arcaerrors.IsCode(err, arcaerrors.CodeTypeMismatch) {
//	    log.Warn("schema drift detected", zap.String("path", arcaerrors.PathOf(err)))
//	}
//
// # Thread Safety
//
// Error instances are not thread-safe for modification. Create new
// instances or use WithDetail before sharing across goroutines.
package arcaerrors

import (
	"errors"
	"fmt"
	"runtime"
)

// ErrorType represents the category of error. The three categories mirror
// the phases of a conversion: schema inference, value conversion, and the
// structural integrity of finished arrays.
type ErrorType string

const (
	// ErrorTypeSchema represents schema-tracing errors
	ErrorTypeSchema ErrorType = "schema"
	// ErrorTypeConversion represents record/array conversion errors
	ErrorTypeConversion ErrorType = "conversion"
	// ErrorTypeStructural represents array structure violations
	ErrorTypeStructural ErrorType = "structural"
	// ErrorTypeConfig represents configuration errors
	ErrorTypeConfig ErrorType = "config"
	// ErrorTypeInternal represents internal invariant violations
	ErrorTypeInternal ErrorType = "internal"
)

// Code identifies the exact failure within an error category.
type Code string

const (
	// CodeIncompatibleTypes: two observed types cannot merge under strict rules
	CodeIncompatibleTypes Code = "incompatible_types"
	// CodeEmptySchema: a field path was observed in zero records and has no hint
	CodeEmptySchema Code = "empty_schema"
	// CodeUnknownField: a record carries a field the schema does not declare
	CodeUnknownField Code = "unknown_field"
	// CodeTypeMismatch: a value's type does not match the builder's field type
	CodeTypeMismatch Code = "type_mismatch"
	// CodeMissingField: a non-nullable field is absent from a record
	CodeMissingField Code = "missing_field"
	// CodeInvalidUTF8: a string buffer range does not decode as UTF-8
	CodeInvalidUTF8 Code = "invalid_utf8"
	// CodeNullInNonNullable: a null value was routed to a non-nullable field
	CodeNullInNonNullable Code = "null_in_non_nullable"
	// CodeOffsetOverflow: a 32-bit offset sequence would overflow
	CodeOffsetOverflow Code = "offset_overflow"
	// CodeLengthMismatch: sibling arrays or schema/array arity disagree
	CodeLengthMismatch Code = "length_mismatch"
	// CodeBuilderConsumed: a finished builder was used again
	CodeBuilderConsumed Code = "builder_consumed"
	// CodeInvalidConfig: malformed options or config file
	CodeInvalidConfig Code = "invalid_config"
)

// Detail keys used by the conversion layers. Exposed so callers can pull
// structured context out of Details without guessing key names.
const (
	DetailPath        = "path"
	DetailRecordIndex = "record_index"
	DetailRow         = "row"
	DetailExpected    = "expected"
	DetailGot         = "got"
)

// Error represents a structured error with context.
//
// Fields:
//   - Type: categorizes the error (schema/conversion/structural)
//   - Code: the exact failure within the category
//   - Message: human-readable error description
//   - Cause: the underlying error that caused this error
//   - Details: key-value pairs providing additional context
//   - Stack: call stack at the point of error creation
type Error struct {
	Type    ErrorType
	Code    Code
	Message string
	Cause   error
	Details map[string]interface{}
	Stack   []StackFrame
}

// StackFrame represents a single frame in the call stack.
type StackFrame struct {
	Function string
	File     string
	Line     int
}

// Error implements the error interface, returning a formatted error message
// that includes the category, code, message, path and cause where present.
func (e *Error) Error() string {
	msg := e.Message
	if path, ok := e.Details[DetailPath].(string); ok && path != "" {
		msg = fmt.Sprintf("%s (path %q)", msg, path)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s/%s: %s: %v", e.Type, e.Code, msg, e.Cause)
	}
	return fmt.Sprintf("%s/%s: %s", e.Type, e.Code, msg)
}

// Unwrap returns the underlying error, enabling compatibility with errors.Is
// and errors.As for error chain inspection.
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithDetail adds a key-value detail to the error. This method can be
// chained for adding multiple details.
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// WithPath records the dot/bracket field path the error refers to.
func (e *Error) WithPath(path string) *Error {
	return e.WithDetail(DetailPath, path)
}

// WithRecordIndex records the zero-based index of the record in the batch.
func (e *Error) WithRecordIndex(idx int) *Error {
	return e.WithDetail(DetailRecordIndex, idx)
}

// WithRow records the zero-based row index inside an array.
func (e *Error) WithRow(row int) *Error {
	return e.WithDetail(DetailRow, row)
}

// Path returns the field path attached to the error, or "".
func (e *Error) Path() string {
	if path, ok := e.Details[DetailPath].(string); ok {
		return path
	}
	return ""
}

// New creates a new error with the given category, code and message,
// automatically capturing the call stack at the point of creation.
func New(errType ErrorType, code Code, message string) *Error {
	return &Error{
		Type:    errType,
		Code:    code,
		Message: message,
		Stack:   captureStack(2),
	}
}

// Newf creates a new error with a formatted message.
func Newf(errType ErrorType, code Code, format string, args ...interface{}) *Error {
	return &Error{
		Type:    errType,
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Stack:   captureStack(2),
	}
}

// Wrap wraps an existing error with additional context, preserving the
// original error as the cause. If the error is already a structured Error,
// its stack trace is preserved. Returns nil if the input error is nil.
func Wrap(err error, errType ErrorType, code Code, message string) *Error {
	if err == nil {
		return nil
	}

	// If already our error type, preserve the stack
	var existingErr *Error
	if errors.As(err, &existingErr) {
		return &Error{
			Type:    errType,
			Code:    code,
			Message: message,
			Cause:   err,
			Stack:   existingErr.Stack,
		}
	}

	return &Error{
		Type:    errType,
		Code:    code,
		Message: message,
		Cause:   err,
		Stack:   captureStack(2),
	}
}

// IsType checks if the error belongs to the given category.
func IsType(err error, errType ErrorType) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Type == errType
}

// IsCode checks if the error carries the given code anywhere in its chain.
func IsCode(err error, code Code) bool {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return false
		}
		if e.Code == code {
			return true
		}
		err = e.Cause
	}
	return false
}

// PathOf returns the field path attached to the error, or "" when the error
// is not a structured Error or carries no path.
func PathOf(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		return ""
	}
	return e.Path()
}

// captureStack captures the current call stack up to maxFrames deep,
// skipping the specified number of frames from the top.
func captureStack(skip int) []StackFrame {
	const maxFrames = 32
	frames := make([]StackFrame, 0, maxFrames)

	for i := skip; i < maxFrames+skip; i++ {
		pc, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}

		fn := runtime.FuncForPC(pc)
		if fn == nil {
			continue
		}

		frames = append(frames, StackFrame{
			Function: fn.Name(),
			File:     file,
			Line:     line,
		})
	}

	return frames
}
