package nui

import (
	"errors"
	"fmt"
	"strings"
)

// Record construction and verification errors.
var (
	ErrEncoding         = errors.New("field cannot be encoded for hashing")
	ErrSchemaValidation = errors.New("entry failed schema validation")
	ErrHashMismatch     = errors.New("integrity hash mismatch")
	ErrMissingField     = errors.New("missing required field")
	ErrInvalidField     = errors.New("invalid field value")
)

// EncodingError reports a core field whose text is not valid UTF-8 and
// therefore has no canonical byte form to fingerprint.
type EncodingError struct {
	Field string
	Cause error
}

func (e *EncodingError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("encoding error: %s: %v", e.Field, e.Cause)
	}
	return fmt.Sprintf("encoding error: %s is not valid UTF-8", e.Field)
}

func (e *EncodingError) Unwrap() error {
	return e.Cause
}

// Is lets errors.Is(err, ErrEncoding) match any EncodingError.
func (e *EncodingError) Is(target error) bool {
	return target == ErrEncoding
}

// FieldViolation is a single strict-validation failure.
type FieldViolation struct {
	Field string
	Rule  string
	Value string
}

// SchemaValidationError is only returned when strict validation was
// requested with WithStrictValidation.
type SchemaValidationError struct {
	Violations []FieldViolation
}

func (e *SchemaValidationError) Error() string {
	var sb strings.Builder
	sb.WriteString("schema validation failed:")
	for i, v := range e.Violations {
		if i > 0 {
			sb.WriteString(";")
		}
		fmt.Fprintf(&sb, " %s violates %q (value %q)", v.Field, v.Rule, v.Value)
	}
	return sb.String()
}

// Is lets errors.Is(err, ErrSchemaValidation) match any SchemaValidationError.
func (e *SchemaValidationError) Is(target error) bool {
	return target == ErrSchemaValidation
}
