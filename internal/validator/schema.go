// Package validator checks serialized NUI records against the entry JSON Schema.
package validator

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/xeipuuv/gojsonschema"

	"nui/pkg/nui"
)

// Validation errors.
var (
	ErrSchemaLoad      = errors.New("failed to load entry schema")
	ErrInvalidDocument = errors.New("document is not valid JSON")
)

//go:embed schema/nui-entry.schema.json
var entrySchema []byte

// EntrySchema returns a copy of the embedded JSON Schema.
func EntrySchema() []byte {
	out := make([]byte, len(entrySchema))
	copy(out, entrySchema)

	return out
}

// ValidationError is one schema violation. Field uses gojsonschema's dotted
// path ("keywords.1"), "(root)" for object-level rules.
type ValidationError struct {
	Field   string
	Type    string
	Message string
	Value   any
	Record  int
}

// ValidationResult contains validation results.
type ValidationResult struct {
	Errors  []ValidationError
	Stats   ValidationStats
	IsValid bool
}

// ValidationStats contains validation statistics.
type ValidationStats struct {
	TotalRecords   int
	ValidRecords   int
	InvalidRecords int
}

// SchemaValidator validates records against the compiled entry schema.
type SchemaValidator struct {
	schema *gojsonschema.Schema
}

// NewSchemaValidator compiles the embedded schema.
func NewSchemaValidator() (*SchemaValidator, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(entrySchema))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSchemaLoad, err)
	}

	return &SchemaValidator{schema: schema}, nil
}

// ValidateRecord serializes entry and validates the result.
func (v *SchemaValidator) ValidateRecord(entry *nui.Entry) (*ValidationResult, error) {
	data, err := entry.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("failed to marshal entry: %w", err)
	}

	return v.ValidateDocument(data)
}

// ValidateDocument validates a single serialized record.
func (v *SchemaValidator) ValidateDocument(data []byte) (*ValidationResult, error) {
	result := newResult()
	if err := v.validateInto(result, 0, data); err != nil {
		return nil, err
	}

	return result, nil
}

// ValidateDocuments validates each document and aggregates the outcome.
// Record in each ValidationError is the document's index.
func (v *SchemaValidator) ValidateDocuments(docs [][]byte) (*ValidationResult, error) {
	result := newResult()

	for i, doc := range docs {
		if err := v.validateInto(result, i, doc); err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
	}

	return result, nil
}

func newResult() *ValidationResult {
	return &ValidationResult{
		IsValid: true,
		Errors:  []ValidationError{},
	}
}

func (v *SchemaValidator) validateInto(result *ValidationResult, index int, data []byte) error {
	if !json.Valid(data) {
		return ErrInvalidDocument
	}

	res, err := v.schema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}

	result.Stats.TotalRecords++

	if res.Valid() {
		result.Stats.ValidRecords++
		return nil
	}

	result.Stats.InvalidRecords++
	result.IsValid = false

	for _, desc := range res.Errors() {
		field := desc.Field()
		if field == "" {
			field = "(root)"
		}

		result.Errors = append(result.Errors, ValidationError{
			Field:   field,
			Type:    desc.Type(),
			Message: desc.Description(),
			Value:   desc.Value(),
			Record:  index,
		})
	}

	return nil
}

// Summary renders a one-line description of each error.
func (r *ValidationResult) Summary() []string {
	lines := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		lines = append(lines, fmt.Sprintf("record %d: %s: %s", e.Record, e.Field, e.Message))
	}

	return lines
}
