package normalizer

import (
	"errors"
	"fmt"

	"nui/pkg/nui"
)

// Validation errors.
var (
	ErrInvalidDataType = errors.New("invalid data type: expected normalizer.Row")
	ErrMissingKey      = errors.New("missing required key")
	ErrWrongType       = errors.New("value has wrong type")
)

var requiredKeys = []string{
	nui.KeyURL,
	nui.KeyCrawlDate,
	nui.KeySourceDomain,
	nui.KeyCountryCode,
}

// Validator performs the structural checks on a raw row: required keys
// exist and hold strings. Values themselves are not judged.
type Validator struct {
	required []string
}

// NewValidator creates a new validator instance.
func NewValidator() *Validator {
	return &Validator{required: requiredKeys}
}

// Validate checks if data is a usable row.
func (v *Validator) Validate(data any) error {
	row, ok := data.(Row)
	if !ok {
		return ErrInvalidDataType
	}

	for _, key := range v.required {
		val, present := row[key]
		if !present || val == nil {
			return fmt.Errorf("%w: %s", ErrMissingKey, key)
		}

		if _, isString := val.(string); !isString {
			return fmt.Errorf("%w: %s is %T, want string", ErrWrongType, key, val)
		}
	}

	for _, key := range optionalKeys {
		switch row[key].(type) {
		case nil, string:
		default:
			return fmt.Errorf("%w: %s is %T, want string or null", ErrWrongType, key, row[key])
		}
	}

	switch kw := row[nui.KeyKeywords].(type) {
	case nil, []string, string:
	case []any:
		for i, item := range kw {
			if _, isString := item.(string); !isString {
				return fmt.Errorf("%w: keywords[%d] is %T, want string", ErrWrongType, i, item)
			}
		}
	default:
		return fmt.Errorf("%w: keywords is %T, want list of strings", ErrWrongType, kw)
	}

	return nil
}
