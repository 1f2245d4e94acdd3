package normalizer

import (
	"errors"
	"strings"
	"testing"
)

func TestNewValidator(t *testing.T) {
	v := NewValidator()
	if v == nil {
		t.Fatal("NewValidator returned nil")
	}
}

func TestValidator_Validate(t *testing.T) {
	v := NewValidator()

	if err := v.Validate(referenceRow()); err != nil {
		t.Errorf("Validate returned unexpected error for valid row: %v", err)
	}

	minimal := Row{
		"url":           "x",
		"crawl_date":    "2025-11-13T10:00:00",
		"source_domain": "",
		"country_code":  "",
	}

	if err := v.Validate(minimal); err != nil {
		t.Errorf("Validate rejected row with empty values: %v", err)
	}
}

func TestValidator_Validate_Errors(t *testing.T) {
	v := NewValidator()

	tests := []struct {
		name    string
		data    any
		wantErr error
		msg     string
	}{
		{
			name:    "Invalid Type",
			data:    map[string]string{"url": "x"},
			wantErr: ErrInvalidDataType,
		},
		{
			name: "Missing URL",
			data: func() Row {
				r := referenceRow()
				delete(r, "url")
				return r
			}(),
			wantErr: ErrMissingKey,
			msg:     "url",
		},
		{
			name: "Null Country",
			data: func() Row {
				r := referenceRow()
				r["country_code"] = nil
				return r
			}(),
			wantErr: ErrMissingKey,
			msg:     "country_code",
		},
		{
			name: "Numeric Crawl Date",
			data: func() Row {
				r := referenceRow()
				r["crawl_date"] = 20251113.0
				return r
			}(),
			wantErr: ErrWrongType,
			msg:     "crawl_date",
		},
		{
			name: "Boolean Optional",
			data: func() Row {
				r := referenceRow()
				r["simhash_sig"] = true
				return r
			}(),
			wantErr: ErrWrongType,
			msg:     "simhash_sig",
		},
		{
			name: "Keyword Not String",
			data: func() Row {
				r := referenceRow()
				r["keywords"] = []any{"a", 2.0}
				return r
			}(),
			wantErr: ErrWrongType,
			msg:     "keywords[1]",
		},
		{
			name: "Keywords Object",
			data: func() Row {
				r := referenceRow()
				r["keywords"] = map[string]any{}
				return r
			}(),
			wantErr: ErrWrongType,
			msg:     "keywords",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.data)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Validate() error = %v, want %v", err, tt.wantErr)
			}

			if tt.msg != "" && !strings.Contains(err.Error(), tt.msg) {
				t.Errorf("error %q does not mention %q", err, tt.msg)
			}
		})
	}
}
