package nui

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// strictFields mirrors Fields with the opt-in rules attached. Optional
// fields are flattened so that absent and empty are both skipped.
type strictFields struct {
	URL               string   `json:"url" validate:"required,http_url"`
	SourceDomain      string   `json:"source_domain" validate:"required,hostname_rfc1123"`
	CountryCode       string   `json:"country_code" validate:"required,iso3166_1_alpha2"`
	StateProvinceCode string   `json:"state_province_code" validate:"omitempty,max=3,alphanum,uppercase"`
	SimhashSig        string   `json:"simhash_sig" validate:"omitempty,hexadecimal"`
	CanonicalURLHash  string   `json:"canonical_url_hash" validate:"omitempty,len=64,hexadecimal,lowercase"`
	Keywords          []string `json:"keywords" validate:"dive,required"`
	CrawlDateSet      bool     `json:"crawl_date" validate:"eq=true"`
}

var (
	strictOnce     sync.Once
	strictValidate *validator.Validate
)

func strictValidator() *validator.Validate {
	strictOnce.Do(func() {
		strictValidate = validator.New(validator.WithRequiredStructEnabled())
		strictValidate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
			return name
		})
	})
	return strictValidate
}

func validateStrict(f *Fields) error {
	sf := strictFields{
		URL:               f.URL,
		SourceDomain:      f.SourceDomain,
		CountryCode:       f.CountryCode,
		StateProvinceCode: deref(f.StateProvinceCode),
		SimhashSig:        deref(f.SimhashSig),
		CanonicalURLHash:  deref(f.CanonicalURLHash),
		Keywords:          f.Keywords,
		CrawlDateSet:      !f.CrawlDate.IsZero(),
	}

	err := strictValidator().Struct(sf)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("strict validation: %w", err)
	}

	out := &SchemaValidationError{Violations: make([]FieldViolation, 0, len(verrs))}
	for _, fe := range verrs {
		out.Violations = append(out.Violations, FieldViolation{
			Field: fe.Field(),
			Rule:  fe.Tag(),
			Value: fmt.Sprint(fe.Value()),
		})
	}
	return out
}
