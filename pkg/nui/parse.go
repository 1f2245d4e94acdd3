package nui

import (
	"encoding/json"
	"fmt"
)

func mismatch(stored, computed string) error {
	return fmt.Errorf("%w: expected %s, got %s", ErrHashMismatch, stored, computed)
}

// FromRecord rebuilds an entry from its serialized mapping and checks that
// the re-derived integrity hash equals the stored one.
func FromRecord(m map[string]any, opts ...Option) (*Entry, error) {
	var (
		f   Fields
		err error
	)

	if f.URL, err = requiredString(m, KeyURL); err != nil {
		return nil, err
	}

	rawDate, err := requiredString(m, KeyCrawlDate)
	if err != nil {
		return nil, err
	}
	if f.CrawlDate, err = ParseCanonicalTimestamp(rawDate); err != nil {
		return nil, err
	}

	if f.SourceDomain, err = requiredString(m, KeySourceDomain); err != nil {
		return nil, err
	}
	if f.CountryCode, err = requiredString(m, KeyCountryCode); err != nil {
		return nil, err
	}
	if f.StateProvinceCode, err = optionalString(m, KeyStateProvinceCode); err != nil {
		return nil, err
	}
	if f.SimhashSig, err = optionalString(m, KeySimhashSig); err != nil {
		return nil, err
	}
	if f.CanonicalURLHash, err = optionalString(m, KeyCanonicalURLHash); err != nil {
		return nil, err
	}
	if f.Keywords, err = stringList(m, KeyKeywords); err != nil {
		return nil, err
	}

	stored, err := requiredString(m, KeyIntegrityHash)
	if err != nil {
		return nil, err
	}

	e, err := New(f, opts...)
	if err != nil {
		return nil, err
	}

	if e.integrityHash != stored {
		return nil, mismatch(stored, e.integrityHash)
	}

	return e, nil
}

// ParseJSON decodes one serialized entry and verifies it.
func ParseJSON(data []byte, opts ...Option) (*Entry, error) {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to decode entry: %w", err)
	}
	return FromRecord(m, opts...)
}

// UnmarshalJSON decodes and verifies a serialized entry using SHA256Hex.
func (e *Entry) UnmarshalJSON(data []byte) error {
	parsed, err := ParseJSON(data)
	if err != nil {
		return err
	}
	*e = *parsed
	return nil
}

func requiredString(m map[string]any, key string) (string, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return "", fmt.Errorf("%w: %s", ErrMissingField, key)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%w: %s must be a string, got %T", ErrInvalidField, key, v)
	}
	return s, nil
}

func optionalString(m map[string]any, key string) (*string, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return nil, nil
	}
	s, ok := v.(string)
	if !ok {
		return nil, fmt.Errorf("%w: %s must be a string or null, got %T", ErrInvalidField, key, v)
	}
	return &s, nil
}

func stringList(m map[string]any, key string) ([]string, error) {
	switch v := m[key].(type) {
	case nil:
		return nil, nil
	case []string:
		return v, nil
	case []any:
		out := make([]string, 0, len(v))
		for i, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("%w: %s[%d] must be a string, got %T", ErrInvalidField, key, i, item)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: %s must be a list of strings, got %T", ErrInvalidField, key, v)
	}
}
