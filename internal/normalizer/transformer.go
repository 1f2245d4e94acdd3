package normalizer

import (
	"errors"
	"fmt"

	"nui/pkg/nui"
)

// ErrInvalidTransformerDataType is returned when the data type is invalid.
var ErrInvalidTransformerDataType = errors.New("invalid data type: expected normalizer.Row")

// Transformer maps validated rows onto entry fields.
type Transformer struct{}

// NewTransformer creates a new transformer instance.
func NewTransformer() *Transformer {
	return &Transformer{}
}

// Transform converts a row into nui.Fields. A null optional is absent;
// an empty string is kept as an explicit empty value. A keywords string
// is split like a CSV cell.
func (t *Transformer) Transform(data any) (nui.Fields, error) {
	row, ok := data.(Row)
	if !ok {
		return nui.Fields{}, ErrInvalidTransformerDataType
	}

	crawlDate, err := nui.ParseTimestamp(stringValue(row, nui.KeyCrawlDate))
	if err != nil {
		return nui.Fields{}, fmt.Errorf("crawl_date: %w", err)
	}

	fields := nui.Fields{
		URL:               stringValue(row, nui.KeyURL),
		CrawlDate:         crawlDate,
		SourceDomain:      stringValue(row, nui.KeySourceDomain),
		CountryCode:       stringValue(row, nui.KeyCountryCode),
		StateProvinceCode: optionalValue(row, nui.KeyStateProvinceCode),
		SimhashSig:        optionalValue(row, nui.KeySimhashSig),
		CanonicalURLHash:  optionalValue(row, nui.KeyCanonicalURLHash),
		Keywords:          keywordsValue(row),
	}

	return fields, nil
}

func stringValue(row Row, key string) string {
	s, _ := row[key].(string)

	return s
}

func optionalValue(row Row, key string) *string {
	s, ok := row[key].(string)
	if !ok {
		return nil
	}

	return nui.Optional(s)
}

func keywordsValue(row Row) []string {
	switch kw := row[nui.KeyKeywords].(type) {
	case []string:
		return kw
	case string:
		return SplitKeywords(kw)
	case []any:
		out := make([]string, 0, len(kw))
		for _, item := range kw {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}

		return out
	}

	return nil
}
