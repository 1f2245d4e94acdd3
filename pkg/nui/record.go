package nui

import (
	"bytes"
	"encoding/json"
	"slices"
)

// Serialized record keys, in canonical order.
const (
	KeyURL               = "url"
	KeyCrawlDate         = "crawl_date"
	KeySourceDomain      = "source_domain"
	KeyCountryCode       = "country_code"
	KeyStateProvinceCode = "state_province_code"
	KeySimhashSig        = "simhash_sig"
	KeyCanonicalURLHash  = "canonical_url_hash"
	KeyKeywords          = "keywords"
	KeyIntegrityHash     = "integrity_hash"
)

var recordKeys = []string{
	KeyURL,
	KeyCrawlDate,
	KeySourceDomain,
	KeyCountryCode,
	KeyStateProvinceCode,
	KeySimhashSig,
	KeyCanonicalURLHash,
	KeyKeywords,
	KeyIntegrityHash,
}

// RecordKeys returns the serialized key names in canonical order.
func RecordKeys() []string {
	return slices.Clone(recordKeys)
}

// RecordField is one key/value pair of a serialized entry.
type RecordField struct {
	Key   string
	Value any
}

// Record is the external representation of an entry: an ordered mapping in
// which absent optional fields are nil (JSON null), unlike the hashing path
// where they are the empty string. Keywords are always a []string.
type Record []RecordField

// Record serializes e.
func (e *Entry) Record() Record {
	return Record{
		{KeyURL, e.fields.URL},
		{KeyCrawlDate, e.fields.CrawlDate.ISO()},
		{KeySourceDomain, e.fields.SourceDomain},
		{KeyCountryCode, e.fields.CountryCode},
		{KeyStateProvinceCode, nullable(e.fields.StateProvinceCode)},
		{KeySimhashSig, nullable(e.fields.SimhashSig)},
		{KeyCanonicalURLHash, nullable(e.fields.CanonicalURLHash)},
		{KeyKeywords, e.Keywords()},
		{KeyIntegrityHash, e.integrityHash},
	}
}

func nullable(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

// Map returns the record as an unordered map.
func (r Record) Map() map[string]any {
	m := make(map[string]any, len(r))
	for _, f := range r {
		m[f.Key] = f.Value
	}
	return m
}

// Get looks up a key.
func (r Record) Get(key string) (any, bool) {
	for _, f := range r {
		if f.Key == key {
			return f.Value, true
		}
	}
	return nil, false
}

// MarshalJSON encodes the record as a JSON object preserving key order.
func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range r {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeJSON(&buf, f.Key); err != nil {
			return nil, err
		}
		buf.WriteByte(':')
		if err := writeJSON(&buf, f.Value); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func writeJSON(buf *bytes.Buffer, v any) error {
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return err
	}
	// Encode appends a newline.
	buf.Truncate(buf.Len() - 1)
	return nil
}

// MarshalJSON encodes e in canonical key order.
func (e *Entry) MarshalJSON() ([]byte, error) {
	return e.Record().MarshalJSON()
}
