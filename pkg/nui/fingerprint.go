package nui

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode/utf8"
)

// CoreSeparator joins the core tuple. Embedded separators are not escaped,
// so distinct tuples such as ("a|b", "c") and ("a", "b|c") collide.
const CoreSeparator = "|"

// Fingerprinter turns the canonical core bytes into a digest string.
type Fingerprinter func(data []byte) string

// SHA256Hex is the production fingerprinter: lowercase hex SHA-256.
func SHA256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// coreTuple lists the protected fields in hashing order. Absent optional
// fields become the empty string, so nil and "" hash identically.
func coreTuple(f *Fields) [6][2]string {
	return [6][2]string{
		{KeyURL, f.URL},
		{KeyCrawlDate, f.CrawlDate.ISO()},
		{KeySourceDomain, f.SourceDomain},
		{KeyCountryCode, f.CountryCode},
		{KeyStateProvinceCode, deref(f.StateProvinceCode)},
		{KeySimhashSig, deref(f.SimhashSig)},
	}
}

// CoreString returns the exact string whose UTF-8 bytes are fingerprinted.
func CoreString(f Fields) string {
	tuple := coreTuple(&f)
	parts := make([]string, len(tuple))
	for i, kv := range tuple {
		parts[i] = kv[1]
	}
	return strings.Join(parts, CoreSeparator)
}

// Fingerprint computes the integrity hash of the core tuple of f with fp.
// A nil fp means SHA256Hex.
func Fingerprint(f Fields, fp Fingerprinter) (string, error) {
	for _, kv := range coreTuple(&f) {
		if !utf8.ValidString(kv[1]) {
			return "", &EncodingError{Field: kv[0]}
		}
	}

	if fp == nil {
		fp = SHA256Hex
	}

	return fp([]byte(CoreString(f))), nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
