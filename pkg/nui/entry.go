// Package nui builds and verifies Normalized URL Index entries: canonical
// descriptions of one crawled resource whose core fields are protected by a
// SHA-256 integrity hash.
//
// The integrity hash covers exactly url, crawl_date, source_domain,
// country_code, state_province_code and simhash_sig. canonical_url_hash and
// keywords may be enriched later without invalidating it.
package nui

import "slices"

// Fields is the caller-supplied input of New. Optional text fields are nil
// when absent.
type Fields struct {
	URL               string
	CrawlDate         Timestamp
	SourceDomain      string
	CountryCode       string
	StateProvinceCode *string
	SimhashSig        *string
	CanonicalURLHash  *string
	Keywords          []string
}

// Optional returns a pointer to s for populating optional Fields.
func Optional(s string) *string {
	return &s
}

// Entry is an immutable NUI entry. The integrity hash is computed once in
// New; protected fields have no setters.
type Entry struct {
	fields        Fields
	integrityHash string
}

type options struct {
	fingerprint Fingerprinter
	strict      bool
}

// Option configures New.
type Option func(*options)

// WithFingerprinter replaces the digest function, e.g. with a stub in tests.
func WithFingerprinter(fp Fingerprinter) Option {
	return func(o *options) {
		o.fingerprint = fp
	}
}

// WithStrictValidation enables the opt-in field checks. Failures surface as
// *SchemaValidationError; without this option any text is accepted.
func WithStrictValidation() Option {
	return func(o *options) {
		o.strict = true
	}
}

func buildOptions(opts []Option) options {
	o := options{fingerprint: SHA256Hex}
	for _, opt := range opts {
		opt(&o)
	}
	if o.fingerprint == nil {
		o.fingerprint = SHA256Hex
	}
	return o
}

// New copies f into a fresh entry and computes its integrity hash as the
// final step. Nil keywords become a new empty slice.
func New(f Fields, opts ...Option) (*Entry, error) {
	o := buildOptions(opts)
	fields := cloneFields(f)

	hash, err := Fingerprint(fields, o.fingerprint)
	if err != nil {
		return nil, err
	}

	if o.strict {
		if err := validateStrict(&fields); err != nil {
			return nil, err
		}
	}

	return &Entry{fields: fields, integrityHash: hash}, nil
}

func cloneFields(f Fields) Fields {
	out := f
	out.StateProvinceCode = cloneString(f.StateProvinceCode)
	out.SimhashSig = cloneString(f.SimhashSig)
	out.CanonicalURLHash = cloneString(f.CanonicalURLHash)
	if f.Keywords == nil {
		out.Keywords = []string{}
	} else {
		out.Keywords = slices.Clone(f.Keywords)
	}
	return out
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

// URL returns the absolute URL of the crawled document.
func (e *Entry) URL() string { return e.fields.URL }

// CrawlDate returns when the content was last fetched.
func (e *Entry) CrawlDate() Timestamp { return e.fields.CrawlDate }

// SourceDomain returns the registrable domain of the URL.
func (e *Entry) SourceDomain() string { return e.fields.SourceDomain }

// CountryCode returns the country code of hosting or attribution.
func (e *Entry) CountryCode() string { return e.fields.CountryCode }

// StateProvinceCode returns the sub-national code and whether it was supplied.
func (e *Entry) StateProvinceCode() (string, bool) { return optional(e.fields.StateProvinceCode) }

// SimhashSig returns the content similarity signature and whether it was supplied.
func (e *Entry) SimhashSig() (string, bool) { return optional(e.fields.SimhashSig) }

// CanonicalURLHash returns the caller-supplied canonical URL hash and whether it was supplied.
func (e *Entry) CanonicalURLHash() (string, bool) { return optional(e.fields.CanonicalURLHash) }

// Keywords returns a copy of the keyword list. It is never nil.
func (e *Entry) Keywords() []string { return slices.Clone(e.fields.Keywords) }

// IntegrityHash returns the fingerprint computed at construction.
func (e *Entry) IntegrityHash() string { return e.integrityHash }

// Fields returns a deep copy of the entry's inputs, suitable for building a
// modified entry with New.
func (e *Entry) Fields() Fields {
	return cloneFields(e.fields)
}

// CoreString returns the joined core tuple this entry was fingerprinted over.
func (e *Entry) CoreString() string {
	return CoreString(e.fields)
}

func optional(s *string) (string, bool) {
	if s == nil {
		return "", false
	}
	return *s, true
}

// WithKeywords returns a copy of e carrying kw. The integrity hash is
// unchanged because keywords are not part of the core tuple.
func (e *Entry) WithKeywords(kw []string) *Entry {
	f := e.Fields()
	f.Keywords = kw
	return &Entry{fields: cloneFields(f), integrityHash: e.integrityHash}
}

// WithCanonicalURLHash returns a copy of e carrying h (nil clears it). The
// integrity hash is unchanged.
func (e *Entry) WithCanonicalURLHash(h *string) *Entry {
	f := e.Fields()
	f.CanonicalURLHash = cloneString(h)
	return &Entry{fields: f, integrityHash: e.integrityHash}
}

// Verify recomputes the fingerprint with fp (nil means SHA256Hex) and
// reports ErrHashMismatch when it differs from the stored hash.
func (e *Entry) Verify(fp Fingerprinter) error {
	computed, err := Fingerprint(e.fields, fp)
	if err != nil {
		return err
	}
	if computed != e.integrityHash {
		return mismatch(e.integrityHash, computed)
	}
	return nil
}
