package nui

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	exampleURL     = "https://www.nsf.gov/research_paper_123.pdf"
	exampleCore    = "https://www.nsf.gov/research_paper_123.pdf|2025-11-13T10:00:00|nsf.gov|US|VA|a3b2c1d0e4f5a6b7"
	exampleHash    = "f5b1ab7b26a06e735fa3a00b58dc7b6052cc65a4a633e1e6da283e54a91daf6f"
	fakeDomainHash = "bdb37dd82e62ea82d4a0fc1b6b0b28cbec2067f1b84d76ad8911aafb9a625f40"
	noOptionalHash = "e2ce38e50691e38029150e4814cd0153dc8cfff7affbd75e529af8dc840c2001"
)

func exampleFields() Fields {
	return Fields{
		URL:               exampleURL,
		CrawlDate:         Naive(time.Date(2025, 11, 13, 10, 0, 0, 0, time.UTC)),
		SourceDomain:      "nsf.gov",
		CountryCode:       "US",
		StateProvinceCode: Optional("VA"),
		SimhashSig:        Optional("a3b2c1d0e4f5a6b7"),
		Keywords:          []string{"computational-science", "grant-funding", "resilience"},
	}
}

func mustNew(t *testing.T, f Fields, opts ...Option) *Entry {
	t.Helper()
	e, err := New(f, opts...)
	require.NoError(t, err)
	return e
}

func TestNew_ReferenceVector(t *testing.T) {
	e := mustNew(t, exampleFields())

	assert.Equal(t, exampleCore, e.CoreString())
	assert.Equal(t, exampleHash, e.IntegrityHash())
	assert.Len(t, e.IntegrityHash(), 64)
}

func TestNew_TamperedSourceDomain(t *testing.T) {
	f := exampleFields()
	f.SourceDomain = "fake.gov"
	tampered := mustNew(t, f)

	assert.Equal(t, fakeDomainHash, tampered.IntegrityHash())
	assert.NotEqual(t, exampleHash, tampered.IntegrityHash())
}

func TestNew_Deterministic(t *testing.T) {
	const workers = 16

	hashes := make([]string, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			e, err := New(exampleFields())
			if err == nil {
				hashes[i] = e.IntegrityHash()
			}
		}(i)
	}
	wg.Wait()

	for i, h := range hashes {
		assert.Equal(t, exampleHash, h, "worker %d", i)
	}
}

func TestNew_EachCoreFieldChangesHash(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(f *Fields)
	}{
		{"url", func(f *Fields) { f.URL = "https://www.nsf.gov/research_paper_124.pdf" }},
		{"crawl_date", func(f *Fields) { f.CrawlDate = Naive(time.Date(2025, 11, 13, 10, 0, 1, 0, time.UTC)) }},
		{"source_domain", func(f *Fields) { f.SourceDomain = "nsf.org" }},
		{"country_code", func(f *Fields) { f.CountryCode = "CA" }},
		{"state_province_code value", func(f *Fields) { f.StateProvinceCode = Optional("MD") }},
		{"state_province_code absent", func(f *Fields) { f.StateProvinceCode = nil }},
		{"simhash_sig value", func(f *Fields) { f.SimhashSig = Optional("a3b2c1d0e4f5a6b8") }},
		{"simhash_sig absent", func(f *Fields) { f.SimhashSig = nil }},
		{"crawl_date zoned", func(f *Fields) { f.CrawlDate = Zoned(time.Date(2025, 11, 13, 10, 0, 0, 0, time.UTC)) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := exampleFields()
			tt.mutate(&f)
			assert.NotEqual(t, exampleHash, mustNew(t, f).IntegrityHash())
		})
	}
}

func TestNew_UnprotectedFieldsDoNotChangeHash(t *testing.T) {
	f := exampleFields()
	f.CanonicalURLHash = Optional("0f1e2d3c4b5a69788796a5b4c3d2e1f00f1e2d3c4b5a69788796a5b4c3d2e1f0")
	f.Keywords = []string{"other"}

	assert.Equal(t, exampleHash, mustNew(t, f).IntegrityHash())

	f.Keywords = nil
	f.CanonicalURLHash = nil
	assert.Equal(t, exampleHash, mustNew(t, f).IntegrityHash())
}

func TestNew_AbsentAndEmptyOptionalsHashAlike(t *testing.T) {
	absent := exampleFields()
	absent.StateProvinceCode = nil
	absent.SimhashSig = nil

	empty := exampleFields()
	empty.StateProvinceCode = Optional("")
	empty.SimhashSig = Optional("")

	a := mustNew(t, absent)
	b := mustNew(t, empty)

	assert.Equal(t, noOptionalHash, a.IntegrityHash())
	assert.Equal(t, a.IntegrityHash(), b.IntegrityHash())

	// Serialization keeps them apart.
	ra, _ := a.Record().Get(KeyStateProvinceCode)
	rb, _ := b.Record().Get(KeyStateProvinceCode)
	assert.Nil(t, ra)
	assert.Equal(t, "", rb)
}

func TestNew_CopiesCallerState(t *testing.T) {
	f := exampleFields()
	state := "VA"
	f.StateProvinceCode = &state
	kw := []string{"a", "b"}
	f.Keywords = kw

	e := mustNew(t, f)

	state = "XX"
	kw[0] = "mutated"

	got, ok := e.StateProvinceCode()
	assert.True(t, ok)
	assert.Equal(t, "VA", got)
	assert.Equal(t, []string{"a", "b"}, e.Keywords())

	out := e.Keywords()
	out[0] = "mutated"
	assert.Equal(t, []string{"a", "b"}, e.Keywords())
	assert.NoError(t, e.Verify(nil))
}

func TestNew_NilKeywordsAreFreshEmptySlices(t *testing.T) {
	f := exampleFields()
	f.Keywords = nil

	a := mustNew(t, f)
	b := mustNew(t, f)

	require.NotNil(t, a.Keywords())
	assert.Empty(t, a.Keywords())

	enriched := a.WithKeywords([]string{"x"})
	assert.Empty(t, a.Keywords())
	assert.Empty(t, b.Keywords())
	assert.Equal(t, []string{"x"}, enriched.Keywords())
}

func TestNew_InvalidUTF8(t *testing.T) {
	f := exampleFields()
	f.SourceDomain = "nsf\xff.gov"

	e, err := New(f)
	assert.Nil(t, e)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEncoding)

	var encErr *EncodingError
	require.True(t, errors.As(err, &encErr))
	assert.Equal(t, KeySourceDomain, encErr.Field)
}

func TestNew_InvalidUTF8InUnprotectedFieldAccepted(t *testing.T) {
	f := exampleFields()
	f.Keywords = []string{"\xfe"}

	e, err := New(f)
	require.NoError(t, err)
	assert.Equal(t, exampleHash, e.IntegrityHash())
}

func TestNew_AcceptsAnyTextByDefault(t *testing.T) {
	e, err := New(Fields{
		URL:          "not a url",
		CrawlDate:    Naive(time.Time{}),
		SourceDomain: "??",
		CountryCode:  "United States",
	})
	require.NoError(t, err)
	assert.Equal(t, "not a url|0001-01-01T00:00:00|??|United States||", e.CoreString())
}

func TestWithFingerprinter(t *testing.T) {
	var seen []byte
	stub := func(data []byte) string {
		seen = append([]byte(nil), data...)
		return "stub-digest"
	}

	e := mustNew(t, exampleFields(), WithFingerprinter(stub))

	assert.Equal(t, "stub-digest", e.IntegrityHash())
	assert.Equal(t, exampleCore, string(seen))
	assert.NoError(t, e.Verify(stub))
	assert.ErrorIs(t, e.Verify(SHA256Hex), ErrHashMismatch)
}

func TestWithFingerprinter_NilFallsBack(t *testing.T) {
	e := mustNew(t, exampleFields(), WithFingerprinter(nil))
	assert.Equal(t, exampleHash, e.IntegrityHash())
}

func TestEnrichmentKeepsHash(t *testing.T) {
	e := mustNew(t, exampleFields())

	h := "aa"
	enriched := e.WithCanonicalURLHash(&h).WithKeywords([]string{"new"})

	assert.Equal(t, e.IntegrityHash(), enriched.IntegrityHash())
	assert.NoError(t, enriched.Verify(nil))

	got, ok := enriched.CanonicalURLHash()
	assert.True(t, ok)
	assert.Equal(t, "aa", got)

	_, ok = e.CanonicalURLHash()
	assert.False(t, ok)

	cleared := enriched.WithCanonicalURLHash(nil)
	_, ok = cleared.CanonicalURLHash()
	assert.False(t, ok)
}

func TestFields_RebuildWithChangedProtectedField(t *testing.T) {
	e := mustNew(t, exampleFields())

	f := e.Fields()
	f.CountryCode = "DE"
	rebuilt := mustNew(t, f)

	assert.Equal(t, "US", e.CountryCode())
	assert.Equal(t, "DE", rebuilt.CountryCode())
	assert.NotEqual(t, e.IntegrityHash(), rebuilt.IntegrityHash())
}

func TestCoreString_PipeInValueIsNotEscaped(t *testing.T) {
	a := exampleFields()
	a.StateProvinceCode = Optional("VA|a3")
	a.SimhashSig = Optional("b")

	b := exampleFields()
	b.StateProvinceCode = Optional("VA")
	b.SimhashSig = Optional("a3|b")

	assert.Equal(t, CoreString(a), CoreString(b))
	assert.Equal(t, mustNew(t, a).IntegrityHash(), mustNew(t, b).IntegrityHash())
}
