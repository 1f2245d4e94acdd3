package normalizer

import (
	"errors"
	"testing"

	"nui/pkg/nui"
)

const (
	testURL  = "https://www.nsf.gov/research_paper_123.pdf"
	testHash = "f5b1ab7b26a06e735fa3a00b58dc7b6052cc65a4a633e1e6da283e54a91daf6f"
)

func referenceRow() Row {
	return Row{
		"url":                 testURL,
		"crawl_date":          "2025-11-13T10:00:00",
		"source_domain":       "nsf.gov",
		"country_code":        "US",
		"state_province_code": "VA",
		"simhash_sig":         "a3b2c1d0e4f5a6b7",
		"canonical_url_hash":  nil,
		"keywords":            []any{"computational-science", "grant-funding", "resilience"},
	}
}

func TestNewProcessor(t *testing.T) {
	p := NewProcessor()
	if p == nil {
		t.Fatal("NewProcessor returned nil")
	}
}

func TestProcessor_Process(t *testing.T) {
	p := NewProcessor()

	entry, err := p.Process(referenceRow())
	if err != nil {
		t.Fatalf("Process returned unexpected error: %v", err)
	}

	if entry.IntegrityHash() != testHash {
		t.Errorf("IntegrityHash() = %s, want %s", entry.IntegrityHash(), testHash)
	}

	if got := entry.Keywords(); len(got) != 3 || got[2] != "resilience" {
		t.Errorf("Keywords() = %v", got)
	}
}

func TestProcessor_Process_IgnoresStoredHash(t *testing.T) {
	row := referenceRow()
	row["integrity_hash"] = "not-a-real-hash"

	entry, err := NewProcessor().Process(row)
	if err != nil {
		t.Fatalf("Process returned unexpected error: %v", err)
	}

	if entry.IntegrityHash() != testHash {
		t.Errorf("IntegrityHash() = %s, want %s", entry.IntegrityHash(), testHash)
	}
}

func TestProcessor_Process_ValidationError(t *testing.T) {
	p := NewProcessor()

	row := referenceRow()
	delete(row, "url")

	entry, err := p.Process(row)
	if !errors.Is(err, ErrMissingKey) {
		t.Errorf("Process error = %v, want ErrMissingKey", err)
	}

	if entry != nil {
		t.Error("Process expected nil entry for invalid input")
	}
}

func TestProcessor_Process_StrictValidation(t *testing.T) {
	row := referenceRow()
	row["country_code"] = "usa"

	if _, err := NewProcessor().Process(row); err != nil {
		t.Fatalf("default processor rejected row: %v", err)
	}

	_, err := NewProcessor(nui.WithStrictValidation()).Process(row)
	if !errors.Is(err, nui.ErrSchemaValidation) {
		t.Errorf("strict Process error = %v, want ErrSchemaValidation", err)
	}
}

func TestProcessor_ProcessAll(t *testing.T) {
	bad := referenceRow()
	bad["crawl_date"] = "13/11/2025"

	rows := []Row{referenceRow(), bad, referenceRow()}

	entries, errs := NewProcessor().ProcessAll(rows)

	if len(entries) != 2 {
		t.Errorf("got %d entries, want 2", len(entries))
	}

	if len(errs) != 1 {
		t.Fatalf("got %d errors, want 1", len(errs))
	}

	if errs[0].Index != 1 {
		t.Errorf("error index = %d, want 1", errs[0].Index)
	}

	if !errors.Is(errs[0], nui.ErrInvalidField) {
		t.Errorf("error = %v, want ErrInvalidField", errs[0])
	}
}
