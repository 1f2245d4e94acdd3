// Package metadata signs generated markdown reports with a trailing
// metadata block carrying a SHA-256 of the report body.
package metadata

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"nui/pkg/nui"
)

const (
	// TagStart is the start of the metadata block.
	TagStart = "<!-- METADATA_START"
	// TagEnd is the end of the metadata block.
	TagEnd = "METADATA_END -->"
)

// Metadata verification errors.
var (
	ErrNoMetadataBlock = errors.New("no metadata block found")
	ErrNoHashFound     = errors.New("no hash found in metadata")
	ErrHashMismatch    = errors.New("report hash mismatch")
)

// Metadata describes a signed report.
type Metadata struct {
	Generated  time.Time
	Entries    int
	Hash       string
	Validation bool
}

// metadataRegex matches the entire metadata block including tags.
var metadataRegex = regexp.MustCompile(`(?s)<!--\s*METADATA_START\s*\n(.*?)\n\s*METADATA_END\s*-->`)

// Extract removes the metadata block from content and returns both the
// metadata and the cleaned content. The cleaned content is what is hashed.
func Extract(content string) (*Metadata, string) {
	match := metadataRegex.FindStringSubmatch(content)
	cleanContent := metadataRegex.ReplaceAllString(content, "")
	cleanContent = strings.TrimRight(cleanContent, "\n")

	if len(match) < 2 {
		return nil, cleanContent
	}

	meta := &Metadata{}

	for _, line := range strings.Split(match[1], "\n") {
		key, val, ok := strings.Cut(strings.TrimSpace(line), ":")
		if !ok {
			continue
		}

		val = strings.TrimSpace(val)

		switch strings.TrimSpace(key) {
		case "VALIDATION":
			meta.Validation = strings.EqualFold(val, "TRUE")
		case "GENERATED":
			if t, err := time.Parse(time.RFC3339, val); err == nil {
				meta.Generated = t
			}
		case "ENTRIES":
			if n, err := strconv.Atoi(val); err == nil {
				meta.Entries = n
			}
		case "HASH":
			meta.Hash = val
		}
	}

	return meta, cleanContent
}

// CalculateHash computes the SHA-256 of content with any metadata block removed.
func CalculateHash(content string) string {
	_, clean := Extract(content)

	return nui.SHA256Hex([]byte(clean))
}

// Sign strips any existing block from content and appends a fresh one.
// meta.Hash is ignored and recomputed; a zero Generated becomes now.
func Sign(content string, meta Metadata) string {
	_, clean := Extract(content)

	if meta.Generated.IsZero() {
		meta.Generated = time.Now()
	}

	valStr := "FALSE"
	if meta.Validation {
		valStr = "TRUE"
	}

	block := fmt.Sprintf("\n\n%s\nVALIDATION: %s\nGENERATED: %s\nENTRIES: %d\nHASH: %s\n%s\n",
		TagStart, valStr, meta.Generated.UTC().Format(time.RFC3339), meta.Entries, CalculateHash(clean), TagEnd)

	return clean + block
}

// Verify checks that content matches the hash in its metadata block.
func Verify(content string) (*Metadata, error) {
	meta, clean := Extract(content)
	if meta == nil {
		return nil, ErrNoMetadataBlock
	}

	if meta.Hash == "" {
		return meta, ErrNoHashFound
	}

	if calculated := CalculateHash(clean); calculated != meta.Hash {
		return meta, fmt.Errorf("%w: expected %s, got %s", ErrHashMismatch, meta.Hash, calculated)
	}

	return meta, nil
}
