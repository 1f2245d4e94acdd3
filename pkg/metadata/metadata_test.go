package metadata

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const report = "# Report\n\n| a | b |\n| --- | --- |\n| 1 | 2 |"

func TestSignAndVerify(t *testing.T) {
	generated := time.Date(2025, 11, 13, 10, 0, 0, 0, time.UTC)

	signed := Sign(report, Metadata{Generated: generated, Entries: 1, Validation: true})
	assert.True(t, strings.HasPrefix(signed, report+"\n\n"+TagStart))

	meta, err := Verify(signed)
	require.NoError(t, err)

	assert.Equal(t, generated, meta.Generated)
	assert.Equal(t, 1, meta.Entries)
	assert.True(t, meta.Validation)
	assert.Len(t, meta.Hash, 64)
}

func TestSign_ReplacesExistingBlock(t *testing.T) {
	once := Sign(report, Metadata{Entries: 1})
	twice := Sign(once, Metadata{Entries: 2})

	assert.Equal(t, 1, strings.Count(twice, TagStart))

	meta, err := Verify(twice)
	require.NoError(t, err)
	assert.Equal(t, 2, meta.Entries)
}

func TestVerify_Tampered(t *testing.T) {
	signed := Sign(report, Metadata{Entries: 1})
	tampered := strings.Replace(signed, "| 1 | 2 |", "| 1 | 3 |", 1)

	_, err := Verify(tampered)
	require.ErrorIs(t, err, ErrHashMismatch)
	assert.Contains(t, err.Error(), "expected ")
}

func TestVerify_Errors(t *testing.T) {
	_, err := Verify(report)
	assert.ErrorIs(t, err, ErrNoMetadataBlock)

	noHash := report + "\n\n" + TagStart + "\nVALIDATION: TRUE\n" + TagEnd
	_, err = Verify(noHash)
	assert.ErrorIs(t, err, ErrNoHashFound)
}

func TestCalculateHash_IgnoresBlockAndTrailingNewlines(t *testing.T) {
	signed := Sign(report, Metadata{})

	assert.Equal(t, CalculateHash(report), CalculateHash(signed))
	assert.Equal(t, CalculateHash(report), CalculateHash(report+"\n\n"))
}
