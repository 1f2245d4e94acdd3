package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nui/pkg/nui"
)

const referenceHash = "f5b1ab7b26a06e735fa3a00b58dc7b6052cc65a4a633e1e6da283e54a91daf6f"

// setupTestStore creates a SQLite store in a temporary directory.
func setupTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := Open(t.TempDir())
	require.NoError(t, err)

	t.Cleanup(func() {
		assert.NoError(t, s.Close())
	})

	return s
}

func referenceEntry(t *testing.T) *nui.Entry {
	t.Helper()

	e, err := nui.New(nui.Fields{
		URL:               "https://www.nsf.gov/research_paper_123.pdf",
		CrawlDate:         nui.Naive(time.Date(2025, 11, 13, 10, 0, 0, 0, time.UTC)),
		SourceDomain:      "nsf.gov",
		CountryCode:       "US",
		StateProvinceCode: nui.Optional("VA"),
		SimhashSig:        nui.Optional("a3b2c1d0e4f5a6b7"),
		Keywords:          []string{"computational-science", "grant-funding", "resilience"},
	})
	require.NoError(t, err)

	return e
}

func numberedEntry(t *testing.T, i int) *nui.Entry {
	t.Helper()

	e, err := nui.New(nui.Fields{
		URL:          fmt.Sprintf("https://x.example/%d", i),
		CrawlDate:    nui.Zoned(time.Date(2025, 1, 1, 0, 0, i, 1000, time.UTC)),
		SourceDomain: "x.example",
		CountryCode:  "DE",
		SimhashSig:   nui.Optional(""),
	})
	require.NoError(t, err)

	return e
}

func TestOpen_CreatesDatabase(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested")

	s, err := Open(dir)
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, filepath.Join(dir, DBFile), s.Path())

	_, err = os.Stat(s.Path())
	assert.NoError(t, err)
}

func TestOpen_Reopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx, "", referenceEntry(t)))
	require.NoError(t, s.Close())

	s, err = Open(dir)
	require.NoError(t, err)
	defer s.Close()

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	var versions int
	require.NoError(t, s.db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&versions))
	assert.Equal(t, 1, versions)
}

func TestSaveAndGet(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, "", referenceEntry(t)))

	got, err := s.Get(ctx, referenceHash)
	require.NoError(t, err)

	assert.Equal(t, referenceEntry(t).Record(), got.Record())
}

func TestSaveAndGet_PreservesNullVersusEmpty(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	e := numberedEntry(t, 1)
	require.NoError(t, s.Save(ctx, "", e))

	got, err := s.Get(ctx, e.IntegrityHash())
	require.NoError(t, err)

	sig, ok := got.SimhashSig()
	assert.True(t, ok)
	assert.Equal(t, "", sig)

	_, ok = got.StateProvinceCode()
	assert.False(t, ok)

	assert.Equal(t, e.CrawlDate().ISO(), got.CrawlDate().ISO())
	assert.Equal(t, []string{}, got.Keywords())
}

func TestSave_UpsertRefreshesUnprotectedFields(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	e := referenceEntry(t)
	require.NoError(t, s.Save(ctx, "", e))

	enriched := e.WithKeywords([]string{"new"}).WithCanonicalURLHash(nui.Optional("abc"))
	require.NoError(t, s.Save(ctx, "", enriched))

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := s.Get(ctx, referenceHash)
	require.NoError(t, err)

	assert.Equal(t, []string{"new"}, got.Keywords())

	canonical, ok := got.CanonicalURLHash()
	assert.True(t, ok)
	assert.Equal(t, "abc", canonical)
}

func TestSave_UpsertKeepsLatestOptionalPresence(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	fields := nui.Fields{
		URL:          "https://x.example/state",
		CrawlDate:    nui.Naive(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)),
		SourceDomain: "x.example",
		CountryCode:  "DE",
	}

	absent, err := nui.New(fields)
	require.NoError(t, err)

	fields.StateProvinceCode = nui.Optional("")
	fields.SimhashSig = nui.Optional("")

	empty, err := nui.New(fields)
	require.NoError(t, err)
	require.Equal(t, absent.IntegrityHash(), empty.IntegrityHash())

	require.NoError(t, s.Save(ctx, "", absent))
	require.NoError(t, s.Save(ctx, "", empty))

	got, err := s.Get(ctx, empty.IntegrityHash())
	require.NoError(t, err)

	state, ok := got.StateProvinceCode()
	assert.True(t, ok)
	assert.Equal(t, "", state)

	_, ok = got.SimhashSig()
	assert.True(t, ok)

	// And back to absent.
	require.NoError(t, s.Save(ctx, "", absent))

	got, err = s.Get(ctx, absent.IntegrityHash())
	require.NoError(t, err)

	_, ok = got.StateProvinceCode()
	assert.False(t, ok)
}

func TestGet_NotFound(t *testing.T) {
	_, err := setupTestStore(t).Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGet_TamperedRow(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, "", referenceEntry(t)))

	_, err := s.db.ExecContext(ctx, "UPDATE entries SET source_domain = 'fake.gov' WHERE integrity_hash = ?", referenceHash)
	require.NoError(t, err)

	_, err = s.Get(ctx, referenceHash)
	require.ErrorIs(t, err, nui.ErrHashMismatch)
	assert.Contains(t, err.Error(), "bdb37dd82e62ea82d4a0fc1b6b0b28cbec2067f1b84d76ad8911aafb9a625f40")
}

func TestVerifyAll(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, s.Save(ctx, "", numberedEntry(t, i)))
	}

	tampered := numberedEntry(t, 1)

	checked, mismatches, err := s.VerifyAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, checked)
	assert.Empty(t, mismatches)

	_, err = s.db.ExecContext(ctx, "UPDATE entries SET country_code = 'FR' WHERE integrity_hash = ?", tampered.IntegrityHash())
	require.NoError(t, err)

	checked, mismatches, err = s.VerifyAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, checked)
	require.Len(t, mismatches, 1)
	assert.Equal(t, tampered.IntegrityHash(), mismatches[0].Hash)
	assert.ErrorIs(t, mismatches[0].Err, nui.ErrHashMismatch)
}

func TestList(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		i := i
		s.now = func() time.Time { return base.Add(time.Duration(i) * time.Minute) }
		require.NoError(t, s.Save(ctx, "", numberedEntry(t, i)))
	}

	all, err := s.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "https://x.example/2", all[0].URL())
	assert.Equal(t, "https://x.example/0", all[2].URL())

	limited, err := s.List(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestBatches(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	created := time.Date(2025, 11, 13, 10, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return created }

	id, err := s.NewBatch(ctx, "crawl")
	require.NoError(t, err)

	_, err = uuid.Parse(id)
	require.NoError(t, err)

	require.NoError(t, s.SaveAll(ctx, id, []*nui.Entry{numberedEntry(t, 1), numberedEntry(t, 2)}))

	batches, err := s.Batches(ctx)
	require.NoError(t, err)
	require.Len(t, batches, 1)

	assert.Equal(t, id, batches[0].ID)
	assert.Equal(t, "crawl", batches[0].Source)
	assert.Equal(t, 2, batches[0].Entries)
	assert.True(t, batches[0].CreatedAt.Equal(created))
}

func TestSave_UnknownBatch(t *testing.T) {
	s := setupTestStore(t)

	err := s.Save(context.Background(), "no-such-batch", referenceEntry(t))
	assert.ErrorIs(t, err, ErrBatchNotFound)
}

func TestSaveAll_RollsBack(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	err := s.SaveAll(ctx, "no-such-batch", []*nui.Entry{numberedEntry(t, 1)})
	require.Error(t, err)

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}
