// Package store persists entries in SQLite and re-verifies their integrity
// hashes on read.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver

	"nui/internal/store/migrations"
	"nui/pkg/nui"
)

// DBFile is the database file name inside the store directory.
const DBFile = "nui.db"

// Store errors.
var (
	ErrNotFound      = errors.New("entry not found")
	ErrBatchNotFound = errors.New("batch not found")
)

// Store is a SQLite-backed entry store.
type Store struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

// Batch groups the entries saved by one run.
type Batch struct {
	CreatedAt time.Time
	ID        string
	Source    string
	Entries   int
}

// Mismatch is a stored row whose fields no longer match its hash, or that
// cannot be parsed back into an entry.
type Mismatch struct {
	Hash string
	Err  error
}

// Open opens (creating if needed) the store in dataDir.
func Open(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, DBFile)

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{
		db:   db,
		path: dbPath,
		now:  time.Now,
	}

	if err := s.migrate(migrations.FS); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// migrate applies every NNN_name.up.sql newer than the recorded version.
func (s *Store) migrate(fsys fs.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	if err := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	dirEntries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string

	for _, entry := range dirEntries {
		if name := entry.Name(); strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}

	sort.Strings(upFiles)

	for _, name := range upFiles {
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}

		if version <= currentVersion {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}

		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}

		if _, err := s.db.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}

	return nil
}

// NewBatch registers a batch for source and returns its id.
func (s *Store) NewBatch(ctx context.Context, source string) (string, error) {
	id := uuid.NewString()

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO batches (id, source, created_at) VALUES (?, ?, ?)",
		id, source, s.now().UTC())
	if err != nil {
		return "", fmt.Errorf("creating batch: %w", err)
	}

	return id, nil
}

// Batches lists batches, newest first, with their entry counts.
func (s *Store) Batches(ctx context.Context) ([]Batch, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, source, created_at,
			(SELECT COUNT(*) FROM entries WHERE entries.batch_id = batches.id)
		FROM batches
		ORDER BY created_at DESC, id
	`)
	if err != nil {
		return nil, fmt.Errorf("querying batches: %w", err)
	}
	defer rows.Close()

	var batches []Batch

	for rows.Next() {
		var b Batch
		if err := rows.Scan(&b.ID, &b.Source, &b.CreatedAt, &b.Entries); err != nil {
			return nil, fmt.Errorf("scanning batch: %w", err)
		}

		batches = append(batches, b)
	}

	return batches, rows.Err()
}

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Save upserts e keyed by its integrity hash. Saving an entry that is
// already stored only refreshes the unprotected fields, the batch and
// the stored_at time. batchID may be empty.
func (s *Store) Save(ctx context.Context, batchID string, e *nui.Entry) error {
	return s.save(ctx, s.db, batchID, e)
}

// SaveAll saves entries in one transaction.
func (s *Store) SaveAll(ctx context.Context, batchID string, entries []*nui.Entry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	for i, e := range entries {
		if err := s.save(ctx, tx, batchID, e); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("entry %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing entries: %w", err)
	}

	return nil
}

func (s *Store) save(ctx context.Context, ex execer, batchID string, e *nui.Entry) error {
	keywords, err := json.Marshal(e.Keywords())
	if err != nil {
		return fmt.Errorf("marshalling keywords: %w", err)
	}

	_, err = ex.ExecContext(ctx, `
		INSERT INTO entries (integrity_hash, url, crawl_date, source_domain, country_code,
			state_province_code, simhash_sig, canonical_url_hash, keywords, batch_id, stored_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(integrity_hash) DO UPDATE SET
			state_province_code = excluded.state_province_code,
			simhash_sig = excluded.simhash_sig,
			canonical_url_hash = excluded.canonical_url_hash,
			keywords = excluded.keywords,
			batch_id = excluded.batch_id,
			stored_at = excluded.stored_at
	`, e.IntegrityHash(), e.URL(), e.CrawlDate().ISO(), e.SourceDomain(), e.CountryCode(),
		nullable(e.StateProvinceCode()), nullable(e.SimhashSig()), nullable(e.CanonicalURLHash()),
		string(keywords), nullable(batchID, batchID != ""), s.now().UTC())
	if err != nil {
		if strings.Contains(err.Error(), "FOREIGN KEY") {
			return fmt.Errorf("%w: %s", ErrBatchNotFound, batchID)
		}

		return fmt.Errorf("saving entry: %w", err)
	}

	return nil
}

const selectEntry = `
	SELECT integrity_hash, url, crawl_date, source_domain, country_code,
		state_province_code, simhash_sig, canonical_url_hash, keywords
	FROM entries`

type scanner interface {
	Scan(dest ...any) error
}

// scanRecord reads one row into the map form nui.FromRecord parses, so
// NULL columns stay null and empty strings stay empty.
func scanRecord(sc scanner) (string, map[string]any, error) {
	var (
		hash, url, crawlDate, domain, country string
		state, simhash, canonical             sql.NullString
		keywordsJSON                          string
	)

	if err := sc.Scan(&hash, &url, &crawlDate, &domain, &country,
		&state, &simhash, &canonical, &keywordsJSON); err != nil {
		return "", nil, err
	}

	var keywords []string
	if err := json.Unmarshal([]byte(keywordsJSON), &keywords); err != nil {
		return hash, nil, fmt.Errorf("unmarshalling keywords: %w", err)
	}

	return hash, map[string]any{
		nui.KeyURL:               url,
		nui.KeyCrawlDate:         crawlDate,
		nui.KeySourceDomain:      domain,
		nui.KeyCountryCode:       country,
		nui.KeyStateProvinceCode: fromNull(state),
		nui.KeySimhashSig:        fromNull(simhash),
		nui.KeyCanonicalURLHash:  fromNull(canonical),
		nui.KeyKeywords:          keywords,
		nui.KeyIntegrityHash:     hash,
	}, nil
}

// Get loads the entry stored under hash. The hash is re-derived from the
// stored fields; a row altered behind the store's back yields
// nui.ErrHashMismatch.
func (s *Store) Get(ctx context.Context, hash string) (*nui.Entry, error) {
	row := s.db.QueryRowContext(ctx, selectEntry+" WHERE integrity_hash = ?", hash)

	_, record, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, hash)
		}

		return nil, fmt.Errorf("scanning entry: %w", err)
	}

	return nui.FromRecord(record)
}

// List returns up to limit entries, most recently stored first. A
// non-positive limit returns all entries.
func (s *Store) List(ctx context.Context, limit int) ([]*nui.Entry, error) {
	query := selectEntry + " ORDER BY stored_at DESC, integrity_hash"

	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying entries: %w", err)
	}
	defer rows.Close()

	var entries []*nui.Entry

	for rows.Next() {
		hash, record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning entry: %w", err)
		}

		e, err := nui.FromRecord(record)
		if err != nil {
			return nil, fmt.Errorf("entry %s: %w", hash, err)
		}

		entries = append(entries, e)
	}

	return entries, rows.Err()
}

// Count returns the number of stored entries.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM entries").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting entries: %w", err)
	}

	return n, nil
}

// VerifyAll re-derives the hash of every stored entry and returns the rows
// that fail, along with the number checked.
func (s *Store) VerifyAll(ctx context.Context) (int, []Mismatch, error) {
	rows, err := s.db.QueryContext(ctx, selectEntry+" ORDER BY integrity_hash")
	if err != nil {
		return 0, nil, fmt.Errorf("querying entries: %w", err)
	}
	defer rows.Close()

	var (
		checked    int
		mismatches []Mismatch
	)

	for rows.Next() {
		hash, record, err := scanRecord(rows)
		if err == nil {
			_, err = nui.FromRecord(record)
		}

		checked++

		if err != nil {
			mismatches = append(mismatches, Mismatch{Hash: hash, Err: err})
		}
	}

	if err := rows.Err(); err != nil {
		return checked, mismatches, fmt.Errorf("iterating entries: %w", err)
	}

	return checked, mismatches, nil
}

func nullable(v string, ok bool) sql.NullString {
	return sql.NullString{String: v, Valid: ok}
}

func fromNull(ns sql.NullString) any {
	if !ns.Valid {
		return nil
	}

	return ns.String
}
