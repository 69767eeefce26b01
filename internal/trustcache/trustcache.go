// Package trustcache persists a content-hash-to-verdict cache in SQLite so
// repeat scans of unchanged files can skip re-running every detector. It
// stores only a hash and a trust verdict, never the findings themselves — a
// cache hit whose verdict is not clean still re-runs the detectors to
// re-derive findings.
package trustcache

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"os"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Verdict is the cached trust outcome for a content hash.
type Verdict struct {
	ContentHash string
	Clean       bool
	CheckedAt   time.Time
	ScannerTag  string // identifies the detector set/version the verdict is valid for
}

// Cache wraps a SQLite-backed content-hash -> verdict store.
type Cache struct {
	db *sql.DB
}

// Open opens (creating if necessary) the trust cache database at path.
func Open(path string) (*Cache, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL")
	if err != nil {
		return nil, fmt.Errorf("trustcache: opening sqlite: %w", err)
	}
	c := &Cache{db: db}
	if err := c.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return c, nil
}

func (c *Cache) initialize() error {
	_, err := c.db.Exec(`
	CREATE TABLE IF NOT EXISTS verdicts (
		content_hash TEXT PRIMARY KEY,
		clean        INTEGER NOT NULL,
		checked_at   DATETIME NOT NULL,
		scanner_tag  TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_verdicts_checked_at ON verdicts(checked_at);
	`)
	return err
}

// Close closes the underlying database.
func (c *Cache) Close() error {
	return c.db.Close()
}

// HashFile computes the content hash used as the cache key.
func HashFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// Lookup returns the cached verdict for a content hash under the given
// scanner tag, if one exists and was recorded under the same tag (a
// scanner-tag change, e.g. after adding a detector, invalidates old
// verdicts implicitly).
func (c *Cache) Lookup(contentHash, scannerTag string) (Verdict, bool, error) {
	var v Verdict
	err := c.db.QueryRow(
		`SELECT content_hash, clean, checked_at, scanner_tag FROM verdicts WHERE content_hash = ? AND scanner_tag = ?`,
		contentHash, scannerTag,
	).Scan(&v.ContentHash, &v.Clean, &v.CheckedAt, &v.ScannerTag)
	if err == sql.ErrNoRows {
		return Verdict{}, false, nil
	}
	if err != nil {
		return Verdict{}, false, err
	}
	return v, true, nil
}

// Store records a verdict, overwriting any prior entry for the same hash.
func (c *Cache) Store(v Verdict) error {
	_, err := c.db.Exec(
		`INSERT INTO verdicts (content_hash, clean, checked_at, scanner_tag)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(content_hash) DO UPDATE SET
			clean = excluded.clean,
			checked_at = excluded.checked_at,
			scanner_tag = excluded.scanner_tag`,
		v.ContentHash, v.Clean, v.CheckedAt, v.ScannerTag,
	)
	return err
}

// PruneOlderThan deletes verdicts checked before the cutoff, returning the
// number of rows removed.
func (c *Cache) PruneOlderThan(cutoff time.Time) (int64, error) {
	res, err := c.db.Exec(`DELETE FROM verdicts WHERE checked_at < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
