// Package correlate generates sortable, unique identifiers used to tie a
// scan run and its findings together across log lines and the watch status
// server.
package correlate

import (
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

// NewScanRunID returns a new lexicographically-sortable scan-run
// identifier, seeded from the given timestamp (so callers control the
// clock rather than this package reading it directly).
func NewScanRunID(now time.Time) string {
	entropy := ulid.Monotonic(rand.Reader, 0)
	return ulid.MustNew(ulid.Timestamp(now), entropy).String()
}
