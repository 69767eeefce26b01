package registry

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"time"

	"github.com/clawscan/clawscan/internal/config"
	"github.com/clawscan/clawscan/internal/skills"
	"github.com/clawscan/clawscan/internal/trustcache"
)

// ScanPathCached runs the same aggregation ScanPath does, but first hashes
// every file under path into one aggregate tree hash and consults cache for
// a verdict recorded under the current skill set. A clean hit skips every
// detector entirely; anything else falls through to a normal scan, whose
// outcome (clean or not) is recorded back to the cache keyed by that same
// aggregate hash. cache may be nil, in which case this behaves exactly like
// skills.ScanPath.
//
// ScanAllWithProgress (the watch command's live-progress path) deliberately
// does not go through this cache: its purpose is to visualize detectors
// actually running, and a cache hit would skip that entirely.
func ScanPathCached(r *skills.Registry, path string, cache *trustcache.Cache) []skills.Finding {
	if cache == nil {
		return skills.ScanPath(r, path)
	}

	tag := scannerTag(r)
	treeHash, err := hashTree(path)
	if err != nil {
		return skills.ScanPath(r, path)
	}

	if v, ok, err := cache.Lookup(treeHash, tag); err == nil && ok && v.Clean {
		return nil
	}

	findings := skills.ScanPath(r, path)

	_ = cache.Store(trustcache.Verdict{
		ContentHash: treeHash,
		Clean:       len(findings) == 0,
		CheckedAt:   time.Now(),
		ScannerTag:  tag,
	})

	return findings
}

// OpenTrustCache opens the configured trust cache, or returns a nil cache
// (not an error) when trust caching is disabled.
func OpenTrustCache(cfg *config.Config) (*trustcache.Cache, error) {
	if cfg == nil || !cfg.TrustCache.Enabled {
		return nil, nil
	}
	return trustcache.Open(cfg.TrustCache.Path)
}

// scannerTag derives a stable identifier for the registered skill set so a
// cached verdict is invalidated whenever the detectors backing it change.
func scannerTag(r *skills.Registry) string {
	names := make([]string, 0)
	for _, s := range r.List() {
		names = append(names, s.Name())
	}
	sort.Strings(names)

	h := sha256.New()
	for _, n := range names {
		h.Write([]byte(n))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// hashTree combines the per-file content hash of every file under root into
// one aggregate hash, so a single byte changing anywhere invalidates the
// cached verdict for the whole tree.
func hashTree(root string) (string, error) {
	files := skills.WalkFiles(root, true, skills.DefaultMaxWalkDepth)
	sort.Strings(files)

	h := sha256.New()
	for _, f := range files {
		fileHash, err := trustcache.HashFile(f)
		if err != nil {
			return "", err
		}
		h.Write([]byte(f))
		h.Write([]byte{0})
		h.Write([]byte(fileHash))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
