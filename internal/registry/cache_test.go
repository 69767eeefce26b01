package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/clawscan/clawscan/internal/config"
	"github.com/clawscan/clawscan/internal/trustcache"
)

func writeSuspiciousFile(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "payload.js")
	content := "eval(\"bitcoin wallet 0x0000000000000000000000000000000000dead\")"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}
	return path
}

func TestScanPathCached_NilCacheBehavesLikeScanPath(t *testing.T) {
	dir := t.TempDir()
	writeSuspiciousFile(t, dir)

	r := CreateDefaultRegistry(nil, nil)
	findings := ScanPathCached(r, dir, nil)
	if len(findings) == 0 {
		t.Fatal("expected at least one finding for a suspicious payload")
	}
}

func TestScanPathCached_SecondRunHitsCacheForCleanTree(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("just some notes"), 0644); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}

	cache, err := trustcache.Open(filepath.Join(t.TempDir(), "trust.db"))
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	defer cache.Close()

	r := CreateDefaultRegistry(nil, nil)

	first := ScanPathCached(r, dir, cache)
	if len(first) != 0 {
		t.Fatalf("expected a clean tree to produce no findings, got %d", len(first))
	}

	tag := scannerTag(r)
	hash, err := hashTree(dir)
	if err != nil {
		t.Fatalf("hashTree() error: %v", err)
	}
	v, ok, err := cache.Lookup(hash, tag)
	if err != nil {
		t.Fatalf("Lookup() error: %v", err)
	}
	if !ok || !v.Clean {
		t.Fatalf("expected a clean verdict to be cached after the first scan, got ok=%v clean=%v", ok, v.Clean)
	}

	second := ScanPathCached(r, dir, cache)
	if len(second) != 0 {
		t.Fatalf("expected the cache hit to also report no findings, got %d", len(second))
	}
}

func TestOpenTrustCache_DisabledReturnsNilCache(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.TrustCache.Enabled = false

	cache, err := OpenTrustCache(cfg)
	if err != nil {
		t.Fatalf("OpenTrustCache() error: %v", err)
	}
	if cache != nil {
		t.Fatal("expected a nil cache when trust caching is disabled")
	}
}

func TestOpenTrustCache_EnabledOpensDatabase(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.TrustCache.Enabled = true
	cfg.TrustCache.Path = filepath.Join(t.TempDir(), "trust.db")

	cache, err := OpenTrustCache(cfg)
	if err != nil {
		t.Fatalf("OpenTrustCache() error: %v", err)
	}
	if cache == nil {
		t.Fatal("expected a non-nil cache when trust caching is enabled")
	}
	cache.Close()
}
