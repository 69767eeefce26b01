package cipher

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/clawscan/clawscan/internal/skills"
)

func TestDetectMathConstants_GoldenRatio(t *testing.T) {
	findings := detectMathConstants("seed.txt", "seed = 1618033988")
	if len(findings) != 1 {
		t.Fatalf("expected 1 finding, got %d", len(findings))
	}
	if findings[0].FindingType != "math_constant_seed" {
		t.Errorf("finding type = %q", findings[0].FindingType)
	}
}

func TestDetectMathConstants_NoMatch(t *testing.T) {
	findings := detectMathConstants("seed.txt", "seed = 123456789")
	if len(findings) != 0 {
		t.Errorf("expected no findings, got %d", len(findings))
	}
}

func TestDetectGridPatterns_PowerOf2(t *testing.T) {
	findings := detectGridPatterns("grid.txt", "resolution: 1024x1024")
	if len(findings) != 1 {
		t.Fatalf("expected 1 finding, got %d", len(findings))
	}
	if findings[0].Severity != skills.SeverityMedium {
		t.Errorf("severity = %v, want medium", findings[0].Severity)
	}
}

func TestDetectGridPatterns_NonPowerOf2Skipped(t *testing.T) {
	findings := detectGridPatterns("grid.txt", "resolution: 1000x1000")
	if len(findings) != 0 {
		t.Errorf("expected no findings, got %d", len(findings))
	}
}

func TestDetectSelfReference_MD5(t *testing.T) {
	// d41d8cd98f00b204e9800998ecf8427e is the MD5 of the empty string, not of
	// the content with the token removed ("hash: "), so this hash-shaped
	// string is not self-referencing and the detector finds nothing.
	content := "hash: d41d8cd98f00b204e9800998ecf8427e"
	findings := detectSelfReference("f.txt", content)
	if len(findings) != 0 {
		t.Errorf("expected no self-reference for unrelated hash, got %d", len(findings))
	}
}

func TestDetectGUIDPatterns_BelowMinimumCount(t *testing.T) {
	findings := detectGUIDPatterns("g.txt", "550e8400-e29b-41d4-a716-446655440000")
	if findings != nil {
		t.Errorf("expected nil with fewer than 3 GUIDs, got %v", findings)
	}
}

func TestDetectSequencePatterns_Keyword(t *testing.T) {
	findings := detectSequencePatterns("s.txt", "uses a halton sequence for sampling")
	if len(findings) != 1 {
		t.Fatalf("expected 1 finding, got %d", len(findings))
	}
	if findings[0].FindingType != "sequence_indicator" {
		t.Errorf("finding type = %q", findings[0].FindingType)
	}
}

func TestDetectSequencePatterns_FullwidthIdentifierFolds(t *testing.T) {
	// ｃｉｐｈｅｒ is the fullwidth form of "cipher"; width.Narrow should
	// fold it to ASCII before the identifier regex runs.
	findings := detectSequencePatterns("s.txt", "var myｃｉｐｈｅｒValue = 1")
	found := false
	for _, f := range findings {
		if f.FindingType == "cipher_hint_identifier" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a cipher_hint_identifier finding after width folding, got %v", findings)
	}
}

func TestExecute_MissingPath(t *testing.T) {
	d := New()
	params, _ := json.Marshal(skills.ScanParams{Path: "/nonexistent/cipher/path"})
	_, err := d.Execute(params)
	if !skills.IsInvalidParams(err) {
		t.Errorf("expected InvalidParams error, got %v", err)
	}
}

func TestExecute_ScansFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "constants.txt")
	if err := os.WriteFile(path, []byte("phi seed: 1618033988, resolution 512x512"), 0644); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	d := New()
	params, _ := json.Marshal(skills.ScanParams{Path: dir, Recursive: true})
	out, err := d.Execute(params)
	if err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if len(out.Findings) == 0 {
		t.Fatal("expected at least one finding")
	}
}
