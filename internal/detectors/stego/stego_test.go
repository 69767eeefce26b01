package stego

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/clawscan/clawscan/internal/skills"
)

func TestDetectEOFData_PNGExtraBytes(t *testing.T) {
	data := append([]byte{}, pngMagic...)
	data = append(data, make([]byte, 20)...)
	data = append(data, pngIEND...)
	data = append(data, []byte("hidden payload")...)

	findings := detectEOFData("img.png", data)
	if len(findings) != 1 {
		t.Fatalf("expected 1 finding, got %d", len(findings))
	}
	if findings[0].FindingType != "eof_hidden_data" {
		t.Errorf("finding type = %q", findings[0].FindingType)
	}
}

func TestDetectEOFData_CleanPNG(t *testing.T) {
	data := append([]byte{}, pngMagic...)
	data = append(data, make([]byte, 20)...)
	data = append(data, pngIEND...)

	findings := detectEOFData("img.png", data)
	if len(findings) != 0 {
		t.Errorf("expected no findings for a clean PNG, got %d", len(findings))
	}
}

func TestDetectWhitespaceEncoding_BelowThreshold(t *testing.T) {
	content := "line one \t\nline two\n"
	findings := detectWhitespaceEncoding("f.txt", content)
	if findings != nil {
		t.Errorf("expected nil below the suspicious-lines threshold, got %v", findings)
	}
}

func TestDetectHomoglyphs_CyrillicSubstitution(t *testing.T) {
	findings := detectHomoglyphs("f.txt", "pаypal.com") // Cyrillic а
	if len(findings) != 1 {
		t.Fatalf("expected 1 finding, got %d", len(findings))
	}
	homoglyphs, ok := findings[0].Value.(map[string]any)["homoglyphs"].([]map[string]any)
	if !ok || len(homoglyphs) == 0 {
		t.Fatalf("expected at least one homoglyph entry")
	}
	if homoglyphs[0]["unicode_name"] == "" {
		t.Errorf("expected a non-empty unicode_name from runenames")
	}
}

func TestDetectHomoglyphs_PlainASCII(t *testing.T) {
	findings := detectHomoglyphs("f.txt", "paypal.com")
	if len(findings) != 0 {
		t.Errorf("expected no findings for plain ASCII, got %d", len(findings))
	}
}

func TestExecute_MissingPath(t *testing.T) {
	d := New()
	params, _ := json.Marshal(skills.ScanParams{Path: "/nonexistent/stego/path"})
	_, err := d.Execute(params)
	if !skills.IsInvalidParams(err) {
		t.Errorf("expected InvalidParams error, got %v", err)
	}
}

func TestExecute_ScansDirectory(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "note.txt")
	if err := os.WriteFile(path, []byte("pаypal.com login portal"), 0644); err != nil {
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
