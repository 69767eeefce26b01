package filesystem

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/clawscan/clawscan/internal/skills"
)

func TestDetectHiddenRoot_SuspiciousDotfile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".secret_token"), []byte("x"), 0644); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	findings := detectHiddenRoot(dir)
	if len(findings) != 1 {
		t.Fatalf("expected 1 finding, got %d", len(findings))
	}
	if findings[0].FindingType != "hidden_sensitive_file" {
		t.Errorf("finding type = %q", findings[0].FindingType)
	}
}

func TestDetectHiddenRoot_OrdinaryDotfileSkipped(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".gitignore"), []byte("x"), 0644); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	findings := detectHiddenRoot(dir)
	if len(findings) != 0 {
		t.Errorf("expected ordinary dotfiles to be skipped, got %d", len(findings))
	}
}

func TestDetectSensitiveFiles_EnvExposed(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("SECRET=1"), 0644); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	findings := detectSensitiveFiles(dir)
	if len(findings) != 1 {
		t.Fatalf("expected 1 finding, got %d", len(findings))
	}
	if findings[0].Severity != skills.SeverityCritical {
		t.Errorf("severity = %v, want critical", findings[0].Severity)
	}
}

func TestDetectPathTraversal_DotDotFilename(t *testing.T) {
	dir := t.TempDir()
	// filenames cannot literally contain "/", so use the ".." substring case.
	if err := os.WriteFile(filepath.Join(dir, "..hidden"), []byte("x"), 0644); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	findings := detectPathTraversal(dir)
	if len(findings) != 1 {
		t.Fatalf("expected 1 finding, got %d", len(findings))
	}
}

func TestDetectSymlinkAttacks_SelfReference(t *testing.T) {
	dir := t.TempDir()
	link := filepath.Join(dir, "loop")
	if err := os.Symlink(link, link); err != nil {
		t.Skipf("symlink creation not supported: %v", err)
	}

	findings := detectSymlinkAttacks(dir)
	found := false
	for _, f := range findings {
		if f.FindingType == "symlink_self_reference" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a symlink_self_reference finding, got %v", findings)
	}
}

func TestDetectSymlinkAttacks_BrokenSymlink(t *testing.T) {
	dir := t.TempDir()
	link := filepath.Join(dir, "dangling")
	if err := os.Symlink(filepath.Join(dir, "does-not-exist"), link); err != nil {
		t.Skipf("symlink creation not supported: %v", err)
	}

	findings := detectSymlinkAttacks(dir)
	found := false
	for _, f := range findings {
		if f.FindingType == "symlink_broken" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a symlink_broken finding, got %v", findings)
	}
}

func TestExecute_MissingPath(t *testing.T) {
	d := New()
	params, _ := json.Marshal(skills.ScanParams{Path: "/nonexistent/filesystem/path"})
	_, err := d.Execute(params)
	if !skills.IsInvalidParams(err) {
		t.Errorf("expected InvalidParams error, got %v", err)
	}
}

func TestExecute_ScansDirectory(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("SECRET=1"), 0644); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	d := New()
	params, _ := json.Marshal(skills.ScanParams{Path: dir})
	out, err := d.Execute(params)
	if err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if len(out.Findings) == 0 {
		t.Fatal("expected at least one finding")
	}
}
