package skills

import (
	"encoding/json"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
)

func TestSeverity_JSONRoundTrip(t *testing.T) {
	for _, sev := range []Severity{SeverityInfo, SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical} {
		data, err := json.Marshal(sev)
		if err != nil {
			t.Fatalf("Marshal(%v) error: %v", sev, err)
		}
		var out Severity
		if err := json.Unmarshal(data, &out); err != nil {
			t.Fatalf("Unmarshal(%s) error: %v", data, err)
		}
		if out != sev {
			t.Errorf("round trip: got %v, want %v", out, sev)
		}
	}
}

func TestSeverity_Ordering(t *testing.T) {
	if !(SeverityCritical > SeverityHigh && SeverityHigh > SeverityMedium &&
		SeverityMedium > SeverityLow && SeverityLow > SeverityInfo) {
		t.Fatal("expected a strict total order info < low < medium < high < critical")
	}
}

func TestSeverity_UnmarshalRejectsUnknown(t *testing.T) {
	var s Severity
	if err := json.Unmarshal([]byte(`"catastrophic"`), &s); err == nil {
		t.Fatal("expected an error for an unknown severity string")
	}
}

func TestNewSkillOutput_EmptyFindingsIsFullConfidence(t *testing.T) {
	out := NewSkillOutput(nil)
	if out.Confidence != 1.0 || !out.Complete {
		t.Errorf("got %+v, want confidence 1.0 and complete true", out)
	}
}

func TestNewSkillOutput_MeanConfidence(t *testing.T) {
	findings := []Finding{
		{Confidence: 0.6},
		{Confidence: 0.8},
		{Confidence: 1.0},
	}
	out := NewSkillOutput(findings)
	want := (0.6 + 0.8 + 1.0) / 3
	if math.Abs(out.Confidence-want) > 1e-9 {
		t.Errorf("Confidence = %v, want %v", out.Confidence, want)
	}
}

func TestFilterByThreshold(t *testing.T) {
	findings := []Finding{{Confidence: 0.5}, {Confidence: 0.9}, {Confidence: 0.7}}
	filtered := FilterByThreshold(findings, 0.7)
	if len(filtered) != 2 {
		t.Fatalf("expected 2 findings above threshold, got %d", len(filtered))
	}
}

func TestFilterByThreshold_DoesNotMutateInput(t *testing.T) {
	findings := []Finding{{Confidence: 0.5}, {Confidence: 0.9}}
	_ = FilterByThreshold(findings, 0.7)
	if len(findings) != 2 {
		t.Fatalf("input slice was mutated, len = %d", len(findings))
	}
}

func TestParamsFromJSON_MissingPath(t *testing.T) {
	_, err := ParamsFromJSON([]byte(`{"recursive": true}`))
	if !IsInvalidParams(err) {
		t.Errorf("expected InvalidParams error, got %v", err)
	}
}

func TestParamsFromJSON_EmptyInput(t *testing.T) {
	_, err := ParamsFromJSON(nil)
	if !IsInvalidParams(err) {
		t.Errorf("expected InvalidParams error for empty input, got %v", err)
	}
}

func TestParamsFromJSON_MalformedJSON(t *testing.T) {
	_, err := ParamsFromJSON([]byte(`{not json`))
	if !IsInvalidParams(err) {
		t.Errorf("expected InvalidParams-equivalent error for malformed JSON, got %v", err)
	}
}

func TestParamsFromJSON_Valid(t *testing.T) {
	p, err := ParamsFromJSON([]byte(`{"path": "/tmp", "recursive": true}`))
	if err != nil {
		t.Fatalf("ParamsFromJSON() error: %v", err)
	}
	if p.Path != "/tmp" || !p.Recursive {
		t.Errorf("got %+v", p)
	}
}

func TestScanParams_Exists(t *testing.T) {
	dir := t.TempDir()
	p := ScanParams{Path: dir}
	if !p.Exists() {
		t.Error("expected an existing directory to report Exists() true")
	}
	p.Path = filepath.Join(dir, "nope")
	if p.Exists() {
		t.Error("expected a nonexistent path to report Exists() false")
	}
}

func TestScanParams_MaxDepth(t *testing.T) {
	if (ScanParams{Recursive: false}).MaxDepth(50) != 1 {
		t.Error("expected non-recursive scans to cap depth at 1")
	}
	if (ScanParams{Recursive: true}).MaxDepth(50) != 50 {
		t.Error("expected recursive scans to use the unbounded cap")
	}
}

func TestIsInvalidParams(t *testing.T) {
	if !IsInvalidParams(NewInvalidParams("bad")) {
		t.Error("expected NewInvalidParams to be reported as InvalidParams")
	}
	if !IsInvalidParams(NewSerializationError(errors.New("boom"))) {
		t.Error("expected a serialization error to be reported as InvalidParams-equivalent")
	}
	if IsInvalidParams(NewIOError(errors.New("boom"))) {
		t.Error("expected an IO error to not be reported as InvalidParams")
	}
	if IsInvalidParams(errors.New("plain error")) {
		t.Error("expected a non-SkillError to not be reported as InvalidParams")
	}
}

func TestWalkFiles_NonRecursiveStopsAtImmediateChildren(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "sub")
	if err := os.Mkdir(sub, 0755); err != nil {
		t.Fatalf("mkdir failed: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "top.txt"), []byte("x"), 0644); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if err := os.WriteFile(filepath.Join(sub, "nested.txt"), []byte("x"), 0644); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	files := WalkFiles(dir, false, 10)
	if len(files) != 1 {
		t.Fatalf("expected 1 file in a non-recursive scan, got %d: %v", len(files), files)
	}
}

func TestWalkFiles_RecursiveFindsNested(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "sub")
	if err := os.Mkdir(sub, 0755); err != nil {
		t.Fatalf("mkdir failed: %v", err)
	}
	if err := os.WriteFile(filepath.Join(sub, "nested.txt"), []byte("x"), 0644); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	files := WalkFiles(dir, true, 10)
	if len(files) != 1 {
		t.Fatalf("expected 1 nested file, got %d: %v", len(files), files)
	}
}

func TestWalkFiles_SkipsSymlinks(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "real.txt")
	if err := os.WriteFile(target, []byte("x"), 0644); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	link := filepath.Join(dir, "link.txt")
	if err := os.Symlink(target, link); err != nil {
		t.Skipf("symlink creation not supported: %v", err)
	}

	files := WalkFiles(dir, true, 10)
	if len(files) != 1 {
		t.Fatalf("expected symlink to be excluded, got %d files: %v", len(files), files)
	}
}

func TestReadTextFile_RejectsInvalidUTF8(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bin.dat")
	if err := os.WriteFile(path, []byte{0xff, 0xfe, 0x00}, 0644); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if _, ok := ReadTextFile(path); ok {
		t.Error("expected invalid UTF-8 content to be rejected")
	}
}

func TestReadTextFile_ReturnsContent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "note.txt")
	if err := os.WriteFile(path, []byte("hello"), 0644); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	content, ok := ReadTextFile(path)
	if !ok || content != "hello" {
		t.Errorf("got (%q, %v), want (\"hello\", true)", content, ok)
	}
}

type stubSkill struct {
	name string
	cats []string
	out  SkillOutput
	err  error
}

func (s stubSkill) Name() string                 { return s.name }
func (s stubSkill) Description() string          { return "stub" }
func (s stubSkill) Schema() map[string]any       { return map[string]any{"name": s.name} }
func (s stubSkill) ConfidenceThreshold() float64 { return DefaultConfidenceThreshold }
func (s stubSkill) Categories() []string         { return s.cats }
func (s stubSkill) Execute(json.RawMessage) (SkillOutput, error) {
	return s.out, s.err
}

func TestRegistry_RegisterGetList(t *testing.T) {
	r := NewRegistry()
	r.Register(stubSkill{name: "alpha"})
	r.Register(stubSkill{name: "beta"})

	if _, ok := r.Get("alpha"); !ok {
		t.Fatal("expected alpha to be registered")
	}
	if len(r.List()) != 2 {
		t.Fatalf("expected 2 registered skills, got %d", len(r.List()))
	}
}

func TestRegistry_ByCategory(t *testing.T) {
	r := NewRegistry()
	r.Register(stubSkill{name: "alpha", cats: []string{"malware"}})
	r.Register(stubSkill{name: "beta", cats: []string{"network"}})

	matched := r.ByCategory("malware")
	if len(matched) != 1 || matched[0].Name() != "alpha" {
		t.Fatalf("got %+v", matched)
	}
}

func TestRegistry_Invoke_UnknownSkill(t *testing.T) {
	r := NewRegistry()
	_, err := r.Invoke("missing", nil)
	if !IsInvalidParams(err) {
		t.Errorf("expected InvalidParams error for unknown skill, got %v", err)
	}
}

func TestRegistry_ScanAll_ReportsPerSkillErrors(t *testing.T) {
	r := NewRegistry()
	r.Register(stubSkill{name: "ok", out: NewSkillOutput([]Finding{{Confidence: 0.9}})})
	r.Register(stubSkill{name: "broken", err: NewIOError(errors.New("disk fell off"))})

	results := r.ScanAll("/tmp")
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	var sawError bool
	for _, res := range results {
		if res.Name == "broken" && res.Err != nil {
			sawError = true
		}
	}
	if !sawError {
		t.Error("expected the broken skill's error to be reported in its own result")
	}
}

func TestScanPath_SortsBySeverityThenConfidence(t *testing.T) {
	r := NewRegistry()
	r.Register(stubSkill{name: "a", out: SkillOutput{Findings: []Finding{
		{FindingType: "low_conf_high_sev", Severity: SeverityHigh, Confidence: 0.5},
	}}})
	r.Register(stubSkill{name: "b", out: SkillOutput{Findings: []Finding{
		{FindingType: "high_conf_crit_sev", Severity: SeverityCritical, Confidence: 0.6},
		{FindingType: "high_conf_high_sev", Severity: SeverityHigh, Confidence: 0.95},
	}}})

	findings := ScanPath(r, "/tmp")
	if len(findings) != 3 {
		t.Fatalf("expected 3 findings, got %d", len(findings))
	}
	if findings[0].FindingType != "high_conf_crit_sev" {
		t.Errorf("expected critical severity first, got %q", findings[0].FindingType)
	}
	if findings[1].FindingType != "high_conf_high_sev" {
		t.Errorf("expected higher-confidence high-severity finding second, got %q", findings[1].FindingType)
	}
}

func TestSkillSchema_Shape(t *testing.T) {
	props := StandardProperties("File or directory to scan")
	schema := SkillSchema("detect_example", "desc", props, []string{"path"})
	if schema["name"] != "detect_example" {
		t.Errorf("got %+v", schema)
	}
	params, ok := schema["parameters"].(map[string]any)
	if !ok {
		t.Fatalf("expected parameters to be a map, got %T", schema["parameters"])
	}
	if params["type"] != "object" {
		t.Errorf("expected object type, got %v", params["type"])
	}
}
