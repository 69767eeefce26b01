// Package obfuscation detects code obfuscation patterns: encoded/encrypted
// string literals, control-flow flattening, and opaque predicates.
package obfuscation

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"

	"github.com/clawscan/clawscan/internal/skills"
)

var (
	hexStringRegex = regexp.MustCompile(`["'](?:\\x[0-9a-fA-F]{2}){11,}["']`)
	base64Regex    = regexp.MustCompile(`["'][A-Za-z0-9+/]{40,}={0,2}["']`)
	switchRegex    = regexp.MustCompile(`switch\s*\([^)]+\)\s*\{`)
	caseRegex      = regexp.MustCompile(`case\s+\d+:`)
)

type opaquePattern struct {
	regex *regexp.Regexp
	desc  string
}

var opaquePatterns = []opaquePattern{
	{regexp.MustCompile(`if\s*\(\s*\d+\s*[<>]=?\s*\d+\s*\)`), "numeric comparison"},
	{regexp.MustCompile(`if\s*\(\s*true\s*\)`), "literal true"},
	{regexp.MustCompile(`if\s*\(\s*false\s*\)`), "literal false"},
	{regexp.MustCompile(`if\s*\(\s*1\s*\)`), "literal 1"},
	{regexp.MustCompile(`if\s*\(\s*0\s*\)`), "literal 0"},
	{regexp.MustCompile(`while\s*\(\s*true\s*\)`), "infinite while"},
}

// Detector recognizes code-obfuscation patterns. Its only mutable-looking
// state is a depth/threshold pair threaded from configuration; the pattern
// tables themselves are precompiled regular expressions.
type Detector struct {
	maxWalkDepth int
	threshold    float64
}

func New() *Detector { return NewWithConfig(0, 0) }

// NewWithConfig returns an obfuscation detector honoring a configured max
// walk depth and confidence threshold; a non-positive value for either
// falls back to its default.
func NewWithConfig(maxWalkDepth int, threshold float64) *Detector {
	return &Detector{
		maxWalkDepth: skills.ResolveMaxWalkDepth(maxWalkDepth),
		threshold:    skills.ResolveThreshold(threshold),
	}
}

func (d *Detector) Name() string { return "detect_obfuscation" }

func (d *Detector) Description() string {
	return "Detects code obfuscation patterns including encrypted strings, " +
		"control flow flattening, and opaque predicates."
}

func (d *Detector) ConfidenceThreshold() float64 { return d.threshold }

func (d *Detector) Categories() []string {
	return []string{"obfuscation", "malware", "pattern_detection"}
}

func (d *Detector) Schema() map[string]any {
	props := skills.StandardProperties("File or directory to scan")
	return skills.SkillSchema(d.Name(), d.Description(), props, []string{"path"})
}

func calculateEntropy(data string) float64 {
	if data == "" {
		return 0.0
	}
	freq := make(map[rune]int)
	for _, c := range data {
		freq[c]++
	}
	length := float64(len(data))
	var entropy float64
	for _, count := range freq {
		p := float64(count) / length
		entropy += -p * math.Log2(p)
	}
	return entropy
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func detectEncryptedStrings(path, content string) []skills.Finding {
	var findings []skills.Finding

	for _, m := range hexStringRegex.FindAllString(content, -1) {
		findings = append(findings, skills.Finding{
			FindingType: "hex_encoded_string",
			Value: map[string]any{
				"length":  len(m),
				"preview": truncate(m, 50),
			},
			Confidence: 0.85,
			Location:   path,
			Severity:   skills.SeverityMedium,
			Metadata: map[string]any{
				"pattern":     "Hex-encoded string",
				"description": "Long hex-escaped string suggesting encoded payload",
			},
		})
	}

	for _, m := range base64Regex.FindAllString(content, -1) {
		entropy := calculateEntropy(m)
		if entropy <= 5.5 {
			continue
		}
		findings = append(findings, skills.Finding{
			FindingType: "base64_encoded_string",
			Value: map[string]any{
				"length":  len(m),
				"entropy": entropy,
				"preview": truncate(m, 50),
			},
			Confidence: 0.8,
			Location:   path,
			Severity:   skills.SeverityMedium,
			Metadata: map[string]any{
				"pattern":     "High-entropy Base64 string",
				"description": fmt.Sprintf("Entropy: %.2f suggests encrypted content", entropy),
			},
		})
	}

	return findings
}

func detectControlFlowFlattening(path, content string) []skills.Finding {
	switchCount := len(switchRegex.FindAllString(content, -1))
	caseCount := len(caseRegex.FindAllString(content, -1))

	denom := switchCount
	if denom < 1 {
		denom = 1
	}
	ratio := float64(caseCount) / float64(denom)

	if caseCount <= 20 || ratio <= 10.0 {
		return nil
	}

	return []skills.Finding{{
		FindingType: "control_flow_flattening",
		Value: map[string]any{
			"switch_count": switchCount,
			"case_count":   caseCount,
			"ratio":        ratio,
		},
		Confidence: 0.75,
		Location:   path,
		Severity:   skills.SeverityHigh,
		Metadata: map[string]any{
			"pattern":     "Control flow flattening",
			"description": fmt.Sprintf("%d numeric cases across %d switches suggests obfuscation", caseCount, switchCount),
		},
	}}
}

func detectOpaquePredicates(path, content string) []skills.Finding {
	var findings []skills.Finding
	for _, p := range opaquePatterns {
		count := len(p.regex.FindAllString(content, -1))
		if count <= 3 {
			continue
		}
		findings = append(findings, skills.Finding{
			FindingType: "opaque_predicate",
			Value: map[string]any{
				"pattern": p.regex.String(),
				"count":   count,
				"type":    p.desc,
			},
			Confidence: 0.7,
			Location:   path,
			Severity:   skills.SeverityMedium,
			Metadata: map[string]any{
				"pattern":     "Opaque predicate",
				"description": fmt.Sprintf("Found %d instances of '%s'", count, p.desc),
			},
		})
	}
	return findings
}

func analyzeFile(path string) []skills.Finding {
	content, ok := skills.ReadTextFile(path)
	if !ok {
		return nil
	}
	var findings []skills.Finding
	findings = append(findings, detectEncryptedStrings(path, content)...)
	findings = append(findings, detectControlFlowFlattening(path, content)...)
	findings = append(findings, detectOpaquePredicates(path, content)...)
	return findings
}

func (d *Detector) Execute(params json.RawMessage) (skills.SkillOutput, error) {
	scanParams, err := skills.ParamsFromJSON(params)
	if err != nil {
		return skills.SkillOutput{}, err
	}
	if !scanParams.Exists() {
		return skills.SkillOutput{}, skills.NewInvalidParams("Path does not exist: %s", scanParams.Path)
	}

	var findings []skills.Finding
	for _, f := range skills.WalkFiles(scanParams.Path, scanParams.Recursive, d.maxWalkDepth) {
		findings = append(findings, analyzeFile(f)...)
	}

	filtered := skills.FilterByThreshold(findings, d.ConfidenceThreshold())
	return skills.NewSkillOutput(filtered), nil
}
