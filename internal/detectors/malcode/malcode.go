// Package malcode detects two teacher-domain concerns folded into one
// additive skill: prompt-injection text aimed at an LLM consuming skill
// documentation, and suspicious code substrings characteristic of the
// infostealer-style malicious skill packages ClawHub governance used to
// vet before allowing an install. Both checks are pure pattern matching
// over precompiled/constant tables, so a single Detector instance is safe
// to share across invocations.
package malcode

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/clawscan/clawscan/internal/skills"
)

type injectionPattern struct {
	name     string
	regex    *regexp.Regexp
	severity skills.Severity
}

var injectionPatterns = compileInjectionPatterns([]struct {
	name     string
	pattern  string
	severity skills.Severity
}{
	{"ignore_instructions", `ignore\s+(all\s+)?(previous|prior|above)\s+instructions`, skills.SeverityCritical},
	{"system_override", `\bsystem\s*:\s*you\s+are\b`, skills.SeverityCritical},
	{"new_instructions", `\bnew\s+instructions?\s*:`, skills.SeverityHigh},
	{"you_are_now", `\byou\s+are\s+now\b`, skills.SeverityHigh},
	{"disregard", `\bdisregard\s+(all\s+)?(previous|prior|safety)`, skills.SeverityCritical},
	{"forget_rules", `\bforget\s+(all\s+)?(your\s+)?rules\b`, skills.SeverityHigh},
	{"hidden_text", `\x{200B}|\x{200C}|\x{200D}|\x{FEFF}`, skills.SeverityMedium},
	{"base64_instruction", `\bbase64\s*:\s*[A-Za-z0-9+/=]{20,}`, skills.SeverityMedium},
	{"admin_claim", `\b(admin|administrator|developer|system\s+admin)\s+(says?|requests?|commands?|instructs?)`, skills.SeverityHigh},
	{"authority_claim", `\b(anthropic|openai|google)\s+(says?|instructs?|requires?)`, skills.SeverityHigh},
	{"action_directive", `\b(execute|run|perform|do)\s+the\s+following\s*(command|action|task)s?`, skills.SeverityMedium},
	{"delete_all", `\bdelete\s+(all|every)\b`, skills.SeverityHigh},
	{"send_to", `\bsend\s+(this|it|data|information)\s+to\b`, skills.SeverityMedium},
	{"exfil_pattern", `\b(send|post|upload|transmit|forward)\s+.{0,30}(data|info|credentials?|keys?|tokens?|passwords?)\s+to\b`, skills.SeverityCritical},
})

func compileInjectionPatterns(raw []struct {
	name     string
	pattern  string
	severity skills.Severity
}) []injectionPattern {
	out := make([]injectionPattern, 0, len(raw))
	for _, r := range raw {
		out = append(out, injectionPattern{name: r.name, regex: regexp.MustCompile(`(?i)` + r.pattern), severity: r.severity})
	}
	return out
}

// criticalSubstrings and highSubstrings classify suspicious code
// substrings by how strongly they indicate an infostealer-style payload
// rather than legitimate functionality; mediumSubstrings is everything
// else worth flagging at lower confidence.
var (
	criticalSubstrings = []string{"eval(", "child_process", "process.env"}
	highSubstrings     = []string{"fs.readfile", ".ssh", "private_key", "wallet", "crypto"}
	mediumSubstrings   = []string{
		"secret_key", "api_key", "password", "credentials", "base64.decode",
		"exec(", "spawn(", "xmlhttprequest", "fetch(", "curl ", "wget ",
	}
)

// Detector runs both checks. It holds only precompiled regexes, constant
// substring tables, and a depth/threshold pair threaded from configuration.
type Detector struct {
	maxWalkDepth int
	threshold    float64
}

func New() *Detector { return NewWithConfig(0, 0) }

// NewWithConfig returns a malcode detector honoring a configured max walk
// depth and confidence threshold; a non-positive value for either falls
// back to its default.
func NewWithConfig(maxWalkDepth int, threshold float64) *Detector {
	return &Detector{
		maxWalkDepth: skills.ResolveMaxWalkDepth(maxWalkDepth),
		threshold:    skills.ResolveThreshold(threshold),
	}
}

func (d *Detector) Name() string { return "detect_malicious_patterns" }

func (d *Detector) Description() string {
	return "Detects prompt-injection text aimed at an LLM reader and suspicious " +
		"code substrings (credential access, remote exfiltration, eval-style " +
		"execution) characteristic of malicious skill packages."
}

func (d *Detector) ConfidenceThreshold() float64 { return d.threshold }

func (d *Detector) Categories() []string {
	return []string{"malware", "prompt_injection", "static_analysis"}
}

func (d *Detector) Schema() map[string]any {
	props := skills.StandardProperties("File or directory to scan")
	return skills.SkillSchema(d.Name(), d.Description(), props, []string{"path"})
}

func detectPromptInjection(path, content string) []skills.Finding {
	var matched []string
	severity := skills.SeverityInfo
	for _, p := range injectionPatterns {
		if p.regex.MatchString(content) {
			matched = append(matched, p.name)
			if p.severity > severity {
				severity = p.severity
			}
		}
	}
	if len(matched) == 0 {
		return nil
	}

	confidence := 0.6 + 0.1*float64(len(matched))
	if confidence > 0.97 {
		confidence = 0.97
	}

	return []skills.Finding{{
		FindingType: "prompt_injection_text",
		Value:       map[string]any{"flags": matched},
		Confidence:  confidence,
		Location:    path,
		Severity:    severity,
		Metadata: map[string]any{
			"pattern":     "Prompt injection text",
			"description": fmt.Sprintf("Instruction-override language aimed at an LLM reader: %s", strings.Join(matched, ", ")),
		},
	}}
}

func classifySubstringRisk(flags []string) (skills.Severity, float64) {
	criticalSet := toSet(criticalSubstrings)
	highSet := toSet(highSubstrings)

	for _, f := range flags {
		if criticalSet[f] {
			return skills.SeverityCritical, 0.9
		}
	}
	for _, f := range flags {
		if highSet[f] {
			return skills.SeverityHigh, 0.8
		}
	}
	return skills.SeverityMedium, 0.65
}

func toSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, i := range items {
		set[i] = true
	}
	return set
}

func detectSuspiciousCode(path, content string) []skills.Finding {
	lower := strings.ToLower(content)
	var flags []string
	for _, p := range criticalSubstrings {
		if strings.Contains(lower, p) {
			flags = append(flags, p)
		}
	}
	for _, p := range highSubstrings {
		if strings.Contains(lower, p) {
			flags = append(flags, p)
		}
	}
	for _, p := range mediumSubstrings {
		if strings.Contains(lower, p) {
			flags = append(flags, p)
		}
	}
	if len(flags) == 0 {
		return nil
	}

	severity, confidence := classifySubstringRisk(flags)
	return []skills.Finding{{
		FindingType: "suspicious_code_pattern",
		Value:       map[string]any{"flags": flags},
		Confidence:  confidence,
		Location:    path,
		Severity:    severity,
		Metadata: map[string]any{
			"pattern":     "Suspicious code substrings",
			"description": fmt.Sprintf("Matched substrings: %s", strings.Join(flags, ", ")),
		},
	}}
}

func analyzeFile(path string) []skills.Finding {
	content, ok := skills.ReadTextFile(path)
	if !ok {
		return nil
	}
	var findings []skills.Finding
	findings = append(findings, detectPromptInjection(path, content)...)
	findings = append(findings, detectSuspiciousCode(path, content)...)
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
