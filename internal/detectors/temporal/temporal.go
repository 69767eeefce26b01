// Package temporal detects time-based attack patterns: hardcoded
// date-comparison time bombs, long sleep/timer delays used for sandbox
// evasion, and scheduling mechanisms.
package temporal

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"

	"github.com/clawscan/clawscan/internal/skills"
)

var (
	dateRegex     = regexp.MustCompile(`\b(20\d{2})[-/](0?[1-9]|1[0-2])[-/](0?[1-9]|[12]\d|3[01])\b`)
	sleepRegex    = regexp.MustCompile(`(?i)(?:sleep|delay|wait|timeout)\s*\(\s*(\d+)\s*\)`)
	timerRegex    = regexp.MustCompile(`(?:setTimeout|setInterval)\s*\([^,]+,\s*(\d+)\s*\)`)
	scheduleRegex = regexp.MustCompile(`(?i)\b(cron|schedule|at\s+\d|timer|periodic)\b`)
	cronRegex     = regexp.MustCompile(`[\d*]+\s+[\d*]+\s+[\d*]+\s+[\d*]+\s+[\d*]+`)
)

var comparisonPatterns = []*regexp.Regexp{
	regexp.MustCompile(`if\s*\([^)]*Date`),
	regexp.MustCompile(`if\s*\([^)]*getTime\s*\(\s*\)`),
	regexp.MustCompile(`if\s*\([^)]*timestamp`),
	regexp.MustCompile(`new\s+Date\s*\(\s*['"]`),
}

// Detector recognizes time-based evasion and triggering patterns.
type Detector struct {
	maxWalkDepth int
	threshold    float64
}

func New() *Detector { return NewWithConfig(0, 0) }

// NewWithConfig returns a temporal detector honoring a configured max walk
// depth and confidence threshold; a non-positive value for either falls
// back to its default.
func NewWithConfig(maxWalkDepth int, threshold float64) *Detector {
	return &Detector{
		maxWalkDepth: skills.ResolveMaxWalkDepth(maxWalkDepth),
		threshold:    skills.ResolveThreshold(threshold),
	}
}

func (d *Detector) Name() string { return "detect_temporal_attacks" }

func (d *Detector) Description() string {
	return "Detects time-based attack patterns including time bombs, " +
		"delayed execution for sandbox evasion, and scheduling mechanisms."
}

func (d *Detector) ConfidenceThreshold() float64 { return d.threshold }

func (d *Detector) Categories() []string { return []string{"temporal", "evasion", "malware"} }

func (d *Detector) Schema() map[string]any {
	props := skills.StandardProperties("File or directory to scan")
	return skills.SkillSchema(d.Name(), d.Description(), props, []string{"path"})
}

func detectTimeBombs(path, content string) []skills.Finding {
	var findings []skills.Finding

	for _, pattern := range comparisonPatterns {
		count := len(pattern.FindAllString(content, -1))
		if count == 0 {
			continue
		}
		dates := dateRegex.FindAllString(content, -1)
		if len(dates) == 0 {
			continue
		}
		findings = append(findings, skills.Finding{
			FindingType: "potential_time_bomb",
			Value: map[string]any{
				"pattern":          pattern.String(),
				"dates_found":      dates,
				"comparison_count": count,
			},
			Confidence: 0.7,
			Location:   path,
			Severity:   skills.SeverityCritical,
			Metadata: map[string]any{
				"pattern":     "Date-based trigger",
				"description": fmt.Sprintf("Found %d date comparisons with dates: %v", count, dates),
			},
		})
	}

	return findings
}

func detectDelayedExecution(path, content string) []skills.Finding {
	var findings []skills.Finding

	for _, m := range sleepRegex.FindAllStringSubmatch(content, -1) {
		delay, err := strconv.ParseUint(m[1], 10, 64)
		if err != nil || delay <= 60000 {
			continue
		}
		findings = append(findings, skills.Finding{
			FindingType: "long_sleep_delay",
			Value: map[string]any{
				"delay_ms":      delay,
				"delay_seconds": delay / 1000,
			},
			Confidence: 0.75,
			Location:   path,
			Severity:   skills.SeverityHigh,
			Metadata: map[string]any{
				"pattern":     "Long sleep delay",
				"description": fmt.Sprintf("Sleep for %d seconds - potential sandbox evasion", delay/1000),
			},
		})
	}

	for _, m := range timerRegex.FindAllStringSubmatch(content, -1) {
		delay, err := strconv.ParseUint(m[1], 10, 64)
		if err != nil || delay <= 300000 {
			continue
		}
		findings = append(findings, skills.Finding{
			FindingType: "long_timer_delay",
			Value: map[string]any{
				"delay_ms":      delay,
				"delay_minutes": delay / 60000,
			},
			Confidence: 0.7,
			Location:   path,
			Severity:   skills.SeverityMedium,
			Metadata: map[string]any{
				"pattern":     "Long timer delay",
				"description": fmt.Sprintf("Timer with %d minute delay", delay/60000),
			},
		})
	}

	return findings
}

func detectScheduling(path, content string) []skills.Finding {
	matches := scheduleRegex.FindAllString(content, -1)
	if len(matches) == 0 {
		return nil
	}
	cronCount := len(cronRegex.FindAllString(content, -1))

	return []skills.Finding{{
		FindingType: "scheduling_detected",
		Value: map[string]any{
			"keywords":         matches,
			"cron_expressions": cronCount,
		},
		Confidence: 0.6,
		Location:   path,
		Severity:   skills.SeverityLow,
		Metadata: map[string]any{
			"pattern":     "Scheduling mechanism",
			"description": fmt.Sprintf("Found scheduling keywords: %v", matches),
		},
	}}
}

func analyzeFile(path string) []skills.Finding {
	content, ok := skills.ReadTextFile(path)
	if !ok {
		return nil
	}
	var findings []skills.Finding
	findings = append(findings, detectTimeBombs(path, content)...)
	findings = append(findings, detectDelayedExecution(path, content)...)
	findings = append(findings, detectScheduling(path, content)...)
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
