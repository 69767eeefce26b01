// Package skills defines the detection-engine's capability contract: the
// Finding/SkillOutput result model, the Skill interface every detector
// implements, and the registry that wires detectors together.
package skills

import (
	"encoding/json"
	"fmt"
)

// Severity is a total order over finding severity, low to high.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityLow
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityLow:
		return "low"
	case SeverityMedium:
		return "medium"
	case SeverityHigh:
		return "high"
	case SeverityCritical:
		return "critical"
	default:
		return "info"
	}
}

func (s Severity) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Severity) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	switch str {
	case "info":
		*s = SeverityInfo
	case "low":
		*s = SeverityLow
	case "medium":
		*s = SeverityMedium
	case "high":
		*s = SeverityHigh
	case "critical":
		*s = SeverityCritical
	default:
		return fmt.Errorf("skills: unknown severity %q", str)
	}
	return nil
}

// Finding is a single evidence record produced by a skill.
type Finding struct {
	FindingType string   `json:"finding_type"`
	Value       any      `json:"value"`
	Confidence  float64  `json:"confidence"`
	Location    string   `json:"location"`
	Severity    Severity `json:"severity"`
	Metadata    any      `json:"metadata,omitempty"`
}

// SkillOutput is the result of a single skill execution.
type SkillOutput struct {
	Findings   []Finding `json:"findings"`
	Confidence float64   `json:"confidence"`
	Metadata   any       `json:"metadata,omitempty"`
	Complete   bool      `json:"complete"`
}

// NewSkillOutput builds a SkillOutput whose aggregate confidence is the
// mean of its findings' confidences, or 1.0 when findings is empty.
func NewSkillOutput(findings []Finding) SkillOutput {
	if len(findings) == 0 {
		return SkillOutput{Findings: findings, Confidence: 1.0, Complete: true}
	}
	var sum float64
	for _, f := range findings {
		sum += f.Confidence
	}
	return SkillOutput{
		Findings:   findings,
		Confidence: sum / float64(len(findings)),
		Complete:   true,
	}
}
