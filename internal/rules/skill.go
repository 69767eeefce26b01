package rules

import (
	"encoding/json"

	"github.com/clawscan/clawscan/internal/skills"
)

// Detector adapts a RuleSet to the Skill interface so custom rules are
// discoverable and invocable exactly like the built-in detectors. It holds
// a depth/threshold pair threaded from configuration.
type Detector struct {
	set          *RuleSet
	maxWalkDepth int
	threshold    float64
}

// NewDetector wraps a compiled RuleSet as the detect_custom_rules skill.
func NewDetector(set *RuleSet) *Detector {
	return NewDetectorWithConfig(set, 0, 0)
}

// NewDetectorWithConfig wraps a compiled RuleSet honoring a configured max
// walk depth and confidence threshold; a non-positive value for either
// falls back to its default.
func NewDetectorWithConfig(set *RuleSet, maxWalkDepth int, threshold float64) *Detector {
	return &Detector{
		set:          set,
		maxWalkDepth: skills.ResolveMaxWalkDepth(maxWalkDepth),
		threshold:    skills.ResolveThreshold(threshold),
	}
}

func (d *Detector) Name() string { return "detect_custom_rules" }

func (d *Detector) Description() string {
	return "Evaluates operator-defined CEL expressions against file content " +
		"features (size, line count, entropy, extension, null bytes)."
}

func (d *Detector) ConfidenceThreshold() float64 { return d.threshold }

func (d *Detector) Categories() []string { return []string{"custom", "extensible"} }

func (d *Detector) Schema() map[string]any {
	props := skills.StandardProperties("File or directory to scan")
	return skills.SkillSchema(d.Name(), d.Description(), props, []string{"path"})
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
		findings = append(findings, d.set.Evaluate(f)...)
	}

	filtered := skills.FilterByThreshold(findings, d.ConfidenceThreshold())
	return skills.NewSkillOutput(filtered), nil
}
