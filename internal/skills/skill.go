package skills

import "encoding/json"

// Skill is the polymorphic detection capability every detector implements.
// Implementations must be immutable after construction — precompiled
// regexes and constant tables only — so a single instance can be shared
// and invoked concurrently by the registry.
type Skill interface {
	Name() string
	Description() string
	Schema() map[string]any
	Execute(params json.RawMessage) (SkillOutput, error)
	ConfidenceThreshold() float64
	Categories() []string
}

// DefaultConfidenceThreshold is the threshold a skill uses unless it
// overrides ConfidenceThreshold().
const DefaultConfidenceThreshold = 0.70

// DefaultMaxWalkDepth bounds a recursive scan when no configuration
// overrides it, mirroring DetectionConfig's own default so a detector
// built with New() behaves the same as one built from a zero-value config.
const DefaultMaxWalkDepth = 10

// ResolveMaxWalkDepth maps a configured max_walk_depth onto the depth a
// detector should actually pass to WalkFiles: a non-positive value (unset
// config, or New() called directly) falls back to DefaultMaxWalkDepth
// rather than scanning unbounded.
func ResolveMaxWalkDepth(maxWalkDepth int) int {
	if maxWalkDepth <= 0 {
		return DefaultMaxWalkDepth
	}
	return maxWalkDepth
}

// ResolveThreshold maps a configured per-skill confidence threshold onto
// the threshold a detector should actually filter with: a non-positive
// value falls back to DefaultConfidenceThreshold.
func ResolveThreshold(threshold float64) float64 {
	if threshold <= 0 {
		return DefaultConfidenceThreshold
	}
	return threshold
}

// FilterByThreshold drops findings whose confidence is below threshold,
// per the generic execution contract every detector follows.
func FilterByThreshold(findings []Finding, threshold float64) []Finding {
	filtered := findings[:0:0]
	for _, f := range findings {
		if f.Confidence >= threshold {
			filtered = append(filtered, f)
		}
	}
	return filtered
}
