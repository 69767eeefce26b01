package skills

import (
	"encoding/json"
	"sort"
	"sync"
)

// Registry maps skill name to a shared Skill instance. It is built once at
// process start and is read-only for the remainder of the process
// lifetime; the mutex below guards only the construction window (Register
// calls made while wiring up a default registry), never per-invocation
// state.
type Registry struct {
	mu     sync.RWMutex
	skills map[string]Skill
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{skills: make(map[string]Skill)}
}

// Register inserts a skill under its own Name(). A later registration of
// the same name overwrites the prior one.
func (r *Registry) Register(s Skill) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.skills[s.Name()] = s
}

// Get looks up a skill by name.
func (r *Registry) Get(name string) (Skill, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.skills[name]
	return s, ok
}

// List returns every registered skill, in no particular order.
func (r *Registry) List() []Skill {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Skill, 0, len(r.skills))
	for _, s := range r.skills {
		out = append(out, s)
	}
	return out
}

// ByCategory returns every skill tagged with the given category.
func (r *Registry) ByCategory(tag string) []Skill {
	var out []Skill
	for _, s := range r.List() {
		for _, c := range s.Categories() {
			if c == tag {
				out = append(out, s)
				break
			}
		}
	}
	return out
}

// Schemas returns every registered skill's schema document.
func (r *Registry) Schemas() []map[string]any {
	out := make([]map[string]any, 0)
	for _, s := range r.List() {
		out = append(out, s.Schema())
	}
	return out
}

// Invoke dispatches params to the named skill.
func (r *Registry) Invoke(name string, params json.RawMessage) (SkillOutput, error) {
	s, ok := r.Get(name)
	if !ok {
		return SkillOutput{}, NewInvalidParams("Unknown skill: %s", name)
	}
	return s.Execute(params)
}

// SkillResult pairs a skill name with its execution result, used by
// ScanAll.
type SkillResult struct {
	Name   string
	Output SkillOutput
	Err    error
}

// ScanAll constructs {"path": path} and invokes every registered skill,
// returning one (name, result) pair per skill. Per-skill errors are
// reported in the pair, not propagated — ScanAll itself never fails.
func (r *Registry) ScanAll(path string) []SkillResult {
	params, _ := json.Marshal(ScanParams{Path: path})
	skillList := r.List()
	results := make([]SkillResult, 0, len(skillList))
	for _, s := range skillList {
		out, err := s.Execute(params)
		results = append(results, SkillResult{Name: s.Name(), Output: out, Err: err})
	}
	return results
}

// ExportSchemas returns the tool-calling-interop schema export document.
func (r *Registry) ExportSchemas() map[string]any {
	return map[string]any{
		"skills":  r.Schemas(),
		"version": "1.0",
		"format":  "openai_function_calling",
	}
}

// ScanPath invokes every registered skill against path, ignores per-skill
// errors, concatenates every finding, and sorts the result by
// (severity desc, confidence desc).
func ScanPath(r *Registry, path string) []Finding {
	var findings []Finding
	for _, res := range r.ScanAll(path) {
		if res.Err != nil {
			continue
		}
		findings = append(findings, res.Output.Findings...)
	}
	sort.SliceStable(findings, func(i, j int) bool {
		if findings[i].Severity != findings[j].Severity {
			return findings[i].Severity > findings[j].Severity
		}
		return findings[i].Confidence > findings[j].Confidence
	})
	return findings
}
