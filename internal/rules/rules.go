// Package rules implements the custom-rule extensibility skill: operators
// describe file-feature conditions as CEL boolean expressions, and this
// package compiles and evaluates them against every scanned file.
package rules

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/google/cel-go/cel"

	"github.com/clawscan/clawscan/internal/skills"
)

// RuleDef is one operator-authored custom detection rule, as loaded from
// configuration.
type RuleDef struct {
	Name        string  `yaml:"name" json:"name"`
	Expression  string  `yaml:"expression" json:"expression"`
	FindingType string  `yaml:"finding_type" json:"finding_type"`
	Severity    string  `yaml:"severity" json:"severity"`
	Confidence  float64 `yaml:"confidence" json:"confidence"`
}

type compiledRule struct {
	def     RuleDef
	program cel.Program
	sev     skills.Severity
}

// RuleSet holds every compiled custom rule. Immutable once built; safe for
// concurrent evaluation.
type RuleSet struct {
	env   *cel.Env
	rules []compiledRule
}

func severityFromString(s string) skills.Severity {
	switch strings.ToLower(s) {
	case "critical":
		return skills.SeverityCritical
	case "high":
		return skills.SeverityHigh
	case "medium":
		return skills.SeverityMedium
	case "low":
		return skills.SeverityLow
	default:
		return skills.SeverityInfo
	}
}

// NewRuleSet compiles every rule definition at load time. A single
// malformed rule expression fails the whole load, surfacing the error to
// the caller rather than silently dropping rules.
func NewRuleSet(defs []RuleDef) (*RuleSet, error) {
	env, err := cel.NewEnv(
		cel.Variable("size_bytes", cel.IntType),
		cel.Variable("line_count", cel.IntType),
		cel.Variable("has_null_bytes", cel.BoolType),
		cel.Variable("entropy", cel.DoubleType),
		cel.Variable("ext", cel.StringType),
		cel.Variable("content", cel.StringType),
	)
	if err != nil {
		return nil, fmt.Errorf("rules: creating CEL environment: %w", err)
	}

	rs := &RuleSet{env: env}
	for _, def := range defs {
		ast, issues := env.Compile(def.Expression)
		if issues != nil && issues.Err() != nil {
			return nil, fmt.Errorf("rules: compiling rule %q: %w", def.Name, issues.Err())
		}
		if ast.OutputType() != cel.BoolType {
			return nil, fmt.Errorf("rules: rule %q must evaluate to bool, got %s", def.Name, ast.OutputType())
		}
		prg, err := env.Program(ast)
		if err != nil {
			return nil, fmt.Errorf("rules: building program for rule %q: %w", def.Name, err)
		}
		rs.rules = append(rs.rules, compiledRule{def: def, program: prg, sev: severityFromString(def.Severity)})
	}
	return rs, nil
}

func extractFeatures(path string, content string) map[string]any {
	lineCount := 1 + strings.Count(content, "\n")
	hasNull := strings.ContainsRune(content, 0)

	var freq [256]int
	for i := 0; i < len(content); i++ {
		freq[content[i]]++
	}
	var entropy float64
	n := float64(len(content))
	if n > 0 {
		for _, c := range freq {
			if c == 0 {
				continue
			}
			p := float64(c) / n
			entropy += -p * math.Log2(p)
		}
	}

	ext := ""
	if i := strings.LastIndexByte(path, '.'); i >= 0 {
		ext = path[i+1:]
	}

	return map[string]any{
		"size_bytes":     int64(len(content)),
		"line_count":     int64(lineCount),
		"has_null_bytes": hasNull,
		"entropy":        entropy,
		"ext":            ext,
		"content":        content,
	}
}

// Evaluate runs every compiled rule against path's extracted features,
// returning one finding per rule whose expression evaluates true.
func (rs *RuleSet) Evaluate(path string) []skills.Finding {
	content, ok := skills.ReadTextFile(path)
	if !ok {
		return nil
	}
	if !utf8.Valid([]byte(content)) {
		return nil
	}

	vars := extractFeatures(path, content)

	var findings []skills.Finding
	for _, r := range rs.rules {
		out, _, err := r.program.Eval(vars)
		if err != nil {
			continue
		}
		matched, ok := out.Value().(bool)
		if !ok || !matched {
			continue
		}
		findings = append(findings, skills.Finding{
			FindingType: r.def.FindingType,
			Value:       map[string]any{"rule": r.def.Name},
			Confidence:  r.def.Confidence,
			Location:    path,
			Severity:    r.sev,
			Metadata: map[string]any{
				"pattern":     fmt.Sprintf("custom rule: %s", r.def.Name),
				"description": fmt.Sprintf("Custom rule %q matched", r.def.Name),
			},
		})
	}
	return findings
}
