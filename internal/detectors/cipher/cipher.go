// Package cipher detects cryptographic patterns that are update-proof:
// mathematical constant seeds, power-of-2 grids, self-referencing hashes,
// GUID modular correlation, and low-discrepancy sequence indicators. The
// detector recognizes methodology, not literal values, so it survives
// attacker rewrites of the specific constants used.
package cipher

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/width"

	"github.com/clawscan/clawscan/internal/skills"
)

type namedConstant struct {
	name  string
	value float64
}

var knownConstants = []namedConstant{
	{"phi", 1.6180339887498948482},
	{"phi_minus_1", 0.6180339887498948482},
	{"pi", 3.1415926535897932385},
	{"e", 2.7182818284590452354},
	{"sqrt2", 1.4142135623730950488},
	{"sqrt3", 1.7320508075688772935},
	{"sqrt5", 2.2360679774997896964},
	{"ln2", 0.6931471805599453094},
	{"ln10", 2.3025850929940456840},
	{"euler_gamma", 0.5772156649015328606},
}

var scales = []float64{1e3, 1e6, 1e7, 1e8, 1e9, 1e10, 1e12}

var sequenceKeywords = map[string]string{
	"golden": "weyl_golden",
	"halton": "halton",
	"sobol":  "sobol",
	"quasi":  "quasi_random",
	"weyl":   "weyl",
}

var (
	numberRegex     = regexp.MustCompile(`\b(\d{6,12})\b`)
	dimensionRegex  = regexp.MustCompile(`(\d+)\s*[xX×]\s*(\d+)(?:\s*[xX×]\s*(\d+))?`)
	md5Regex        = regexp.MustCompile(`\b([0-9a-fA-F]{32})\b`)
	sha256Regex     = regexp.MustCompile(`\b([0-9a-fA-F]{64})\b`)
	guidRegex       = regexp.MustCompile(`[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}`)
	identifierRegex = regexp.MustCompile(`\b([a-zA-Z_][a-zA-Z0-9_]{2,30})\b`)
)

var testModuli = []uint64{64, 256, 1024, 131072}

// Detector recognizes cryptographic-constant-seeding methodology.
type Detector struct {
	maxWalkDepth int
	threshold    float64
}

// New returns a ready-to-use cipher detector with default depth and
// threshold. All state is constant.
func New() *Detector { return NewWithConfig(0, 0) }

// NewWithConfig returns a cipher detector honoring a configured max walk
// depth and confidence threshold; a non-positive value for either falls
// back to its default.
func NewWithConfig(maxWalkDepth int, threshold float64) *Detector {
	return &Detector{
		maxWalkDepth: skills.ResolveMaxWalkDepth(maxWalkDepth),
		threshold:    skills.ResolveThreshold(threshold),
	}
}

func (d *Detector) Name() string { return "detect_cipher_patterns" }

func (d *Detector) Description() string {
	return "Detects cryptographic patterns including mathematical constant seeds, " +
		"power-of-2 grids, self-referencing hashes, GUID correlations, and " +
		"low-discrepancy sequence indicators. These patterns are update-proof " +
		"as they detect methodology, not specific values."
}

func (d *Detector) ConfidenceThreshold() float64 { return d.threshold }

func (d *Detector) Categories() []string { return []string{"cipher", "crypto", "pattern_detection"} }

func (d *Detector) Schema() map[string]any {
	props := skills.StandardProperties("File or directory to scan")
	return skills.SkillSchema(d.Name(), d.Description(), props, []string{"path"})
}

// checkConstant tests value against every known constant at every scale,
// returning the first match (name, scale, confidence).
func checkConstant(value uint64) (string, float64, float64, bool) {
	for _, c := range knownConstants {
		for _, scale := range scales {
			expected := uint64(c.value * scale)
			tolerance := uint64(scale / 1000.0)
			diff := absDiffU64(value, expected)
			if diff <= tolerance {
				confidence := 1.0 - (float64(diff) / (float64(tolerance) + 1.0))
				return c.name, scale, confidence, true
			}
		}
	}
	return "", 0, 0, false
}

func absDiffU64(a, b uint64) uint64 {
	if a > b {
		return a - b
	}
	return b - a
}

func isPowerOf2(n uint64) bool {
	return n > 0 && n&(n-1) == 0
}

func detectMathConstants(location, content string) []skills.Finding {
	var findings []skills.Finding
	for _, m := range numberRegex.FindAllStringSubmatch(content, -1) {
		num, err := strconv.ParseUint(m[1], 10, 64)
		if err != nil {
			continue
		}
		name, scale, confidence, ok := checkConstant(num)
		if !ok {
			continue
		}
		findings = append(findings, skills.Finding{
			FindingType: "math_constant_seed",
			Value: map[string]any{
				"number":   num,
				"constant": name,
				"scale":    scale,
			},
			Confidence: confidence,
			Location:   location,
			Severity:   skills.SeverityHigh,
			Metadata: map[string]any{
				"pattern":     "Mathematical constant used as seed",
				"description": fmt.Sprintf("%s scaled by %v", name, scale),
			},
		})
	}
	return findings
}

func detectGridPatterns(location, content string) []skills.Finding {
	var findings []skills.Finding
	for _, m := range dimensionRegex.FindAllStringSubmatch(content, -1) {
		var dims []uint64
		for _, group := range m[1:] {
			if group == "" {
				continue
			}
			v, err := strconv.ParseUint(group, 10, 64)
			if err != nil {
				continue
			}
			dims = append(dims, v)
		}
		allPow2 := len(dims) > 0
		for _, dd := range dims {
			if !isPowerOf2(dd) {
				allPow2 = false
				break
			}
		}
		if !allPow2 {
			continue
		}
		total := uint64(1)
		for _, dd := range dims {
			total *= dd
		}
		findings = append(findings, skills.Finding{
			FindingType: "power2_grid",
			Value: map[string]any{
				"dimensions":  dims,
				"total_cells": total,
			},
			Confidence: 0.9,
			Location:   location,
			Severity:   skills.SeverityMedium,
			Metadata: map[string]any{
				"pattern":     "Power-of-2 grid structure",
				"description": fmt.Sprintf("%v = %d cells", dims, total),
			},
		})
	}
	return findings
}

func detectSelfReference(location, content string) []skills.Finding {
	var findings []skills.Finding

	for _, m := range md5Regex.FindAllString(content, -1) {
		without := strings.ReplaceAll(content, m, "")
		sum := md5.Sum([]byte(without))
		computed := hex.EncodeToString(sum[:])
		if strings.EqualFold(computed, m) {
			findings = append(findings, skills.Finding{
				FindingType: "self_referencing_hash",
				Value: map[string]any{
					"hash":      m,
					"algorithm": "md5",
					"verified":  true,
				},
				Confidence: 0.99,
				Location:   location,
				Severity:   skills.SeverityCritical,
				Metadata: map[string]any{
					"pattern":     "Self-referencing MD5 hash",
					"description": "File contains hash of itself (minus the hash)",
				},
			})
		}
	}

	for _, m := range sha256Regex.FindAllString(content, -1) {
		without := strings.ReplaceAll(content, m, "")
		sum := sha256.Sum256([]byte(without))
		computed := hex.EncodeToString(sum[:])
		if strings.EqualFold(computed, m) {
			findings = append(findings, skills.Finding{
				FindingType: "self_referencing_hash",
				Value: map[string]any{
					"hash":      m,
					"algorithm": "sha256",
					"verified":  true,
				},
				Confidence: 0.99,
				Location:   location,
				Severity:   skills.SeverityCritical,
				Metadata: map[string]any{
					"pattern":     "Self-referencing SHA256 hash",
					"description": "File contains hash of itself (minus the hash)",
				},
			})
		}
	}

	return findings
}

func detectGUIDPatterns(location, content string) []skills.Finding {
	guids := guidRegex.FindAllString(content, -1)
	if len(guids) < 3 {
		return nil
	}

	var findings []skills.Finding
	for _, modulus := range testModuli {
		counts := make(map[uint64]int)
		total := 0
		for _, g := range guids {
			hexStr := strings.ReplaceAll(g, "-", "")
			v, ok := new(big.Int).SetString(hexStr, 16)
			if !ok {
				continue
			}
			residue := new(big.Int).Mod(v, big.NewInt(int64(modulus))).Uint64()
			counts[residue]++
			total++
		}
		if total == 0 {
			continue
		}

		var mostCommon uint64
		var count int
		for v, c := range counts {
			if c > count {
				mostCommon = v
				count = c
			}
		}

		ratio := float64(count) / float64(total)
		if ratio > 0.3 {
			findings = append(findings, skills.Finding{
				FindingType: "guid_modular_correlation",
				Value: map[string]any{
					"modulus":      modulus,
					"common_value": mostCommon,
					"count":        count,
					"total":        len(guids),
					"ratio":        ratio,
				},
				Confidence: ratio,
				Location:   location,
				Severity:   skills.SeverityHigh,
				Metadata: map[string]any{
					"pattern":     "GUID modular correlation",
					"description": fmt.Sprintf("%d/%d GUIDs have mod %d = %d", count, len(guids), modulus, mostCommon),
				},
			})
		}
	}
	return findings
}

func detectSequencePatterns(location, content string) []skills.Finding {
	var findings []skills.Finding
	lower := strings.ToLower(content)

	for keyword, seqType := range sequenceKeywords {
		if strings.Contains(lower, keyword) {
			findings = append(findings, skills.Finding{
				FindingType: "sequence_indicator",
				Value: map[string]any{
					"keyword":       keyword,
					"sequence_type": seqType,
				},
				Confidence: 0.7,
				Location:   location,
				Severity:   skills.SeverityMedium,
				Metadata: map[string]any{
					"pattern":     "Low-discrepancy sequence indicator",
					"description": fmt.Sprintf("Found '%s' suggesting %s sequence", keyword, seqType),
				},
			})
		}
	}

	// Fold fullwidth Unicode forms to their ASCII equivalents first, so an
	// identifier like "ｃｉｐｈｅｒ" still matches the ASCII-only regex below.
	folded := width.Narrow.String(content)
	for _, m := range identifierRegex.FindAllString(folded, -1) {
		identLower := strings.ToLower(m)
		if strings.Contains(identLower, "bacon") || strings.Contains(identLower, "cipher") {
			findings = append(findings, skills.Finding{
				FindingType: "cipher_hint_identifier",
				Value:       map[string]any{"identifier": m},
				Confidence:  0.7,
				Location:    location,
				Severity:    skills.SeverityLow,
				Metadata: map[string]any{
					"pattern":     "Cipher hint in identifier",
					"description": fmt.Sprintf("Identifier '%s' suggests cipher involvement", m),
				},
			})
		}
	}

	return findings
}

func analyzeFile(path string) []skills.Finding {
	content, ok := skills.ReadTextFile(path)
	if !ok {
		return nil
	}
	var findings []skills.Finding
	findings = append(findings, detectMathConstants(path, content)...)
	findings = append(findings, detectGridPatterns(path, content)...)
	findings = append(findings, detectSelfReference(path, content)...)
	findings = append(findings, detectGUIDPatterns(path, content)...)
	findings = append(findings, detectSequencePatterns(path, content)...)
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
