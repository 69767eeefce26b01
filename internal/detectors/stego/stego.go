// Package stego detects steganographic patterns: data appended past a
// container format's documented end marker, whitespace-channel encoding,
// and Unicode homoglyph substitution.
package stego

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"strings"

	"golang.org/x/text/unicode/runenames"

	"github.com/clawscan/clawscan/internal/skills"
)

var pngIEND = []byte{0x00, 0x00, 0x00, 0x00, 0x49, 0x45, 0x4E, 0x44}
var pngMagic = []byte{0x89, 0x50, 0x4E, 0x47}
var jpegMagic = []byte{0xFF, 0xD8, 0xFF}
var jpegEOI = []byte{0xFF, 0xD9}

type homoglyphEntry struct {
	fake, real rune
	script     string
}

var homoglyphs = []homoglyphEntry{
	{'а', 'a', "Cyrillic"},
	{'е', 'e', "Cyrillic"},
	{'о', 'o', "Cyrillic"},
	{'р', 'p', "Cyrillic"},
	{'с', 'c', "Cyrillic"},
	{'х', 'x', "Cyrillic"},
	{'Α', 'A', "Greek"},
	{'Β', 'B', "Greek"},
	{'Ε', 'E', "Greek"},
	{'Η', 'H', "Greek"},
	{'Ι', 'I', "Greek"},
	{'Κ', 'K', "Greek"},
	{'Μ', 'M', "Greek"},
	{'Ν', 'N', "Greek"},
	{'Ο', 'O', "Greek"},
	{'Ρ', 'P', "Greek"},
	{'Τ', 'T', "Greek"},
	{'Χ', 'X', "Greek"},
	{'Ζ', 'Z', "Greek"},
}

// Detector recognizes steganographic payloads.
type Detector struct {
	maxWalkDepth int
	threshold    float64
}

func New() *Detector { return NewWithConfig(0, 0) }

// NewWithConfig returns a steganography detector honoring a configured max
// walk depth and confidence threshold; a non-positive value for either
// falls back to its default.
func NewWithConfig(maxWalkDepth int, threshold float64) *Detector {
	return &Detector{
		maxWalkDepth: skills.ResolveMaxWalkDepth(maxWalkDepth),
		threshold:    skills.ResolveThreshold(threshold),
	}
}

func (d *Detector) Name() string { return "detect_steganography" }

func (d *Detector) Description() string {
	return "Detects steganographic patterns including EOF hidden data, " +
		"whitespace encoding, and Unicode homoglyph substitution."
}

func (d *Detector) ConfidenceThreshold() float64 { return d.threshold }

func (d *Detector) Categories() []string {
	return []string{"steganography", "hidden_data", "pattern_detection"}
}

func (d *Detector) Schema() map[string]any {
	props := skills.StandardProperties("File or directory to scan")
	props["check_images"] = skills.BoolParam("Accepted but not read; this detector performs no LSB image analysis", false)
	return skills.SkillSchema(d.Name(), d.Description(), props, []string{"path"})
}

func detectEOFData(path string, data []byte) []skills.Finding {
	var findings []skills.Finding

	if bytes.HasPrefix(data, pngMagic) {
		if pos := bytes.Index(data, pngIEND); pos >= 0 {
			iendPos := pos + 12
			if iendPos < len(data) {
				extra := len(data) - iendPos
				findings = append(findings, skills.Finding{
					FindingType: "eof_hidden_data",
					Value: map[string]any{
						"file_type":   "PNG",
						"extra_bytes": extra,
						"offset":      iendPos,
					},
					Confidence: 0.9,
					Location:   path,
					Severity:   skills.SeverityHigh,
					Metadata: map[string]any{
						"pattern":     "Data after PNG IEND chunk",
						"description": fmt.Sprintf("%d bytes hidden after PNG end marker", extra),
					},
				})
			}
		}
	}

	if bytes.HasPrefix(data, jpegMagic) {
		if pos := bytes.LastIndex(data, jpegEOI); pos >= 0 {
			eoiPos := pos + 2
			if eoiPos < len(data) {
				extra := len(data) - eoiPos
				findings = append(findings, skills.Finding{
					FindingType: "eof_hidden_data",
					Value: map[string]any{
						"file_type":   "JPEG",
						"extra_bytes": extra,
						"offset":      eoiPos,
					},
					Confidence: 0.9,
					Location:   path,
					Severity:   skills.SeverityHigh,
					Metadata: map[string]any{
						"pattern":     "Data after JPEG EOI marker",
						"description": fmt.Sprintf("%d bytes hidden after JPEG end marker", extra),
					},
				})
			}
		}
	}

	return findings
}

func trailingWhitespace(line string) string {
	i := len(line)
	for i > 0 {
		r := rune(line[i-1])
		if r != ' ' && r != '\t' {
			break
		}
		i--
	}
	return line[i:]
}

func detectWhitespaceEncoding(path, content string) []skills.Finding {
	suspiciousLines := 0
	totalTrailing := 0

	for _, line := range strings.Split(content, "\n") {
		trailing := trailingWhitespace(line)
		if len(trailing) > 2 && strings.ContainsRune(trailing, '\t') && strings.ContainsRune(trailing, ' ') {
			suspiciousLines++
			totalTrailing += len(trailing)
		}
	}

	if suspiciousLines <= 5 {
		return nil
	}

	return []skills.Finding{{
		FindingType: "whitespace_encoding",
		Value: map[string]any{
			"suspicious_lines":     suspiciousLines,
			"total_trailing_chars": totalTrailing,
		},
		Confidence: math.Min(float64(suspiciousLines)/100.0, 0.95),
		Location:   path,
		Severity:   skills.SeverityMedium,
		Metadata: map[string]any{
			"pattern":     "Whitespace steganography",
			"description": fmt.Sprintf("%d lines with suspicious trailing whitespace patterns", suspiciousLines),
		},
	}}
}

func detectHomoglyphs(path, content string) []skills.Finding {
	var found []map[string]any
	for _, h := range homoglyphs {
		if strings.ContainsRune(content, h.fake) {
			found = append(found, map[string]any{
				"fake":         string(h.fake),
				"real":         string(h.real),
				"script":       h.script,
				"unicode_name": runenames.Name(h.fake),
			})
		}
	}
	if len(found) == 0 {
		return nil
	}
	return []skills.Finding{{
		FindingType: "unicode_homoglyph",
		Value:       map[string]any{"homoglyphs": found},
		Confidence:  0.85,
		Location:    path,
		Severity:    skills.SeverityHigh,
		Metadata: map[string]any{
			"pattern":     "Unicode homoglyph substitution",
			"description": fmt.Sprintf("Found %d homoglyph characters that look like ASCII", len(found)),
		},
	}}
}

func analyzeFile(path string) []skills.Finding {
	var findings []skills.Finding

	if data, err := os.ReadFile(path); err == nil {
		findings = append(findings, detectEOFData(path, data)...)
	}
	if content, ok := skills.ReadTextFile(path); ok {
		findings = append(findings, detectWhitespaceEncoding(path, content)...)
		findings = append(findings, detectHomoglyphs(path, content)...)
	}

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
