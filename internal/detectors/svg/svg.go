// Package svg detects malicious patterns in SVG files: embedded
// JavaScript, event handler injection, external resource loading, data
// URI payloads, foreignObject exploits, CSS injection, and XXE attacks.
package svg

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/text/width"

	"github.com/clawscan/clawscan/internal/skills"
)

var (
	scriptTagRegex     = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	eventHandlerRegex  = regexp.MustCompile(`(?i)\b(on(?:click|load|error|mouseover|mouseout|mousemove|mousedown|mouseup|focus|blur|change|submit|reset|select|abort|beforeunload|unload|resize|scroll|keydown|keyup|keypress|drag|drop|copy|cut|paste|animationstart|animationend|transitionend))\s*=\s*["'][^"']*["']`)
	xlinkRegex         = regexp.MustCompile(`(?i)(?:xlink:)?href\s*=\s*["'](?:javascript:|data:|https?://|//)[^"']*["']`)
	dataURIRegex       = regexp.MustCompile(`(?i)data:\s*(?:text/html|application/javascript|text/javascript|image/svg\+xml)[^"'\s>]*`)
	foreignObjectRegex = regexp.MustCompile(`(?is)<foreignObject[^>]*>.*?</foreignObject>`)
	cssInjectionRegex  = regexp.MustCompile(`(?i)(?:@import|expression\s*\(|behavior\s*:|javascript:|\\00|\\ff)`)
	entityRegex        = regexp.MustCompile(`(?i)<!ENTITY\s+\w+\s+(?:SYSTEM|PUBLIC)`)
	useTagRegex        = regexp.MustCompile(`(?i)<use[^>]*(?:xlink:)?href\s*=\s*["'](?:https?://|//|data:)[^"']*["']`)
	iframeRegex        = regexp.MustCompile(`(?i)<iframe[^>]*>`)
	base64JSRegex      = regexp.MustCompile(`(?i)base64[^"']*(?:PHNjcmlwdD|amF2YXNjcmlwdA|b25sb2Fk|b25lcnJvcg)`)
)

// Detector recognizes malicious SVG patterns. Holds only precompiled
// regular expressions and a depth/threshold pair threaded from
// configuration.
type Detector struct {
	maxWalkDepth int
	threshold    float64
}

func New() *Detector { return NewWithConfig(0, 0) }

// NewWithConfig returns an SVG detector honoring a configured max walk
// depth and confidence threshold; a non-positive value for either falls
// back to its default.
func NewWithConfig(maxWalkDepth int, threshold float64) *Detector {
	return &Detector{
		maxWalkDepth: skills.ResolveMaxWalkDepth(maxWalkDepth),
		threshold:    skills.ResolveThreshold(threshold),
	}
}

func (d *Detector) Name() string { return "detect_svg_injection" }

func (d *Detector) Description() string {
	return "Detects malicious patterns in SVG files including embedded JavaScript, " +
		"event handlers, external resource loading, data URIs, foreignObject exploits, " +
		"CSS injection, and XXE attacks."
}

func (d *Detector) ConfidenceThreshold() float64 { return d.threshold }

func (d *Detector) Categories() []string {
	return []string{"svg", "xss", "injection", "web_security"}
}

func (d *Detector) Schema() map[string]any {
	props := skills.StandardProperties("File or directory to scan")
	return skills.SkillSchema(d.Name(), d.Description(), props, []string{"path"})
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func detectScriptInjection(path, content string) []skills.Finding {
	var findings []skills.Finding

	for _, m := range scriptTagRegex.FindAllString(content, -1) {
		findings = append(findings, skills.Finding{
			FindingType: "svg_script_tag",
			Value: map[string]any{
				"preview": truncate(m, 100),
				"length":  len(m),
			},
			Confidence: 0.99,
			Location:   path,
			Severity:   skills.SeverityCritical,
			Metadata: map[string]any{
				"pattern":     "SVG script injection",
				"description": "Embedded <script> tag in SVG - direct JavaScript execution",
			},
		})
	}

	for _, cap := range eventHandlerRegex.FindAllStringSubmatch(content, -1) {
		handler := cap[1]
		findings = append(findings, skills.Finding{
			FindingType: "svg_event_handler",
			Value: map[string]any{
				"handler":    handler,
				"full_match": cap[0],
			},
			Confidence: 0.95,
			Location:   path,
			Severity:   skills.SeverityCritical,
			Metadata: map[string]any{
				"pattern":     "SVG event handler injection",
				"description": fmt.Sprintf("%s event handler can execute JavaScript", handler),
			},
		})
	}

	return findings
}

func detectExternalResources(path, content string) []skills.Finding {
	var findings []skills.Finding

	for _, m := range xlinkRegex.FindAllString(content, -1) {
		isJavascript := strings.Contains(strings.ToLower(m), "javascript:")

		findingType := "svg_external_href"
		severity := skills.SeverityHigh
		confidence := 0.8
		pattern := "External resource reference"
		description := "External URL in SVG - potential data exfiltration or SSRF"
		if isJavascript {
			findingType = "svg_javascript_href"
			severity = skills.SeverityCritical
			confidence = 0.99
			pattern = "JavaScript in href attribute"
			description = "javascript: URI in href - direct code execution"
		}

		findings = append(findings, skills.Finding{
			FindingType: findingType,
			Value:       map[string]any{"href": m},
			Confidence:  confidence,
			Location:    path,
			Severity:    severity,
			Metadata: map[string]any{
				"pattern":     pattern,
				"description": description,
			},
		})
	}

	for _, m := range useTagRegex.FindAllString(content, -1) {
		findings = append(findings, skills.Finding{
			FindingType: "svg_external_use",
			Value:       map[string]any{"tag": m},
			Confidence:  0.85,
			Location:    path,
			Severity:    skills.SeverityHigh,
			Metadata: map[string]any{
				"pattern":     "SVG use tag with external reference",
				"description": "External SVG inclusion - can load malicious content",
			},
		})
	}

	return findings
}

func detectDataURI(path, content string) []skills.Finding {
	var findings []skills.Finding

	for _, uri := range dataURIRegex.FindAllString(content, -1) {
		lower := strings.ToLower(uri)
		isHTML := strings.Contains(lower, "text/html")
		isJS := strings.Contains(lower, "javascript")
		isSVG := strings.Contains(lower, "svg+xml")

		severity := skills.SeverityMedium
		uriType := "other"
		description := "unknown type"
		switch {
		case isJS:
			severity, uriType, description = skills.SeverityCritical, "javascript", "JavaScript"
		case isHTML:
			severity, uriType, description = skills.SeverityCritical, "html", "HTML"
		case isSVG:
			severity, uriType, description = skills.SeverityHigh, "nested_svg", "nested SVG"
		}

		findings = append(findings, skills.Finding{
			FindingType: "svg_data_uri",
			Value: map[string]any{
				"uri_preview": truncate(uri, 100),
				"type":        uriType,
			},
			Confidence: 0.9,
			Location:   path,
			Severity:   severity,
			Metadata: map[string]any{
				"pattern":     "Data URI in SVG",
				"description": fmt.Sprintf("Embedded data URI (%s) - potential payload delivery", description),
			},
		})
	}

	for _, m := range base64JSRegex.FindAllString(content, -1) {
		findings = append(findings, skills.Finding{
			FindingType: "svg_base64_js",
			Value:       map[string]any{"pattern": m},
			Confidence:  0.95,
			Location:    path,
			Severity:    skills.SeverityCritical,
			Metadata: map[string]any{
				"pattern":     "Base64 encoded JavaScript",
				"description": "Detected base64-encoded script/event handler signatures",
			},
		})
	}

	return findings
}

func detectForeignObject(path, content string) []skills.Finding {
	var findings []skills.Finding

	for _, inner := range foreignObjectRegex.FindAllString(content, -1) {
		lower := strings.ToLower(inner)
		hasScript := strings.Contains(lower, "<script")
		hasIframe := strings.Contains(lower, "<iframe")
		hasForm := strings.Contains(lower, "<form")

		severity := skills.SeverityMedium
		confidence := 0.75
		note := ""
		switch {
		case hasScript || hasIframe:
			severity = skills.SeverityCritical
			confidence = 0.99
			if hasScript {
				note = " - CONTAINS SCRIPT"
			} else {
				note = " - CONTAINS IFRAME"
			}
		case hasForm:
			severity = skills.SeverityHigh
		}

		findings = append(findings, skills.Finding{
			FindingType: "svg_foreign_object",
			Value: map[string]any{
				"length":     len(inner),
				"has_script": hasScript,
				"has_iframe": hasIframe,
				"has_form":   hasForm,
				"preview":    truncate(inner, 200),
			},
			Confidence: confidence,
			Location:   path,
			Severity:   severity,
			Metadata: map[string]any{
				"pattern":     "SVG foreignObject element",
				"description": fmt.Sprintf("foreignObject allows embedding HTML%s", note),
			},
		})
	}

	return findings
}

func detectCSSInjection(path, content string) []skills.Finding {
	var findings []skills.Finding
	for _, m := range cssInjectionRegex.FindAllString(content, -1) {
		findings = append(findings, skills.Finding{
			FindingType: "svg_css_injection",
			Value:       map[string]any{"pattern": m},
			Confidence:  0.85,
			Location:    path,
			Severity:    skills.SeverityHigh,
			Metadata: map[string]any{
				"pattern":     "CSS injection in SVG",
				"description": "Malicious CSS pattern that may execute code or exfiltrate data",
			},
		})
	}
	return findings
}

func detectXXE(path, content string) []skills.Finding {
	var findings []skills.Finding
	for _, m := range entityRegex.FindAllString(content, -1) {
		findings = append(findings, skills.Finding{
			FindingType: "svg_xxe",
			Value:       map[string]any{"entity": m},
			Confidence:  0.95,
			Location:    path,
			Severity:    skills.SeverityCritical,
			Metadata: map[string]any{
				"pattern":     "XML External Entity (XXE)",
				"description": "SYSTEM/PUBLIC entity declaration - potential file disclosure or SSRF",
			},
		})
	}
	return findings
}

func detectIframes(path, content string) []skills.Finding {
	var findings []skills.Finding
	for _, m := range iframeRegex.FindAllString(content, -1) {
		findings = append(findings, skills.Finding{
			FindingType: "svg_iframe",
			Value:       map[string]any{"tag": m},
			Confidence:  0.95,
			Location:    path,
			Severity:    skills.SeverityCritical,
			Metadata: map[string]any{
				"pattern":     "Iframe in SVG",
				"description": "Embedded iframe - can load arbitrary external content",
			},
		})
	}
	return findings
}

func isSVGFile(path, content string) bool {
	ext := strings.ToLower(strings.TrimPrefix(pathExt(path), "."))
	if ext == "svg" {
		return true
	}
	trimmed := strings.TrimLeft(content, " \t\r\n")
	if strings.HasPrefix(trimmed, "<?xml") && strings.Contains(content, "<svg") {
		return true
	}
	return strings.HasPrefix(trimmed, "<svg")
}

func pathExt(path string) string {
	for i := len(path) - 1; i >= 0 && path[i] != '/'; i-- {
		if path[i] == '.' {
			return path[i:]
		}
	}
	return ""
}

// foldEvasiveWidths normalizes fullwidth/halfwidth Unicode forms (e.g. a
// fullwidth "ｓ" standing in for "s") before pattern matching, so that
// width-based evasion of the tag and attribute regexes above doesn't slip
// through.
func foldEvasiveWidths(content string) string {
	return width.Narrow.String(content)
}

func analyzeFile(path string) []skills.Finding {
	content, ok := skills.ReadTextFile(path)
	if !ok {
		return nil
	}
	if !isSVGFile(path, content) {
		return nil
	}

	normalized := foldEvasiveWidths(content)

	var findings []skills.Finding
	findings = append(findings, detectScriptInjection(path, normalized)...)
	findings = append(findings, detectExternalResources(path, normalized)...)
	findings = append(findings, detectDataURI(path, normalized)...)
	findings = append(findings, detectForeignObject(path, normalized)...)
	findings = append(findings, detectCSSInjection(path, normalized)...)
	findings = append(findings, detectXXE(path, normalized)...)
	findings = append(findings, detectIframes(path, normalized)...)
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
