// Package injection detects input-injection attack patterns: keyboard
// simulation, clipboard hijacking, HID/USB device abuse, and automation
// framework usage.
package injection

import (
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/clawscan/clawscan/internal/skills"
)

var (
	keyboardRegex   = regexp.MustCompile(`(?i)\b(keybd_event|SendInput|SendKeys|robot\.keyPress|dispatchKeyEvent|KeyboardEvent)\b`)
	clipboardRegex  = regexp.MustCompile(`(?i)\b(clipboard|navigator\.clipboard|execCommand.*copy|execCommand.*paste|SetClipboardData|GetClipboardData)\b`)
	hidRegex        = regexp.MustCompile(`(?i)\b(HID|USB|navigator\.hid|WebUSB|libusb|hidapi)\b`)
	automationRegex = regexp.MustCompile(`(?i)\b(pyautogui|pynput|keyboard\.press|mouse\.click|AutoHotkey|AutoIt)\b`)
	loopRegex       = regexp.MustCompile(`(?i)(for|while|loop)`)
	delayRegex      = regexp.MustCompile(`(?i)(sleep|delay|wait|timeout)`)
	intervalRegex   = regexp.MustCompile(`(?i)(setInterval|polling|monitor|watch)`)
	cryptoRegex     = regexp.MustCompile(`(?i)(bitcoin|btc|eth|wallet|0x[a-fA-F0-9]{40})`)
	vendorIDRegex   = regexp.MustCompile(`(?i)(vendor.*id|vid|0x[0-9a-f]{4})`)
)

// Detector recognizes input-injection attack patterns. Holds only
// precompiled regular expressions and a depth/threshold pair threaded from
// configuration.
type Detector struct {
	maxWalkDepth int
	threshold    float64
}

func New() *Detector { return NewWithConfig(0, 0) }

// NewWithConfig returns an injection detector honoring a configured max
// walk depth and confidence threshold; a non-positive value for either
// falls back to its default.
func NewWithConfig(maxWalkDepth int, threshold float64) *Detector {
	return &Detector{
		maxWalkDepth: skills.ResolveMaxWalkDepth(maxWalkDepth),
		threshold:    skills.ResolveThreshold(threshold),
	}
}

func (d *Detector) Name() string { return "detect_injection_attacks" }

func (d *Detector) Description() string {
	return "Detects input injection patterns including keyboard simulation, " +
		"clipboard hijacking, HID attacks, and automation frameworks."
}

func (d *Detector) ConfidenceThreshold() float64 { return d.threshold }

func (d *Detector) Categories() []string {
	return []string{"injection", "hid", "clipboard", "malware"}
}

func (d *Detector) Schema() map[string]any {
	props := skills.StandardProperties("File or directory to scan")
	return skills.SkillSchema(d.Name(), d.Description(), props, []string{"path"})
}

func detectKeyboardInjection(path, content string) []skills.Finding {
	matches := keyboardRegex.FindAllString(content, -1)
	if len(matches) == 0 {
		return nil
	}

	hasLoop := loopRegex.MatchString(content)
	hasDelay := delayRegex.MatchString(content)

	severity := skills.SeverityMedium
	confidence := 0.75
	if hasLoop && hasDelay {
		severity = skills.SeverityCritical
		confidence = 0.9
	} else if hasLoop {
		severity = skills.SeverityHigh
	}

	loopNote := ""
	if hasLoop {
		loopNote = " (with loop - automated injection)"
	}

	return []skills.Finding{{
		FindingType: "keyboard_injection",
		Value: map[string]any{
			"apis":      matches,
			"has_loop":  hasLoop,
			"has_delay": hasDelay,
		},
		Confidence: confidence,
		Location:   path,
		Severity:   severity,
		Metadata: map[string]any{
			"pattern":     "Keyboard injection",
			"description": fmt.Sprintf("Keyboard simulation APIs: %v%s", matches, loopNote),
		},
	}}
}

func detectClipboardHijacking(path, content string) []skills.Finding {
	matches := clipboardRegex.FindAllString(content, -1)
	if len(matches) == 0 {
		return nil
	}

	hasInterval := intervalRegex.MatchString(content)
	hasCrypto := cryptoRegex.MatchString(content)

	var severity skills.Severity
	var confidence float64
	var pattern string
	switch {
	case hasCrypto:
		severity, confidence, pattern = skills.SeverityCritical, 0.95, "Crypto clipboard hijacker"
	case hasInterval:
		severity, confidence, pattern = skills.SeverityHigh, 0.8, "Clipboard monitoring"
	default:
		severity, confidence, pattern = skills.SeverityMedium, 0.65, "Clipboard access"
	}

	return []skills.Finding{{
		FindingType: "clipboard_access",
		Value: map[string]any{
			"apis":                matches,
			"has_monitoring":      hasInterval,
			"has_crypto_keywords": hasCrypto,
		},
		Confidence: confidence,
		Location:   path,
		Severity:   severity,
		Metadata: map[string]any{
			"pattern":     pattern,
			"description": fmt.Sprintf("Clipboard APIs: %v", matches),
		},
	}}
}

func detectHIDAttacks(path, content string) []skills.Finding {
	matches := hidRegex.FindAllString(content, -1)
	if len(matches) == 0 {
		return nil
	}

	hasKeyboard := keyboardRegex.MatchString(content)
	hasVendorID := vendorIDRegex.MatchString(content)

	severity := skills.SeverityHigh
	confidence := 0.7
	pattern := "HID device access"
	if hasKeyboard {
		severity = skills.SeverityCritical
		confidence = 0.85
		pattern = "HID keyboard emulation (BadUSB-style)"
	}

	return []skills.Finding{{
		FindingType: "hid_device_access",
		Value: map[string]any{
			"apis":                   matches,
			"has_keyboard_emulation": hasKeyboard,
			"has_vendor_id":          hasVendorID,
		},
		Confidence: confidence,
		Location:   path,
		Severity:   severity,
		Metadata: map[string]any{
			"pattern":     pattern,
			"description": fmt.Sprintf("HID APIs: %v", matches),
		},
	}}
}

func detectAutomation(path, content string) []skills.Finding {
	matches := automationRegex.FindAllString(content, -1)
	if len(matches) == 0 {
		return nil
	}
	return []skills.Finding{{
		FindingType: "automation_framework",
		Value:       map[string]any{"frameworks": matches},
		Confidence:  0.7,
		Location:    path,
		Severity:    skills.SeverityMedium,
		Metadata: map[string]any{
			"pattern":     "Automation framework",
			"description": fmt.Sprintf("Found automation tools: %v", matches),
		},
	}}
}

func analyzeFile(path string) []skills.Finding {
	content, ok := skills.ReadTextFile(path)
	if !ok {
		return nil
	}
	var findings []skills.Finding
	findings = append(findings, detectKeyboardInjection(path, content)...)
	findings = append(findings, detectClipboardHijacking(path, content)...)
	findings = append(findings, detectHIDAttacks(path, content)...)
	findings = append(findings, detectAutomation(path, content)...)
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
