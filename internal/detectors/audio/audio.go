// Package audio detects audio-based covert channels: ultrasonic Web Audio
// API usage, microphone access combined with network exfiltration
// capability, and WAV file byte-run anomalies.
package audio

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/clawscan/clawscan/internal/skills"
)

var (
	audioAPIRegex    = regexp.MustCompile(`(?i)\b(AudioContext|WebAudio|createOscillator|createAnalyser|getUserMedia|mediaDevices)\b`)
	frequencyRegex   = regexp.MustCompile(`\b(1[89]\d{3}|2[0-4]\d{3})\b`)
	micRegex         = regexp.MustCompile(`(?i)\b(microphone|audio.*input|record.*audio|MediaRecorder)\b`)
	networkKeywordRe = regexp.MustCompile(`(?i)\b(fetch|XMLHttpRequest|WebSocket|send)\b`)
)

var audioExtensions = map[string]bool{
	"wav": true, "mp3": true, "ogg": true, "flac": true, "aac": true,
}

// Detector recognizes audio-channel covert communication patterns.
type Detector struct {
	maxWalkDepth int
	threshold    float64
}

func New() *Detector { return NewWithConfig(0, 0) }

// NewWithConfig returns an audio detector honoring a configured max walk
// depth and confidence threshold; a non-positive value for either falls
// back to its default.
func NewWithConfig(maxWalkDepth int, threshold float64) *Detector {
	return &Detector{
		maxWalkDepth: skills.ResolveMaxWalkDepth(maxWalkDepth),
		threshold:    skills.ResolveThreshold(threshold),
	}
}

func (d *Detector) Name() string { return "detect_audio_channels" }

func (d *Detector) Description() string {
	return "Detects audio-based covert channels including ultrasonic communication, " +
		"microphone access patterns, and audio file anomalies."
}

func (d *Detector) ConfidenceThreshold() float64 { return d.threshold }

func (d *Detector) Categories() []string {
	return []string{"audio", "covert_channel", "exfiltration"}
}

func (d *Detector) Schema() map[string]any {
	props := skills.StandardProperties("File or directory to scan")
	props["analyze_audio_files"] = skills.BoolParam("Analyze audio file contents", true)
	return skills.SkillSchema(d.Name(), d.Description(), props, []string{"path"})
}

func detectUltrasonic(path, content string) []skills.Finding {
	audioMatches := audioAPIRegex.FindAllString(content, -1)
	if len(audioMatches) == 0 {
		return nil
	}
	freqMatches := frequencyRegex.FindAllString(content, -1)
	if len(freqMatches) == 0 {
		return nil
	}
	return []skills.Finding{{
		FindingType: "ultrasonic_frequency",
		Value: map[string]any{
			"audio_apis":  audioMatches,
			"frequencies": freqMatches,
		},
		Confidence: 0.8,
		Location:   path,
		Severity:   skills.SeverityHigh,
		Metadata: map[string]any{
			"pattern":     "Ultrasonic frequency usage",
			"description": fmt.Sprintf("Audio API with ultrasonic frequencies: %v", freqMatches),
		},
	}}
}

func detectMicAccess(path, content string) []skills.Finding {
	micMatches := micRegex.FindAllString(content, -1)
	if len(micMatches) == 0 {
		return nil
	}

	hasNetwork := networkKeywordRe.MatchString(content)
	severity := skills.SeverityMedium
	confidence := 0.6
	description := "Microphone access detected"
	if hasNetwork {
		severity = skills.SeverityCritical
		confidence = 0.85
		description = "Microphone access with network capability - potential audio exfiltration"
	}

	return []skills.Finding{{
		FindingType: "microphone_access",
		Value: map[string]any{
			"keywords":    micMatches,
			"has_network": hasNetwork,
		},
		Confidence: confidence,
		Location:   path,
		Severity:   severity,
		Metadata: map[string]any{
			"pattern":     "Microphone access",
			"description": description,
		},
	}}
}

func detectAudioManipulation(path string) []skills.Finding {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	if !audioExtensions[ext] {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}

	if ext != "wav" || len(data) <= 44 {
		return nil
	}

	dataSection := data[44:]
	limit := len(dataSection)
	if limit > 10000 {
		limit = 10000
	}

	zeroRuns := 0
	currentRun := 0
	for _, b := range dataSection[:limit] {
		if b == 0 {
			currentRun++
		} else {
			if currentRun > 100 {
				zeroRuns++
			}
			currentRun = 0
		}
	}

	if zeroRuns <= 5 {
		return nil
	}

	return []skills.Finding{{
		FindingType: "audio_anomaly",
		Value: map[string]any{
			"file_type": "WAV",
			"zero_runs": zeroRuns,
		},
		Confidence: 0.65,
		Location:   path,
		Severity:   skills.SeverityMedium,
		Metadata: map[string]any{
			"pattern":     "Audio file anomaly",
			"description": fmt.Sprintf("WAV file has %d unusual zero-byte runs", zeroRuns),
		},
	}}
}

func analyzeFile(path string) []skills.Finding {
	var findings []skills.Finding
	findings = append(findings, detectAudioManipulation(path)...)

	if content, ok := skills.ReadTextFile(path); ok {
		findings = append(findings, detectUltrasonic(path, content)...)
		findings = append(findings, detectMicAccess(path, content)...)
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
