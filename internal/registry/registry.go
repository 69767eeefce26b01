// Package registry assembles the default skill registry: every built-in
// detector plus, when configured, the CEL-backed custom rule skill.
package registry

import (
	"github.com/clawscan/clawscan/internal/config"
	"github.com/clawscan/clawscan/internal/detectors/audio"
	"github.com/clawscan/clawscan/internal/detectors/cipher"
	"github.com/clawscan/clawscan/internal/detectors/filesystem"
	"github.com/clawscan/clawscan/internal/detectors/injection"
	"github.com/clawscan/clawscan/internal/detectors/malcode"
	"github.com/clawscan/clawscan/internal/detectors/network"
	"github.com/clawscan/clawscan/internal/detectors/obfuscation"
	"github.com/clawscan/clawscan/internal/detectors/stego"
	"github.com/clawscan/clawscan/internal/detectors/svg"
	"github.com/clawscan/clawscan/internal/detectors/temporal"
	"github.com/clawscan/clawscan/internal/rules"
	"github.com/clawscan/clawscan/internal/skills"
)

// CreateDefaultRegistry wires up every built-in detector, threading each
// one's max walk depth and per-skill confidence threshold from cfg.Detection
// so configured overrides actually take effect. cfg may be nil, in which
// case every detector falls back to its own default. ruleSet may be nil, in
// which case no custom-rule skill is registered.
func CreateDefaultRegistry(cfg *config.Config, ruleSet *rules.RuleSet) *skills.Registry {
	r := skills.NewRegistry()

	maxDepth := 0
	thresholds := map[string]float64(nil)
	if cfg != nil {
		maxDepth = cfg.Detection.MaxWalkDepth
		thresholds = cfg.Detection.ConfidenceThresholds
	}
	threshold := func(skillName string) float64 { return thresholds[skillName] }

	r.Register(cipher.NewWithConfig(maxDepth, threshold("detect_cipher_patterns")))
	r.Register(stego.NewWithConfig(maxDepth, threshold("detect_steganography")))
	r.Register(obfuscation.NewWithConfig(maxDepth, threshold("detect_obfuscation")))
	r.Register(network.NewWithConfig(maxDepth, threshold("detect_network_patterns")))
	r.Register(temporal.NewWithConfig(maxDepth, threshold("detect_temporal_attacks")))
	r.Register(audio.NewWithConfig(maxDepth, threshold("detect_audio_channels")))
	r.Register(injection.NewWithConfig(maxDepth, threshold("detect_injection_attacks")))
	r.Register(svg.NewWithConfig(maxDepth, threshold("detect_svg_injection")))
	r.Register(filesystem.NewWithConfig(maxDepth, threshold("detect_filesystem_threats")))
	r.Register(malcode.NewWithConfig(maxDepth, threshold("detect_malicious_patterns")))

	if ruleSet != nil {
		r.Register(rules.NewDetectorWithConfig(ruleSet, maxDepth, threshold("detect_custom_rules")))
	}

	return r
}
