// Package network detects malicious network indicators: DGA-style domains,
// base64-encoded domains, hardcoded public IP addresses, and ports commonly
// used by remote-access malware.
package network

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/clawscan/clawscan/internal/skills"
)

var (
	ipRegex           = regexp.MustCompile(`\b(\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3})\b`)
	urlRegex          = regexp.MustCompile(`https?://([a-zA-Z0-9][-a-zA-Z0-9]*\.)+[a-zA-Z]{2,}`)
	portRegex         = regexp.MustCompile(`:(\d{2,5})\b`)
	base64DomainRegex = regexp.MustCompile(`[A-Za-z0-9+/]{20,}\.(?:com|net|org|io|xyz)`)
)

const consonantSet = "bcdfghjklmnpqrstvwxyz"

var safeIPs = map[string]bool{
	"127.0.0.1":       true,
	"0.0.0.0":         true,
	"255.255.255.255": true,
	"192.168.0.1":     true,
	"192.168.1.1":     true,
	"10.0.0.1":        true,
}

var suspiciousPorts = map[int]bool{
	4444: true, 5555: true, 6666: true, 7777: true, 8888: true, 9999: true,
	1337: true, 31337: true,
	4443: true, 8443: true,
	6667: true, 6668: true, 6669: true,
	5900: true, 5901: true,
}

// Detector recognizes network-indicator patterns. Holds only precompiled
// regexes, constant tables, and a depth/threshold pair threaded from
// configuration.
type Detector struct {
	maxWalkDepth int
	threshold    float64
}

func New() *Detector { return NewWithConfig(0, 0) }

// NewWithConfig returns a network detector honoring a configured max walk
// depth and confidence threshold; a non-positive value for either falls
// back to its default.
func NewWithConfig(maxWalkDepth int, threshold float64) *Detector {
	return &Detector{
		maxWalkDepth: skills.ResolveMaxWalkDepth(maxWalkDepth),
		threshold:    skills.ResolveThreshold(threshold),
	}
}

func (d *Detector) Name() string { return "detect_network_patterns" }

func (d *Detector) Description() string {
	return "Detects malicious network patterns including DGA domains, " +
		"hardcoded IPs, and suspicious ports commonly used by malware."
}

func (d *Detector) ConfidenceThreshold() float64 { return d.threshold }

func (d *Detector) Categories() []string { return []string{"network", "c2", "malware"} }

func (d *Detector) Schema() map[string]any {
	props := skills.StandardProperties("File or directory to scan")
	return skills.SkillSchema(d.Name(), d.Description(), props, []string{"path"})
}

func consonantRatio(domain string) float64 {
	lower := strings.ToLower(domain)
	var letters []rune
	for _, c := range lower {
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') {
			letters = append(letters, c)
		}
	}
	if len(letters) == 0 {
		return 0.0
	}
	count := 0
	for _, c := range letters {
		if strings.ContainsRune(consonantSet, c) {
			count++
		}
	}
	return float64(count) / float64(len(letters))
}

func hasDigit(s string) bool {
	for _, c := range s {
		if c >= '0' && c <= '9' {
			return true
		}
	}
	return false
}

func detectDGADomains(path, content string) []skills.Finding {
	var findings []skills.Finding

	for _, url := range urlRegex.FindAllString(content, -1) {
		afterScheme := strings.SplitN(url, "://", 2)
		if len(afterScheme) < 2 {
			continue
		}
		domain := strings.SplitN(afterScheme[1], "/", 2)[0]
		domainNoTLD := strings.SplitN(domain, ".", 2)[0]

		ratio := consonantRatio(domainNoTLD)
		length := len(domainNoTLD)

		if ratio > 0.7 && hasDigit(domainNoTLD) && length > 10 {
			findings = append(findings, skills.Finding{
				FindingType: "potential_dga_domain",
				Value: map[string]any{
					"domain":          domain,
					"consonant_ratio": ratio,
					"length":          length,
				},
				Confidence: 0.75,
				Location:   path,
				Severity:   skills.SeverityHigh,
				Metadata: map[string]any{
					"pattern":     "Domain Generation Algorithm",
					"description": fmt.Sprintf("Domain '%s' has DGA characteristics", domain),
				},
			})
		}
	}

	for _, m := range base64DomainRegex.FindAllString(content, -1) {
		findings = append(findings, skills.Finding{
			FindingType: "base64_domain",
			Value:       map[string]any{"domain": m},
			Confidence:  0.8,
			Location:    path,
			Severity:    skills.SeverityHigh,
			Metadata: map[string]any{
				"pattern":     "Base64-encoded domain",
				"description": "Domain appears to contain encoded data",
			},
		})
	}

	return findings
}

func isPrivateIP(ip string) bool {
	parts := strings.Split(ip, ".")
	if len(parts) != 4 {
		return false
	}
	octets := make([]int, 4)
	for i, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil {
			return false
		}
		octets[i] = v
	}
	if octets[0] == 10 {
		return true
	}
	if octets[0] == 172 && octets[1] >= 16 && octets[1] <= 31 {
		return true
	}
	if octets[0] == 192 && octets[1] == 168 {
		return true
	}
	return false
}

func detectHardcodedIPs(path, content string) []skills.Finding {
	foundIPs := make(map[string]bool)

	for _, m := range ipRegex.FindAllStringSubmatch(content, -1) {
		ip := m[1]
		if safeIPs[ip] || foundIPs[ip] {
			continue
		}
		if isPrivateIP(ip) {
			continue
		}
		foundIPs[ip] = true
	}

	if len(foundIPs) == 0 {
		return nil
	}

	ips := make([]string, 0, len(foundIPs))
	for ip := range foundIPs {
		ips = append(ips, ip)
	}

	return []skills.Finding{{
		FindingType: "hardcoded_public_ip",
		Value: map[string]any{
			"ips":   ips,
			"count": len(ips),
		},
		Confidence: 0.7,
		Location:   path,
		Severity:   skills.SeverityMedium,
		Metadata: map[string]any{
			"pattern":     "Hardcoded public IP addresses",
			"description": fmt.Sprintf("Found %d public IP addresses", len(ips)),
		},
	}}
}

func detectSuspiciousPorts(path, content string) []skills.Finding {
	var foundPorts []int
	seen := make(map[int]bool)

	for _, m := range portRegex.FindAllStringSubmatch(content, -1) {
		port, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		if suspiciousPorts[port] && !seen[port] {
			seen[port] = true
			foundPorts = append(foundPorts, port)
		}
	}

	if len(foundPorts) == 0 {
		return nil
	}

	return []skills.Finding{{
		FindingType: "suspicious_ports",
		Value: map[string]any{
			"ports": foundPorts,
			"count": len(foundPorts),
		},
		Confidence: 0.75,
		Location:   path,
		Severity:   skills.SeverityHigh,
		Metadata: map[string]any{
			"pattern":     "Suspicious port numbers",
			"description": fmt.Sprintf("Found ports commonly used by malware: %v", foundPorts),
		},
	}}
}

func analyzeFile(path string) []skills.Finding {
	content, ok := skills.ReadTextFile(path)
	if !ok {
		return nil
	}
	var findings []skills.Finding
	findings = append(findings, detectDGADomains(path, content)...)
	findings = append(findings, detectHardcodedIPs(path, content)...)
	findings = append(findings, detectSuspiciousPorts(path, content)...)
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
