// Package filesystem detects filesystem-based attack patterns: recursive
// or circular symlinks, hidden sensitive dotfiles, exposed .git
// directories, screenshot collection (a spyware indicator), sensitive
// file exposure, and path traversal in filenames.
package filesystem

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/clawscan/clawscan/internal/skills"
)

var screenshotRegex = regexp.MustCompile(`(?i)(screenshot|screen.?shot|screen.?cap|capture|scrn|desktop.?\d|display.?\d)\.(png|jpg|jpeg|bmp|gif|webp)$`)

var sensitiveFiles = []string{
	".env",
	".env.local",
	".env.production",
	"credentials.json",
	"secrets.yaml",
	"secrets.yml",
	".aws/credentials",
	".ssh/id_rsa",
	".ssh/id_ed25519",
	".npmrc",
	".pypirc",
	"wp-config.php",
	"config.php",
	".htpasswd",
	"shadow",
	"passwd",
}

var gitSensitive = []string{"config", "COMMIT_EDITMSG", "HEAD", "index", "objects", "refs"}

var suspiciousDirs = []string{"temp", "tmp", ".cache", "hidden", "data", "uploads"}

// Detector recognizes filesystem-level security threats. Holds only
// precompiled regular expressions, constant tables, and a depth/threshold
// pair threaded from configuration.
type Detector struct {
	maxWalkDepth int
	threshold    float64
}

func New() *Detector { return NewWithConfig(0, 0) }

// NewWithConfig returns a filesystem detector honoring a configured max
// walk depth and confidence threshold; a non-positive value for either
// falls back to its default.
func NewWithConfig(maxWalkDepth int, threshold float64) *Detector {
	return &Detector{
		maxWalkDepth: skills.ResolveMaxWalkDepth(maxWalkDepth),
		threshold:    skills.ResolveThreshold(threshold),
	}
}

func (d *Detector) Name() string { return "detect_filesystem_threats" }

func (d *Detector) Description() string {
	return "Detects filesystem-based security threats including recursive symlinks, " +
		"hidden sensitive files, exposed .git directories, screenshot collection " +
		"(spyware), sensitive file exposure, and path traversal patterns."
}

func (d *Detector) ConfidenceThreshold() float64 { return d.threshold }

func (d *Detector) Categories() []string {
	return []string{"filesystem", "symlink", "git", "spyware", "exposure"}
}

func (d *Detector) Schema() map[string]any {
	props := skills.StandardProperties("Directory to scan")
	props["follow_symlinks"] = skills.BoolParam("Follow symlinks during scan", false)
	props["max_depth"] = map[string]any{
		"type":        "integer",
		"description": "Maximum directory depth to scan",
		"default":     10,
	}
	return skills.SkillSchema(d.Name(), d.Description(), props, []string{"path"})
}

// walkEntries walks root to maxDepth levels deep (root itself is depth 0),
// never following symlinks, invoking visit for every entry encountered
// including root.
func walkEntries(root string, maxDepth int, visit func(path string, d fs.DirEntry)) {
	var walk func(dir string, depth int)
	walk = func(dir string, depth int) {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return
		}
		for _, e := range entries {
			p := filepath.Join(dir, e.Name())
			visit(p, e)
			if e.IsDir() && e.Type()&os.ModeSymlink == 0 && depth+1 <= maxDepth {
				walk(p, depth+1)
			}
		}
	}
	if info, err := os.Lstat(root); err == nil {
		// emit root itself the way WalkDir does
		rootEntry := fs.FileInfoToDirEntry(info)
		visit(root, rootEntry)
		if info.IsDir() {
			walk(root, 1)
		}
	}
}

func detectSymlinkAttacks(path string) []skills.Finding {
	return detectSymlinkAttacksDepth(path, 10)
}

func detectSymlinkAttacksDepth(path string, maxDepth int) []skills.Finding {
	var findings []skills.Finding
	visited := make(map[string]bool)

	baseCanonical, baseErr := filepath.EvalSymlinks(path)

	walkEntries(path, maxDepth, func(entryPath string, d fs.DirEntry) {
		info, err := os.Lstat(entryPath)
		if err != nil || info.Mode()&os.ModeSymlink == 0 {
			return
		}

		target, err := os.Readlink(entryPath)
		if err != nil {
			return
		}

		absoluteTarget := target
		if !filepath.IsAbs(target) {
			absoluteTarget = filepath.Join(filepath.Dir(entryPath), target)
		}

		if absoluteTarget == entryPath {
			findings = append(findings, skills.Finding{
				FindingType: "symlink_self_reference",
				Value: map[string]any{
					"path":   entryPath,
					"target": target,
				},
				Confidence: 0.99,
				Location:   entryPath,
				Severity:   skills.SeverityHigh,
				Metadata: map[string]any{
					"pattern":     "Self-referencing symlink",
					"description": "Symlink points to itself - causes infinite loops",
				},
			})
		}

		canonical, canonErr := filepath.EvalSymlinks(absoluteTarget)
		if canonErr == nil {
			if visited[canonical] {
				findings = append(findings, skills.Finding{
					FindingType: "symlink_circular",
					Value: map[string]any{
						"path":        entryPath,
						"target":      target,
						"resolves_to": canonical,
					},
					Confidence: 0.95,
					Location:   entryPath,
					Severity:   skills.SeverityHigh,
					Metadata: map[string]any{
						"pattern":     "Circular symlink chain",
						"description": "Symlink creates a loop in directory traversal",
					},
				})
			}

			if baseErr == nil {
				rel, relErr := filepath.Rel(baseCanonical, canonical)
				outsideBase := relErr != nil || strings.HasPrefix(rel, "..")
				if outsideBase {
					isSensitive := strings.HasPrefix(canonical, "/etc") ||
						strings.HasPrefix(canonical, "/root") ||
						strings.HasPrefix(canonical, "/home") ||
						strings.Contains(canonical, "/.ssh") ||
						strings.Contains(canonical, "/.aws")

					if isSensitive {
						findings = append(findings, skills.Finding{
							FindingType: "symlink_escape",
							Value: map[string]any{
								"path":   entryPath,
								"target": canonical,
							},
							Confidence: 0.9,
							Location:   entryPath,
							Severity:   skills.SeverityCritical,
							Metadata: map[string]any{
								"pattern":     "Symlink directory escape",
								"description": "Symlink points to sensitive location outside scanned directory",
							},
						})
					}
				}
			}
		} else {
			findings = append(findings, skills.Finding{
				FindingType: "symlink_broken",
				Value:       map[string]any{"path": entryPath},
				Confidence:  0.7,
				Location:    entryPath,
				Severity:    skills.SeverityLow,
				Metadata: map[string]any{
					"pattern":     "Broken symlink",
					"description": "Symlink target does not exist",
				},
			})
		}

		if canonErr == nil {
			visited[canonical] = true
		} else if canonical, err := filepath.EvalSymlinks(entryPath); err == nil {
			visited[canonical] = true
		}
	})

	return findings
}

func detectHiddenRoot(path string) []skills.Finding {
	var findings []skills.Finding

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil
	}

	for _, e := range entries {
		name := e.Name()
		if !strings.HasPrefix(name, ".") || name == "." || name == ".." {
			continue
		}

		suspicious := name == ".bashrc" ||
			name == ".profile" ||
			name == ".bash_profile" ||
			name == ".zshrc" ||
			name == ".vimrc" ||
			strings.Contains(name, "rc") ||
			strings.Contains(name, "history") ||
			strings.Contains(name, "secret") ||
			strings.Contains(name, "credential") ||
			strings.Contains(name, "token") ||
			strings.Contains(name, "key")

		if !suspicious {
			continue
		}

		entryPath := filepath.Join(path, name)
		findings = append(findings, skills.Finding{
			FindingType: "hidden_sensitive_file",
			Value: map[string]any{
				"name": name,
				"path": entryPath,
			},
			Confidence: 0.8,
			Location:   entryPath,
			Severity:   skills.SeverityMedium,
			Metadata: map[string]any{
				"pattern":     "Hidden sensitive file",
				"description": fmt.Sprintf("Hidden file '%s' may contain sensitive data", name),
			},
		})
	}

	return findings
}

func detectGitExposure(path string) []skills.Finding {
	var findings []skills.Finding

	walkEntries(path, 5, func(entryPath string, d fs.DirEntry) {
		if filepath.Base(entryPath) != ".git" || !d.IsDir() {
			return
		}

		var exposedFiles []string
		for _, sensitive := range gitSensitive {
			if _, err := os.Stat(filepath.Join(entryPath, sensitive)); err == nil {
				exposedFiles = append(exposedFiles, sensitive)
			}
		}

		hasCredentials := false
		if content, err := os.ReadFile(filepath.Join(entryPath, "config")); err == nil {
			s := string(content)
			hasCredentials = strings.Contains(s, "password") || strings.Contains(s, "token") || strings.Contains(s, "credential")
		}

		severity := skills.SeverityHigh
		description := "Git directory exposed - source code disclosure risk"
		if hasCredentials {
			severity = skills.SeverityCritical
			description = "Git directory with credentials exposed - source code and secrets at risk"
		}

		findings = append(findings, skills.Finding{
			FindingType: "git_directory_exposed",
			Value: map[string]any{
				"path":            entryPath,
				"exposed_files":   exposedFiles,
				"has_credentials": hasCredentials,
			},
			Confidence: 0.95,
			Location:   entryPath,
			Severity:   severity,
			Metadata: map[string]any{
				"pattern":     "Exposed .git directory",
				"description": description,
			},
		})
	})

	return findings
}

func detectScreenshotCollection(path string) []skills.Finding {
	return detectScreenshotCollectionDepth(path, 10)
}

func detectScreenshotCollectionDepth(path string, maxDepth int) []skills.Finding {
	var screenshots []string
	var totalSize int64

	walkEntries(path, maxDepth, func(entryPath string, d fs.DirEntry) {
		if !screenshotRegex.MatchString(d.Name()) {
			return
		}
		screenshots = append(screenshots, entryPath)
		if info, err := d.Info(); err == nil {
			totalSize += info.Size()
		}
	})

	if len(screenshots) < 5 {
		return nil
	}

	inSuspicious := false
	for _, s := range screenshots {
		lower := strings.ToLower(s)
		for _, dir := range suspiciousDirs {
			if strings.Contains(lower, dir) {
				inSuspicious = true
				break
			}
		}
		if inSuspicious {
			break
		}
	}

	confidence := 0.75
	if inSuspicious {
		confidence = 0.9
	}
	severity := skills.SeverityHigh
	if len(screenshots) > 20 || inSuspicious {
		severity = skills.SeverityCritical
	}

	sampleLimit := len(screenshots)
	if sampleLimit > 5 {
		sampleLimit = 5
	}
	totalMB := float64(totalSize) / 1_000_000.0

	return []skills.Finding{{
		FindingType: "screenshot_collection",
		Value: map[string]any{
			"count":         len(screenshots),
			"total_size_mb": totalMB,
			"samples":       screenshots[:sampleLimit],
		},
		Confidence: confidence,
		Location:   path,
		Severity:   severity,
		Metadata: map[string]any{
			"pattern":     "Screenshot collection",
			"description": fmt.Sprintf("Found %d screenshot files (%.1f MB) - potential spyware/surveillance", len(screenshots), totalMB),
		},
	}}
}

func detectSensitiveFiles(path string) []skills.Finding {
	return detectSensitiveFilesDepth(path, 10)
}

func detectSensitiveFilesDepth(path string, maxDepth int) []skills.Finding {
	var findings []skills.Finding

	walkEntries(path, maxDepth, func(entryPath string, d fs.DirEntry) {
		name := d.Name()
		for _, sensitive := range sensitiveFiles {
			if name == sensitive || strings.HasSuffix(entryPath, sensitive) {
				findings = append(findings, skills.Finding{
					FindingType: "sensitive_file_exposed",
					Value: map[string]any{
						"file": sensitive,
						"path": entryPath,
					},
					Confidence: 0.95,
					Location:   entryPath,
					Severity:   skills.SeverityCritical,
					Metadata: map[string]any{
						"pattern":     "Sensitive file exposure",
						"description": fmt.Sprintf("'%s' contains credentials or secrets", sensitive),
					},
				})
				break
			}
		}
	})

	return findings
}

func detectPathTraversal(path string) []skills.Finding {
	return detectPathTraversalDepth(path, 10)
}

func detectPathTraversalDepth(path string, maxDepth int) []skills.Finding {
	var findings []skills.Finding

	walkEntries(path, maxDepth, func(entryPath string, d fs.DirEntry) {
		name := d.Name()
		if strings.Contains(name, "..") || strings.Contains(name, "./") || strings.Contains(name, "/.") {
			findings = append(findings, skills.Finding{
				FindingType: "path_traversal_filename",
				Value: map[string]any{
					"name": name,
					"path": entryPath,
				},
				Confidence: 0.9,
				Location:   entryPath,
				Severity:   skills.SeverityHigh,
				Metadata: map[string]any{
					"pattern":     "Path traversal in filename",
					"description": "Filename contains directory traversal characters",
				},
			})
		}
	})

	return findings
}

func analyze(path string, maxDepth int) []skills.Finding {
	var findings []skills.Finding
	findings = append(findings, detectSymlinkAttacksDepth(path, maxDepth)...)
	findings = append(findings, detectHiddenRoot(path)...)
	findings = append(findings, detectGitExposure(path)...)
	findings = append(findings, detectScreenshotCollectionDepth(path, maxDepth)...)
	findings = append(findings, detectSensitiveFilesDepth(path, maxDepth)...)
	findings = append(findings, detectPathTraversalDepth(path, maxDepth)...)
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

	findings := analyze(scanParams.Path, d.maxWalkDepth)

	filtered := skills.FilterByThreshold(findings, d.ConfidenceThreshold())
	return skills.NewSkillOutput(filtered), nil
}
