package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoader_LoadValidConfig(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "clawscan.yaml")

	yamlContent := `
server:
  enabled: true
  port: 6791
  allow_all_origins: true
  log_level: debug

detection:
  max_walk_depth: 64
  confidence_thresholds:
    detect_svg_threats: 0.5

trust_cache:
  enabled: true
  path: ./cache.db
  max_age: 72h

custom_rules:
  - name: big-binary
    expression: "size_bytes > 1000000"
    finding_type: oversized_binary
    severity: medium
    confidence: 0.8

watch:
  enabled: true
`
	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	loader := NewLoader()
	if err := loader.Load(configPath); err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	cfg := loader.Get()

	if cfg.Server.Port != 6791 {
		t.Errorf("Server.Port = %d, want 6791", cfg.Server.Port)
	}
	if cfg.Server.LogLevel != "debug" {
		t.Errorf("Server.LogLevel = %q, want \"debug\"", cfg.Server.LogLevel)
	}
	if !cfg.Server.AllowAllOrigins {
		t.Error("Server.AllowAllOrigins = false, want true")
	}

	if cfg.Detection.MaxWalkDepth != 64 {
		t.Errorf("Detection.MaxWalkDepth = %d, want 64", cfg.Detection.MaxWalkDepth)
	}
	if got := cfg.Detection.ConfidenceThresholds["detect_svg_threats"]; got != 0.5 {
		t.Errorf("Detection.ConfidenceThresholds[detect_svg_threats] = %f, want 0.5", got)
	}

	if !cfg.TrustCache.Enabled {
		t.Error("TrustCache.Enabled = false, want true")
	}
	if cfg.TrustCache.Path != "./cache.db" {
		t.Errorf("TrustCache.Path = %q, want \"./cache.db\"", cfg.TrustCache.Path)
	}

	if len(cfg.CustomRules) != 1 {
		t.Fatalf("CustomRules length = %d, want 1", len(cfg.CustomRules))
	}
	if cfg.CustomRules[0].Name != "big-binary" {
		t.Errorf("CustomRules[0].Name = %q, want \"big-binary\"", cfg.CustomRules[0].Name)
	}
	if cfg.CustomRules[0].Severity != "medium" {
		t.Errorf("CustomRules[0].Severity = %q, want \"medium\"", cfg.CustomRules[0].Severity)
	}

	if !cfg.Watch.Enabled {
		t.Error("Watch.Enabled = false, want true")
	}
}

func TestLoader_DefaultConfig(t *testing.T) {
	loader := NewLoader()
	cfg := loader.Get()

	if cfg.Server.Port != 6790 {
		t.Errorf("default Server.Port = %d, want 6790", cfg.Server.Port)
	}
	if cfg.Server.Enabled {
		t.Error("default Server.Enabled = true, want false")
	}
	if cfg.Server.LogLevel != "info" {
		t.Errorf("default Server.LogLevel = %q, want \"info\"", cfg.Server.LogLevel)
	}
	if cfg.TrustCache.Path != "./clawscan-trust.db" {
		t.Errorf("default TrustCache.Path = %q, want \"./clawscan-trust.db\"", cfg.TrustCache.Path)
	}
	if len(cfg.CustomRules) != 0 {
		t.Errorf("default CustomRules length = %d, want 0", len(cfg.CustomRules))
	}
}

func TestLoader_LoadNonExistentFile(t *testing.T) {
	loader := NewLoader()
	err := loader.Load("/nonexistent/path/to/config.yaml")
	if err == nil {
		t.Error("Load() with nonexistent file should return error")
	}
}

func TestLoader_LoadInvalidYAML(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "bad.yaml")

	if err := os.WriteFile(configPath, []byte(`{{{invalid yaml`), 0644); err != nil {
		t.Fatalf("failed to write bad config: %v", err)
	}

	loader := NewLoader()
	err := loader.Load(configPath)
	if err == nil {
		t.Error("Load() with invalid YAML should return error")
	}
}

func TestLoader_FilePath(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "clawscan.yaml")
	if err := os.WriteFile(configPath, []byte("server:\n  port: 9999\n"), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	loader := NewLoader()
	if loader.FilePath() != "" {
		t.Errorf("FilePath() before Load() = %q, want empty", loader.FilePath())
	}

	if err := loader.Load(configPath); err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if loader.FilePath() != configPath {
		t.Errorf("FilePath() = %q, want %q", loader.FilePath(), configPath)
	}
}

func TestLoader_Reload(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "clawscan.yaml")

	if err := os.WriteFile(configPath, []byte("server:\n  port: 8080\n"), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	loader := NewLoader()
	if err := loader.Load(configPath); err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if loader.Get().Server.Port != 8080 {
		t.Errorf("initial port = %d, want 8080", loader.Get().Server.Port)
	}

	if err := os.WriteFile(configPath, []byte("server:\n  port: 9999\n"), 0644); err != nil {
		t.Fatalf("failed to overwrite config: %v", err)
	}

	if err := loader.Reload(); err != nil {
		t.Fatalf("Reload() error: %v", err)
	}

	if loader.Get().Server.Port != 9999 {
		t.Errorf("reloaded port = %d, want 9999", loader.Get().Server.Port)
	}
}

func TestLoader_ReloadWithoutLoad(t *testing.T) {
	loader := NewLoader()
	err := loader.Reload()
	if err == nil {
		t.Error("Reload() without prior Load() should return error")
	}
}

func TestSubstituteEnvVars(t *testing.T) {
	os.Setenv("TEST_CS_PORT", "9999")
	os.Setenv("TEST_CS_SECRET", "my-secret")
	defer os.Unsetenv("TEST_CS_PORT")
	defer os.Unsetenv("TEST_CS_SECRET")

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "simple substitution",
			input: "port: ${TEST_CS_PORT}",
			want:  "port: 9999",
		},
		{
			name:  "multiple substitutions",
			input: "port: ${TEST_CS_PORT}\nsecret: ${TEST_CS_SECRET}",
			want:  "port: 9999\nsecret: my-secret",
		},
		{
			name:  "undefined variable",
			input: "value: ${UNDEFINED_TEST_VAR_XYZ}",
			want:  "value: ",
		},
		{
			name:  "default value syntax",
			input: "value: ${UNDEFINED_TEST_VAR_XYZ:-default-val}",
			want:  "value: default-val",
		},
		{
			name:  "default value not used when env var set",
			input: "port: ${TEST_CS_PORT:-1234}",
			want:  "port: 9999",
		},
		{
			name:  "no env vars",
			input: "port: 8080",
			want:  "port: 8080",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := substituteEnvVars(tt.input)
			if got != tt.want {
				t.Errorf("substituteEnvVars(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestSubstituteEnvVars_InConfigLoad(t *testing.T) {
	os.Setenv("TEST_CS_CFG_PORT", "7777")
	defer os.Unsetenv("TEST_CS_CFG_PORT")

	dir := t.TempDir()
	configPath := filepath.Join(dir, "clawscan.yaml")

	yamlContent := `
server:
  port: ${TEST_CS_CFG_PORT}
  log_level: info
`
	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	loader := NewLoader()
	if err := loader.Load(configPath); err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	cfg := loader.Get()
	if cfg.Server.Port != 7777 {
		t.Errorf("Server.Port with env var = %d, want 7777", cfg.Server.Port)
	}
}

func TestGenerateDefault(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "clawscan.yaml")

	if err := GenerateDefault(configPath); err != nil {
		t.Fatalf("GenerateDefault() error: %v", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		t.Fatalf("failed to read generated config: %v", err)
	}

	content := string(data)
	if len(content) == 0 {
		t.Error("generated config is empty")
	}

	loader := NewLoader()
	if err := loader.Load(configPath); err != nil {
		t.Fatalf("generated config is not valid YAML: %v", err)
	}

	cfg := loader.Get()
	if cfg.Server.Port != 6790 {
		t.Errorf("generated config port = %d, want 6790", cfg.Server.Port)
	}
}
