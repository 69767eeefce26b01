package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/clawscan/clawscan/internal/config"
	"github.com/clawscan/clawscan/internal/correlate"
	"github.com/clawscan/clawscan/internal/logging"
	"github.com/clawscan/clawscan/internal/registry"
	"github.com/clawscan/clawscan/internal/rules"
	"github.com/clawscan/clawscan/internal/skills"
	"github.com/clawscan/clawscan/internal/watch"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "clawscan",
		Short: "Static threat detection engine for AI agent skill bundles",
		Long:  "clawscan — Scan. Flag. Explain.\nA library of composable detectors for cipher, stego, obfuscation, network, temporal, audio, injection, SVG, and filesystem threats in untrusted skill content.",
	}

	var configFile string
	var recursive bool
	var format string

	scanCmd := &cobra.Command{
		Use:   "scan <path>",
		Short: "Run every registered detector against a path",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScan(configFile, args[0], recursive, format)
		},
	}
	scanCmd.Flags().StringVarP(&configFile, "config", "c", "", "Path to config file")
	scanCmd.Flags().BoolVarP(&recursive, "recursive", "r", false, "Scan directories recursively")
	scanCmd.Flags().StringVar(&format, "format", "table", "Output format: table|json")

	skillsCmd := &cobra.Command{
		Use:   "skills",
		Short: "List registered skills and their categories",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSkills(configFile)
		},
	}
	skillsCmd.Flags().StringVarP(&configFile, "config", "c", "", "Path to config file")

	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Print the tool-calling schema export document",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(configFile)
		},
	}
	exportCmd.Flags().StringVarP(&configFile, "config", "c", "", "Path to config file")

	invokeCmd := &cobra.Command{
		Use:   "invoke <skill> <path>",
		Short: "Run a single skill against a path",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInvoke(configFile, args[0], args[1], recursive)
		},
	}
	invokeCmd.Flags().StringVarP(&configFile, "config", "c", "", "Path to config file")
	invokeCmd.Flags().BoolVarP(&recursive, "recursive", "r", false, "Scan directories recursively")

	var watchPort int
	watchCmd := &cobra.Command{
		Use:   "watch <path>",
		Short: "Start the live scan-progress WebSocket server for a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(configFile, args[0], watchPort)
		},
	}
	watchCmd.Flags().StringVarP(&configFile, "config", "c", "", "Path to config file")
	watchCmd.Flags().IntVarP(&watchPort, "port", "p", 0, "Override watch server port")

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Generate a starter clawscan.yaml",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit()
		},
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("clawscan %s (%s)\n", version, commit)
		},
	}

	rootCmd.AddCommand(scanCmd, skillsCmd, exportCmd, invokeCmd, watchCmd, initCmd, versionCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig(configFile string) *config.Config {
	loader := config.NewLoader()
	if configFile == "" {
		configFile = findConfigFile()
	}
	if configFile != "" {
		if err := loader.Load(configFile); err != nil {
			fmt.Fprintf(os.Stderr, "  ⚠ failed to load %s: %s (using defaults)\n", configFile, err)
		}
	}
	return loader.Get()
}

func buildRegistry(cfg *config.Config) *skills.Registry {
	var ruleSet *rules.RuleSet
	if len(cfg.CustomRules) > 0 {
		rs, err := rules.NewRuleSet(cfg.CustomRules)
		if err != nil {
			fmt.Fprintf(os.Stderr, "  ⚠ custom rules disabled: %s\n", err)
		} else {
			ruleSet = rs
		}
	}
	return registry.CreateDefaultRegistry(cfg, ruleSet)
}

func runScan(configFile, path string, recursive bool, format string) error {
	cfg := loadConfig(configFile)
	r := buildRegistry(cfg)

	cache, err := registry.OpenTrustCache(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "  ⚠ trust cache disabled: %s\n", err)
	}
	if cache != nil {
		defer cache.Close()
		if pruned, err := cache.PruneOlderThan(time.Now().Add(-cfg.TrustCache.MaxAge)); err == nil && pruned > 0 {
			fmt.Printf("  → Trust cache: pruned %d stale verdicts\n", pruned)
		}
	}

	params, _ := json.Marshal(skills.ScanParams{Path: path, Recursive: recursive})
	results := make([]skills.SkillResult, 0)
	for _, s := range r.List() {
		out, err := s.Execute(params)
		results = append(results, skills.SkillResult{Name: s.Name(), Output: out, Err: err})
	}

	if format == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}

	findings := registry.ScanPathCached(r, path, cache)

	fmt.Println()
	fmt.Println("  ╔══════════════════════════════════════════╗")
	fmt.Println("  ║              clawscan " + version + "              ║")
	fmt.Println("  ╚══════════════════════════════════════════╝")
	fmt.Println()
	fmt.Printf("  → Target:     %s\n", path)
	fmt.Printf("  → Recursive:  %v\n", recursive)
	fmt.Printf("  → Skills run: %d\n", len(results))
	fmt.Printf("  → Findings:   %d\n", len(findings))
	fmt.Println()

	if len(findings) == 0 {
		fmt.Println("  ✓ No findings above confidence threshold")
		return nil
	}

	fmt.Printf("  %-10s %-8s %-28s %-8s %s\n", "SEVERITY", "CONF", "TYPE", "", "LOCATION")
	fmt.Println("  " + strings.Repeat("─", 80))
	for _, f := range findings {
		marker := "✗"
		if f.Severity <= skills.SeverityLow {
			marker = "⚠"
		}
		fmt.Printf("  %-10s %-8.2f %-28s %-8s %s\n", f.Severity.String(), f.Confidence, f.FindingType, marker, f.Location)
	}
	fmt.Println()

	for _, res := range results {
		if res.Err != nil {
			fmt.Printf("  ✗ %s failed: %s\n", res.Name, res.Err)
		}
	}

	return nil
}

func runSkills(configFile string) error {
	cfg := loadConfig(configFile)
	r := buildRegistry(cfg)

	fmt.Printf("%-26s %-36s %s\n", "NAME", "CATEGORIES", "THRESHOLD")
	fmt.Println(strings.Repeat("─", 90))
	for _, s := range r.List() {
		fmt.Printf("%-26s %-36s %.2f\n", s.Name(), strings.Join(s.Categories(), ","), s.ConfidenceThreshold())
	}
	return nil
}

func runExport(configFile string) error {
	cfg := loadConfig(configFile)
	r := buildRegistry(cfg)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(r.ExportSchemas())
}

func runInvoke(configFile, skillName, path string, recursive bool) error {
	cfg := loadConfig(configFile)
	r := buildRegistry(cfg)

	params, err := json.Marshal(skills.ScanParams{Path: path, Recursive: recursive})
	if err != nil {
		return err
	}

	out, err := r.Invoke(skillName, params)
	if err != nil {
		fmt.Printf("  ✗ %s\n", err)
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func runWatch(configFile, path string, portOverride int) error {
	cfg := loadConfig(configFile)
	r := buildRegistry(cfg)

	logger := logging.New(cfg.Server.LogLevel)
	hub := watch.NewHub(logger, cfg.Server.AllowAllOrigins)
	defer hub.Close()

	mux := http.NewServeMux()
	mux.HandleFunc("/ws/scan", hub.HandleWebSocket)

	port := cfg.Server.Port
	if portOverride > 0 {
		port = portOverride
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
	}

	runID := correlate.NewScanRunID(time.Now())
	go func() {
		time.Sleep(200 * time.Millisecond)
		results := registry.ScanAllWithProgress(r, path, runID, hub)
		total := 0
		for _, res := range results {
			total += len(res.Output.Findings)
		}
		logger.Info("scan run complete", "run_id", runID, "findings", total)
	}()

	fmt.Printf("  → Watching:   %s\n", path)
	fmt.Printf("  → WebSocket:  ws://localhost:%d/ws/scan\n", port)
	fmt.Printf("  → Run ID:     %s\n", runID)

	logger.Info("starting watch server", "port", port)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("watch server error: %w", err)
	}
	return nil
}

func runInit() error {
	configPath := "clawscan.yaml"
	if _, err := os.Stat(configPath); err == nil {
		fmt.Printf("  ⚠ %s already exists (skipping)\n", configPath)
		return nil
	}
	if err := config.GenerateDefault(configPath); err != nil {
		return err
	}
	fmt.Printf("  ✓ Generated %s\n", configPath)
	return nil
}

func findConfigFile() string {
	candidates := []string{"clawscan.yaml", "clawscan.yml"}
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c
		}
	}
	return ""
}
