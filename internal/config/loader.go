package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(:-([^}]*))?\}`)

// substituteEnvVars expands ${VAR} and ${VAR:-default} references in input
// against the process environment. A referenced variable that is unset and
// carries no default expands to the empty string.
func substituteEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		name, def := groups[1], groups[3]
		if val, ok := os.LookupEnv(name); ok {
			return val
		}
		return def
	})
}

// Loader reads, validates, and hot-reloads the clawscan configuration file.
type Loader struct {
	mu       sync.RWMutex
	cfg      *Config
	filePath string

	watcher   *fsnotify.Watcher
	watchDone chan struct{}
}

// NewLoader returns a Loader seeded with DefaultConfig, so Get is always
// safe to call even before Load.
func NewLoader() *Loader {
	return &Loader{cfg: DefaultConfig()}
}

// Load reads the YAML config at path, substitutes environment variable
// references, and replaces the loader's current config on success. The
// loader's previous config is left untouched on any error.
func (l *Loader) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: reading %s: %w", path, err)
	}

	expanded := substituteEnvVars(string(data))

	cfg := DefaultConfig()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return fmt.Errorf("config: parsing %s: %w", path, err)
	}

	l.mu.Lock()
	l.cfg = cfg
	l.filePath = path
	l.mu.Unlock()

	return nil
}

// Get returns the currently loaded config.
func (l *Loader) Get() *Config {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.cfg
}

// FilePath returns the path most recently passed to Load, or the empty
// string if Load has not yet succeeded.
func (l *Loader) FilePath() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.filePath
}

// Reload re-reads the file passed to the last successful Load call. It
// errors if Load has never succeeded.
func (l *Loader) Reload() error {
	path := l.FilePath()
	if path == "" {
		return fmt.Errorf("config: Reload called before a successful Load")
	}
	return l.Load(path)
}

// Watch starts an fsnotify watcher on the loader's current config file
// (set by the last successful Load) and reloads whenever it changes,
// invoking onReload after each successful reload. Call StopWatch to clean
// up. It errors if Load has never succeeded.
func (l *Loader) Watch(logger *slog.Logger, onReload func()) error {
	if logger == nil {
		logger = slog.Default()
	}
	path := l.FilePath()
	if path == "" {
		return fmt.Errorf("config: Watch called before a successful Load")
	}

	l.mu.Lock()
	oldWatcher, oldDone := l.watcher, l.watchDone
	l.watcher, l.watchDone = nil, nil
	l.mu.Unlock()
	closeWatch(oldWatcher, oldDone)

	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("config: resolving path: %w", err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("config: creating fsnotify watcher: %w", err)
	}

	// Watch the directory rather than the file directly, so an editor's
	// rename-and-replace save still triggers a reload.
	dir := filepath.Dir(absPath)
	if err := w.Add(dir); err != nil {
		_ = w.Close()
		return fmt.Errorf("config: watching directory %s: %w", dir, err)
	}

	done := make(chan struct{})
	l.mu.Lock()
	l.watcher = w
	l.watchDone = done
	l.mu.Unlock()

	go l.watchLoop(w, done, absPath, logger, onReload)
	return nil
}

// watchLoop takes the watcher and its done channel explicitly rather than
// reading them off the loader, so a concurrent StopWatch swapping those
// fields out can never race this loop's reads of them.
func (l *Loader) watchLoop(w *fsnotify.Watcher, done chan struct{}, targetPath string, logger *slog.Logger, onReload func()) {
	defer close(done)
	for {
		select {
		case event, ok := <-w.Events:
			if !ok {
				return
			}
			absEvent, _ := filepath.Abs(event.Name)
			if absEvent != targetPath {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				if err := l.Reload(); err != nil {
					logger.Error("config hot-reload failed", "path", targetPath, "error", err)
					continue
				}
				logger.Info("config hot-reloaded", "path", targetPath)
				if onReload != nil {
					onReload()
				}
			}
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			logger.Error("fsnotify error", "error", err)
		}
	}
}

// StopWatch stops the config file watcher, if running. The watcher is
// closed and its goroutine awaited outside l.mu, so a StopWatch racing an
// in-flight reload (which itself needs l.mu, via Reload -> Load) cannot
// deadlock.
func (l *Loader) StopWatch() {
	l.mu.Lock()
	w, done := l.watcher, l.watchDone
	l.watcher, l.watchDone = nil, nil
	l.mu.Unlock()
	closeWatch(w, done)
}

func closeWatch(w *fsnotify.Watcher, done chan struct{}) {
	if w == nil {
		return
	}
	_ = w.Close()
	if done != nil {
		<-done
	}
}

// GenerateDefault writes a default configuration, rendered as YAML, to path.
func GenerateDefault(path string) error {
	data, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return fmt.Errorf("config: marshaling default config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("config: writing %s: %w", path, err)
	}
	return nil
}
