package skills

import (
	"os"
	"path/filepath"
	"unicode/utf8"
)

// WalkFiles returns every regular file under root, honoring the generic
// execution contract: non-recursive scans visit only root's immediate
// children (depth 1), recursive scans go to depth maxDepth. Symlinks are
// never followed. Per-entry read errors are swallowed silently — the
// caller sees fewer files, never an error.
func WalkFiles(root string, recursive bool, maxDepth int) []string {
	info, err := os.Lstat(root)
	if err != nil {
		return nil
	}
	if !info.IsDir() {
		return []string{root}
	}
	depth := 1
	if recursive {
		depth = maxDepth
	}
	var files []string
	walkDir(root, depth, &files)
	return files
}

func walkDir(dir string, depthLeft int, files *[]string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	for _, e := range entries {
		full := filepath.Join(dir, e.Name())
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.Mode()&os.ModeSymlink != 0 {
			continue
		}
		if e.IsDir() {
			if depthLeft > 1 {
				walkDir(full, depthLeft-1, files)
			}
			continue
		}
		*files = append(*files, full)
	}
}

// ReadTextFile reads path and returns its content as a string, or ok=false
// if the file cannot be read or is not valid UTF-8 — detectors other than
// steganography/audio silently skip such files rather than failing.
func ReadTextFile(path string) (string, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", false
	}
	if !utf8.Valid(data) {
		return "", false
	}
	return string(data), true
}
