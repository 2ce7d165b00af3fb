package orchestrator

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

var errOutsideRoot = errors.New("path is outside the repository root")

// resolveInRoot maps name, relative to root or absolute, to a cleaned
// absolute path and its slash-separated path relative to root. Paths that
// leave root, point into .git, or reach outside root through a symlinked
// directory are rejected.
func resolveInRoot(root, name string) (abs string, rel string, err error) {
	if strings.TrimSpace(name) == "" || strings.ContainsRune(name, 0) {
		return "", "", errOutsideRoot
	}
	root = filepath.Clean(root)
	if filepath.IsAbs(name) {
		abs = filepath.Clean(name)
	} else {
		abs = filepath.Join(root, filepath.FromSlash(name))
	}
	r, err := filepath.Rel(root, abs)
	if err != nil || !isLocal(r) {
		return "", "", errOutsideRoot
	}
	rel = filepath.ToSlash(r)
	if rel == ".git" || strings.HasPrefix(rel, ".git/") {
		return "", "", errOutsideRoot
	}

	// Symlinks in existing parent directories must not lead out of root.
	realRoot, err := filepath.EvalSymlinks(root)
	if err != nil {
		return "", "", err
	}
	dir := filepath.Dir(abs)
	for {
		if _, statErr := os.Lstat(dir); statErr == nil {
			break
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	realDir, err := filepath.EvalSymlinks(dir)
	if err != nil {
		return "", "", err
	}
	if r, err := filepath.Rel(realRoot, realDir); err != nil || (r != "." && !isLocal(r)) {
		return "", "", errOutsideRoot
	}
	if info, lerr := os.Lstat(abs); lerr == nil && info.Mode()&fs.ModeSymlink != 0 {
		return "", "", errOutsideRoot
	}
	return abs, rel, nil
}

func isLocal(rel string) bool {
	if rel == "." || rel == ".." || filepath.IsAbs(rel) {
		return false
	}
	return !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// writeFile replaces or creates path with content, creating parent
// directories. Existing files keep their permissions.
func writeFile(path, content string) error {
	mode := fs.FileMode(0o644)
	if info, err := os.Stat(path); err == nil {
		if !info.Mode().IsRegular() {
			return errors.New("not a regular file: " + path)
		}
		mode = info.Mode().Perm()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(content), mode)
}
