// Package gittest creates throwaway git repositories for tests.
package gittest

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

// Identity is exported into the environment of every git command so commits
// work without a global git configuration.
var Identity = []string{
	"GIT_AUTHOR_NAME=Clood Test",
	"GIT_AUTHOR_EMAIL=test@example.com",
	"GIT_COMMITTER_NAME=Clood Test",
	"GIT_COMMITTER_EMAIL=test@example.com",
}

// RequireGit skips the test when no git executable is available.
func RequireGit(t testing.TB) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}
}

// NewRepo initializes a repository on branch main containing files (relative
// path to content) in a single initial commit, and returns its root. The
// commit identity is also exported through t.Setenv so code under test can
// commit.
func NewRepo(t *testing.T, files map[string]string) string {
	t.Helper()
	RequireGit(t)

	for _, kv := range Identity {
		k, v, _ := strings.Cut(kv, "=")
		t.Setenv(k, v)
	}

	dir, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatalf("resolve temp dir: %v", err)
	}
	Git(t, dir, "init", "-q")
	Git(t, dir, "symbolic-ref", "HEAD", "refs/heads/main")
	Git(t, dir, "config", "commit.gpgsign", "false")
	Git(t, dir, "config", "core.autocrlf", "false")

	if len(files) == 0 {
		files = map[string]string{"README.md": "# test\n"}
	}
	for name, content := range files {
		WriteFile(t, dir, name, content)
	}
	Git(t, dir, "add", ".")
	Git(t, dir, "commit", "-q", "-m", "initial commit")
	return dir
}

// Git runs git in dir and returns its trimmed stdout, failing the test on a
// non-zero exit.
func Git(t testing.TB, dir string, args ...string) string {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), Identity...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("git %s: %v\n%s", strings.Join(args, " "), err, out)
	}
	return strings.TrimSpace(string(out))
}

// WriteFile writes content to dir/name, creating parent directories.
func WriteFile(t testing.TB, dir, name, content string) {
	t.Helper()
	p := filepath.Join(dir, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

// ReadFile returns the content of dir/name, or "" if it does not exist.
func ReadFile(t testing.TB, dir, name string) string {
	t.Helper()
	b, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(name)))
	if err != nil {
		return ""
	}
	return string(b)
}

// Exists reports whether dir/name exists.
func Exists(dir, name string) bool {
	_, err := os.Stat(filepath.Join(dir, filepath.FromSlash(name)))
	return err == nil
}

// Branches lists local branch names.
func Branches(t testing.TB, dir string) []string {
	t.Helper()
	out := Git(t, dir, "for-each-ref", "--format=%(refname:short)", "refs/heads")
	if out == "" {
		return nil
	}
	return strings.Split(out, "\n")
}

// Head returns the current branch name.
func Head(t testing.TB, dir string) string {
	t.Helper()
	return Git(t, dir, "rev-parse", "--abbrev-ref", "HEAD")
}

// Status returns git status --porcelain output.
func Status(t testing.TB, dir string) string {
	t.Helper()
	return Git(t, dir, "status", "--porcelain")
}

// CommitCount returns the number of commits reachable from ref.
func CommitCount(t testing.TB, dir, ref string) string {
	t.Helper()
	return Git(t, dir, "rev-list", "--count", ref)
}
