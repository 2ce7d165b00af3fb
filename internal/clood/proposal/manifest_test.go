package proposal

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
}

func TestBuildManifest(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"main.go":                 "package main",
		"internal/x/x.go":         "package x",
		"node_modules/a/index.js": "x",
		"web/node_modules/b.js":   "x",
		"bin/tool":                "x",
		"obj/Debug/a.o":           "x",
		".venv/lib/site.py":       "x",
		"venv/lib/site.py":        "x",
		".git/HEAD":               "ref: refs/heads/main",
		"vendor/mod/m.go":         "x",
		"dist/app.js":             "x",
		"build/out.txt":           "x",
		"logs/app.log":            "x",
		"keep.log.txt":            "x",
		".gitignore":              "build/\n*.log\n",
	})

	m, err := BuildManifest(root)
	require.NoError(t, err)

	var got []string
	for k := range m {
		got = append(got, k)
	}
	assert.ElementsMatch(t, []string{"main.go", "internal/x/x.go", "keep.log.txt", ".gitignore"}, got)
	assert.Equal(t, int64(len("package main")), m["main.go"].Size)
	assert.False(t, m["main.go"].LastModified.IsZero())
}

func TestBuildManifestWithoutGitignore(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"a.txt":          "a",
		"dist/bundle.js": "x",
	})

	m, err := BuildManifest(root)
	require.NoError(t, err)
	assert.Len(t, m, 1)
	assert.Contains(t, m, "a.txt")
}

func TestManifestYAML(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"b.txt": "bb", "a/c.txt": "c"})

	m, err := BuildManifest(root)
	require.NoError(t, err)
	out, err := m.YAML()
	require.NoError(t, err)

	var decoded map[string]ManifestEntry
	require.NoError(t, yaml.Unmarshal([]byte(out), &decoded))
	assert.Equal(t, int64(2), decoded["b.txt"].Size)
	assert.Equal(t, int64(1), decoded["a/c.txt"].Size)
	assert.Less(t, strings.Index(out, "a/c.txt"), strings.Index(out, "b.txt"))
}

func TestBuildManifestMissingRoot(t *testing.T) {
	_, err := BuildManifest(filepath.Join(t.TempDir(), "missing"))
	assert.ErrorIs(t, err, ErrManifest)
}
