package orchestrator

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveInRoot(t *testing.T) {
	root, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	outside, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Join(root, "src"), 0o755))
	require.NoError(t, os.Symlink(outside, filepath.Join(root, "escape")))
	require.NoError(t, os.WriteFile(filepath.Join(outside, "target"), []byte("x"), 0o644))
	require.NoError(t, os.Symlink(filepath.Join(outside, "target"), filepath.Join(root, "link.txt")))

	tests := []struct {
		name    string
		path    string
		wantRel string
		wantErr bool
	}{
		{name: "relative", path: "src/a.go", wantRel: "src/a.go"},
		{name: "nested new directory", path: "new/dir/file.go", wantRel: "new/dir/file.go"},
		{name: "dot segments inside root", path: "src/../b.go", wantRel: "b.go"},
		{name: "absolute inside root", path: filepath.Join(root, "src", "a.go"), wantRel: "src/a.go"},
		{name: "parent escape", path: "../../etc/passwd", wantErr: true},
		{name: "single parent", path: "../sibling.txt", wantErr: true},
		{name: "absolute outside root", path: "/etc/passwd", wantErr: true},
		{name: "root itself", path: ".", wantErr: true},
		{name: "git directory", path: ".git/config", wantErr: true},
		{name: "git directory itself", path: ".git", wantErr: true},
		{name: "through symlinked directory", path: "escape/evil.txt", wantErr: true},
		{name: "symlinked file", path: "link.txt", wantErr: true},
		{name: "empty", path: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			abs, rel, err := resolveInRoot(root, tt.path)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantRel, rel)
			assert.Equal(t, filepath.Join(root, filepath.FromSlash(tt.wantRel)), abs)
		})
	}
}

func TestWriteFileKeepsMode(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "run.sh")
	require.NoError(t, os.WriteFile(p, []byte("old"), 0o755))

	require.NoError(t, writeFile(p, "new"))
	info, err := os.Stat(p)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o755), info.Mode().Perm())

	require.NoError(t, writeFile(filepath.Join(dir, "a", "b", "c.txt"), "c"))
	b, err := os.ReadFile(filepath.Join(dir, "a", "b", "c.txt"))
	require.NoError(t, err)
	assert.Equal(t, "c", string(b))

	assert.Error(t, writeFile(dir, "x"))
}

func TestKeyedMutex(t *testing.T) {
	var k keyedMutex
	unlockA := k.Lock("a")

	acquired := make(chan struct{})
	go func() {
		unlock := k.Lock("a")
		close(acquired)
		unlock()
	}()

	unlockB := k.Lock("b")
	unlockB()

	select {
	case <-acquired:
		t.Fatal("lock for a acquired twice")
	case <-time.After(20 * time.Millisecond):
	}
	unlockA()
	<-acquired

	var wg sync.WaitGroup
	counter := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := k.Lock("c")
			counter++
			unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, counter)

	k.mu.Lock()
	defer k.mu.Unlock()
	assert.Empty(t, k.locks)
}
