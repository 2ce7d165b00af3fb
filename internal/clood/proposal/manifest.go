package proposal

import (
	"io/fs"
	"os"
	"path/filepath"
	"time"

	ignore "github.com/sabhiram/go-gitignore"
	"gopkg.in/yaml.v3"
)

// DefaultIgnores are never listed in the project layout.
var DefaultIgnores = []string{
	".git",
	"node_modules",
	"bin",
	"obj",
	"venv",
	".venv",
	"vendor",
	"dist",
}

// ManifestEntry describes one file of the project layout.
type ManifestEntry struct {
	Size         int64     `yaml:"size"`
	LastModified time.Time `yaml:"lastModified"`
}

// Manifest maps root-relative, slash-separated paths to their entries.
type Manifest map[string]ManifestEntry

// YAML renders the manifest with keys in sorted order.
func (m Manifest) YAML() (string, error) {
	b, err := yaml.Marshal(map[string]ManifestEntry(m))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// BuildManifest walks root and records every file that is not excluded by
// DefaultIgnores or by the .gitignore at the root.
func BuildManifest(root string) (Manifest, error) {
	matcher, err := loadIgnores(root)
	if err != nil {
		return nil, ErrManifest.MsgErr("unable to read .gitignore", err)
	}

	manifest := Manifest{}
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == root {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if d.IsDir() {
			if matcher.MatchesPath(rel + "/") {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || matcher.MatchesPath(rel) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		manifest[rel] = ManifestEntry{
			Size:         info.Size(),
			LastModified: info.ModTime().UTC().Truncate(time.Second),
		}
		return nil
	})
	if err != nil {
		return nil, ErrManifest.Err(err)
	}
	return manifest, nil
}

func loadIgnores(root string) (*ignore.GitIgnore, error) {
	gitignore := filepath.Join(root, ".gitignore")
	if _, err := os.Stat(gitignore); err != nil {
		if os.IsNotExist(err) {
			return ignore.CompileIgnoreLines(DefaultIgnores...), nil
		}
		return nil, err
	}
	return ignore.CompileIgnoreFileAndLines(gitignore, DefaultIgnores...)
}
