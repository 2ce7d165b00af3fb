package proposal

import (
	"bytes"
	"os"
	"path/filepath"
	"sort"

	"github.com/h2non/filetype"
)

// sniffLen is enough for filetype to recognise every supported format.
const sniffLen = 261

// sourceFile is a file whose content is sent to the model.
type sourceFile struct {
	Name    string
	Content string
}

// loadSourceFiles reads the given absolute paths and returns their contents
// keyed by path relative to root. Binary files are left out.
func loadSourceFiles(root string, paths []string) ([]sourceFile, []string, error) {
	var files []sourceFile
	var skipped []string
	for _, p := range paths {
		content, err := os.ReadFile(p)
		if err != nil {
			return nil, nil, ErrReadFile.MsgErr("unable to read "+p, err)
		}
		name := p
		if rel, err := filepath.Rel(root, p); err == nil {
			name = filepath.ToSlash(rel)
		}
		if isBinary(content) {
			skipped = append(skipped, name)
			continue
		}
		files = append(files, sourceFile{Name: name, Content: string(content)})
	}
	sort.SliceStable(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, skipped, nil
}

func isBinary(content []byte) bool {
	head := content
	if len(head) > sniffLen {
		head = head[:sniffLen]
	}
	kind, err := filetype.Match(head)
	if err == nil && kind != filetype.Unknown {
		return true
	}
	return bytes.IndexByte(head, 0) >= 0
}

// filesDictionary renders the files as a JSON object of name to content.
func filesDictionary(files []sourceFile) (string, error) {
	dict := make(map[string]string, len(files))
	for _, f := range files {
		dict[f.Name] = f.Content
	}
	b, err := json.MarshalIndent(dict, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}
