package source

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/ivlev/lessonplay/internal/system"
)

// TextSource reads one text or markdown file, or every such file of a
// directory in name order. Each file is one page.
type TextSource struct {
	paths []string
}

func NewTextSource(path string) (*TextSource, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	var paths []string
	if fi.IsDir() {
		entries, err := os.ReadDir(path)
		if err != nil {
			return nil, err
		}
		for _, entry := range entries {
			if !entry.IsDir() && system.HasExtension(entry.Name(), system.TextExtensions...) {
				paths = append(paths, filepath.Join(path, entry.Name()))
			}
		}
		sort.Strings(paths)
	} else {
		paths = []string{path}
	}

	return &TextSource{paths: paths}, nil
}

func (s *TextSource) PageCount() int {
	return len(s.paths)
}

func (s *TextSource) PageText(index int) (string, error) {
	if index < 0 || index >= len(s.paths) {
		return "", fmt.Errorf("page %d out of range [0, %d)", index, len(s.paths))
	}
	data, err := os.ReadFile(s.paths[index])
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (s *TextSource) Close() error {
	return nil
}
