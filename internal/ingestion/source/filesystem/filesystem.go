// Package filesystem reads markdown documents from a local directory. It
// backs local development and tests in place of the Drive source.
package filesystem

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/ingestion"
)

var extensions = map[string]struct{}{
	".md":       {},
	".markdown": {},
}

type Source struct {
	dir string
}

func New(dir string) *Source {
	return &Source{dir: dir}
}

func (s *Source) Name() string { return "filesystem" }

// Fetch returns every markdown file under the directory, ordered by path.
// The title is the file name without extension.
func (s *Source) Fetch(ctx context.Context) ([]ingestion.SourceDocument, error) {
	var paths []string
	err := filepath.WalkDir(s.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if _, ok := extensions[strings.ToLower(filepath.Ext(path))]; ok {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", s.dir, err)
	}
	sort.Strings(paths)

	docs := make([]ingestion.SourceDocument, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		rel, err := filepath.Rel(s.dir, path)
		if err != nil {
			rel = path
		}
		abs, err := filepath.Abs(path)
		if err != nil {
			abs = path
		}
		name := filepath.Base(path)
		docs = append(docs, ingestion.SourceDocument{
			ID:      filepath.ToSlash(rel),
			Title:   strings.TrimSuffix(name, filepath.Ext(name)),
			Link:    "file://" + filepath.ToSlash(abs),
			RawText: string(data),
		})
	}
	return docs, nil
}
