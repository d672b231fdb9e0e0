package ingestion

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Source is a single piece of text to ingest.
type Source struct {
	Path     string
	Contents string
	Metadata map[string]string
}

// textExtensions lists the file extensions treated as document text.
var textExtensions = map[string]bool{
	".txt": true,
	".md":  true,
}

// ReadDirectory walks root and loads every text file beneath it as a
// Source. Paths in the returned sources are relative to root. Hidden
// files and directories are skipped.
func ReadDirectory(root string) ([]Source, error) {
	var sources []Source
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()
		if strings.HasPrefix(name, ".") && path != root {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if !textExtensions[strings.ToLower(filepath.Ext(name))] {
			return nil
		}

		contents, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		if len(contents) == 0 {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		sources = append(sources, Source{
			Path:     filepath.ToSlash(rel),
			Contents: string(contents),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sources, nil
}
