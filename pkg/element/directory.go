package element

import (
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// listDirectoryResources walks a Directory element's filesystem subtree in
// lexicographic order (spec.md §5 "Ordering guarantees": "lexicographic
// for directories").
func listDirectoryResources(root string) ([]*Resource, error) {
	var resources []*Resource
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		logicalPath := filepath.ToSlash(rel)
		info, err := d.Info()
		if err != nil {
			return err
		}
		fullPath := p
		resources = append(resources, &Resource{
			LogicalPath: logicalPath,
			ModTime:     info.ModTime(),
			IsClassfile: strings.HasSuffix(logicalPath, ".class"),
			Open: func() (io.ReadCloser, error) {
				return os.Open(fullPath)
			},
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resources, nil
}
