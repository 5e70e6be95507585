package driver

import (
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"idlc/internal/token"
)

// ListSources returns every .thrift and .proto file below dir as module
// paths relative to root, sorted.
func ListSources(root, dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			// скрытые каталоги (.git, .idlc) не обходим
			if p != dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if token.DialectFromPath(p) == token.DialectUnknown {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Сортируем для детерминированного порядка
	sort.Strings(files)
	return files, nil
}
