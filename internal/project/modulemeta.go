package project

import (
	"errors"
	"path"
	"strings"

	"idlc/internal/source"
	"idlc/internal/token"
)

type ImportMeta struct {
	Path string // путь загруженного модуля; пусто, если импорт не найден
	Span source.Span
}

// ModuleMeta is what the module graph needs to know about one loaded file.
type ModuleMeta struct {
	Path        string // нормализованный путь файла: "idl/a.thrift"
	Dialect     token.Dialect
	Span        source.Span  // span всего файла
	Imports     []ImportMeta // в порядке объявления
	ContentHash Digest       // хеш содержимого файла (из FileSet)
	ModuleHash  Digest       // агрегированный хеш модуля с учётом зависимостей
}

var errInvalidModulePath = errors.New("invalid module path")

// NormalizeModulePath приводит путь модуля к каноническому виду "a/b.proto":
// прямые слэши, без "." и пустых сегментов. Путь не может выходить за корень.
func NormalizeModulePath(p string) (string, error) {
	p = strings.ReplaceAll(p, "\\", "/")
	p = strings.TrimLeft(p, "/")
	if p == "" {
		return "", errInvalidModulePath
	}
	clean := path.Clean(p)
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", errInvalidModulePath
	}
	return clean, nil
}

// ImportCandidates lists where an import written in importer may live, in
// search order: the importer's directory, then each include directory.
// Duplicates and paths escaping the project root are dropped.
func ImportCandidates(importer, imp string, includes []string) []string {
	if imp == "" {
		return nil
	}
	dirs := make([]string, 0, len(includes)+1)
	dirs = append(dirs, path.Dir(strings.ReplaceAll(importer, "\\", "/")))
	dirs = append(dirs, includes...)

	out := make([]string, 0, len(dirs))
	seen := make(map[string]struct{}, len(dirs))
	for _, dir := range dirs {
		cand := imp
		if dir != "" && dir != "." {
			cand = dir + "/" + imp
		}
		norm, err := NormalizeModulePath(cand)
		if err != nil {
			continue
		}
		if _, dup := seen[norm]; dup {
			continue
		}
		seen[norm] = struct{}{}
		out = append(out, norm)
	}
	return out
}
