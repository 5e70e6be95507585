package driver

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
)

// Loader reads module sources. Paths are canonical module paths ("a/b.thrift"),
// relative to the loader's root.
type Loader interface {
	ReadFile(path string) ([]byte, error)
	Exists(path string) bool
}

// FSLoader reads modules from the filesystem below Root.
type FSLoader struct {
	Root string
}

func (l FSLoader) abs(p string) string {
	return filepath.Join(l.Root, filepath.FromSlash(p))
}

func (l FSLoader) ReadFile(p string) ([]byte, error) {
	return os.ReadFile(l.abs(p))
}

func (l FSLoader) Exists(p string) bool {
	st, err := os.Stat(l.abs(p))
	return err == nil && st.Mode().IsRegular()
}

// MapLoader serves sources from memory; tests and editors use it.
type MapLoader map[string]string

func (m MapLoader) ReadFile(p string) ([]byte, error) {
	s, ok := m[p]
	if !ok {
		return nil, &fs.PathError{Op: "open", Path: p, Err: fs.ErrNotExist}
	}
	return []byte(s), nil
}

func (m MapLoader) Exists(p string) bool {
	_, ok := m[p]
	return ok
}

func isNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
