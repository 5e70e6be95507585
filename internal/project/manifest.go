package project

import (
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"
)

// ErrInvalidManifest wraps every validation failure of idlc.toml.
var ErrInvalidManifest = errors.New("invalid manifest")

// Manifest mirrors idlc.toml. Paths are relative to Root.
type Manifest struct {
	Root    string `toml:"-"`
	Compile CompileSection
	Gen     GenSection
	Cache   CacheSection
}

type CompileSection struct {
	Entries        []string `toml:"entries"`
	Include        []string `toml:"include"`
	Mode           string   `toml:"mode"` // fail-fast | collect-all
	Jobs           int      `toml:"jobs"`
	MaxDiagnostics int      `toml:"max_diagnostics"`
}

type GenSection struct {
	Target              string            `toml:"target"`
	OutDir              string            `toml:"out_dir"`
	Layout              string            `toml:"layout"` // per-module | single-file
	ChangeCase          string            `toml:"change_case"`
	EscapeSuffix        string            `toml:"escape_suffix"`
	Reserved            []string          `toml:"reserved"`
	MaterializeDefaults bool              `toml:"materialize_defaults"`
	Services            *bool             `toml:"services"`
	Roots               []string          `toml:"roots"`
	GoPackage           string            `toml:"go_package"`
	Names               map[string]string `toml:"names"`
	Paths               []PathRule        `toml:"paths"`
}

// PathRule rewrites the output directory of modules whose path starts with
// Match.
type PathRule struct {
	Match string `toml:"match"`
	Out   string `toml:"out"`
}

type CacheSection struct {
	Disk bool   `toml:"disk"`
	Path string `toml:"path"`
}

const (
	ModeFailFast   = "fail-fast"
	ModeCollectAll = "collect-all"
)

// DefaultManifest is used when no idlc.toml is found.
func DefaultManifest(root string) *Manifest {
	return &Manifest{
		Root:    root,
		Compile: CompileSection{Mode: ModeFailFast},
		Gen:     GenSection{Target: "go", OutDir: "gen", Layout: "per-module"},
		Cache:   CacheSection{Path: filepath.Join(".idlc", "cache.db")},
	}
}

// LoadManifest parses and validates an idlc.toml file.
func LoadManifest(path string) (*Manifest, error) {
	m := DefaultManifest(filepath.Dir(path))
	meta, err := toml.DecodeFile(path, m)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("%s: %w: unknown keys %s", path, ErrInvalidManifest, strings.Join(keys, ", "))
	}
	if !meta.IsDefined("gen", "services") {
		on := true
		m.Gen.Services = &on
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

func (m *Manifest) Validate() error {
	switch m.Compile.Mode {
	case "", ModeFailFast, ModeCollectAll:
	default:
		return fmt.Errorf("%w: [compile].mode %q, expected %q or %q", ErrInvalidManifest, m.Compile.Mode, ModeFailFast, ModeCollectAll)
	}
	if m.Compile.Jobs < 0 || m.Compile.MaxDiagnostics < 0 {
		return fmt.Errorf("%w: [compile].jobs and max_diagnostics must not be negative", ErrInvalidManifest)
	}
	switch m.Gen.Layout {
	case "", "per-module", "single-file":
	default:
		return fmt.Errorf("%w: [gen].layout %q", ErrInvalidManifest, m.Gen.Layout)
	}
	for _, e := range m.Compile.Entries {
		if _, err := NormalizeModulePath(e); err != nil {
			return fmt.Errorf("%w: entry %q escapes the project root", ErrInvalidManifest, e)
		}
	}
	for i, r := range m.Gen.Paths {
		if r.Match == "" {
			return fmt.Errorf("%w: [[gen.paths]] rule %d has an empty match", ErrInvalidManifest, i+1)
		}
	}
	if slices.Contains(m.Gen.Reserved, "") {
		return fmt.Errorf("%w: [gen].reserved contains an empty word", ErrInvalidManifest)
	}
	return nil
}

// ServicesEnabled reports [gen].services, defaulting to true.
func (m *Manifest) ServicesEnabled() bool {
	return m.Gen.Services == nil || *m.Gen.Services
}

// Abs resolves a manifest-relative path.
func (m *Manifest) Abs(p string) string {
	if filepath.IsAbs(p) || m.Root == "" {
		return p
	}
	return filepath.Join(m.Root, p)
}
