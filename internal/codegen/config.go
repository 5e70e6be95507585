package codegen

import (
	"path"
	"strings"

	"idlc/internal/ir"
)

type Layout string

const (
	LayoutPerModule  Layout = "per-module"
	LayoutSingleFile Layout = "single-file"
)

// CaseStyle controls how IDL names become target identifiers.
type CaseStyle string

const (
	CaseCamel CaseStyle = "camel" // user_id -> UserID
	CaseKeep  CaseStyle = "keep"  // user_id -> User_id
)

type Naming struct {
	ChangeCase CaseStyle
	// Overrides maps "module#Decl" or "module#Decl.member" to a target name.
	Overrides     map[string]string
	EscapeSuffix  string
	ReservedWords []string
}

type PathRule struct {
	Match string // префикс пути модуля
	Out   string // каталог относительно OutDir
}

type Paths struct {
	OutDir string
	Rules  []PathRule
	Layout Layout
}

type Features struct {
	MaterializeDefaults bool
	GenerateServices    bool
	// Roots restricts generation to these declarations ("module#Name") and
	// everything they reference. Empty means everything.
	Roots []string
}

// Config is the GenConfig handed to backends. It is plain data so that it
// can be fingerprinted as a query input.
type Config struct {
	Target    string
	Naming    Naming
	Paths     Paths
	Features  Features
	GoPackage string // префикс import path сгенерированных Go-пакетов

	keep map[ir.DeclRef]bool
}

func DefaultConfig() *Config {
	return &Config{
		Target:   "go",
		Naming:   Naming{ChangeCase: CaseCamel, EscapeSuffix: "_"},
		Paths:    Paths{OutDir: "gen", Layout: LayoutPerModule},
		Features: Features{GenerateServices: true},
	}
}

// WithSelection returns a copy of c restricted to sel.
func (c *Config) WithSelection(sel *Selection) *Config {
	cp := *c
	cp.keep = nil
	if sel != nil {
		cp.keep = sel.keep
	}
	return &cp
}

// Wants reports whether the declaration should be generated.
func (c *Config) Wants(ref ir.DeclRef) bool {
	return c.keep == nil || c.keep[ref]
}

// ModuleDir is the output directory of module relative to OutDir: the
// longest matching path rule wins, otherwise defaultDir.
func (c *Config) ModuleDir(module, defaultDir string) string {
	best := -1
	dir := defaultDir
	for _, r := range c.Paths.Rules {
		if strings.HasPrefix(module, r.Match) && len(r.Match) > best {
			best = len(r.Match)
			dir = r.Out
		}
	}
	return path.Clean(dir)
}

// OutPath joins OutDir with a backend-relative path.
func (c *Config) OutPath(rel string) string {
	if c.Paths.OutDir == "" {
		return path.Clean(rel)
	}
	return path.Join(c.Paths.OutDir, rel)
}

// ModuleStem is the file name of module without directory and extension.
func ModuleStem(module string) string {
	base := path.Base(module)
	if i := strings.LastIndexByte(base, '.'); i > 0 {
		base = base[:i]
	}
	return base
}
