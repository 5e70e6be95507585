package ir

import (
	"slices"
	"sort"
	"strings"

	"idlc/internal/token"
)

// SymbolTable maps the local names of one module to its declarations. It is
// filled during lowering and only read afterwards.
type SymbolTable struct {
	Module  string
	Package string
	names   map[string]*Decl
	order   []string
}

func NewSymbolTable(module, pkg string) *SymbolTable {
	return &SymbolTable{
		Module:  module,
		Package: pkg,
		names:   make(map[string]*Decl),
	}
}

// Define registers d under its name. When the name is taken the table is
// left untouched and the previous declaration is returned.
func (t *SymbolTable) Define(d *Decl) (prev *Decl, ok bool) {
	if prev, exists := t.names[d.Name]; exists {
		return prev, false
	}
	t.names[d.Name] = d
	t.order = append(t.order, d.Name)
	return nil, true
}

func (t *SymbolTable) Lookup(name string) (*Decl, bool) {
	d, ok := t.names[name]
	return d, ok
}

func (t *SymbolTable) Len() int { return len(t.order) }

// Names returns the defined names in definition order.
func (t *SymbolTable) Names() []string {
	return slices.Clone(t.order)
}

// Export is one name in a module's public surface.
type Export struct {
	Name      string
	Kind      DeclKind
	Exception bool     `msgpack:",omitempty"`
	Members   []string `msgpack:",omitempty"` // enum value names
}

// Exports is the span-free public surface of a module: everything other
// modules need for name resolution. Two modules whose bodies differ but whose
// Exports are equal resolve their importers identically.
type Exports struct {
	Module  string
	Package string
	Dialect token.Dialect
	Names   []Export // отсортированы по имени
	Imports []string `msgpack:",omitempty"` // найденные импорты, в порядке объявления
	Public  []string `msgpack:",omitempty"` // модули, реэкспортированные через import public
}

// BuildExports derives the export surface of m. resolved, when not nil,
// gives the loaded module path of each import and overrides Import.Resolved.
func BuildExports(m *Module, resolved []string) *Exports {
	e := &Exports{Module: m.Path, Package: m.Package, Dialect: m.Dialect}
	for _, d := range m.Decls {
		x := Export{Name: d.Name, Kind: d.Kind, Exception: d.Exception}
		for _, v := range d.Values {
			x.Members = append(x.Members, v.Name)
		}
		e.Names = append(e.Names, x)
	}
	sort.SliceStable(e.Names, func(i, j int) bool { return e.Names[i].Name < e.Names[j].Name })
	for i, imp := range m.Imports {
		path := imp.Resolved
		if resolved != nil && i < len(resolved) {
			path = resolved[i]
		}
		if path == "" {
			continue
		}
		e.Imports = append(e.Imports, path)
		if imp.Public {
			e.Public = append(e.Public, path)
		}
	}
	return e
}

func (e *Exports) Lookup(name string) (Export, bool) {
	i := sort.Search(len(e.Names), func(i int) bool { return e.Names[i].Name >= name })
	if i < len(e.Names) && e.Names[i].Name == name {
		return e.Names[i], true
	}
	return Export{}, false
}

// HasMember reports whether name is an enum declared here with member value.
func (e *Exports) HasMember(name, member string) bool {
	x, ok := e.Lookup(name)
	return ok && x.Kind == DeclEnum && slices.Contains(x.Members, member)
}

// PackageMatches reports whether a qualifier written in source names this
// module's package.
func (e *Exports) PackageMatches(qual string) bool {
	if qual == "" {
		return false
	}
	return e.Package == strings.TrimPrefix(qual, ".")
}
