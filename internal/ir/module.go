package ir

import (
	"idlc/internal/source"
	"idlc/internal/token"
)

// Import keeps the path as written. Resolved is the module path the loader
// found for it, empty when the import is missing.
type Import struct {
	Path     string
	Resolved string      `msgpack:",omitempty"`
	Public   bool        `msgpack:",omitempty"`
	Weak     bool        `msgpack:",omitempty"`
	Span     source.Span `msgpack:"-"`
}

type Namespace struct {
	Scope string
	Name  string
}

// Module is one lowered input file. It is immutable after lowering; the
// resolver works on a Clone.
type Module struct {
	Path       string
	Package    string
	Dialect    token.Dialect
	Syntax     string       `msgpack:",omitempty"`
	Namespaces []Namespace  `msgpack:",omitempty"`
	Imports    []Import     `msgpack:",omitempty"`
	Options    []Annotation `msgpack:",omitempty"`
	Decls      []*Decl
	Span       source.Span `msgpack:"-"`
}

// Decl returns the declaration with the given local name.
func (m *Module) Decl(name string) *Decl {
	for _, d := range m.Decls {
		if d.Name == name {
			return d
		}
	}
	return nil
}

// Namespace returns the namespace for scope, falling back to "*".
func (m *Module) Namespace(scope string) (string, bool) {
	var star string
	var haveStar bool
	for _, ns := range m.Namespaces {
		if ns.Scope == scope {
			return ns.Name, true
		}
		if ns.Scope == "*" {
			star, haveStar = ns.Name, true
		}
	}
	return star, haveStar
}

func (m *Module) Option(name string) (string, bool) {
	for _, o := range m.Options {
		if o.Name == name {
			return o.Value, true
		}
	}
	return "", false
}

func (m *Module) Clone() *Module {
	c := *m
	c.Namespaces = append([]Namespace(nil), m.Namespaces...)
	c.Imports = append([]Import(nil), m.Imports...)
	c.Options = append([]Annotation(nil), m.Options...)
	c.Decls = make([]*Decl, len(m.Decls))
	for i, d := range m.Decls {
		c.Decls[i] = d.Clone()
	}
	return &c
}

// shell copies module metadata without declarations.
func (m *Module) shell() *Module {
	return &Module{
		Path:       m.Path,
		Package:    m.Package,
		Dialect:    m.Dialect,
		Syntax:     m.Syntax,
		Namespaces: append([]Namespace(nil), m.Namespaces...),
		Options:    append([]Annotation(nil), m.Options...),
	}
}

func (m *Module) clearSpans() {
	m.Span = source.Span{}
	for i := range m.Imports {
		m.Imports[i].Span = source.Span{}
	}
	for _, d := range m.Decls {
		d.clearSpans()
	}
}

func (d *Decl) clearSpans() {
	d.Span, d.NameSpan = source.Span{}, source.Span{}
	clearType := func(t *TypeRef) { t.Walk(func(t *TypeRef) { t.Span = source.Span{} }) }
	clearConst := func(c *ConstValue) { c.Walk(func(c *ConstValue) { c.Span = source.Span{} }) }
	clearField := func(f *Field) {
		f.Span = source.Span{}
		clearType(f.Type)
		clearConst(f.Default)
	}
	for _, f := range d.Fields {
		clearField(f)
	}
	for i := range d.Values {
		d.Values[i].Span = source.Span{}
	}
	for _, m := range d.Methods {
		m.Span = source.Span{}
		for _, a := range m.Args {
			clearField(a)
		}
		for _, t := range m.Throws {
			clearField(t)
		}
		clearType(m.Result)
	}
	clearType(d.Extends)
	clearType(d.Type)
	clearConst(d.Value)
}
