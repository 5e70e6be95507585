package ast

import (
	"idlc/internal/source"
	"idlc/internal/token"
)

type ImportKind uint8

const (
	ImportPlain ImportKind = iota
	ImportPublic
	ImportWeak
)

// Import is a Thrift `include` or a Protobuf `import`.
type Import struct {
	Path string
	Kind ImportKind
	Span source.Span
}

// Namespace is a Thrift `namespace <scope> <name>` line.
type Namespace struct {
	Scope string
	Name  string
	Span  source.Span
}

type File struct {
	Dialect    token.Dialect
	Path       string
	Span       source.Span
	Syntax     string // "proto2" / "proto3"; пусто для thrift и при отсутствии syntax
	SyntaxSpan source.Span
	Package    *QualName // proto package
	Namespaces []Namespace
	Imports    []Import
	Options    []Annotation // proto file options
	Decls      []Decl
}

// Namespace returns the namespace name for scope, falling back to "*".
func (f *File) Namespace(scope string) (string, bool) {
	var star string
	var haveStar bool
	for _, ns := range f.Namespaces {
		if ns.Scope == scope {
			return ns.Name, true
		}
		if ns.Scope == "*" {
			star, haveStar = ns.Name, true
		}
	}
	return star, haveStar
}
