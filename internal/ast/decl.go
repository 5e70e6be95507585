package ast

import (
	"idlc/internal/source"
)

// Decl is any top-level or nested declaration node.
type Decl interface {
	DeclName() Ident
	DeclSpan() source.Span
	declNode()
}

type Ident struct {
	Name string
	Span source.Span
}

// QualName is a possibly dotted name as written. A leading '.' (proto) marks
// a fully qualified name and is kept in Text.
type QualName struct {
	Text string
	Span source.Span
}

// Annotation is a Thrift `(key = "value")` annotation or a Protobuf option.
// Custom proto options keep their parentheses: "(idlc.name)".
type Annotation struct {
	Name  string
	Value *ConstExpr // nil for a bare thrift annotation
	Span  source.Span
}

type Label uint8

const (
	LabelNone Label = iota
	LabelRequired
	LabelOptional
	LabelRepeated
)

func (l Label) String() string {
	switch l {
	case LabelRequired:
		return "required"
	case LabelOptional:
		return "optional"
	case LabelRepeated:
		return "repeated"
	default:
		return ""
	}
}

type Field struct {
	ID          int64
	HasID       bool
	IDSpan      source.Span
	Label       Label
	LabelSpan   source.Span
	Name        Ident
	Type        *TypeExpr
	Default     *ConstExpr
	Annotations []Annotation
	Doc         string
	Span        source.Span
}

// Annotation returns the value of the annotation called name.
func (f *Field) Annotation(name string) (*Annotation, bool) {
	return FindAnnotation(f.Annotations, name)
}

func FindAnnotation(list []Annotation, name string) (*Annotation, bool) {
	for i := range list {
		if list[i].Name == name {
			return &list[i], true
		}
	}
	return nil, false
}

type EnumValue struct {
	Name        Ident
	Value       int64
	HasValue    bool
	Annotations []Annotation
	Doc         string
	Span        source.Span
}

type Method struct {
	Name         Ident
	Oneway       bool
	Result       *TypeExpr // nil means void
	Args         []*Field
	Throws       []*Field
	ArgStream    bool // proto `stream Req`
	ResultStream bool
	Annotations  []Annotation
	Doc          string
	Span         source.Span
}

// Range is an inclusive field-number range of a `reserved` statement.
type Range struct {
	Lo, Hi int64
}

type Reserved struct {
	Ranges []Range
	Names  []string
	Span   source.Span
}

// Contains reports whether the field number n falls into any reserved range.
func (r Reserved) Contains(n int64) bool {
	for _, rg := range r.Ranges {
		if n >= rg.Lo && n <= rg.Hi {
			return true
		}
	}
	return false
}
