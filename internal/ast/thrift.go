package ast

import "idlc/internal/source"

type StructKind uint8

const (
	KindStruct StructKind = iota
	KindUnion
	KindException
)

func (k StructKind) String() string {
	switch k {
	case KindUnion:
		return "union"
	case KindException:
		return "exception"
	default:
		return "struct"
	}
}

// ThriftStruct covers struct, union and exception.
type ThriftStruct struct {
	Kind        StructKind
	Name        Ident
	Fields      []*Field
	Annotations []Annotation
	Doc         string
	Span        source.Span
}

type ThriftEnum struct {
	Name        Ident
	Values      []*EnumValue
	Annotations []Annotation
	Doc         string
	Span        source.Span
}

type ThriftService struct {
	Name        Ident
	Extends     *QualName
	Methods     []*Method
	Annotations []Annotation
	Doc         string
	Span        source.Span
}

type ThriftTypedef struct {
	Name        Ident
	Type        *TypeExpr
	Annotations []Annotation
	Doc         string
	Span        source.Span
}

type ThriftConst struct {
	Name  Ident
	Type  *TypeExpr
	Value *ConstExpr
	Doc   string
	Span  source.Span
}

func (d *ThriftStruct) DeclName() Ident  { return d.Name }
func (d *ThriftEnum) DeclName() Ident    { return d.Name }
func (d *ThriftService) DeclName() Ident { return d.Name }
func (d *ThriftTypedef) DeclName() Ident { return d.Name }
func (d *ThriftConst) DeclName() Ident   { return d.Name }

func (d *ThriftStruct) DeclSpan() source.Span  { return d.Span }
func (d *ThriftEnum) DeclSpan() source.Span    { return d.Span }
func (d *ThriftService) DeclSpan() source.Span { return d.Span }
func (d *ThriftTypedef) DeclSpan() source.Span { return d.Span }
func (d *ThriftConst) DeclSpan() source.Span   { return d.Span }

func (*ThriftStruct) declNode()  {}
func (*ThriftEnum) declNode()    {}
func (*ThriftService) declNode() {}
func (*ThriftTypedef) declNode() {}
func (*ThriftConst) declNode()   {}
