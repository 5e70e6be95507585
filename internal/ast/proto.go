package ast

import "idlc/internal/source"

type Oneof struct {
	Name    Ident
	Fields  []*Field
	Options []Annotation
	Doc     string
	Span    source.Span
}

type ProtoMessage struct {
	Name     Ident
	Fields   []*Field
	Oneofs   []*Oneof
	Nested   []Decl
	Reserved []Reserved
	Options  []Annotation
	Doc      string
	Span     source.Span
}

type ProtoEnum struct {
	Name     Ident
	Values   []*EnumValue
	Reserved []Reserved
	Options  []Annotation
	Doc      string
	Span     source.Span
}

type ProtoService struct {
	Name    Ident
	Methods []*Method
	Options []Annotation
	Doc     string
	Span    source.Span
}

func (d *ProtoMessage) DeclName() Ident { return d.Name }
func (d *ProtoEnum) DeclName() Ident    { return d.Name }
func (d *ProtoService) DeclName() Ident { return d.Name }

func (d *ProtoMessage) DeclSpan() source.Span { return d.Span }
func (d *ProtoEnum) DeclSpan() source.Span    { return d.Span }
func (d *ProtoService) DeclSpan() source.Span { return d.Span }

func (*ProtoMessage) declNode() {}
func (*ProtoEnum) declNode()    {}
func (*ProtoService) declNode() {}
