package ir

import (
	"idlc/internal/source"
)

type DeclKind uint8

const (
	DeclStruct DeclKind = iota
	DeclUnion
	DeclEnum
	DeclService
	DeclTypedef
	DeclConst
)

func (k DeclKind) String() string {
	switch k {
	case DeclStruct:
		return "struct"
	case DeclUnion:
		return "union"
	case DeclEnum:
		return "enum"
	case DeclService:
		return "service"
	case DeclTypedef:
		return "typedef"
	case DeclConst:
		return "const"
	}
	return "invalid"
}

// IsType reports whether declarations of this kind may appear in type position.
func (k DeclKind) IsType() bool {
	return k == DeclStruct || k == DeclUnion || k == DeclEnum || k == DeclTypedef
}

// Requiredness is the unified presence model.
type Requiredness uint8

const (
	DefaultSingular Requiredness = iota // no explicit presence tracking
	Required
	Optional
)

func (r Requiredness) String() string {
	switch r {
	case Required:
		return "required"
	case Optional:
		return "optional"
	}
	return "default"
}

// Synthetic marks declarations the lowering created for desugared constructs.
type Synthetic uint8

const (
	SynthNone Synthetic = iota
	SynthMapEntry
	SynthOneof
)

type Annotation struct {
	Name  string
	Value string
}

type Field struct {
	ID       int64
	Name     string
	GenName  string `msgpack:",omitempty"` // idlc.name override
	Type     *TypeRef
	Req      Requiredness
	Default  *ConstValue `msgpack:",omitempty"`
	Packed   bool        `msgpack:",omitempty"`
	JSONName string      `msgpack:",omitempty"`
	// Oneof marks the tag-less field embedding a synthesized oneof union.
	Oneof       bool         `msgpack:",omitempty"`
	Deprecated  bool         `msgpack:",omitempty"`
	Annotations []Annotation `msgpack:",omitempty"`
	Doc         string       `msgpack:",omitempty"`
	Span        source.Span  `msgpack:"-"`
}

// Indirect reports whether a value of the field's type is not stored inline.
// Containers and optional fields break value-type cycles.
func (f *Field) Indirect() bool {
	return f.Req == Optional || f.Type.IsContainer()
}

func (f *Field) Clone() *Field {
	if f == nil {
		return nil
	}
	c := *f
	c.Type = f.Type.Clone()
	c.Default = f.Default.Clone()
	c.Annotations = append([]Annotation(nil), f.Annotations...)
	return &c
}

type EnumValue struct {
	Name    string
	GenName string `msgpack:",omitempty"`
	Value   int64
	Doc     string      `msgpack:",omitempty"`
	Span    source.Span `msgpack:"-"`
}

type Method struct {
	Name         string
	GenName      string      `msgpack:",omitempty"`
	Args         []*Field    `msgpack:",omitempty"`
	Result       *TypeRef    `msgpack:",omitempty"` // nil — void
	Throws       []*Field    `msgpack:",omitempty"`
	Oneway       bool        `msgpack:",omitempty"`
	ArgStream    bool        `msgpack:",omitempty"`
	ResultStream bool        `msgpack:",omitempty"`
	Doc          string      `msgpack:",omitempty"`
	Span         source.Span `msgpack:"-"`
}

func (m *Method) Clone() *Method {
	c := *m
	c.Args = cloneFields(m.Args)
	c.Throws = cloneFields(m.Throws)
	c.Result = m.Result.Clone()
	return &c
}

type ConstKind uint8

const (
	ConstInt ConstKind = iota
	ConstFloat
	ConstString
	ConstBool
	ConstList
	ConstMap
	ConstRef // reference to a const or an enum value
)

type ConstEntry struct {
	Key   *ConstValue
	Value *ConstValue
}

type ConstValue struct {
	Kind    ConstKind
	Int     int64         `msgpack:",omitempty"`
	Float   float64       `msgpack:",omitempty"`
	Str     string        `msgpack:",omitempty"`
	Bool    bool          `msgpack:",omitempty"`
	Elems   []*ConstValue `msgpack:",omitempty"`
	Entries []ConstEntry  `msgpack:",omitempty"`

	// ConstRef: name as written, resolved target and, for enum targets,
	// the value name.
	Ref    string  `msgpack:",omitempty"`
	Target DeclRef `msgpack:",omitempty"`
	Member string  `msgpack:",omitempty"`

	Span source.Span `msgpack:"-"`
}

func (c *ConstValue) Clone() *ConstValue {
	if c == nil {
		return nil
	}
	out := *c
	if c.Elems != nil {
		out.Elems = make([]*ConstValue, len(c.Elems))
		for i, e := range c.Elems {
			out.Elems[i] = e.Clone()
		}
	}
	if c.Entries != nil {
		out.Entries = make([]ConstEntry, len(c.Entries))
		for i, e := range c.Entries {
			out.Entries[i] = ConstEntry{Key: e.Key.Clone(), Value: e.Value.Clone()}
		}
	}
	return &out
}

// Walk visits c and all nested values.
func (c *ConstValue) Walk(fn func(*ConstValue)) {
	if c == nil {
		return
	}
	fn(c)
	for _, e := range c.Elems {
		e.Walk(fn)
	}
	for _, e := range c.Entries {
		e.Key.Walk(fn)
		e.Value.Walk(fn)
	}
}

// Decl is one IR declaration. Only the fields relevant to Kind are set.
type Decl struct {
	Kind      DeclKind
	Name      string // локальное имя; вложенные proto-объявления через точку
	GenName   string `msgpack:",omitempty"`
	Module    string
	Scope     string    `msgpack:",omitempty"` // proto: охватывающее сообщение
	Exception bool      `msgpack:",omitempty"`
	Synthetic Synthetic `msgpack:",omitempty"`

	Fields  []*Field    `msgpack:",omitempty"` // struct, union
	Values  []EnumValue `msgpack:",omitempty"` // enum
	Methods []*Method   `msgpack:",omitempty"` // service
	Extends *TypeRef    `msgpack:",omitempty"` // service
	Type    *TypeRef    `msgpack:",omitempty"` // typedef, const
	Value   *ConstValue `msgpack:",omitempty"` // const

	Annotations []Annotation `msgpack:",omitempty"`
	Doc         string       `msgpack:",omitempty"`
	Span        source.Span  `msgpack:"-"`
	NameSpan    source.Span  `msgpack:"-"`
}

func (d *Decl) Ref() DeclRef {
	return DeclRef{Module: d.Module, Name: d.Name}
}

// Field returns the field with the given id.
func (d *Decl) Field(id int64) *Field {
	for _, f := range d.Fields {
		if f.ID == id && !f.Oneof {
			return f
		}
	}
	return nil
}

// EnumValue returns the enum value called name.
func (d *Decl) EnumValue(name string) (EnumValue, bool) {
	for _, v := range d.Values {
		if v.Name == name {
			return v, true
		}
	}
	return EnumValue{}, false
}

func (d *Decl) Annotation(name string) (string, bool) {
	for _, a := range d.Annotations {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}

func (d *Decl) Clone() *Decl {
	c := *d
	c.Fields = cloneFields(d.Fields)
	if d.Values != nil {
		c.Values = append([]EnumValue(nil), d.Values...)
	}
	if d.Methods != nil {
		c.Methods = make([]*Method, len(d.Methods))
		for i, m := range d.Methods {
			c.Methods[i] = m.Clone()
		}
	}
	c.Extends = d.Extends.Clone()
	c.Type = d.Type.Clone()
	c.Value = d.Value.Clone()
	c.Annotations = append([]Annotation(nil), d.Annotations...)
	return &c
}

// TypeRefs calls fn for every top-level type reference held by the
// declaration, in declaration order.
func (d *Decl) TypeRefs(fn func(*TypeRef)) {
	for _, f := range d.Fields {
		fn(f.Type)
	}
	for _, m := range d.Methods {
		for _, a := range m.Args {
			fn(a.Type)
		}
		if m.Result != nil {
			fn(m.Result)
		}
		for _, t := range m.Throws {
			fn(t.Type)
		}
	}
	if d.Extends != nil {
		fn(d.Extends)
	}
	if d.Type != nil {
		fn(d.Type)
	}
}

// ConstValues calls fn for every constant expression of the declaration.
func (d *Decl) ConstValues(fn func(*ConstValue)) {
	for _, f := range d.Fields {
		if f.Default != nil {
			fn(f.Default)
		}
	}
	for _, m := range d.Methods {
		for _, a := range m.Args {
			if a.Default != nil {
				fn(a.Default)
			}
		}
	}
	if d.Value != nil {
		fn(d.Value)
	}
}

func cloneFields(fs []*Field) []*Field {
	if fs == nil {
		return nil
	}
	out := make([]*Field, len(fs))
	for i, f := range fs {
		out[i] = f.Clone()
	}
	return out
}
