package ir

import (
	"strings"

	"idlc/internal/source"
	"idlc/internal/token"
)

// Prim is a primitive type tag shared by both dialects. Proto-only wire
// variants (sint, fixed) are kept distinct because they change the encoding.
type Prim uint8

const (
	PrimInvalid Prim = iota
	PrimBool
	PrimI8
	PrimI16
	PrimI32
	PrimI64
	PrimU32
	PrimU64
	PrimS32 // zigzag
	PrimS64
	PrimFixed32
	PrimFixed64
	PrimSfixed32
	PrimSfixed64
	PrimF32
	PrimF64
	PrimString
	PrimBinary
	PrimUUID
)

var primNames = [...]string{
	PrimInvalid:  "invalid",
	PrimBool:     "bool",
	PrimI8:       "i8",
	PrimI16:      "i16",
	PrimI32:      "i32",
	PrimI64:      "i64",
	PrimU32:      "u32",
	PrimU64:      "u64",
	PrimS32:      "s32",
	PrimS64:      "s64",
	PrimFixed32:  "fixed32",
	PrimFixed64:  "fixed64",
	PrimSfixed32: "sfixed32",
	PrimSfixed64: "sfixed64",
	PrimF32:      "f32",
	PrimF64:      "f64",
	PrimString:   "string",
	PrimBinary:   "binary",
	PrimUUID:     "uuid",
}

func (p Prim) String() string {
	if int(p) < len(primNames) {
		return primNames[p]
	}
	return "invalid"
}

func (p Prim) IsInteger() bool {
	return p >= PrimI8 && p <= PrimSfixed64
}

func (p Prim) IsFloat() bool {
	return p == PrimF32 || p == PrimF64
}

// IsScalar reports whether values of p can be packed on the proto wire.
func (p Prim) IsScalar() bool {
	return p == PrimBool || p.IsInteger() || p.IsFloat()
}

var thriftPrims = map[string]Prim{
	"bool":   PrimBool,
	"byte":   PrimI8,
	"i8":     PrimI8,
	"i16":    PrimI16,
	"i32":    PrimI32,
	"i64":    PrimI64,
	"double": PrimF64,
	"string": PrimString,
	"binary": PrimBinary,
	"uuid":   PrimUUID,
}

var protoPrims = map[string]Prim{
	"bool":     PrimBool,
	"int32":    PrimI32,
	"int64":    PrimI64,
	"uint32":   PrimU32,
	"uint64":   PrimU64,
	"sint32":   PrimS32,
	"sint64":   PrimS64,
	"fixed32":  PrimFixed32,
	"fixed64":  PrimFixed64,
	"sfixed32": PrimSfixed32,
	"sfixed64": PrimSfixed64,
	"float":    PrimF32,
	"double":   PrimF64,
	"string":   PrimString,
	"bytes":    PrimBinary,
}

// LookupPrim maps a base type name of the dialect to its tag.
func LookupPrim(d token.Dialect, name string) (Prim, bool) {
	var p Prim
	var ok bool
	if d == token.DialectProto {
		p, ok = protoPrims[name]
	} else {
		p, ok = thriftPrims[name]
	}
	return p, ok
}

type TypeKind uint8

const (
	TypePrim TypeKind = iota
	TypeList
	TypeSet
	TypeMap
	TypeNamed
)

// DeclRef is the stable identity of a declaration: module path plus the
// declaration's (possibly dotted) local name. It survives re-lowering, unlike
// arena handles.
type DeclRef struct {
	Module string
	Name   string
}

func (r DeclRef) IsZero() bool { return r.Module == "" && r.Name == "" }

func (r DeclRef) String() string {
	if r.IsZero() {
		return "<unresolved>"
	}
	return r.Module + "#" + r.Name
}

// Less orders refs by (module path, name).
func (r DeclRef) Less(o DeclRef) bool {
	if r.Module != o.Module {
		return r.Module < o.Module
	}
	return r.Name < o.Name
}

type TypeRef struct {
	Kind  TypeKind
	Prim  Prim
	Elem  *TypeRef `msgpack:",omitempty"`
	Key   *TypeRef `msgpack:",omitempty"`
	Value *TypeRef `msgpack:",omitempty"`

	// Name is the symbolic reference as written; Target is filled by the
	// resolver.
	Name   string  `msgpack:",omitempty"`
	Target DeclRef `msgpack:",omitempty"`

	// Entry is the local name of a synthesized proto map-entry struct.
	Entry string `msgpack:",omitempty"`

	Span source.Span `msgpack:"-"`
}

func NewPrim(p Prim, sp source.Span) *TypeRef {
	return &TypeRef{Kind: TypePrim, Prim: p, Span: sp}
}

func NewNamed(name string, sp source.Span) *TypeRef {
	return &TypeRef{Kind: TypeNamed, Name: name, Span: sp}
}

func (t *TypeRef) IsContainer() bool {
	return t != nil && (t.Kind == TypeList || t.Kind == TypeSet || t.Kind == TypeMap)
}

func (t *TypeRef) Resolved() bool {
	return t.Kind != TypeNamed || !t.Target.IsZero()
}

func (t *TypeRef) String() string {
	if t == nil {
		return "void"
	}
	switch t.Kind {
	case TypePrim:
		return t.Prim.String()
	case TypeList:
		return "list<" + t.Elem.String() + ">"
	case TypeSet:
		return "set<" + t.Elem.String() + ">"
	case TypeMap:
		return "map<" + t.Key.String() + "," + t.Value.String() + ">"
	}
	if !t.Target.IsZero() {
		return t.Target.String()
	}
	return t.Name
}

// Clone returns a deep copy.
func (t *TypeRef) Clone() *TypeRef {
	if t == nil {
		return nil
	}
	c := *t
	c.Elem = t.Elem.Clone()
	c.Key = t.Key.Clone()
	c.Value = t.Value.Clone()
	return &c
}

// Walk calls fn for t and every type nested in it, outermost first.
func (t *TypeRef) Walk(fn func(*TypeRef)) {
	if t == nil {
		return
	}
	fn(t)
	t.Elem.Walk(fn)
	t.Key.Walk(fn)
	t.Value.Walk(fn)
}

// SplitName splits a dotted name into its qualifier and last segment.
func SplitName(name string) (qual, last string) {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return name[:i], name[i+1:]
	}
	return "", name
}
