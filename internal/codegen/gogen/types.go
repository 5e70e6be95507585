package gogen

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"idlc/internal/codegen"
	"idlc/internal/diag"
	"idlc/internal/ir"
)

var primTypes = map[ir.Prim]string{
	ir.PrimBool:     "bool",
	ir.PrimI8:       "int8",
	ir.PrimI16:      "int16",
	ir.PrimI32:      "int32",
	ir.PrimI64:      "int64",
	ir.PrimU32:      "uint32",
	ir.PrimU64:      "uint64",
	ir.PrimS32:      "int32",
	ir.PrimS64:      "int64",
	ir.PrimFixed32:  "uint32",
	ir.PrimFixed64:  "uint64",
	ir.PrimSfixed32: "int32",
	ir.PrimSfixed64: "int64",
	ir.PrimF32:      "float32",
	ir.PrimF64:      "float64",
	ir.PrimString:   "string",
	ir.PrimBinary:   "[]byte",
}

func (g *generator) primType(p ir.Prim) string {
	if p == ir.PrimUUID {
		return g.useThrift() + ".Tuuid"
	}
	if s, ok := primTypes[p]; ok {
		return s
	}
	return "any"
}

// goType spells t as it appears in a field or container: structs and
// unions are pointers.
func (g *generator) goType(t *ir.TypeRef) string {
	switch t.Kind {
	case ir.TypePrim:
		return g.primType(t.Prim)
	case ir.TypeList, ir.TypeSet:
		return "[]" + g.goType(t.Elem)
	case ir.TypeMap:
		if !g.comparable(t.Key) {
			g.unsupported(t, "map key is not comparable in Go")
		}
		return "map[" + g.goType(t.Key) + "]" + g.goType(t.Value)
	}
	d := g.schema.Resolve(t.Target)
	if d == nil {
		g.fail(codegen.Errorf(diag.GenBackendFailed, g.modPath(), "unresolved type %s", t.Name))
		return "any"
	}
	if g.isMessage(t) {
		return "*" + g.qualName(d)
	}
	return g.qualName(d)
}

// baseType is goType without the pointer of a named message.
func (g *generator) baseType(t *ir.TypeRef) string {
	if t.Kind == ir.TypeNamed {
		return strings.TrimPrefix(g.goType(t), "*")
	}
	return g.goType(t)
}

func (g *generator) comparable(t *ir.TypeRef) bool {
	u := g.schema.Underlying(t)
	switch u.Kind {
	case ir.TypePrim:
		return u.Prim != ir.PrimBinary
	case ir.TypeNamed:
		d := g.schema.Target(u)
		return d != nil && d.Kind == ir.DeclEnum
	}
	return false
}

// isMessage reports whether t resolves, through typedefs, to a struct or
// union.
func (g *generator) isMessage(t *ir.TypeRef) bool {
	d := g.schema.Target(t)
	return d != nil && (d.Kind == ir.DeclStruct || d.Kind == ir.DeclUnion)
}

func (g *generator) enumOf(t *ir.TypeRef) *ir.Decl {
	d := g.schema.Target(t)
	if d != nil && d.Kind == ir.DeclEnum {
		return d
	}
	return nil
}

// pointerField: optional scalars and every union member are stored behind
// a pointer; messages already are, containers and binary use nil.
func (g *generator) pointerField(f *ir.Field, union bool) bool {
	u := g.schema.Underlying(f.Type)
	if u.IsContainer() || g.isMessage(f.Type) {
		return false
	}
	if u.Kind == ir.TypePrim && u.Prim == ir.PrimBinary {
		return false
	}
	return union || f.Req == ir.Optional
}

func (g *generator) fieldType(f *ir.Field, union bool) string {
	if g.pointerField(f, union) {
		return "*" + g.goType(f.Type)
	}
	return g.goType(f.Type)
}

func (g *generator) zero(t *ir.TypeRef) string {
	u := g.schema.Underlying(t)
	if u.Kind == ir.TypePrim {
		switch u.Prim {
		case ir.PrimBool:
			return "false"
		case ir.PrimString:
			return `""`
		case ir.PrimBinary:
			return "nil"
		case ir.PrimUUID:
			return g.primType(u.Prim) + "{}"
		}
		return "0"
	}
	if g.enumOf(u) != nil {
		return "0"
	}
	return "nil"
}

// isConstType reports whether a value of t can be a Go constant.
func (g *generator) isConstType(t *ir.TypeRef) bool {
	u := g.schema.Underlying(t)
	if u.Kind == ir.TypePrim {
		return u.Prim != ir.PrimBinary && u.Prim != ir.PrimUUID
	}
	return g.enumOf(u) != nil
}

// literal renders v as a Go expression of type t.
func (g *generator) literal(t *ir.TypeRef, v *ir.ConstValue) string {
	if v.Kind == ir.ConstRef {
		return g.refLiteral(t, v)
	}
	u := g.schema.Underlying(t)
	switch u.Kind {
	case ir.TypePrim:
		if s, ok := g.primLiteral(u.Prim, v); ok {
			return s
		}
	case ir.TypeList, ir.TypeSet:
		elems := make([]string, len(v.Elems))
		for i, e := range v.Elems {
			elems[i] = g.literal(u.Elem, e)
		}
		return g.goType(u) + "{" + strings.Join(elems, ", ") + "}"
	case ir.TypeMap:
		entries := make([]string, len(v.Entries))
		for i, e := range v.Entries {
			entries[i] = g.literal(u.Key, e.Key) + ": " + g.literal(u.Value, e.Value)
		}
		return g.goType(u) + "{" + strings.Join(entries, ", ") + "}"
	case ir.TypeNamed:
		if d := g.enumOf(u); d != nil && v.Kind == ir.ConstInt {
			return fmt.Sprintf("%s(%d)", g.qualName(d), v.Int)
		}
	}
	g.unsupported(t, "value cannot be written as a Go literal")
	return g.zero(t)
}

func (g *generator) refLiteral(t *ir.TypeRef, v *ir.ConstValue) string {
	d := g.schema.Resolve(v.Target)
	if d == nil {
		g.fail(codegen.Errorf(diag.GenBackendFailed, g.modPath(), "unresolved constant %s", v.Ref))
		return g.zero(t)
	}
	if d.Kind == ir.DeclEnum {
		ev, ok := d.EnumValue(v.Member)
		if !ok {
			g.fail(codegen.Errorf(diag.GenBackendFailed, g.modPath(), "enum %s has no value %s", d.Name, v.Member))
			return g.zero(t)
		}
		return g.qualify(d, g.names.EnumValue(d, g.typeNames[d.Ref()], ev))
	}
	return g.qualName(d)
}

func (g *generator) primLiteral(p ir.Prim, v *ir.ConstValue) (string, bool) {
	switch {
	case p == ir.PrimBool:
		switch v.Kind {
		case ir.ConstBool:
			return strconv.FormatBool(v.Bool), true
		case ir.ConstInt:
			return strconv.FormatBool(v.Int != 0), true
		}
	case p.IsInteger():
		if v.Kind == ir.ConstInt {
			return strconv.FormatInt(v.Int, 10), true
		}
	case p.IsFloat():
		switch v.Kind {
		case ir.ConstInt:
			return strconv.FormatInt(v.Int, 10), true
		case ir.ConstFloat:
			return strconv.FormatFloat(v.Float, 'g', -1, 64), true
		}
	case p == ir.PrimString:
		if v.Kind == ir.ConstString {
			return strconv.Quote(v.Str), true
		}
	case p == ir.PrimBinary:
		if v.Kind == ir.ConstString {
			return "[]byte(" + strconv.Quote(v.Str) + ")", true
		}
	case p == ir.PrimUUID:
		if v.Kind != ir.ConstString {
			return "", false
		}
		id, err := uuid.Parse(v.Str)
		if err != nil {
			return "", false
		}
		parts := make([]string, len(id))
		for i, b := range id {
			parts[i] = fmt.Sprintf("0x%02x", b)
		}
		return g.primType(p) + "{" + strings.Join(parts, ", ") + "}", true
	}
	return "", false
}

// sortedKeys emits a sorted copy of the keys of map expr, whose type is u,
// and returns the variable holding it. Maps are written in key order so
// the encoding does not depend on Go's iteration order.
func (g *generator) sortedKeys(u *ir.TypeRef, expr string) string {
	keys, k := g.fresh("keys"), g.fresh("k")
	g.use("sort")
	g.p("%s := make([]%s, 0, len(%s))", keys, g.goType(u.Key), expr)
	g.p("for %s := range %s {", k, expr)
	g.p("%s = append(%s, %s)", keys, keys, k)
	g.p("}")
	ku := g.schema.Underlying(u.Key)
	switch {
	case ku.Kind == ir.TypePrim && ku.Prim == ir.PrimBool:
		g.p("sort.Slice(%s, func(i, j int) bool { return !%s[i] && %s[j] })", keys, keys, keys)
	case ku.Kind == ir.TypePrim && ku.Prim == ir.PrimUUID:
		g.use("bytes")
		g.p("sort.Slice(%s, func(i, j int) bool { return bytes.Compare(%s[i][:], %s[j][:]) < 0 })", keys, keys, keys)
	default:
		g.p("sort.Slice(%s, func(i, j int) bool { return %s[i] < %s[j] })", keys, keys, keys)
	}
	return keys
}
