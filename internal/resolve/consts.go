package resolve

import (
	"fmt"
	"slices"

	"fortio.org/safecast"

	"idlc/internal/diag"
	"idlc/internal/ir"
)

// underlying follows local typedef chains. Foreign typedefs are opaque here:
// their bodies are not part of the export surface.
func (r *moduleResolver) underlying(t *ir.TypeRef) *ir.TypeRef {
	for range 64 {
		if t == nil || t.Kind != ir.TypeNamed || t.Target.Module != r.mod.Path {
			return t
		}
		d := r.local[t.Target.Name]
		if d == nil || d.Kind != ir.DeclTypedef || d.Type == nil {
			return t
		}
		t = d.Type
	}
	return t
}

func (r *moduleResolver) badConst(c *ir.ConstValue, t *ir.TypeRef, why string) {
	msg := fmt.Sprintf("value is not a valid %s", t)
	if why != "" {
		msg += ": " + why
	}
	diag.ReportError(r.rep, diag.SemaInvalidDefault, c.Span, msg).Emit()
}

// constValue type-checks c against typ and resolves identifier values.
func (r *moduleResolver) constValue(c *ir.ConstValue, typ *ir.TypeRef, scope string) {
	if c == nil || typ == nil {
		return
	}
	t := r.underlying(typ)
	if c.Kind == ir.ConstRef {
		r.constRef(c, t, scope)
		return
	}
	switch t.Kind {
	case ir.TypePrim:
		r.checkPrim(c, t)
	case ir.TypeList, ir.TypeSet:
		if c.Kind != ir.ConstList {
			r.badConst(c, t, "expected a list literal")
			return
		}
		for _, e := range c.Elems {
			r.constValue(e, t.Elem, scope)
		}
	case ir.TypeMap:
		if c.Kind != ir.ConstMap {
			r.badConst(c, t, "expected a map literal")
			return
		}
		for _, e := range c.Entries {
			r.constValue(e.Key, t.Key, scope)
			r.constValue(e.Value, t.Value, scope)
		}
	case ir.TypeNamed:
		r.checkNamed(c, t, scope)
	}
}

func (r *moduleResolver) checkPrim(c *ir.ConstValue, t *ir.TypeRef) {
	p := t.Prim
	switch {
	case p == ir.PrimBool:
		if c.Kind == ir.ConstBool || (c.Kind == ir.ConstInt && (c.Int == 0 || c.Int == 1)) {
			return
		}
	case p.IsInteger():
		if c.Kind != ir.ConstInt {
			break
		}
		if err := intFits(p, c.Int); err != nil {
			r.badConst(c, t, err.Error())
		}
		return
	case p.IsFloat():
		if c.Kind == ir.ConstFloat || c.Kind == ir.ConstInt {
			return
		}
	case p == ir.PrimString || p == ir.PrimBinary || p == ir.PrimUUID:
		if c.Kind == ir.ConstString {
			return
		}
	}
	r.badConst(c, t, "")
}

// intFits проверяет диапазон значения для целочисленного примитива.
// 64-битные беззнаковые значения уже приведены к int64 парсером.
func intFits(p ir.Prim, v int64) error {
	var err error
	switch p {
	case ir.PrimI8:
		_, err = safecast.Conv[int8](v)
	case ir.PrimI16:
		_, err = safecast.Conv[int16](v)
	case ir.PrimI32, ir.PrimS32, ir.PrimSfixed32:
		_, err = safecast.Conv[int32](v)
	case ir.PrimU32, ir.PrimFixed32:
		_, err = safecast.Conv[uint32](v)
	}
	if err != nil {
		return fmt.Errorf("%d is out of range for %s", v, p)
	}
	return nil
}

func (r *moduleResolver) checkNamed(c *ir.ConstValue, t *ir.TypeRef, scope string) {
	x := r.exportOf(t.Target)
	switch x.Kind {
	case ir.DeclEnum:
		if c.Kind != ir.ConstInt {
			r.badConst(c, t, "expected an enum value")
		}
	case ir.DeclStruct, ir.DeclUnion:
		if c.Kind != ir.ConstMap {
			r.badConst(c, t, "expected a map literal with field names")
			return
		}
		var local *ir.Decl
		if t.Target.Module == r.mod.Path {
			local = r.local[t.Target.Name]
		}
		for _, e := range c.Entries {
			if e.Key == nil || e.Key.Kind != ir.ConstString {
				r.badConst(c, t, "field names must be string literals")
				continue
			}
			if local == nil {
				continue
			}
			f := fieldByName(local, e.Key.Str)
			if f == nil {
				r.badConst(e.Key, t, fmt.Sprintf("no field %q", e.Key.Str))
				continue
			}
			r.constValue(e.Value, f.Type, scope)
		}
	}
}

func fieldByName(d *ir.Decl, name string) *ir.Field {
	for _, f := range d.Fields {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// constRef resolves an identifier value: a bare member of the expected enum,
// a const, or Enum.VALUE.
func (r *moduleResolver) constRef(c *ir.ConstValue, t *ir.TypeRef, scope string) {
	var expected ir.Export
	if t.Kind == ir.TypeNamed {
		expected = r.exportOf(t.Target)
	}
	if expected.Kind == ir.DeclEnum && expected.Name != "" && slices.Contains(expected.Members, c.Ref) {
		c.Target, c.Member = t.Target, c.Ref
		return
	}

	if found := r.env.lookup(c.Ref, scope); len(found) > 0 {
		if len(found) > 1 {
			r.lookup(c.Ref, scope, c.Span, isValue) // сообщит о неоднозначности
			return
		}
		if found[0].exp.Kind != ir.DeclConst {
			diag.ReportError(r.rep, diag.SemaNotAValue, c.Span,
				fmt.Sprintf("%q is a %s, not a value", c.Ref, found[0].exp.Kind)).Emit()
			return
		}
		c.Target = found[0].ref
		return
	}

	prefix, member := ir.SplitName(c.Ref)
	if prefix != "" {
		found := r.env.lookup(prefix, scope)
		if len(found) == 1 && found[0].exp.Kind == ir.DeclEnum && slices.Contains(found[0].exp.Members, member) {
			enum := found[0]
			if expected.Kind == ir.DeclEnum && enum.ref != t.Target {
				r.badConst(c, t, fmt.Sprintf("%s belongs to %s", c.Ref, enum.ref))
				return
			}
			if t.Kind == ir.TypePrim && !t.Prim.IsInteger() {
				r.badConst(c, t, "enum values are integers")
				return
			}
			c.Target, c.Member = enum.ref, member
			return
		}
		if len(found) == 1 && found[0].exp.Kind == ir.DeclEnum {
			diag.ReportError(r.rep, diag.SemaUnresolvedReference, c.Span,
				fmt.Sprintf("enum %s has no value %q", found[0].ref, member)).Emit()
			return
		}
	}
	r.lookup(c.Ref, scope, c.Span, isValue)
}

func isValue(x ir.Export) bool { return x.Kind == ir.DeclConst || x.Kind == ir.DeclEnum }
