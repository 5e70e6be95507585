package lower

import (
	"fortio.org/safecast"

	"idlc/internal/ast"
	"idlc/internal/diag"
	"idlc/internal/ir"
	"idlc/internal/source"
)

func (l *lowerer) lowerThrift() {
	for _, d := range l.file.Decls {
		switch d := d.(type) {
		case *ast.ThriftStruct:
			l.thriftStruct(d)
		case *ast.ThriftEnum:
			l.thriftEnum(d)
		case *ast.ThriftService:
			l.thriftService(d)
		case *ast.ThriftTypedef:
			decl := l.newDecl(ir.DeclTypedef, d.Name, d.Doc, d.Span)
			decl.Type = l.lowerType(d.Type)
			decl.GenName, decl.Annotations = l.annotations(d.Annotations)
			l.define(decl)
		case *ast.ThriftConst:
			decl := l.newDecl(ir.DeclConst, d.Name, d.Doc, d.Span)
			decl.Type = l.lowerType(d.Type)
			decl.Value = lowerConst(d.Value)
			l.define(decl)
		}
	}
}

func (l *lowerer) newDecl(kind ir.DeclKind, name ast.Ident, doc string, sp source.Span) *ir.Decl {
	return &ir.Decl{
		Kind:     kind,
		Name:     name.Name,
		Module:   l.mod.Path,
		Doc:      doc,
		Span:     sp,
		NameSpan: name.Span,
	}
}

func (l *lowerer) thriftStruct(d *ast.ThriftStruct) {
	kind := ir.DeclStruct
	if d.Kind == ast.KindUnion {
		kind = ir.DeclUnion
	}
	decl := l.newDecl(kind, d.Name, d.Doc, d.Span)
	decl.Exception = d.Kind == ast.KindException
	decl.GenName, decl.Annotations = l.annotations(d.Annotations)
	decl.Fields = l.thriftFields(d.Fields, d.Kind == ast.KindUnion)
	l.define(decl)
}

// thriftFields lowers a field list. Fields without an id get -1, -2, ...
// in order of appearance.
func (l *lowerer) thriftFields(fields []*ast.Field, union bool) []*ir.Field {
	ids := make(map[int64]source.Span, len(fields))
	names := make(map[string]source.Span, len(fields))
	next := int64(-1)
	out := make([]*ir.Field, 0, len(fields))
	for _, f := range fields {
		id := f.ID
		idSpan := f.IDSpan
		if !f.HasID {
			id, idSpan = next, f.Name.Span
			next--
			l.warnf(diag.SemaImplicitFieldID, f.Name.Span, "field %q has no explicit id; assigned %d", f.Name.Name, id).Emit()
		}
		if _, err := safecast.Conv[int16](id); err != nil {
			l.errorf(diag.SemaFieldIDRange, idSpan, "field id %d does not fit in i16", id).Emit()
			continue
		}
		if prev, dup := ids[id]; dup {
			l.errorf(diag.SemaDuplicateFieldID, idSpan, "duplicate field id %d", id).
				WithNote(prev, "first used here").Emit()
			continue
		}
		if prev, dup := names[f.Name.Name]; dup {
			l.errorf(diag.SemaDuplicateFieldName, f.Name.Span, "duplicate field name %q", f.Name.Name).
				WithNote(prev, "first declared here").Emit()
			continue
		}
		ids[id], names[f.Name.Name] = idSpan, f.Name.Span

		fld := &ir.Field{
			ID:      id,
			Name:    f.Name.Name,
			Type:    l.lowerType(f.Type),
			Req:     thriftReq(f.Label),
			Default: lowerConst(f.Default),
			Doc:     f.Doc,
			Span:    f.Span,
		}
		if union {
			if f.Label == ast.LabelRequired {
				l.warnf(diag.SemaRequiredInUnion, f.LabelSpan, "union members are always optional; 'required' ignored").Emit()
			}
			fld.Req = ir.Optional
		}
		fld.GenName, fld.Annotations = l.annotations(f.Annotations)
		for _, a := range fld.Annotations {
			if a.Name == "deprecated" {
				fld.Deprecated = true
			}
		}
		out = append(out, fld)
	}
	return out
}

func thriftReq(lbl ast.Label) ir.Requiredness {
	switch lbl {
	case ast.LabelRequired:
		return ir.Required
	case ast.LabelOptional:
		return ir.Optional
	}
	return ir.DefaultSingular
}

// thriftEnum: значения без явного номера продолжают счёт от предыдущего,
// начиная с 0.
func (l *lowerer) thriftEnum(d *ast.ThriftEnum) {
	decl := l.newDecl(ir.DeclEnum, d.Name, d.Doc, d.Span)
	decl.GenName, decl.Annotations = l.annotations(d.Annotations)
	names := make(map[string]source.Span)
	values := make(map[int64]string)
	next := int64(0)
	for _, v := range d.Values {
		val := next
		if v.HasValue {
			val = v.Value
		}
		next = val + 1
		if _, err := safecast.Conv[int32](val); err != nil {
			l.errorf(diag.SemaError, v.Span, "enum value %d does not fit in i32", val).Emit()
			continue
		}
		if prev, dup := names[v.Name.Name]; dup {
			l.errorf(diag.SemaDuplicateEnumValue, v.Name.Span, "duplicate enum value %q", v.Name.Name).
				WithNote(prev, "first declared here").Emit()
			continue
		}
		if other, dup := values[val]; dup {
			l.warnf(diag.SemaEnumValueAlias, v.Span, "%q has the same value %d as %q", v.Name.Name, val, other).Emit()
		} else {
			values[val] = v.Name.Name
		}
		names[v.Name.Name] = v.Name.Span
		ev := ir.EnumValue{Name: v.Name.Name, Value: val, Doc: v.Doc, Span: v.Span}
		ev.GenName, _ = l.annotations(v.Annotations)
		decl.Values = append(decl.Values, ev)
	}
	l.define(decl)
}

func (l *lowerer) thriftService(d *ast.ThriftService) {
	decl := l.newDecl(ir.DeclService, d.Name, d.Doc, d.Span)
	decl.GenName, decl.Annotations = l.annotations(d.Annotations)
	if d.Extends != nil {
		decl.Extends = ir.NewNamed(d.Extends.Text, d.Extends.Span)
	}
	seen := make(map[string]source.Span)
	for _, m := range d.Methods {
		if prev, dup := seen[m.Name.Name]; dup {
			l.errorf(diag.SemaDuplicateDefinition, m.Name.Span, "method %q is already defined in service %q", m.Name.Name, d.Name.Name).
				WithNote(prev, "previous definition here").Emit()
			continue
		}
		seen[m.Name.Name] = m.Name.Span
		if m.Oneway && (m.Result != nil || len(m.Throws) > 0) {
			l.errorf(diag.SemaBadOneway, m.Name.Span, "oneway method %q must return void and declare no exceptions", m.Name.Name).Emit()
			continue
		}
		method := &ir.Method{
			Name:   m.Name.Name,
			Args:   l.thriftFields(m.Args, false),
			Result: l.lowerType(m.Result),
			Throws: l.thriftFields(m.Throws, false),
			Oneway: m.Oneway,
			Doc:    m.Doc,
			Span:   m.Span,
		}
		method.GenName, _ = l.annotations(m.Annotations)
		decl.Methods = append(decl.Methods, method)
	}
	l.define(decl)
}
