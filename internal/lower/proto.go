package lower

import (
	"slices"
	"strconv"

	"idlc/internal/ast"
	"idlc/internal/diag"
	"idlc/internal/ir"
	"idlc/internal/source"
)

const (
	protoFieldMax      = 1<<29 - 1
	protoReservedStart = 19000
	protoReservedEnd   = 19999
)

func (l *lowerer) lowerProto() {
	l.mod.Syntax = l.file.Syntax
	if l.mod.Syntax == "" {
		l.mod.Syntax = "proto2"
	}
	l.proto3 = l.mod.Syntax == "proto3"
	for _, o := range l.file.Options {
		l.mod.Options = append(l.mod.Options, ir.Annotation{Name: o.Name, Value: annotationValue(o.Value)})
	}
	for _, d := range l.file.Decls {
		l.protoDecl(d, "")
	}
}

func (l *lowerer) protoDecl(d ast.Decl, scope string) {
	switch d := d.(type) {
	case *ast.ProtoMessage:
		l.protoMessage(d, scope)
	case *ast.ProtoEnum:
		l.protoEnum(d, scope)
	case *ast.ProtoService:
		l.protoService(d)
	}
}

// fieldSet отслеживает номера и имена полей сообщения, включая члены oneof.
type fieldSet struct {
	ids      map[int64]source.Span
	names    map[string]source.Span
	reserved []ast.Reserved
}

func (l *lowerer) protoMessage(m *ast.ProtoMessage, scope string) {
	name := qualify(scope, m.Name.Name)
	decl := &ir.Decl{
		Kind:     ir.DeclStruct,
		Name:     name,
		Module:   l.mod.Path,
		Scope:    scope,
		Doc:      m.Doc,
		Span:     m.Span,
		NameSpan: m.Name.Span,
	}
	decl.GenName, decl.Annotations = l.annotations(m.Options)
	if !l.define(decl) {
		return
	}

	// имена вложенных объявлений резервируются заранее, чтобы синтетические
	// имена с ними не пересекались
	nested := make(map[string]bool, len(m.Nested))
	for _, n := range m.Nested {
		nested[qualify(name, n.DeclName().Name)] = true
	}
	synth := make(map[string]bool)
	freeName := func(base string) string {
		taken := func(n string) bool {
			_, ok := l.table.Lookup(n)
			return ok || nested[n] || synth[n]
		}
		cand := base
		for i := 2; taken(cand); i++ {
			cand = base + strconv.Itoa(i)
		}
		synth[cand] = true
		return cand
	}

	set := &fieldSet{
		ids:      make(map[int64]source.Span),
		names:    make(map[string]source.Span),
		reserved: m.Reserved,
	}
	l.checkReserved(m.Reserved, true)

	// поля и oneof в порядке исходника
	type item struct {
		field *ast.Field
		oneof *ast.Oneof
	}
	items := make([]item, 0, len(m.Fields)+len(m.Oneofs))
	for _, f := range m.Fields {
		items = append(items, item{field: f})
	}
	for _, o := range m.Oneofs {
		items = append(items, item{oneof: o})
	}
	slices.SortStableFunc(items, func(a, b item) int {
		return int(itemStart(a.field, a.oneof)) - int(itemStart(b.field, b.oneof))
	})

	var extra []*ir.Decl
	for _, it := range items {
		if it.field != nil {
			fld := l.protoField(it.field, set)
			if fld == nil {
				continue
			}
			if fld.Type.Kind == ir.TypeMap {
				entry := l.mapEntry(fld, name, freeName(name+"."+pascal(fld.Name)+"Entry"))
				extra = append(extra, entry)
			}
			decl.Fields = append(decl.Fields, fld)
			continue
		}
		o := it.oneof
		uname := freeName(name + "." + pascal(o.Name.Name))
		union := &ir.Decl{
			Kind:      ir.DeclUnion,
			Name:      uname,
			Module:    l.mod.Path,
			Scope:     name,
			Synthetic: ir.SynthOneof,
			Doc:       o.Doc,
			Span:      o.Span,
			NameSpan:  o.Name.Span,
		}
		union.GenName, union.Annotations = l.annotations(o.Options)
		for _, f := range o.Fields {
			fld := l.protoField(f, set)
			if fld == nil {
				continue
			}
			if fld.Type.Kind == ir.TypeMap || fld.Type.Kind == ir.TypeList {
				l.errorf(diag.SemaError, f.Span, "oneof member %q cannot be a map or repeated", f.Name.Name).Emit()
				continue
			}
			fld.Req = ir.Optional
			union.Fields = append(union.Fields, fld)
		}
		decl.Fields = append(decl.Fields, &ir.Field{
			Name:  o.Name.Name,
			Oneof: true,
			Req:   ir.Optional,
			Type: &ir.TypeRef{
				Kind:   ir.TypeNamed,
				Name:   uname,
				Target: ir.DeclRef{Module: l.mod.Path, Name: uname},
				Span:   o.Name.Span,
			},
			Doc:  o.Doc,
			Span: o.Span,
		})
		extra = append(extra, union)
	}
	for _, d := range extra {
		l.define(d)
	}
	for _, n := range m.Nested {
		l.protoDecl(n, name)
	}
}

func itemStart(f *ast.Field, o *ast.Oneof) uint32 {
	if f != nil {
		return f.Span.Start
	}
	return o.Span.Start
}

// protoField lowers one message or oneof field. It returns nil when the
// field is rejected.
func (l *lowerer) protoField(f *ast.Field, set *fieldSet) *ir.Field {
	id := f.ID
	switch {
	case id < 1 || id > protoFieldMax:
		l.errorf(diag.SemaFieldIDRange, f.IDSpan, "field number %d is out of range [1, %d]", id, protoFieldMax).Emit()
		return nil
	case id >= protoReservedStart && id <= protoReservedEnd:
		l.errorf(diag.SemaFieldIDRange, f.IDSpan, "field numbers %d-%d are reserved for the protobuf implementation", protoReservedStart, protoReservedEnd).Emit()
		return nil
	}
	for _, r := range set.reserved {
		if r.Contains(id) {
			l.errorf(diag.SemaReservedField, f.IDSpan, "field %q uses reserved number %d", f.Name.Name, id).
				WithNote(r.Span, "reserved here").Emit()
			return nil
		}
		if slices.Contains(r.Names, f.Name.Name) {
			l.errorf(diag.SemaReservedField, f.Name.Span, "field name %q is reserved", f.Name.Name).
				WithNote(r.Span, "reserved here").Emit()
			return nil
		}
	}
	if prev, dup := set.ids[id]; dup {
		l.errorf(diag.SemaDuplicateFieldID, f.IDSpan, "duplicate field number %d", id).
			WithNote(prev, "first used here").Emit()
		return nil
	}
	if prev, dup := set.names[f.Name.Name]; dup {
		l.errorf(diag.SemaDuplicateFieldName, f.Name.Span, "duplicate field name %q", f.Name.Name).
			WithNote(prev, "first declared here").Emit()
		return nil
	}
	set.ids[id], set.names[f.Name.Name] = f.IDSpan, f.Name.Span

	fld := &ir.Field{
		ID:   id,
		Name: f.Name.Name,
		Type: l.lowerType(f.Type),
		Doc:  f.Doc,
		Span: f.Span,
	}
	isMap := f.Type.Kind == ast.TypeMap
	switch {
	case isMap:
		if f.Label != ast.LabelNone {
			l.errorf(diag.SemaError, f.LabelSpan, "map fields cannot have a label").Emit()
		}
		l.checkMapKey(fld.Type.Key)
	case f.Label == ast.LabelRepeated:
		fld.Type = &ir.TypeRef{Kind: ir.TypeList, Elem: fld.Type, Span: f.Type.Span}
	case f.Label == ast.LabelRequired:
		if l.proto3 {
			l.errorf(diag.SemaRequiredInProto3, f.LabelSpan, "required fields are not allowed in proto3").Emit()
		} else {
			fld.Req = ir.Required
		}
	case f.Label == ast.LabelOptional:
		fld.Req = ir.Optional
	default:
		// proto2 без метки: поле с явным присутствием
		if !l.proto3 {
			fld.Req = ir.Optional
		}
	}

	if f.Default != nil {
		switch {
		case l.proto3:
			l.errorf(diag.SemaInvalidDefault, f.Default.Span, "explicit default values are not allowed in proto3").Emit()
		case f.Label == ast.LabelRepeated || isMap:
			l.errorf(diag.SemaInvalidDefault, f.Default.Span, "repeated fields cannot have default values").Emit()
		default:
			fld.Default = lowerConst(f.Default)
		}
	}

	var packed *bool
	fld.GenName, fld.Annotations = l.annotations(f.Annotations)
	rest := fld.Annotations[:0]
	for _, a := range fld.Annotations {
		switch a.Name {
		case "packed":
			v := a.Value == "true"
			packed = &v
		case "json_name":
			fld.JSONName = a.Value
		case "deprecated":
			fld.Deprecated = a.Value == "true"
		default:
			rest = append(rest, a)
		}
	}
	fld.Annotations = rest
	if len(fld.Annotations) == 0 {
		fld.Annotations = nil
	}
	if f.Label == ast.LabelRepeated && packable(fld.Type.Elem) {
		if packed != nil {
			fld.Packed = *packed
		} else {
			fld.Packed = l.proto3
		}
	}
	return fld
}

// packable: скаляры и именованные типы (перечисления выясняются при
// генерации; для сообщений флаг игнорируется).
func packable(t *ir.TypeRef) bool {
	if t.Kind == ir.TypeNamed {
		return true
	}
	return t.Kind == ir.TypePrim && t.Prim.IsScalar()
}

func (l *lowerer) checkMapKey(key *ir.TypeRef) {
	if key.Kind == ir.TypePrim && (key.Prim.IsInteger() || key.Prim == ir.PrimBool || key.Prim == ir.PrimString) {
		return
	}
	l.errorf(diag.SemaInvalidMapKey, key.Span, "map key must be an integral or string type, got %s", key).Emit()
}

// mapEntry synthesizes the entry struct for a map field and points the
// field's type at it.
func (l *lowerer) mapEntry(fld *ir.Field, owner, name string) *ir.Decl {
	fld.Type.Entry = name
	return &ir.Decl{
		Kind:      ir.DeclStruct,
		Name:      name,
		Module:    l.mod.Path,
		Scope:     owner,
		Synthetic: ir.SynthMapEntry,
		Span:      fld.Span,
		NameSpan:  fld.Span,
		Fields: []*ir.Field{
			{ID: 1, Name: "key", Type: fld.Type.Key.Clone(), Span: fld.Type.Key.Span},
			{ID: 2, Name: "value", Type: fld.Type.Value.Clone(), Span: fld.Type.Value.Span},
		},
	}
}

func (l *lowerer) checkReserved(rs []ast.Reserved, message bool) {
	for _, r := range rs {
		for _, rg := range r.Ranges {
			if message && (rg.Lo < 1 || rg.Hi > protoFieldMax) {
				l.errorf(diag.SemaFieldIDRange, r.Span, "reserved range %d to %d is out of range", rg.Lo, rg.Hi).Emit()
			}
		}
	}
}

func (l *lowerer) protoEnum(e *ast.ProtoEnum, scope string) {
	name := qualify(scope, e.Name.Name)
	decl := &ir.Decl{
		Kind:     ir.DeclEnum,
		Name:     name,
		Module:   l.mod.Path,
		Scope:    scope,
		Doc:      e.Doc,
		Span:     e.Span,
		NameSpan: e.Name.Span,
	}
	decl.GenName, decl.Annotations = l.annotations(e.Options)
	allowAlias := false
	if a, ok := ast.FindAnnotation(e.Options, "allow_alias"); ok && a.Value != nil {
		allowAlias = a.Value.Kind == ast.ConstBool && a.Value.Bool
	}
	l.checkReserved(e.Reserved, false)

	if l.proto3 && (len(e.Values) == 0 || e.Values[0].Value != 0) {
		sp := e.Name.Span
		if len(e.Values) > 0 {
			sp = e.Values[0].Span
		}
		l.errorf(diag.SemaProto3EnumZero, sp, "the first value of proto3 enum %q must be zero", e.Name.Name).Emit()
	}

	names := make(map[string]source.Span)
	values := make(map[int64]string)
	for _, v := range e.Values {
		if prev, dup := names[v.Name.Name]; dup {
			l.errorf(diag.SemaDuplicateEnumValue, v.Name.Span, "duplicate enum value %q", v.Name.Name).
				WithNote(prev, "first declared here").Emit()
			continue
		}
		reserved := false
		for _, r := range e.Reserved {
			if r.Contains(v.Value) || slices.Contains(r.Names, v.Name.Name) {
				l.errorf(diag.SemaReservedField, v.Span, "enum value %q uses a reserved number or name", v.Name.Name).
					WithNote(r.Span, "reserved here").Emit()
				reserved = true
				break
			}
		}
		if reserved {
			continue
		}
		if other, dup := values[v.Value]; dup && !allowAlias {
			l.errorf(diag.SemaEnumValueAlias, v.Span, "%q reuses value %d of %q; set option allow_alias = true", v.Name.Name, v.Value, other).Emit()
			continue
		} else if !dup {
			values[v.Value] = v.Name.Name
		}
		names[v.Name.Name] = v.Name.Span
		ev := ir.EnumValue{Name: v.Name.Name, Value: v.Value, Doc: v.Doc, Span: v.Span}
		ev.GenName, _ = l.annotations(v.Annotations)
		decl.Values = append(decl.Values, ev)
	}
	l.define(decl)
}

func (l *lowerer) protoService(s *ast.ProtoService) {
	decl := &ir.Decl{
		Kind:     ir.DeclService,
		Name:     s.Name.Name,
		Module:   l.mod.Path,
		Doc:      s.Doc,
		Span:     s.Span,
		NameSpan: s.Name.Span,
	}
	decl.GenName, decl.Annotations = l.annotations(s.Options)
	seen := make(map[string]source.Span)
	for _, m := range s.Methods {
		if prev, dup := seen[m.Name.Name]; dup {
			l.errorf(diag.SemaDuplicateDefinition, m.Name.Span, "rpc %q is already defined in service %q", m.Name.Name, s.Name.Name).
				WithNote(prev, "previous definition here").Emit()
			continue
		}
		seen[m.Name.Name] = m.Name.Span
		method := &ir.Method{
			Name:         m.Name.Name,
			Result:       l.lowerType(m.Result),
			ArgStream:    m.ArgStream,
			ResultStream: m.ResultStream,
			Doc:          m.Doc,
			Span:         m.Span,
		}
		for _, a := range m.Args {
			method.Args = append(method.Args, &ir.Field{ID: a.ID, Name: a.Name.Name, Type: l.lowerType(a.Type), Span: a.Span})
		}
		method.GenName, _ = l.annotations(m.Annotations)
		decl.Methods = append(decl.Methods, method)
	}
	l.define(decl)
}
