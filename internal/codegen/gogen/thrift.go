package gogen

import (
	"fmt"

	"fortio.org/safecast"
	"github.com/apache/thrift/lib/go/thrift"

	"idlc/internal/codegen"
	"idlc/internal/diag"
	"idlc/internal/ir"
	"idlc/internal/token"
)

var ttypeNames = map[thrift.TType]string{
	thrift.BOOL:   "BOOL",
	thrift.BYTE:   "BYTE",
	thrift.I16:    "I16",
	thrift.I32:    "I32",
	thrift.I64:    "I64",
	thrift.DOUBLE: "DOUBLE",
	thrift.STRING: "STRING",
	thrift.STRUCT: "STRUCT",
	thrift.MAP:    "MAP",
	thrift.SET:    "SET",
	thrift.LIST:   "LIST",
	thrift.UUID:   "UUID",
}

// thrift primitive -> TProtocol method suffix
var thriftPrims = map[ir.Prim]struct {
	tt     thrift.TType
	method string
}{
	ir.PrimBool:   {thrift.BOOL, "Bool"},
	ir.PrimI8:     {thrift.BYTE, "Byte"},
	ir.PrimI16:    {thrift.I16, "I16"},
	ir.PrimI32:    {thrift.I32, "I32"},
	ir.PrimI64:    {thrift.I64, "I64"},
	ir.PrimF64:    {thrift.DOUBLE, "Double"},
	ir.PrimString: {thrift.STRING, "String"},
	ir.PrimBinary: {thrift.STRING, "Binary"},
	ir.PrimUUID:   {thrift.UUID, "UUID"},
}

// ttype maps t to its wire type; ok is false for proto-only scalars.
func (g *generator) ttype(t *ir.TypeRef) (thrift.TType, bool) {
	u := g.schema.Underlying(t)
	switch u.Kind {
	case ir.TypePrim:
		p, ok := thriftPrims[u.Prim]
		return p.tt, ok
	case ir.TypeList:
		return thrift.LIST, true
	case ir.TypeSet:
		return thrift.SET, true
	case ir.TypeMap:
		return thrift.MAP, true
	}
	if g.enumOf(u) != nil {
		return thrift.I32, true
	}
	if d := g.schema.Target(u); d != nil && (d.Kind == ir.DeclStruct || d.Kind == ir.DeclUnion) {
		// сообщения proto не умеют TProtocol
		return thrift.STRUCT, g.dialect(d) == token.DialectThrift
	}
	return thrift.STOP, false
}

func (g *generator) ttypeExpr(t *ir.TypeRef) string {
	tt, ok := g.ttype(t)
	if !ok {
		g.unsupported(t, "no thrift wire type")
		return "thrift.STOP"
	}
	return "thrift." + ttypeNames[tt]
}

func (g *generator) thriftID(d *ir.Decl, f *ir.Field) int16 {
	id, err := safecast.Conv[int16](f.ID)
	if err != nil {
		g.fail(codegen.Errorf(diag.GenUnsupportedType, g.modPath(),
			"%s.%s: field id %d does not fit the thrift wire", d.Name, f.Name, f.ID))
	}
	return id
}

func (g *generator) thriftStruct(d *ir.Decl, name string) {
	g.useThrift()
	g.use("context")
	g.thriftWriter(d, name)
	g.thriftReader(d, name)
}

func (g *generator) thriftWriter(d *ir.Decl, name string) {
	union := d.Kind == ir.DeclUnion
	g.p("func (p *%s) Write(ctx context.Context, oprot thrift.TProtocol) error {", name)
	if union {
		g.use("fmt")
		g.p("if c := p.CountSetFields(); c != 1 {")
		g.p("return fmt.Errorf(%q, c)", name+": want exactly one field set, got %d")
		g.p("}")
	}
	g.p("if err := oprot.WriteStructBegin(ctx, %q); err != nil {", d.Name)
	g.p("return thrift.PrependError(%q, err)", name+" write struct begin: ")
	g.p("}")
	for _, f := range d.Fields {
		g.thriftWriteField(d, name, f, union)
	}
	g.p("if err := oprot.WriteFieldStop(ctx); err != nil {")
	g.p("return thrift.PrependError(%q, err)", name+" write field stop: ")
	g.p("}")
	g.p("if err := oprot.WriteStructEnd(ctx); err != nil {")
	g.p("return thrift.PrependError(%q, err)", name+" write struct end: ")
	g.p("}")
	g.p("return nil")
	g.p("}")
	g.p("")
}

func (g *generator) thriftWriteField(d *ir.Decl, name string, f *ir.Field, union bool) {
	field := "p." + g.names.Field(d, f)
	label := name + "." + f.Name + ": "
	ptr := g.pointerField(f, union)
	u := g.schema.Underlying(f.Type)
	nilable := u.IsContainer() || u.Kind == ir.TypePrim && u.Prim == ir.PrimBinary
	guard := ptr || g.isMessage(f.Type) || nilable && (union || f.Req == ir.Optional)

	if f.Req == ir.Required && g.isMessage(f.Type) {
		g.use("fmt")
		g.p("if %s == nil {", field)
		g.p("return thrift.NewTProtocolExceptionWithType(thrift.INVALID_DATA, fmt.Errorf(%q))",
			"required field "+f.Name+" is not set")
		g.p("}")
	}
	if guard {
		g.p("if %s != nil {", field)
	}
	g.p("if err := oprot.WriteFieldBegin(ctx, %q, %s, %d); err != nil {", f.Name, g.ttypeExpr(f.Type), g.thriftID(d, f))
	g.p("return thrift.PrependError(%q, err)", label)
	g.p("}")
	val := field
	if ptr {
		val = "*" + field
	}
	g.thriftWrite(f.Type, val, label)
	g.p("if err := oprot.WriteFieldEnd(ctx); err != nil {")
	g.p("return thrift.PrependError(%q, err)", label)
	g.p("}")
	if guard {
		g.p("}")
	}
}

func (g *generator) thriftWrite(t *ir.TypeRef, expr, label string) {
	u := g.schema.Underlying(t)
	check := func(call string) {
		g.p("if err := %s; err != nil {", call)
		g.p("return thrift.PrependError(%q, err)", label)
		g.p("}")
	}
	switch u.Kind {
	case ir.TypePrim:
		p, ok := thriftPrims[u.Prim]
		if !ok {
			g.unsupported(t, "no thrift wire type")
			return
		}
		check(fmt.Sprintf("oprot.Write%s(ctx, %s)", p.method, expr))
	case ir.TypeList, ir.TypeSet:
		kind := "List"
		if u.Kind == ir.TypeSet {
			kind = "Set"
		}
		e := g.fresh("e")
		check(fmt.Sprintf("oprot.Write%sBegin(ctx, %s, len(%s))", kind, g.ttypeExpr(u.Elem), expr))
		g.p("for _, %s := range %s {", e, expr)
		g.thriftWrite(u.Elem, e, label)
		g.p("}")
		check(fmt.Sprintf("oprot.Write%sEnd(ctx)", kind))
	case ir.TypeMap:
		m, k := g.fresh("m"), g.fresh("k")
		check(fmt.Sprintf("oprot.WriteMapBegin(ctx, %s, %s, len(%s))", g.ttypeExpr(u.Key), g.ttypeExpr(u.Value), expr))
		g.p("{")
		g.p("%s := %s", m, expr)
		keys := g.sortedKeys(u, m)
		g.p("for _, %s := range %s {", k, keys)
		g.thriftWrite(u.Key, k, label)
		g.thriftWrite(u.Value, m+"["+k+"]", label)
		g.p("}")
		g.p("}")
		check("oprot.WriteMapEnd(ctx)")
	default:
		switch {
		case g.enumOf(u) != nil:
			check(fmt.Sprintf("oprot.WriteI32(ctx, int32(%s))", expr))
		case g.isMessage(u):
			if _, ok := g.ttype(u); !ok {
				g.unsupported(t, "not a thrift struct")
				return
			}
			check(fmt.Sprintf("%s.Write(ctx, oprot)", expr))
		default:
			g.unsupported(t, "no thrift wire type")
		}
	}
}

func (g *generator) thriftReader(d *ir.Decl, name string) {
	union := d.Kind == ir.DeclUnion
	g.p("func (p *%s) Read(ctx context.Context, iprot thrift.TProtocol) error {", name)
	g.p("if _, err := iprot.ReadStructBegin(ctx); err != nil {")
	g.p("return thrift.PrependError(%q, err)", name+" read struct begin: ")
	g.p("}")
	var required []*ir.Field
	for _, f := range d.Fields {
		if f.Req == ir.Required {
			required = append(required, f)
			g.p("var isset%s bool", g.names.Field(d, f))
		}
	}
	g.p("for {")
	if len(d.Fields) == 0 {
		g.p("_, typeID, _, err := iprot.ReadFieldBegin(ctx)")
	} else {
		g.p("_, typeID, fieldID, err := iprot.ReadFieldBegin(ctx)")
	}
	g.p("if err != nil {")
	g.p("return thrift.PrependError(%q, err)", name+" read field begin: ")
	g.p("}")
	g.p("if typeID == thrift.STOP {")
	g.p("break")
	g.p("}")
	g.p("switch {")
	for _, f := range d.Fields {
		field := g.names.Field(d, f)
		label := name + "." + f.Name + ": "
		g.p("case fieldID == %d && typeID == %s:", g.thriftID(d, f), g.ttypeExpr(f.Type))
		if g.pointerField(f, union) {
			v := g.fresh("v")
			g.p("var %s %s", v, g.goType(f.Type))
			g.thriftRead(f.Type, v, label)
			g.p("p.%s = &%s", field, v)
		} else {
			g.thriftRead(f.Type, "p."+field, label)
		}
		if f.Req == ir.Required {
			g.p("isset%s = true", field)
		}
	}
	g.p("default:")
	g.p("if err := iprot.Skip(ctx, typeID); err != nil {")
	g.p("return thrift.PrependError(%q, err)", name+" skip: ")
	g.p("}")
	g.p("}")
	g.p("if err := iprot.ReadFieldEnd(ctx); err != nil {")
	g.p("return thrift.PrependError(%q, err)", name+" read field end: ")
	g.p("}")
	g.p("}")
	g.p("if err := iprot.ReadStructEnd(ctx); err != nil {")
	g.p("return thrift.PrependError(%q, err)", name+" read struct end: ")
	g.p("}")
	for _, f := range required {
		g.use("fmt")
		g.p("if !isset%s {", g.names.Field(d, f))
		g.p("return thrift.NewTProtocolExceptionWithType(thrift.INVALID_DATA, fmt.Errorf(%q))",
			"required field "+f.Name+" is not set")
		g.p("}")
	}
	g.p("return nil")
	g.p("}")
	g.p("")
}

// thriftRead reads one value of type t and assigns it to dst.
func (g *generator) thriftRead(t *ir.TypeRef, dst, label string) {
	u := g.schema.Underlying(t)
	fail := func() {
		g.p("return thrift.PrependError(%q, err)", label)
	}
	switch u.Kind {
	case ir.TypePrim:
		p, ok := thriftPrims[u.Prim]
		if !ok {
			g.unsupported(t, "no thrift wire type")
			return
		}
		g.p("if v, err := iprot.Read%s(ctx); err != nil {", p.method)
		fail()
		g.p("} else {")
		g.p("%s = v", dst)
		g.p("}")
	case ir.TypeList, ir.TypeSet:
		kind := "List"
		if u.Kind == ir.TypeSet {
			kind = "Set"
		}
		l, e := g.fresh("l"), g.fresh("e")
		g.p("{")
		g.p("_, size, err := iprot.Read%sBegin(ctx)", kind)
		g.p("if err != nil {")
		fail()
		g.p("}")
		g.p("%s := make(%s, 0, size)", l, g.goType(u))
		g.p("for i := 0; i < size; i++ {")
		g.p("var %s %s", e, g.goType(u.Elem))
		g.thriftRead(u.Elem, e, label)
		g.p("%s = append(%s, %s)", l, l, e)
		g.p("}")
		g.p("if err := iprot.Read%sEnd(ctx); err != nil {", kind)
		fail()
		g.p("}")
		g.p("%s = %s", dst, l)
		g.p("}")
	case ir.TypeMap:
		m, k, v := g.fresh("m"), g.fresh("k"), g.fresh("v")
		g.p("{")
		g.p("_, _, size, err := iprot.ReadMapBegin(ctx)")
		g.p("if err != nil {")
		fail()
		g.p("}")
		g.p("%s := make(%s, size)", m, g.goType(u))
		g.p("for i := 0; i < size; i++ {")
		g.p("var %s %s", k, g.goType(u.Key))
		g.thriftRead(u.Key, k, label)
		g.p("var %s %s", v, g.goType(u.Value))
		g.thriftRead(u.Value, v, label)
		g.p("%s[%s] = %s", m, k, v)
		g.p("}")
		g.p("if err := iprot.ReadMapEnd(ctx); err != nil {")
		fail()
		g.p("}")
		g.p("%s = %s", dst, m)
		g.p("}")
	default:
		switch {
		case g.enumOf(u) != nil:
			g.p("if v, err := iprot.ReadI32(ctx); err != nil {")
			fail()
			g.p("} else {")
			g.p("%s = %s(v)", dst, g.goType(t))
			g.p("}")
		case g.isMessage(u):
			v := g.fresh("s")
			g.p("%s := &%s{}", v, g.baseType(t))
			g.p("if err := %s.Read(ctx, iprot); err != nil {", v)
			fail()
			g.p("}")
			g.p("%s = %s", dst, v)
		default:
			g.unsupported(t, "no thrift wire type")
		}
	}
}
