package gogen

import (
	"fmt"
	"strings"

	"google.golang.org/protobuf/encoding/protowire"

	"idlc/internal/codegen"
	"idlc/internal/diag"
	"idlc/internal/ir"
	"idlc/internal/token"
)

var wireNames = map[protowire.Type]string{
	protowire.VarintType:  "VarintType",
	protowire.Fixed32Type: "Fixed32Type",
	protowire.Fixed64Type: "Fixed64Type",
	protowire.BytesType:   "BytesType",
}

var consumers = map[protowire.Type]string{
	protowire.VarintType:  "ConsumeVarint",
	protowire.Fixed32Type: "ConsumeFixed32",
	protowire.Fixed64Type: "ConsumeFixed64",
	protowire.BytesType:   "ConsumeBytes",
}

// wireType maps t to its protobuf wire type.
func (g *generator) wireType(t *ir.TypeRef) (protowire.Type, bool) {
	u := g.schema.Underlying(t)
	switch u.Kind {
	case ir.TypePrim:
		switch u.Prim {
		case ir.PrimBool, ir.PrimI8, ir.PrimI16, ir.PrimI32, ir.PrimI64,
			ir.PrimU32, ir.PrimU64, ir.PrimS32, ir.PrimS64:
			return protowire.VarintType, true
		case ir.PrimFixed32, ir.PrimSfixed32, ir.PrimF32:
			return protowire.Fixed32Type, true
		case ir.PrimFixed64, ir.PrimSfixed64, ir.PrimF64:
			return protowire.Fixed64Type, true
		case ir.PrimString, ir.PrimBinary:
			return protowire.BytesType, true
		}
		return 0, false
	case ir.TypeNamed:
		if g.enumOf(u) != nil {
			return protowire.VarintType, true
		}
		if d := g.schema.Target(u); d != nil && (d.Kind == ir.DeclStruct || d.Kind == ir.DeclUnion) {
			return protowire.BytesType, g.dialect(d) == token.DialectProto
		}
	}
	return 0, false
}

func (g *generator) mustWire(t *ir.TypeRef) protowire.Type {
	w, ok := g.wireType(t)
	if !ok {
		g.unsupported(t, "no protobuf wire type")
	}
	return w
}

func (g *generator) number(d *ir.Decl, f *ir.Field) protowire.Number {
	num := protowire.Number(f.ID)
	if f.ID > int64(protowire.MaxValidNumber) || !num.IsValid() {
		g.fail(codegen.Errorf(diag.GenUnsupportedType, g.modPath(),
			"%s.%s: field number %d is not a valid protobuf number", d.Name, f.Name, f.ID))
	}
	return num
}

// tag renders the precomputed key bytes of (num, typ) as a Go byte list.
func tag(num protowire.Number, typ protowire.Type) string {
	raw := protowire.AppendTag(nil, num, typ)
	parts := make([]string, len(raw))
	for i, c := range raw {
		parts[i] = fmt.Sprintf("0x%02x", c)
	}
	return strings.Join(parts, ", ")
}

func (g *generator) emitTag(buf string, num protowire.Number, typ protowire.Type) {
	g.p("%s = append(%s, %s)", buf, buf, tag(num, typ))
}

// appendValue appends the payload of one value (no key) to buf.
func (g *generator) appendValue(t *ir.TypeRef, buf, v string) {
	pw := g.useProtowire()
	u := g.schema.Underlying(t)
	call := func(fn, arg string) {
		g.p("%s = %s.%s(%s, %s)", buf, pw, fn, buf, arg)
	}
	if u.Kind == ir.TypeNamed {
		switch {
		case g.enumOf(u) != nil:
			call("AppendVarint", "uint64("+v+")")
		case g.isMessage(u):
			call("AppendBytes", v+".AppendProto(nil)")
		default:
			g.unsupported(t, "no protobuf wire type")
		}
		return
	}
	if u.Kind != ir.TypePrim {
		g.unsupported(t, "nested containers have no protobuf encoding")
		return
	}
	switch u.Prim {
	case ir.PrimBool:
		call("AppendVarint", pw+".EncodeBool("+v+")")
	case ir.PrimI8, ir.PrimI16, ir.PrimI32, ir.PrimI64, ir.PrimU32, ir.PrimU64:
		call("AppendVarint", "uint64("+v+")")
	case ir.PrimS32, ir.PrimS64:
		call("AppendVarint", pw+".EncodeZigZag(int64("+v+"))")
	case ir.PrimFixed32:
		call("AppendFixed32", v)
	case ir.PrimSfixed32:
		call("AppendFixed32", "uint32("+v+")")
	case ir.PrimF32:
		g.use("math")
		call("AppendFixed32", "math.Float32bits("+v+")")
	case ir.PrimFixed64:
		call("AppendFixed64", v)
	case ir.PrimSfixed64:
		call("AppendFixed64", "uint64("+v+")")
	case ir.PrimF64:
		g.use("math")
		call("AppendFixed64", "math.Float64bits("+v+")")
	case ir.PrimString:
		call("AppendString", v)
	case ir.PrimBinary:
		call("AppendBytes", v)
	default:
		g.unsupported(t, "no protobuf wire type")
	}
}

// decodeValue consumes one payload of type t from src and passes the Go
// expression of the decoded value to assign.
func (g *generator) decodeValue(t *ir.TypeRef, src string, assign func(expr string)) {
	w := g.mustWire(t)
	raw := g.fresh("x")
	g.p("%s, n := protowire.%s(%s)", raw, consumers[w], src)
	g.p("if n < 0 {")
	g.p("return protowire.ParseError(n)")
	g.p("}")
	g.p("%s = %s[n:]", src, src)

	u := g.schema.Underlying(t)
	if u.Kind == ir.TypeNamed {
		if g.enumOf(u) != nil {
			assign(fmt.Sprintf("%s(int32(%s))", g.goType(t), raw))
			return
		}
		msg := g.fresh("msg")
		g.p("%s := &%s{}", msg, g.baseType(t))
		g.p("if err := %s.Unmarshal(%s); err != nil {", msg, raw)
		g.p("return err")
		g.p("}")
		assign(msg)
		return
	}
	var expr string
	switch u.Prim {
	case ir.PrimBool:
		expr = "protowire.DecodeBool(" + raw + ")"
	case ir.PrimI8, ir.PrimI16, ir.PrimI32, ir.PrimI64, ir.PrimU32, ir.PrimSfixed32, ir.PrimSfixed64:
		expr = primTypes[u.Prim] + "(" + raw + ")"
	case ir.PrimU64, ir.PrimFixed32, ir.PrimFixed64:
		expr = raw
	case ir.PrimS32:
		g.use("math")
		expr = "int32(protowire.DecodeZigZag(" + raw + " & math.MaxUint32))"
	case ir.PrimS64:
		expr = "protowire.DecodeZigZag(" + raw + ")"
	case ir.PrimF32:
		g.use("math")
		expr = "math.Float32frombits(" + raw + ")"
	case ir.PrimF64:
		g.use("math")
		expr = "math.Float64frombits(" + raw + ")"
	case ir.PrimString:
		expr = "string(" + raw + ")"
	case ir.PrimBinary:
		expr = "append([]byte{}, " + raw + "...)"
	default:
		g.unsupported(t, "no protobuf wire type")
		return
	}
	assign(expr)
}

func (g *generator) protoStruct(d *ir.Decl, name string) {
	g.useProtowire()
	if d.Synthetic == ir.SynthOneof {
		g.oneofAppend(d, name)
		return
	}
	g.p("// AppendProto appends the protobuf encoding of p to b.")
	g.p("func (p *%s) AppendProto(b []byte) []byte {", name)
	g.p("if p == nil {")
	g.p("return b")
	g.p("}")
	for _, f := range d.Fields {
		g.protoAppendField(d, f)
	}
	g.p("return b")
	g.p("}")
	g.p("")
	g.p("func (p *%s) Marshal() ([]byte, error) {", name)
	g.p("return p.AppendProto(nil), nil")
	g.p("}")
	g.p("")
	g.protoUnmarshal(d, name)
}

func (g *generator) protoAppendField(d *ir.Decl, f *ir.Field) {
	field := "p." + g.names.Field(d, f)
	if f.Oneof {
		g.p("b = %s.appendOneof(b)", field)
		return
	}
	num := g.number(d, f)
	u := g.schema.Underlying(f.Type)
	switch u.Kind {
	case ir.TypeList, ir.TypeSet:
		ew := g.mustWire(u.Elem)
		e := g.fresh("e")
		if f.Packed && ew != protowire.BytesType {
			pk := g.fresh("pk")
			g.p("if len(%s) > 0 {", field)
			g.p("var %s []byte", pk)
			g.p("for _, %s := range %s {", e, field)
			g.appendValue(u.Elem, pk, e)
			g.p("}")
			g.emitTag("b", num, protowire.BytesType)
			g.p("b = protowire.AppendBytes(b, %s)", pk)
			g.p("}")
			return
		}
		g.p("for _, %s := range %s {", e, field)
		g.emitTag("b", num, ew)
		g.appendValue(u.Elem, "b", e)
		g.p("}")
	case ir.TypeMap:
		g.protoAppendMap(field, num, u)
	default:
		w := g.mustWire(f.Type)
		cond := g.presence(f, field)
		if cond != "" {
			g.p("if %s {", cond)
		}
		g.emitTag("b", num, w)
		v := field
		if g.pointerField(f, false) {
			v = "*" + field
		}
		g.appendValue(f.Type, "b", v)
		if cond != "" {
			g.p("}")
		}
	}
}

// presence is the condition under which a singular field is written; empty
// means always.
func (g *generator) presence(f *ir.Field, field string) string {
	if g.isMessage(f.Type) || g.pointerField(f, false) {
		return field + " != nil"
	}
	if f.Req == ir.Required {
		return ""
	}
	u := g.schema.Underlying(f.Type)
	if u.Kind == ir.TypePrim {
		switch u.Prim {
		case ir.PrimBool:
			return field
		case ir.PrimString:
			return field + ` != ""`
		case ir.PrimBinary:
			if f.Req == ir.Optional {
				return field + " != nil"
			}
			return "len(" + field + ") > 0"
		}
	}
	return field + " != 0"
}

func (g *generator) protoAppendMap(field string, num protowire.Number, u *ir.TypeRef) {
	kw, vw := g.mustWire(u.Key), g.mustWire(u.Value)
	k, e := g.fresh("k"), g.fresh("entry")
	g.p("if len(%s) > 0 {", field)
	keys := g.sortedKeys(u, field)
	g.p("for _, %s := range %s {", k, keys)
	g.p("var %s []byte", e)
	g.emitTag(e, 1, kw)
	g.appendValue(u.Key, e, k)
	g.emitTag(e, 2, vw)
	g.appendValue(u.Value, e, field+"["+k+"]")
	g.emitTag("b", num, protowire.BytesType)
	g.p("b = protowire.AppendBytes(b, %s)", e)
	g.p("}")
	g.p("}")
}

// oneofAppend encodes the set member of a oneof inline into its owner.
func (g *generator) oneofAppend(d *ir.Decl, name string) {
	g.p("func (p *%s) appendOneof(b []byte) []byte {", name)
	g.p("if p == nil {")
	g.p("return b")
	g.p("}")
	for _, f := range d.Fields {
		field := "p." + g.names.Field(d, f)
		g.p("if %s != nil {", field)
		g.emitTag("b", g.number(d, f), g.mustWire(f.Type))
		v := field
		if g.pointerField(f, true) {
			v = "*" + field
		}
		g.appendValue(f.Type, "b", v)
		g.p("}")
	}
	g.p("return b")
	g.p("}")
	g.p("")
}

func (g *generator) protoUnmarshal(d *ir.Decl, name string) {
	g.p("func (p *%s) Unmarshal(b []byte) error {", name)
	var required []*ir.Field
	for _, f := range d.Fields {
		if f.Req == ir.Required {
			required = append(required, f)
			g.p("var isset%s bool", g.names.Field(d, f))
		}
	}
	g.p("for len(b) > 0 {")
	g.p("num, typ, n := protowire.ConsumeTag(b)")
	g.p("if n < 0 {")
	g.p("return protowire.ParseError(n)")
	g.p("}")
	g.p("b = b[n:]")
	g.p("switch {")
	for _, f := range d.Fields {
		g.protoDecodeField(d, f)
		if f.Req == ir.Required {
			g.p("isset%s = true", g.names.Field(d, f))
		}
	}
	g.p("default:")
	g.p("n = protowire.ConsumeFieldValue(num, typ, b)")
	g.p("if n < 0 {")
	g.p("return protowire.ParseError(n)")
	g.p("}")
	g.p("b = b[n:]")
	g.p("}")
	g.p("}")
	for _, f := range required {
		g.use("fmt")
		g.p("if !isset%s {", g.names.Field(d, f))
		g.p("return fmt.Errorf(%q)", name+": required field "+f.Name+" is not set")
		g.p("}")
	}
	g.p("return nil")
	g.p("}")
	g.p("")
}

func (g *generator) caseLine(num protowire.Number, w protowire.Type) {
	g.p("case num == %d && typ == protowire.%s:", num, wireNames[w])
}

func (g *generator) protoDecodeField(d *ir.Decl, f *ir.Field) {
	field := "p." + g.names.Field(d, f)
	if f.Oneof {
		g.protoDecodeOneof(field, f)
		return
	}
	num := g.number(d, f)
	u := g.schema.Underlying(f.Type)
	switch u.Kind {
	case ir.TypeList, ir.TypeSet:
		ew := g.mustWire(u.Elem)
		appendTo := func(expr string) { g.p("%s = append(%s, %s)", field, field, expr) }
		g.caseLine(num, ew)
		g.decodeValue(u.Elem, "b", appendTo)
		if ew != protowire.BytesType {
			// упакованная и неупакованная формы принимаются обе
			pk := g.fresh("pk")
			g.caseLine(num, protowire.BytesType)
			g.p("%s, n := protowire.ConsumeBytes(b)", pk)
			g.p("if n < 0 {")
			g.p("return protowire.ParseError(n)")
			g.p("}")
			g.p("b = b[n:]")
			g.p("for len(%s) > 0 {", pk)
			g.decodeValue(u.Elem, pk, appendTo)
			g.p("}")
		}
	case ir.TypeMap:
		g.protoDecodeMap(field, num, u)
	default:
		g.caseLine(num, g.mustWire(f.Type))
		g.decodeValue(f.Type, "b", func(expr string) {
			if g.pointerField(f, false) {
				v := g.fresh("v")
				g.p("%s := %s", v, expr)
				g.p("%s = &%s", field, v)
				return
			}
			g.p("%s = %s", field, expr)
		})
	}
}

func (g *generator) protoDecodeMap(field string, num protowire.Number, u *ir.TypeRef) {
	kw, vw := g.mustWire(u.Key), g.mustWire(u.Value)
	raw, mk, mv := g.fresh("entry"), g.fresh("mk"), g.fresh("mv")
	g.caseLine(num, protowire.BytesType)
	g.p("%s, n := protowire.ConsumeBytes(b)", raw)
	g.p("if n < 0 {")
	g.p("return protowire.ParseError(n)")
	g.p("}")
	g.p("b = b[n:]")
	g.p("var %s %s", mk, g.goType(u.Key))
	g.p("var %s %s", mv, g.goType(u.Value))
	g.p("for len(%s) > 0 {", raw)
	g.p("en, et, n := protowire.ConsumeTag(%s)", raw)
	g.p("if n < 0 {")
	g.p("return protowire.ParseError(n)")
	g.p("}")
	g.p("%s = %s[n:]", raw, raw)
	g.p("switch {")
	g.p("case en == 1 && et == protowire.%s:", wireNames[kw])
	g.decodeValue(u.Key, raw, func(expr string) { g.p("%s = %s", mk, expr) })
	g.p("case en == 2 && et == protowire.%s:", wireNames[vw])
	g.decodeValue(u.Value, raw, func(expr string) { g.p("%s = %s", mv, expr) })
	g.p("default:")
	g.p("n = protowire.ConsumeFieldValue(en, et, %s)", raw)
	g.p("if n < 0 {")
	g.p("return protowire.ParseError(n)")
	g.p("}")
	g.p("%s = %s[n:]", raw, raw)
	g.p("}")
	g.p("}")
	g.p("if %s == nil {", field)
	g.p("%s = make(%s, 1)", field, g.goType(u))
	g.p("}")
	g.p("%s[%s] = %s", field, mk, mv)
}

// protoDecodeOneof: a later member replaces an earlier one.
func (g *generator) protoDecodeOneof(field string, f *ir.Field) {
	union := g.schema.Target(f.Type)
	if union == nil {
		g.unsupported(f.Type, "oneof without members")
		return
	}
	typ := g.baseType(f.Type)
	for _, c := range union.Fields {
		member := g.names.Field(union, c)
		g.caseLine(g.number(union, c), g.mustWire(c.Type))
		g.decodeValue(c.Type, "b", func(expr string) {
			if g.pointerField(c, true) {
				v := g.fresh("v")
				g.p("%s := %s", v, expr)
				g.p("%s = &%s{%s: &%s}", field, typ, member, v)
				return
			}
			g.p("%s = &%s{%s: %s}", field, typ, member, expr)
		})
	}
}
