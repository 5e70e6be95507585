package gogen

import (
	"fmt"
	"strings"

	"idlc/internal/ir"
	"idlc/internal/token"
)

func (g *generator) enum(d *ir.Decl) {
	name := g.typeNames[d.Ref()]
	g.doc(d.Doc)
	g.p("type %s int32", name)
	g.p("")
	g.p("const (")
	for _, v := range d.Values {
		g.doc(v.Doc)
		g.p("%s %s = %d", g.names.EnumValue(d, name, v), name, v.Value)
	}
	g.p(")")
	g.p("")

	// alias-значения: в switch только первое имя
	seen := make(map[int64]bool, len(d.Values))
	g.use("strconv")
	g.p("func (e %s) String() string {", name)
	g.p("switch e {")
	for _, v := range d.Values {
		if seen[v.Value] {
			continue
		}
		seen[v.Value] = true
		g.p("case %s:", g.names.EnumValue(d, name, v))
		g.p("return %q", v.Name)
	}
	g.p("}")
	g.p("return %q + strconv.FormatInt(int64(e), 10) + \")\"", name+"(")
	g.p("}")
	g.p("")

	g.p("// Parse%s looks a value up by its IDL name.", name)
	g.p("func Parse%s(s string) (%s, bool) {", name, name)
	g.p("switch s {")
	for _, v := range d.Values {
		g.p("case %q:", v.Name)
		g.p("return %s, true", g.names.EnumValue(d, name, v))
	}
	g.p("}")
	g.p("return 0, false")
	g.p("}")
	g.p("")
}

func (g *generator) typedef(d *ir.Decl) {
	g.doc(d.Doc)
	g.p("type %s = %s", g.typeNames[d.Ref()], g.baseType(d.Type))
	g.p("")
}

func (g *generator) constant(d *ir.Decl) {
	name := g.typeNames[d.Ref()]
	lit := g.literal(d.Type, d.Value)
	g.doc(d.Doc)
	if g.isConstType(d.Type) {
		g.p("const %s %s = %s", name, g.goType(d.Type), lit)
	} else {
		g.p("var %s = %s", name, lit)
	}
	g.p("")
}

func (g *generator) structure(d *ir.Decl) {
	name := g.typeNames[d.Ref()]
	union := d.Kind == ir.DeclUnion
	g.doc(d.Doc)
	g.p("type %s struct {", name)
	for _, f := range d.Fields {
		g.doc(f.Doc)
		if f.Deprecated {
			g.p("// Deprecated: do not use.")
		}
		g.p("%s %s `%s`", g.names.Field(d, f), g.fieldType(f, union), g.tags(d, f))
	}
	g.p("}")
	g.p("")

	g.constructor(d, name, union)
	g.getters(d, name, union)
	if union {
		g.countSet(d, name)
	}
	if d.Exception {
		g.use("fmt")
		g.p("func (p *%s) Error() string {", name)
		g.p("return fmt.Sprintf(%q, *p)", name+"(%+v)")
		g.p("}")
		g.p("")
	}

	switch g.dialect(d) {
	case token.DialectThrift:
		g.thriftStruct(d, name)
	case token.DialectProto:
		g.protoStruct(d, name)
	}
}

func (g *generator) tags(d *ir.Decl, f *ir.Field) string {
	jsonName := f.JSONName
	if jsonName == "" {
		jsonName = f.Name
	}
	var b strings.Builder
	if g.dialect(d) == token.DialectProto {
		if f.Oneof {
			fmt.Fprintf(&b, `protobuf_oneof:"%s"`, f.Name)
		} else {
			fmt.Fprintf(&b, `protobuf:"%d"`, f.ID)
		}
	} else {
		fmt.Fprintf(&b, `thrift:"%s,%d`, f.Name, f.ID)
		if f.Req == ir.Required {
			b.WriteString(",required")
		}
		b.WriteByte('"')
	}
	fmt.Fprintf(&b, ` json:"%s,omitempty"`, jsonName)
	return b.String()
}

// constructor emits NewT; with MaterializeDefaults it fills in declared
// defaults.
func (g *generator) constructor(d *ir.Decl, name string, union bool) {
	g.p("func New%s() *%s {", name, name)
	g.p("p := &%s{}", name)
	if g.cfg.Features.MaterializeDefaults {
		for _, f := range d.Fields {
			if f.Default == nil {
				continue
			}
			field := g.names.Field(d, f)
			lit := g.literal(f.Type, f.Default)
			if g.pointerField(f, union) {
				v := g.fresh("v")
				g.p("%s := %s(%s)", v, g.goType(f.Type), lit)
				g.p("p.%s = &%s", field, v)
			} else {
				g.p("p.%s = %s", field, lit)
			}
		}
	}
	g.p("return p")
	g.p("}")
	g.p("")
}

// getters: Get<Field> returns the declared default, or the zero value,
// when a pointer field is unset.
func (g *generator) getters(d *ir.Decl, name string, union bool) {
	for _, f := range d.Fields {
		field := g.names.Field(d, f)
		typ := g.goType(f.Type)
		g.p("func (p *%s) Get%s() %s {", name, field, typ)
		if g.pointerField(f, union) {
			def := g.zero(f.Type)
			if f.Default != nil {
				def = g.literal(f.Type, f.Default)
			}
			g.p("if p == nil || p.%s == nil {", field)
			g.p("return %s", def)
			g.p("}")
			g.p("return *p.%s", field)
		} else {
			g.p("if p == nil {")
			g.p("return %s", g.zero(f.Type))
			g.p("}")
			g.p("return p.%s", field)
		}
		g.p("}")
		g.p("")
	}
}

func (g *generator) countSet(d *ir.Decl, name string) {
	g.p("// CountSetFields returns how many members are set; a valid value has one.")
	g.p("func (p *%s) CountSetFields() int {", name)
	g.p("n := 0")
	for _, f := range d.Fields {
		g.p("if p.%s != nil {", g.names.Field(d, f))
		g.p("n++")
		g.p("}")
	}
	g.p("return n")
	g.p("}")
	g.p("")
}
