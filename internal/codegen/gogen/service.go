package gogen

import (
	"strings"

	"idlc/internal/ir"
	"idlc/internal/token"
)

func (g *generator) service(d *ir.Decl) {
	name := g.typeNames[d.Ref()]
	g.use("context")
	g.doc(d.Doc)
	g.p("type %s interface {", name)
	if d.Extends != nil {
		if parent := g.schema.Resolve(d.Extends.Target); parent != nil {
			g.p("%s", g.qualName(parent))
		}
	}
	for _, m := range d.Methods {
		g.doc(m.Doc)
		g.p("%s(%s) %s", g.names.Method(d, m), g.params(m), g.results(m))
	}
	g.p("}")
	g.p("")

	if g.dialect(d) != token.DialectThrift {
		return
	}
	for _, m := range d.Methods {
		g.methodStructs(d, name, m)
	}
}

func (g *generator) params(m *ir.Method) string {
	parts := []string{"ctx context.Context"}
	for _, a := range m.Args {
		typ := g.goType(a.Type)
		if m.ArgStream {
			typ = "<-chan " + typ
		}
		parts = append(parts, g.names.Local(a.Name)+" "+typ)
	}
	return strings.Join(parts, ", ")
}

func (g *generator) results(m *ir.Method) string {
	if m.Result == nil || m.Oneway {
		return "error"
	}
	typ := g.goType(m.Result)
	if m.ResultStream {
		typ = "<-chan " + typ
	}
	return "(" + typ + ", error)"
}

// methodStructs emits <Service><Method>Args and, unless the method is
// one-way, <Service><Method>Result: field 0 carries the return value, the
// declared exceptions follow.
func (g *generator) methodStructs(d *ir.Decl, svc string, m *ir.Method) {
	method := g.names.Method(d, m)
	args := &ir.Decl{
		Kind:   ir.DeclStruct,
		Name:   d.Name + "." + m.Name + "_args",
		Module: d.Module,
		Fields: m.Args,
	}
	g.typeNames[args.Ref()] = svc + method + "Args"
	g.structure(args)
	if m.Oneway {
		return
	}

	res := &ir.Decl{
		Kind:   ir.DeclStruct,
		Name:   d.Name + "." + m.Name + "_result",
		Module: d.Module,
	}
	if m.Result != nil {
		res.Fields = append(res.Fields, &ir.Field{ID: 0, Name: "success", Type: m.Result, Req: ir.Optional})
	}
	for _, t := range m.Throws {
		c := t.Clone()
		c.Req = ir.Optional
		res.Fields = append(res.Fields, c)
	}
	g.typeNames[res.Ref()] = svc + method + "Result"
	g.structure(res)
}
