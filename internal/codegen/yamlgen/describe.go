package yamlgen

import (
	"idlc/internal/codegen"
	"idlc/internal/ir"
)

type SchemaDoc struct {
	Modules       []ModuleDoc         `yaml:"modules"`
	EmitOrder     []string            `yaml:"emit_order,omitempty"`
	CycleGroups   [][]string          `yaml:"cycle_groups,omitempty"`
	ModuleBatches [][]string          `yaml:"module_batches,omitempty"`
	ModuleCycles  []string            `yaml:"module_cycles,omitempty"`
	ModuleDeps    map[string][]string `yaml:"module_deps,omitempty"`
}

type ModuleDoc struct {
	Path       string            `yaml:"path"`
	Package    string            `yaml:"package,omitempty"`
	Dialect    string            `yaml:"dialect"`
	Syntax     string            `yaml:"syntax,omitempty"`
	Namespaces map[string]string `yaml:"namespaces,omitempty"`
	Options    map[string]string `yaml:"options,omitempty"`
	Imports    []string          `yaml:"imports,omitempty"`
	Decls      []DeclDoc         `yaml:"decls,omitempty"`
}

type DeclDoc struct {
	Kind        string            `yaml:"kind"`
	Name        string            `yaml:"name"`
	Exception   bool              `yaml:"exception,omitempty"`
	Synthetic   string            `yaml:"synthetic,omitempty"`
	Doc         string            `yaml:"doc,omitempty"`
	Annotations map[string]string `yaml:"annotations,omitempty"`
	Fields      []FieldDoc        `yaml:"fields,omitempty"`
	Values      []ValueDoc        `yaml:"values,omitempty"`
	Extends     string            `yaml:"extends,omitempty"`
	Methods     []MethodDoc       `yaml:"methods,omitempty"`
	Type        string            `yaml:"type,omitempty"`
	Value       any               `yaml:"value,omitempty"`
}

type FieldDoc struct {
	ID         int64  `yaml:"id"`
	Name       string `yaml:"name"`
	Type       string `yaml:"type"`
	Req        string `yaml:"requiredness,omitempty"`
	Default    any    `yaml:"default,omitempty"`
	Packed     bool   `yaml:"packed,omitempty"`
	JSONName   string `yaml:"json_name,omitempty"`
	Oneof      bool   `yaml:"oneof,omitempty"`
	Deprecated bool   `yaml:"deprecated,omitempty"`
}

type ValueDoc struct {
	Name  string `yaml:"name"`
	Value int64  `yaml:"value"`
}

type MethodDoc struct {
	Name         string     `yaml:"name"`
	Args         []FieldDoc `yaml:"args,omitempty"`
	Result       string     `yaml:"result"`
	Throws       []FieldDoc `yaml:"throws,omitempty"`
	Oneway       bool       `yaml:"oneway,omitempty"`
	ArgStream    bool       `yaml:"arg_stream,omitempty"`
	ResultStream bool       `yaml:"result_stream,omitempty"`
}

type entryDoc struct {
	Key   any `yaml:"key"`
	Value any `yaml:"value"`
}

var synthNames = map[ir.Synthetic]string{
	ir.SynthMapEntry: "map_entry",
	ir.SynthOneof:    "oneof",
}

func describeModule(m *ir.Module, cfg *codegen.Config) ModuleDoc {
	doc := ModuleDoc{
		Path:    m.Path,
		Package: m.Package,
		Dialect: m.Dialect.String(),
		Syntax:  m.Syntax,
	}
	if len(m.Namespaces) > 0 {
		doc.Namespaces = make(map[string]string, len(m.Namespaces))
		for _, ns := range m.Namespaces {
			doc.Namespaces[ns.Scope] = ns.Name
		}
	}
	doc.Options = annotations(m.Options)
	for _, imp := range m.Imports {
		p := imp.Resolved
		if p == "" {
			p = imp.Path
		}
		doc.Imports = append(doc.Imports, p)
	}
	for _, d := range m.Decls {
		if cfg.Wants(d.Ref()) {
			doc.Decls = append(doc.Decls, describeDecl(d))
		}
	}
	return doc
}

func annotations(as []ir.Annotation) map[string]string {
	if len(as) == 0 {
		return nil
	}
	out := make(map[string]string, len(as))
	for _, a := range as {
		out[a.Name] = a.Value
	}
	return out
}

func describeDecl(d *ir.Decl) DeclDoc {
	doc := DeclDoc{
		Kind:        d.Kind.String(),
		Name:        d.Name,
		Exception:   d.Exception,
		Synthetic:   synthNames[d.Synthetic],
		Doc:         d.Doc,
		Annotations: annotations(d.Annotations),
	}
	for _, f := range d.Fields {
		doc.Fields = append(doc.Fields, describeField(f))
	}
	for _, v := range d.Values {
		doc.Values = append(doc.Values, ValueDoc{Name: v.Name, Value: v.Value})
	}
	if d.Extends != nil {
		doc.Extends = d.Extends.String()
	}
	for _, m := range d.Methods {
		md := MethodDoc{
			Name:         m.Name,
			Result:       m.Result.String(),
			Oneway:       m.Oneway,
			ArgStream:    m.ArgStream,
			ResultStream: m.ResultStream,
		}
		for _, a := range m.Args {
			md.Args = append(md.Args, describeField(a))
		}
		for _, t := range m.Throws {
			md.Throws = append(md.Throws, describeField(t))
		}
		doc.Methods = append(doc.Methods, md)
	}
	if d.Type != nil {
		doc.Type = d.Type.String()
	}
	if d.Value != nil {
		doc.Value = constValue(d.Value)
	}
	return doc
}

func describeField(f *ir.Field) FieldDoc {
	fd := FieldDoc{
		ID:         f.ID,
		Name:       f.Name,
		Type:       f.Type.String(),
		Packed:     f.Packed,
		JSONName:   f.JSONName,
		Oneof:      f.Oneof,
		Deprecated: f.Deprecated,
	}
	if f.Req != ir.DefaultSingular {
		fd.Req = f.Req.String()
	}
	if f.Default != nil {
		fd.Default = constValue(f.Default)
	}
	return fd
}

func constValue(c *ir.ConstValue) any {
	switch c.Kind {
	case ir.ConstInt:
		return c.Int
	case ir.ConstFloat:
		return c.Float
	case ir.ConstString:
		return c.Str
	case ir.ConstBool:
		return c.Bool
	case ir.ConstList:
		out := make([]any, len(c.Elems))
		for i, e := range c.Elems {
			out[i] = constValue(e)
		}
		return out
	case ir.ConstMap:
		out := make([]entryDoc, len(c.Entries))
		for i, e := range c.Entries {
			out[i] = entryDoc{Key: constValue(e.Key), Value: constValue(e.Value)}
		}
		return out
	}
	ref := c.Target.String()
	if c.Target.IsZero() {
		ref = c.Ref
	}
	if c.Member != "" {
		ref += "." + c.Member
	}
	return map[string]string{"ref": ref}
}
