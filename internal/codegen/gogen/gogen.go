// Package gogen is the reference Go backend. Thrift-dialect modules get
// TProtocol Read/Write methods, proto-dialect modules get protobuf wire
// AppendProto/Unmarshal methods; services become Go interfaces.
package gogen

import (
	"bytes"
	"fmt"
	"go/format"
	"path"
	"slices"
	"strconv"
	"strings"

	"idlc/internal/codegen"
	"idlc/internal/diag"
	"idlc/internal/ir"
	"idlc/internal/token"
)

const Target = "go"

const (
	thriftImport    = "github.com/apache/thrift/lib/go/thrift"
	protowireImport = "google.golang.org/protobuf/encoding/protowire"
)

// goReserved are identifiers a generated parameter or local must not take.
var goReserved = []string{
	"break", "case", "chan", "const", "continue", "default", "defer", "else",
	"fallthrough", "for", "func", "go", "goto", "if", "import", "interface",
	"map", "package", "range", "return", "select", "struct", "switch", "type",
	"var", "ctx", "err", "p", "m", "b",
}

type Backend struct{}

func init() {
	codegen.Register(Backend{})
}

func (Backend) Target() string { return Target }

func (Backend) Emit(schema *ir.Schema, module string, cfg *codegen.Config) ([]codegen.OutputUnit, error) {
	g, err := newGenerator(schema, module, cfg)
	if err != nil {
		return nil, err
	}
	src, err := g.file()
	if err != nil {
		return nil, err
	}
	return []codegen.OutputUnit{{Path: g.outPath, Module: module, Content: src}}, nil
}

type pkgInfo struct {
	Name       string
	Dir        string
	ImportPath string
}

// generator builds one Go file. Lines are written unindented; go/format
// lays them out at the end.
type generator struct {
	schema *ir.Schema
	cfg    *codegen.Config
	names  *codegen.Namer

	mod     *ir.Module // nil в режиме single-file
	single  bool
	pkg     pkgInfo
	outPath string

	typeNames map[ir.DeclRef]string
	std       map[string]bool   // используемые пакеты stdlib
	imports   map[string]string // import path -> alias
	aliases   map[string]bool

	buf bytes.Buffer
	err *codegen.Error
	tmp int
}

func newGenerator(schema *ir.Schema, module string, cfg *codegen.Config) (*generator, error) {
	g := &generator{
		schema:  schema,
		cfg:     cfg,
		names:   codegen.NewNamer(cfg.Naming, goReserved),
		std:     make(map[string]bool),
		imports: make(map[string]string),
		aliases: map[string]bool{
			"context": true, "fmt": true, "math": true, "sort": true,
			"strconv": true, "thrift": true, "protowire": true,
		},
	}
	if module == "" {
		g.single = true
		name := "idl"
		if cfg.GoPackage != "" {
			name = path.Base(cfg.GoPackage)
		}
		g.pkg = pkgInfo{Name: sanitizePackage(name), ImportPath: cfg.GoPackage}
		g.outPath = cfg.OutPath(g.pkg.Name + ".go")
	} else {
		g.mod = schema.Module(module)
		if g.mod == nil {
			return nil, codegen.Errorf(diag.GenBackendFailed, module, "module is not part of the schema")
		}
		g.pkg = packageOf(g.mod, cfg)
		g.outPath = cfg.OutPath(path.Join(g.pkg.Dir, codegen.ModuleStem(module)+".go"))
	}
	g.typeNames = g.assignNames()
	return g, nil
}

// packageOf derives the Go package of m: go_package option, then the go
// namespace, then the module package, then the file stem. Path rules may
// move the directory.
func packageOf(m *ir.Module, cfg *codegen.Config) pkgInfo {
	var dir, name string
	external := false
	if gp, ok := m.Option("go_package"); ok && gp != "" {
		dir, name, _ = strings.Cut(gp, ";")
		if cfg.GoPackage != "" && strings.HasPrefix(dir, cfg.GoPackage+"/") {
			dir = strings.TrimPrefix(dir, cfg.GoPackage+"/")
		} else {
			external = true
		}
	} else if ns, ok := m.Namespace("go"); ok && ns != "" {
		dir = strings.ReplaceAll(ns, ".", "/")
	} else if m.Package != "" {
		dir = strings.ReplaceAll(m.Package, ".", "/")
	} else {
		dir = codegen.ModuleStem(m.Path)
	}
	moved := cfg.ModuleDir(m.Path, dir)
	if moved != path.Clean(dir) {
		external = false
	}
	dir = moved
	if name == "" {
		name = path.Base(dir)
	}
	imp := dir
	if !external && cfg.GoPackage != "" {
		imp = path.Join(cfg.GoPackage, dir)
	}
	return pkgInfo{Name: sanitizePackage(name), Dir: dir, ImportPath: imp}
}

func sanitizePackage(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if r == '_' || r >= 'a' && r <= 'z' || r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	out := b.String()
	switch {
	case out == "":
		return "idl"
	case out[0] >= '0' && out[0] <= '9':
		return "p" + out
	}
	return out
}

// assignNames gives every declaration its Go name. In single-file layout
// a name already taken is prefixed with its module stem.
func (g *generator) assignNames() map[ir.DeclRef]string {
	out := make(map[ir.DeclRef]string)
	taken := make(map[string]bool)
	for _, m := range g.schema.Modules {
		for _, d := range m.Decls {
			name := g.names.Type(d)
			if g.single && taken[name] {
				name = g.names.Exported(codegen.ModuleStem(m.Path)) + name
			}
			taken[name] = true
			out[d.Ref()] = name
		}
	}
	return out
}

func (g *generator) modPath() string {
	if g.mod == nil {
		return ""
	}
	return g.mod.Path
}

func (g *generator) fail(e *codegen.Error) {
	if g.err == nil {
		g.err = e
	}
}

func (g *generator) unsupported(t *ir.TypeRef, why string) {
	e := codegen.Unsupported(g.modPath(), t)
	if why != "" {
		e.Msg += ": " + why
	}
	g.fail(e)
}

// p writes one line of generated code.
func (g *generator) p(format string, args ...any) {
	fmt.Fprintf(&g.buf, format, args...)
	g.buf.WriteByte('\n')
}

func (g *generator) doc(text string) {
	if text == "" {
		return
	}
	for _, line := range strings.Split(strings.TrimRight(text, "\n"), "\n") {
		g.p("// %s", strings.TrimSpace(line))
	}
}

func (g *generator) use(pkg string) { g.std[pkg] = true }

func (g *generator) useThrift() string {
	g.imports[thriftImport] = "thrift"
	return "thrift"
}

func (g *generator) useProtowire() string {
	g.imports[protowireImport] = "protowire"
	return "protowire"
}

// fresh returns a new local variable name.
func (g *generator) fresh(prefix string) string {
	g.tmp++
	return prefix + strconv.Itoa(g.tmp)
}

func (g *generator) dialect(d *ir.Decl) token.Dialect {
	if m := g.schema.Module(d.Module); m != nil {
		return m.Dialect
	}
	return token.DialectUnknown
}

// qualify prefixes name with the import alias of d's package when d lives
// elsewhere.
func (g *generator) qualify(d *ir.Decl, name string) string {
	if g.single || d.Module == g.mod.Path {
		return name
	}
	m := g.schema.Module(d.Module)
	if m == nil {
		return name
	}
	p := packageOf(m, g.cfg)
	if p.ImportPath == g.pkg.ImportPath {
		return name
	}
	alias, ok := g.imports[p.ImportPath]
	if !ok {
		alias = p.Name
		for i := 2; g.aliases[alias]; i++ {
			alias = p.Name + strconv.Itoa(i)
		}
		g.aliases[alias] = true
		g.imports[p.ImportPath] = alias
	}
	return alias + "." + name
}

func (g *generator) qualName(d *ir.Decl) string {
	return g.qualify(d, g.typeNames[d.Ref()])
}

// emitted lists the declarations of this file in emission order.
func (g *generator) emitted() []*ir.Decl {
	var out []*ir.Decl
	for _, ref := range g.schema.EmitOrder {
		if !g.single && ref.Module != g.mod.Path {
			continue
		}
		if !g.cfg.Wants(ref) {
			continue
		}
		d := g.schema.Resolve(ref)
		if d == nil || d.Synthetic == ir.SynthMapEntry {
			continue
		}
		out = append(out, d)
	}
	return out
}

func (g *generator) file() ([]byte, error) {
	for _, d := range g.emitted() {
		switch d.Kind {
		case ir.DeclEnum:
			g.enum(d)
		case ir.DeclTypedef:
			g.typedef(d)
		case ir.DeclConst:
			g.constant(d)
		case ir.DeclStruct, ir.DeclUnion:
			g.structure(d)
		case ir.DeclService:
			if g.cfg.Features.GenerateServices {
				g.service(d)
			}
		}
		if g.err != nil {
			return nil, g.err
		}
	}

	var out bytes.Buffer
	out.WriteString("// Code generated by idlc. DO NOT EDIT.\n")
	if g.mod != nil {
		fmt.Fprintf(&out, "// source: %s\n", g.mod.Path)
	}
	fmt.Fprintf(&out, "\npackage %s\n", g.pkg.Name)
	g.writeImports(&out)
	out.WriteByte('\n')
	out.Write(g.buf.Bytes())

	src, err := format.Source(out.Bytes())
	if err != nil {
		return nil, &codegen.Error{Code: diag.GenBackendFailed, Module: g.modPath(), Msg: "gofmt", Err: err}
	}
	return src, nil
}

func (g *generator) writeImports(out *bytes.Buffer) {
	if len(g.std)+len(g.imports) == 0 {
		return
	}
	std := make([]string, 0, len(g.std))
	for p := range g.std {
		std = append(std, p)
	}
	slices.Sort(std)
	other := make([]string, 0, len(g.imports))
	for p := range g.imports {
		other = append(other, p)
	}
	slices.Sort(other)

	out.WriteString("\nimport (\n")
	for _, p := range std {
		fmt.Fprintf(out, "%q\n", p)
	}
	if len(std) > 0 && len(other) > 0 {
		out.WriteByte('\n')
	}
	for _, p := range other {
		alias := g.imports[p]
		if alias == path.Base(p) {
			fmt.Fprintf(out, "%q\n", p)
		} else {
			fmt.Fprintf(out, "%s %q\n", alias, p)
		}
	}
	out.WriteString(")\n")
}
