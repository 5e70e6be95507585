package lower

import (
	"fmt"
	"path"
	"strings"

	"idlc/internal/ast"
	"idlc/internal/diag"
	"idlc/internal/ir"
	"idlc/internal/source"
	"idlc/internal/token"
)

type Options struct {
	Reporter diag.Reporter // дополнительный получатель; Result.Diagnostics заполняется всегда
}

type Result struct {
	Module      *ir.Module
	Table       *ir.SymbolTable
	Diagnostics []diag.Diagnostic
}

// Lower maps a parsed file onto IR declarations and builds the module's
// symbol table. It never consults other modules. Malformed declarations are
// reported and skipped; lowering always returns a module.
func Lower(file *ast.File, opts Options) Result {
	l := newLowerer(file, opts)
	if file.Dialect == token.DialectProto {
		l.lowerProto()
	} else {
		l.lowerThrift()
	}
	l.bag.Sort()
	return Result{Module: l.mod, Table: l.table, Diagnostics: l.bag.Items()}
}

type lowerer struct {
	file   *ast.File
	mod    *ir.Module
	table  *ir.SymbolTable
	rep    diag.Reporter
	bag    *diag.Bag
	proto3 bool
}

func newLowerer(file *ast.File, opts Options) *lowerer {
	bag := diag.NewBag(0)
	var rep diag.Reporter = diag.BagReporter{Bag: bag}
	if opts.Reporter != nil {
		rep = diag.MultiReporter{rep, opts.Reporter}
	}
	mod := &ir.Module{
		Path:    file.Path,
		Package: modulePackage(file),
		Dialect: file.Dialect,
		Span:    file.Span,
	}
	for _, ns := range file.Namespaces {
		mod.Namespaces = append(mod.Namespaces, ir.Namespace{Scope: ns.Scope, Name: ns.Name})
	}
	for _, imp := range file.Imports {
		mod.Imports = append(mod.Imports, ir.Import{
			Path:   imp.Path,
			Public: imp.Kind == ast.ImportPublic,
			Weak:   imp.Kind == ast.ImportWeak,
			Span:   imp.Span,
		})
	}
	return &lowerer{
		file:  file,
		mod:   mod,
		table: ir.NewSymbolTable(mod.Path, mod.Package),
		rep:   rep,
		bag:   bag,
	}
}

// modulePackage: для proto — объявленный package, для thrift — имя файла без
// расширения (так thrift квалифицирует include).
func modulePackage(file *ast.File) string {
	if file.Dialect == token.DialectProto {
		if file.Package != nil {
			return file.Package.Text
		}
		return ""
	}
	base := path.Base(file.Path)
	return strings.TrimSuffix(base, path.Ext(base))
}

func (l *lowerer) errorf(code diag.Code, sp source.Span, format string, args ...any) *diag.ReportBuilder {
	return diag.ReportError(l.rep, code, sp, fmt.Sprintf(format, args...))
}

func (l *lowerer) warnf(code diag.Code, sp source.Span, format string, args ...any) *diag.ReportBuilder {
	return diag.ReportWarning(l.rep, code, sp, fmt.Sprintf(format, args...))
}

// define registers d in the symbol table and the module. A duplicate name is
// reported and the second declaration dropped.
func (l *lowerer) define(d *ir.Decl) bool {
	if prev, ok := l.table.Define(d); !ok {
		l.errorf(diag.SemaDuplicateDefinition, d.NameSpan, "%q is already defined in this module", d.Name).
			WithNote(prev.NameSpan, "previous definition here").
			Emit()
		return false
	}
	l.mod.Decls = append(l.mod.Decls, d)
	return true
}

func (l *lowerer) lowerType(t *ast.TypeExpr) *ir.TypeRef {
	if t == nil {
		return nil
	}
	switch t.Kind {
	case ast.TypeList:
		return &ir.TypeRef{Kind: ir.TypeList, Elem: l.lowerType(t.Elem), Span: t.Span}
	case ast.TypeSet:
		return &ir.TypeRef{Kind: ir.TypeSet, Elem: l.lowerType(t.Elem), Span: t.Span}
	case ast.TypeMap:
		return &ir.TypeRef{Kind: ir.TypeMap, Key: l.lowerType(t.Key), Value: l.lowerType(t.Value), Span: t.Span}
	}
	if p, ok := ir.LookupPrim(l.file.Dialect, t.Name.Text); ok {
		return ir.NewPrim(p, t.Span)
	}
	return ir.NewNamed(t.Name.Text, t.Span)
}

func lowerConst(c *ast.ConstExpr) *ir.ConstValue {
	if c == nil {
		return nil
	}
	out := &ir.ConstValue{Span: c.Span}
	switch c.Kind {
	case ast.ConstInt:
		out.Kind, out.Int = ir.ConstInt, c.Int
	case ast.ConstFloat:
		out.Kind, out.Float = ir.ConstFloat, c.Float
	case ast.ConstString:
		out.Kind, out.Str = ir.ConstString, c.Str
	case ast.ConstBool:
		out.Kind, out.Bool = ir.ConstBool, c.Bool
	case ast.ConstIdent:
		out.Kind, out.Ref = ir.ConstRef, c.Ident.Text
	case ast.ConstList:
		out.Kind = ir.ConstList
		for _, e := range c.Elems {
			out.Elems = append(out.Elems, lowerConst(e))
		}
	case ast.ConstMap:
		out.Kind = ir.ConstMap
		for _, e := range c.Entries {
			out.Entries = append(out.Entries, ir.ConstEntry{Key: lowerConst(e.Key), Value: lowerConst(e.Value)})
		}
	}
	return out
}

// nameAnnotation — ключ переименования для диалекта.
func (l *lowerer) nameAnnotation() string {
	if l.file.Dialect == token.DialectProto {
		return "(idlc.name)"
	}
	return "idlc.name"
}

// annotations splits off the rename annotation and flattens the rest.
func (l *lowerer) annotations(list []ast.Annotation) (genName string, out []ir.Annotation) {
	key := l.nameAnnotation()
	for _, a := range list {
		v := annotationValue(a.Value)
		if a.Name == key {
			if a.Value == nil || a.Value.Kind != ast.ConstString || v == "" {
				l.errorf(diag.SemaError, a.Span, "%s expects a non-empty string", key).Emit()
				continue
			}
			genName = v
			continue
		}
		out = append(out, ir.Annotation{Name: a.Name, Value: v})
	}
	return genName, out
}

func annotationValue(c *ast.ConstExpr) string {
	if c == nil {
		return ""
	}
	if c.Kind == ast.ConstString {
		return c.Str
	}
	return c.String()
}

// pascal: foo_bar -> FooBar, fooBar -> FooBar.
func pascal(s string) string {
	var b strings.Builder
	upper := true
	for _, r := range s {
		if r == '_' {
			upper = true
			continue
		}
		if upper && r >= 'a' && r <= 'z' {
			r -= 'a' - 'A'
		}
		upper = false
		b.WriteRune(r)
	}
	return b.String()
}

func qualify(scope, name string) string {
	if scope == "" {
		return name
	}
	return scope + "." + name
}
