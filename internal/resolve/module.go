package resolve

import (
	"fmt"
	"strings"

	"idlc/internal/diag"
	"idlc/internal/ir"
	"idlc/internal/source"
	"idlc/internal/token"
)

type Options struct {
	Reporter     diag.Reporter // дополнительный получатель
	IncludePaths []string      // для Resolve: где искать импорты без Resolved
	Jobs         int           // для Resolve: параллелизм, 0 — без ограничения
}

type ModuleResult struct {
	Module      *ir.Module
	Diagnostics []diag.Diagnostic
}

// Module resolves every symbolic reference of sc.Module against the scope.
// The lowered module is not touched; the result holds a clone whose type
// and const targets are filled. Unresolved references keep a zero target.
func Module(sc Scope, opts Options) ModuleResult {
	bag := diag.NewBag(0)
	var rep diag.Reporter = diag.BagReporter{Bag: bag}
	if opts.Reporter != nil {
		rep = diag.MultiReporter{rep, opts.Reporter}
	}
	mod := sc.Module.Clone()
	for i := range mod.Imports {
		if i < len(sc.Imports) {
			mod.Imports[i].Resolved = sc.Imports[i]
		}
	}
	r := &moduleResolver{
		mod:   mod,
		env:   newLookupEnv(sc),
		rep:   rep,
		local: make(map[string]*ir.Decl, len(mod.Decls)),
	}
	for _, d := range mod.Decls {
		r.local[d.Name] = d
	}
	for _, d := range mod.Decls {
		r.decl(d)
	}
	bag.Sort()
	return ModuleResult{Module: mod, Diagnostics: bag.Items()}
}

type moduleResolver struct {
	mod   *ir.Module
	env   *lookupEnv
	rep   diag.Reporter
	local map[string]*ir.Decl
}

// lexicalScope — область поиска имён внутри d: пользовательское сообщение
// видит свои вложенные объявления, синтетика видит область владельца.
func lexicalScope(d *ir.Decl) string {
	if d.Kind == ir.DeclStruct && d.Synthetic == ir.SynthNone {
		return d.Name
	}
	return d.Scope
}

func (r *moduleResolver) decl(d *ir.Decl) {
	scope := ""
	if r.mod.Dialect == token.DialectProto {
		scope = lexicalScope(d)
	}
	switch d.Kind {
	case ir.DeclStruct, ir.DeclUnion:
		r.fields(d.Fields, scope)
	case ir.DeclTypedef:
		r.typeRef(d.Type, scope)
	case ir.DeclConst:
		if r.typeRef(d.Type, scope) {
			r.constValue(d.Value, d.Type, scope)
		}
	case ir.DeclService:
		if d.Extends != nil {
			if c, ok := r.resolveNamed(d.Extends, scope, func(x ir.Export) bool { return x.Kind == ir.DeclService }); ok && c.exp.Kind != ir.DeclService {
				diag.ReportError(r.rep, diag.SemaExtendsNotService, d.Extends.Span,
					fmt.Sprintf("service %q extends %s %q, expected a service", d.Name, c.exp.Kind, d.Extends.Name)).Emit()
				d.Extends.Target = ir.DeclRef{}
			}
		}
		for _, m := range d.Methods {
			r.fields(m.Args, scope)
			if m.Result != nil {
				r.typeRef(m.Result, scope)
			}
			for _, t := range m.Throws {
				if !r.typeRef(t.Type, scope) || t.Type.Kind != ir.TypeNamed {
					continue
				}
				if target := r.exportOf(t.Type.Target); !target.Exception {
					diag.ReportError(r.rep, diag.SemaThrowsNotException, t.Type.Span,
						fmt.Sprintf("%q in throws of %s.%s is not an exception", t.Type.Name, d.Name, m.Name)).Emit()
				}
			}
		}
	}
}

func (r *moduleResolver) fields(fields []*ir.Field, scope string) {
	for _, f := range fields {
		if f.Oneof {
			// цель уже известна: синтетический union этого модуля
			continue
		}
		if !r.typeRef(f.Type, scope) {
			continue
		}
		if f.Default != nil {
			r.constValue(f.Default, f.Type, scope)
		}
	}
}

// typeRef resolves every named type inside t. It reports false when some
// part stayed unresolved.
func (r *moduleResolver) typeRef(t *ir.TypeRef, scope string) bool {
	ok := true
	t.Walk(func(t *ir.TypeRef) {
		if t.Kind != ir.TypeNamed || !t.Target.IsZero() {
			return
		}
		c, found := r.resolveNamed(t, scope, isType)
		if !found {
			ok = false
			return
		}
		if !c.exp.Kind.IsType() {
			diag.ReportError(r.rep, diag.SemaNotAType, t.Span,
				fmt.Sprintf("%q is a %s, not a type", t.Name, c.exp.Kind)).Emit()
			t.Target = ir.DeclRef{}
			ok = false
		}
	})
	return ok
}

func isType(x ir.Export) bool { return x.Kind.IsType() }

// resolveNamed looks t up and records the target. Unresolved and ambiguous
// references are reported here.
func (r *moduleResolver) resolveNamed(t *ir.TypeRef, scope string, accept func(ir.Export) bool) (candidate, bool) {
	c, ok := r.lookup(t.Name, scope, t.Span, accept)
	if ok {
		t.Target = c.ref
	}
	return c, ok
}

func (r *moduleResolver) lookup(name, scope string, sp source.Span, accept func(ir.Export) bool) (candidate, bool) {
	found := r.env.lookup(name, scope)
	switch len(found) {
	case 0:
		msg := fmt.Sprintf("unresolved reference %q", name)
		b := diag.ReportError(r.rep, diag.SemaUnresolvedReference, sp, msg)
		if sugg := r.env.suggest(name, accept); len(sugg) > 0 {
			b.WithNote(sp, "did you mean "+quoteList(sugg)+"?")
		}
		b.Emit()
		return candidate{}, false
	case 1:
		return found[0], true
	}
	b := diag.ReportError(r.rep, diag.SemaAmbiguousReference, sp,
		fmt.Sprintf("reference %q is ambiguous: %d imported modules declare it", name, len(found)))
	for _, c := range found {
		b.WithNote(sp, fmt.Sprintf("candidate %s %s", c.exp.Kind, c.ref))
	}
	b.Emit()
	return candidate{}, false
}

func quoteList(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = fmt.Sprintf("%q", n)
	}
	return strings.Join(quoted, ", ")
}

// exportOf returns the export entry of a resolved reference.
func (r *moduleResolver) exportOf(ref ir.DeclRef) ir.Export {
	for _, e := range r.env.closure {
		if e.Module == ref.Module {
			x, _ := e.Lookup(ref.Name)
			return x
		}
	}
	return ir.Export{}
}
