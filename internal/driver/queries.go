package driver

import (
	"errors"
	"fmt"
	"slices"

	"idlc/internal/ast"
	"idlc/internal/codegen"
	"idlc/internal/diag"
	"idlc/internal/dialect"
	"idlc/internal/ir"
	"idlc/internal/lower"
	"idlc/internal/parser"
	"idlc/internal/project"
	"idlc/internal/query"
	"idlc/internal/resolve"
	"idlc/internal/source"
	"idlc/internal/token"
)

// Query kinds of a session. source and config are inputs; the rest are
// derived.
const (
	KindSource  query.Kind = "source"
	KindConfig  query.Kind = "config"
	KindParse   query.Kind = "parse"
	KindLower   query.Kind = "lower"
	KindImports query.Kind = "imports"
	KindExports query.Kind = "exports"
	KindClosure query.Kind = "closure"
	KindResolve query.Kind = "resolve"
	KindSchema  query.Kind = "schema"
	KindSelect  query.Kind = "select"
	KindView    query.Kind = "view"
	KindEmit    query.Kind = "emit"
)

// QueryKinds lists the derived kinds in pipeline order.
func QueryKinds() []query.Kind {
	return []query.Kind{KindParse, KindLower, KindImports, KindExports, KindClosure, KindResolve, KindSchema, KindSelect, KindView, KindEmit}
}

// config input arguments
const (
	cfgEntries = "entries"
	cfgInclude = "include"
	cfgGen     = "gen"
)

type parsed struct {
	Path    string
	File    *ast.File
	Diags   []diag.Diagnostic
	Missing bool
	digest  project.Digest
}

// Fingerprint: разбор — чистая функция текста, поэтому хватает хэша содержимого.
func (p *parsed) Fingerprint() project.Digest {
	return project.Combine(p.digest, project.Sum([]byte(p.Path)))
}

type lowered struct {
	Module  *ir.Module
	Diags   []diag.Diagnostic
	Missing bool
	digest  project.Digest
}

// Fingerprint follows the source text: spans are not part of the IR
// encoding, and readers report diagnostics against them.
func (l *lowered) Fingerprint() project.Digest { return l.digest }

type importsOut struct {
	Paths []string // Paths[i] — найденный модуль для Module.Imports[i], "" если нет
	Diags []diag.Diagnostic
}

type resolved struct {
	Path   string
	Module *ir.Module
	// Diags gathers everything reported for the module: parse, lowering,
	// import lookup and name resolution.
	Diags []diag.Diagnostic
	fp    project.Digest
}

func (r *resolved) Fingerprint() project.Digest { return r.fp }

type schemaOut struct {
	Schema  *ir.Schema
	Modules []string
	Diags   []diag.Diagnostic
}

type selected struct {
	Sel   *codegen.Selection
	Diags []diag.Diagnostic
	fp    project.Digest
}

func (s *selected) Fingerprint() project.Digest { return s.fp }

type emitted struct {
	Units  []codegen.OutputUnit
	Diags  []diag.Diagnostic
	Cached bool `msgpack:"-"`
}

func (s *Session) register() {
	e := s.engine
	e.Register(KindParse, s.parseQuery)
	e.Register(KindLower, s.lowerQuery)
	e.Register(KindImports, s.importsQuery)
	e.Register(KindExports, s.exportsQuery)
	e.Register(KindClosure, s.closureQuery)
	e.Register(KindResolve, s.resolveQuery)
	e.Register(KindSchema, s.schemaQuery)
	e.Register(KindSelect, s.selectQuery)
	e.Register(KindView, s.viewQuery)
	e.Register(KindEmit, s.emitQuery)
}

func get[T any](qc *query.Ctx, k query.Key) (T, error) {
	v, err := qc.Get(k)
	if err != nil {
		var zero T
		return zero, err
	}
	t, ok := v.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("%s: unexpected value %T", k, v)
	}
	return t, nil
}

func input[T any](qc *query.Ctx, kind query.Kind, arg string) (T, bool) {
	v, ok := qc.Input(query.K(kind, arg))
	if !ok {
		var zero T
		return zero, false
	}
	t, ok := v.(T)
	return t, ok
}

func (s *Session) parseQuery(qc *query.Ctx, p string) (any, error) {
	f, ok := input[*source.File](qc, KindSource, p)
	if !ok {
		return &parsed{Path: p, Missing: true}, nil
	}
	res := parser.Parse(f, parser.Options{MaxErrors: s.opts.MaxErrors})
	if diag.HasErrors(res.Diagnostics) {
		annotateForeign(f, res.Diagnostics)
	}
	return &parsed{Path: p, File: res.File, Diags: res.Diagnostics, digest: project.Sum(f.Content)}, nil
}

// annotateForeign notes on the first error of a file that fails to parse
// when its text reads like the other dialect.
func annotateForeign(f *source.File, diags []diag.Diagnostic) {
	declared := token.DialectFromPath(f.Path)
	if declared == token.DialectUnknown {
		declared = token.DialectThrift
	}
	ev := dialect.Scan(f)
	detected, ok := dialect.Foreign(dialect.Classifier{}.Classify(ev), declared)
	if !ok {
		return
	}
	sp, _ := ev.First(detected)
	msg := dialect.RenderHint(detected, ev.Reasons(detected, 3))
	for i := range diags {
		if diags[i].IsError() {
			diags[i] = diags[i].WithNote(sp, msg)
			return
		}
	}
}

func (s *Session) lowerQuery(qc *query.Ctx, p string) (any, error) {
	pr, err := get[*parsed](qc, query.K(KindParse, p))
	if err != nil {
		return nil, err
	}
	if pr.Missing {
		return &lowered{Missing: true, digest: pr.Fingerprint()}, nil
	}
	res := lower.Lower(pr.File, lower.Options{})
	return &lowered{Module: res.Module, Diags: res.Diagnostics, digest: pr.Fingerprint()}, nil
}

// importsQuery matches every import of p against the loaded sources in
// search order: the importer's directory, then the include paths.
func (s *Session) importsQuery(qc *query.Ctx, p string) (any, error) {
	low, err := get[*lowered](qc, query.K(KindLower, p))
	if err != nil {
		return nil, err
	}
	out := &importsOut{}
	if low.Missing {
		return out, nil
	}
	includes, _ := input[[]string](qc, KindConfig, cfgInclude)
	out.Paths = make([]string, len(low.Module.Imports))
	for i, imp := range low.Module.Imports {
		for _, cand := range project.ImportCandidates(p, imp.Path, includes) {
			if _, ok := qc.Input(query.K(KindSource, cand)); ok {
				out.Paths[i] = cand
				break
			}
		}
		if out.Paths[i] == "" && !imp.Weak {
			out.Diags = append(out.Diags, diag.NewError(diag.IOMissingImport, imp.Span,
				fmt.Sprintf("cannot find import %q", imp.Path)))
		}
	}
	return out, nil
}

func (s *Session) exportsQuery(qc *query.Ctx, p string) (any, error) {
	low, err := get[*lowered](qc, query.K(KindLower, p))
	if err != nil {
		return nil, err
	}
	if low.Missing {
		return (*ir.Exports)(nil), nil
	}
	imps, err := get[*importsOut](qc, query.K(KindImports, p))
	if err != nil {
		return nil, err
	}
	return ir.BuildExports(low.Module, imps.Paths), nil
}

// closureQuery lists p and every module reachable from it through found
// imports, sorted.
func (s *Session) closureQuery(qc *query.Ctx, p string) (any, error) {
	seen := map[string]bool{p: true}
	queue := []string{p}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		imps, err := get[*importsOut](qc, query.K(KindImports, cur))
		if err != nil {
			return nil, err
		}
		for _, dep := range imps.Paths {
			if dep != "" && !seen[dep] {
				seen[dep] = true
				queue = append(queue, dep)
			}
		}
	}
	out := make([]string, 0, len(seen))
	for m := range seen {
		out = append(out, m)
	}
	slices.Sort(out)
	return out, nil
}

func (s *Session) resolveQuery(qc *query.Ctx, p string) (any, error) {
	low, err := get[*lowered](qc, query.K(KindLower, p))
	if err != nil {
		return nil, err
	}
	if low.Missing {
		return &resolved{Path: p}, nil
	}
	pr, err := get[*parsed](qc, query.K(KindParse, p))
	if err != nil {
		return nil, err
	}
	imps, err := get[*importsOut](qc, query.K(KindImports, p))
	if err != nil {
		return nil, err
	}
	closure, err := get[[]string](qc, query.K(KindClosure, p))
	if err != nil {
		return nil, err
	}
	keys := make([]query.Key, len(closure))
	for i, m := range closure {
		keys[i] = query.K(KindExports, m)
	}
	exports := make(map[string]*ir.Exports, len(closure))
	for _, r := range qc.GetAll(keys) {
		if r.Err != nil {
			return nil, r.Err
		}
		if x, _ := r.Value.(*ir.Exports); x != nil {
			exports[r.Key.Arg] = x
		}
	}

	res := resolve.Module(resolve.Scope{Module: low.Module, Imports: imps.Paths, Exports: exports}, resolve.Options{})
	out := &resolved{Path: p, Module: res.Module}
	out.Diags = slices.Concat(pr.Diags, low.Diags, imps.Diags, res.Diagnostics)
	diag.SortDiagnostics(out.Diags)
	fp, err := query.Fingerprint(struct {
		Module *ir.Module
		Diags  []diag.Diagnostic
	}{out.Module, out.Diags})
	if err != nil {
		return nil, err
	}
	out.fp = project.Combine(fp, low.digest)
	return out, nil
}

// schemaQuery links the import closures of all entries.
func (s *Session) schemaQuery(qc *query.Ctx, _ string) (any, error) {
	entries, _ := input[[]string](qc, KindConfig, cfgEntries)
	keys := make([]query.Key, len(entries))
	for i, e := range entries {
		keys[i] = query.K(KindClosure, e)
	}
	all := make(map[string]bool)
	for _, r := range qc.GetAll(keys) {
		if r.Err != nil {
			return nil, r.Err
		}
		for _, m := range r.Value.([]string) {
			all[m] = true
		}
	}
	paths := make([]string, 0, len(all))
	for m := range all {
		paths = append(paths, m)
	}
	slices.Sort(paths)

	keys = keys[:0]
	for _, m := range paths {
		keys = append(keys, query.K(KindResolve, m))
	}
	out := &schemaOut{}
	var mods []*ir.Module
	for _, r := range qc.GetAll(keys) {
		if r.Err != nil {
			return nil, r.Err
		}
		res := r.Value.(*resolved)
		if res.Module == nil {
			continue
		}
		mods = append(mods, res.Module)
		out.Modules = append(out.Modules, res.Path)
	}
	out.Schema, out.Diags = resolve.Link(mods)
	return out, nil
}

func (s *Session) selectQuery(qc *query.Ctx, _ string) (any, error) {
	cfg, ok := input[*codegen.Config](qc, KindConfig, cfgGen)
	if !ok || len(cfg.Features.Roots) == 0 {
		return &selected{}, nil
	}
	sch, err := get[*schemaOut](qc, query.K(KindSchema, ""))
	if err != nil {
		return nil, err
	}
	sel, diags := codegen.Select(sch.Schema, cfg.Features.Roots)
	fp, err := query.Fingerprint(struct {
		Refs  []ir.DeclRef
		Diags []diag.Diagnostic
	}{sel.Refs(), diags})
	if err != nil {
		return nil, err
	}
	return &selected{Sel: sel, Diags: diags, fp: fp}, nil
}

// viewQuery is the span-free slice of the schema one module's generated
// code depends on. Edits that do not change it never reach emission.
func (s *Session) viewQuery(qc *query.Ctx, module string) (any, error) {
	sch, err := get[*schemaOut](qc, query.K(KindSchema, ""))
	if err != nil {
		return nil, err
	}
	if module == "" {
		return sch.Schema, nil
	}
	return sch.Schema.Slice(module), nil
}

// emitQuery generates one module, or the whole schema for the single-file
// layout (module == "").
func (s *Session) emitQuery(qc *query.Ctx, module string) (any, error) {
	cfg, ok := input[*codegen.Config](qc, KindConfig, cfgGen)
	if !ok {
		return nil, fmt.Errorf("emit %s: generator config is not set", module)
	}
	view, err := get[*ir.Schema](qc, query.K(KindView, module))
	if err != nil {
		return nil, err
	}
	sel, err := get[*selected](qc, query.K(KindSelect, ""))
	if err != nil {
		return nil, err
	}
	if diag.HasErrors(sel.Diags) {
		return &emitted{}, nil
	}
	if sel.Sel != nil {
		cfg = cfg.WithSelection(sel.Sel)
	}
	if m := view.Module(module); module != "" && (m == nil || !cfg.WantsModule(m)) {
		return &emitted{}, nil
	}
	b, ok := codegen.Lookup(cfg.Target)
	if !ok {
		return &emitted{Diags: []diag.Diagnostic{
			codegen.Errorf(diag.GenUnknownTarget, "", "unknown target %q", cfg.Target).Diagnostic(),
		}}, nil
	}

	var key project.Digest
	if s.cache != nil {
		key, err = s.unitsKey(view, cfg, sel)
		if err != nil {
			return nil, err
		}
		var payload DiskPayload
		hit, err := s.cache.Get(key, &payload)
		if err != nil {
			s.log.Warn().Err(err).Str("module", module).Msg("disk cache read failed")
		}
		if hit {
			return &emitted{Units: payload.Units, Cached: true}, nil
		}
	}

	units, err := codegen.EmitModule(b, view, module, cfg)
	if err != nil {
		var ge *codegen.Error
		if !errors.As(err, &ge) {
			return nil, err
		}
		return &emitted{Diags: []diag.Diagnostic{ge.Diagnostic()}}, nil
	}
	if s.cache != nil {
		err := s.cache.Put(key, &DiskPayload{Module: module, Target: cfg.Target, Units: units})
		if err != nil {
			s.log.Warn().Err(err).Str("module", module).Msg("disk cache write failed")
		}
	}
	return &emitted{Units: units}, nil
}

func (s *Session) unitsKey(view *ir.Schema, cfg *codegen.Config, sel *selected) (project.Digest, error) {
	viewFP, err := query.Fingerprint(view)
	if err != nil {
		return project.Digest{}, err
	}
	cfgFP, err := query.Fingerprint(cfg)
	if err != nil {
		return project.Digest{}, err
	}
	return unitsKey(viewFP, project.Combine(cfgFP, sel.fp), cfg.Target), nil
}
