package driver

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/google/uuid"

	"idlc/internal/codegen"
	"idlc/internal/diag"
	"idlc/internal/ir"
	"idlc/internal/observ"
	"idlc/internal/project"
	"idlc/internal/project/dag"
	"idlc/internal/query"
	"idlc/internal/source"
	"idlc/internal/trace"
)

// ModuleStatus is the outcome of one module of a compilation.
type ModuleStatus struct {
	Path string
	// Hash covers the module text and, transitively, its imports.
	Hash project.Digest
	// Broken: the module itself has errors. Blocked: something in its
	// import closure does.
	Broken  bool
	Blocked bool
	Emitted bool
	Cached  bool
}

type Result struct {
	SessionID   uuid.UUID
	Schema      *ir.Schema
	Units       []codegen.OutputUnit
	Modules     []ModuleStatus
	Diagnostics []diag.Diagnostic
	// Dropped counts diagnostics cut by MaxDiagnostics.
	Dropped int
	Failed  bool
	Timings observ.Report
	Stats   map[query.Kind]query.KindStats
}

// Module returns the status of path.
func (r *Result) Module(path string) (ModuleStatus, bool) {
	for _, m := range r.Modules {
		if m.Path == path {
			return m, true
		}
	}
	return ModuleStatus{}, false
}

// Check loads, parses, lowers and resolves the entries and their imports.
func (s *Session) Check(ctx context.Context) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.run(ctx, false)
}

// Compile checks and then generates code. In fail-fast mode nothing is
// generated once a phase reports an error; in collect-all mode every module
// whose import closure is error-free is still generated, and the result is
// marked failed.
func (s *Session) Compile(ctx context.Context) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.run(ctx, true)
}

type phase struct {
	name    string
	span    *trace.Span
	timer   *observ.Timer
	idx     int
	started time.Time
	observe PhaseObserver
}

func (s *Session) begin(ctx context.Context, timer *observ.Timer, name string) phase {
	if s.opts.OnPhase != nil {
		s.opts.OnPhase(PhaseEvent{Name: name, Status: PhaseStart})
	}
	return phase{
		name:    name,
		span:    trace.Begin(s.tracer, trace.ScopePass, name, trace.CurrentSpan(ctx).SpanID),
		timer:   timer,
		idx:     timer.Begin(name),
		started: time.Now(),
		observe: s.opts.OnPhase,
	}
}

func (p phase) end(note string) {
	p.timer.End(p.idx, note)
	p.span.End(note)
	if p.observe != nil {
		p.observe(PhaseEvent{Name: p.name, Status: PhaseEnd, Elapsed: time.Since(p.started), Note: note})
	}
}

func (s *Session) run(ctx context.Context, emit bool) (*Result, error) {
	started := time.Now()
	name := "check"
	if emit {
		name = "compile"
	}
	ctx = trace.WithTracer(ctx, s.tracer)
	span := trace.Begin(s.tracer, trace.ScopeDriver, name, trace.CurrentSpan(ctx).SpanID)
	defer span.End("")
	ctx = trace.WithSpanContext(ctx, trace.SpanContext{SpanID: span.ID()})

	timer := observ.NewTimer()
	res := &Result{SessionID: s.id}
	bag := diag.NewBag(0)

	ph := s.begin(ctx, timer, "load")
	loadDiags, err := s.load(ctx)
	ph.end(fmt.Sprintf("%d modules", len(s.loaded)))
	if err := s.absorb(bag, err); err != nil {
		return nil, err
	}
	bag.AddAll(loadDiags)
	if len(s.entries) == 0 {
		bag.Add(diag.NewError(diag.ProjNoEntries, source.Span{}, "no entry files"))
	}
	if s.failFast() && bag.HasErrors() {
		return s.finish(res, bag, timer, started), nil
	}

	ph = s.begin(ctx, timer, "resolve")
	sch, err := s.analyze(ctx, res, bag)
	ph.end(fmt.Sprintf("%d modules", len(res.Modules)))
	if err != nil {
		return nil, err
	}
	if sch == nil || !emit || (s.failFast() && bag.HasErrors()) {
		return s.finish(res, bag, timer, started), nil
	}

	ph = s.begin(ctx, timer, "emit")
	err = s.emit(ctx, res, bag, !bag.HasErrors())
	ph.end(fmt.Sprintf("%d units", len(res.Units)))
	if err != nil {
		return nil, err
	}
	return s.finish(res, bag, timer, started), nil
}

// absorb turns a poisoned query into an ICE diagnostic. Cancellation is
// returned as is.
func (s *Session) absorb(bag *diag.Bag, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if ie, ok := query.AsInternal(err); ok {
		s.log.Error().Err(err).Str("key", ie.Key.String()).Msg("query poisoned")
		bag.Add(ie.Diagnostic())
		return nil
	}
	bag.Add(diag.NewError(diag.ICEInvariant, source.Span{}, err.Error()))
	return nil
}

// analyze links the schema and fills per-module statuses.
func (s *Session) analyze(ctx context.Context, res *Result, bag *diag.Bag) (*schemaOut, error) {
	if s.failFast() {
		stopped, err := s.resolveUntilError(ctx, res, bag)
		if err != nil || stopped {
			return nil, err
		}
	}
	v, err := s.engine.Get(ctx, query.K(KindSchema, ""))
	if err != nil {
		return nil, s.absorb(bag, err)
	}
	sch := v.(*schemaOut)
	res.Schema = sch.Schema

	keys := make([]query.Key, 0, 2*len(sch.Modules))
	for _, m := range sch.Modules {
		keys = append(keys, query.K(KindResolve, m), query.K(KindClosure, m))
	}
	results := s.engine.GetAll(ctx, keys)

	index := make(map[string]int, len(sch.Modules))
	closures := make([][]string, len(sch.Modules))
	nodes := make([]dag.ModuleNode, len(sch.Modules))
	metas := make([]project.ModuleMeta, len(sch.Modules))
	bags := make([]*diag.Bag, len(sch.Modules))
	for i, m := range sch.Modules {
		index[m] = i
		rr, cr := results[2*i], results[2*i+1]
		if err := s.absorb(bag, errors.Join(rr.Err, cr.Err)); err != nil {
			return nil, err
		}
		if rr.Err != nil || cr.Err != nil {
			continue
		}
		r := rr.Value.(*resolved)
		closures[i] = cr.Value.([]string)
		bag.AddAll(r.Diags)

		meta := project.ModuleMeta{Path: m, Dialect: r.Module.Dialect, Span: r.Module.Span}
		if f := s.latest(m); f != nil {
			meta.ContentHash = project.Digest(f.Hash)
		}
		for _, imp := range r.Module.Imports {
			if imp.Resolved != "" {
				meta.Imports = append(meta.Imports, project.ImportMeta{Path: imp.Resolved, Span: imp.Span})
			}
		}
		bags[i] = diag.NewBag(0)
		nodes[i] = dag.ModuleNode{Meta: meta, Reporter: diag.BagReporter{Bag: bags[i]}}
		metas[i] = meta
		if first := firstError(r.Diags); first != nil {
			nodes[i].Broken, nodes[i].FirstErr = true, first
		}
	}

	// ошибки линковки относим к модулю по файлу диагностики
	bag.AddAll(sch.Diags)
	global := false
	for _, d := range sch.Diags {
		if !d.IsError() {
			continue
		}
		i, ok := index[s.moduleOf(d.Primary)]
		if !ok {
			global = true
			continue
		}
		if !nodes[i].Broken {
			nodes[i].Broken, nodes[i].FirstErr = true, &d
		}
	}

	idx := dag.BuildIndex(metas)
	g, slots := dag.BuildGraph(idx, nodes)
	dag.ReportBrokenDeps(idx, slots)
	dag.ComputeModuleHashes(g, slots)

	res.Modules = make([]ModuleStatus, len(sch.Modules))
	for i, m := range sch.Modules {
		st := ModuleStatus{Path: m, Broken: nodes[i].Broken, Blocked: global}
		if id, ok := idx.NameToID[m]; ok {
			st.Hash = slots[id].Meta.ModuleHash
		}
		for _, dep := range closures[i] {
			if j, ok := index[dep]; ok && j != i && nodes[j].Broken {
				st.Blocked = true
			}
		}
		if bags[i] != nil {
			bag.AddAll(bags[i].Items())
		}
		res.Modules[i] = st
	}
	return sch, nil
}

// resolveUntilError resolves the import closures of the entries and
// cancels the modules still pending once one of them reports an error. It
// reports whether it stopped; the broken modules' diagnostics go to bag.
func (s *Session) resolveUntilError(ctx context.Context, res *Result, bag *diag.Bag) (bool, error) {
	keys := make([]query.Key, len(s.entries))
	for i, e := range s.entries {
		keys[i] = query.K(KindClosure, e)
	}
	all := make(map[string]bool)
	for _, r := range s.engine.GetAll(ctx, keys) {
		if r.Err != nil {
			return true, s.absorb(bag, r.Err)
		}
		for _, m := range r.Value.([]string) {
			all[m] = true
		}
	}
	mods := slices.Sorted(maps.Keys(all))
	keys = keys[:0]
	for _, m := range mods {
		keys = append(keys, query.K(KindResolve, m))
	}
	results := s.engine.GetAllUntil(ctx, keys, func(r query.Result) bool {
		return diag.HasErrors(r.Value.(*resolved).Diags)
	})

	stopped := false
	for i, r := range results {
		if r.Err != nil {
			if errors.Is(r.Err, context.Canceled) && ctx.Err() == nil {
				continue
			}
			if err := s.absorb(bag, r.Err); err != nil {
				return true, err
			}
			stopped = true
			continue
		}
		rd := r.Value.(*resolved)
		if diag.HasErrors(rd.Diags) {
			stopped = true
			bag.AddAll(rd.Diags)
			res.Modules = append(res.Modules, ModuleStatus{Path: mods[i], Broken: true})
		}
	}
	if stopped {
		s.log.Debug().Int("modules", len(mods)).Int("broken", len(res.Modules)).Msg("fail-fast: stopping resolve")
	}
	return stopped, nil
}

func firstError(ds []diag.Diagnostic) *diag.Diagnostic {
	for i := range ds {
		if ds[i].IsError() {
			return &ds[i]
		}
	}
	return nil
}

func (s *Session) latest(p string) *source.File {
	id, ok := s.files.GetLatest(p)
	if !ok {
		return nil
	}
	return s.files.Get(id)
}

func (s *Session) moduleOf(sp source.Span) string {
	if sp == (source.Span{}) {
		return ""
	}
	if f := s.files.Get(sp.File); f != nil {
		return f.Path
	}
	return ""
}

// emit generates every healthy module; clean reports that the whole
// compilation is error-free so far, which the single-file layout needs.
func (s *Session) emit(ctx context.Context, res *Result, bag *diag.Bag, clean bool) error {
	v, err := s.engine.Get(ctx, query.K(KindSelect, ""))
	if err != nil {
		return s.absorb(bag, err)
	}
	sel := v.(*selected)
	bag.AddAll(sel.Diags)
	if diag.HasErrors(sel.Diags) {
		return nil
	}

	var keys []query.Key
	if s.gen.Paths.Layout == codegen.LayoutSingleFile {
		if clean {
			keys = append(keys, query.K(KindEmit, ""))
		}
	} else {
		for _, st := range res.Modules {
			if !st.Broken && !st.Blocked {
				keys = append(keys, query.K(KindEmit, st.Path))
			}
		}
	}

	byPath := make(map[string]int, len(res.Modules))
	for i, st := range res.Modules {
		byPath[st.Path] = i
	}
	var units []codegen.OutputUnit
	for _, r := range s.engine.GetAll(ctx, keys) {
		if err := s.absorb(bag, r.Err); err != nil {
			return err
		}
		if r.Err != nil {
			continue
		}
		em := r.Value.(*emitted)
		bag.AddAll(em.Diags)
		units = append(units, em.Units...)
		for _, u := range em.Units {
			if i, ok := byPath[u.Module]; ok {
				res.Modules[i].Emitted = true
				res.Modules[i].Cached = em.Cached
			}
		}
	}
	if err := codegen.CheckConflicts(units); err != nil {
		var ge *codegen.Error
		if errors.As(err, &ge) {
			bag.Add(ge.Diagnostic())
		}
		return nil
	}
	codegen.SortUnits(units)
	res.Units = units
	return nil
}

func (s *Session) finish(res *Result, bag *diag.Bag, timer *observ.Timer, started time.Time) *Result {
	bag.Dedup()
	bag.Sort()
	res.Failed = bag.HasErrors()
	res.Diagnostics = bag.Items()
	if limit := s.opts.MaxDiagnostics; limit > 0 && len(res.Diagnostics) > limit {
		res.Dropped = len(res.Diagnostics) - limit
		res.Diagnostics = res.Diagnostics[:limit]
	}
	res.Timings = timer.Report()
	res.Stats = s.engine.Stats()
	s.log.Debug().
		Int("modules", len(res.Modules)).
		Int("units", len(res.Units)).
		Int("errors", diag.CountErrors(res.Diagnostics)).
		Bool("failed", res.Failed).
		Dur("elapsed", time.Since(started)).
		Msg("compilation finished")
	return res
}
