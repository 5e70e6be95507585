package resolve

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"idlc/internal/diag"
	"idlc/internal/ir"
	"idlc/internal/project"
	"idlc/internal/project/dag"
	"idlc/internal/source"
	"idlc/internal/token"
)

// Link assembles resolved modules into a frozen schema: arena handles in
// (module path, declaration order) order, the module and declaration graphs,
// cycle checks and the emission order. Modules must already be resolved;
// unresolved references are skipped.
func Link(mods []*ir.Module) (*ir.Schema, []diag.Diagnostic) {
	bag := diag.NewBag(0)
	rep := diag.BagReporter{Bag: bag}

	sorted := make([]*ir.Module, len(mods))
	copy(sorted, mods)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Path < sorted[j].Path })

	s := ir.NewSchema()
	for _, m := range sorted {
		s.AddModule(m)
	}
	reportQualifiedDuplicates(rep, sorted)

	n := s.Len()
	for id := ir.DeclID(1); int(id) <= n; id++ {
		d := s.Decl(id)
		edge := func(ref ir.DeclRef) {
			if ref.IsZero() {
				return
			}
			if to, ok := s.Lookup(ref); ok {
				s.AddEdge(id, to)
			}
		}
		d.TypeRefs(func(t *ir.TypeRef) {
			t.Walk(func(t *ir.TypeRef) {
				edge(t.Target)
				if t.Entry != "" {
					edge(ir.DeclRef{Module: d.Module, Name: t.Entry})
				}
			})
		})
		d.ConstValues(func(c *ir.ConstValue) {
			c.Walk(func(c *ir.ConstValue) { edge(c.Target) })
		})
	}

	linkModules(s, sorted, rep)

	checkAliasCycles(s, rep, ir.DeclTypedef, diag.SemaTypedefCycle, "typedef")
	checkAliasCycles(s, rep, ir.DeclService, diag.SemaExtendsCycle, "service extends")
	checkValueCycles(s, rep)

	less := func(a, b int) bool {
		ra, rb := s.Decl(ir.DeclID(a+1)).Ref(), s.Decl(ir.DeclID(b+1)).Ref()
		return ra.Less(rb)
	}
	succ := func(v int) []int {
		deps := s.Deps(ir.DeclID(v + 1))
		out := make([]int, len(deps))
		for i, d := range deps {
			out[i] = int(d) - 1
		}
		return out
	}
	var (
		order  []ir.DeclID
		groups [][]ir.DeclID
	)
	for _, comp := range dag.DependencyOrder(n, succ, less) {
		ids := make([]ir.DeclID, len(comp))
		for i, v := range comp {
			ids[i] = ir.DeclID(v + 1)
		}
		order = append(order, ids...)
		if len(ids) > 1 {
			groups = append(groups, ids)
		}
	}
	s.SetOrder(order, groups)
	s.Freeze()

	bag.Sort()
	return s, bag.Items()
}

// qualifiedName — имя, под которым объявление видно из других модулей.
func qualifiedName(m *ir.Module, d *ir.Decl) string {
	if m.Package == "" {
		return d.Name
	}
	return m.Package + "." + d.Name
}

// reportQualifiedDuplicates flags declarations of different modules that
// share dialect, package and name. The later module path is reported.
func reportQualifiedDuplicates(rep diag.Reporter, mods []*ir.Module) {
	type key struct {
		dialect token.Dialect
		name    string
	}
	first := make(map[key]*ir.Decl)
	for _, m := range mods {
		if m.Package == "" {
			continue
		}
		for _, d := range m.Decls {
			k := key{m.Dialect, qualifiedName(m, d)}
			prev, dup := first[k]
			if !dup {
				first[k] = d
				continue
			}
			diag.ReportError(rep, diag.SemaDuplicateDefinition, d.NameSpan,
				fmt.Sprintf("%q is already defined in %s", k.name, prev.Module)).
				WithNote(prev.NameSpan, "previous definition here").
				Emit()
		}
	}
}

// linkModules builds the module graph and stores its Kahn batches
// dependencies first. A module depends on what it imports and on every
// module one of its declarations references, which covers names reached
// through public imports. Cycles are allowed and only recorded. The
// declaration edges must already be in place.
func linkModules(s *ir.Schema, mods []*ir.Module, rep diag.Reporter) {
	metas := make([]project.ModuleMeta, 0, len(mods))
	nodes := make([]dag.ModuleNode, 0, len(mods))
	deps := make(map[string][]string, len(mods))
	for _, m := range mods {
		meta := project.ModuleMeta{Path: m.Path, Dialect: m.Dialect, Span: m.Span}
		add := func(p string, sp source.Span) {
			if p == "" || p == m.Path || slices.Contains(deps[m.Path], p) {
				return
			}
			deps[m.Path] = append(deps[m.Path], p)
			meta.Imports = append(meta.Imports, project.ImportMeta{Path: p, Span: sp})
		}
		for _, imp := range m.Imports {
			add(imp.Resolved, imp.Span)
		}
		for _, d := range m.Decls {
			id, ok := s.Lookup(d.Ref())
			if !ok || s.Decl(id) != d {
				continue
			}
			for _, to := range s.Deps(id) {
				add(s.Decl(to).Module, d.NameSpan)
			}
		}
		slices.Sort(deps[m.Path])
		metas = append(metas, meta)
		nodes = append(nodes, dag.ModuleNode{Meta: meta, Reporter: rep})
	}
	idx := dag.BuildIndex(metas)
	g, slots := dag.BuildGraph(idx, nodes)
	topo := dag.ToposortKahn(g)
	dag.ReportCycles(idx, slots, topo)

	// Kahn идёт от импортирующих к импортируемым; разворачиваем
	batches := make([][]string, 0, len(topo.Batches))
	for i := len(topo.Batches) - 1; i >= 0; i-- {
		names := make([]string, len(topo.Batches[i]))
		for j, id := range topo.Batches[i] {
			names[j] = idx.IDToName[id]
		}
		batches = append(batches, names)
	}
	var cycles []string
	for _, id := range topo.Cycles {
		cycles = append(cycles, idx.IDToName[id])
	}
	sort.Strings(cycles)
	s.SetModuleOrder(batches, cycles)
	s.SetModuleDeps(deps)
}

// checkAliasCycles reports cycles among declarations of kind that point at
// each other (typedef -> typedef, service extends service).
func checkAliasCycles(s *ir.Schema, rep diag.Reporter, kind ir.DeclKind, code diag.Code, what string) {
	n := s.Len()
	succ := func(v int) []int {
		d := s.Decl(ir.DeclID(v + 1))
		if d.Kind != kind {
			return nil
		}
		var out []int
		for _, dep := range s.Deps(ir.DeclID(v + 1)) {
			if s.Decl(dep).Kind == kind {
				out = append(out, int(dep)-1)
			}
		}
		return out
	}
	for _, comp := range dag.StronglyConnected(n, succ) {
		if !isCycle(comp, succ) {
			continue
		}
		reportCycle(s, rep, comp, code, what+" cycle", "")
	}
}

// checkValueCycles rejects declarations that contain themselves by value:
// required or default-singular fields of non-container type, followed
// through typedefs. In proto modules only required fields count: singular
// message fields there are optional references.
func checkValueCycles(s *ir.Schema, rep diag.Reporter) {
	n := s.Len()
	succ := func(v int) []int {
		d := s.Decl(ir.DeclID(v + 1))
		if d.Kind != ir.DeclStruct && d.Kind != ir.DeclUnion {
			return nil
		}
		m := s.Module(d.Module)
		if m == nil {
			return nil
		}
		proto := m.Dialect == token.DialectProto
		var out []int
		for _, f := range d.Fields {
			if f.Indirect() || f.Type == nil || (proto && f.Req != ir.Required) {
				continue
			}
			target := s.Target(f.Type)
			if target == nil || (target.Kind != ir.DeclStruct && target.Kind != ir.DeclUnion) {
				continue
			}
			if u := s.Underlying(f.Type); u.IsContainer() {
				continue
			}
			if id, ok := s.Lookup(target.Ref()); ok {
				out = append(out, int(id)-1)
			}
		}
		return out
	}
	for _, comp := range dag.StronglyConnected(n, succ) {
		if !isCycle(comp, succ) {
			continue
		}
		reportCycle(s, rep, comp, diag.SemaInvalidCycle, "value type contains itself without indirection",
			"break the cycle with an optional field or a container")
	}
}

func isCycle(comp []int, succ func(int) []int) bool {
	if len(comp) > 1 {
		return true
	}
	for _, w := range succ(comp[0]) {
		if w == comp[0] {
			return true
		}
	}
	return false
}

func reportCycle(s *ir.Schema, rep diag.Reporter, comp []int, code diag.Code, what, hint string) {
	names := make([]string, len(comp))
	for i, v := range comp {
		names[i] = s.Decl(ir.DeclID(v + 1)).Ref().String()
	}
	summary := strings.Join(names, ", ")
	for _, v := range comp {
		d := s.Decl(ir.DeclID(v + 1))
		b := diag.ReportError(rep, code, d.NameSpan, fmt.Sprintf("%s: %s", what, summary))
		if hint != "" {
			b.WithNote(d.Span, hint)
		}
		b.Emit()
	}
}
