package resolve

import (
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"

	"idlc/internal/ir"
	"idlc/internal/token"
)

// Scope is everything resolving one module may read: the lowered module,
// where each of its imports was loaded from and the export surfaces of its
// import closure. Module bodies of other files are never consulted.
type Scope struct {
	Module *ir.Module
	// Imports[i] is the loaded path of Module.Imports[i]; empty when the
	// import is missing.
	Imports []string
	// Exports of every module in the import closure, the module itself
	// included or not.
	Exports map[string]*ir.Exports
}

// candidate is one declaration a name may refer to.
type candidate struct {
	ref ir.DeclRef
	exp ir.Export
}

// lookupEnv answers name queries for one module.
type lookupEnv struct {
	self    *ir.Exports
	visible []*ir.Exports // прямые импорты и их public-реэкспорты, в порядке импорта
	closure []*ir.Exports // всё замыкание, по пути модуля
}

func newLookupEnv(sc Scope) *lookupEnv {
	self := ir.BuildExports(sc.Module, sc.Imports)
	env := &lookupEnv{self: self}

	seen := map[string]bool{sc.Module.Path: true}
	var visit func(path string)
	visit = func(path string) {
		if path == "" || seen[path] {
			return
		}
		e := sc.Exports[path]
		if e == nil {
			return
		}
		seen[path] = true
		env.visible = append(env.visible, e)
		for _, pub := range e.Public {
			visit(pub)
		}
	}
	for _, path := range sc.Imports {
		visit(path)
	}

	paths := make([]string, 0, len(sc.Exports))
	for p := range sc.Exports {
		if p != sc.Module.Path {
			paths = append(paths, p)
		}
	}
	sort.Strings(paths)
	env.closure = append(env.closure, self)
	for _, p := range paths {
		env.closure = append(env.closure, sc.Exports[p])
	}
	return env
}

func (env *lookupEnv) find(e *ir.Exports, name string) (candidate, bool) {
	x, ok := e.Lookup(name)
	if !ok {
		return candidate{}, false
	}
	return candidate{ref: ir.DeclRef{Module: e.Module, Name: name}, exp: x}, true
}

// lookup resolves name as written inside a declaration whose lexical scope
// is scope (proto message nesting; empty for top level). It returns every
// equally good candidate; more than one means the reference is ambiguous.
func (env *lookupEnv) lookup(name, scope string) []candidate {
	if rest, ok := strings.CutPrefix(name, "."); ok {
		return env.qualified(rest)
	}
	proto := env.self.Dialect == token.DialectProto

	// вложенные области proto: A.B.Name, A.Name, Name
	if proto {
		for s := scope; s != ""; {
			if c, ok := env.find(env.self, s+"."+name); ok {
				return []candidate{c}
			}
			s, _ = ir.SplitName(s)
		}
	}
	if c, ok := env.find(env.self, name); ok {
		return []candidate{c}
	}

	var found []candidate
	for _, e := range env.visible {
		if c, ok := env.find(e, name); ok {
			found = appendUnique(found, c)
		}
	}
	if len(found) > 0 {
		return found
	}

	if proto {
		// пакет и его родители: a.b.Name, a.Name
		for pkg := env.self.Package; pkg != ""; {
			if found := env.qualified(pkg + "." + name); len(found) > 0 {
				return found
			}
			pkg, _ = ir.SplitName(pkg)
		}
	}
	if strings.Contains(name, ".") {
		return env.qualified(name)
	}
	return nil
}

// qualified splits name at each dot from the right into package and local
// name and looks for modules of the closure with that package.
func (env *lookupEnv) qualified(name string) []candidate {
	for i := len(name) - 1; i > 0; i-- {
		if name[i] != '.' {
			continue
		}
		pkg, local := name[:i], name[i+1:]
		var found []candidate
		for _, e := range env.closure {
			if !e.PackageMatches(pkg) {
				continue
			}
			if c, ok := env.find(e, local); ok {
				found = appendUnique(found, c)
			}
		}
		if len(found) > 0 {
			return found
		}
	}
	return nil
}

func appendUnique(list []candidate, c candidate) []candidate {
	for _, x := range list {
		if x.ref == c.ref {
			return list
		}
	}
	return append(list, c)
}

// suggest returns up to three known names closest to name by edit distance.
func (env *lookupEnv) suggest(name string, accept func(ir.Export) bool) []string {
	type scored struct {
		name string
		dist int
	}
	_, last := ir.SplitName(strings.TrimPrefix(name, "."))
	limit := max(2, len(last)/3)
	seen := make(map[string]bool)
	var all []scored
	add := func(display, local string, x ir.Export) {
		if seen[display] || !accept(x) {
			return
		}
		_, localLast := ir.SplitName(local)
		d := min(levenshtein.ComputeDistance(name, display), levenshtein.ComputeDistance(last, localLast))
		if d <= limit {
			seen[display] = true
			all = append(all, scored{display, d})
		}
	}
	for _, x := range env.self.Names {
		add(x.Name, x.Name, x)
	}
	for _, e := range env.visible {
		for _, x := range e.Names {
			add(x.Name, x.Name, x)
		}
	}
	for _, e := range env.closure[1:] {
		if e.Package == "" {
			continue
		}
		for _, x := range e.Names {
			add(e.Package+"."+x.Name, x.Name, x)
		}
	}
	sort.SliceStable(all, func(i, j int) bool {
		if all[i].dist != all[j].dist {
			return all[i].dist < all[j].dist
		}
		return all[i].name < all[j].name
	})
	out := make([]string, 0, 3)
	for _, s := range all {
		if len(out) == 3 {
			break
		}
		out = append(out, s.name)
	}
	return out
}
