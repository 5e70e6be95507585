package resolve

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"idlc/internal/diag"
	"idlc/internal/ir"
	"idlc/internal/project"
)

// Resolve is the one-shot form of the resolver used outside the query
// engine: it matches imports to the given modules, resolves every module in
// parallel and links the result. mods are lowered modules; they are not
// modified. Imports are matched by Import.Resolved when set, otherwise by
// searching the importer's directory and opts.IncludePaths. Workers collect
// into their own bags; opts.Reporter receives the sorted result from the
// calling goroutine once every module is done, so it need not be safe for
// concurrent use.
func Resolve(mods []*ir.Module, opts Options) (*ir.Schema, []diag.Diagnostic) {
	byPath := make(map[string]*ir.Module, len(mods))
	for _, m := range mods {
		byPath[m.Path] = m
	}

	bag := diag.NewBag(0)
	imports := make([][]string, len(mods))
	exports := make(map[string]*ir.Exports, len(mods))
	for i, m := range mods {
		imports[i] = make([]string, len(m.Imports))
		for j, imp := range m.Imports {
			imports[i][j] = matchImport(byPath, m.Path, imp, opts.IncludePaths)
			if imports[i][j] == "" && !imp.Weak {
				bag.Add(diag.NewError(diag.IOMissingImport, imp.Span,
					fmt.Sprintf("cannot find import %q", imp.Path)))
			}
		}
		exports[m.Path] = ir.BuildExports(m, imports[i])
	}

	resolved := make([]*ir.Module, len(mods))
	results := make([][]diag.Diagnostic, len(mods))
	g, _ := errgroup.WithContext(context.Background())
	if opts.Jobs > 0 {
		g.SetLimit(opts.Jobs)
	}
	for i, m := range mods {
		g.Go(func() error {
			res := Module(Scope{
				Module:  m,
				Imports: imports[i],
				Exports: Closure(m.Path, exports),
			}, Options{})
			resolved[i], results[i] = res.Module, res.Diagnostics
			return nil
		})
	}
	_ = g.Wait()
	for _, ds := range results {
		bag.AddAll(ds)
	}

	schema, linkDiags := Link(resolved)
	bag.AddAll(linkDiags)
	bag.Sort()
	if opts.Reporter != nil {
		for _, d := range bag.Items() {
			diag.Emit(opts.Reporter, d)
		}
	}
	return schema, bag.Items()
}

func matchImport(byPath map[string]*ir.Module, importer string, imp ir.Import, includes []string) string {
	if imp.Resolved != "" {
		if _, ok := byPath[imp.Resolved]; ok {
			return imp.Resolved
		}
	}
	for _, cand := range project.ImportCandidates(importer, imp.Path, includes) {
		if _, ok := byPath[cand]; ok {
			return cand
		}
	}
	return ""
}

// Closure returns the exports of every module reachable from root through
// imports, root included.
func Closure(root string, all map[string]*ir.Exports) map[string]*ir.Exports {
	out := make(map[string]*ir.Exports)
	stack := []string{root}
	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, seen := out[p]; seen {
			continue
		}
		e := all[p]
		if e == nil {
			continue
		}
		out[p] = e
		stack = append(stack, e.Imports...)
	}
	return out
}
