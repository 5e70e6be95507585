// Package codegentest compiles inline IDL into a resolved schema for
// backend tests.
package codegentest

import (
	"sort"
	"testing"

	"idlc/internal/diag"
	"idlc/internal/ir"
	"idlc/internal/lower"
	"idlc/internal/parser"
	"idlc/internal/resolve"
	"idlc/internal/source"
)

// Schema parses, lowers and resolves files (path -> text) and fails the
// test on any error diagnostic.
func Schema(t testing.TB, files map[string]string) *ir.Schema {
	t.Helper()
	paths := make([]string, 0, len(files))
	for p := range files {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	fs := source.NewFileSet()
	var (
		mods  []*ir.Module
		diags []diag.Diagnostic
	)
	for _, p := range paths {
		f := fs.Get(fs.AddVirtual(p, []byte(files[p])))
		pr := parser.Parse(f, parser.Options{})
		diags = append(diags, pr.Diagnostics...)
		if diag.HasErrors(pr.Diagnostics) {
			continue
		}
		lr := lower.Lower(pr.File, lower.Options{})
		mods = append(mods, lr.Module)
		diags = append(diags, lr.Diagnostics...)
	}
	s, rd := resolve.Resolve(mods, resolve.Options{})
	diags = append(diags, rd...)
	if diag.HasErrors(diags) {
		for _, d := range diags {
			t.Logf("%s: %s", d.Code.ID(), d.Message)
		}
		t.Fatalf("schema has errors")
	}
	return s
}
