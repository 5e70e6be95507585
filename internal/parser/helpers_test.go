package parser_test

import (
	"testing"

	"idlc/internal/ast"
	"idlc/internal/diag"
	"idlc/internal/parser"
	"idlc/internal/source"
	"idlc/internal/testkit"
)

func parseSrc(t *testing.T, name, src string) (*ast.File, []diag.Diagnostic) {
	t.Helper()
	return parseWith(t, name, src, parser.Options{})
}

func parseWith(t *testing.T, name, src string, opts parser.Options) (*ast.File, []diag.Diagnostic) {
	t.Helper()
	fs := source.NewFileSet()
	file := fs.Get(fs.AddVirtual(name, []byte(src)))
	res := parser.Parse(file, opts)
	if res.File == nil {
		t.Fatal("Parse returned nil file")
	}
	if err := testkit.CheckSpanInvariants(res.File, file); err != nil {
		t.Errorf("span invariants: %v", err)
	}
	return res.File, res.Diagnostics
}

func mustClean(t *testing.T, diags []diag.Diagnostic) {
	t.Helper()
	for _, d := range diags {
		t.Errorf("unexpected diagnostic %s: %s", d.Code.ID(), d.Message)
	}
}

func hasCode(diags []diag.Diagnostic, code diag.Code) bool {
	for _, d := range diags {
		if d.Code == code {
			return true
		}
	}
	return false
}

func countErrors(diags []diag.Diagnostic) int {
	n := 0
	for _, d := range diags {
		if d.Severity == diag.SevError {
			n++
		}
	}
	return n
}
