package parser_test

import (
	"testing"

	"idlc/internal/ast"
	"idlc/internal/diag"
	"idlc/internal/parser"
)

const pointThrift = `include "shared.thrift"
namespace go demo.point
namespace * demo

/** A point. */
struct Point {
  1: required i32 x = 0,
  2: optional i32 y (go.tag = "y"),
  3: list<map<string, shared.Tag>> tags;
}

union Shape { 1: Point p; 2: string name }

exception Oops { 1: string msg }

enum Color { RED = 1, GREEN, BLUE = 0x10 }

typedef list<Point> Points

const map<string, i32> LIMITS = {"a": 1, "b": -2}
const double PI = 3.14

service Echo extends shared.Base {
  Point echo(1: Point p) throws (1: Oops err),
  oneway void ping()
}
`

func TestThriftFile(t *testing.T) {
	f, diags := parseSrc(t, "point.thrift", pointThrift)
	mustClean(t, diags)

	if len(f.Imports) != 1 || f.Imports[0].Path != "shared.thrift" {
		t.Fatalf("imports = %+v", f.Imports)
	}
	if ns, ok := f.Namespace("go"); !ok || ns != "demo.point" {
		t.Errorf("go namespace = %q", ns)
	}
	if ns, _ := f.Namespace("py"); ns != "demo" {
		t.Errorf("star namespace fallback = %q", ns)
	}
	if len(f.Decls) != 8 {
		t.Fatalf("got %d decls, want 8", len(f.Decls))
	}

	point := f.Decls[0].(*ast.ThriftStruct)
	if point.Name.Name != "Point" || point.Kind != ast.KindStruct || point.Doc != "A point." {
		t.Errorf("Point header: %q %v %q", point.Name.Name, point.Kind, point.Doc)
	}
	if len(point.Fields) != 3 {
		t.Fatalf("Point fields = %d", len(point.Fields))
	}
	x := point.Fields[0]
	if x.ID != 1 || !x.HasID || x.Label != ast.LabelRequired || x.Default == nil || x.Default.Int != 0 {
		t.Errorf("field x: %+v", x)
	}
	if a, ok := point.Fields[1].Annotation("go.tag"); !ok || a.Value.Str != "y" {
		t.Errorf("y annotation missing: %+v", point.Fields[1].Annotations)
	}
	if got := point.Fields[2].Type.String(); got != "list<map<string,shared.Tag>>" {
		t.Errorf("tags type = %s", got)
	}

	if s := f.Decls[1].(*ast.ThriftStruct); s.Kind != ast.KindUnion || len(s.Fields) != 2 {
		t.Errorf("union Shape: %v, %d fields", s.Kind, len(s.Fields))
	}
	if e := f.Decls[2].(*ast.ThriftStruct); e.Kind != ast.KindException {
		t.Errorf("Oops kind = %v", e.Kind)
	}

	color := f.Decls[3].(*ast.ThriftEnum)
	if len(color.Values) != 3 || color.Values[1].HasValue || color.Values[2].Value != 16 {
		t.Errorf("enum values: %+v", color.Values)
	}

	if td := f.Decls[4].(*ast.ThriftTypedef); td.Type.Kind != ast.TypeList {
		t.Errorf("typedef type = %s", td.Type)
	}
	limits := f.Decls[5].(*ast.ThriftConst)
	if limits.Value.Kind != ast.ConstMap || len(limits.Value.Entries) != 2 || limits.Value.Entries[1].Value.Int != -2 {
		t.Errorf("LIMITS = %s", limits.Value)
	}
	if pi := f.Decls[6].(*ast.ThriftConst); pi.Value.Float != 3.14 {
		t.Errorf("PI = %v", pi.Value.Float)
	}

	svc := f.Decls[7].(*ast.ThriftService)
	if svc.Extends == nil || svc.Extends.Text != "shared.Base" {
		t.Fatalf("extends = %+v", svc.Extends)
	}
	if len(svc.Methods) != 2 {
		t.Fatalf("methods = %d", len(svc.Methods))
	}
	echo, ping := svc.Methods[0], svc.Methods[1]
	if echo.Result == nil || echo.Result.Name.Text != "Point" || len(echo.Args) != 1 || len(echo.Throws) != 1 {
		t.Errorf("echo: %+v", echo)
	}
	if !ping.Oneway || ping.Result != nil || len(ping.Args) != 0 {
		t.Errorf("ping: %+v", ping)
	}
}

func TestThriftNegativeAndImplicitIDs(t *testing.T) {
	f, diags := parseSrc(t, "ids.thrift", "struct S {\n -3: i32 a\n string b\n}\n")
	mustClean(t, diags)
	s := f.Decls[0].(*ast.ThriftStruct)
	if len(s.Fields) != 2 {
		t.Fatalf("fields = %d", len(s.Fields))
	}
	if s.Fields[0].ID != -3 || !s.Fields[0].HasID {
		t.Errorf("negative id: %+v", s.Fields[0])
	}
	if s.Fields[1].HasID {
		t.Errorf("implicit id must be unset: %+v", s.Fields[1])
	}
}

func TestThriftRecovery(t *testing.T) {
	src := "struct A { 1: i32 }\nstruct B { 1: i32 b }\nbogus\nenum C { X = }\nstruct D { 1: string d }\n"
	f, diags := parseSrc(t, "bad.thrift", src)

	if countErrors(diags) < 3 {
		t.Fatalf("expected at least 3 errors, got %v", diags)
	}
	if !hasCode(diags, diag.SynExpectIdentifier) || !hasCode(diags, diag.SynUnexpectedTopLevel) {
		t.Errorf("missing expected codes: %v", diags)
	}
	var names []string
	for _, d := range f.Decls {
		names = append(names, d.DeclName().Name)
	}
	if len(names) != 4 || names[1] != "B" || names[3] != "D" {
		t.Errorf("recovered decls = %v", names)
	}
}

func TestThriftUnclosedBody(t *testing.T) {
	_, diags := parseSrc(t, "open.thrift", "struct A {\n 1: i32 a\n")
	if !hasCode(diags, diag.SynUnclosedDelimiter) {
		t.Errorf("expected unclosed delimiter, got %v", diags)
	}
}

func TestThriftBadEscape(t *testing.T) {
	f, diags := parseSrc(t, "esc.thrift", `const string S = "a\qb\n\x41"`)
	if !hasCode(diags, diag.LexBadEscape) {
		t.Fatalf("expected bad escape, got %v", diags)
	}
	if got := f.Decls[0].(*ast.ThriftConst).Value.Str; got != "aqb\nA" {
		t.Errorf("unquoted = %q", got)
	}
}

func TestThriftMaxErrors(t *testing.T) {
	src := "x\ny\nz\nstruct A {}\n"
	_, diags := parseWith(t, "many.thrift", src, parser.Options{MaxErrors: 1})
	if n := countErrors(diags); n != 1 {
		t.Errorf("errors = %d, want 1", n)
	}
}
