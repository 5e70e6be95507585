package lower_test

import (
	"testing"

	"idlc/internal/diag"
	"idlc/internal/ir"
	"idlc/internal/lower"
	"idlc/internal/parser"
	"idlc/internal/source"
)

func lowerSrc(t *testing.T, name, src string) lower.Result {
	t.Helper()
	fs := source.NewFileSet()
	file := fs.Get(fs.AddVirtual(name, []byte(src)))
	pr := parser.Parse(file, parser.Options{})
	for _, d := range pr.Diagnostics {
		t.Fatalf("parse diagnostic %s: %s", d.Code.ID(), d.Message)
	}
	return lower.Lower(pr.File, lower.Options{})
}

func codes(ds []diag.Diagnostic) map[diag.Code]int {
	out := make(map[diag.Code]int)
	for _, d := range ds {
		out[d.Code]++
	}
	return out
}

func TestThriftPointEcho(t *testing.T) {
	res := lowerSrc(t, "idl/point.thrift", `
namespace go demo
struct Point { 1: i32 x; 2: i32 y; }
service Echo { Point get(1: Point p); }
`)
	if len(res.Diagnostics) != 0 {
		t.Fatalf("diagnostics: %v", res.Diagnostics)
	}
	m := res.Module
	if m.Package != "point" || m.Path != "idl/point.thrift" {
		t.Errorf("package/path = %q %q", m.Package, m.Path)
	}
	if ns, _ := m.Namespace("go"); ns != "demo" {
		t.Errorf("namespace = %q", ns)
	}
	point := m.Decl("Point")
	if point == nil || point.Kind != ir.DeclStruct || len(point.Fields) != 2 {
		t.Fatalf("Point = %+v", point)
	}
	if point.Fields[0].ID != 1 || point.Fields[0].Name != "x" || point.Fields[1].ID != 2 {
		t.Errorf("field ids not preserved")
	}
	if point.Fields[0].Req != ir.DefaultSingular || point.Fields[0].Type.Prim != ir.PrimI32 {
		t.Errorf("x: %+v", point.Fields[0])
	}
	echo := m.Decl("Echo")
	get := echo.Methods[0]
	if get.Result.Name != "Point" || len(get.Args) != 1 || get.Args[0].Type.Name != "Point" {
		t.Errorf("Echo.get = %+v", get)
	}
	if d, ok := res.Table.Lookup("Echo"); !ok || d != echo {
		t.Error("symbol table out of sync")
	}
}

func TestThriftNormalisation(t *testing.T) {
	res := lowerSrc(t, "n.thrift", `
union U { 1: required string a; 2: i64 b }
enum Color { RED = 1, GREEN, BLUE = 16, CYAN }
struct Implicit { string a; string b; 5: optional i32 c }
`)
	got := codes(res.Diagnostics)
	if got[diag.SemaImplicitFieldID] != 2 || got[diag.SemaRequiredInUnion] != 1 {
		t.Errorf("diagnostics = %v", res.Diagnostics)
	}
	if diag.HasErrors(res.Diagnostics) {
		t.Fatalf("warnings only expected: %v", res.Diagnostics)
	}
	u := res.Module.Decl("U")
	for _, f := range u.Fields {
		if f.Req != ir.Optional {
			t.Errorf("union member %s is %v", f.Name, f.Req)
		}
	}
	want := map[string]int64{"RED": 1, "GREEN": 2, "BLUE": 16, "CYAN": 17}
	for _, v := range res.Module.Decl("Color").Values {
		if want[v.Name] != v.Value {
			t.Errorf("%s = %d, want %d", v.Name, v.Value, want[v.Name])
		}
	}
	imp := res.Module.Decl("Implicit").Fields
	if imp[0].ID != -1 || imp[1].ID != -2 || imp[2].ID != 5 || imp[2].Req != ir.Optional {
		t.Errorf("implicit ids: %d %d %d", imp[0].ID, imp[1].ID, imp[2].ID)
	}
}

func TestThriftDuplicates(t *testing.T) {
	res := lowerSrc(t, "d.thrift", `
struct A { 1: i32 x; 1: i32 y; 2: i32 x }
struct A { 1: string other }
enum E { ONE, ONE }
service S { oneway i32 bad(); void ok(); void ok() }
`)
	got := codes(res.Diagnostics)
	for _, c := range []diag.Code{diag.SemaDuplicateFieldID, diag.SemaDuplicateFieldName, diag.SemaDuplicateDefinition, diag.SemaDuplicateEnumValue, diag.SemaBadOneway} {
		if got[c] == 0 {
			t.Errorf("missing %s in %v", c.ID(), res.Diagnostics)
		}
	}
	a := res.Module.Decl("A")
	if len(a.Fields) != 1 || a.Fields[0].Name != "x" {
		t.Errorf("first A must win with one field: %+v", a.Fields)
	}
	if n := len(res.Module.Decls); n != 3 {
		t.Errorf("decls = %d, want 3", n)
	}
	if s := res.Module.Decl("S"); len(s.Methods) != 1 {
		t.Errorf("methods = %d", len(s.Methods))
	}
}

func TestRenameAnnotation(t *testing.T) {
	res := lowerSrc(t, "r.thrift", `struct S { 1: i32 kind (idlc.name = "Kind") } (idlc.name = "Renamed")`)
	s := res.Module.Decl("S")
	if s.GenName != "Renamed" || s.Fields[0].GenName != "Kind" || len(s.Annotations) != 0 {
		t.Errorf("rename: %+v", s)
	}

	res = lowerSrc(t, "r.proto", `syntax = "proto3"; message M { option (idlc.name) = "N"; int32 a = 1 [(idlc.name) = "B", json_name = "aa"]; }`)
	m := res.Module.Decl("M")
	if m.GenName != "N" || m.Fields[0].GenName != "B" || m.Fields[0].JSONName != "aa" {
		t.Errorf("proto rename: %+v %+v", m, m.Fields[0])
	}
}

const protoSample = `syntax = "proto3";
package demo;

message Point {
  int32 x = 1;
  optional int32 y = 2;
  repeated int32 path = 3;
  repeated int32 raw = 4 [packed = false];
  map<string, Point> children = 5;
  oneof shape {
    string name = 6;
    Point origin = 7;
  }
  repeated string tags = 8;
  message ChildrenEntry { int32 k = 1; }
  message Inner { bool ok = 1; }
}
`

func TestProtoMessage(t *testing.T) {
	res := lowerSrc(t, "demo.proto", protoSample)
	if len(res.Diagnostics) != 0 {
		t.Fatalf("diagnostics: %v", res.Diagnostics)
	}
	m := res.Module
	if m.Syntax != "proto3" || m.Package != "demo" {
		t.Errorf("syntax/package = %q %q", m.Syntax, m.Package)
	}
	p := m.Decl("Point")
	names := make([]string, len(p.Fields))
	for i, f := range p.Fields {
		names[i] = f.Name
	}
	wantOrder := []string{"x", "y", "path", "raw", "children", "shape", "tags"}
	if len(names) != len(wantOrder) {
		t.Fatalf("fields = %v", names)
	}
	for i := range wantOrder {
		if names[i] != wantOrder[i] {
			t.Fatalf("field order = %v", names)
		}
	}
	x, y, path, raw, children, shape, tags := p.Fields[0], p.Fields[1], p.Fields[2], p.Fields[3], p.Fields[4], p.Fields[5], p.Fields[6]
	if x.Req != ir.DefaultSingular || y.Req != ir.Optional {
		t.Errorf("presence: x=%v y=%v", x.Req, y.Req)
	}
	if path.Type.Kind != ir.TypeList || !path.Packed || raw.Packed || tags.Packed {
		t.Errorf("packing: path=%v raw=%v tags=%v", path.Packed, raw.Packed, tags.Packed)
	}
	// вложенное ChildrenEntry занимает имя, синтетика получает суффикс
	if children.Type.Kind != ir.TypeMap || children.Type.Entry != "Point.ChildrenEntry2" {
		t.Errorf("map entry = %q", children.Type.Entry)
	}
	entry := m.Decl("Point.ChildrenEntry2")
	if entry == nil || entry.Synthetic != ir.SynthMapEntry || entry.Scope != "Point" {
		t.Fatalf("entry decl = %+v", entry)
	}
	if entry.Fields[0].ID != 1 || entry.Fields[0].Name != "key" || entry.Fields[1].ID != 2 || entry.Fields[1].Type.Name != "Point" {
		t.Errorf("entry fields = %+v %+v", entry.Fields[0], entry.Fields[1])
	}
	if !shape.Oneof || shape.Type.Target != (ir.DeclRef{Module: "demo.proto", Name: "Point.Shape"}) {
		t.Errorf("oneof field = %+v", shape)
	}
	union := m.Decl("Point.Shape")
	if union == nil || union.Kind != ir.DeclUnion || union.Synthetic != ir.SynthOneof || len(union.Fields) != 2 {
		t.Fatalf("oneof union = %+v", union)
	}
	for _, f := range union.Fields {
		if f.Req != ir.Optional {
			t.Errorf("oneof member %s = %v", f.Name, f.Req)
		}
	}
	if inner := m.Decl("Point.Inner"); inner == nil || inner.Scope != "Point" {
		t.Errorf("nested decl = %+v", inner)
	}
	if m.Decl("Point.ChildrenEntry") == nil {
		t.Error("user-declared ChildrenEntry lost")
	}
}

func TestProto2Semantics(t *testing.T) {
	res := lowerSrc(t, "p2.proto", `
message M {
  required int32 a = 1;
  optional int32 b = 2 [default = 5];
  repeated int32 c = 3;
  repeated int32 d = 4 [packed = true];
}`)
	if len(res.Diagnostics) != 0 {
		t.Fatalf("diagnostics: %v", res.Diagnostics)
	}
	if res.Module.Syntax != "proto2" {
		t.Errorf("default syntax = %q", res.Module.Syntax)
	}
	f := res.Module.Decl("M").Fields
	if f[0].Req != ir.Required || f[1].Req != ir.Optional || f[1].Default.Int != 5 {
		t.Errorf("labels: %v %v", f[0].Req, f[1].Req)
	}
	if f[2].Packed || !f[3].Packed {
		t.Errorf("proto2 packing: %v %v", f[2].Packed, f[3].Packed)
	}
}

func TestProtoErrors(t *testing.T) {
	cases := []struct {
		name string
		src  string
		code diag.Code
	}{
		{"required3", `syntax = "proto3"; message M { required int32 a = 1; }`, diag.SemaRequiredInProto3},
		{"enumzero", `syntax = "proto3"; enum E { A = 1; }`, diag.SemaProto3EnumZero},
		{"alias", `enum E { A = 0; B = 0; }`, diag.SemaEnumValueAlias},
		{"reserved-id", `message M { reserved 2 to 4; optional int32 a = 3; }`, diag.SemaReservedField},
		{"reserved-name", `message M { reserved "a"; optional int32 a = 1; }`, diag.SemaReservedField},
		{"range", `message M { optional int32 a = 19500; }`, diag.SemaFieldIDRange},
		{"zero", `message M { optional int32 a = 0; }`, diag.SemaFieldIDRange},
		{"dup-oneof-id", `message M { optional int32 a = 1; oneof o { string b = 1; } }`, diag.SemaDuplicateFieldID},
		{"map-key", `message M { map<double, string> m = 1; }`, diag.SemaInvalidMapKey},
		{"default3", `syntax = "proto3"; message M { int32 a = 1 [default = 2]; }`, diag.SemaInvalidDefault},
		{"dup-decl", `message M {} enum M { A = 0; }`, diag.SemaDuplicateDefinition},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := lowerSrc(t, tc.name+".proto", tc.src)
			if codes(res.Diagnostics)[tc.code] == 0 {
				t.Errorf("expected %s, got %v", tc.code.ID(), res.Diagnostics)
			}
		})
	}
}

func TestProtoAllowAlias(t *testing.T) {
	res := lowerSrc(t, "a.proto", `enum E { option allow_alias = true; A = 0; B = 0; }`)
	if len(res.Diagnostics) != 0 {
		t.Fatalf("diagnostics: %v", res.Diagnostics)
	}
	if n := len(res.Module.Decl("E").Values); n != 2 {
		t.Errorf("values = %d", n)
	}
}

func TestProtoService(t *testing.T) {
	res := lowerSrc(t, "s.proto", `syntax = "proto3"; message P {} service S { rpc Get(P) returns (stream P); }`)
	s := res.Module.Decl("S")
	get := s.Methods[0]
	if len(get.Args) != 1 || get.Args[0].Type.Name != "P" || get.Result.Name != "P" || !get.ResultStream || get.ArgStream {
		t.Errorf("rpc = %+v", get)
	}
}
