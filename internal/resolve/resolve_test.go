package resolve_test

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"testing"

	"idlc/internal/diag"
	"idlc/internal/ir"
	"idlc/internal/lower"
	"idlc/internal/parser"
	"idlc/internal/resolve"
	"idlc/internal/source"
)

func lowerAll(t *testing.T, files map[string]string) ([]*ir.Module, []diag.Diagnostic) {
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
		if diag.HasErrors(pr.Diagnostics) {
			t.Fatalf("%s: parse errors: %v", p, pr.Diagnostics)
		}
		lr := lower.Lower(pr.File, lower.Options{})
		mods = append(mods, lr.Module)
		diags = append(diags, lr.Diagnostics...)
	}
	return mods, diags
}

func compile(t *testing.T, files map[string]string) (*ir.Schema, []diag.Diagnostic) {
	t.Helper()
	mods, diags := lowerAll(t, files)
	s, rd := resolve.Resolve(mods, resolve.Options{})
	return s, append(diags, rd...)
}

func errorCodes(ds []diag.Diagnostic) []string {
	var out []string
	for _, d := range ds {
		if d.IsError() {
			out = append(out, d.Code.ID())
		}
	}
	sort.Strings(out)
	return out
}

func requireClean(t *testing.T, ds []diag.Diagnostic) {
	t.Helper()
	if codes := errorCodes(ds); len(codes) > 0 {
		for _, d := range ds {
			t.Logf("%s: %s", d.Code.ID(), d.Message)
		}
		t.Fatalf("unexpected errors %v", codes)
	}
}

func countCode(ds []diag.Diagnostic, c diag.Code) int {
	n := 0
	for _, d := range ds {
		if d.Code == c {
			n++
		}
	}
	return n
}

func orderNames(s *ir.Schema) []string {
	out := make([]string, len(s.EmitOrder))
	for i, r := range s.EmitOrder {
		out[i] = r.Name
	}
	return out
}

func TestPointEcho(t *testing.T) {
	s, ds := compile(t, map[string]string{
		"point.thrift": `
service Echo { Point get(1: Point p); }
struct Point { 1: i32 x; 2: i32 y; }
`,
	})
	requireClean(t, ds)
	if !s.Frozen() {
		t.Fatal("schema must be frozen")
	}
	m := s.Module("point.thrift")
	point := m.Decl("Point")
	if point.Fields[0].ID != 1 || point.Fields[1].ID != 2 {
		t.Errorf("ids = %d %d", point.Fields[0].ID, point.Fields[1].ID)
	}
	get := m.Decl("Echo").Methods[0]
	want := ir.DeclRef{Module: "point.thrift", Name: "Point"}
	if len(get.Args) != 1 || get.Args[0].Type.Target != want || get.Result.Target != want {
		t.Fatalf("Echo.get = %+v", get)
	}
	if got := orderNames(s); !reflect.DeepEqual(got, []string{"Point", "Echo"}) {
		t.Errorf("emit order = %v", got)
	}
	echoID, _ := s.Lookup(ir.DeclRef{Module: "point.thrift", Name: "Echo"})
	pointID, _ := s.Lookup(want)
	if deps := s.Deps(echoID); len(deps) != 1 || deps[0] != pointID {
		t.Errorf("Echo deps = %v", deps)
	}
}

func TestLoweredModuleUntouched(t *testing.T) {
	mods, _ := lowerAll(t, map[string]string{"a.thrift": "struct A { 1: B b } struct B {}"})
	_, ds := resolve.Resolve(mods, resolve.Options{})
	requireClean(t, ds)
	if !mods[0].Decl("A").Fields[0].Type.Target.IsZero() {
		t.Error("Resolve must work on a clone")
	}
}

func TestCrossModuleThrift(t *testing.T) {
	s, ds := compile(t, map[string]string{
		"idl/shared.thrift": `
enum Color { RED, GREEN }
struct Tag { 1: string v }
exception NotFound { 1: string what }
`,
		"idl/api.thrift": `
include "shared.thrift"
const shared.Color DEFAULT = shared.Color.GREEN
struct Req { 1: shared.Tag a; 2: Tag b; 3: Color c = Color.RED }
service Api { Req find(1: Req r) throws (1: shared.NotFound nf) }
`,
	})
	requireClean(t, ds)
	api := s.Module("idl/api.thrift")
	if api.Imports[0].Resolved != "idl/shared.thrift" {
		t.Fatalf("import resolved to %q", api.Imports[0].Resolved)
	}
	tag := ir.DeclRef{Module: "idl/shared.thrift", Name: "Tag"}
	req := api.Decl("Req")
	if req.Fields[0].Type.Target != tag || req.Fields[1].Type.Target != tag {
		t.Errorf("Tag targets = %v %v", req.Fields[0].Type.Target, req.Fields[1].Type.Target)
	}
	def := req.Fields[2].Default
	if def.Target.Name != "Color" || def.Member != "RED" {
		t.Errorf("default = %+v", def)
	}
	c := api.Decl("DEFAULT").Value
	if c.Target != (ir.DeclRef{Module: "idl/shared.thrift", Name: "Color"}) || c.Member != "GREEN" {
		t.Errorf("const = %+v", c)
	}
	// зависимости модуля идут первыми
	if len(s.ModuleBatches) != 2 || s.ModuleBatches[0][0] != "idl/shared.thrift" {
		t.Errorf("module batches = %v", s.ModuleBatches)
	}
	order := orderNames(s)
	if order[0] != "Color" || order[len(order)-1] != "Api" {
		t.Errorf("emit order = %v", order)
	}
}

func TestAmbiguousReference(t *testing.T) {
	_, ds := compile(t, map[string]string{
		"x.thrift": "struct Foo {}",
		"y.thrift": "struct Foo {}",
		"z.thrift": `include "x.thrift"
include "y.thrift"
struct Uses { 1: Foo f; 2: x.Foo ok }`,
	})
	if got := errorCodes(ds); !reflect.DeepEqual(got, []string{diag.SemaAmbiguousReference.ID()}) {
		t.Fatalf("errors = %v", got)
	}
	for _, d := range ds {
		if d.Code == diag.SemaAmbiguousReference && len(d.Notes) != 2 {
			t.Errorf("expected a note per candidate, got %v", d.Notes)
		}
	}
}

func TestUnresolvedSuggestions(t *testing.T) {
	_, ds := compile(t, map[string]string{
		"a.thrift": "struct Point {} struct User { 1: Pointt p; 2: Missing m }",
	})
	if countCode(ds, diag.SemaUnresolvedReference) != 2 {
		t.Fatalf("diagnostics = %v", ds)
	}
	var withNote int
	for _, d := range ds {
		if d.Code == diag.SemaUnresolvedReference && len(d.Notes) > 0 {
			withNote++
			if !strings.Contains(d.Notes[0].Msg, `"Point"`) {
				t.Errorf("suggestion = %q", d.Notes[0].Msg)
			}
		}
	}
	if withNote != 1 {
		t.Errorf("exactly one reference has a near candidate, got %d", withNote)
	}
}

func TestValueCycles(t *testing.T) {
	_, ds := compile(t, map[string]string{
		"c.thrift": `
struct Self { 1: required Self s }
struct Listed { 1: list<Listed> items; 2: optional Listed next }
struct A { 1: B b }
struct B { 1: A a }
typedef Via Alias
struct Via { 1: Alias again }
union U { 1: U u }
`,
	})
	if n := countCode(ds, diag.SemaInvalidCycle); n != 4 {
		t.Fatalf("InvalidCycle count = %d, want 4 (Self, A, B, Via): %v", n, ds)
	}
	for _, d := range ds {
		if d.Code == diag.SemaInvalidCycle && strings.Contains(d.Message, "Listed") {
			t.Errorf("indirect recursion rejected: %s", d.Message)
		}
	}
}

func TestValueCyclesProto(t *testing.T) {
	_, ds := compile(t, map[string]string{
		"p2.proto": `
syntax = "proto2";
message Req { required Req self = 1; }
message Opt { optional Opt next = 1; }
message Rep { repeated Rep items = 1; }
`,
		"p3.proto": `
syntax = "proto3";
message Node { Node child = 1; }
`,
	})
	if n := countCode(ds, diag.SemaInvalidCycle); n != 1 {
		t.Fatalf("InvalidCycle count = %d, want 1 (Req): %v", n, ds)
	}
	for _, d := range ds {
		if d.Code == diag.SemaInvalidCycle && !strings.Contains(d.Message, "Req") {
			t.Errorf("unexpected cycle: %s", d.Message)
		}
	}
}

func TestPermittedCycleGroup(t *testing.T) {
	s, ds := compile(t, map[string]string{
		"g.thrift": `
struct Z { 1: optional Y y }
struct Y { 1: optional Z z }
struct Leaf {}
struct Root { 1: Leaf l; 2: Z z }
`,
	})
	requireClean(t, ds)
	if len(s.CycleGroups) != 1 || s.CycleGroups[0][0].Name != "Y" || s.CycleGroups[0][1].Name != "Z" {
		t.Fatalf("cycle groups = %v", s.CycleGroups)
	}
	if got := orderNames(s); !reflect.DeepEqual(got, []string{"Leaf", "Y", "Z", "Root"}) {
		t.Errorf("emit order = %v", got)
	}
}

func TestAliasCycles(t *testing.T) {
	_, ds := compile(t, map[string]string{
		"t.thrift": `
typedef B A
typedef A B
service S1 extends S2 {}
service S2 extends S1 {}
`,
	})
	if countCode(ds, diag.SemaTypedefCycle) != 2 || countCode(ds, diag.SemaExtendsCycle) != 2 {
		t.Fatalf("diagnostics = %v", ds)
	}
}

func TestImportCyclePermitted(t *testing.T) {
	s, ds := compile(t, map[string]string{
		"a.thrift": `include "b.thrift"
struct Msg { 1: optional b.Reply r }`,
		"b.thrift": `include "a.thrift"
struct Reply {}
service Svc { Reply call(1: a.Msg m) }`,
	})
	requireClean(t, ds)
	if !reflect.DeepEqual(s.ModuleCycles, []string{"a.thrift", "b.thrift"}) {
		t.Errorf("module cycles = %v", s.ModuleCycles)
	}
	if countCode(ds, diag.ProjImportCycle) != 2 {
		t.Errorf("cycle notes = %v", ds)
	}
}

func TestSemanticChecks(t *testing.T) {
	_, ds := compile(t, map[string]string{
		"s.thrift": `
struct NotExc {}
exception Err {}
enum Color { RED }
const i8 BIG = 300
const string S = 5
const Color WRONG = Color.BLUE
const list<i16> L = [1, 70000]
struct Holder { 1: Color c = 2; 2: bool b = 1; 3: NotExc n = {"x": 1} }
service Base {}
service Bad extends NotExc {}
service Svc extends Base {
  void a() throws (1: NotExc e)
  void b() throws (1: Err e)
  Base c()
}
`,
	})
	want := map[diag.Code]int{
		diag.SemaInvalidDefault:      4, // BIG, S, L[1], Holder.n
		diag.SemaUnresolvedReference: 1, // Color.BLUE
		diag.SemaExtendsNotService:   1,
		diag.SemaThrowsNotException:  1,
		diag.SemaNotAType:            1, // Base c()
	}
	for code, n := range want {
		if got := countCode(ds, code); got != n {
			t.Errorf("%s: got %d, want %d", code.ID(), got, n)
		}
	}
}

func TestMissingImport(t *testing.T) {
	_, ds := compile(t, map[string]string{
		"a.thrift": `include "nowhere.thrift"
struct A {}`,
	})
	if countCode(ds, diag.IOMissingImport) != 1 {
		t.Fatalf("diagnostics = %v", ds)
	}
}

func TestMissingWeakImport(t *testing.T) {
	_, ds := compile(t, map[string]string{
		"a.proto": `syntax = "proto3";
import weak "nowhere.proto";
message A {}`,
	})
	requireClean(t, ds)
}

func TestReporterReceivesAll(t *testing.T) {
	files := make(map[string]string, 16)
	for i := range 16 {
		files[fmt.Sprintf("m%02d.thrift", i)] = `struct S { 1: Missing a; 2: Gone b; 3: Lost c }`
	}
	mods, _ := lowerAll(t, files)
	bag := diag.NewBag(0)
	_, ds := resolve.Resolve(mods, resolve.Options{Reporter: diag.BagReporter{Bag: bag}, Jobs: 8})
	if n := countCode(ds, diag.SemaUnresolvedReference); n != 48 {
		t.Fatalf("unresolved = %d, want 48", n)
	}
	if got := bag.Items(); !reflect.DeepEqual(got, ds) {
		t.Fatalf("reporter got %d diagnostics, result has %d", len(got), len(ds))
	}
}

func TestProtoScopes(t *testing.T) {
	s, ds := compile(t, map[string]string{
		"common/date.proto": `syntax = "proto3";
package common;
message Date { int32 y = 1; }
enum Level { LOW = 0; HIGH = 1; }
`,
		"api/api.proto": `syntax = "proto2";
package api;
import "common/date.proto";
message Outer {
  message Inner { optional common.Date d = 1; }
  optional Inner inner = 1;
  optional .common.Date abs = 2;
  map<string, Date> byName = 3;
  optional common.Level lvl = 4 [default = HIGH];
  oneof pick { Outer.Inner other = 5; }
}
message Other { optional Outer.Inner i = 1; }
service Svc { rpc Get(Outer) returns (common.Date); }
`,
	})
	requireClean(t, ds)
	api := s.Module("api/api.proto")
	date := ir.DeclRef{Module: "common/date.proto", Name: "Date"}
	inner := ir.DeclRef{Module: "api/api.proto", Name: "Outer.Inner"}
	outer := api.Decl("Outer")
	if outer.Fields[0].Type.Target != inner {
		t.Errorf("relative Inner -> %v", outer.Fields[0].Type.Target)
	}
	if outer.Fields[1].Type.Target != date {
		t.Errorf("absolute -> %v", outer.Fields[1].Type.Target)
	}
	if outer.Fields[2].Type.Value.Target != date {
		t.Errorf("map value -> %v", outer.Fields[2].Type.Value.Target)
	}
	if d := outer.Fields[3].Default; d.Member != "HIGH" || d.Target.Name != "Level" {
		t.Errorf("enum default = %+v", d)
	}
	if api.Decl("Outer.Inner").Fields[0].Type.Target != date {
		t.Error("nested message field unresolved")
	}
	if api.Decl("Outer.Pick").Fields[0].Type.Target != inner {
		t.Error("oneof member unresolved")
	}
	entry := api.Decl("Outer.ByNameEntry")
	if entry == nil || entry.Fields[1].Type.Target != date {
		t.Fatalf("map entry = %+v", entry)
	}
	// сущность map-entry генерируется раньше владельца
	var entryPos, outerPos int
	for i, r := range s.EmitOrder {
		switch r.Name {
		case "Outer.ByNameEntry":
			entryPos = i
		case "Outer":
			outerPos = i
		}
	}
	if entryPos > outerPos {
		t.Errorf("emit order = %v", orderNames(s))
	}
}

func TestProtoMessageRecursionAllowed(t *testing.T) {
	_, ds := compile(t, map[string]string{
		"tree.proto": `syntax = "proto3"; message Node { Node left = 1; Node right = 2; }`,
	})
	requireClean(t, ds)
}

func TestProtoPublicImport(t *testing.T) {
	s, ds := compile(t, map[string]string{
		"base.proto":  `syntax = "proto3"; package p; message Base {}`,
		"mid.proto":   `syntax = "proto3"; package p; import public "base.proto";`,
		"leaf.proto":  `syntax = "proto3"; package q; import "mid.proto"; message L { Base b = 1; }`,
		"other.proto": `syntax = "proto3"; package q; message Base {}`,
	})
	requireClean(t, ds)
	l := s.Module("leaf.proto").Decl("L")
	if l.Fields[0].Type.Target != (ir.DeclRef{Module: "base.proto", Name: "Base"}) {
		t.Errorf("public import -> %v", l.Fields[0].Type.Target)
	}
	// leaf never imports base, but references it
	if got := s.DependsOn("leaf.proto"); !reflect.DeepEqual(got, []string{"base.proto", "mid.proto"}) {
		t.Errorf("leaf deps = %v", got)
	}
	if got := s.DependsOn("other.proto"); len(got) != 0 {
		t.Errorf("other deps = %v", got)
	}
	want := [][]string{{"base.proto"}, {"mid.proto"}, {"leaf.proto", "other.proto"}}
	if !reflect.DeepEqual(s.ModuleBatches, want) {
		t.Errorf("module batches = %v, want %v", s.ModuleBatches, want)
	}
}

func TestCrossModuleDuplicate(t *testing.T) {
	_, ds := compile(t, map[string]string{
		"a.proto": `syntax = "proto3"; package p; message M {}`,
		"b.proto": `syntax = "proto3"; package p; message M {}`,
	})
	if countCode(ds, diag.SemaDuplicateDefinition) != 1 {
		t.Fatalf("diagnostics = %v", ds)
	}
}

func TestDeterministic(t *testing.T) {
	files := map[string]string{
		"a.thrift": `include "b.thrift"
struct A { 1: b.B b; 2: optional A self }
struct C { 1: A a }`,
		"b.thrift": "struct B { 1: list<B> kids } enum E { X }",
	}
	s1, _ := compile(t, files)
	s2, _ := compile(t, files)
	if !reflect.DeepEqual(s1.EmitOrder, s2.EmitOrder) || !reflect.DeepEqual(s1.ModuleBatches, s2.ModuleBatches) {
		t.Fatalf("order differs: %v vs %v", s1.EmitOrder, s2.EmitOrder)
	}
	for _, m := range s1.Modules {
		if !reflect.DeepEqual(m.Clone(), s2.Module(m.Path).Clone()) {
			t.Errorf("module %s differs between runs", m.Path)
		}
	}
}

func TestIdempotentModule(t *testing.T) {
	mods, _ := lowerAll(t, map[string]string{"a.thrift": "struct A { 1: B b } struct B {}"})
	sc := resolve.Scope{
		Module:  mods[0],
		Exports: map[string]*ir.Exports{"a.thrift": ir.BuildExports(mods[0], nil)},
	}
	first := resolve.Module(sc, resolve.Options{})
	sc.Module = first.Module
	second := resolve.Module(sc, resolve.Options{})
	if len(second.Diagnostics) != 0 || !reflect.DeepEqual(first.Module, second.Module) {
		t.Fatal("resolving a resolved module must be a no-op")
	}
}
