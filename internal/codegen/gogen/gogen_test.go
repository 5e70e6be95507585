package gogen_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"idlc/internal/codegen"
	"idlc/internal/codegen/codegentest"
	"idlc/internal/codegen/gogen"
	"idlc/internal/diag"
)

func emit(t *testing.T, cfg *codegen.Config, files map[string]string) map[string]string {
	t.Helper()
	s := codegentest.Schema(t, files)
	units, err := codegen.Emit(s, cfg)
	require.NoError(t, err)
	out := make(map[string]string, len(units))
	for _, u := range units {
		out[u.Path] = string(u.Content)
	}
	return out
}

func goConfig() *codegen.Config {
	cfg := codegen.DefaultConfig()
	cfg.Target = gogen.Target
	return cfg
}

const pointIDL = `
namespace go geo
enum Color { RED, GREEN }
const i32 MAX = 10
const list<string> NAMES = ["a", "b"]
typedef list<Point> Points
struct Point {
  1: required i32 x
  2: optional i32 y = 7
  3: Color c = Color.GREEN
  4: map<string, Point> near
}
union Shape { 1: Point p; 2: string label }
exception Oops { 1: string why }
service Calc {
  i32 add(1: i32 x, 2: i32 y) throws (1: Oops e)
  oneway void ping()
}
`

func TestThriftStruct(t *testing.T) {
	out := emit(t, goConfig(), map[string]string{"idl/point.thrift": pointIDL})
	src, ok := out["gen/geo/point.go"]
	require.True(t, ok, "paths: %v", out)

	require.Contains(t, src, "// Code generated by idlc. DO NOT EDIT.")
	require.Contains(t, src, "package geo")
	require.Contains(t, src, `"github.com/apache/thrift/lib/go/thrift"`)
	require.Contains(t, src, "func (p *Point) Write(ctx context.Context, oprot thrift.TProtocol) error {")
	require.Contains(t, src, `oprot.WriteFieldBegin(ctx, "x", thrift.I32, 1)`)
	require.Contains(t, src, `oprot.WriteFieldBegin(ctx, "near", thrift.MAP, 4)`)
	require.Contains(t, src, "oprot.WriteMapBegin(ctx, thrift.STRING, thrift.STRUCT, len(p.Near))")
	require.Contains(t, src, "oprot.WriteFieldStop(ctx)")
	require.Contains(t, src, "case fieldID == 2 && typeID == thrift.I32:")
	require.Contains(t, src, "iprot.Skip(ctx, typeID)")
	require.Contains(t, src, `thrift.NewTProtocolExceptionWithType(thrift.INVALID_DATA, fmt.Errorf("required field x is not set"))`)

	require.Regexp(t, `Y\s+\*int32\s+`+"`"+`thrift:"y,2"`, src)
	require.Regexp(t, `Color_GREEN\s+Color = 1`, src)
	require.Contains(t, src, "const MAX int32 = 10")
	require.Contains(t, src, `var NAMES = []string{"a", "b"}`)
	require.Contains(t, src, "type Points = []*Point")
	require.Contains(t, src, "func (p *Shape) CountSetFields() int {")
	require.Contains(t, src, `return fmt.Sprintf("Oops(%+v)", *p)`)

	// getter falls back to the declared default
	require.Contains(t, src, "func (p *Point) GetY() int32 {")
	require.Contains(t, src, "return 7")
}

func TestThriftMapsWrittenInKeyOrder(t *testing.T) {
	out := emit(t, goConfig(), map[string]string{"m.thrift": `
struct M {
  1: map<string, i32> byName
  2: map<bool, string> flags
  3: map<uuid, i64> byID
}
`})
	src := out["gen/m/m.go"]
	require.NotEmpty(t, src, "paths: %v", out)
	require.NotRegexp(t, `for \w+, \w+ := range p\.`, src)
	require.Regexp(t, `sort\.Slice\(keys\d+, func\(i, j int\) bool \{ return keys\d+\[i\] < keys\d+\[j\] \}\)`, src)
	require.Regexp(t, `return !keys\d+\[i\] && keys\d+\[j\]`, src)
	require.Regexp(t, `bytes\.Compare\(keys\d+\[i\]\[:\], keys\d+\[j\]\[:\]\) < 0`, src)
	require.Regexp(t, `oprot\.WriteI32\(ctx, m\d+\[k\d+\]\)`, src)
}

func TestThriftService(t *testing.T) {
	out := emit(t, goConfig(), map[string]string{"idl/point.thrift": pointIDL})
	src := out["gen/geo/point.go"]
	require.Contains(t, src, "type Calc interface {")
	require.Contains(t, src, "Add(ctx context.Context, x int32, y int32) (int32, error)")
	require.Contains(t, src, "Ping(ctx context.Context) error")
	require.Contains(t, src, "type CalcAddArgs struct {")
	require.Contains(t, src, "type CalcAddResult struct {")
	require.Contains(t, src, `oprot.WriteFieldBegin(ctx, "success", thrift.I32, 0)`)
	require.Contains(t, src, "type CalcPingArgs struct {")
	require.NotContains(t, src, "CalcPingResult")

	cfg := goConfig()
	cfg.Features.GenerateServices = false
	out = emit(t, cfg, map[string]string{"idl/point.thrift": pointIDL})
	require.NotContains(t, out["gen/geo/point.go"], "Calc")
}

func TestMaterializeDefaults(t *testing.T) {
	cfg := goConfig()
	cfg.Features.MaterializeDefaults = true
	src := emit(t, cfg, map[string]string{"idl/point.thrift": pointIDL})["gen/geo/point.go"]
	require.Regexp(t, `v\d+ := int32\(7\)`, src)
	require.Regexp(t, `p\.Y = &v\d+`, src)
	require.Contains(t, src, "p.C = Color_GREEN")
}

const protoIDL = `syntax = "proto3";
package demo.v1;
option go_package = "example.com/gen/demo;demopb";
enum Level { LOW = 0; HIGH = 1; }
message Item {
  int32 a = 1;
  string s = 2;
  repeated int32 r = 3;
  sint64 z = 4;
  map<string, int32> m = 5;
  Level lvl = 6;
  double d = 7;
  int64 big = 16;
  oneof pick {
    string name = 8;
    Item child = 9;
  }
}
service Store { rpc Put(Item) returns (Item); rpc Watch(Item) returns (stream Item); }
`

func TestProtoWire(t *testing.T) {
	cfg := goConfig()
	cfg.GoPackage = "example.com/gen"
	out := emit(t, cfg, map[string]string{"demo/item.proto": protoIDL})
	src, ok := out["gen/demo/item.go"]
	require.True(t, ok, "paths: %v", out)

	require.Contains(t, src, "package demopb")
	require.Contains(t, src, `"google.golang.org/protobuf/encoding/protowire"`)
	require.Contains(t, src, "func (p *Item) AppendProto(b []byte) []byte {")
	// precomputed keys: (1, varint), (2, bytes), (16, varint)
	require.Contains(t, src, "b = append(b, 0x08)")
	require.Contains(t, src, "b = append(b, 0x12)")
	require.Contains(t, src, "b = append(b, 0x80, 0x01)")
	require.Contains(t, src, "if p.A != 0 {")
	require.Contains(t, src, `if p.S != "" {`)

	// packed repeated on write, both forms on read
	require.Contains(t, src, "b = append(b, 0x1a)")
	require.Contains(t, src, "case num == 3 && typ == protowire.VarintType:")
	require.Contains(t, src, "case num == 3 && typ == protowire.BytesType:")

	require.Contains(t, src, "protowire.EncodeZigZag(int64(p.Z))")
	require.Contains(t, src, "math.Float64bits(p.D)")

	// map entries: sorted keys, key = 1, value = 2
	require.Contains(t, src, "sort.Slice(")
	require.Regexp(t, `entry\d+ = append\(entry\d+, 0x0a\)`, src)
	require.Regexp(t, `entry\d+ = append\(entry\d+, 0x10\)`, src)

	// oneof members are encoded inline and replace each other on read
	require.Contains(t, src, "func (p *Item_Pick) appendOneof(b []byte) []byte {")
	require.Contains(t, src, "b = p.Pick.appendOneof(b)")
	require.Regexp(t, `p\.Pick = &Item_Pick\{Name: &v\d+\}`, src)
	require.Regexp(t, `p\.Pick = &Item_Pick\{Child: msg\d+\}`, src)

	require.Contains(t, src, "type Store interface {")
	require.Contains(t, src, "Put(ctx context.Context, request *Item) (*Item, error)")
	require.Contains(t, src, "Watch(ctx context.Context, request *Item) (<-chan *Item, error)")
	require.NotContains(t, src, "StorePutArgs")
}

var crossIDL = map[string]string{
	"idl/shared.thrift": `
enum Color { RED, GREEN }
struct Tag { 1: string v }
`,
	"idl/api.thrift": `
include "shared.thrift"
const shared.Color DEFAULT = shared.Color.GREEN
struct Req { 1: shared.Tag tag; 2: list<shared.Tag> more }
`,
}

func TestCrossModuleImports(t *testing.T) {
	cfg := goConfig()
	cfg.GoPackage = "example.com/gen"
	out := emit(t, cfg, crossIDL)
	require.Len(t, out, 2)
	api := out["gen/api/api.go"]
	require.Contains(t, api, `"example.com/gen/shared"`)
	require.Regexp(t, `Tag\s+\*shared\.Tag`, api)
	require.Regexp(t, `More\s+\[\]\*shared\.Tag`, api)
	require.Contains(t, api, "const DEFAULT shared.Color = shared.Color_GREEN")
	require.Contains(t, out["gen/shared/shared.go"], "package shared")
}

func TestPathRulesAndConflicts(t *testing.T) {
	cfg := goConfig()
	cfg.Paths.Rules = []codegen.PathRule{{Match: "idl/", Out: "all"}}
	out := emit(t, cfg, crossIDL)
	require.Contains(t, out, "gen/all/api.go")
	require.Contains(t, out, "gen/all/shared.go")

	// same package directory and stem from two modules
	s := codegentest.Schema(t, map[string]string{
		"x/dup.thrift": "struct A {}",
		"y/dup.thrift": "struct B {}",
	})
	_, err := codegen.Emit(s, goConfig())
	var ge *codegen.Error
	require.ErrorAs(t, err, &ge)
	require.Equal(t, diag.GenOutputConflict, ge.Code)
	require.ErrorContains(t, err, "gen/dup/dup.go")
}

func TestSingleFileLayout(t *testing.T) {
	cfg := goConfig()
	cfg.Paths.Layout = codegen.LayoutSingleFile
	cfg.GoPackage = "example.com/all"
	out := emit(t, cfg, map[string]string{
		"a.thrift": "struct Foo { 1: i32 n }",
		"b.thrift": "struct Foo { 1: string s }",
	})
	require.Len(t, out, 1)
	src := out["gen/all.go"]
	require.Contains(t, src, "package all")
	require.Contains(t, src, "type Foo struct {")
	require.Contains(t, src, "type BFoo struct {")
}

func TestRootsAndDeterminism(t *testing.T) {
	cfg := goConfig()
	cfg.Features.Roots = []string{"idl/api.thrift#Req"}
	first := emit(t, cfg, crossIDL)
	require.NotContains(t, first["gen/shared/shared.go"], "type Color")
	require.Contains(t, first["gen/shared/shared.go"], "type Tag struct")
	require.NotContains(t, first["gen/api/api.go"], "DEFAULT")

	for range 3 {
		require.Equal(t, first, emit(t, cfg, crossIDL))
	}
}

func TestUnsupportedMapKey(t *testing.T) {
	s := codegentest.Schema(t, map[string]string{
		"k.thrift": "struct K { 1: map<binary, i32> m }",
	})
	_, err := codegen.Emit(s, goConfig())
	var ge *codegen.Error
	require.ErrorAs(t, err, &ge)
	require.Equal(t, diag.GenUnsupportedType, ge.Code)
	require.Equal(t, "k.thrift", ge.Module)
}
