package dialect

import (
	"strings"
	"testing"

	"idlc/internal/source"
	"idlc/internal/token"
)

func scan(t *testing.T, name, src string) Classification {
	t.Helper()
	fs := source.NewFileSet()
	f := fs.Get(fs.AddVirtual(name, []byte(src)))
	return Classifier{}.Classify(Scan(f))
}

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		src  string
		want token.Dialect
	}{
		{"proto", `syntax = "proto3";
package shop;
message User {
  int64 id = 1;
  repeated string tags = 2;
}
service Users { rpc Get(User) returns (User); }
`, token.DialectProto},
		{"thrift", `namespace go shop
struct User {
  1: required i64 id
  2: list<string> tags
}
exception NotFound { 1: string msg }
service Users { User get(1: i64 id) throws (1: NotFound nf) }
`, token.DialectThrift},
		{"empty", ``, token.DialectUnknown},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := scan(t, "x.idl", tc.src).Kind; got != tc.want {
				t.Errorf("Classify = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestForeign(t *testing.T) {
	c := scan(t, "user.thrift", `syntax = "proto3"; message User { int32 id = 1; repeated string tags = 2; }`)
	d, ok := Foreign(c, token.DialectThrift)
	if !ok || d != token.DialectProto {
		t.Fatalf("Foreign = %v, %v; classification %+v", d, ok, c)
	}
	if _, ok := Foreign(c, token.DialectProto); ok {
		t.Error("a proto file is not foreign to proto")
	}

	// одного слова мало
	weak := scan(t, "a.thrift", `message`)
	if _, ok := Foreign(weak, token.DialectThrift); ok {
		t.Errorf("weak evidence treated as foreign: %+v", weak)
	}
}

func TestRenderHint(t *testing.T) {
	e := NewEvidence()
	e.Add(Hint{Dialect: token.DialectProto, Score: 2, Reason: "`option`"})
	e.Add(Hint{Dialect: token.DialectProto, Score: 6, Reason: "`message`"})
	e.Add(Hint{Dialect: token.DialectProto, Score: 6, Reason: "`message`"})
	e.Add(Hint{Dialect: token.DialectThrift, Score: 5, Reason: "`struct`"})

	reasons := e.Reasons(token.DialectProto, 3)
	if strings.Join(reasons, " ") != "`message` `option`" {
		t.Fatalf("Reasons = %v", reasons)
	}
	msg := RenderHint(token.DialectProto, reasons)
	want := "this file reads like Protobuf (`message`, `option`); rename it to .proto or rewrite it:"
	if !strings.HasPrefix(msg, want) {
		t.Errorf("RenderHint = %q", msg)
	}
}
