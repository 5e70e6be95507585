package diagfmt

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"idlc/internal/diag"
	"idlc/internal/source"
)

func sampleBag(t *testing.T) (*diag.Bag, *source.FileSet) {
	t.Helper()
	fs := source.NewFileSet()
	fs.SetBaseDir("/home/user/project")
	id := fs.AddVirtual("/home/user/project/idl/a.thrift", []byte("struct A {\n  1: Foo f\n}\n"))

	bag := diag.NewBag(10)
	d := diag.NewError(diag.SemaUnresolvedReference, source.Span{File: id, Start: 16, End: 19}, "unresolved reference 'Foo'").
		WithNote(source.Span{File: id, Start: 7, End: 8}, "in struct 'A'")
	bag.Add(d)
	return bag, fs
}

func TestPrettyPlain(t *testing.T) {
	bag, fs := sampleBag(t)
	var buf bytes.Buffer
	Pretty(&buf, bag, fs, PrettyOpts{PathMode: PathModeRelative, ShowNotes: true})
	out := buf.String()

	for _, want := range []string{
		"idl/a.thrift:2:6: ERROR SEM3005: unresolved reference 'Foo'",
		"2 |   1: Foo f",
		"  |      ^~~",
		"note: idl/a.thrift:1:8: in struct 'A'",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}
	if strings.Contains(out, "\x1b[") {
		t.Error("unexpected ANSI escapes with Color=false")
	}
}

func TestPathModes(t *testing.T) {
	bag, fs := sampleBag(t)
	cases := map[PathMode]string{
		PathModeAbsolute: "/home/user/project/idl/a.thrift:2:6",
		PathModeRelative: "idl/a.thrift:2:6",
		PathModeBasename: "a.thrift:2:6",
	}
	for mode, want := range cases {
		var buf bytes.Buffer
		Short(&buf, bag, fs, mode)
		if !strings.HasPrefix(buf.String(), want) {
			t.Errorf("%s: got %q, want prefix %q", mode, buf.String(), want)
		}
	}
}

func TestJSON(t *testing.T) {
	bag, fs := sampleBag(t)
	var buf bytes.Buffer
	if err := JSON(&buf, bag, fs, JSONOpts{IncludePositions: true, IncludeNotes: true, PathMode: PathModeBasename}); err != nil {
		t.Fatal(err)
	}
	var out DiagnosticsOutput
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("invalid json: %v\n%s", err, buf.String())
	}
	if out.Count != 1 || out.Diagnostics[0].Code != "SEM3005" {
		t.Fatalf("unexpected output %+v", out)
	}
	loc := out.Diagnostics[0].Location
	if loc.File != "a.thrift" || loc.StartLine != 2 || loc.StartCol != 6 || loc.EndCol != 9 {
		t.Errorf("unexpected location %+v", loc)
	}
	if len(out.Diagnostics[0].Notes) != 1 {
		t.Error("expected one note")
	}
}

func TestCaretGeometryWide(t *testing.T) {
	pad, width := caretGeometry("\tв 世界", 2, 4)
	if pad != tabWidth || width != 1 {
		t.Errorf("pad=%d width=%d", pad, width)
	}
	pad, width = caretGeometry("a世界b", 2, 8)
	if pad != 1 || width != 4 {
		t.Errorf("wide runes: pad=%d width=%d", pad, width)
	}
}
