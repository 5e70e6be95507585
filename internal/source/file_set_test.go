package source

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func TestFileSetVersioning(t *testing.T) {
	fs := NewFileSet()

	id1 := fs.Add("a.thrift", []byte("struct A {}"), 0)
	if id1 != 0 {
		t.Errorf("expected first FileID to be 0, got %d", id1)
	}
	id2 := fs.Add("a.thrift", []byte("struct B {}"), 0)
	if id2 != 1 {
		t.Errorf("expected second FileID to be 1, got %d", id2)
	}

	latest, ok := fs.GetLatest("a.thrift")
	if !ok || latest != id2 {
		t.Fatalf("expected latest=%d, got %d (ok=%v)", id2, latest, ok)
	}

	// старая версия остаётся доступной
	if got := string(fs.Get(id1).Content); got != "struct A {}" {
		t.Errorf("old content lost: %q", got)
	}
	if fs.Get(id1).Hash == fs.Get(id2).Hash {
		t.Error("different content must hash differently")
	}
	if fs.Get(99) != nil {
		t.Error("unknown id must return nil")
	}
}

func TestAddVirtualNormalizes(t *testing.T) {
	fs := NewFileSet()
	id := fs.AddVirtual("b.proto", []byte("\xEF\xBB\xBFa\r\nb\r\n"))
	f := fs.Get(id)

	if string(f.Content) != "a\nb\n" {
		t.Fatalf("unexpected content %q", f.Content)
	}
	if f.Flags&FileVirtual == 0 || f.Flags&FileHadBOM == 0 || f.Flags&FileNormalizedCRLF == 0 {
		t.Errorf("flags not set: %b", f.Flags)
	}
	want := []uint32{1, 3}
	if len(f.LineIdx) != len(want) {
		t.Fatalf("LineIdx = %v, want %v", f.LineIdx, want)
	}
	for i := range want {
		if f.LineIdx[i] != want[i] {
			t.Errorf("LineIdx[%d] = %d, want %d", i, f.LineIdx[i], want[i])
		}
	}
}

func TestResolveLineCol(t *testing.T) {
	fs := NewFileSet()
	id := fs.AddVirtual("c.thrift", []byte("ab\ncde\n\nf"))

	cases := []struct {
		off  uint32
		want LineCol
	}{
		{0, LineCol{1, 1}},
		{1, LineCol{1, 2}},
		{2, LineCol{1, 3}}, // '\n' принадлежит первой строке
		{3, LineCol{2, 1}},
		{5, LineCol{2, 3}},
		{7, LineCol{3, 1}},
		{8, LineCol{4, 1}},
		{9, LineCol{4, 2}},
	}
	for _, tc := range cases {
		start, _ := fs.Resolve(Span{File: id, Start: tc.off, End: tc.off})
		if start != tc.want {
			t.Errorf("offset %d: got %+v, want %+v", tc.off, start, tc.want)
		}
	}
}

func TestGetLine(t *testing.T) {
	fs := NewFileSet()
	f := fs.Get(fs.AddVirtual("d.thrift", []byte("one\ntwo\nthree")))

	for n, want := range map[uint32]string{0: "", 1: "one", 2: "two", 3: "three", 4: ""} {
		if got := f.GetLine(n); got != want {
			t.Errorf("GetLine(%d) = %q, want %q", n, got, want)
		}
	}
}

func TestLoadFromDisk(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "x.proto")
	if err := os.WriteFile(path, []byte("syntax = \"proto3\";\r\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	fs := NewFileSetWithBase(dir)
	id, err := fs.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	f := fs.Get(id)
	if f.Flags&FileNormalizedCRLF == 0 {
		t.Error("expected CRLF flag")
	}
	if got := f.FormatPath("relative", dir); got != "x.proto" {
		t.Errorf("relative path = %q", got)
	}
	if got := f.FormatPath("basename", ""); got != "x.proto" {
		t.Errorf("basename = %q", got)
	}
	if _, err := fs.Load(filepath.Join(dir, "missing.proto")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestFileSetConcurrentAdd(t *testing.T) {
	fs := NewFileSet()
	var wg sync.WaitGroup
	for i := range 16 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fs.AddVirtual("m.thrift", []byte{byte('a' + i)})
			if fs.Get(id) == nil {
				t.Errorf("file %d missing", id)
			}
		}(i)
	}
	wg.Wait()
	if fs.Len() != 16 {
		t.Errorf("Len = %d, want 16", fs.Len())
	}
}

func TestSpanCover(t *testing.T) {
	a := Span{File: 1, Start: 4, End: 8}
	b := Span{File: 1, Start: 2, End: 6}
	if got := a.Cover(b); got != (Span{File: 1, Start: 2, End: 8}) {
		t.Errorf("Cover = %v", got)
	}
	c := Span{File: 2, Start: 0, End: 100}
	if got := a.Cover(c); got != a {
		t.Errorf("cross-file Cover must keep receiver, got %v", got)
	}
	if !a.At().Empty() || a.At().Start != 8 {
		t.Errorf("At = %v", a.At())
	}
}
