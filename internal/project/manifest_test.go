package project

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeManifest(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, ManifestName)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadManifest(t *testing.T) {
	dir := t.TempDir()
	path := writeManifest(t, dir, `
[compile]
entries = ["idl/api.thrift"]
include = ["idl", "third_party"]
mode = "collect-all"
jobs = 4

[gen]
target = "go"
out_dir = "out"
change_case = "pascal"
reserved = ["type"]
roots = ["idl/api.thrift#Request"]

[gen.names]
"idl/api.thrift#Point" = "Pt"

[[gen.paths]]
match = "idl/"
out = "pkg/"

[cache]
disk = true
`)
	m, err := LoadManifest(path)
	if err != nil {
		t.Fatalf("LoadManifest: %v", err)
	}
	if m.Root != dir || m.Compile.Mode != ModeCollectAll || m.Compile.Jobs != 4 {
		t.Errorf("compile = %+v, root %q", m.Compile, m.Root)
	}
	if len(m.Compile.Include) != 2 || m.Gen.OutDir != "out" || m.Gen.Names["idl/api.thrift#Point"] != "Pt" {
		t.Errorf("gen = %+v", m.Gen)
	}
	if len(m.Gen.Paths) != 1 || m.Gen.Paths[0].Out != "pkg/" {
		t.Errorf("paths = %+v", m.Gen.Paths)
	}
	if !m.ServicesEnabled() {
		t.Error("services must default to on")
	}
	// значение по умолчанию сохраняется, если ключ не задан
	if m.Gen.Layout != "per-module" || m.Cache.Path == "" || !m.Cache.Disk {
		t.Errorf("defaults lost: layout=%q cache=%+v", m.Gen.Layout, m.Cache)
	}
	if got := m.Abs("idl"); got != filepath.Join(dir, "idl") {
		t.Errorf("Abs = %q", got)
	}
}

func TestLoadManifestErrors(t *testing.T) {
	cases := map[string]string{
		"mode":    "[compile]\nmode = \"sometimes\"\n",
		"layout":  "[gen]\nlayout = \"tree\"\n",
		"unknown": "[gen]\ntargett = \"go\"\n",
		"escape":  "[compile]\nentries = [\"../x.thrift\"]\n",
		"rule":    "[[gen.paths]]\nout = \"x\"\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadManifest(writeManifest(t, t.TempDir(), body))
			if !errors.Is(err, ErrInvalidManifest) {
				t.Fatalf("err = %v, want ErrInvalidManifest", err)
			}
		})
	}
	_, err := LoadManifest(writeManifest(t, t.TempDir(), "[compile\n"))
	if err == nil || errors.Is(err, ErrInvalidManifest) {
		t.Fatalf("syntax error must be reported as a parse failure, got %v", err)
	}
}

func TestFindManifest(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, root, "")
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}
	got, ok, err := FindManifest(nested)
	if err != nil || !ok {
		t.Fatalf("FindManifest: ok=%v err=%v", ok, err)
	}
	if got != filepath.Join(root, ManifestName) {
		t.Errorf("path = %q", got)
	}
	dir, ok, _ := FindProjectRoot(nested)
	if !ok || dir != root {
		t.Errorf("root = %q", dir)
	}
}
