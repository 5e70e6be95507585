package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"idlc/internal/driver"
)

// resetFlags restores every flag to its default; cobra commands are
// package globals and keep values between Execute calls.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

func run(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	resetFlags(rootCmd)
	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(append([]string{"--color", "off"}, args...))
	err = rootCmd.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

func writeProject(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, body := range files {
		p := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

var shopProject = map[string]string{
	"idlc.toml": `
[compile]
entries = ["idl/api.thrift"]

[gen]
target = "yaml"

[cache]
disk = true
`,
	"idl/shared.thrift": `struct Tag { 1: required string v }`,
	"idl/api.thrift": `
include "shared.thrift"
service Api { shared.Tag get(1: i32 id) }
`,
}

func TestBuildWritesUnits(t *testing.T) {
	dir := writeProject(t, shopProject)
	manifest := filepath.Join(dir, "idlc.toml")

	_, stderr, err := run(t, "build", "--manifest", manifest)
	if err != nil {
		t.Fatalf("build failed: %v\n%s", err, stderr)
	}
	for _, p := range []string{"gen/idl/api.yaml", "gen/idl/shared.yaml"} {
		if _, err := os.Stat(filepath.Join(dir, p)); err != nil {
			t.Errorf("%s not written: %v", p, err)
		}
	}
	if !strings.Contains(stderr, "2 modules, 2 files written") {
		t.Errorf("unexpected summary:\n%s", stderr)
	}

	// второй запуск: всё из дискового кэша, файлы не меняются
	_, stderr, err = run(t, "build", "--manifest", manifest)
	if err != nil {
		t.Fatalf("rebuild failed: %v\n%s", err, stderr)
	}
	if !strings.Contains(stderr, "0 files written (2 cached)") {
		t.Errorf("unexpected summary:\n%s", stderr)
	}
}

func TestBuildDryRun(t *testing.T) {
	dir := writeProject(t, shopProject)
	stdout, _, err := run(t, "build", "--manifest", filepath.Join(dir, "idlc.toml"), "--dry-run", "--no-cache", "--out", filepath.Join(dir, "out"))
	if err != nil {
		t.Fatal(err)
	}
	if want := "out/idl/api.yaml\nout/idl/shared.yaml\n"; stdout != want {
		t.Errorf("dry run listed %q, want %q", stdout, want)
	}
	if _, err := os.Stat(filepath.Join(dir, "out")); !os.IsNotExist(err) {
		t.Errorf("dry run wrote files: %v", err)
	}
}

func TestCheckReportsErrors(t *testing.T) {
	dir := writeProject(t, map[string]string{
		"idlc.toml":  "[compile]\nentries = [\"bad.thrift\"]\n",
		"bad.thrift": `struct User { 1: Missing m }`,
	})
	_, stderr, err := run(t, "check", "--manifest", filepath.Join(dir, "idlc.toml"), "--format", "short")
	if !errors.As(err, new(errFailed)) {
		t.Fatalf("expected errFailed, got %v", err)
	}
	if !strings.Contains(stderr, "bad.thrift:1:") || !strings.Contains(stderr, "SEM3005") {
		t.Errorf("unexpected diagnostics:\n%s", stderr)
	}
}

func TestIRDump(t *testing.T) {
	dir := writeProject(t, shopProject)
	stdout, stderr, err := run(t, "ir", "--manifest", filepath.Join(dir, "idlc.toml"), "--no-cache")
	if err != nil {
		t.Fatalf("ir failed: %v\n%s", err, stderr)
	}
	for _, want := range []string{"modules:", "path: idl/shared.thrift", "emit_order:"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("dump lacks %q:\n%s", want, stdout)
		}
	}
}

func TestMetricsFile(t *testing.T) {
	dir := writeProject(t, shopProject)
	metrics := filepath.Join(t.TempDir(), "idlc.prom")
	if _, stderr, err := run(t, "check", "--manifest", filepath.Join(dir, "idlc.toml"), "--metrics", metrics); err != nil {
		t.Fatalf("check failed: %v\n%s", err, stderr)
	}
	data, err := os.ReadFile(metrics)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `idlc_query_executions_total{kind="parse"} 2`) {
		t.Errorf("unexpected metrics:\n%s", data)
	}
}

func TestRelToRoot(t *testing.T) {
	root := t.TempDir()
	got, err := relToRoot(root, filepath.Join(root, "idl", "a.thrift"))
	if err != nil || got != "idl/a.thrift" {
		t.Errorf("relToRoot = %q, %v", got, err)
	}
	if _, err := relToRoot(root, filepath.Dir(root)); err == nil {
		t.Error("expected an error for a path outside the root")
	}
}

func TestSummary(t *testing.T) {
	res := &driver.Result{
		Modules: []driver.ModuleStatus{{Path: "a.thrift", Cached: true}, {Path: "b.thrift"}},
	}
	if got := summary("built", res, 1); !strings.Contains(got, "2 modules, 1 files written") || !strings.Contains(got, "(1 cached)") {
		t.Errorf("summary = %q", got)
	}
	if got := plural(2, "warning"); got != "2 warnings" {
		t.Errorf("plural = %q", got)
	}
}

func TestVersionJSON(t *testing.T) {
	stdout, _, err := run(t, "version", "--output", "json")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(stdout, `"tool": "idlc"`) || !strings.Contains(stdout, `"yaml"`) {
		t.Errorf("unexpected version output:\n%s", stdout)
	}
}
