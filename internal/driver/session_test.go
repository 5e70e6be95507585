package driver_test

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"idlc/internal/codegen"
	"idlc/internal/codegen/yamlgen"
	"idlc/internal/diag"
	"idlc/internal/driver"
	"idlc/internal/project"
)

var shop = driver.MapLoader{
	"idl/shared.thrift": `
enum Color { RED, GREEN = 5 }
struct Tag { 1: required string v }
`,
	"idl/api.thrift": `
include "shared.thrift"
service Api { shared.Tag get(1: i32 id) }
`,
	"idl/lonely.thrift": `struct Lonely { 1: i32 x }`,
}

func yamlConfig() *codegen.Config {
	cfg := codegen.DefaultConfig()
	cfg.Target = yamlgen.Target
	return cfg
}

func newSession(t *testing.T, loader driver.Loader, mode string, entries ...string) *driver.Session {
	t.Helper()
	s := driver.New(driver.Options{Loader: loader, Mode: mode})
	require.NoError(t, s.SetEntries(entries))
	require.NoError(t, s.SetGenConfig(yamlConfig()))
	return s
}

func paths(units []codegen.OutputUnit) []string {
	out := make([]string, len(units))
	for i, u := range units {
		out[i] = u.Path
	}
	return out
}

func codes(ds []diag.Diagnostic) []string {
	out := make([]string, len(ds))
	for i, d := range ds {
		out[i] = d.Code.ID()
	}
	return out
}

func TestCompileFollowsImports(t *testing.T) {
	s := newSession(t, shop, project.ModeFailFast, "idl/api.thrift")
	res, err := s.Compile(context.Background())
	require.NoError(t, err)
	require.False(t, res.Failed, codes(res.Diagnostics))
	require.Equal(t, []string{"idl/api.thrift", "idl/shared.thrift"}, s.Loaded())
	require.Equal(t, []string{"gen/idl/api.yaml", "gen/idl/shared.yaml"}, paths(res.Units))

	api, ok := res.Module("idl/api.thrift")
	require.True(t, ok)
	shared, ok := res.Module("idl/shared.thrift")
	require.True(t, ok)
	require.True(t, api.Emitted)
	require.False(t, api.Hash.IsZero())
	require.NotEqual(t, api.Hash, shared.Hash)
	require.NotNil(t, res.Schema.Module("idl/shared.thrift"))
	require.Equal(t, res.SessionID, s.ID())
	require.Len(t, res.Timings.Phases, 3)
}

func TestIncrementalRecompile(t *testing.T) {
	s := newSession(t, shop, project.ModeFailFast, "idl/api.thrift")
	ctx := context.Background()
	_, err := s.Compile(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, s.Engine().Stats()[driver.KindEmit].Executions)

	// только пробелы: срез модуля не меняется, генерация не запускается
	require.NoError(t, s.SetSource("idl/api.thrift", []byte(shop["idl/api.thrift"]+"\n\n")))
	res, err := s.Compile(ctx)
	require.NoError(t, err)
	require.False(t, res.Failed)
	st := s.Engine().Stats()
	require.Equal(t, 2, st[driver.KindEmit].Executions)
	require.Equal(t, 3, st[driver.KindParse].Executions)

	// a new member of Tag changes shared; api only sees Tag's shell
	require.NoError(t, s.SetSource("idl/shared.thrift", []byte(`
enum Color { RED, GREEN = 5 }
struct Tag { 1: required string v; 2: optional i64 at }
`)))
	res, err = s.Compile(ctx)
	require.NoError(t, err)
	require.False(t, res.Failed)
	require.Equal(t, 3, s.Engine().Stats()[driver.KindEmit].Executions)
	require.Contains(t, string(res.Units[1].Content), "name: at")

	// identical text is a no-op
	require.NoError(t, s.SetSource("idl/lonely.thrift", []byte(shop["idl/lonely.thrift"])))
	require.NoError(t, s.SetSource("idl/lonely.thrift", []byte(shop["idl/lonely.thrift"])))
	_, err = s.Compile(ctx)
	require.NoError(t, err)
	require.Equal(t, 4, s.Engine().Stats()[driver.KindParse].Executions)
}

var broken = driver.MapLoader{
	"idl/bad.thrift":  `struct Bad { 1: Missing m }`,
	"idl/user.thrift": "include \"bad.thrift\"\nstruct U { 1: bad.Bad b }\n",
	"idl/ok.thrift":   `struct Ok { 1: i32 x }`,
}

func TestCollectAllEmitsHealthyModules(t *testing.T) {
	s := newSession(t, broken, project.ModeCollectAll, "idl/user.thrift", "idl/ok.thrift")
	res, err := s.Compile(context.Background())
	require.NoError(t, err)
	require.True(t, res.Failed)
	require.Equal(t, []string{"gen/idl/ok.yaml"}, paths(res.Units))
	require.Contains(t, codes(res.Diagnostics), "SEM3005")
	require.Contains(t, codes(res.Diagnostics), "PRJ5003")

	bad, _ := res.Module("idl/bad.thrift")
	require.True(t, bad.Broken)
	user, _ := res.Module("idl/user.thrift")
	require.False(t, user.Broken)
	require.True(t, user.Blocked)
	require.False(t, user.Emitted)
	ok, _ := res.Module("idl/ok.thrift")
	require.True(t, ok.Emitted)
}

func TestFailFastEmitsNothing(t *testing.T) {
	s := newSession(t, broken, project.ModeFailFast, "idl/user.thrift", "idl/ok.thrift")
	res, err := s.Compile(context.Background())
	require.NoError(t, err)
	require.True(t, res.Failed)
	require.Empty(t, res.Units)
	require.Zero(t, s.Engine().Stats()[driver.KindEmit].Executions)
}

var threeBroken = driver.MapLoader{
	"a.thrift": `struct A { 1: i32 }`,
	"b.thrift": `struct B { 1: Missing m }`,
	"c.thrift": `struct C { 1: required C c }`,
}

func TestFailFastStopsAfterParse(t *testing.T) {
	ctx := context.Background()
	ff := newSession(t, threeBroken, project.ModeFailFast, "a.thrift", "b.thrift", "c.thrift")
	res, err := ff.Check(ctx)
	require.NoError(t, err)
	require.True(t, res.Failed)
	got := codes(res.Diagnostics)
	require.True(t, slices.ContainsFunc(got, func(c string) bool { return strings.HasPrefix(c, "SYN") }), got)
	require.NotContains(t, got, "SEM3005")
	require.NotContains(t, got, "SEM3126")
	require.Equal(t, 3, ff.Engine().Stats()[driver.KindParse].Executions)
	require.Zero(t, ff.Engine().Stats()[driver.KindResolve].Executions)

	ca := newSession(t, threeBroken, project.ModeCollectAll, "a.thrift", "b.thrift", "c.thrift")
	res, err = ca.Check(ctx)
	require.NoError(t, err)
	require.Contains(t, codes(res.Diagnostics), "SEM3005")
	require.Contains(t, codes(res.Diagnostics), "SEM3126")
	require.Equal(t, 3, ca.Engine().Stats()[driver.KindResolve].Executions)
}

func TestFailFastCancelsPendingResolve(t *testing.T) {
	ctx := context.Background()
	run := func(mode string) (*driver.Result, int) {
		s := driver.New(driver.Options{Loader: threeBroken, Mode: mode, Jobs: 1})
		require.NoError(t, s.SetEntries([]string{"b.thrift", "c.thrift"}))
		res, err := s.Check(ctx)
		require.NoError(t, err)
		require.True(t, res.Failed)
		return res, s.Engine().Stats()[driver.KindResolve].Executions
	}

	res, n := run(project.ModeFailFast)
	require.Equal(t, 1, n)
	require.Equal(t, []string{"SEM3005"}, codes(res.Diagnostics))
	b, ok := res.Module("b.thrift")
	require.True(t, ok)
	require.True(t, b.Broken)

	res, n = run(project.ModeCollectAll)
	require.Equal(t, 2, n)
	require.Contains(t, codes(res.Diagnostics), "SEM3126")
}

func TestMissingFiles(t *testing.T) {
	loader := driver.MapLoader{"a.thrift": "include \"nope.thrift\"\nstruct A { 1: i32 x }\n"}
	s := newSession(t, loader, project.ModeCollectAll, "a.thrift", "gone.thrift")
	res, err := s.Check(context.Background())
	require.NoError(t, err)
	require.True(t, res.Failed)
	require.Contains(t, codes(res.Diagnostics), "IO4001")
	require.Contains(t, codes(res.Diagnostics), "IO4002")
	require.Empty(t, res.Units)

	s = newSession(t, loader, project.ModeFailFast)
	res, err = s.Check(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"PRJ5002"}, codes(res.Diagnostics))
}

func TestIncludePaths(t *testing.T) {
	loader := driver.MapLoader{
		"lib/common.thrift": `struct Common { 1: i32 x }`,
		"svc/a.thrift":      "include \"common.thrift\"\nstruct A { 1: common.Common c }\n",
	}
	s := newSession(t, loader, project.ModeFailFast, "svc/a.thrift")
	res, err := s.Check(context.Background())
	require.NoError(t, err)
	require.Contains(t, codes(res.Diagnostics), "IO4002")

	require.NoError(t, s.SetIncludePaths([]string{"lib"}))
	res, err = s.Check(context.Background())
	require.NoError(t, err)
	require.False(t, res.Failed, codes(res.Diagnostics))
	require.Equal(t, []string{"lib/common.thrift", "svc/a.thrift"}, s.Loaded())
}

func TestRootsAndLayout(t *testing.T) {
	s := newSession(t, shop, project.ModeFailFast, "idl/api.thrift", "idl/lonely.thrift")
	cfg := yamlConfig()
	cfg.Features.Roots = []string{"idl/shared.thrift#Tag"}
	require.NoError(t, s.SetGenConfig(cfg))
	res, err := s.Compile(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"gen/idl/shared.yaml"}, paths(res.Units))

	cfg = yamlConfig()
	cfg.Features.Roots = []string{"idl/shared.thrift#Tga"}
	require.NoError(t, s.SetGenConfig(cfg))
	res, err = s.Compile(context.Background())
	require.NoError(t, err)
	require.True(t, res.Failed)
	require.Equal(t, []string{"SEM3025"}, codes(res.Diagnostics))
	require.Equal(t, "did you mean idl/shared.thrift#Tag?", res.Diagnostics[0].Notes[0].Msg)

	cfg = yamlConfig()
	cfg.Paths.Layout = codegen.LayoutSingleFile
	require.NoError(t, s.SetGenConfig(cfg))
	res, err = s.Compile(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"gen/schema.yaml"}, paths(res.Units))

	cfg = yamlConfig()
	cfg.Target = "cobol"
	require.NoError(t, s.SetGenConfig(cfg))
	res, err = s.Compile(context.Background())
	require.NoError(t, err)
	require.Contains(t, codes(res.Diagnostics), "GEN6001")
}

func TestResetReloads(t *testing.T) {
	s := newSession(t, shop, project.ModeFailFast, "idl/api.thrift")
	ctx := context.Background()
	_, err := s.Compile(ctx)
	require.NoError(t, err)

	s.Reset()
	require.Empty(t, s.Loaded())
	require.Zero(t, s.Engine().Len())
	res, err := s.Compile(ctx)
	require.NoError(t, err)
	require.Len(t, res.Units, 2)
	require.Equal(t, 2, s.Engine().Stats()[driver.KindEmit].Executions)
}

func TestFSLoaderRefresh(t *testing.T) {
	dir := t.TempDir()
	write := func(p, text string) {
		t.Helper()
		full := filepath.Join(dir, filepath.FromSlash(p))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(text), 0o644))
	}
	write("idl/a.thrift", "include \"b.thrift\"\nstruct A { 1: b.B b }\n")
	write("idl/b.thrift", "struct B { 1: i32 x }\n")

	s := driver.New(driver.Options{Root: dir})
	require.NoError(t, s.SetEntries([]string{"idl/a.thrift"}))
	require.NoError(t, s.SetGenConfig(yamlConfig()))
	ctx := context.Background()
	res, err := s.Compile(ctx)
	require.NoError(t, err)
	require.False(t, res.Failed, codes(res.Diagnostics))

	require.NoError(t, os.Remove(filepath.Join(dir, "idl", "b.thrift")))
	require.NoError(t, s.Refresh("idl/b.thrift"))
	res, err = s.Compile(ctx)
	require.NoError(t, err)
	require.Contains(t, codes(res.Diagnostics), "IO4002")

	write("idl/b.thrift", "struct B { 1: i32 x }\n")
	require.NoError(t, s.Refresh("idl/b.thrift"))
	res, err = s.Compile(ctx)
	require.NoError(t, err)
	require.False(t, res.Failed)

	n, diags := driver.WriteUnits(dir, res.Units)
	require.Empty(t, diags)
	require.Equal(t, 2, n)
	n, _ = driver.WriteUnits(dir, res.Units)
	require.Zero(t, n)
	require.FileExists(t, filepath.Join(dir, "gen", "idl", "a.yaml"))
}

func TestGenConfigFromManifest(t *testing.T) {
	m := project.DefaultManifest("/p")
	off := false
	m.Gen.Target = "yaml"
	m.Gen.Layout = "single-file"
	m.Gen.ChangeCase = "keep"
	m.Gen.Services = &off
	m.Gen.Names = map[string]string{"a.thrift#X": "Y"}
	m.Gen.Paths = []project.PathRule{{Match: "idl/", Out: "api"}}
	m.Gen.GoPackage = "example.com/gen"

	cfg := driver.GenConfig(m)
	require.Equal(t, "yaml", cfg.Target)
	require.Equal(t, codegen.LayoutSingleFile, cfg.Paths.Layout)
	require.Equal(t, codegen.CaseKeep, cfg.Naming.ChangeCase)
	require.Equal(t, "_", cfg.Naming.EscapeSuffix)
	require.Equal(t, "gen", cfg.Paths.OutDir)
	require.False(t, cfg.Features.GenerateServices)
	require.Equal(t, "Y", cfg.Naming.Overrides["a.thrift#X"])
	require.Equal(t, []codegen.PathRule{{Match: "idl/", Out: "api"}}, cfg.Paths.Rules)
	require.Equal(t, "example.com/gen", cfg.GoPackage)

	opts := driver.SessionOptions(m)
	require.Equal(t, "/p", opts.Root)
	require.Equal(t, project.ModeFailFast, opts.Mode)
}

func TestPhaseObserver(t *testing.T) {
	var seen []string
	s := driver.New(driver.Options{Loader: shop, OnPhase: func(ev driver.PhaseEvent) {
		if ev.Status == driver.PhaseEnd {
			seen = append(seen, ev.Name)
		}
	}})
	require.NoError(t, s.SetEntries([]string{"idl/lonely.thrift"}))
	_, err := s.Check(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"load", "resolve"}, seen)
}

func TestListSources(t *testing.T) {
	dir := t.TempDir()
	for _, p := range []string{"b.proto", "a/x.thrift", "a/notes.txt", ".idlc/c.thrift"} {
		full := filepath.Join(dir, filepath.FromSlash(p))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, nil, 0o644))
	}
	got, err := driver.ListSources(dir, dir)
	require.NoError(t, err)
	require.Equal(t, []string{"a/x.thrift", "b.proto"}, got)
}

func TestForeignDialectHint(t *testing.T) {
	loader := driver.MapLoader{
		"user.thrift": `syntax = "proto3";
message User {
  int64 id = 1;
  repeated string tags = 2;
}
`,
	}
	res, err := newSession(t, loader, project.ModeFailFast, "user.thrift").Check(context.Background())
	require.NoError(t, err)
	require.True(t, res.Failed)

	var hints []string
	for _, d := range res.Diagnostics {
		for _, n := range d.Notes {
			if strings.Contains(n.Msg, "reads like Protobuf") {
				hints = append(hints, n.Msg)
			}
		}
	}
	require.Len(t, hints, 1)
	require.Contains(t, hints[0], "rename it to .proto")
}
