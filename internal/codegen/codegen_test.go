package codegen_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"idlc/internal/codegen"
	"idlc/internal/codegen/codegentest"
	"idlc/internal/diag"
	"idlc/internal/ir"
)

func TestNamer(t *testing.T) {
	n := codegen.NewNamer(codegen.Naming{}, []string{"type"})
	cases := []struct{ in, exported, local string }{
		{"user_id", "UserID", "userID"},
		{"parseHTTPHeader", "ParseHTTPHeader", "parseHTTPHeader"},
		{"URLPath", "URLPath", "urlPath"},
		{"Outer.Inner", "Outer_Inner", "outer_Inner"},
		{"type", "Type", "type_"},
		{"id", "ID", "id"},
	}
	for _, c := range cases {
		require.Equal(t, c.exported, n.Exported(c.in), c.in)
		require.Equal(t, c.local, n.Local(c.in), c.in)
	}
	require.Equal(t, "USER_ID", n.Constant("userId"))

	keep := codegen.NewNamer(codegen.Naming{ChangeCase: codegen.CaseKeep, EscapeSuffix: "X", ReservedWords: []string{"Point"}}, nil)
	require.Equal(t, "User_id", keep.Exported("user_id"))
	require.Equal(t, "PointX", keep.Exported("point"))
}

func TestNamerOverrides(t *testing.T) {
	n := codegen.NewNamer(codegen.Naming{Overrides: map[string]string{
		"a.thrift#Req":       "Request",
		"a.thrift#Req.id":    "Ident",
		"a.thrift#Color.RED": "Red",
	}}, nil)
	req := &ir.Decl{Kind: ir.DeclStruct, Name: "Req", Module: "a.thrift"}
	require.Equal(t, "Request", n.Type(req))
	require.Equal(t, "Ident", n.Field(req, &ir.Field{Name: "id"}))
	require.Equal(t, "Name", n.Field(req, &ir.Field{Name: "name"}))
	require.Equal(t, "Custom", n.Field(req, &ir.Field{Name: "x", GenName: "Custom"}))

	color := &ir.Decl{Kind: ir.DeclEnum, Name: "Color", Module: "a.thrift"}
	require.Equal(t, "Red", n.EnumValue(color, "Color", ir.EnumValue{Name: "RED"}))
	require.Equal(t, "Color_GREEN", n.EnumValue(color, "Color", ir.EnumValue{Name: "GREEN"}))
}

func TestModuleDir(t *testing.T) {
	cfg := codegen.DefaultConfig()
	cfg.Paths.Rules = []codegen.PathRule{
		{Match: "idl/", Out: "pb"},
		{Match: "idl/internal/", Out: "pb/internal"},
	}
	require.Equal(t, "pb/internal", cfg.ModuleDir("idl/internal/x.proto", "x"))
	require.Equal(t, "pb", cfg.ModuleDir("idl/y.proto", "y"))
	require.Equal(t, "z", cfg.ModuleDir("other/z.proto", "z"))
	require.Equal(t, "gen/pb/y.go", cfg.OutPath("pb/y.go"))
	require.Equal(t, "point", codegen.ModuleStem("idl/point.thrift"))
}

// fake writes one file per module; "clash" makes every module write the
// same path.
type fake struct{ target string }

func (f fake) Target() string { return f.target }

func (f fake) Emit(s *ir.Schema, module string, cfg *codegen.Config) ([]codegen.OutputUnit, error) {
	switch f.target {
	case "broken":
		return nil, errors.New("disk on fire")
	case "clash":
		return []codegen.OutputUnit{{Path: cfg.OutPath("out.txt"), Module: module}}, nil
	}
	return []codegen.OutputUnit{{Path: cfg.OutPath(codegen.ModuleStem(module) + ".txt"), Module: module}}, nil
}

func init() {
	codegen.Register(fake{"fake"})
	codegen.Register(fake{"broken"})
	codegen.Register(fake{"clash"})
}

var twoModules = map[string]string{
	"b.thrift": "struct B {}",
	"a.thrift": `
struct Tag { 1: string v }
struct Req { 1: Tag tag }
struct Unused {}
`,
}

func genCode(t *testing.T, err error) diag.Code {
	t.Helper()
	var ge *codegen.Error
	require.ErrorAs(t, err, &ge)
	return ge.Code
}

func TestEmitRegistry(t *testing.T) {
	s := codegentest.Schema(t, twoModules)
	cfg := codegen.DefaultConfig()

	cfg.Target = "fake"
	units, err := codegen.Emit(s, cfg)
	require.NoError(t, err)
	require.Len(t, units, 2)
	require.Equal(t, "gen/a.txt", units[0].Path)
	require.Equal(t, "gen/b.txt", units[1].Path)

	cfg.Target = "cobol"
	_, err = codegen.Emit(s, cfg)
	require.Equal(t, diag.GenUnknownTarget, genCode(t, err))

	cfg.Target = "broken"
	_, err = codegen.Emit(s, cfg)
	require.Equal(t, diag.GenBackendFailed, genCode(t, err))
	require.ErrorContains(t, err, "disk on fire")

	cfg.Target = "clash"
	_, err = codegen.Emit(s, cfg)
	require.Equal(t, diag.GenOutputConflict, genCode(t, err))

	require.Contains(t, codegen.Targets(), "fake")
}

func TestSelectRoots(t *testing.T) {
	s := codegentest.Schema(t, twoModules)
	sel, diags := codegen.Select(s, []string{"a.thrift#Req"})
	require.Empty(t, diags)
	require.True(t, sel.Has(ir.DeclRef{Module: "a.thrift", Name: "Req"}))
	require.True(t, sel.Has(ir.DeclRef{Module: "a.thrift", Name: "Tag"}))
	require.False(t, sel.Has(ir.DeclRef{Module: "a.thrift", Name: "Unused"}))
	require.Equal(t, 2, sel.Len())

	_, diags = codegen.Select(s, []string{"a.thrift#Reqq", "nohash"})
	require.Len(t, diags, 2)
	require.Equal(t, "SEM3025", diags[0].Code.ID())
	require.Equal(t, "did you mean a.thrift#Req?", diags[0].Notes[0].Msg)

	// only modules with selected declarations are generated
	cfg := codegen.DefaultConfig()
	cfg.Target = "fake"
	cfg.Features.Roots = []string{"a.thrift#Req"}
	units, err := codegen.Emit(s, cfg)
	require.NoError(t, err)
	require.Len(t, units, 1)
	require.Equal(t, "a.thrift", units[0].Module)

	cfg.Features.Roots = []string{"a.thrift#Missing"}
	_, err = codegen.Emit(s, cfg)
	require.Equal(t, diag.SemaUnknownRoot, genCode(t, err))
}
