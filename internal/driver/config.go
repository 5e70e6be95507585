package driver

import (
	"maps"
	"slices"

	"idlc/internal/codegen"
	"idlc/internal/project"
)

// GenConfig converts the [gen] section of a manifest. Unset values keep the
// codegen defaults.
func GenConfig(m *project.Manifest) *codegen.Config {
	cfg := codegen.DefaultConfig()
	g := m.Gen
	if g.Target != "" {
		cfg.Target = g.Target
	}
	if g.OutDir != "" {
		cfg.Paths.OutDir = g.OutDir
	}
	if g.Layout != "" {
		cfg.Paths.Layout = codegen.Layout(g.Layout)
	}
	if g.ChangeCase != "" {
		cfg.Naming.ChangeCase = codegen.CaseStyle(g.ChangeCase)
	}
	if g.EscapeSuffix != "" {
		cfg.Naming.EscapeSuffix = g.EscapeSuffix
	}
	cfg.Naming.ReservedWords = slices.Clone(g.Reserved)
	if len(g.Names) > 0 {
		cfg.Naming.Overrides = maps.Clone(g.Names)
	}
	for _, r := range g.Paths {
		cfg.Paths.Rules = append(cfg.Paths.Rules, codegen.PathRule{Match: r.Match, Out: r.Out})
	}
	cfg.Features.MaterializeDefaults = g.MaterializeDefaults
	cfg.Features.GenerateServices = m.ServicesEnabled()
	cfg.Features.Roots = slices.Clone(g.Roots)
	cfg.GoPackage = g.GoPackage
	return cfg
}

// SessionOptions derives the compile settings of a manifest.
func SessionOptions(m *project.Manifest) Options {
	return Options{
		Root:           m.Root,
		Mode:           m.Compile.Mode,
		Jobs:           m.Compile.Jobs,
		MaxDiagnostics: m.Compile.MaxDiagnostics,
	}
}
