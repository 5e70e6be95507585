package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"idlc/internal/driver"
	"idlc/internal/prof"
	"idlc/internal/project"
	"idlc/internal/trace"
)

// env is what every compiling command shares: the manifest with flag
// overrides applied, the session built from it and its sinks.
type env struct {
	manifest *project.Manifest
	session  *driver.Session
	cache    *driver.DiskCache
	registry *prometheus.Registry
	tracer   trace.Tracer
	log      zerolog.Logger
	out      outputOpts
	closers  []func()
}

func (e *env) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		e.closers[i]()
	}
}

// addProjectFlags registers the flags that override idlc.toml.
func addProjectFlags(cmd *cobra.Command) {
	cmd.Flags().String("manifest", "", "path to idlc.toml (default: search upwards from the working directory)")
	cmd.Flags().String("mode", "", "error mode (fail-fast|collect-all)")
	cmd.Flags().Int("jobs", 0, "max parallel query workers (0=auto)")
	cmd.Flags().StringSliceP("include", "I", nil, "additional import search directory")
	cmd.Flags().String("target", "", "generator target (go|yaml)")
	cmd.Flags().StringP("out", "o", "", "output directory")
	cmd.Flags().String("layout", "", "output layout (per-module|single-file)")
	cmd.Flags().StringSlice("root", nil, "generate only what these declarations reach (module#Name)")
	cmd.Flags().Bool("no-cache", false, "disable the persistent unit cache")
}

// loadManifest finds idlc.toml, or falls back to defaults rooted at the
// working directory, then applies flag overrides. Positional args replace
// the manifest entries.
func loadManifest(cmd *cobra.Command, args []string) (*project.Manifest, error) {
	path, err := cmd.Flags().GetString("manifest")
	if err != nil {
		return nil, fmt.Errorf("failed to get manifest flag: %w", err)
	}
	if path == "" {
		var ok bool
		path, ok, err = project.FindManifest(".")
		if err != nil {
			return nil, err
		}
		if !ok {
			path = ""
		}
	}

	var m *project.Manifest
	if path != "" {
		if m, err = project.LoadManifest(path); err != nil {
			return nil, err
		}
	} else {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		m = project.DefaultManifest(cwd)
	}

	if len(args) > 0 {
		m.Compile.Entries = nil
		for _, a := range args {
			rel, err := relToRoot(m.Root, a)
			if err != nil {
				return nil, err
			}
			m.Compile.Entries = append(m.Compile.Entries, rel)
		}
	}

	flags := cmd.Flags()
	if v, _ := flags.GetString("mode"); v != "" {
		m.Compile.Mode = v
	}
	if v, _ := flags.GetInt("jobs"); v > 0 {
		m.Compile.Jobs = v
	}
	if v, _ := flags.GetStringSlice("include"); len(v) > 0 {
		for _, dir := range v {
			rel, err := relToRoot(m.Root, dir)
			if err != nil {
				return nil, err
			}
			m.Compile.Include = append(m.Compile.Include, rel)
		}
	}
	if v, _ := flags.GetString("target"); v != "" {
		m.Gen.Target = v
	}
	if v, _ := flags.GetString("out"); v != "" {
		rel, err := relToRoot(m.Root, v)
		if err != nil {
			return nil, err
		}
		m.Gen.OutDir = rel
	}
	if v, _ := flags.GetString("layout"); v != "" {
		m.Gen.Layout = v
	}
	if v, _ := flags.GetStringSlice("root"); len(v) > 0 {
		m.Gen.Roots = v
	}
	if v, _ := flags.GetBool("no-cache"); v {
		m.Cache.Disk = false
	}
	if v, _ := cmd.Root().PersistentFlags().GetInt("max-diagnostics"); v > 0 {
		m.Compile.MaxDiagnostics = v
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// relToRoot turns a path given on the command line, relative to the
// working directory, into one relative to the project root.
func relToRoot(root, p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(root, abs)
	if err != nil {
		return "", err
	}
	rel = filepath.ToSlash(rel)
	if rel == ".." || strings.HasPrefix(rel, "../") {
		return "", fmt.Errorf("%s is outside the project root %s", p, root)
	}
	return rel, nil
}

// setupEnv builds the logger, tracer, metrics registry, disk cache and
// session for a compiling command.
func setupEnv(cmd *cobra.Command, args []string) (*env, error) {
	out, err := readOutputOpts(cmd)
	if err != nil {
		return nil, err
	}
	log, err := newLogger(cmd, out.color)
	if err != nil {
		return nil, err
	}
	m, err := loadManifest(cmd, args)
	if err != nil {
		return nil, err
	}
	e := &env{manifest: m, log: log, out: out}

	if err := setupProfiling(cmd, e); err != nil {
		return nil, err
	}
	tracer, cleanup, err := setupTracing(cmd, &log)
	if err != nil {
		e.Close()
		return nil, err
	}
	e.tracer = tracer
	e.closers = append(e.closers, cleanup)

	if path, _ := cmd.Root().PersistentFlags().GetString("metrics"); path != "" {
		e.registry = prometheus.NewRegistry()
		e.closers = append(e.closers, func() {
			if err := prometheus.WriteToTextfile(path, e.registry); err != nil {
				log.Warn().Err(err).Str("path", path).Msg("cannot write metrics")
			}
		})
	}

	if m.Cache.Disk {
		c, err := driver.OpenDiskCache(m.Abs(m.Cache.Path))
		if err != nil {
			// без кэша компиляция всё равно возможна
			log.Warn().Err(err).Msg("disk cache disabled")
		} else {
			e.cache = c
			e.closers = append(e.closers, func() {
				if err := c.Close(); err != nil {
					log.Warn().Err(err).Msg("cannot close disk cache")
				}
			})
		}
	}

	opts := driver.SessionOptions(m)
	opts.Cache = e.cache
	if e.registry != nil {
		opts.Registerer = e.registry
	}
	opts.Logger = &e.log
	opts.Tracer = tracer
	e.session = driver.New(opts)
	if err := e.apply(m); err != nil {
		e.Close()
		return nil, err
	}
	log.Debug().
		Str("root", m.Root).
		Strs("entries", m.Compile.Entries).
		Str("target", m.Gen.Target).
		Bool("disk_cache", e.cache != nil).
		Msg("project loaded")
	return e, nil
}

// apply hands the manifest settings to the session. Cache, mode and jobs
// are fixed when the session is created.
func (e *env) apply(m *project.Manifest) error {
	if err := e.session.SetEntries(m.Compile.Entries); err != nil {
		return err
	}
	if err := e.session.SetIncludePaths(m.Compile.Include); err != nil {
		return err
	}
	if err := e.session.SetGenConfig(driver.GenConfig(m)); err != nil {
		return err
	}
	e.manifest = m
	return nil
}

// setupProfiling starts the profilers named by the persistent flags; they
// stop when e is closed.
func setupProfiling(cmd *cobra.Command, e *env) error {
	pf := cmd.Root().PersistentFlags()
	var cfg prof.Config
	var err error
	if cfg.CPU, err = pf.GetString("cpu-profile"); err != nil {
		return fmt.Errorf("failed to get cpu-profile flag: %w", err)
	}
	if cfg.Mem, err = pf.GetString("mem-profile"); err != nil {
		return fmt.Errorf("failed to get mem-profile flag: %w", err)
	}
	if cfg.Trace, err = pf.GetString("runtime-trace"); err != nil {
		return fmt.Errorf("failed to get runtime-trace flag: %w", err)
	}
	if !cfg.Enabled() {
		return nil
	}
	p, err := prof.Start(cfg)
	if err != nil {
		return err
	}
	e.closers = append(e.closers, func() {
		if err := p.Stop(); err != nil {
			e.log.Warn().Err(err).Msg("profiling")
		}
	})
	return nil
}
