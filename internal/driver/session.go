package driver

import (
	"context"
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"idlc/internal/codegen"
	"idlc/internal/diag"
	"idlc/internal/project"
	"idlc/internal/query"
	"idlc/internal/source"
	"idlc/internal/trace"
)

type Options struct {
	// Root is the project root; module paths are relative to it.
	Root   string
	Loader Loader // nil — FSLoader{Root}
	// Mode is project.ModeFailFast (default) or project.ModeCollectAll.
	Mode           string
	Jobs           int
	Capacity       int  // предел производных записей движка, 0 — без ограничения
	MaxErrors      uint // на файл, для парсера
	MaxDiagnostics int
	Cache          *DiskCache
	Registerer     prometheus.Registerer
	Logger         *zerolog.Logger
	Tracer         trace.Tracer
	OnPhase        PhaseObserver
}

// Session is a long-lived compilation: sources and settings are query
// inputs, and every Check or Compile recomputes only what their changes
// affect. Edits and compilations are serialised.
type Session struct {
	id     uuid.UUID
	opts   Options
	files  *source.FileSet
	engine *query.Engine
	loader Loader
	cache  *DiskCache
	log    zerolog.Logger
	tracer trace.Tracer

	mu       sync.Mutex
	loaded   map[string]bool
	entries  []string
	includes []string
	gen      *codegen.Config
}

func New(opts Options) *Session {
	id := uuid.New()
	log := zerolog.Nop()
	if opts.Logger != nil {
		log = opts.Logger.With().Str("session", id.String()).Logger()
	}
	loader := opts.Loader
	if loader == nil {
		loader = FSLoader{Root: opts.Root}
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = trace.Nop
	}
	s := &Session{
		id:     id,
		opts:   opts,
		files:  source.NewFileSetWithBase(opts.Root),
		loader: loader,
		cache:  opts.Cache,
		log:    log,
		tracer: tracer,
		loaded: make(map[string]bool),
		gen:    codegen.DefaultConfig(),
	}
	s.engine = query.New(query.Options{
		Jobs:       opts.Jobs,
		Capacity:   opts.Capacity,
		Registerer: opts.Registerer,
		Logger:     &log,
	})
	s.register()
	s.setConfigInputs()
	return s
}

func (s *Session) ID() uuid.UUID { return s.id }

// Files returns the file set diagnostics spans point into.
func (s *Session) Files() *source.FileSet { return s.files }

func (s *Session) Engine() *query.Engine { return s.engine }

func (s *Session) failFast() bool { return s.opts.Mode != project.ModeCollectAll }

func (s *Session) setConfigInputs() {
	// значения — простые данные, ошибка отпечатка невозможна
	_ = s.engine.SetInput(query.K(KindConfig, cfgEntries), s.entries, project.Digest{})
	_ = s.engine.SetInput(query.K(KindConfig, cfgInclude), s.includes, project.Digest{})
	_ = s.engine.SetInput(query.K(KindConfig, cfgGen), s.gen, project.Digest{})
}

// SetSource sets the text of module p, overriding what the loader would
// read.
func (s *Session) SetSource(p string, content []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setSource(p, content)
}

func (s *Session) setSource(name string, content []byte) error {
	p, err := project.NormalizeModulePath(name)
	if err != nil {
		return fmt.Errorf("source %q: %w", name, err)
	}
	content, flags := source.Normalize(content)
	digest := project.Sum(content)
	var f *source.File
	if id, ok := s.files.GetLatest(p); ok {
		if old := s.files.Get(id); old != nil && project.Digest(old.Hash) == digest {
			f = old
		}
	}
	if f == nil {
		f = s.files.Get(s.files.Add(p, content, flags))
	}
	s.loaded[p] = true
	return s.engine.SetInput(query.K(KindSource, p), f, digest)
}

func (s *Session) RemoveSource(name string) error {
	p, err := project.NormalizeModulePath(name)
	if err != nil {
		return fmt.Errorf("source %q: %w", name, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.loaded, p)
	s.engine.RemoveInput(query.K(KindSource, p))
	return nil
}

// Refresh re-reads p through the loader, removing it when it is gone.
func (s *Session) Refresh(p string) error {
	content, err := s.loader.ReadFile(p)
	if isNotExist(err) {
		return s.RemoveSource(p)
	}
	if err != nil {
		return err
	}
	return s.SetSource(p, content)
}

// Loaded lists the modules whose sources are set.
func (s *Session) Loaded() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.loaded))
	for p := range s.loaded {
		out = append(out, p)
	}
	slices.Sort(out)
	return out
}

func (s *Session) SetEntries(entries []string) error {
	norm := make([]string, 0, len(entries))
	for _, e := range entries {
		p, err := project.NormalizeModulePath(e)
		if err != nil {
			return fmt.Errorf("entry %q: %w", e, err)
		}
		if !slices.Contains(norm, p) {
			norm = append(norm, p)
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = norm
	return s.engine.SetInput(query.K(KindConfig, cfgEntries), norm, project.Digest{})
}

// SetIncludePaths sets the directories searched for imports after the
// importer's own directory, in order.
func (s *Session) SetIncludePaths(dirs []string) error {
	norm := make([]string, 0, len(dirs))
	for _, d := range dirs {
		d = path.Clean(filepath.ToSlash(d))
		if d == "." {
			d = ""
		}
		norm = append(norm, d)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.includes = norm
	return s.engine.SetInput(query.K(KindConfig, cfgInclude), norm, project.Digest{})
}

func (s *Session) SetGenConfig(cfg *codegen.Config) error {
	if cfg == nil {
		return errors.New("generator config is nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen = cfg
	return s.engine.SetInput(query.K(KindConfig, cfgGen), cfg, project.Digest{})
}

// Reset drops every cached result and loaded source. Entries, include
// paths and the generator config stay; the next Check or Compile reloads
// sources through the loader.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.engine.Reset()
	clear(s.loaded)
	s.setConfigInputs()
	s.log.Debug().Msg("session reset")
}

// load reads the entries and follows their imports through the search
// scope, one import frontier at a time; the modules of a frontier are
// parsed and lowered in parallel. Sources already set are not read again.
// In fail-fast mode loading stops after the first frontier with a parse or
// lowering error, and the diagnostics of its broken modules are returned.
func (s *Session) load(ctx context.Context) ([]diag.Diagnostic, error) {
	var diags []diag.Diagnostic
	seen := make(map[string]bool, len(s.entries))
	frontier := slices.Clone(s.entries)
	for _, e := range s.entries {
		seen[e] = true
	}
	for len(frontier) > 0 {
		keys := make([]query.Key, 0, len(frontier))
		for _, p := range frontier {
			if !s.loaded[p] {
				content, err := s.loader.ReadFile(p)
				if err != nil {
					msg := fmt.Sprintf("cannot read %s: %v", p, err)
					if isNotExist(err) {
						msg = fmt.Sprintf("entry %s does not exist", p)
					}
					diags = append(diags, diag.NewError(diag.IOLoadFileError, source.Span{}, msg))
					continue
				}
				if err := s.setSource(p, content); err != nil {
					return diags, err
				}
			}
			keys = append(keys, query.K(KindLower, p))
		}

		var next []string
		broken := false
		for _, r := range s.engine.GetAll(ctx, keys) {
			if r.Err != nil {
				return diags, r.Err
			}
			p := r.Key.Arg
			low := r.Value.(*lowered)
			if low.Missing {
				continue
			}
			if s.failFast() {
				front, err := s.frontDiags(ctx, p, low)
				if err != nil {
					return diags, err
				}
				if diag.HasErrors(front) {
					broken = true
					diags = append(diags, front...)
				}
			}
			for _, imp := range low.Module.Imports {
				for _, cand := range project.ImportCandidates(p, imp.Path, s.includes) {
					if !s.loaded[cand] && !s.loader.Exists(cand) {
						continue
					}
					if !seen[cand] {
						seen[cand] = true
						next = append(next, cand)
					}
					break
				}
			}
		}
		if broken {
			s.log.Debug().Int("pending", len(next)).Msg("fail-fast: stopping load")
			return diags, nil
		}
		frontier = next
	}
	return diags, nil
}

// frontDiags returns the parse and lowering diagnostics of a loaded module.
func (s *Session) frontDiags(ctx context.Context, p string, low *lowered) ([]diag.Diagnostic, error) {
	v, err := s.engine.Get(ctx, query.K(KindParse, p))
	if err != nil {
		return nil, err
	}
	return slices.Concat(v.(*parsed).Diags, low.Diags), nil
}
