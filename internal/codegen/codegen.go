package codegen

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"idlc/internal/diag"
	"idlc/internal/ir"
	"idlc/internal/source"
)

// OutputUnit is one generated file.
type OutputUnit struct {
	Path    string
	Module  string // пусто для single-file
	Content []byte
}

// Backend generates code for one target language. Emit receives a frozen
// schema and the module to generate; module is empty in single-file layout,
// in which case the backend emits everything the config wants.
type Backend interface {
	Target() string
	Emit(schema *ir.Schema, module string, cfg *Config) ([]OutputUnit, error)
}

var (
	regMu    sync.RWMutex
	backends = map[string]Backend{}
)

// Register adds b to the registry. Registering a target twice panics.
func Register(b Backend) {
	regMu.Lock()
	defer regMu.Unlock()
	if _, dup := backends[b.Target()]; dup {
		panic("codegen: duplicate backend " + b.Target())
	}
	backends[b.Target()] = b
}

func Lookup(target string) (Backend, bool) {
	regMu.RLock()
	defer regMu.RUnlock()
	b, ok := backends[target]
	return b, ok
}

// Targets lists registered targets, sorted.
func Targets() []string {
	regMu.RLock()
	defer regMu.RUnlock()
	out := make([]string, 0, len(backends))
	for t := range backends {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Error is a generation failure with a stable diagnostic code.
type Error struct {
	Code   diag.Code
	Module string
	Msg    string
	Err    error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Code.ID())
	if e.Module != "" {
		b.WriteString(" " + e.Module)
	}
	b.WriteString(": " + e.Msg)
	if e.Err != nil {
		b.WriteString(": " + e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Diagnostic() diag.Diagnostic {
	msg := e.Msg
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Module != "" {
		msg = e.Module + ": " + msg
	}
	return diag.NewError(e.Code, source.Span{}, msg)
}

// Errorf builds an *Error for module.
func Errorf(code diag.Code, module, format string, args ...any) *Error {
	return &Error{Code: code, Module: module, Msg: fmt.Sprintf(format, args...)}
}

// Unsupported reports a type the target cannot express.
func Unsupported(module string, t *ir.TypeRef) *Error {
	return Errorf(diag.GenUnsupportedType, module, "type %s is not supported", t)
}

// Emit runs the configured backend over schema. Units are sorted by path.
func Emit(schema *ir.Schema, cfg *Config) ([]OutputUnit, error) {
	b, ok := Lookup(cfg.Target)
	if !ok {
		return nil, Errorf(diag.GenUnknownTarget, "", "unknown target %q (known: %s)",
			cfg.Target, strings.Join(Targets(), ", "))
	}
	if len(cfg.Features.Roots) > 0 && cfg.keep == nil {
		sel, diags := Select(schema, cfg.Features.Roots)
		if diag.HasErrors(diags) {
			return nil, &Error{Code: diag.SemaUnknownRoot, Msg: diags[0].Message}
		}
		cfg = cfg.WithSelection(sel)
	}

	var units []OutputUnit
	if cfg.Paths.Layout == LayoutSingleFile {
		out, err := emitOne(b, schema, "", cfg)
		if err != nil {
			return nil, err
		}
		units = out
	} else {
		for _, m := range schema.Modules {
			if !cfg.WantsModule(m) {
				continue
			}
			out, err := emitOne(b, schema, m.Path, cfg)
			if err != nil {
				return nil, err
			}
			units = append(units, out...)
		}
	}
	if err := CheckConflicts(units); err != nil {
		return nil, err
	}
	SortUnits(units)
	return units, nil
}

// EmitModule runs b for a single module, wrapping foreign errors as
// GEN6002.
func EmitModule(b Backend, schema *ir.Schema, module string, cfg *Config) ([]OutputUnit, error) {
	return emitOne(b, schema, module, cfg)
}

func emitOne(b Backend, schema *ir.Schema, module string, cfg *Config) ([]OutputUnit, error) {
	out, err := b.Emit(schema, module, cfg)
	if err != nil {
		var ge *Error
		if errors.As(err, &ge) {
			return nil, err
		}
		return nil, &Error{Code: diag.GenBackendFailed, Module: module, Msg: b.Target(), Err: err}
	}
	return out, nil
}

// WantsModule reports whether any local declaration of m is selected.
func (c *Config) WantsModule(m *ir.Module) bool {
	if c.keep == nil {
		return true
	}
	for _, d := range m.Decls {
		if c.keep[d.Ref()] {
			return true
		}
	}
	return false
}

// CheckConflicts fails with GEN6003 when two units share a path.
func CheckConflicts(units []OutputUnit) error {
	seen := make(map[string]string, len(units))
	for _, u := range units {
		if prev, dup := seen[u.Path]; dup {
			return Errorf(diag.GenOutputConflict, u.Module,
				"%s is generated by both %s and %s", u.Path, prev, u.Module)
		}
		seen[u.Path] = u.Module
	}
	return nil
}

func SortUnits(units []OutputUnit) {
	sort.Slice(units, func(i, j int) bool { return units[i].Path < units[j].Path })
}
