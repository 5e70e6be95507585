package codegen

import (
	"fmt"
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"

	"idlc/internal/diag"
	"idlc/internal/ir"
	"idlc/internal/source"
)

// Selection is the set of declarations to generate when roots are given.
type Selection struct {
	keep map[ir.DeclRef]bool
}

func (s *Selection) Len() int { return len(s.keep) }

func (s *Selection) Has(ref ir.DeclRef) bool { return s.keep[ref] }

// Refs lists the selected declarations sorted by module, then name.
func (s *Selection) Refs() []ir.DeclRef {
	out := make([]ir.DeclRef, 0, len(s.keep))
	for ref := range s.keep {
		out = append(out, ref)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Module != out[j].Module {
			return out[i].Module < out[j].Module
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// ParseRoot splits "module#Name".
func ParseRoot(root string) (ir.DeclRef, error) {
	mod, name, ok := strings.Cut(root, "#")
	if !ok || mod == "" || name == "" {
		return ir.DeclRef{}, fmt.Errorf("root %q: want module#Name", root)
	}
	return ir.DeclRef{Module: mod, Name: name}, nil
}

// Select computes the declarations reachable from roots. Unknown roots are
// reported as SEM3025 with a spelling suggestion when one is close.
func Select(schema *ir.Schema, roots []string) (*Selection, []diag.Diagnostic) {
	var diags []diag.Diagnostic
	var refs []ir.DeclRef
	for _, r := range roots {
		ref, err := ParseRoot(r)
		if err != nil {
			diags = append(diags, diag.NewError(diag.SemaUnknownRoot, source.Span{}, err.Error()))
			continue
		}
		if _, ok := schema.Lookup(ref); !ok {
			d := diag.NewError(diag.SemaUnknownRoot, source.Span{},
				fmt.Sprintf("root %s does not name a declaration", r))
			if s := suggestRoot(schema, ref); s != "" {
				d = d.WithNote(source.Span{}, fmt.Sprintf("did you mean %s?", s))
			}
			diags = append(diags, d)
			continue
		}
		refs = append(refs, ref)
	}
	return &Selection{keep: schema.Reachable(refs)}, diags
}

func suggestRoot(schema *ir.Schema, ref ir.DeclRef) string {
	best, bestDist := "", 3
	for _, m := range schema.Modules {
		for _, d := range m.Decls {
			cand := d.Ref().String()
			if dist := levenshtein.ComputeDistance(ref.String(), cand); dist < bestDist {
				best, bestDist = cand, dist
			}
		}
	}
	return best
}
