package testkit

import (
	"fmt"

	"fortio.org/safecast"

	"idlc/internal/ast"
	"idlc/internal/source"
)

// CheckSpanInvariants runs a minimal set of span invariants on a parsed file:
// 1) file.Span is non-empty and within file content bounds
// 2) every declaration span (nested ones included) is non-empty and fully
// contained in file.Span
// 3) nested declarations lie inside their parent
func CheckSpanInvariants(f *ast.File, sf *source.File) error {
	if f == nil || sf == nil {
		return fmt.Errorf("nil ast or source file")
	}

	if f.Span.End <= f.Span.Start {
		return fmt.Errorf("file span is empty: %v", f.Span)
	}
	if f.Span.File != sf.ID {
		return fmt.Errorf("file span points to different file id: got=%d want=%d", f.Span.File, sf.ID)
	}
	lenContent, err := safecast.Conv[uint32](len(sf.Content))
	if err != nil {
		return fmt.Errorf("len content overflow: %w", err)
	}
	if f.Span.End > lenContent {
		return fmt.Errorf("file span end beyond content: %d > %d", f.Span.End, lenContent)
	}

	var firstErr error
	check := func(sp, outer source.Span, what string) {
		if firstErr != nil {
			return
		}
		switch {
		case sp.End <= sp.Start:
			firstErr = fmt.Errorf("empty %s span: %v", what, sp)
		case sp.File != sf.ID:
			firstErr = fmt.Errorf("%s span file mismatch: got=%d want=%d", what, sp.File, sf.ID)
		case sp.Start < outer.Start || sp.End > outer.End:
			firstErr = fmt.Errorf("%s span %v is outside %v", what, sp, outer)
		}
	}

	ast.Walk(f, func(d ast.Decl, _ []string) {
		sp := d.DeclSpan()
		check(sp, f.Span, "declaration "+d.DeclName().Name)
		check(d.DeclName().Span, sp, "name of "+d.DeclName().Name)
		switch d := d.(type) {
		case *ast.ThriftStruct:
			for _, fld := range d.Fields {
				check(fld.Span, sp, "field "+fld.Name.Name)
			}
		case *ast.ProtoMessage:
			for _, fld := range d.Fields {
				check(fld.Span, sp, "field "+fld.Name.Name)
			}
			for _, o := range d.Oneofs {
				check(o.Span, sp, "oneof "+o.Name.Name)
			}
			for _, n := range d.Nested {
				check(n.DeclSpan(), sp, "nested "+n.DeclName().Name)
			}
		case *ast.ThriftService:
			for _, m := range d.Methods {
				check(m.Span, sp, "method "+m.Name.Name)
			}
		case *ast.ProtoService:
			for _, m := range d.Methods {
				check(m.Span, sp, "rpc "+m.Name.Name)
			}
		}
	})
	return firstErr
}
