package ast

// Walk calls fn for every declaration of f in source order, descending into
// nested proto messages before their following siblings.
func Walk(f *File, fn func(d Decl, parents []string)) {
	var visit func(ds []Decl, parents []string)
	visit = func(ds []Decl, parents []string) {
		for _, d := range ds {
			fn(d, parents)
			if m, ok := d.(*ProtoMessage); ok && len(m.Nested) > 0 {
				visit(m.Nested, append(parents[:len(parents):len(parents)], m.Name.Name))
			}
		}
	}
	visit(f.Decls, nil)
}
