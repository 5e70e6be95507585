package ir

import (
	"errors"
	"slices"
	"sort"
)

// DeclID is a 1-based handle into the schema's declaration arena.
type DeclID uint32

const NoDecl DeclID = 0

// Schema is the resolved, linked set of modules. After Freeze it is
// read-only and may be shared between goroutines without locking.
type Schema struct {
	Modules       []*Module   // по пути модуля
	EmitOrder     []DeclRef   // порядок эмиссии
	CycleGroups   [][]DeclRef `msgpack:",omitempty"` // допустимые циклы
	ModuleBatches [][]string  `msgpack:",omitempty"` // волны Kahn по импортам
	ModuleCycles  []string    `msgpack:",omitempty"`
	// ModuleDeps: модуль -> модули, которые он импортирует или на которые
	// ссылаются его объявления, по возрастанию
	ModuleDeps map[string][]string `msgpack:",omitempty"`

	arena  *Arena[*Decl]
	ids    map[DeclRef]DeclID
	byPath map[string]*Module
	deps   [][]DeclID // deps[id-1]
	order  []DeclID
	frozen bool
}

func NewSchema() *Schema {
	return &Schema{
		arena:  NewArena[*Decl](64),
		ids:    make(map[DeclRef]DeclID),
		byPath: make(map[string]*Module),
	}
}

// ErrFrozen is the panic value of mutations after Freeze.
var ErrFrozen = errors.New("schema is frozen")

func (s *Schema) mustMutable() {
	if s.frozen {
		panic(ErrFrozen)
	}
}

// AddModule appends m and allocates handles for its declarations in order.
// A declaration whose ref is already taken keeps the first handle; the caller
// reports the duplicate.
func (s *Schema) AddModule(m *Module) {
	s.mustMutable()
	s.Modules = append(s.Modules, m)
	s.byPath[m.Path] = m
	for _, d := range m.Decls {
		if _, dup := s.ids[d.Ref()]; dup {
			continue
		}
		id := DeclID(s.arena.Allocate(d))
		s.ids[d.Ref()] = id
		s.deps = append(s.deps, nil)
	}
}

// AddEdge records that from references to. Self edges and duplicates are kept
// once.
func (s *Schema) AddEdge(from, to DeclID) {
	s.mustMutable()
	s.Decl(from)
	s.Decl(to)
	list := s.deps[from-1]
	if !slices.Contains(list, to) {
		s.deps[from-1] = append(list, to)
	}
}

// SetOrder stores the emission order and the permitted cycle groups.
func (s *Schema) SetOrder(order []DeclID, groups [][]DeclID) {
	s.mustMutable()
	s.order = order
	s.EmitOrder = make([]DeclRef, len(order))
	for i, id := range order {
		s.EmitOrder[i] = s.Decl(id).Ref()
	}
	s.CycleGroups = nil
	for _, g := range groups {
		refs := make([]DeclRef, len(g))
		for i, id := range g {
			refs[i] = s.Decl(id).Ref()
		}
		s.CycleGroups = append(s.CycleGroups, refs)
	}
}

func (s *Schema) SetModuleDeps(deps map[string][]string) {
	s.mustMutable()
	s.ModuleDeps = deps
}

// DependsOn lists the modules path depends on.
func (s *Schema) DependsOn(path string) []string { return s.ModuleDeps[path] }

func (s *Schema) SetModuleOrder(batches [][]string, cycles []string) {
	s.mustMutable()
	s.ModuleBatches = batches
	s.ModuleCycles = cycles
}

// Freeze sorts dependency lists and forbids further mutation.
func (s *Schema) Freeze() {
	if s.frozen {
		return
	}
	for _, d := range s.deps {
		slices.Sort(d)
	}
	s.frozen = true
}

func (s *Schema) Frozen() bool { return s.frozen }

// Len returns the number of declarations in the arena.
func (s *Schema) Len() int { return int(s.arena.Len()) }

// Decl returns the declaration for id. An id outside the arena panics with
// *IndexError.
func (s *Schema) Decl(id DeclID) *Decl {
	p := s.arena.Get(uint32(id))
	if p == nil {
		panic(&IndexError{Index: uint32(id), Len: int(s.arena.Len())})
	}
	return *p
}

func (s *Schema) Lookup(ref DeclRef) (DeclID, bool) {
	id, ok := s.ids[ref]
	return id, ok
}

// Resolve returns the declaration a resolved reference points to.
func (s *Schema) Resolve(ref DeclRef) *Decl {
	if id, ok := s.ids[ref]; ok {
		return s.Decl(id)
	}
	return nil
}

func (s *Schema) Module(path string) *Module {
	return s.byPath[path]
}

// Deps returns the declarations id directly references.
func (s *Schema) Deps(id DeclID) []DeclID {
	s.Decl(id)
	return s.deps[id-1]
}

// Order returns the emission order as handles.
func (s *Schema) Order() []DeclID { return s.order }

// Underlying follows typedef chains until a non-typedef type.
func (s *Schema) Underlying(t *TypeRef) *TypeRef {
	for range 64 {
		if t == nil || t.Kind != TypeNamed {
			return t
		}
		d := s.Resolve(t.Target)
		if d == nil || d.Kind != DeclTypedef {
			return t
		}
		t = d.Type
	}
	return t
}

// Target returns the declaration a named type resolves to after typedefs.
func (s *Schema) Target(t *TypeRef) *Decl {
	t = s.Underlying(t)
	if t == nil || t.Kind != TypeNamed {
		return nil
	}
	return s.Resolve(t.Target)
}

// Reachable returns the refs reachable from roots along reference edges,
// roots included.
func (s *Schema) Reachable(roots []DeclRef) map[DeclRef]bool {
	seen := make(map[DeclRef]bool)
	var stack []DeclID
	for _, r := range roots {
		if id, ok := s.ids[r]; ok && !seen[r] {
			seen[r] = true
			stack = append(stack, id)
		}
	}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, dep := range s.deps[id-1] {
			ref := s.Decl(dep).Ref()
			if !seen[ref] {
				seen[ref] = true
				stack = append(stack, dep)
			}
		}
	}
	return seen
}

// Slice returns a frozen, span-free sub-schema holding module's
// declarations and the foreign declarations they reference. Foreign structs,
// unions and services are copied without members; typedefs, consts and enums
// are copied whole and followed.
func (s *Schema) Slice(module string) *Schema {
	src := s.byPath[module]
	out := NewSchema()
	if src == nil {
		out.Freeze()
		return out
	}
	local := src.Clone()
	local.clearSpans()

	foreign := make(map[DeclRef]*Decl)
	var queue []DeclRef
	want := func(ref DeclRef) {
		if ref.IsZero() || ref.Module == module {
			return
		}
		if _, ok := foreign[ref]; ok {
			return
		}
		d := s.Resolve(ref)
		if d == nil {
			return
		}
		var c *Decl
		switch d.Kind {
		case DeclStruct, DeclUnion, DeclService:
			c = &Decl{Kind: d.Kind, Name: d.Name, GenName: d.GenName, Module: d.Module,
				Scope: d.Scope, Exception: d.Exception, Synthetic: d.Synthetic}
		default:
			c = d.Clone()
			c.clearSpans()
		}
		foreign[ref] = c
		queue = append(queue, ref)
	}
	collect := func(d *Decl) {
		d.TypeRefs(func(t *TypeRef) {
			t.Walk(func(t *TypeRef) { want(t.Target) })
		})
		d.ConstValues(func(c *ConstValue) {
			c.Walk(func(c *ConstValue) { want(c.Target) })
		})
	}
	for _, d := range local.Decls {
		collect(d)
	}
	for len(queue) > 0 {
		ref := queue[0]
		queue = queue[1:]
		collect(foreign[ref])
	}

	shells := make(map[string]*Module)
	for _, ref := range sortedRefs(foreign) {
		m := shells[ref.Module]
		if m == nil {
			orig := s.byPath[ref.Module]
			if orig == nil {
				continue
			}
			m = orig.shell()
			shells[ref.Module] = m
		}
		m.Decls = append(m.Decls, foreign[ref])
	}
	// модули сортируются по пути; исходный порядок объявлений сохраняется
	mods := []*Module{local}
	for _, m := range shells {
		orig := s.byPath[m.Path]
		sort.SliceStable(m.Decls, func(i, j int) bool {
			return declIndex(orig, m.Decls[i].Name) < declIndex(orig, m.Decls[j].Name)
		})
		mods = append(mods, m)
	}
	sort.Slice(mods, func(i, j int) bool { return mods[i].Path < mods[j].Path })
	for _, m := range mods {
		out.AddModule(m)
	}

	var order []DeclID
	for _, ref := range s.EmitOrder {
		if ref.Module == module {
			if id, ok := out.Lookup(ref); ok {
				order = append(order, id)
			}
		}
	}
	var groups [][]DeclID
	for _, g := range s.CycleGroups {
		var ids []DeclID
		for _, ref := range g {
			if ref.Module != module {
				continue
			}
			if id, ok := out.Lookup(ref); ok {
				ids = append(ids, id)
			}
		}
		if len(ids) > 0 {
			groups = append(groups, ids)
		}
	}
	out.SetOrder(order, groups)
	for _, m := range mods {
		for _, d := range m.Decls {
			from, _ := out.Lookup(d.Ref())
			if orig, ok := s.ids[d.Ref()]; ok {
				for _, dep := range s.deps[orig-1] {
					if to, ok := out.Lookup(s.Decl(dep).Ref()); ok {
						out.AddEdge(from, to)
					}
				}
			}
		}
	}
	out.Freeze()
	return out
}

func declIndex(m *Module, name string) int {
	for i, d := range m.Decls {
		if d.Name == name {
			return i
		}
	}
	return len(m.Decls)
}

func sortedRefs(m map[DeclRef]*Decl) []DeclRef {
	out := make([]DeclRef, 0, len(m))
	for r := range m {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}
