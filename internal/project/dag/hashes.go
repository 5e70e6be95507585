package dag

import (
	"idlc/internal/project"
)

// ComputeModuleHashes fills Meta.ModuleHash of every present slot:
// H(content || dep hashes...) in edge order. Modules of one import cycle
// share a hash built from all member contents.
func ComputeModuleHashes(g Graph, slots []ModuleSlot) {
	succ := func(v int) []int {
		out := make([]int, 0, len(g.Edges[v]))
		for _, to := range g.Edges[v] {
			if g.Present[int(to)] {
				out = append(out, int(to))
			}
		}
		return out
	}
	comps := StronglyConnected(len(g.Edges), succ)
	compOf := make([]int, len(g.Edges))
	for ci, c := range comps {
		for _, v := range c {
			compOf[v] = ci
		}
	}
	// компоненты идут в обратном топологическом порядке: зависимости раньше
	for ci, c := range comps {
		if !slots[c[0]].Present {
			continue
		}
		var content project.Digest
		if len(c) == 1 {
			content = slots[c[0]].Meta.ContentHash
		} else {
			members := make([]project.Digest, 0, len(c))
			for _, v := range c {
				members = append(members, slots[v].Meta.ContentHash)
			}
			content = project.Combine(project.Digest{}, members...)
		}
		var deps []project.Digest
		for _, v := range c {
			for _, w := range succ(v) {
				if compOf[w] != ci {
					deps = append(deps, slots[w].Meta.ModuleHash)
				}
			}
		}
		h := project.Combine(content, deps...)
		for _, v := range c {
			slots[v].Meta.ModuleHash = h
		}
	}
}
