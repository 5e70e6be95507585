package dag

import (
	"container/heap"
	"slices"
)

// StronglyConnected returns the strongly connected components of a graph of
// n nodes (Tarjan). succ(v) lists the successors of v. Components come out
// in reverse topological order: a component precedes every component that
// has an edge into it. Members of a component are sorted ascending.
func StronglyConnected(n int, succ func(v int) []int) [][]int {
	const unvisited = -1
	index := make([]int, n)
	low := make([]int, n)
	onStack := make([]bool, n)
	for i := range index {
		index[i] = unvisited
	}
	var (
		stack []int
		comps [][]int
		next  int
	)

	// итеративный обход, чтобы длинные цепочки typedef не переполняли стек
	type frame struct {
		v    int
		succ []int
		pos  int
	}
	for root := range n {
		if index[root] != unvisited {
			continue
		}
		work := []frame{{v: root, succ: succ(root)}}
		index[root], low[root] = next, next
		next++
		stack = append(stack, root)
		onStack[root] = true

		for len(work) > 0 {
			top := &work[len(work)-1]
			if top.pos < len(top.succ) {
				w := top.succ[top.pos]
				top.pos++
				switch {
				case index[w] == unvisited:
					index[w], low[w] = next, next
					next++
					stack = append(stack, w)
					onStack[w] = true
					work = append(work, frame{v: w, succ: succ(w)})
				case onStack[w]:
					low[top.v] = min(low[top.v], index[w])
				}
				continue
			}
			v := top.v
			work = work[:len(work)-1]
			if len(work) > 0 {
				parent := work[len(work)-1].v
				low[parent] = min(low[parent], low[v])
			}
			if low[v] != index[v] {
				continue
			}
			var comp []int
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				comp = append(comp, w)
				if w == v {
					break
				}
			}
			slices.Sort(comp)
			comps = append(comps, comp)
		}
	}
	return comps
}

// DependencyOrder linearises the condensation of the graph so that every
// component comes after all components it has edges to. Among ready
// components the one whose first member is smallest by less goes first.
// less must order members within a component the same way.
func DependencyOrder(n int, succ func(v int) []int, less func(a, b int) bool) [][]int {
	comps := StronglyConnected(n, succ)
	for _, c := range comps {
		slices.SortFunc(c, func(a, b int) int {
			switch {
			case less(a, b):
				return -1
			case less(b, a):
				return 1
			}
			return 0
		})
	}
	compOf := make([]int, n)
	for ci, c := range comps {
		for _, v := range c {
			compOf[v] = ci
		}
	}
	// pending[c] — число ещё не выпущенных компонент, от которых зависит c
	pending := make([]int, len(comps))
	dependents := make([][]int, len(comps))
	for ci, c := range comps {
		seen := make(map[int]struct{})
		for _, v := range c {
			for _, w := range succ(v) {
				cw := compOf[w]
				if cw == ci {
					continue
				}
				if _, dup := seen[cw]; dup {
					continue
				}
				seen[cw] = struct{}{}
				pending[ci]++
				dependents[cw] = append(dependents[cw], ci)
			}
		}
	}

	ready := &compHeap{comps: comps, less: less}
	for ci := range comps {
		if pending[ci] == 0 {
			heap.Push(ready, ci)
		}
	}
	out := make([][]int, 0, len(comps))
	for ready.Len() > 0 {
		ci := heap.Pop(ready).(int)
		out = append(out, comps[ci])
		for _, d := range dependents[ci] {
			pending[d]--
			if pending[d] == 0 {
				heap.Push(ready, d)
			}
		}
	}
	return out
}

type compHeap struct {
	items []int
	comps [][]int
	less  func(a, b int) bool
}

func (h *compHeap) Len() int { return len(h.items) }
func (h *compHeap) Less(i, j int) bool {
	return h.less(h.comps[h.items[i]][0], h.comps[h.items[j]][0])
}
func (h *compHeap) Swap(i, j int) { h.items[i], h.items[j] = h.items[j], h.items[i] }
func (h *compHeap) Push(x any)    { h.items = append(h.items, x.(int)) }
func (h *compHeap) Pop() any {
	last := h.items[len(h.items)-1]
	h.items = h.items[:len(h.items)-1]
	return last
}
