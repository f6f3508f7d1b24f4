// Package orderer builds the scan's final element order (spec.md §4.4
// "Classpath Ordering", §9 "Cyclic element graph").
//
// Grounded on the teacher pack's bindings/go/dag package for the
// overall shape (build a graph of nodes and edges, then flatten with a
// depth-first traversal), but deliberately not reusing its algorithm:
// dag.Graph.AddEdge actively rejects cycles via a HasCycle check, while
// spec.md §8 "Cycle safety" and scenario 6 require the orderer to
// *tolerate* cycles (archives whose manifests reference each other)
// and still terminate, visiting every element exactly once. The
// traversal here is a plain visited-set DFS over Element.Children,
// resolved lazily through the Registry rather than pre-built into an
// edge list, which is the only shape that works once children are
// known only as unresolved raw paths (see pkg/element.ChildRef).
package orderer

import (
	"sort"

	"github.com/cpscan/cpscan/pkg/element"
)

// Order returns the final element order given every toplevel element
// (in any order; Order sorts them stably by OrderIndex) and a Registry
// populated by a completed opener phase (spec.md §4.4).
func Order(registry *element.Registry, toplevel []*element.Element) []*element.Element {
	sortByOrderIndex(toplevel)

	visited := make(map[string]bool)
	var order []*element.Element

	var visit func(el *element.Element)
	visit = func(el *element.Element) {
		if el == nil || visited[el.CanonicalID] {
			return
		}
		visited[el.CanonicalID] = true
		if el.Skip {
			return
		}
		order = append(order, el)

		for _, child := range resolveChildren(registry, el) {
			visit(child)
		}
	}

	for _, el := range toplevel {
		visit(el)
	}

	return order
}

// resolveChildren turns el's unresolved Children references into the
// shared singleton Element instances, sorted by the order index
// recorded at the reference site. The order index is a property of
// the reference, not of the referenced Element itself, since a
// singleton element can in principle be cross-referenced from more
// than one parent; the Element pointer returned is always the single
// shared instance so every phase after ordering mutates and observes
// the same object (spec.md §3 "Invariant: exactly one Classpath
// Element exists per canonical identity").
func resolveChildren(registry *element.Registry, el *element.Element) []*element.Element {
	type ref struct {
		el  *element.Element
		idx int
	}
	refs := make([]ref, 0, len(el.Children))
	for _, c := range el.Children {
		child, ok := registry.Lookup(c.RawPath)
		if !ok {
			continue
		}
		refs = append(refs, ref{el: child, idx: c.OrderIndex})
	}
	sort.SliceStable(refs, func(i, j int) bool { return refs[i].idx < refs[j].idx })

	children := make([]*element.Element, len(refs))
	for i, r := range refs {
		children[i] = r.el
	}
	return children
}

func sortByOrderIndex(elements []*element.Element) {
	sort.SliceStable(elements, func(i, j int) bool {
		return elements[i].OrderIndex < elements[j].OrderIndex
	})
}
