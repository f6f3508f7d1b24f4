// Package query is a thin convenience layer over pkg/classinfo's
// Linked Type Graph. It is explicitly out of scope for the core scan
// engine (spec.md §1 "the public query API returned to callers"): none
// of this package's semantics feed back into scanning, ordering,
// masking, or linking -- it only reads a *classinfo.Graph a completed
// scan already produced.
package query

import "github.com/cpscan/cpscan/pkg/classinfo"

// Result is a read-only query handle over one completed Graph.
type Result struct {
	graph *classinfo.Graph
}

// New wraps graph for querying. graph must not be mutated concurrently
// with query calls; it is immutable once a scan returns it.
func New(graph *classinfo.Graph) *Result {
	return &Result{graph: graph}
}

// ClassInfo looks up a single class, interface, or annotation by its
// dotted name.
func (r *Result) ClassInfo(name string) (*classinfo.ClassInfo, bool) {
	ci, ok := r.graph.Classes[name]
	return ci, ok
}

// SubclassesOf returns every concrete (non-placeholder) class that
// transitively extends name, not including name itself.
func (r *Result) SubclassesOf(name string) []*classinfo.ClassInfo {
	root, ok := r.graph.Classes[name]
	if !ok {
		return nil
	}
	var out []*classinfo.ClassInfo
	seen := make(map[string]bool)
	var walk func(ci *classinfo.ClassInfo)
	walk = func(ci *classinfo.ClassInfo) {
		for _, sub := range ci.Subclasses {
			if seen[sub.Name] {
				continue
			}
			seen[sub.Name] = true
			out = append(out, sub)
			walk(sub)
		}
	}
	walk(root)
	return out
}

// ImplementationsOf returns every concrete class implementing the
// named interface, directly or via a transitively-extended superclass
// that itself implements it.
func (r *Result) ImplementationsOf(interfaceName string) []*classinfo.ClassInfo {
	iface, ok := r.graph.Classes[interfaceName]
	if !ok {
		return nil
	}
	seen := make(map[string]bool)
	var out []*classinfo.ClassInfo
	var collect func(ci *classinfo.ClassInfo)
	collect = func(ci *classinfo.ClassInfo) {
		if seen[ci.Name] {
			return
		}
		seen[ci.Name] = true
		out = append(out, ci)
		for _, sub := range ci.Subclasses {
			collect(sub)
		}
	}
	for _, impl := range iface.ImplementingClasses {
		collect(impl)
	}
	return out
}

// AnnotatedWith returns every class, field owner, or method owner
// bearing the named annotation directly (not inherited).
func (r *Result) AnnotatedWith(annotationName string) []*classinfo.ClassInfo {
	var out []*classinfo.ClassInfo
	for _, ci := range r.graph.Classes {
		annos := append([]*classinfo.ClassInfo(nil), ci.Annotations...)
		for _, f := range ci.Fields {
			annos = append(annos, f.Annotations...)
		}
		for _, m := range ci.Methods {
			annos = append(annos, m.Annotations...)
		}
		for _, a := range annos {
			if a.Name == annotationName {
				out = append(out, ci)
				break
			}
		}
	}
	return out
}

// PackageInfo looks up a package by its dotted name.
func (r *Result) PackageInfo(name string) (*classinfo.PackageInfo, bool) {
	pkg, ok := r.graph.Packages[name]
	return pkg, ok
}

// ModuleInfo looks up a module by name.
func (r *Result) ModuleInfo(name string) (*classinfo.ModuleInfo, bool) {
	mod, ok := r.graph.Modules[name]
	return mod, ok
}

// AllClasses returns every ClassInfo in the graph, including
// placeholders, in no particular order.
func (r *Result) AllClasses() []*classinfo.ClassInfo {
	out := make([]*classinfo.ClassInfo, 0, len(r.graph.Classes))
	for _, ci := range r.graph.Classes {
		out = append(out, ci)
	}
	return out
}
