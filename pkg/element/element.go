// Package element implements the Classpath Element: the polymorphic
// handle over one scanned root (spec.md §3 "Classpath Element", §4.3,
// §4.6, §4.7, §9 "Polymorphic elements"). It is a tagged variant over
// {Directory, Archive, Module} sharing one capability set rather than
// an inheritance hierarchy, grounded on the teacher pack's own
// directory-vs-archive polymorphism in bindings/go/ctf/filesystem_ctf.go
// (FileSystemCTF wraps either a real directory or a tar-backed virtual
// one behind the same interface).
package element

import (
	"io"
	"sync"
	"time"
)

// Kind identifies which backend an Element wraps.
type Kind int

const (
	KindDirectory Kind = iota
	KindArchive
	KindModule
)

func (k Kind) String() string {
	switch k {
	case KindDirectory:
		return "directory"
	case KindArchive:
		return "archive"
	case KindModule:
		return "module"
	default:
		return "unknown"
	}
}

// Resource is a handle to a single addressable artifact inside a
// Classpath Element (spec.md §3 "Resource").
type Resource struct {
	// LogicalPath is relative to the owning element's root, using
	// forward slashes.
	LogicalPath string
	ModTime     time.Time
	IsClassfile bool
	// Open returns a fresh byte stream for the resource. Never nil.
	Open func() (io.ReadCloser, error)
}

// Element is a Classpath Element: one root location searched during a
// scan. Fields are mutated only by the single worker that owns the
// element during open() and scanPaths() (spec.md §3 "Lifecycles");
// everything else reads it after the relevant phase boundary.
type Element struct {
	Kind        Kind
	CanonicalID string // identity: canonical path, or module name
	RawPath     string // the raw classpath string that first created this element

	Skip       bool
	SkipReason error

	ParentID   string // canonical ID of the parent element, "" if toplevel
	OrderIndex int    // orderWithinParentClasspathElement

	// ClassLoaderContext is a lookup-only, weak reference to the
	// class-loader names reported by the discovery collaborator for
	// RawPath (spec.md §3 "Ownership": elements do not own this).
	ClassLoaderContext []string

	// Children records manifest Class-Path cross-references
	// discovered during open(), by raw path and order index, not yet
	// resolved to Element pointers (resolution happens once every
	// opener unit has drained; see internal/orderer).
	Children []ChildRef

	NestedRootPrefixes []string

	// Resources is the full inventory populated by ScanPaths.
	Resources []*Resource
	// WhitelistedClassfileResources and WhitelistedResources are the
	// include/exclude-filtered subsets; the former is further narrowed
	// by MaskClassfiles.
	WhitelistedClassfileResources []*Resource
	WhitelistedResources          []*Resource
	FileModTimes                  map[string]time.Time

	resourcesByPath map[string]*Resource

	// Backend-specific state, set during open() by whichever of
	// directory.go / archive.go / module.go classified this element.
	dirRoot string
	archive *archiveBackend
	module  *ModuleRef

	mu sync.Mutex
}

// ChildRef is an unresolved manifest cross-reference (spec.md §4.3
// step 5).
type ChildRef struct {
	RawPath    string
	OrderIndex int
}

// String returns the canonical identity, matching spec.md scenario 1's
// "toString matches canonical path" expectation.
func (e *Element) String() string {
	return e.CanonicalID
}

// updateOrderIndex lowers OrderIndex to newIndex when newIndex is
// smaller than the currently recorded value. Several raw classpath
// entries can alias the same canonical identity (spec.md §8 "Singleton
// identity"); whichever alias's opener unit wins the build race must
// not decide the element's position in the final order, so every alias
// pulls OrderIndex down to the minimum it has observed, deterministic
// regardless of build order (spec.md §8 "Order determinism").
func (e *Element) updateOrderIndex(newIndex int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if newIndex < e.OrderIndex {
		e.OrderIndex = newIndex
	}
}

// GetResource looks up a resource by logical path in the full
// (pre-mask) inventory, used by the Upward-Closure Scheduler to probe
// elements for externally referenced types (spec.md §4.9 step 3).
func (e *Element) GetResource(logicalPath string) (*Resource, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	r, ok := e.resourcesByPath[logicalPath]
	return r, ok
}

// indexResources rebuilds the logical-path lookup index. Called once
// by ScanPaths after populating Resources.
func (e *Element) indexResources() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.resourcesByPath = make(map[string]*Resource, len(e.Resources))
	for _, r := range e.Resources {
		e.resourcesByPath[r.LogicalPath] = r
	}
}

// SeenPaths is the shared "already-seen logical paths" set the Masker
// threads through elements in final order (spec.md §4.7).
type SeenPaths struct {
	mu   sync.Mutex
	seen map[string]bool
}

// NewSeenPaths returns an empty SeenPaths set.
func NewSeenPaths() *SeenPaths {
	return &SeenPaths{seen: make(map[string]bool)}
}

func (s *SeenPaths) checkAndAdd(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seen[path] {
		return false
	}
	s.seen[path] = true
	return true
}

// MaskClassfiles removes from e.WhitelistedClassfileResources every
// resource whose logical path is already in seen, then adds its
// remaining paths to seen (spec.md §4.7). Non-classfile resources are
// never touched, matching the "Masker neutrality on non-classfiles"
// testable property (spec.md §8).
func (e *Element) MaskClassfiles(seen *SeenPaths) {
	kept := make([]*Resource, 0, len(e.WhitelistedClassfileResources))
	for _, r := range e.WhitelistedClassfileResources {
		if seen.checkAndAdd(r.LogicalPath) {
			kept = append(kept, r)
		}
	}
	e.WhitelistedClassfileResources = kept
}
