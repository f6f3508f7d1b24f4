// Package upward implements the Upward-Closure Scheduler (spec.md
// §4.9): given a just-parsed Unlinked Record, find and schedule any
// referenced type that lies outside the include filter but is present
// somewhere on the classpath, so it gets a classfile-derived record
// too.
//
// Grounded on the teacher pack's
// bindings/go/dag/sync.GraphDiscoverer.Discover, which walks a
// frontier concurrently and uses a sync.Map-backed "already visited"
// set to guarantee each vertex is expanded exactly once; here the
// frontier is referenced type names instead of graph vertices, and
// "expanding" a name means probing already-opened elements for its
// classfile instead of recursing into a discoverer callback.
package upward

import (
	"strings"
	"sync"

	"github.com/cpscan/cpscan/internal/log"
	"github.com/cpscan/cpscan/internal/workqueue"
	"github.com/cpscan/cpscan/pkg/classfile"
	"github.com/cpscan/cpscan/pkg/element"
)

// rootType is the well-known root of the JVM type hierarchy, whose
// absence is never logged (spec.md §4.9 step 4 "suppressing the
// well-known root type java.lang.Object").
const rootType = "java.lang.Object"

// ScannedNames is the run-wide set of type names already scheduled
// for classfile scanning, guaranteeing each is enqueued at most once
// (spec.md §4.9 step 1, "Upward closure idempotence" in §8).
type ScannedNames struct {
	mu   sync.Mutex
	seen map[string]bool
}

// NewScannedNames returns an empty set.
func NewScannedNames() *ScannedNames {
	return &ScannedNames{seen: make(map[string]bool)}
}

// AddIfAbsent adds name if not already present and reports whether it
// was newly added.
func (s *ScannedNames) AddIfAbsent(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seen[name] {
		return false
	}
	s.seen[name] = true
	return true
}

// PreSeed marks every name in names as already scheduled, matching
// spec.md §4.9's "before the scan phase starts, scannedClassNames is
// populated with every included classfile's type name."
func (s *ScannedNames) PreSeed(names []string) {
	for _, n := range names {
		s.AddIfAbsent(n)
	}
}

// Scheduler runs the upward closure for one scan.
type Scheduler struct {
	finalOrder []*element.Element
	scanned    *ScannedNames
}

// New returns a Scheduler probing finalOrder's elements, sharing scanned
// with the classfile-scan phase's pre-seeded set.
func New(finalOrder []*element.Element, scanned *ScannedNames) *Scheduler {
	return &Scheduler{finalOrder: finalOrder, scanned: scanned}
}

// Schedule walks record's referenced type names and enqueues a
// Classfile Unit on qh for each one found on the classpath that has
// not already been scheduled (spec.md §4.9).
func (s *Scheduler) Schedule(record *classfile.UnlinkedRecord, owner *element.Element, qh *workqueue.Handle[element.ClassfileUnit], logNode *log.Node) {
	for _, name := range record.ReferencedTypeNames() {
		if !s.scanned.AddIfAbsent(name) {
			continue
		}

		resourcePath := dottedToResourcePath(name)
		foundEl, res, ok := s.probe(owner, resourcePath)
		if !ok {
			if name != rootType {
				logNode.Warn("upward-closure reference not found on classpath", "type", name)
			}
			continue
		}

		qh.AddWorkUnits(element.ClassfileUnit{Element: foundEl, Resource: res, IsExternal: true})
	}
}

// probe checks owner first, then every other element in final order,
// per spec.md §4.9 step 3.
func (s *Scheduler) probe(owner *element.Element, resourcePath string) (*element.Element, *element.Resource, bool) {
	if res, ok := owner.GetResource(resourcePath); ok {
		return owner, res, true
	}
	for _, el := range s.finalOrder {
		if el == owner {
			continue
		}
		if res, ok := el.GetResource(resourcePath); ok {
			return el, res, true
		}
	}
	return nil, nil, false
}

func dottedToResourcePath(name string) string {
	return strings.ReplaceAll(name, ".", "/") + ".class"
}
