package element

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/cpscan/cpscan/internal/log"
	"github.com/cpscan/cpscan/internal/nestedarchive"
	"github.com/cpscan/cpscan/internal/pathutil"
	"github.com/cpscan/cpscan/internal/singleton"
	"github.com/cpscan/cpscan/internal/workqueue"
	"github.com/cpscan/cpscan/pkg/scanspec"
)

// OpenerUnit is the Work Unit the opener phase's work queue operates
// on (spec.md §3 "Opener Unit").
type OpenerUnit struct {
	RawPath    string
	ParentID   string
	OrderIndex int
}

// Registry is the Singleton Map of canonical identity to Element,
// plus the shared collaborators every open() needs: the Nested
// Archive Handler and the scan spec's module-path accumulator
// (spec.md §4.2, §4.3).
type Registry struct {
	elements singleton.Map[string, *Element]
	nested   *nestedarchive.Handler
	spec     *scanspec.ScanSpec

	mu                   sync.RWMutex
	classLoaderByRawPath map[string][]string
}

// NewRegistry creates a Registry backed by nested for archive
// extraction and spec for module-path accumulation and filters.
func NewRegistry(spec *scanspec.ScanSpec, nested *nestedarchive.Handler) *Registry {
	return &Registry{nested: nested, spec: spec, classLoaderByRawPath: make(map[string][]string)}
}

// SetClassLoaderContext installs the raw-path-to-class-loader-names
// mapping reported by the classpath discovery collaborator
// (spec.md §6 "Classpath discovery collaborator").
func (r *Registry) SetClassLoaderContext(byRawPath map[string][]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.classLoaderByRawPath = byRawPath
}

// ClassLoaderContextFor returns the class-loader names recorded for
// rawPath, implementing the original's rawClasspathEltPathToClassLoaders
// lookup (SPEC_FULL.md §4).
func (r *Registry) ClassLoaderContextFor(rawPath string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.classLoaderByRawPath[rawPath]
}

// singletonKey builds the Singleton Map key for a resolved raw path:
// the canonicalized filesystem (or remote) base plus its full
// "!"-separated inner-archive chain. Two raw paths naming different
// nested entries under the same outer archive -- or the outer archive
// itself -- must never collapse onto one key (spec.md §3 "exactly one
// Classpath Element per canonical identity", §8 "Singleton identity").
func singletonKey(base string, inner []string) string {
	if len(inner) == 0 {
		return base
	}
	return base + "!" + strings.Join(inner, "!")
}

// Lookup resolves rawPath through the same scheme-stripping,
// canonicalization, and inner-chain keying Open uses, and returns the
// Element currently registered under the resulting identity, if any.
// Used by internal/orderer to turn a Children ChildRef back into an
// Element pointer once the opener phase has drained.
func (r *Registry) Lookup(rawPath string) (*Element, bool) {
	resolved, err := pathutil.Resolve(rawPath)
	if err != nil {
		return nil, false
	}
	base := resolved.Base
	if resolved.Scheme == pathutil.SchemeFile {
		canonical, err := pathutil.Canonicalize(resolved.Base)
		if err != nil {
			return nil, false
		}
		base = canonical
	}
	return r.elements.Peek(singletonKey(base, resolved.Inner))
}

// Range calls fn for every Element currently registered.
func (r *Registry) Range(fn func(el *Element) bool) {
	r.elements.Range(func(_ string, el *Element) bool {
		return fn(el)
	})
}

// Open implements spec.md §4.3: resolve, canonicalize, classify, and
// (for archives) parse the manifest and enqueue cross-referenced
// children. It is a workqueue.Processor[OpenerUnit], wired directly as
// the opener phase's processor.
func (r *Registry) Open(ctx context.Context, unit OpenerUnit, qh *workqueue.Handle[OpenerUnit]) error {
	logger := log.ContextLogger(ctx)

	resolved, err := pathutil.Resolve(unit.RawPath)
	if err != nil {
		logger.Warn("unable to resolve classpath entry", "rawPath", unit.RawPath, "error", err)
		return nil
	}

	if resolved.Scheme == pathutil.SchemeRemote {
		key := singletonKey(resolved.Base, resolved.Inner)
		el, err := r.elements.Get(key, func(k string) (*Element, error) {
			return &Element{
				Kind:        KindArchive,
				CanonicalID: k,
				RawPath:     unit.RawPath,
				ParentID:    unit.ParentID,
				OrderIndex:  unit.OrderIndex,
			}, nil
		})
		if err == nil {
			el.updateOrderIndex(unit.OrderIndex)
		}
		return nil
	}

	canonicalBase, err := pathutil.Canonicalize(resolved.Base)
	if err != nil {
		logger.Warn("unable to canonicalize classpath entry", "rawPath", unit.RawPath, "error", err)
		return nil
	}
	key := singletonKey(canonicalBase, resolved.Inner)

	el, err := r.elements.Get(key, func(string) (*Element, error) {
		return r.build(ctx, canonicalBase, resolved, unit, qh), nil
	})
	if err != nil {
		logger.Warn("unable to open classpath entry", "rawPath", unit.RawPath, "error", err)
		return nil
	}
	el.updateOrderIndex(unit.OrderIndex)
	return nil
}

// build classifies and opens one element. canonicalBase is the
// canonicalized filesystem path of the outer entry -- the Nested
// Archive Handler resolves CanonicalID further (to "<outerID>!<seg>...")
// once resolved.Inner is walked, independently of the Singleton Map key
// used to deduplicate this build (see singletonKey). Every failure
// branch sets Skip rather than returning an error, per spec.md §4.3
// step 7: these are recoverable per-element failures, not Singleton
// Map construction failures.
func (r *Registry) build(ctx context.Context, canonicalBase string, resolved pathutil.Resolved, unit OpenerUnit, qh *workqueue.Handle[OpenerUnit]) *Element {
	el := &Element{
		CanonicalID:        canonicalBase,
		RawPath:            unit.RawPath,
		ParentID:           unit.ParentID,
		OrderIndex:         unit.OrderIndex,
		ClassLoaderContext: r.ClassLoaderContextFor(unit.RawPath),
	}

	info, err := os.Stat(canonicalBase)
	if err != nil {
		el.Skip = true
		el.SkipReason = fmt.Errorf("classpath entry does not exist or is unreadable: %w", err)
		return el
	}

	hasMarker := len(resolved.Inner) > 0 || nestedarchive.IsArchiveName(canonicalBase)

	switch {
	case info.Mode().IsRegular():
		el.Kind = KindArchive
		if err := r.openArchive(ctx, el, resolved, qh); err != nil {
			el.Skip = true
			el.SkipReason = err
		}
	case info.IsDir() && !hasMarker:
		el.Kind = KindDirectory
		el.dirRoot = canonicalBase
	default:
		el.Skip = true
		el.SkipReason = fmt.Errorf("classpath entry %q is neither a regular file nor a directory", canonicalBase)
	}

	return el
}
