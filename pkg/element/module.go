package element

import (
	"archive/zip"
	"fmt"
	"os"
	"strings"

	"github.com/cpscan/cpscan/pkg/scanspec"
)

// ModuleRef is a pre-resolved module reference reported by the
// classpath discovery collaborator (spec.md §6). Real JPMS reflection
// (reading module-info.class attributes from a running JVM) has no
// idiomatic Go host-side equivalent, so the discovery collaborator is
// responsible for resolving a module's backing location and its
// exported/open package lists up front; the Module element only scans
// what it is told is visible (an Open Question resolution recorded in
// DESIGN.md).
type ModuleRef struct {
	Name     string
	IsSystem bool
	// Locator is the filesystem path backing the module: an exploded
	// module directory or a modular jar. Empty means the module has no
	// scannable backing on this host (for example an unresolvable
	// system module image) and OpenModule produces a skipped element.
	Locator string

	ExportedPackages []string
	OpenPackages     []string
}

// OpenModule registers a Module element for ref, keyed by module name
// rather than by canonical filesystem path (spec.md §3 "Identity:
// canonical path/module name").
func (r *Registry) OpenModule(ref ModuleRef, orderIndex int) (*Element, error) {
	el, err := r.elements.Get(moduleKey(ref.Name), func(string) (*Element, error) {
		el := &Element{
			Kind:        KindModule,
			CanonicalID: ref.Name,
			RawPath:     ref.Name,
			OrderIndex:  orderIndex,
			module:      &ref,
		}
		if ref.Locator == "" {
			el.Skip = true
			el.SkipReason = fmt.Errorf("module %q has no resolvable backing location", ref.Name)
			return el, nil
		}

		info, err := os.Stat(ref.Locator)
		if err != nil {
			el.Skip = true
			el.SkipReason = fmt.Errorf("module %q backing location unreadable: %w", ref.Name, err)
			return el, nil
		}

		if info.IsDir() {
			el.dirRoot = ref.Locator
			return el, nil
		}

		rc, err := zip.OpenReader(ref.Locator)
		if err != nil {
			el.Skip = true
			el.SkipReason = fmt.Errorf("module %q backing jar unreadable: %w", ref.Name, err)
			return el, nil
		}
		r.nested.Track(rc)
		el.archive = &archiveBackend{zr: &rc.Reader}
		return el, nil
	})
	if err != nil {
		return el, err
	}
	el.updateOrderIndex(orderIndex)
	return el, nil
}

func moduleKey(name string) string {
	return "module:" + name
}

// filterToModulePackages keeps only resources under ref's exported or
// open packages (spec.md §4.6 "modules enumerate their exported/open
// packages").
func filterToModulePackages(ref *ModuleRef, all []*Resource) []*Resource {
	allowed := make(map[string]bool, len(ref.ExportedPackages)+len(ref.OpenPackages))
	for _, p := range ref.ExportedPackages {
		allowed[p] = true
	}
	for _, p := range ref.OpenPackages {
		allowed[p] = true
	}
	if len(allowed) == 0 {
		return nil
	}

	filtered := make([]*Resource, 0, len(all))
	for _, res := range all {
		if allowed[packageOfResource(res.LogicalPath)] {
			filtered = append(filtered, res)
		}
	}
	return filtered
}

func packageOfResource(logicalPath string) string {
	if strings.HasSuffix(logicalPath, ".class") {
		return scanspec.PackageOf(logicalPath)
	}
	idx := strings.LastIndex(logicalPath, "/")
	if idx < 0 {
		return ""
	}
	return strings.ReplaceAll(logicalPath[:idx], "/", ".")
}
