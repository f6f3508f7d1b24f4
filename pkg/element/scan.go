package element

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cpscan/cpscan/pkg/scanspec"
)

// ScanPaths implements spec.md §4.6: enumerate e's resources,
// classify them against the include/exclude filters, exclude anything
// under a nested-root prefix, and populate the whitelisted resource
// lists and the file-modtime record.
func (e *Element) ScanPaths(ctx context.Context, filters *scanspec.Compiled) error {
	if e.Skip {
		return nil
	}

	var (
		all []*Resource
		err error
	)
	switch e.Kind {
	case KindDirectory:
		all, err = listDirectoryResources(e.dirRoot)
	case KindArchive:
		all = e.archive.listResources()
	case KindModule:
		if e.dirRoot != "" {
			all, err = listDirectoryResources(e.dirRoot)
		} else {
			all = e.archive.listResources()
		}
		all = filterToModulePackages(e.module, all)
	default:
		return fmt.Errorf("element %q has unknown kind", e.CanonicalID)
	}
	if err != nil {
		return fmt.Errorf("unable to scan paths of %q: %w", e.CanonicalID, err)
	}

	all = excludeNestedRoots(all, e.NestedRootPrefixes)

	e.Resources = all
	e.FileModTimes = make(map[string]time.Time, len(all))
	for _, r := range all {
		e.FileModTimes[r.LogicalPath] = r.ModTime

		if filters != nil && !filters.MatchesResourcePath(r.LogicalPath) {
			continue
		}
		e.WhitelistedResources = append(e.WhitelistedResources, r)
		if r.IsClassfile {
			if filters == nil || filters.MatchesPackage(scanspec.PackageOf(r.LogicalPath)) {
				e.WhitelistedClassfileResources = append(e.WhitelistedClassfileResources, r)
			}
		}
	}

	e.indexResources()
	return nil
}

// excludeNestedRoots drops every resource whose logical path starts
// with one of prefixes, implementing spec.md §4.6's "Elements respect
// the nested-root prefixes computed in §4.5 by excluding any resource
// whose path starts with one of those prefixes."
func excludeNestedRoots(resources []*Resource, prefixes []string) []*Resource {
	if len(prefixes) == 0 {
		return resources
	}
	kept := make([]*Resource, 0, len(resources))
	for _, r := range resources {
		excluded := false
		for _, p := range prefixes {
			if strings.HasPrefix(r.LogicalPath, p) {
				excluded = true
				break
			}
		}
		if !excluded {
			kept = append(kept, r)
		}
	}
	return kept
}
