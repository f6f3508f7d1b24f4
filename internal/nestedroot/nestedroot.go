// Package nestedroot implements the Nested-Root Detector (spec.md
// §4.5): it prevents an outer directory or archive element from
// double-scanning an artifact that also appears as its own explicit
// classpath element (for example the directories /lib and /lib/sub
// both on the classpath).
package nestedroot

import (
	"sort"
	"strings"

	"github.com/cpscan/cpscan/pkg/element"
)

// Detect runs separately over directory elements and archive elements
// (modules are skipped, per spec.md §4.5), sorting each group
// lexicographically by canonical path and scanning forward for
// elements whose path is a separator-bounded prefix of a later one.
// Matches are recorded as nested-root prefixes on the outer element.
func Detect(elements []*element.Element) {
	detectWithinKind(elements, element.KindDirectory)
	detectWithinKind(elements, element.KindArchive)
}

func detectWithinKind(elements []*element.Element, kind element.Kind) {
	var group []*element.Element
	for _, el := range elements {
		if el.Kind == kind && !el.Skip {
			group = append(group, el)
		}
	}
	sort.Slice(group, func(i, j int) bool { return group[i].CanonicalID < group[j].CanonicalID })

	for i, outer := range group {
		for j := i + 1; j < len(group); j++ {
			inner := group[j]
			suffix, ok := nestedSuffix(outer.CanonicalID, inner.CanonicalID)
			if !ok {
				// Lexicographic order guarantees no further matches.
				break
			}
			outer.NestedRootPrefixes = append(outer.NestedRootPrefixes, suffix+"/")
		}
	}
}

// nestedSuffix reports whether inner's path is outer's path plus a
// "/" or "!" separator plus a suffix containing no further "!", and if
// so returns that suffix.
func nestedSuffix(outer, inner string) (string, bool) {
	for _, sep := range []byte{'/', '!'} {
		prefix := outer + string(sep)
		if !strings.HasPrefix(inner, prefix) {
			continue
		}
		suffix := inner[len(prefix):]
		if strings.Contains(suffix, "!") {
			continue
		}
		return suffix, true
	}
	return "", false
}
