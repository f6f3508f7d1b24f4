package nestedroot

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cpscan/cpscan/pkg/element"
)

func TestDetect_NestedArchiveInsideDirectory(t *testing.T) {
	lib := &element.Element{Kind: element.KindDirectory, CanonicalID: "/lib"}
	sub := &element.Element{Kind: element.KindArchive, CanonicalID: "/lib/sub.jar"}

	Detect([]*element.Element{lib, sub})

	// Directories and archives are matched in separate passes, so an
	// archive element never registers a nested-root prefix on a
	// directory element.
	assert.Empty(t, lib.NestedRootPrefixes)
	assert.Empty(t, sub.NestedRootPrefixes)
}

func TestDetect_UnrelatedPathsNoMatch(t *testing.T) {
	a := &element.Element{Kind: element.KindDirectory, CanonicalID: "/a"}
	b := &element.Element{Kind: element.KindDirectory, CanonicalID: "/b"}

	Detect([]*element.Element{a, b})

	assert.Empty(t, a.NestedRootPrefixes)
	assert.Empty(t, b.NestedRootPrefixes)
}

func TestDetect_SkipsModulesAndSkippedElements(t *testing.T) {
	mod := &element.Element{Kind: element.KindModule, CanonicalID: "/lib"}
	sub := &element.Element{Kind: element.KindArchive, CanonicalID: "/lib/sub.jar"}
	skipped := &element.Element{Kind: element.KindDirectory, CanonicalID: "/lib2", Skip: true}
	subOfSkipped := &element.Element{Kind: element.KindArchive, CanonicalID: "/lib2/sub.jar"}

	Detect([]*element.Element{mod, sub, skipped, subOfSkipped})

	assert.Empty(t, mod.NestedRootPrefixes, "modules are skipped per spec.md §4.5")
	assert.Empty(t, skipped.NestedRootPrefixes)
}

func TestDetect_PrefixLikeButNotNested(t *testing.T) {
	a := &element.Element{Kind: element.KindDirectory, CanonicalID: "/lib"}
	notNested := &element.Element{Kind: element.KindDirectory, CanonicalID: "/libother"}

	Detect([]*element.Element{a, notNested})

	assert.Empty(t, a.NestedRootPrefixes)
}
