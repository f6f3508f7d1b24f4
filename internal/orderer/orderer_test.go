package orderer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cpscan/cpscan/internal/nestedarchive"
	"github.com/cpscan/cpscan/internal/workqueue"
	"github.com/cpscan/cpscan/pkg/element"
	"github.com/cpscan/cpscan/pkg/scanspec"
)

type noopCanceller struct{}

func (noopCanceller) Tripped() bool { return false }

func newTestRegistry(t *testing.T) *element.Registry {
	t.Helper()
	nh, err := nestedarchive.New(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = nh.Close(true) })
	return element.NewRegistry(scanspec.New(), nh)
}

func TestOrder_StableSortAndDFS(t *testing.T) {
	a := &element.Element{CanonicalID: "/a", OrderIndex: 1}
	b := &element.Element{CanonicalID: "/b", OrderIndex: 0}
	order := Order(nil, []*element.Element{a, b})
	require.Len(t, order, 2)
	assert.Equal(t, "/b", order[0].CanonicalID)
	assert.Equal(t, "/a", order[1].CanonicalID)
}

func TestOrder_SkippedElementsOmitted(t *testing.T) {
	a := &element.Element{CanonicalID: "/a", OrderIndex: 0}
	skipped := &element.Element{CanonicalID: "/skipped", OrderIndex: 1, Skip: true}
	order := Order(nil, []*element.Element{a, skipped})
	require.Len(t, order, 1)
	assert.Equal(t, "/a", order[0].CanonicalID)
}

func TestOrder_DuplicateToplevelVisitedOnce(t *testing.T) {
	a := &element.Element{CanonicalID: "/a", OrderIndex: 0}
	order := Order(nil, []*element.Element{a, a})
	assert.Len(t, order, 1)
}

func TestOrder_CycleTerminatesAndVisitsOnceEach(t *testing.T) {
	r := newTestRegistry(t)
	dirA := t.TempDir()
	dirB := t.TempDir()

	units := []element.OpenerUnit{{RawPath: dirA}, {RawPath: dirB}}
	workqueue.Run(context.Background(), noopCanceller{}, 1, units, r.Open)

	a, ok := r.Lookup(dirA)
	require.True(t, ok)
	b, ok := r.Lookup(dirB)
	require.True(t, ok)

	// Simulate manifest Class-Path entries that reference each other,
	// the cycle scenario spec.md §8 scenario 6 describes.
	a.Children = []element.ChildRef{{RawPath: dirB, OrderIndex: 0}}
	b.Children = []element.ChildRef{{RawPath: dirA, OrderIndex: 0}}

	order := Order(r, []*element.Element{a})
	require.Len(t, order, 2)
	assert.Equal(t, dirA, order[0].CanonicalID)
	assert.Equal(t, dirB, order[1].CanonicalID)
}
