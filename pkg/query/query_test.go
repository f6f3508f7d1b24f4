package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cpscan/cpscan/internal/link"
	"github.com/cpscan/cpscan/pkg/classfile"
)

func buildGraph(t *testing.T) *Result {
	t.Helper()
	records := []*classfile.UnlinkedRecord{
		{TypeName: "a.Animal", IsInterface: true},
		{TypeName: "a.Dog", InterfaceNames: []string{"a.Animal"}},
		{TypeName: "a.Puppy", SuperclassName: "a.Dog"},
		{TypeName: "a.Cat", InterfaceNames: []string{"a.Animal"}, Annotations: []classfile.AnnotationRef{{TypeName: "a.Pet"}}},
	}
	g := link.Link(records, nil)
	return New(g)
}

func TestSubclassesOf_Transitive(t *testing.T) {
	r := buildGraph(t)
	subs := r.SubclassesOf("a.Dog")
	var names []string
	for _, s := range subs {
		names = append(names, s.Name)
	}
	assert.ElementsMatch(t, []string{"a.Puppy"}, names)
}

func TestImplementationsOf_IncludesTransitiveSubclasses(t *testing.T) {
	r := buildGraph(t)
	impls := r.ImplementationsOf("a.Animal")
	var names []string
	for _, i := range impls {
		names = append(names, i.Name)
	}
	assert.ElementsMatch(t, []string{"a.Dog", "a.Puppy", "a.Cat"}, names)
}

func TestAnnotatedWith(t *testing.T) {
	r := buildGraph(t)
	annotated := r.AnnotatedWith("a.Pet")
	require.Len(t, annotated, 1)
	assert.Equal(t, "a.Cat", annotated[0].Name)
}

func TestClassInfo_LookupMissing(t *testing.T) {
	r := buildGraph(t)
	_, ok := r.ClassInfo("a.DoesNotExist")
	assert.False(t, ok)
}
