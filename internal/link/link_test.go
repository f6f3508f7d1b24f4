package link

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cpscan/cpscan/pkg/classfile"
)

func TestLink_ResolvesSuperclassAndInterfaces(t *testing.T) {
	records := []*classfile.UnlinkedRecord{
		{TypeName: "a.B", SuperclassName: "a.A", InterfaceNames: []string{"a.I"}, ElementID: "e1"},
		{TypeName: "a.A", ElementID: "e1"},
		{TypeName: "a.I", IsInterface: true, ElementID: "e1"},
	}

	g := Link(records, nil)

	require.Len(t, g.Classes, 3)
	b := g.Classes["a.B"]
	require.NotNil(t, b)
	require.NotNil(t, b.Superclass)
	assert.Equal(t, "a.A", b.Superclass.Name)
	assert.False(t, b.Superclass.IsPlaceholder)

	require.Len(t, b.Interfaces, 1)
	assert.Equal(t, "a.I", b.Interfaces[0].Name)

	assert.Contains(t, b.Superclass.Subclasses, b)
	assert.Contains(t, b.Interfaces[0].ImplementingClasses, b)
}

func TestLink_CreatesPlaceholderForUnparsedReference(t *testing.T) {
	records := []*classfile.UnlinkedRecord{
		{TypeName: "a.B", SuperclassName: "a.Missing", ElementID: "e1"},
	}
	g := Link(records, nil)

	missing := g.Classes["a.Missing"]
	require.NotNil(t, missing)
	assert.True(t, missing.IsPlaceholder)
	assert.Empty(t, missing.ElementID)
}

func TestLink_MaterializesPackages(t *testing.T) {
	records := []*classfile.UnlinkedRecord{
		{TypeName: "com.example.Foo", ElementID: "e1"},
		{TypeName: "com.example.Bar", ElementID: "e1"},
	}
	g := Link(records, nil)

	pkg := g.Packages["com.example"]
	require.NotNil(t, pkg)
	assert.Len(t, pkg.Classes, 2)
	assert.Same(t, pkg, g.Classes["com.example.Foo"].Package)
}

func TestLink_MaterializesModules(t *testing.T) {
	records := []*classfile.UnlinkedRecord{
		{TypeName: "com.example.Foo", ElementID: "e1"},
		{TypeName: "java.lang.Object", ElementID: "e2"},
	}
	moduleOf := func(elementID string) (string, bool, bool) {
		switch elementID {
		case "e1":
			return "com.example.module", false, true
		case "e2":
			return "java.base", true, true
		}
		return "", false, false
	}
	g := Link(records, moduleOf)

	mod := g.Modules["com.example.module"]
	require.NotNil(t, mod)
	assert.False(t, mod.IsSystem)
	require.Len(t, mod.Packages, 1)
	assert.Equal(t, "com.example", mod.Packages[0].Name)

	base := g.Modules["java.base"]
	require.NotNil(t, base)
	assert.True(t, base.IsSystem)
}

func TestLink_FieldsAndMethodsResolveAnnotations(t *testing.T) {
	records := []*classfile.UnlinkedRecord{
		{
			TypeName: "a.B",
			Fields: []classfile.FieldRecord{
				{Name: "x", Annotations: []classfile.AnnotationRef{{TypeName: "a.Ann"}}},
			},
			Methods: []classfile.MethodRecord{
				{
					Name:                 "m",
					Annotations:          []classfile.AnnotationRef{{TypeName: "a.Ann"}},
					ParameterAnnotations: [][]classfile.AnnotationRef{{{TypeName: "a.ParamAnn"}}},
				},
			},
		},
	}
	g := Link(records, nil)
	b := g.Classes["a.B"]
	require.Len(t, b.Fields, 1)
	require.Len(t, b.Fields[0].Annotations, 1)
	assert.Equal(t, "a.Ann", b.Fields[0].Annotations[0].Name)
	assert.Same(t, b, b.Fields[0].Owner)

	require.Len(t, b.Methods, 1)
	assert.Same(t, b, b.Methods[0].Owner)
	require.Len(t, b.Methods[0].ParameterAnnotations, 1)
	assert.Equal(t, "a.ParamAnn", b.Methods[0].ParameterAnnotations[0][0].Name)
}
