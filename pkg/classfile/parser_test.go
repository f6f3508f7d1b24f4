package classfile

import (
	"bytes"
	"context"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// classBuilder assembles a minimal, valid classfile byte stream for
// tests, since no Java toolchain is available to compile a real one.
type classBuilder struct {
	buf  bytes.Buffer
	pool [][]byte // constant pool entries in order, 1-indexed on write
	next uint16
}

func newClassBuilder() *classBuilder {
	return &classBuilder{next: 1}
}

func (c *classBuilder) utf8(s string) uint16 {
	idx := c.next
	c.next++
	entry := append([]byte{tagUtf8}, u16(uint16(len(s)))...)
	entry = append(entry, []byte(s)...)
	c.pool = append(c.pool, entry)
	return idx
}

func (c *classBuilder) class(nameIdx uint16) uint16 {
	idx := c.next
	c.next++
	c.pool = append(c.pool, append([]byte{tagClass}, u16(nameIdx)...))
	return idx
}

func u16(v uint16) []byte {
	b := make([]byte, 2)
	binary.BigEndian.PutUint16(b, v)
	return b
}

func u32(v uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, v)
	return b
}

// build assembles the full classfile given the already-registered
// constant pool entries, the access flags, this/super class indices,
// interface indices, and raw field/method/attribute section bytes
// (each defaulting to "0 entries" if omitted).
func (c *classBuilder) build(accessFlags uint16, thisClass, superClass uint16, interfaces []uint16, fieldsAndBeyond []byte) []byte {
	var out bytes.Buffer
	out.Write(u32(classMagic))
	out.Write(u16(0)) // minor
	out.Write(u16(52)) // major (Java 8)

	out.Write(u16(c.next)) // constant_pool_count = next unused index
	for _, e := range c.pool {
		out.Write(e)
	}

	out.Write(u16(accessFlags))
	out.Write(u16(thisClass))
	out.Write(u16(superClass))

	out.Write(u16(uint16(len(interfaces))))
	for _, i := range interfaces {
		out.Write(u16(i))
	}

	if fieldsAndBeyond != nil {
		out.Write(fieldsAndBeyond)
	} else {
		out.Write(u16(0)) // fields_count
		out.Write(u16(0)) // methods_count
		out.Write(u16(0)) // attributes_count
	}

	return out.Bytes()
}

func TestDefaultParser_SimpleClassWithSuperclass(t *testing.T) {
	b := newClassBuilder()
	fooName := b.utf8("com/example/Foo")
	fooClass := b.class(fooName)
	objName := b.utf8("java/lang/Object")
	objClass := b.class(objName)

	data := b.build(ModifierPublic, fooClass, objClass, nil, nil)

	record, err := DefaultParser{}.Parse(context.Background(), ParseRequest{
		ElementID:   "/libs/app.jar",
		LogicalPath: "com/example/Foo.class",
		Data:        data,
	})
	require.NoError(t, err)
	assert.Equal(t, "com.example.Foo", record.TypeName)
	assert.Equal(t, "java.lang.Object", record.SuperclassName)
	assert.Equal(t, "/libs/app.jar", record.ElementID)
	assert.False(t, record.IsInterface)
	assert.Empty(t, record.InterfaceNames)
}

func TestDefaultParser_InterfaceWithImplementedInterfaces(t *testing.T) {
	b := newClassBuilder()
	name := b.utf8("com/example/Thing")
	class := b.class(name)
	superName := b.utf8("java/lang/Object")
	superClass := b.class(superName)
	ifaceName := b.utf8("com/example/Comparable2")
	ifaceClass := b.class(ifaceName)

	data := b.build(ModifierPublic|ModifierInterface|ModifierAbstract, class, superClass, []uint16{ifaceClass}, nil)

	record, err := DefaultParser{}.Parse(context.Background(), ParseRequest{
		LogicalPath: "com/example/Thing.class",
		Data:        data,
	})
	require.NoError(t, err)
	assert.True(t, record.IsInterface)
	assert.Equal(t, []string{"com.example.Comparable2"}, record.InterfaceNames)
}

func TestDefaultParser_RejectsBadMagic(t *testing.T) {
	_, err := DefaultParser{}.Parse(context.Background(), ParseRequest{
		LogicalPath: "bad.class",
		Data:        []byte{0, 0, 0, 0, 0, 0, 0, 0},
	})
	assert.ErrorIs(t, err, ErrNotAClassfile)
}

func TestDefaultParser_TruncatedClassfileReturnsError(t *testing.T) {
	_, err := DefaultParser{}.Parse(context.Background(), ParseRequest{
		LogicalPath: "truncated.class",
		Data:        u32(classMagic),
	})
	assert.Error(t, err)
}

func TestUnlinkedRecord_ReferencedTypeNamesDeduplicates(t *testing.T) {
	record := &UnlinkedRecord{
		SuperclassName: "x.B",
		InterfaceNames: []string{"x.C", "x.B"},
		Annotations:    []AnnotationRef{{TypeName: "x.D"}},
		Fields: []FieldRecord{
			{Annotations: []AnnotationRef{{TypeName: "x.E"}}},
		},
		Methods: []MethodRecord{
			{
				Annotations:           []AnnotationRef{{TypeName: "x.F"}},
				ParameterAnnotations: [][]AnnotationRef{{{TypeName: "x.B"}}},
			},
		},
	}

	names := record.ReferencedTypeNames()
	assert.ElementsMatch(t, []string{"x.B", "x.C", "x.D", "x.E", "x.F"}, names)
}

func TestDefaultParser_FieldAnnotations(t *testing.T) {
	b := newClassBuilder()
	fooName := b.utf8("com/example/Foo")
	fooClass := b.class(fooName)
	objName := b.utf8("java/lang/Object")
	objClass := b.class(objName)

	fieldName := b.utf8("value")
	fieldDesc := b.utf8("I")
	annoType := b.utf8("Lcom/example/NotNull;")
	attrName := b.utf8("RuntimeVisibleAnnotations")

	// One annotation, zero element-value pairs.
	var annoAttr bytes.Buffer
	annoAttr.Write(u16(1))       // num_annotations
	annoAttr.Write(u16(annoType)) // type_index
	annoAttr.Write(u16(0))       // num_element_value_pairs

	var fieldsAndBeyond bytes.Buffer
	fieldsAndBeyond.Write(u16(1)) // fields_count
	fieldsAndBeyond.Write(u16(ModifierPrivate))
	fieldsAndBeyond.Write(u16(fieldName))
	fieldsAndBeyond.Write(u16(fieldDesc))
	fieldsAndBeyond.Write(u16(1)) // attributes_count
	fieldsAndBeyond.Write(u16(attrName))
	fieldsAndBeyond.Write(u32(uint32(annoAttr.Len())))
	fieldsAndBeyond.Write(annoAttr.Bytes())
	fieldsAndBeyond.Write(u16(0)) // methods_count
	fieldsAndBeyond.Write(u16(0)) // class attributes_count

	data := b.build(ModifierPublic, fooClass, objClass, nil, fieldsAndBeyond.Bytes())

	record, err := DefaultParser{}.Parse(context.Background(), ParseRequest{
		LogicalPath: "com/example/Foo.class",
		Data:        data,
	})
	require.NoError(t, err)
	require.Len(t, record.Fields, 1)
	require.Len(t, record.Fields[0].Annotations, 1)
	assert.Equal(t, "com.example.NotNull", record.Fields[0].Annotations[0].TypeName)
}
