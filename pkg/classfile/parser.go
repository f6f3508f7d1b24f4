package classfile

import (
	"context"
	"encoding/binary"
	"fmt"
	"strings"
)

// ErrNotAClassfile is returned when the resource does not start with
// the 0xCAFEBABE magic number.
var ErrNotAClassfile = fmt.Errorf("not a classfile (bad magic number)")

const classMagic = 0xCAFEBABE

// Constant pool tags, JVMS §4.4.
const (
	tagUtf8              = 1
	tagInteger           = 3
	tagFloat             = 4
	tagLong              = 5
	tagDouble            = 6
	tagClass             = 7
	tagString            = 8
	tagFieldref          = 9
	tagMethodref         = 10
	tagInterfaceMethodref = 11
	tagNameAndType       = 12
	tagMethodHandle      = 15
	tagMethodType        = 16
	tagDynamic           = 17
	tagInvokeDynamic     = 18
	tagModule            = 19
	tagPackage           = 20
)

// DefaultParser is a real, self-contained parser of the JVM classfile
// binary format (JVMS chapter 4). It is one concrete implementation of
// the Parser seam spec.md deliberately keeps outside the core's
// semantics: the core only ever calls Parser.Parse and never inspects
// these internals.
type DefaultParser struct{}

var _ Parser = DefaultParser{}

// Parse implements Parser.
func (DefaultParser) Parse(_ context.Context, req ParseRequest) (*UnlinkedRecord, error) {
	r := &classReader{data: req.Data}

	magic, err := r.u4()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", req.LogicalPath, err)
	}
	if magic != classMagic {
		return nil, fmt.Errorf("%s: %w", req.LogicalPath, ErrNotAClassfile)
	}

	if _, err := r.u2(); err != nil { // minor_version
		return nil, fmt.Errorf("%s: truncated header: %w", req.LogicalPath, err)
	}
	if _, err := r.u2(); err != nil { // major_version
		return nil, fmt.Errorf("%s: truncated header: %w", req.LogicalPath, err)
	}

	pool, err := readConstantPool(r)
	if err != nil {
		return nil, fmt.Errorf("%s: constant pool: %w", req.LogicalPath, err)
	}

	accessFlags, err := r.u2()
	if err != nil {
		return nil, fmt.Errorf("%s: access flags: %w", req.LogicalPath, err)
	}

	thisClass, err := r.u2()
	if err != nil {
		return nil, fmt.Errorf("%s: this_class: %w", req.LogicalPath, err)
	}
	superClass, err := r.u2()
	if err != nil {
		return nil, fmt.Errorf("%s: super_class: %w", req.LogicalPath, err)
	}

	record := &UnlinkedRecord{
		Modifiers:       int(accessFlags),
		IsInterface:     accessFlags&ModifierInterface != 0,
		IsAnnotation:    accessFlags&ModifierAnnotation != 0,
		ElementID:       req.ElementID,
		IsExternalClass: req.IsExternal,
	}
	record.TypeName, err = pool.className(thisClass)
	if err != nil {
		return nil, fmt.Errorf("%s: this_class: %w", req.LogicalPath, err)
	}
	if superClass != 0 {
		record.SuperclassName, err = pool.className(superClass)
		if err != nil {
			return nil, fmt.Errorf("%s: super_class: %w", req.LogicalPath, err)
		}
	}

	interfacesCount, err := r.u2()
	if err != nil {
		return nil, fmt.Errorf("%s: interfaces_count: %w", req.LogicalPath, err)
	}
	for i := 0; i < int(interfacesCount); i++ {
		idx, err := r.u2()
		if err != nil {
			return nil, fmt.Errorf("%s: interface[%d]: %w", req.LogicalPath, i, err)
		}
		name, err := pool.className(idx)
		if err != nil {
			return nil, fmt.Errorf("%s: interface[%d]: %w", req.LogicalPath, i, err)
		}
		record.InterfaceNames = append(record.InterfaceNames, name)
	}

	if record.Fields, err = readFields(r, pool); err != nil {
		return nil, fmt.Errorf("%s: fields: %w", req.LogicalPath, err)
	}
	if record.Methods, err = readMethods(r, pool); err != nil {
		return nil, fmt.Errorf("%s: methods: %w", req.LogicalPath, err)
	}

	classAttrCount, err := r.u2()
	if err != nil {
		return nil, fmt.Errorf("%s: attributes_count: %w", req.LogicalPath, err)
	}
	for i := 0; i < int(classAttrCount); i++ {
		name, info, err := readAttribute(r, pool)
		if err != nil {
			return nil, fmt.Errorf("%s: class attribute[%d]: %w", req.LogicalPath, i, err)
		}
		if isAnnotationsAttribute(name) {
			annos, err := parseAnnotationsAttribute(info, pool)
			if err != nil {
				return nil, fmt.Errorf("%s: %s: %w", req.LogicalPath, name, err)
			}
			record.Annotations = append(record.Annotations, annos...)
		}
	}

	return record, nil
}

// classReader is a forward-only cursor over one classfile's bytes.
type classReader struct {
	data []byte
	pos  int
}

func (r *classReader) u1() (byte, error) {
	if r.pos+1 > len(r.data) {
		return 0, fmt.Errorf("unexpected end of classfile")
	}
	b := r.data[r.pos]
	r.pos++
	return b, nil
}

func (r *classReader) u2() (uint16, error) {
	if r.pos+2 > len(r.data) {
		return 0, fmt.Errorf("unexpected end of classfile")
	}
	v := binary.BigEndian.Uint16(r.data[r.pos:])
	r.pos += 2
	return v, nil
}

func (r *classReader) u4() (uint32, error) {
	if r.pos+4 > len(r.data) {
		return 0, fmt.Errorf("unexpected end of classfile")
	}
	v := binary.BigEndian.Uint32(r.data[r.pos:])
	r.pos += 4
	return v, nil
}

func (r *classReader) skip(n int) error {
	if r.pos+n > len(r.data) {
		return fmt.Errorf("unexpected end of classfile")
	}
	r.pos += n
	return nil
}

func (r *classReader) bytesN(n int) ([]byte, error) {
	if r.pos+n > len(r.data) {
		return nil, fmt.Errorf("unexpected end of classfile")
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

// constantPool holds the raw entries of a classfile's constant pool,
// indexed exactly as the JVM does (1-based, with Long/Double occupying
// two consecutive indices).
type constantPool struct {
	utf8    map[uint16]string
	classes map[uint16]uint16 // class index -> name (utf8) index
}

func readConstantPool(r *classReader) (*constantPool, error) {
	count, err := r.u2()
	if err != nil {
		return nil, err
	}
	pool := &constantPool{utf8: make(map[uint16]string), classes: make(map[uint16]uint16)}

	for i := uint16(1); i < count; i++ {
		tag, err := r.u1()
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		switch tag {
		case tagUtf8:
			length, err := r.u2()
			if err != nil {
				return nil, err
			}
			b, err := r.bytesN(int(length))
			if err != nil {
				return nil, err
			}
			pool.utf8[i] = string(b)
		case tagClass, tagString, tagMethodType, tagModule, tagPackage:
			idx, err := r.u2()
			if err != nil {
				return nil, err
			}
			if tag == tagClass {
				pool.classes[i] = idx
			}
		case tagInteger, tagFloat:
			if err := r.skip(4); err != nil {
				return nil, err
			}
		case tagLong, tagDouble:
			if err := r.skip(8); err != nil {
				return nil, err
			}
			i++ // occupies two constant-pool entries
		case tagFieldref, tagMethodref, tagInterfaceMethodref, tagNameAndType, tagDynamic, tagInvokeDynamic:
			if err := r.skip(4); err != nil {
				return nil, err
			}
		case tagMethodHandle:
			if err := r.skip(3); err != nil {
				return nil, err
			}
		default:
			return nil, fmt.Errorf("entry %d: unknown constant pool tag %d", i, tag)
		}
	}
	return pool, nil
}

// className resolves a CONSTANT_Class_info index to its dotted type
// name, converting the internal slash-separated form to the
// dot-separated form used throughout this module's data model.
func (p *constantPool) className(classIndex uint16) (string, error) {
	if classIndex == 0 {
		return "", nil
	}
	nameIndex, ok := p.classes[classIndex]
	if !ok {
		return "", fmt.Errorf("constant pool index %d is not a Class entry", classIndex)
	}
	internal, ok := p.utf8[nameIndex]
	if !ok {
		return "", fmt.Errorf("constant pool index %d has no UTF8 name", classIndex)
	}
	return internalNameToDotted(internal), nil
}

func (p *constantPool) utf8At(index uint16) (string, error) {
	s, ok := p.utf8[index]
	if !ok {
		return "", fmt.Errorf("constant pool index %d is not a UTF8 entry", index)
	}
	return s, nil
}

// internalNameToDotted converts "com/example/Foo" or array descriptors
// like "[Lcom/example/Foo;" to "com.example.Foo". Non-class descriptors
// (primitives, plain arrays of primitives) are returned unchanged.
func internalNameToDotted(internal string) string {
	s := internal
	for strings.HasPrefix(s, "[") {
		s = s[1:]
	}
	if strings.HasPrefix(s, "L") && strings.HasSuffix(s, ";") {
		s = s[1 : len(s)-1]
	}
	return strings.ReplaceAll(s, "/", ".")
}

func readFields(r *classReader, pool *constantPool) ([]FieldRecord, error) {
	count, err := r.u2()
	if err != nil {
		return nil, err
	}
	fields := make([]FieldRecord, 0, count)
	for i := 0; i < int(count); i++ {
		accessFlags, err := r.u2()
		if err != nil {
			return nil, fmt.Errorf("field[%d]: %w", i, err)
		}
		nameIndex, err := r.u2()
		if err != nil {
			return nil, fmt.Errorf("field[%d]: %w", i, err)
		}
		descIndex, err := r.u2()
		if err != nil {
			return nil, fmt.Errorf("field[%d]: %w", i, err)
		}
		name, err := pool.utf8At(nameIndex)
		if err != nil {
			return nil, fmt.Errorf("field[%d]: %w", i, err)
		}
		desc, err := pool.utf8At(descIndex)
		if err != nil {
			return nil, fmt.Errorf("field[%d]: %w", i, err)
		}

		field := FieldRecord{Name: name, Modifiers: int(accessFlags), Descriptor: desc}

		attrCount, err := r.u2()
		if err != nil {
			return nil, fmt.Errorf("field[%d]: %w", i, err)
		}
		for a := 0; a < int(attrCount); a++ {
			attrName, info, err := readAttribute(r, pool)
			if err != nil {
				return nil, fmt.Errorf("field[%d] attribute[%d]: %w", i, a, err)
			}
			if isAnnotationsAttribute(attrName) {
				annos, err := parseAnnotationsAttribute(info, pool)
				if err != nil {
					return nil, fmt.Errorf("field[%d] %s: %w", i, attrName, err)
				}
				field.Annotations = append(field.Annotations, annos...)
			}
		}
		fields = append(fields, field)
	}
	return fields, nil
}

func readMethods(r *classReader, pool *constantPool) ([]MethodRecord, error) {
	count, err := r.u2()
	if err != nil {
		return nil, err
	}
	methods := make([]MethodRecord, 0, count)
	for i := 0; i < int(count); i++ {
		accessFlags, err := r.u2()
		if err != nil {
			return nil, fmt.Errorf("method[%d]: %w", i, err)
		}
		nameIndex, err := r.u2()
		if err != nil {
			return nil, fmt.Errorf("method[%d]: %w", i, err)
		}
		descIndex, err := r.u2()
		if err != nil {
			return nil, fmt.Errorf("method[%d]: %w", i, err)
		}
		name, err := pool.utf8At(nameIndex)
		if err != nil {
			return nil, fmt.Errorf("method[%d]: %w", i, err)
		}
		desc, err := pool.utf8At(descIndex)
		if err != nil {
			return nil, fmt.Errorf("method[%d]: %w", i, err)
		}

		method := MethodRecord{Name: name, Modifiers: int(accessFlags), Descriptor: desc}

		attrCount, err := r.u2()
		if err != nil {
			return nil, fmt.Errorf("method[%d]: %w", i, err)
		}
		for a := 0; a < int(attrCount); a++ {
			attrName, info, err := readAttribute(r, pool)
			if err != nil {
				return nil, fmt.Errorf("method[%d] attribute[%d]: %w", i, a, err)
			}
			switch {
			case isAnnotationsAttribute(attrName):
				annos, err := parseAnnotationsAttribute(info, pool)
				if err != nil {
					return nil, fmt.Errorf("method[%d] %s: %w", i, attrName, err)
				}
				method.Annotations = append(method.Annotations, annos...)
			case isParameterAnnotationsAttribute(attrName):
				perParam, err := parseParameterAnnotationsAttribute(info, pool)
				if err != nil {
					return nil, fmt.Errorf("method[%d] %s: %w", i, attrName, err)
				}
				method.ParameterAnnotations = mergeParameterAnnotations(method.ParameterAnnotations, perParam)
			}
		}
		methods = append(methods, method)
	}
	return methods, nil
}

func mergeParameterAnnotations(existing, additional [][]AnnotationRef) [][]AnnotationRef {
	if len(existing) < len(additional) {
		grown := make([][]AnnotationRef, len(additional))
		copy(grown, existing)
		existing = grown
	}
	for i, annos := range additional {
		existing[i] = append(existing[i], annos...)
	}
	return existing
}

func isAnnotationsAttribute(name string) bool {
	return name == "RuntimeVisibleAnnotations" || name == "RuntimeInvisibleAnnotations"
}

func isParameterAnnotationsAttribute(name string) bool {
	return name == "RuntimeVisibleParameterAnnotations" || name == "RuntimeInvisibleParameterAnnotations"
}

// readAttribute reads one attribute_info, returning the attribute's
// name and its raw info bytes for further decoding by the caller.
func readAttribute(r *classReader, pool *constantPool) (name string, info []byte, err error) {
	nameIndex, err := r.u2()
	if err != nil {
		return "", nil, err
	}
	name, err = pool.utf8At(nameIndex)
	if err != nil {
		return "", nil, err
	}
	length, err := r.u4()
	if err != nil {
		return "", nil, err
	}
	info, err = r.bytesN(int(length))
	if err != nil {
		return "", nil, err
	}
	return name, info, nil
}

// parseAnnotationsAttribute parses a RuntimeVisibleAnnotations /
// RuntimeInvisibleAnnotations attribute body (JVMS §4.7.16/4.7.17).
func parseAnnotationsAttribute(info []byte, pool *constantPool) ([]AnnotationRef, error) {
	r := &classReader{data: info}
	count, err := r.u2()
	if err != nil {
		return nil, err
	}
	refs := make([]AnnotationRef, 0, count)
	for i := 0; i < int(count); i++ {
		ref, err := parseAnnotation(r, pool)
		if err != nil {
			return nil, fmt.Errorf("annotation[%d]: %w", i, err)
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

// parseParameterAnnotationsAttribute parses a
// RuntimeVisibleParameterAnnotations / RuntimeInvisibleParameterAnnotations
// attribute body (JVMS §4.7.18/4.7.19): one annotation list per formal
// parameter.
func parseParameterAnnotationsAttribute(info []byte, pool *constantPool) ([][]AnnotationRef, error) {
	r := &classReader{data: info}
	numParams, err := r.u1()
	if err != nil {
		return nil, err
	}
	out := make([][]AnnotationRef, numParams)
	for p := 0; p < int(numParams); p++ {
		count, err := r.u2()
		if err != nil {
			return nil, fmt.Errorf("parameter[%d]: %w", p, err)
		}
		for i := 0; i < int(count); i++ {
			ref, err := parseAnnotation(r, pool)
			if err != nil {
				return nil, fmt.Errorf("parameter[%d] annotation[%d]: %w", p, i, err)
			}
			out[p] = append(out[p], ref)
		}
	}
	return out, nil
}

// parseAnnotation parses one annotation structure (JVMS §4.7.16) and
// skips over its element_value_pairs without interpreting them, since
// this package only needs the annotation's own type for upward-closure
// and linking purposes.
func parseAnnotation(r *classReader, pool *constantPool) (AnnotationRef, error) {
	typeIndex, err := r.u2()
	if err != nil {
		return AnnotationRef{}, err
	}
	typeDescriptor, err := pool.utf8At(typeIndex)
	if err != nil {
		return AnnotationRef{}, err
	}

	numPairs, err := r.u2()
	if err != nil {
		return AnnotationRef{}, err
	}
	for i := 0; i < int(numPairs); i++ {
		if _, err := r.u2(); err != nil { // element_name_index
			return AnnotationRef{}, err
		}
		if err := skipElementValue(r, pool); err != nil {
			return AnnotationRef{}, fmt.Errorf("element_value[%d]: %w", i, err)
		}
	}
	return AnnotationRef{TypeName: internalNameToDotted(typeDescriptor)}, nil
}

// skipElementValue advances r past one element_value structure (JVMS
// §4.7.16.1), recursing into nested annotations and arrays. Nested
// annotation references are not collected: a downstream annotation
// class's own fields are not classpath references of the annotated
// element itself.
func skipElementValue(r *classReader, pool *constantPool) error {
	tag, err := r.u1()
	if err != nil {
		return err
	}
	switch tag {
	case 'B', 'C', 'D', 'F', 'I', 'J', 'S', 'Z', 's', 'c':
		_, err := r.u2()
		return err
	case 'e':
		if _, err := r.u2(); err != nil {
			return err
		}
		_, err := r.u2()
		return err
	case '@':
		_, err := parseAnnotation(r, pool)
		return err
	case '[':
		numValues, err := r.u2()
		if err != nil {
			return err
		}
		for i := 0; i < int(numValues); i++ {
			if err := skipElementValue(r, pool); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("unknown element_value tag %q", tag)
	}
}
