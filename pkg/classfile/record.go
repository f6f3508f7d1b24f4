// Package classfile defines the scan engine's classfile parsing
// contract (spec.md §6 "Classfile parser collaborator") and the
// UnlinkedRecord data model it produces (spec.md §3 "Unlinked Record").
//
// spec.md explicitly treats the classfile binary grammar as external to
// the core's semantics ("the detailed grammar of the classfile binary
// format itself" is out of scope, §1). Parser is the black-box seam;
// DefaultParser in parser.go is one concrete, real implementation of it.
package classfile

import "context"

// Modifier bits, a subset of the JVM access_flags values relevant to
// the records this package produces.
const (
	ModifierPublic    = 0x0001
	ModifierPrivate   = 0x0002
	ModifierProtected = 0x0004
	ModifierStatic    = 0x0008
	ModifierFinal     = 0x0010
	ModifierInterface = 0x0200
	ModifierAbstract  = 0x0400
	ModifierSynthetic = 0x1000
	ModifierAnnotation = 0x2000
	ModifierEnum      = 0x4000
	ModifierModule    = 0x8000
)

// AnnotationRef is a reference to an annotation type by name, as it
// appears on a class, field, method, or method parameter. Like every
// reference in an Unlinked Record, it is name-only (spec.md §3).
type AnnotationRef struct {
	TypeName string
}

// FieldRecord is one field of an UnlinkedRecord.
type FieldRecord struct {
	Name        string
	Modifiers   int
	Descriptor  string
	Annotations []AnnotationRef
}

// MethodRecord is one method of an UnlinkedRecord.
type MethodRecord struct {
	Name        string
	Modifiers   int
	Descriptor  string
	Annotations []AnnotationRef
	// ParameterAnnotations holds one slice per formal parameter, in
	// declaration order, matching spec.md §3 "per-parameter annotation
	// arrays".
	ParameterAnnotations [][]AnnotationRef
}

// UnlinkedRecord is the output of parsing one classfile: references to
// other types are held by name only, never resolved (spec.md §3).
type UnlinkedRecord struct {
	TypeName       string
	Modifiers      int
	IsInterface    bool
	IsAnnotation   bool
	SuperclassName string // empty for java.lang.Object itself; interfaces carry java.lang.Object
	InterfaceNames []string
	Annotations    []AnnotationRef
	Fields         []FieldRecord
	Methods        []MethodRecord

	// ElementID is the canonical identity of the owning Classpath
	// Element (spec.md §3 "the owning element"). Kept as an identity
	// string rather than a pointer so this package has no dependency on
	// pkg/element, avoiding an import cycle between parsing and element
	// management.
	ElementID string
	// IsExternalClass records whether this record was produced by the
	// Upward-Closure Scheduler rather than by a directly-included scan
	// (spec.md §4.9, §8 scenario 5).
	IsExternalClass bool
}

// ReferencedTypeNames returns every type name this record references,
// deduplicated, from (superclass, implemented interfaces, class
// annotations, method annotations, method-parameter annotations, field
// annotations) -- the exact set spec.md §4.9 names as upward-closure
// candidates.
func (u *UnlinkedRecord) ReferencedTypeNames() []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(name string) {
		if name == "" {
			return
		}
		if _, ok := seen[name]; ok {
			return
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}

	add(u.SuperclassName)
	for _, n := range u.InterfaceNames {
		add(n)
	}
	for _, a := range u.Annotations {
		add(a.TypeName)
	}
	for _, f := range u.Fields {
		for _, a := range f.Annotations {
			add(a.TypeName)
		}
	}
	for _, m := range u.Methods {
		for _, a := range m.Annotations {
			add(a.TypeName)
		}
		for _, params := range m.ParameterAnnotations {
			for _, a := range params {
				add(a.TypeName)
			}
		}
	}
	return out
}

// Parser parses one classfile resource into an UnlinkedRecord. The core
// scan engine invokes it as a black box (spec.md §6): it must be
// deterministic for a given byte sequence and ScanSpec, and a nil
// result with a nil error indicates the resource was recognized but
// intentionally skipped.
type Parser interface {
	Parse(ctx context.Context, req ParseRequest) (*UnlinkedRecord, error)
}

// ParseRequest bundles everything a Parser needs about the resource
// being parsed, independent of how that resource's bytes are obtained.
type ParseRequest struct {
	ElementID  string
	LogicalPath string
	Data        []byte
	IsExternal  bool
}
