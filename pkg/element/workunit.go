package element

// ClassfileUnit is the classfile-scan phase's Work Unit (spec.md §3
// "Classfile Unit"): one resource inside one already-opened element,
// parsed by the Classfile Parser collaborator.
type ClassfileUnit struct {
	Element    *Element
	Resource   *Resource
	IsExternal bool
}
