// Package mask implements spec.md §4.7: first-wins masking of
// duplicate classfile logical paths across the final element order.
// The per-element removal logic lives on element.Element.MaskClassfiles
// itself (it is one of the capabilities spec.md §9 assigns directly to
// the Classpath Element); this package only supplies the shared
// "already-seen" set and drives elements through it in order.
package mask

import "github.com/cpscan/cpscan/pkg/element"

// Apply masks every element in finalOrder against one shared seen-set,
// so that for any logical classfile path present in more than one
// element, only the first occurrence in finalOrder survives.
func Apply(finalOrder []*element.Element) {
	seen := element.NewSeenPaths()
	for _, el := range finalOrder {
		el.MaskClassfiles(seen)
	}
}
