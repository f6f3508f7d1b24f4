// Package link implements the Linker (spec.md §4.10): after the
// classfile-scan phase drains, join every Unlinked Record collected
// during the run into the three Linked Type Graph mappings, resolving
// name references to direct pointers and creating placeholder records
// for names that were referenced but never themselves parsed.
//
// Linking is specified as serial ("the collected Unlinked Records are
// linked serially"), so unlike every other phase in this module it is
// plain sequential code with no work queue or goroutines.
package link

import (
	"strings"

	"github.com/cpscan/cpscan/pkg/classfile"
	"github.com/cpscan/cpscan/pkg/classinfo"
	"github.com/cpscan/cpscan/pkg/scanspec"
)

// ModuleOf reports the module name owning elementID, if the resource
// that produced a record came from a Module classpath element.
type ModuleOf func(elementID string) (moduleName string, isSystem bool, ok bool)

// Link joins records into a Graph. moduleOf may be nil if module
// support is disabled.
func Link(records []*classfile.UnlinkedRecord, moduleOf ModuleOf) *classinfo.Graph {
	g := &classinfo.Graph{
		Classes:  make(map[string]*classinfo.ClassInfo),
		Packages: make(map[string]*classinfo.PackageInfo),
		Modules:  make(map[string]*classinfo.ModuleInfo),
	}

	resolve := func(name string) *classinfo.ClassInfo {
		if name == "" {
			return nil
		}
		if ci, ok := g.Classes[name]; ok {
			return ci
		}
		ci := &classinfo.ClassInfo{Name: name, IsPlaceholder: true}
		g.Classes[name] = ci
		return ci
	}

	for _, rec := range records {
		ci := resolve(rec.TypeName)
		ci.IsPlaceholder = false
		ci.Modifiers = rec.Modifiers
		ci.IsInterface = rec.IsInterface
		ci.IsAnnotation = rec.IsAnnotation
		ci.IsExternalClass = rec.IsExternalClass
		ci.ElementID = rec.ElementID

		if rec.SuperclassName != "" {
			ci.Superclass = resolve(rec.SuperclassName)
		}
		for _, ifaceName := range rec.InterfaceNames {
			ci.Interfaces = append(ci.Interfaces, resolve(ifaceName))
		}
		for _, a := range rec.Annotations {
			ci.Annotations = append(ci.Annotations, resolve(a.TypeName))
		}
		for _, f := range rec.Fields {
			fi := &classinfo.FieldInfo{Owner: ci, Name: f.Name, Modifiers: f.Modifiers, Descriptor: f.Descriptor}
			for _, a := range f.Annotations {
				fi.Annotations = append(fi.Annotations, resolve(a.TypeName))
			}
			ci.Fields = append(ci.Fields, fi)
		}
		for _, m := range rec.Methods {
			mi := &classinfo.MethodInfo{Owner: ci, Name: m.Name, Modifiers: m.Modifiers, Descriptor: m.Descriptor}
			for _, a := range m.Annotations {
				mi.Annotations = append(mi.Annotations, resolve(a.TypeName))
			}
			for _, params := range m.ParameterAnnotations {
				var resolved []*classinfo.ClassInfo
				for _, a := range params {
					resolved = append(resolved, resolve(a.TypeName))
				}
				mi.ParameterAnnotations = append(mi.ParameterAnnotations, resolved)
			}
			ci.Methods = append(ci.Methods, mi)
		}
	}

	linkReverseEdges(g)
	materializePackages(g)
	if moduleOf != nil {
		materializeModules(g, moduleOf)
	}

	return g
}

func linkReverseEdges(g *classinfo.Graph) {
	for _, ci := range g.Classes {
		if ci.Superclass != nil {
			ci.Superclass.Subclasses = append(ci.Superclass.Subclasses, ci)
		}
		for _, iface := range ci.Interfaces {
			iface.ImplementingClasses = append(iface.ImplementingClasses, ci)
		}
	}
}

func materializePackages(g *classinfo.Graph) {
	for name, ci := range g.Classes {
		pkgName := scanspec.PackageOf(strings.ReplaceAll(name, ".", "/") + ".class")
		pkg, ok := g.Packages[pkgName]
		if !ok {
			pkg = &classinfo.PackageInfo{Name: pkgName}
			g.Packages[pkgName] = pkg
		}
		pkg.Classes = append(pkg.Classes, ci)
		ci.Package = pkg
	}
}

func materializeModules(g *classinfo.Graph, moduleOf ModuleOf) {
	for _, ci := range g.Classes {
		if ci.IsPlaceholder || ci.ElementID == "" {
			continue
		}
		name, isSystem, ok := moduleOf(ci.ElementID)
		if !ok {
			continue
		}
		mod, ok := g.Modules[name]
		if !ok {
			mod = &classinfo.ModuleInfo{Name: name, IsSystem: isSystem}
			g.Modules[name] = mod
		}
		ci.Module = mod

		if ci.Package == nil {
			continue
		}
		alreadyTracked := false
		for _, p := range mod.Packages {
			if p == ci.Package {
				alreadyTracked = true
				break
			}
		}
		if !alreadyTracked {
			mod.Packages = append(mod.Packages, ci.Package)
		}
	}
}
