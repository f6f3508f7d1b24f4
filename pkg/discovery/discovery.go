// Package discovery is the default implementation of the classpath
// discovery front end, explicitly named as out of scope for the core
// scan engine (spec.md §1, §6 "Classpath discovery collaborator"):
// "extracting raw path strings from the host runtime's environment."
//
// Go has no JVM classloader hierarchy to introspect, so the default
// implementation here reads the Go-host analogues: the CPSCAN_CLASSPATH
// environment variable (grounded on java.class.path), an optional
// CPSCAN_MODULE_PATH for Module references, and explicit overrides a
// caller supplies directly, mirroring the teacher's layered
// environment-variable-then-override config resolution in
// cli/cmd/configuration/ocm_config.go.
package discovery

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/cpscan/cpscan/pkg/element"
)

const (
	// ClasspathEnvVar lists raw classpath entries, separated by the
	// host OS's path list separator, the Go-host analogue of the JVM
	// system property java.class.path.
	ClasspathEnvVar = "CPSCAN_CLASSPATH"
	// ModulePathEnvVar lists directories or modular jars to treat as
	// Module classpath elements, one per entry.
	ModulePathEnvVar = "CPSCAN_MODULE_PATH"
	// SystemModulePathEnvVar lists the same, but for elements flagged
	// IsSystem (the Go-host analogue of the JDK's own system modules).
	SystemModulePathEnvVar = "CPSCAN_SYSTEM_MODULE_PATH"
)

// Result is everything the scan engine needs from discovery (spec.md
// §6 "Classpath discovery collaborator"): the ordered raw path list,
// a raw-path -> class-loader context mapping, module references split
// into system and non-system, and the context class-loader list.
type Result struct {
	RawPaths            []string
	ClassLoaderContexts map[string][]string
	SystemModules       []element.ModuleRef
	NonSystemModules    []element.ModuleRef
	ContextClassLoaders []string
}

// Overrides lets a caller bypass environment discovery entirely,
// matching spec.md §6's "classpath and class-loader overrides" input.
// A zero-value Overrides defers to the environment for every field.
type Overrides struct {
	RawPaths            []string
	ContextClassLoaders []string
}

// Discover builds a Result from the process environment, applying any
// non-empty fields of overrides in place of the corresponding
// environment source (spec.md §6 "classpath and class-loader
// overrides" take precedence over discovered state).
func Discover(overrides Overrides) Result {
	res := Result{
		ClassLoaderContexts: make(map[string][]string),
	}

	res.RawPaths = overrides.RawPaths
	if len(res.RawPaths) == 0 {
		res.RawPaths = splitPathList(os.Getenv(ClasspathEnvVar))
	}

	res.ContextClassLoaders = overrides.ContextClassLoaders
	if len(res.ContextClassLoaders) == 0 {
		res.ContextClassLoaders = []string{defaultClassLoaderContext()}
	}
	for _, p := range res.RawPaths {
		res.ClassLoaderContexts[p] = res.ContextClassLoaders
	}

	for _, p := range splitPathList(os.Getenv(ModulePathEnvVar)) {
		res.NonSystemModules = append(res.NonSystemModules, moduleRefFor(p, false))
	}
	for _, p := range splitPathList(os.Getenv(SystemModulePathEnvVar)) {
		res.SystemModules = append(res.SystemModules, moduleRefFor(p, true))
	}

	return res
}

func splitPathList(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, string(os.PathListSeparator))
	var out []string
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// defaultClassLoaderContext names the single synthetic class loader
// every discovered path belongs to when no override is supplied,
// mirroring a single-classloader JVM application launched without a
// custom loader hierarchy.
func defaultClassLoaderContext() string {
	return "system"
}

// moduleRefFor derives a module name from the base name of locator,
// dropping a .jar, .jmod, or .zip extension (an exploded module
// directory such as "java.base" keeps its full name), the host-side
// substitute for a real JPMS module descriptor name (see
// pkg/element.ModuleRef's doc comment for the broader rationale).
func moduleRefFor(locator string, isSystem bool) element.ModuleRef {
	name := filepath.Base(locator)
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jar", ".jmod", ".zip":
		name = strings.TrimSuffix(name, filepath.Ext(name))
	}
	return element.ModuleRef{Name: name, IsSystem: isSystem, Locator: locator}
}
