package scanspec

import (
	"fmt"
	"strings"

	"github.com/gobwas/glob"
)

// Filters holds the include/exclude pattern sets for packages, module
// names, and classpath-element-relative resource paths (spec.md §6
// "Input contract"). Patterns use glob syntax so that package filters
// can express ClassGraph-style "com.example.**" recursive wildcards,
// which filepath.Match cannot express; grounded on the teacher pack's
// bindings/go/repository/component/pathmatcher/v1alpha1, which reaches
// for github.com/gobwas/glob for the same reason.
type Filters struct {
	IncludePackages []string
	ExcludePackages []string

	IncludeModules []string
	ExcludeModules []string

	IncludeResourcePaths []string
	ExcludeResourcePaths []string
}

// Compiled is the globs compiled from one Filters value. Compilation
// happens once per scan and the result is reused across every element
// and every phase, since glob.Compile is not cheap enough to redo per
// resource.
type Compiled struct {
	includePackages []glob.Glob
	excludePackages []glob.Glob
	includeModules  []glob.Glob
	excludeModules  []glob.Glob
	includeRes      []glob.Glob
	excludeRes      []glob.Glob
}

// Compile compiles every pattern in f. Returns an error naming the
// first invalid pattern.
func (f Filters) Compile() (*Compiled, error) {
	c := &Compiled{}
	var err error
	if c.includePackages, err = compileAll(f.IncludePackages); err != nil {
		return nil, fmt.Errorf("invalid include-package pattern: %w", err)
	}
	if c.excludePackages, err = compileAll(f.ExcludePackages); err != nil {
		return nil, fmt.Errorf("invalid exclude-package pattern: %w", err)
	}
	if c.includeModules, err = compileAll(f.IncludeModules); err != nil {
		return nil, fmt.Errorf("invalid include-module pattern: %w", err)
	}
	if c.excludeModules, err = compileAll(f.ExcludeModules); err != nil {
		return nil, fmt.Errorf("invalid exclude-module pattern: %w", err)
	}
	if c.includeRes, err = compileAll(f.IncludeResourcePaths); err != nil {
		return nil, fmt.Errorf("invalid include-resource-path pattern: %w", err)
	}
	if c.excludeRes, err = compileAll(f.ExcludeResourcePaths); err != nil {
		return nil, fmt.Errorf("invalid exclude-resource-path pattern: %w", err)
	}
	return c, nil
}

func compileAll(patterns []string) ([]glob.Glob, error) {
	globs := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(p, '.', '/')
		if err != nil {
			return nil, fmt.Errorf("%q: %w", p, err)
		}
		globs = append(globs, g)
	}
	return globs, nil
}

// PackageOf returns the dotted package name for a slash-separated
// classfile logical path, e.g. "com/example/Foo.class" -> "com.example".
func PackageOf(logicalClassfilePath string) string {
	idx := strings.LastIndex(logicalClassfilePath, "/")
	if idx < 0 {
		return ""
	}
	return strings.ReplaceAll(logicalClassfilePath[:idx], "/", ".")
}

// MatchesPackage reports whether pkg (a dotted package name) is
// included: either there are no include patterns (include-all) or it
// matches one, and it does not match any exclude pattern.
func (c *Compiled) MatchesPackage(pkg string) bool {
	return matches(pkg, c.includePackages, c.excludePackages)
}

// MatchesModule reports whether a module name is included.
func (c *Compiled) MatchesModule(name string) bool {
	return matches(name, c.includeModules, c.excludeModules)
}

// MatchesResourcePath reports whether a classpath-element-relative
// resource path is included.
func (c *Compiled) MatchesResourcePath(path string) bool {
	return matches(path, c.includeRes, c.excludeRes)
}

func matches(s string, include, exclude []glob.Glob) bool {
	for _, g := range exclude {
		if g.Match(s) {
			return false
		}
	}
	if len(include) == 0 {
		return true
	}
	for _, g := range include {
		if g.Match(s) {
			return true
		}
	}
	return false
}
