// Package pathutil normalizes raw classpath path strings into their
// filesystem base, inner-archive chain, and scheme, per spec.md's path
// grammar: [scheme ":"]? base ("!" inner)*.
package pathutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Scheme identifies how a raw path's base should be interpreted.
type Scheme int

const (
	// SchemeFile is a plain or file:/jar: prefixed local filesystem path.
	SchemeFile Scheme = iota
	// SchemeRemote is an http(s):// URL, used verbatim as canonical identity.
	SchemeRemote
)

// Resolved is the parsed form of one raw classpath path string.
type Resolved struct {
	Scheme Scheme
	// Base is the filesystem path (for SchemeFile) or the full URL (for
	// SchemeRemote) before any inner-archive splitting.
	Base string
	// Inner is the chain of nested-archive-internal paths found after
	// each "!" separator, in order from outermost to innermost.
	Inner []string
}

var remoteSchemes = []string{"http://", "https://"}

// Resolve implements spec.md §4.3 steps 1-2: classify the scheme, strip
// jar:/file: prefixes, normalize separators, and split at "!".
func Resolve(raw string) (Resolved, error) {
	if raw == "" {
		return Resolved{}, fmt.Errorf("empty classpath entry")
	}

	for _, scheme := range remoteSchemes {
		if strings.HasPrefix(raw, scheme) {
			return Resolved{Scheme: SchemeRemote, Base: raw}, nil
		}
	}

	s := raw
	s = strings.TrimPrefix(s, "jar:")
	s = strings.TrimPrefix(s, "file:")
	s = filepath.ToSlash(s)

	parts := strings.Split(s, "!")
	base := parts[0]
	base = strings.TrimSuffix(base, "/")

	var inner []string
	for _, p := range parts[1:] {
		p = strings.Trim(p, "/")
		if p != "" {
			inner = append(inner, p)
		}
	}

	if !filepath.IsAbs(base) {
		wd, err := os.Getwd()
		if err != nil {
			return Resolved{}, fmt.Errorf("unable to resolve relative path %q: %w", raw, err)
		}
		base = filepath.ToSlash(filepath.Join(wd, base))
	}

	return Resolved{Scheme: SchemeFile, Base: base, Inner: inner}, nil
}

// Canonicalize resolves symlinks and ".."/"." segments in a filesystem
// base path, returning the fully-resolved canonical form used as
// Classpath Element identity. Idempotent: canonicalizing an already
// canonical path returns it unchanged, which is what lets callers retry
// a Singleton Map lookup at most once after canonicalization
// (spec.md §4.3 step 3).
func Canonicalize(base string) (string, error) {
	resolved, err := filepath.EvalSymlinks(base)
	if err != nil {
		// The path may not exist yet, or may be a synthetic identity
		// (a remote URL never reaches here). Fall back to lexical
		// cleaning so callers can still classify existence downstream.
		return filepath.ToSlash(filepath.Clean(base)), nil
	}
	return filepath.ToSlash(resolved), nil
}
