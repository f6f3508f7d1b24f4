// Package nestedarchive owns extraction and caching of archives nested
// inside other archives (spec.md §3 "Ownership", §4.3 step 6, §5
// "Resource lifetimes"). It is the sole owner of the temporary files a
// scan creates, and is responsible for releasing them exactly once on
// scan termination.
//
// Extraction shares the "extract nested bytes to a temp file, then
// reopen that temp file as its own archive" shape used by the teacher
// pack's bindings/go/ctf/tar.go ExtractTAR, generalized here from a
// single tar-of-directory extraction to a chain of zip-of-zip
// extractions, and content-addressed with
// github.com/opencontainers/go-digest the way
// bindings/go/ctf/filesystem_ctf.go names blobs by digest -- so two
// identical nested-archive bytes reached via different outer archives
// share one temp file instead of being extracted twice.
package nestedarchive

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/opencontainers/go-digest"
)

var archiveExtensions = map[string]bool{
	".jar": true, ".zip": true, ".war": true, ".ear": true, ".jmod": true,
}

// IsArchiveName reports whether name looks like a nested archive rather
// than a terminal resource, based on its file extension.
func IsArchiveName(name string) bool {
	return archiveExtensions[strings.ToLower(path.Ext(name))]
}

// Handler extracts and caches nested archives for the lifetime of one
// scan. It is safe for concurrent use.
type Handler struct {
	tempDir string
	ownsDir bool

	mu      sync.Mutex
	opened  []*zip.ReadCloser
	tempFiles map[string]bool
}

// New creates a Handler rooted at tempDir, creating a fresh
// scan-scoped subdirectory under it (or under os.TempDir if tempDir is
// empty).
func New(tempDir string) (*Handler, error) {
	dir, err := os.MkdirTemp(tempDir, "cpscan-nested-*")
	if err != nil {
		return nil, fmt.Errorf("unable to create nested archive temp dir: %w", err)
	}
	return &Handler{tempDir: dir, ownsDir: true, tempFiles: make(map[string]bool)}, nil
}

// Resolved is the result of walking a path's inner-archive chain.
type Resolved struct {
	// Archive is the innermost *zip.Reader reached, or nil if
	// TerminalPath names a single resource rather than an archive.
	Archive *zip.Reader
	// CanonicalID is the nested element's synthesized identity,
	// "<outerID>!<seg1>!<seg2>...".
	CanonicalID string
	// TerminalPath is set when the chain's last segment is not itself
	// an archive: it is the logical path of a single resource inside
	// Archive (or, if the chain had exactly this one non-archive
	// segment, inside the outer archive itself).
	TerminalPath string
}

// Resolve walks innerChain, extracting and reopening each nested
// archive segment in turn, per spec.md §4.3 step 6.
func (h *Handler) Resolve(outerID string, outer *zip.Reader, innerChain []string) (Resolved, error) {
	currentZip := outer
	currentID := outerID

	for i, seg := range innerChain {
		last := i == len(innerChain)-1
		if last && !IsArchiveName(seg) {
			return Resolved{Archive: currentZip, CanonicalID: currentID, TerminalPath: seg}, nil
		}

		entry, err := findEntry(currentZip, seg)
		if err != nil {
			return Resolved{}, fmt.Errorf("nested archive segment %q not found in %q: %w", seg, currentID, err)
		}

		tempPath, err := h.extract(currentZip, entry)
		if err != nil {
			return Resolved{}, fmt.Errorf("unable to extract nested archive %q from %q: %w", seg, currentID, err)
		}

		rc, err := zip.OpenReader(tempPath)
		if err != nil {
			return Resolved{}, fmt.Errorf("unable to open extracted nested archive %q: %w", seg, err)
		}
		h.mu.Lock()
		h.opened = append(h.opened, rc)
		h.mu.Unlock()

		currentZip = &rc.Reader
		currentID = currentID + "!" + seg
	}

	return Resolved{Archive: currentZip, CanonicalID: currentID}, nil
}

// Track registers an externally-opened zip reader (the outermost
// archive in a nesting chain, opened directly from disk rather than
// extracted) so Close also closes it.
func (h *Handler) Track(rc *zip.ReadCloser) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.opened = append(h.opened, rc)
}

func findEntry(zr *zip.Reader, name string) (*zip.File, error) {
	name = strings.TrimPrefix(name, "/")
	for _, f := range zr.File {
		if strings.TrimPrefix(f.Name, "/") == name {
			return f, nil
		}
	}
	return nil, fmt.Errorf("entry not found")
}

// extract copies entry's bytes into a content-addressed temp file and
// returns its path, reusing an existing file if the same content was
// already extracted (from this or a different outer archive).
func (h *Handler) extract(_ *zip.Reader, entry *zip.File) (string, error) {
	rc, err := entry.Open()
	if err != nil {
		return "", fmt.Errorf("unable to open zip entry: %w", err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return "", fmt.Errorf("unable to read zip entry: %w", err)
	}

	dig := digest.FromBytes(data)
	name := strings.ReplaceAll(dig.Encoded(), "/", "_") + filepath.Ext(entry.Name)
	dest := filepath.Join(h.tempDir, name)

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.tempFiles[dest] {
		return dest, nil
	}
	if _, err := os.Stat(dest); err == nil {
		h.tempFiles[dest] = true
		return dest, nil
	}

	tmp, err := os.CreateTemp(h.tempDir, "extracting-*")
	if err != nil {
		return "", fmt.Errorf("unable to create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("unable to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("unable to close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		// Another goroutine may have raced us to the same destination;
		// that is fine, the content is identical by construction.
		os.Remove(tmp.Name())
	}
	h.tempFiles[dest] = true
	return dest, nil
}

// Close closes every opened nested-archive reader. If removeFiles is
// true it also deletes every extracted temp file and the scan's temp
// directory (spec.md §3 "Ownership": released on success only if
// RemoveTemporaryFilesAfterScan, otherwise left for later resource
// access and released when the scan result is closed).
func (h *Handler) Close(removeFiles bool) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	var errs []error
	for _, rc := range h.opened {
		if err := rc.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	h.opened = nil

	if removeFiles && h.ownsDir {
		if err := os.RemoveAll(h.tempDir); err != nil {
			errs = append(errs, err)
		}
		h.tempFiles = map[string]bool{}
	}

	switch len(errs) {
	case 0:
		return nil
	case 1:
		return errs[0]
	default:
		return fmt.Errorf("multiple errors closing nested archive handler: %v", errs)
	}
}
