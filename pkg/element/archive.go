package element

import (
	"archive/zip"
	"bufio"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/cpscan/cpscan/internal/pathutil"
	"github.com/cpscan/cpscan/internal/workqueue"
)

// archiveBackend holds the opened zip view for an Archive element,
// which may be the archive named directly on disk or the innermost
// archive reached after walking a nested-archive chain (spec.md §4.3
// step 6).
type archiveBackend struct {
	zr *zip.Reader
	// terminalPath is set when the raw path's inner chain named a
	// single resource rather than an archive: the element effectively
	// has one resource, itself.
	terminalPath string
}

const manifestPath = "META-INF/MANIFEST.MF"

// openArchive implements spec.md §4.3 steps 5-6: open the archive
// (directly, or via the Nested Archive Handler if an inner chain was
// present), then parse its manifest for Class-Path cross-references
// and Add-Exports/Add-Opens directives.
func (r *Registry) openArchive(ctx context.Context, el *Element, resolved pathutil.Resolved, qh *workqueue.Handle[OpenerUnit]) error {
	rc, err := zip.OpenReader(el.CanonicalID)
	if err != nil {
		return fmt.Errorf("unable to open archive: %w", err)
	}

	outerFSPath := el.CanonicalID
	zr := &rc.Reader

	if len(resolved.Inner) > 0 {
		result, err := r.nested.Resolve(el.CanonicalID, zr, resolved.Inner)
		if err != nil {
			rc.Close()
			return fmt.Errorf("unable to resolve nested archive chain: %w", err)
		}
		r.nested.Track(rc)
		el.CanonicalID = result.CanonicalID
		el.archive = &archiveBackend{zr: result.Archive, terminalPath: result.TerminalPath}
	} else {
		r.nested.Track(rc)
		el.archive = &archiveBackend{zr: zr}
	}

	if el.archive.terminalPath != "" {
		// A single named resource, not a full archive: no manifest to
		// consult for cross-references.
		return nil
	}

	manifestFile, ok := findManifest(el.archive.zr)
	if !ok {
		return nil
	}
	mf, err := manifestFile.Open()
	if err != nil {
		return fmt.Errorf("unable to open manifest: %w", err)
	}
	defer mf.Close()

	attrs, err := parseManifest(mf)
	if err != nil {
		return fmt.Errorf("unable to parse manifest: %w", err)
	}

	baseDir := filepath.Dir(outerFSPath)
	for idx, token := range strings.Fields(attrs["Class-Path"]) {
		childRawPath := filepath.ToSlash(filepath.Join(baseDir, token))
		el.Children = append(el.Children, ChildRef{RawPath: childRawPath, OrderIndex: idx})
		qh.AddWorkUnits(OpenerUnit{RawPath: childRawPath, ParentID: el.CanonicalID, OrderIndex: idx})
	}

	if r.spec.ModulePathInfo != nil {
		for _, token := range strings.Fields(attrs["Add-Exports"]) {
			r.spec.ModulePathInfo.AddExport(token)
		}
		for _, token := range strings.Fields(attrs["Add-Opens"]) {
			r.spec.ModulePathInfo.AddOpen(token)
		}
	}

	return nil
}

func findManifest(zr *zip.Reader) (*zip.File, bool) {
	for _, f := range zr.File {
		if strings.EqualFold(strings.TrimPrefix(f.Name, "/"), manifestPath) {
			return f, true
		}
	}
	return nil, false
}

// parseManifest reads a JAR manifest's main section into a flat
// attribute map, handling the format's line-continuation rule (a
// line beginning with a single space continues the previous line).
func parseManifest(r io.Reader) (map[string]string, error) {
	attrs := make(map[string]string)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var lastKey string
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, " ") {
			if lastKey != "" {
				attrs[lastKey] += strings.TrimPrefix(line, " ")
			}
			continue
		}
		idx := strings.Index(line, ":")
		if idx < 0 {
			continue
		}
		key := strings.TrimSpace(line[:idx])
		value := strings.TrimSpace(line[idx+1:])
		attrs[key] = value
		lastKey = key
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return attrs, nil
}

// listResources enumerates this archive's entries in archive-entry
// order (spec.md §5 "Ordering guarantees").
func (b *archiveBackend) listResources() []*Resource {
	if b.terminalPath != "" {
		for _, f := range b.zr.File {
			if strings.TrimPrefix(f.Name, "/") == b.terminalPath {
				return []*Resource{resourceFromZipEntry(f)}
			}
		}
		return nil
	}

	resources := make([]*Resource, 0, len(b.zr.File))
	for _, f := range b.zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		resources = append(resources, resourceFromZipEntry(f))
	}
	return resources
}

func resourceFromZipEntry(f *zip.File) *Resource {
	logicalPath := strings.TrimPrefix(f.Name, "/")
	return &Resource{
		LogicalPath: logicalPath,
		ModTime:     f.Modified,
		IsClassfile: strings.HasSuffix(logicalPath, ".class"),
		Open: func() (io.ReadCloser, error) {
			return f.Open()
		},
	}
}
