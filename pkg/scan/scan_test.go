package scan

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cpscan/cpscan/internal/cancel"
	"github.com/cpscan/cpscan/internal/nestedarchive"
	"github.com/cpscan/cpscan/pkg/classfile"
	"github.com/cpscan/cpscan/pkg/element"
	"github.com/cpscan/cpscan/pkg/scanspec"
)

func writeClassfile(t *testing.T, dir, rel string, rec *classfile.UnlinkedRecord) {
	t.Helper()
	full := filepath.Join(dir, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	// The fake parser below keys records off LogicalPath, not real
	// classfile bytes, so any non-empty placeholder content suffices.
	require.NoError(t, os.WriteFile(full, []byte("classfile-stub"), 0o644))
	_ = rec
}

// fakeParser maps a resource's logical path to a pre-built record,
// standing in for classfile.DefaultParser so tests don't need to
// fabricate real JVM binary bytes.
type fakeParser struct {
	byPath map[string]*classfile.UnlinkedRecord
}

func (f fakeParser) Parse(_ context.Context, req classfile.ParseRequest) (*classfile.UnlinkedRecord, error) {
	rec, ok := f.byPath[req.LogicalPath]
	if !ok {
		return nil, nil
	}
	clone := *rec
	clone.ElementID = req.ElementID
	clone.IsExternalClass = req.IsExternal
	return &clone, nil
}

func TestScan_SingleDirectoryProducesLinkedGraph(t *testing.T) {
	dir := t.TempDir()
	writeClassfile(t, dir, "a/A.class", &classfile.UnlinkedRecord{TypeName: "a.A", SuperclassName: "a.B"})
	writeClassfile(t, dir, "a/B.class", &classfile.UnlinkedRecord{TypeName: "a.B"})

	parser := fakeParser{byPath: map[string]*classfile.UnlinkedRecord{
		"a/A.class": {TypeName: "a.A", SuperclassName: "a.B"},
		"a/B.class": {TypeName: "a.B"},
	}}

	result, err := Scan(context.Background(), Input{
		RawPaths: []string{dir},
		Spec:     scanspec.New(),
		Parser:   parser,
	})
	require.NoError(t, err)
	defer result.Close()

	require.Len(t, result.FinalOrder, 1)
	require.NotNil(t, result.Graph)

	a := result.Graph.Classes["a.A"]
	require.NotNil(t, a)
	require.NotNil(t, a.Superclass)
	assert.Equal(t, "a.B", a.Superclass.Name)
	assert.False(t, a.Superclass.IsPlaceholder)
}

func TestScan_PerformScanFalseSkipsContents(t *testing.T) {
	dir := t.TempDir()
	writeClassfile(t, dir, "a/A.class", &classfile.UnlinkedRecord{TypeName: "a.A"})

	spec := scanspec.New()
	spec.PerformScan = false

	result, err := Scan(context.Background(), Input{RawPaths: []string{dir}, Spec: spec})
	require.NoError(t, err)
	defer result.Close()

	require.Len(t, result.FinalOrder, 1)
	assert.Nil(t, result.Graph)
	assert.Empty(t, result.FinalOrder[0].Resources, "PerformScan=false must not run the path-scan phase")
}

func TestScan_UnreadableEntryIsSkippedNotFatal(t *testing.T) {
	result, err := Scan(context.Background(), Input{
		RawPaths: []string{filepath.Join(t.TempDir(), "does-not-exist")},
		Spec:     scanspec.New(),
	})
	require.NoError(t, err)
	defer result.Close()
	assert.Empty(t, result.FinalOrder)
}

func TestScanPathsPhase_IOFailureSkipsElementNotFatal(t *testing.T) {
	dir := t.TempDir()

	spec := scanspec.New()
	nested, err := nestedarchive.New(t.TempDir())
	require.NoError(t, err)
	defer nested.Close(true)

	registry := element.NewRegistry(spec, nested)
	monitor, ctx := cancel.New(context.Background())

	require.NoError(t, registry.Open(ctx, element.OpenerUnit{RawPath: dir, OrderIndex: 0}, nil))
	el, ok := registry.Lookup(dir)
	require.True(t, ok)
	require.False(t, el.Skip)

	// Remove the directory after it was opened but before paths are
	// scanned, forcing ScanPaths to fail for reasons outside the
	// element's own control.
	require.NoError(t, os.RemoveAll(dir))

	filters, err := spec.Filters.Compile()
	require.NoError(t, err)

	err = scanPathsPhase(ctx, monitor, 1, []*element.Element{el}, filters, nil)
	require.NoError(t, err, "a single element's path-scan I/O failure must not fail the phase")
	assert.True(t, el.Skip, "the element should be marked skipped")
	assert.False(t, monitor.Tripped(), "a per-artifact failure must not trip cancellation")
}

func TestScan_UpwardClosureFindsExternalType(t *testing.T) {
	ownerDir := t.TempDir()
	externalDir := t.TempDir()
	writeClassfile(t, ownerDir, "a/A.class", nil)
	writeClassfile(t, externalDir, "x/B.class", nil)

	parser := fakeParser{byPath: map[string]*classfile.UnlinkedRecord{
		"a/A.class": {TypeName: "a.A", SuperclassName: "x.B"},
		"x/B.class": {TypeName: "x.B"},
	}}

	spec := scanspec.New()
	spec.ExtendScanningUpwardsToExternalClasses = true
	spec.Filters.IncludePackages = []string{"a"}

	result, err := Scan(context.Background(), Input{
		RawPaths: []string{ownerDir, externalDir},
		Spec:     spec,
		Parser:   parser,
	})
	require.NoError(t, err)
	defer result.Close()

	b := result.Graph.Classes["x.B"]
	require.NotNil(t, b)
	assert.False(t, b.IsPlaceholder, "upward closure should have scheduled x.B for parsing")
	assert.True(t, b.IsExternalClass)
}
