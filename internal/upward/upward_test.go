package upward

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cpscan/cpscan/internal/cancel"
	"github.com/cpscan/cpscan/internal/log"
	"github.com/cpscan/cpscan/internal/nestedarchive"
	"github.com/cpscan/cpscan/internal/workqueue"
	"github.com/cpscan/cpscan/pkg/classfile"
	"github.com/cpscan/cpscan/pkg/element"
	"github.com/cpscan/cpscan/pkg/scanspec"
)

func TestScannedNames_AddIfAbsent(t *testing.T) {
	s := NewScannedNames()
	assert.True(t, s.AddIfAbsent("a.B"))
	assert.False(t, s.AddIfAbsent("a.B"))
}

func TestScannedNames_PreSeed(t *testing.T) {
	s := NewScannedNames()
	s.PreSeed([]string{"a.B", "a.C"})
	assert.False(t, s.AddIfAbsent("a.B"))
	assert.True(t, s.AddIfAbsent("a.D"))
}

type noopCanceller struct{}

func (noopCanceller) Tripped() bool { return false }

func openDirElement(t *testing.T, files map[string]string) *element.Element {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		full := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
	}

	nh, err := nestedarchive.New(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = nh.Close(true) })

	r := element.NewRegistry(scanspec.New(), nh)
	workqueue.Run(context.Background(), noopCanceller{}, 1, []element.OpenerUnit{{RawPath: dir}}, r.Open)

	el, ok := r.Lookup(dir)
	require.True(t, ok)
	require.NoError(t, el.ScanPaths(context.Background(), nil))
	return el
}

func TestSchedule_FindsInAnotherElement(t *testing.T) {
	owner := openDirElement(t, map[string]string{"a/A.class": "a"})
	external := openDirElement(t, map[string]string{"x/B.class": "b"})

	record := &classfile.UnlinkedRecord{SuperclassName: "x.B"}
	sched := New([]*element.Element{owner, external}, NewScannedNames())

	monitor, ctx := cancel.New(context.Background())
	var got []element.ClassfileUnit
	seed := element.ClassfileUnit{Element: owner, Resource: &element.Resource{LogicalPath: "seed"}}
	workqueue.Run(ctx, monitor, 1, []element.ClassfileUnit{seed},
		func(_ context.Context, unit element.ClassfileUnit, qh *workqueue.Handle[element.ClassfileUnit]) error {
			if unit.Resource.LogicalPath == "seed" {
				sched.Schedule(record, owner, qh, log.Root(nil))
				return nil
			}
			got = append(got, unit)
			return nil
		})

	require.Len(t, got, 1)
	assert.Same(t, external, got[0].Element)
	assert.True(t, got[0].IsExternal)
	assert.Equal(t, "x/B.class", got[0].Resource.LogicalPath)
}

func TestSchedule_SuppressesJavaLangObjectLog(t *testing.T) {
	owner := openDirElement(t, map[string]string{"a/A.class": "a"})
	record := &classfile.UnlinkedRecord{SuperclassName: "java.lang.Object"}

	sched := New([]*element.Element{owner}, NewScannedNames())
	monitor, ctx := cancel.New(context.Background())
	seed := element.ClassfileUnit{Element: owner, Resource: &element.Resource{LogicalPath: "seed"}}
	var logged bytes.Buffer
	logNode := log.Root(slog.New(slog.NewTextHandler(&logged, nil)))
	var got []element.ClassfileUnit
	workqueue.Run(ctx, monitor, 1, []element.ClassfileUnit{seed},
		func(_ context.Context, unit element.ClassfileUnit, qh *workqueue.Handle[element.ClassfileUnit]) error {
			if unit.Resource.LogicalPath == "seed" {
				sched.Schedule(record, owner, qh, logNode)
				return nil
			}
			got = append(got, unit)
			return nil
		})
	assert.Empty(t, got, "java.lang.Object is never found on the classpath")
	assert.Empty(t, logged.String(), "a missing java.lang.Object is not logged")
}

func TestDottedToResourcePath(t *testing.T) {
	assert.Equal(t, "com/example/Foo.class", dottedToResourcePath("com.example.Foo"))
}
