// Package scan implements the Scan Engine: the orchestrator that ties
// every phase together into one call (spec.md §4 "Scan Engine
// (orchestration)", §7 "End-to-end scan algorithm").
package scan

import (
	"context"
	"fmt"
	"io"
	"runtime"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/cpscan/cpscan/internal/cancel"
	"github.com/cpscan/cpscan/internal/link"
	"github.com/cpscan/cpscan/internal/log"
	"github.com/cpscan/cpscan/internal/mask"
	"github.com/cpscan/cpscan/internal/nestedarchive"
	"github.com/cpscan/cpscan/internal/nestedroot"
	"github.com/cpscan/cpscan/internal/orderer"
	"github.com/cpscan/cpscan/internal/upward"
	"github.com/cpscan/cpscan/internal/workqueue"
	"github.com/cpscan/cpscan/pkg/classfile"
	"github.com/cpscan/cpscan/pkg/classinfo"
	"github.com/cpscan/cpscan/pkg/element"
	"github.com/cpscan/cpscan/pkg/scanspec"
)

// Input bundles everything a Scan call needs: the classpath discovery
// collaborator's output (spec.md §6 "Classpath discovery collaborator")
// plus the spec and the remaining out-of-core collaborators (parser,
// logger).
type Input struct {
	RawPaths            []string
	ClassLoaderContexts map[string][]string
	SystemModules       []element.ModuleRef
	NonSystemModules    []element.ModuleRef

	Spec *scanspec.ScanSpec

	// Parser parses one classfile resource. Defaults to
	// classfile.DefaultParser{} if nil.
	Parser classfile.Parser
	// TempDir roots nested-archive extraction temp files; empty means
	// os.TempDir.
	TempDir string
	Logger  *log.Node
}

// Result is the output of one scan (spec.md §6 "Output contract"):
// the final element order, and -- unless PerformScan was false -- the
// Linked Type Graph.
type Result struct {
	FinalOrder []*element.Element
	Graph      *classinfo.Graph
	Registry   *element.Registry

	nested      *nestedarchive.Handler
	removedTemp bool
}

// Close releases nested-archive temp files that the scan left available
// for later resource access when RemoveTemporaryFilesAfterScan was false (spec.md §3 "Ownership"). Safe
// to call even if RemoveTemporaryFilesAfterScan already released them
// during Scan.
func (r *Result) Close() error {
	if r.removedTemp {
		return nil
	}
	return r.nested.Close(true)
}

// Scan runs the full pipeline: open, order, detect nested roots, scan
// paths, mask, and -- if enabled -- parse classfiles, run the
// upward-closure scheduler, and link the result (spec.md §7).
func Scan(ctx context.Context, in Input) (*Result, error) {
	if in.Spec == nil {
		in.Spec = scanspec.New()
	}
	parser := in.Parser
	if parser == nil {
		parser = classfile.DefaultParser{}
	}
	logNode := in.Logger

	filters, err := in.Spec.Filters.Compile()
	if err != nil {
		return nil, fmt.Errorf("unable to compile scan-spec filters: %w", err)
	}

	nested, err := nestedarchive.New(in.TempDir)
	if err != nil {
		return nil, err
	}

	registry := element.NewRegistry(in.Spec, nested)
	registry.SetClassLoaderContext(in.ClassLoaderContexts)

	monitor, ctx := cancel.New(ctx)
	parallelism := parallelismFor(in.Spec.Parallelism, len(in.RawPaths))

	if err := openPhase(ctx, monitor, parallelism, in, registry, filters, logNode); err != nil {
		_ = nested.Close(true)
		return nil, err
	}

	toplevel := resolveToplevel(registry, in.RawPaths)
	finalOrder := orderer.Order(registry, toplevel)
	nestedroot.Detect(finalOrder)

	result := &Result{FinalOrder: finalOrder, Registry: registry, nested: nested}

	// PerformScan=false short-circuits immediately after ordering: the
	// caller only wanted the final element order, not its contents
	// (scanspec.ScanSpec.PerformScan doc comment).
	if !in.Spec.PerformScan {
		return result, finalize(result, in.Spec.RemoveTemporaryFilesAfterScan)
	}

	if err := scanPathsPhase(ctx, monitor, parallelism, finalOrder, filters, logNode); err != nil {
		_ = nested.Close(true)
		return nil, err
	}
	mask.Apply(finalOrder)

	if !in.Spec.EnableClassInfo {
		return result, finalize(result, in.Spec.RemoveTemporaryFilesAfterScan)
	}

	records, err := classfileScanPhase(ctx, monitor, parallelism, finalOrder, in.Spec, parser, logNode)
	if err != nil {
		_ = nested.Close(true)
		return nil, err
	}

	result.Graph = link.Link(records, moduleOfFunc(in.SystemModules, in.NonSystemModules))
	return result, finalize(result, in.Spec.RemoveTemporaryFilesAfterScan)
}

func finalize(r *Result, removeTemp bool) error {
	if !removeTemp {
		return nil
	}
	r.removedTemp = true
	return r.nested.Close(true)
}

func parallelismFor(configured, workload int) int {
	if configured > 0 {
		return configured
	}
	n := runtime.NumCPU()
	if workload > 0 && workload < n {
		n = workload
	}
	if n < 1 {
		n = 1
	}
	return n
}

// openPhase runs the opener work queue over every raw classpath entry
// plus every module reference included by the scan spec's module
// filters (spec.md §4.3, §4.4 "Modules ... are prepended to this
// order").
func openPhase(ctx context.Context, monitor *cancel.Monitor, parallelism int, in Input, registry *element.Registry, filters *scanspec.Compiled, logNode *log.Node) error {
	units := make([]element.OpenerUnit, 0, len(in.RawPaths))
	for i, p := range in.RawPaths {
		units = append(units, element.OpenerUnit{RawPath: p, OrderIndex: i})
	}

	// Raw-path opening and module opening touch disjoint parts of the
	// registry's canonical-ID space, so they run concurrently rather
	// than one after the other.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		workqueue.Run(gctx, monitor, parallelism, units, func(c context.Context, unit element.OpenerUnit, qh *workqueue.Handle[element.OpenerUnit]) error {
			return registry.Open(log.WithContext(c, logNode), unit, qh)
		})
		return nil
	})
	if in.Spec.ScanModules {
		g.Go(func() error {
			// Modules are prepended to the final order (spec.md §4.4), so
			// they get negative order indices: system modules first, then
			// non-system modules, both strictly before every raw path's
			// 0-based index.
			total := len(in.SystemModules) + len(in.NonSystemModules)
			openModules(registry, in.SystemModules, -total, in.Spec.EnableSystemJarsAndModules, len(in.Spec.Filters.IncludeModules) == 0, filters)
			openModules(registry, in.NonSystemModules, -total+len(in.SystemModules), false, false, filters)
			return nil
		})
	}
	_ = g.Wait()

	if monitor.Tripped() {
		return monitor.Err()
	}
	return nil
}

// openModules registers every ref allowed by the module inclusion
// rule spec.md §4.4 specifies: "System modules are scanned iff
// (system-modules-enabled ∧ include list empty) ∨ (specifically
// included ∧ not excluded); non-system modules are scanned iff
// (included ∧ not excluded)."
func openModules(registry *element.Registry, refs []element.ModuleRef, orderBase int, systemEnabled, includeListEmpty bool, filters *scanspec.Compiled) {
	for i, ref := range refs {
		included := filters.MatchesModule(ref.Name)
		allowed := included
		if ref.IsSystem {
			// With an empty include list MatchesModule accepts every
			// name, so that alone does not count as specifically included.
			specificallyIncluded := included && !includeListEmpty
			allowed = (systemEnabled && includeListEmpty) || specificallyIncluded
		}
		if !allowed {
			continue
		}
		_, _ = registry.OpenModule(ref, orderBase+i)
	}
}

// resolveToplevel turns the original raw paths and any opened module
// elements back into Element pointers, in discovery order, so
// internal/orderer can sort and DFS from them.
func resolveToplevel(registry *element.Registry, rawPaths []string) []*element.Element {
	var toplevel []*element.Element
	for _, p := range rawPaths {
		if el, ok := registry.Lookup(p); ok {
			toplevel = append(toplevel, el)
		}
	}
	registry.Range(func(el *element.Element) bool {
		if el.Kind == element.KindModule {
			toplevel = append(toplevel, el)
		}
		return true
	})
	return toplevel
}

// scanPathsPhase runs ScanPaths over every element in finalOrder. A
// single element's path-scan I/O failure is a per-artifact failure, not
// a per-system one (spec.md §7): it marks that element Skip and logs,
// the same recovery ScanPaths' own caller-side failures get, rather
// than tripping cancellation and aborting the whole scan.
func scanPathsPhase(ctx context.Context, monitor *cancel.Monitor, parallelism int, finalOrder []*element.Element, filters *scanspec.Compiled, logNode *log.Node) error {
	workqueue.Run(ctx, monitor, parallelism, finalOrder, func(c context.Context, el *element.Element, _ *workqueue.Handle[*element.Element]) error {
		if err := el.ScanPaths(c, filters); err != nil {
			el.Skip = true
			el.SkipReason = err
			logNode.Warn("unable to scan element paths, skipping element", "element", el.String(), "error", err)
		}
		return nil
	})
	if monitor.Tripped() {
		return monitor.Err()
	}
	return nil
}

// classfileScanPhase parses every whitelisted classfile resource
// across finalOrder, running the Upward-Closure Scheduler when
// enabled (spec.md §4.8, §4.9).
func classfileScanPhase(ctx context.Context, monitor *cancel.Monitor, parallelism int, finalOrder []*element.Element, spec *scanspec.ScanSpec, parser classfile.Parser, logNode *log.Node) ([]*classfile.UnlinkedRecord, error) {
	scanned := upward.NewScannedNames()
	scanned.PreSeed(preSeedNames(finalOrder))
	scheduler := upward.New(finalOrder, scanned)

	var initial []element.ClassfileUnit
	for _, el := range finalOrder {
		for _, res := range el.WhitelistedClassfileResources {
			initial = append(initial, element.ClassfileUnit{Element: el, Resource: res})
		}
	}

	var (
		mu      sync.Mutex
		records []*classfile.UnlinkedRecord
	)

	workqueue.Run(ctx, monitor, parallelism, initial, func(c context.Context, unit element.ClassfileUnit, qh *workqueue.Handle[element.ClassfileUnit]) error {
		rc, err := unit.Resource.Open()
		if err != nil {
			logNode.Warn("unable to open resource for classfile parsing", "path", unit.Resource.LogicalPath, "error", err)
			return nil
		}
		data, err := readAll(rc)
		if err != nil {
			logNode.Warn("unable to read resource for classfile parsing", "path", unit.Resource.LogicalPath, "error", err)
			return nil
		}

		record, err := parser.Parse(c, classfile.ParseRequest{
			ElementID:   unit.Element.CanonicalID,
			LogicalPath: unit.Resource.LogicalPath,
			Data:        data,
			IsExternal:  unit.IsExternal,
		})
		if err != nil {
			logNode.Warn("unable to parse classfile", "path", unit.Resource.LogicalPath, "error", err)
			return nil
		}
		if record == nil {
			return nil
		}

		mu.Lock()
		records = append(records, record)
		mu.Unlock()

		if spec.ExtendScanningUpwardsToExternalClasses {
			scheduler.Schedule(record, unit.Element, qh, logNode)
		}
		return nil
	})

	if monitor.Tripped() {
		return nil, monitor.Err()
	}
	return records, nil
}

// preSeedNames implements spec.md §4.9 step 1: before the classfile
// scan phase starts, the set of already-scheduled type names is
// pre-populated with every included classfile's type name, derived
// from its logical path rather than parsed, so the Upward-Closure
// Scheduler never re-enqueues a resource the ordinary scan already
// covers.
func preSeedNames(finalOrder []*element.Element) []string {
	var names []string
	for _, el := range finalOrder {
		for _, res := range el.WhitelistedClassfileResources {
			names = append(names, resourcePathToDotted(res.LogicalPath))
		}
	}
	return names
}

func readAll(rc io.ReadCloser) ([]byte, error) {
	defer rc.Close()
	return io.ReadAll(rc)
}

func resourcePathToDotted(logicalPath string) string {
	trimmed := strings.TrimSuffix(logicalPath, ".class")
	return strings.ReplaceAll(trimmed, "/", ".")
}

// moduleOfFunc builds the Linker's module-ownership lookup directly
// from the discovery collaborator's system/non-system split (spec.md
// §6 "module references split into system vs non-system"): a record's
// ElementID is a Module element's CanonicalID, which OpenModule sets
// to the module's name (spec.md §3 "Identity: canonical path/module
// name").
func moduleOfFunc(systemModules, nonSystemModules []element.ModuleRef) link.ModuleOf {
	isSystem := make(map[string]bool, len(systemModules)+len(nonSystemModules))
	for _, ref := range systemModules {
		isSystem[ref.Name] = true
	}
	for _, ref := range nonSystemModules {
		if _, ok := isSystem[ref.Name]; !ok {
			isSystem[ref.Name] = false
		}
	}
	return func(elementID string) (string, bool, bool) {
		system, ok := isSystem[elementID]
		if !ok {
			return "", false, false
		}
		return elementID, system, true
	}
}
