// Package scanspec defines the scan engine's input contract: feature
// toggles and include/exclude filters (spec.md §6 "Input contract").
package scanspec

import "sync"

// ScanSpec configures one Scan call. In the zero value PerformScan and
// EnableClassInfo are false, so a scan only opens and orders the
// classpath, with no upward closure and no module support; New returns
// a spec that also scans paths and parses and links classfiles.
type ScanSpec struct {
	// ScanModules enables scanning of Module classpath elements.
	ScanModules bool
	// EnableSystemJarsAndModules, when true and no module is explicitly
	// included, also scans the JDK's own system modules.
	EnableSystemJarsAndModules bool
	// EnableClassInfo must be true for the classfile-scan and link
	// phases to run at all; see PerformScan.
	EnableClassInfo bool
	// ExtendScanningUpwardsToExternalClasses enables the
	// Upward-Closure Scheduler (spec.md §4.9).
	ExtendScanningUpwardsToExternalClasses bool
	// PerformScan, when false, short-circuits after ordering: the
	// returned result carries only the final element order (spec.md
	// §6 Output contract, §4 SUPPLEMENTED FEATURES).
	PerformScan bool
	// RemoveTemporaryFilesAfterScan releases nested-archive extraction
	// temp files as soon as the scan completes successfully, instead
	// of leaving them available for later resource reads.
	RemoveTemporaryFilesAfterScan bool

	// Filters restrict which packages, modules, and resources are
	// considered "included" for masking, closure, and linking.
	Filters Filters

	// Parallelism is the number of workers used by each work-queue
	// phase. Zero means "caller chooses a default", typically
	// min(runtime.NumCPU(), number of entries), floored at 1.
	Parallelism int

	// ModulePathInfo accumulates Add-Exports/Add-Opens directives
	// discovered in archive manifests during opening (spec.md §4.3
	// step 5, §6 "Manifest directives consumed").
	ModulePathInfo *ModulePathInfo
}

// ModulePathInfo accumulates JVM module-path directives discovered
// while opening archive manifests. Archive manifests are parsed
// concurrently by the opener work queue, so appends are synchronized.
type ModulePathInfo struct {
	mu         sync.Mutex
	AddExports []string
	AddOpens   []string
}

// AddExport appends one Add-Exports token with the ALL-UNNAMED sentinel
// applied, per spec.md §6.
func (m *ModulePathInfo) AddExport(token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.AddExports = append(m.AddExports, token+"=ALL-UNNAMED")
}

// AddOpen appends one Add-Opens token with the ALL-UNNAMED sentinel
// applied, per spec.md §6.
func (m *ModulePathInfo) AddOpen(token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.AddOpens = append(m.AddOpens, token+"=ALL-UNNAMED")
}

// New returns a ScanSpec with classfile scanning enabled and an
// initialized ModulePathInfo, the configuration most callers want.
func New() *ScanSpec {
	return &ScanSpec{
		EnableClassInfo: true,
		PerformScan:     true,
		ModulePathInfo:  &ModulePathInfo{},
		Filters:         Filters{},
	}
}
