package loader

import (
	"sync"
	"time"

	"github.com/geocatalog/pkg/catalog"
	"github.com/geocatalog/pkg/parallel"
)

// Phase is a stage of a catalog load, in execution order.
type Phase int

const (
	PhaseGlobalStyles Phase = iota
	PhaseDefaultStyles
	PhaseWorkspaces
	PhaseDefaultWorkspace
	PhaseGlobalLayerGroups
	PhaseFinalResolve
)

// Phases lists every phase in execution order.
var Phases = []Phase{
	PhaseGlobalStyles,
	PhaseDefaultStyles,
	PhaseWorkspaces,
	PhaseDefaultWorkspace,
	PhaseGlobalLayerGroups,
	PhaseFinalResolve,
}

func (p Phase) String() string {
	switch p {
	case PhaseGlobalStyles:
		return "global_styles"
	case PhaseDefaultStyles:
		return "default_styles"
	case PhaseWorkspaces:
		return "workspaces"
	case PhaseDefaultWorkspace:
		return "default_workspace"
	case PhaseGlobalLayerGroups:
		return "global_layer_groups"
	case PhaseFinalResolve:
		return "final_resolve"
	}
	return "unknown"
}

// Failure is a record file that could not be read or decoded.
type Failure struct {
	Path string
	Err  error
}

// Drop is a decoded object that did not make it into the catalog, or was
// evicted by the final consistency pass.
type Drop struct {
	Phase  Phase
	Path   string
	Object string
	Kind   catalog.Kind
	Err    error
}

// Patch is an object inserted after fallbacks were applied to it.
type Patch struct {
	Path     string
	Object   string
	Messages []string
}

// PhaseTiming records how long a phase took and how many records it consumed.
type PhaseTiming struct {
	Phase    Phase
	Duration time.Duration
	Records  int
}

// Report summarizes a load. For a completed load,
// catalog size == Decoded + Seeded - len(Dropped).
type Report struct {
	Parallelism int
	// Decoded counts the objects handed to the consumer.
	Decoded int
	// Seeded counts the default styles added by the loader itself.
	Seeded  int
	Added   map[catalog.Kind]int
	Failed  []Failure
	Dropped []Drop
	Patched []Patch
	Phases  []PhaseTiming
	Pool    parallel.PoolMetrics
	Elapsed time.Duration

	// Failed is appended to by producers, everything else by the consumer.
	mu sync.Mutex
}

func newReport() *Report {
	return &Report{Added: make(map[catalog.Kind]int)}
}

func (r *Report) fail(path string, err error) {
	r.mu.Lock()
	r.Failed = append(r.Failed, Failure{Path: path, Err: err})
	r.mu.Unlock()
}

// Failures returns a copy of the read and decode failures.
func (r *Report) Failures() []Failure {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Failure(nil), r.Failed...)
}

// Timing returns the timing of phase p.
func (r *Report) Timing(p Phase) (PhaseTiming, bool) {
	for _, t := range r.Phases {
		if t.Phase == p {
			return t, true
		}
	}
	return PhaseTiming{}, false
}

// TotalAdded returns the number of objects inserted, seeded styles included.
func (r *Report) TotalAdded() int {
	n := 0
	for _, c := range r.Added {
		n += c
	}
	return n
}
