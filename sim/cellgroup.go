package sim

import (
	"fmt"
	"sync"
)

// CellGroup advances a set of cells through integration epochs. The driver
// guarantees that Advance for epoch k is called at most once, after the
// group's event lanes for k have been assembled, and that Spikes and
// ClearSpikes are called from the same task as Advance.
type CellGroup interface {
	Reset()
	// Advance integrates all cells in the group to ep.T1 with time step dt,
	// consuming the group's slice of event lanes. Spikes produced are held
	// internally until ClearSpikes.
	Advance(ep Epoch, dt TimeType, lanes []EventLane) error
	Spikes() []Spike
	ClearSpikes()

	AddSampler(h SamplerHandle, probes ProbePredicate, sched Schedule, fn SamplerFunc, policy SamplingPolicy)
	RemoveSampler(h SamplerHandle)
	RemoveAllSamplers()
	ProbeMetadata(id CellMember) []ProbeMetadata
	SetBinningPolicy(kind BinningKind, interval TimeType)
}

// GroupFactory instantiates a cell group for the given gids and publishes
// the per-cell source and target label ranges the cells expose.
type GroupFactory func(gids []GID, rec Recipe) (group CellGroup, sources, targets []CellLabels, err error)

type factoryKey struct {
	kind    CellKind
	backend BackendKind
}

var (
	factoryMu sync.RWMutex
	factories = make(map[factoryKey]GroupFactory)
)

// RegisterGroupFactory registers the implementation for a (kind, backend)
// pair. Implementation sub-packages call this from init().
func RegisterGroupFactory(kind CellKind, backend BackendKind, f GroupFactory) {
	factoryMu.Lock()
	defer factoryMu.Unlock()
	factories[factoryKey{kind: kind, backend: backend}] = f
}

// groupFactory looks up the registered implementation for (kind, backend).
func groupFactory(kind CellKind, backend BackendKind) (GroupFactory, error) {
	factoryMu.RLock()
	defer factoryMu.RUnlock()
	f, ok := factories[factoryKey{kind: kind, backend: backend}]
	if !ok {
		return nil, fmt.Errorf("no cell group implementation registered for kind %q on backend %q", kind, backend)
	}
	return f, nil
}
