package sim

// CellKind names a family of cell dynamics. Concrete kinds are registered by
// implementation sub-packages (see RegisterGroupFactory).
type CellKind string

const (
	// KindLIF is a leaky integrate-and-fire cell.
	KindLIF CellKind = "lif"
	// KindSpikeSource is a passive cell that fires on a fixed schedule and
	// ignores incoming events.
	KindSpikeSource CellKind = "spike_source"
)

// BackendKind names the execution backend a cell group runs on.
type BackendKind string

const (
	// BackendMulticore is the shared-memory CPU backend.
	BackendMulticore BackendKind = "multicore"
)

// Connection describes one synaptic connection ending on a local cell.
// The source is addressed by gid and source label; the target by a label on
// the owning cell. Weight is applied on delivery; Delay separates spike time
// from delivery time and must be positive.
type Connection struct {
	Source      GID
	SourceLabel string
	TargetLabel string
	Weight      float32
	Delay       TimeType
}

// Recipe describes the network to simulate. Implementations must be
// query-only and safe for concurrent reads: construction interrogates the
// recipe from parallel group-building tasks.
type Recipe interface {
	// NumCells returns the global cell count.
	NumCells() int
	// CellKind returns the dynamics family of cell gid.
	CellKind(gid GID) CellKind
	// CellDescription returns the kind-specific parameters of cell gid, for
	// example a LIFCell or SpikeSourceCell value. The group implementation
	// registered for the kind decides what types it accepts.
	CellDescription(gid GID) any
	// ConnectionsOn returns the connections terminating on cell gid.
	ConnectionsOn(gid GID) []Connection
	// EventGenerators returns external event sources attached to cell gid.
	// The returned generators are owned by the simulation afterwards.
	EventGenerators(gid GID) []EventGenerator
	// MinExternalDelay is a lower bound on delivery latency of events that
	// arrive from outside the modeled connectivity (generators, injection).
	// Zero means unconstrained; a positive value participates in the global
	// minimum-delay computation that bounds the epoch length.
	MinExternalDelay() TimeType
}

// GroupDescription lists the cells of one group together with the kind and
// backend used to instantiate it.
type GroupDescription struct {
	Kind    CellKind
	Backend BackendKind
	GIDs    []GID
}

// DomainDecomposition assigns cells to groups on this rank.
type DomainDecomposition interface {
	NumGroups() int
	Group(i int) GroupDescription
	Groups() []GroupDescription
}

// partitionDecomposition is the trivial single-rank decomposition: cells are
// split into groups of at most groupSize, in kind-homogeneous runs.
type partitionDecomposition struct {
	groups []GroupDescription
}

// PartitionLoadBalance splits the recipe's cells into kind-homogeneous
// groups of at most groupSize cells, in gid order. A new group starts
// whenever the kind changes, so groupSize <= 0 places each run of
// consecutive same-kind cells into a single group.
func PartitionLoadBalance(rec Recipe, groupSize int) DomainDecomposition {
	var groups []GroupDescription
	var cur *GroupDescription
	for gid := GID(0); gid < GID(rec.NumCells()); gid++ {
		kind := rec.CellKind(gid)
		full := cur != nil && groupSize > 0 && len(cur.GIDs) >= groupSize
		if cur == nil || cur.Kind != kind || full {
			groups = append(groups, GroupDescription{Kind: kind, Backend: BackendMulticore})
			cur = &groups[len(groups)-1]
		}
		cur.GIDs = append(cur.GIDs, gid)
	}
	return &partitionDecomposition{groups: groups}
}

func (d *partitionDecomposition) NumGroups() int               { return len(d.groups) }
func (d *partitionDecomposition) Group(i int) GroupDescription { return d.groups[i] }
func (d *partitionDecomposition) Groups() []GroupDescription   { return d.groups }
