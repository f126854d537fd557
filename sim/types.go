package sim

// TimeType is simulated time in milliseconds. All comparisons on simulated
// time are strict; zero is the canonical reset point.
type TimeType float64

// GID identifies a cell across all ranks. Dense enumeration is not required.
type GID uint64

// CellMember addresses an item (probe, source, target) on a specific cell.
type CellMember struct {
	GID   GID
	Index uint32
}

// Spike is an action potential emitted by a source during an Update phase.
// Spikes are never mutated after the epoch that produced them.
type Spike struct {
	Source GID
	Time   TimeType
}

// PostSynapticEvent is a weighted input scheduled for delivery to a target
// on a local cell. The ordering key is Time; ties are broken by Target then
// Weight so that sorts are stable and deterministic across runs.
type PostSynapticEvent struct {
	Target uint32
	Weight float32
	Time   TimeType
}

// EventLane is a time-sorted sequence of events bound for a single local cell.
type EventLane = []PostSynapticEvent

// eventLess orders post-synaptic events by time, target, weight.
func eventLess(a, b PostSynapticEvent) bool {
	if a.Time != b.Time {
		return a.Time < b.Time
	}
	if a.Target != b.Target {
		return a.Target < b.Target
	}
	return a.Weight < b.Weight
}

// SpikeExportFunc consumes a batch of spikes. Used for the local and global
// spike callbacks; both may be nil.
type SpikeExportFunc func([]Spike)
