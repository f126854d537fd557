package sim

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Simulation advances a population of cell groups through simulated time,
// mediating their interaction via spikes exchanged across ranks and
// delivering the resulting post-synaptic events back as time-stamped inputs
// on future epochs.
//
// Progress happens in integration epochs of length at most half the network
// minimum delay, so spikes emitted during epoch k can only affect epoch k+2
// or later. Three tasks overlap within the shared task pool:
//
//   - Update U(k): each group integrates to the end of epoch k, consuming
//     its slice of the epoch's event lanes and producing spikes.
//   - Distribute D(k): the spikes of epoch k are gathered, exchanged across
//     ranks, handed to user callbacks, and translated into per-cell pending
//     events.
//   - Enqueue E(k): pending events, leftovers from the previous lane, and
//     generator events for epoch k are merged into the epoch's lanes.
//
// With dependencies E(k) < U(k) < D(k), U(k) < U(k+1), D(k) < E(k+2) and
// D(k) < D(k+1), the loop interior runs {D(k-1); E(k+1)} against U(k) in
// parallel. Lanes and spike stores are double buffered by epoch parity; D
// and E are serialized because both touch the single-buffered pending
// events.
type Simulation struct {
	epoch     Epoch
	tInterval TimeType

	groups     []CellGroup
	generators [][]EventGenerator

	gidToLocal *localIndexMap
	comm       Communicator
	pool       *TaskPool

	pendingEvents []EventLane
	lanes         *laneStore
	localSpikes   [2]*spikeStore

	sassocHandles handleSet

	localExport  SpikeExportFunc
	globalExport SpikeExportFunc
}

// NewSimulation wires cell groups, label resolution, the communicator and
// the event machinery from the recipe and decomposition, leaving the
// simulation at time zero.
func NewSimulation(rec Recipe, decomp DomainDecomposition, ctx ExecutionContext) (*Simulation, error) {
	s := &Simulation{pool: ctx.Pool}

	// Instantiate the cell groups in parallel, one task per group, each
	// publishing its source and target label ranges.
	numGroups := decomp.NumGroups()
	s.groups = make([]CellGroup, numGroups)
	cgSources := make([][]CellLabels, numGroups)
	cgTargets := make([][]CellLabels, numGroups)
	err := ctx.Pool.ParallelFor(numGroups, func(i int) error {
		info := decomp.Group(i)
		factory, err := groupFactory(info.Kind, info.Backend)
		if err != nil {
			return err
		}
		group, sources, targets, err := factory(info.GIDs, rec)
		if err != nil {
			return fmt.Errorf("build group %d: %w", i, err)
		}
		s.groups[i] = group
		cgSources[i] = sources
		cgTargets[i] = targets
		return nil
	})
	if err != nil {
		return nil, err
	}

	var localSources, localTargets []CellLabels
	for i := 0; i < numGroups; i++ {
		localSources = append(localSources, cgSources[i]...)
		localTargets = append(localTargets, cgTargets[i]...)
	}

	// Sources must resolve against every rank's cells; targets are local.
	globalSources, err := ctx.Dist.GatherCellLabels(localSources)
	if err != nil {
		return nil, fmt.Errorf("gather source labels: %w", err)
	}
	sourceMap := NewLabelResolutionMap(globalSources)
	targetMap := NewLabelResolutionMap(localTargets)

	s.comm, err = newCommunicatorFunc(rec, decomp, sourceMap, targetMap, ctx)
	if err != nil {
		return nil, fmt.Errorf("build communicator: %w", err)
	}

	numLocalCells := s.comm.NumLocalCells()

	// Half the minimum network delay bounds the integration interval: a
	// spike emitted during U(k) cannot influence U(k) or U(k+1).
	s.tInterval = s.comm.MinDelay() / 2

	s.gidToLocal = newLocalIndexMap(decomp)
	s.pendingEvents = make([]EventLane, numLocalCells)
	s.lanes = newLaneStore(numLocalCells)
	s.localSpikes[0] = newSpikeStore(numGroups)
	s.localSpikes[1] = newSpikeStore(numGroups)

	// Bind event generators. Each generator gets an independent resolver so
	// concurrent Events calls share no mutable resolution state.
	s.generators = make([][]EventGenerator, numLocalCells)
	lidx := 0
	for _, info := range decomp.Groups() {
		for _, gid := range info.GIDs {
			gens := rec.EventGenerators(gid)
			for _, g := range gens {
				if lt, ok := g.(LabelTargetedGenerator); ok {
					resolver := newLabelResolver(targetMap)
					bound := gid
					err := lt.ResolveTarget(func(label string) (uint32, error) {
						return resolver.Resolve(bound, label)
					})
					if err != nil {
						return nil, fmt.Errorf("resolve generator target on cell %d: %w", gid, err)
					}
				}
			}
			s.generators[lidx] = gens
			lidx++
		}
	}

	s.epoch.Reset()
	logrus.Infof("simulation ready: %d groups, %d local cells, epoch interval %v", numGroups, numLocalCells, s.tInterval)
	return s, nil
}

// spikesFor selects the spike store of the epoch id's parity.
func (s *Simulation) spikesFor(epochID int64) *spikeStore {
	return s.localSpikes[epochID&1]
}

// Reset rewinds the simulation to time zero: epoch clock, cell groups, both
// lane buffers, every event generator, pending events, the communicator and
// both spike stores.
func (s *Simulation) Reset() {
	s.epoch.Reset()

	for _, g := range s.groups {
		g.Reset()
	}

	s.lanes.Reset()

	for _, gens := range s.generators {
		for _, g := range gens {
			g.Reset()
		}
	}

	for i := range s.pendingEvents {
		s.pendingEvents[i] = s.pendingEvents[i][:0]
	}

	s.comm.Reset()

	s.localSpikes[0].Clear()
	s.localSpikes[1].Clear()
}

// Run advances the simulation to tfinal through a series of integration
// epochs and returns the time reached. It is a no-op returning the resident
// horizon when tfinal does not extend past it.
//
// On entry and on return with resident epoch id k, U(k) and D(k) have
// completed. A failed Run leaves the simulation in an unspecified state;
// callers must Reset before reusing it.
func (s *Simulation) Run(tfinal, dt TimeType) (TimeType, error) {
	if dt <= 0 {
		return s.epoch.T1, ErrNonPositiveDt
	}
	if tfinal <= s.epoch.T1 {
		return s.epoch.T1, nil
	}

	// Update task: advance groups to the end of the current epoch, storing
	// spikes in the epoch-parity store.
	update := func(current Epoch) error {
		s.spikesFor(current.ID).Clear()
		return s.pool.ParallelFor(len(s.groups), func(i int) error {
			begin, end := s.comm.GroupQueueRange(i)
			queues := s.lanes.Lanes(current.ID)[begin:end]
			if err := s.groups[i].Advance(current, dt, queues); err != nil {
				return fmt.Errorf("advance group %d: %w", i, err)
			}
			s.spikesFor(current.ID).Insert(i, s.groups[i].Spikes())
			s.groups[i].ClearSpikes()
			return nil
		})
	}

	// Exchange task: gather the previous epoch's local spikes, distribute
	// them across ranks, present them to the callbacks, and translate them
	// into per-cell pending events.
	exchange := func(prev Epoch) error {
		allLocal := s.spikesFor(prev.ID).Gather()
		global, err := s.comm.Exchange(allLocal)
		if err != nil {
			return err
		}

		if s.localExport != nil {
			s.localExport(allLocal)
		}
		if s.globalExport != nil {
			s.globalExport(global)
		}

		s.comm.MakeEventQueues(global, s.pendingEvents)
		return nil
	}

	// Enqueue task: build the event lanes for the next epoch from pending
	// events, generator events, and unprocessed events on the current lanes.
	enqueue := func(next Epoch) error {
		return s.pool.ParallelFor(len(s.pendingEvents), func(i int) error {
			sortEvents(s.pendingEvents[i])

			old := *s.lanes.Lane(next.ID-1, i)
			mergeCellEvents(next.T0, next.T1, old, s.pendingEvents[i], s.generators[i], s.lanes.Lane(next.ID, i))
			s.pendingEvents[i] = s.pendingEvents[i][:0]
			return nil
		})
	}

	prev := s.epoch
	current := nextEpoch(prev, s.tInterval, tfinal)
	next := nextEpoch(current, s.tInterval, tfinal)

	if next.Empty() {
		// Only one epoch to run: strictly sequential.
		if err := enqueue(current); err != nil {
			return current.T1, err
		}
		if err := update(current); err != nil {
			return current.T1, err
		}
		if err := exchange(current); err != nil {
			return current.T1, err
		}
	} else {
		if err := enqueue(current); err != nil {
			return current.T1, err
		}

		var g errgroup.Group
		g.Go(func() error { return enqueue(next) })
		g.Go(func() error { return update(current) })
		if err := g.Wait(); err != nil {
			return current.T1, err
		}

		for {
			prev = current
			current = next
			next = nextEpoch(next, s.tInterval, tfinal)
			if next.Empty() {
				break
			}

			logrus.Debugf("[epoch %03d] pipeline U(%d) || D(%d)+E(%d)", current.ID, current.ID, prev.ID, next.ID)

			// D and E are serialized on one task: both touch the
			// single-buffered pending events.
			var g errgroup.Group
			g.Go(func() error {
				if err := exchange(prev); err != nil {
					return err
				}
				return enqueue(next)
			})
			g.Go(func() error { return update(current) })
			if err := g.Wait(); err != nil {
				return current.T1, err
			}
		}

		var tail errgroup.Group
		tail.Go(func() error { return exchange(prev) })
		tail.Go(func() error { return update(current) })
		if err := tail.Wait(); err != nil {
			return current.T1, err
		}

		if err := exchange(current); err != nil {
			return current.T1, err
		}
	}

	// Record the resident epoch for the next Run invocation.
	s.epoch = current
	return current.T1, nil
}

// NumSpikes returns the number of spikes seen globally since construction or
// the last Reset.
func (s *Simulation) NumSpikes() uint64 {
	return s.comm.NumSpikes()
}

// AddSampler associates a sampler with every probe satisfying the predicate,
// across all groups, and returns the association handle.
func (s *Simulation) AddSampler(probes ProbePredicate, sched Schedule, fn SamplerFunc, policy SamplingPolicy) SamplerHandle {
	h := s.sassocHandles.acquire()

	s.foreachGroup(func(g CellGroup) {
		g.AddSampler(h, probes, sched, fn, policy)
	})
	return h
}

// RemoveSampler removes the association and releases its handle. Removing an
// already-released handle is a no-op.
func (s *Simulation) RemoveSampler(h SamplerHandle) {
	s.foreachGroup(func(g CellGroup) {
		g.RemoveSampler(h)
	})
	s.sassocHandles.release(h)
}

// RemoveAllSamplers removes every association and returns the handle set to
// its initial state.
func (s *Simulation) RemoveAllSamplers() {
	s.foreachGroup(func(g CellGroup) {
		g.RemoveAllSamplers()
	})
	s.sassocHandles.clear()
}

// ProbeMetadata returns metadata for the probe with the given id, or an
// empty slice when the gid is not local.
func (s *Simulation) ProbeMetadata(id CellMember) []ProbeMetadata {
	info, ok := s.gidToLocal.Lookup(id.GID)
	if !ok {
		return nil
	}
	return s.groups[info.GroupIndex].ProbeMetadata(id)
}

// SetBinningPolicy sets the event-time binning policy on every group.
func (s *Simulation) SetBinningPolicy(kind BinningKind, interval TimeType) {
	s.foreachGroup(func(g CellGroup) {
		g.SetBinningPolicy(kind, interval)
	})
}

// SetGlobalSpikeCallback registers a consumer of the global spike set of
// every Distribute phase. A nil callback removes it.
func (s *Simulation) SetGlobalSpikeCallback(fn SpikeExportFunc) {
	s.globalExport = fn
}

// SetLocalSpikeCallback registers a consumer of this rank's spikes, invoked
// before the global exchange. A nil callback removes it.
func (s *Simulation) SetLocalSpikeCallback(fn SpikeExportFunc) {
	s.localExport = fn
}

// InjectEvents appends externally supplied events to the pending buffers of
// their target cells. Events for cells on other ranks are silently skipped.
// An event scheduled before the end of the resident epoch is a domain error,
// and no pending buffer is modified in that case.
func (s *Simulation) InjectEvents(events map[GID][]PostSynapticEvent) error {
	for _, evs := range events {
		for _, e := range evs {
			if e.Time < s.epoch.T1 {
				return &BadEventTimeError{EventTime: e.Time, Horizon: s.epoch.T1}
			}
		}
	}
	for gid, evs := range events {
		info, ok := s.gidToLocal.Lookup(gid)
		if !ok {
			continue
		}
		s.pendingEvents[info.CellIndex] = append(s.pendingEvents[info.CellIndex], evs...)
	}
	return nil
}

// foreachGroup applies fn to each cell group in parallel.
func (s *Simulation) foreachGroup(fn func(CellGroup)) {
	_ = s.pool.ParallelFor(len(s.groups), func(i int) error {
		fn(s.groups[i])
		return nil
	})
}
