package cells

import (
	"fmt"

	"github.com/spikesim/spikesim/sim"
)

// SpikeSourceGroup advances passive cells that fire on a fixed schedule.
// Incoming events are accepted and discarded; the cells expose no probes.
type SpikeSourceGroup struct {
	gids      []sim.GID
	schedules []sim.Schedule
	spikes    []sim.Spike
}

// NewSpikeSourceGroup builds the group for the given gids. Every cell must
// carry a sim.SpikeSourceCell description with a non-nil schedule. It is
// registered for the "spike_source" kind on the multicore backend.
func NewSpikeSourceGroup(gids []sim.GID, rec sim.Recipe) (sim.CellGroup, []sim.CellLabels, []sim.CellLabels, error) {
	g := &SpikeSourceGroup{
		gids:      gids,
		schedules: make([]sim.Schedule, len(gids)),
	}
	sources := make([]sim.CellLabels, 0, len(gids))
	targets := make([]sim.CellLabels, 0, len(gids))
	for i, gid := range gids {
		desc, ok := rec.CellDescription(gid).(sim.SpikeSourceCell)
		if !ok {
			return nil, nil, nil, fmt.Errorf("cell %d: description %T is not a spike source", gid, rec.CellDescription(gid))
		}
		if desc.Schedule == nil {
			return nil, nil, nil, fmt.Errorf("cell %d: spike source requires a schedule", gid)
		}
		g.schedules[i] = desc.Schedule
		sources = append(sources, sim.CellLabels{GID: gid, Ranges: []sim.LabelRange{{Label: desc.Source, Begin: 0, End: 1}}})
		targets = append(targets, sim.CellLabels{GID: gid})
	}
	return g, sources, targets, nil
}

func (g *SpikeSourceGroup) Reset() {
	for _, s := range g.schedules {
		s.Reset()
	}
	g.spikes = g.spikes[:0]
}

func (g *SpikeSourceGroup) Advance(ep sim.Epoch, dt sim.TimeType, lanes []sim.EventLane) error {
	for i, sched := range g.schedules {
		for _, t := range sched.Events(ep.T0, ep.T1) {
			g.spikes = append(g.spikes, sim.Spike{Source: g.gids[i], Time: t})
		}
	}
	return nil
}

func (g *SpikeSourceGroup) Spikes() []sim.Spike { return g.spikes }

func (g *SpikeSourceGroup) ClearSpikes() { g.spikes = g.spikes[:0] }

func (g *SpikeSourceGroup) AddSampler(sim.SamplerHandle, sim.ProbePredicate, sim.Schedule, sim.SamplerFunc, sim.SamplingPolicy) {
}

func (g *SpikeSourceGroup) RemoveSampler(sim.SamplerHandle) {}

func (g *SpikeSourceGroup) RemoveAllSamplers() {}

func (g *SpikeSourceGroup) ProbeMetadata(sim.CellMember) []sim.ProbeMetadata { return nil }

func (g *SpikeSourceGroup) SetBinningPolicy(sim.BinningKind, sim.TimeType) {}
