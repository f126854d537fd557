package cells

import (
	"fmt"
	"math"

	"github.com/spikesim/spikesim/sim"
)

// VoltageProbeTag is the tag of the membrane voltage probe every cell in a
// LIFGroup exposes at probe index 0.
const VoltageProbeTag = "voltage"

// lifState is the integration state of one cell. The membrane potential is
// advanced exactly from event to event: between events it decays
// exponentially toward EL, so no fixed-step integration error accumulates.
type lifState struct {
	desc sim.LIFCell

	v               float64      // membrane potential at time t
	t               sim.TimeType // time up to which v is integrated
	refractoryUntil sim.TimeType
}

// voltageAt returns the membrane potential at time tq >= s.t without
// mutating the state.
func (s *lifState) voltageAt(tq sim.TimeType) float64 {
	if tq <= s.t || tq < s.refractoryUntil {
		return s.v
	}
	from := max(s.t, s.refractoryUntil)
	if tq <= from {
		return s.v
	}
	decay := math.Exp(-float64(tq-from) / float64(s.desc.TauM))
	return s.desc.EL + (s.v-s.desc.EL)*decay
}

// advanceTo integrates the decay up to time tq.
func (s *lifState) advanceTo(tq sim.TimeType) {
	if tq <= s.t {
		return
	}
	s.v = s.voltageAt(tq)
	s.t = tq
}

// deliver applies a weighted synaptic event at the state's current time and
// reports whether the cell fired. Events inside the refractory window are
// discarded.
func (s *lifState) deliver(weight float32) bool {
	if s.t < s.refractoryUntil {
		return false
	}
	s.v += float64(weight) / s.desc.CM
	if s.v < s.desc.VThresh {
		return false
	}
	s.v = s.desc.ER
	s.refractoryUntil = s.t + s.desc.TRef
	return true
}

func (s *lifState) reset() {
	s.v = s.desc.V0
	s.t = 0
	s.refractoryUntil = 0
}

// LIFGroup advances a set of leaky integrate-and-fire cells.
type LIFGroup struct {
	gids   []sim.GID
	cells  []lifState
	spikes []sim.Spike

	samplers samplerTable

	binKind     sim.BinningKind
	binInterval sim.TimeType
	lastBin     []sim.TimeType
}

// NewLIFGroup builds the group for the given gids. Every cell must carry a
// sim.LIFCell description. It is registered for the "lif" kind on the
// multicore backend.
func NewLIFGroup(gids []sim.GID, rec sim.Recipe) (sim.CellGroup, []sim.CellLabels, []sim.CellLabels, error) {
	g := &LIFGroup{
		gids:    gids,
		cells:   make([]lifState, len(gids)),
		lastBin: make([]sim.TimeType, len(gids)),
	}
	sources := make([]sim.CellLabels, 0, len(gids))
	targets := make([]sim.CellLabels, 0, len(gids))
	for i, gid := range gids {
		desc, ok := rec.CellDescription(gid).(sim.LIFCell)
		if !ok {
			return nil, nil, nil, fmt.Errorf("cell %d: description %T is not a LIF cell", gid, rec.CellDescription(gid))
		}
		if desc.TauM <= 0 {
			return nil, nil, nil, fmt.Errorf("cell %d: membrane time constant must be positive, got %v", gid, desc.TauM)
		}
		if desc.CM <= 0 {
			return nil, nil, nil, fmt.Errorf("cell %d: membrane capacitance must be positive, got %v", gid, desc.CM)
		}
		g.cells[i].desc = desc
		g.cells[i].reset()
		sources = append(sources, sim.CellLabels{GID: gid, Ranges: []sim.LabelRange{{Label: desc.Source, Begin: 0, End: 1}}})
		targets = append(targets, sim.CellLabels{GID: gid, Ranges: []sim.LabelRange{{Label: desc.Target, Begin: 0, End: 1}}})
	}
	return g, sources, targets, nil
}

func (g *LIFGroup) Reset() {
	for i := range g.cells {
		g.cells[i].reset()
		g.lastBin[i] = 0
	}
	g.spikes = g.spikes[:0]
	g.samplers.reset()
}

// binTime applies the group's event-time binning for cell i.
func (g *LIFGroup) binTime(i int, t sim.TimeType) sim.TimeType {
	switch g.binKind {
	case sim.BinningRegular:
		if g.binInterval <= 0 {
			return t
		}
		return sim.TimeType(math.Floor(float64(t/g.binInterval))) * g.binInterval
	case sim.BinningFollowing:
		if g.binInterval <= 0 {
			return t
		}
		if t-g.lastBin[i] < g.binInterval {
			return g.lastBin[i]
		}
		g.lastBin[i] = t
		return t
	default:
		return t
	}
}

// sampleRequest is one association's pending sample emission for one cell.
type sampleRequest struct {
	assoc  *samplerAssoc
	times  []sim.TimeType
	cursor int
	buf    []sim.Sample
}

func (g *LIFGroup) Advance(ep sim.Epoch, dt sim.TimeType, lanes []sim.EventLane) error {
	for i := range g.cells {
		g.advanceCell(i, ep, dt, lanes[i])
	}
	return nil
}

func (g *LIFGroup) advanceCell(i int, ep sim.Epoch, dt sim.TimeType, lane sim.EventLane) {
	cell := &g.cells[i]
	meta := sim.ProbeMetadata{ID: sim.CellMember{GID: g.gids[i], Index: 0}, Tag: VoltageProbeTag, Index: 0}

	var reqs []sampleRequest
	for _, a := range g.samplers.assocs {
		if !a.probes(meta.ID) {
			continue
		}
		times := a.sched.Events(ep.T0, ep.T1)
		if len(times) == 0 {
			continue
		}
		reqs = append(reqs, sampleRequest{assoc: a, times: times})
	}

	emitUpTo := func(t sim.TimeType) {
		for r := range reqs {
			req := &reqs[r]
			for req.cursor < len(req.times) && req.times[req.cursor] < t {
				st := req.times[req.cursor]
				rt := st
				if req.assoc.policy == sim.SamplingLax && dt > 0 {
					rt = sim.TimeType(math.Round(float64(st/dt))) * dt
				}
				req.buf = append(req.buf, sim.Sample{Time: rt, Value: cell.voltageAt(st)})
				req.cursor++
			}
		}
	}

	for _, ev := range lane {
		te := g.binTime(i, ev.Time)
		emitUpTo(te)
		cell.advanceTo(te)
		if cell.deliver(ev.Weight) {
			g.spikes = append(g.spikes, sim.Spike{Source: g.gids[i], Time: te})
		}
	}
	emitUpTo(ep.T1)
	cell.advanceTo(ep.T1)

	for r := range reqs {
		if len(reqs[r].buf) > 0 {
			reqs[r].assoc.fn(meta, reqs[r].buf)
		}
	}
}

func (g *LIFGroup) Spikes() []sim.Spike { return g.spikes }

func (g *LIFGroup) ClearSpikes() { g.spikes = g.spikes[:0] }

func (g *LIFGroup) AddSampler(h sim.SamplerHandle, probes sim.ProbePredicate, sched sim.Schedule, fn sim.SamplerFunc, policy sim.SamplingPolicy) {
	g.samplers.add(h, probes, sched, fn, policy)
}

func (g *LIFGroup) RemoveSampler(h sim.SamplerHandle) { g.samplers.remove(h) }

func (g *LIFGroup) RemoveAllSamplers() { g.samplers.removeAll() }

func (g *LIFGroup) ProbeMetadata(id sim.CellMember) []sim.ProbeMetadata {
	for _, gid := range g.gids {
		if gid == id.GID && id.Index == 0 {
			return []sim.ProbeMetadata{{ID: id, Tag: VoltageProbeTag, Index: 0}}
		}
	}
	return nil
}

func (g *LIFGroup) SetBinningPolicy(kind sim.BinningKind, interval sim.TimeType) {
	g.binKind = kind
	g.binInterval = interval
	for i := range g.lastBin {
		g.lastBin[i] = 0
	}
}
