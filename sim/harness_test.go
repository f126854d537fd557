package sim

// Test harness: a scripted cell kind whose groups record every Advance call
// and fire spikes at pre-declared times, plus a map-backed recipe. Used by
// the driver, communicator and pipeline tests.

import (
	"sort"
)

const scriptedKind CellKind = "scripted"

func init() {
	RegisterGroupFactory(scriptedKind, BackendMulticore, newScriptedGroup)
}

// scriptedRecipe implements Recipe from plain maps.
type scriptedRecipe struct {
	numCells int
	conns    map[GID][]Connection
	gens     map[GID][]EventGenerator
	extDelay TimeType
	fire     map[GID][]TimeType
}

func (r *scriptedRecipe) NumCells() int                      { return r.numCells }
func (r *scriptedRecipe) CellKind(GID) CellKind              { return scriptedKind }
func (r *scriptedRecipe) CellDescription(gid GID) any        { return r.fire[gid] }
func (r *scriptedRecipe) ConnectionsOn(gid GID) []Connection { return r.conns[gid] }
func (r *scriptedRecipe) EventGenerators(gid GID) []EventGenerator {
	return r.gens[gid]
}
func (r *scriptedRecipe) MinExternalDelay() TimeType { return r.extDelay }

// advanceRecord captures one Advance call: the epoch and a deep copy of each
// cell's lane slice.
type advanceRecord struct {
	epoch Epoch
	lanes [][]PostSynapticEvent
}

// scriptedGroup fires spikes at scripted times and records every interaction
// for later assertion. Each cell publishes one source labelled "src" and one
// target labelled "tgt".
type scriptedGroup struct {
	gids    []GID
	fire    [][]TimeType
	spikes  []Spike
	records []advanceRecord

	samplers map[SamplerHandle]SamplerFunc
	handles  []SamplerHandle
}

func newScriptedGroup(gids []GID, rec Recipe) (CellGroup, []CellLabels, []CellLabels, error) {
	g := &scriptedGroup{
		gids:     gids,
		fire:     make([][]TimeType, len(gids)),
		samplers: make(map[SamplerHandle]SamplerFunc),
	}
	var sources, targets []CellLabels
	for i, gid := range gids {
		if times, ok := rec.CellDescription(gid).([]TimeType); ok {
			g.fire[i] = times
		}
		sources = append(sources, CellLabels{GID: gid, Ranges: []LabelRange{{Label: "src", Begin: 0, End: 1}}})
		targets = append(targets, CellLabels{GID: gid, Ranges: []LabelRange{{Label: "tgt", Begin: 0, End: 1}}})
	}
	return g, sources, targets, nil
}

func (g *scriptedGroup) Reset() {
	g.spikes = g.spikes[:0]
	g.records = nil
}

func (g *scriptedGroup) Advance(ep Epoch, dt TimeType, lanes []EventLane) error {
	rec := advanceRecord{epoch: ep, lanes: make([][]PostSynapticEvent, len(lanes))}
	for i, lane := range lanes {
		rec.lanes[i] = append([]PostSynapticEvent(nil), lane...)
	}
	g.records = append(g.records, rec)

	for i, times := range g.fire {
		for _, ft := range times {
			if ft >= ep.T0 && ft < ep.T1 {
				g.spikes = append(g.spikes, Spike{Source: g.gids[i], Time: ft})
			}
		}
	}

	for _, h := range g.handles {
		fn := g.samplers[h]
		meta := ProbeMetadata{ID: CellMember{GID: g.gids[0], Index: 0}, Tag: "scripted", Index: 0}
		fn(meta, []Sample{{Time: ep.T0, Value: float64(ep.ID)}})
	}
	return nil
}

func (g *scriptedGroup) Spikes() []Spike { return g.spikes }

func (g *scriptedGroup) ClearSpikes() { g.spikes = g.spikes[:0] }

func (g *scriptedGroup) AddSampler(h SamplerHandle, probes ProbePredicate, sched Schedule, fn SamplerFunc, policy SamplingPolicy) {
	g.samplers[h] = fn
	g.handles = append(g.handles, h)
	sort.Slice(g.handles, func(i, j int) bool { return g.handles[i] < g.handles[j] })
}

func (g *scriptedGroup) RemoveSampler(h SamplerHandle) {
	delete(g.samplers, h)
	for i, v := range g.handles {
		if v == h {
			g.handles = append(g.handles[:i], g.handles[i+1:]...)
			break
		}
	}
}

func (g *scriptedGroup) RemoveAllSamplers() {
	g.samplers = make(map[SamplerHandle]SamplerFunc)
	g.handles = nil
}

func (g *scriptedGroup) ProbeMetadata(id CellMember) []ProbeMetadata {
	for _, gid := range g.gids {
		if gid == id.GID {
			return []ProbeMetadata{{ID: id, Tag: "scripted", Index: 0}}
		}
	}
	return nil
}

func (g *scriptedGroup) SetBinningPolicy(BinningKind, TimeType) {}

// eventsSeen flattens the recorded lane events of one cell across all
// Advance calls, in call order.
func (g *scriptedGroup) eventsSeen(cell int) []PostSynapticEvent {
	var out []PostSynapticEvent
	for _, r := range g.records {
		out = append(out, r.lanes[cell]...)
	}
	return out
}

// singleGroupDecomp places all cells of a scripted recipe into one group.
func singleGroupDecomp(numCells int) DomainDecomposition {
	gids := make([]GID, numCells)
	for i := range gids {
		gids[i] = GID(i)
	}
	return &staticDecomp{groups: []GroupDescription{
		{Kind: scriptedKind, Backend: BackendMulticore, GIDs: gids},
	}}
}

// scriptedGroupOf digs the group instance out of a built simulation.
func scriptedGroupOf(s *Simulation, i int) *scriptedGroup {
	return s.groups[i].(*scriptedGroup)
}
