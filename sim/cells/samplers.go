package cells

import (
	"sort"

	"github.com/spikesim/spikesim/sim"
)

// samplerAssoc is one sampler association held by a group.
type samplerAssoc struct {
	handle sim.SamplerHandle
	probes sim.ProbePredicate
	sched  sim.Schedule
	fn     sim.SamplerFunc
	policy sim.SamplingPolicy
}

// samplerTable stores a group's sampler associations. Associations are kept
// in handle order so callback order does not depend on map iteration. The
// driver serializes all calls on a group, so no locking is needed.
type samplerTable struct {
	assocs []*samplerAssoc
}

func (t *samplerTable) add(h sim.SamplerHandle, probes sim.ProbePredicate, sched sim.Schedule, fn sim.SamplerFunc, policy sim.SamplingPolicy) {
	t.assocs = append(t.assocs, &samplerAssoc{handle: h, probes: probes, sched: sched, fn: fn, policy: policy})
	sort.SliceStable(t.assocs, func(i, j int) bool { return t.assocs[i].handle < t.assocs[j].handle })
}

func (t *samplerTable) remove(h sim.SamplerHandle) {
	for i, a := range t.assocs {
		if a.handle == h {
			t.assocs = append(t.assocs[:i], t.assocs[i+1:]...)
			return
		}
	}
}

func (t *samplerTable) removeAll() {
	t.assocs = t.assocs[:0]
}

func (t *samplerTable) reset() {
	for _, a := range t.assocs {
		a.sched.Reset()
	}
}
