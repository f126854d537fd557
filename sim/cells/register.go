package cells

import "github.com/spikesim/spikesim/sim"

func init() {
	sim.RegisterGroupFactory(sim.KindLIF, sim.BackendMulticore, NewLIFGroup)
	sim.RegisterGroupFactory(sim.KindSpikeSource, sim.BackendMulticore, NewSpikeSourceGroup)
}
