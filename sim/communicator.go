package sim

import (
	"fmt"
	"math"
	"sort"

	"github.com/sirupsen/logrus"
)

// Communicator mediates spike exchange at rank boundaries. The driver calls
// Exchange once per Distribute phase with this rank's gathered spikes and
// receives the global spike set; MakeEventQueues then translates global
// spikes into per-cell pending events.
type Communicator interface {
	// MinDelay returns the smallest synaptic delay anywhere in the network.
	// Half of it bounds the epoch length.
	MinDelay() TimeType
	// NumLocalCells returns the number of cells on this rank.
	NumLocalCells() int
	// GroupQueueRange returns the half-open range of event lane indices
	// owned by group i.
	GroupQueueRange(i int) (begin, end int)
	// Exchange distributes this rank's spikes and returns the global set.
	Exchange(local []Spike) ([]Spike, error)
	// MakeEventQueues appends the events induced by the global spikes to the
	// per-cell pending buffers.
	MakeEventQueues(global []Spike, pending []EventLane)
	Reset()
	// NumSpikes returns the number of spikes seen globally since the last
	// Reset.
	NumSpikes() uint64
}

// communicatorFactory builds the communicator during simulation
// construction. The factory in use is held in a package variable so that it
// can be replaced within the package.
type communicatorFactory func(rec Recipe, decomp DomainDecomposition, sourceMap, targetMap *LabelResolutionMap, ctx ExecutionContext) (Communicator, error)

// newCommunicatorFunc is the factory used by NewSimulation.
var newCommunicatorFunc communicatorFactory = newLocalCommunicator

// deliverySite is one resolved synapse: where and how a spike from a given
// source lands on this rank.
type deliverySite struct {
	cell   int
	target uint32
	weight float32
	delay  TimeType
}

// localCommunicator implements Communicator from the recipe's declared
// connectivity. Spike distribution across ranks goes through the context's
// Distributed collective.
type localCommunicator struct {
	dist          Distributed
	numLocalCells int
	groupRanges   [][2]int
	sites         map[GID][]deliverySite
	minDelay      TimeType
	numSpikes     uint64
}

func newLocalCommunicator(rec Recipe, decomp DomainDecomposition, sourceMap, targetMap *LabelResolutionMap, ctx ExecutionContext) (Communicator, error) {
	c := &localCommunicator{
		dist:  ctx.Dist,
		sites: make(map[GID][]deliverySite),
	}

	minDelay := TimeType(math.Inf(1))
	resolver := newLabelResolver(targetMap)

	lidx := 0
	for gi := 0; gi < decomp.NumGroups(); gi++ {
		group := decomp.Group(gi)
		begin := lidx
		for _, gid := range group.GIDs {
			for _, conn := range rec.ConnectionsOn(gid) {
				if conn.Delay <= 0 {
					return nil, fmt.Errorf("connection %d -> %d: %w", conn.Source, gid, ErrZeroMinDelay)
				}
				if conn.SourceLabel != "" && sourceMap.Count(conn.Source, conn.SourceLabel) == 0 {
					return nil, fmt.Errorf("connection %d -> %d: no source with label %q on cell %d", conn.Source, gid, conn.SourceLabel, conn.Source)
				}
				target, err := resolver.Resolve(gid, conn.TargetLabel)
				if err != nil {
					return nil, fmt.Errorf("connection %d -> %d: %w", conn.Source, gid, err)
				}
				c.sites[conn.Source] = append(c.sites[conn.Source], deliverySite{
					cell:   lidx,
					target: target,
					weight: conn.Weight,
					delay:  conn.Delay,
				})
				minDelay = min(minDelay, conn.Delay)
			}
			lidx++
		}
		c.groupRanges = append(c.groupRanges, [2]int{begin, lidx})
	}
	c.numLocalCells = lidx

	if ext := rec.MinExternalDelay(); ext > 0 {
		minDelay = min(minDelay, ext)
	}
	global, err := ctx.Dist.AllReduceMin(minDelay)
	if err != nil {
		return nil, fmt.Errorf("reduce min delay: %w", err)
	}
	if global <= 0 {
		return nil, ErrZeroMinDelay
	}
	c.minDelay = global

	// Delivery order within a pending buffer must not depend on map
	// iteration, so each source's sites are kept in resolution order and
	// sorted by (cell, target) for determinism.
	for src := range c.sites {
		sites := c.sites[src]
		sort.SliceStable(sites, func(i, j int) bool {
			if sites[i].cell != sites[j].cell {
				return sites[i].cell < sites[j].cell
			}
			return sites[i].target < sites[j].target
		})
	}

	logrus.Debugf("communicator: %d local cells, %d groups, min delay %v", c.numLocalCells, len(c.groupRanges), c.minDelay)
	return c, nil
}

func (c *localCommunicator) MinDelay() TimeType { return c.minDelay }

func (c *localCommunicator) NumLocalCells() int { return c.numLocalCells }

func (c *localCommunicator) GroupQueueRange(i int) (int, int) {
	r := c.groupRanges[i]
	return r[0], r[1]
}

func (c *localCommunicator) Exchange(local []Spike) ([]Spike, error) {
	global, err := c.dist.GatherSpikes(local)
	if err != nil {
		return nil, fmt.Errorf("gather spikes: %w", err)
	}
	c.numSpikes += uint64(len(global))
	return global, nil
}

func (c *localCommunicator) MakeEventQueues(global []Spike, pending []EventLane) {
	for _, s := range global {
		for _, site := range c.sites[s.Source] {
			pending[site.cell] = append(pending[site.cell], PostSynapticEvent{
				Target: site.target,
				Weight: site.weight,
				Time:   s.Time + site.delay,
			})
		}
	}
}

func (c *localCommunicator) Reset() {
	c.numSpikes = 0
}

func (c *localCommunicator) NumSpikes() uint64 { return c.numSpikes }
