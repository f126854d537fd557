package sim

import (
	"runtime"

	"golang.org/x/sync/errgroup"
)

// TaskPool is the shared worker pool used by every parallel phase of the
// pipeline. Tasks are fire-and-wait: ParallelFor blocks until all iterations
// complete and returns the first error encountered.
type TaskPool struct {
	limit int
}

// NewTaskPool returns a pool running at most limit tasks concurrently.
// limit <= 0 selects one task per CPU.
func NewTaskPool(limit int) *TaskPool {
	if limit <= 0 {
		limit = runtime.NumCPU()
	}
	return &TaskPool{limit: limit}
}

// Concurrency returns the pool's task limit.
func (p *TaskPool) Concurrency() int { return p.limit }

// ParallelFor applies fn to every index in [0, n), fanning out across the
// pool and waiting for all iterations.
func (p *TaskPool) ParallelFor(n int, fn func(i int) error) error {
	if n == 0 {
		return nil
	}
	var g errgroup.Group
	g.SetLimit(p.limit)
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error { return fn(i) })
	}
	return g.Wait()
}

// Distributed is the collective interface across simulation ranks. A
// single-process run uses LocalCollective; the cluster package provides a
// zmq-backed implementation for multi-rank runs.
type Distributed interface {
	Rank() int
	Size() int
	// GatherCellLabels concatenates every rank's label tables, ordered by
	// rank, and returns the union on all ranks.
	GatherCellLabels(local []CellLabels) ([]CellLabels, error)
	// GatherSpikes concatenates every rank's spikes, ordered by rank, and
	// returns the union on all ranks.
	GatherSpikes(local []Spike) ([]Spike, error)
	// AllReduceMin returns the minimum of v across all ranks.
	AllReduceMin(v TimeType) (TimeType, error)
}

// LocalCollective is the trivial single-rank Distributed implementation.
type LocalCollective struct{}

func (LocalCollective) Rank() int { return 0 }
func (LocalCollective) Size() int { return 1 }

func (LocalCollective) GatherCellLabels(local []CellLabels) ([]CellLabels, error) {
	return local, nil
}

func (LocalCollective) GatherSpikes(local []Spike) ([]Spike, error) {
	return local, nil
}

func (LocalCollective) AllReduceMin(v TimeType) (TimeType, error) {
	return v, nil
}

// ExecutionContext bundles the shared task pool with the distributed
// collective for a simulation.
type ExecutionContext struct {
	Pool *TaskPool
	Dist Distributed
}

// NewLocalContext returns a single-rank context with the given concurrency.
func NewLocalContext(concurrency int) ExecutionContext {
	return ExecutionContext{
		Pool: NewTaskPool(concurrency),
		Dist: LocalCollective{},
	}
}
