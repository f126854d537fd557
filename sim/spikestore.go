package sim

import "sort"

// spikeStore accumulates the spikes produced by one epoch's Update phase.
// Each cell group writes into its own bucket, so concurrent group updates
// never contend. Two instances exist, indexed by epoch parity.
type spikeStore struct {
	buckets [][]Spike
}

func newSpikeStore(numBuckets int) *spikeStore {
	return &spikeStore{buckets: make([][]Spike, numBuckets)}
}

// Clear empties every bucket, keeping capacity. Called at the start of the
// Update phase that owns this parity.
func (s *spikeStore) Clear() {
	for i := range s.buckets {
		s.buckets[i] = s.buckets[i][:0]
	}
}

// Insert appends spikes to the bucket owned by the given group index.
func (s *spikeStore) Insert(bucket int, spikes []Spike) {
	s.buckets[bucket] = append(s.buckets[bucket], spikes...)
}

// Gather flattens all buckets into a single sequence sorted by time with
// source as tiebreak. Bucket concatenation order is the group index order,
// and the sort is stable, so identical runs gather identical sequences
// regardless of goroutine interleaving.
func (s *spikeStore) Gather() []Spike {
	n := 0
	for _, b := range s.buckets {
		n += len(b)
	}
	out := make([]Spike, 0, n)
	for _, b := range s.buckets {
		out = append(out, b...)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Time != out[j].Time {
			return out[i].Time < out[j].Time
		}
		return out[i].Source < out[j].Source
	})
	return out
}
