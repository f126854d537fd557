package trace

import (
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Summary aggregates statistics from a SimulationTrace.
type Summary struct {
	TotalSpikes   int
	TotalSamples  int
	UniqueSources int
	FirstSpike    float64
	LastSpike     float64
	MeanISI       float64
	ISIStdDev     float64
	SourceCounts  map[uint64]int // source gid -> spike count
}

// Summarize computes aggregate statistics from a SimulationTrace.
// Safe for nil or empty traces (returns zero-value fields).
func Summarize(st *SimulationTrace) *Summary {
	summary := &Summary{
		SourceCounts: make(map[uint64]int),
	}
	if st == nil {
		return summary
	}
	st.mu.Lock()
	defer st.mu.Unlock()

	summary.TotalSpikes = len(st.Spikes)
	summary.TotalSamples = len(st.Samples)
	if len(st.Spikes) == 0 {
		return summary
	}

	bySource := make(map[uint64][]float64)
	summary.FirstSpike = st.Spikes[0].Time
	summary.LastSpike = st.Spikes[0].Time
	for _, s := range st.Spikes {
		summary.SourceCounts[s.Source]++
		bySource[s.Source] = append(bySource[s.Source], s.Time)
		if s.Time < summary.FirstSpike {
			summary.FirstSpike = s.Time
		}
		if s.Time > summary.LastSpike {
			summary.LastSpike = s.Time
		}
	}
	summary.UniqueSources = len(summary.SourceCounts)

	var isis []float64
	for _, times := range bySource {
		sort.Float64s(times)
		for i := 1; i < len(times); i++ {
			isis = append(isis, times[i]-times[i-1])
		}
	}
	if len(isis) > 0 {
		summary.MeanISI, summary.ISIStdDev = stat.MeanStdDev(isis, nil)
	}
	return summary
}
