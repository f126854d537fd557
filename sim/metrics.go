package sim

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Metrics aggregates spike statistics over a finished run for final
// reporting. Populate it with CollectMetrics and render with Print.
type Metrics struct {
	NumSpikes     uint64   // total spikes delivered globally
	Duration      TimeType // simulated time covered
	MeanRate      float64  // spikes per unit time across the whole network
	MeanISI       float64  // mean inter-spike interval over all sources
	ISIStdDev     float64  // standard deviation of inter-spike intervals
	ActiveSources int      // number of distinct sources that spiked
}

// CollectMetrics computes summary statistics from a recorded spike train.
// Spikes need not be sorted; duration is the simulated span they cover.
func CollectMetrics(spikes []Spike, duration TimeType) Metrics {
	m := Metrics{
		NumSpikes: uint64(len(spikes)),
		Duration:  duration,
	}
	if len(spikes) == 0 {
		return m
	}
	if duration > 0 {
		m.MeanRate = float64(len(spikes)) / float64(duration)
	}

	bySource := make(map[GID][]float64)
	for _, s := range spikes {
		bySource[s.Source] = append(bySource[s.Source], float64(s.Time))
	}
	m.ActiveSources = len(bySource)

	var isis []float64
	for _, times := range bySource {
		sort.Float64s(times)
		for i := 1; i < len(times); i++ {
			isis = append(isis, times[i]-times[i-1])
		}
	}
	if len(isis) > 0 {
		m.MeanISI, m.ISIStdDev = stat.MeanStdDev(isis, nil)
	}
	return m
}

// Print displays aggregated metrics at the end of the simulation.
func (m *Metrics) Print() {
	fmt.Println("=== Simulation Metrics ===")
	fmt.Printf("Total Spikes      : %d\n", m.NumSpikes)
	fmt.Printf("Simulated Time    : %.3f ms\n", float64(m.Duration))
	fmt.Printf("Active Sources    : %d\n", m.ActiveSources)
	if m.NumSpikes > 0 {
		fmt.Printf("Mean Rate         : %.3f spikes/ms\n", m.MeanRate)
		if m.MeanISI > 0 {
			fmt.Printf("Mean ISI          : %.3f ms\n", m.MeanISI)
			fmt.Printf("ISI Std Dev       : %.3f ms\n", m.ISIStdDev)
		}
	}
}
