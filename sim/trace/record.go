// Package trace records spike and sample streams for offline analysis.
// Records are pure data types; collection and JSONL export live in trace.go
// and aggregate statistics in summary.go.
package trace

// SpikeRecord captures one delivered spike.
type SpikeRecord struct {
	Source uint64  `json:"source"`
	Time   float64 `json:"time"`
}

// SampleRecord captures one probe measurement.
type SampleRecord struct {
	GID   uint64  `json:"gid"`
	Probe string  `json:"probe"`
	Time  float64 `json:"time"`
	Value float64 `json:"value"`
}
