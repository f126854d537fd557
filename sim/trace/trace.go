package trace

import (
	"bufio"
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"
	"github.com/sugawarayuuta/sonnet"
)

// Level controls the verbosity of trace collection.
type Level string

const (
	// LevelNone disables tracing (zero overhead).
	LevelNone Level = "none"
	// LevelSpikes captures every delivered spike.
	LevelSpikes Level = "spikes"
	// LevelFull captures spikes and probe samples.
	LevelFull Level = "full"
)

// validLevels maps accepted trace level strings.
var validLevels = map[Level]bool{
	LevelNone:   true,
	LevelSpikes: true,
	LevelFull:   true,
	"":          true, // empty defaults to none
}

// IsValidLevel returns true if the given level string is recognized.
func IsValidLevel(level string) bool {
	return validLevels[Level(level)]
}

// SimulationTrace collects spike and sample records during a run. The spike
// path is fed from the driver's exchange phase and sample callbacks fire
// from parallel group tasks, so appends are locked.
type SimulationTrace struct {
	Level Level
	RunID string

	mu      sync.Mutex
	Spikes  []SpikeRecord
	Samples []SampleRecord
}

// NewSimulationTrace creates a SimulationTrace ready for recording, with a
// fresh run identifier.
func NewSimulationTrace(level Level) *SimulationTrace {
	return &SimulationTrace{
		Level:   level,
		RunID:   uuid.NewString(),
		Spikes:  make([]SpikeRecord, 0),
		Samples: make([]SampleRecord, 0),
	}
}

// RecordSpikes appends spike records when the level captures spikes.
func (st *SimulationTrace) RecordSpikes(records []SpikeRecord) {
	if st.Level != LevelSpikes && st.Level != LevelFull {
		return
	}
	st.mu.Lock()
	st.Spikes = append(st.Spikes, records...)
	st.mu.Unlock()
}

// RecordSamples appends sample records when the level captures samples.
func (st *SimulationTrace) RecordSamples(records []SampleRecord) {
	if st.Level != LevelFull {
		return
	}
	st.mu.Lock()
	st.Samples = append(st.Samples, records...)
	st.mu.Unlock()
}

// line is the JSONL envelope: one object per record, tagged by kind.
type line struct {
	Kind   string        `json:"kind"`
	RunID  string        `json:"run_id,omitempty"`
	Spike  *SpikeRecord  `json:"spike,omitempty"`
	Sample *SampleRecord `json:"sample,omitempty"`
}

// WriteJSONL streams the collected records to w, one JSON object per line.
// The first line identifies the run; spikes follow, then samples.
func (st *SimulationTrace) WriteJSONL(w io.Writer) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	bw := bufio.NewWriter(w)
	if err := writeLine(bw, line{Kind: "run", RunID: st.RunID}); err != nil {
		return err
	}
	for i := range st.Spikes {
		if err := writeLine(bw, line{Kind: "spike", Spike: &st.Spikes[i]}); err != nil {
			return err
		}
	}
	for i := range st.Samples {
		if err := writeLine(bw, line{Kind: "sample", Sample: &st.Samples[i]}); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func writeLine(w *bufio.Writer, l line) error {
	data, err := sonnet.Marshal(l)
	if err != nil {
		return fmt.Errorf("encode trace line: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write trace line: %w", err)
	}
	return w.WriteByte('\n')
}
