package sim

import (
	"errors"
	"reflect"
	"testing"
)

func buildCommunicator(t *testing.T, rec *scriptedRecipe, decomp DomainDecomposition) *localCommunicator {
	t.Helper()
	s, err := NewSimulation(rec, decomp, NewLocalContext(0))
	if err != nil {
		t.Fatalf("NewSimulation: %v", err)
	}
	return s.comm.(*localCommunicator)
}

func TestCommunicator_MinDelay_FoldsExternalDelay(t *testing.T) {
	// GIVEN a connection with delay 3.0 and an external feed with delay 2.0
	rec := &scriptedRecipe{
		numCells: 2,
		extDelay: 2.0,
		conns: map[GID][]Connection{
			1: {{Source: 0, SourceLabel: "src", TargetLabel: "tgt", Weight: 1, Delay: 3.0}},
		},
	}
	c := buildCommunicator(t, rec, singleGroupDecomp(2))

	// THEN the external delay wins the minimum
	if got := c.MinDelay(); got != 2.0 {
		t.Errorf("MinDelay: got %v, want 2.0", got)
	}
}

func TestCommunicator_ZeroDelayConnectionIsRejected(t *testing.T) {
	// GIVEN a connection with delay zero
	rec := &scriptedRecipe{
		numCells: 2,
		conns: map[GID][]Connection{
			1: {{Source: 0, SourceLabel: "src", TargetLabel: "tgt", Weight: 1, Delay: 0}},
		},
	}

	// WHEN building the simulation
	_, err := NewSimulation(rec, singleGroupDecomp(2), NewLocalContext(0))

	// THEN construction fails with the delay error
	if !errors.Is(err, ErrZeroMinDelay) {
		t.Errorf("NewSimulation: got %v, want ErrZeroMinDelay", err)
	}
}

func TestCommunicator_UnknownSourceLabelIsRejected(t *testing.T) {
	// GIVEN a connection naming a label no source publishes
	rec := &scriptedRecipe{
		numCells: 2,
		conns: map[GID][]Connection{
			1: {{Source: 0, SourceLabel: "axon", TargetLabel: "tgt", Weight: 1, Delay: 1.0}},
		},
	}

	// WHEN building the simulation
	_, err := NewSimulation(rec, singleGroupDecomp(2), NewLocalContext(0))

	// THEN construction fails
	if err == nil {
		t.Fatal("NewSimulation: got nil error, want source label failure")
	}
}

func TestCommunicator_MakeEventQueues_StampsTimeAndTarget(t *testing.T) {
	// GIVEN a source fanning out to two cells with different delays
	rec := &scriptedRecipe{
		numCells: 3,
		conns: map[GID][]Connection{
			1: {{Source: 0, SourceLabel: "src", TargetLabel: "tgt", Weight: 0.5, Delay: 1.0}},
			2: {{Source: 0, SourceLabel: "src", TargetLabel: "tgt", Weight: 0.25, Delay: 2.0}},
		},
	}
	c := buildCommunicator(t, rec, singleGroupDecomp(3))

	// WHEN translating a spike at 1.5
	pending := make([]EventLane, 3)
	c.MakeEventQueues([]Spike{{Source: 0, Time: 1.5}}, pending)

	// THEN each target cell receives one event at spike time plus its delay
	if len(pending[0]) != 0 {
		t.Errorf("cell 0 pending: got %v, want empty", pending[0])
	}
	want1 := EventLane{{Target: 0, Weight: 0.5, Time: 2.5}}
	if !reflect.DeepEqual(pending[1], want1) {
		t.Errorf("cell 1 pending: got %v, want %v", pending[1], want1)
	}
	want2 := EventLane{{Target: 0, Weight: 0.25, Time: 3.5}}
	if !reflect.DeepEqual(pending[2], want2) {
		t.Errorf("cell 2 pending: got %v, want %v", pending[2], want2)
	}
}

func TestCommunicator_MakeEventQueues_AppendsToExistingPending(t *testing.T) {
	// GIVEN a pending buffer that already holds an injected event
	rec := &scriptedRecipe{
		numCells: 2,
		conns: map[GID][]Connection{
			1: {{Source: 0, SourceLabel: "src", TargetLabel: "tgt", Weight: 1, Delay: 1.0}},
		},
	}
	c := buildCommunicator(t, rec, singleGroupDecomp(2))
	pending := make([]EventLane, 2)
	pending[1] = EventLane{{Target: 0, Weight: 2, Time: 9.0}}

	// WHEN translating a spike
	c.MakeEventQueues([]Spike{{Source: 0, Time: 0.5}}, pending)

	// THEN the translated event is appended after the existing one
	if len(pending[1]) != 2 || pending[1][0].Time != 9.0 || pending[1][1].Time != 1.5 {
		t.Errorf("cell 1 pending: got %v, want existing event then spike at 1.5", pending[1])
	}
}

func TestCommunicator_GroupQueueRange_PartitionsLanes(t *testing.T) {
	// GIVEN a decomposition with groups of two cells and one cell
	rec := &scriptedRecipe{numCells: 3, extDelay: 1.0}
	decomp := &staticDecomp{groups: []GroupDescription{
		{Kind: scriptedKind, Backend: BackendMulticore, GIDs: []GID{0, 1}},
		{Kind: scriptedKind, Backend: BackendMulticore, GIDs: []GID{2}},
	}}
	c := buildCommunicator(t, rec, decomp)

	// THEN the lane ranges tile the local cells in group order
	if b, e := c.GroupQueueRange(0); b != 0 || e != 2 {
		t.Errorf("group 0 range: got [%d, %d), want [0, 2)", b, e)
	}
	if b, e := c.GroupQueueRange(1); b != 2 || e != 3 {
		t.Errorf("group 1 range: got [%d, %d), want [2, 3)", b, e)
	}
	if n := c.NumLocalCells(); n != 3 {
		t.Errorf("NumLocalCells: got %d, want 3", n)
	}
}

func TestCommunicator_Exchange_CountsGlobalSpikes(t *testing.T) {
	// GIVEN a single-rank communicator
	rec := &scriptedRecipe{numCells: 1, extDelay: 1.0}
	c := buildCommunicator(t, rec, singleGroupDecomp(1))

	// WHEN exchanging two batches
	if _, err := c.Exchange([]Spike{{Source: 0, Time: 0.1}, {Source: 0, Time: 0.2}}); err != nil {
		t.Fatalf("Exchange: %v", err)
	}
	if _, err := c.Exchange([]Spike{{Source: 0, Time: 0.3}}); err != nil {
		t.Fatalf("Exchange: %v", err)
	}

	// THEN the counter accumulates until Reset
	if n := c.NumSpikes(); n != 3 {
		t.Errorf("NumSpikes: got %d, want 3", n)
	}
	c.Reset()
	if n := c.NumSpikes(); n != 0 {
		t.Errorf("NumSpikes after Reset: got %d, want 0", n)
	}
}
