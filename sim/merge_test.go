package sim

import (
	"reflect"
	"testing"
)

func ev(t TimeType, target uint32, w float32) PostSynapticEvent {
	return PostSynapticEvent{Target: target, Weight: w, Time: t}
}

func timesOf(evs []PostSynapticEvent) []TimeType {
	out := make([]TimeType, len(evs))
	for i, e := range evs {
		out[i] = e.Time
	}
	return out
}

func assertSorted(t *testing.T, evs []PostSynapticEvent) {
	t.Helper()
	for i := 1; i < len(evs); i++ {
		if evs[i].Time < evs[i-1].Time {
			t.Fatalf("lane not time-sorted at %d: %v after %v", i, evs[i].Time, evs[i-1].Time)
		}
	}
}

func TestMergeCellEvents_DropsConsumedPrefix(t *testing.T) {
	// GIVEN an old lane with events both before and after t_from=2.0
	old := []PostSynapticEvent{ev(1.0, 0, 1), ev(1.9, 0, 1), ev(2.5, 0, 1)}

	// WHEN merging for [2.0, 3.0) with no pending and no generators
	var lane EventLane
	mergeCellEvents(2.0, 3.0, old, nil, nil, &lane)

	// THEN only the unconsumed event survives
	want := []TimeType{2.5}
	if !reflect.DeepEqual(timesOf(lane), want) {
		t.Errorf("merged lane times: got %v, want %v", timesOf(lane), want)
	}
}

func TestMergeCellEvents_RetainsOutOfWindowTail(t *testing.T) {
	// GIVEN pending events inside and beyond the window [1.0, 2.0)
	pending := []PostSynapticEvent{ev(1.2, 0, 1), ev(2.7, 0, 1), ev(3.4, 0, 1)}

	// WHEN merging with no generators
	var lane EventLane
	mergeCellEvents(1.0, 2.0, nil, pending, nil, &lane)

	// THEN events at or past t_to stay on the lane tail for the next epoch
	want := []TimeType{1.2, 2.7, 3.4}
	if !reflect.DeepEqual(timesOf(lane), want) {
		t.Errorf("merged lane times: got %v, want %v", timesOf(lane), want)
	}
	assertSorted(t, lane)
}

func TestMergeCellEvents_GeneratorInterleave(t *testing.T) {
	// GIVEN an old carry-over, a pending delivery and a generator stream
	old := []PostSynapticEvent{ev(1.1, 0, 1)}
	pending := []PostSynapticEvent{ev(1.5, 0, 1)}
	gen := NewExplicitGenerator(0, 1, []TimeType{1.3, 1.7})

	// WHEN merging for [1.0, 2.0)
	var lane EventLane
	mergeCellEvents(1.0, 2.0, old, pending, []EventGenerator{gen}, &lane)

	// THEN all three streams interleave in time order
	want := []TimeType{1.1, 1.3, 1.5, 1.7}
	if !reflect.DeepEqual(timesOf(lane), want) {
		t.Errorf("merged lane times: got %v, want %v", timesOf(lane), want)
	}
}

func TestMergeCellEvents_TieBreakOldPendingGenerator(t *testing.T) {
	// GIVEN equal-time events from old, pending and two generators,
	// distinguished by weight
	old := []PostSynapticEvent{ev(1.5, 0, 10)}
	pending := []PostSynapticEvent{ev(1.5, 0, 20)}
	gens := []EventGenerator{
		NewExplicitGenerator(0, 30, []TimeType{1.5}),
		NewExplicitGenerator(0, 40, []TimeType{1.5}),
	}

	// WHEN merging for [1.0, 2.0)
	var lane EventLane
	mergeCellEvents(1.0, 2.0, old, pending, gens, &lane)

	// THEN the relative order is old, pending, generator 0, generator 1
	wantWeights := []float32{10, 20, 30, 40}
	if len(lane) != 4 {
		t.Fatalf("merged lane length: got %d, want 4", len(lane))
	}
	for i, w := range wantWeights {
		if lane[i].Weight != w {
			t.Errorf("tie order[%d]: got weight %v, want %v", i, lane[i].Weight, w)
		}
	}
}

func TestMergeCellEvents_WithoutGenerators_TailTiesKeepOldFirst(t *testing.T) {
	// GIVEN equal-time old and pending events past the window
	old := []PostSynapticEvent{ev(3.0, 0, 10)}
	pending := []PostSynapticEvent{ev(3.0, 0, 20)}

	// WHEN merging for [1.0, 2.0)
	var lane EventLane
	mergeCellEvents(1.0, 2.0, old, pending, nil, &lane)

	// THEN the old event precedes the pending one
	if len(lane) != 2 || lane[0].Weight != 10 || lane[1].Weight != 20 {
		t.Errorf("tail tie order: got %v", lane)
	}
}

func TestTreeMergeEvents_ManyStreams(t *testing.T) {
	// GIVEN seven disjoint single-event streams in scrambled time order
	times := []TimeType{4, 1, 6, 2, 7, 3, 5}
	spans := make([][]PostSynapticEvent, len(times))
	for i, tt := range times {
		spans[i] = []PostSynapticEvent{ev(tt, 0, 1)}
	}

	// WHEN tree-merging
	out := treeMergeEvents(spans, nil)

	// THEN the output is fully sorted
	want := []TimeType{1, 2, 3, 4, 5, 6, 7}
	if !reflect.DeepEqual(timesOf(out), want) {
		t.Errorf("tree merge: got %v, want %v", timesOf(out), want)
	}
}

func TestMergeCellEvents_PartitionInvariance(t *testing.T) {
	// GIVEN a set of generator events split across two generators versus
	// carried by a single generator
	all := []TimeType{1.1, 1.2, 1.3, 1.4, 1.6, 1.8}
	split := []EventGenerator{
		NewExplicitGenerator(0, 1, []TimeType{1.1, 1.3, 1.6}),
		NewExplicitGenerator(0, 1, []TimeType{1.2, 1.4, 1.8}),
	}
	union := []EventGenerator{NewExplicitGenerator(0, 1, all)}

	// WHEN merging each partition over the same window with the same old
	// and pending streams
	old := []PostSynapticEvent{ev(1.05, 0, 1), ev(1.5, 0, 1)}
	pending := []PostSynapticEvent{ev(1.25, 0, 1), ev(2.5, 0, 1)}

	var laneSplit, laneUnion EventLane
	mergeCellEvents(1.0, 2.0, old, pending, split, &laneSplit)
	mergeCellEvents(1.0, 2.0, old, pending, union, &laneUnion)

	// THEN both partitions produce the same time sequence
	if !reflect.DeepEqual(timesOf(laneSplit), timesOf(laneUnion)) {
		t.Errorf("partition invariance: split %v, union %v", timesOf(laneSplit), timesOf(laneUnion))
	}
	assertSorted(t, laneSplit)
}

func TestSplitSortedEvents_Boundary(t *testing.T) {
	// GIVEN a sorted slice with an event exactly at the split point
	evs := []PostSynapticEvent{ev(1.0, 0, 1), ev(2.0, 0, 1), ev(3.0, 0, 1)}

	// WHEN splitting at 2.0
	before, after := splitSortedEvents(evs, 2.0)

	// THEN the boundary event lands in the at-or-after portion
	if len(before) != 1 || len(after) != 2 {
		t.Errorf("split at 2.0: got %d/%d, want 1/2", len(before), len(after))
	}
}
