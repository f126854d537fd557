package sim

import "sort"

// lowerBoundTime returns the index of the first event with time >= t.
// Events must already be sorted by time.
func lowerBoundTime(evs []PostSynapticEvent, t TimeType) int {
	return sort.Search(len(evs), func(i int) bool { return evs[i].Time >= t })
}

// splitSortedEvents splits a time-sorted event slice at t into the portions
// strictly before t and at-or-after t.
func splitSortedEvents(evs []PostSynapticEvent, t TimeType) ([]PostSynapticEvent, []PostSynapticEvent) {
	i := lowerBoundTime(evs, t)
	return evs[:i], evs[i:]
}

// sortEvents sorts a pending buffer by the canonical event ordering
// (time, target, weight). The sort is stable.
func sortEvents(evs []PostSynapticEvent) {
	sort.SliceStable(evs, func(i, j int) bool { return eventLess(evs[i], evs[j]) })
}

// mergeTwo appends the stable two-way merge of a and b to dst and returns it.
// Equal-time events from a precede those from b.
func mergeTwo(dst, a, b []PostSynapticEvent) []PostSynapticEvent {
	for len(a) > 0 && len(b) > 0 {
		if b[0].Time < a[0].Time {
			dst = append(dst, b[0])
			b = b[1:]
		} else {
			dst = append(dst, a[0])
			a = a[1:]
		}
	}
	dst = append(dst, a...)
	dst = append(dst, b...)
	return dst
}

// treeMergeEvents merges K time-sorted spans into a single sorted sequence
// appended to dst. Adjacent spans are merged pairwise in rounds, so the work
// is O(N log K) and equal-time events keep the relative order of their spans
// (span i before span j for i < j).
func treeMergeEvents(spans [][]PostSynapticEvent, dst []PostSynapticEvent) []PostSynapticEvent {
	switch len(spans) {
	case 0:
		return dst
	case 1:
		return append(dst, spans[0]...)
	}

	cur := spans
	for len(cur) > 1 {
		next := make([][]PostSynapticEvent, 0, (len(cur)+1)/2)
		for i := 0; i+1 < len(cur); i += 2 {
			next = append(next, mergeTwo(nil, cur[i], cur[i+1]))
		}
		if len(cur)%2 == 1 {
			next = append(next, cur[len(cur)-1])
		}
		cur = next
	}
	return append(dst, cur[0]...)
}

// mergeCellEvents builds a cell's event lane for the interval [tFrom, tTo)
// from the previous lane's unconsumed events, the sorted pending buffer, and
// the cell's event generators.
//
// The produced lane is time-sorted, contains no event with time < tFrom, and
// retains events with time >= tTo at its tail so the next epoch's merge can
// pick them up. Equal-time events keep the order: previous-lane events, then
// pending events, then generator events in ascending generator index.
func mergeCellEvents(
	tFrom, tTo TimeType,
	oldEvents, pending []PostSynapticEvent,
	generators []EventGenerator,
	lane *EventLane,
) {
	out := (*lane)[:0]

	// Events before tFrom were consumed in the previous epoch; they were only
	// kept on the old lane so generators could interleave against them.
	_, oldEvents = splitSortedEvents(oldEvents, tFrom)

	if len(generators) > 0 {
		// Tree-merge the in-window portions of old, pending and each
		// generator's span for [tFrom, tTo).
		spans := make([][]PostSynapticEvent, 0, 2+len(generators))

		oldIn, oldTail := splitSortedEvents(oldEvents, tTo)
		pendIn, pendTail := splitSortedEvents(pending, tTo)
		spans = append(spans, oldIn, pendIn)

		for _, g := range generators {
			if evs := g.Events(tFrom, tTo); len(evs) > 0 {
				spans = append(spans, evs)
			}
		}

		out = treeMergeEvents(spans, out)

		oldEvents = oldTail
		pending = pendTail
	}

	// Merge the remaining (>= tTo) old and pending events onto the tail.
	*lane = mergeTwo(out, oldEvents, pending)
}
