package sim

import (
	"reflect"
	"testing"
)

func TestRegularSchedule_EventsInWindow(t *testing.T) {
	// GIVEN a schedule firing every 0.5 from 0
	s := NewRegularSchedule(0, 0.5)

	// WHEN querying [1.0, 2.5)
	got := s.Events(1.0, 2.5)

	// THEN the window start is inclusive and the end exclusive
	want := []TimeType{1.0, 1.5, 2.0}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("regular schedule: got %v, want %v", got, want)
	}
}

func TestExplicitSchedule_SortsAndWindows(t *testing.T) {
	// GIVEN an unsorted explicit schedule
	s := NewExplicitSchedule([]TimeType{3.0, 1.0, 2.0})

	// WHEN querying [1.5, 3.0)
	got := s.Events(1.5, 3.0)

	// THEN only the in-window times are returned, sorted
	want := []TimeType{2.0}
	if !reflect.DeepEqual(append([]TimeType(nil), got...), want) {
		t.Errorf("explicit schedule: got %v, want %v", got, want)
	}
}
