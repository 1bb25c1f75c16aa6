package fragment

import "testing"

func rangesEqual(t *testing.T, got []Range, want []Range) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %d ranges %v, want %d ranges %v", len(got), got, len(want), want)
	}
	for i := range got {
		if got[i] != want[i] {
			t.Fatalf("range %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestAddDisjointRangesStayOrdered(t *testing.T) {
	l := NewList(100)
	l.Add(50, 10)
	l.Add(0, 10)
	l.Add(80, 10)
	rangesEqual(t, l.Ranges(), []Range{{0, 10}, {50, 10}, {80, 10}})
}

func TestAddCoalescesAdjacentRanges(t *testing.T) {
	l := NewList(100)
	l.Add(0, 10)
	l.Add(10, 10)
	rangesEqual(t, l.Ranges(), []Range{{0, 20}})
}

func TestAddCoalescesOverlappingRanges(t *testing.T) {
	l := NewList(100)
	l.Add(0, 10)
	l.Add(5, 10)
	rangesEqual(t, l.Ranges(), []Range{{0, 15}})
}

func TestAddDropsWhollyCoveredRange(t *testing.T) {
	l := NewList(100)
	l.Add(10, 5)
	l.Add(0, 100)
	rangesEqual(t, l.Ranges(), []Range{{0, 100}})
}

func TestAddBridgesGapMergingBothNeighbors(t *testing.T) {
	l := NewList(100)
	l.Add(0, 10)
	l.Add(20, 10)
	l.Add(10, 10)
	rangesEqual(t, l.Ranges(), []Range{{0, 30}})
}

func TestCheckExists(t *testing.T) {
	l := NewList(100)
	l.Add(10, 10)
	if !l.CheckExists(15, 10) {
		t.Fatalf("expected overlap to be detected")
	}
	if l.CheckExists(30, 10) {
		t.Fatalf("expected no overlap")
	}
}

func TestCheckCompleteZeroSize(t *testing.T) {
	l := NewList(0)
	if !l.CheckComplete() {
		t.Fatalf("zero-size file should be complete")
	}
}

func TestCheckCompletePartialThenFull(t *testing.T) {
	l := NewList(100)
	l.Add(0, 50)
	if l.CheckComplete() {
		t.Fatalf("partial coverage should not be complete")
	}
	l.Add(50, 50)
	if !l.CheckComplete() {
		t.Fatalf("full coverage should be complete")
	}
}
