// Package fragment tracks which byte ranges of a file being restored
// have been written so far, merging overlapping or adjacent ranges on
// insert and reporting whether a file is fully covered.
package fragment

import "sort"

// Range is a half-open byte interval [Offset, Offset+Length).
type Range struct {
	Offset uint64
	Length uint64
}

// End returns the exclusive end of r.
func (r Range) End() uint64 { return r.Offset + r.Length }

// List is the ordered, disjoint set of ranges recorded for one file.
type List struct {
	size   uint64
	ranges []Range
}

// NewList creates an empty ledger for a file of the given total size.
func NewList(size uint64) *List {
	return &List{size: size}
}

// Ranges returns a copy of the currently recorded ranges, in order.
func (l *List) Ranges() []Range {
	out := make([]Range, len(l.ranges))
	copy(out, l.ranges)
	return out
}

// Add records that [offset, offset+length) has been written, dropping
// any existing range it wholly covers and coalescing with whichever
// neighbor (or neighbors) it now touches or overlaps.
func (l *List) Add(offset, length uint64) {
	if length == 0 {
		return
	}
	newEnd := offset + length

	kept := l.ranges[:0]
	for _, r := range l.ranges {
		if r.Offset >= offset && r.End() <= newEnd {
			continue
		}
		kept = append(kept, r)
	}
	l.ranges = kept

	idx := sort.Search(len(l.ranges), func(i int) bool { return l.ranges[i].Offset > offset })

	if idx > 0 && l.ranges[idx-1].End() >= offset {
		prev := &l.ranges[idx-1]
		if newEnd > prev.End() {
			prev.Length = newEnd - prev.Offset
		}
		l.mergeForward(idx - 1)
		return
	}
	if idx < len(l.ranges) && newEnd >= l.ranges[idx].Offset {
		next := &l.ranges[idx]
		end := next.End()
		if newEnd > end {
			end = newEnd
		}
		next.Offset = offset
		next.Length = end - offset
		l.mergeForward(idx)
		return
	}

	l.ranges = append(l.ranges, Range{})
	copy(l.ranges[idx+1:], l.ranges[idx:])
	l.ranges[idx] = Range{Offset: offset, Length: length}
}

// mergeForward absorbs any ranges following index i that now overlap
// or touch it, collapsing a chain of adjacency in one pass.
func (l *List) mergeForward(i int) {
	for i+1 < len(l.ranges) {
		cur := l.ranges[i]
		next := l.ranges[i+1]
		if cur.End() < next.Offset {
			break
		}
		end := cur.End()
		if next.End() > end {
			end = next.End()
		}
		l.ranges[i].Length = end - cur.Offset
		l.ranges = append(l.ranges[:i+1], l.ranges[i+2:]...)
	}
}

// CheckExists reports whether any recorded range overlaps
// [offset, offset+length).
func (l *List) CheckExists(offset, length uint64) bool {
	end := offset + length
	for _, r := range l.ranges {
		if r.Offset < end && offset < r.End() {
			return true
		}
	}
	return false
}

// CheckComplete reports whether the file is fully covered: either its
// size is zero, or exactly one range remains and it spans [0, size).
func (l *List) CheckComplete() bool {
	if l.size == 0 {
		return true
	}
	return len(l.ranges) == 1 && l.ranges[0].Offset == 0 && l.ranges[0].Length >= l.size
}
