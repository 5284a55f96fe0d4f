package slab

// List is the intrusive doubly-linked list of slabs a Pool uses for its
// current/partial/full buckets, ported directly from
// original_source/include/TierAlloc/ThreadHeap/SlabList.hpp onto *Slab's
// Prev/Next fields.
type List struct {
	head, tail *Slab
}

func (l *List) Empty() bool { return l.head == nil }

// PushFront inserts s at the head (LIFO insertion, used for the partial
// list per spec.md §4.4 "migrate ... to head of partial_list (LIFO for
// locality)").
func (l *List) PushFront(s *Slab) {
	s.Prev = nil
	s.Next = l.head
	if l.head != nil {
		l.head.Prev = s
	} else {
		l.tail = s
	}
	l.head = s
}

// PushBack inserts s at the tail (FIFO insertion, used for the full list).
func (l *List) PushBack(s *Slab) {
	s.Next = nil
	s.Prev = l.tail
	if l.tail != nil {
		l.tail.Next = s
	} else {
		l.head = s
	}
	l.tail = s
}

// Remove detaches s from the list, wherever it sits.
func (l *List) Remove(s *Slab) {
	if s.Prev != nil {
		s.Prev.Next = s.Next
	} else {
		l.head = s.Next
	}
	if s.Next != nil {
		s.Next.Prev = s.Prev
	} else {
		l.tail = s.Prev
	}
	s.Prev = nil
	s.Next = nil
}

// PopFront removes and returns the head, or nil if empty.
func (l *List) PopFront() *Slab {
	if l.head == nil {
		return nil
	}
	s := l.head
	l.Remove(s)
	return s
}

// Front returns the head without removing it, used by the rescue scan to
// probe a full slab without committing to taking it.
func (l *List) Front() *Slab { return l.head }

// MoveHeadToTail rotates the current head to the tail, used by the rescue
// scan to give every full-list slab a fair shot across successive
// allocations (spec.md §4.4 "rotated to the tail (fair)").
func (l *List) MoveHeadToTail() {
	if l.head == nil || l.head == l.tail {
		return
	}
	first, last := l.head, l.tail
	l.head = first.Next
	l.head.Prev = nil

	last.Next = first
	first.Prev = last
	first.Next = nil
	l.tail = first
}
