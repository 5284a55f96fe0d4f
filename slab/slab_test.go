package slab

import (
	"testing"
	"unsafe"

	"github.com/zeebo/tiermvcc/chunk"
)

func TestSizeToClassRoundTrip(t *testing.T) {
	cases := []uint32{1, 7, 8, 9, 120, 128, 129, 200, 1000, 4096, 262144}
	for _, n := range cases {
		class := SizeToClass(n)
		size := ClassToSize(class)
		if size < n {
			t.Fatalf("ClassToSize(SizeToClass(%d))=%d is smaller than requested", n, size)
		}
		if class > 0 && ClassToSize(class-1) >= n {
			t.Fatalf("SizeToClass(%d)=%d is not the smallest class that fits", n, class)
		}
	}
}

func TestClassCount(t *testing.T) {
	if got := SizeToClass(MaxAlloc); got != ClassCount-1 {
		t.Fatalf("SizeToClass(MaxAlloc)=%d, want %d", got, ClassCount-1)
	}
}

func TestSlabBumpAndLocalFree(t *testing.T) {
	chunkPtr := chunk.FetchChunk()
	defer chunk.ReturnChunk(chunkPtr)

	pool := &Pool{blockSize: 64}
	s := CreateAt(chunkPtr, pool, 64)

	if s.MaxBlockCount() == 0 {
		t.Fatal("expected nonzero capacity")
	}

	a := s.Allocate()
	b := s.Allocate()
	if a == nil || b == nil || a == b {
		t.Fatalf("expected two distinct blocks, got %p %p", a, b)
	}
	if s.AllocatedCount() != 2 {
		t.Fatalf("AllocatedCount: got %d, want 2", s.AllocatedCount())
	}

	if empty := s.FreeLocal(a); empty {
		t.Fatal("slab should not be empty with one live allocation")
	}
	if empty := s.FreeLocal(b); !empty {
		t.Fatal("slab should be empty once every block is freed")
	}

	// freed blocks are reused before the bump pointer advances further.
	c := s.Allocate()
	if c != a && c != b {
		t.Fatalf("expected reuse of a freed block, got fresh %p", c)
	}
}

func TestSlabRemoteFree(t *testing.T) {
	chunkPtr := chunk.FetchChunk()
	defer chunk.ReturnChunk(chunkPtr)

	pool := &Pool{blockSize: 32}
	s := CreateAt(chunkPtr, pool, 32)

	ptr := s.Allocate()
	if ptr == nil {
		t.Fatal("Allocate returned nil")
	}

	s.FreeRemote(ptr)
	if s.remoteEmpty() {
		t.Fatal("remote free list should be nonempty before reclaim")
	}

	n := s.ReclaimRemoteMemory()
	if n != 1 {
		t.Fatalf("ReclaimRemoteMemory: got %d, want 1", n)
	}
	if !s.IsEmpty() {
		t.Fatal("slab should be empty after reclaiming its only allocation")
	}
}

// TestPoolRescue is spec.md §8 S3: a slab freed entirely via remote frees
// while on the full list is recovered by the rescue scan instead of sitting
// unreachable.
func TestPoolRescue(t *testing.T) {
	var tc chunk.ThreadCache
	pool := NewPool(16, &tc)

	first := pool.Allocate()
	if first == nil {
		t.Fatal("first allocation failed")
	}
	victim := SlabAt(first)
	max := victim.MaxBlockCount()

	victimPtrs := []unsafe.Pointer{first}
	for i := uint32(1); i < max; i++ {
		ptr := pool.Allocate()
		if ptr == nil {
			t.Fatalf("allocation %d from the first slab failed", i)
		}
		if SlabAt(ptr) != victim {
			t.Fatalf("allocation %d landed in a different slab than expected", i)
		}
		victimPtrs = append(victimPtrs, ptr)
	}

	// one more allocation forces victim onto the full list and carves a
	// second slab to serve this call.
	elsewhere := pool.Allocate()
	if elsewhere == nil {
		t.Fatal("allocation past the first slab's capacity failed")
	}
	if pool.full.Front() != victim {
		t.Fatalf("expected victim on the full list, got %p want %p", pool.full.Front(), victim)
	}
	second := SlabAt(elsewhere)

	// free every block of victim remotely, simulating frees from other
	// goroutines, so only the rescue scan (not FreeLocal) can recover it.
	for _, ptr := range victimPtrs {
		victim.FreeRemote(ptr)
	}

	// exhaust the second slab too, so the next allocation must fall through
	// current and partial and reach the rescue scan.
	for i := uint32(1); i < second.MaxBlockCount(); i++ {
		if pool.Allocate() == nil {
			t.Fatalf("allocation %d from the second slab failed", i)
		}
	}

	ptr := pool.Allocate()
	if ptr == nil {
		t.Fatal("expected rescue to recover a slab for this allocation")
	}
	if pool.current != victim {
		t.Fatalf("expected rescue to promote the remotely-freed slab, got %p want %p", pool.current, victim)
	}
}

func TestListOperations(t *testing.T) {
	var l List
	if !l.Empty() {
		t.Fatal("new list should be empty")
	}

	a := &Slab{}
	b := &Slab{}
	c := &Slab{}

	l.PushBack(a)
	l.PushBack(b)
	l.PushBack(c)

	if l.Front() != a {
		t.Fatalf("Front: got %p, want %p", l.Front(), a)
	}

	l.MoveHeadToTail()
	if l.Front() != b {
		t.Fatalf("Front after MoveHeadToTail: got %p, want %p", l.Front(), b)
	}

	l.Remove(b)
	if l.Front() != c {
		t.Fatalf("Front after removing old head: got %p, want %p", l.Front(), c)
	}

	if got := l.PopFront(); got != c {
		t.Fatalf("PopFront: got %p, want %p", got, c)
	}
	if got := l.PopFront(); got != a {
		t.Fatalf("PopFront: got %p, want %p", got, a)
	}
	if !l.Empty() {
		t.Fatal("list should be empty after popping every element")
	}
}
