// Package heap is the thread-local heap façade of spec.md §4.5: the single
// entry point every other package (chiefly stm) allocates and frees through.
// It dispatches small requests to a per-size-class slab.Pool and large
// requests to a directly mapped span, and on deallocate reads the chunk
// header to decide which path a pointer came from.
package heap

import (
	"unsafe"

	"github.com/zeebo/tiermvcc/chunk"
	"github.com/zeebo/tiermvcc/osmap"
	"github.com/zeebo/tiermvcc/slab"
)

func mapLarge(n uintptr) unsafe.Pointer        { return osmap.MapAligned(n, chunk.Align) }
func unmapLarge(ptr unsafe.Pointer, n uintptr) { osmap.Unmap(ptr, n) }

// Heap is one goroutine's thread-local allocator: a size-class table of
// pools in front of its own chunk.ThreadCache. It must not be shared across
// goroutines (the same "Handle should not cross threads" contract the
// teacher's epoch.Handle documents).
type Heap struct {
	pools  [slab.ClassCount]*slab.Pool
	chunks chunk.ThreadCache
}

// New constructs an empty thread-local heap. Pools are built lazily on
// first use of each size class.
func New() *Heap {
	return &Heap{}
}

func (h *Heap) poolFor(class uint32) *slab.Pool {
	p := h.pools[class]
	if p == nil {
		p = slab.NewPool(slab.ClassToSize(class), &h.chunks)
		h.pools[class] = p
	}
	return p
}

// Allocate returns n bytes. Requests at or below slab.SmallAllocCeiling go
// through the size-class pools; larger requests get a directly mapped span
// (spec.md §4.5). Returns nil on OS exhaustion.
func (h *Heap) Allocate(n uint32) unsafe.Pointer {
	if n > slab.SmallAllocCeiling {
		return newSpan(n)
	}
	class := slab.SizeToClass(n)
	return h.poolFor(class).Allocate()
}

// Deallocate frees a pointer previously returned by Allocate (from any
// thread's Heap). It is a no-op on nil, matching spec.md §4.5's
// nullptr-safety requirement.
func (h *Heap) Deallocate(ptr unsafe.Pointer) {
	if ptr == nil {
		return
	}

	if slab.TagAt(ptr) == slab.TagLarge {
		spanAt(ptr).release()
		return
	}

	s := slab.SlabAt(ptr)
	if owner := s.Owner(); owner != nil && owner == h.pools[classIndexOf(s)] {
		owner.Deallocate(s, ptr)
		return
	}

	// Cross-thread free: the slab belongs to some other Heap's pool.
	s.FreeRemote(ptr)
}

// classIndexOf recovers a slab's size class from its block size, needed
// because Deallocate only has the slab, not the class index, to hand.
func classIndexOf(s *slab.Slab) uint32 {
	return slab.SizeToClass(s.BlockSize())
}

// Drain releases every chunk this heap is holding in its thread-local cache
// back to the central cache. Call this when a goroutine is done allocating
// (mirrors the teacher's destructor-drains-thread-local-state idiom).
func (h *Heap) Drain() {
	h.chunks.Drain()
}
