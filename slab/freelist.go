package slab

import (
	"sync/atomic"
	"unsafe"
)

// remoteFreeList is a lock-free multi-producer single-consumer stack of
// blocks freed by threads other than a slab's owner. Grounded on
// original_source/include/TierAlloc/common/AtomicFreeList.hpp: push is a CAS
// loop threading the freed block's own first word as the `next` pointer
// (the same "free memory doubles as free-list storage" idiom the teacher
// uses for pin.buffer's unpinned linked list in pin/buffer.go).
//
// Push uses release ordering; StealAll uses acquire-release, so any writes a
// remote freer made to the block before freeing it are visible to the owner
// after the steal (spec.md §4.3 "Key ordering").
type remoteFreeList struct {
	head unsafe.Pointer
	_    [56]byte // pad to a cache line alongside head
}

// Push adds ptr to the stack. Safe to call concurrently from any thread.
func (f *remoteFreeList) Push(ptr unsafe.Pointer) {
	for {
		old := atomic.LoadPointer(&f.head)
		*(*unsafe.Pointer)(ptr) = old
		if atomic.CompareAndSwapPointer(&f.head, old, ptr) {
			return
		}
	}
}

// StealAll atomically detaches the entire stack and returns its head. Only
// the slab's owner thread may call this.
func (f *remoteFreeList) StealAll() unsafe.Pointer {
	return atomic.SwapPointer(&f.head, nil)
}
