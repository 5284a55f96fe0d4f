package epoch

import (
	"sync/atomic"
	"unsafe"
)

// retireEntry is one retired object awaiting reclamation: the pointer and
// the deleter that knows how to free it (it may cross-free into a
// different goroutine's heap, which is exactly what the allocator's
// remote-free path supports — spec.md §4.6 "Rationale").
type retireEntry struct {
	next    unsafe.Pointer // *retireEntry, threaded atomically
	ptr     unsafe.Pointer
	deleter func(unsafe.Pointer)
}

// retireBucket is a lock-free MPSC stack of retired entries, one per epoch
// mod EpochSlots. The push/steal-all shape mirrors the allocator's
// slab.remoteFreeList (itself grounded on the teacher's pin.buffer
// unpinned linked list in pin/buffer.go): many goroutines retire
// concurrently, one advancing goroutine drains.
type retireBucket struct {
	head unsafe.Pointer
	_    [56]byte
}

func (b *retireBucket) push(e *retireEntry) {
	for {
		old := atomic.LoadPointer(&b.head)
		e.next = old
		if atomic.CompareAndSwapPointer(&b.head, old, unsafe.Pointer(e)) {
			return
		}
	}
}

// drain steals the entire bucket and invokes every deleter. Only the
// advancing goroutine (inside TryAdvanceEpoch) calls this.
func (b *retireBucket) drain() {
	stolen := atomic.SwapPointer(&b.head, nil)
	for stolen != nil {
		e := (*retireEntry)(stolen)
		stolen = e.next
		e.deleter(e.ptr)
	}
}
