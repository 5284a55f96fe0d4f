// Package epoch implements the EBR manager of spec.md §4.6: per-thread
// epoch slots, three rotating retire buckets, and the grace-period
// advancement protocol that lets retired allocator objects be reclaimed
// once every critical section that could still see them has finished.
//
// Rewritten from the teacher's epoch package (epoch/handle.go,
// epoch/epoch.go, epoch/trigger.go), which implements a single global
// epoch tuned to a persistence engine's GC trigger queue. The Handle
// acquire/release slot machinery carries over almost unchanged; the
// trigger queue becomes a 3-bucket retire scheme (spec.md's EBR_EPOCH_SLOTS
// = 3), and Protect/Unprotect become Enter/Leave.
package epoch

import (
	"sync/atomic"

	"github.com/zeebo/tiermvcc/internal/machine"
)

var handleData struct {
	next uint32
	used [machine.MaxThreads]uint32
}

// Handle represents a goroutine's claim on one EBR slot. It must not cross
// goroutines, and calls involving the same Handle must not happen
// concurrently — the same contract the teacher's epoch.Handle documents.
type Handle struct {
	id uint32
}

// AcquireHandle acquires a unique Handle for the calling goroutine.
func AcquireHandle() Handle {
	start := atomic.AddUint32(&handleData.next, 1)
	end := start + machine.MaxThreads*2

	for start != end {
		id := start % machine.MaxThreads
		if atomic.CompareAndSwapUint32(&handleData.used[id], 0, 1) {
			return Handle{id: id}
		}
		start++
	}
	panic("epoch: too many thread handles")
}

// ReleaseHandle releases the handle, letting another goroutine reuse its
// slot. The slot is reset out of the critical region first so a lingering
// stale local_epoch can never block TryAdvanceEpoch.
func ReleaseHandle(h Handle) {
	entry := getEntry(h)
	atomic.StoreUint32(&entry.inCritical, 0)
	atomic.StoreUint64(&entry.local, 0)
	atomic.StoreUint32(&handleData.used[h.id%machine.MaxThreads], 0)
}
