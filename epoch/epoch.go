package epoch

import (
	"sync/atomic"
	"unsafe"

	"github.com/zeebo/tiermvcc/internal/machine"
)

// EpochSlots is the number of rotating retire buckets (spec.md §6
// EBR_EPOCH_SLOTS).
const EpochSlots = 3

var global struct {
	// current is the global epoch counter.
	current uint64
	_       machine.Pad56

	entries [machine.MaxThreads]entry
	buckets [EpochSlots]retireBucket
}

func init() {
	// Start at EpochSlots so the very first TryAdvanceEpoch's
	// (current+1-2) bucket index never underflows before any real
	// retirement has happened; mirrors the teacher's epochData.current=1
	// non-zero starting point in epoch/epoch.go.
	global.current = EpochSlots
}

// Enter marks the calling goroutine's handle as inside a critical section
// at the current epoch, returning that epoch. Everything reachable at this
// moment is guaranteed live until the matching Leave.
func Enter(h Handle) uint64 {
	e := getEntry(h)
	epoch := atomic.LoadUint64(&global.current)
	atomic.StoreUint64(&e.local, epoch)
	atomic.StoreUint32(&e.inCritical, 1) // release: local is visible before in_critical
	return epoch
}

// Leave exits the critical section and opportunistically tries to advance
// the global epoch (spec.md §4.6 "leave(): clear in_critical; opportunistically
// call try_advance_epoch").
func Leave(h Handle) {
	e := getEntry(h)
	atomic.StoreUint32(&e.inCritical, 0)
	TryAdvanceEpoch()
}

// Retire schedules ptr for reclamation via deleter once the grace period
// has passed: global epoch advances at least twice past the epoch this was
// retired in, and no slot still reports being in a critical section that
// started at or before that epoch (spec.md §4.6 Guarantee).
func Retire(ptr unsafe.Pointer, deleter func(unsafe.Pointer)) {
	bucket := &global.buckets[atomic.LoadUint64(&global.current)%EpochSlots]
	bucket.push(&retireEntry{ptr: ptr, deleter: deleter})
}

// TryAdvanceEpoch scans all handles; if every in-critical slot has already
// observed the current epoch, it CAS-bumps the global epoch and reclaims
// the bucket that is now two epochs stale.
func TryAdvanceEpoch() uint64 {
	cur := atomic.LoadUint64(&global.current)

	for i := range &global.entries {
		e := &global.entries[i]
		if atomic.LoadUint32(&e.inCritical) != 0 && atomic.LoadUint64(&e.local) != cur {
			return cur
		}
	}

	if atomic.CompareAndSwapUint64(&global.current, cur, cur+1) {
		global.buckets[(cur+1-2)%EpochSlots].drain()
		return cur + 1
	}
	return atomic.LoadUint64(&global.current)
}

// Current returns the current global epoch, for tests and diagnostics.
func Current() uint64 {
	return atomic.LoadUint64(&global.current)
}
