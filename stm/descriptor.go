package stm

// readEntry records one Load's address and a closure that re-checks the
// TMVar it came from is still at the same write_ts (spec.md §4.8 read set
// entry: {addr, validate}).
type readEntry struct {
	addr     uintptr
	validate func(readVersion uint64) bool
}

// writeEntry records one Store's pending value alongside the closures that
// publish or discard the version node it allocated (spec.md §4.8 write set
// entry: {addr, new_node, committer, deleter}). pending holds the stored
// value so a later Load in the same transaction can read it back without
// touching the TMVar's chain (read-your-own-writes).
type writeEntry struct {
	addr    uintptr
	pending any
	commit  func(writeTS uint64)
	abort   func()
}

func noopAbort() {}

// descriptor is one goroutine's reusable transaction state: the snapshot it
// started at, everything it read and wrote, and the sorted, deduplicated
// stripe indices it locked at commit time. A descriptor is never shared
// across goroutines, the same restriction epoch.Handle carries.
type descriptor struct {
	readVersion uint64
	readSet     []readEntry
	writeSet    []writeEntry
	lockSet     []uint32
}

// reset discards a completed or abandoned attempt. Write-set entries whose
// abort has not been replaced with noopAbort still hold an allocated,
// unpublished version node; their abort reclaims it. Capacity is kept so the
// next attempt does not reallocate its slices (spec.md §4.8 "descriptor
// reset: clear without shrinking capacity").
func (d *descriptor) reset() {
	for i := range d.writeSet {
		d.writeSet[i].abort()
	}
	d.readVersion = 0
	d.readSet = d.readSet[:0]
	d.writeSet = d.writeSet[:0]
	d.lockSet = d.lockSet[:0]
}
