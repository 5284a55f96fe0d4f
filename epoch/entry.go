package epoch

import (
	"unsafe"

	"github.com/zeebo/tiermvcc/internal/machine"
)

// entry is one goroutine's EBR slot: the epoch it last observed on Enter,
// and whether it's currently inside a critical section. Grounded on the
// teacher's epoch/entry.go, which pads a single local-epoch field to a
// cache line; this adds in_critical per spec.md §3's EBR thread slot.
type entry struct {
	local      uint64
	inCritical uint32
	_          [52]byte
}

type ( // ensure entries are exactly the size of a cache line
	_ [unsafe.Sizeof(entry{}) - machine.CacheLine]byte
	_ [machine.CacheLine - unsafe.Sizeof(entry{})]byte
)

func getEntry(h Handle) *entry {
	return &global.entries[h.id%machine.MaxThreads]
}
