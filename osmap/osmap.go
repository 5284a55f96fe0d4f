// Package osmap is the thin, OS-facing collaborator spec.md §6 calls out as
// out of scope for the hard engineering but required as a contract: it hands
// back chunk-sized, chunk-aligned, anonymous memory by over-mapping and
// trimming the head/tail slivers, backed by the real mmap/munmap syscalls via
// golang.org/x/sys/unix (the same dependency golang.org/x/sys pulled in by
// the rest of the retrieval pack's storage engines).
//
// This uses unix.MmapPtr/unix.MunmapPtr rather than unix.Mmap/unix.Munmap.
// The slice-based Mmap/Munmap pair routes through x/sys/unix's internal
// mmapper, which records each mapping keyed by the exact byte slice Mmap
// returned and rejects any Munmap whose length or address range doesn't
// match a tracked mapping byte-for-byte — fatal for an over-map-then-trim
// strategy, which by design unmaps sub-regions of what it originally
// mapped. MmapPtr/MunmapPtr talk to the syscall directly and carry no such
// bookkeeping, so arbitrary head/tail/whole-region unmaps all work.
package osmap

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// MapAligned allocates an anonymous, readable, writable, private region of
// size bytes aligned to align bytes (align must be a power of two). It
// returns nil if the OS cannot satisfy the request.
func MapAligned(size, align uintptr) unsafe.Pointer {
	if align == 0 || align&(align-1) != 0 {
		panic(fmt.Sprintf("osmap: align %d is not a power of two", align))
	}

	// Over-map by size+align so the interior is guaranteed to contain a
	// size-byte region that starts on an align-byte boundary, then trim the
	// head and tail slivers back to the OS.
	total := size + align
	base, err := unix.MmapPtr(-1, 0, nil, total, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil
	}

	baseAddr := uintptr(base)
	aligned := (baseAddr + align - 1) &^ (align - 1)

	if head := aligned - baseAddr; head > 0 {
		if err := unix.MunmapPtr(base, head); err != nil {
			unix.MunmapPtr(base, total)
			return nil
		}
	}

	tailStart := aligned - baseAddr + size
	if tail := total - tailStart; tail > 0 {
		tailPtr := unsafe.Pointer(aligned + size)
		if err := unix.MunmapPtr(tailPtr, tail); err != nil {
			// best effort: the head is already gone, leave the rest mapped
			// rather than risk unmapping live memory twice.
			_ = err
		}
	}

	return unsafe.Pointer(aligned)
}

// Unmap releases a region previously returned by MapAligned. Failure is
// fatal: a failed unmap means the address space is in an unknown state and
// the process cannot safely continue to hand out chunks from that range.
func Unmap(ptr unsafe.Pointer, size uintptr) {
	if err := unix.MunmapPtr(ptr, size); err != nil {
		panic(fmt.Sprintf("osmap: munmap failed: %v", err))
	}
}
