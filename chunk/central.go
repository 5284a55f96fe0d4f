// Package chunk implements the two lowest layers of the allocator dataflow
// in spec.md §2: the central chunk cache backed by the OS, and a per-thread
// chunk cache in front of it. Both deal exclusively in chunk-aligned,
// chunk-sized (Size) regions; everything above this package (slab, heap)
// treats a chunk as an opaque, alignment-addressable block of memory.
package chunk

import (
	"unsafe"

	"github.com/zeebo/tiermvcc/internal/risky"
	"github.com/zeebo/tiermvcc/osmap"
)

const (
	// Size is the unit of OS allocation and the size of every slab/span
	// chunk (spec.md §6 CHUNK_SIZE).
	Size = 2 * 1024 * 1024

	// Align equals Size so any interior pointer can be rounded down to its
	// chunk's header via a bitwise mask (spec.md §3 Chunk invariant).
	Align = Size

	// Mask recovers a chunk's base address from any pointer inside it.
	Mask = ^uintptr(Size - 1)

	// MaxCentralCache is the central LIFO's water-mark (spec.md §6
	// MAX_CENTRAL_CACHE).
	MaxCentralCache = 64
)

// HeaderOf returns the base address of the chunk containing ptr.
func HeaderOf(ptr unsafe.Pointer) unsafe.Pointer {
	return risky.MaskDown(ptr, Size)
}

// central is the process-wide singleton chunk cache: a bounded LIFO of
// chunks returned by threads, backed by the OS when the LIFO runs dry.
// Grounded on original_source/include/TierAlloc/CentralHeap/CentralHeap.hpp;
// the intrusive "first word is the next pointer" free list mirrors the
// teacher's htable/freelist.go and ThreadChunkCache.hpp.
type central struct {
	mu    spinlock
	head  unsafe.Pointer // linked through the first machine word of each chunk
	count int
}

var global central

// FetchChunk pops a chunk from the central LIFO, falling back to the OS. It
// returns nil only under OS exhaustion.
func FetchChunk() unsafe.Pointer {
	global.mu.Lock()
	if global.head != nil {
		chunk := global.head
		global.head = *(*unsafe.Pointer)(chunk)
		global.count--
		global.mu.Unlock()
		return chunk
	}
	global.mu.Unlock()

	return osmap.MapAligned(Size, Align)
}

// ReturnChunk pushes ptr onto the central LIFO, or releases it back to the
// OS if the cache is already at MaxCentralCache. ptr must be chunk-aligned.
func ReturnChunk(ptr unsafe.Pointer) {
	global.mu.Lock()
	if global.count >= MaxCentralCache {
		global.mu.Unlock()
		osmap.Unmap(ptr, Size)
		return
	}

	*(*unsafe.Pointer)(ptr) = global.head
	global.head = ptr
	global.count++
	global.mu.Unlock()
}

// FreeChunkCount reports the central LIFO's current depth. Exposed for
// tests and invariant checks (spec.md §8 property 4).
func FreeChunkCount() int {
	global.mu.Lock()
	n := global.count
	global.mu.Unlock()
	return n
}
