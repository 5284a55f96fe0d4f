// Package slab implements the third dataflow layer of spec.md §2: a chunk
// repurposed as an array of fixed-size blocks (a Slab), the chunk header Tag
// that tells a slab from a large-allocation span (the span itself lives in
// package heap), and the per-{thread,size-class} Pool that manages a
// thread's slabs for one block size.
//
// Grounded on original_source/include/TierAlloc/ThreadHeap/{Slab,SlabList,
// SizeClassPool,ChunkMetadata}.hpp; the MPSC remote-free stack reuses the
// push/steal-all idiom built for pin.buffer's unpinned linked list in the
// teacher's pin/buffer.go.
package slab

import (
	"sync/atomic"
	"unsafe"

	"github.com/zeebo/tiermvcc/chunk"
	"github.com/zeebo/tiermvcc/internal/risky"
	"github.com/zeebo/tiermvcc/internal/xassert"
)

// Tag distinguishes a chunk repurposed as a Slab from one repurposed as a
// Span. It occupies the first byte of every chunk so any deallocation can
// route correctly after masking a pointer down to its chunk header
// (spec.md §3 "Chunk header variant").
type Tag uint8

const (
	TagSmall Tag = iota
	TagLarge
)

// TagAt reads the header tag of the chunk containing ptr.
func TagAt(ptr unsafe.Pointer) Tag {
	base := chunk.HeaderOf(ptr)
	return Tag(*(*uint8)(base))
}

// Slab is a chunk used as an array of same-size blocks. Its header begins
// at the chunk's base address (CreateAt places it there), immediately
// followed by the carved blocks themselves.
type Slab struct {
	tag Tag
	_   [7]byte

	owner *Pool

	blockSize      uint32
	maxBlockCount  uint32
	allocatedCount uint32

	bumpPtr unsafe.Pointer
	endPtr  unsafe.Pointer

	localFreeList unsafe.Pointer

	// Prev/Next are the intrusive doubly-linked-list links used by exactly
	// one of {current, partial, full} in the owning Pool (spec.md §3).
	Prev, Next *Slab

	// loc records which of {current, partial, full} currently holds this
	// slab, so Pool.Deallocate can find and detach it without a per-pool
	// lookup structure on the hot path.
	loc slabLocation

	remote remoteFreeList
}

type (
	_ [unsafe.Sizeof(remoteFreeList{}) - 64]byte
	_ [64 - unsafe.Sizeof(remoteFreeList{})]byte
)

var headerSize = (unsafe.Sizeof(Slab{}) + 7) &^ 7

// CreateAt placement-constructs a Slab header at the base of a freshly
// fetched chunk and carves its data region into blockSize blocks. ptr must
// be chunk-aligned and chunk.Size bytes long.
func CreateAt(ptr unsafe.Pointer, owner *Pool, blockSize uint32) *Slab {
	xassert.That("slab: CreateAt on a pointer that is not chunk-aligned", func() bool {
		return uintptr(ptr)&(chunk.Align-1) == 0
	})

	s := (*Slab)(ptr)
	*s = Slab{}

	s.tag = TagSmall
	s.owner = owner
	s.blockSize = blockSize

	dataStart := risky.Add(ptr, headerSize)
	available := uintptr(chunk.Size) - headerSize
	count := uint32(available / uintptr(blockSize))

	s.maxBlockCount = count
	s.bumpPtr = dataStart
	s.endPtr = risky.Add(dataStart, uintptr(count)*uintptr(blockSize))

	return s
}

// SlabAt returns the Slab header for any pointer known to live inside a
// small-allocation chunk.
func SlabAt(ptr unsafe.Pointer) *Slab {
	return (*Slab)(chunk.HeaderOf(ptr))
}

// Allocate implements spec.md §4.3's four-step allocation path: local free
// list, then remote-steal-and-retry, then bump, else nil.
func (s *Slab) Allocate() unsafe.Pointer {
	if s.localFreeList != nil {
		block := s.localFreeList
		s.localFreeList = *(*unsafe.Pointer)(block)
		s.allocatedCount++
		return block
	}

	if stolen := s.remote.StealAll(); stolen != nil {
		tail, count := stolen, uint32(1)
		for next := *(*unsafe.Pointer)(tail); next != nil; next = *(*unsafe.Pointer)(tail) {
			tail = next
			count++
		}
		*(*unsafe.Pointer)(tail) = s.localFreeList
		s.localFreeList = stolen
		s.allocatedCount -= count
		return s.Allocate()
	}

	if uintptr(s.bumpPtr) <= uintptr(s.endPtr)-uintptr(s.blockSize) {
		block := s.bumpPtr
		s.bumpPtr = risky.Add(s.bumpPtr, uintptr(s.blockSize))
		s.allocatedCount++
		return block
	}

	return nil
}

// FreeLocal pushes ptr onto the local free list and returns true iff the
// slab is now empty of live allocations. Precondition: the caller owns the
// slab (callers resolve that upstream via owner identity).
func (s *Slab) FreeLocal(ptr unsafe.Pointer) bool {
	*(*unsafe.Pointer)(ptr) = s.localFreeList
	s.localFreeList = ptr
	s.allocatedCount--
	return s.IsEmpty()
}

// FreeRemote pushes ptr onto the lock-free MPSC remote free stack. Safe to
// call from any thread other than the slab's owner.
func (s *Slab) FreeRemote(ptr unsafe.Pointer) {
	s.remote.Push(ptr)
}

// ReclaimRemoteMemory steals the remote free stack and splices it onto the
// local free list, returning the number of blocks recovered. Exposed for
// tests and the pool's rescue path (spec.md §4.3, §4.4).
func (s *Slab) ReclaimRemoteMemory() uint32 {
	stolen := s.remote.StealAll()
	if stolen == nil {
		return 0
	}
	tail, count := stolen, uint32(1)
	for next := *(*unsafe.Pointer)(tail); next != nil; next = *(*unsafe.Pointer)(tail) {
		tail = next
		count++
	}
	*(*unsafe.Pointer)(tail) = s.localFreeList
	s.localFreeList = stolen
	s.allocatedCount -= count
	return count
}

func (s *Slab) remoteEmpty() bool {
	return atomic.LoadPointer(&s.remote.head) == nil
}

// IsFull reports whether the slab has no local free blocks, no pending
// remote frees, and no bump frontier left (spec.md §3).
func (s *Slab) IsFull() bool {
	return s.allocatedCount == s.maxBlockCount && s.remoteEmpty() && s.bumpPtr == s.endPtr
}

// IsEmpty reports whether the slab currently has zero live allocations.
func (s *Slab) IsEmpty() bool {
	return s.allocatedCount == 0
}

func (s *Slab) BlockSize() uint32      { return s.blockSize }
func (s *Slab) MaxBlockCount() uint32  { return s.maxBlockCount }
func (s *Slab) AllocatedCount() uint32 { return s.allocatedCount }
func (s *Slab) Owner() *Pool           { return s.owner }

// DestroyForReuse poisons the slab's identity fields so a chunk recycled
// into a different pool or size class cannot alias a stale Slab header.
func (s *Slab) DestroyForReuse() {
	s.owner = nil
	s.Prev = nil
	s.Next = nil
	s.localFreeList = nil
	s.allocatedCount = 0
}
