package slab

import (
	"unsafe"

	"github.com/zeebo/tiermvcc/chunk"
)

// MaxPoolRescueChecks bounds how many full-list heads the rescue scan
// inspects per allocation (spec.md §6 MAX_POOL_RESCUE_CHECKS). The source's
// choice of 4 is uncharacterized for when it's insufficient; spec.md §9
// suggests implementers add a metric for rescue misses, which RescueMisses
// below provides.
const MaxPoolRescueChecks = 4

type slabLocation uint8

const (
	locNone slabLocation = iota
	locCurrent
	locPartial
	locFull
)

// Pool is a per-{thread, size class} allocator: the current slab the
// bump/local path tries first, a partial list of slabs with local free
// space, and a full list of slabs believed full from this thread's own view.
// Grounded on original_source/.../SizeClassPool.hpp.
type Pool struct {
	blockSize uint32

	current *Slab

	partial List
	full    List

	threadCache *chunk.ThreadCache

	rescueMisses uint64
}

// NewPool constructs a pool for one size class, drawing fresh chunks from
// tc when every existing slab is exhausted.
func NewPool(blockSize uint32, tc *chunk.ThreadCache) *Pool {
	return &Pool{
		blockSize:   blockSize,
		threadCache: tc,
	}
}

func (p *Pool) setLoc(s *Slab, loc slabLocation) {
	s.loc = loc
}

// Allocate implements the spec.md §4.4 allocation path: current slab, then
// partial list, then rescue scan of the full list, then a fresh chunk.
func (p *Pool) Allocate() unsafe.Pointer {
	for {
		if p.current != nil {
			if ptr := p.current.Allocate(); ptr != nil {
				return ptr
			}
			p.setLoc(p.current, locFull)
			p.full.PushBack(p.current)
			p.current = nil
		}

		if s := p.partial.PopFront(); s != nil {
			p.setLoc(s, locCurrent)
			p.current = s
			continue
		}

		if s := p.rescue(); s != nil {
			p.setLoc(s, locCurrent)
			p.current = s
			continue
		}

		chunkPtr := p.threadCache.FetchChunk()
		if chunkPtr == nil {
			return nil
		}
		s := CreateAt(chunkPtr, p, p.blockSize)
		p.setLoc(s, locCurrent)
		p.current = s
	}
}

// rescue scans up to MaxPoolRescueChecks heads of the full list, reclaiming
// any remote frees that have accumulated. The first head that recovers
// memory is unlinked and returned; unsuccessful heads are rotated to the
// tail so every slab gets a fair shot over time (spec.md §4.4).
func (p *Pool) rescue() *Slab {
	for i := 0; i < MaxPoolRescueChecks; i++ {
		head := p.full.Front()
		if head == nil {
			return nil
		}
		if head.ReclaimRemoteMemory() > 0 {
			p.full.Remove(head)
			p.setLoc(head, locNone)
			return head
		}
		p.full.MoveHeadToTail()
	}
	p.rescueMisses++
	return nil
}

// RescueMisses reports how many allocations exhausted the rescue scan
// without recovering any slab, for the metric spec.md §9 asks for.
func (p *Pool) RescueMisses() uint64 { return p.rescueMisses }

// Deallocate returns ptr, carved from s, to this pool. s must have been
// allocated from this pool (the heap façade checks owner identity before
// calling in).
func (p *Pool) Deallocate(s *Slab, ptr unsafe.Pointer) {
	wasFull := s.IsFull()
	nowEmpty := s.FreeLocal(ptr)

	if nowEmpty {
		s.ReclaimRemoteMemory()
		if s.IsEmpty() && s.remoteEmpty() {
			switch s.loc {
			case locCurrent:
				p.current = nil
			case locPartial:
				p.partial.Remove(s)
			case locFull:
				p.full.Remove(s)
			}
			p.setLoc(s, locNone)

			s.DestroyForReuse()
			p.threadCache.ReturnChunk(unsafe.Pointer(s))
		}
		return
	}

	// a full slab that is still current is not on the full list; it stays
	// current with its newly freed block.
	if wasFull && s.loc == locFull {
		p.full.Remove(s)
		p.setLoc(s, locPartial)
		p.partial.PushFront(s)
	}
}

func (p *Pool) BlockSize() uint32 { return p.blockSize }
