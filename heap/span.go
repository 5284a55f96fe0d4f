package heap

import (
	"unsafe"

	"github.com/zeebo/tiermvcc/chunk"
	"github.com/zeebo/tiermvcc/internal/risky"
	"github.com/zeebo/tiermvcc/slab"
)

// span is a chunk-multiple region devoted to one allocation larger than the
// size-class ceiling (spec.md §3 "Span"). A span needs contiguous memory, so
// unlike a Slab it is mapped directly through osmap rather than threaded
// through the single-chunk central/thread caches, which only ever hand back
// one 2 MiB unit at a time (see DESIGN.md's Open Question resolution on
// "large chunk sequence").
type span struct {
	tag    slab.Tag
	_      [7]byte
	length uint64
}

var spanHeaderSize = (unsafe.Sizeof(span{}) + 7) &^ 7

// newSpan maps a region of at least n bytes (rounded up to a chunk
// multiple) and places a span header at its base, returning the payload
// pointer that follows the header.
func newSpan(n uint32) unsafe.Pointer {
	total := spanHeaderSize + uintptr(n)
	rounded := (total + chunk.Size - 1) &^ (chunk.Size - 1)

	base := mapLarge(rounded)
	if base == nil {
		return nil
	}

	s := (*span)(base)
	s.tag = slab.TagLarge
	s.length = uint64(rounded)

	return risky.Add(base, spanHeaderSize)
}

// spanAt recovers a span's header from a payload pointer it returned.
func spanAt(ptr unsafe.Pointer) *span {
	return (*span)(chunk.HeaderOf(ptr))
}

func (s *span) release() {
	unmapLarge(unsafe.Pointer(s), uintptr(s.length))
}
