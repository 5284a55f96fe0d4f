package stm

import (
	"unsafe"

	"github.com/zeebo/tiermvcc/heap"
	"github.com/zeebo/tiermvcc/slab"
)

// version is one immutable entry in a TMVar's version chain (spec.md §4.7).
// prev is stored as a uintptr rather than a typed *version[T]: version
// nodes live in heap.Heap memory, which the Go collector never scans, so a
// field typed as a real pointer would be invisible to the GC on one end and
// meaningless to it on the other. uintptr sidesteps the question entirely —
// it is just a number until cast back with versionAt.
type version[T any] struct {
	payload T
	writeTS uint64
	prev    uintptr
}

func versionSize[T any]() uint32 {
	var v version[T]
	return uint32(unsafe.Sizeof(v))
}

// allocVersion carves a new version node out of h and returns its address,
// or 0 on allocator exhaustion.
func allocVersion[T any](h *heap.Heap, payload T, writeTS uint64, prev uintptr) uintptr {
	raw := h.Allocate(versionSize[T]())
	if raw == nil {
		return 0
	}
	v := (*version[T])(raw)
	v.payload = payload
	v.writeTS = writeTS
	v.prev = prev
	return uintptr(raw)
}

// versionAt recovers a typed view of the node at addr. addr==0 means "no
// node" and yields nil, mirroring a null prev/head.
func versionAt[T any](addr uintptr) *version[T] {
	if addr == 0 {
		return nil
	}
	return (*version[T])(unsafe.Pointer(addr))
}

func freeVersion[T any](h *heap.Heap, addr uintptr) {
	if addr == 0 {
		return
	}
	h.Deallocate(unsafe.Pointer(addr))
}

// chainFree walks prev links starting at addr and deallocates every node it
// visits. It is the deleter handed to epoch.Retire when a commit prunes a
// chain's tail past MaxHistory (spec.md §4.7 "chain detach and retire").
// Because the deleter may run on any goroutine, small nodes are pushed onto
// their slab's lock-free remote free stack instead of going through h's
// owner-only local path; only large spans are released through h.
func chainFree[T any](h *heap.Heap, addr uintptr) {
	for addr != 0 {
		v := versionAt[T](addr)
		next := v.prev
		ptr := unsafe.Pointer(addr)
		if slab.TagAt(ptr) == slab.TagSmall {
			slab.SlabAt(ptr).FreeRemote(ptr)
		} else {
			h.Deallocate(ptr)
		}
		addr = next
	}
}
