// Package scenarios exercises the allocator and the STM engine together as
// end-to-end workloads, the way spec.md §8's testable properties describe
// them: balance-conserving transfers (S1), a concurrently built ordered
// linked list (S2), slab rescue under load (S3, covered directly in
// slab's own tests), EBR quiescence (S4, covered in epoch's own tests),
// snapshot reads and version pruning (S5/S6, covered in stm's own tests).
package scenarios

import (
	"unsafe"

	"github.com/zeebo/tiermvcc/heap"
)

// node is one element of the sorted linked list used by the concurrent
// list-insert scenario. It is plain domain data, not an STM version node:
// it lives in a goroutine's Heap like any other small allocation, and the
// TMVar guarding the list only ever stores its address as a uintptr, never
// a typed Go pointer (see stm/version.go's prev field for why).
type node struct {
	value int32
	next  uintptr
}

func newNode(h *heap.Heap, value int32, next uintptr) uintptr {
	raw := h.Allocate(uint32(unsafe.Sizeof(node{})))
	if raw == nil {
		return 0
	}
	n := (*node)(raw)
	n.value = value
	n.next = next
	return uintptr(raw)
}

func nodeAt(addr uintptr) *node {
	if addr == 0 {
		return nil
	}
	return (*node)(unsafe.Pointer(addr))
}
