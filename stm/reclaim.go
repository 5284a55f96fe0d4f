package stm

import (
	"unsafe"

	"github.com/zeebo/tiermvcc/epoch"
	"github.com/zeebo/tiermvcc/heap"
)

// retireChain hands a detached chain tail to the epoch manager. The deleter
// runs on whichever goroutine's Enter/Leave happens to advance the epoch
// past this retirement, which is very likely not the goroutine that
// committed. chainFree therefore frees small nodes through their slab's
// FreeRemote stack, which any goroutine may push to, and uses the
// closed-over h only for large spans, whose release is a plain unmap.
func retireChain[T any](h *heap.Heap, addr uintptr) {
	epoch.Retire(unsafe.Pointer(addr), func(unsafe.Pointer) {
		chainFree[T](h, addr)
	})
}
