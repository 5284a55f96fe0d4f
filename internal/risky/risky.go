// Package risky provides unsafe helpers shared by the allocator and STM
// packages: pointer arithmetic, chunk-aligned masking, and raw-byte views
// over allocator-owned memory.
package risky

import (
	"unsafe"
)

// Add returns ptr advanced by n bytes.
func Add(ptr unsafe.Pointer, n uintptr) unsafe.Pointer {
	return unsafe.Pointer(uintptr(ptr) + n)
}

// Sub returns the byte distance from b to a (a - b).
func Sub(a, b unsafe.Pointer) uintptr {
	return uintptr(a) - uintptr(b)
}

// MaskDown rounds ptr down to the nearest multiple of align, which must be a
// power of two. Used to find a chunk's header from any interior pointer via
// ptr &^ (align-1).
func MaskDown(ptr unsafe.Pointer, align uintptr) unsafe.Pointer {
	return unsafe.Pointer(uintptr(ptr) &^ (align - 1))
}

// Slice reinterprets the n bytes starting at ptr as a []byte without a copy.
func Slice(ptr unsafe.Pointer, n int) []byte {
	return unsafe.Slice((*byte)(ptr), n)
}
