package slab

import "sort"

// Size-class boundaries: spec.md §4.5's piecewise-linear ranges, grounded on
// original_source/include/TierAlloc/common/SizeClassConfig.hpp. Each entry
// is (inclusive end of range, step within the range); the range starts
// immediately after the previous entry's end.
const (
	MinAlloc = 8
	MaxAlloc = 256 * 1024

	// SmallAllocCeiling is the small/large boundary (spec.md §6
	// MAX_SMALL_ALLOC).
	SmallAllocCeiling = MaxAlloc

	// ClassCount is the size-class table length (spec.md §6 CLASS_COUNT).
	ClassCount = 104

	// linearFastPathCeiling bounds the direct-index fast path before
	// falling back to binary search (spec.md §4.5).
	linearFastPathCeiling = 128
)

type classRange struct {
	end  uint32
	step uint32
}

var classRanges = []classRange{
	{128, 8},
	{256, 16},
	{512, 32},
	{1024, 64},
	{2048, 128},
	{4096, 256},
	{8192, 512},
	{16384, 1024},
	{32768, 2048},
	{65536, 4096},
	{131072, 8192},
	{262144, 16384},
}

// classToSize[i] is the block size handed out by class i.
var classToSize [ClassCount]uint32

func init() {
	idx := 0
	prevEnd := uint32(0)
	for _, r := range classRanges {
		start := prevEnd + r.step
		if prevEnd == 0 {
			start = MinAlloc
		}
		for size := start; size <= r.end; size += r.step {
			classToSize[idx] = size
			idx++
		}
		prevEnd = r.end
	}
	if idx != ClassCount {
		panic("slab: size-class table generator produced the wrong class count")
	}
}

// SizeToClass maps a requested byte count to the smallest size class that
// can hold it, via a linear fast path for small sizes and a binary search
// above it (spec.md §4.5).
func SizeToClass(n uint32) uint32 {
	if n == 0 {
		n = 1
	}
	if n <= linearFastPathCeiling {
		// classes 0..15 are exactly (i+1)*8, so the class index is a direct
		// divide-and-round-up, no search needed.
		return (n+7)/8 - 1
	}
	idx := sort.Search(ClassCount, func(i int) bool {
		return classToSize[i] >= n
	})
	return uint32(idx)
}

// ClassToSize returns the block size for a class index produced by
// SizeToClass.
func ClassToSize(class uint32) uint32 {
	return classToSize[class]
}

// Normalize rounds n up to the size actually handed out for that request.
func Normalize(n uint32) uint32 {
	return ClassToSize(SizeToClass(n))
}
