// Package machine holds the machine-level constants shared by the
// allocator's tiers and the STM engine: cache line size, thread fan-out, and
// the padding types used to keep hot atomics from false-sharing a line.
package machine

const (
	CacheLine     = 64
	MaxThreadBits = 10
	MaxThreads    = 1 << MaxThreadBits
	MaxSlice      = 1<<50 - 1
)

type (
	Pad64 [64]uint8
	Pad56 [56]uint8
	Pad52 [52]uint8
	Pad48 [48]uint8
	Pad44 [44]uint8
	Pad40 [40]uint8
	Pad32 [32]uint8
	Pad24 [24]uint8
	Pad16 [16]uint8
	Pad8  [8]uint8
)
