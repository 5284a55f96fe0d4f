package stm

import (
	"sync/atomic"

	"github.com/zeebo/tiermvcc/internal/machine"
)

// clock is the engine's single global monotonic counter (spec.md §4.7
// GlobalClock): read_version snapshots and commit write_ts stamps both come
// from it. Grounded on original_source/include/CaSTM/GlobalClock.hpp, whose
// sole job is the same pair of operations.
var clock struct {
	value uint64
	_     machine.Pad56
}

// clockNow snapshots the clock for a transaction's read_version.
func clockNow() uint64 {
	return atomic.LoadUint64(&clock.value)
}

// clockTick advances the clock and returns the new value, used as a
// committing transaction's write_ts.
func clockTick() uint64 {
	return atomic.AddUint64(&clock.value, 1)
}
