// Package stm implements the multi-version software transactional memory
// engine of spec.md §4.7-4.10: transactional variables with MVCC version
// chains, a striped commit-lock table, per-goroutine transaction
// descriptors, and the load/store/commit engine with its retry driver.
// Grounded on original_source/include/MVOSTM/*.hpp.
package stm

import "errors"

var (
	// Retry signals that a transaction observed a concurrent writer or an
	// out-of-range snapshot and must restart. It never escapes Atomically
	// (spec.md §7's error taxonomy: "internal only; consumed by atomically").
	Retry = errors.New("stm: retry")

	// ErrOutOfMemory surfaces allocator exhaustion from a version-node
	// allocation. Unlike Retry, this is user-visible (spec.md §7).
	ErrOutOfMemory = errors.New("stm: out of memory")
)
