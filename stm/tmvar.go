package stm

import (
	"sync/atomic"

	"github.com/zeebo/tiermvcc/heap"
)

// TMVar is a transactional variable: an atomically-swapped head pointer
// into a chain of immutable version nodes (spec.md §4.7). T must be a
// pointer-free type — see assertBasic — since versions live in heap.Heap
// memory the Go garbage collector does not scan.
type TMVar[T any] struct {
	head uint64 // atomic; address of the head version[T], never 0 once constructed
}

// MaxHistory bounds how many versions a chain keeps reachable from head
// before the tail is detached and handed to epoch.Retire (spec.md §4.7
// MAX_HISTORY).
const MaxHistory = 8

// New constructs a TMVar with a single genesis version stamped at write_ts
// 0, allocated through h. Panics if h cannot satisfy the genesis
// allocation — there is no transaction context yet to return an error
// through.
func New[T any](h *heap.Heap, init T) *TMVar[T] {
	assertBasic[T]()
	addr := allocVersion[T](h, init, 0, 0)
	if addr == 0 {
		panic("stm: out of memory constructing TMVar genesis node")
	}
	v := &TMVar[T]{}
	atomic.StoreUint64(&v.head, uint64(addr))
	return v
}

func (v *TMVar[T]) loadHead() uintptr {
	return uintptr(atomic.LoadUint64(&v.head))
}

// validate reports whether the version visible as of readVersion is still
// the head, i.e. nothing has committed to this TMVar since readVersion
// (spec.md §4.9 read-set validation).
func (v *TMVar[T]) validate(readVersion uint64) bool {
	head := versionAt[T](v.loadHead())
	return head.writeTS <= readVersion
}

// committer publishes nodeAddr as the new head stamped at writeTS, then
// prunes the chain: once more than MaxHistory versions are reachable, the
// tail beyond it is detached and its reclamation deferred to epoch.Retire
// (spec.md §4.7 "chain detach and retire", §4.9 step 6; §8 invariant 2 caps
// reachable chain length at MAX_HISTORY).
func (v *TMVar[T]) committer(h *heap.Heap, nodeAddr uintptr, writeTS uint64) {
	node := versionAt[T](nodeAddr)
	old := v.loadHead()
	node.writeTS = writeTS
	node.prev = old

	atomic.StoreUint64(&v.head, uint64(nodeAddr))

	// walk MaxHistory-1 links from the new head to land on the MaxHistory-th
	// reachable version (head counts as the first), then detach its prev so
	// exactly MaxHistory versions remain reachable.
	cur := nodeAddr
	for depth := 0; cur != 0 && depth < MaxHistory-1; depth++ {
		cur = versionAt[T](cur).prev
	}
	if cur == 0 {
		return
	}
	tail := versionAt[T](cur)
	if tail.prev == 0 {
		return
	}
	garbage := tail.prev
	tail.prev = 0

	retireChain[T](h, garbage)
}
