package stm

import (
	"runtime"
	"sort"
	"unsafe"

	"github.com/zeebo/tiermvcc/epoch"
	"github.com/zeebo/tiermvcc/heap"
)

// Tx is one goroutine's reusable transaction handle: a descriptor, the
// Heap its version-node allocations are carved from, and the epoch.Proxy
// that keeps its snapshot's reachable versions alive. Like epoch.Handle and
// heap.Heap, a Tx must never be used from more than one goroutine. Binding
// through a Proxy rather than a bare Handle means a goroutine that exits
// without calling Close still returns its EBR slot via the Proxy's
// finalizer, instead of leaking it forever (spec.md §3/§5's "thread-local
// proxy that returns the slot ... on thread exit").
type Tx struct {
	desc  descriptor
	heap  *heap.Heap
	proxy *epoch.Proxy
}

// NewTx binds a transaction handle to h. Call Close when the goroutine is
// done running transactions.
func NewTx(h *heap.Heap) *Tx {
	return &Tx{
		desc: descriptor{
			readSet:  make([]readEntry, 0, 64),
			writeSet: make([]writeEntry, 0, 16),
			lockSet:  make([]uint32, 0, 16),
		},
		heap:  h,
		proxy: epoch.AcquireProxy(),
	}
}

// Close discards any in-flight attempt and returns the transaction's
// EBR slot.
func (tx *Tx) Close() {
	tx.desc.reset()
	tx.proxy.Release()
}

func (tx *Tx) begin() {
	tx.desc.reset()
	tx.desc.readVersion = clockNow()
}

// Load reads v's value as of tx's current snapshot, walking the version
// chain past any head committed after tx started (spec.md §4.9 step 4's
// MVCC read). It returns Retry if v is locked by another transaction, or if
// the chain has been pruned past tx's snapshot (spec.md §8 S6).
func Load[T any](tx *Tx, v *TMVar[T]) (T, error) {
	var zero T
	addr := uintptr(unsafe.Pointer(v))

	for i := len(tx.desc.writeSet) - 1; i >= 0; i-- {
		if tx.desc.writeSet[i].addr == addr {
			return tx.desc.writeSet[i].pending.(T), nil
		}
	}

	idx := stripeIndex(addr)
	if isLockedIndex(idx) && !tx.holdsLock(idx) {
		return zero, Retry
	}

	tx.desc.readSet = append(tx.desc.readSet, readEntry{
		addr:     addr,
		validate: v.validate,
	})

	cur := versionAt[T](v.loadHead())
	for cur != nil && cur.writeTS > tx.desc.readVersion {
		cur = versionAt[T](cur.prev)
	}
	if cur == nil {
		return zero, Retry
	}
	payload := cur.payload

	// seq-cst fence equivalent: re-check the lock after reading, so a
	// commit that raced between the first check and the chain walk is
	// still caught (spec.md §4.9 step 4's post-read lock re-check).
	if isLockedIndex(idx) && !tx.holdsLock(idx) {
		return zero, Retry
	}

	return payload, nil
}

// Store buffers val as a pending write against v. The new version node is
// allocated immediately so ErrOutOfMemory surfaces at the call site rather
// than at commit time; it is only published into v's chain if the
// transaction goes on to commit (spec.md §4.9 step 5).
func Store[T any](tx *Tx, v *TMVar[T], val T) error {
	addr := uintptr(unsafe.Pointer(v))

	node := allocVersion[T](tx.heap, val, 0, 0)
	if node == 0 {
		return ErrOutOfMemory
	}

	h := tx.heap
	var w writeEntry
	w.addr = addr
	w.pending = val
	w.commit = func(writeTS uint64) { v.committer(h, node, writeTS) }
	w.abort = func() { freeVersion[T](h, node) }
	tx.desc.writeSet = append(tx.desc.writeSet, w)

	return nil
}

func (tx *Tx) holdsLock(idx uint32) bool {
	ls := tx.desc.lockSet
	i := sort.Search(len(ls), func(i int) bool { return ls[i] >= idx })
	return i < len(ls) && ls[i] == idx
}

// validateReadSet re-checks every TMVar this attempt has read is still
// unlocked by someone else and still at the write_ts it was read at
// (spec.md §4.9 step 6's pre-lock and post-lock validation passes share
// this routine).
func (tx *Tx) validateReadSet() bool {
	for _, r := range tx.desc.readSet {
		idx := stripeIndex(r.addr)
		if isLockedIndex(idx) && !tx.holdsLock(idx) {
			return false
		}
		if !r.validate(tx.desc.readVersion) {
			return false
		}
	}
	return true
}

func (tx *Tx) lockWriteSet() {
	ls := tx.desc.lockSet[:0]
	for _, w := range tx.desc.writeSet {
		ls = append(ls, stripeIndex(w.addr))
	}
	sort.Slice(ls, func(i, j int) bool { return ls[i] < ls[j] })
	ls = dedupeSortedUint32(ls)
	tx.desc.lockSet = ls

	for _, idx := range ls {
		lockIndex(idx)
	}
}

func (tx *Tx) unlockWriteSet() {
	for _, idx := range tx.desc.lockSet {
		unlockIndex(idx)
	}
}

func dedupeSortedUint32(s []uint32) []uint32 {
	if len(s) == 0 {
		return s
	}
	n := 1
	for i := 1; i < len(s); i++ {
		if s[i] != s[n-1] {
			s[n] = s[i]
			n++
		}
	}
	return s[:n]
}

// commit implements spec.md §4.9 step 6: a read-only attempt commits for
// free; otherwise lock the write set in sorted order (the standard
// deadlock-avoidance discipline for multi-lock acquisition), re-validate
// under lock, publish every pending version, and unlock.
func (tx *Tx) commit() bool {
	if len(tx.desc.writeSet) == 0 {
		tx.desc.reset()
		return true
	}

	if !tx.validateReadSet() {
		return false
	}

	tx.lockWriteSet()

	writeTS := clockTick()

	if !tx.validateReadSet() {
		tx.unlockWriteSet()
		return false
	}

	for i := range tx.desc.writeSet {
		w := &tx.desc.writeSet[i]
		w.commit(writeTS)
		w.abort = noopAbort
	}

	tx.unlockWriteSet()
	tx.desc.reset()
	return true
}

// Atomically runs f to completion under snapshot isolation, retrying on
// Retry or a failed commit-time validation until it succeeds or f returns a
// non-Retry error (spec.md §4.10). tx must not be reused concurrently from
// another goroutine while this call is in flight.
func Atomically[R any](tx *Tx, f func(tx *Tx) (R, error)) (R, error) {
	var zero R

	h := tx.proxy.Handle()
	epoch.Enter(h)
	defer epoch.Leave(h)
	// runs before Leave; on a panic from f it reclaims every unpublished
	// version node, and after a normal return it finds nothing left to do.
	defer tx.desc.reset()

	for {
		tx.begin()

		r, err := f(tx)
		if err != nil {
			if err == Retry {
				runtime.Gosched()
				continue
			}
			tx.desc.reset()
			return zero, err
		}

		if tx.commit() {
			return r, nil
		}
		runtime.Gosched()
	}
}
