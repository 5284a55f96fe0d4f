package stm

import (
	"encoding/binary"
	"runtime"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
	"github.com/zeebo/tiermvcc/internal/pcg"
)

// LockTableSize is the striped commit-lock table's stripe count (spec.md §4.8
// LOCK_TABLE_SIZE, 2^20). A TMVar's identity address hashes into one of
// these stripes; distinct TMVars can and do collide onto the same stripe,
// which is fine, just pessimistic.
const LockTableSize = 1 << 20

const lockTableMask = LockTableSize - 1

type lockStripe struct {
	held uint32
	_    [60]byte
}

var lockTable = make([]lockStripe, LockTableSize)

// stripeIndex hashes a TMVar's identity address into the lock table, using
// xxhash the way the teacher's htable package hashes its keys.
func stripeIndex(addr uintptr) uint32 {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(addr))
	return uint32(xxhash.Sum64(buf[:]) & lockTableMask)
}

// lockIndex implements spec.md §4.8's spin strategy: a relaxed load first,
// so a contended stripe doesn't get hammered with CAS traffic, then a
// test-and-set attempt only once the stripe is observed unlocked, then a
// jittered yield on contention.
func lockIndex(idx uint32) {
	var rng pcg.PCG
	for {
		if atomic.LoadUint32(&lockTable[idx].held) == 0 && tryLockIndex(idx) {
			return
		}
		if rng.Uint32()&0xf == 0 {
			runtime.Gosched()
		}
	}
}

func tryLockIndex(idx uint32) bool {
	return atomic.CompareAndSwapUint32(&lockTable[idx].held, 0, 1)
}

func unlockIndex(idx uint32) {
	atomic.StoreUint32(&lockTable[idx].held, 0)
}

func isLockedIndex(idx uint32) bool {
	return atomic.LoadUint32(&lockTable[idx].held) != 0
}
