package chunk

import (
	"runtime"
	"sync/atomic"

	"github.com/zeebo/tiermvcc/internal/pcg"
)

// spinlock is a test-and-test-and-set lock guarding the central cache's LIFO.
// Hold times are a handful of pointer-sized loads/stores, so a spinlock beats
// a sync.Mutex's syscall-capable slow path, the same tradeoff the original
// SpinLock.hpp and the STM's StripedLockTable make.
type spinlock struct {
	held uint32
	_    [60]byte // pad to a cache line alongside held
}

func (s *spinlock) Lock() {
	var backoff pcg.PCG
	for {
		if atomic.LoadUint32(&s.held) == 0 && atomic.CompareAndSwapUint32(&s.held, 0, 1) {
			return
		}
		if backoff.Uint32()&0xf == 0 {
			runtime.Gosched()
		}
	}
}

func (s *spinlock) Unlock() {
	atomic.StoreUint32(&s.held, 0)
}
