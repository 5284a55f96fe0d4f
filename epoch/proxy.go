package epoch

import "runtime"

// Proxy owns a Handle for the lifetime of the goroutine that acquired it
// and releases it automatically if the goroutine exits without calling
// Release explicitly — the Go mapping spec.md §9 asks for in place of
// "thread-local storage with a side-effecting destructor." Grounded on the
// teacher's own reliance on runtime.SetFinalizer to observe lifetime in
// pin/pin_test.go; here the finalizer is load-bearing rather than just a
// test assertion.
type Proxy struct {
	h        Handle
	released bool
}

// AcquireProxy acquires a Handle and wraps it in a Proxy. Call Release when
// done; the finalizer is a backstop, not a substitute for an explicit
// Release on the hot path.
func AcquireProxy() *Proxy {
	p := &Proxy{h: AcquireHandle()}
	runtime.SetFinalizer(p, (*Proxy).finalize)
	return p
}

// Handle returns the underlying Handle.
func (p *Proxy) Handle() Handle { return p.h }

// Release returns the Handle's slot for reuse. Safe to call more than
// once.
func (p *Proxy) Release() {
	if p.released {
		return
	}
	p.released = true
	runtime.SetFinalizer(p, nil)
	ReleaseHandle(p.h)
}

func (p *Proxy) finalize() {
	if !p.released {
		p.released = true
		ReleaseHandle(p.h)
	}
}
