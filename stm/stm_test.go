package stm

import (
	"sync"
	"testing"

	"github.com/zeebo/tiermvcc/heap"
)

func TestLoadStore(t *testing.T) {
	h := heap.New()
	v := New[int64](h, 10)

	tx := NewTx(h)
	defer tx.Close()

	got, err := Atomically(tx, func(tx *Tx) (int64, error) {
		cur, err := Load(tx, v)
		if err != nil {
			return 0, err
		}
		if err := Store(tx, v, cur+5); err != nil {
			return 0, err
		}
		return cur + 5, nil
	})
	if err != nil {
		t.Fatalf("Atomically: %v", err)
	}
	if got != 15 {
		t.Fatalf("got %d, want 15", got)
	}

	readBack, err := Atomically(tx, func(tx *Tx) (int64, error) {
		return Load(tx, v)
	})
	if err != nil {
		t.Fatalf("Atomically: %v", err)
	}
	if readBack != 15 {
		t.Fatalf("readBack %d, want 15", readBack)
	}
}

func TestReadYourOwnWrites(t *testing.T) {
	h := heap.New()
	v := New[int64](h, 1)

	tx := NewTx(h)
	defer tx.Close()

	_, err := Atomically(tx, func(tx *Tx) (struct{}, error) {
		if err := Store(tx, v, 42); err != nil {
			return struct{}{}, err
		}
		got, err := Load(tx, v)
		if err != nil {
			return struct{}{}, err
		}
		if got != 42 {
			t.Fatalf("read-your-own-write: got %d, want 42", got)
		}
		return struct{}{}, nil
	})
	if err != nil {
		t.Fatalf("Atomically: %v", err)
	}
}

// TestBalanceConservation is a small instance of spec.md §8 S1: concurrent
// transfers between two TMVars never change the total.
func TestBalanceConservation(t *testing.T) {
	h := heap.New()
	a := New[int64](h, 100)
	b := New[int64](h, 100)

	const workers = 8
	const perWorker = 500

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			wh := heap.New()
			defer wh.Drain()
			tx := NewTx(wh)
			defer tx.Close()

			for j := 0; j < perWorker; j++ {
				amount := int64(1)
				from, to := a, b
				if (i+j)%2 == 0 {
					from, to = b, a
				}
				_, err := Atomically(tx, func(tx *Tx) (struct{}, error) {
					fv, err := Load(tx, from)
					if err != nil {
						return struct{}{}, err
					}
					tv, err := Load(tx, to)
					if err != nil {
						return struct{}{}, err
					}
					if err := Store(tx, from, fv-amount); err != nil {
						return struct{}{}, err
					}
					if err := Store(tx, to, tv+amount); err != nil {
						return struct{}{}, err
					}
					return struct{}{}, nil
				})
				if err != nil {
					t.Errorf("transfer: %v", err)
					return
				}
			}
		}(i)
	}
	wg.Wait()

	tx := NewTx(h)
	defer tx.Close()
	sum, err := Atomically(tx, func(tx *Tx) (int64, error) {
		av, err := Load(tx, a)
		if err != nil {
			return 0, err
		}
		bv, err := Load(tx, b)
		if err != nil {
			return 0, err
		}
		return av + bv, nil
	})
	if err != nil {
		t.Fatalf("Atomically: %v", err)
	}
	if sum != 200 {
		t.Fatalf("balance not conserved: got %d, want 200", sum)
	}
}

// TestSnapshotRead is spec.md §8 S5: within one transaction, two loads of
// the same TMVar separated by a concurrent committed write must still agree,
// because both are answered from the snapshot taken at begin().
func TestSnapshotRead(t *testing.T) {
	h := heap.New()
	v := New[int64](h, 1)

	readerDone := make(chan struct{})
	readerSeen := make(chan int64, 2)
	proceed := make(chan struct{})
	writerSignal := make(chan struct{})

	go func() {
		defer close(readerDone)
		tx := NewTx(h)
		defer tx.Close()
		_, err := Atomically(tx, func(tx *Tx) (struct{}, error) {
			first, err := Load(tx, v)
			if err != nil {
				return struct{}{}, err
			}
			readerSeen <- first
			close(proceed)
			<-writerSignal
			second, err := Load(tx, v)
			if err != nil {
				return struct{}{}, err
			}
			readerSeen <- second
			return struct{}{}, nil
		})
		if err != nil {
			t.Errorf("Atomically: %v", err)
		}
	}()

	<-proceed
	writerTx := NewTx(h)
	defer writerTx.Close()
	_, err := Atomically(writerTx, func(tx *Tx) (struct{}, error) {
		return struct{}{}, Store(tx, v, 999)
	})
	if err != nil {
		t.Fatalf("writer Atomically: %v", err)
	}
	close(writerSignal)

	<-readerDone
	first := <-readerSeen
	second := <-readerSeen
	if first != second {
		t.Fatalf("snapshot read not stable: first=%d second=%d", first, second)
	}
}

// TestVersionPruning is spec.md §8 S6: a reader holding a snapshot older
// than every version still reachable in the chain (because commits since
// then have pushed it past MaxHistory) must see Retry rather than silently
// reading a too-new value.
func TestVersionPruning(t *testing.T) {
	h := heap.New()
	v := New[int64](h, 0)

	tx := NewTx(h)
	defer tx.Close()

	staleReadVersion := clockNow()

	for i := int64(1); i <= MaxHistory+4; i++ {
		_, err := Atomically(tx, func(tx *Tx) (struct{}, error) {
			return struct{}{}, Store(tx, v, i)
		})
		if err != nil {
			t.Fatalf("Atomically store %d: %v", i, err)
		}
	}

	stale := NewTx(h)
	defer stale.Close()
	stale.desc.readVersion = staleReadVersion

	_, err := Load(stale, v)
	if err != Retry {
		t.Fatalf("Load with pruned snapshot: got err=%v, want Retry", err)
	}
}
