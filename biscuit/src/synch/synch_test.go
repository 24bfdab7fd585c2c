package synch

import (
	"sync"
	"testing"
	"time"

	"defs"
	"tinfo"
)

// Semaphore correctness scenario from spec §8: 4 producers + 4 consumers on
// a bounded buffer (capacity 2), 1000 items each; consumed == produced and
// the buffer ends empty.
func TestSemaphoreProducerConsumer(t *testing.T) {
	const capacity = 2
	const perWorker = 1000
	const workers = 4

	empty := NewSem("empty", capacity)
	full := NewSem("full", 0)
	mutex := NewWchanLock("buf")

	buf := make([]int, 0, capacity)
	produced := int64(0)
	consumed := int64(0)

	var wg sync.WaitGroup
	wg.Add(2 * workers)

	for w := 0; w < workers; w++ {
		go func(id int) {
			defer wg.Done()
			tn := tinfo.New(defs.Tid_t(100 + id))
			for i := 0; i < perWorker; i++ {
				empty.P(tn)
				mutex.Acquire(tn)
				buf = append(buf, i)
				produced++
				mutex.Release(tn)
				full.V(tn)
			}
		}(w)
	}
	for w := 0; w < workers; w++ {
		go func(id int) {
			defer wg.Done()
			tn := tinfo.New(defs.Tid_t(200 + id))
			for i := 0; i < perWorker; i++ {
				full.P(tn)
				mutex.Acquire(tn)
				buf = buf[:len(buf)-1]
				consumed++
				mutex.Release(tn)
				empty.V(tn)
			}
		}(w)
	}

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatalf("producer/consumer test timed out")
	}

	if produced != consumed {
		t.Fatalf("produced %d != consumed %d", produced, consumed)
	}
	if len(buf) != 0 {
		t.Fatalf("expected empty buffer at end, got len=%d", len(buf))
	}
}

func TestWchanLockMutualExclusion(t *testing.T) {
	testLockMutualExclusion(t, func(name string) Lock_i { return NewWchanLock(name) })
}

func TestSemLockMutualExclusion(t *testing.T) {
	testLockMutualExclusion(t, func(name string) Lock_i { return NewSemLock(name) })
}

func testLockMutualExclusion(t *testing.T, mk func(string) Lock_i) {
	lk := mk("test")
	counter := 0
	var wg sync.WaitGroup
	const goroutines = 8
	const iters = 500
	wg.Add(goroutines)
	for g := 0; g < goroutines; g++ {
		go func(id int) {
			defer wg.Done()
			tn := tinfo.New(defs.Tid_t(id))
			for i := 0; i < iters; i++ {
				lk.Acquire(tn)
				counter++
				lk.Release(tn)
			}
		}(g)
	}
	wg.Wait()
	if counter != goroutines*iters {
		t.Fatalf("expected counter=%d, got %d", goroutines*iters, counter)
	}
}

func TestReleaseByNonOwnerPanics(t *testing.T) {
	lk := NewWchanLock("test")
	owner := tinfo.New(1)
	other := tinfo.New(2)
	lk.Acquire(owner)
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic releasing a lock held by another thread")
		}
	}()
	lk.Release(other)
}

// CV rendezvous scenario from spec §8: thread A takes L, checks
// ready==false, cv_wait; thread B takes L, sets ready=true, cv_signal,
// releases L. A resumes holding L with ready==true.
func TestCVRendezvous(t *testing.T) {
	lk := NewWchanLock("rendezvous")
	cv := NewCV("rendezvous")
	ready := false
	aResumed := make(chan struct{})

	tnA := tinfo.New(1)
	tnB := tinfo.New(2)

	go func() {
		lk.Acquire(tnA)
		for !ready {
			cv.Wait(tnA, lk)
		}
		if !lk.DoIHold(tnA) {
			panic("A must hold lk after cv_wait returns")
		}
		lk.Release(tnA)
		close(aResumed)
	}()

	time.Sleep(20 * time.Millisecond)
	lk.Acquire(tnB)
	ready = true
	cv.Signal(tnB, lk)
	lk.Release(tnB)

	select {
	case <-aResumed:
	case <-time.After(time.Second):
		t.Fatalf("A never resumed from cv_wait")
	}
}

func TestCVSignalWithoutLockPanics(t *testing.T) {
	lk := NewWchanLock("test")
	cv := NewCV("test")
	tn := tinfo.New(1)
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic signaling a CV without holding its lock")
		}
	}()
	cv.Signal(tn, lk)
}
