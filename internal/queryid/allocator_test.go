package queryid

import (
	"testing"
	"time"
)

func TestAcquireIsMonotonic(t *testing.T) {
	a := New()
	h1 := a.Acquire()
	h2 := a.Acquire()
	h3 := a.Acquire()

	if h1.Value() >= h2.Value() || h2.Value() >= h3.Value() {
		t.Fatalf("ids not strictly increasing: %d, %d, %d", h1.Value(), h2.Value(), h3.Value())
	}
	if a.NextID() != h3.Value()+1 {
		t.Fatalf("NextID() = %d, want %d", a.NextID(), h3.Value()+1)
	}
}

func TestOldestAdvancesOnRelease(t *testing.T) {
	a := New()
	h1 := a.Acquire()
	h2 := a.Acquire()

	if a.Oldest() != h1.Value() {
		t.Fatalf("Oldest() = %d, want %d", a.Oldest(), h1.Value())
	}

	a.Release(h1)
	if a.Oldest() != h2.Value() {
		t.Fatalf("Oldest() after release = %d, want %d", a.Oldest(), h2.Value())
	}

	a.Release(h2)
	if a.Oldest() != a.NextID() {
		t.Fatalf("Oldest() with nothing outstanding = %d, want NextID() = %d", a.Oldest(), a.NextID())
	}
}

func TestReleaseOutOfOrder(t *testing.T) {
	a := New()
	h1 := a.Acquire()
	h2 := a.Acquire()
	h3 := a.Acquire()

	// Release the middle handle first: watermark must not move, since h1
	// is still the oldest outstanding id.
	a.Release(h2)
	if a.Oldest() != h1.Value() {
		t.Fatalf("Oldest() = %d, want %d (h1 still outstanding)", a.Oldest(), h1.Value())
	}

	a.Release(h1)
	if a.Oldest() != h3.Value() {
		t.Fatalf("Oldest() = %d, want %d", a.Oldest(), h3.Value())
	}
}

func TestReleaseIsIdempotentAfterTeardown(t *testing.T) {
	a := New()
	h1 := a.Acquire()
	h2 := a.Acquire()

	a.Teardown()
	if a.Oldest() != a.NextID() {
		t.Fatalf("Oldest() after teardown = %d, want NextID() = %d", a.Oldest(), a.NextID())
	}

	// Orphaned handles must tolerate a later Release call as a no-op.
	a.Release(h1)
	a.Release(h2)
}

func TestWaitUnblocksWhenWatermarkAdvances(t *testing.T) {
	a := New()
	h1 := a.Acquire()
	target := a.NextID()

	done := make(chan struct{})
	go func() {
		a.Wait(target)
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("Wait returned before watermark reached target")
	case <-time.After(20 * time.Millisecond):
	}

	a.Release(h1)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Wait did not unblock after watermark advanced")
	}
}

func TestWaitReturnsImmediatelyWhenAlreadySatisfied(t *testing.T) {
	a := New()
	done := make(chan struct{})
	go func() {
		a.Wait(a.Oldest())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Wait blocked on an already-satisfied target")
	}
}
