package localslot

import (
	"context"
	"testing"
	"time"
)

func forcedScheduler(maxWeight int) *Scheduler {
	return &Scheduler{maxWeight: maxWeight}
}

// TestAcquireUnderSingleSlotLimit covers scenario 7: with maxWeight=1, an
// immediate acquire succeeds, a second acquire blocks and is then
// aborted without mutating in-use weight, and a third acquire succeeds
// once the first is released.
func TestAcquireUnderSingleSlotLimit(t *testing.T) {
	s := forcedScheduler(1)

	releaseA, err := s.Acquire(context.Background(), 1)
	if err != nil {
		t.Fatalf("expected A to acquire immediately, got %v", err)
	}
	if s.InUse() != 1 {
		t.Fatalf("expected in-use weight 1 after A acquires, got %d", s.InUse())
	}

	ctxB, cancel := context.WithCancel(context.Background())
	bDone := make(chan struct{})
	var bErr error
	go func() {
		_, bErr = s.Acquire(ctxB, 1)
		close(bDone)
	}()

	// Give B a moment to join the wait queue before aborting it.
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-bDone:
	case <-time.After(time.Second):
		t.Fatalf("B's acquire did not return after abort")
	}
	if bErr == nil {
		t.Fatalf("expected B's acquire to fail with the abort error")
	}
	if s.InUse() != 1 {
		t.Fatalf("expected aborted B to leave in-use weight unchanged at 1, got %d", s.InUse())
	}

	releaseA()
	if s.InUse() != 0 {
		t.Fatalf("expected in-use weight 0 after releasing A, got %d", s.InUse())
	}

	releaseC, err := s.Acquire(context.Background(), 1)
	if err != nil {
		t.Fatalf("expected C to acquire after A's release, got %v", err)
	}
	defer releaseC()
	if s.InUse() != 1 {
		t.Fatalf("expected in-use weight 1 after C acquires, got %d", s.InUse())
	}
}

// TestPromotionIsStrictFIFO covers the FIFO/no-skip-ahead invariant: a
// large waiter at the head of the queue blocks a smaller waiter behind it
// from being admitted out of order.
func TestPromotionIsStrictFIFO(t *testing.T) {
	s := forcedScheduler(2)

	releaseFirst, err := s.Acquire(context.Background(), 2)
	if err != nil {
		t.Fatalf("expected first acquire to succeed, got %v", err)
	}

	headDone := make(chan struct{})
	tailDone := make(chan struct{})
	var headAcquired, tailAcquired bool

	go func() {
		_, err := s.Acquire(context.Background(), 2)
		headAcquired = err == nil
		close(headDone)
	}()
	time.Sleep(10 * time.Millisecond) // ensure queue order: head enqueued first
	go func() {
		_, err := s.Acquire(context.Background(), 1)
		tailAcquired = err == nil
		close(tailDone)
	}()
	time.Sleep(10 * time.Millisecond)

	releaseFirst()

	select {
	case <-headDone:
	case <-time.After(time.Second):
		t.Fatalf("head waiter never admitted after release")
	}
	if !headAcquired {
		t.Fatalf("expected head waiter to be admitted")
	}

	select {
	case <-tailDone:
		t.Fatalf("tail waiter must not be admitted while the larger head waiter is still pending capacity")
	case <-time.After(100 * time.Millisecond):
	}
	_ = tailAcquired
}

func TestMaxWeightForVRAM(t *testing.T) {
	cases := []struct {
		vram int64
		want int
	}{
		{0, maxWeightCPU},
		{1 * giB, maxWeightSmall},
		{10 * giB, maxWeightMedium},
		{40 * giB, maxWeightMedium},
		{41 * giB, maxWeightLarge},
	}
	for _, tc := range cases {
		if got := MaxWeightForVRAM(tc.vram); got != tc.want {
			t.Fatalf("MaxWeightForVRAM(%d) = %d, want %d", tc.vram, got, tc.want)
		}
	}
}
