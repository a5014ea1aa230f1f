// Package localslot implements the weighted local-model slot scheduler of
// spec section 4.6: per-parameter-size request weight admitted against a
// GPU-probed capacity budget, with a FIFO wait queue and a
// starvation-avoidance admission rule.
//
// Grounded on teacher middleware/concurrency.go's Semaphore
// (channel-capacity-as-permit-count per key) for the acquire/release
// shape, generalized from a flat per-key binary permit count into a
// single weighted budget with an explicit waiter queue, since a request's
// weight (model size) varies and the teacher's channel trick can only
// express unit permits.
package localslot

import (
	"context"
	"sync"
)

// GPUProbe reports available VRAM in bytes. Implementations may shell out,
// read a sysfs/nvidia-smi-style source, or return 0 for CPU-only hosts.
type GPUProbe func() (vramBytes int64, ok bool)

const (
	giB = 1 << 30

	maxWeightLarge  = 8 // >40GiB VRAM
	maxWeightMedium = 5 // 10-40GiB VRAM
	maxWeightSmall  = 3 // >0, <10GiB VRAM
	maxWeightCPU    = 1 // no GPU detected
)

// MaxWeightForVRAM maps probed VRAM to the scheduler's total weight budget,
// per spec 4.6's GPU-probe scaling table.
func MaxWeightForVRAM(vramBytes int64) int {
	switch {
	case vramBytes > 40*giB:
		return maxWeightLarge
	case vramBytes >= 10*giB:
		return maxWeightMedium
	case vramBytes > 0:
		return maxWeightSmall
	default:
		return maxWeightCPU
	}
}

// waiter is one pending admission request in the FIFO queue.
type waiter struct {
	weight int
	admit  chan struct{}
}

// Scheduler admits weighted requests against a fixed total capacity,
// serving waiters in strict FIFO order: only the head of the queue is ever
// considered for admission, so a heavy waiter can never be starved by an
// endless stream of smaller arrivals jumping ahead of it.
type Scheduler struct {
	mu        sync.Mutex
	maxWeight int
	inUse     int
	queue     []*waiter
}

// NewScheduler builds a scheduler with the given total weight budget. If
// probe is non-nil its result determines the budget; OLLAMA_NUM_GPU=0 (or
// a probe reporting ok=false) forces the CPU budget.
func NewScheduler(probe GPUProbe, forceCPU bool) *Scheduler {
	maxWeight := maxWeightCPU
	if !forceCPU && probe != nil {
		if vram, ok := probe(); ok {
			maxWeight = MaxWeightForVRAM(vram)
		}
	}
	return &Scheduler{maxWeight: maxWeight}
}

// Acquire blocks until weight capacity is available or ctx is cancelled.
// The caller must call the returned release function exactly once on
// success.
func (s *Scheduler) Acquire(ctx context.Context, weight int) (release func(), err error) {
	if weight > s.maxWeight {
		weight = s.maxWeight // a single request can never exceed total budget
	}

	s.mu.Lock()
	w := &waiter{weight: weight, admit: make(chan struct{})}
	// Only cut the queue when it's empty: a non-empty queue means someone
	// is already waiting, and admitting a fresh arrival first would violate
	// FIFO and reintroduce the starvation this scheduler exists to prevent.
	if len(s.queue) == 0 && s.tryAdmitLocked(w) {
		s.mu.Unlock()
		return s.releaseFunc(weight), nil
	}
	s.queue = append(s.queue, w)
	s.mu.Unlock()

	select {
	case <-w.admit:
		return s.releaseFunc(weight), nil
	case <-ctx.Done():
		s.cancelWaiter(w)
		return nil, ctx.Err()
	}
}

// tryAdmitLocked admits w immediately if capacity allows. Caller holds mu.
func (s *Scheduler) tryAdmitLocked(w *waiter) bool {
	if s.inUse+w.weight <= s.maxWeight {
		s.inUse += w.weight
		return true
	}
	return false
}

func (s *Scheduler) releaseFunc(weight int) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			s.inUse -= weight
			s.promoteLocked()
			s.mu.Unlock()
		})
	}
}

// promoteLocked admits queued waiters strictly in FIFO order: the head is
// tried first, and promotion stops the moment a waiter doesn't fit. This is
// the starvation-avoidance rule itself — a heavy waiter at the head always
// blocks the queue rather than letting an endless stream of smaller
// requests behind it keep jumping ahead and starving it.
func (s *Scheduler) promoteLocked() {
	for len(s.queue) > 0 {
		head := s.queue[0]
		if !s.tryAdmitLocked(head) {
			return
		}
		close(head.admit)
		s.queue = s.queue[1:]
	}
}

// cancelWaiter removes a cancelled waiter from the queue if it is still
// pending admission.
func (s *Scheduler) cancelWaiter(w *waiter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, q := range s.queue {
		if q == w {
			s.queue = append(s.queue[:i], s.queue[i+1:]...)
			return
		}
	}
}

// InUse reports the currently committed weight, for observability.
func (s *Scheduler) InUse() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inUse
}

// Capacity reports the total weight budget.
func (s *Scheduler) Capacity() int {
	return s.maxWeight
}
