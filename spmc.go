// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package jobq

import (
	"code.hybscloud.com/atomix"
	"code.hybscloud.com/spin"
)

// SPMC is a bounded, lock-free single-producer multi-consumer job queue.
//
// A single producer goroutine submits jobs with TryAdd/Add; any number of
// consumer goroutines may call RunNext concurrently. Calling TryAdd or Add
// from more than one goroutine at a time is undefined behavior — SPMC has
// no protection against it, by design: head is a plain, non-atomic cursor,
// so there is nothing arbitrating two concurrent producers. Do not call
// TryAdd/Add concurrently, including from a signal handler registered via
// os/signal, while another call to TryAdd/Add on the same queue may be in
// flight.
//
// head is the producer's plain (non-atomic) private cursor: since SPMC
// has exactly one producer, there is nothing to CAS against. tail and
// completed are shared with consumers and are always accessed through
// atomix. head, tail, completed, and the slot array are each padded onto
// their own cache line to avoid false sharing between the producer and
// the pool of consumers.
type SPMC[T Job] struct {
	_         pad
	head      uint32 // producer-private; plain reads/writes only
	_         pad
	tail      atomix.Uint32
	_         pad
	completed atomix.Uint32
	_         pad
	slots     []slot[T]
	mask      uint32
	size      uint32
}

// NewSPMC constructs an SPMC queue with the given capacity, rounded up to
// the next power of two (minimum 2), and initializes it. The queue is
// ready to use immediately; there is no separate init step required of
// callers that use this constructor.
func NewSPMC[T Job](capacity uint32) *SPMC[T] {
	checkJobSize[T]()
	if capacity < 2 {
		panic("jobq: capacity must be >= 2")
	}
	n := roundToPow2(capacity)
	q := &SPMC[T]{
		slots: make([]slot[T], n),
		mask:  n - 1,
		size:  n,
	}
	q.Init()
	return q
}

// Init (re)establishes the FREE(0) state for every slot and resets head,
// tail, and completed to zero.
//
// Zeroing the sequences is not enough on its own: a sequence of 0 only
// encodes FREE(0) for slot index 0; every other slot's FREE(0) state is
// i, not 0. NewSPMC already calls Init. Init does not allocate the slot
// array: it resets a queue created by NewSPMC, and a zero-valued SPMC[T]
// has no slots and is not usable, with or without Init.
func (q *SPMC[T]) Init() {
	q.head = 0
	q.tail.StoreRelaxed(0)
	q.completed.StoreRelaxed(0)
	for i := range q.slots {
		q.slots[i].sequence.StoreRelaxed(uint32(i))
	}
}

// Cap returns the queue's usable capacity (the rounded-up slot count).
func (q *SPMC[T]) Cap() uint32 {
	return q.size
}

// TryAdd submits job to the queue without blocking. It returns false if
// the queue is full — every slot still belongs to a lap the consumers
// have not finished draining. TryAdd must only be called from the single
// producer goroutine.
func (q *SPMC[T]) TryAdd(job T) bool {
	h := q.head
	s := &q.slots[h&q.mask]

	// (1) paired with consumer release (2) in RunNext
	if s.sequence.LoadAcquire() != h {
		return false
	}

	s.job = job
	q.head = h + 1

	// (3) paired with consumer acquire (4) in RunNext
	s.sequence.StoreRelease(h + 1)
	return true
}

// Add submits job, spinning with a CPU-pause hint between failed attempts
// until the queue has room. It never returns without having submitted
// the job. Add must only be called from the single producer goroutine.
func (q *SPMC[T]) Add(job T) {
	sw := spin.Wait{}
	for !q.TryAdd(job) {
		sw.Once()
	}
}

// RunNext claims and executes the next ready job, if any. It is safe to
// call from any number of consumer goroutines concurrently. It returns
// false immediately if no job is currently ready — it never blocks.
func (q *SPMC[T]) RunNext() bool {
	t := q.tail.LoadRelaxed()
	for {
		s := &q.slots[t&q.mask]

		// (4) paired with producer release (3) in TryAdd
		seq := s.sequence.LoadAcquire()
		d := diff32(seq, t+1)

		switch {
		case d < 0:
			// not yet filled; nothing to run
			return false
		case d > 0:
			// another consumer already advanced tail past t; resync and retry
			t = q.tail.LoadRelaxed()
			continue
		}

		// the payload is already acquired via the sequence load above, so
		// the CAS on tail only arbitrates which consumer owns the slot —
		// it needs no ordering of its own. atomix only exposes a strong
		// CAS here; a strong CAS is a valid, slightly more conservative
		// substitute for a weak one since failure is retried in this loop
		// regardless.
		if !q.tail.CompareAndSwapRelaxed(t, t+1) {
			t = q.tail.LoadRelaxed()
			continue
		}

		s.run()

		// (2) paired with producer acquire (1) in TryAdd: hands the slot
		// back to the producer for lap k+1.
		s.sequence.StoreRelease(t + q.size)

		// (5) paired with producer acquire (6) in WaitIdle
		q.completed.AddAcqRel(1)
		return true
	}
}

// ActiveCount reports the number of jobs submitted but not yet completed.
// It is intended for producer-side inspection (status displays, and
// similar) rather than as a synchronization signal.
func (q *SPMC[T]) ActiveCount() uint32 {
	return q.head - q.completed.LoadRelaxed()
}

// WaitIdle spins with a CPU-pause hint until every job submitted so far
// has completed. It establishes a happens-after relationship with every
// completed job's side effects: once WaitIdle returns, the calling
// goroutine is guaranteed to observe everything every completed job did.
// WaitIdle must only be called from the producer goroutine.
func (q *SPMC[T]) WaitIdle() {
	sw := spin.Wait{}
	// (6) paired with consumer release (5) in RunNext
	for q.completed.LoadAcquire() != q.head {
		sw.Once()
	}
}
