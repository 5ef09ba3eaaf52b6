// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package jobq

import (
	"code.hybscloud.com/atomix"
	"code.hybscloud.com/spin"
)

// MPMC is a bounded, lock-free multi-producer multi-consumer job queue.
//
// Structurally identical to SPMC, but head is also shared: any number of
// producer goroutines may call TryAdd/Add concurrently, contending on
// head via CAS. head, tail, completed, and the slot array each occupy
// their own cache line.
//
// Interrupt/preemption safety: submission is a lock-free CAS loop with no
// producer-private mutable state beyond a local variable, so a producer
// goroutine that is preempted mid-TryAdd — by the Go scheduler, a GC
// stop-the-world pause, or a signal handler registered via os/signal that
// itself calls TryAdd on the same queue — cannot corrupt the queue: it
// either observes head is stale and reloads, or wins the CAS. SPMC offers
// no such guarantee, since its head is a plain, non-atomic cursor.
type MPMC[T Job] struct {
	_         pad
	head      atomix.Uint32
	_         pad
	tail      atomix.Uint32
	_         pad
	completed atomix.Uint32
	_         pad
	slots     []slot[T]
	mask      uint32
	size      uint32
}

// NewMPMC constructs an MPMC queue with the given capacity, rounded up to
// the next power of two (minimum 2), and initializes it.
func NewMPMC[T Job](capacity uint32) *MPMC[T] {
	checkJobSize[T]()
	if capacity < 2 {
		panic("jobq: capacity must be >= 2")
	}
	n := roundToPow2(capacity)
	q := &MPMC[T]{
		slots: make([]slot[T], n),
		mask:  n - 1,
		size:  n,
	}
	q.Init()
	return q
}

// Init (re)establishes the FREE(0) state for every slot and resets head,
// tail, and completed to zero. Like SPMC.Init, it does not allocate the
// slot array: it resets a queue created by NewMPMC, and a zero-valued
// MPMC[T] has no slots and is not usable, with or without Init.
func (q *MPMC[T]) Init() {
	q.head.StoreRelaxed(0)
	q.tail.StoreRelaxed(0)
	q.completed.StoreRelaxed(0)
	for i := range q.slots {
		q.slots[i].sequence.StoreRelaxed(uint32(i))
	}
}

// Cap returns the queue's usable capacity (the rounded-up slot count).
func (q *MPMC[T]) Cap() uint32 {
	return q.size
}

// TryAdd submits job to the queue without blocking, safe to call from any
// number of producer goroutines concurrently. It returns false if the
// queue is full.
func (q *MPMC[T]) TryAdd(job T) bool {
	h := q.head.LoadRelaxed()
	for {
		s := &q.slots[h&q.mask]

		seq := s.sequence.LoadAcquire()
		d := diff32(seq, h)

		switch {
		case d > 0:
			// another producer already claimed this slot; resync and retry
			h = q.head.LoadRelaxed()
			continue
		case d < 0:
			return false
		}

		// atomix, like Go's sync/atomic underneath it, only exposes a
		// strong CAS here; a strong CAS is a valid, slightly more
		// conservative substitute for a weak one, since failure is
		// retried in this loop regardless.
		if !q.head.CompareAndSwapRelaxed(h, h+1) {
			h = q.head.LoadRelaxed()
			continue
		}

		s.job = job
		s.sequence.StoreRelease(h + 1)
		return true
	}
}

// Add submits job, spinning with a CPU-pause hint between failed attempts
// until the queue has room. It never returns without having submitted
// the job.
func (q *MPMC[T]) Add(job T) {
	sw := spin.Wait{}
	for !q.TryAdd(job) {
		sw.Once()
	}
}

// RunNext claims and executes the next ready job, if any. It is safe to
// call from any number of consumer goroutines concurrently. It returns
// false immediately if no job is currently ready — it never blocks.
//
// The claim/execute/release protocol is identical to SPMC.RunNext; MPMC
// differs only in how head is advanced by producers, which RunNext never
// touches.
func (q *MPMC[T]) RunNext() bool {
	t := q.tail.LoadRelaxed()
	for {
		s := &q.slots[t&q.mask]

		seq := s.sequence.LoadAcquire()
		d := diff32(seq, t+1)

		switch {
		case d < 0:
			return false
		case d > 0:
			t = q.tail.LoadRelaxed()
			continue
		}

		if !q.tail.CompareAndSwapRelaxed(t, t+1) {
			t = q.tail.LoadRelaxed()
			continue
		}

		s.run()
		s.sequence.StoreRelease(t + q.size)
		q.completed.AddAcqRel(1)
		return true
	}
}

// ActiveCount reports the number of jobs submitted but not yet completed.
// Both head and completed are read with relaxed ordering: any producer or
// consumer may be advancing them concurrently, so the result is a
// best-effort snapshot intended for status displays, not for
// synchronization.
func (q *MPMC[T]) ActiveCount() uint32 {
	return q.head.LoadRelaxed() - q.completed.LoadRelaxed()
}

// WaitIdle spins with a CPU-pause hint until every job submitted so far
// has completed.
//
// WaitIdle must only be called once the caller knows no further producer
// will submit: a caller that calls WaitIdle while another goroutine is
// still adding jobs may see it spin forever.
func (q *MPMC[T]) WaitIdle() {
	sw := spin.Wait{}
	for {
		h := q.head.LoadRelaxed()
		c := q.completed.LoadAcquire()
		if h == c {
			return
		}
		sw.Once()
	}
}
