// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package jobq provides bounded, lock-free job queues for dispatching
// short-lived units of work across a fixed pool of worker goroutines.
//
// A job queue differs from a general-purpose value queue (channels,
// sync.Pool-backed ring buffers, and the like) in one respect: the
// queue itself knows how to run what it stores. A job is any value whose
// type implements [Job]; TryAdd copies a job into a claimed slot, and
// whichever goroutine later claims that slot for consumption calls the
// job's Run method directly, with no extra dispatch step on the caller's
// side.
//
// Two variants are provided, matching the producer/consumer pattern:
//
//   - [SPMC]: Single-Producer, Multiple-Consumer — one dispatcher
//     goroutine feeding a pool of worker goroutines.
//   - [MPMC]: Multiple-Producer, Multiple-Consumer — any number of
//     goroutines submitting work, drained by any number of workers.
//
// # Quick Start
//
//	type PrintJob struct {
//	    Message string
//	}
//
//	func (j PrintJob) Run() {
//	    fmt.Println(j.Message)
//	}
//
//	q := jobq.NewMPMC[PrintJob](1024)
//
//	if !q.TryAdd(PrintJob{Message: "hello"}) {
//	    // queue full — handle backpressure
//	}
//
//	q.RunNext() // runs the job on whichever goroutine calls this
//
// # Work Distribution (SPMC)
//
// Single dispatcher, pool of workers:
//
//	q := jobq.NewSPMC[Task](1024)
//
//	// single producer (dispatcher)
//	go func() {
//	    for task := range tasks {
//	        q.Add(task) // blocks (spins) while the queue is full
//	    }
//	    // the producer waits for everything it dispatched to finish
//	    q.WaitIdle()
//	}()
//
//	// many consumers (workers)
//	for range numWorkers {
//	    go func() {
//	        for {
//	            if !q.RunNext() {
//	                runtime.Gosched()
//	            }
//	        }
//	    }()
//	}
//
// # Worker Pool (MPMC)
//
// Any number of submitters, any number of workers:
//
//	q := jobq.NewMPMC[Job](4096)
//
//	for range numWorkers {
//	    go func() {
//	        for {
//	            if !q.RunNext() {
//	                runtime.Gosched()
//	            }
//	        }
//	    }()
//	}
//
//	func Submit(j Job) bool {
//	    return q.TryAdd(j)
//	}
//
// # Error Handling
//
// Neither queue has an error type. The only two failure modes the core
// protocol recognizes are queue-full (TryAdd returns false; Add retries
// forever instead) and nothing-ready (RunNext returns false immediately).
// A job that panics is the job's own concern — neither queue promises to
// isolate a consumer from a panicking job, and a panic inside Run
// propagates out of RunNext on whichever goroutine was running it.
//
// # Capacity
//
// Capacity rounds up to the next power of two:
//
//	q := jobq.NewMPMC[Task](3)     // actual capacity: 4
//	q := jobq.NewMPMC[Task](1000)  // actual capacity: 1024
//
// Minimum capacity is 2. Construction panics if capacity < 2, or if the
// job type does not fit in a slot alongside its sequence counter
// (see [Job]).
//
// # Thread Safety
//
//   - SPMC: exactly one producer goroutine calling TryAdd/Add/WaitIdle;
//     any number of consumer goroutines calling RunNext.
//   - MPMC: any number of producer goroutines calling TryAdd/Add; any
//     number of consumer goroutines calling RunNext. WaitIdle is safe
//     from a producer goroutine once the caller knows no further
//     producer will submit.
//
// Violating these constraints is undefined behavior: data corruption,
// double execution, or lost jobs, with no panic or error to signal it.
//
// # Race Detection
//
// Go's race detector tracks explicit synchronization primitives (mutex,
// channel, WaitGroup) but cannot observe happens-before relationships
// established purely through atomic memory ordering on separate
// variables — which is exactly how this package's sequence-number
// protocol protects each slot's job field. The protocol is correct, but
// the race detector may still flag false positives on it. Tests that
// depend on concurrent access to a generic queue are skipped under
// -race via [RaceEnabled].
//
// # Dependencies
//
// This package uses [code.hybscloud.com/atomix] for atomic primitives
// with explicit memory ordering and [code.hybscloud.com/spin] for
// CPU-pause spin-wait hints.
package jobq
