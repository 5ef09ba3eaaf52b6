// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package jobq

import "code.hybscloud.com/atomix"

// slot is one ring cell: a sequence tag plus the job it carries.
// checkJobSize bounds job to cacheLineSize-sizeof(sequence) bytes, so
// sequence and job together never exceed one cache line. slot has no
// trailing pad field, so it is not padded out to a full cache line: a
// slot smaller than a line shares that line with its neighbours in the
// slots slice.
//
// The sequence encodes the slot's lifecycle (see diff32 and the
// FREE(k)/FILLED(k) states documented on SPMC and MPMC):
//
//	sequence == i + k*N   -> FREE(k), awaiting production
//	sequence == i + k*N+1 -> FILLED(k), awaiting consumption
//
// for slot index i, ring size N, and lap k.
type slot[T Job] struct {
	sequence atomix.Uint32
	job      T
}

// run executes the slot's job and then drops its reference to it. Go has
// no placement destructor to call the way the MPMC variant of the
// original queue does; zeroing job is the garbage-collected language's
// equivalent — it releases anything the job held onto so the collector
// can reclaim it instead of the value lingering in the ring until the
// slot's next lap overwrites it.
func (s *slot[T]) run() {
	s.job.Run()
	var zero T
	s.job = zero
}
