// Copyright 2019 The gVisor Authors.
//
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sync

import (
	"fmt"
	"runtime"
	"sync/atomic"
)

// SeqCount lets readers copy data that a single writer may be rewriting,
// without blocking the writer. The epoch is odd while a write is in
// progress; a read is consistent iff it began and ended on the same even
// epoch.
//
// Readers loop:
//
//	for {
//		epoch := seq.BeginRead()
//		// Copy the protected data with sync/atomic loads.
//		if seq.ReadOk(epoch) {
//			break
//		}
//	}
//
// Writers must be serialized by the caller.
type SeqCount struct {
	epoch atomic.Uint32
}

// SeqCountEpoch is an observed SeqCount epoch.
type SeqCountEpoch uint32

// BeginRead waits out any write in progress and returns the epoch to pass to
// ReadOk.
//
//go:nosplit
func (s *SeqCount) BeginRead() SeqCountEpoch {
	for {
		if epoch := s.epoch.Load(); epoch&1 == 0 {
			return SeqCountEpoch(epoch)
		}
		runtime.Gosched()
	}
}

// ReadOk reports whether no write has begun since BeginRead returned epoch.
//
//go:nosplit
func (s *SeqCount) ReadOk(epoch SeqCountEpoch) bool {
	return s.epoch.Load() == uint32(epoch)
}

// BeginWrite starts a write. Nested writes panic.
func (s *SeqCount) BeginWrite() {
	if epoch := s.epoch.Add(1); epoch&1 == 0 {
		panic("SeqCount.BeginWrite during writer critical section")
	}
}

// EndWrite completes the write started by BeginWrite.
func (s *SeqCount) EndWrite() {
	if epoch := s.epoch.Add(1); epoch&1 != 0 {
		panic(fmt.Sprintf("SeqCount.EndWrite outside writer critical section (epoch %d)", epoch))
	}
}
