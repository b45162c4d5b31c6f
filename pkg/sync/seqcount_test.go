// Copyright 2019 The gVisor Authors.
//
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sync

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestSeqCountRead(t *testing.T) {
	var seq SeqCount
	epoch := seq.BeginRead()
	if !seq.ReadOk(epoch) {
		t.Fatalf("ReadOk failed without a writer")
	}

	seq.BeginWrite()
	if seq.ReadOk(epoch) {
		t.Errorf("ReadOk succeeded during a write")
	}
	seq.EndWrite()
	if seq.ReadOk(epoch) {
		t.Errorf("ReadOk succeeded after a write")
	}
	if epoch = seq.BeginRead(); !seq.ReadOk(epoch) {
		t.Errorf("ReadOk failed on a fresh epoch")
	}
}

func TestSeqCountBeginReadWaitsForWriter(t *testing.T) {
	var (
		seq  SeqCount
		data atomic.Int32
	)
	seq.BeginWrite()
	go func() {
		time.Sleep(10 * time.Millisecond)
		data.Store(1)
		seq.EndWrite()
	}()
	epoch := seq.BeginRead()
	if got := data.Load(); got != 1 {
		t.Errorf("BeginRead returned before EndWrite: data = %d", got)
	}
	if !seq.ReadOk(epoch) {
		t.Errorf("ReadOk failed after the write completed")
	}
}

// TestSeqCountNoTornReads has one writer keep two words equal while readers
// check that every accepted copy has them equal.
func TestSeqCountNoTornReads(t *testing.T) {
	var (
		seq  SeqCount
		a, b atomic.Uint64
		stop atomic.Bool
		wg   WaitGroup
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := uint64(1); !stop.Load(); i++ {
			seq.BeginWrite()
			a.Store(i)
			b.Store(i)
			seq.EndWrite()
		}
	}()
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for n := 0; n < 10000; n++ {
				var x, y uint64
				for {
					epoch := seq.BeginRead()
					x, y = a.Load(), b.Load()
					if seq.ReadOk(epoch) {
						break
					}
				}
				if x != y {
					t.Errorf("torn read: %d != %d", x, y)
					return
				}
			}
		}()
	}
	time.Sleep(20 * time.Millisecond)
	stop.Store(true)
	wg.Wait()
}

func TestSeqCountMisuse(t *testing.T) {
	for name, fn := range map[string]func(*SeqCount){
		"EndWrite without BeginWrite": func(s *SeqCount) { s.EndWrite() },
		"nested BeginWrite":           func(s *SeqCount) { s.BeginWrite(); s.BeginWrite() },
	} {
		t.Run(name, func(t *testing.T) {
			defer func() {
				if recover() == nil {
					t.Errorf("%s did not panic", name)
				}
			}()
			var seq SeqCount
			fn(&seq)
		})
	}
}

func BenchmarkSeqCountReadUncontended(b *testing.B) {
	var seq SeqCount
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			if epoch := seq.BeginRead(); !seq.ReadOk(epoch) {
				b.Fatalf("ReadOk failed without a writer")
			}
		}
	})
}
