// Copyright 2022 The gVisor Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package atomicbitops

import (
	"testing"

	"gvisor.dev/specguard/pkg/sync"
)

func TestOrConcurrent(t *testing.T) {
	for n := 0; n < 100; n++ {
		var (
			u  Uint64
			wg sync.WaitGroup
		)
		for i := 0; i < 64; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				u.Or(1 << i)
			}()
		}
		wg.Wait()
		if got := u.Load(); got != ^uint64(0) {
			t.Fatalf("iteration %d: lost an update: %#x", n, got)
		}
	}
}

func TestTestAndSet(t *testing.T) {
	u := FromUint64(1 << 1)
	if !u.TestAndSet(1 << 1) {
		t.Errorf("TestAndSet on an initial bit returned false")
	}
	if u.TestAndSet(1 << 3) {
		t.Errorf("TestAndSet on clear bit returned true")
	}
	if !u.TestAndSet(1 << 3) {
		t.Errorf("TestAndSet on set bit returned false")
	}
	if got, want := u.Load(), uint64(1<<1|1<<3); got != want {
		t.Errorf("Load() = %#x, want %#x", got, want)
	}
}

// TestTestAndSetOnce checks that exactly one of many racing setters of the
// same bit observes it clear.
func TestTestAndSetOnce(t *testing.T) {
	var (
		u     Uint64
		first Uint64
		wg    sync.WaitGroup
	)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if !u.TestAndSet(1 << 5) {
				first.Add(1)
			}
		}()
	}
	wg.Wait()
	if got := first.Load(); got != 1 {
		t.Errorf("%d setters saw the bit clear, want 1", got)
	}
}

func TestAdd(t *testing.T) {
	var u Uint64
	if got := u.Add(2); got != 2 {
		t.Errorf("Add(2) = %d, want 2", got)
	}
	if got := u.Add(^uint64(0)); got != 1 {
		t.Errorf("Add(-1) = %d, want 1", got)
	}
}
