// Copyright 2018 The gVisor Authors.
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
package sync

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestGateEnterLeaveClose(t *testing.T) {
	var g Gate
	if g.Closed() {
		t.Fatalf("new gate is closed")
	}
	for i := 0; i < 3; i++ {
		if !g.Enter() {
			t.Fatalf("Enter %d failed on an open gate", i)
		}
	}
	for i := 0; i < 3; i++ {
		g.Leave()
	}
	g.Close()
	if !g.Closed() {
		t.Errorf("Closed() = false after Close")
	}
	if g.Enter() {
		t.Errorf("Enter succeeded after Close")
	}
}

func TestGateCloseWaitsForUsers(t *testing.T) {
	var g Gate
	if !g.Enter() {
		t.Fatalf("Enter failed")
	}
	closed := make(chan struct{})
	go func() {
		g.Close()
		close(closed)
	}()

	for !g.Closed() {
		time.Sleep(time.Millisecond)
	}
	if g.Enter() {
		t.Errorf("Enter succeeded while closing")
	}
	select {
	case <-closed:
		t.Fatalf("Close returned with a user inside")
	case <-time.After(10 * time.Millisecond):
	}

	g.Leave()
	<-closed
}

func TestGateConcurrent(t *testing.T) {
	for i := 0; i < 20; i++ {
		var (
			g      Gate
			wg     WaitGroup
			inside atomic.Int32
			done   atomic.Bool
		)
		for j := 0; j < 64; j++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for !done.Load() {
					if !g.Enter() {
						return
					}
					inside.Add(1)
					if done.Load() {
						t.Errorf("entered after Close returned")
					}
					inside.Add(-1)
					g.Leave()
				}
			}()
		}
		time.Sleep(time.Millisecond)
		g.Close()
		done.Store(true)
		if n := inside.Load(); n != 0 {
			t.Errorf("Close returned with %d users inside", n)
		}
		wg.Wait()
	}
}

func TestGateLeaveWithoutEnter(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Errorf("Leave without Enter did not panic")
		}
	}()
	var g Gate
	g.Leave()
}

func TestGateNil(t *testing.T) {
	var g *Gate
	if g.Enter() {
		t.Errorf("Enter on nil gate succeeded")
	}
}

func BenchmarkGateEnterLeave(b *testing.B) {
	var g Gate
	for i := 0; i < b.N; i++ {
		g.Enter()
		g.Leave()
	}
}
