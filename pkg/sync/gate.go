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
)

// gateClosed is set in Gate.state once Close has begun. The bits below it
// count users inside the gate.
const gateClosed = 1 << 63

// Gate admits any number of concurrent users until it is closed. Enter never
// blocks; it fails once Close has begun. Close waits for every user still
// inside to Leave.
//
// A processor's vector area is guarded this way: crossings and installations
// hold the gate, and taking the processor offline closes it.
//
//	if !g.Enter() {
//		return // Released.
//	}
//	defer g.Leave()
type Gate struct {
	state atomic.Uint64

	// drained is closed by the last user to leave a closed gate. It is
	// written by Close before the closed bit is published.
	drained chan struct{}
}

// Enter admits the caller unless the gate is closed. A successful Enter must
// be paired with Leave. A nil gate is always closed.
func (g *Gate) Enter() bool {
	if g == nil {
		return false
	}
	for v := g.state.Load(); v&gateClosed == 0; v = g.state.Load() {
		if g.state.CompareAndSwap(v, v+1) {
			return true
		}
	}
	return false
}

// Leave releases a user admitted by Enter.
func (g *Gate) Leave() {
	v := g.state.Add(^uint64(0))
	switch {
	case v&^gateClosed == 1<<63-1:
		panic("sync.Gate: Leave without Enter")
	case v == gateClosed:
		close(g.drained)
	}
}

// Close stops admitting users and returns once every user inside has left.
// Close must be called at most once.
func (g *Gate) Close() {
	g.drained = make(chan struct{})
	if g.state.Or(gateClosed) != 0 {
		<-g.drained
	}
}

// Closed reports whether Close has been called.
func (g *Gate) Closed() bool {
	return g.state.Load()&gateClosed != 0
}
