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
// Package atomicbitops provides an atomic bitmask built on sync/atomic.
//
// Read-modify-write operations have acquire-release ordering, like
// sync/atomic.
package atomicbitops

import (
	"sync/atomic"
)

// Uint64 is an atomic uint64 used as a counter or a set of flag bits. The
// zero value is ready to use.
type Uint64 struct {
	value atomic.Uint64
}

// FromUint64 returns a Uint64 initialized to v.
func FromUint64(v uint64) *Uint64 {
	u := new(Uint64)
	u.value.Store(v)
	return u
}

// Load returns the current value.
//
//go:nosplit
func (u *Uint64) Load() uint64 {
	return u.value.Load()
}

// Add adds v and returns the new value.
//
//go:nosplit
func (u *Uint64) Add(v uint64) uint64 {
	return u.value.Add(v)
}

// Or sets the bits in mask and returns the previous value. It does not write
// when every bit is already set.
func (u *Uint64) Or(mask uint64) uint64 {
	for {
		o := u.value.Load()
		if o|mask == o || u.value.CompareAndSwap(o, o|mask) {
			return o
		}
	}
}

// TestAndSet sets the bits in mask and reports whether any of them were
// already set.
func (u *Uint64) TestAndSet(mask uint64) bool {
	return u.Or(mask)&mask != 0
}
