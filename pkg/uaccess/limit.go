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

// Package uaccess validates accesses to user memory without giving the
// processor a branch to mispredict.
//
// Every helper checks the access against the task's address limit with
// carry arithmetic, faults without touching memory if the check fails, and
// otherwise masks the pointer and issues a speculation barrier before the
// access. Changing the address limit issues DSB then ISB so that no later
// check can run against the previous limit.
package uaccess

import (
	"fmt"
	"sync/atomic"

	"gvisor.dev/specguard/pkg/barrier"
)

// AddressLimit is the highest address, inclusive, a context may access.
type AddressLimit uint64

const (
	// KernelDS allows access to the whole address space.
	KernelDS AddressLimit = ^AddressLimit(0)

	// UserDS is the top of the 48-bit user address space.
	UserDS AddressLimit = 1<<48 - 1
)

// String implements fmt.Stringer.
func (l AddressLimit) String() string {
	switch l {
	case KernelDS:
		return "KERNEL_DS"
	case UserDS:
		return "USER_DS"
	default:
		return fmt.Sprintf("%#x", uint64(l))
	}
}

// Context holds the address limit of a task. The limit is read on every
// access and written only on context switches.
type Context struct {
	limit atomic.Uint64
}

// NewContext returns a Context with the given limit.
func NewContext(l AddressLimit) *Context {
	c := &Context{}
	c.limit.Store(uint64(l))
	return c
}

// Limit returns the current address limit.
//
//go:nosplit
func (c *Context) Limit() AddressLimit {
	return AddressLimit(c.limit.Load())
}

// SetLimit switches the address limit. The new limit is visible to every
// subsequent check: the store is followed by a data synchronization barrier
// and then an instruction synchronization barrier.
func (c *Context) SetLimit(l AddressLimit) {
	c.limit.Store(uint64(l))
	barrier.DataSync()
	barrier.InstructionSync()
}

// Override switches to limit l and returns a function restoring the
// previous limit.
//
//	restore := ctx.Override(uaccess.KernelDS)
//	defer restore()
func (c *Context) Override(l AddressLimit) (restore func()) {
	old := c.Limit()
	c.SetLimit(l)
	return func() { c.SetLimit(old) }
}
