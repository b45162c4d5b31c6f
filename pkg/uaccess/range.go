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

package uaccess

import (
	"math/bits"

	"gvisor.dev/specguard/pkg/barrier"
)

// valid returns 1 if addr+size <= limit+1 when computed with 65 bits, and 0
// otherwise. It uses only carry and borrow arithmetic; a sum that overflows
// 64 bits carries into the 65th bit instead of wrapping.
//
//go:nosplit
func valid(addr, size, limit uint64) uint64 {
	sum, sumCarry := bits.Add64(addr, size, 0)
	end, endCarry := bits.Add64(limit, 1, 0)
	// end:endCarry - sum:sumCarry borrows out of bit 65 iff end < sum.
	_, borrow := bits.Sub64(end, sum, 0)
	_, borrow = bits.Sub64(endCarry, sumCarry, borrow)
	return borrow ^ 1
}

// RangeOK returns true if the size bytes at addr lie at or below limit.
//
//go:nosplit
func RangeOK(addr, size uint64, limit AddressLimit) bool {
	return valid(addr, size, uint64(limit)) == 1
}

// MaskPtr returns addr if RangeOK(addr, size, limit), and zero otherwise,
// without branching on the outcome. A speculation barrier follows the mask,
// so later instructions cannot consume addr before it is resolved.
//
//go:nosplit
func MaskPtr(addr, size uint64, limit AddressLimit) uint64 {
	addr &= -valid(addr, size, uint64(limit))
	barrier.SpeculationBarrier()
	return addr
}

// MaskIndex returns idx if idx < limit, and zero otherwise, without
// branching on the outcome. limit must be below 1<<63.
//
//go:nosplit
func MaskIndex(idx, limit uint64) uint64 {
	tmp := idx - limit
	tmp &^= idx
	idx &= uint64(int64(tmp) >> 63)
	barrier.SpeculationBarrier()
	return idx
}
