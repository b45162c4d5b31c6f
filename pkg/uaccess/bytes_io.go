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
	"context"

	"gvisor.dev/specguard/pkg/errors/linuxerr"
)

// IO is a user address space. Accesses that reach unmapped memory copy up
// to the first unmapped byte and return EFAULT, like the exception fixup
// path of a real user access.
//
// Buffers passed to IO escape to the heap, so a successful GetUser or PutUser
// allocates its scalar buffer. Rejected accesses never reach IO.
type IO interface {
	// CopyOut copies len(src) bytes from src to the memory mapped at addr.
	CopyOut(ctx context.Context, addr uint64, src []byte) (int, error)

	// CopyIn copies len(dst) bytes from the memory mapped at addr to dst.
	CopyIn(ctx context.Context, addr uint64, dst []byte) (int, error)

	// ZeroOut sets toZero bytes at addr to zero.
	ZeroOut(ctx context.Context, addr uint64, toZero int64) (int64, error)
}

// BytesIO implements IO using a byte slice mapped at Base.
type BytesIO struct {
	Base  uint64
	Bytes []byte
}

// CopyOut implements IO.CopyOut.
func (b *BytesIO) CopyOut(ctx context.Context, addr uint64, src []byte) (int, error) {
	off, n, rngErr := b.rangeCheck(addr, len(src))
	if n != 0 {
		copy(b.Bytes[off:off+n], src[:n])
	}
	return n, rngErr
}

// CopyIn implements IO.CopyIn.
func (b *BytesIO) CopyIn(ctx context.Context, addr uint64, dst []byte) (int, error) {
	off, n, rngErr := b.rangeCheck(addr, len(dst))
	if n != 0 {
		copy(dst[:n], b.Bytes[off:off+n])
	}
	return n, rngErr
}

// ZeroOut implements IO.ZeroOut.
func (b *BytesIO) ZeroOut(ctx context.Context, addr uint64, toZero int64) (int64, error) {
	if toZero < 0 || toZero > int64(maxInt) {
		return 0, linuxerr.EINVAL
	}
	off, n, rngErr := b.rangeCheck(addr, int(toZero))
	if n != 0 {
		clear(b.Bytes[off : off+n])
	}
	return int64(n), rngErr
}

const maxInt = int(^uint(0) >> 1)

// rangeCheck returns the offset of addr in b.Bytes and the length of the
// mapped prefix of [addr, addr+length), with EFAULT if the prefix is short.
func (b *BytesIO) rangeCheck(addr uint64, length int) (int, int, error) {
	if length == 0 {
		return 0, 0, nil
	}
	if addr < b.Base || addr-b.Base >= uint64(len(b.Bytes)) {
		return 0, 0, linuxerr.EFAULT
	}
	off := int(addr - b.Base)
	if avail := len(b.Bytes) - off; length > avail {
		return off, avail, linuxerr.EFAULT
	}
	return off, length, nil
}
