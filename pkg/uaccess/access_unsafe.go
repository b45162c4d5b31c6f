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
	"encoding/binary"
	"fmt"
	"time"
	"unsafe"

	"golang.org/x/exp/constraints"
	"gvisor.dev/specguard/pkg/atomicbitops"
	"gvisor.dev/specguard/pkg/errors/linuxerr"
	"gvisor.dev/specguard/pkg/log"
)

// Direction is the direction of a user access.
type Direction int

// Directions.
const (
	Read Direction = iota
	Write
)

// String implements fmt.Stringer.
func (d Direction) String() string {
	if d == Write {
		return "write"
	}
	return "read"
}

// AccessRequest describes a single user access.
type AccessRequest struct {
	Addr uint64
	Size uint64
	Dir  Direction
}

// faultLogInterval bounds how often a task logs access faults.
const faultLogInterval = time.Second

// Task is a task context performing user accesses.
type Task struct {
	*Context

	// IO is the task's address space.
	IO IO

	faults atomicbitops.Uint64
	log    log.Logger
}

// NewTask returns a Task accessing io under the limits of c.
func NewTask(c *Context, io IO) *Task {
	return &Task{
		Context: c,
		IO:      io,
		log:     log.BasicRateLimitedLogger(faultLogInterval),
	}
}

// Faults returns the number of accesses rejected by the bounds check.
func (t *Task) Faults() uint64 {
	return t.faults.Load()
}

// Check validates req against the current address limit. It returns the
// masked address on success and EFAULT otherwise. Check does not allocate;
// rejected accesses are only logged, rate limited, at debug level.
func (t *Task) Check(req AccessRequest) (uint64, error) {
	limit := t.Limit()
	if !RangeOK(req.Addr, req.Size, limit) {
		t.faults.Add(1)
		if t.log.IsLogging(log.Debug) {
			t.log.Debugf("uaccess: %v of %d bytes at %#x beyond limit %v", req.Dir, req.Size, req.Addr, limit)
		}
		return 0, linuxerr.EFAULT
	}
	return MaskPtr(req.Addr, req.Size, limit), nil
}

// GetUser reads a scalar from user memory. On failure it returns zero and
// EFAULT.
func GetUser[T constraints.Unsigned](ctx context.Context, t *Task, addr uint64) (T, error) {
	size := uint64(unsafe.Sizeof(T(0)))
	ptr, err := t.Check(AccessRequest{Addr: addr, Size: size, Dir: Read})
	if err != nil {
		return 0, err
	}
	// buf escapes through IO; declaring it here keeps the fault path
	// allocation-free.
	var buf [8]byte
	if _, err := t.IO.CopyIn(ctx, ptr, buf[:size]); err != nil {
		return 0, err
	}
	return T(binary.LittleEndian.Uint64(buf[:])), nil
}

// PutUser writes a scalar to user memory. On failure it returns EFAULT;
// memory is left untouched if the bounds check fails.
func PutUser[T constraints.Unsigned](ctx context.Context, t *Task, addr uint64, v T) error {
	size := uint64(unsafe.Sizeof(v))
	ptr, err := t.Check(AccessRequest{Addr: addr, Size: size, Dir: Write})
	if err != nil {
		return err
	}
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(v))
	_, err = t.IO.CopyOut(ctx, ptr, buf[:size])
	return err
}

// CopyFromUser copies len(dst) bytes from addr. If the copy is short, the
// rest of dst is zeroed; if the bounds check fails none of dst is read
// from user memory.
func CopyFromUser(ctx context.Context, t *Task, dst []byte, addr uint64) (int, error) {
	ptr, err := t.Check(AccessRequest{Addr: addr, Size: uint64(len(dst)), Dir: Read})
	if err != nil {
		clear(dst)
		return 0, err
	}
	n, err := t.IO.CopyIn(ctx, ptr, dst)
	if err != nil {
		clear(dst[n:])
	}
	return n, err
}

// CopyToUser copies src to addr.
func CopyToUser(ctx context.Context, t *Task, addr uint64, src []byte) (int, error) {
	ptr, err := t.Check(AccessRequest{Addr: addr, Size: uint64(len(src)), Dir: Write})
	if err != nil {
		return 0, err
	}
	return t.IO.CopyOut(ctx, ptr, src)
}

// ClearUser zeroes n bytes at addr.
func ClearUser(ctx context.Context, t *Task, addr uint64, n int64) (int64, error) {
	if n < 0 {
		return 0, fmt.Errorf("clear_user of %d bytes: %w", n, linuxerr.EINVAL)
	}
	ptr, err := t.Check(AccessRequest{Addr: addr, Size: uint64(n), Dir: Write})
	if err != nil {
		return 0, err
	}
	return t.IO.ZeroOut(ctx, ptr, n)
}
