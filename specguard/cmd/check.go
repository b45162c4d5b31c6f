// Copyright 2021 The gVisor Authors.
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

package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/google/subcommands"
	"gvisor.dev/specguard/pkg/uaccess"
	"gvisor.dev/specguard/specguard/cmd/util"
	"gvisor.dev/specguard/specguard/flag"
)

// Check implements subcommands.Command for the "check" command.
type Check struct {
	limit string
	index bool
}

// Name implements subcommands.Command.Name.
func (*Check) Name() string {
	return "check"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Check) Synopsis() string {
	return "validate a user memory access against an address limit"
}

// Usage implements subcommands.Command.Usage.
func (*Check) Usage() string {
	return `check [flags] <addr> <size> - report whether [addr, addr+size) lies below the address limit, and the pointer an access would use.

check --index [flags] <index> - report the index an array access bounded by the limit would use.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (c *Check) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.limit, "limit", "user", "address limit: user, kernel, or a number.")
	f.BoolVar(&c.index, "index", false, "sanitize an array index against --limit instead of checking a range.")
}

// Execute implements subcommands.Command.Execute.
func (c *Check) Execute(_ context.Context, f *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	want := 2
	if c.index {
		want = 1
	}
	if f.NArg() != want {
		f.Usage()
		return subcommands.ExitUsageError
	}
	if err := c.run(os.Stdout, f.Args()); err != nil {
		return util.Errorf("check: %v", err)
	}
	return subcommands.ExitSuccess
}

func (c *Check) run(w io.Writer, args []string) error {
	limit, err := parseLimit(c.limit)
	if err != nil {
		return err
	}
	nums := make([]uint64, len(args))
	for i, arg := range args {
		if nums[i], err = strconv.ParseUint(arg, 0, 64); err != nil {
			return fmt.Errorf("invalid number %q: %w", arg, err)
		}
	}

	if c.index {
		if uint64(limit) >= 1<<63 {
			return fmt.Errorf("index limit %v must be below 2^63", limit)
		}
		fmt.Fprintf(w, "index %#x limit %v: %#x\n", nums[0], limit, uaccess.MaskIndex(nums[0], uint64(limit)))
		return nil
	}

	// Validate through a task context so that the check runs exactly as a
	// user access would.
	task := uaccess.NewTask(uaccess.NewContext(limit), nil)
	addr, size := nums[0], nums[1]
	masked, err := task.Check(uaccess.AccessRequest{Addr: addr, Size: size, Dir: uaccess.Read})
	if err != nil {
		fmt.Fprintf(w, "addr %#x size %#x limit %v: %v\n", addr, size, limit, err)
		return nil
	}
	fmt.Fprintf(w, "addr %#x size %#x limit %v: ok, pointer %#x\n", addr, size, limit, masked)
	return nil
}

func parseLimit(s string) (uaccess.AddressLimit, error) {
	switch s {
	case "user":
		return uaccess.UserDS, nil
	case "kernel":
		return uaccess.KernelDS, nil
	}
	v, err := strconv.ParseUint(s, 0, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid limit %q: %w", s, err)
	}
	return uaccess.AddressLimit(v), nil
}
