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

	"github.com/google/subcommands"
	"gvisor.dev/specguard/pkg/trampoline"
	"gvisor.dev/specguard/specguard/cmd/util"
	"gvisor.dev/specguard/specguard/config"
	"gvisor.dev/specguard/specguard/flag"
)

// Vectors implements subcommands.Command for the "vectors" command.
type Vectors struct {
	// cpu selects a processor whose installed trampoline is dumped after
	// bring-up. If negative, the templates of the named kinds are dumped.
	cpu int
}

// Name implements subcommands.Command.Name.
func (*Vectors) Name() string {
	return "vectors"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Vectors) Synopsis() string {
	return "disassemble trampoline vector entries"
}

// Usage implements subcommands.Command.Usage.
func (*Vectors) Usage() string {
	return `vectors [kind...] - print the first vector entry of each trampoline kind, or of all kinds.

vectors --cpu=N - bring up the machine and print the trampoline installed on processor N.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (v *Vectors) SetFlags(f *flag.FlagSet) {
	f.IntVar(&v.cpu, "cpu", -1, "processor whose installed trampoline is printed.")
}

// Execute implements subcommands.Command.Execute.
func (v *Vectors) Execute(ctx context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	if v.cpu >= 0 {
		if f.NArg() != 0 {
			f.Usage()
			return subcommands.ExitUsageError
		}
		m, err := loadMachine(args[0].(*config.Config))
		if err != nil {
			return util.Errorf("vectors: %v", err)
		}
		if err := dumpInstalled(ctx, os.Stdout, m, v.cpu); err != nil {
			return util.Errorf("vectors: %v", err)
		}
		return subcommands.ExitSuccess
	}

	kinds := trampoline.Kinds()
	if f.NArg() > 0 {
		kinds = nil
		for _, name := range f.Args() {
			var k trampoline.Kind
			if err := k.UnmarshalText([]byte(name)); err != nil {
				return util.Errorf("vectors: %v", err)
			}
			if k == trampoline.None {
				return util.Errorf("vectors: %v has no vector image", k)
			}
			kinds = append(kinds, k)
		}
	}
	dumpKinds(os.Stdout, kinds)
	return subcommands.ExitSuccess
}

func dumpKinds(w io.Writer, kinds []trampoline.Kind) {
	for _, k := range kinds {
		img := trampoline.Image(k)
		fmt.Fprintf(w, "%v:\n%s\n", k, img.Dump(k))
	}
}

func dumpInstalled(ctx context.Context, w io.Writer, m *machine, cpu int) error {
	reg, vectors := m.registry()
	if err := reg.BringUp(ctx, m.ids); err != nil {
		return err
	}
	if cpu >= vectors.NumCPUs() {
		return fmt.Errorf("no processor %d", cpu)
	}
	k, img := vectors.Load(cpu)
	if k == trampoline.None {
		fmt.Fprintf(w, "cpu%d: %v\n", cpu, k)
		return nil
	}
	fmt.Fprintf(w, "cpu%d: %v\n%s", cpu, k, img.Dump(k))
	return nil
}
