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
	"text/tabwriter"

	"github.com/google/subcommands"
	"gvisor.dev/specguard/pkg/cpucap"
	"gvisor.dev/specguard/specguard/cmd/util"
	"gvisor.dev/specguard/specguard/config"
	"gvisor.dev/specguard/specguard/flag"
)

// Detect implements subcommands.Command for the "detect" command.
type Detect struct {
	// table prints the capability table instead of matching it.
	table bool
}

// Name implements subcommands.Command.Name.
func (*Detect) Name() string {
	return "detect"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Detect) Synopsis() string {
	return "list the errata and mitigations that apply to each processor"
}

// Usage implements subcommands.Command.Usage.
func (*Detect) Usage() string {
	return `detect [flags] - match every processor against the capability table without running any hook.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (d *Detect) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&d.table, "table", false, "print the capability table and exit.")
}

// Execute implements subcommands.Command.Execute.
func (d *Detect) Execute(_ context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	if f.NArg() != 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	if d.table {
		if err := writeTable(os.Stdout); err != nil {
			return util.Errorf("detect: %v", err)
		}
		return subcommands.ExitSuccess
	}
	conf := args[0].(*config.Config)
	m, err := loadMachine(conf)
	if err != nil {
		return util.Errorf("detect: %v", err)
	}
	if err := writeDetected(os.Stdout, m); err != nil {
		return util.Errorf("detect: %v", err)
	}
	return subcommands.ExitSuccess
}

func writeTable(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "CAPABILITY\tHOOK\tMATCH\tDESCRIPTION\n")
	for _, d := range cpucap.Table() {
		fmt.Fprintf(tw, "%v\t%v\t%v\t%s\n", d.Cap, d.Hook, d.Match, d.Desc)
	}
	return tw.Flush()
}

func writeDetected(w io.Writer, m *machine) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "CPU\tMIDR\tFEATURES\tCAPABILITIES\n")
	table := cpucap.Table()
	for _, id := range m.ids {
		var caps cpucap.Set
		for _, d := range table {
			if d.Match.Matches(id) {
				caps = caps.Add(d.Cap)
			}
		}
		fmt.Fprintf(tw, "%d\t%v\t%v\t%v\n", id.Processor, id.MIDR, id.Features, caps)
	}
	return tw.Flush()
}
