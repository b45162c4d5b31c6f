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
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/google/subcommands"
	"gopkg.in/yaml.v3"
	"gvisor.dev/specguard/pkg/cpucap"
	"gvisor.dev/specguard/pkg/trampoline"
	"gvisor.dev/specguard/specguard/cmd/util"
	"gvisor.dev/specguard/specguard/config"
	"gvisor.dev/specguard/specguard/flag"
)

// Report is the outcome of bringing up a machine.
type Report struct {
	Machine               string         `json:"machine" yaml:"machine"`
	Conduit               string         `json:"conduit" yaml:"conduit"`
	PSCIVersion           string         `json:"psci_version" yaml:"psci_version"`
	SMCCCVersion          string         `json:"smccc_version" yaml:"smccc_version"`
	HardenBranchPredictor bool           `json:"harden_branch_predictor" yaml:"harden_branch_predictor"`
	CPUs                  []cpucap.State `json:"cpus" yaml:"cpus"`
}

// outputMap maps output formats to their writers.
var outputMap = map[string]func(io.Writer, *Report) error{
	"text": outputText,
	"json": outputJSON,
	"yaml": outputYAML,
}

// BringUp implements subcommands.Command for the "bringup" command.
type BringUp struct {
	format string

	// crossings is the number of crossings to dispatch on each processor
	// after bring-up.
	crossings int

	// resume re-runs every processor's hooks after bring-up.
	resume bool
}

// Name implements subcommands.Command.Name.
func (*BringUp) Name() string {
	return "bringup"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*BringUp) Synopsis() string {
	return "bring up every processor and print its mitigation state"
}

// Usage implements subcommands.Command.Usage.
func (*BringUp) Usage() string {
	return `bringup [flags] - run every matching capability hook on every processor, negotiating workarounds with firmware and installing trampolines.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (b *BringUp) SetFlags(f *flag.FlagSet) {
	f.StringVar(&b.format, "format", "text", "output format: text, json or yaml.")
	f.IntVar(&b.crossings, "crossings", 0, "number of vector crossings to dispatch on each processor after bring-up.")
	f.BoolVar(&b.resume, "resume", false, "re-run every processor's hooks after bring-up, as on resume from suspend.")
}

// Execute implements subcommands.Command.Execute.
func (b *BringUp) Execute(ctx context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	if f.NArg() != 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	out, ok := outputMap[b.format]
	if !ok {
		return util.Errorf("unsupported output format %q", b.format)
	}
	conf := args[0].(*config.Config)
	m, err := loadMachine(conf)
	if err != nil {
		return util.Errorf("bringup: %v", err)
	}
	r, err := b.run(ctx, m)
	if err != nil {
		return util.Errorf("bringup: %v", err)
	}
	if err := out(os.Stdout, r); err != nil {
		return util.Errorf("writing output: %v", err)
	}
	return subcommands.ExitSuccess
}

func (b *BringUp) run(ctx context.Context, m *machine) (*Report, error) {
	reg, _ := m.registry()
	if err := reg.BringUp(ctx, m.ids); err != nil {
		return nil, err
	}
	if b.resume {
		for _, id := range m.ids {
			if err := reg.Resume(id.Processor); err != nil {
				return nil, err
			}
		}
	}
	for _, id := range m.ids {
		for i := 0; i < b.crossings; i++ {
			if k := reg.Cross(id.Processor); k == trampoline.None {
				break
			}
		}
	}

	neg := reg.Negotiator()
	r := &Report{
		Machine:               m.name,
		Conduit:               neg.Conduit().String(),
		PSCIVersion:           neg.PSCIVersion().String(),
		SMCCCVersion:          neg.SMCCCVersion().String(),
		HardenBranchPredictor: reg.HardenBranchPredictor(),
	}
	for _, id := range m.ids {
		r.CPUs = append(r.CPUs, reg.State(id.Processor))
	}
	return r, nil
}

func outputText(w io.Writer, r *Report) error {
	fmt.Fprintf(w, "Machine: %s\n", r.Machine)
	fmt.Fprintf(w, "Firmware: conduit %s, PSCI %s, SMCCC %s\n", r.Conduit, r.PSCIVersion, r.SMCCCVersion)
	fmt.Fprintf(w, "Branch predictor hardening: %t\n\n", r.HardenBranchPredictor)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "CPU\tTRAMPOLINE\tCONDUIT\tSB\tENABLED\tUNAVAILABLE\n")
	for _, st := range r.CPUs {
		fmt.Fprintf(tw, "%d\t%v\t%v\t%t\t%v\t%v\n", st.CPU, st.Trampoline, st.Conduit, st.Barrier, st.Enabled, st.Unavailable)
	}
	return tw.Flush()
}

func outputJSON(w io.Writer, r *Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

func outputYAML(w io.Writer, r *Report) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return err
	}
	return enc.Close()
}
