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

// Package cmd holds implementations of the specguard commands.
package cmd

import (
	"fmt"
	"os"

	"gvisor.dev/specguard/pkg/cpucap"
	"gvisor.dev/specguard/pkg/cpuid"
	"gvisor.dev/specguard/pkg/log"
	"gvisor.dev/specguard/pkg/smccc"
	"gvisor.dev/specguard/pkg/trampoline"
	"gvisor.dev/specguard/specguard/config"
)

// machine is the set of processors and the firmware commands operate on.
type machine struct {
	name string
	ids  []cpuid.Identity

	// fw is nil if no firmware is reachable.
	fw      smccc.Firmware
	conduit smccc.Conduit
}

// loadMachine builds the machine selected by conf: a platform description if
// one is given, otherwise the processors listed in conf.CPUInfo with
// firmware implementing SMCCC_ARCH_WORKAROUND_1 behind conf.Conduit.
func loadMachine(conf *config.Config) (*machine, error) {
	if conf.Platform != "" {
		p, err := config.LoadPlatform(conf.Platform)
		if err != nil {
			return nil, err
		}
		m := &machine{
			name:    p.Name,
			ids:     p.Identities(),
			conduit: p.Firmware.Conduit,
		}
		if m.conduit != smccc.ConduitNone {
			m.fw = p.Firmware.NewFirmware()
		}
		return m, nil
	}

	var (
		ids []cpuid.Identity
		err error
	)
	if conf.CPUInfo == cpuid.CPUInfoPath {
		ids, err = cpuid.HostIdentities()
	} else {
		var data []byte
		data, err = os.ReadFile(conf.CPUInfo)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", conf.CPUInfo, err)
		}
		ids, err = cpuid.ParseCPUInfo(string(data))
	}
	if err != nil {
		return nil, err
	}
	m := &machine{
		name:    conf.CPUInfo,
		ids:     ids,
		conduit: conf.Conduit,
	}
	if m.conduit != smccc.ConduitNone {
		m.fw = smccc.WithWorkaround1(m.conduit)
	}
	return m, nil
}

// numCPUs returns the number of processor slots needed for the machine.
func (m *machine) numCPUs() int {
	n := 0
	for _, id := range m.ids {
		n = max(n, id.Processor+1)
	}
	return n
}

// registry probes the machine's firmware and returns a registry with every
// processor offline.
func (m *machine) registry() (*cpucap.Registry, *trampoline.Table) {
	neg := smccc.Probe(m.fw, m.conduit)
	vectors := trampoline.NewTable(m.numCPUs())
	log.Debugf("Machine %q: %d processors", m.name, len(m.ids))
	return cpucap.New(neg, vectors), vectors
}
