// Copyright 2020 The gVisor Authors.
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

// Package mock contains canned arm64 machines for tests.
package mock

import (
	"fmt"
	"strings"
)

// CPU describes a cluster of identical processors.
type CPU struct {
	Name        string
	Implementer int
	Variant     int
	Part        int
	Revision    int
	Features    string
	Cores       int
}

// Machine is a set of clusters. Processors are numbered in cluster order.
type Machine struct {
	Name     string
	Clusters []CPU
}

const baseFeatures = "fp asimd evtstrm aes pmull sha1 sha2 crc32 cpuid"

// CortexA53 is a cluster of four Cortex-A53 r0p4 processors.
var CortexA53 = CPU{
	Name:        "Cortex-A53",
	Implementer: 0x41,
	Variant:     0x0,
	Part:        0xd03,
	Revision:    4,
	Features:    baseFeatures,
	Cores:       4,
}

// CortexA53r0p2 is a cluster of two early Cortex-A53 processors.
var CortexA53r0p2 = CPU{
	Name:        "Cortex-A53",
	Implementer: 0x41,
	Variant:     0x0,
	Part:        0xd03,
	Revision:    2,
	Features:    baseFeatures,
	Cores:       2,
}

// CortexA57 is a cluster of two Cortex-A57 r1p3 processors.
var CortexA57 = CPU{
	Name:        "Cortex-A57",
	Implementer: 0x41,
	Variant:     0x1,
	Part:        0xd07,
	Revision:    3,
	Features:    baseFeatures,
	Cores:       2,
}

// CortexA72 is a cluster of four Cortex-A72 r0p3 processors.
var CortexA72 = CPU{
	Name:        "Cortex-A72",
	Implementer: 0x41,
	Variant:     0x0,
	Part:        0xd08,
	Revision:    3,
	Features:    baseFeatures,
	Cores:       4,
}

// CortexA75 is a cluster of four Cortex-A75 processors with SB support.
var CortexA75 = CPU{
	Name:        "Cortex-A75",
	Implementer: 0x41,
	Variant:     0x3,
	Part:        0xd0a,
	Revision:    1,
	Features:    baseFeatures + " atomics fphp asimdhp asimdrdm lrcpc dcpop asimddp sb",
	Cores:       4,
}

// Kryo2xxGold is a cluster of four Kryo 2xx Gold processors.
var Kryo2xxGold = CPU{
	Name:        "Kryo-2xx-Gold",
	Implementer: 0x41,
	Variant:     0xa,
	Part:        0x800,
	Revision:    2,
	Features:    baseFeatures,
	Cores:       4,
}

// Falkor is a cluster of eight Qualcomm Falkor processors.
var Falkor = CPU{
	Name:        "Falkor",
	Implementer: 0x51,
	Variant:     0x0,
	Part:        0xc00,
	Revision:    0,
	Features:    baseFeatures + " atomics",
	Cores:       8,
}

// FalkorV1 is a cluster of two first revision Qualcomm Falkor processors.
var FalkorV1 = CPU{
	Name:        "Falkor-v1",
	Implementer: 0x51,
	Variant:     0x0,
	Part:        0x800,
	Revision:    0,
	Features:    baseFeatures,
	Cores:       2,
}

// ThunderX is a cluster of two Cavium ThunderX pass 1.1 processors.
var ThunderX = CPU{
	Name:        "ThunderX",
	Implementer: 0x43,
	Variant:     0x1,
	Part:        0x0a1,
	Revision:    1,
	Features:    baseFeatures,
	Cores:       2,
}

// BigLittle is a heterogeneous A53 + A72 machine.
var BigLittle = Machine{
	Name:     "big.LITTLE",
	Clusters: []CPU{CortexA53, CortexA72},
}

// Homogeneous returns a machine made of a single cluster.
func Homogeneous(c CPU) Machine {
	return Machine{Name: c.Name, Clusters: []CPU{c}}
}

// NumCPUs returns the number of processors in the machine.
func (m Machine) NumCPUs() int {
	n := 0
	for _, c := range m.Clusters {
		n += c.Cores
	}
	return n
}

// MakeCPUString makes a string formatted like arm64 /proc/cpuinfo.
func (m Machine) MakeCPUString() string {
	template := `processor	: %d
BogoMIPS	: 100.00
Features	: %s
CPU implementer	: 0x%02x
CPU architecture: 8
CPU variant	: 0x%x
CPU part	: 0x%03x
CPU revision	: %d

`
	var sb strings.Builder
	processor := 0
	for _, c := range m.Clusters {
		for i := 0; i < c.Cores; i++ {
			fmt.Fprintf(&sb, template,
				processor,     /*processor*/
				c.Features,    /*Features*/
				c.Implementer, /*CPU implementer*/
				c.Variant,     /*CPU variant*/
				c.Part,        /*CPU part*/
				c.Revision,    /*CPU revision*/
			)
			processor++
		}
	}
	return sb.String()
}

// MakeSysPossibleString makes a string representing the contents of
// /sys/devices/system/cpu/possible.
func (m Machine) MakeSysPossibleString() string {
	max := m.NumCPUs()
	if max == 1 {
		return "0"
	}
	return fmt.Sprintf("0-%d", max-1)
}
