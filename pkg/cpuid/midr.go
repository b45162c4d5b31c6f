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

package cpuid

import (
	"fmt"
)

// MIDR is the value of the Main ID Register, MIDR_EL1.
//
//	31    24 23   20 19    16 15        4 3      0
//	+-------+-------+--------+-----------+--------+
//	| impl  |variant|  arch  |  partnum  |revision|
//	+-------+-------+--------+-----------+--------+
type MIDR uint32

// Field positions within MIDR_EL1. See arch/arm64/include/asm/cputype.h.
const (
	midrRevisionShift     = 0
	midrRevisionMask      = 0xf << midrRevisionShift
	midrPartNumShift      = 4
	midrPartNumMask       = 0xfff << midrPartNumShift
	midrArchitectureShift = 16
	midrArchitectureMask  = 0xf << midrArchitectureShift
	midrVariantShift      = 20
	midrVariantMask       = 0xf << midrVariantShift
	midrImplementorShift  = 24
	midrImplementorMask   = 0xff << midrImplementorShift

	// modelMask selects the fields that identify a processor model,
	// ignoring its variant and revision.
	modelMask = midrImplementorMask | midrPartNumMask | midrArchitectureMask

	// revisionMask selects the variant and revision fields.
	revisionMask = midrVariantMask | midrRevisionMask

	// architectureByID is the architecture field value of every ARMv8
	// processor: features are identified by the ID registers.
	architectureByID = 0xf
)

// Implementer codes.
const (
	ImplementerARM    = 0x41
	ImplementerCavium = 0x43
	ImplementerQcom   = 0x51
)

// Part numbers.
const (
	PartCortexA53    = 0xd03
	PartCortexA57    = 0xd07
	PartCortexA72    = 0xd08
	PartCortexA73    = 0xd09
	PartCortexA75    = 0xd0a
	PartKryo2xxGold  = 0x800
	PartThunderX     = 0x0a1
	PartThunderX81xx = 0x0a2
	PartQcomFalkorV1 = 0x800
	PartQcomFalkor   = 0xc00
)

// Processor models, as matched by the capability table.
var (
	CortexA53    = Model(ImplementerARM, PartCortexA53)
	CortexA57    = Model(ImplementerARM, PartCortexA57)
	CortexA72    = Model(ImplementerARM, PartCortexA72)
	CortexA73    = Model(ImplementerARM, PartCortexA73)
	CortexA75    = Model(ImplementerARM, PartCortexA75)
	Kryo2xxGold  = Model(ImplementerARM, PartKryo2xxGold)
	ThunderX     = Model(ImplementerCavium, PartThunderX)
	ThunderX81xx = Model(ImplementerCavium, PartThunderX81xx)
	FalkorV1     = Model(ImplementerQcom, PartQcomFalkorV1)
	Falkor       = Model(ImplementerQcom, PartQcomFalkor)
)

// Model returns the MIDR of variant 0 revision 0 of the given part.
func Model(implementer, part uint32) MIDR {
	return NewMIDR(implementer, 0, architectureByID, part, 0)
}

// NewMIDR assembles a MIDR from its fields. Out of range field values are
// truncated.
func NewMIDR(implementer, variant, architecture, part, revision uint32) MIDR {
	return MIDR((implementer<<midrImplementorShift)&midrImplementorMask |
		(variant<<midrVariantShift)&midrVariantMask |
		(architecture<<midrArchitectureShift)&midrArchitectureMask |
		(part<<midrPartNumShift)&midrPartNumMask |
		(revision<<midrRevisionShift)&midrRevisionMask)
}

// VarRev encodes a variant and revision in their MIDR bit positions, for
// use as a bound in MIDR range matches.
func VarRev(variant, revision uint32) uint32 {
	return uint32(NewMIDR(0, variant, 0, 0, revision))
}

// Implementer returns the implementer code.
func (m MIDR) Implementer() uint32 {
	return (uint32(m) & midrImplementorMask) >> midrImplementorShift
}

// Variant returns the major revision.
func (m MIDR) Variant() uint32 {
	return (uint32(m) & midrVariantMask) >> midrVariantShift
}

// Architecture returns the architecture field.
func (m MIDR) Architecture() uint32 {
	return (uint32(m) & midrArchitectureMask) >> midrArchitectureShift
}

// PartNum returns the primary part number.
func (m MIDR) PartNum() uint32 {
	return (uint32(m) & midrPartNumMask) >> midrPartNumShift
}

// Revision returns the minor revision.
func (m MIDR) Revision() uint32 {
	return (uint32(m) & midrRevisionMask) >> midrRevisionShift
}

// Model returns m with the variant and revision cleared.
func (m MIDR) Model() MIDR {
	return m & modelMask
}

// VarRev returns the variant and revision fields in their MIDR positions.
func (m MIDR) VarRev() uint32 {
	return uint32(m) & revisionMask
}

// IsModel returns true if m is any variant or revision of model.
func (m MIDR) IsModel(model MIDR) bool {
	return m.Model() == model.Model()
}

// InRange returns true if m is the given model with variant:revision within
// [minRV, maxRV], both encoded as by VarRev.
func (m MIDR) InRange(model MIDR, minRV, maxRV uint32) bool {
	if !m.IsModel(model) {
		return false
	}
	rv := m.VarRev()
	return rv >= minRV && rv <= maxRV
}

// String formats m the way the kernel prints midr_el1.
func (m MIDR) String() string {
	return fmt.Sprintf("0x%08x", uint32(m))
}
