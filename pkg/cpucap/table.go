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

package cpucap

import (
	"fmt"

	"gvisor.dev/specguard/pkg/cpuid"
)

// Matcher decides whether a descriptor applies to a processor.
type Matcher interface {
	// Matches returns true if the capability applies to id.
	Matches(id cpuid.Identity) bool

	fmt.Stringer
}

type midrRange struct {
	model        cpuid.MIDR
	minRV, maxRV uint32
}

// MIDRRange matches the given model with variant and revision in
// [minRV, maxRV], both encoded with cpuid.VarRev.
func MIDRRange(model cpuid.MIDR, minRV, maxRV uint32) Matcher {
	return midrRange{model: model, minRV: minRV, maxRV: maxRV}
}

// Matches implements Matcher.Matches.
func (m midrRange) Matches(id cpuid.Identity) bool {
	return id.MIDR.InRange(m.model, m.minRV, m.maxRV)
}

func (m midrRange) String() string {
	return fmt.Sprintf("midr %v r%dp%d-r%dp%d", m.model,
		cpuid.MIDR(m.minRV).Variant(), cpuid.MIDR(m.minRV).Revision(),
		cpuid.MIDR(m.maxRV).Variant(), cpuid.MIDR(m.maxRV).Revision())
}

type midrAllVersions struct {
	model cpuid.MIDR
}

// MIDRAllVersions matches every variant and revision of model.
func MIDRAllVersions(model cpuid.MIDR) Matcher {
	return midrAllVersions{model: model}
}

// Matches implements Matcher.Matches.
func (m midrAllVersions) Matches(id cpuid.Identity) bool {
	return id.MIDR.IsModel(m.model)
}

func (m midrAllVersions) String() string {
	return fmt.Sprintf("midr %v all versions", m.model)
}

type anyOf []Matcher

// AnyOf matches if any of ms matches.
func AnyOf(ms ...Matcher) Matcher {
	return anyOf(ms)
}

// Matches implements Matcher.Matches.
func (a anyOf) Matches(id cpuid.Identity) bool {
	for _, m := range a {
		if m.Matches(id) {
			return true
		}
	}
	return false
}

func (a anyOf) String() string {
	s := "any of"
	for i, m := range a {
		if i > 0 {
			s += ","
		}
		s += " " + m.String()
	}
	return s
}

type hasFeature cpuid.Feature

// HasFeature matches processors that report f.
func HasFeature(f cpuid.Feature) Matcher {
	return hasFeature(f)
}

// Matches implements Matcher.Matches.
func (h hasFeature) Matches(id cpuid.Identity) bool {
	return id.Features.HasFeature(cpuid.Feature(h))
}

func (h hasFeature) String() string {
	return fmt.Sprintf("feature %v", cpuid.Feature(h))
}

// Hook is the action that enables a capability on a processor.
type Hook int

// Hooks.
const (
	// HookNone enables the capability by detection alone.
	HookNone Hook = iota

	// HookSMCCCArchWorkaround1 negotiates SMCCC_ARCH_WORKAROUND_1 and
	// installs the matching firmware-call trampoline.
	HookSMCCCArchWorkaround1

	// HookQcomLinkStack installs the link stack sanitization trampoline.
	HookQcomLinkStack

	// HookSpeculationBarrier records that SB can replace DSB+ISB.
	HookSpeculationBarrier
)

// String implements fmt.Stringer.
func (h Hook) String() string {
	switch h {
	case HookNone:
		return "none"
	case HookSMCCCArchWorkaround1:
		return "smccc-arch-workaround-1"
	case HookQcomLinkStack:
		return "qcom-link-stack"
	case HookSpeculationBarrier:
		return "speculation-barrier"
	default:
		return fmt.Sprintf("Hook(%d)", int(h))
	}
}

// Descriptor is a row of the capability table.
type Descriptor struct {
	// Cap is the capability the row enables.
	Cap Cap

	// Desc is a human readable description.
	Desc string

	// Match selects the processors the row applies to.
	Match Matcher

	// Hook enables the capability on a matching processor.
	Hook Hook
}

// table is shared read-only by all processors.
var table = []Descriptor{
	{
		// Cortex-A53 r0p[012]
		Cap:   WorkaroundCleanCache,
		Desc:  "ARM errata 826319, 827319, 824069",
		Match: MIDRRange(cpuid.CortexA53, 0, cpuid.VarRev(0, 2)),
	},
	{
		// Cortex-A53 r0p[01]
		Cap:   WorkaroundCleanCache,
		Desc:  "ARM erratum 819472",
		Match: MIDRRange(cpuid.CortexA53, 0, cpuid.VarRev(0, 1)),
	},
	{
		// Cortex-A57 r0p0 - r1p2
		Cap:   WorkaroundDeviceLoadAcquire,
		Desc:  "ARM erratum 832075",
		Match: MIDRRange(cpuid.CortexA57, 0, cpuid.VarRev(1, 2)),
	},
	{
		// Cortex-A57 r0p0 - r1p2
		Cap:   Workaround834220,
		Desc:  "ARM erratum 834220",
		Match: MIDRRange(cpuid.CortexA57, 0, cpuid.VarRev(1, 2)),
	},
	{
		// Cortex-A53 r0p[01234]
		Cap:   Workaround845719,
		Desc:  "ARM erratum 845719",
		Match: MIDRRange(cpuid.CortexA53, 0, cpuid.VarRev(0, 4)),
	},
	{
		Cap:  WorkaroundCavium27456,
		Desc: "Cavium erratum 27456",
		Match: AnyOf(
			// Cavium ThunderX, T88 pass 1.x - 2.1
			MIDRRange(cpuid.ThunderX, 0, cpuid.VarRev(1, 1)),
			// Cavium ThunderX, T81 pass 1.0
			MIDRRange(cpuid.ThunderX81xx, 0, 0),
		),
	},
	{
		Cap:   WorkaroundQcomFalkorE1003,
		Desc:  "Qualcomm Technologies Falkor erratum 1003",
		Match: MIDRRange(cpuid.FalkorV1, 0, 0),
	},
	{
		Cap:   Workaround858921,
		Desc:  "ARM erratum 858921",
		Match: MIDRAllVersions(cpuid.CortexA73),
	},
	{
		Cap:  HardenBranchPredictor,
		Desc: "Branch predictor hardening",
		Match: AnyOf(
			MIDRAllVersions(cpuid.CortexA57),
			MIDRAllVersions(cpuid.CortexA72),
			MIDRAllVersions(cpuid.CortexA73),
			MIDRAllVersions(cpuid.CortexA75),
			MIDRAllVersions(cpuid.Kryo2xxGold),
		),
		Hook: HookSMCCCArchWorkaround1,
	},
	{
		Cap:  HardenBranchPredictor,
		Desc: "Branch predictor hardening (link stack)",
		Match: AnyOf(
			MIDRAllVersions(cpuid.FalkorV1),
			MIDRAllVersions(cpuid.Falkor),
		),
		Hook: HookQcomLinkStack,
	},
	{
		Cap:  HardenBPPostGuestExit,
		Desc: "Branch predictor hardening on guest exit",
		Match: AnyOf(
			MIDRAllVersions(cpuid.FalkorV1),
			MIDRAllVersions(cpuid.Falkor),
		),
	},
	{
		Cap:   SpeculationBarrier,
		Desc:  "Speculation barrier instruction",
		Match: HasFeature(cpuid.ARM64FeatureSB),
		Hook:  HookSpeculationBarrier,
	},
}

// Table returns the capability table.
func Table() []Descriptor {
	return append([]Descriptor(nil), table...)
}
