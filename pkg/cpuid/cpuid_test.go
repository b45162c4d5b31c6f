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
	"runtime"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"gvisor.dev/specguard/pkg/cpuid/mock"
)

var compareFeatureSets = cmp.Comparer(func(a, b FeatureSet) bool { return a == b })

func TestMIDRFields(t *testing.T) {
	// Cortex-A72 r0p3, as printed by the kernel.
	m := MIDR(0x410fd083)
	for _, tc := range []struct {
		name string
		got  uint32
		want uint32
	}{
		{"implementer", m.Implementer(), ImplementerARM},
		{"variant", m.Variant(), 0},
		{"architecture", m.Architecture(), 0xf},
		{"part", m.PartNum(), PartCortexA72},
		{"revision", m.Revision(), 3},
	} {
		if tc.got != tc.want {
			t.Errorf("%s = %#x, want %#x", tc.name, tc.got, tc.want)
		}
	}
	if got := NewMIDR(ImplementerARM, 0, 0xf, PartCortexA72, 3); got != m {
		t.Errorf("NewMIDR = %v, want %v", got, m)
	}
	if !m.IsModel(CortexA72) {
		t.Errorf("%v is not a Cortex-A72", m)
	}
	if m.IsModel(CortexA57) {
		t.Errorf("%v is a Cortex-A57", m)
	}
	if got, want := m.String(), "0x410fd083"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestMIDRInRange(t *testing.T) {
	r1p2 := VarRev(1, 2)
	for _, tc := range []struct {
		name string
		midr MIDR
		want bool
	}{
		{"r0p0", NewMIDR(ImplementerARM, 0, 0xf, PartCortexA57, 0), true},
		{"r1p2", NewMIDR(ImplementerARM, 1, 0xf, PartCortexA57, 2), true},
		{"r1p3", NewMIDR(ImplementerARM, 1, 0xf, PartCortexA57, 3), false},
		{"r2p0", NewMIDR(ImplementerARM, 2, 0xf, PartCortexA57, 0), false},
		{"other model", NewMIDR(ImplementerARM, 0, 0xf, PartCortexA72, 0), false},
		{"other implementer", NewMIDR(ImplementerQcom, 0, 0xf, PartCortexA57, 0), false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.midr.InRange(CortexA57, 0, r1p2); got != tc.want {
				t.Errorf("%v.InRange(A57, r0p0, r1p2) = %t, want %t", tc.midr, got, tc.want)
			}
		})
	}
}

func TestKryoAndFalkorDiffer(t *testing.T) {
	// Both use part number 0x800 but different implementers.
	if Kryo2xxGold.IsModel(FalkorV1) {
		t.Errorf("Kryo2xxGold %v matches FalkorV1 %v", Kryo2xxGold, FalkorV1)
	}
}

func TestParseCPUInfo(t *testing.T) {
	ids, err := ParseCPUInfo(mock.BigLittle.MakeCPUString())
	if err != nil {
		t.Fatalf("ParseCPUInfo failed: %v", err)
	}
	if len(ids) != mock.BigLittle.NumCPUs() {
		t.Fatalf("got %d identities, want %d", len(ids), mock.BigLittle.NumCPUs())
	}

	base := ParseFeatures("fp asimd evtstrm aes pmull sha1 sha2 crc32 cpuid")
	a53 := NewMIDR(ImplementerARM, 0, 0xf, PartCortexA53, 4)
	a72 := NewMIDR(ImplementerARM, 0, 0xf, PartCortexA72, 3)
	want := []Identity{
		{Processor: 0, MIDR: a53, Features: base},
		{Processor: 1, MIDR: a53, Features: base},
		{Processor: 2, MIDR: a53, Features: base},
		{Processor: 3, MIDR: a53, Features: base},
		{Processor: 4, MIDR: a72, Features: base},
		{Processor: 5, MIDR: a72, Features: base},
		{Processor: 6, MIDR: a72, Features: base},
		{Processor: 7, MIDR: a72, Features: base},
	}
	if diff := cmp.Diff(want, ids, compareFeatureSets); diff != "" {
		t.Errorf("ParseCPUInfo mismatch (-want +got):\n%s", diff)
	}
}

func TestParseCPUInfoSorted(t *testing.T) {
	data := mock.Homogeneous(mock.CortexA57).MakeCPUString()
	blocks := strings.SplitAfter(data, "\n\n")
	reversed := blocks[1] + blocks[0]
	ids, err := ParseCPUInfo(reversed)
	if err != nil {
		t.Fatalf("ParseCPUInfo failed: %v", err)
	}
	if ids[0].Processor != 0 || ids[1].Processor != 1 {
		t.Errorf("identities not sorted: %v", ids)
	}
}

func TestParseCPUInfoErrors(t *testing.T) {
	good := mock.Homogeneous(mock.CortexA72).MakeCPUString()
	for _, tc := range []struct {
		name string
		data string
	}{
		{name: "empty", data: ""},
		{name: "x86", data: "processor\t: 0\nvendor_id\t: GenuineIntel\ncpu family\t: 6\n"},
		{name: "missing part", data: strings.Replace(good, "CPU part", "CPU prt", 1)},
		{name: "bad revision", data: strings.Replace(good, "CPU revision\t: 3", "CPU revision\t: three", 1)},
		{name: "duplicate processor", data: strings.Replace(good, "processor\t: 1", "processor\t: 0", 1)},
		{name: "huge processor", data: strings.Replace(good, "processor\t: 1", "processor\t: 4294967295", 1)},
		{name: "processor past maximum", data: strings.Replace(good, "processor\t: 1", "processor\t: 4096", 1)},
		{name: "wide part", data: strings.Replace(good, "CPU part\t: 0xd08", "CPU part\t: 0x1d08", 1)},
		{name: "wide variant", data: strings.Replace(good, "CPU variant\t: 0x0", "CPU variant\t: 0x10", 1)},
		{name: "wide implementer", data: strings.Replace(good, "CPU implementer\t: 0x41", "CPU implementer\t: 0x141", 1)},
		{name: "wide revision", data: strings.Replace(good, "CPU revision\t: 3", "CPU revision\t: 16", 1)},
	} {
		t.Run(tc.name, func(t *testing.T) {
			if ids, err := ParseCPUInfo(tc.data); err == nil {
				t.Errorf("ParseCPUInfo succeeded with %v, want error", ids)
			}
		})
	}
}

func TestFeatureFromString(t *testing.T) {
	f, ok := FeatureFromString("asimd")
	if f != ARM64FeatureASIMD || !ok {
		t.Errorf("got %v want asimd", f)
	}

	f, ok = FeatureFromString("bad")
	if ok {
		t.Errorf("got %v want nothing", f)
	}
}

func TestFeatureSet(t *testing.T) {
	fs := ParseFeatures("fp sb unknownfeature asimd")
	if !fs.HasFeature(ARM64FeatureSB) {
		t.Errorf("%v should contain %v", fs, ARM64FeatureSB)
	}
	if fs.HasFeature(ARM64FeatureSM3) {
		t.Errorf("%v should not contain %v", fs, ARM64FeatureSM3)
	}
	if got, want := fs.String(), "fp asimd sb"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
	if got, want := fs.HWCap(), uint64(1<<0|1<<1|1<<29); got != want {
		t.Errorf("HWCap() = %#x, want %#x", got, want)
	}
	if got := FeatureSetFromHWCap(1 << 40); got.HWCap() != 0 {
		t.Errorf("FeatureSetFromHWCap kept unknown bits: %#x", got.HWCap())
	}
	if NewFeatureSet(ARM64FeatureFP, Feature(-1), Feature(99)) != NewFeatureSet(ARM64FeatureFP) {
		t.Errorf("NewFeatureSet accepted out of range features")
	}
}

func TestHostFeatureSet(t *testing.T) {
	fs := HostFeatureSet()
	if runtime.GOARCH != "arm64" {
		if fs.HWCap() != 0 {
			t.Errorf("HostFeatureSet() = %v on %s, want empty", fs, runtime.GOARCH)
		}
		return
	}
	if !fs.HasFeature(ARM64FeatureFP) {
		t.Errorf("HostFeatureSet() = %v, missing fp", fs)
	}
}
