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

package smccc

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"gvisor.dev/specguard/pkg/sync"
	"gvisor.dev/specguard/pkg/trampoline"
)

func TestProbeVersions(t *testing.T) {
	for _, tc := range []struct {
		name      string
		fw        *Emulated
		conduit   Conduit
		wantPSCI  Version
		wantSMCCC Version
	}{
		{
			name:      "psci 0.2",
			fw:        &Emulated{Conduit: ConduitSMC, PSCIVersion: uint64(Version0_2), SMCCCVersion: uint64(Version1_1)},
			conduit:   ConduitSMC,
			wantPSCI:  Version0_2,
			wantSMCCC: Version1_0,
		},
		{
			name:      "smccc version not implemented",
			fw:        &Emulated{Conduit: ConduitSMC, PSCIVersion: uint64(Version1_0)},
			conduit:   ConduitSMC,
			wantPSCI:  Version1_0,
			wantSMCCC: Version1_0,
		},
		{
			name:      "smccc 1.1",
			fw:        WithWorkaround1(ConduitHVC),
			conduit:   ConduitHVC,
			wantPSCI:  MakeVersion(1, 1),
			wantSMCCC: Version1_1,
		},
		{
			name:      "smccc 1.2",
			fw:        &Emulated{Conduit: ConduitSMC, PSCIVersion: uint64(Version1_0), SMCCCVersion: uint64(MakeVersion(1, 2))},
			conduit:   ConduitSMC,
			wantPSCI:  Version1_0,
			wantSMCCC: MakeVersion(1, 2),
		},
		{
			name:      "smccc version with high bits",
			fw:        &Emulated{Conduit: ConduitSMC, PSCIVersion: uint64(Version1_0), SMCCCVersion: 1<<32 | uint64(Version1_1)},
			conduit:   ConduitSMC,
			wantPSCI:  Version1_0,
			wantSMCCC: Version1_0,
		},
		{
			name:      "smccc version error code",
			fw:        &Emulated{Conduit: ConduitSMC, PSCIVersion: uint64(Version1_0), SMCCCVersion: Code(RetNotRequired)},
			conduit:   ConduitSMC,
			wantPSCI:  Version1_0,
			wantSMCCC: Version1_0,
		},
		{
			name:      "psci version error code",
			fw:        &Emulated{Conduit: ConduitSMC, PSCIVersion: Code(RetNotSupported), SMCCCVersion: uint64(Version1_1)},
			conduit:   ConduitSMC,
			wantSMCCC: Version1_0,
		},
		{
			name:      "wrong conduit",
			fw:        WithWorkaround1(ConduitHVC),
			conduit:   ConduitSMC,
			wantSMCCC: Version1_0,
		},
		{
			name:      "no conduit",
			fw:        WithWorkaround1(ConduitHVC),
			conduit:   ConduitNone,
			wantSMCCC: Version1_0,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			n := Probe(tc.fw, tc.conduit)
			if got := n.PSCIVersion(); got != tc.wantPSCI {
				t.Errorf("PSCIVersion() = %v, want %v", got, tc.wantPSCI)
			}
			if got := n.SMCCCVersion(); got != tc.wantSMCCC {
				t.Errorf("SMCCCVersion() = %v, want %v", got, tc.wantSMCCC)
			}
		})
	}
}

func TestProbeSkipsSMCCCOnOldPSCI(t *testing.T) {
	fw := &Emulated{Conduit: ConduitHVC, PSCIVersion: uint64(Version0_2), SMCCCVersion: uint64(Version1_1)}
	Probe(fw, ConduitHVC)
	if got := fw.Calls(PSCIFeatures) + fw.Calls(SMCCCVersion); got != 0 {
		t.Errorf("PSCI 0.2 firmware got %d SMCCC discovery calls, want 0", got)
	}
}

func TestNegotiate(t *testing.T) {
	for _, tc := range []struct {
		name    string
		fw      *Emulated
		conduit Conduit
		w       Workaround
		want    Selection
		wantOK  bool
	}{
		{
			name:    "hvc supported",
			fw:      WithWorkaround1(ConduitHVC),
			conduit: ConduitHVC,
			w:       WorkaroundArch1,
			want:    Selection{Kind: trampoline.HVCWorkaround1, Conduit: ConduitHVC},
			wantOK:  true,
		},
		{
			name:    "smc supported",
			fw:      WithWorkaround1(ConduitSMC),
			conduit: ConduitSMC,
			w:       WorkaroundArch1,
			want:    Selection{Kind: trampoline.SMCWorkaround1, Conduit: ConduitSMC},
			wantOK:  true,
		},
		{
			name:    "not supported",
			fw:      NewEmulated(ConduitSMC, map[uint32]uint64{SMCCCArchWorkaround1: Code(RetNotSupported)}),
			conduit: ConduitSMC,
			w:       WorkaroundArch1,
		},
		{
			name:    "not required",
			fw:      NewEmulated(ConduitSMC, map[uint32]uint64{SMCCCArchWorkaround1: Code(RetNotRequired)}),
			conduit: ConduitSMC,
			w:       WorkaroundArch1,
		},
		{
			name:    "malformed positive answer",
			fw:      NewEmulated(ConduitSMC, map[uint32]uint64{SMCCCArchWorkaround1: 1}),
			conduit: ConduitSMC,
			w:       WorkaroundArch1,
		},
		{
			name:    "function unknown",
			fw:      NewEmulated(ConduitSMC, nil),
			conduit: ConduitSMC,
			w:       WorkaroundArch1,
		},
		{
			name:    "no conduit",
			fw:      WithWorkaround1(ConduitSMC),
			conduit: ConduitNone,
			w:       WorkaroundArch1,
		},
		{
			name:    "link stack needs no firmware",
			fw:      nil,
			conduit: ConduitNone,
			w:       WorkaroundLinkStack,
			want:    Selection{Kind: trampoline.LinkStackSanitize, Conduit: ConduitNone},
			wantOK:  true,
		},
		{
			name:    "unknown workaround",
			fw:      WithWorkaround1(ConduitSMC),
			conduit: ConduitSMC,
			w:       Workaround(7),
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			var fw Firmware
			if tc.fw != nil {
				fw = tc.fw
			}
			got, ok := Probe(fw, tc.conduit).Negotiate(tc.w)
			if ok != tc.wantOK {
				t.Fatalf("Negotiate(%v) ok = %t, want %t", tc.w, ok, tc.wantOK)
			}
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("Negotiate(%v) mismatch (-want +got):\n%s", tc.w, diff)
			}
		})
	}
}

func TestNegotiateSMCCC10NeverProbesFeatures(t *testing.T) {
	fw := WithWorkaround1(ConduitSMC)
	fw.SMCCCVersion = 0
	n := Probe(fw, ConduitSMC)
	if _, ok := n.Negotiate(WorkaroundArch1); ok {
		t.Errorf("Negotiate succeeded on SMCCC 1.0")
	}
	if got := fw.Calls(SMCCCArchFeatures); got != 0 {
		t.Errorf("ARCH_FEATURES called %d times on SMCCC 1.0, want 0", got)
	}
}

func TestNegotiateIsNotRetried(t *testing.T) {
	fw := NewEmulated(ConduitHVC, nil)
	n := Probe(fw, ConduitHVC)
	if _, ok := n.Negotiate(WorkaroundArch1); ok {
		t.Fatalf("Negotiate succeeded without firmware support")
	}
	if got := fw.Calls(SMCCCArchFeatures); got != 1 {
		t.Errorf("ARCH_FEATURES called %d times, want 1", got)
	}
}

func TestNegotiateConcurrent(t *testing.T) {
	fw := WithWorkaround1(ConduitSMC)
	n := Probe(fw, ConduitSMC)
	const cpus = 16
	var wg sync.WaitGroup
	for i := 0; i < cpus; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if sel, ok := n.Negotiate(WorkaroundArch1); !ok || sel.Kind != trampoline.SMCWorkaround1 {
				t.Errorf("Negotiate = %+v, %t", sel, ok)
			}
		}()
	}
	wg.Wait()
	if got := fw.Calls(SMCCCArchFeatures); got != cpus {
		t.Errorf("ARCH_FEATURES called %d times, want %d", got, cpus)
	}
}

func TestInvoke(t *testing.T) {
	fw := WithWorkaround1(ConduitHVC)
	n := Probe(fw, ConduitHVC)
	sel, ok := n.Negotiate(WorkaroundArch1)
	if !ok {
		t.Fatalf("Negotiate failed")
	}
	n.Invoke(sel)
	n.Invoke(Selection{Kind: trampoline.LinkStackSanitize})
	if got := fw.Calls(SMCCCArchWorkaround1); got != 1 {
		t.Errorf("ARCH_WORKAROUND_1 called %d times, want 1", got)
	}
}

func TestParseConduit(t *testing.T) {
	for _, c := range []Conduit{ConduitNone, ConduitHVC, ConduitSMC} {
		got, err := ParseConduit(c.String())
		if err != nil || got != c {
			t.Errorf("ParseConduit(%q) = %v, %v; want %v", c.String(), got, err, c)
		}
	}
	if _, err := ParseConduit("svc"); err == nil {
		t.Errorf("ParseConduit(svc) succeeded")
	}
}

func TestParseVersion(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want Version
		ok   bool
	}{
		{"1.1", Version1_1, true},
		{"0.2", Version0_2, true},
		{"1.0", Version1_0, true},
		{"2.13", MakeVersion(2, 13), true},
		{"1", 0, false},
		{"1.x", 0, false},
		{"32768.0", 0, false},
		{"", 0, false},
	} {
		got, err := ParseVersion(tc.in)
		if (err == nil) != tc.ok || got != tc.want {
			t.Errorf("ParseVersion(%q) = %v, %v; want %v, ok=%t", tc.in, got, err, tc.want, tc.ok)
		}
	}
}

func TestVersionString(t *testing.T) {
	if got, want := Version1_1.String(), "1.1"; got != want {
		t.Errorf("Version1_1.String() = %q, want %q", got, want)
	}
	if got, want := Version0_2.String(), "0.2"; got != want {
		t.Errorf("Version0_2.String() = %q, want %q", got, want)
	}
}
