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

// Package cpucap is the registry of CPU errata and speculative execution
// mitigations.
//
// A static table of descriptors pairs each capability with a matcher over
// the processor's identity and a hook that enables it. When a processor comes
// online, every matching descriptor's hook runs on it. The branch predictor
// hardening hooks negotiate a workaround with firmware and install the
// selected trampoline in the processor's vector area; crossings then dispatch
// through Registry.Cross.
package cpucap

import (
	"fmt"
	"math/bits"
	"strings"
)

// Cap identifies a capability. Several descriptors may enable the same
// capability on different processors.
type Cap uint32

// Capabilities. Names follow the kernel's ARM64_* constants.
const (
	// WorkaroundCleanCache covers Cortex-A53 errata 826319, 827319, 824069
	// and 819472: cache maintenance by VA must be upgraded to clean and
	// invalidate.
	WorkaroundCleanCache Cap = iota

	// WorkaroundDeviceLoadAcquire covers Cortex-A57 erratum 832075.
	WorkaroundDeviceLoadAcquire

	// Workaround834220 covers Cortex-A57 erratum 834220.
	Workaround834220

	// Workaround845719 covers Cortex-A53 erratum 845719.
	Workaround845719

	// WorkaroundCavium27456 covers Cavium ThunderX erratum 27456.
	WorkaroundCavium27456

	// WorkaroundQcomFalkorE1003 covers Qualcomm Falkor erratum E1003.
	WorkaroundQcomFalkorE1003

	// Workaround858921 covers Cortex-A73 erratum 858921.
	Workaround858921

	// HardenBranchPredictor is branch predictor hardening on every crossing
	// into the privileged vectors.
	HardenBranchPredictor

	// HardenBPPostGuestExit is branch predictor hardening on guest exit.
	HardenBPPostGuestExit

	// SpeculationBarrier records that the SB instruction is available.
	SpeculationBarrier

	numCaps
)

var capNames = [numCaps]string{
	WorkaroundCleanCache:        "WORKAROUND_CLEAN_CACHE",
	WorkaroundDeviceLoadAcquire: "WORKAROUND_DEVICE_LOAD_ACQUIRE",
	Workaround834220:            "WORKAROUND_834220",
	Workaround845719:            "WORKAROUND_845719",
	WorkaroundCavium27456:       "WORKAROUND_CAVIUM_27456",
	WorkaroundQcomFalkorE1003:   "WORKAROUND_QCOM_FALKOR_E1003",
	Workaround858921:            "WORKAROUND_858921",
	HardenBranchPredictor:       "HARDEN_BRANCH_PREDICTOR",
	HardenBPPostGuestExit:       "HARDEN_BP_POST_GUEST_EXIT",
	SpeculationBarrier:          "HAS_SB",
}

// Caps returns all capabilities.
func Caps() []Cap {
	caps := make([]Cap, numCaps)
	for i := range caps {
		caps[i] = Cap(i)
	}
	return caps
}

// String implements fmt.Stringer.
func (c Cap) String() string {
	if c < numCaps {
		return capNames[c]
	}
	return fmt.Sprintf("Cap(%d)", uint32(c))
}

// MarshalText implements encoding.TextMarshaler.
func (c Cap) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Cap) UnmarshalText(b []byte) error {
	for i, name := range capNames {
		if strings.EqualFold(name, string(b)) {
			*c = Cap(i)
			return nil
		}
	}
	return fmt.Errorf("unknown capability %q", b)
}

// Set is a set of capabilities. The zero value is empty.
type Set uint64

// NewSet returns a set containing caps.
func NewSet(caps ...Cap) Set {
	var s Set
	for _, c := range caps {
		s = s.Add(c)
	}
	return s
}

// Add returns s with c added.
func (s Set) Add(c Cap) Set {
	return s | 1<<c
}

// Has returns true if c is in s.
func (s Set) Has(c Cap) bool {
	return s&(1<<c) != 0
}

// Len returns the number of capabilities in s.
func (s Set) Len() int {
	return bits.OnesCount64(uint64(s))
}

// Caps returns the members of s in ascending order.
func (s Set) Caps() []Cap {
	caps := make([]Cap, 0, s.Len())
	for c := Cap(0); c < numCaps; c++ {
		if s.Has(c) {
			caps = append(caps, c)
		}
	}
	return caps
}

// String implements fmt.Stringer.
func (s Set) String() string {
	names := make([]string, 0, s.Len())
	for _, c := range s.Caps() {
		names = append(names, c.String())
	}
	return "[" + strings.Join(names, " ") + "]"
}
