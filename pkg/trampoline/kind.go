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

// Package trampoline installs mitigation trampolines into per-CPU vector
// areas.
//
// A trampoline is a fixed size vector image (a Blob) tagged by Kind. Each
// processor owns a VectorArea with one reserved slot per Kind. Installing a
// trampoline copies the kind's image into its slot and then publishes the
// kind with a single atomic store, so a concurrent crossing of the
// privileged boundary runs either the previous trampoline or the new one in
// full.
package trampoline

import (
	"fmt"
)

// Kind identifies a trampoline.
type Kind uint32

// Trampoline kinds.
const (
	// None is the empty trampoline: crossings run no mitigation.
	None Kind = iota

	// SMCWorkaround1 calls SMCCC_ARCH_WORKAROUND_1 through the secure
	// monitor.
	SMCWorkaround1

	// HVCWorkaround1 calls SMCCC_ARCH_WORKAROUND_1 through the hypervisor.
	HVCWorkaround1

	// LinkStackSanitize overwrites the return address predictor with
	// benign entries. It needs no firmware.
	LinkStackSanitize

	numKinds
)

var kindNames = [numKinds]string{
	None:              "none",
	SMCWorkaround1:    "smc-workaround-1",
	HVCWorkaround1:    "hvc-workaround-1",
	LinkStackSanitize: "link-stack-sanitize",
}

// Kinds returns every installable kind, excluding None.
func Kinds() []Kind {
	return []Kind{SMCWorkaround1, HVCWorkaround1, LinkStackSanitize}
}

// Valid returns true if k is a known kind.
func (k Kind) Valid() bool {
	return k < numKinds
}

// String implements fmt.Stringer.
func (k Kind) String() string {
	if !k.Valid() {
		return fmt.Sprintf("Kind(%d)", uint32(k))
	}
	return kindNames[k]
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(b []byte) error {
	for i, name := range kindNames {
		if name == string(b) {
			*k = Kind(i)
			return nil
		}
	}
	return fmt.Errorf("unknown trampoline kind %q", b)
}
