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

// Package cpuid describes the identity of arm64 processors.
//
// A processor is identified by its Main ID Register (MIDR_EL1) and the
// hardware capabilities the kernel reports for it. Identities are read from
// /proc/cpuinfo, which reports both per processor, so that heterogeneous
// (big.LITTLE) systems are described faithfully.
package cpuid

import (
	"fmt"
)

// Identity is the identity of a single processor.
type Identity struct {
	// Processor is the logical processor number.
	Processor int

	// MIDR is the processor's Main ID Register.
	MIDR MIDR

	// Features are the hardware capabilities of the processor.
	Features FeatureSet
}

// String implements fmt.Stringer.
func (id Identity) String() string {
	return fmt.Sprintf("cpu%d: %v", id.Processor, id.MIDR)
}
