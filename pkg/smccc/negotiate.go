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
	"fmt"

	"gvisor.dev/specguard/pkg/log"
	"gvisor.dev/specguard/pkg/trampoline"
)

// Workaround names a mitigation the negotiator can select.
type Workaround int

// Workarounds.
const (
	// WorkaroundArch1 is SMCCC_ARCH_WORKAROUND_1, branch predictor
	// invalidation implemented by firmware.
	WorkaroundArch1 Workaround = iota

	// WorkaroundLinkStack is the Qualcomm Falkor link stack sanitization,
	// implemented entirely in the trampoline.
	WorkaroundLinkStack
)

// String implements fmt.Stringer.
func (w Workaround) String() string {
	switch w {
	case WorkaroundArch1:
		return "ARCH_WORKAROUND_1"
	case WorkaroundLinkStack:
		return "link-stack"
	default:
		return fmt.Sprintf("Workaround(%d)", int(w))
	}
}

// Selection is the outcome of a successful negotiation.
type Selection struct {
	// Kind is the trampoline to install.
	Kind trampoline.Kind

	// Conduit is the conduit the trampoline traps through, or ConduitNone
	// if it does not call firmware.
	Conduit Conduit
}

// Negotiator holds the firmware interface discovered at boot. It is
// immutable after Probe and safe for concurrent use.
type Negotiator struct {
	fw      Firmware
	conduit Conduit
	psci    Version
	smccc   Version
}

// Probe discovers the PSCI and SMCCC versions implemented by fw behind
// conduit. It is called once at boot; the conduit never changes afterwards.
//
// SMCCC_VERSION is only defined from PSCI 1.0, and only queried if
// PSCI_FEATURES reports it. Any malformed answer leaves the convention at
// SMCCC 1.0, under which no workaround can be negotiated.
func Probe(fw Firmware, conduit Conduit) *Negotiator {
	n := &Negotiator{
		fw:      fw,
		conduit: conduit,
		smccc:   Version1_0,
	}
	if conduit == ConduitNone || fw == nil {
		log.Infof("SMCCC: no firmware conduit")
		n.conduit = ConduitNone
		return n
	}

	ver, ok := decodeVersion(fw.Call(conduit, PSCIVersion, Args{})[0])
	if !ok {
		log.Warningf("SMCCC: malformed PSCI version over %v, assuming SMCCC %v", conduit, Version1_0)
		return n
	}
	n.psci = ver
	if ver.Major() >= 1 {
		n.smccc = n.probeSMCCC()
	}
	log.Infof("SMCCC: conduit %v, PSCI v%v, SMCCC v%v", n.conduit, n.psci, n.smccc)
	return n
}

func (n *Negotiator) probeSMCCC() Version {
	res := n.fw.Call(n.conduit, PSCIFeatures, Args{uint64(SMCCCVersion)})
	if int32(uint32(res[0])) == RetNotSupported {
		return Version1_0
	}
	raw := n.fw.Call(n.conduit, SMCCCVersion, Args{})[0]
	ver, ok := decodeVersion(raw)
	if !ok {
		log.Warningf("SMCCC: malformed SMCCC version %#x, assuming %v", raw, Version1_0)
		return Version1_0
	}
	if ver < Version1_1 {
		return Version1_0
	}
	return ver
}

// Conduit returns the conduit fixed at boot.
func (n *Negotiator) Conduit() Conduit {
	return n.conduit
}

// PSCIVersion returns the PSCI version, or zero if it is unknown.
func (n *Negotiator) PSCIVersion() Version {
	return n.psci
}

// SMCCCVersion returns the negotiated calling convention version.
func (n *Negotiator) SMCCCVersion() Version {
	return n.smccc
}

// Negotiate asks firmware whether workaround w is implemented and returns
// the trampoline selection for it. It returns false if no firmware is
// reachable, the calling convention predates SMCCC 1.1, or the firmware's
// answer is anything but success. A negative answer is final.
func (n *Negotiator) Negotiate(w Workaround) (Selection, bool) {
	switch w {
	case WorkaroundLinkStack:
		return Selection{Kind: trampoline.LinkStackSanitize, Conduit: ConduitNone}, true
	case WorkaroundArch1:
	default:
		return Selection{}, false
	}

	if n.smccc < Version1_1 {
		return Selection{}, false
	}
	var kind trampoline.Kind
	switch n.conduit {
	case ConduitHVC:
		kind = trampoline.HVCWorkaround1
	case ConduitSMC:
		kind = trampoline.SMCWorkaround1
	default:
		return Selection{}, false
	}

	res := n.fw.Call(n.conduit, SMCCCArchFeatures, Args{uint64(SMCCCArchWorkaround1)})
	if res[0] != 0 {
		log.Debugf("SMCCC: %v not available over %v: a0=%#x", w, n.conduit, res[0])
		return Selection{}, false
	}
	return Selection{Kind: kind, Conduit: n.conduit}, true
}

// Invoke runs the firmware side of a selection. It is what an installed
// workaround trampoline does on every crossing.
func (n *Negotiator) Invoke(sel Selection) {
	switch sel.Kind {
	case trampoline.SMCWorkaround1, trampoline.HVCWorkaround1:
		n.fw.Call(sel.Conduit, SMCCCArchWorkaround1, Args{})
	}
}
