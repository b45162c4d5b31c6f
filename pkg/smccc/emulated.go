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
	"gvisor.dev/specguard/pkg/sync"
)

// Emulated is an in-process model of PSCI firmware. The exported fields
// configure it and must not change once calls begin.
type Emulated struct {
	// Conduit is the only conduit the firmware answers on.
	Conduit Conduit

	// PSCIVersion is the raw a0 returned by PSCI_VERSION.
	PSCIVersion uint64

	// SMCCCVersion is the raw a0 returned by SMCCC_VERSION. If zero, the
	// function is not implemented and PSCI_FEATURES reports so.
	SMCCCVersion uint64

	// Features maps function ids to the raw a0 returned by
	// SMCCC_ARCH_FEATURES for them. Missing functions are not supported.
	Features map[uint32]uint64

	mu    sync.Mutex
	calls map[uint32]int
}

// NewEmulated returns firmware implementing PSCI 1.1 and SMCCC 1.1 on
// conduit c, with the given ARCH_FEATURES answers.
func NewEmulated(c Conduit, features map[uint32]uint64) *Emulated {
	return &Emulated{
		Conduit:      c,
		PSCIVersion:  uint64(MakeVersion(1, 1)),
		SMCCCVersion: uint64(Version1_1),
		Features:     features,
	}
}

// WithWorkaround1 returns firmware on conduit c that implements
// SMCCC_ARCH_WORKAROUND_1.
func WithWorkaround1(c Conduit) *Emulated {
	return NewEmulated(c, map[uint32]uint64{SMCCCArchWorkaround1: Code(RetSuccess)})
}

// Call implements Firmware.Call.
func (e *Emulated) Call(c Conduit, fn uint32, args Args) Result {
	e.mu.Lock()
	if e.calls == nil {
		e.calls = make(map[uint32]int)
	}
	e.calls[fn]++
	e.mu.Unlock()

	notSupported := Result{Code(RetNotSupported)}
	if c != e.Conduit || c == ConduitNone {
		return notSupported
	}
	switch fn {
	case PSCIVersion:
		return Result{e.PSCIVersion}
	case PSCIFeatures:
		if uint32(args[0]) == SMCCCVersion && e.SMCCCVersion != 0 {
			return Result{Code(RetSuccess)}
		}
		return notSupported
	case SMCCCVersion:
		if e.SMCCCVersion == 0 {
			return notSupported
		}
		return Result{e.SMCCCVersion}
	case SMCCCArchFeatures:
		if a0, ok := e.Features[uint32(args[0])]; ok {
			return Result{a0}
		}
		return notSupported
	case SMCCCArchWorkaround1:
		if _, ok := e.Features[SMCCCArchWorkaround1]; ok {
			return Result{}
		}
		return notSupported
	default:
		return notSupported
	}
}

// Calls returns the number of calls made to function fn.
func (e *Emulated) Calls(fn uint32) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls[fn]
}
