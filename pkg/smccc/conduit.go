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

// Package smccc negotiates firmware mitigations over the Arm SMC Calling
// Convention.
//
// The firmware is reached through exactly one conduit for the whole boot,
// either a hypervisor call (HVC) or a secure monitor call (SMC). Probe
// discovers the PSCI and SMCCC versions once; Negotiate then asks the
// firmware, through that conduit, whether a given workaround is implemented
// and selects the trampoline that invokes it.
package smccc

import (
	"fmt"
	"strings"
)

// Conduit is the trap used to reach firmware.
type Conduit int

// Conduits.
const (
	// ConduitNone means no firmware is reachable.
	ConduitNone Conduit = iota

	// ConduitHVC traps to the hypervisor.
	ConduitHVC

	// ConduitSMC traps to the secure monitor.
	ConduitSMC
)

// String implements fmt.Stringer.
func (c Conduit) String() string {
	switch c {
	case ConduitNone:
		return "none"
	case ConduitHVC:
		return "hvc"
	case ConduitSMC:
		return "smc"
	default:
		return fmt.Sprintf("Conduit(%d)", int(c))
	}
}

// ParseConduit parses the String form of a Conduit.
func ParseConduit(s string) (Conduit, error) {
	switch strings.ToLower(s) {
	case "none", "":
		return ConduitNone, nil
	case "hvc":
		return ConduitHVC, nil
	case "smc":
		return ConduitSMC, nil
	default:
		return ConduitNone, fmt.Errorf("invalid conduit %q, must be 'none', 'hvc' or 'smc'", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (c Conduit) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Conduit) UnmarshalText(b []byte) error {
	v, err := ParseConduit(string(b))
	if err != nil {
		return err
	}
	*c = v
	return nil
}

// Set implements flag.Value.
func (c *Conduit) Set(v string) error {
	return c.UnmarshalText([]byte(v))
}

// Get implements flag.Getter.
func (c *Conduit) Get() any {
	return *c
}
