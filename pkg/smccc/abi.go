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
	"strconv"
	"strings"
)

// Function identifiers. See include/linux/arm-smccc.h and
// include/uapi/linux/psci.h.
const (
	PSCIVersion          uint32 = 0x84000000
	PSCIFeatures         uint32 = 0x8400000a
	SMCCCVersion         uint32 = 0x80000000
	SMCCCArchFeatures    uint32 = 0x80000001
	SMCCCArchWorkaround1 uint32 = 0x80008000
)

// Return codes, as signed 32-bit values in a0.
const (
	RetSuccess      int32 = 0
	RetNotSupported int32 = -1
	RetNotRequired  int32 = -2
)

// Args are the arguments of a firmware call, passed in x1-x4.
type Args [4]uint64

// Result is the result of a firmware call, returned in x0-x3.
type Result [4]uint64

// Code returns a code as it appears in a result register.
func Code(code int32) uint64 {
	return uint64(int64(code))
}

// Firmware is the privileged firmware interface. Call traps through conduit
// c to function fn. A call through a conduit the firmware does not answer on
// returns RetNotSupported.
//
// Implementations must be safe for concurrent use: every processor calls
// firmware independently.
type Firmware interface {
	Call(c Conduit, fn uint32, args Args) Result
}

// Version is a PSCI or SMCCC version, major<<16 | minor.
type Version uint32

// Well known versions.
const (
	Version0_2 Version = 0x00002
	Version1_0 Version = 0x10000
	Version1_1 Version = 0x10001
)

// MakeVersion returns the Version with the given major and minor numbers.
func MakeVersion(major, minor uint16) Version {
	return Version(uint32(major)<<16 | uint32(minor))
}

// Major returns the major version.
func (v Version) Major() uint16 {
	return uint16((v >> 16) & 0x7fff)
}

// Minor returns the minor version.
func (v Version) Minor() uint16 {
	return uint16(v & 0xffff)
}

// String implements fmt.Stringer.
func (v Version) String() string {
	return fmt.Sprintf("%d.%d", v.Major(), v.Minor())
}

// ParseVersion parses the String form of a Version.
func ParseVersion(s string) (Version, error) {
	majStr, minStr, ok := strings.Cut(s, ".")
	if !ok {
		return 0, fmt.Errorf("invalid version %q, must be major.minor", s)
	}
	major, err := strconv.ParseUint(majStr, 10, 15)
	if err != nil {
		return 0, fmt.Errorf("invalid major version in %q: %w", s, err)
	}
	minor, err := strconv.ParseUint(minStr, 10, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid minor version in %q: %w", s, err)
	}
	return MakeVersion(uint16(major), uint16(minor)), nil
}

// decodeVersion interprets a0 of a version call. Error codes and values
// with bits set above bit 31 are malformed.
func decodeVersion(a0 uint64) (Version, bool) {
	if a0>>32 != 0 || int32(uint32(a0)) < 0 {
		return 0, false
	}
	return Version(a0), true
}
