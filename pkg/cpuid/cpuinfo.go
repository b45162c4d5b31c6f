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
	"fmt"
	"os"
	"regexp"
	"sort"
	"strconv"

	"gvisor.dev/specguard/pkg/log"
)

const (
	processorKey    = "processor"
	featuresKey     = "Features"
	implementerKey  = "CPU implementer"
	architectureKey = "CPU architecture"
	variantKey      = "CPU variant"
	partKey         = "CPU part"
	revisionKey     = "CPU revision"

	// aarch64Architecture is what /proc/cpuinfo reports for every
	// AArch64 processor, regardless of the MIDR architecture field.
	aarch64Architecture = 8
)

// MaxCPUs bounds processor numbers, as the arm64 kernel bounds NR_CPUS.
const MaxCPUs = 4096

// CPUInfoPath is the host file read by HostIdentities.
const CPUInfoPath = "/proc/cpuinfo"

// HostIdentities returns the identities of the host processors from
// /proc/cpuinfo.
func HostIdentities() ([]Identity, error) {
	data, err := os.ReadFile(CPUInfoPath)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", CPUInfoPath, err)
	}
	ids, err := ParseCPUInfo(string(data))
	if err != nil {
		return nil, err
	}
	// Older kernels print a single Features line for the whole system, and
	// some print none at all; fall back to what the runtime detected.
	host := HostFeatureSet()
	for i := range ids {
		if ids[i].Features.HWCap() == 0 {
			ids[i].Features = host
		}
	}
	return ids, nil
}

// ParseCPUInfo returns the identity of every processor described in data,
// which must be in the format of arm64 /proc/cpuinfo. The result is ordered
// by processor number.
func ParseCPUInfo(data string) ([]Identity, error) {
	// Each processor entry should start with the processor key. Find the
	// beginnings of each.
	r := buildRegex(processorKey)
	indices := r.FindAllStringIndex(data, -1)
	if len(indices) < 1 {
		return nil, fmt.Errorf("no cpus found for: %q", data)
	}

	// Add the ending index for last entry.
	indices = append(indices, []int{len(data), -1})

	ids := make([]Identity, 0, len(indices)-1)
	seen := make(map[int]struct{}, len(indices)-1)
	for i := 1; i < len(indices); i++ {
		start := indices[i-1][0]
		end := indices[i][0]
		id, err := parseIdentity(data[start:end])
		if err != nil {
			return nil, err
		}
		if _, ok := seen[id.Processor]; ok {
			return nil, fmt.Errorf("processor %d described twice", id.Processor)
		}
		seen[id.Processor] = struct{}{}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].Processor < ids[j].Processor })
	return ids, nil
}

// parseIdentity parses a single processor entry from /proc/cpuinfo.
func parseIdentity(data string) (Identity, error) {
	processor, err := parseInteger(data, processorKey, 10, 32)
	if err != nil {
		return Identity{}, err
	}
	if processor >= MaxCPUs {
		return Identity{}, fmt.Errorf("processor %d exceeds the maximum of %d", processor, MaxCPUs-1)
	}

	// Values wider than their MIDR field are rejected rather than truncated
	// into a different model.
	var fields [4]uint64
	for i, f := range []struct {
		key  string
		bits int
	}{
		{implementerKey, 8},
		{variantKey, 4},
		{partKey, 12},
		{revisionKey, 4},
	} {
		v, err := parseInteger(data, f.key, 0, f.bits)
		if err != nil {
			return Identity{}, fmt.Errorf("processor %d: %w", processor, err)
		}
		fields[i] = v
	}

	if arch, err := parseInteger(data, architectureKey, 0, 32); err != nil {
		return Identity{}, fmt.Errorf("processor %d: %w", processor, err)
	} else if arch != aarch64Architecture {
		log.Debugf("processor %d reports CPU architecture %d", processor, arch)
	}

	var features FeatureSet
	if line, err := parseRegex(data, featuresKey); err == nil {
		features = ParseFeatures(line)
	}

	return Identity{
		Processor: int(processor),
		MIDR:      NewMIDR(uint32(fields[0]), uint32(fields[1]), architectureByID, uint32(fields[2]), uint32(fields[3])),
		Features:  features,
	}, nil
}

// parseInteger parses fields expecting an integer of at most bits bits. A
// base of zero accepts the 0x prefix used for the MIDR fields.
func parseInteger(data, key string, base, bits int) (uint64, error) {
	result, err := parseRegex(data, key)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseUint(result, base, bits)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, result, err)
	}
	return v, nil
}

// buildRegex builds a regex for parsing each CPU field.
func buildRegex(key string) *regexp.Regexp {
	reg := fmt.Sprintf(`(?m)^%s\s*:\s*(.*?)\s*$`, regexp.QuoteMeta(key))
	return regexp.MustCompile(reg)
}

// parseRegex parses data with key inserted into a standard regex template.
func parseRegex(data, key string) (string, error) {
	r := buildRegex(key)
	matches := r.FindStringSubmatch(data)
	if len(matches) < 2 {
		return "", fmt.Errorf("failed to match key %q", key)
	}
	return matches[1], nil
}
