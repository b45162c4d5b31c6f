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
	"strings"
)

// Feature is a hardware capability bit. Features are numbered like the
// AT_HWCAP bits in arch/arm64/include/uapi/asm/hwcap.h, so a FeatureSet is a
// HWCAP word.
type Feature int

// ARM64 features, in AT_HWCAP bit order.
const (
	ARM64FeatureFP Feature = iota
	ARM64FeatureASIMD
	ARM64FeatureEVTSTRM
	ARM64FeatureAES
	ARM64FeaturePMULL
	ARM64FeatureSHA1
	ARM64FeatureSHA2
	ARM64FeatureCRC32
	ARM64FeatureATOMICS
	ARM64FeatureFPHP
	ARM64FeatureASIMDHP
	ARM64FeatureCPUID
	ARM64FeatureASIMDRDM
	ARM64FeatureJSCVT
	ARM64FeatureFCMA
	ARM64FeatureLRCPC
	ARM64FeatureDCPOP
	ARM64FeatureSHA3
	ARM64FeatureSM3
	ARM64FeatureSM4
	ARM64FeatureASIMDDP
	ARM64FeatureSHA512
	ARM64FeatureSVE
	ARM64FeatureASIMDFHM
	ARM64FeatureDIT
	ARM64FeatureUSCAT
	ARM64FeatureILRCPC
	ARM64FeatureFLAGM
	ARM64FeatureSSBS
	ARM64FeatureSB
	ARM64FeaturePACA
	ARM64FeaturePACG

	numFeatures
)

// featureNames are the names used in the Features line of /proc/cpuinfo.
var featureNames = [numFeatures]string{
	"fp", "asimd", "evtstrm", "aes", "pmull", "sha1", "sha2", "crc32",
	"atomics", "fphp", "asimdhp", "cpuid", "asimdrdm", "jscvt", "fcma", "lrcpc",
	"dcpop", "sha3", "sm3", "sm4", "asimddp", "sha512", "sve", "asimdfhm",
	"dit", "uscat", "ilrcpc", "flagm", "ssbs", "sb", "paca", "pacg",
}

// String returns the cpuinfo name of the feature.
func (f Feature) String() string {
	if f < 0 || f >= numFeatures {
		return "unknown"
	}
	return featureNames[f]
}

// FeatureFromString returns the Feature associated with the given cpuinfo
// name.
func FeatureFromString(s string) (Feature, bool) {
	for f, name := range featureNames {
		if name == s {
			return Feature(f), true
		}
	}
	return 0, false
}

// FeatureSet is a set of Features. The zero value is the empty set.
type FeatureSet struct {
	hwcap uint64
}

// FeatureSetFromHWCap returns the FeatureSet for an AT_HWCAP value.
func FeatureSetFromHWCap(hwcap uint64) FeatureSet {
	return FeatureSet{hwcap: hwcap & (1<<numFeatures - 1)}
}

// NewFeatureSet returns a FeatureSet containing the given features.
func NewFeatureSet(features ...Feature) FeatureSet {
	var fs FeatureSet
	for _, f := range features {
		fs = fs.With(f)
	}
	return fs
}

// ParseFeatures parses the Features line of /proc/cpuinfo. Unknown names
// are ignored.
func ParseFeatures(line string) FeatureSet {
	var fs FeatureSet
	for _, name := range strings.Fields(line) {
		if f, ok := FeatureFromString(name); ok {
			fs = fs.With(f)
		}
	}
	return fs
}

// HWCap returns the AT_HWCAP encoding of the set.
func (fs FeatureSet) HWCap() uint64 {
	return fs.hwcap
}

// HasFeature tests whether or not a feature is in the given feature set.
func (fs FeatureSet) HasFeature(f Feature) bool {
	if f < 0 || f >= numFeatures {
		return false
	}
	return fs.hwcap&(1<<uint(f)) != 0
}

// With returns a copy of fs with f added.
func (fs FeatureSet) With(f Feature) FeatureSet {
	if f >= 0 && f < numFeatures {
		fs.hwcap |= 1 << uint(f)
	}
	return fs
}

// String returns the set in /proc/cpuinfo form.
func (fs FeatureSet) String() string {
	var names []string
	for f := Feature(0); f < numFeatures; f++ {
		if fs.HasFeature(f) {
			names = append(names, f.String())
		}
	}
	return strings.Join(names, " ")
}
