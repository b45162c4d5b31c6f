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
	"golang.org/x/sys/cpu"
)

// hostFeatures lists the features golang.org/x/sys/cpu detects.
var hostFeatures = []struct {
	feature Feature
	has     *bool
}{
	{ARM64FeatureFP, &cpu.ARM64.HasFP},
	{ARM64FeatureASIMD, &cpu.ARM64.HasASIMD},
	{ARM64FeatureEVTSTRM, &cpu.ARM64.HasEVTSTRM},
	{ARM64FeatureAES, &cpu.ARM64.HasAES},
	{ARM64FeaturePMULL, &cpu.ARM64.HasPMULL},
	{ARM64FeatureSHA1, &cpu.ARM64.HasSHA1},
	{ARM64FeatureSHA2, &cpu.ARM64.HasSHA2},
	{ARM64FeatureCRC32, &cpu.ARM64.HasCRC32},
	{ARM64FeatureATOMICS, &cpu.ARM64.HasATOMICS},
	{ARM64FeatureFPHP, &cpu.ARM64.HasFPHP},
	{ARM64FeatureASIMDHP, &cpu.ARM64.HasASIMDHP},
	{ARM64FeatureCPUID, &cpu.ARM64.HasCPUID},
	{ARM64FeatureASIMDRDM, &cpu.ARM64.HasASIMDRDM},
	{ARM64FeatureJSCVT, &cpu.ARM64.HasJSCVT},
	{ARM64FeatureFCMA, &cpu.ARM64.HasFCMA},
	{ARM64FeatureLRCPC, &cpu.ARM64.HasLRCPC},
	{ARM64FeatureDCPOP, &cpu.ARM64.HasDCPOP},
	{ARM64FeatureSHA3, &cpu.ARM64.HasSHA3},
	{ARM64FeatureSM3, &cpu.ARM64.HasSM3},
	{ARM64FeatureSM4, &cpu.ARM64.HasSM4},
	{ARM64FeatureASIMDDP, &cpu.ARM64.HasASIMDDP},
	{ARM64FeatureSHA512, &cpu.ARM64.HasSHA512},
	{ARM64FeatureSVE, &cpu.ARM64.HasSVE},
	{ARM64FeatureASIMDFHM, &cpu.ARM64.HasASIMDFHM},
}

// HostFeatureSet returns the features of the host as detected by the Go
// runtime. On other architectures it is empty.
//
// The runtime reports a single set for the whole system; per-processor
// differences are only visible through /proc/cpuinfo.
func HostFeatureSet() FeatureSet {
	var fs FeatureSet
	for _, hf := range hostFeatures {
		if *hf.has {
			fs = fs.With(hf.feature)
		}
	}
	return fs
}
