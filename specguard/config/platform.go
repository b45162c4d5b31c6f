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

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"
	"gvisor.dev/specguard/pkg/cpuid"
	"gvisor.dev/specguard/pkg/smccc"
)

// Platform describes a machine: its processor clusters and the firmware
// behind its conduit.
//
// Example in TOML:
//
//	name = "big.LITTLE"
//
//	[firmware]
//	conduit = "smc"
//	psci_version = "1.1"
//	smccc_version = "1.1"
//	arch_workaround_1 = "supported"
//
//	[[cluster]]
//	name = "Cortex-A53"
//	implementer = 0x41
//	part = 0xd03
//	revision = 4
//	features = "fp asimd"
//	cores = 4
type Platform struct {
	Name     string    `toml:"name" yaml:"name"`
	Firmware Firmware  `toml:"firmware" yaml:"firmware"`
	Clusters []Cluster `toml:"cluster" yaml:"clusters"`
}

// Firmware describes the PSCI firmware of a platform.
type Firmware struct {
	// Conduit is the conduit firmware answers on.
	Conduit smccc.Conduit `toml:"conduit" yaml:"conduit"`

	// PSCIVersion is the PSCI version, e.g. "1.1".
	PSCIVersion string `toml:"psci_version" yaml:"psci_version"`

	// SMCCCVersion is the SMCCC version. Empty means SMCCC_VERSION is not
	// implemented.
	SMCCCVersion string `toml:"smccc_version" yaml:"smccc_version"`

	// Workaround1 is the answer to SMCCC_ARCH_FEATURES for
	// SMCCC_ARCH_WORKAROUND_1: one of the keys of workaroundAnswers.
	Workaround1 string `toml:"arch_workaround_1" yaml:"arch_workaround_1"`
}

// workaroundAnswers maps Firmware.Workaround1 values to a0. "absent" leaves
// the function out of the feature table.
var workaroundAnswers = map[string]uint64{
	"supported":     smccc.Code(smccc.RetSuccess),
	"not-supported": smccc.Code(smccc.RetNotSupported),
	"not-required":  smccc.Code(smccc.RetNotRequired),
}

// Cluster is a set of identical processors.
type Cluster struct {
	Name        string `toml:"name" yaml:"name"`
	Implementer uint32 `toml:"implementer" yaml:"implementer"`
	Variant     uint32 `toml:"variant" yaml:"variant"`
	Part        uint32 `toml:"part" yaml:"part"`
	Revision    uint32 `toml:"revision" yaml:"revision"`
	Features    string `toml:"features" yaml:"features"`
	Cores       int    `toml:"cores" yaml:"cores"`
}

// LoadPlatform reads and validates the platform description at path. The
// format is picked by extension: .toml, or .yaml and .yml.
func LoadPlatform(path string) (*Platform, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading platform: %w", err)
	}
	p, err := ParsePlatform(data, strings.TrimPrefix(filepath.Ext(path), "."))
	if err != nil {
		return nil, fmt.Errorf("platform %s: %w", path, err)
	}
	return p, nil
}

// ParsePlatform decodes and validates a platform description in the given
// format: "toml", "yaml" or "yml".
func ParsePlatform(data []byte, format string) (*Platform, error) {
	var p Platform
	switch format {
	case "toml":
		md, err := toml.Decode(string(data), &p)
		if err != nil {
			return nil, err
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("unknown keys %v", undecoded)
		}
	case "yaml", "yml":
		if err := yaml.Unmarshal(data, &p); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown platform format %q, must be 'toml' or 'yaml'", format)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Validate reports every problem of the description.
func (p *Platform) Validate() error {
	var result *multierror.Error
	if len(p.Clusters) == 0 {
		result = multierror.Append(result, fmt.Errorf("no clusters"))
	}
	for i, c := range p.Clusters {
		name := c.Name
		if name == "" {
			name = fmt.Sprintf("#%d", i)
		}
		if c.Cores <= 0 {
			result = multierror.Append(result, fmt.Errorf("cluster %s: cores must be positive, got %d", name, c.Cores))
		}
		for _, field := range []struct {
			name  string
			value uint32
			max   uint32
		}{
			{"implementer", c.Implementer, 0xff},
			{"variant", c.Variant, 0xf},
			{"part", c.Part, 0xfff},
			{"revision", c.Revision, 0xf},
		} {
			if field.value > field.max {
				result = multierror.Append(result, fmt.Errorf("cluster %s: %s %#x exceeds %#x", name, field.name, field.value, field.max))
			}
		}
		for _, f := range strings.Fields(c.Features) {
			if _, ok := cpuid.FeatureFromString(f); !ok {
				result = multierror.Append(result, fmt.Errorf("cluster %s: unknown feature %q", name, f))
			}
		}
	}

	if n := p.NumCPUs(); n > cpuid.MaxCPUs {
		result = multierror.Append(result, fmt.Errorf("%d processors exceed the maximum of %d", n, cpuid.MaxCPUs))
	}

	fw := &p.Firmware
	if fw.Conduit != smccc.ConduitNone {
		if _, err := smccc.ParseVersion(fw.PSCIVersion); err != nil {
			result = multierror.Append(result, fmt.Errorf("firmware: psci_version: %w", err))
		}
		if fw.SMCCCVersion != "" {
			if _, err := smccc.ParseVersion(fw.SMCCCVersion); err != nil {
				result = multierror.Append(result, fmt.Errorf("firmware: smccc_version: %w", err))
			}
		}
	}
	if _, ok := workaroundAnswers[fw.Workaround1]; !ok && fw.Workaround1 != "" && fw.Workaround1 != "absent" {
		result = multierror.Append(result, fmt.Errorf("firmware: arch_workaround_1 %q must be one of supported, not-supported, not-required or absent", fw.Workaround1))
	}
	return result.ErrorOrNil()
}

// NumCPUs returns the number of processors of the platform.
func (p *Platform) NumCPUs() int {
	n := 0
	for _, c := range p.Clusters {
		n += min(max(c.Cores, 0), cpuid.MaxCPUs+1)
	}
	return n
}

// Identities returns the identity of every processor, numbered in cluster
// order.
func (p *Platform) Identities() []cpuid.Identity {
	ids := make([]cpuid.Identity, 0, p.NumCPUs())
	for _, c := range p.Clusters {
		midr := cpuid.NewMIDR(c.Implementer, c.Variant, 0xf, c.Part, c.Revision)
		features := cpuid.ParseFeatures(c.Features)
		for i := 0; i < c.Cores; i++ {
			ids = append(ids, cpuid.Identity{
				Processor: len(ids),
				MIDR:      midr,
				Features:  features,
			})
		}
	}
	return ids
}

// NewFirmware returns emulated firmware behaving as described. The
// description must be valid.
func (fw *Firmware) NewFirmware() *smccc.Emulated {
	e := &smccc.Emulated{
		Conduit:  fw.Conduit,
		Features: make(map[uint32]uint64),
	}
	if v, err := smccc.ParseVersion(fw.PSCIVersion); err == nil {
		e.PSCIVersion = uint64(v)
	}
	if v, err := smccc.ParseVersion(fw.SMCCCVersion); err == nil {
		e.SMCCCVersion = uint64(v)
	}
	if a0, ok := workaroundAnswers[fw.Workaround1]; ok {
		e.Features[smccc.SMCCCArchWorkaround1] = a0
	}
	return e
}
