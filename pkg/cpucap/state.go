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

package cpucap

import (
	"encoding/json"

	"gvisor.dev/specguard/pkg/smccc"
	"gvisor.dev/specguard/pkg/trampoline"
)

// State is the mitigation state of one processor. States are immutable
// snapshots; the registry publishes a new one each time hooks run.
type State struct {
	// CPU is the processor number.
	CPU int `json:"cpu" yaml:"cpu"`

	// Online is true between Online and Offline.
	Online bool `json:"online" yaml:"online"`

	// Detected are the capabilities whose matcher accepted the processor.
	Detected Set `json:"detected" yaml:"detected"`

	// Enabled are the detected capabilities whose hook succeeded.
	Enabled Set `json:"enabled" yaml:"enabled"`

	// Unavailable are the detected capabilities whose hook failed.
	Unavailable Set `json:"unavailable" yaml:"unavailable"`

	// Trampoline is the installed vector trampoline.
	Trampoline trampoline.Kind `json:"trampoline" yaml:"trampoline"`

	// Conduit is the conduit the trampoline calls firmware through.
	Conduit smccc.Conduit `json:"conduit" yaml:"conduit"`

	// Installed is true once a hook has installed Trampoline.
	Installed bool `json:"installed" yaml:"installed"`

	// Barrier is true if the processor implements SB.
	Barrier bool `json:"barrier" yaml:"barrier"`
}

// MarshalJSON implements json.Marshaler. Sets are lists of names.
func (s Set) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Caps())
}

// MarshalYAML implements yaml.Marshaler.
func (s Set) MarshalYAML() (any, error) {
	return s.Caps(), nil
}
