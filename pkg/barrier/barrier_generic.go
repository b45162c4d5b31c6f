// Copyright 2023 The gVisor Authors.
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

//go:build !arm64 && !amd64
// +build !arm64,!amd64

package barrier

import (
	"sync/atomic"
)

var fence atomic.Uint32

// SpeculationBarrier is a full memory fence on this architecture.
//
//go:nosplit
func SpeculationBarrier() {
	fence.Add(1)
}

// DataSync is a full memory fence on this architecture.
//
//go:nosplit
func DataSync() {
	fence.Add(1)
}

// InstructionSync is a full memory fence on this architecture.
//
//go:nosplit
func InstructionSync() {
	fence.Add(1)
}
