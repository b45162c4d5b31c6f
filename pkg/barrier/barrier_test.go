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

package barrier

import (
	"testing"
)

func TestBarriers(t *testing.T) {
	// None of the barriers may fault in user mode.
	for name, fn := range map[string]func(){
		"csdb":    SpeculationBarrier,
		"dsb nsh": DataSync,
		"isb":     InstructionSync,
	} {
		t.Run(name, func(t *testing.T) {
			fn()
		})
	}
}

func BenchmarkSpeculationBarrier(b *testing.B) {
	for i := 0; i < b.N; i++ {
		SpeculationBarrier()
	}
}

func BenchmarkSetFSSequence(b *testing.B) {
	for i := 0; i < b.N; i++ {
		DataSync()
		InstructionSync()
	}
}
