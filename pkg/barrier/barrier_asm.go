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

//go:build arm64 || amd64
// +build arm64 amd64

package barrier

// SpeculationBarrier prevents later instructions from speculatively consuming
// the result of an earlier conditional select or mask.
//
//go:noescape
func SpeculationBarrier()

// DataSync waits for outstanding memory accesses on this processor to
// complete before continuing.
//
//go:noescape
func DataSync()

// InstructionSync flushes the pipeline so that later instructions observe
// all prior context changes.
//
//go:noescape
func InstructionSync()
