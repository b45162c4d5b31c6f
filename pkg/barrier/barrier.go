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

// Package barrier exposes the speculation and ordering barriers used around
// bounds checks and address limit changes.
//
// On arm64 these are the real CSDB, DSB NSH and ISB instructions. On amd64
// LFENCE and MFENCE stand in for them. Other architectures fall back to a
// sequentially consistent atomic operation, which orders memory but does not
// constrain speculation.
package barrier
