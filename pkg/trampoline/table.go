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

package trampoline

import (
	"encoding/binary"
	"fmt"
	"sync/atomic"

	"gvisor.dev/specguard/pkg/atomicbitops"
	"gvisor.dev/specguard/pkg/errors/linuxerr"
	"gvisor.dev/specguard/pkg/log"
	"gvisor.dev/specguard/pkg/sync"
)

// slot is the reserved storage for one kind's image. Words are accessed
// atomically inside seq's reader and writer sections, so a reader racing
// with a writer observes the epoch change and retries instead of acting on
// a torn image.
type slot struct {
	seq   sync.SeqCount
	words [blobWords]atomic.Uint64
}

// store copies b into the slot. The caller must hold the area's writer
// lock.
func (s *slot) store(b *Blob) {
	s.seq.BeginWrite()
	for i := range s.words {
		s.words[i].Store(binary.LittleEndian.Uint64(b[i*8:]))
	}
	s.seq.EndWrite()
}

// load copies the slot into b.
func (s *slot) load(b *Blob) {
	for {
		epoch := s.seq.BeginRead()
		for i := range s.words {
			binary.LittleEndian.PutUint64(b[i*8:], s.words[i].Load())
		}
		if s.seq.ReadOk(epoch) {
			return
		}
	}
}

// VectorArea is the privileged vector storage of one processor.
type VectorArea struct {
	// gate is entered by every crossing and installation; Offline closes
	// it and waits for them.
	gate sync.Gate

	// mu serializes installers of this area.
	mu sync.Mutex

	// active is the published Kind.
	active atomic.Uint32

	// installs counts successful install operations, including
	// re-installs of the active kind.
	installs atomicbitops.Uint64

	// slots is indexed by Kind. The None slot is never written.
	slots [numKinds]slot
}

// Table is the set of vector areas, indexed by processor.
type Table struct {
	areas []atomic.Pointer[VectorArea]
}

// NewTable returns a table for ncpu processors, all offline.
func NewTable(ncpu int) *Table {
	return &Table{areas: make([]atomic.Pointer[VectorArea], ncpu)}
}

// NumCPUs returns the number of processor slots.
func (t *Table) NumCPUs() int {
	return len(t.areas)
}

func (t *Table) area(cpu int) (*VectorArea, error) {
	if cpu < 0 || cpu >= len(t.areas) {
		return nil, fmt.Errorf("cpu %d out of range [0, %d): %w", cpu, len(t.areas), linuxerr.EINVAL)
	}
	a := t.areas[cpu].Load()
	if a == nil {
		return nil, fmt.Errorf("cpu %d is offline: %w", cpu, linuxerr.ENODEV)
	}
	return a, nil
}

// Online allocates the vector area of cpu with the empty trampoline
// published. Onlining an online processor keeps its area.
func (t *Table) Online(cpu int) error {
	if cpu < 0 || cpu >= len(t.areas) {
		return fmt.Errorf("cpu %d out of range [0, %d): %w", cpu, len(t.areas), linuxerr.EINVAL)
	}
	if t.areas[cpu].CompareAndSwap(nil, &VectorArea{}) {
		log.Debugf("cpu%d: vector area allocated", cpu)
	}
	return nil
}

// Offline unpublishes the vector area of cpu and waits for crossings and
// installations in progress to leave it.
func (t *Table) Offline(cpu int) error {
	if cpu < 0 || cpu >= len(t.areas) {
		return fmt.Errorf("cpu %d out of range [0, %d): %w", cpu, len(t.areas), linuxerr.EINVAL)
	}
	a := t.areas[cpu].Swap(nil)
	if a == nil {
		return nil
	}
	a.gate.Close()
	log.Debugf("cpu%d: vector area released", cpu)
	return nil
}

// Install copies the image of kind k into cpu's slot for k and then
// publishes k. Installing None publishes the empty trampoline.
//
// Installing the active kind again rewrites identical bytes; crossings keep
// running it throughout.
func (t *Table) Install(cpu int, k Kind) error {
	if !k.Valid() {
		return fmt.Errorf("install %v: %w", k, linuxerr.EINVAL)
	}
	img := Image(k)
	return t.install(cpu, k, &img)
}

// install is Install with an explicit image.
func (t *Table) install(cpu int, k Kind, img *Blob) error {
	a, err := t.area(cpu)
	if err != nil {
		return err
	}
	if !a.gate.Enter() {
		return fmt.Errorf("cpu %d is going offline: %w", cpu, linuxerr.ENODEV)
	}
	defer a.gate.Leave()

	a.mu.Lock()
	defer a.mu.Unlock()
	if k != None {
		a.slots[k].store(img)
	}
	// The slot's writer section is complete; a single store publishes it.
	a.active.Store(uint32(k))
	a.installs.Add(1)
	return nil
}

// Active returns the published kind of cpu, or None if it is offline.
func (t *Table) Active(cpu int) Kind {
	a, err := t.area(cpu)
	if err != nil {
		return None
	}
	return Kind(a.active.Load())
}

// Installs returns the number of install operations performed on cpu since
// it came online. Idempotent re-installs of the active kind are counted too,
// so it is not the number of trampolines installed; Active reports that.
func (t *Table) Installs(cpu int) uint64 {
	a, err := t.area(cpu)
	if err != nil {
		return 0
	}
	return a.installs.Load()
}

// Load returns the published kind of cpu and a consistent copy of its
// image. An offline processor has the empty trampoline.
func (t *Table) Load(cpu int) (Kind, Blob) {
	var b Blob
	k := t.Cross(cpu, func(_ Kind, img *Blob) {
		b = *img
	})
	return k, b
}

// Cross is the guarded dispatcher: it reads the published kind of cpu and,
// if it is not None, runs fn with a consistent copy of the image. The area
// cannot be released while fn runs. Cross returns the kind that ran.
func (t *Table) Cross(cpu int, fn func(Kind, *Blob)) Kind {
	a, err := t.area(cpu)
	if err != nil || !a.gate.Enter() {
		return None
	}
	defer a.gate.Leave()

	k := Kind(a.active.Load())
	if k == None {
		return None
	}
	var b Blob
	a.slots[k].load(&b)
	fn(k, &b)
	return k
}
