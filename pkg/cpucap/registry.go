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
	"context"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
	"gvisor.dev/specguard/pkg/atomicbitops"
	"gvisor.dev/specguard/pkg/cpuid"
	"gvisor.dev/specguard/pkg/errors/linuxerr"
	"gvisor.dev/specguard/pkg/log"
	"gvisor.dev/specguard/pkg/smccc"
	"gvisor.dev/specguard/pkg/sync"
	"gvisor.dev/specguard/pkg/trampoline"
)

// cpuSlot is the registry's view of one processor.
type cpuSlot struct {
	// mu serializes hook runs on this processor.
	mu sync.Mutex

	// id is the identity hooks last ran against. Protected by mu.
	id *cpuid.Identity

	// state is the published snapshot, nil while offline.
	state atomic.Pointer[State]

	// warned has bit c set once unavailability of Cap c was logged.
	warned atomicbitops.Uint64
}

// Registry tracks capabilities and mitigations of every processor.
//
// Processors are independent: hooks on different processors run
// concurrently, and hooks on the same processor are serialized.
type Registry struct {
	table   []Descriptor
	neg     *smccc.Negotiator
	vectors *trampoline.Table
	cpus    []cpuSlot

	// log receives unavailability reports.
	log log.Logger
}

// New returns a registry for the processors of vectors, all offline. neg is
// the firmware interface probed at boot; nil means no firmware.
func New(neg *smccc.Negotiator, vectors *trampoline.Table) *Registry {
	if neg == nil {
		neg = smccc.Probe(nil, smccc.ConduitNone)
	}
	return &Registry{
		table:   table,
		neg:     neg,
		vectors: vectors,
		cpus:    make([]cpuSlot, vectors.NumCPUs()),
		log:     log.Log(),
	}
}

// NumCPUs returns the number of processor slots.
func (r *Registry) NumCPUs() int {
	return len(r.cpus)
}

// Negotiator returns the firmware negotiator.
func (r *Registry) Negotiator() *smccc.Negotiator {
	return r.neg
}

func (r *Registry) slot(cpu int) (*cpuSlot, error) {
	if cpu < 0 || cpu >= len(r.cpus) {
		return nil, fmt.Errorf("cpu %d out of range [0, %d): %w", cpu, len(r.cpus), linuxerr.EINVAL)
	}
	return &r.cpus[cpu], nil
}

// Online brings up the slot of cpu with no capabilities. Onlining an online
// processor has no effect.
func (r *Registry) Online(cpu int) error {
	s, err := r.slot(cpu)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Load() != nil {
		return nil
	}
	if err := r.vectors.Online(cpu); err != nil {
		return err
	}
	s.state.Store(&State{CPU: cpu, Online: true})
	return nil
}

// Offline unpublishes the trampoline of cpu, waits for crossings in
// progress and drops its state.
func (r *Registry) Offline(cpu int) error {
	s, err := r.slot(cpu)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := r.vectors.Offline(cpu); err != nil {
		return err
	}
	s.state.Store(nil)
	s.id = nil
	log.Debugf("cpu%d: offline", cpu)
	return nil
}

// DetectAndEnable runs the hook of every descriptor matching id on cpu, which
// must be online. A failing hook marks its capability unavailable and does
// not stop the others. Running it again with the same identity and firmware
// converges to the same state.
func (r *Registry) DetectAndEnable(cpu int, id cpuid.Identity) error {
	s, err := r.slot(cpu)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.state.Load()
	if prev == nil {
		return fmt.Errorf("cpu %d is offline: %w", cpu, linuxerr.ENODEV)
	}

	st := State{
		CPU:        cpu,
		Online:     true,
		Trampoline: prev.Trampoline,
		Conduit:    prev.Conduit,
		Installed:  prev.Installed,
	}
	for i := range r.table {
		d := &r.table[i]
		if !d.Match.Matches(id) {
			continue
		}
		st.Detected = st.Detected.Add(d.Cap)
		if err := r.enable(cpu, d, &st); err != nil {
			st.Unavailable = st.Unavailable.Add(d.Cap)
			r.warnOnce(s, cpu, d, err)
			continue
		}
		st.Enabled = st.Enabled.Add(d.Cap)
	}
	st.Unavailable &^= st.Enabled

	s.id = &id
	s.state.Store(&st)
	return nil
}

// enable runs d's hook on cpu.
func (r *Registry) enable(cpu int, d *Descriptor, st *State) error {
	switch d.Hook {
	case HookNone:
		return nil
	case HookSMCCCArchWorkaround1:
		return r.harden(cpu, smccc.WorkaroundArch1, st)
	case HookQcomLinkStack:
		return r.harden(cpu, smccc.WorkaroundLinkStack, st)
	case HookSpeculationBarrier:
		st.Barrier = true
		return nil
	default:
		return fmt.Errorf("unknown hook %v: %w", d.Hook, linuxerr.EINVAL)
	}
}

// harden negotiates w and installs the selected trampoline. A negative
// answer leaves the vector area untouched.
func (r *Registry) harden(cpu int, w smccc.Workaround, st *State) error {
	sel, ok := r.neg.Negotiate(w)
	if !ok {
		return fmt.Errorf("%v over %v: %w", w, r.neg.Conduit(), linuxerr.EOPNOTSUPP)
	}
	if err := r.vectors.Install(cpu, sel.Kind); err != nil {
		return fmt.Errorf("installing %v: %w", sel.Kind, err)
	}
	st.Trampoline = sel.Kind
	st.Conduit = sel.Conduit
	st.Installed = true
	return nil
}

func (r *Registry) warnOnce(s *cpuSlot, cpu int, d *Descriptor, err error) {
	if s.warned.TestAndSet(1 << d.Cap) {
		return
	}
	r.log.Warningf("cpu%d: %v (%s) unavailable: %v", cpu, d.Cap, d.Desc, err)
}

// BringUp onlines every processor in ids and runs its hooks. Processors are
// brought up in parallel. Only an invalid processor number or cancellation
// of ctx fails it; unavailable capabilities are recorded in each State.
func (r *Registry) BringUp(ctx context.Context, ids []cpuid.Identity) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, id := range ids {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := r.Online(id.Processor); err != nil {
				return err
			}
			return r.DetectAndEnable(id.Processor, id)
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("bringing up %d processors: %w", len(ids), err)
	}
	log.Infof("Brought up %d processors", len(ids))
	return nil
}

// Resume runs the hooks of cpu again with the identity of its last run, as
// when the processor returns from a low power state that lost its vector
// configuration.
func (r *Registry) Resume(cpu int) error {
	s, err := r.slot(cpu)
	if err != nil {
		return err
	}
	s.mu.Lock()
	id := s.id
	s.mu.Unlock()
	if id == nil {
		return fmt.Errorf("cpu %d has no identity: %w", cpu, linuxerr.ENODEV)
	}
	return r.DetectAndEnable(cpu, *id)
}

// State returns the current state of cpu. Offline and out of range
// processors have the zero state.
func (r *Registry) State(cpu int) State {
	s, err := r.slot(cpu)
	if err != nil {
		return State{CPU: cpu}
	}
	if st := s.state.Load(); st != nil {
		return *st
	}
	return State{CPU: cpu}
}

// States returns the state of every processor.
func (r *Registry) States() []State {
	states := make([]State, len(r.cpus))
	for i := range states {
		states[i] = r.State(i)
	}
	return states
}

// SystemHas returns true if c is enabled on any online processor.
func (r *Registry) SystemHas(c Cap) bool {
	for i := range r.cpus {
		if st := r.cpus[i].state.Load(); st != nil && st.Enabled.Has(c) {
			return true
		}
	}
	return false
}

// HardenBranchPredictor returns true if crossings into the privileged vectors
// must harden the branch predictor.
func (r *Registry) HardenBranchPredictor() bool {
	return r.SystemHas(HardenBranchPredictor)
}

// Cross is the guarded dispatcher hook run on every crossing of cpu into its
// privileged vectors: it runs the mitigation of the installed trampoline and
// returns its kind, or trampoline.None if nothing ran.
func (r *Registry) Cross(cpu int) trampoline.Kind {
	return r.vectors.Cross(cpu, func(k trampoline.Kind, _ *trampoline.Blob) {
		switch k {
		case trampoline.SMCWorkaround1:
			r.neg.Invoke(smccc.Selection{Kind: k, Conduit: smccc.ConduitSMC})
		case trampoline.HVCWorkaround1:
			r.neg.Invoke(smccc.Selection{Kind: k, Conduit: smccc.ConduitHVC})
		case trampoline.LinkStackSanitize:
			sanitizeLinkStack(linkStackDepth)
		}
	})
}

// linkStackDepth is the number of nested calls that overwrite every entry
// of the return address predictor.
const linkStackDepth = 16

//go:noinline
func sanitizeLinkStack(depth int) int {
	if depth == 0 {
		return 0
	}
	return sanitizeLinkStack(depth-1) + 1
}
