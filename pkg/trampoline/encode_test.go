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
	"testing"
)

func TestEncodings(t *testing.T) {
	for _, tc := range []struct {
		instr Instr
		want  uint32
		asm   string
	}{
		{SubImm(SP, SP, 32), 0xd10083ff, "sub sp, sp, #32"},
		{AddImm(SP, SP, 32), 0x910083ff, "add sp, sp, #32"},
		{Stp(X2, X3, SP, 0), 0xa9000fe2, "stp x2, x3, [sp, #0]"},
		{Stp(X0, X1, SP, 16), 0xa90107e0, "stp x0, x1, [sp, #16]"},
		{Ldp(X2, X3, SP, 0), 0xa9400fe2, "ldp x2, x3, [sp, #0]"},
		{Ldp(X0, X1, SP, 16), 0xa94107e0, "ldp x0, x1, [sp, #16]"},
		{MovBitmask32(X0, 1, 0x20, 0x80008000), 0x320183e0, "mov w0, #0x80008000"},
		{SMC(0), 0xd4000003, "smc #0"},
		{HVC(0), 0xd4000002, "hvc #0"},
		{StpPre(X29, X30, SP, -16), 0xa9bf7bfd, "stp x29, x30, [sp, #-16]!"},
		{LdpPost(X29, X30, SP, 16), 0xa8c17bfd, "ldp x29, x30, [sp], #16"},
		{BL(4), 0x94000001, "bl .+4"},
		{NOP, 0xd503201f, "nop"},
		{CSDB, 0xd503229f, "csdb"},
	} {
		t.Run(tc.asm, func(t *testing.T) {
			if tc.instr.Word != tc.want {
				t.Errorf("got %#08x, want %#08x", tc.instr.Word, tc.want)
			}
			if tc.instr.Asm != tc.asm {
				t.Errorf("got asm %q, want %q", tc.instr.Asm, tc.asm)
			}
		})
	}
}

func TestBLBackwards(t *testing.T) {
	if got, want := BL(-4).Word, uint32(0x97ffffff); got != want {
		t.Errorf("BL(-4) = %#08x, want %#08x", got, want)
	}
}
