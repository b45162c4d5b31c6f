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
	"fmt"
)

// Instr is an encoded A64 instruction with its assembly text.
type Instr struct {
	Word uint32
	Asm  string
}

// String implements fmt.Stringer.
func (i Instr) String() string {
	return fmt.Sprintf("%08x\t%s", i.Word, i.Asm)
}

// Reg is a general purpose register number. Register 31 is sp or zr
// depending on the instruction.
type Reg uint32

// Registers used by the trampolines.
const (
	X0  Reg = 0
	X1  Reg = 1
	X2  Reg = 2
	X3  Reg = 3
	X29 Reg = 29
	X30 Reg = 30
	SP  Reg = 31
)

func (r Reg) name(zr bool) string {
	if r == SP {
		if zr {
			return "xzr"
		}
		return "sp"
	}
	return fmt.Sprintf("x%d", uint32(r))
}

// Fixed encodings.
var (
	NOP  = Instr{0xd503201f, "nop"}
	CSDB = Instr{0xd503229f, "csdb"}
)

// SubImm encodes "sub rd, rn, #imm" for a 12-bit unsigned immediate.
func SubImm(rd, rn Reg, imm uint32) Instr {
	return Instr{
		Word: 0xd1000000 | (imm&0xfff)<<10 | uint32(rn)<<5 | uint32(rd),
		Asm:  fmt.Sprintf("sub %s, %s, #%d", rd.name(false), rn.name(false), imm),
	}
}

// AddImm encodes "add rd, rn, #imm" for a 12-bit unsigned immediate.
func AddImm(rd, rn Reg, imm uint32) Instr {
	return Instr{
		Word: 0x91000000 | (imm&0xfff)<<10 | uint32(rn)<<5 | uint32(rd),
		Asm:  fmt.Sprintf("add %s, %s, #%d", rd.name(false), rn.name(false), imm),
	}
}

// pair encodes the 64-bit load/store pair family. off is a byte offset and
// must be a multiple of 8 in [-512, 504].
func pair(base uint32, rt, rt2, rn Reg, off int32) uint32 {
	imm7 := uint32(off/8) & 0x7f
	return base | imm7<<15 | uint32(rt2)<<10 | uint32(rn)<<5 | uint32(rt)
}

// Stp encodes "stp rt, rt2, [rn, #off]".
func Stp(rt, rt2, rn Reg, off int32) Instr {
	return Instr{
		Word: pair(0xa9000000, rt, rt2, rn, off),
		Asm:  fmt.Sprintf("stp %s, %s, [%s, #%d]", rt.name(true), rt2.name(true), rn.name(false), off),
	}
}

// Ldp encodes "ldp rt, rt2, [rn, #off]".
func Ldp(rt, rt2, rn Reg, off int32) Instr {
	return Instr{
		Word: pair(0xa9400000, rt, rt2, rn, off),
		Asm:  fmt.Sprintf("ldp %s, %s, [%s, #%d]", rt.name(true), rt2.name(true), rn.name(false), off),
	}
}

// StpPre encodes "stp rt, rt2, [rn, #off]!".
func StpPre(rt, rt2, rn Reg, off int32) Instr {
	return Instr{
		Word: pair(0xa9800000, rt, rt2, rn, off),
		Asm:  fmt.Sprintf("stp %s, %s, [%s, #%d]!", rt.name(true), rt2.name(true), rn.name(false), off),
	}
}

// LdpPost encodes "ldp rt, rt2, [rn], #off".
func LdpPost(rt, rt2, rn Reg, off int32) Instr {
	return Instr{
		Word: pair(0xa8c00000, rt, rt2, rn, off),
		Asm:  fmt.Sprintf("ldp %s, %s, [%s], #%d", rt.name(true), rt2.name(true), rn.name(false), off),
	}
}

// MovBitmask32 encodes "mov wd, #imm" as ORR wd, wzr, #imm for a 32-bit
// logical immediate described by its immr and imms fields.
func MovBitmask32(rd Reg, immr, imms uint32, imm uint32) Instr {
	return Instr{
		Word: 0x32000000 | (immr&0x3f)<<16 | (imms&0x3f)<<10 | uint32(SP)<<5 | uint32(rd),
		Asm:  fmt.Sprintf("mov w%d, #%#x", uint32(rd), imm),
	}
}

// SMC encodes "smc #imm".
func SMC(imm uint16) Instr {
	return Instr{0xd4000003 | uint32(imm)<<5, fmt.Sprintf("smc #%d", imm)}
}

// HVC encodes "hvc #imm".
func HVC(imm uint16) Instr {
	return Instr{0xd4000002 | uint32(imm)<<5, fmt.Sprintf("hvc #%d", imm)}
}

// BL encodes "bl .+off" for a word aligned PC relative offset.
func BL(off int32) Instr {
	return Instr{0x94000000 | uint32(off/4)&0x3ffffff, fmt.Sprintf("bl .%+d", off)}
}
