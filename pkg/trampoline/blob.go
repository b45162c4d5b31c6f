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
	"strings"
)

const (
	// BlobSize is the size of a vector image.
	BlobSize = 2048

	// EntrySize is the size of one exception vector entry.
	EntrySize = 0x80

	// NumEntries is the number of vector entries in a Blob.
	NumEntries = BlobSize / EntrySize

	// blobWords is the number of 64-bit words in a Blob.
	blobWords = BlobSize / 8

	// archWorkaround1 is the SMCCC_ARCH_WORKAROUND_1 function id. As a
	// logical immediate it is the 16-bit element 0x8000 replicated: a
	// single set bit (imms=0b100000) rotated right by one (immr=1).
	archWorkaround1      = 0x80008000
	archWorkaround1Immr  = 1
	archWorkaround1Imms  = 0x20
	linkStackDepth       = 16
	workaroundFrameBytes = 8 * 4
)

// Blob is a vector image. Every entry starts with the trampoline sequence
// and is padded with NOP.
type Blob [BlobSize]byte

// Sequence returns the instructions executed on entry for kind k. It
// returns nil for None and invalid kinds.
func Sequence(k Kind) []Instr {
	switch k {
	case SMCWorkaround1:
		return workaround1(SMC(0))
	case HVCWorkaround1:
		return workaround1(HVC(0))
	case LinkStackSanitize:
		seq := []Instr{StpPre(X29, X30, SP, -16)}
		for i := 0; i < linkStackDepth; i++ {
			seq = append(seq, BL(4))
		}
		return append(seq, LdpPost(X29, X30, SP, 16))
	default:
		return nil
	}
}

// workaround1 preserves x0-x3 around an SMCCC_ARCH_WORKAROUND_1 call.
func workaround1(call Instr) []Instr {
	return []Instr{
		SubImm(SP, SP, workaroundFrameBytes),
		Stp(X2, X3, SP, 0),
		Stp(X0, X1, SP, 16),
		MovBitmask32(X0, archWorkaround1Immr, archWorkaround1Imms, archWorkaround1),
		call,
		Ldp(X2, X3, SP, 0),
		Ldp(X0, X1, SP, 16),
		AddImm(SP, SP, workaroundFrameBytes),
	}
}

// images holds the read-only image of every kind, indexed by Kind.
var images [numKinds]Blob

func init() {
	for k := Kind(0); k < numKinds; k++ {
		images[k] = build(Sequence(k))
	}
}

// build lays seq out at the start of every vector entry.
func build(seq []Instr) Blob {
	if len(seq)*4 > EntrySize {
		panic(fmt.Sprintf("trampoline sequence of %d instructions exceeds a vector entry", len(seq)))
	}
	var b Blob
	for e := 0; e < NumEntries; e++ {
		entry := b[e*EntrySize : (e+1)*EntrySize]
		for i := 0; i < EntrySize/4; i++ {
			w := NOP.Word
			if i < len(seq) {
				w = seq[i].Word
			}
			binary.LittleEndian.PutUint32(entry[i*4:], w)
		}
	}
	return b
}

// Image returns a copy of the vector image of kind k. The image of None is
// all zeroes.
func Image(k Kind) Blob {
	if !k.Valid() || k == None {
		return Blob{}
	}
	return images[k]
}

// Word returns the i-th instruction word of the blob.
func (b *Blob) Word(i int) uint32 {
	return binary.LittleEndian.Uint32(b[i*4:])
}

// Dump formats the first entry of the blob, stopping at the NOP padding.
func (b *Blob) Dump(k Kind) string {
	var sb strings.Builder
	seq := Sequence(k)
	for i := 0; i < EntrySize/4; i++ {
		w := b.Word(i)
		if w == NOP.Word && i >= len(seq) {
			break
		}
		asm := "?"
		if i < len(seq) && seq[i].Word == w {
			asm = seq[i].Asm
		}
		fmt.Fprintf(&sb, "%04x:\t%08x\t%s\n", i*4, w, asm)
	}
	return sb.String()
}
