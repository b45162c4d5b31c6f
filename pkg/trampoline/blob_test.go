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
	"strings"
	"testing"
)

func TestSequenceLengths(t *testing.T) {
	for _, tc := range []struct {
		kind Kind
		want int
	}{
		{None, 0},
		{SMCWorkaround1, 8},
		{HVCWorkaround1, 8},
		{LinkStackSanitize, 18},
		{numKinds, 0},
	} {
		if got := len(Sequence(tc.kind)); got != tc.want {
			t.Errorf("len(Sequence(%v)) = %d, want %d", tc.kind, got, tc.want)
		}
	}
}

func TestImageLayout(t *testing.T) {
	for _, k := range Kinds() {
		t.Run(k.String(), func(t *testing.T) {
			img := Image(k)
			seq := Sequence(k)
			for e := 0; e < NumEntries; e++ {
				base := e * EntrySize / 4
				for i := 0; i < EntrySize/4; i++ {
					want := NOP.Word
					if i < len(seq) {
						want = seq[i].Word
					}
					if got := img.Word(base + i); got != want {
						t.Fatalf("entry %d word %d = %#08x, want %#08x", e, i, got, want)
					}
				}
			}
		})
	}
}

func TestImagesDistinct(t *testing.T) {
	seen := make(map[Blob]Kind)
	for _, k := range Kinds() {
		img := Image(k)
		if other, ok := seen[img]; ok {
			t.Errorf("%v and %v share an image", k, other)
		}
		seen[img] = k
	}
	if Image(None) != (Blob{}) {
		t.Errorf("Image(None) is not empty")
	}
	if Image(numKinds) != (Blob{}) {
		t.Errorf("Image of an invalid kind is not empty")
	}
}

func TestImageIsCopy(t *testing.T) {
	img := Image(SMCWorkaround1)
	img[0] ^= 0xff
	if Image(SMCWorkaround1) == img {
		t.Errorf("modifying a returned image changed the template")
	}
}

func TestDump(t *testing.T) {
	img := Image(HVCWorkaround1)
	dump := img.Dump(HVCWorkaround1)
	if got := strings.Count(dump, "\n"); got != 8 {
		t.Errorf("dump has %d lines, want 8:\n%s", got, dump)
	}
	if !strings.Contains(dump, "0010:\td4000002\thvc #0") {
		t.Errorf("dump missing hvc:\n%s", dump)
	}
}

func TestKindText(t *testing.T) {
	for _, k := range append(Kinds(), None) {
		b, err := k.MarshalText()
		if err != nil {
			t.Fatalf("MarshalText(%v): %v", k, err)
		}
		var got Kind
		if err := got.UnmarshalText(b); err != nil || got != k {
			t.Errorf("UnmarshalText(%q) = %v, %v; want %v", b, got, err, k)
		}
	}
	var k Kind
	if err := k.UnmarshalText([]byte("bogus")); err == nil {
		t.Errorf("UnmarshalText(bogus) succeeded")
	}
}
