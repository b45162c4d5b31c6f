// Copyright 2018 The gVisor Authors.
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
package log

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestLevelText(t *testing.T) {
	for _, tc := range []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{in: "warning", want: Warning},
		{in: "INFO", want: Info},
		{in: "debug", want: Debug},
		{in: "2", want: Debug},
		{in: "3", wantErr: true},
		{in: "verbose", wantErr: true},
	} {
		t.Run(tc.in, func(t *testing.T) {
			var l Level
			err := l.UnmarshalText([]byte(tc.in))
			if gotErr := err != nil; gotErr != tc.wantErr {
				t.Fatalf("UnmarshalText(%q) error = %v, wantErr %t", tc.in, err, tc.wantErr)
			}
			if err == nil && l != tc.want {
				t.Errorf("UnmarshalText(%q) = %v, want %v", tc.in, l, tc.want)
			}
		})
	}
	if _, err := Level(7).MarshalText(); err == nil {
		t.Errorf("MarshalText of an unknown level succeeded")
	}
}

func TestLevelJSON(t *testing.T) {
	var got []Level
	if err := json.Unmarshal([]byte(`["warning", 1, "debug"]`), &got); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if want := []Level{Warning, Info, Debug}; !cmp.Equal(got, want) {
		t.Errorf("levels mismatch (-want +got):\n%s", cmp.Diff(want, got))
	}
	b, err := json.Marshal(got)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if want := `["warning","info","debug"]`; string(b) != want {
		t.Errorf("Marshal = %s, want %s", b, want)
	}
}

func TestJSONEmitter(t *testing.T) {
	var buf bytes.Buffer
	e := JSONEmitter{&Writer{Next: &buf}}
	ts := time.Date(2021, time.May, 7, 13, 4, 5, 0, time.UTC)
	e.Emit(0, Warning, ts, "cpu %d: %s", 1, "hardening unavailable")

	line := buf.String()
	if strings.Count(line, "\n") != 1 {
		t.Fatalf("want exactly one line, got %q", line)
	}
	var got jsonLog
	if err := json.Unmarshal([]byte(line), &got); err != nil {
		t.Fatalf("Unmarshal(%q) failed: %v", line, err)
	}
	if !strings.HasPrefix(got.Caller, "json_test.go:") {
		t.Errorf("caller = %q, want json_test.go:<line>", got.Caller)
	}
	want := jsonLog{Msg: "cpu 1: hardening unavailable", Level: Warning, Time: ts, Caller: got.Caller}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("log line mismatch (-want +got):\n%s", diff)
	}
}
