// Copyright 2018 Google LLC
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
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"
)

// GoogleEmitter is a wrapper that emits logs in a format compatible with
// package github.com/golang/glog:
//
//	Lmmdd hh:mm:ss.uuuuuu pid file:line] msg
//
// L is the level character (W, I or D) and pid is right-aligned in seven
// columns.
type GoogleEmitter struct {
	*Writer
}

var levelChars = [...]byte{Warning: 'W', Info: 'I', Debug: 'D'}

// header is the pid column, computed once.
var header = fmt.Sprintf(" %7d ", os.Getpid())

// caller returns the file base name and line of the frame depth levels above
// the caller of caller.
func caller(depth int) (string, int) {
	_, file, line, ok := runtime.Caller(depth + 2)
	if !ok {
		return "x", 0
	}
	return filepath.Base(file), line
}

// Emit emits the message, google-style.
func (g GoogleEmitter) Emit(depth int, level Level, timestamp time.Time, format string, args ...any) {
	c := byte('?')
	if int(level) < len(levelChars) {
		c = levelChars[level]
	}
	file, line := caller(depth)

	b := make([]byte, 0, 48+len(file)+len(format))
	b = append(b, c)
	b = timestamp.AppendFormat(b, "0102 15:04:05.000000")
	b = append(b, header...)
	b = fmt.Appendf(b, "%s:%d] ", file, line)
	b = append(b, format...)
	b = append(b, '\n')

	g.Writer.Emit(depth+1, level, timestamp, string(b), args...)
}
