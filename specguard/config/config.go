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

// Package config provides basic infrastructure to set configuration settings
// for specguard. Each setting that can be changed from the command line is
// defined by a field in Config tagged with the name of its flag.
package config

import (
	"fmt"

	"gvisor.dev/specguard/pkg/log"
	"gvisor.dev/specguard/pkg/smccc"
)

// Config holds configuration that is not part of a platform description.
type Config struct {
	// LogFilename is the filename to log to, if not empty.
	LogFilename string `flag:"log"`

	// LogFormat is the log format.
	LogFormat string `flag:"log-format"`

	// Debug indicates that debug logging should be enabled.
	Debug bool `flag:"debug"`

	// DebugLog is the path to log debug information to, if not empty.
	DebugLog string `flag:"debug-log"`

	// DebugLogFormat is the log format for debug.
	DebugLogFormat string `flag:"debug-log-format"`

	// AlsoLogToStderr allows to send log messages to stderr.
	AlsoLogToStderr bool `flag:"alsologtostderr"`

	// CPUInfo is the file processor identities are read from when no
	// platform description is given.
	CPUInfo string `flag:"cpuinfo"`

	// Platform is the path to a platform description. If set, it replaces
	// CPUInfo and Conduit.
	Platform string `flag:"platform"`

	// Conduit is the conduit firmware is reached through when no platform
	// description is given. Firmware behind it implements
	// SMCCC_ARCH_WORKAROUND_1.
	Conduit smccc.Conduit `flag:"conduit"`
}

func (c *Config) validate() error {
	for _, format := range []string{c.LogFormat, c.DebugLogFormat} {
		if format != "text" && format != "json" {
			return fmt.Errorf("invalid log format %q, must be 'text' or 'json'", format)
		}
	}
	if c.CPUInfo == "" && c.Platform == "" {
		return fmt.Errorf("one of --cpuinfo or --platform must be set")
	}
	return nil
}

// Log logs important aspects of the configuration to the given log function.
func (c *Config) Log() {
	log.Infof("Config:")
	for _, f := range c.ToFlags() {
		log.Infof("\t%s", f)
	}
}
