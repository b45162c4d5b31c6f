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

// Package cli is the main entrypoint for specguard.
package cli

import (
	"context"
	"io"
	"os"
	"runtime"

	"github.com/google/subcommands"
	"gvisor.dev/specguard/pkg/log"
	"gvisor.dev/specguard/specguard/cmd"
	"gvisor.dev/specguard/specguard/cmd/util"
	"gvisor.dev/specguard/specguard/config"
	"gvisor.dev/specguard/specguard/flag"
)

// Main is the main entrypoint.
func Main() {
	// Register all commands.
	forEachCmd(subcommands.Register)

	// Register with the main command line.
	config.RegisterFlags(flag.CommandLine)

	// All subcommands must be registered before flag parsing.
	flag.Parse()

	// Create a new Config from the flags.
	conf, err := config.NewFromFlags(flag.CommandLine)
	if err != nil {
		util.Fatalf("%v", err)
	}

	if conf.LogFilename != "" {
		util.ErrorLogger = openLog(conf.LogFilename)
	}
	setupLogging(conf)

	const delimString = `************** specguard **************`
	log.Infof(delimString)
	log.Infof("%s, %s, %d CPUs, %s, PID %d", runtime.Version(), runtime.GOARCH, runtime.NumCPU(), runtime.GOOS, os.Getpid())
	log.Infof("Args: %v", os.Args)
	conf.Log()
	log.Infof(delimString)

	// Call the subcommand and pass in the configuration.
	subcmdCode := subcommands.Execute(context.Background(), conf)
	if subcmdCode != subcommands.ExitSuccess {
		log.Warningf("Failure to execute command, err: %v", subcmdCode)
	}
	os.Exit(int(subcmdCode))
}

// forEachCmd invokes the passed callback for each command supported by
// specguard.
func forEachCmd(cb func(cmd subcommands.Command, group string)) {
	// Help and flags commands are generated automatically.
	cb(subcommands.HelpCommand(), "")
	cb(subcommands.FlagsCommand(), "")
	cb(subcommands.CommandsCommand(), "")

	cb(new(cmd.Detect), "")
	cb(new(cmd.BringUp), "")
	cb(new(cmd.Vectors), "")

	const debugGroup = "debug"
	cb(new(cmd.Check), debugGroup)
}

// setupLogging points the global logger at the destinations conf names.
// Stdout carries command output, so with none the logs are discarded.
func setupLogging(conf *config.Config) {
	if conf.Debug {
		log.SetLevel(log.Debug)
	}

	var emitters log.MultiEmitter
	if conf.DebugLog != "" {
		emitters = append(emitters, newEmitter(conf.DebugLogFormat, openLog(conf.DebugLog)))
	}
	if conf.AlsoLogToStderr {
		emitters = append(emitters, newEmitter(conf.DebugLogFormat, os.Stderr))
	}
	if util.ErrorLogger != nil {
		emitters = append(emitters, newEmitter(conf.LogFormat, util.ErrorLogger))
	}

	switch len(emitters) {
	case 0:
		log.SetTarget(newEmitter("text", io.Discard))
	case 1:
		log.SetTarget(emitters[0])
	default:
		log.SetTarget(&emitters)
	}
}

func openLog(path string) *os.File {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		util.Fatalf("error opening log file %q: %v", path, err)
	}
	return f
}

func newEmitter(format string, logFile io.Writer) log.Emitter {
	emitter, err := log.ParseFormat(format, logFile)
	if err != nil {
		util.Fatalf("%v", err)
	}
	return emitter
}
