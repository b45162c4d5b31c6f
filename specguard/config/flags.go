// Copyright 2020 The gVisor Authors.
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

package config

import (
	"fmt"
	"reflect"
	"strconv"

	"gvisor.dev/specguard/pkg/cpuid"
	"gvisor.dev/specguard/pkg/smccc"
	"gvisor.dev/specguard/specguard/flag"
)

// RegisterFlags registers flags used to populate Config.
func RegisterFlags(flagSet *flag.FlagSet) {
	// Logging flags.
	flagSet.String("log", "", "file path where internal debug information is written, default is stdout.")
	flagSet.String("log-format", "text", "log format: text (default) or json.")
	flagSet.Bool("debug", false, "enable debug logging.")
	flagSet.String("debug-log", "", "additional location for logs.")
	flagSet.String("debug-log-format", "text", "log format: text (default) or json.")
	flagSet.Bool("alsologtostderr", false, "send log messages to stderr.")

	// Flags that select the machine.
	flagSet.String("cpuinfo", cpuid.CPUInfoPath, "file processor identities are read from.")
	flagSet.String("platform", "", "path to a TOML or YAML platform description. Overrides --cpuinfo and --conduit.")
	flagSet.Var(conduitPtr(smccc.ConduitNone), "conduit", "firmware conduit of the host: none (default), hvc, smc.")
}

func conduitPtr(c smccc.Conduit) *smccc.Conduit {
	return &c
}

// flagFields calls fn for every Config field tagged with a flag name,
// passing the field and the flag of that name in flagSet.
func (c *Config) flagFields(flagSet *flag.FlagSet, fn func(field reflect.Value, fl *flag.Flag)) {
	obj := reflect.ValueOf(c).Elem()
	for _, sf := range reflect.VisibleFields(obj.Type()) {
		name, ok := sf.Tag.Lookup("flag")
		if !ok {
			continue
		}
		fl := flagSet.Lookup(name)
		if fl == nil {
			panic(fmt.Sprintf("field %s: flag %q not registered", sf.Name, name))
		}
		fn(obj.FieldByIndex(sf.Index), fl)
	}
}

// NewFromFlags creates a new Config with values coming from command line flags.
func NewFromFlags(flagSet *flag.FlagSet) (*Config, error) {
	conf := &Config{}
	conf.flagFields(flagSet, func(field reflect.Value, fl *flag.Flag) {
		field.Set(reflect.ValueOf(flag.Get(fl.Value)))
	})
	if err := conf.validate(); err != nil {
		return nil, err
	}
	return conf, nil
}

// ToFlags returns the command line flags that reproduce c, omitting those
// left at their defaults.
func (c *Config) ToFlags() []string {
	defaults := flag.NewFlagSet("defaults", flag.ContinueOnError)
	RegisterFlags(defaults)

	var rv []string
	c.flagFields(defaults, func(field reflect.Value, fl *flag.Flag) {
		if val := flagValue(field); val != fl.DefValue {
			rv = append(rv, fmt.Sprintf("--%s=%s", fl.Name, val))
		}
	})
	return rv
}

// flagValue formats field the way the flag package formats its default.
func flagValue(field reflect.Value) string {
	if s, ok := field.Addr().Interface().(fmt.Stringer); ok {
		return s.String()
	}
	switch field.Kind() {
	case reflect.Bool:
		return strconv.FormatBool(field.Bool())
	case reflect.String:
		return field.String()
	default:
		panic(fmt.Sprintf("unsupported flag field kind %v", field.Kind()))
	}
}
