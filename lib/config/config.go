// Copyright (c) 2020–2024 The bench developers. All rights reserved.
// Project site: https://github.com/gotmc/bench
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

// Package config loads bench settings from built in defaults, a YAML file
// and BENCH_ environment variables, in that order of precedence, and
// builds the process logger from them.
package config

import (
	"io"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	yml "gopkg.in/yaml.v2"

	"github.com/gotmc/bench/lib/visa"
)

// EnvPrefix marks the environment variables that override settings, e.g.
// BENCH_PSU_MAX_VOLTAGE=6 or BENCH_VISA_GPIB_ADDRESSES=5,22.
const EnvPrefix = "BENCH_"

// DefaultFile is the configuration file read when none is named.
const DefaultFile = "bench.yml"

type LogConfig struct {
	Level  string `koanf:"level" yaml:"level"`
	Format string `koanf:"format" yaml:"format"` // text or json
	// Trace logs every command and reply.
	Trace bool `koanf:"trace" yaml:"trace"`
}

type PSUConfig struct {
	MaxVoltage float64 `koanf:"max_voltage" yaml:"max_voltage"`
	MaxCurrent float64 `koanf:"max_current" yaml:"max_current"`
}

type DMMConfig struct {
	SampleInterval time.Duration `koanf:"sample_interval" yaml:"sample_interval"`
}

type MetricsConfig struct {
	// Addr is where metrics are served; empty disables them.
	Addr string `koanf:"addr" yaml:"addr"`
}

type OutputConfig struct {
	Dir string `koanf:"dir" yaml:"dir"`
}

// Config holds every setting.
type Config struct {
	Log     LogConfig     `koanf:"log" yaml:"log"`
	VISA    visa.Config   `koanf:"visa" yaml:"visa"`
	PSU     PSUConfig     `koanf:"psu" yaml:"psu"`
	DMM     DMMConfig     `koanf:"dmm" yaml:"dmm"`
	Metrics MetricsConfig `koanf:"metrics" yaml:"metrics"`
	Output  OutputConfig  `koanf:"output" yaml:"output"`
}

// Default returns the built in settings.
func Default() Config {
	return Config{
		Log:    LogConfig{Level: "info", Format: "text"},
		VISA:   visa.DefaultConfig(),
		PSU:    PSUConfig{MaxVoltage: 30, MaxCurrent: 3},
		DMM:    DMMConfig{SampleInterval: 100 * time.Millisecond},
		Output: OutputConfig{Dir: "."},
	}
}

// Load layers path, when it exists, and the environment over the defaults,
// then applies overrides, which are keyed like "log.level". A missing file
// is not an error.
func Load(path string, overrides map[string]any) (Config, error) {
	k := koanf.New(".")
	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return Config{}, errors.Wrap(err, "loading defaults")
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, errors.Wrapf(err, "loading %s", path)
		}
	}
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey(k.Keys())), nil); err != nil {
		return Config{}, errors.Wrap(err, "loading environment")
	}
	if len(overrides) > 0 {
		if err := k.Load(confmap.Provider(overrides, "."), nil); err != nil {
			return Config{}, errors.Wrap(err, "applying overrides")
		}
	}
	var c Config
	if err := k.Unmarshal("", &c); err != nil {
		return Config{}, errors.Wrap(err, "decoding configuration")
	}
	return c, nil
}

// envKey maps BENCH_PSU_MAX_VOLTAGE to psu.max_voltage. Keys contain
// underscores of their own, so known keys are matched first.
func envKey(keys []string) func(string) string {
	known := make(map[string]string, len(keys))
	for _, k := range keys {
		known[strings.ReplaceAll(k, ".", "_")] = k
	}
	return func(s string) string {
		s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
		if k, ok := known[s]; ok {
			return k
		}
		return strings.ReplaceAll(s, "_", ".")
	}
}

// Dump writes c as YAML, in the layout Load reads.
func Dump(w io.Writer, c Config) error {
	return yml.NewEncoder(w).Encode(c)
}

// NewLogger builds a logger writing to stderr.
func NewLogger(c LogConfig) (*logrus.Logger, error) {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	lvl, err := logrus.ParseLevel(c.Level)
	if err != nil {
		return nil, err
	}
	log.SetLevel(lvl)
	switch strings.ToLower(c.Format) {
	case "", "text":
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "15:04:05.000000"})
	case "json":
		log.SetFormatter(&logrus.JSONFormatter{})
	default:
		return nil, errors.Errorf("unknown log format %q", c.Format)
	}
	return log, nil
}
