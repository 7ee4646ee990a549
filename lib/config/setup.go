// Copyright (c) 2020–2024 The bench developers. All rights reserved.
// Project site: https://github.com/gotmc/bench
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

package config

import (
	"flag"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/gotmc/bench/lib/visa"
)

// Flags are the command line settings shared by bench programs. A flag
// that is set on the command line wins over the file and the environment.
type Flags struct {
	Path     string
	LogLevel string
	Trace    bool
	Adapter  string
	Timeout  time.Duration
	Dump     bool

	fs *flag.FlagSet
}

// AddFlags is to be called before [flag.FlagSet.Parse].
func (f *Flags) AddFlags(fs *flag.FlagSet) {
	f.fs = fs
	fs.StringVar(&f.Path, "config", DefaultFile, "YAML configuration file")
	fs.StringVar(&f.LogLevel, "log-level", "", "log level (overrides log.level)")
	fs.BoolVar(&f.Trace, "trace", false, "log every command and reply")
	fs.StringVar(&f.Adapter, "port", "", "serial port of the GPIB adapter (overrides visa.gpib.adapter)")
	fs.DurationVar(&f.Timeout, "timeout", 0, "I/O timeout (overrides visa.timeout)")
	fs.BoolVar(&f.Dump, "dump-config", false, "print the effective configuration and exit")
}

// overrides returns the flags that were set, keyed like the configuration.
func (f *Flags) overrides() map[string]any {
	out := map[string]any{}
	if f.fs == nil {
		return out
	}
	f.fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "log-level":
			out["log.level"] = f.LogLevel
		case "trace":
			out["log.trace"] = f.Trace
		case "port":
			out["visa.gpib.adapter"] = f.Adapter
		case "timeout":
			out["visa.timeout"] = f.Timeout
		}
	})
	return out
}

// Load is to be called after [flag.FlagSet.Parse].
func (f *Flags) Load() (Config, error) {
	return Load(f.Path, f.overrides())
}

// Setup builds the logger and the resource manager described by c. The
// returned cleanup releases the manager and is safe to call once.
func Setup(c Config) (mgr *visa.Manager, log *logrus.Logger, cleanup func(), err error) {
	nocleanup := func() {}

	log, err = NewLogger(c.Log)
	if err != nil {
		return nil, nil, nocleanup, err
	}
	entry := log.WithField("component", "bench")
	entry.WithFields(logrus.Fields{
		"tcp":     strings.Join(c.VISA.TCP, ","),
		"serial":  strings.Join(c.VISA.Serial.Ports, ","),
		"gpib":    c.VISA.GPIB.Addresses,
		"usb":     c.VISA.USB,
		"timeout": c.VISA.Timeout,
	}).Debug("resource configuration")

	mgr = visa.NewManager(c.VISA, visa.WithLogger(log), visa.WithTracing(c.Log.Trace))
	cleanup = func() {
		if err := mgr.Close(); err != nil {
			entry.WithError(err).Warn("closing resource manager")
		}
	}
	return mgr, log, cleanup, nil
}
