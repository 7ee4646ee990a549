// Copyright (c) 2020–2024 The bench developers. All rights reserved.
// Project site: https://github.com/gotmc/bench
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

// Package bench identifies the instruments on a test bench and hands back a
// typed driver for each one.
//
// An instrument is identified by its *IDN? reply, which is matched against
// an ordered table of rules; the first rule that matches picks the driver.
package bench

import (
	"strings"

	"github.com/gotmc/bench/lib/awg"
	"github.com/gotmc/bench/lib/dmm"
	"github.com/gotmc/bench/lib/psu"
	"github.com/gotmc/bench/lib/scope"
	"github.com/gotmc/bench/lib/scpi"
)

// Constructor builds a driver that takes ownership of t.
type Constructor func(t scpi.Transport, opts ...scpi.Option) scpi.Instrument

// Rule pairs an identification predicate with the driver to build when it
// matches.
type Rule struct {
	Name  string
	Match func(idn string) bool
	New   Constructor
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// DefaultRules is the built in dispatch table, in priority order.
var DefaultRules = []Rule{
	{
		Name:  "Agilent 34401A multimeter",
		Match: func(idn string) bool { return strings.Contains(idn, "34401") },
		New: func(t scpi.Transport, opts ...scpi.Option) scpi.Instrument {
			return dmm.New(t, opts...)
		},
	},
	{
		Name:  "Agilent E363x power supply",
		Match: func(idn string) bool { return strings.Contains(idn, "E363") },
		New: func(t scpi.Transport, opts ...scpi.Option) scpi.Instrument {
			return psu.New(t, opts...)
		},
	},
	{
		Name: "B&K 40xxB function generator",
		Match: func(idn string) bool {
			return strings.Contains(idn, "BK") && containsAny(idn, "05", "06")
		},
		New: func(t scpi.Transport, opts ...scpi.Option) scpi.Instrument {
			return awg.New(t, opts...)
		},
	},
	{
		Name: "Tektronix DPO/MSO oscilloscope",
		Match: func(idn string) bool {
			idn = strings.ToUpper(idn)
			return strings.Contains(idn, "TEKTRONIX") && containsAny(idn, "DPO", "MSO")
		},
		New: func(t scpi.Transport, opts ...scpi.Option) scpi.Instrument {
			return scope.New(t, opts...)
		},
	},
}

// Match returns the first rule matching idn.
func Match(rules []Rule, idn string) (Rule, bool) {
	for _, r := range rules {
		if r.Match(idn) {
			return r, true
		}
	}
	return Rule{}, false
}

// Dispatch identifies the instrument on t with DefaultRules and returns its
// driver, which owns t. When no rule matches the error is an
// *scpi.UnsupportedError and t is left open for the caller to close.
func Dispatch(t scpi.Transport, opts ...scpi.Option) (scpi.Instrument, error) {
	return dispatch(DefaultRules, t, opts)
}

func dispatch(rules []Rule, t scpi.Transport, opts []scpi.Option) (scpi.Instrument, error) {
	// Identification goes through a throwaway device so that the reply and
	// any failure are logged like every other command. It is not closed:
	// ownership of t passes to the driver.
	idn, err := scpi.NewDevice(t, opts...).Identify()
	if err != nil {
		return nil, err
	}
	r, ok := Match(rules, idn)
	if !ok {
		return nil, &scpi.UnsupportedError{Resource: t.Resource(), IDN: idn}
	}
	inst := r.New(t, opts...)
	return inst, nil
}
