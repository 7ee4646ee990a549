// Copyright (c) 2020–2024 The bench developers. All rights reserved.
// Project site: https://github.com/gotmc/bench
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

package bench

import (
	"context"
	"sort"

	"go.uber.org/multierr"

	"github.com/gotmc/bench/lib/awg"
	"github.com/gotmc/bench/lib/dmm"
	"github.com/gotmc/bench/lib/psu"
	"github.com/gotmc/bench/lib/scope"
	"github.com/gotmc/bench/lib/scpi"
)

// Bench holds the instruments discovered on one test bench. The caller owns
// it and must Close it; nothing is shared between benches.
type Bench struct {
	instruments map[string]scpi.Instrument
}

// New returns a Bench over already opened instruments, keyed by resource.
func New(instruments map[string]scpi.Instrument) *Bench {
	if instruments == nil {
		instruments = map[string]scpi.Instrument{}
	}
	return &Bench{instruments: instruments}
}

// Open discovers the instruments rm can reach. Like Discover, a non-nil
// error reports skipped resources and the Bench is still usable.
func Open(ctx context.Context, rm ResourceManager, opts ...Option) (*Bench, error) {
	found, err := Discover(ctx, rm, opts...)
	if found == nil {
		return nil, err
	}
	return New(found), err
}

// Resources returns the resource names of all instruments, sorted.
func (b *Bench) Resources() []string {
	names := make([]string, 0, len(b.instruments))
	for name := range b.instruments {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Get returns the instrument at resource.
func (b *Bench) Get(resource string) (scpi.Instrument, bool) {
	inst, ok := b.instruments[resource]
	return inst, ok
}

// first returns the first instrument, in resource order, of type T.
func first[T scpi.Instrument](b *Bench) (T, bool) {
	for _, name := range b.Resources() {
		if inst, ok := b.instruments[name].(T); ok {
			return inst, true
		}
	}
	var zero T
	return zero, false
}

// PSU returns the first power supply found.
func (b *Bench) PSU() (*psu.E363x, bool) { return first[*psu.E363x](b) }

// DMM returns the first multimeter found.
func (b *Bench) DMM() (*dmm.Agilent34401A, bool) { return first[*dmm.Agilent34401A](b) }

// AWG returns the first function generator found.
func (b *Bench) AWG() (*awg.BK4050, bool) { return first[*awg.BK4050](b) }

// Scope returns the first oscilloscope found.
func (b *Bench) Scope() (*scope.Tektronix, bool) { return first[*scope.Tektronix](b) }

// Close closes every instrument and returns all close failures combined.
func (b *Bench) Close() error {
	var err error
	for _, name := range b.Resources() {
		err = multierr.Append(err, b.instruments[name].Close())
	}
	return err
}
