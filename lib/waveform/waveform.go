// Copyright (c) 2020–2024 The bench developers. All rights reserved.
// Project site: https://github.com/gotmc/bench
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

// Package waveform converts raw oscilloscope record data to physical units.
package waveform

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
)

// Preamble holds the scaling factors a scope reports alongside a record.
type Preamble struct {
	YMult      float64 // volts per count
	YOffset    float64 // counts
	YZero      float64 // volts
	XIncrement float64 // seconds per point
	XZero      float64 // seconds at point 0
}

// Record is one acquired channel, in physical units.
type Record struct {
	Source   string
	Preamble Preamble
	Raw      []int
	Time     []float64
	Volts    []float64
}

// Reconstruct scales raw counts:
//
//	Time[i]  = XZero + i*XIncrement
//	Volts[i] = (Raw[i] - YOffset)*YMult + YZero
func Reconstruct(source string, raw []int, p Preamble) Record {
	r := Record{
		Source:   source,
		Preamble: p,
		Raw:      raw,
		Time:     make([]float64, len(raw)),
		Volts:    make([]float64, len(raw)),
	}
	for i, c := range raw {
		r.Time[i] = p.XZero + float64(i)*p.XIncrement
		r.Volts[i] = (float64(c)-p.YOffset)*p.YMult + p.YZero
	}
	return r
}

// Len is the number of points.
func (r Record) Len() int { return len(r.Volts) }

// Duration is the time spanned by the record.
func (r Record) Duration() float64 {
	if len(r.Time) < 2 {
		return 0
	}
	return r.Time[len(r.Time)-1] - r.Time[0]
}

// EncodeCSV writes a "time,<source>" header and one row per point.
func (r Record) EncodeCSV(w io.Writer) error {
	bw := bufio.NewWriter(w)
	cw := csv.NewWriter(bw)
	name := r.Source
	if name == "" {
		name = "volts"
	}
	if err := cw.Write([]string{"time", name}); err != nil {
		return err
	}
	row := make([]string, 2)
	for i := range r.Volts {
		row[0] = strconv.FormatFloat(r.Time[i], 'G', -1, 64)
		row[1] = strconv.FormatFloat(r.Volts[i], 'G', -1, 64)
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing point %d: %w", i, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return err
	}
	return bw.Flush()
}
