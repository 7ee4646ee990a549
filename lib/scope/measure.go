// Copyright (c) 2020–2024 The bench developers. All rights reserved.
// Project site: https://github.com/gotmc/bench
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

package scope

import (
	"strconv"
	"strings"
	"time"

	"github.com/gotmc/bench/lib/scpi"
)

// Measurement is a MEASUrement type.
type Measurement string

const (
	Frequency Measurement = "FREQ"
	Period    Measurement = "PERI"
	Mean      Measurement = "MEAN"
	PeakPeak  Measurement = "PK2P"
	CycleRMS  Measurement = "CRMS"
	Maximum   Measurement = "MAXI"
	Minimum   Measurement = "MINI"
	Amplitude Measurement = "AMP"
	Rise      Measurement = "RIS"
	Fall      Measurement = "FALL"
	PWidth    Measurement = "PWI"
	NWidth    Measurement = "NWI"
	Delay     Measurement = "DEL"
)

const valueQuery = "MEASU:IMM:VAL?"

// readValue queries a measurement value after the settle delay. The scope
// reports 9.91E+37 when it cannot measure, which becomes an absent Reading.
func (s *Tektronix) readValue(query, source string) (scpi.Reading, error) {
	if s.settle > 0 {
		time.Sleep(s.settle)
	}
	v, err := s.QueryFloat(query)
	if err != nil {
		return scpi.Reading{Source: source}, err
	}
	r := scpi.NewReading(v, source)
	if !r.Valid {
		s.Logger().WithField("query", query).Debug("no valid measurement")
	}
	return r, nil
}

// Measure takes an immediate measurement of kind on src without using an
// on-screen slot.
func (s *Tektronix) Measure(src string, kind Measurement) (scpi.Reading, error) {
	src = strings.ToUpper(src)
	if err := s.Send("MEASU:IMM:SOU1 %s", src); err != nil {
		return scpi.Reading{}, err
	}
	if err := s.Send("MEASU:IMM:TYP %s", kind); err != nil {
		return scpi.Reading{}, err
	}
	return s.readValue(valueQuery, src)
}

func (s *Tektronix) measureChannel(ch int, kind Measurement) (scpi.Reading, error) {
	if err := checkChannel(ch); err != nil {
		return scpi.Reading{}, err
	}
	return s.Measure(Channel(ch), kind)
}

func (s *Tektronix) MeasureFrequency(ch int) (scpi.Reading, error) {
	return s.measureChannel(ch, Frequency)
}

func (s *Tektronix) MeasurePeriod(ch int) (scpi.Reading, error) {
	return s.measureChannel(ch, Period)
}

func (s *Tektronix) MeasureAmplitude(ch int) (scpi.Reading, error) {
	return s.measureChannel(ch, Amplitude)
}

// MeasureVpp returns the peak to peak voltage of ch.
func (s *Tektronix) MeasureVpp(ch int) (scpi.Reading, error) {
	return s.measureChannel(ch, PeakPeak)
}

func (s *Tektronix) MeasureMean(ch int) (scpi.Reading, error) {
	return s.measureChannel(ch, Mean)
}

// MeasureRise returns the 10-90% rise time of ch.
func (s *Tektronix) MeasureRise(ch int) (scpi.Reading, error) {
	return s.measureChannel(ch, Rise)
}

// MeasureFall returns the 90-10% fall time of ch.
func (s *Tektronix) MeasureFall(ch int) (scpi.Reading, error) {
	return s.measureChannel(ch, Fall)
}

// DelaySpec selects the edges a delay measurement runs between.
type DelaySpec struct {
	Start     string // source of the first edge, e.g. "CH1"
	Stop      string
	StartEdge string // RISE or FALL; RISE when empty
	StopEdge  string
}

// MeasureDelay measures the time from an edge on Start to the next edge on
// Stop.
func (s *Tektronix) MeasureDelay(d DelaySpec) (scpi.Reading, error) {
	edge := func(e string) (string, error) {
		e = strings.ToUpper(e)
		switch e {
		case "":
			return "RISE", nil
		case "RISE", "FALL":
			return e, nil
		}
		return "", &scpi.InvalidArgumentError{Name: "delay edge", Value: e, Reason: "must be RISE or FALL"}
	}
	e1, err := edge(d.StartEdge)
	if err != nil {
		return scpi.Reading{}, err
	}
	e2, err := edge(d.StopEdge)
	if err != nil {
		return scpi.Reading{}, err
	}
	start, stop := strings.ToUpper(d.Start), strings.ToUpper(d.Stop)
	cmds := []string{
		"MEASU:IMM:TYP DEL",
		"MEASU:IMM:SOU1 " + start,
		"MEASU:IMM:DEL:EDGE1 " + e1,
		"MEASU:IMM:SOU2 " + stop,
		"MEASU:IMM:DEL:EDGE2 " + e2,
		"MEASU:IMM:DEL:DIR FORW",
	}
	for _, cmd := range cmds {
		if err := s.Send(cmd); err != nil {
			return scpi.Reading{}, err
		}
	}
	return s.readValue(valueQuery, start+">"+stop)
}

// AddMeasurement shows a measurement of kind on src in on-screen slot (1-4).
func (s *Tektronix) AddMeasurement(slot int, kind Measurement, src string) error {
	if slot < 1 || slot > 4 {
		return &scpi.InvalidArgumentError{Name: "measurement slot", Value: slot, Reason: "must be 1-4"}
	}
	for _, cmd := range []string{
		"MEASU:MEAS%d:TYP " + string(kind),
		"MEASU:MEAS%d:SOU " + strings.ToUpper(src),
		"MEASU:MEAS%d:STATE ON",
	} {
		if err := s.Send(cmd, slot); err != nil {
			return err
		}
	}
	return nil
}

// MeasurementValue reads on-screen slot (1-4).
func (s *Tektronix) MeasurementValue(slot int) (scpi.Reading, error) {
	if slot < 1 || slot > 4 {
		return scpi.Reading{}, &scpi.InvalidArgumentError{Name: "measurement slot", Value: slot, Reason: "must be 1-4"}
	}
	return s.readValue("MEASU:MEAS"+strconv.Itoa(slot)+":VAL?", "")
}

// Switching holds the switching times of a stage driven by in and observed
// on out.
type Switching struct {
	On    scpi.Reading // input rising edge to output rising edge
	Rise  scpi.Reading // output 10-90%
	Delay scpi.Reading // input 50% to output 10%, from the waveforms
	Off   scpi.Reading // input falling edge to output falling edge
	Fall  scpi.Reading // output 90-10%
}

// MeasureSwitching measures turn-on and turn-off behavior between two
// channels. Delay is computed from acquired records of both channels and is
// absent when either signal never crosses its threshold.
func (s *Tektronix) MeasureSwitching(in, out int) (Switching, error) {
	var sw Switching
	if err := checkChannel(in); err != nil {
		return sw, err
	}
	if err := checkChannel(out); err != nil {
		return sw, err
	}
	var err error
	if sw.On, err = s.MeasureDelay(DelaySpec{Start: Channel(in), Stop: Channel(out)}); err != nil {
		return sw, err
	}
	if sw.Rise, err = s.MeasureRise(out); err != nil {
		return sw, err
	}
	if sw.Delay, err = s.thresholdDelay(in, out); err != nil {
		return sw, err
	}
	off := DelaySpec{Start: Channel(in), Stop: Channel(out), StartEdge: "FALL", StopEdge: "FALL"}
	if sw.Off, err = s.MeasureDelay(off); err != nil {
		return sw, err
	}
	if sw.Fall, err = s.MeasureFall(out); err != nil {
		return sw, err
	}
	return sw, nil
}

func (s *Tektronix) thresholdDelay(in, out int) (scpi.Reading, error) {
	src := Channel(in) + ">" + Channel(out)
	win, err := s.AcquireWaveform(in)
	if err != nil {
		return scpi.Reading{}, err
	}
	wout, err := s.AcquireWaveform(out)
	if err != nil {
		return scpi.Reading{}, err
	}
	i, ok1 := firstCrossing(win.Volts, 0.5)
	j, ok2 := firstCrossing(wout.Volts, 0.1)
	if !ok1 || !ok2 {
		return scpi.Reading{Source: src, Time: time.Now()}, nil
	}
	return scpi.Reading{
		Value:  float64(j-i) * win.Preamble.XIncrement,
		Valid:  true,
		Source: src,
		Time:   time.Now(),
	}, nil
}

// firstCrossing returns the index of the first point at or above
// min + frac*(max-min).
func firstCrossing(v []float64, frac float64) (int, bool) {
	if len(v) == 0 {
		return 0, false
	}
	lo, hi := v[0], v[0]
	for _, x := range v {
		lo = min(lo, x)
		hi = max(hi, x)
	}
	if hi == lo {
		return 0, false
	}
	th := lo + (hi-lo)*frac
	for i, x := range v {
		if x >= th {
			return i, true
		}
	}
	return 0, false
}
