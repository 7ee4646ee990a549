// Copyright (c) 2020–2024 The bench developers. All rights reserved.
// Project site: https://github.com/gotmc/bench
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

// Package dmm drives the Agilent/HP 34401A 6½ digit multimeter.
package dmm

import (
	"strconv"
	"strings"
	"time"

	"github.com/gotmc/bench/lib/scpi"
)

// Function is a measurement function mnemonic as used in CONFigure,
// MEASure? and SENSe commands.
type Function string

// Measurement functions.
const (
	VoltageDC   Function = "VOLT:DC"
	VoltageAC   Function = "VOLT:AC"
	CurrentDC   Function = "CURR:DC"
	CurrentAC   Function = "CURR:AC"
	Resistance  Function = "RES"  // 2-wire
	FResistance Function = "FRES" // 4-wire
	Frequency   Function = "FREQ"
	Period      Function = "PER"
)

// Default lets the meter pick range or resolution.
const Default = "DEF"

// OverloadValue is what the 34401A reports for an overloaded input.
const OverloadValue = 9.9e37

// IsOverload reports whether v is the overload sentinel.
func IsOverload(v float64) bool {
	_, ok := scpi.Sentinel(v)
	return !ok
}

// Agilent34401A is a 34401A session.
type Agilent34401A struct {
	*scpi.Device
}

// New wraps t.
func New(t scpi.Transport, opts ...scpi.Option) *Agilent34401A {
	return &Agilent34401A{Device: scpi.NewDevice(t, opts...)}
}

// rangeRes returns the "<range>,<resolution>" parameter pair with empty
// values replaced by DEF.
func rangeRes(rr []string) string {
	rng, res := Default, Default
	if len(rr) > 0 && rr[0] != "" {
		rng = rr[0]
	}
	if len(rr) > 1 && rr[1] != "" {
		res = rr[1]
	}
	return rng + "," + res
}

// Configure presets fn with the given range and resolution without taking a
// reading. Empty strings mean DEF.
func (m *Agilent34401A) Configure(fn Function, rng, res string) error {
	return m.Send("CONF:%s %s", fn, rangeRes([]string{rng, res}))
}

// The Configure* helpers take an optional range and resolution.
func (m *Agilent34401A) ConfigureVoltageDC(rr ...string) error   { return m.configure(VoltageDC, rr) }
func (m *Agilent34401A) ConfigureVoltageAC(rr ...string) error   { return m.configure(VoltageAC, rr) }
func (m *Agilent34401A) ConfigureCurrentDC(rr ...string) error   { return m.configure(CurrentDC, rr) }
func (m *Agilent34401A) ConfigureResistance(rr ...string) error  { return m.configure(Resistance, rr) }
func (m *Agilent34401A) ConfigureFResistance(rr ...string) error { return m.configure(FResistance, rr) }

func (m *Agilent34401A) configure(fn Function, rr []string) error {
	return m.Send("CONF:%s %s", fn, rangeRes(rr))
}

// Measure configures fn, triggers and returns one reading in a single round
// trip. Empty strings mean DEF.
func (m *Agilent34401A) Measure(fn Function, rng, res string) (float64, error) {
	return m.QueryFloat("MEAS:" + string(fn) + "? " + rangeRes([]string{rng, res}))
}

// The Measure* helpers take an optional range and resolution.
func (m *Agilent34401A) MeasureVoltageDC(rr ...string) (float64, error)   { return m.measure(VoltageDC, rr) }
func (m *Agilent34401A) MeasureVoltageAC(rr ...string) (float64, error)   { return m.measure(VoltageAC, rr) }
func (m *Agilent34401A) MeasureCurrentDC(rr ...string) (float64, error)   { return m.measure(CurrentDC, rr) }
func (m *Agilent34401A) MeasureCurrentAC(rr ...string) (float64, error)   { return m.measure(CurrentAC, rr) }
func (m *Agilent34401A) MeasureResistance(rr ...string) (float64, error)  { return m.measure(Resistance, rr) }
func (m *Agilent34401A) MeasureFResistance(rr ...string) (float64, error) { return m.measure(FResistance, rr) }

func (m *Agilent34401A) measure(fn Function, rr []string) (float64, error) {
	return m.QueryFloat("MEAS:" + string(fn) + "? " + rangeRes(rr))
}

// MeasureFrequency returns one frequency reading in hertz.
func (m *Agilent34401A) MeasureFrequency() (float64, error) { return m.QueryFloat("MEAS:FREQ?") }

// MeasurePeriod returns one period reading in seconds.
func (m *Agilent34401A) MeasurePeriod() (float64, error) { return m.QueryFloat("MEAS:PER?") }

// ReadValue triggers and returns one reading in the present configuration.
func (m *Agilent34401A) ReadValue() (float64, error) { return m.QueryFloat("READ?") }

// ReadBurst sets the sample count to n and returns all n readings of one
// READ?.
func (m *Agilent34401A) ReadBurst(n int) ([]float64, error) {
	if err := m.SetSampleCount(n); err != nil {
		return nil, err
	}
	return m.queryList("READ?")
}

// Fetch returns the readings held in memory without triggering.
func (m *Agilent34401A) Fetch() ([]float64, error) { return m.queryList("FETC?") }

func (m *Agilent34401A) queryList(cmd string) ([]float64, error) {
	reply, err := m.Query(cmd)
	if err != nil {
		return nil, err
	}
	return parseList(cmd, reply)
}

func parseList(cmd, reply string) ([]float64, error) {
	fields := strings.Split(reply, ",")
	vals := make([]float64, 0, len(fields))
	for _, f := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return nil, &scpi.ParseError{Command: cmd, Reply: reply, Err: err}
		}
		vals = append(vals, v)
	}
	return vals, nil
}

func (m *Agilent34401A) Initiate() error { return m.Send("INIT") }
func (m *Agilent34401A) Abort() error    { return m.Send("ABOR") }
func (m *Agilent34401A) Trigger() error  { return m.Send(scpi.TriggerCommand) }

// SelfTest runs the internal self test and reports whether it passed.
func (m *Agilent34401A) SelfTest() (bool, error) {
	code, err := m.QueryInt(scpi.SelfTestQuery)
	if err != nil {
		return false, err
	}
	return code == 0, nil
}

func onOff(on bool) string {
	if on {
		return "ON"
	}
	return "OFF"
}

// SetNPLC sets the integration time of fn in power line cycles (0.02, 0.2,
// 1, 10 or 100).
func (m *Agilent34401A) SetNPLC(fn Function, n float64) error {
	return m.Send("%s:NPLC %s", fn, scpi.FormatFloat(n))
}

// SetRange selects a fixed range for fn.
func (m *Agilent34401A) SetRange(fn Function, rng float64) error {
	return m.Send("%s:RANG %s", fn, scpi.FormatFloat(rng))
}

func (m *Agilent34401A) SetAutoRange(fn Function, on bool) error {
	return m.Send("%s:RANG:AUTO %s", fn, onOff(on))
}

// SetResolution sets the resolution of fn in the units of the measurement.
func (m *Agilent34401A) SetResolution(fn Function, res float64) error {
	return m.Send("%s:RES %s", fn, scpi.FormatFloat(res))
}

// SetInputImpedanceAuto selects >10 GΩ input resistance on the low DC voltage
// ranges when on, and a fixed 10 MΩ otherwise.
func (m *Agilent34401A) SetInputImpedanceAuto(on bool) error {
	return m.Send("INP:IMP:AUTO %s", onOff(on))
}

// SetAutoZero sets the autozero mode: ON, OFF or ONCE.
func (m *Agilent34401A) SetAutoZero(mode string) error {
	mode = strings.ToUpper(mode)
	switch mode {
	case "ON", "OFF", "ONCE":
		return m.Send("ZERO:AUTO %s", mode)
	}
	return &scpi.InvalidArgumentError{Name: "autozero mode", Value: mode, Reason: "must be ON, OFF or ONCE"}
}

// SetACBandwidth selects the AC filter: 3, 20 or 200 Hz.
func (m *Agilent34401A) SetACBandwidth(hz int) error {
	switch hz {
	case 3, 20, 200:
		return m.Send("DET:BAND %d", hz)
	}
	return &scpi.InvalidArgumentError{Name: "AC bandwidth", Value: hz, Reason: "must be 3, 20 or 200"}
}

// SetTriggerSource selects IMM, EXT or BUS triggering.
func (m *Agilent34401A) SetTriggerSource(src string) error {
	src = strings.ToUpper(src)
	switch src {
	case "IMM", "EXT", "BUS":
		return m.Send("TRIG:SOUR %s", src)
	}
	return &scpi.InvalidArgumentError{Name: "trigger source", Value: src, Reason: "must be IMM, EXT or BUS"}
}

func (m *Agilent34401A) SetTriggerDelay(d time.Duration) error {
	return m.Send("TRIG:DEL %s", scpi.FormatFloat(d.Seconds()))
}

func (m *Agilent34401A) SetTriggerCount(n int) error {
	if n < 1 {
		return &scpi.InvalidArgumentError{Name: "trigger count", Value: n, Reason: "must be at least 1"}
	}
	return m.Send("TRIG:COUN %d", n)
}

// SetSampleCount sets the number of readings taken per trigger.
func (m *Agilent34401A) SetSampleCount(n int) error {
	if n < 1 {
		return &scpi.InvalidArgumentError{Name: "sample count", Value: n, Reason: "must be at least 1"}
	}
	return m.Send("SAMP:COUN %d", n)
}

// SetText shows s on the front panel display.
func (m *Agilent34401A) SetText(s string) error {
	return m.Send(`DISP:TEXT "` + strings.ReplaceAll(s, `"`, `""`) + `"`)
}

// ClearText removes any message from the display.
func (m *Agilent34401A) ClearText() error { return m.Send("DISP:TEXT:CLE") }

func (m *Agilent34401A) Beep() error { return m.Send("SYST:BEEP") }

// ConfigureHighAccuracyVoltageDC sets up DC volts on rng with the longest
// integration time, autozero and high input impedance.
func (m *Agilent34401A) ConfigureHighAccuracyVoltageDC(rng float64) error {
	steps := []func() error{
		func() error { return m.ConfigureVoltageDC(scpi.FormatFloat(rng)) },
		func() error { return m.SetNPLC(VoltageDC, 100) },
		func() error { return m.SetAutoZero("ON") },
		func() error { return m.SetInputImpedanceAuto(true) },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}
	return nil
}

// FastVoltageDC takes n DC voltage readings as fast as the meter allows.
func (m *Agilent34401A) FastVoltageDC(n int) ([]float64, error) {
	steps := []func() error{
		func() error { return m.ConfigureVoltageDC() },
		func() error { return m.SetNPLC(VoltageDC, 0.02) },
		func() error { return m.SetAutoZero("OFF") },
		func() error { return m.SetTriggerDelay(0) },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return nil, err
		}
	}
	return m.ReadBurst(n)
}
