// Copyright (c) 2020–2024 The bench developers. All rights reserved.
// Project site: https://github.com/gotmc/bench
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

// Package psu drives the Agilent/Keysight E3631A family of triple output
// power supplies.
//
// Every voltage and current setpoint is checked against the session safety
// limits before anything is written to the instrument.
package psu

import (
	"math"
	"strings"

	"github.com/gotmc/bench/lib/scpi"
)

// Output identifiers of the E3631A.
const (
	P6V  = "P6V"  // +6 V output
	P25V = "P25V" // +25 V output
	N25V = "N25V" // -25 V output
)

// Default session safety limits.
const (
	DefaultMaxVoltage = 30.0
	DefaultMaxCurrent = 3.0
)

var outputs = []string{P6V, P25V, N25V}

// Canonical maps an output name to its SCPI identifier. It accepts P6V, P25V
// and N25V in any case and the front panel numbers 1, 2 and 3.
func Canonical(ch string) (string, error) {
	switch c := strings.ToUpper(strings.TrimSpace(ch)); c {
	case "1", P6V:
		return P6V, nil
	case "2", P25V:
		return P25V, nil
	case "3", N25V:
		return N25V, nil
	}
	return "", &scpi.InvalidChannelError{Channel: ch, Valid: outputs}
}

// E363x is an E3631A power supply session.
type E363x struct {
	*scpi.Device
	maxVoltage float64
	maxCurrent float64
}

// New wraps t. Safety limits start at DefaultMaxVoltage and
// DefaultMaxCurrent.
func New(t scpi.Transport, opts ...scpi.Option) *E363x {
	return &E363x{
		Device:     scpi.NewDevice(t, opts...),
		maxVoltage: DefaultMaxVoltage,
		maxCurrent: DefaultMaxCurrent,
	}
}

// SetSafetyLimits sets the largest voltage and current magnitude this session
// will program. Signs are ignored.
func (p *E363x) SetSafetyLimits(maxVoltage, maxCurrent float64) {
	p.maxVoltage = math.Abs(maxVoltage)
	p.maxCurrent = math.Abs(maxCurrent)
	p.Logger().WithField("max_voltage", p.maxVoltage).
		WithField("max_current", p.maxCurrent).Info("safety limits updated")
}

// SafetyLimits returns the session limits.
func (p *E363x) SafetyLimits() (maxVoltage, maxCurrent float64) {
	return p.maxVoltage, p.maxCurrent
}

// checkLevel rejects NaN and infinities, which compare false against any
// limit.
func checkLevel(name string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return &scpi.InvalidArgumentError{Name: name, Value: v, Reason: "must be finite"}
	}
	return nil
}

func (p *E363x) checkVoltage(v float64) error {
	if err := checkLevel("voltage", v); err != nil {
		return err
	}
	if math.Abs(v) > p.maxVoltage {
		return &scpi.SafetyLimitError{Quantity: "voltage", Unit: "V", Value: v, Limit: p.maxVoltage}
	}
	return nil
}

func (p *E363x) checkCurrent(a float64) error {
	if err := checkLevel("current", a); err != nil {
		return err
	}
	if math.Abs(a) > p.maxCurrent {
		return &scpi.SafetyLimitError{Quantity: "current", Unit: "A", Value: a, Limit: p.maxCurrent}
	}
	return nil
}

// optionalOutput validates the first element of ch, if any.
func optionalOutput(ch []string) (string, error) {
	if len(ch) == 0 {
		return "", nil
	}
	return Canonical(ch[0])
}

// SelectOutput makes ch the output subsequent VOLT and CURR commands apply to.
func (p *E363x) SelectOutput(ch string) error {
	c, err := Canonical(ch)
	if err != nil {
		return err
	}
	return p.Send("INST:SEL %s", c)
}

// SetVoltage programs the voltage of the selected output, or of ch when given.
func (p *E363x) SetVoltage(v float64, ch ...string) error {
	return p.setLevel("VOLT", v, p.checkVoltage, ch)
}

// SetCurrent programs the current limit of the selected output, or of ch when
// given.
func (p *E363x) SetCurrent(a float64, ch ...string) error {
	return p.setLevel("CURR", a, p.checkCurrent, ch)
}

func (p *E363x) setLevel(cmd string, v float64, check func(float64) error, ch []string) error {
	c, err := optionalOutput(ch)
	if err != nil {
		return err
	}
	if err := check(v); err != nil {
		return err
	}
	if c != "" {
		if err := p.Send("INST:SEL %s", c); err != nil {
			return err
		}
	}
	return p.Send("%s %s", cmd, scpi.FormatFloat(v))
}

// Apply programs voltage and, optionally, current of ch in one APPLy command.
func (p *E363x) Apply(ch string, v float64, a ...float64) error {
	c, err := Canonical(ch)
	if err != nil {
		return err
	}
	if err := p.checkVoltage(v); err != nil {
		return err
	}
	if len(a) == 0 {
		return p.Send("APPL %s, %s", c, scpi.FormatFloat(v))
	}
	if err := p.checkCurrent(a[0]); err != nil {
		return err
	}
	return p.Send("APPL %s, %s, %s", c, scpi.FormatFloat(v), scpi.FormatFloat(a[0]))
}

// SetTriggerLevels programs the voltage and current that take effect on the
// next trigger.
func (p *E363x) SetTriggerLevels(ch string, v, a float64) error {
	c, err := Canonical(ch)
	if err != nil {
		return err
	}
	if err := p.checkVoltage(v); err != nil {
		return err
	}
	if err := p.checkCurrent(a); err != nil {
		return err
	}
	for _, cmd := range []string{
		"INST:SEL " + c,
		"VOLT:TRIG " + scpi.FormatFloat(v),
		"CURR:TRIG " + scpi.FormatFloat(a),
	} {
		if err := p.Send(cmd); err != nil {
			return err
		}
	}
	return nil
}

// MeasureVoltage returns the voltage at the terminals of ch (default P6V).
func (p *E363x) MeasureVoltage(ch ...string) (float64, error) {
	return p.measure("MEAS:VOLT:DC?", ch)
}

// MeasureCurrent returns the current through ch (default P6V).
func (p *E363x) MeasureCurrent(ch ...string) (float64, error) {
	return p.measure("MEAS:CURR:DC?", ch)
}

func (p *E363x) measure(query string, ch []string) (float64, error) {
	c, err := optionalOutput(ch)
	if err != nil {
		return 0, err
	}
	if c == "" {
		c = P6V
	}
	return p.QueryFloat(query + " " + c)
}

// OutputOn enables all outputs.
func (p *E363x) OutputOn() error { return p.Send("OUTP ON") }

// OutputOff disables all outputs.
func (p *E363x) OutputOff() error { return p.Send("OUTP OFF") }

// TrackingOn couples the ±25 V outputs.
func (p *E363x) TrackingOn() error { return p.Send("OUTP:TRAC ON") }

// TrackingOff decouples the ±25 V outputs.
func (p *E363x) TrackingOff() error { return p.Send("OUTP:TRAC OFF") }

func checkLocation(n int) error {
	if n < 1 || n > 3 {
		return &scpi.InvalidArgumentError{Name: "state location", Value: n, Reason: "must be 1, 2 or 3"}
	}
	return nil
}

// SaveState stores the present setup in memory location n (1-3).
func (p *E363x) SaveState(n int) error {
	if err := checkLocation(n); err != nil {
		return err
	}
	return p.Send("*SAV %d", n)
}

// RecallState restores the setup stored in memory location n (1-3).
func (p *E363x) RecallState(n int) error {
	if err := checkLocation(n); err != nil {
		return err
	}
	return p.Send("*RCL %d", n)
}

func (p *E363x) Beep() error     { return p.Send("SYST:BEEP") }
func (p *E363x) Trigger() error  { return p.Send(scpi.TriggerCommand) }
func (p *E363x) Initiate() error { return p.Send("INIT") }
