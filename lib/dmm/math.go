// Copyright (c) 2020–2024 The bench developers. All rights reserved.
// Project site: https://github.com/gotmc/bench
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

package dmm

import (
	"strings"

	"github.com/gotmc/bench/lib/scpi"
)

// MathFunction is a CALCulate subsystem function.
type MathFunction string

const (
	MathNull    MathFunction = "NULL"
	MathDB      MathFunction = "DB"
	MathDBM     MathFunction = "DBM"
	MathAverage MathFunction = "AVER"
	MathLimit   MathFunction = "LIM"
)

// Averages is the running record kept by the AVERage math function.
type Averages struct {
	Min     float64
	Max     float64
	Average float64
	Count   int
}

// SetMath enables or disables the math operation.
func (m *Agilent34401A) SetMath(on bool) error {
	return m.Send("CALC:STAT %s", onOff(on))
}

// SetMathFunction selects the math operation applied to readings.
func (m *Agilent34401A) SetMathFunction(fn MathFunction) error {
	switch MathFunction(strings.ToUpper(string(fn))) {
	case MathNull, MathDB, MathDBM, MathAverage, MathLimit:
		return m.Send("CALC:FUNC %s", strings.ToUpper(string(fn)))
	}
	return &scpi.InvalidArgumentError{Name: "math function", Value: fn, Reason: "must be NULL, DB, DBM, AVER or LIM"}
}

// SetDBMReference sets the reference resistance in ohms for dBm readings.
func (m *Agilent34401A) SetDBMReference(ohms float64) error {
	return m.Send("CALC:DBM:REF %s", scpi.FormatFloat(ohms))
}

// SetNullOffset stores v as the null offset.
func (m *Agilent34401A) SetNullOffset(v float64) error {
	return m.Send("CALC:NULL:OFFS %s", scpi.FormatFloat(v))
}

// AverageData reads the AVERage math registers.
func (m *Agilent34401A) AverageData() (Averages, error) {
	var a Averages
	var err error
	if a.Min, err = m.QueryFloat("CALC:AVER:MIN?"); err != nil {
		return a, err
	}
	if a.Max, err = m.QueryFloat("CALC:AVER:MAX?"); err != nil {
		return a, err
	}
	if a.Average, err = m.QueryFloat("CALC:AVER:AVER?"); err != nil {
		return a, err
	}
	// The count comes back in floating point notation.
	n, err := m.QueryFloat("CALC:AVER:COUN?")
	if err != nil {
		return a, err
	}
	a.Count = int(n)
	return a, nil
}
