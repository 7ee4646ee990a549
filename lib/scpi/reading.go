// Copyright (c) 2020–2024 The bench developers. All rights reserved.
// Project site: https://github.com/gotmc/bench
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

package scpi

import (
	"math"
	"strconv"
	"time"
)

// SentinelThreshold is the magnitude above which an instrument reading means
// "no valid measurement". Tektronix scopes reply 9.91E+37 and the 34401A
// reports overload as 9.9E+37.
const SentinelThreshold = 9e30

// Sentinel maps a raw reading to (value, true), or (0, false) when the value
// is the instrument's no-measurement sentinel or not a number.
func Sentinel(v float64) (float64, bool) {
	if math.IsNaN(v) || math.Abs(v) > SentinelThreshold {
		return 0, false
	}
	return v, true
}

// Reading is a single instrument measurement that may be absent.
type Reading struct {
	Value  float64
	Valid  bool
	Source string
	Time   time.Time
}

// NewReading builds a Reading from a raw value, applying Sentinel.
func NewReading(raw float64, source string) Reading {
	v, ok := Sentinel(raw)
	return Reading{Value: v, Valid: ok, Source: source, Time: time.Now()}
}

// Float returns the value and whether it is present.
func (r Reading) Float() (float64, bool) { return r.Value, r.Valid }

func (r Reading) String() string {
	if !r.Valid {
		return "absent"
	}
	return FormatFloat(r.Value)
}

// FormatFloat renders a number the way drivers put it into command text:
// plain decimal, with a lower case exponent below 1e-4 and from 1e16 up.
func FormatFloat(v float64) string {
	switch a := math.Abs(v); {
	case v == 0:
		return "0"
	case math.IsNaN(v) || math.IsInf(v, 0):
		return strconv.FormatFloat(v, 'g', -1, 64)
	case a < 1e-4 || a >= 1e16:
		return strconv.FormatFloat(v, 'e', -1, 64)
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
