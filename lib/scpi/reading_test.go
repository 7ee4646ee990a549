// Copyright (c) 2020–2024 The bench developers. All rights reserved.
// Project site: https://github.com/gotmc/bench
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

package scpi

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSentinel(t *testing.T) {
	testCases := []struct {
		raw   float64
		value float64
		ok    bool
	}{
		{9.91e37, 0, false},
		{9.9e37, 0, false},
		{-9.9e37, 0, false},
		{math.NaN(), 0, false},
		{1.2345, 1.2345, true},
		{-0.5, -0.5, true},
		{0, 0, true},
	}
	for _, tc := range testCases {
		v, ok := Sentinel(tc.raw)
		assert.Equal(t, tc.ok, ok, "raw %g", tc.raw)
		assert.Equal(t, tc.value, v, "raw %g", tc.raw)
	}
}

func TestReadingString(t *testing.T) {
	assert.Equal(t, "absent", NewReading(9.91e37, "CH1").String())
	r := NewReading(1.2345, "CH1")
	assert.Equal(t, "1.2345", r.String())
	assert.Equal(t, "CH1", r.Source)
	assert.False(t, r.Time.IsZero())
}

func TestFormatFloat(t *testing.T) {
	testCases := []struct {
		in   float64
		want string
	}{
		{5, "5"},
		{12.5, "12.5"},
		{-0.25, "-0.25"},
		{0, "0"},
		{0.001, "0.001"},
		{1e-4, "0.0001"},
		{1e-6, "1e-06"},
		{8.4e-9, "8.4e-09"},
		{1e6, "1000000"},
		{2.5e7, "25000000"},
		{1e16, "1e+16"},
	}
	for _, tc := range testCases {
		assert.Equal(t, tc.want, FormatFloat(tc.in), "in %g", tc.in)
	}
}

func TestParseIdentity(t *testing.T) {
	testCases := []struct {
		idn  string
		want Identity
	}{
		{
			"TEKTRONIX,MSO2024,C011758,CF:91.1CT FV:v1.52 DPO2COMP:v1.0",
			Identity{Vendor: "TEKTRONIX", Model: "MSO2024", Serial: "C011758",
				Firmware: "CF:91.1CT FV:v1.52 DPO2COMP:v1.0"},
		},
		{
			"HEWLETT-PACKARD,34401A,0,11-5-2",
			Identity{Vendor: "HEWLETT-PACKARD", Model: "34401A", Firmware: "11-5-2"},
		},
		{"Acme", Identity{Vendor: "Acme", Model: Unknown}},
		{"", Identity{Vendor: Unknown, Model: Unknown}},
	}
	for _, tc := range testCases {
		got := ParseIdentity(tc.idn)
		tc.want.Raw = tc.idn
		assert.Equal(t, tc.want, got)
	}
}

func TestParseErrorQueue(t *testing.T) {
	assert.NoError(t, parseErrorQueue(`0,"No error"`))
	assert.NoError(t, parseErrorQueue(`+0,"No error"`))
	assert.Error(t, parseErrorQueue(`-222,"Data out of range"`))
	assert.IsType(t, &ParseError{}, parseErrorQueue("garbage"))
}
