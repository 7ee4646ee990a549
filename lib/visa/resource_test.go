// Copyright (c) 2020–2024 The bench developers. All rights reserved.
// Project site: https://github.com/gotmc/bench
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

package visa

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		want Resource
		str  string
	}{
		{"GPIB0::3::INSTR", Resource{Interface: GPIB, PrimaryAddr: 3, SecondaryAddr: -1}, "GPIB0::3::INSTR"},
		{"gpib1::4::101::instr", Resource{Interface: GPIB, Board: 1, PrimaryAddr: 4, SecondaryAddr: 101}, "GPIB1::4::101::INSTR"},
		{"GPIB::22::INSTR", Resource{Interface: GPIB, PrimaryAddr: 22, SecondaryAddr: -1}, "GPIB0::22::INSTR"},
		{"ASRL/dev/ttyUSB0::INSTR", Resource{Interface: Serial, Port: "/dev/ttyUSB0", SecondaryAddr: -1}, "ASRL/dev/ttyUSB0::INSTR"},
		{"ASRL3::INSTR", Resource{Interface: Serial, Port: "COM3", SecondaryAddr: -1}, "ASRL3::INSTR"},
		{"TCPIP0::192.168.1.20::5025::SOCKET", Resource{Interface: TCPIP, Host: "192.168.1.20", HostPort: 5025, SecondaryAddr: -1}, "TCPIP0::192.168.1.20::5025::SOCKET"},
		{"TCPIP::scope.lab::INSTR", Resource{Interface: TCPIP, Host: "scope.lab", HostPort: DefaultSocketPort, SecondaryAddr: -1}, "TCPIP0::scope.lab::5025::SOCKET"},
		{"USB0::0x0699::0x0378::C011758::INSTR", Resource{Interface: USB, VendorID: 0x0699, ProductID: 0x0378, Serial: "C011758", SecondaryAddr: -1}, "USB0::0x0699::0x0378::C011758::INSTR"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r, err := Parse(tc.name)
			require.NoError(t, err)
			assert.Equal(t, tc.want, r)
			assert.Equal(t, tc.str, r.String())
		})
	}
}

func TestParseErrors(t *testing.T) {
	for _, name := range []string{
		"",
		"GPIB0::31::INSTR",
		"GPIB0::4::90::INSTR",
		"GPIB0::INSTR",
		"ASRL::INSTR",
		"TCPIP0::host::http::SOCKET",
		"TCPIP0::host::5025::INSTR",
		"USB0::zz::0x1::INSTR",
		"VXI0::1::INSTR",
	} {
		_, err := Parse(name)
		var pe *ParseError
		assert.True(t, errors.As(err, &pe), name)
	}
}
