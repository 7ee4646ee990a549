// Copyright (c) 2020–2024 The bench developers. All rights reserved.
// Project site: https://github.com/gotmc/bench
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

package scpi_test

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gotmc/bench/lib/scpi"
	"github.com/gotmc/bench/lib/scpi/scpitest"
)

func TestSendFormatsAndTrims(t *testing.T) {
	ft := scpitest.New("GPIB0::3::INSTR")
	d := scpi.NewDevice(ft)

	require.NoError(t, d.Send("  VOLT %s ", scpi.FormatFloat(5)))
	require.NoError(t, d.Send("DISP:TEXT \"100%\""))
	assert.Equal(t, []string{"VOLT 5", `DISP:TEXT "100%"`}, ft.Writes)
}

func TestQueryTrimsReply(t *testing.T) {
	ft := scpitest.New("dev").Reply("HEWLETT-PACKARD,34401A,0,11-5-2\r\n")
	d := scpi.NewDevice(ft)

	idn, err := d.Identify()
	require.NoError(t, err)
	assert.Equal(t, "HEWLETT-PACKARD,34401A,0,11-5-2", idn)
	assert.Equal(t, []string{"*IDN?"}, ft.Writes)
}

func TestQueryTimeout(t *testing.T) {
	d := scpi.NewDevice(scpitest.New("dev"))

	_, err := d.Query("MEAS:VOLT?")
	require.Error(t, err)
	assert.True(t, errors.Is(err, scpi.ErrCommunicationTimeout))
}

func TestQueryFloat(t *testing.T) {
	ft := scpitest.New("dev").Reply("+1.23450000E+00", "OVLD")
	d := scpi.NewDevice(ft)

	v, err := d.QueryFloat("READ?")
	require.NoError(t, err)
	assert.InDelta(t, 1.2345, v, 1e-12)

	_, err = d.QueryFloat("READ?")
	var perr *scpi.ParseError
	require.True(t, errors.As(err, &perr), "got %v", err)
	assert.Equal(t, "READ?", perr.Command)
	assert.Equal(t, "OVLD", perr.Reply)
}

func TestQueryFloatTransportErrorIsNotParseError(t *testing.T) {
	d := scpi.NewDevice(scpitest.New("dev"))

	_, err := d.QueryFloat("READ?")
	var perr *scpi.ParseError
	assert.False(t, errors.As(err, &perr))
	assert.True(t, errors.Is(err, scpi.ErrCommunicationTimeout))
}

func TestResetAndClose(t *testing.T) {
	ft := scpitest.New("dev")
	d := scpi.NewDevice(ft)

	require.NoError(t, d.Reset())
	require.NoError(t, d.Close())
	require.NoError(t, d.Close(), "second close must not fail")
	assert.Equal(t, 1, ft.Closes)
	assert.Equal(t, []string{"*RST"}, ft.Writes)
	assert.ErrorIs(t, d.Send("*CLS"), scpi.ErrClosed)
}

func TestNextError(t *testing.T) {
	ft := scpitest.New("dev").Reply(`+0,"No error"`, `-113,"Undefined header"`)
	d := scpi.NewDevice(ft)

	require.NoError(t, d.NextError())
	err := d.NextError()
	var ierr *scpi.InstrumentError
	require.True(t, errors.As(err, &ierr))
	assert.Equal(t, -113, ierr.Code)
	assert.Equal(t, "Undefined header", ierr.Message)
}

func TestReadRawRestoresTerminators(t *testing.T) {
	ft := scpitest.New("dev").ReplyBytes([]byte{0x89, 'P', 'N', 'G', '\n', 0x00})
	d := scpi.NewDevice(ft)

	payload, err := d.ReadRaw("HARDC STAR")
	require.NoError(t, err)
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G', '\n', 0x00}, payload)
	require.Len(t, ft.TermHistory, 2)
	assert.True(t, ft.TermHistory[0].Raw())
	assert.Equal(t, scpi.DefaultTerminators, ft.Terminators())
}

func TestRawModeRestoresTerminatorsOnFailure(t *testing.T) {
	ft := scpitest.New("dev").FailRead(errors.New("usb stall"))
	d := scpi.NewDevice(ft)

	_, err := d.ReadRaw("HARDC STAR")
	require.Error(t, err)
	assert.Equal(t, scpi.DefaultTerminators, ft.Terminators())
}

func TestUseClosesOnError(t *testing.T) {
	ft := scpitest.New("dev")
	ft.CloseErr = errors.New("already gone")
	d := scpi.NewDevice(ft)
	primary := errors.New("measurement failed")

	err := scpi.Use(d, func(d *scpi.Device) error { return primary })
	assert.Equal(t, primary, err, "close failure must not mask the primary error")
	assert.Equal(t, 1, ft.Closes)
}

func TestUseReturnsCloseErrorOnSuccess(t *testing.T) {
	ft := scpitest.New("dev")
	ft.CloseErr = errors.New("already gone")
	d := scpi.NewDevice(ft)

	err := scpi.Use(d, func(d *scpi.Device) error { return d.Send("OUTP OFF") })
	assert.Equal(t, ft.CloseErr, err)
	assert.Equal(t, []string{"OUTP OFF"}, ft.Writes)
}

func TestUseClosesOnPanic(t *testing.T) {
	ft := scpitest.New("dev")
	d := scpi.NewDevice(ft)

	assert.Panics(t, func() {
		_ = scpi.Use(d, func(*scpi.Device) error { panic("boom") })
	})
	assert.Equal(t, 1, ft.Closes)
}

func TestMetricsCountTraffic(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := scpi.NewMetrics(reg)
	ft := scpitest.New("dev").Reply("1")
	d := scpi.NewDevice(ft, scpi.WithMetrics(m))

	require.NoError(t, d.Send("OUTP ON"))
	_, err := d.Query("OUTP?")
	require.NoError(t, err)
	_, err = d.Query("OUTP?")
	require.Error(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Commands.WithLabelValues("dev", "send")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Commands.WithLabelValues("dev", "query")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Errors.WithLabelValues("dev", "query")))
}
