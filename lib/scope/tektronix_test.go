// Copyright (c) 2020–2024 The bench developers. All rights reserved.
// Project site: https://github.com/gotmc/bench
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

package scope

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gotmc/bench/lib/scpi"
	"github.com/gotmc/bench/lib/scpi/scpitest"
)

func newScope(replies ...string) (*Tektronix, *scpitest.Transport) {
	ft := scpitest.New("USB0::0x0699::0x0378::C011758::INSTR").Reply(replies...)
	s := New(ft)
	s.SetSettleDelay(0)
	return s, ft
}

// block frames data as a definite-length block followed by a newline.
func block(data ...byte) []byte {
	n := []byte(strconv.Itoa(len(data)))
	out := append([]byte{'#', byte('0' + len(n))}, n...)
	out = append(out, data...)
	return append(out, '\n')
}

func queueWaveform(ft *scpitest.Transport, ymult, xincr string, data ...byte) {
	ft.Reply(strconv.Itoa(len(data)), ymult, "0", "0", xincr, "0")
	ft.ReplyBytes(block(data...))
}

func TestChannelSetup(t *testing.T) {
	s, ft := newScope("1")
	require.NoError(t, s.SetChannelDisplay(1, true))
	require.NoError(t, s.SetVerticalScale(2, 0.5))
	require.NoError(t, s.SetPosition(3, -1.5))
	require.NoError(t, s.SetCoupling(4, "ac"))
	require.NoError(t, s.SetProbeAttenuation(1, 10))
	require.NoError(t, s.SetBandwidth(1, "full"))
	on, err := s.ChannelDisplayed(2)
	require.NoError(t, err)
	assert.True(t, on)
	assert.Equal(t, []string{
		"SEL:CH1 ON",
		"CH2:SCA 0.5",
		"CH3:POS -1.5",
		"CH4:COUP AC",
		"CH1:PRO:GAIN 0.1",
		"CH1:BAN FULL",
		"SEL:CH2?",
	}, ft.Writes)
}

func TestInvalidChannel(t *testing.T) {
	s, ft := newScope()
	for _, err := range []error{
		s.SetChannelDisplay(0, true),
		s.SetVerticalScale(5, 1),
		s.SetCoupling(9, "DC"),
	} {
		var cerr *scpi.InvalidChannelError
		require.True(t, errors.As(err, &cerr))
	}
	_, err := s.MeasureVpp(5)
	var cerr *scpi.InvalidChannelError
	require.True(t, errors.As(err, &cerr))
	_, err = s.AcquireWaveform(0)
	require.True(t, errors.As(err, &cerr))
	assert.Empty(t, ft.Writes)

	var aerr *scpi.InvalidArgumentError
	assert.True(t, errors.As(s.SetCoupling(1, "RF"), &aerr))
	assert.True(t, errors.As(s.SetPosition(1, 5), &aerr))
	assert.True(t, errors.As(s.SetProbeAttenuation(1, 0), &aerr))
	assert.Empty(t, ft.Writes)
}

func TestAcquisitionAndHorizontal(t *testing.T) {
	s, ft := newScope("1")
	require.NoError(t, s.Initialize())
	require.NoError(t, s.SetHorizontalScale(1e-3))
	require.NoError(t, s.SetHorizontalPosition(50))
	require.NoError(t, s.Run())
	require.NoError(t, s.Stop())
	require.NoError(t, s.Single())
	require.NoError(t, s.SetAcquireMode("average", 16))
	require.NoError(t, s.SetAcquireMode("HIRES", 0))
	require.NoError(t, s.Autoset())
	assert.Equal(t, []string{
		"*CLS", "HEAD OFF",
		"HOR:SCA 0.001",
		"HOR:POS 50",
		"ACQ:STATE RUN",
		"ACQ:STATE STOP",
		"ACQ:STOPA SEQ", "ACQ:STATE RUN",
		"ACQ:MOD AVERAGE", "ACQ:NUMAV 16",
		"ACQ:MOD HIRES",
		"AUTOS EXEC", "*OPC?",
	}, ft.Writes)

	var aerr *scpi.InvalidArgumentError
	assert.True(t, errors.As(s.SetAcquireMode("ENVELOPE", 0), &aerr))
	assert.True(t, errors.As(s.SetAcquireMode("AVERAGE", 1), &aerr))
}

func TestEdgeTrigger(t *testing.T) {
	s, ft := newScope()
	require.NoError(t, s.ConfigureEdgeTrigger(EdgeTrigger{Source: "ch2", Level: 1.5, Slope: "fall", Mode: "NORMAL"}))
	require.NoError(t, s.SetTriggerAuto(true))
	require.NoError(t, s.SetTriggerAuto(false))
	require.NoError(t, s.ForceTrigger())
	assert.Equal(t, []string{
		"TRIG:A:TYP EDGE",
		"TRIG:A:EDGE:SOU CH2",
		"TRIG:A:EDGE:COUP DC",
		"TRIG:A:EDGE:SLO FALL",
		"TRIG:A:LEV 1.5",
		"TRIG:A:MOD NORMAL",
		"TRIG:A:MOD AUTO",
		"TRIG:A:MOD NORM",
		"TRIG FORC",
	}, ft.Writes)

	var aerr *scpi.InvalidArgumentError
	assert.True(t, errors.As(s.ConfigureEdgeTrigger(EdgeTrigger{Source: "CH1", Slope: "EITHER"}), &aerr))
	assert.True(t, errors.As(s.ConfigureEdgeTrigger(EdgeTrigger{}), &aerr))
}

func TestDigital(t *testing.T) {
	s, ft := newScope()
	require.NoError(t, s.ConfigureDigital(3, true, 1.4, "m"))
	require.NoError(t, s.ConfigureDigital(4, false, 0, ""))
	assert.Equal(t, []string{"SEL:D3 ON", "DIG:D3:THR 1.4", "DIG:D3:POS M", "SEL:D4 OFF"}, ft.Writes)

	var cerr *scpi.InvalidChannelError
	assert.True(t, errors.As(s.ConfigureDigital(16, true, 1, "S"), &cerr))
}

func TestImmediateMeasurement(t *testing.T) {
	s, ft := newScope("1.0000E+03", "9.91E+37")

	f, err := s.MeasureFrequency(1)
	require.NoError(t, err)
	v, ok := f.Float()
	assert.True(t, ok)
	assert.Equal(t, 1000.0, v)
	assert.Equal(t, "CH1", f.Source)

	vpp, err := s.MeasureVpp(2)
	require.NoError(t, err)
	assert.False(t, vpp.Valid, "sentinel must be reported as absent")

	assert.Equal(t, []string{
		"MEASU:IMM:SOU1 CH1", "MEASU:IMM:TYP FREQ", "MEASU:IMM:VAL?",
		"MEASU:IMM:SOU1 CH2", "MEASU:IMM:TYP PK2P", "MEASU:IMM:VAL?",
	}, ft.Writes)
}

func TestMeasureParseError(t *testing.T) {
	s, _ := newScope("garbage")
	_, err := s.MeasureRise(1)
	var perr *scpi.ParseError
	assert.True(t, errors.As(err, &perr))
}

func TestMeasureDelay(t *testing.T) {
	s, ft := newScope("2.5E-06")
	r, err := s.MeasureDelay(DelaySpec{Start: "CH1", Stop: "CH2", StopEdge: "fall"})
	require.NoError(t, err)
	assert.Equal(t, 2.5e-6, r.Value)
	assert.Equal(t, []string{
		"MEASU:IMM:TYP DEL",
		"MEASU:IMM:SOU1 CH1",
		"MEASU:IMM:DEL:EDGE1 RISE",
		"MEASU:IMM:SOU2 CH2",
		"MEASU:IMM:DEL:EDGE2 FALL",
		"MEASU:IMM:DEL:DIR FORW",
		"MEASU:IMM:VAL?",
	}, ft.Writes)

	_, err = s.MeasureDelay(DelaySpec{Start: "CH1", Stop: "CH2", StartEdge: "UP"})
	var aerr *scpi.InvalidArgumentError
	assert.True(t, errors.As(err, &aerr))
}

func TestMeasurementSlots(t *testing.T) {
	s, ft := newScope("4.2")
	require.NoError(t, s.AddMeasurement(2, Mean, "ch1"))
	r, err := s.MeasurementValue(2)
	require.NoError(t, err)
	assert.Equal(t, 4.2, r.Value)
	assert.Equal(t, []string{
		"MEASU:MEAS2:TYP MEAN", "MEASU:MEAS2:SOU CH1", "MEASU:MEAS2:STATE ON", "MEASU:MEAS2:VAL?",
	}, ft.Writes)

	var aerr *scpi.InvalidArgumentError
	assert.True(t, errors.As(s.AddMeasurement(5, Mean, "CH1"), &aerr))
}

func TestAcquireWaveform(t *testing.T) {
	s, ft := newScope()
	queueWaveform(ft, "0.01", "1e-6", 0, 64, 127, 0x80)

	rec, err := s.AcquireWaveform(1)
	require.NoError(t, err)
	assert.Equal(t, "CH1", rec.Source)
	assert.Equal(t, []int{0, 64, 127, -128}, rec.Raw)
	want := []float64{0, 0.64, 1.27, -1.28}
	for i := range want {
		assert.InDelta(t, want[i], rec.Volts[i], 1e-12)
		assert.InDelta(t, float64(i)*1e-6, rec.Time[i], 1e-18)
	}
	assert.Equal(t, []string{
		"DAT:SOU CH1", "DAT:ENC RIB", "DAT:WID 1", "HOR:RECO?",
		"DAT:STAR 1", "DAT:STOP 4",
		"WFMO:YMU?", "WFMO:YOF?", "WFMO:YZE?", "WFMO:XIN?", "WFMO:XZE?",
		"CURV?",
	}, ft.Writes)
	assert.Equal(t, scpi.DefaultTerminators, ft.Terminators())
	require.Len(t, ft.TermHistory, 2)
	assert.True(t, ft.TermHistory[0].Raw())
}

func TestAcquireWaveformBadBlock(t *testing.T) {
	s, ft := newScope("4", "0.01", "0", "0", "1e-6", "0")
	ft.ReplyBytes([]byte("garbage"))
	_, err := s.AcquireWaveform(2)
	require.Error(t, err)
	assert.Equal(t, scpi.DefaultTerminators, ft.Terminators())
}

func TestMeasureSwitching(t *testing.T) {
	s, ft := newScope("1.0E-06", "2.0E-07")
	queueWaveform(ft, "0.01", "1e-6", 0, 0, 100, 100)
	queueWaveform(ft, "0.01", "1e-6", 0, 0, 0, 100)
	ft.Reply("9.91E+37", "3.0E-07")

	sw, err := s.MeasureSwitching(1, 2)
	require.NoError(t, err)
	assert.Equal(t, 1e-6, sw.On.Value)
	assert.Equal(t, 2e-7, sw.Rise.Value)
	assert.True(t, sw.Delay.Valid)
	assert.InDelta(t, 1e-6, sw.Delay.Value, 1e-15)
	assert.False(t, sw.Off.Valid)
	assert.Equal(t, 3e-7, sw.Fall.Value)
	assert.Zero(t, ft.Remaining())
}

func TestFirstCrossing(t *testing.T) {
	i, ok := firstCrossing([]float64{0, 0.2, 0.6, 1}, 0.5)
	assert.True(t, ok)
	assert.Equal(t, 2, i)
	_, ok = firstCrossing([]float64{1, 1, 1}, 0.5)
	assert.False(t, ok)
	_, ok = firstCrossing(nil, 0.5)
	assert.False(t, ok)
}

func TestScreenshot(t *testing.T) {
	png := []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}
	s, ft := newScope()
	ft.ReplyBytes(png)

	path := filepath.Join(t.TempDir(), "screen.png")
	require.NoError(t, s.SaveScreenshot(path))
	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, png, got)
	assert.Equal(t, []string{"HARDC:FORM PNG", "HARDC:LAY LAN", "HARDC:PORT USB", "HARDC STAR"}, ft.Writes)
	assert.Equal(t, scpi.DefaultTerminators, ft.Terminators())
}

func TestScreenshotFailureRestoresTerminators(t *testing.T) {
	s, ft := newScope()
	ft.FailRead(errors.New("usb transfer aborted"))

	_, err := s.Screenshot()
	require.Error(t, err)
	require.Len(t, ft.TermHistory, 2)
	assert.True(t, ft.TermHistory[0].Raw())
	assert.Equal(t, scpi.DefaultTerminators, ft.TermHistory[1])
	assert.Equal(t, scpi.DefaultTerminators, ft.Terminators())
}
