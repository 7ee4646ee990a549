// Copyright (c) 2020–2024 The bench developers. All rights reserved.
// Project site: https://github.com/gotmc/bench
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

// Package awg drives B&K Precision 4050 and 4060 series two channel
// function/arbitrary waveform generators.
//
// Commands follow the generator's channel prefixed grammar, for example
//
//	C1:BSWV WVTP,SINE
//	C1:BSWV FRQ,1000
//	C2:OUTP ON
//
// Composite helpers such as ConfigureSine issue several commands in order
// and stop at the first failure, leaving earlier settings applied.
package awg

import (
	"strconv"

	"github.com/gotmc/bench/lib/scpi"
)

// Shape is a basic waveform type.
type Shape string

const (
	Sine   Shape = "SINE"
	Square Shape = "SQUARE"
	Ramp   Shape = "RAMP"
	Pulse  Shape = "PULSE"
	Noise  Shape = "NOISE"
	Arb    Shape = "ARB"
	DC     Shape = "DC"
)

var channels = []string{"1", "2"}

// HighZ selects a high impedance output load in SetOutputLoad.
const HighZ = 0

// BK4050 is a B&K 4050/4060 series generator session.
type BK4050 struct {
	*scpi.Device
}

// New wraps t.
func New(t scpi.Transport, opts ...scpi.Option) *BK4050 {
	return &BK4050{Device: scpi.NewDevice(t, opts...)}
}

func checkChannel(ch int) error {
	if ch != 1 && ch != 2 {
		return &scpi.InvalidChannelError{Channel: strconv.Itoa(ch), Valid: channels}
	}
	return nil
}

// channel sends "C<ch>:<header> <params>" after validating ch.
func (g *BK4050) channel(ch int, header, params string) error {
	if err := checkChannel(ch); err != nil {
		return err
	}
	return g.Send("C%d:%s %s", ch, header, params)
}

func (g *BK4050) basicWave(ch int, param string, v float64) error {
	return g.channel(ch, "BSWV", param+","+scpi.FormatFloat(v))
}

// SetWaveform selects the basic waveform of ch.
func (g *BK4050) SetWaveform(ch int, shape Shape) error {
	switch shape {
	case Sine, Square, Ramp, Pulse, Noise, Arb, DC:
	default:
		return &scpi.InvalidArgumentError{Name: "waveform", Value: shape,
			Reason: "must be SINE, SQUARE, RAMP, PULSE, NOISE, ARB or DC"}
	}
	return g.channel(ch, "BSWV", "WVTP,"+string(shape))
}

// SetFrequency sets the frequency of ch in hertz.
func (g *BK4050) SetFrequency(ch int, hz float64) error { return g.basicWave(ch, "FRQ", hz) }

// SetAmplitude sets the peak to peak amplitude of ch in volts.
func (g *BK4050) SetAmplitude(ch int, vpp float64) error { return g.basicWave(ch, "AMP", vpp) }

// SetOffset sets the DC offset of ch in volts. For the DC waveform this is
// the output level.
func (g *BK4050) SetOffset(ch int, v float64) error { return g.basicWave(ch, "OFST", v) }

// SetDutyCycle sets the square wave duty cycle of ch in percent.
func (g *BK4050) SetDutyCycle(ch int, pct float64) error {
	if pct < 0 || pct > 100 {
		return &scpi.InvalidArgumentError{Name: "duty cycle", Value: pct, Reason: "must be within 0-100%"}
	}
	return g.basicWave(ch, "DUTY", pct)
}

// SetPhase sets the phase of ch in degrees.
func (g *BK4050) SetPhase(ch int, deg float64) error { return g.basicWave(ch, "PHSE", deg) }

// SetSymmetry sets the ramp symmetry of ch in percent.
func (g *BK4050) SetSymmetry(ch int, pct float64) error {
	if pct < 0 || pct > 100 {
		return &scpi.InvalidArgumentError{Name: "symmetry", Value: pct, Reason: "must be within 0-100%"}
	}
	return g.basicWave(ch, "SYM", pct)
}

// SetPulseShape sets the pulse width, rise and fall times of ch in seconds.
func (g *BK4050) SetPulseShape(ch int, width, rise, fall float64) error {
	return sequence(
		func() error { return g.basicWave(ch, "WIDTH", width) },
		func() error { return g.basicWave(ch, "RISE", rise) },
		func() error { return g.basicWave(ch, "FALL", fall) },
	)
}

// SetNoise sets the noise standard deviation and mean of ch in volts.
// A bandwidth of zero leaves the noise bandwidth unlimited.
func (g *BK4050) SetNoise(ch int, stdev, mean, bandwidth float64) error {
	steps := []func() error{
		func() error { return g.basicWave(ch, "STDEV", stdev) },
		func() error { return g.basicWave(ch, "MEAN", mean) },
	}
	if bandwidth > 0 {
		steps = append(steps,
			func() error { return g.channel(ch, "BSWV", "BANDSTATE,ON") },
			func() error { return g.basicWave(ch, "BANDWIDTH", bandwidth) },
		)
	} else {
		steps = append(steps, func() error { return g.channel(ch, "BSWV", "BANDSTATE,OFF") })
	}
	return sequence(steps...)
}

// SetOutputLoad sets the load ch drives, in ohms, or HighZ.
func (g *BK4050) SetOutputLoad(ch int, ohms float64) error {
	load := "HZ"
	if ohms != HighZ {
		load = scpi.FormatFloat(ohms)
	}
	return g.channel(ch, "OUTP", "LOAD,"+load)
}

// SetOutput switches ch on or off.
func (g *BK4050) SetOutput(ch int, on bool) error {
	return g.channel(ch, "OUTP", onOff(on))
}

func (g *BK4050) OutputOn(ch int) error  { return g.SetOutput(ch, true) }
func (g *BK4050) OutputOff(ch int) error { return g.SetOutput(ch, false) }

// SetPolarity inverts the output of ch, or restores normal polarity.
func (g *BK4050) SetPolarity(ch int, inverted bool) error {
	p := "NOR"
	if inverted {
		p = "INVT"
	}
	return g.channel(ch, "OUTP", "PLRT,"+p)
}

// AddNoise superimposes noise on ch at the given signal to noise ratio in dB.
func (g *BK4050) AddNoise(ch int, on bool, ratio float64) error {
	return g.channel(ch, "NOISE_ADD", "STATE,"+onOff(on)+",RATIO,"+scpi.FormatFloat(ratio))
}

// ConfigureSine sets ch to a sine wave.
func (g *BK4050) ConfigureSine(ch int, hz, vpp, offset float64) error {
	return sequence(
		func() error { return g.SetWaveform(ch, Sine) },
		func() error { return g.SetFrequency(ch, hz) },
		func() error { return g.SetAmplitude(ch, vpp) },
		func() error { return g.SetOffset(ch, offset) },
	)
}

// ConfigureSquare sets ch to a square wave with the given duty cycle.
func (g *BK4050) ConfigureSquare(ch int, hz, vpp, offset, duty float64) error {
	return sequence(
		func() error { return g.SetWaveform(ch, Square) },
		func() error { return g.SetFrequency(ch, hz) },
		func() error { return g.SetAmplitude(ch, vpp) },
		func() error { return g.SetOffset(ch, offset) },
		func() error { return g.SetDutyCycle(ch, duty) },
	)
}

// ConfigurePWM sets ch to a unipolar square wave swinging between 0 and vpp.
func (g *BK4050) ConfigurePWM(ch int, hz, vpp, duty float64) error {
	return g.ConfigureSquare(ch, hz, vpp, vpp/2, duty)
}

// ConfigureRamp sets ch to a ramp with the given symmetry.
func (g *BK4050) ConfigureRamp(ch int, hz, vpp, offset, sym float64) error {
	return sequence(
		func() error { return g.SetWaveform(ch, Ramp) },
		func() error { return g.SetFrequency(ch, hz) },
		func() error { return g.SetAmplitude(ch, vpp) },
		func() error { return g.SetOffset(ch, offset) },
		func() error { return g.SetSymmetry(ch, sym) },
	)
}

// ConfigurePulse sets ch to a pulse train.
func (g *BK4050) ConfigurePulse(ch int, hz, vpp, offset, width, rise, fall float64) error {
	return sequence(
		func() error { return g.SetWaveform(ch, Pulse) },
		func() error { return g.SetFrequency(ch, hz) },
		func() error { return g.SetAmplitude(ch, vpp) },
		func() error { return g.SetOffset(ch, offset) },
		func() error { return g.SetPulseShape(ch, width, rise, fall) },
	)
}

// ConfigureArb plays the selected arbitrary waveform on ch.
func (g *BK4050) ConfigureArb(ch int, hz, vpp, offset float64) error {
	return sequence(
		func() error { return g.SetWaveform(ch, Arb) },
		func() error { return g.SetFrequency(ch, hz) },
		func() error { return g.SetAmplitude(ch, vpp) },
		func() error { return g.SetOffset(ch, offset) },
	)
}

// ConfigureDC sets ch to a constant level.
func (g *BK4050) ConfigureDC(ch int, level float64) error {
	return sequence(
		func() error { return g.SetWaveform(ch, DC) },
		func() error { return g.SetOffset(ch, level) },
	)
}

func sequence(steps ...func() error) error {
	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}
	return nil
}

func onOff(on bool) string {
	if on {
		return "ON"
	}
	return "OFF"
}
