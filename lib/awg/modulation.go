// Copyright (c) 2020–2024 The bench developers. All rights reserved.
// Project site: https://github.com/gotmc/bench
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

package awg

import (
	"strconv"
	"strings"

	"github.com/gotmc/bench/lib/scpi"
)

// Modulation is a modulation type of the MDWV subsystem.
type Modulation string

const (
	AM    Modulation = "AM"
	DSBAM Modulation = "DSBAM"
	FM    Modulation = "FM"
	PM    Modulation = "PM"
	PWM   Modulation = "PWM"
	ASK   Modulation = "ASK"
	FSK   Modulation = "FSK"
)

func checkChoice(name, v string, valid ...string) (string, error) {
	v = strings.ToUpper(v)
	for _, c := range valid {
		if v == c {
			return v, nil
		}
	}
	return "", &scpi.InvalidArgumentError{Name: name, Value: v, Reason: "must be one of " + strings.Join(valid, ", ")}
}

// SetModulation enables or disables modulation of ch.
func (g *BK4050) SetModulation(ch int, on bool) error {
	return g.channel(ch, "MDWV", "STATE,"+onOff(on))
}

// SetModulationType selects how ch is modulated.
func (g *BK4050) SetModulationType(ch int, m Modulation) error {
	return g.channel(ch, "MDWV", string(m))
}

// SetModulationSource selects INT or EXT as the modulating source of m.
func (g *BK4050) SetModulationSource(ch int, m Modulation, src string) error {
	src, err := checkChoice("modulation source", src, "INT", "EXT")
	if err != nil {
		return err
	}
	return g.channel(ch, "MDWV", string(m)+",SRC,"+src)
}

// SetModulationShape selects the internal modulating waveform of m.
func (g *BK4050) SetModulationShape(ch int, m Modulation, shape Shape) error {
	return g.channel(ch, "MDWV", string(m)+",MDSP,"+string(shape))
}

// SetModulationFrequency sets the internal modulating frequency of m.
func (g *BK4050) SetModulationFrequency(ch int, m Modulation, hz float64) error {
	return g.channel(ch, "MDWV", string(m)+",FRQ,"+scpi.FormatFloat(hz))
}

// SetAMDepth sets the AM depth in percent.
func (g *BK4050) SetAMDepth(ch int, pct float64) error {
	return g.channel(ch, "MDWV", "AM,DEPTH,"+scpi.FormatFloat(pct))
}

// SetFMDeviation sets the FM peak deviation in hertz.
func (g *BK4050) SetFMDeviation(ch int, hz float64) error {
	return g.channel(ch, "MDWV", "FM,DEVI,"+scpi.FormatFloat(hz))
}

// SetSweep enables or disables frequency sweeping of ch.
func (g *BK4050) SetSweep(ch int, on bool) error {
	return g.channel(ch, "SWWV", "STATE,"+onOff(on))
}

// SetSweepTime sets the sweep duration in seconds.
func (g *BK4050) SetSweepTime(ch int, seconds float64) error {
	return g.channel(ch, "SWWV", "TIME,"+scpi.FormatFloat(seconds))
}

// SetSweepRange sets the start and stop frequencies of the sweep.
func (g *BK4050) SetSweepRange(ch int, start, stop float64) error {
	return sequence(
		func() error { return g.channel(ch, "SWWV", "START,"+scpi.FormatFloat(start)) },
		func() error { return g.channel(ch, "SWWV", "STOP,"+scpi.FormatFloat(stop)) },
	)
}

// SetSweepMode selects LINE or LOG sweeping.
func (g *BK4050) SetSweepMode(ch int, mode string) error {
	mode, err := checkChoice("sweep mode", mode, "LINE", "LOG")
	if err != nil {
		return err
	}
	return g.channel(ch, "SWWV", "SWMD,"+mode)
}

// SetSweepDirection selects UP or DOWN.
func (g *BK4050) SetSweepDirection(ch int, dir string) error {
	dir, err := checkChoice("sweep direction", dir, "UP", "DOWN")
	if err != nil {
		return err
	}
	return g.channel(ch, "SWWV", "DIR,"+dir)
}

// SetSweepTrigger selects INT, EXT or MAN triggering of the sweep.
func (g *BK4050) SetSweepTrigger(ch int, src string) error {
	src, err := checkChoice("sweep trigger", src, "INT", "EXT", "MAN")
	if err != nil {
		return err
	}
	return g.channel(ch, "SWWV", "TRSR,"+src)
}

// TriggerSweep starts one manually triggered sweep.
func (g *BK4050) TriggerSweep(ch int) error {
	if err := checkChannel(ch); err != nil {
		return err
	}
	return g.Send("C%d:SWWV MTRIG", ch)
}

// SetBurst enables or disables burst mode on ch.
func (g *BK4050) SetBurst(ch int, on bool) error {
	return g.channel(ch, "BTWV", "STATE,"+onOff(on))
}

// SetBurstPeriod sets the internal burst period in seconds.
func (g *BK4050) SetBurstPeriod(ch int, seconds float64) error {
	return g.channel(ch, "BTWV", "PRD,"+scpi.FormatFloat(seconds))
}

// SetBurstCycles sets the number of cycles per burst.
func (g *BK4050) SetBurstCycles(ch int, n int) error {
	if n < 1 {
		return &scpi.InvalidArgumentError{Name: "burst cycles", Value: n, Reason: "must be at least 1"}
	}
	return g.channel(ch, "BTWV", "TIME,"+strconv.Itoa(n))
}

// SetBurstMode selects NCYC or GATE bursts.
func (g *BK4050) SetBurstMode(ch int, mode string) error {
	mode, err := checkChoice("burst mode", mode, "NCYC", "GATE")
	if err != nil {
		return err
	}
	return g.channel(ch, "BTWV", "GATE_NCYC,"+mode)
}

// SetBurstTrigger selects INT, EXT or MAN triggering of bursts.
func (g *BK4050) SetBurstTrigger(ch int, src string) error {
	src, err := checkChoice("burst trigger", src, "INT", "EXT", "MAN")
	if err != nil {
		return err
	}
	return g.channel(ch, "BTWV", "TRSR,"+src)
}
