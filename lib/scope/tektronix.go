// Copyright (c) 2020–2024 The bench developers. All rights reserved.
// Project site: https://github.com/gotmc/bench
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

// Package scope drives Tektronix DPO/MSO 2000 series oscilloscopes.
package scope

import (
	"strconv"
	"strings"
	"time"

	"github.com/gotmc/bench/lib/scpi"
)

// NumChannels is the number of analog inputs.
const NumChannels = 4

// DefaultSettleDelay is how long immediate measurements are given to
// compute before their value is read.
const DefaultSettleDelay = 100 * time.Millisecond

var analogChannels = []string{"1", "2", "3", "4"}

// Tektronix is a DPO/MSO oscilloscope session.
type Tektronix struct {
	*scpi.Device
	settle time.Duration
}

// New wraps t.
func New(t scpi.Transport, opts ...scpi.Option) *Tektronix {
	return &Tektronix{Device: scpi.NewDevice(t, opts...), settle: DefaultSettleDelay}
}

// SetSettleDelay changes the pause between configuring an immediate
// measurement and reading it.
func (s *Tektronix) SetSettleDelay(d time.Duration) { s.settle = d }

// Channel returns the source name of analog input ch, such as "CH1".
func Channel(ch int) string { return "CH" + strconv.Itoa(ch) }

func checkChannel(ch int) error {
	if ch < 1 || ch > NumChannels {
		return &scpi.InvalidChannelError{Channel: strconv.Itoa(ch), Valid: analogChannels}
	}
	return nil
}

func onOff(on bool) string {
	if on {
		return "ON"
	}
	return "OFF"
}

// Initialize clears status and turns off response headers so replies carry
// bare values.
func (s *Tektronix) Initialize() error {
	if err := s.Clear(); err != nil {
		return err
	}
	return s.Send("HEAD OFF")
}

// SetChannelDisplay turns the display of ch on or off.
func (s *Tektronix) SetChannelDisplay(ch int, on bool) error {
	if err := checkChannel(ch); err != nil {
		return err
	}
	return s.Send("SEL:CH%d %s", ch, onOff(on))
}

// ChannelDisplayed reports whether ch is shown.
func (s *Tektronix) ChannelDisplayed(ch int) (bool, error) {
	if err := checkChannel(ch); err != nil {
		return false, err
	}
	return s.QueryBool("SEL:CH" + strconv.Itoa(ch) + "?")
}

func (s *Tektronix) channelValue(ch int, header string, v float64) error {
	if err := checkChannel(ch); err != nil {
		return err
	}
	return s.Send("CH%d:%s %s", ch, header, scpi.FormatFloat(v))
}

// SetVerticalScale sets ch's sensitivity in units per division.
func (s *Tektronix) SetVerticalScale(ch int, perDiv float64) error {
	return s.channelValue(ch, "SCA", perDiv)
}

// SetPosition sets ch's vertical position in divisions from center.
func (s *Tektronix) SetPosition(ch int, divs float64) error {
	if divs < -4 || divs > 4 {
		return &scpi.InvalidArgumentError{Name: "position", Value: divs, Reason: "must be within ±4 divisions"}
	}
	return s.channelValue(ch, "POS", divs)
}

// SetCoupling selects DC, AC or GND input coupling.
func (s *Tektronix) SetCoupling(ch int, coupling string) error {
	if err := checkChannel(ch); err != nil {
		return err
	}
	c := strings.ToUpper(coupling)
	switch c {
	case "DC", "AC", "GND":
		return s.Send("CH%d:COUP %s", ch, c)
	}
	return &scpi.InvalidArgumentError{Name: "coupling", Value: coupling, Reason: "must be DC, AC or GND"}
}

// SetProbeAttenuation sets the attenuation of a passive probe on ch, for
// example 10 for a 10X probe. The scope takes the inverse as probe gain.
func (s *Tektronix) SetProbeAttenuation(ch int, x float64) error {
	if x <= 0 {
		return &scpi.InvalidArgumentError{Name: "probe attenuation", Value: x, Reason: "must be positive"}
	}
	return s.channelValue(ch, "PRO:GAIN", 1/x)
}

// SetBandwidth limits ch's bandwidth, for example "FULL" or "20E6".
func (s *Tektronix) SetBandwidth(ch int, bw string) error {
	if err := checkChannel(ch); err != nil {
		return err
	}
	return s.Send("CH%d:BAN %s", ch, strings.ToUpper(bw))
}

// ConfigureDigital sets up digital channel d (0-15) of an MSO. The threshold
// and display height (S, M or L) are only sent when enabling.
func (s *Tektronix) ConfigureDigital(d int, on bool, threshold float64, height string) error {
	if d < 0 || d > 15 {
		return &scpi.InvalidChannelError{Channel: "D" + strconv.Itoa(d), Valid: []string{"D0", "...", "D15"}}
	}
	if err := s.Send("SEL:D%d %s", d, onOff(on)); err != nil || !on {
		return err
	}
	if err := s.Send("DIG:D%d:THR %s", d, scpi.FormatFloat(threshold)); err != nil {
		return err
	}
	return s.Send("DIG:D%d:POS %s", d, strings.ToUpper(height))
}

// SetHorizontalScale sets the time base in seconds per division.
func (s *Tektronix) SetHorizontalScale(perDiv float64) error {
	return s.Send("HOR:SCA %s", scpi.FormatFloat(perDiv))
}

// SetHorizontalPosition sets the trigger position in percent of the record.
func (s *Tektronix) SetHorizontalPosition(pct float64) error {
	return s.Send("HOR:POS %s", scpi.FormatFloat(pct))
}

func (s *Tektronix) Run() error  { return s.Send("ACQ:STATE RUN") }
func (s *Tektronix) Stop() error { return s.Send("ACQ:STATE STOP") }

// Single arms one sequence acquisition.
func (s *Tektronix) Single() error {
	if err := s.Send("ACQ:STOPA SEQ"); err != nil {
		return err
	}
	return s.Run()
}

// Autoset runs the front panel autoset and waits for it to finish.
func (s *Tektronix) Autoset() error {
	if err := s.Send("AUTOS EXEC"); err != nil {
		return err
	}
	return s.WaitComplete()
}

// SetAcquireMode selects SAMPLE, PEAKDETECT, HIRES or AVERAGE acquisition.
// averages is only sent in AVERAGE mode.
func (s *Tektronix) SetAcquireMode(mode string, averages int) error {
	m := strings.ToUpper(mode)
	switch m {
	case "SAMPLE", "PEAKDETECT", "HIRES":
		return s.Send("ACQ:MOD %s", m)
	case "AVERAGE":
		if averages < 2 {
			return &scpi.InvalidArgumentError{Name: "averages", Value: averages, Reason: "must be at least 2"}
		}
		if err := s.Send("ACQ:MOD %s", m); err != nil {
			return err
		}
		return s.Send("ACQ:NUMAV %d", averages)
	}
	return &scpi.InvalidArgumentError{Name: "acquire mode", Value: mode,
		Reason: "must be SAMPLE, PEAKDETECT, HIRES or AVERAGE"}
}

// EdgeTrigger describes an A trigger on a signal edge.
type EdgeTrigger struct {
	Source   string  // e.g. "CH1", "EXT", "LINE"
	Slope    string  // RISE or FALL; RISE when empty
	Level    float64 // volts
	Mode     string  // AUTO or NORMAL; AUTO when empty
	Coupling string  // DC when empty
}

// ConfigureEdgeTrigger programs the A trigger.
func (s *Tektronix) ConfigureEdgeTrigger(tr EdgeTrigger) error {
	slope := strings.ToUpper(tr.Slope)
	if slope == "" {
		slope = "RISE"
	}
	if slope != "RISE" && slope != "FALL" {
		return &scpi.InvalidArgumentError{Name: "slope", Value: tr.Slope, Reason: "must be RISE or FALL"}
	}
	mode := strings.ToUpper(tr.Mode)
	if mode == "" {
		mode = "AUTO"
	}
	coupling := strings.ToUpper(tr.Coupling)
	if coupling == "" {
		coupling = "DC"
	}
	if tr.Source == "" {
		return &scpi.InvalidArgumentError{Name: "trigger source", Value: tr.Source, Reason: "must not be empty"}
	}
	cmds := []string{
		"TRIG:A:TYP EDGE",
		"TRIG:A:EDGE:SOU " + strings.ToUpper(tr.Source),
		"TRIG:A:EDGE:COUP " + coupling,
		"TRIG:A:EDGE:SLO " + slope,
		"TRIG:A:LEV " + scpi.FormatFloat(tr.Level),
		"TRIG:A:MOD " + mode,
	}
	for _, cmd := range cmds {
		if err := s.Send(cmd); err != nil {
			return err
		}
	}
	s.Logger().WithField("trigger", tr).Debug("edge trigger configured")
	return nil
}

// SetTriggerAuto selects AUTO trigger mode when on, NORMAL otherwise.
func (s *Tektronix) SetTriggerAuto(on bool) error {
	if on {
		return s.Send("TRIG:A:MOD AUTO")
	}
	return s.Send("TRIG:A:MOD NORM")
}

// ForceTrigger forces a trigger event.
func (s *Tektronix) ForceTrigger() error { return s.Send("TRIG FORC") }
