// Copyright (c) 2020–2024 The bench developers. All rights reserved.
// Project site: https://github.com/gotmc/bench
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

package scope

import (
	"os"

	"github.com/pkg/errors"

	"github.com/gotmc/bench/lib/scpi"
	"github.com/gotmc/bench/lib/tek"
	"github.com/gotmc/bench/lib/waveform"
)

// AcquireWaveform transfers the full record of ch as signed bytes and
// scales it with the waveform preamble.
func (s *Tektronix) AcquireWaveform(ch int) (waveform.Record, error) {
	if err := checkChannel(ch); err != nil {
		return waveform.Record{}, err
	}
	for _, cmd := range []string{"DAT:SOU " + Channel(ch), "DAT:ENC RIB", "DAT:WID 1"} {
		if err := s.Send(cmd); err != nil {
			return waveform.Record{}, err
		}
	}
	n, err := s.QueryInt("HOR:RECO?")
	if err != nil {
		return waveform.Record{}, err
	}
	if err := s.Send("DAT:STAR 1"); err != nil {
		return waveform.Record{}, err
	}
	if err := s.Send("DAT:STOP %d", n); err != nil {
		return waveform.Record{}, err
	}

	var p waveform.Preamble
	for _, q := range []struct {
		cmd string
		dst *float64
	}{
		{"WFMO:YMU?", &p.YMult},
		{"WFMO:YOF?", &p.YOffset},
		{"WFMO:YZE?", &p.YZero},
		{"WFMO:XIN?", &p.XIncrement},
		{"WFMO:XZE?", &p.XZero},
	} {
		if *q.dst, err = s.QueryFloat(q.cmd); err != nil {
			return waveform.Record{}, err
		}
	}

	var data []byte
	err = s.RawMode(func(t scpi.Transport) error {
		if err := s.Send("CURV?"); err != nil {
			return err
		}
		var rerr error
		data, rerr = tek.ReadBlock(t)
		return rerr
	})
	if err != nil {
		return waveform.Record{}, errors.Wrapf(err, "reading curve of %s", Channel(ch))
	}
	raw, err := tek.Decode(data, tek.RIBinary1)
	if err != nil {
		return waveform.Record{}, err
	}
	if len(raw) != n {
		s.Logger().WithField("want", n).WithField("got", len(raw)).Warn("short waveform record")
	}
	return waveform.Reconstruct(Channel(ch), raw, p), nil
}

// Screenshot returns the screen as a PNG image. The scope sends the image
// without a block header, so it is read raw until end of message.
func (s *Tektronix) Screenshot() ([]byte, error) {
	for _, cmd := range []string{"HARDC:FORM PNG", "HARDC:LAY LAN", "HARDC:PORT USB"} {
		if err := s.Send(cmd); err != nil {
			return nil, err
		}
	}
	img, err := s.ReadRaw("HARDC STAR")
	if err != nil {
		return nil, errors.Wrap(err, "screenshot")
	}
	return img, nil
}

// SaveScreenshot writes a Screenshot to path.
func (s *Tektronix) SaveScreenshot(path string) error {
	img, err := s.Screenshot()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, img, 0o644); err != nil {
		return errors.Wrapf(err, "saving screenshot to %s", path)
	}
	s.Logger().WithField("path", path).Info("screenshot saved")
	return nil
}
