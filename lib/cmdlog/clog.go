// Copyright (c) 2020–2024 The bench developers. All rights reserved.
// Project site: https://github.com/gotmc/bench
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

// Package cmdlog traces the traffic of a transport, with commands and
// replies styled for a terminal.
package cmdlog

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/sirupsen/logrus"

	"github.com/gotmc/bench/lib/scpi"
)

func isASCII(s string) bool {
	return !strings.ContainsFunc(s, func(r rune) bool {
		switch {
		case r < 7:
			return true
		case r > 6 && r < 14:
			return false
		case r > 13 && r < 32:
			return true
		case r > 127:
			return true
		}
		return false
	})
}

var (
	CmdStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	R1Style  = lipgloss.NewStyle().Foreground(lipgloss.Color("35"))
	R2Style  = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
)

// Transport logs every line written and every message read through the
// wrapped transport at info level.
type Transport struct {
	scpi.Transport
	log logrus.FieldLogger
}

var _ scpi.Transport = (*Transport)(nil)

// Wrap returns t with tracing. A nil log means the standard logger.
func Wrap(t scpi.Transport, log logrus.FieldLogger) *Transport {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Transport{Transport: t, log: log.WithField("resource", t.Resource())}
}

// Describe renders a reply for the log: quoted when it is text, quoted and
// in hex when it is short binary, hex only when it is long binary.
func Describe(reply []byte) string {
	a := string(reply)
	if len(a) == 0 {
		return R1Style.Render("<no response>")
	}
	var b strings.Builder
	switch {
	case isASCII(a):
		b.WriteString(R2Style.Render(strconv.Quote(a)))
	case len(a) < 32:
		b.WriteString(R2Style.Render(strconv.Quote(a)))
		fmt.Fprintf(&b, " (% 2x)", reply)
	default:
		fmt.Fprintf(&b, "% 2x ...", reply[:32])
	}
	return fmt.Sprintf("[%d] %s", len(a), b.String())
}

func (t *Transport) WriteLine(s string) error {
	err := t.Transport.WriteLine(s)
	if err != nil {
		t.log.WithError(err).Infof("%s()", CmdStyle.Render(s))
		return err
	}
	t.log.Infof("%s()", CmdStyle.Render(s))
	return nil
}

func (t *Transport) ReadMessage() ([]byte, error) {
	start := time.Now()
	msg, err := t.Transport.ReadMessage()
	log := t.log.WithField("elapsed", time.Since(start).Round(time.Millisecond))
	if err != nil {
		log.WithError(err).Info(R1Style.Render("<no response>"))
		return msg, err
	}
	log.Info(Describe(msg))
	return msg, nil
}

func (t *Transport) SetTerminators(term scpi.Terminators) error {
	if term.Raw() {
		t.log.Info(R1Style.Render("raw mode"))
	}
	return t.Transport.SetTerminators(term)
}
