// Copyright (c) 2020–2024 The bench developers. All rights reserved.
// Project site: https://github.com/gotmc/bench
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

// Package scpi provides the generic command facade shared by every
// instrument driver: send, query, identify, reset and close over a
// Transport, plus the error taxonomy drivers report with.
package scpi

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gotmc/query"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Common IEEE 488.2 commands.
const (
	IdentifyCommand = "*IDN?"
	ResetCommand    = "*RST"
	ClearCommand    = "*CLS"
	CompleteQuery   = "*OPC?"
	ErrorQueueQuery = "SYST:ERR?"
	TriggerCommand  = "*TRG"
	SelfTestQuery   = "*TST?"
)

const logComponent = "scpi"

// Instrument is the capability set every driver exposes.
type Instrument interface {
	Send(format string, a ...any) error
	Query(cmd string) (string, error)
	Identify() (string, error)
	Reset() error
	Close() error
	Resource() string
}

// Device wraps a Transport with the generic command set. Drivers embed a
// *Device and add typed operations on top of Send and Query.
type Device struct {
	t       Transport
	log     logrus.FieldLogger
	metrics *Metrics
	closed  bool
}

// Option configures a Device.
type Option func(*Device)

// WithLogger sets the logger commands and replies are traced to at debug
// level.
func WithLogger(l logrus.FieldLogger) Option {
	return func(d *Device) { d.log = l }
}

// WithMetrics records traffic into m.
func WithMetrics(m *Metrics) Option {
	return func(d *Device) { d.metrics = m }
}

// NewDevice wraps t. The device owns t from now on; closing the device
// closes t.
func NewDevice(t Transport, opts ...Option) *Device {
	d := &Device{t: t, log: logrus.StandardLogger()}
	for _, opt := range opts {
		opt(d)
	}
	d.log = d.log.WithFields(logrus.Fields{"component": logComponent, "resource": t.Resource()})
	return d
}

// Transport returns the underlying transport.
func (d *Device) Transport() Transport { return d.t }

// Resource returns the resource identifier of the underlying transport.
func (d *Device) Resource() string { return d.t.Resource() }

// Logger returns the device's logger, with the resource field set.
func (d *Device) Logger() logrus.FieldLogger { return d.log }

// Send formats according to a format specifier if arguments are provided
// and writes the command. No reply is expected. Leading and trailing
// whitespace is removed before the write terminator is appended.
func (d *Device) Send(format string, a ...any) error {
	if d.closed {
		return ErrClosed
	}
	cmd := format
	if a != nil {
		cmd = fmt.Sprintf(format, a...)
	}
	cmd = strings.TrimSpace(cmd)
	d.log.WithField("cmd", cmd).Debug("send")
	start := time.Now()
	err := d.t.WriteLine(cmd)
	d.metrics.observe(d.Resource(), "send", start, err)
	if err != nil {
		return errors.Wrapf(err, "send %q to %s", cmd, d.Resource())
	}
	return nil
}

// Query writes cmd and reads one reply line, with surrounding whitespace
// removed.
func (d *Device) Query(cmd string) (string, error) {
	if d.closed {
		return "", ErrClosed
	}
	cmd = strings.TrimSpace(cmd)
	start := time.Now()
	reply, err := d.query(cmd)
	d.metrics.observe(d.Resource(), "query", start, err)
	if err != nil {
		return "", errors.Wrapf(err, "query %q on %s", cmd, d.Resource())
	}
	d.log.WithFields(logrus.Fields{"cmd": cmd, "reply": reply}).Debug("query")
	return reply, nil
}

func (d *Device) query(cmd string) (string, error) {
	if err := d.t.WriteLine(cmd); err != nil {
		return "", err
	}
	msg, err := d.t.ReadMessage()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(msg)), nil
}

// Queryf is Query with a format specifier.
func (d *Device) Queryf(format string, a ...any) (string, error) {
	return d.Query(fmt.Sprintf(format, a...))
}

// recorder lets the github.com/gotmc/query helpers run over a Device while
// remembering whether a failure came from the transport or from parsing.
type recorder struct {
	d     *Device
	reply string
	err   error
}

func (r *recorder) Query(cmd string) (string, error) {
	r.reply, r.err = r.d.Query(cmd)
	return r.reply, r.err
}

func (r *recorder) classify(cmd string, err error) error {
	if err == nil || r.err != nil {
		return err
	}
	return &ParseError{Command: cmd, Reply: r.reply, Err: err}
}

// QueryFloat queries cmd and parses the reply as a float64. A reply that is
// not a number yields a *ParseError.
func (d *Device) QueryFloat(cmd string) (float64, error) {
	r := &recorder{d: d}
	v, err := query.Float64(r, cmd)
	return v, r.classify(cmd, err)
}

// QueryInt queries cmd and parses the reply as an int.
func (d *Device) QueryInt(cmd string) (int, error) {
	r := &recorder{d: d}
	v, err := query.Int(r, cmd)
	return v, r.classify(cmd, err)
}

// QueryBool queries cmd and parses the reply as a bool.
func (d *Device) QueryBool(cmd string) (bool, error) {
	r := &recorder{d: d}
	v, err := query.Bool(r, cmd)
	return v, r.classify(cmd, err)
}

// Identify returns the raw identification string.
func (d *Device) Identify() (string, error) {
	return d.Query(IdentifyCommand)
}

// Identity queries and parses the identification string.
func (d *Device) Identity() (Identity, error) {
	idn, err := d.Identify()
	if err != nil {
		return Identity{}, err
	}
	return ParseIdentity(idn), nil
}

// Reset returns the instrument to its default state. Completion is not
// verified.
func (d *Device) Reset() error { return d.Send(ResetCommand) }

// Clear clears the status registers and error queue.
func (d *Device) Clear() error { return d.Send(ClearCommand) }

// WaitComplete blocks until the instrument reports all pending operations
// complete, or the transport times out.
func (d *Device) WaitComplete() error {
	_, err := d.Query(CompleteQuery)
	return err
}

// NextError pops one entry from the instrument error queue. It returns nil
// when the queue is empty.
func (d *Device) NextError() error {
	reply, err := d.Query(ErrorQueueQuery)
	if err != nil {
		return err
	}
	return parseErrorQueue(reply)
}

func parseErrorQueue(reply string) error {
	codeText, msg, _ := strings.Cut(reply, ",")
	code, err := strconv.Atoi(strings.TrimPrefix(strings.TrimSpace(codeText), "+"))
	if err != nil {
		return &ParseError{Command: ErrorQueueQuery, Reply: reply, Err: err}
	}
	if code == 0 {
		return nil
	}
	return &InstrumentError{Code: code, Message: strings.Trim(strings.TrimSpace(msg), `"`)}
}

// RawMode runs fn with read framing suspended on the transport, for binary
// transfers that may contain the terminator byte. The previous terminators
// are restored on every path before RawMode returns.
func (d *Device) RawMode(fn func(t Transport) error) (err error) {
	if d.closed {
		return ErrClosed
	}
	prev := d.t.Terminators()
	if err := d.t.SetTerminators(Terminators{Write: prev.Write}); err != nil {
		return errors.Wrapf(err, "enter raw mode on %s", d.Resource())
	}
	defer func() {
		if rerr := d.t.SetTerminators(prev); rerr != nil {
			d.log.WithError(rerr).Warn("restoring terminators")
			if err == nil {
				err = errors.Wrapf(rerr, "leave raw mode on %s", d.Resource())
			}
		}
	}()
	return fn(d.t)
}

// ReadRaw sends cmd, if not empty, and reads one raw message such as an
// image payload that carries no length header.
func (d *Device) ReadRaw(cmd string) ([]byte, error) {
	var payload []byte
	err := d.RawMode(func(t Transport) error {
		if cmd != "" {
			if err := d.Send(cmd); err != nil {
				return err
			}
		}
		start := time.Now()
		var err error
		payload, err = t.ReadMessage()
		d.metrics.observe(d.Resource(), "raw", start, err)
		if err != nil {
			return errors.Wrapf(err, "raw read on %s", d.Resource())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	d.log.WithField("bytes", len(payload)).Debug("raw read")
	return payload, nil
}

// Close releases the transport. It is idempotent: closing an already closed
// device returns nil.
func (d *Device) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true
	return d.t.Close()
}
