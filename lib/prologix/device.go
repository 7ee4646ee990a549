// Copyright (c) 2020–2024 The bench developers. All rights reserved.
// Project site: https://github.com/gotmc/bench
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

package prologix

import (
	"bytes"
	"time"

	"github.com/gotmc/bench/lib/scpi"
)

// Device is the transport to one instrument on the controller's bus. The
// controller appends the GPIB terminator chosen with WithGPIBTermination,
// so the write terminator is not sent over the bus.
type Device struct {
	c        *Controller
	addr     address
	resource string
	term     scpi.Terminators
	timeout  time.Duration
	pending  []byte
	closed   bool
}

var _ scpi.Transport = (*Device)(nil)

// Resource implements scpi.Transport.
func (d *Device) Resource() string { return d.resource }

// WriteLine implements scpi.Transport.
func (d *Device) WriteLine(s string) error {
	if d.closed {
		return scpi.ErrClosed
	}
	d.pending = nil
	return d.c.write(d.addr, []byte(s))
}

// Write implements io.Writer.
func (d *Device) Write(p []byte) (int, error) {
	if d.closed {
		return 0, scpi.ErrClosed
	}
	d.pending = nil
	if err := d.c.write(d.addr, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// ReadMessage implements scpi.Transport. In text mode blank lines are
// skipped by the controller: they are its eot character following a reply
// that already ended in a line feed.
func (d *Device) ReadMessage() ([]byte, error) {
	if d.closed {
		return nil, scpi.ErrClosed
	}
	if d.term.Raw() {
		return d.c.read(d.addr, d.timeout, true)
	}
	msg, err := d.c.read(d.addr, d.timeout, false)
	if err != nil {
		return nil, err
	}
	msg = bytes.TrimSuffix(msg, []byte{d.c.eotChar})
	return bytes.TrimSuffix(msg, []byte(d.term.Read)), nil
}

// Read implements io.Reader over whole replies, fetching the next one once
// the previous one has been consumed.
func (d *Device) Read(p []byte) (int, error) {
	if d.closed {
		return 0, scpi.ErrClosed
	}
	if len(d.pending) == 0 {
		msg, err := d.c.read(d.addr, d.timeout, d.term.Raw())
		if err != nil {
			return 0, err
		}
		d.pending = msg
	}
	n := copy(p, d.pending)
	d.pending = d.pending[n:]
	return n, nil
}

// Timeout implements scpi.Transport.
func (d *Device) Timeout() time.Duration { return d.timeout }

// SetTimeout implements scpi.Transport.
func (d *Device) SetTimeout(t time.Duration) error {
	if t <= 0 {
		return &scpi.InvalidArgumentError{Name: "timeout", Value: t, Reason: "must be positive"}
	}
	d.timeout = t
	return nil
}

// Terminators implements scpi.Transport.
func (d *Device) Terminators() scpi.Terminators { return d.term }

// SetTerminators implements scpi.Transport.
func (d *Device) SetTerminators(t scpi.Terminators) error {
	d.term = t
	return nil
}

// SelectedDeviceClear sends the Selected Device Clear message.
func (d *Device) SelectedDeviceClear() error {
	return d.c.addressedCommand(d.addr, "clr")
}

// Trigger sends the Group Execute Trigger message.
func (d *Device) Trigger() error {
	return d.c.addressedCommand(d.addr, "trg")
}

// Close returns the instrument to front panel control. The controller and
// its port stay open for the other devices on the bus.
func (d *Device) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true
	return d.c.addressedCommand(d.addr, "loc")
}
