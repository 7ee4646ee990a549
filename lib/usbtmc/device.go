// Copyright (c) 2020–2024 The bench developers. All rights reserved.
// Project site: https://github.com/gotmc/bench
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

package usbtmc

import (
	"bytes"
	"time"

	"github.com/pkg/errors"

	"github.com/gotmc/bench/lib/scpi"
)

// DefaultMaxTransfer is the payload size requested per bulk-in transfer.
const DefaultMaxTransfer = 64 << 10

type bulkIn interface {
	Read(p []byte) (int, error)
}

type bulkOut interface {
	Write(p []byte) (int, error)
}

type transfer struct {
	b   []byte
	err error
}

// Device is a USBTMC instrument. It implements scpi.Transport; messages are
// framed by the device's end of message flag, so raw mode needs no special
// handling beyond not stripping the read terminator.
type Device struct {
	resource    string
	in          bulkIn
	out         bulkOut
	closer      func() error
	tag         bTag
	maxTransfer int
	term        scpi.Terminators
	timeout     time.Duration
	// inflight is a bulk-in read that outlived its timeout. Its result is
	// claimed by the next read so that transfers are never lost.
	inflight chan transfer
	pending  []byte
	closed   bool
}

var _ scpi.Transport = (*Device)(nil)

func newDevice(resource string, in bulkIn, out bulkOut, closer func() error) *Device {
	return &Device{
		resource:    resource,
		in:          in,
		out:         out,
		closer:      closer,
		maxTransfer: DefaultMaxTransfer,
		term:        scpi.DefaultTerminators,
		timeout:     5 * time.Second,
	}
}

// Resource implements scpi.Transport.
func (d *Device) Resource() string { return d.resource }

func (d *Device) send(data []byte) error {
	if d.closed {
		return scpi.ErrClosed
	}
	d.pending = nil
	msg := encodeOut(d.tag.next(), data)
	if _, err := d.out.Write(msg); err != nil {
		return errors.Wrapf(err, "bulk-out to %s", d.resource)
	}
	return nil
}

// WriteLine implements scpi.Transport.
func (d *Device) WriteLine(s string) error {
	return d.send([]byte(s + d.term.Write))
}

// Write implements io.Writer.
func (d *Device) Write(p []byte) (int, error) {
	if err := d.send(p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (d *Device) bulkRead() ([]byte, error) {
	if d.inflight == nil {
		ch := make(chan transfer, 1)
		buf := make([]byte, headerLen+d.maxTransfer+alignment)
		go func() {
			n, err := d.in.Read(buf)
			ch <- transfer{b: buf[:n], err: err}
		}()
		d.inflight = ch
	}
	timer := time.NewTimer(d.timeout)
	defer timer.Stop()
	select {
	case t := <-d.inflight:
		d.inflight = nil
		return t.b, t.err
	case <-timer.C:
		return nil, scpi.ErrCommunicationTimeout
	}
}

// receive requests transfers until one carries the end of message flag.
func (d *Device) receive() ([]byte, error) {
	if d.closed {
		return nil, scpi.ErrClosed
	}
	var msg []byte
	for {
		tag := d.tag.next()
		if _, err := d.out.Write(encodeInRequest(tag, d.maxTransfer, nil)); err != nil {
			return nil, errors.Wrapf(err, "bulk-in request to %s", d.resource)
		}
		var (
			data []byte
			eom  bool
		)
		for {
			b, err := d.bulkRead()
			if err != nil {
				return nil, err
			}
			data, eom, err = decodeIn(tag, b)
			if errors.Is(err, errStaleTag) {
				continue
			}
			if err != nil {
				return nil, errors.Wrapf(err, "bulk-in from %s", d.resource)
			}
			break
		}
		msg = append(msg, data...)
		if eom {
			return msg, nil
		}
	}
}

// ReadMessage implements scpi.Transport. In text mode a message that is
// empty once the terminator is stripped is skipped.
func (d *Device) ReadMessage() ([]byte, error) {
	for {
		msg, err := d.receive()
		if err != nil {
			return nil, err
		}
		if d.term.Raw() {
			return msg, nil
		}
		msg = bytes.TrimSuffix(msg, []byte(d.term.Read))
		if len(bytes.TrimSpace(msg)) > 0 {
			return msg, nil
		}
	}
}

// Read implements io.Reader over whole messages.
func (d *Device) Read(p []byte) (int, error) {
	if len(d.pending) == 0 {
		msg, err := d.receive()
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

// Close releases the interface and the device.
func (d *Device) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true
	if d.closer == nil {
		return nil
	}
	return d.closer()
}
