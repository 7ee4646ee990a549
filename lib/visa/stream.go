// Copyright (c) 2020–2024 The bench developers. All rights reserved.
// Project site: https://github.com/gotmc/bench
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

package visa

import (
	"bufio"
	"bytes"
	"io"
	"net"
	"time"

	"github.com/pkg/errors"

	"github.com/gotmc/bench/lib/scpi"
)

// rawIdleGap ends a raw read on links that have no end of message signal.
const rawIdleGap = 200 * time.Millisecond

// timeoutReader reports both an expired serial read timeout, which is a
// read of nothing without error, and an expired network deadline as
// ErrCommunicationTimeout.
type timeoutReader struct{ r io.Reader }

func (t timeoutReader) Read(p []byte) (int, error) {
	n, err := t.r.Read(p)
	if n == 0 && err == nil {
		return 0, scpi.ErrCommunicationTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return n, scpi.ErrCommunicationTimeout
	}
	return n, err
}

// stream is a scpi.Transport over a byte stream: a serial port or a TCP
// socket. arm applies a read timeout before each read.
type stream struct {
	resource string
	rwc      io.ReadWriteCloser
	r        *bufio.Reader
	arm      func(time.Duration) error
	term     scpi.Terminators
	timeout  time.Duration
	closed   bool
}

var _ scpi.Transport = (*stream)(nil)

func newStream(resource string, rwc io.ReadWriteCloser, arm func(time.Duration) error) *stream {
	return &stream{
		resource: resource,
		rwc:      rwc,
		r:        bufio.NewReader(timeoutReader{rwc}),
		arm:      arm,
		term:     scpi.DefaultTerminators,
		timeout:  5 * time.Second,
	}
}

func (s *stream) Resource() string { return s.resource }

func (s *stream) WriteLine(line string) error {
	_, err := s.Write([]byte(line + s.term.Write))
	return err
}

func (s *stream) Write(p []byte) (int, error) {
	if s.closed {
		return 0, scpi.ErrClosed
	}
	n, err := s.rwc.Write(p)
	if err != nil {
		return n, errors.Wrapf(err, "write to %s", s.resource)
	}
	return n, nil
}

// ReadMessage reads up to the read terminator. Empty messages are skipped:
// a bare terminator is what follows a definite length block.
func (s *stream) ReadMessage() ([]byte, error) {
	if s.closed {
		return nil, scpi.ErrClosed
	}
	if err := s.arm(s.timeout); err != nil {
		return nil, err
	}
	if s.term.Raw() {
		return s.readUntilIdle()
	}
	delim := []byte(s.term.Read)
	for {
		var msg []byte
		for !bytes.HasSuffix(msg, delim) {
			chunk, err := s.r.ReadBytes(delim[len(delim)-1])
			msg = append(msg, chunk...)
			if err != nil {
				return nil, errors.Wrapf(err, "read from %s", s.resource)
			}
		}
		msg = bytes.TrimSuffix(msg, delim)
		if len(msg) > 0 {
			return msg, nil
		}
	}
}

func (s *stream) readUntilIdle() ([]byte, error) {
	var out []byte
	buf := make([]byte, 4096)
	for {
		n, err := s.r.Read(buf)
		first := len(out) == 0 && n > 0
		out = append(out, buf[:n]...)
		switch {
		case errors.Is(err, scpi.ErrCommunicationTimeout) && len(out) > 0:
			return out, nil
		case err != nil:
			return nil, errors.Wrapf(err, "raw read from %s", s.resource)
		}
		if first {
			if err := s.arm(min(rawIdleGap, s.timeout)); err != nil {
				return nil, err
			}
		}
	}
}

func (s *stream) Read(p []byte) (int, error) {
	if s.closed {
		return 0, scpi.ErrClosed
	}
	if s.r.Buffered() == 0 {
		if err := s.arm(s.timeout); err != nil {
			return 0, err
		}
	}
	return s.r.Read(p)
}

func (s *stream) Timeout() time.Duration { return s.timeout }

func (s *stream) SetTimeout(d time.Duration) error {
	if d <= 0 {
		return &scpi.InvalidArgumentError{Name: "timeout", Value: d, Reason: "must be positive"}
	}
	s.timeout = d
	return nil
}

func (s *stream) Terminators() scpi.Terminators { return s.term }

func (s *stream) SetTerminators(t scpi.Terminators) error {
	s.term = t
	return nil
}

func (s *stream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.rwc.Close()
}
