// Copyright (c) 2020–2024 The bench developers. All rights reserved.
// Project site: https://github.com/gotmc/bench
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

// Package scpitest provides a scripted fake scpi.Transport that records
// every write, for driver tests.
package scpitest

import (
	"bytes"
	"io"
	"time"

	"github.com/gotmc/bench/lib/scpi"
)

// Transport is a fake scpi.Transport. Replies are handed out in the order
// they were queued, one per ReadMessage; Read drains the same queue as a
// byte stream.
type Transport struct {
	Name string

	// Writes holds every line written with WriteLine and every raw Write,
	// in order.
	Writes []string

	// TermHistory holds every value passed to SetTerminators.
	TermHistory []scpi.Terminators

	// Closes counts calls to Close.
	Closes int

	// CloseErr is returned by every Close.
	CloseErr error

	replies  [][]byte
	pending  []byte
	failures map[string]error
	readErrs []error
	term     scpi.Terminators
	timeout  time.Duration
	closed   bool
}

var _ scpi.Transport = (*Transport)(nil)

// New returns an open fake with line feed terminators.
func New(name string) *Transport {
	return &Transport{
		Name:     name,
		term:     scpi.DefaultTerminators,
		timeout:  5 * time.Second,
		failures: map[string]error{},
	}
}

// Reply queues text replies.
func (t *Transport) Reply(lines ...string) *Transport {
	for _, l := range lines {
		t.replies = append(t.replies, []byte(l))
	}
	return t
}

// ReplyBytes queues a binary reply.
func (t *Transport) ReplyBytes(b []byte) *Transport {
	t.replies = append(t.replies, append([]byte(nil), b...))
	return t
}

// FailWrite makes writing cmd return err.
func (t *Transport) FailWrite(cmd string, err error) *Transport {
	t.failures[cmd] = err
	return t
}

// FailRead makes the next read return err instead of a reply.
func (t *Transport) FailRead(err error) *Transport {
	t.readErrs = append(t.readErrs, err)
	return t
}

// Resource implements scpi.Transport.
func (t *Transport) Resource() string { return t.Name }

// WriteLine implements scpi.Transport.
func (t *Transport) WriteLine(s string) error {
	if t.closed {
		return scpi.ErrClosed
	}
	if err, ok := t.failures[s]; ok {
		return err
	}
	t.Writes = append(t.Writes, s)
	return nil
}

// Write implements io.Writer.
func (t *Transport) Write(p []byte) (int, error) {
	if err := t.WriteLine(string(p)); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (t *Transport) next() ([]byte, error) {
	if t.closed {
		return nil, scpi.ErrClosed
	}
	if len(t.readErrs) > 0 {
		err := t.readErrs[0]
		t.readErrs = t.readErrs[1:]
		return nil, err
	}
	if len(t.replies) == 0 {
		return nil, scpi.ErrCommunicationTimeout
	}
	r := t.replies[0]
	t.replies = t.replies[1:]
	return r, nil
}

// ReadMessage implements scpi.Transport.
func (t *Transport) ReadMessage() ([]byte, error) {
	if len(t.pending) > 0 {
		msg := bytes.TrimSuffix(t.pending, []byte(t.term.Read))
		t.pending = nil
		// A bare terminator left behind by a binary block is not a message.
		if len(msg) > 0 {
			return msg, nil
		}
	}
	return t.next()
}

// Read implements io.Reader.
func (t *Transport) Read(p []byte) (int, error) {
	if len(t.pending) == 0 {
		r, err := t.next()
		if err != nil {
			return 0, err
		}
		if len(r) == 0 {
			return 0, io.EOF
		}
		t.pending = r
	}
	n := copy(p, t.pending)
	t.pending = t.pending[n:]
	return n, nil
}

// Timeout implements scpi.Transport.
func (t *Transport) Timeout() time.Duration { return t.timeout }

// SetTimeout implements scpi.Transport.
func (t *Transport) SetTimeout(d time.Duration) error {
	t.timeout = d
	return nil
}

// Terminators implements scpi.Transport.
func (t *Transport) Terminators() scpi.Terminators { return t.term }

// SetTerminators implements scpi.Transport.
func (t *Transport) SetTerminators(term scpi.Terminators) error {
	t.TermHistory = append(t.TermHistory, term)
	t.term = term
	return nil
}

// Close implements io.Closer. The first call marks the fake closed.
func (t *Transport) Close() error {
	t.Closes++
	t.closed = true
	return t.CloseErr
}

// Closed reports whether Close has been called.
func (t *Transport) Closed() bool { return t.closed }

// Remaining reports how many queued replies were never read.
func (t *Transport) Remaining() int { return len(t.replies) }
