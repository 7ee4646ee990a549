// Copyright (c) 2020–2024 The bench developers. All rights reserved.
// Project site: https://github.com/gotmc/bench
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

package scpi

import (
	"io"
	"time"
)

// Terminators holds the line framing of a transport. Write is appended to
// every line written with WriteLine. Read ends a message returned by
// ReadMessage; an empty Read puts the transport in raw mode, where a
// message ends when the instrument signals end of message or the timeout
// elapses after data has arrived.
type Terminators struct {
	Write string
	Read  string
}

// Raw reports whether line framing on reads is suspended.
func (t Terminators) Raw() bool { return t.Read == "" }

// DefaultTerminators frames both directions with a line feed.
var DefaultTerminators = Terminators{Write: "\n", Read: "\n"}

// Transport is one open channel to one instrument. Implementations need
// not be safe for concurrent use; a Device owns its transport exclusively.
//
// Read and Write move raw bytes and share buffering with ReadMessage, so
// binary payloads can follow a text header on the same stream.
type Transport interface {
	io.ReadWriteCloser

	// Resource returns the resource identifier the transport was opened on.
	Resource() string

	// WriteLine writes s followed by the write terminator.
	WriteLine(s string) error

	// ReadMessage reads one message and strips the read terminator. A
	// reply that does not arrive within the timeout yields an error
	// matching ErrCommunicationTimeout.
	ReadMessage() ([]byte, error)

	Timeout() time.Duration
	SetTimeout(d time.Duration) error

	Terminators() Terminators
	SetTerminators(t Terminators) error
}
