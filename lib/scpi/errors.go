// Copyright (c) 2020–2024 The bench developers. All rights reserved.
// Project site: https://github.com/gotmc/bench
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

package scpi

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

var (
	// ErrCommunicationTimeout is returned when an instrument does not reply
	// within the transport's configured timeout. It is never retried.
	ErrCommunicationTimeout = errors.New("communication timeout")

	// ErrUnsupportedInstrument matches any *UnsupportedError.
	ErrUnsupportedInstrument = errors.New("unsupported instrument")

	// ErrClosed is returned when a closed device or transport is used.
	ErrClosed = errors.New("transport closed")
)

// InvalidChannelError reports a channel name outside an instrument's fixed
// set. It is raised before any command is sent.
type InvalidChannelError struct {
	Channel string
	Valid   []string
}

func (e *InvalidChannelError) Error() string {
	return fmt.Sprintf("invalid channel %q (must be one of %s)",
		e.Channel, strings.Join(e.Valid, ", "))
}

// SafetyLimitError reports a setpoint whose magnitude exceeds the session
// safety limit. It is raised before any command is sent.
type SafetyLimitError struct {
	Quantity string // "voltage" or "current"
	Unit     string
	Value    float64
	Limit    float64
}

func (e *SafetyLimitError) Error() string {
	return fmt.Sprintf("safety trip: %s %g%s exceeds limit of %g%s",
		e.Quantity, e.Value, e.Unit, e.Limit, e.Unit)
}

// ParseError reports an instrument reply that could not be converted to the
// expected type.
type ParseError struct {
	Command string
	Reply   string
	Err     error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("cannot parse reply %q to %q: %s", e.Reply, e.Command, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// UnsupportedError reports an identification string that matched no driver.
type UnsupportedError struct {
	Resource string
	IDN      string
}

func (e *UnsupportedError) Error() string {
	if e.Resource == "" {
		return fmt.Sprintf("unsupported instrument: %q", e.IDN)
	}
	return fmt.Sprintf("unsupported instrument at %s: %q", e.Resource, e.IDN)
}

// Is lets errors.Is(err, ErrUnsupportedInstrument) match.
func (e *UnsupportedError) Is(target error) bool {
	return target == ErrUnsupportedInstrument
}

// InvalidArgumentError reports a parameter rejected by a driver before
// anything was sent.
type InvalidArgumentError struct {
	Name   string
	Value  any
	Reason string
}

func (e *InvalidArgumentError) Error() string {
	return fmt.Sprintf("invalid %s %v: %s", e.Name, e.Value, e.Reason)
}

// InstrumentError is an entry popped from an instrument's error queue.
type InstrumentError struct {
	Code    int
	Message string
}

func (e *InstrumentError) Error() string {
	return fmt.Sprintf("instrument error %d: %s", e.Code, e.Message)
}
