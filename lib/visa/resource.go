// Copyright (c) 2020–2024 The bench developers. All rights reserved.
// Project site: https://github.com/gotmc/bench
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

// Package visa names instrument resources the way VISA does and opens them
// as scpi.Transports over serial, TCP, USBTMC and Prologix GPIB links.
package visa

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Interface is the kind of link a resource is reached over.
type Interface int

const (
	GPIB Interface = iota
	Serial
	TCPIP
	USB
)

var interfaceNames = map[Interface]string{
	GPIB:   "GPIB",
	Serial: "ASRL",
	TCPIP:  "TCPIP",
	USB:    "USB",
}

func (i Interface) String() string { return interfaceNames[i] }

// DefaultSocketPort is the raw SCPI port used when a TCPIP resource has
// none.
const DefaultSocketPort = 5025

// Resource is a parsed resource name such as
//
//	GPIB0::3::INSTR
//	GPIB0::4::101::INSTR
//	ASRL/dev/ttyUSB0::INSTR
//	TCPIP0::192.168.1.20::5025::SOCKET
//	USB0::0x0699::0x0378::C011758::INSTR
type Resource struct {
	Interface Interface
	Board     int

	// GPIB; SecondaryAddr is -1 when absent.
	PrimaryAddr   int
	SecondaryAddr int

	// Serial port device.
	Port string

	// TCPIP socket.
	Host     string
	HostPort int

	// USB.
	VendorID  uint16
	ProductID uint16
	Serial    string
}

// ParseError reports a malformed resource name.
type ParseError struct {
	Name   string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid resource %q: %s", e.Name, e.Reason)
}

// splitBoard splits "GPIB0" into "GPIB" and 0.
func splitBoard(s string) (string, int, error) {
	i := strings.IndexFunc(s, func(r rune) bool { return r >= '0' && r <= '9' })
	if i < 0 {
		return s, 0, nil
	}
	n, err := strconv.Atoi(s[i:])
	return s[:i], n, err
}

// Parse parses a resource name. Interface names and resource classes are
// case insensitive.
func Parse(name string) (Resource, error) {
	bad := func(reason string) (Resource, error) {
		return Resource{}, &ParseError{Name: name, Reason: reason}
	}
	parts := strings.Split(strings.TrimSpace(name), "::")
	if len(parts) < 2 {
		return bad("missing resource class")
	}
	class := strings.ToUpper(parts[len(parts)-1])
	head := strings.ToUpper(parts[0])

	if strings.HasPrefix(head, "ASRL") {
		if class != "INSTR" || len(parts) != 2 {
			return bad("serial resources are ASRL<port>::INSTR")
		}
		port := parts[0][len("ASRL"):]
		if port == "" {
			return bad("missing serial port")
		}
		if n, err := strconv.Atoi(port); err == nil {
			port = "COM" + strconv.Itoa(n)
		}
		return Resource{Interface: Serial, Port: port, SecondaryAddr: -1}, nil
	}

	kind, board, err := splitBoard(head)
	if err != nil {
		return bad("bad board number")
	}
	r := Resource{Board: board, SecondaryAddr: -1}
	fields := parts[1 : len(parts)-1]
	switch kind {
	case "GPIB":
		r.Interface = GPIB
		if class != "INSTR" || len(fields) < 1 || len(fields) > 2 {
			return bad("GPIB resources are GPIB<board>::<pad>[::<sad>]::INSTR")
		}
		if r.PrimaryAddr, err = strconv.Atoi(fields[0]); err != nil || r.PrimaryAddr < 0 || r.PrimaryAddr > 30 {
			return bad("primary address must be 0-30")
		}
		if len(fields) == 2 {
			if r.SecondaryAddr, err = strconv.Atoi(fields[1]); err != nil || r.SecondaryAddr < 96 || r.SecondaryAddr > 126 {
				return bad("secondary address must be 96-126")
			}
		}
	case "TCPIP":
		r.Interface = TCPIP
		r.HostPort = DefaultSocketPort
		switch {
		case class == "SOCKET" && len(fields) == 2:
			if r.HostPort, err = strconv.Atoi(fields[1]); err != nil || r.HostPort <= 0 || r.HostPort > 65535 {
				return bad("bad port")
			}
		case class == "INSTR" && len(fields) == 1:
		default:
			return bad("TCPIP resources are TCPIP<board>::<host>::<port>::SOCKET")
		}
		r.Host = fields[0]
		if r.Host == "" {
			return bad("missing host")
		}
	case "USB":
		r.Interface = USB
		if class != "INSTR" || len(fields) < 2 || len(fields) > 4 {
			return bad("USB resources are USB<board>::<vid>::<pid>[::<serial>]::INSTR")
		}
		vid, err := strconv.ParseUint(fields[0], 0, 16)
		if err != nil {
			return bad("bad vendor id")
		}
		pid, err := strconv.ParseUint(fields[1], 0, 16)
		if err != nil {
			return bad("bad product id")
		}
		r.VendorID, r.ProductID = uint16(vid), uint16(pid)
		if len(fields) > 2 {
			r.Serial = fields[2]
		}
	default:
		return bad("unknown interface " + kind)
	}
	return r, nil
}

// MustParse is like Parse but panics on error.
func MustParse(name string) Resource {
	r, err := Parse(name)
	if err != nil {
		panic(errors.WithStack(err))
	}
	return r
}

// String returns the canonical resource name.
func (r Resource) String() string {
	switch r.Interface {
	case GPIB:
		if r.SecondaryAddr >= 0 {
			return fmt.Sprintf("GPIB%d::%d::%d::INSTR", r.Board, r.PrimaryAddr, r.SecondaryAddr)
		}
		return fmt.Sprintf("GPIB%d::%d::INSTR", r.Board, r.PrimaryAddr)
	case Serial:
		if n, ok := strings.CutPrefix(r.Port, "COM"); ok {
			if _, err := strconv.Atoi(n); err == nil {
				return "ASRL" + n + "::INSTR"
			}
		}
		return "ASRL" + r.Port + "::INSTR"
	case TCPIP:
		return fmt.Sprintf("TCPIP%d::%s::%d::SOCKET", r.Board, r.Host, r.HostPort)
	case USB:
		return fmt.Sprintf("USB%d::0x%04X::0x%04X::%s::INSTR", r.Board, r.VendorID, r.ProductID, r.Serial)
	}
	return ""
}
