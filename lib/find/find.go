// Copyright (c) 2020–2024 The bench developers. All rights reserved.
// Project site: https://github.com/gotmc/bench
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

// Package find locates USB serial adapters, such as a Prologix GPIB-USB
// controller or an AR488, among the serial ports of the host.
package find

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"go.bug.st/serial/enumerator"
)

// Port describes one serial port. The USB fields are empty for ports that
// are not USB devices.
type Port struct {
	Name    string
	IsUSB   bool
	VID     string
	PID     string
	Serial  string
	Product string
}

func (p Port) String() string {
	if !p.IsUSB {
		return p.Name
	}
	return fmt.Sprintf("%s vid/pid %s/%s product %q serial %s", p.Name, p.VID, p.PID, p.Product, p.Serial)
}

type Ports []Port

func (ps Ports) String() string {
	s := make([]string, 0, len(ps))
	for _, p := range ps {
		s = append(s, p.String())
	}
	return strings.Join(s, "\n")
}

type FilterFn func(*Port) bool

// ArduinoFilter matches boards with Arduino's vendor id, which is what an
// AR488 GPIB adapter usually runs on.
func ArduinoFilter(p *Port) bool {
	return strings.EqualFold(p.VID, "2341") || strings.Contains(p.Product, "Arduino")
}

func PiPicoFilter(p *Port) bool {
	return strings.EqualFold(p.VID, "2E8A") && strings.Contains(p.Product, "Pico")
}

// PrologixFilter matches the Prologix GPIB-USB controller, an FTDI part
// that names itself in the product string.
func PrologixFilter(p *Port) bool {
	return strings.EqualFold(p.VID, "0403") && strings.Contains(strings.ToLower(p.Product), "prologix")
}

// GPIBAdapterFilter matches any supported GPIB adapter.
var GPIBAdapterFilter = Any(PrologixFilter, ArduinoFilter)

func SerialFilter(s string) FilterFn {
	return func(p *Port) bool { return p.Serial == s }
}

// Any matches ports that any of filters matches.
func Any(filters ...FilterFn) FilterFn {
	return func(p *Port) bool {
		for _, f := range filters {
			if f(p) {
				return true
			}
		}
		return false
	}
}

// enumerate is swapped out in tests.
var enumerate = enumerator.GetDetailedPortsList

// All returns every serial port of the host.
func All() (Ports, error) {
	details, err := enumerate()
	if err != nil {
		return nil, errors.Wrap(err, "enumerating serial ports")
	}
	ports := make(Ports, 0, len(details))
	for _, d := range details {
		ports = append(ports, Port{
			Name:    d.Name,
			IsUSB:   d.IsUSB,
			VID:     d.VID,
			PID:     d.PID,
			Serial:  d.SerialNumber,
			Product: d.Product,
		})
	}
	return ports, nil
}

// USB returns the USB serial ports matching filter, or all of them when
// filter is nil.
func USB(filter FilterFn) (Ports, error) {
	all, err := All()
	if err != nil {
		return nil, err
	}
	var out Ports
	for i := range all {
		if all[i].IsUSB && (filter == nil || filter(&all[i])) {
			out = append(out, all[i])
		}
	}
	return out, nil
}

// Find searches for a usb serial device. If filter is not nil, it is used
// to narrow choices down. The first device for which it returns true (if
// any) is chosen. Without a filter exactly one usb serial device must be
// present.
func Find(filter FilterFn) (string, error) {
	ports, err := USB(filter)
	if err != nil {
		return "", err
	}
	switch {
	case len(ports) == 0:
		return "", errors.New("no matching serial ports found")
	case len(ports) == 1 || filter != nil:
		return ports[0].Name, nil
	}
	return "", errors.Errorf("multiple serial ports:\n%s", ports)
}
