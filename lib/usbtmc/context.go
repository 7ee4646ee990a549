// Copyright (c) 2020–2024 The bench developers. All rights reserved.
// Project site: https://github.com/gotmc/bench
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

// Package usbtmc implements the USB Test and Measurement Class bulk
// transport on top of gousb, so USB instruments can be used as a
// scpi.Transport.
package usbtmc

import (
	"fmt"

	"github.com/google/gousb"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// USBTMC interfaces are application specific class 0xFE, subclass 0x03.
const (
	classApplication gousb.Class = 0xfe
	subclassTMC      gousb.Class = 0x03
)

// Info identifies a USBTMC instrument.
type Info struct {
	Vendor  gousb.ID
	Product gousb.ID
	Serial  string
}

// Resource returns the resource name of the instrument on the given board.
func (i Info) Resource(board int) string {
	return fmt.Sprintf("USB%d::0x%04X::0x%04X::%s::INSTR", board, uint16(i.Vendor), uint16(i.Product), i.Serial)
}

// Context owns the libusb session. Devices opened from it must be closed
// before it is.
type Context struct {
	usb   *gousb.Context
	log   logrus.FieldLogger
	board int
}

// Option configures a Context.
type Option func(*Context)

// WithLogger sets the logger enumeration problems are reported to.
func WithLogger(l logrus.FieldLogger) Option { return func(c *Context) { c.log = l } }

// WithBoard sets the board number used in resource names. Default 0.
func WithBoard(n int) Option { return func(c *Context) { c.board = n } }

// NewContext starts a libusb session.
func NewContext(opts ...Option) *Context {
	c := &Context{usb: gousb.NewContext(), log: logrus.StandardLogger()}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.WithField("component", "usbtmc")
	return c
}

// Close ends the libusb session.
func (c *Context) Close() error { return c.usb.Close() }

type tmcInterface struct {
	config, number, alt int
	in, out             int
}

// findTMC locates the first USBTMC interface with a bulk-in and a bulk-out
// endpoint.
func findTMC(desc *gousb.DeviceDesc) (tmcInterface, bool) {
	for _, cfg := range desc.Configs {
		for _, intf := range cfg.Interfaces {
			for _, alt := range intf.AltSettings {
				if alt.Class != classApplication || alt.SubClass != subclassTMC {
					continue
				}
				found := tmcInterface{config: cfg.Number, number: alt.Number, alt: alt.Alternate, in: -1, out: -1}
				for _, ep := range alt.Endpoints {
					if ep.TransferType != gousb.TransferTypeBulk {
						continue
					}
					if ep.Direction == gousb.EndpointDirectionIn {
						found.in = ep.Number
					} else {
						found.out = ep.Number
					}
				}
				if found.in >= 0 && found.out >= 0 {
					return found, true
				}
			}
		}
	}
	return tmcInterface{}, false
}

// List returns every attached USBTMC instrument. Devices that cannot be
// opened, usually for lack of permission, are logged and left out.
func (c *Context) List() ([]Info, error) {
	devs, err := c.usb.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		_, ok := findTMC(desc)
		return ok
	})
	if err != nil {
		c.log.WithError(err).Warn("some USB devices could not be opened")
	}
	var infos []Info
	for _, dev := range devs {
		serial, serr := dev.SerialNumber()
		if serr != nil {
			c.log.WithError(serr).WithField("device", fmt.Sprintf("%s:%s", dev.Desc.Vendor, dev.Desc.Product)).Warn("reading serial number")
		}
		infos = append(infos, Info{Vendor: dev.Desc.Vendor, Product: dev.Desc.Product, Serial: serial})
		if cerr := dev.Close(); cerr != nil {
			c.log.WithError(cerr).Debug("closing probed device")
		}
	}
	return infos, nil
}

// Open claims the USBTMC interface of the instrument with the given IDs and
// serial number; an empty serial takes the first match.
func (c *Context) Open(vid, pid uint16, serial string) (*Device, error) {
	devs, err := c.usb.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		return desc.Vendor == gousb.ID(vid) && desc.Product == gousb.ID(pid)
	})
	if err != nil && len(devs) == 0 {
		return nil, errors.Wrapf(err, "opening USB %04x:%04x", vid, pid)
	}
	var dev *gousb.Device
	for _, d := range devs {
		if dev == nil {
			if s, _ := d.SerialNumber(); serial == "" || s == serial {
				dev = d
				continue
			}
		}
		d.Close()
	}
	info := Info{Vendor: gousb.ID(vid), Product: gousb.ID(pid), Serial: serial}
	if dev == nil {
		return nil, errors.Errorf("no USB instrument %s", info.Resource(c.board))
	}
	tmc, ok := findTMC(dev.Desc)
	if !ok {
		dev.Close()
		return nil, errors.Errorf("%s has no USBTMC interface", info.Resource(c.board))
	}
	if err := dev.SetAutoDetach(true); err != nil {
		dev.Close()
		return nil, errors.Wrap(err, "detaching kernel driver")
	}
	cfg, err := dev.Config(tmc.config)
	if err != nil {
		dev.Close()
		return nil, errors.Wrapf(err, "selecting configuration %d", tmc.config)
	}
	intf, err := cfg.Interface(tmc.number, tmc.alt)
	if err != nil {
		cfg.Close()
		dev.Close()
		return nil, errors.Wrapf(err, "claiming interface %d", tmc.number)
	}
	closer := func() error {
		intf.Close()
		if err := cfg.Close(); err != nil {
			dev.Close()
			return err
		}
		return dev.Close()
	}
	in, err := intf.InEndpoint(tmc.in)
	if err != nil {
		closer()
		return nil, errors.Wrap(err, "bulk-in endpoint")
	}
	out, err := intf.OutEndpoint(tmc.out)
	if err != nil {
		closer()
		return nil, errors.Wrap(err, "bulk-out endpoint")
	}
	if serial == "" {
		info.Serial, _ = dev.SerialNumber()
	}
	return newDevice(info.Resource(c.board), in, out, closer), nil
}
