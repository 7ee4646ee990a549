// Copyright (c) 2020–2024 The bench developers. All rights reserved.
// Project site: https://github.com/gotmc/bench
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

// Package prologix drives a Prologix GPIB-USB controller, or an Arduino
// AR488 running compatible firmware, as the controller-in-charge of a GPIB
// bus. One Controller is shared by every instrument on the bus; each
// instrument gets its own Device, which implements scpi.Transport.
package prologix

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/gotmc/bench/lib/scpi"
)

// Port is the USB serial link to the controller. A Read that returns no
// data and no error has timed out, which is how go.bug.st/serial ports
// report an expired read timeout.
type Port interface {
	io.ReadWriter
	SetReadTimeout(d time.Duration) error
}

// Controller models a GPIB controller-in-charge.
type Controller struct {
	mu sync.Mutex

	port Port
	r    *bufio.Reader
	log  logrus.FieldLogger

	board       int
	cur         address
	addressed   bool
	gpibTerm    GpibTerm
	eotChar     byte
	readTimeout time.Duration
	ar488       bool
}

type address struct {
	pad int
	sad int // -1 when there is no secondary address
}

func (a address) String() string {
	if a.sad < 0 {
		return fmt.Sprintf("%d", a.pad)
	}
	return fmt.Sprintf("%d %d", a.pad, a.sad)
}

// ControllerOption applies an option to the controller.
type ControllerOption func(*Controller)

// WithAR488 slightly alters the init commands, for compatibility with the
// Arduino-based AR488. Specifically, we do not emit 'verbose 0', nor do we
// toggle savecfg.
func WithAR488() ControllerOption { return func(c *Controller) { c.ar488 = true } }

// WithLogger sets the logger controller commands are traced to at debug
// level.
func WithLogger(l logrus.FieldLogger) ControllerOption {
	return func(c *Controller) { c.log = l }
}

// WithBoard sets the board number used in resource names. Default 0.
func WithBoard(n int) ControllerOption { return func(c *Controller) { c.board = n } }

// WithGPIBTermination sets what the controller appends to every message it
// forwards to an instrument. Default AppendCRLF.
func WithGPIBTermination(t GpibTerm) ControllerOption {
	return func(c *Controller) { c.gpibTerm = t }
}

// WithReadTimeout sets the controller's inter-character timeout on the GPIB
// side, 1 ms to 3 s.
func WithReadTimeout(d time.Duration) ControllerOption {
	return func(c *Controller) { c.readTimeout = d }
}

// NewController configures the controller attached to port for controller
// mode with read-after-write disabled. Instruments are addressed lazily,
// on the first I/O of each Device.
func NewController(port Port, opts ...ControllerOption) (*Controller, error) {
	c := &Controller{
		port:        port,
		log:         logrus.StandardLogger(),
		gpibTerm:    AppendCRLF,
		eotChar:     '\n',
		readTimeout: 500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.r = bufio.NewReader(portReader{port})
	c.log = c.log.WithField("component", "prologix")

	ms := c.readTimeout.Milliseconds()
	if ms < 1 || ms > 3000 {
		return nil, &scpi.InvalidArgumentError{Name: "read timeout", Value: c.readTimeout, Reason: "must be 1ms-3s"}
	}
	if _, ok := gpibTermDesc[c.gpibTerm]; !ok {
		return nil, &scpi.InvalidArgumentError{Name: "GPIB termination", Value: int(c.gpibTerm), Reason: "must be 0-3"}
	}

	cmds := []string{}
	if !c.ar488 {
		cmds = append(cmds,
			"verbose 0", // turn off verbosity if on
			"savecfg 0", // disable saving of configuration parameters in EPROM
		)
	}
	cmds = append(cmds,
		"mode 1", // controller mode
		"auto 0", // no read-after-write; reads are requested explicitly
		"eoi 1",  // assert EOI with the last character
		fmt.Sprintf("eos %d", c.gpibTerm),
		fmt.Sprintf("read_tmo_ms %d", ms),
		fmt.Sprintf("eot_char %d", c.eotChar),
		"eot_enable 1", // append eot_char when EOI is detected
	)
	if !c.ar488 {
		cmds = append(cmds, "savecfg 1")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, cmd := range cmds {
		if err := c.command(cmd); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// portReader turns a silent timeout on the port into ErrCommunicationTimeout.
type portReader struct{ p Port }

func (r portReader) Read(b []byte) (int, error) {
	n, err := r.p.Read(b)
	if n == 0 && err == nil {
		return 0, scpi.ErrCommunicationTimeout
	}
	return n, err
}

// command sends a ++ command to the controller itself. The caller holds mu.
func (c *Controller) command(cmd string) error {
	cmd = "++" + strings.ToLower(strings.TrimSpace(cmd))
	c.log.WithField("cmd", cmd).Debug("controller command")
	if _, err := io.WriteString(c.port, cmd+"\n"); err != nil {
		return errors.Wrapf(err, "prologix %s", cmd)
	}
	return nil
}

// CommandController sends the given command to the Prologix controller. To
// indicate this is a command for the controller, thereby not transmitting
// to the instrument over GPIB, two plus signs are prepended.
func (c *Controller) CommandController(cmd string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.command(cmd)
}

// QueryController sends the given command to the controller and returns
// its one line response.
func (c *Controller) QueryController(cmd string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.command(cmd); err != nil {
		return "", err
	}
	if err := c.port.SetReadTimeout(time.Second); err != nil {
		return "", err
	}
	s, err := c.r.ReadString('\n')
	if err != nil {
		return "", errors.Wrapf(err, "prologix ++%s", cmd)
	}
	return strings.TrimSpace(s), nil
}

// Version returns the controller's version string.
func (c *Controller) Version() (string, error) {
	return c.QueryController("ver")
}

// Close closes the port if it can be closed. Devices on the controller are
// unusable afterwards.
func (c *Controller) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cl, ok := c.port.(io.Closer); ok {
		return cl.Close()
	}
	return nil
}

// Device returns a transport for the instrument at the given primary
// address (0-30) and optional secondary address (96-126).
func (c *Controller) Device(pad int, sad ...int) (*Device, error) {
	if !isPrimaryAddressValid(pad) {
		return nil, &scpi.InvalidArgumentError{Name: "primary address", Value: pad, Reason: "must be 0-30"}
	}
	a := address{pad: pad, sad: -1}
	resource := fmt.Sprintf("GPIB%d::%d::INSTR", c.board, pad)
	if len(sad) > 0 {
		if !isSecondaryAddressValid(sad[0]) {
			return nil, &scpi.InvalidArgumentError{Name: "secondary address", Value: sad[0], Reason: "must be 96-126"}
		}
		a.sad = sad[0]
		resource = fmt.Sprintf("GPIB%d::%d::%d::INSTR", c.board, pad, sad[0])
	}
	return &Device{
		c:        c,
		addr:     a,
		resource: resource,
		term:     scpi.DefaultTerminators,
		timeout:  5 * time.Second,
	}, nil
}

// selectLocked addresses a unless it is already the current address.
func (c *Controller) selectLocked(a address) error {
	if c.addressed && c.cur == a {
		return nil
	}
	if err := c.command("addr " + a.String()); err != nil {
		c.addressed = false
		return err
	}
	c.cur, c.addressed = a, true
	return nil
}

func (c *Controller) write(a address, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.selectLocked(a); err != nil {
		return err
	}
	if _, err := c.port.Write(append(escape(data), '\n')); err != nil {
		return errors.Wrapf(err, "write to GPIB address %s", a)
	}
	return nil
}

// addressedCommand sends a controller command to the instrument at a.
func (c *Controller) addressedCommand(a address, cmd string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.selectLocked(a); err != nil {
		return err
	}
	return c.command(cmd)
}

// read asks the instrument at a to talk until EOI. In text mode the reply
// ends at the eot character the controller appends on EOI. In raw mode
// that character is disabled, since it may occur in binary data, and the
// reply ends once the port has been idle for longer than the controller's
// own read timeout.
func (c *Controller) read(a address, timeout time.Duration, raw bool) (data []byte, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.selectLocked(a); err != nil {
		return nil, err
	}
	// Whatever is still buffered belongs to an earlier reply.
	if _, err := c.r.Discard(c.r.Buffered()); err != nil {
		return nil, err
	}
	if raw {
		if err := c.command("eot_enable 0"); err != nil {
			return nil, err
		}
		defer func() {
			if eerr := c.command("eot_enable 1"); eerr != nil && err == nil {
				err = eerr
			}
		}()
	}
	if err := c.port.SetReadTimeout(timeout); err != nil {
		return nil, err
	}
	if err := c.command("read eoi"); err != nil {
		return nil, err
	}
	if !raw {
		return c.readLine(a)
	}
	return c.readUntilIdle(a)
}

// readLine returns the first line that is not blank. A blank line is the
// eot character of an earlier reply arriving late, after that reply's own
// line feed; it is skipped without asking the instrument to talk again.
func (c *Controller) readLine(a address) ([]byte, error) {
	for {
		line, err := c.r.ReadBytes(c.eotChar)
		if err != nil {
			return nil, errors.Wrapf(err, "read from GPIB address %s", a)
		}
		if len(bytes.TrimSpace(line)) > 0 {
			return line, nil
		}
	}
}

func (c *Controller) readUntilIdle(a address) ([]byte, error) {
	var out []byte
	buf := make([]byte, 4096)
	for {
		n, err := c.r.Read(buf)
		out = append(out, buf[:n]...)
		switch {
		case errors.Is(err, scpi.ErrCommunicationTimeout) && len(out) > 0:
			return out, nil
		case err != nil:
			return nil, errors.Wrapf(err, "raw read from GPIB address %s", a)
		}
		if len(out) == n {
			// First data is in: from now on only wait out the gap after
			// the instrument stops talking.
			if err := c.port.SetReadTimeout(2 * c.readTimeout); err != nil {
				return nil, err
			}
		}
	}
}

// escape prefixes the bytes the controller would otherwise interpret
// (CR, LF, ESC and '+') with ESC so they reach the instrument.
func escape(data []byte) []byte {
	out := make([]byte, 0, len(data)+1)
	for _, b := range data {
		switch b {
		case '\r', '\n', 0x1b, '+':
			out = append(out, 0x1b)
		}
		out = append(out, b)
	}
	return out
}

// GpibTerm provides the type for the available GPIB terminators.
type GpibTerm int

// Available GPIB terminators for the Prologix Controller.
const (
	AppendCRLF GpibTerm = iota
	AppendCR
	AppendLF
	AppendNothing
)

var gpibTermDesc = map[GpibTerm]string{
	AppendCRLF:    `Append CR+LF (\r\n) to instrument commands`,
	AppendCR:      `Append CR (\r) to instrument commands`,
	AppendLF:      `Append LF (\n) to instrument commands`,
	AppendNothing: `Do not append anything to instrument commands`,
}

func (term GpibTerm) String() string {
	return gpibTermDesc[term]
}

// isPrimaryAddressValid checks that the primary GPIB address is between 0 and
// 30, inclusive.
func isPrimaryAddressValid(addr int) bool {
	return addr >= 0 && addr <= 30
}

// isSecondaryAddressValid checks that the secondary GPIB address is between 96
// and 126, inclusive.
func isSecondaryAddressValid(addr int) bool {
	return addr >= 96 && addr <= 126
}
