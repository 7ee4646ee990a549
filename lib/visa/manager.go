// Copyright (c) 2020–2024 The bench developers. All rights reserved.
// Project site: https://github.com/gotmc/bench
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

package visa

import (
	"context"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.bug.st/serial"
	"go.uber.org/multierr"

	"github.com/gotmc/bench/lib/cmdlog"
	"github.com/gotmc/bench/lib/find"
	"github.com/gotmc/bench/lib/prologix"
	"github.com/gotmc/bench/lib/scpi"
	"github.com/gotmc/bench/lib/usbtmc"
)

// SerialConfig selects the serial instruments.
type SerialConfig struct {
	Ports []string `koanf:"ports" yaml:"ports"`
	Baud  int      `koanf:"baud" yaml:"baud"`
	// Scan adds every USB serial port that is not a GPIB adapter.
	Scan bool `koanf:"scan" yaml:"scan"`
}

// GPIBConfig describes a Prologix or AR488 adapter and the addresses to
// probe behind it.
type GPIBConfig struct {
	// Adapter is the adapter's serial port; empty means find it.
	Adapter   string `koanf:"adapter" yaml:"adapter"`
	Addresses []int  `koanf:"addresses" yaml:"addresses"`
	AR488     bool   `koanf:"ar488" yaml:"ar488"`
	Baud      int    `koanf:"baud" yaml:"baud"`
}

// Config says which resources a Manager offers.
type Config struct {
	Timeout time.Duration `koanf:"timeout" yaml:"timeout"`
	Serial  SerialConfig  `koanf:"serial" yaml:"serial"`
	// TCP lists raw SCPI sockets as host:port.
	TCP  []string   `koanf:"tcp" yaml:"tcp"`
	GPIB GPIBConfig `koanf:"gpib" yaml:"gpib"`
	USB  bool       `koanf:"usb" yaml:"usb"`
}

// DefaultConfig has no resources and a five second timeout.
func DefaultConfig() Config {
	return Config{
		Timeout: 5 * time.Second,
		Serial:  SerialConfig{Baud: 9600},
		GPIB:    GPIBConfig{Baud: 115200},
	}
}

// Manager lists and opens resources. Transports it opens are owned by the
// caller, but the GPIB adapter and the USB session they share belong to
// the Manager and are released by Close.
type Manager struct {
	cfg   Config
	log   logrus.FieldLogger
	trace bool

	mu   sync.Mutex
	gpib *prologix.Controller
	usb  *usbtmc.Context

	openPort func(name string, mode *serial.Mode) (serial.Port, error)
	findPort func(filter find.FilterFn) (string, error)
	usbPorts func() (find.Ports, error)
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger.
func WithLogger(l logrus.FieldLogger) Option { return func(m *Manager) { m.log = l } }

// WithTracing logs the traffic of every opened transport with cmdlog.
func WithTracing(on bool) Option { return func(m *Manager) { m.trace = on } }

// NewManager returns a manager for the resources cfg names. Nothing is
// opened until it is needed.
func NewManager(cfg Config, opts ...Option) *Manager {
	def := DefaultConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.Serial.Baud <= 0 {
		cfg.Serial.Baud = def.Serial.Baud
	}
	if cfg.GPIB.Baud <= 0 {
		cfg.GPIB.Baud = def.GPIB.Baud
	}
	m := &Manager{
		cfg:      cfg,
		log:      logrus.StandardLogger(),
		openPort: serial.Open,
		findPort: find.Find,
		usbPorts: func() (find.Ports, error) { return find.USB(nil) },
	}
	for _, opt := range opts {
		opt(m)
	}
	m.log = m.log.WithField("component", "visa")
	return m
}

// adapterPort returns the serial port of the GPIB adapter, finding it if
// it is not configured.
func (m *Manager) adapterPort() (string, error) {
	if m.cfg.GPIB.Adapter != "" {
		return m.cfg.GPIB.Adapter, nil
	}
	return m.findPort(find.GPIBAdapterFilter)
}

// ListResources returns the configured resources plus, when enabled, the
// discovered serial and USBTMC ones. A source that cannot be listed is
// logged and left out.
func (m *Manager) ListResources(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var names []string
	seen := map[string]bool{}
	add := func(r Resource) {
		if s := r.String(); !seen[s] {
			seen[s] = true
			names = append(names, s)
		}
	}

	adapter := ""
	if len(m.cfg.GPIB.Addresses) > 0 {
		var err error
		if adapter, err = m.adapterPort(); err != nil {
			m.log.WithError(err).Warn("no GPIB adapter; skipping GPIB addresses")
		} else {
			for _, a := range m.cfg.GPIB.Addresses {
				add(Resource{Interface: GPIB, PrimaryAddr: a, SecondaryAddr: -1})
			}
		}
	}

	for _, p := range m.cfg.Serial.Ports {
		add(Resource{Interface: Serial, Port: p, SecondaryAddr: -1})
	}
	if m.cfg.Serial.Scan {
		ports, err := m.usbPorts()
		if err != nil {
			m.log.WithError(err).Warn("scanning serial ports")
		}
		for i := range ports {
			if ports[i].Name == adapter || find.GPIBAdapterFilter(&ports[i]) {
				continue
			}
			add(Resource{Interface: Serial, Port: ports[i].Name, SecondaryAddr: -1})
		}
	}

	for _, hp := range m.cfg.TCP {
		host, port, err := net.SplitHostPort(hp)
		if err != nil {
			m.log.WithError(err).WithField("address", hp).Warn("bad TCP address")
			continue
		}
		n, err := strconv.Atoi(port)
		if err != nil {
			m.log.WithField("address", hp).Warn("bad TCP port")
			continue
		}
		add(Resource{Interface: TCPIP, Host: host, HostPort: n, SecondaryAddr: -1})
	}

	if m.cfg.USB {
		infos, err := m.usbContext().List()
		if err != nil {
			m.log.WithError(err).Warn("listing USB instruments")
		}
		for _, info := range infos {
			add(Resource{
				Interface: USB,
				VendorID:  uint16(info.Vendor),
				ProductID: uint16(info.Product),
				Serial:    info.Serial,
			})
		}
	}
	return names, nil
}

// Open opens the resource named name.
func (m *Manager) Open(ctx context.Context, name string) (scpi.Transport, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r, err := Parse(name)
	if err != nil {
		return nil, err
	}
	var t scpi.Transport
	switch r.Interface {
	case Serial:
		t, err = m.openSerial(r)
	case TCPIP:
		t, err = m.openTCP(ctx, r)
	case GPIB:
		t, err = m.openGPIB(r)
	case USB:
		t, err = m.usbContext().Open(r.VendorID, r.ProductID, r.Serial)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", name)
	}
	if err := t.SetTimeout(m.cfg.Timeout); err != nil {
		return t, err
	}
	m.log.WithField("resource", t.Resource()).Debug("opened")
	if m.trace {
		return cmdlog.Wrap(t, m.log), nil
	}
	return t, nil
}

func (m *Manager) openSerial(r Resource) (scpi.Transport, error) {
	port, err := m.openPort(r.Port, &serial.Mode{BaudRate: m.cfg.Serial.Baud})
	if err != nil {
		return nil, err
	}
	return newStream(r.String(), port, port.SetReadTimeout), nil
}

func (m *Manager) openTCP(ctx context.Context, r Resource) (scpi.Transport, error) {
	d := net.Dialer{Timeout: m.cfg.Timeout}
	conn, err := d.DialContext(ctx, "tcp", net.JoinHostPort(r.Host, strconv.Itoa(r.HostPort)))
	if err != nil {
		return nil, err
	}
	arm := func(timeout time.Duration) error {
		return conn.SetReadDeadline(time.Now().Add(timeout))
	}
	return newStream(r.String(), conn, arm), nil
}

func (m *Manager) openGPIB(r Resource) (scpi.Transport, error) {
	c, err := m.controller(r.Board)
	if err != nil {
		return nil, err
	}
	if r.SecondaryAddr >= 0 {
		return c.Device(r.PrimaryAddr, r.SecondaryAddr)
	}
	return c.Device(r.PrimaryAddr)
}

// controller opens the GPIB adapter on first use. One adapter is
// configured, and it is board 0.
func (m *Manager) controller(board int) (*prologix.Controller, error) {
	if board != 0 {
		return nil, &scpi.InvalidArgumentError{Name: "GPIB board", Value: board, Reason: "only board 0 is configured"}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gpib != nil {
		return m.gpib, nil
	}
	name, err := m.adapterPort()
	if err != nil {
		return nil, errors.Wrap(err, "locating GPIB adapter")
	}
	port, err := m.openPort(name, &serial.Mode{BaudRate: m.cfg.GPIB.Baud})
	if err != nil {
		return nil, errors.Wrapf(err, "opening GPIB adapter %s", name)
	}
	opts := []prologix.ControllerOption{prologix.WithLogger(m.log)}
	if m.cfg.GPIB.AR488 {
		opts = append(opts, prologix.WithAR488())
	}
	c, err := prologix.NewController(port, opts...)
	if err != nil {
		scpi.CloseQuietly(port, m.log)
		return nil, err
	}
	m.log.WithField("port", name).Info("GPIB adapter ready")
	m.gpib = c
	return c, nil
}

func (m *Manager) usbContext() *usbtmc.Context {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.usb == nil {
		m.usb = usbtmc.NewContext(usbtmc.WithLogger(m.log))
	}
	return m.usb
}

// Close releases the GPIB adapter and the USB session.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var err error
	if m.gpib != nil {
		err = multierr.Append(err, m.gpib.Close())
		m.gpib = nil
	}
	if m.usb != nil {
		err = multierr.Append(err, m.usb.Close())
		m.usb = nil
	}
	return err
}
