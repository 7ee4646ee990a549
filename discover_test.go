// Copyright (c) 2020–2024 The bench developers. All rights reserved.
// Project site: https://github.com/gotmc/bench
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

package bench

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"github.com/gotmc/bench/lib/dmm"
	"github.com/gotmc/bench/lib/psu"
	"github.com/gotmc/bench/lib/scpi"
	"github.com/gotmc/bench/lib/scpi/scpitest"
)

type fakeManager struct {
	names   []string
	fakes   map[string]*scpitest.Transport
	openErr map[string]error
	listErr error
	opened  []string
}

func newFakeManager() *fakeManager {
	return &fakeManager{fakes: map[string]*scpitest.Transport{}, openErr: map[string]error{}}
}

func (m *fakeManager) add(name string, replies ...string) *scpitest.Transport {
	ft := scpitest.New(name).Reply(replies...)
	m.names = append(m.names, name)
	m.fakes[name] = ft
	return ft
}

func (m *fakeManager) ListResources(ctx context.Context) ([]string, error) {
	return m.names, m.listErr
}

// Open returns the fake even on failure, like a transport that got as far
// as opening the port before the handshake failed.
func (m *fakeManager) Open(ctx context.Context, name string) (scpi.Transport, error) {
	m.opened = append(m.opened, name)
	return m.fakes[name], m.openErr[name]
}

func TestDiscoverSkipsFailedResource(t *testing.T) {
	log, hook := logtest.NewNullLogger()
	rm := newFakeManager()
	rm.add("GPIB0::5::INSTR", "Agilent Technologies,E3631A,0,2.1-5.0-1.0")
	bad := rm.add("ASRL/dev/ttyUSB0::INSTR")
	rm.openErr["ASRL/dev/ttyUSB0::INSTR"] = errors.New("no such device")
	rm.add("GPIB0::22::INSTR", "HEWLETT-PACKARD,34401A,0,11-5-2")

	found, err := Discover(context.Background(), rm, WithLogger(log))
	require.Error(t, err)
	assert.Len(t, multierr.Errors(err), 1)
	assert.Contains(t, err.Error(), "ASRL/dev/ttyUSB0::INSTR")

	require.Len(t, found, 2)
	assert.IsType(t, &psu.E363x{}, found["GPIB0::5::INSTR"])
	assert.IsType(t, &dmm.Agilent34401A{}, found["GPIB0::22::INSTR"])
	assert.True(t, bad.Closed())
	assert.Empty(t, bad.Writes)

	var warned bool
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.WarnLevel && e.Data["resource"] == "ASRL/dev/ttyUSB0::INSTR" {
			warned = true
		}
	}
	assert.True(t, warned)
}

func TestDiscoverClosesUnsupported(t *testing.T) {
	rm := newFakeManager()
	ft := rm.add("TCPIP0::10.0.0.9::INSTR", "RIGOL TECHNOLOGIES,DS1054Z,DS1ZA,00.04.04")
	log, _ := logtest.NewNullLogger()

	found, err := Discover(context.Background(), rm, WithLogger(log))
	assert.Empty(t, found)
	assert.True(t, errors.Is(err, scpi.ErrUnsupportedInstrument))
	assert.True(t, ft.Closed())
}

func TestDiscoverCustomRules(t *testing.T) {
	rm := newFakeManager()
	rm.add("dev", "ACME,WIDGET,1,1")
	rule := Rule{
		Name:  "widget",
		Match: func(idn string) bool { return idn == "ACME,WIDGET,1,1" },
		New: func(t scpi.Transport, opts ...scpi.Option) scpi.Instrument {
			return scpi.NewDevice(t, opts...)
		},
	}
	log, _ := logtest.NewNullLogger()

	found, err := Discover(context.Background(), rm, WithRules([]Rule{rule}), WithLogger(log))
	require.NoError(t, err)
	assert.IsType(t, &scpi.Device{}, found["dev"])
}

func TestDiscoverListError(t *testing.T) {
	rm := newFakeManager()
	rm.listErr = errors.New("bus offline")

	found, err := Discover(context.Background(), rm)
	assert.Nil(t, found)
	assert.EqualError(t, err, "listing resources: bus offline")
}

func TestDiscoverCancelled(t *testing.T) {
	rm := newFakeManager()
	rm.add("GPIB0::5::INSTR", "Agilent Technologies,E3631A,0,2.1-5.0-1.0")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	log, _ := logtest.NewNullLogger()

	found, err := Discover(ctx, rm, WithLogger(log))
	assert.Empty(t, found)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Empty(t, rm.opened)
}

func TestBenchLookupAndClose(t *testing.T) {
	rm := newFakeManager()
	p2 := rm.add("GPIB0::6::INSTR", "Agilent Technologies,E3632A,0,1")
	p1 := rm.add("GPIB0::5::INSTR", "Agilent Technologies,E3631A,0,1")
	m := rm.add("GPIB0::22::INSTR", "HEWLETT-PACKARD,34401A,0,11-5-2")
	log, _ := logtest.NewNullLogger()

	b, err := Open(context.Background(), rm, WithLogger(log))
	require.NoError(t, err)
	assert.Equal(t, []string{"GPIB0::22::INSTR", "GPIB0::5::INSTR", "GPIB0::6::INSTR"}, b.Resources())

	p, ok := b.PSU()
	require.True(t, ok)
	assert.Equal(t, "GPIB0::5::INSTR", p.Resource())
	_, ok = b.DMM()
	assert.True(t, ok)
	_, ok = b.AWG()
	assert.False(t, ok)
	_, ok = b.Scope()
	assert.False(t, ok)
	_, ok = b.Get("GPIB0::6::INSTR")
	assert.True(t, ok)

	p2.CloseErr = errors.New("bus error")
	err = b.Close()
	assert.EqualError(t, err, "bus error")
	assert.True(t, p1.Closed())
	assert.True(t, p2.Closed())
	assert.True(t, m.Closed())
}
