// Copyright (c) 2020–2024 The bench developers. All rights reserved.
// Project site: https://github.com/gotmc/bench
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

package usbtmc

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gotmc/bench/lib/scpi"
)

func TestEncodeOut(t *testing.T) {
	msg := encodeOut(1, []byte("*IDN?\n"))
	want := []byte{
		0x01, 0x01, 0xfe, 0x00, 0x06, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00,
		'*', 'I', 'D', 'N', '?', '\n', 0x00, 0x00,
	}
	assert.Equal(t, want, msg)
}

func TestEncodeInRequest(t *testing.T) {
	term := byte('\n')
	assert.Equal(t,
		[]byte{0x02, 0x07, 0xf8, 0x00, 0x00, 0x04, 0x00, 0x00, 0x02, '\n', 0x00, 0x00},
		encodeInRequest(7, 1024, &term))
	assert.Equal(t,
		[]byte{0x02, 0x07, 0xf8, 0x00, 0x00, 0x04, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00},
		encodeInRequest(7, 1024, nil))
}

func TestBTagSkipsZero(t *testing.T) {
	tag := bTag(254)
	assert.Equal(t, byte(255), tag.next())
	assert.Equal(t, byte(1), tag.next())
}

func frameIn(tag byte, data string, eom bool) []byte {
	b := header(devDepMsgIn, tag, len(data))
	if eom {
		b[8] = eomBit
	}
	b = append(b, data...)
	for len(b)%alignment != 0 {
		b = append(b, 0)
	}
	return b
}

func TestDecodeIn(t *testing.T) {
	data, eom, err := decodeIn(3, frameIn(3, "1.5\n", true))
	require.NoError(t, err)
	assert.Equal(t, []byte("1.5\n"), data)
	assert.True(t, eom)

	_, _, err = decodeIn(4, frameIn(3, "1.5\n", true))
	assert.True(t, errors.Is(err, errStaleTag))

	_, _, err = decodeIn(3, []byte{0x02, 0x03})
	assert.Error(t, err)

	bad := frameIn(3, "x", true)
	binary.LittleEndian.PutUint32(bad[4:8], 100)
	_, _, err = decodeIn(3, bad)
	assert.Error(t, err)
}

type reply struct {
	data string
	eom  bool
}

// fakeBus answers each bulk-in request with the next queued reply, framed
// with the request's tag. With nothing queued the bulk-in read blocks, as a
// silent instrument does.
type fakeBus struct {
	writes  [][]byte
	replies []reply
	ready   chan []byte
}

func newFakeBus() *fakeBus { return &fakeBus{ready: make(chan []byte, 16)} }

func (f *fakeBus) Write(p []byte) (int, error) {
	f.writes = append(f.writes, append([]byte(nil), p...))
	if p[0] == requestDevDepMsgIn && len(f.replies) > 0 {
		r := f.replies[0]
		f.replies = f.replies[1:]
		f.ready <- frameIn(p[1], r.data, r.eom)
	}
	return len(p), nil
}

func (f *fakeBus) Read(p []byte) (int, error) {
	return copy(p, <-f.ready), nil
}

func TestDeviceQuery(t *testing.T) {
	bus := newFakeBus()
	bus.replies = []reply{{"KEYSIGHT,34465A,MY1,A.03\n", true}}
	d := newDevice("USB0::0x2A8D::0x0101::MY1::INSTR", bus, bus, nil)

	idn, err := scpi.NewDevice(d).Identify()
	require.NoError(t, err)
	assert.Equal(t, "KEYSIGHT,34465A,MY1,A.03", idn)
	require.Len(t, bus.writes, 2)
	assert.Equal(t, encodeOut(1, []byte("*IDN?\n")), bus.writes[0])
	assert.Equal(t, encodeInRequest(2, DefaultMaxTransfer, nil), bus.writes[1])
}

func TestDeviceJoinsTransfersUntilEOM(t *testing.T) {
	bus := newFakeBus()
	bus.replies = []reply{{"#15ab", false}, {"\ncd\n", true}}
	d := newDevice("usb", bus, bus, nil)
	require.NoError(t, d.SetTerminators(scpi.Terminators{Write: "\n"}))

	msg, err := d.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, []byte("#15ab\ncd\n"), msg)
	assert.Len(t, bus.writes, 2)
}

func TestDeviceSkipsEmptyMessage(t *testing.T) {
	bus := newFakeBus()
	bus.replies = []reply{{"\n", true}, {"+4.2E-01\n", true}}
	d := newDevice("usb", bus, bus, nil)

	msg, err := d.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "+4.2E-01", string(msg))
	assert.Len(t, bus.writes, 2)
}

func TestDeviceTimeoutThenLateReply(t *testing.T) {
	bus := newFakeBus()
	d := newDevice("usb", bus, bus, nil)
	require.NoError(t, d.SetTimeout(20*time.Millisecond))

	_, err := d.ReadMessage()
	assert.True(t, errors.Is(err, scpi.ErrCommunicationTimeout))

	// The reply to the timed out request turns up late and is dropped.
	bus.ready <- frameIn(1, "late\n", true)
	bus.replies = []reply{{"fresh\n", true}}
	msg, err := d.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "fresh", string(msg))
}

func TestDeviceClose(t *testing.T) {
	bus := newFakeBus()
	closes := 0
	d := newDevice("usb", bus, bus, func() error { closes++; return nil })
	require.NoError(t, d.Close())
	require.NoError(t, d.Close())
	assert.Equal(t, 1, closes)
	assert.ErrorIs(t, d.WriteLine("*RST"), scpi.ErrClosed)
}

func TestInfoResource(t *testing.T) {
	info := Info{Vendor: 0x0699, Product: 0x0378, Serial: "C011758"}
	assert.Equal(t, "USB0::0x0699::0x0378::C011758::INSTR", info.Resource(0))
}
