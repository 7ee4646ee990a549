// Copyright (c) 2020–2024 The bench developers. All rights reserved.
// Project site: https://github.com/gotmc/bench
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

package tek

import (
	"bufio"
	"bytes"
	"io"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadBlock(t *testing.T) {
	payload := []byte{0x00, 0x40, '\n', 0x80}
	r := bufio.NewReader(bytes.NewReader(append([]byte("#14"), append(payload, '\n', 'X')...)))

	data, err := ReadBlock(r)
	require.NoError(t, err)
	assert.Equal(t, payload, data)

	rest, err := r.ReadByte()
	require.NoError(t, err)
	assert.Equal(t, byte('X'), rest, "trailing terminator should be consumed")
}

func TestReadBlockErrors(t *testing.T) {
	for _, in := range []string{"", "X14abcd", "#0", "#A1", "#2x1ab", "#15abcd"} {
		_, err := ReadBlock(bytes.NewReader([]byte(in)))
		assert.Error(t, err, "input %q", in)
	}
}

func TestReadBlockKeepsCause(t *testing.T) {
	_, err := ReadBlock(bytes.NewReader([]byte("#15abcd")))
	require.Error(t, err)
	assert.True(t, errors.Is(err, io.ErrUnexpectedEOF), "got %v", err)
	assert.Contains(t, err.Error(), "reading 5 byte block")
}

func TestDecodeSignedBytes(t *testing.T) {
	got, err := Decode([]byte{0, 64, 127, 0x80}, RIBinary1)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 64, 127, -128}, got)

	got, err = Decode([]byte{0, 64, 127, 0x80}, Encoding{Width: 1})
	require.NoError(t, err)
	assert.Equal(t, []int{0, 64, 127, 128}, got)
}

func TestDecodeWords(t *testing.T) {
	data := []byte{0xff, 0xfe, 0x01, 0x00}
	got, err := Decode(data, Encoding{Width: 2, Signed: true, BigEndian: true})
	require.NoError(t, err)
	assert.Equal(t, []int{-2, 256}, got)

	got, err = Decode(data, Encoding{Width: 2, BigEndian: false})
	require.NoError(t, err)
	assert.Equal(t, []int{0xfeff, 0x0001}, got)

	_, err = Decode([]byte{1, 2, 3}, Encoding{Width: 2})
	assert.Error(t, err)
	_, err = Decode(data, Encoding{Width: 4})
	assert.Error(t, err)
}
