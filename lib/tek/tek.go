// Copyright (c) 2020–2024 The bench developers. All rights reserved.
// Project site: https://github.com/gotmc/bench
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

// Package tek decodes the binary payloads Tektronix oscilloscopes send:
// IEEE 488.2 definite-length blocks and RIBINARY/RPBINARY curve data.
package tek

import (
	"bufio"
	"encoding/binary"
	"io"
	"strconv"

	"github.com/pkg/errors"
)

// MaxBlockLen bounds the payload length a block header may announce.
const MaxBlockLen = 64 << 20

// ReadBlock reads one definite-length block from r:
//
//	'#' <n: one ASCII digit> <length: n ASCII digits> <length bytes of data>
//
// followed by an optional line terminator, which is consumed if it is
// already buffered. Indefinite blocks ("#0") are rejected.
func ReadBlock(r io.Reader) ([]byte, error) {
	var hdr [2]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, errors.Wrap(err, "reading block header")
	}
	if hdr[0] != '#' {
		return nil, errors.Errorf("invalid block header: want # got %q", hdr[0])
	}
	ndigits := int(hdr[1]) - '0'
	if ndigits < 1 || ndigits > 9 {
		return nil, errors.Errorf("invalid block length digit count %q", hdr[1])
	}
	digits := make([]byte, ndigits)
	if _, err := io.ReadFull(r, digits); err != nil {
		return nil, errors.Wrap(err, "reading block length")
	}
	n, err := strconv.Atoi(string(digits))
	if err != nil {
		return nil, errors.Wrapf(err, "invalid block length %q", digits)
	}
	if n > MaxBlockLen {
		return nil, errors.Errorf("block length %d exceeds %d", n, MaxBlockLen)
	}
	data := make([]byte, n)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, errors.Wrapf(err, "reading %d byte block", n)
	}
	if br, ok := r.(*bufio.Reader); ok && br.Buffered() > 0 {
		if b, _ := br.Peek(1); len(b) == 1 && b[0] == '\n' {
			br.Discard(1)
		}
	}
	return data, nil
}

// Encoding describes the layout of curve data selected with DATa:ENCdg and
// DATa:WIDth.
type Encoding struct {
	Width     int  // bytes per point, 1 or 2
	Signed    bool // RIBINARY when true, RPBINARY otherwise
	BigEndian bool // MSB first; Tektronix default
}

// RIBinary1 is signed one-byte data, the fastest transfer format.
var RIBinary1 = Encoding{Width: 1, Signed: true, BigEndian: true}

// Decode converts curve bytes to raw digitizer counts.
func Decode(data []byte, enc Encoding) ([]int, error) {
	switch enc.Width {
	case 1:
		out := make([]int, len(data))
		for i, b := range data {
			if enc.Signed {
				out[i] = int(int8(b))
			} else {
				out[i] = int(b)
			}
		}
		return out, nil
	case 2:
		if len(data)%2 != 0 {
			return nil, errors.Errorf("odd byte count %d for 2-byte points", len(data))
		}
		var order binary.ByteOrder = binary.LittleEndian
		if enc.BigEndian {
			order = binary.BigEndian
		}
		out := make([]int, len(data)/2)
		for i := range out {
			u := order.Uint16(data[2*i:])
			if enc.Signed {
				out[i] = int(int16(u))
			} else {
				out[i] = int(u)
			}
		}
		return out, nil
	default:
		return nil, errors.Errorf("unsupported point width %d", enc.Width)
	}
}
