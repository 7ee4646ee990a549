// Copyright (c) 2020–2024 The bench developers. All rights reserved.
// Project site: https://github.com/gotmc/bench
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

package usbtmc

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// Bulk message IDs, USBTMC table 2.
const (
	devDepMsgOut       = 0x01
	requestDevDepMsgIn = 0x02
	devDepMsgIn        = 0x02
	headerLen          = 12
	alignment          = 4
	eomBit             = 0x01
	termCharEnabledBit = 0x02
)

// bTag counts 1..255; 0 is not a valid tag.
type bTag byte

func (t *bTag) next() byte {
	*t++
	if *t == 0 {
		*t = 1
	}
	return byte(*t)
}

func header(msgID, tag byte, size int) []byte {
	h := make([]byte, headerLen)
	h[0] = msgID
	h[1] = tag
	h[2] = tag ^ 0xff
	binary.LittleEndian.PutUint32(h[4:8], uint32(size))
	return h
}

// encodeOut frames data as a single DEV_DEP_MSG_OUT with EOM set, padded
// to a multiple of four bytes.
func encodeOut(tag byte, data []byte) []byte {
	msg := append(header(devDepMsgOut, tag, len(data)), data...)
	msg[8] = eomBit
	if r := len(msg) % alignment; r > 0 {
		msg = append(msg, make([]byte, alignment-r)...)
	}
	return msg
}

// encodeInRequest asks the device to send up to size bytes. A non-nil term
// asks it to stop after that byte.
func encodeInRequest(tag byte, size int, term *byte) []byte {
	h := header(requestDevDepMsgIn, tag, size)
	if term != nil {
		h[8] = termCharEnabledBit
		h[9] = *term
	}
	return h
}

// decodeIn checks the DEV_DEP_MSG_IN header of a bulk-in transfer and
// returns its payload and whether it ends the message.
func decodeIn(tag byte, b []byte) (data []byte, eom bool, err error) {
	if len(b) < headerLen {
		return nil, false, errors.Errorf("short bulk-in transfer: %d bytes", len(b))
	}
	if b[0] != devDepMsgIn {
		return nil, false, errors.Errorf("unexpected bulk-in message id %#x", b[0])
	}
	if b[2] != b[1]^0xff {
		return nil, false, errors.Errorf("corrupt bTag %#x/%#x", b[1], b[2])
	}
	if b[1] != tag {
		return nil, false, errStaleTag
	}
	size := int(binary.LittleEndian.Uint32(b[4:8]))
	if size > len(b)-headerLen {
		return nil, false, errors.Errorf("bulk-in transfer claims %d bytes, carries %d", size, len(b)-headerLen)
	}
	return b[headerLen : headerLen+size], b[8]&eomBit != 0, nil
}

var errStaleTag = errors.New("reply to an earlier request")
